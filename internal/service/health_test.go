package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unclebandit/wablast-backend/internal/model"
)

func snap(status, quality, verification string) model.AccountHealthSnapshot {
	return model.AccountHealthSnapshot{AccountID: 1, Status: status, Quality: quality, Verification: verification}
}

func TestIsHealthy(t *testing.T) {
	tests := []struct {
		name string
		s    model.AccountHealthSnapshot
		want bool
	}{
		{"connected green verified", snap(model.AccountStatusConnected, model.QualityGreen, model.VerificationVerified), true},
		{"banned", snap(model.AccountStatusBanned, model.QualityGreen, model.VerificationVerified), false},
		{"flagged", snap(model.AccountStatusFlagged, model.QualityGreen, model.VerificationVerified), false},
		{"restricted", snap(model.AccountStatusRestricted, model.QualityGreen, model.VerificationVerified), false},
		{"disconnected", snap(model.AccountStatusDisconnected, model.QualityGreen, model.VerificationVerified), false},
		{"yellow quality", snap(model.AccountStatusConnected, model.QualityYellow, model.VerificationVerified), false},
		{"red quality", snap(model.AccountStatusConnected, model.QualityRed, model.VerificationVerified), false},
		{"unverified", snap(model.AccountStatusConnected, model.QualityGreen, model.VerificationUnverified), false},
		{"all unknown", snap(model.AccountStatusUnknown, model.QualityUnknown, model.VerificationUnknown), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsHealthy(tt.s))
		})
	}
}

// Removal mid-campaign needs a confirmed-bad signal. Unknown readings and
// unverified accounts are unhealthy for enrollment but must never pull an
// account out of a running rotation.
func TestShouldRemoveFromCampaignIsNarrowerThanIsHealthy(t *testing.T) {
	tests := []struct {
		name string
		s    model.AccountHealthSnapshot
		want bool
	}{
		{"banned", snap(model.AccountStatusBanned, model.QualityGreen, model.VerificationVerified), true},
		{"red quality", snap(model.AccountStatusConnected, model.QualityRed, model.VerificationVerified), true},
		{"yellow quality", snap(model.AccountStatusConnected, model.QualityYellow, model.VerificationVerified), true},
		{"all unknown", snap(model.AccountStatusUnknown, model.QualityUnknown, model.VerificationUnknown), false},
		{"unverified but green", snap(model.AccountStatusConnected, model.QualityGreen, model.VerificationUnverified), false},
		{"healthy", snap(model.AccountStatusConnected, model.QualityGreen, model.VerificationVerified), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ShouldRemoveFromCampaign(tt.s))
		})
	}
}

func TestUnhealthyReasonPriority(t *testing.T) {
	// Status outranks quality outranks verification.
	s := snap(model.AccountStatusBanned, model.QualityRed, model.VerificationUnverified)
	assert.Equal(t, "account status is banned", UnhealthyReason(s))

	s = snap(model.AccountStatusConnected, model.QualityRed, model.VerificationUnverified)
	assert.Equal(t, "quality rating is red", UnhealthyReason(s))

	s = snap(model.AccountStatusConnected, model.QualityGreen, model.VerificationUnverified)
	assert.Equal(t, "account is not verified", UnhealthyReason(s))

	s = snap(model.AccountStatusConnected, model.QualityGreen, model.VerificationVerified)
	assert.Empty(t, UnhealthyReason(s))
}

func TestEvaluateFallsBackToUnknownOnGatewayError(t *testing.T) {
	gw := newFakeGateway()
	gw.healthErr = errors.New("connection reset by peer")
	e := &HealthEvaluator{Gateway: gw}

	got := e.Evaluate(context.Background(), &model.Account{ID: 9})

	assert.Equal(t, 9, got.AccountID)
	assert.Equal(t, model.AccountStatusUnknown, got.Status)
	assert.Equal(t, model.QualityUnknown, got.Quality)
	assert.Equal(t, model.VerificationUnknown, got.Verification)
	assert.False(t, got.CheckedAt.IsZero())
}

func TestEvaluateCachesSnapshots(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	gw := newFakeGateway()
	gw.health[4] = &model.AccountHealthSnapshot{
		AccountID:    4,
		Status:       model.AccountStatusConnected,
		Quality:      model.QualityGreen,
		Verification: model.VerificationVerified,
	}
	e := &HealthEvaluator{Gateway: gw, Cache: client, TTL: time.Minute}
	acct := &model.Account{ID: 4}

	first := e.Evaluate(context.Background(), acct)
	require.Equal(t, model.QualityGreen, first.Quality)

	second := e.Evaluate(context.Background(), acct)
	assert.Equal(t, first.Quality, second.Quality)
	assert.Equal(t, 1, gw.healthCalls, "second read must come from the cache")
	assert.True(t, mr.Exists("wablast:health:4"))

	// Past the TTL the provider is asked again.
	mr.FastForward(2 * time.Minute)
	e.Evaluate(context.Background(), acct)
	assert.Equal(t, 2, gw.healthCalls)
}

func TestEvaluateDoesNotCacheFailures(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	gw := newFakeGateway()
	gw.healthErr = errors.New("timeout")
	e := &HealthEvaluator{Gateway: gw, Cache: client, TTL: time.Minute}
	acct := &model.Account{ID: 4}

	e.Evaluate(context.Background(), acct)
	e.Evaluate(context.Background(), acct)

	assert.Equal(t, 2, gw.healthCalls, "unknown snapshots are never cached")
	assert.False(t, mr.Exists("wablast:health:4"))
}
