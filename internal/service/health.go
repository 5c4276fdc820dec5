// internal/service/health.go
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/unclebandit/wablast-backend/internal/gateway"
	"github.com/unclebandit/wablast-backend/internal/model"
)

// confirmedBadStatus are the provider statuses that count as confirmed-bad
// signals. unknown is deliberately absent: it is indistinguishable from a
// transient provider error.
var confirmedBadStatus = map[string]bool{
	model.AccountStatusBanned:       true,
	model.AccountStatusFlagged:      true,
	model.AccountStatusRestricted:   true,
	model.AccountStatusDisconnected: true,
}

// HealthEvaluator classifies a sending account's standing from provider
// signals. Snapshots are cached briefly in redis so failure-spike checks
// don't hammer the provider.
//
// Note: a single yellow/red reading removes an account from a running
// rotation with no cooldown window. Deliberate conservatism, kept as-is;
// any hysteresis is a product decision.
type HealthEvaluator struct {
	Gateway gateway.Client
	Cache   *redis.Client // optional
	TTL     time.Duration
}

// Evaluate queries the provider for the account's current standing. It never
// returns an error: a failed health check yields an explicit unknown
// snapshot, because health checks must not crash a running campaign.
func (e *HealthEvaluator) Evaluate(ctx context.Context, acct *model.Account) model.AccountHealthSnapshot {
	if snap, ok := e.cached(ctx, acct.ID); ok {
		return snap
	}

	snap, err := e.Gateway.FetchAccountHealth(ctx, acct)
	if err != nil {
		log.Printf("[Health] account %d check failed, treating as unknown: %v", acct.ID, err)
		return model.AccountHealthSnapshot{
			AccountID:    acct.ID,
			Status:       model.AccountStatusUnknown,
			Quality:      model.QualityUnknown,
			Verification: model.VerificationUnknown,
			CheckedAt:    time.Now(),
		}
	}

	e.store(ctx, *snap)
	return *snap
}

func (e *HealthEvaluator) cached(ctx context.Context, accountID int) (model.AccountHealthSnapshot, bool) {
	if e.Cache == nil {
		return model.AccountHealthSnapshot{}, false
	}
	raw, err := e.Cache.Get(ctx, healthKey(accountID)).Bytes()
	if err != nil {
		return model.AccountHealthSnapshot{}, false
	}
	var snap model.AccountHealthSnapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return model.AccountHealthSnapshot{}, false
	}
	return snap, true
}

func (e *HealthEvaluator) store(ctx context.Context, snap model.AccountHealthSnapshot) {
	if e.Cache == nil {
		return
	}
	ttl := e.TTL
	if ttl <= 0 {
		ttl = time.Minute
	}
	b, err := json.Marshal(snap)
	if err != nil {
		return
	}
	if err := e.Cache.Set(ctx, healthKey(snap.AccountID), b, ttl).Err(); err != nil {
		log.Printf("[Health] cache store for account %d: %v", snap.AccountID, err)
	}
}

func healthKey(accountID int) string {
	return fmt.Sprintf("wablast:health:%d", accountID)
}

// IsHealthy is the gate for enrolling an account into new work: confirmed-bad
// status, degraded quality, or an unverified account all fail it.
func IsHealthy(s model.AccountHealthSnapshot) bool {
	if confirmedBadStatus[s.Status] {
		return false
	}
	if s.Quality == model.QualityYellow || s.Quality == model.QualityRed {
		return false
	}
	if s.Verification == model.VerificationUnverified {
		return false
	}
	return true
}

// ShouldRemoveFromCampaign is stricter and narrower than IsHealthy: only
// confirmed-bad signals pull an account out of a rotation that is already
// running. Unknown never does, and neither does unverified-but-green —
// removal mid-campaign on a transient hiccup is worse than a few more sends.
func ShouldRemoveFromCampaign(s model.AccountHealthSnapshot) bool {
	if confirmedBadStatus[s.Status] {
		return true
	}
	return s.Quality == model.QualityYellow || s.Quality == model.QualityRed
}

// UnhealthyReason explains, in priority order (status, then quality, then
// verification), why a snapshot is unhealthy. Empty for healthy snapshots.
func UnhealthyReason(s model.AccountHealthSnapshot) string {
	if confirmedBadStatus[s.Status] {
		return fmt.Sprintf("account status is %s", s.Status)
	}
	if s.Quality == model.QualityYellow || s.Quality == model.QualityRed {
		return fmt.Sprintf("quality rating is %s", s.Quality)
	}
	if s.Verification == model.VerificationUnverified {
		return "account is not verified"
	}
	return ""
}
