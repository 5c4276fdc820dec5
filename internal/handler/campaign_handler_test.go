package handler

import (
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	appErrors "github.com/unclebandit/wablast-backend/internal/errors"
)

func TestWriteCampaignErrorStatusMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"not found", appErrors.NewCampaignNotFound(7), 404},
		{"invalid transition", appErrors.NewInvalidTransition(7, "completed", "paused"), 409},
		{"no templates", appErrors.NewNoTemplates(7), 400},
		{"anything else", errors.New("db connection lost"), 500},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			writeCampaignError(rec, tt.err)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}
