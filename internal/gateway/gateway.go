// Package gateway abstracts the messaging provider's API. The core only
// depends on these interfaces; the wire schema lives in the HTTP client.
package gateway

import (
	"context"
	"fmt"
	"strings"

	"github.com/unclebandit/wablast-backend/internal/model"
)

// SendResult is the provider's acknowledgement of an accepted message.
type SendResult struct {
	MessageID string
}

// TemplatePayload carries everything needed to register a template.
type TemplatePayload struct {
	Name     string `json:"name"`
	Language string `json:"language"`
	Category string `json:"category"`
	Body     string `json:"body"`
}

// TemplateResult is the provider's answer to a template mutation. Status is
// the provider's review verdict (e.g. PENDING, APPROVED, REJECTED), not a
// generic success flag.
type TemplateResult struct {
	ProviderID string
	Status     string
}

// Client is the messaging gateway the dispatch core sends through.
type Client interface {
	SendTemplateMessage(ctx context.Context, acct *model.Account, recipient, templateName, language string, variables map[string]string, mediaURL string) (*SendResult, error)
	CreateTemplate(ctx context.Context, acct *model.Account, payload TemplatePayload) (*TemplateResult, error)
	DeleteTemplate(ctx context.Context, acct *model.Account, name string) error
	UpdateProfile(ctx context.Context, acct *model.Account, fields map[string]string) error
	FetchAccountHealth(ctx context.Context, acct *model.Account) (*model.AccountHealthSnapshot, error)
}

// StatusError is a non-2xx provider response.
type StatusError struct {
	Code int
	URL  string
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("gateway %s: status %d: %s", e.URL, e.Code, e.Body)
}

// IsRetryable classifies an error as transient. Rate limits and provider
// 5xx are retried by the job queue; everything else is treated as permanent.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if e, ok := err.(*StatusError); ok {
		return e.Code == 429 || (e.Code >= 500 && e.Code <= 599)
	}
	s := strings.ToLower(err.Error())
	switch {
	case strings.Contains(s, "timeout"),
		strings.Contains(s, "temporary"),
		strings.Contains(s, "connection reset"),
		strings.Contains(s, "deadline"):
		return true
	default:
		return false
	}
}
