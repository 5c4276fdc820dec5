package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/unclebandit/wablast-backend/internal/model"
)

// HTTPClient talks to the hosted business-messaging API. Only the handful of
// calls the dispatch core needs are implemented.
type HTTPClient struct {
	BaseURL string
	Client  *http.Client
}

func NewHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Client:  &http.Client{Timeout: timeout},
	}
}

type sendRequest struct {
	To           string            `json:"to"`
	TemplateName string            `json:"template_name"`
	Language     string            `json:"language"`
	Variables    map[string]string `json:"variables,omitempty"`
	MediaURL     string            `json:"media_url,omitempty"`
	ClientRef    string            `json:"client_ref"`
}

type sendResponse struct {
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
}

func (c *HTTPClient) SendTemplateMessage(ctx context.Context, acct *model.Account, recipient, templateName, language string, variables map[string]string, mediaURL string) (*SendResult, error) {
	body := sendRequest{
		To:           recipient,
		TemplateName: templateName,
		Language:     language,
		Variables:    variables,
		MediaURL:     mediaURL,
		ClientRef:    uuid.NewString(),
	}

	var resp sendResponse
	url := fmt.Sprintf("%s/%s/messages", c.BaseURL, acct.PhoneNumberID)
	if err := c.do(ctx, acct, http.MethodPost, url, body, &resp); err != nil {
		return nil, err
	}
	if len(resp.Messages) == 0 {
		return nil, fmt.Errorf("gateway accepted send but returned no message id")
	}
	return &SendResult{MessageID: resp.Messages[0].ID}, nil
}

type templateResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

func (c *HTTPClient) CreateTemplate(ctx context.Context, acct *model.Account, payload TemplatePayload) (*TemplateResult, error) {
	var resp templateResponse
	url := fmt.Sprintf("%s/%s/message_templates", c.BaseURL, acct.BusinessID)
	if err := c.do(ctx, acct, http.MethodPost, url, payload, &resp); err != nil {
		return nil, err
	}
	return &TemplateResult{ProviderID: resp.ID, Status: resp.Status}, nil
}

func (c *HTTPClient) DeleteTemplate(ctx context.Context, acct *model.Account, name string) error {
	url := fmt.Sprintf("%s/%s/message_templates?name=%s", c.BaseURL, acct.BusinessID, name)
	return c.do(ctx, acct, http.MethodDelete, url, nil, nil)
}

func (c *HTTPClient) UpdateProfile(ctx context.Context, acct *model.Account, fields map[string]string) error {
	url := fmt.Sprintf("%s/%s/business_profile", c.BaseURL, acct.PhoneNumberID)
	return c.do(ctx, acct, http.MethodPost, url, fields, nil)
}

type healthResponse struct {
	Status       string `json:"status"`
	Quality      string `json:"quality_rating"`
	Verification string `json:"verification_status"`
	DisplayName  string `json:"display_name"`
}

func (c *HTTPClient) FetchAccountHealth(ctx context.Context, acct *model.Account) (*model.AccountHealthSnapshot, error) {
	var resp healthResponse
	url := fmt.Sprintf("%s/%s?fields=status,quality_rating,verification_status,display_name", c.BaseURL, acct.PhoneNumberID)
	if err := c.do(ctx, acct, http.MethodGet, url, nil, &resp); err != nil {
		return nil, err
	}

	snap := &model.AccountHealthSnapshot{
		AccountID:    acct.ID,
		Status:       normalize(resp.Status, model.AccountStatusUnknown),
		Quality:      normalize(resp.Quality, model.QualityUnknown),
		Verification: normalize(resp.Verification, model.VerificationUnknown),
		DisplayName:  resp.DisplayName,
		CheckedAt:    time.Now(),
	}
	return snap, nil
}

func (c *HTTPClient) do(ctx context.Context, acct *model.Account, method, url string, body, out any) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+acct.AccessToken)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{Code: resp.StatusCode, URL: url, Body: strings.TrimSpace(string(raw))}
	}
	if out != nil {
		return json.Unmarshal(raw, out)
	}
	return nil
}

func normalize(v, fallback string) string {
	v = strings.ToLower(strings.TrimSpace(v))
	if v == "" {
		return fallback
	}
	return v
}

var _ Client = (*HTTPClient)(nil)
