// internal/handler/campaign_handler.go
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	appErrors "github.com/unclebandit/wablast-backend/internal/errors"
	"github.com/unclebandit/wablast-backend/internal/service"
)

// CampaignHandler holds the dependencies for campaign-related HTTP handlers
type CampaignHandler struct {
	Service *service.CampaignService
}

func NewCampaignHandler(svc *service.CampaignService) *CampaignHandler {
	return &CampaignHandler{Service: svc}
}

func (h *CampaignHandler) CreateCampaign(w http.ResponseWriter, r *http.Request) {
	var p service.CreateCampaignParams
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		http.Error(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	campaign, err := h.Service.CreateCampaign(r.Context(), p)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, campaign)
}

func (h *CampaignHandler) ListCampaigns(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	pageSize, _ := strconv.Atoi(r.URL.Query().Get("page_size"))
	status := r.URL.Query().Get("status")

	campaigns, pagination, err := h.Service.ListCampaigns(page, pageSize, status)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, map[string]interface{}{
		"data":       campaigns,
		"pagination": pagination,
	})
}

func (h *CampaignHandler) GetCampaign(w http.ResponseWriter, r *http.Request) {
	id, err := campaignID(r)
	if err != nil {
		http.Error(w, "invalid campaign id", http.StatusBadRequest)
		return
	}

	details, err := h.Service.GetCampaignDetails(id)
	if err != nil {
		writeCampaignError(w, err)
		return
	}
	writeJSON(w, details)
}

func (h *CampaignHandler) StartCampaign(w http.ResponseWriter, r *http.Request) {
	id, err := campaignID(r)
	if err != nil {
		http.Error(w, "invalid campaign id", http.StatusBadRequest)
		return
	}

	var body struct {
		ContactIDs []int `json:"contact_ids"`
	}
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
	}

	if err := h.Service.Start(r.Context(), id, body.ContactIDs); err != nil {
		writeCampaignError(w, err)
		return
	}
	writeJSON(w, map[string]string{"status": "running"})
}

func (h *CampaignHandler) PauseCampaign(w http.ResponseWriter, r *http.Request) {
	h.doTransition(w, r, h.Service.Pause, "paused")
}

func (h *CampaignHandler) ResumeCampaign(w http.ResponseWriter, r *http.Request) {
	h.doTransition(w, r, h.Service.Resume, "running")
}

func (h *CampaignHandler) CancelCampaign(w http.ResponseWriter, r *http.Request) {
	h.doTransition(w, r, h.Service.Cancel, "cancelled")
}

func (h *CampaignHandler) SweepCampaign(w http.ResponseWriter, r *http.Request) {
	id, err := campaignID(r)
	if err != nil {
		http.Error(w, "invalid campaign id", http.StatusBadRequest)
		return
	}
	removed, err := h.Service.SweepCampaignAccounts(r.Context(), id)
	if err != nil {
		writeCampaignError(w, err)
		return
	}
	writeJSON(w, map[string]int{"removed": removed})
}

func (h *CampaignHandler) Preview(w http.ResponseWriter, r *http.Request) {
	var body struct {
		TemplateID int `json:"template_id"`
		ContactID  int `json:"contact_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	rendered, err := h.Service.RenderPreview(body.TemplateID, body.ContactID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, map[string]interface{}{
		"rendered_message": rendered,
		"template_id":      body.TemplateID,
		"contact_id":       body.ContactID,
	})
}

func (h *CampaignHandler) SendAdHoc(w http.ResponseWriter, r *http.Request) {
	var body struct {
		AccountID  int `json:"account_id"`
		TemplateID int `json:"template_id"`
		ContactID  int `json:"contact_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	msg, err := h.Service.SendAdHoc(r.Context(), body.AccountID, body.TemplateID, body.ContactID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, msg)
}

// StatusCallback receives the provider's delivery receipts.
func (h *CampaignHandler) StatusCallback(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ProviderMessageID string `json:"provider_message_id"`
		Status            string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if err := h.Service.HandleStatusCallback(body.ProviderMessageID, body.Status); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *CampaignHandler) doTransition(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, id int) error, status string) {
	id, err := campaignID(r)
	if err != nil {
		http.Error(w, "invalid campaign id", http.StatusBadRequest)
		return
	}
	if err := fn(r.Context(), id); err != nil {
		writeCampaignError(w, err)
		return
	}
	writeJSON(w, map[string]string{"status": status})
}

func campaignID(r *http.Request) (int, error) {
	return strconv.Atoi(chi.URLParam(r, "id"))
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func writeCampaignError(w http.ResponseWriter, err error) {
	var notFound *appErrors.ErrCampaignNotFound
	var invalid *appErrors.ErrInvalidTransition
	var noTemplates *appErrors.ErrNoTemplates
	switch {
	case errors.As(err, &notFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.As(err, &invalid):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.As(err, &noTemplates):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
