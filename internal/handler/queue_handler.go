// internal/handler/queue_handler.go
package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/unclebandit/wablast-backend/internal/taskqueue"
)

// QueueHandler exposes the sequential mutation queues: enqueue, status,
// cancel-pending and operator-triggered retries.
type QueueHandler struct {
	Templates *taskqueue.Queue
	Profiles  *taskqueue.Queue
}

func NewQueueHandler(templates, profiles *taskqueue.Queue) *QueueHandler {
	return &QueueHandler{Templates: templates, Profiles: profiles}
}

type templateOpRequest struct {
	Kind             string `json:"kind"`
	AccountID        int    `json:"account_id"`
	Name             string `json:"name"`
	Language         string `json:"language"`
	Category         string `json:"category"`
	Body             string `json:"body"`
	SourceTemplateID int    `json:"source_template_id"`
	NewName          string `json:"new_name"`
}

func (h *QueueHandler) EnqueueTemplateOp(w http.ResponseWriter, r *http.Request) {
	var req templateOpRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	var op taskqueue.Operation
	switch req.Kind {
	case taskqueue.KindCreate:
		op = taskqueue.CreateTemplateOp{AccountID: req.AccountID, Name: req.Name, Language: req.Language, Category: req.Category, Body: req.Body}
	case taskqueue.KindDelete:
		op = taskqueue.DeleteTemplateOp{AccountID: req.AccountID, Name: req.Name}
	case taskqueue.KindEdit:
		op = taskqueue.EditTemplateOp{AccountID: req.AccountID, Name: req.Name, Language: req.Language, Category: req.Category, Body: req.Body}
	case taskqueue.KindClone:
		op = taskqueue.CloneTemplateOp{AccountID: req.AccountID, SourceTemplateID: req.SourceTemplateID, NewName: req.NewName}
	default:
		http.Error(w, "unsupported operation kind", http.StatusBadRequest)
		return
	}

	h.enqueue(w, h.Templates, op)
}

func (h *QueueHandler) EnqueueProfileOp(w http.ResponseWriter, r *http.Request) {
	var req struct {
		AccountID int               `json:"account_id"`
		Fields    map[string]string `json:"fields"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	h.enqueue(w, h.Profiles, taskqueue.UpdateProfileOp{AccountID: req.AccountID, Fields: req.Fields})
}

func (h *QueueHandler) enqueue(w http.ResponseWriter, q *taskqueue.Queue, op taskqueue.Operation) {
	id, err := q.Enqueue(op)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, map[string]string{"item_id": id})
}

func (h *QueueHandler) QueueStatus(w http.ResponseWriter, r *http.Request) {
	q, ok := h.pick(r)
	if !ok {
		http.Error(w, "unknown queue", http.StatusNotFound)
		return
	}
	writeJSON(w, q.GetStatus())
}

func (h *QueueHandler) CancelPending(w http.ResponseWriter, r *http.Request) {
	q, ok := h.pick(r)
	if !ok {
		http.Error(w, "unknown queue", http.StatusNotFound)
		return
	}
	writeJSON(w, q.CancelPending())
}

func (h *QueueHandler) RetryFailedItem(w http.ResponseWriter, r *http.Request) {
	q, ok := h.pick(r)
	if !ok {
		http.Error(w, "unknown queue", http.StatusNotFound)
		return
	}

	historyID := chi.URLParam(r, "historyID")
	var override json.RawMessage
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&override); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
	}

	id, err := q.RetryFailedItem(historyID, override)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, map[string]string{"item_id": id})
}

func (h *QueueHandler) RetryAllFailures(w http.ResponseWriter, r *http.Request) {
	q, ok := h.pick(r)
	if !ok {
		http.Error(w, "unknown queue", http.StatusNotFound)
		return
	}
	retried, err := q.RetryAllFailures()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]int{"retried": retried})
}

func (h *QueueHandler) pick(r *http.Request) (*taskqueue.Queue, bool) {
	switch chi.URLParam(r, "queue") {
	case "templates":
		return h.Templates, true
	case "profiles":
		return h.Profiles, true
	default:
		return nil, false
	}
}
