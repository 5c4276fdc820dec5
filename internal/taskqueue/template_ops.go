package taskqueue

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/unclebandit/wablast-backend/internal/gateway"
	"github.com/unclebandit/wablast-backend/internal/model"
	"github.com/unclebandit/wablast-backend/internal/repository"
)

// Template operation kinds.
const (
	KindCreate = "create"
	KindDelete = "delete"
	KindEdit   = "edit"
	KindClone  = "clone"
)

// CreateTemplateOp registers a new template with the provider.
type CreateTemplateOp struct {
	AccountID int    `json:"account_id"`
	Name      string `json:"name"`
	Language  string `json:"language"`
	Category  string `json:"category"`
	Body      string `json:"body"`
}

func (CreateTemplateOp) Kind() string   { return KindCreate }
func (o CreateTemplateOp) Account() int { return o.AccountID }

// DeleteTemplateOp removes a template from the provider.
type DeleteTemplateOp struct {
	AccountID int    `json:"account_id"`
	Name      string `json:"name"`
}

func (DeleteTemplateOp) Kind() string   { return KindDelete }
func (o DeleteTemplateOp) Account() int { return o.AccountID }

// EditTemplateOp resubmits a template's content under its existing name.
// The provider treats this as a new revision that goes back through review.
type EditTemplateOp struct {
	AccountID int    `json:"account_id"`
	Name      string `json:"name"`
	Language  string `json:"language"`
	Category  string `json:"category"`
	Body      string `json:"body"`
}

func (EditTemplateOp) Kind() string   { return KindEdit }
func (o EditTemplateOp) Account() int { return o.AccountID }

// CloneTemplateOp copies an existing local template to a new name, possibly
// onto a different account.
type CloneTemplateOp struct {
	AccountID        int    `json:"account_id"`
	SourceTemplateID int    `json:"source_template_id"`
	NewName          string `json:"new_name"`
}

func (CloneTemplateOp) Kind() string   { return KindClone }
func (o CloneTemplateOp) Account() int { return o.AccountID }

// TemplateExecutor performs template operations against the gateway and
// mirrors outcomes into the local templates table.
type TemplateExecutor struct {
	Gateway   gateway.Client
	Accounts  repository.AccountRepositoryInterface
	Templates repository.TemplateRepositoryInterface
}

func (e *TemplateExecutor) Execute(ctx context.Context, op Operation) (string, error) {
	acct, err := e.Accounts.GetByID(op.Account())
	if err != nil {
		return "", err
	}

	switch o := op.(type) {
	case CreateTemplateOp:
		return e.create(ctx, acct, o.Name, o.Language, o.Category, o.Body)

	case DeleteTemplateOp:
		if err := e.Gateway.DeleteTemplate(ctx, acct, o.Name); err != nil {
			return "", err
		}
		return model.QueueItemStatusDeleted, nil

	case EditTemplateOp:
		if _, err := e.create(ctx, acct, o.Name, o.Language, o.Category, o.Body); err != nil {
			return "", err
		}
		return model.QueueItemStatusUpdated, nil

	case CloneTemplateOp:
		src, err := e.Templates.GetByID(o.SourceTemplateID)
		if err != nil {
			return "", err
		}
		if src == nil {
			return "", fmt.Errorf("source template %d not found", o.SourceTemplateID)
		}
		if _, err := e.create(ctx, acct, o.NewName, src.Language, "", src.Body); err != nil {
			return "", err
		}
		return model.QueueItemStatusCloned, nil

	default:
		return "", fmt.Errorf("unsupported template operation kind %q", op.Kind())
	}
}

func (e *TemplateExecutor) create(ctx context.Context, acct *model.Account, name, language, category, body string) (string, error) {
	res, err := e.Gateway.CreateTemplate(ctx, acct, gateway.TemplatePayload{
		Name:     name,
		Language: language,
		Category: category,
		Body:     body,
	})
	if err != nil {
		return "", err
	}

	tpl := &model.Template{
		AccountID:      acct.ID,
		Name:           name,
		Language:       language,
		Body:           body,
		ProviderID:     res.ProviderID,
		ProviderStatus: res.Status,
	}
	if err := e.Templates.Create(tpl); err != nil {
		return "", fmt.Errorf("template registered with provider but local save failed: %w", err)
	}

	// The terminal status is the provider's review verdict, lowercased to
	// line up with our own status vocabulary.
	return strings.ToLower(res.Status), nil
}

func (e *TemplateExecutor) Decode(kind string, payload []byte) (Operation, error) {
	switch kind {
	case KindCreate:
		var o CreateTemplateOp
		if err := json.Unmarshal(payload, &o); err != nil {
			return nil, err
		}
		return o, nil
	case KindDelete:
		var o DeleteTemplateOp
		if err := json.Unmarshal(payload, &o); err != nil {
			return nil, err
		}
		return o, nil
	case KindEdit:
		var o EditTemplateOp
		if err := json.Unmarshal(payload, &o); err != nil {
			return nil, err
		}
		return o, nil
	case KindClone:
		var o CloneTemplateOp
		if err := json.Unmarshal(payload, &o); err != nil {
			return nil, err
		}
		return o, nil
	default:
		return nil, fmt.Errorf("unsupported template operation kind %q", kind)
	}
}

var _ Executor = (*TemplateExecutor)(nil)
