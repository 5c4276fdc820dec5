package taskqueue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/unclebandit/wablast-backend/internal/gateway"
	"github.com/unclebandit/wablast-backend/internal/model"
	"github.com/unclebandit/wablast-backend/internal/repository"
)

// UpdateProfileOp changes business profile fields (about, address, email,
// websites, description) on one account. The provider serializes these per
// account, hence the queue.
type UpdateProfileOp struct {
	AccountID int               `json:"account_id"`
	Fields    map[string]string `json:"fields"`
}

func (UpdateProfileOp) Kind() string   { return KindEdit }
func (o UpdateProfileOp) Account() int { return o.AccountID }

// ProfileExecutor applies profile mutations through the gateway. Its
// vocabulary is a single kind; everything else is rejected up front.
type ProfileExecutor struct {
	Gateway  gateway.Client
	Accounts repository.AccountRepositoryInterface
}

func (e *ProfileExecutor) Execute(ctx context.Context, op Operation) (string, error) {
	o, ok := op.(UpdateProfileOp)
	if !ok {
		return "", fmt.Errorf("unsupported profile operation kind %q", op.Kind())
	}
	if len(o.Fields) == 0 {
		return "", fmt.Errorf("profile update for account %d has no fields", o.AccountID)
	}

	acct, err := e.Accounts.GetByID(o.AccountID)
	if err != nil {
		return "", err
	}
	if err := e.Gateway.UpdateProfile(ctx, acct, o.Fields); err != nil {
		return "", err
	}
	return model.QueueItemStatusUpdated, nil
}

func (e *ProfileExecutor) Decode(kind string, payload []byte) (Operation, error) {
	if kind != KindEdit {
		return nil, fmt.Errorf("unsupported profile operation kind %q", kind)
	}
	var o UpdateProfileOp
	if err := json.Unmarshal(payload, &o); err != nil {
		return nil, err
	}
	return o, nil
}

var _ Executor = (*ProfileExecutor)(nil)
