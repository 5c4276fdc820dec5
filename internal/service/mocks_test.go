package service

import (
	"context"
	"fmt"
	"sync"

	appErrors "github.com/unclebandit/wablast-backend/internal/errors"
	"github.com/unclebandit/wablast-backend/internal/gateway"
	"github.com/unclebandit/wablast-backend/internal/model"
	"github.com/unclebandit/wablast-backend/internal/queue"
	"github.com/unclebandit/wablast-backend/internal/repository"
)

// In-memory fakes shared by the service tests. They mirror the repositories'
// conditional-update semantics (first-write-wins, status guards) so the
// idempotency paths exercise the same contract the SQL layer provides.

// --- messages ---

type memMessages struct {
	mu      sync.Mutex
	nextID  int
	rows    map[int]*model.Message
	failFor map[int]bool // contact IDs whose Create fails
}

func newMemMessages() *memMessages {
	return &memMessages{rows: map[int]*model.Message{}, failFor: map[int]bool{}}
}

func (m *memMessages) Create(msg *model.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failFor[msg.ContactID] {
		return fmt.Errorf("insert failed for contact %d", msg.ContactID)
	}
	m.nextID++
	msg.ID = m.nextID
	if msg.Status == "" {
		msg.Status = model.MessageStatusPending
	}
	cp := *msg
	m.rows[msg.ID] = &cp
	return nil
}

func (m *memMessages) GetByID(id int) (*model.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[id]
	if !ok {
		return nil, nil
	}
	cp := *row
	return &cp, nil
}

func (m *memMessages) MarkSent(id int, providerMessageID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[id]
	if !ok || row.Status != model.MessageStatusPending {
		return false, nil
	}
	row.Status = model.MessageStatusSent
	row.ProviderMessageID = providerMessageID
	row.LastError = ""
	return true, nil
}

func (m *memMessages) MarkFailed(id int, lastError string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[id]
	if !ok || row.Status != model.MessageStatusPending {
		return false, nil
	}
	row.Status = model.MessageStatusFailed
	row.LastError = lastError
	return true, nil
}

func (m *memMessages) MarkDelivered(providerMessageID string) (bool, int, error) {
	return m.ratchet(providerMessageID, model.MessageStatusDelivered, model.MessageStatusSent)
}

func (m *memMessages) MarkRead(providerMessageID string) (bool, int, error) {
	return m.ratchet(providerMessageID, model.MessageStatusRead,
		model.MessageStatusSent, model.MessageStatusDelivered)
}

func (m *memMessages) ratchet(providerMessageID, status string, from ...string) (bool, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, row := range m.rows {
		if row.ProviderMessageID != providerMessageID {
			continue
		}
		for _, f := range from {
			if row.Status == f {
				row.Status = status
				return true, row.CampaignID, nil
			}
		}
		return false, 0, nil
	}
	return false, 0, nil
}

func (m *memMessages) UpdateAccount(id, accountID, templateID int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if row, ok := m.rows[id]; ok && row.Status == model.MessageStatusPending {
		row.AccountID = accountID
		row.TemplateID = templateID
	}
	return nil
}

func (m *memMessages) CountPending(campaignID int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, row := range m.rows {
		if row.CampaignID == campaignID && row.Status == model.MessageStatusPending {
			n++
		}
	}
	return n, nil
}

func (m *memMessages) row(id int) model.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.rows[id]
}

func (m *memMessages) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rows)
}

var _ repository.MessageRepositoryInterface = (*memMessages)(nil)

// --- campaigns ---

type memCampaigns struct {
	mu       sync.Mutex
	nextID   int
	rows     map[int]*model.Campaign
	counters map[int]map[string]int
	stats    map[int]map[string]int
}

func newMemCampaigns() *memCampaigns {
	return &memCampaigns{
		rows:     map[int]*model.Campaign{},
		counters: map[int]map[string]int{},
		stats:    map[int]map[string]int{},
	}
}

func (m *memCampaigns) Create(c *model.Campaign) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	c.ID = m.nextID
	if c.Status == "" {
		c.Status = model.CampaignStatusPending
	}
	cp := *c
	m.rows[c.ID] = &cp
	return nil
}

func (m *memCampaigns) GetByID(id int) (*model.Campaign, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[id]
	if !ok {
		return nil, appErrors.NewCampaignNotFound(id)
	}
	cp := *row
	return &cp, nil
}

func (m *memCampaigns) ListCampaigns(offset, limit int, status string) ([]*model.Campaign, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*model.Campaign{}
	for id := 1; id <= m.nextID; id++ {
		row, ok := m.rows[id]
		if !ok {
			continue
		}
		if status != "" && row.Status != status {
			continue
		}
		cp := *row
		out = append(out, &cp)
	}
	total := len(out)
	if offset > len(out) {
		offset = len(out)
	}
	out = out[offset:]
	if limit < len(out) {
		out = out[:limit]
	}
	return out, total, nil
}

func (m *memCampaigns) UpdateStatusIf(campaignID int, status string, from ...string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[campaignID]
	if !ok {
		return false, nil
	}
	for _, f := range from {
		if row.Status == f {
			row.Status = status
			return true, nil
		}
	}
	return false, nil
}

func (m *memCampaigns) MarkExpansionDone(campaignID, totalContacts int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if row, ok := m.rows[campaignID]; ok {
		row.ExpansionDone = true
		row.TotalContacts = totalContacts
	}
	return nil
}

func (m *memCampaigns) IncrementCounter(campaignID int, counter string, delta int) error {
	switch counter {
	case "sent_count", "delivered_count", "read_count", "failed_count":
	default:
		return fmt.Errorf("unknown campaign counter: %s", counter)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.counters[campaignID] == nil {
		m.counters[campaignID] = map[string]int{}
	}
	m.counters[campaignID][counter] += delta
	return nil
}

func (m *memCampaigns) GetStats(campaignID int) (map[string]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.stats[campaignID]; ok {
		return s, nil
	}
	return map[string]int{}, nil
}

func (m *memCampaigns) setStatus(id int, status string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows[id].Status = status
}

func (m *memCampaigns) status(id int) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rows[id].Status
}

func (m *memCampaigns) counter(id int, name string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counters[id][name]
}

var _ repository.CampaignRepositoryInterface = (*memCampaigns)(nil)

// --- rotation ---

type memRotation struct {
	mu     sync.Mutex
	nextID int
	slots  []*model.CampaignAccount
}

func newMemRotation() *memRotation { return &memRotation{} }

func (m *memRotation) Create(ca *model.CampaignAccount) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	ca.ID = m.nextID
	ca.Active = true
	cp := *ca
	m.slots = append(m.slots, &cp)
	return nil
}

func (m *memRotation) ListActive(campaignID int) ([]model.CampaignAccount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []model.CampaignAccount{}
	for _, s := range m.slots {
		if s.CampaignID == campaignID && s.Active {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (m *memRotation) Deactivate(campaignID, accountID int, reason string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.slots {
		if s.CampaignID == campaignID && s.AccountID == accountID && s.Active {
			s.Active = false
			s.RemovedReason = reason
			return true, nil
		}
	}
	return false, nil
}

func (m *memRotation) IncrementFailures(campaignID, accountID int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.slots {
		if s.CampaignID == campaignID && s.AccountID == accountID {
			s.ConsecutiveFailures++
			return s.ConsecutiveFailures, nil
		}
	}
	return 0, nil
}

func (m *memRotation) ResetFailures(campaignID, accountID int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.slots {
		if s.CampaignID == campaignID && s.AccountID == accountID {
			s.ConsecutiveFailures = 0
		}
	}
	return nil
}

func (m *memRotation) slot(campaignID, accountID int) model.CampaignAccount {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.slots {
		if s.CampaignID == campaignID && s.AccountID == accountID {
			return *s
		}
	}
	return model.CampaignAccount{}
}

var _ repository.CampaignAccountRepositoryInterface = (*memRotation)(nil)

// --- accounts / templates / contacts ---

type memAccounts struct {
	mu   sync.Mutex
	rows map[int]*model.Account
}

func newMemAccounts(accounts ...model.Account) *memAccounts {
	m := &memAccounts{rows: map[int]*model.Account{}}
	for i := range accounts {
		a := accounts[i]
		m.rows[a.ID] = &a
	}
	return m
}

func (m *memAccounts) GetByID(id int) (*model.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[id]
	if !ok {
		return nil, appErrors.NewAccountNotFound(id)
	}
	cp := *row
	return &cp, nil
}

func (m *memAccounts) ListAll() ([]model.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []model.Account{}
	for id := 1; id < 1000; id++ {
		if row, ok := m.rows[id]; ok {
			out = append(out, *row)
		}
	}
	return out, nil
}

func (m *memAccounts) UpdateStatus(id int, status string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if row, ok := m.rows[id]; ok {
		row.Status = status
	}
	return nil
}

var _ repository.AccountRepositoryInterface = (*memAccounts)(nil)

type memTemplates struct {
	mu     sync.Mutex
	nextID int
	rows   map[int]*model.Template
}

func newMemTemplates(templates ...model.Template) *memTemplates {
	m := &memTemplates{rows: map[int]*model.Template{}}
	for i := range templates {
		t := templates[i]
		m.rows[t.ID] = &t
		if t.ID > m.nextID {
			m.nextID = t.ID
		}
	}
	return m
}

func (m *memTemplates) GetByID(id int) (*model.Template, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[id]
	if !ok {
		return nil, nil
	}
	cp := *row
	return &cp, nil
}

func (m *memTemplates) ListByAccount(accountID int) ([]model.Template, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []model.Template{}
	for id := 1; id <= m.nextID; id++ {
		if row, ok := m.rows[id]; ok && row.AccountID == accountID {
			out = append(out, *row)
		}
	}
	return out, nil
}

func (m *memTemplates) Create(t *model.Template) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	t.ID = m.nextID
	cp := *t
	m.rows[t.ID] = &cp
	return nil
}

func (m *memTemplates) UpdateProviderStatus(id int, providerID, providerStatus string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if row, ok := m.rows[id]; ok {
		row.ProviderID = providerID
		row.ProviderStatus = providerStatus
	}
	return nil
}

var _ repository.TemplateRepositoryInterface = (*memTemplates)(nil)

type memContacts struct {
	rows []model.Contact
}

func (m *memContacts) GetByID(id int) (*model.Contact, error) {
	for _, c := range m.rows {
		if c.ID == id {
			cp := c
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memContacts) ListByIDs(ids []int) ([]model.Contact, error) {
	out := []model.Contact{}
	for _, id := range ids {
		if c, err := m.GetByID(id); err == nil && c != nil {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (m *memContacts) ListAll() ([]model.Contact, error) {
	return append([]model.Contact{}, m.rows...), nil
}

var _ repository.ContactRepositoryInterface = (*memContacts)(nil)

// --- gateway ---

type sendCall struct {
	AccountID    int
	Recipient    string
	TemplateName string
	Language     string
}

type fakeGateway struct {
	mu        sync.Mutex
	sendErrs  []error // consumed one per send; nil entry means success
	sendCalls []sendCall
	nextMsg   int

	health      map[int]*model.AccountHealthSnapshot
	healthErr   error
	healthCalls int
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{health: map[int]*model.AccountHealthSnapshot{}}
}

func (g *fakeGateway) SendTemplateMessage(ctx context.Context, acct *model.Account, recipient, templateName, language string, variables map[string]string, mediaURL string) (*gateway.SendResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.sendCalls = append(g.sendCalls, sendCall{
		AccountID: acct.ID, Recipient: recipient, TemplateName: templateName, Language: language,
	})
	if len(g.sendErrs) > 0 {
		err := g.sendErrs[0]
		g.sendErrs = g.sendErrs[1:]
		if err != nil {
			return nil, err
		}
	}
	g.nextMsg++
	return &gateway.SendResult{MessageID: fmt.Sprintf("wamid.%d", g.nextMsg)}, nil
}

func (g *fakeGateway) CreateTemplate(ctx context.Context, acct *model.Account, payload gateway.TemplatePayload) (*gateway.TemplateResult, error) {
	return &gateway.TemplateResult{ProviderID: "prov-1", Status: "PENDING"}, nil
}

func (g *fakeGateway) DeleteTemplate(ctx context.Context, acct *model.Account, name string) error {
	return nil
}

func (g *fakeGateway) UpdateProfile(ctx context.Context, acct *model.Account, fields map[string]string) error {
	return nil
}

func (g *fakeGateway) FetchAccountHealth(ctx context.Context, acct *model.Account) (*model.AccountHealthSnapshot, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.healthCalls++
	if g.healthErr != nil {
		return nil, g.healthErr
	}
	if snap, ok := g.health[acct.ID]; ok {
		cp := *snap
		return &cp, nil
	}
	return &model.AccountHealthSnapshot{
		AccountID:    acct.ID,
		Status:       model.AccountStatusConnected,
		Quality:      model.QualityGreen,
		Verification: model.VerificationVerified,
	}, nil
}

func (g *fakeGateway) sends() []sendCall {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]sendCall{}, g.sendCalls...)
}

var _ gateway.Client = (*fakeGateway)(nil)

// --- job queue ---

type captureQueue struct {
	mu         sync.Mutex
	jobs       []model.CampaignJob
	opts       []queue.EnqueueOptions
	enqueueErr error
}

func (q *captureQueue) Enqueue(ctx context.Context, job model.CampaignJob, opts queue.EnqueueOptions) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.enqueueErr != nil {
		return q.enqueueErr
	}
	q.jobs = append(q.jobs, job)
	q.opts = append(q.opts, opts)
	return nil
}

func (q *captureQueue) Consume(ctx context.Context, handler queue.Handler) error {
	return nil
}

func (q *captureQueue) captured() []model.CampaignJob {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]model.CampaignJob{}, q.jobs...)
}

func (q *captureQueue) capturedOpts() []queue.EnqueueOptions {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]queue.EnqueueOptions{}, q.opts...)
}

var _ queue.JobQueue = (*captureQueue)(nil)
