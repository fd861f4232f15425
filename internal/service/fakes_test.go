package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/yourhelpa/helpa-server-go/internal/lock"
	"github.com/yourhelpa/helpa-server-go/internal/model"
	"github.com/yourhelpa/helpa-server-go/internal/repository"
)

var testNow = time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)

type fakeUsers struct {
	mu    sync.Mutex
	users map[string]*model.User
	seq   int
}

func newFakeUsers() *fakeUsers {
	return &fakeUsers{users: make(map[string]*model.User)}
}

func (f *fakeUsers) add(phone, name string, email *string) *model.User {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	u := &model.User{ID: fmt.Sprintf("user-%d", f.seq), Phone: phone, FullName: name, Email: email}
	f.users[u.ID] = u
	return u
}

func (f *fakeUsers) FindByID(ctx context.Context, id string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.users[id], nil
}

func (f *fakeUsers) FindByPhone(ctx context.Context, phone string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Phone == phone {
			return u, nil
		}
	}
	return nil, nil
}

func (f *fakeUsers) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Email != nil && strings.EqualFold(*u.Email, email) {
			return u, nil
		}
	}
	return nil, nil
}

func (f *fakeUsers) Create(ctx context.Context, params model.CreateUserParams) (*model.User, error) {
	if u, _ := f.FindByPhone(ctx, params.Phone); u != nil {
		return u, nil
	}
	return f.add(params.Phone, params.FullName, nil), nil
}

func (f *fakeUsers) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.users)
}

type fakeSessions struct {
	mu       sync.Mutex
	sessions map[string]model.Session
	saves    int
	now      func() time.Time
}

func newFakeSessions() *fakeSessions {
	return &fakeSessions{sessions: make(map[string]model.Session), now: func() time.Time { return testNow }}
}

func cloneSession(s model.Session) *model.Session {
	b, err := json.Marshal(s)
	if err != nil {
		panic(err)
	}
	var out model.Session
	if err := json.Unmarshal(b, &out); err != nil {
		panic(err)
	}
	return &out
}

func (f *fakeSessions) Get(ctx context.Context, userID string) (*model.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[userID]
	if !ok {
		return model.NewSession(), nil
	}
	return cloneSession(s), nil
}

func (f *fakeSessions) Save(ctx context.Context, userID string, session *model.Session) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	now := f.now()
	session.LastInteractionAt = &now
	session.Normalize()
	f.sessions[userID] = *cloneSession(*session)
	f.saves++
	return nil
}

func (f *fakeSessions) WithTx(tx *sqlx.Tx) repository.SessionRepository {
	return f
}

func (f *fakeSessions) put(userID string, s *model.Session) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sessions[userID] = *cloneSession(*s)
}

func (f *fakeSessions) get(userID string) *model.Session {
	s, _ := f.Get(context.Background(), userID)
	return s
}

type fakeCatalog struct {
	categories []string
	services   map[string][]model.ServiceOffering
}

func (f *fakeCatalog) ListCategories(ctx context.Context, limit int) ([]string, error) {
	if len(f.categories) > limit {
		return f.categories[:limit], nil
	}
	return f.categories, nil
}

func (f *fakeCatalog) ListServicesByCategory(ctx context.Context, category string, limit int) ([]model.ServiceOffering, error) {
	return f.services[category], nil
}

func (f *fakeCatalog) FindServiceByID(ctx context.Context, id string) (*model.ServiceOffering, error) {
	for _, list := range f.services {
		for _, s := range list {
			if s.ID == id {
				svc := s
				return &svc, nil
			}
		}
	}
	return nil, nil
}

type fakeProviders struct {
	providers []model.Provider
	searches  []string
}

func (f *fakeProviders) FindByID(ctx context.Context, id string) (*model.Provider, error) {
	for _, p := range f.providers {
		if p.ID == id {
			provider := p
			return &provider, nil
		}
	}
	return nil, nil
}

func (f *fakeProviders) Search(ctx context.Context, service, state string, limit int) ([]model.Provider, error) {
	f.searches = append(f.searches, service+"@"+state)
	var out []model.Provider
	for _, p := range f.providers {
		if !strings.EqualFold(p.State, state) {
			continue
		}
		for _, s := range p.Services {
			if strings.Contains(strings.ToLower(s), strings.ToLower(service)) {
				out = append(out, p)
				break
			}
		}
	}
	return out, nil
}

type fakeTransactions struct {
	mu   sync.Mutex
	rows map[string]*model.Transaction
}

func newFakeTransactions() *fakeTransactions {
	return &fakeTransactions{rows: make(map[string]*model.Transaction)}
}

func (f *fakeTransactions) CreateIfAbsent(ctx context.Context, params model.CreateTransactionParams) (*model.Transaction, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, exists := f.rows[params.PaymentReference]; exists {
		return nil, false, nil
	}
	tx := &model.Transaction{
		ID:               fmt.Sprintf("tx-%d", len(f.rows)+1),
		UserID:           params.UserID,
		ProviderID:       params.ProviderID,
		Amount:           params.Amount,
		Status:           params.Status,
		PaymentReference: params.PaymentReference,
		ServiceDetails:   params.ServiceDetails,
		CreatedAt:        testNow,
		UpdatedAt:        testNow,
	}
	f.rows[params.PaymentReference] = tx
	copied := *tx
	return &copied, true, nil
}

func (f *fakeTransactions) FindByReference(ctx context.Context, reference string) (*model.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	tx, ok := f.rows[reference]
	if !ok {
		return nil, nil
	}
	copied := *tx
	return &copied, nil
}

func (f *fakeTransactions) ListRecentByUser(ctx context.Context, userID string, limit int) ([]model.TransactionSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.TransactionSummary
	for _, tx := range f.rows {
		if tx.UserID == userID && len(out) < limit {
			out = append(out, model.TransactionSummary{Transaction: *tx})
		}
	}
	return out, nil
}

func (f *fakeTransactions) UpdateStatus(ctx context.Context, userID, reference string, from, to model.TransactionStatus) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	tx, ok := f.rows[reference]
	if !ok || tx.UserID != userID || tx.Status != from || !from.CanTransition(to) {
		return false, nil
	}
	tx.Status = to
	return true, nil
}

func (f *fakeTransactions) WithTx(tx *sqlx.Tx) repository.TransactionRepository {
	return f
}

func (f *fakeTransactions) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.rows)
}

func (f *fakeTransactions) status(reference string) model.TransactionStatus {
	tx, _ := f.FindByReference(context.Background(), reference)
	if tx == nil {
		return ""
	}
	return tx.Status
}

type fakeEvents struct {
	mu     sync.Mutex
	events []model.CreatePaymentEventParams
}

func (f *fakeEvents) Record(ctx context.Context, params model.CreatePaymentEventParams) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, params)
	return nil
}

func (f *fakeEvents) DeleteOlderThan(ctx context.Context, before time.Time) (int64, error) {
	return 0, nil
}

type fakeLedger struct {
	transactions *fakeTransactions
	sessions     *fakeSessions
	err          error
}

func (f *fakeLedger) Settle(ctx context.Context, params model.CreateTransactionParams, session *model.Session) (*model.Transaction, bool, error) {
	if f.err != nil {
		return nil, false, f.err
	}
	tx, inserted, err := f.transactions.CreateIfAbsent(ctx, params)
	if err != nil {
		return nil, false, err
	}
	if err := f.sessions.Save(ctx, params.UserID, session); err != nil {
		return nil, false, err
	}
	return tx, inserted, nil
}

type fakeAssistant struct {
	mu       sync.Mutex
	reply    *model.AssistantReply
	err      error
	delay    time.Duration
	requests []model.AssistantRequest
}

func (f *fakeAssistant) Reply(ctx context.Context, req model.AssistantRequest) (*model.AssistantReply, error) {
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if f.err != nil {
		return nil, f.err
	}
	if f.reply == nil {
		return &model.AssistantReply{Text: "Happy to help."}, nil
	}
	reply := *f.reply
	return &reply, nil
}

func (f *fakeAssistant) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

type fakePayments struct {
	reference string
	err       error
	requests  []model.PaymentLinkRequest
}

func (f *fakePayments) CreatePaymentLink(ctx context.Context, req model.PaymentLinkRequest) (*model.PaymentLink, error) {
	f.requests = append(f.requests, req)
	if f.err != nil {
		return nil, f.err
	}
	ref := f.reference
	if ref == "" {
		ref = "HLP-test"
	}
	return &model.PaymentLink{URL: "https://pay.test/" + ref, Reference: ref}, nil
}

type sentCode struct {
	phone string
	code  string
	kind  model.ConfirmationType
}

type fakeCodes struct {
	err  error
	sent []sentCode
}

func (f *fakeCodes) SendCode(ctx context.Context, phone, code string, kind model.ConfirmationType) error {
	f.sent = append(f.sent, sentCode{phone: phone, code: code, kind: kind})
	return f.err
}

type sentMessage struct {
	to      string
	text    string
	buttons []model.Button
	list    *model.ListMessage
}

func (m sentMessage) buttonIDs() []string {
	ids := make([]string, 0, len(m.buttons))
	for _, b := range m.buttons {
		ids = append(ids, b.ID)
	}
	return ids
}

type recordingMessenger struct {
	mu      sync.Mutex
	sent    []sentMessage
	err     error
	offline bool
}

func (r *recordingMessenger) Live() bool { return !r.offline }

func (r *recordingMessenger) SendText(ctx context.Context, to, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, sentMessage{to: to, text: text})
	return r.err
}

func (r *recordingMessenger) SendButtons(ctx context.Context, to, text string, buttons []model.Button) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, sentMessage{to: to, text: text, buttons: buttons})
	return r.err
}

func (r *recordingMessenger) SendList(ctx context.Context, to string, list model.ListMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, sentMessage{to: to, text: list.Body, list: &list})
	return r.err
}

func (r *recordingMessenger) messages() []sentMessage {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]sentMessage(nil), r.sent...)
}

func (r *recordingMessenger) last() sentMessage {
	msgs := r.messages()
	if len(msgs) == 0 {
		return sentMessage{}
	}
	return msgs[len(msgs)-1]
}

func (r *recordingMessenger) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = nil
}

const testEmailDomain = "chatapp.com"

// harness wires both services over shared fakes.
type harness struct {
	users        *fakeUsers
	sessions     *fakeSessions
	catalog      *fakeCatalog
	providers    *fakeProviders
	transactions *fakeTransactions
	events       *fakeEvents
	ledger       *fakeLedger
	assistant    *fakeAssistant
	payments     *fakePayments
	codes        *fakeCodes
	messenger    *recordingMessenger
	dialogue     *DialogueService
	reconcile    *ReconcileService
}

func newHarness() *harness {
	h := &harness{
		users:        newFakeUsers(),
		sessions:     newFakeSessions(),
		catalog:      &fakeCatalog{services: map[string][]model.ServiceOffering{}},
		providers:    &fakeProviders{},
		transactions: newFakeTransactions(),
		events:       &fakeEvents{},
		assistant:    &fakeAssistant{},
		payments:     &fakePayments{},
		codes:        &fakeCodes{},
		messenger:    &recordingMessenger{},
	}
	h.ledger = &fakeLedger{transactions: h.transactions, sessions: h.sessions}

	sessions := NewSessionService(h.sessions, lock.NewLocalLocker(2*time.Second))
	h.dialogue = NewDialogueService(
		h.users, sessions, h.catalog, h.providers, h.transactions,
		h.assistant, h.payments, h.codes, h.messenger,
		DialogueConfig{PayerEmailDomain: testEmailDomain},
	)
	h.dialogue.now = func() time.Time { return testNow }
	h.reconcile = NewReconcileService(
		h.users, h.transactions, h.events, h.ledger, sessions, h.messenger, testEmailDomain,
	)
	return h
}

func textEvent(from, text string) InboundEvent {
	return InboundEvent{Kind: EventFreeText, From: from, Text: text}
}

func replyEvent(from, id string) InboundEvent {
	return InboundEvent{Kind: EventInteractiveReply, From: from, ReplyID: id}
}

func strPtr(s string) *string {
	return &s
}
