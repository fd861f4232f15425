package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/yourhelpa/helpa-server-go/internal/audit"
	"github.com/yourhelpa/helpa-server-go/internal/config"
	apperrors "github.com/yourhelpa/helpa-server-go/internal/errors"
	"github.com/yourhelpa/helpa-server-go/internal/model"
	"github.com/yourhelpa/helpa-server-go/internal/repository"
	"github.com/yourhelpa/helpa-server-go/internal/util"
)

const (
	providerSearchLimit = 20
	providerCardLimit   = 5
	transactionsShown   = 5
)

type DialogueConfig struct {
	PayerEmailDomain string
	SegmentGap       time.Duration
}

// DialogueService runs the conversation state machine for inbound chat
// messages.
type DialogueService struct {
	users        repository.UserRepository
	sessions     *SessionService
	catalog      repository.CatalogRepository
	providers    repository.ProviderRepository
	transactions repository.TransactionRepository
	assistant    Assistant
	payments     PaymentGateway
	codes        CodeSender
	messenger    Messenger
	cfg          DialogueConfig
	now          func() time.Time
}

func NewDialogueService(
	users repository.UserRepository,
	sessions *SessionService,
	catalog repository.CatalogRepository,
	providers repository.ProviderRepository,
	transactions repository.TransactionRepository,
	assistant Assistant,
	payments PaymentGateway,
	codes CodeSender,
	messenger Messenger,
	cfg DialogueConfig,
) *DialogueService {
	if cfg.SegmentGap <= 0 {
		cfg.SegmentGap = config.SegmentGap
	}
	return &DialogueService{
		users:        users,
		sessions:     sessions,
		catalog:      catalog,
		providers:    providers,
		transactions: transactions,
		assistant:    assistant,
		payments:     payments,
		codes:        codes,
		messenger:    messenger,
		cfg:          cfg,
		now:          time.Now,
	}
}

type pendingCode struct {
	code string
	kind model.ConfirmationType
}

// turn collects what one inbound message decided. Messages are only sent
// once the session has been saved.
type turn struct {
	user    *model.User
	newUser bool
	event   InboundEvent
	now     time.Time
	out     []Outbound
	code    *pendingCode
}

func (t *turn) say(msgs ...Outbound) {
	t.out = append(t.out, msgs...)
}

func (t *turn) name() string {
	if name := t.user.DisplayName(); name != "" {
		return name
	}
	return t.event.ProfileName
}

// HandleInbound processes one classified message. No-op events are ignored.
// An error means nothing was saved and nothing was sent.
func (d *DialogueService) HandleInbound(ctx context.Context, event InboundEvent) error {
	if event.Kind == EventNoOp {
		return nil
	}

	user, created, err := d.resolveUser(ctx, event.From)
	if err != nil {
		return err
	}

	t := &turn{user: user, newUser: created, event: event, now: d.now()}
	err = d.sessions.Update(ctx, user.ID, func(s *model.Session) error {
		return d.route(ctx, t, s)
	})
	if err != nil {
		return err
	}

	d.deliver(ctx, t)
	return nil
}

func (d *DialogueService) resolveUser(ctx context.Context, from string) (*model.User, bool, error) {
	phone := util.NormalizePhone(from)
	if phone == "" {
		return nil, false, apperrors.MissingRequired("sender")
	}

	user, err := d.users.FindByPhone(ctx, phone)
	if err != nil {
		return nil, false, fmt.Errorf("find user: %w", err)
	}
	if user != nil {
		return user, false, nil
	}

	user, err = d.users.Create(ctx, model.CreateUserParams{Phone: phone, FullName: model.PlaceholderName})
	if err != nil {
		return nil, false, fmt.Errorf("create user: %w", err)
	}
	log.Info().Str("user_id", user.ID).Msg("bootstrapped new user")
	return user, true, nil
}

func (d *DialogueService) deliver(ctx context.Context, t *turn) {
	if t.code != nil {
		if err := d.codes.SendCode(ctx, t.user.Phone, t.code.code, t.code.kind); err != nil {
			log.Error().Err(err).Str("user_id", t.user.ID).Msg("failed to deliver confirmation code")
			d.abandonCode(ctx, t.user.ID, t.code.code)
			t.out = []Outbound{buttonsOut(msgCodeDeliveryFailed,
				model.Button{ID: transactionsID, Title: "My transactions"},
				model.Button{ID: mainMenuButtonID, Title: "Main menu"},
			)}
		}
	}
	dispatch(ctx, d.messenger, t.user.Phone, t.out)
}

// abandonCode returns the session to the menu when the code it is waiting
// for never reached the user. A newer code issued meanwhile is left alone.
func (d *DialogueService) abandonCode(ctx context.Context, userID, code string) {
	err := d.sessions.Update(ctx, userID, func(s *model.Session) error {
		if s.Stage == model.StageAwaitingConfirmationCode && s.Confirmation != nil && s.Confirmation.Code == code {
			s.ResetTo(model.StageMenu)
		}
		return nil
	})
	if err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("failed to reset session after code delivery failure")
	}
}

func (d *DialogueService) route(ctx context.Context, t *turn, s *model.Session) error {
	fresh := s.IsNewSegment(t.now, d.cfg.SegmentGap)

	if t.newUser {
		text := t.event.Text
		if text == "" {
			text = t.event.ReplyTitle
		}
		return d.converse(ctx, t, s, text, true)
	}

	if t.event.Kind == EventInteractiveReply {
		return d.handleAction(ctx, t, s, ParseAction(t.event.ReplyID))
	}
	return d.handleText(ctx, t, s, fresh)
}

func (d *DialogueService) handleText(ctx context.Context, t *turn, s *model.Session, fresh bool) error {
	text := strings.TrimSpace(t.event.Text)

	switch s.Stage {
	case model.StageAwaitingConfirmationCode:
		return d.verifyCode(ctx, t, s, text)

	case model.StageAwaitingCategory:
		if text == "" {
			break
		}
		s.AwaitService(model.SearchFlow{ServiceQuery: text})
		t.say(listOut(locationList(text)))
		return nil

	case model.StageAwaitingService:
		if text == "" {
			break
		}
		search := model.SearchFlow{}
		if current, ok := s.SearchState(); ok {
			search = *current
		}
		if search.ServiceQuery == "" {
			search.ServiceQuery = text
			s.AwaitService(search)
			t.say(listOut(locationList(text)))
			return nil
		}
		return d.searchProviders(ctx, t, s, search, text)
	}

	return d.converse(ctx, t, s, text, fresh)
}

func (d *DialogueService) handleAction(ctx context.Context, t *turn, s *model.Session, action Action) error {
	if s.Stage == model.StageAwaitingPayment && action.Kind.ChangesStage() {
		d.remindPayment(t, s)
		return nil
	}

	switch action.Kind {
	case ActionFindService:
		return d.startSearch(ctx, t, s)

	case ActionManualService:
		if _, ok := s.SearchState(); !ok {
			s.AwaitCategory()
		}
		t.say(textOut(msgManualServicePrompt))
		return nil

	case ActionCategory:
		return d.chooseCategory(ctx, t, s, action.Arg)

	case ActionService:
		return d.chooseService(ctx, t, s, action.Arg)

	case ActionState:
		search, ok := s.SearchState()
		if !ok || search.ServiceQuery == "" {
			t.say(buttonsOut(msgServiceFirst, model.Button{ID: findServiceButtonID, Title: "Find a service"}))
			return nil
		}
		return d.searchProviders(ctx, t, s, *search, action.Arg)

	case ActionSelectProvider:
		return d.selectProvider(ctx, t, s, action.Arg)

	case ActionViewProvider:
		provider, err := d.providers.FindByID(ctx, action.Arg)
		if err != nil {
			return fmt.Errorf("find provider: %w", err)
		}
		if provider == nil {
			d.unknownOption(t, s)
			return nil
		}
		t.say(providerDetails(*provider))
		return nil

	case ActionTransactions:
		return d.listTransactions(ctx, t)

	case ActionConfirmTransaction:
		return d.startConfirmation(ctx, t, s, model.ConfirmationConfirm, action.Arg)

	case ActionAppealTransaction:
		return d.startConfirmation(ctx, t, s, model.ConfirmationAppeal, action.Arg)

	case ActionBuyItem:
		s.ResetTo(model.StageConversation)
		t.say(textOut(msgBuyItemPrompt))
		return nil

	case ActionAskQuestion:
		s.ResetTo(model.StageConversation)
		t.say(textOut(msgAskQuestionPrompt))
		return nil

	case ActionMainMenu:
		s.ResetTo(model.StageMenu)
		t.say(buttonsOut(msgMenuPrompt, model.MainActions()...))
		return nil

	default:
		log.Debug().Str("reply_id", t.event.ReplyID).Msg("unmatched interactive reply")
		d.unknownOption(t, s)
		return nil
	}
}

func (d *DialogueService) unknownOption(t *turn, s *model.Session) {
	if s.Stage == model.StageAwaitingPayment {
		d.remindPayment(t, s)
		return
	}
	t.say(buttonsOut(msgUnknownOption, model.MainActions()...))
}

func (d *DialogueService) remindPayment(t *turn, s *model.Session) {
	payment, ok := s.PendingPayment()
	if !ok {
		t.say(buttonsOut(msgMenuPrompt, model.MainActions()...))
		return
	}
	t.say(textOut(paymentReminder(payment)))
}

func (d *DialogueService) startSearch(ctx context.Context, t *turn, s *model.Session) error {
	categories, err := d.catalog.ListCategories(ctx, model.MaxListRows-1)
	if err != nil {
		return fmt.Errorf("list categories: %w", err)
	}

	s.AwaitCategory()
	if len(categories) == 0 {
		t.say(textOut(msgManualServicePrompt))
		return nil
	}

	rows := make([]model.ListRow, 0, len(categories)+1)
	for _, c := range categories {
		rows = append(rows, model.ListRow{ID: actionID(ActionCategory, c), Title: c})
	}
	rows = append(rows, model.ListRow{ID: manualServiceID, Title: "Something else", Description: "Type the service you need"})

	t.say(listOut(model.ListMessage{
		Header:      "Find a service",
		Body:        "What kind of service do you need?",
		ButtonLabel: "Categories",
		Sections:    []model.ListSection{{Title: "Categories", Rows: rows}},
	}))
	return nil
}

func (d *DialogueService) chooseCategory(ctx context.Context, t *turn, s *model.Session, category string) error {
	services, err := d.catalog.ListServicesByCategory(ctx, category, model.MaxListRows)
	if err != nil {
		return fmt.Errorf("list services: %w", err)
	}

	s.AwaitService(model.SearchFlow{Category: category})
	if len(services) == 0 {
		t.say(textOut(fmt.Sprintf("Please type the %s service you need.", category)))
		return nil
	}

	rows := make([]model.ListRow, 0, len(services))
	for _, svc := range services {
		rows = append(rows, model.ListRow{
			ID:          actionID(ActionService, svc.ID),
			Title:       svc.Name,
			Description: svc.Description,
		})
	}
	t.say(listOut(model.ListMessage{
		Header:      category,
		Body:        "Pick a service or type what you need.",
		ButtonLabel: "Services",
		Sections:    []model.ListSection{{Title: category, Rows: rows}},
	}))
	return nil
}

func (d *DialogueService) chooseService(ctx context.Context, t *turn, s *model.Session, serviceID string) error {
	svc, err := d.catalog.FindServiceByID(ctx, serviceID)
	if err != nil {
		return fmt.Errorf("find service: %w", err)
	}
	if svc == nil {
		d.unknownOption(t, s)
		return nil
	}

	s.AwaitService(model.SearchFlow{Category: svc.Category, ServiceQuery: svc.Name})
	t.say(listOut(locationList(svc.Name)))
	return nil
}

func (d *DialogueService) searchProviders(ctx context.Context, t *turn, s *model.Session, search model.SearchFlow, location string) error {
	providers, err := d.providers.Search(ctx, search.ServiceQuery, location, providerSearchLimit)
	if err != nil {
		return fmt.Errorf("search providers: %w", err)
	}

	search.Location = location
	s.AwaitService(search)

	if len(providers) == 0 {
		t.say(buttonsOut(
			fmt.Sprintf("Sorry, we couldn't find any *%s* providers in %s yet. Try another state or service.", search.ServiceQuery, location),
			model.Button{ID: findServiceButtonID, Title: "Find a service"},
			model.Button{ID: mainMenuButtonID, Title: "Main menu"},
		))
		return nil
	}

	shown := providers
	if len(shown) > providerCardLimit {
		shown = shown[:providerCardLimit]
	}
	t.say(textOut(fmt.Sprintf("Here are %d *%s* providers in %s:", len(shown), search.ServiceQuery, location)))
	for _, p := range shown {
		t.say(providerCard(p))
	}
	return nil
}

func (d *DialogueService) selectProvider(ctx context.Context, t *turn, s *model.Session, providerID string) error {
	provider, err := d.providers.FindByID(ctx, providerID)
	if err != nil {
		return fmt.Errorf("find provider: %w", err)
	}
	if provider == nil {
		d.unknownOption(t, s)
		return nil
	}

	query := ""
	if search, ok := s.SearchState(); ok {
		query = search.ServiceQuery
	}
	serviceName := provider.ServiceLabel(query)

	price, ok := provider.ParsedPrice()
	if !ok {
		log.Info().Str("provider_id", provider.ID).Msg("provider has no payable price, skipping payment")
		s.ResetTo(model.StageMenu)
		t.say(textOut(fmt.Sprintf("*%s* has been notified. They will contact you shortly to discuss pricing.", provider.BusinessName)))
		return nil
	}

	customer := t.name()
	if customer == "" {
		customer = t.user.Phone
	}
	link, err := d.payments.CreatePaymentLink(ctx, model.PaymentLinkRequest{
		Amount:        price,
		CustomerName:  customer,
		CustomerEmail: d.payerEmail(t.user),
		CustomerPhone: t.user.Phone,
		Description:   fmt.Sprintf("Payment for %s by %s", serviceName, provider.BusinessName),
	})
	if err != nil {
		log.Error().Err(apperrors.External("payment gateway", err)).Str("user_id", t.user.ID).Msg("failed to create payment link")
		t.say(textOut(msgPaymentUnavailable))
		return nil
	}

	flow := model.PaymentFlow{
		ProviderID:       provider.ID,
		ProviderName:     provider.BusinessName,
		ServiceName:      serviceName,
		Price:            price,
		PaymentReference: link.Reference,
		PaymentURL:       link.URL,
	}
	s.AwaitPayment(flow)
	t.say(textOut(paymentLinkText(flow)))
	return nil
}

// payerEmail is the address the gateway reports back, used to find the
// payer during reconciliation.
func (d *DialogueService) payerEmail(u *model.User) string {
	if u.Email != nil && *u.Email != "" {
		return *u.Email
	}
	return SyntheticEmail(u.Phone, d.cfg.PayerEmailDomain)
}

// SyntheticEmail builds the placeholder payer address for users without an
// email on file.
func SyntheticEmail(phone, domain string) string {
	return phone + "@" + domain
}

func (d *DialogueService) listTransactions(ctx context.Context, t *turn) error {
	txns, err := d.transactions.ListRecentByUser(ctx, t.user.ID, transactionsShown)
	if err != nil {
		return fmt.Errorf("list transactions: %w", err)
	}
	if len(txns) == 0 {
		t.say(buttonsOut(msgNoTransactions, model.Button{ID: findServiceButtonID, Title: "Find a service"}))
		return nil
	}

	var b strings.Builder
	b.WriteString("Your recent transactions:\n")
	for i, tx := range txns {
		provider := tx.ServiceDetails.ServiceName
		if tx.ProviderName != nil {
			provider = *tx.ProviderName
		}
		fmt.Fprintf(&b, "\n%d. *%s* %s, %s (%s)", i+1, provider, formatNaira(tx.Amount), tx.Status, tx.CreatedAt.Format("02 Jan 2006"))
	}
	t.say(textOut(b.String()))

	for _, tx := range txns {
		if tx.Status != model.TransactionPaid {
			continue
		}
		t.say(buttonsOut(
			fmt.Sprintf("%s for %s is awaiting your confirmation.", tx.PaymentReference, formatNaira(tx.Amount)),
			model.Button{ID: actionID(ActionConfirmTransaction, tx.PaymentReference), Title: "Confirm"},
			model.Button{ID: actionID(ActionAppealTransaction, tx.PaymentReference), Title: "Appeal"},
		))
	}
	return nil
}

func (d *DialogueService) startConfirmation(ctx context.Context, t *turn, s *model.Session, kind model.ConfirmationType, ref string) error {
	tx, err := d.transactions.FindByReference(ctx, ref)
	if err != nil {
		return fmt.Errorf("find transaction: %w", err)
	}
	if tx == nil || tx.UserID != t.user.ID || tx.Status != model.TransactionPaid {
		t.say(textOut(msgTransactionLocked))
		return nil
	}

	code, err := util.GenerateNumericCode(config.ConfirmationCodeLength)
	if err != nil {
		return fmt.Errorf("generate code: %w", err)
	}

	s.AwaitConfirmation(model.ConfirmationFlow{Code: code, Type: kind, TransactionRef: ref})
	t.code = &pendingCode{code: code, kind: kind}
	t.say(textOut(codeSentText(kind)))

	audit.Log(ctx, audit.Event{
		Type:    audit.EventCodeIssued,
		UserID:  t.user.ID,
		Details: map[string]interface{}{"payment_reference": ref, "kind": string(kind)},
	})
	return nil
}

func (d *DialogueService) verifyCode(ctx context.Context, t *turn, s *model.Session, text string) error {
	pending, ok := s.PendingConfirmation()
	if !ok {
		s.ResetTo(model.StageMenu)
		t.say(buttonsOut(msgMenuPrompt, model.MainActions()...))
		return nil
	}

	entered := strings.ReplaceAll(text, " ", "")
	if !util.ConstantTimeEqual(entered, pending.Code) {
		audit.Log(ctx, audit.Event{
			Type:    audit.EventCodeRejected,
			UserID:  t.user.ID,
			Details: map[string]interface{}{"payment_reference": pending.TransactionRef},
		})
		t.say(textOut(msgInvalidCode))
		return nil
	}

	target := pending.Type.TargetStatus()
	updated, err := d.transactions.UpdateStatus(ctx, t.user.ID, pending.TransactionRef, model.TransactionPaid, target)
	if err != nil {
		return fmt.Errorf("update transaction status: %w", err)
	}

	kind := pending.Type
	ref := pending.TransactionRef
	s.ResetTo(model.StageMenu)

	if !updated {
		t.say(buttonsOut(msgTransactionLocked, model.MainActions()...))
		return nil
	}

	audit.Log(ctx, audit.Event{
		Type:   audit.EventTransactionStatusSet,
		UserID: t.user.ID,
		Details: map[string]interface{}{
			"payment_reference": ref,
			"status":            string(target),
		},
	})
	t.say(buttonsOut(codeAcceptedText(kind), model.MainActions()...))
	return nil
}

// converse hands open conversation to the assistant. Assistant failures are
// answered with a fallback and never fail the turn.
func (d *DialogueService) converse(ctx context.Context, t *turn, s *model.Session, text string, fresh bool) error {
	if fresh {
		s.History = nil
	}
	if text != "" {
		s.AppendTurn(model.RoleUser, text)
	}

	history := append([]model.Turn(nil), s.History...)
	reply, err := d.assistant.Reply(ctx, model.AssistantRequest{
		UserName:     t.name(),
		Stage:        s.Stage,
		History:      history,
		FreshSegment: fresh,
	})
	if err != nil || reply == nil || strings.TrimSpace(reply.Text) == "" {
		if err != nil {
			log.Warn().Err(apperrors.External("assistant", err)).Str("user_id", t.user.ID).Msg("assistant unavailable, using fallback")
		}
		d.fallback(t, s)
		return nil
	}

	s.AppendTurn(model.RoleAssistant, reply.Text)

	offer := (reply.OfferMainActions || t.newUser) && s.Stage != model.StageAwaitingPayment
	if !offer {
		t.say(textOut(reply.Text))
		return nil
	}
	if s.Stage == model.StageConversation {
		s.ResetTo(model.StageMenu)
	}
	t.say(buttonsOut(reply.Text, model.MainActions()...))
	return nil
}

func (d *DialogueService) fallback(t *turn, s *model.Session) {
	if s.Stage == model.StageAwaitingPayment {
		d.remindPayment(t, s)
		return
	}
	t.say(buttonsOut(greeting(t.name()), model.MainActions()...))
}
