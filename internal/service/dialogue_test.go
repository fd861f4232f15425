package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourhelpa/helpa-server-go/internal/model"
)

const phone = "2348012345678"

var mainActionIDs = []string{"find_service", "buy_item", "ask_question"}

func recent() *time.Time {
	t := testNow.Add(-time.Minute)
	return &t
}

func TestDialogue_NewUser(t *testing.T) {
	t.Run("bootstraps user and offers main actions on fallback", func(t *testing.T) {
		h := newHarness()
		h.assistant.err = errors.New("assistant not configured")

		require.NoError(t, h.dialogue.HandleInbound(context.Background(), textEvent(phone, "hi")))

		user, _ := h.users.FindByPhone(context.Background(), phone)
		require.NotNil(t, user)
		assert.Equal(t, model.PlaceholderName, user.FullName)

		session := h.sessions.get(user.ID)
		assert.Equal(t, model.StageStart, session.Stage)
		assert.Equal(t, []model.Turn{{Role: model.RoleUser, Content: "hi"}}, session.History)

		msgs := h.messenger.messages()
		require.Len(t, msgs, 1)
		assert.Equal(t, phone, msgs[0].to)
		assert.Equal(t, "Hi there! I'm here to help. What can I do for you today?", msgs[0].text)
		assert.Equal(t, mainActionIDs, msgs[0].buttonIDs())
	})

	t.Run("greets by profile name", func(t *testing.T) {
		h := newHarness()
		h.assistant.err = errors.New("down")

		event := textEvent(phone, "hello")
		event.ProfileName = "Ada"
		require.NoError(t, h.dialogue.HandleInbound(context.Background(), event))

		assert.Equal(t, "Hi Ada! I'm here to help. What can I do for you today?", h.messenger.last().text)
	})

	t.Run("assistant reply always carries main actions for a new user", func(t *testing.T) {
		h := newHarness()
		h.assistant.reply = &model.AssistantReply{Text: "Welcome to YourHelpa!"}

		require.NoError(t, h.dialogue.HandleInbound(context.Background(), textEvent(phone, "hi")))

		last := h.messenger.last()
		assert.Equal(t, "Welcome to YourHelpa!", last.text)
		assert.Equal(t, mainActionIDs, last.buttonIDs())

		user, _ := h.users.FindByPhone(context.Background(), phone)
		session := h.sessions.get(user.ID)
		assert.Len(t, session.History, 2)
		assert.True(t, h.assistant.requests[0].FreshSegment)
	})

	t.Run("no-op events create nothing", func(t *testing.T) {
		h := newHarness()

		require.NoError(t, h.dialogue.HandleInbound(context.Background(), InboundEvent{Kind: EventNoOp, From: phone}))

		assert.Equal(t, 0, h.users.count())
		assert.Empty(t, h.messenger.messages())
	})
}

func TestDialogue_Conversation(t *testing.T) {
	t.Run("offer directive moves conversation to menu", func(t *testing.T) {
		h := newHarness()
		user := h.users.add(phone, "Ada", nil)
		h.sessions.put(user.ID, &model.Session{Stage: model.StageConversation, LastInteractionAt: recent()})
		h.assistant.reply = &model.AssistantReply{Text: "Anything else I can do for you?", OfferMainActions: true}

		require.NoError(t, h.dialogue.HandleInbound(context.Background(), textEvent(phone, "thanks")))

		assert.Equal(t, model.StageMenu, h.sessions.get(user.ID).Stage)
		assert.Equal(t, mainActionIDs, h.messenger.last().buttonIDs())
		assert.Equal(t, "Ada", h.assistant.requests[0].UserName)
	})

	t.Run("plain reply keeps stage", func(t *testing.T) {
		h := newHarness()
		user := h.users.add(phone, "Ada", nil)
		h.sessions.put(user.ID, &model.Session{Stage: model.StageConversation, LastInteractionAt: recent()})
		h.assistant.reply = &model.AssistantReply{Text: "Plumbers usually charge per visit."}

		require.NoError(t, h.dialogue.HandleInbound(context.Background(), textEvent(phone, "how much is a plumber?")))

		assert.Equal(t, model.StageConversation, h.sessions.get(user.ID).Stage)
		assert.Empty(t, h.messenger.last().buttons)
	})

	t.Run("assistant failure leaves stage and history of user turn", func(t *testing.T) {
		h := newHarness()
		user := h.users.add(phone, "Ada", nil)
		h.sessions.put(user.ID, &model.Session{Stage: model.StageMenu, LastInteractionAt: recent()})
		h.assistant.err = errors.New("timeout")

		require.NoError(t, h.dialogue.HandleInbound(context.Background(), textEvent(phone, "hello")))

		session := h.sessions.get(user.ID)
		assert.Equal(t, model.StageMenu, session.Stage)
		assert.Equal(t, []model.Turn{{Role: model.RoleUser, Content: "hello"}}, session.History)
		assert.Equal(t, "Hi Ada! I'm here to help. What can I do for you today?", h.messenger.last().text)
	})

	t.Run("history stays bounded", func(t *testing.T) {
		h := newHarness()
		user := h.users.add(phone, "Ada", nil)
		h.sessions.put(user.ID, &model.Session{Stage: model.StageConversation, LastInteractionAt: recent()})

		for i := 0; i < 10; i++ {
			require.NoError(t, h.dialogue.HandleInbound(context.Background(), textEvent(phone, fmt.Sprintf("message %d", i))))
			session := h.sessions.get(user.ID)
			assert.LessOrEqual(t, len(session.History), model.HistoryLimit)
			assert.True(t, session.Stage.Valid())
		}

		session := h.sessions.get(user.ID)
		require.Len(t, session.History, model.HistoryLimit)
		assert.Equal(t, "message 9", session.History[4].Content)
		assert.LessOrEqual(t, len(h.assistant.requests[9].History), model.HistoryLimit)
	})

	t.Run("idle gap starts a fresh segment", func(t *testing.T) {
		h := newHarness()
		user := h.users.add(phone, "Ada", nil)
		stale := testNow.Add(-11 * time.Minute)
		h.sessions.put(user.ID, &model.Session{
			Stage: model.StageConversation,
			History: []model.Turn{
				{Role: model.RoleUser, Content: "old question"},
				{Role: model.RoleAssistant, Content: "old answer"},
			},
			LastInteractionAt: &stale,
		})

		require.NoError(t, h.dialogue.HandleInbound(context.Background(), textEvent(phone, "new question")))

		req := h.assistant.requests[0]
		assert.True(t, req.FreshSegment)
		assert.Equal(t, []model.Turn{{Role: model.RoleUser, Content: "new question"}}, req.History)
	})
}

func TestDialogue_FindService(t *testing.T) {
	t.Run("lists categories", func(t *testing.T) {
		h := newHarness()
		user := h.users.add(phone, "Ada", nil)
		h.sessions.put(user.ID, &model.Session{Stage: model.StageMenu, LastInteractionAt: recent()})
		h.catalog.categories = []string{"Plumbing", "Beauty"}

		require.NoError(t, h.dialogue.HandleInbound(context.Background(), replyEvent(phone, "find_service")))

		session := h.sessions.get(user.ID)
		assert.Equal(t, model.StageAwaitingCategory, session.Stage)

		last := h.messenger.last()
		require.NotNil(t, last.list)
		rows := last.list.Sections[0].Rows
		require.Len(t, rows, 3)
		assert.Equal(t, "category:Plumbing", rows[0].ID)
		assert.Equal(t, "manual_service", rows[2].ID)
	})

	t.Run("empty catalog offers manual entry", func(t *testing.T) {
		h := newHarness()
		user := h.users.add(phone, "Ada", nil)
		h.sessions.put(user.ID, &model.Session{Stage: model.StageStart, LastInteractionAt: recent()})

		require.NoError(t, h.dialogue.HandleInbound(context.Background(), replyEvent(phone, "find_service")))

		assert.Equal(t, model.StageAwaitingCategory, h.sessions.get(user.ID).Stage)
		assert.Equal(t, msgManualServicePrompt, h.messenger.last().text)
	})

	t.Run("category selection lists services", func(t *testing.T) {
		h := newHarness()
		user := h.users.add(phone, "Ada", nil)
		h.sessions.put(user.ID, &model.Session{Stage: model.StageAwaitingCategory, Search: &model.SearchFlow{}, LastInteractionAt: recent()})
		h.catalog.services["Plumbing"] = []model.ServiceOffering{
			{ID: "svc-1", Name: "Pipe repair", Category: "Plumbing"},
			{ID: "svc-2", Name: "Drain unblocking", Category: "Plumbing"},
		}

		require.NoError(t, h.dialogue.HandleInbound(context.Background(), replyEvent(phone, "category:Plumbing")))

		session := h.sessions.get(user.ID)
		assert.Equal(t, model.StageAwaitingService, session.Stage)
		require.NotNil(t, session.Search)
		assert.Equal(t, "Plumbing", session.Search.Category)

		last := h.messenger.last()
		require.NotNil(t, last.list)
		assert.Equal(t, "service:svc-1", last.list.Sections[0].Rows[0].ID)
	})

	t.Run("category without services still prompts for text", func(t *testing.T) {
		h := newHarness()
		user := h.users.add(phone, "Ada", nil)
		h.sessions.put(user.ID, &model.Session{Stage: model.StageAwaitingCategory, Search: &model.SearchFlow{}, LastInteractionAt: recent()})

		require.NoError(t, h.dialogue.HandleInbound(context.Background(), replyEvent(phone, "category:Tailoring")))

		assert.Equal(t, model.StageAwaitingService, h.sessions.get(user.ID).Stage)
		assert.Equal(t, "Please type the Tailoring service you need.", h.messenger.last().text)
	})

	t.Run("typed service then location searches providers", func(t *testing.T) {
		h := newHarness()
		user := h.users.add(phone, "Ada", nil)
		h.sessions.put(user.ID, &model.Session{Stage: model.StageAwaitingCategory, Search: &model.SearchFlow{}, LastInteractionAt: recent()})
		h.providers.providers = []model.Provider{
			{ID: "p1", BusinessName: "Ace Plumbing", Services: pq.StringArray{"plumber"}, State: "Lagos", Price: strPtr("5000")},
		}

		require.NoError(t, h.dialogue.HandleInbound(context.Background(), textEvent(phone, "plumber")))
		session := h.sessions.get(user.ID)
		assert.Equal(t, model.StageAwaitingService, session.Stage)
		assert.Equal(t, "plumber", session.Search.ServiceQuery)
		require.NotNil(t, h.messenger.last().list)

		require.NoError(t, h.dialogue.HandleInbound(context.Background(), replyEvent(phone, "state:Lagos")))
		session = h.sessions.get(user.ID)
		assert.Equal(t, "Lagos", session.Search.Location)

		last := h.messenger.last()
		assert.Equal(t, []string{"select_provider:p1", "view_provider:p1"}, last.buttonIDs())
		assert.Contains(t, last.text, "₦5,000")
	})

	t.Run("zero providers records the location only", func(t *testing.T) {
		h := newHarness()
		user := h.users.add(phone, "Ada", nil)
		h.sessions.put(user.ID, &model.Session{
			Stage:             model.StageAwaitingService,
			Search:            &model.SearchFlow{Category: "Plumbing", ServiceQuery: "plumber"},
			LastInteractionAt: recent(),
		})

		require.NoError(t, h.dialogue.HandleInbound(context.Background(), textEvent(phone, "Kano")))

		session := h.sessions.get(user.ID)
		assert.Equal(t, model.StageAwaitingService, session.Stage)
		assert.Equal(t, model.SearchFlow{Category: "Plumbing", ServiceQuery: "plumber", Location: "Kano"}, *session.Search)
		assert.Contains(t, h.messenger.last().text, "couldn't find")
	})

	t.Run("state before service is corrected", func(t *testing.T) {
		h := newHarness()
		user := h.users.add(phone, "Ada", nil)
		h.sessions.put(user.ID, &model.Session{Stage: model.StageMenu, LastInteractionAt: recent()})

		require.NoError(t, h.dialogue.HandleInbound(context.Background(), replyEvent(phone, "state:Lagos")))

		assert.Equal(t, model.StageMenu, h.sessions.get(user.ID).Stage)
		assert.Equal(t, msgServiceFirst, h.messenger.last().text)
	})
}

func TestDialogue_SelectProvider(t *testing.T) {
	setup := func(price *string) (*harness, *model.User) {
		h := newHarness()
		user := h.users.add(phone, "Ada", nil)
		h.sessions.put(user.ID, &model.Session{
			Stage:             model.StageAwaitingService,
			Search:            &model.SearchFlow{ServiceQuery: "plumber", Location: "Lagos"},
			LastInteractionAt: recent(),
		})
		h.providers.providers = []model.Provider{
			{ID: "p1", BusinessName: "Ace Plumbing", Services: pq.StringArray{"plumber"}, State: "Lagos", Price: price},
		}
		h.payments.reference = "HLP-R"
		return h, user
	}

	t.Run("requests a payment link and awaits payment", func(t *testing.T) {
		h, user := setup(strPtr("₦5,000"))

		require.NoError(t, h.dialogue.HandleInbound(context.Background(), replyEvent(phone, "select_provider:p1")))

		require.Len(t, h.payments.requests, 1)
		req := h.payments.requests[0]
		assert.Equal(t, 5000.0, req.Amount)
		assert.Equal(t, "Payment for plumber by Ace Plumbing", req.Description)
		assert.Equal(t, phone+"@"+testEmailDomain, req.CustomerEmail)

		session := h.sessions.get(user.ID)
		assert.Equal(t, model.StageAwaitingPayment, session.Stage)
		assert.Nil(t, session.Search)
		require.NotNil(t, session.Payment)
		assert.Equal(t, model.PaymentFlow{
			ProviderID:       "p1",
			ProviderName:     "Ace Plumbing",
			ServiceName:      "plumber",
			Price:            5000,
			PaymentReference: "HLP-R",
			PaymentURL:       "https://pay.test/HLP-R",
		}, *session.Payment)
		assert.Contains(t, h.messenger.last().text, "https://pay.test/HLP-R")
	})

	t.Run("stored email is preferred", func(t *testing.T) {
		h, user := setup(strPtr("5000"))
		user.Email = strPtr("ada@example.com")

		require.NoError(t, h.dialogue.HandleInbound(context.Background(), replyEvent(phone, "select_provider:p1")))

		assert.Equal(t, "ada@example.com", h.payments.requests[0].CustomerEmail)
	})

	t.Run("unpayable price skips payment and resets to menu", func(t *testing.T) {
		for _, price := range []*string{nil, strPtr("negotiable"), strPtr("0")} {
			h, user := setup(price)

			require.NoError(t, h.dialogue.HandleInbound(context.Background(), replyEvent(phone, "select_provider:p1")))

			assert.Empty(t, h.payments.requests)
			assert.Equal(t, model.StageMenu, h.sessions.get(user.ID).Stage)
			assert.Equal(t, "*Ace Plumbing* has been notified. They will contact you shortly to discuss pricing.", h.messenger.last().text)
		}
	})

	t.Run("gateway failure leaves stage unchanged", func(t *testing.T) {
		h, user := setup(strPtr("5000"))
		h.payments.err = errors.New("gateway timeout")

		require.NoError(t, h.dialogue.HandleInbound(context.Background(), replyEvent(phone, "select_provider:p1")))

		assert.Equal(t, model.StageAwaitingService, h.sessions.get(user.ID).Stage)
		assert.Equal(t, msgPaymentUnavailable, h.messenger.last().text)
	})

	t.Run("unknown provider is a corrective prompt", func(t *testing.T) {
		h, user := setup(strPtr("5000"))

		require.NoError(t, h.dialogue.HandleInbound(context.Background(), replyEvent(phone, "select_provider:missing")))

		assert.Equal(t, model.StageAwaitingService, h.sessions.get(user.ID).Stage)
		assert.Equal(t, msgUnknownOption, h.messenger.last().text)
	})
}

func TestDialogue_AwaitingPayment(t *testing.T) {
	setup := func() (*harness, *model.User, model.PaymentFlow) {
		h := newHarness()
		user := h.users.add(phone, "Ada", nil)
		flow := model.PaymentFlow{
			ProviderID: "p1", ProviderName: "Ace Plumbing", ServiceName: "plumber",
			Price: 5000, PaymentReference: "HLP-R", PaymentURL: "https://pay.test/HLP-R",
		}
		s := model.NewSession()
		s.AwaitPayment(flow)
		s.LastInteractionAt = recent()
		h.sessions.put(user.ID, s)
		return h, user, flow
	}

	t.Run("stage changing actions are refused with a reminder", func(t *testing.T) {
		for _, id := range []string{"find_service", "main_menu", "select_provider:p2", "ask_question"} {
			h, user, flow := setup()

			require.NoError(t, h.dialogue.HandleInbound(context.Background(), replyEvent(phone, id)))

			session := h.sessions.get(user.ID)
			assert.Equal(t, model.StageAwaitingPayment, session.Stage, id)
			assert.Equal(t, flow, *session.Payment, id)
			assert.Contains(t, h.messenger.last().text, flow.PaymentURL, id)
		}
	})

	t.Run("free text goes to the assistant without touching payment", func(t *testing.T) {
		h, user, flow := setup()
		h.assistant.reply = &model.AssistantReply{Text: "Your payment link is above.", OfferMainActions: true}

		require.NoError(t, h.dialogue.HandleInbound(context.Background(), textEvent(phone, "is it safe?")))

		session := h.sessions.get(user.ID)
		assert.Equal(t, model.StageAwaitingPayment, session.Stage)
		assert.Equal(t, flow, *session.Payment)
		assert.Equal(t, 1, h.assistant.calls())
		assert.Empty(t, h.messenger.last().buttons)
	})

	t.Run("assistant failure falls back to the reminder", func(t *testing.T) {
		h, _, flow := setup()
		h.assistant.err = errors.New("down")

		require.NoError(t, h.dialogue.HandleInbound(context.Background(), textEvent(phone, "hello?")))

		assert.Contains(t, h.messenger.last().text, flow.PaymentURL)
	})

	t.Run("viewing transactions is allowed", func(t *testing.T) {
		h, user, _ := setup()

		require.NoError(t, h.dialogue.HandleInbound(context.Background(), replyEvent(phone, "transactions")))

		assert.Equal(t, model.StageAwaitingPayment, h.sessions.get(user.ID).Stage)
		assert.Equal(t, msgNoTransactions, h.messenger.last().text)
	})
}

func TestDialogue_Confirmation(t *testing.T) {
	setup := func() (*harness, *model.User) {
		h := newHarness()
		user := h.users.add(phone, "Ada", nil)
		h.sessions.put(user.ID, &model.Session{Stage: model.StageMenu, LastInteractionAt: recent()})
		_, _, err := h.transactions.CreateIfAbsent(context.Background(), model.CreateTransactionParams{
			UserID: user.ID, Amount: 5000, Status: model.TransactionPaid, PaymentReference: "HLP-R",
		})
		require.NoError(t, err)
		return h, user
	}

	t.Run("correct code completes the transaction", func(t *testing.T) {
		h, user := setup()

		require.NoError(t, h.dialogue.HandleInbound(context.Background(), replyEvent(phone, "confirm_tx:HLP-R")))

		session := h.sessions.get(user.ID)
		assert.Equal(t, model.StageAwaitingConfirmationCode, session.Stage)
		require.Len(t, h.codes.sent, 1)
		code := h.codes.sent[0].code
		assert.Len(t, code, 6)
		assert.Equal(t, phone, h.codes.sent[0].phone)
		assert.Equal(t, model.ConfirmationConfirm, session.Confirmation.Type)

		require.NoError(t, h.dialogue.HandleInbound(context.Background(), textEvent(phone, code)))

		assert.Equal(t, model.TransactionCompleted, h.transactions.status("HLP-R"))
		session = h.sessions.get(user.ID)
		assert.Equal(t, model.StageMenu, session.Stage)
		assert.Nil(t, session.Confirmation)
	})

	t.Run("correct code appeals the transaction", func(t *testing.T) {
		h, user := setup()

		require.NoError(t, h.dialogue.HandleInbound(context.Background(), replyEvent(phone, "appeal_tx:HLP-R")))
		code := h.codes.sent[0].code
		require.NoError(t, h.dialogue.HandleInbound(context.Background(), textEvent(phone, code)))

		assert.Equal(t, model.TransactionAppealed, h.transactions.status("HLP-R"))
		assert.Equal(t, model.StageMenu, h.sessions.get(user.ID).Stage)
	})

	t.Run("wrong code keeps stage and status and can be retried", func(t *testing.T) {
		h, user := setup()

		require.NoError(t, h.dialogue.HandleInbound(context.Background(), replyEvent(phone, "confirm_tx:HLP-R")))
		code := h.codes.sent[0].code
		wrong := "000000"
		if code == wrong {
			wrong = "111111"
		}

		for i := 0; i < 3; i++ {
			require.NoError(t, h.dialogue.HandleInbound(context.Background(), textEvent(phone, wrong)))
			assert.Equal(t, model.StageAwaitingConfirmationCode, h.sessions.get(user.ID).Stage)
			assert.Equal(t, model.TransactionPaid, h.transactions.status("HLP-R"))
			assert.Equal(t, msgInvalidCode, h.messenger.last().text)
		}

		require.NoError(t, h.dialogue.HandleInbound(context.Background(), textEvent(phone, code)))
		assert.Equal(t, model.TransactionCompleted, h.transactions.status("HLP-R"))
	})

	t.Run("other users cannot confirm", func(t *testing.T) {
		h, _ := setup()
		other := h.users.add("2348099999999", "Bayo", nil)
		h.sessions.put(other.ID, &model.Session{Stage: model.StageMenu, LastInteractionAt: recent()})

		require.NoError(t, h.dialogue.HandleInbound(context.Background(), replyEvent("2348099999999", "confirm_tx:HLP-R")))

		assert.Equal(t, model.StageMenu, h.sessions.get(other.ID).Stage)
		assert.Empty(t, h.codes.sent)
		assert.Equal(t, msgTransactionLocked, h.messenger.last().text)
	})

	t.Run("completed transactions cannot be confirmed again", func(t *testing.T) {
		h, user := setup()
		ok, err := h.transactions.UpdateStatus(context.Background(), user.ID, "HLP-R", model.TransactionPaid, model.TransactionCompleted)
		require.NoError(t, err)
		require.True(t, ok)

		require.NoError(t, h.dialogue.HandleInbound(context.Background(), replyEvent(phone, "appeal_tx:HLP-R")))

		assert.Equal(t, model.StageMenu, h.sessions.get(user.ID).Stage)
		assert.Empty(t, h.codes.sent)
	})

	t.Run("failed code delivery tells the user and leaves the code stage", func(t *testing.T) {
		h, user := setup()
		h.codes.err = errors.New("sms down")

		require.NoError(t, h.dialogue.HandleInbound(context.Background(), replyEvent(phone, "confirm_tx:HLP-R")))

		msgs := h.messenger.messages()
		require.Len(t, msgs, 1)
		assert.Equal(t, msgCodeDeliveryFailed, msgs[0].text)

		session := h.sessions.get(user.ID)
		assert.Equal(t, model.StageMenu, session.Stage)
		assert.Nil(t, session.Confirmation)
	})
}

func TestDialogue_Actions(t *testing.T) {
	t.Run("unknown reply id is corrected without changing stage", func(t *testing.T) {
		h := newHarness()
		user := h.users.add(phone, "Ada", nil)
		h.sessions.put(user.ID, &model.Session{Stage: model.StageMenu, LastInteractionAt: recent()})

		require.NoError(t, h.dialogue.HandleInbound(context.Background(), replyEvent(phone, "launch_rocket")))

		assert.Equal(t, model.StageMenu, h.sessions.get(user.ID).Stage)
		assert.Equal(t, msgUnknownOption, h.messenger.last().text)
		assert.Zero(t, h.assistant.calls())
	})

	t.Run("main menu clears flow state", func(t *testing.T) {
		h := newHarness()
		user := h.users.add(phone, "Ada", nil)
		h.sessions.put(user.ID, &model.Session{
			Stage:             model.StageAwaitingService,
			Search:            &model.SearchFlow{ServiceQuery: "plumber"},
			LastInteractionAt: recent(),
		})

		require.NoError(t, h.dialogue.HandleInbound(context.Background(), replyEvent(phone, "main_menu")))

		session := h.sessions.get(user.ID)
		assert.Equal(t, model.StageMenu, session.Stage)
		assert.Nil(t, session.Search)
	})

	t.Run("ask question enters conversation", func(t *testing.T) {
		h := newHarness()
		user := h.users.add(phone, "Ada", nil)
		h.sessions.put(user.ID, &model.Session{Stage: model.StageMenu, LastInteractionAt: recent()})

		require.NoError(t, h.dialogue.HandleInbound(context.Background(), replyEvent(phone, "ask_question")))

		assert.Equal(t, model.StageConversation, h.sessions.get(user.ID).Stage)
		assert.Equal(t, msgAskQuestionPrompt, h.messenger.last().text)
	})

	t.Run("transactions lists paid rows with confirm and appeal", func(t *testing.T) {
		h := newHarness()
		user := h.users.add(phone, "Ada", nil)
		h.sessions.put(user.ID, &model.Session{Stage: model.StageMenu, LastInteractionAt: recent()})
		_, _, _ = h.transactions.CreateIfAbsent(context.Background(), model.CreateTransactionParams{
			UserID: user.ID, Amount: 5000, Status: model.TransactionPaid, PaymentReference: "HLP-R",
			ServiceDetails: model.ServiceDetails{ServiceName: "plumber"},
		})

		require.NoError(t, h.dialogue.HandleInbound(context.Background(), replyEvent(phone, "transactions")))

		msgs := h.messenger.messages()
		require.Len(t, msgs, 2)
		assert.Contains(t, msgs[0].text, "plumber")
		assert.Equal(t, []string{"confirm_tx:HLP-R", "appeal_tx:HLP-R"}, msgs[1].buttonIDs())
	})

	t.Run("messenger errors do not fail the turn", func(t *testing.T) {
		h := newHarness()
		h.messenger.err = errors.New("meta down")
		user := h.users.add(phone, "Ada", nil)
		h.sessions.put(user.ID, &model.Session{Stage: model.StageMenu, LastInteractionAt: recent()})

		require.NoError(t, h.dialogue.HandleInbound(context.Background(), replyEvent(phone, "ask_question")))
		assert.Equal(t, model.StageConversation, h.sessions.get(user.ID).Stage)
	})
}

func TestFormatNaira(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{0, "₦0"},
		{999, "₦999"},
		{5000, "₦5,000"},
		{1234567.5, "₦1,234,567.50"},
		{10.999, "₦11"},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, formatNaira(tc.in))
	}
}
