package service

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/yourhelpa/helpa-server-go/internal/model"
)

const (
	msgManualServicePrompt = "Please type the service you need (for example: plumber, hair stylist, generator repair)."
	msgUnknownOption       = "Sorry, I didn't recognise that option. Here's what I can help with:"
	msgMenuPrompt          = "What would you like to do?"
	msgBuyItemPrompt       = "Great! Tell me the item you're looking for and where you are, and I'll help you find it."
	msgAskQuestionPrompt   = "Sure, ask me anything about YourHelpa and I'll do my best to help."
	msgPaymentUnavailable  = "Sorry, we couldn't create your payment link right now. Please try again in a few minutes."
	msgInvalidCode         = "❌ That code is not correct. Please check the code we sent and try again."
	msgNoTransactions      = "You have no transactions yet."
	msgTransactionLocked   = "That transaction can no longer be confirmed or appealed."
	msgServiceFirst        = "Please tell me which service you need first."
	msgCodeDeliveryFailed  = "Sorry, we couldn't send your verification code. Please try again from your transactions."
	msgPaymentSuccess      = "✅ Your payment was successful! We have confirmed your booking."
)

const (
	findServiceButtonID = "find_service"
	mainMenuButtonID    = "main_menu"
	transactionsID      = "transactions"
	manualServiceID     = "manual_service"
)

// serviceStates are offered as quick picks; any other state can be typed.
var serviceStates = []string{
	"Lagos", "Abuja", "Rivers", "Oyo", "Kano",
	"Enugu", "Kaduna", "Delta", "Ogun", "Anambra",
}

func greeting(name string) string {
	if name == "" {
		name = "there"
	}
	return fmt.Sprintf("Hi %s! I'm here to help. What can I do for you today?", name)
}

func formatNaira(amount float64) string {
	whole := int64(math.Floor(amount))
	kobo := int64(math.Round((amount - float64(whole)) * 100))
	if kobo == 100 {
		whole++
		kobo = 0
	}

	digits := strconv.FormatInt(whole, 10)
	var b strings.Builder
	for i, r := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	if kobo > 0 {
		return fmt.Sprintf("₦%s.%02d", b.String(), kobo)
	}
	return "₦" + b.String()
}

func locationList(service string) model.ListMessage {
	rows := make([]model.ListRow, 0, len(serviceStates))
	for _, state := range serviceStates {
		rows = append(rows, model.ListRow{ID: actionID(ActionState, state), Title: state})
	}
	return model.ListMessage{
		Header:      "Location",
		Body:        fmt.Sprintf("Where do you need *%s*? Pick a state or type yours.", service),
		ButtonLabel: "Choose state",
		Sections:    []model.ListSection{{Title: "States", Rows: rows}},
	}
}

func providerCard(p model.Provider) Outbound {
	price := "Price on request"
	if v, ok := p.ParsedPrice(); ok {
		price = formatNaira(v)
	}
	text := fmt.Sprintf("*%s*\nServices: %s\nLocation: %s\nPrice: %s",
		p.BusinessName, strings.Join(p.Services, ", "), p.State, price)
	return buttonsOut(text,
		model.Button{ID: actionID(ActionSelectProvider, p.ID), Title: "Select & Pay"},
		model.Button{ID: actionID(ActionViewProvider, p.ID), Title: "More details"},
	)
}

func providerDetails(p model.Provider) Outbound {
	var b strings.Builder
	fmt.Fprintf(&b, "*%s*\n", p.BusinessName)
	if len(p.Services) > 0 {
		fmt.Fprintf(&b, "Services: %s\n", strings.Join(p.Services, ", "))
	}
	if p.TypicalAvailability != "" {
		fmt.Fprintf(&b, "Availability: %s\n", p.TypicalAvailability)
	}
	if p.Description != "" {
		fmt.Fprintf(&b, "\n%s", p.Description)
	}
	return buttonsOut(strings.TrimSpace(b.String()),
		model.Button{ID: actionID(ActionSelectProvider, p.ID), Title: "Select & Pay"},
		model.Button{ID: mainMenuButtonID, Title: "Main menu"},
	)
}

func paymentReminder(p *model.PaymentFlow) string {
	return fmt.Sprintf("You have a pending payment of %s for *%s* with *%s*. Complete it here: %s\nWe'll continue as soon as it's confirmed.",
		formatNaira(p.Price), p.ServiceName, p.ProviderName, p.PaymentURL)
}

func paymentLinkText(p model.PaymentFlow) string {
	return fmt.Sprintf("Great choice! Pay %s for *%s* with *%s* using this secure link:\n%s\nWe'll confirm your booking as soon as the payment lands.",
		formatNaira(p.Price), p.ServiceName, p.ProviderName, p.PaymentURL)
}

func codeSentText(kind model.ConfirmationType) string {
	return fmt.Sprintf("We've sent a 6-digit code to your phone. Reply with it here to %s this transaction.", kind)
}

func codeText(code string, kind model.ConfirmationType) string {
	return fmt.Sprintf("Your code to %s this transaction is *%s*. Reply with it here.", kind, code)
}

func codeAcceptedText(kind model.ConfirmationType) string {
	if kind == model.ConfirmationAppeal {
		return "Your appeal has been logged. Our team will review it and reach out shortly."
	}
	return "✅ Thank you! The transaction is now marked as completed."
}
