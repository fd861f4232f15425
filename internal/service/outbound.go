package service

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/yourhelpa/helpa-server-go/internal/model"
)

// Outbound is one message decided by the dialogue. Exactly one of List,
// Buttons or plain Text is sent.
type Outbound struct {
	Text    string
	Buttons []model.Button
	List    *model.ListMessage
}

func textOut(text string) Outbound {
	return Outbound{Text: text}
}

func buttonsOut(text string, buttons ...model.Button) Outbound {
	return Outbound{Text: text, Buttons: buttons}
}

func listOut(list model.ListMessage) Outbound {
	return Outbound{List: &list}
}

// dispatch sends messages in order. Send failures are logged and do not
// stop later messages.
func dispatch(ctx context.Context, m Messenger, to string, messages []Outbound) {
	for _, msg := range messages {
		var err error
		switch {
		case msg.List != nil:
			err = m.SendList(ctx, to, *msg.List)
		case len(msg.Buttons) > 0:
			err = m.SendButtons(ctx, to, msg.Text, msg.Buttons)
		default:
			err = m.SendText(ctx, to, msg.Text)
		}
		if err != nil {
			log.Error().Err(err).Str("to", to).Msg("failed to send outbound message")
		}
	}
}

// LiveMessenger is a Messenger that can report whether it actually
// delivers or only logs.
type LiveMessenger interface {
	Messenger
	Live() bool
}

// ErrCodeChannelOffline is returned when the chat channel would only log
// the code instead of delivering it.
var ErrCodeChannelOffline = errors.New("chat channel not live: verification code not sent")

// MessengerCodeSender delivers verification codes through the chat channel
// when no SMS provider is configured.
type MessengerCodeSender struct {
	messenger LiveMessenger
}

func NewMessengerCodeSender(m LiveMessenger) *MessengerCodeSender {
	return &MessengerCodeSender{messenger: m}
}

func (s *MessengerCodeSender) SendCode(ctx context.Context, phone, code string, kind model.ConfirmationType) error {
	if !s.messenger.Live() {
		return ErrCodeChannelOffline
	}
	return s.messenger.SendText(ctx, phone, codeText(code, kind))
}
