// Package sms delivers verification codes outside the chat channel.
package sms

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"

	"github.com/yourhelpa/helpa-server-go/internal/model"
	"github.com/yourhelpa/helpa-server-go/internal/util"
)

type messageCreator interface {
	CreateMessage(params *twilioApi.CreateMessageParams) (*twilioApi.ApiV2010Message, error)
}

type Config struct {
	AccountSID string
	AuthToken  string
	From       string
	// Timeout bounds a single send. Zero means no bound beyond the caller's context.
	Timeout time.Duration
}

// TwilioSender sends confirmation codes by SMS.
type TwilioSender struct {
	api     messageCreator
	from    string
	timeout time.Duration
}

func NewTwilioSender(cfg Config) (*TwilioSender, error) {
	if cfg.AccountSID == "" || cfg.AuthToken == "" || cfg.From == "" {
		return nil, fmt.Errorf("missing Twilio credentials")
	}

	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: cfg.AccountSID,
		Password: cfg.AuthToken,
	})

	return &TwilioSender{api: client.Api, from: cfg.From, timeout: cfg.Timeout}, nil
}

func (s *TwilioSender) SendCode(ctx context.Context, phone, code string, kind model.ConfirmationType) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	to := util.E164(phone)
	if to == "" {
		return fmt.Errorf("invalid phone %q", phone)
	}

	params := &twilioApi.CreateMessageParams{}
	params.SetFrom(s.from)
	params.SetTo(to)
	params.SetBody(CodeMessage(code, kind))

	resp, err := s.create(ctx, params)
	if err != nil {
		log.Error().Err(err).Str("to", to).Msg("failed to send verification sms")
		return fmt.Errorf("send sms: %w", err)
	}

	sid := ""
	if resp != nil && resp.Sid != nil {
		sid = *resp.Sid
	}
	log.Info().Str("to", to).Str("sid", sid).Str("code", util.MaskCode(code)).Msg("verification sms sent")
	return nil
}

type createResult struct {
	msg *twilioApi.ApiV2010Message
	err error
}

// create runs the blocking API call and gives up when ctx or the send
// timeout ends first.
func (s *TwilioSender) create(ctx context.Context, params *twilioApi.CreateMessageParams) (*twilioApi.ApiV2010Message, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	done := make(chan createResult, 1)
	go func() {
		msg, err := s.api.CreateMessage(params)
		done <- createResult{msg: msg, err: err}
	}()

	select {
	case r := <-done:
		return r.msg, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// CodeMessage is the text that carries a verification code.
func CodeMessage(code string, kind model.ConfirmationType) string {
	action := "confirm"
	if kind == model.ConfirmationAppeal {
		action = "appeal"
	}
	return fmt.Sprintf("Your YourHelpa code to %s your transaction is %s. Reply with this code in WhatsApp.", action, code)
}
