package service

import (
	"context"

	"github.com/yourhelpa/helpa-server-go/internal/model"
)

// Messenger delivers outbound chat messages.
type Messenger interface {
	SendText(ctx context.Context, to, text string) error
	SendButtons(ctx context.Context, to, text string, buttons []model.Button) error
	SendList(ctx context.Context, to string, list model.ListMessage) error
}

// Assistant produces replies for open conversation.
type Assistant interface {
	Reply(ctx context.Context, req model.AssistantRequest) (*model.AssistantReply, error)
}

// PaymentGateway creates hosted payment links. It fills in a reference when
// the request has none.
type PaymentGateway interface {
	CreatePaymentLink(ctx context.Context, req model.PaymentLinkRequest) (*model.PaymentLink, error)
}

// CodeSender delivers a verification code out of band.
type CodeSender interface {
	SendCode(ctx context.Context, phone, code string, kind model.ConfirmationType) error
}
