package service

import (
	"strings"

	"github.com/yourhelpa/helpa-server-go/internal/util"
	"github.com/yourhelpa/helpa-server-go/internal/whatsapp"
)

type EventKind int

const (
	EventNoOp EventKind = iota
	EventInteractiveReply
	EventFreeText
)

func (k EventKind) String() string {
	switch k {
	case EventInteractiveReply:
		return "interactive_reply"
	case EventFreeText:
		return "free_text"
	default:
		return "no_op"
	}
}

// InboundEvent is a classified inbound chat message.
type InboundEvent struct {
	Kind        EventKind
	MessageID   string
	From        string
	ProfileName string
	Text        string
	ReplyID     string
	ReplyTitle  string
}

// Classify extracts the single message of a delivery. Deliveries without a
// message (status updates) and messages with neither a selection nor a body
// are no-ops.
func Classify(payload *whatsapp.WebhookPayload) InboundEvent {
	if payload == nil {
		return InboundEvent{Kind: EventNoOp}
	}
	msg, name := payload.FirstMessage()
	if msg == nil {
		return InboundEvent{Kind: EventNoOp}
	}

	event := InboundEvent{
		Kind:        EventNoOp,
		MessageID:   msg.ID,
		From:        util.NormalizePhone(msg.From),
		ProfileName: strings.TrimSpace(name),
	}
	if event.From == "" {
		return event
	}

	if msg.Interactive != nil {
		var reply *whatsapp.ReplyItem
		switch {
		case msg.Interactive.ButtonReply != nil:
			reply = msg.Interactive.ButtonReply
		case msg.Interactive.ListReply != nil:
			reply = msg.Interactive.ListReply
		}
		if reply != nil && strings.TrimSpace(reply.ID) != "" {
			event.Kind = EventInteractiveReply
			event.ReplyID = strings.TrimSpace(reply.ID)
			event.ReplyTitle = reply.Title
			return event
		}
	}

	if msg.Button != nil && strings.TrimSpace(msg.Button.Payload) != "" {
		event.Kind = EventInteractiveReply
		event.ReplyID = strings.TrimSpace(msg.Button.Payload)
		event.ReplyTitle = msg.Button.Text
		return event
	}

	if msg.Text != nil {
		if body := strings.TrimSpace(msg.Text.Body); body != "" {
			event.Kind = EventFreeText
			event.Text = body
		}
	}
	return event
}
