package whatsapp

// WebhookPayload is the body Meta posts for WhatsApp Business events.
type WebhookPayload struct {
	Object string  `json:"object"`
	Entry  []Entry `json:"entry"`
}

type Entry struct {
	ID      string   `json:"id"`
	Changes []Change `json:"changes"`
}

type Change struct {
	Field string      `json:"field"`
	Value ChangeValue `json:"value"`
}

type ChangeValue struct {
	MessagingProduct string           `json:"messaging_product"`
	Contacts         []Contact        `json:"contacts,omitempty"`
	Messages         []InboundMessage `json:"messages,omitempty"`
	Statuses         []map[string]any `json:"statuses,omitempty"`
}

type Contact struct {
	WaID    string `json:"wa_id"`
	Profile struct {
		Name string `json:"name"`
	} `json:"profile"`
}

type InboundMessage struct {
	From        string       `json:"from"`
	ID          string       `json:"id"`
	Timestamp   string       `json:"timestamp"`
	Type        string       `json:"type"`
	Text        *TextBody    `json:"text,omitempty"`
	Interactive *Interactive `json:"interactive,omitempty"`
	Button      *ButtonReply `json:"button,omitempty"`
}

type TextBody struct {
	Body string `json:"body"`
}

type Interactive struct {
	Type        string     `json:"type"`
	ButtonReply *ReplyItem `json:"button_reply,omitempty"`
	ListReply   *ReplyItem `json:"list_reply,omitempty"`
}

type ReplyItem struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
}

// ButtonReply is sent when a user taps a template quick-reply button.
type ButtonReply struct {
	Payload string `json:"payload"`
	Text    string `json:"text"`
}

// FirstMessage returns the single message carried by a delivery, with the
// sender's profile name when present.
func (p *WebhookPayload) FirstMessage() (*InboundMessage, string) {
	for _, entry := range p.Entry {
		for _, change := range entry.Changes {
			if len(change.Value.Messages) == 0 {
				continue
			}
			msg := change.Value.Messages[0]
			name := ""
			for _, c := range change.Value.Contacts {
				if c.WaID == msg.From || len(change.Value.Contacts) == 1 {
					name = c.Profile.Name
					break
				}
			}
			return &msg, name
		}
	}
	return nil, ""
}
