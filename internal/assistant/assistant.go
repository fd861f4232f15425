// Package assistant wraps the chat model that answers open conversation.
package assistant

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	openai "github.com/sashabaranov/go-openai"

	"github.com/yourhelpa/helpa-server-go/internal/model"
)

var ErrNotConfigured = errors.New("assistant not configured")

const (
	defaultModel = openai.GPT4oMini
	maxTokens    = 400
)

// offerMarkers is used only when the model ignores the JSON format and
// answers in prose.
var offerMarkers = regexp.MustCompile(`(?i)how can i help|what can i do for you|how can i assist|i'm here to assist|let me know`)

const systemPrompt = `You are Helpa, the assistant of YourHelpa, a marketplace that connects people in Nigeria with trusted local service providers and sellers.
Keep answers short and friendly, suitable for WhatsApp. Never invent providers, prices or bookings.
Users can find a service, buy an item or ask a question; payments happen through secure links the app sends.
Respond with a JSON object: {"reply": "<message to the user>", "offer_main_actions": <true when the user should be shown the main options: find a service, buy an item, ask a question>}.`

type Config struct {
	APIKey  string
	Model   string
	BaseURL string
	Timeout time.Duration
}

type Client struct {
	client  *openai.Client
	model   string
	timeout time.Duration
}

func NewClient(cfg Config) *Client {
	if cfg.APIKey == "" {
		return &Client{}
	}
	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = cfg.BaseURL
	}
	m := cfg.Model
	if m == "" {
		m = defaultModel
	}
	return &Client{
		client:  openai.NewClientWithConfig(oc),
		model:   m,
		timeout: cfg.Timeout,
	}
}

type directive struct {
	Reply            string `json:"reply"`
	OfferMainActions bool   `json:"offer_main_actions"`
}

// Reply asks the model for the next assistant turn.
func (c *Client) Reply(ctx context.Context, req model.AssistantRequest) (*model.AssistantReply, error) {
	if c.client == nil {
		return nil, ErrNotConfigured
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	start := time.Now()
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    buildMessages(req),
		MaxTokens:   maxTokens,
		Temperature: 0.6,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	elapsed := time.Since(start)
	if err != nil {
		log.Error().Err(err).Dur("elapsed", elapsed).Msg("assistant completion failed")
		return nil, fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no response from model")
	}

	reply := parseReply(resp.Choices[0].Message.Content)
	if reply.Text == "" {
		return nil, fmt.Errorf("empty reply from model")
	}

	log.Debug().
		Dur("elapsed", elapsed).
		Bool("offerMainActions", reply.OfferMainActions).
		Msg("assistant replied")
	return reply, nil
}

func buildMessages(req model.AssistantRequest) []openai.ChatCompletionMessage {
	hint := fmt.Sprintf("Current conversation stage: %s.", req.Stage)
	if name := req.UserName; name != "" {
		hint += fmt.Sprintf(" The user's name is %s.", name)
	}
	if req.FreshSegment {
		hint += " This message starts a new conversation; greet the user briefly."
	}
	if req.Stage == model.StageAwaitingPayment {
		hint += " The user has a pending payment link; remind them it is still open if relevant."
	}

	messages := []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
		{Role: openai.ChatMessageRoleSystem, Content: hint},
	}
	for _, turn := range req.History {
		role := openai.ChatMessageRoleUser
		if turn.Role == model.RoleAssistant {
			role = openai.ChatMessageRoleAssistant
		}
		messages = append(messages, openai.ChatCompletionMessage{Role: role, Content: turn.Content})
	}
	return messages
}

func parseReply(content string) *model.AssistantReply {
	content = strings.TrimSpace(content)

	var d directive
	if err := json.Unmarshal([]byte(content), &d); err == nil && strings.TrimSpace(d.Reply) != "" {
		return &model.AssistantReply{
			Text:             strings.TrimSpace(d.Reply),
			OfferMainActions: d.OfferMainActions,
		}
	}

	return &model.AssistantReply{
		Text:             content,
		OfferMainActions: offerMarkers.MatchString(content),
	}
}
