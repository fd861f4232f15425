package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/yourhelpa/helpa-server-go/internal/model"
	"github.com/yourhelpa/helpa-server-go/internal/util"
)

type Config struct {
	BaseURL       string
	APIVersion    string
	PhoneNumberID string
	AccessToken   string
	DryRun        bool
	Timeout       time.Duration
}

// Client sends messages through the WhatsApp Cloud API.
type Client struct {
	cfg    Config
	client *http.Client
}

func NewClient(cfg Config) *Client {
	return &Client{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

// Live reports whether messages actually leave the process.
func (c *Client) Live() bool {
	return !c.cfg.DryRun && c.cfg.AccessToken != "" && c.cfg.PhoneNumberID != ""
}

func (c *Client) SendText(ctx context.Context, to, text string) error {
	return c.send(ctx, to, map[string]any{
		"type": "text",
		"text": map[string]any{
			"preview_url": false,
			"body":        text,
		},
	})
}

func (c *Client) SendButtons(ctx context.Context, to, text string, buttons []model.Button) error {
	if len(buttons) > model.MaxButtons {
		buttons = buttons[:model.MaxButtons]
	}
	replies := make([]map[string]any, 0, len(buttons))
	for _, b := range buttons {
		replies = append(replies, map[string]any{
			"type": "reply",
			"reply": map[string]string{
				"id":    b.ID,
				"title": util.Truncate(b.Title, model.MaxButtonTitle),
			},
		})
	}

	return c.send(ctx, to, map[string]any{
		"type": "interactive",
		"interactive": map[string]any{
			"type":   "button",
			"body":   map[string]string{"text": text},
			"action": map[string]any{"buttons": replies},
		},
	})
}

func (c *Client) SendList(ctx context.Context, to string, list model.ListMessage) error {
	remaining := model.MaxListRows
	sections := make([]map[string]any, 0, len(list.Sections))
	for _, s := range list.Sections {
		rows := make([]map[string]string, 0, len(s.Rows))
		for _, r := range s.Rows {
			if remaining == 0 {
				break
			}
			row := map[string]string{
				"id":    r.ID,
				"title": util.Truncate(r.Title, model.MaxRowTitle),
			}
			if r.Description != "" {
				row["description"] = util.Truncate(r.Description, 72)
			}
			rows = append(rows, row)
			remaining--
		}
		if len(rows) == 0 {
			continue
		}
		sections = append(sections, map[string]any{
			"title": util.Truncate(s.Title, 24),
			"rows":  rows,
		})
	}

	interactive := map[string]any{
		"type": "list",
		"body": map[string]string{"text": list.Body},
		"action": map[string]any{
			"button":   util.Truncate(list.ButtonLabel, model.MaxButtonTitle),
			"sections": sections,
		},
	}
	if list.Header != "" {
		interactive["header"] = map[string]string{"type": "text", "text": list.Header}
	}

	return c.send(ctx, to, map[string]any{
		"type":        "interactive",
		"interactive": interactive,
	})
}

func (c *Client) send(ctx context.Context, to string, message map[string]any) error {
	recipient := util.E164(to)
	if recipient == "" {
		return fmt.Errorf("invalid recipient %q", to)
	}

	message["messaging_product"] = "whatsapp"
	message["recipient_type"] = "individual"
	message["to"] = recipient

	body, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	if !c.Live() {
		log.Info().
			Str("to", recipient).
			Bool("dryRun", c.cfg.DryRun).
			RawJSON("payload", redacted(message, body)).
			Msg("whatsapp send skipped")
		return nil
	}

	endpoint := fmt.Sprintf("%s/%s/%s/messages",
		strings.TrimRight(c.cfg.BaseURL, "/"), c.cfg.APIVersion, c.cfg.PhoneNumberID)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.AccessToken)

	start := time.Now()
	resp, err := c.client.Do(req)
	elapsed := time.Since(start)
	if err != nil {
		log.Error().Err(err).Str("to", recipient).Dur("elapsed", elapsed).Msg("whatsapp send error")
		return fmt.Errorf("send request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		log.Error().
			Str("to", recipient).
			Int("status", resp.StatusCode).
			Str("response", string(respBody)).
			Dur("elapsed", elapsed).
			Msg("whatsapp send failed")
		return fmt.Errorf("send failed with status %d", resp.StatusCode)
	}

	log.Debug().Str("to", recipient).Dur("elapsed", elapsed).Msg("whatsapp message sent")
	return nil
}

// redacted returns the payload for logging with any plain text body
// replaced by its length. Plain text carries verification codes.
func redacted(message map[string]any, body []byte) []byte {
	text, ok := message["text"].(map[string]any)
	if !ok {
		return body
	}
	bodyText, _ := text["body"].(string)

	masked := make(map[string]any, len(message))
	for k, v := range message {
		masked[k] = v
	}
	masked["text"] = map[string]any{"body": fmt.Sprintf("[redacted %d chars]", len([]rune(bodyText)))}

	out, err := json.Marshal(masked)
	if err != nil {
		return []byte(`{}`)
	}
	return out
}
