package monnify

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/yourhelpa/helpa-server-go/internal/model"
)

const (
	loginPath           = "/api/v1/auth/login"
	initTransactionPath = "/api/v1/merchant/transactions/init-transaction"
	referencePrefix     = "HLP-"
	tokenSafetyMargin   = 30 * time.Second
)

type Config struct {
	BaseURL      string
	APIKey       string
	SecretKey    string
	ContractCode string
	CurrencyCode string
	RedirectURL  string
	Timeout      time.Duration
}

// Client creates hosted checkout links on Monnify.
type Client struct {
	cfg    Config
	client *http.Client

	mu          sync.Mutex
	token       string
	tokenExpiry time.Time
	now         func() time.Time
}

func NewClient(cfg Config) *Client {
	if cfg.CurrencyCode == "" {
		cfg.CurrencyCode = "NGN"
	}
	return &Client{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		now:    time.Now,
	}
}

// NewPaymentReference returns a fresh merchant-side reference.
func NewPaymentReference() string {
	return referencePrefix + uuid.NewString()
}

func (c *Client) Configured() bool {
	return c.cfg.APIKey != "" && c.cfg.SecretKey != "" && c.cfg.ContractCode != ""
}

type envelope struct {
	RequestSuccessful bool            `json:"requestSuccessful"`
	ResponseMessage   string          `json:"responseMessage"`
	ResponseCode      string          `json:"responseCode"`
	ResponseBody      json.RawMessage `json:"responseBody"`
}

type loginBody struct {
	AccessToken string `json:"accessToken"`
	ExpiresIn   int    `json:"expiresIn"`
}

type initTransactionBody struct {
	TransactionReference string `json:"transactionReference"`
	PaymentReference     string `json:"paymentReference"`
	CheckoutURL          string `json:"checkoutUrl"`
	PaymentURL           string `json:"paymentUrl"`
}

// CreatePaymentLink initialises a transaction and returns its checkout URL.
// Without credentials it returns a placeholder link so the flow can be
// exercised locally.
func (c *Client) CreatePaymentLink(ctx context.Context, req model.PaymentLinkRequest) (*model.PaymentLink, error) {
	if req.Reference == "" {
		req.Reference = NewPaymentReference()
	}

	if !c.Configured() {
		link := fmt.Sprintf("https://example.com/pay?amount=%s&ref=%s",
			strconv.FormatFloat(req.Amount, 'f', -1, 64), url.QueryEscape(req.Reference))
		log.Warn().Str("paymentReference", req.Reference).Msg("monnify not configured, returning placeholder payment link")
		return &model.PaymentLink{URL: link, Reference: req.Reference}, nil
	}

	token, err := c.accessToken(ctx)
	if err != nil {
		return nil, err
	}

	payload := map[string]any{
		"amount":             req.Amount,
		"customerName":       req.CustomerName,
		"customerEmail":      req.CustomerEmail,
		"paymentReference":   req.Reference,
		"paymentDescription": req.Description,
		"currencyCode":       c.cfg.CurrencyCode,
		"contractCode":       c.cfg.ContractCode,
		"paymentMethods":     []string{"CARD", "ACCOUNT_TRANSFER"},
	}
	if req.CustomerPhone != "" {
		payload["customerMobile"] = req.CustomerPhone
	}
	if c.cfg.RedirectURL != "" {
		payload["redirectUrl"] = c.cfg.RedirectURL
	}

	var body initTransactionBody
	if err := c.do(ctx, initTransactionPath, "Bearer "+token, payload, &body); err != nil {
		return nil, err
	}

	checkout := body.CheckoutURL
	if checkout == "" {
		checkout = body.PaymentURL
	}
	if checkout == "" {
		return nil, fmt.Errorf("monnify returned no checkout url")
	}

	reference := body.PaymentReference
	if reference == "" {
		reference = req.Reference
	}

	log.Info().
		Str("paymentReference", reference).
		Str("transactionReference", body.TransactionReference).
		Msg("monnify payment link created")

	return &model.PaymentLink{
		URL:                  checkout,
		Reference:            reference,
		TransactionReference: body.TransactionReference,
	}, nil
}

func (c *Client) accessToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && c.now().Before(c.tokenExpiry) {
		return c.token, nil
	}

	basic := base64.StdEncoding.EncodeToString([]byte(c.cfg.APIKey + ":" + c.cfg.SecretKey))
	var body loginBody
	if err := c.do(ctx, loginPath, "Basic "+basic, nil, &body); err != nil {
		return "", fmt.Errorf("monnify login: %w", err)
	}
	if body.AccessToken == "" {
		return "", fmt.Errorf("monnify login returned no access token")
	}

	ttl := time.Duration(body.ExpiresIn)*time.Second - tokenSafetyMargin
	if ttl <= 0 {
		ttl = time.Minute
	}
	c.token = body.AccessToken
	c.tokenExpiry = c.now().Add(ttl)
	return c.token, nil
}

func (c *Client) do(ctx context.Context, path, auth string, payload any, out any) error {
	var reader io.Reader = http.NoBody
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal payload: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + path
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", auth)

	start := time.Now()
	resp, err := c.client.Do(req)
	elapsed := time.Since(start)
	if err != nil {
		log.Error().Err(err).Str("path", path).Dur("elapsed", elapsed).Msg("monnify request error")
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		log.Error().
			Str("path", path).
			Int("status", resp.StatusCode).
			Dur("elapsed", elapsed).
			Msg("monnify request failed")
		return fmt.Errorf("monnify %s failed with status %d", path, resp.StatusCode)
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if !env.RequestSuccessful {
		return fmt.Errorf("monnify %s rejected: %s (%s)", path, env.ResponseMessage, env.ResponseCode)
	}
	if err := json.Unmarshal(env.ResponseBody, out); err != nil {
		return fmt.Errorf("decode response body: %w", err)
	}
	return nil
}
