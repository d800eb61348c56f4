// Package payments creates CryptoPay invoices for plan purchases.
package payments

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/lumi-labs/lumi-bot/internal/errors"
	"github.com/lumi-labs/lumi-bot/internal/plan"
)

const defaultBaseURL = "https://pay.crypt.bot/api"

// Invoice is the result of a successful invoice creation.
type Invoice struct {
	URL       string
	Reference string
}

// CryptoPay creates payment links through the CryptoPay API. When the API is
// unavailable or unconfigured, per-plan fallback URLs keep /buy functional.
type CryptoPay struct {
	httpClient   *http.Client
	baseURL      string
	token        string
	fallbackURLs map[string]string
	log          *slog.Logger
}

// NewCryptoPay builds a client. An empty token disables API calls entirely,
// leaving only the fallback URLs.
func NewCryptoPay(token, baseURL string, fallbackURLs map[string]string, log *slog.Logger) *CryptoPay {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if log == nil {
		log = slog.Default()
	}

	return &CryptoPay{
		httpClient:   &http.Client{Timeout: 15 * time.Second},
		baseURL:      baseURL,
		token:        token,
		fallbackURLs: fallbackURLs,
		log:          log,
	}
}

type createInvoiceRequest struct {
	CurrencyType string `json:"currency_type"`
	Fiat         string `json:"fiat"`
	Amount       string `json:"amount"`
	Description  string `json:"description"`
	Payload      string `json:"payload"`
}

type createInvoiceResponse struct {
	OK     bool `json:"ok"`
	Result struct {
		BotInvoiceURL string `json:"bot_invoice_url"`
	} `json:"result"`
	Error struct {
		Name string `json:"name"`
	} `json:"error"`
}

// InvoiceURL returns a payment link for the plan. The reference ties a later
// payment notification back to the chat and plan.
func (c *CryptoPay) InvoiceURL(ctx context.Context, chatID int64, code plan.Code) (*Invoice, error) {
	def := plan.Behavior(code)
	reference := fmt.Sprintf("%d:%s:%s", chatID, code, uuid.NewString())

	if c.token == "" {
		return c.fallback(code, reference)
	}

	body, err := json.Marshal(createInvoiceRequest{
		CurrencyType: "fiat",
		Fiat:         "RUB",
		Amount:       fmt.Sprintf("%d", def.PriceRUB),
		Description:  fmt.Sprintf("Lumi %s, %d days", code, def.Days),
		Payload:      reference,
	})
	if err != nil {
		return nil, apperrors.NewInvoiceError(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/createInvoice", bytes.NewReader(body))
	if err != nil {
		return nil, apperrors.NewInvoiceError(err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Crypto-Pay-API-Token", c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.Warn("cryptopay request failed", slog.Any("error", err))
		return c.fallback(code, reference)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			c.log.Warn("failed to close response body", slog.Any("error", cerr))
		}
	}()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return c.fallback(code, reference)
	}

	var parsed createInvoiceResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		c.log.Warn("cryptopay returned malformed payload", slog.Int("status", resp.StatusCode))
		return c.fallback(code, reference)
	}

	if !parsed.OK || parsed.Result.BotInvoiceURL == "" {
		c.log.Warn("cryptopay rejected invoice", slog.String("error", parsed.Error.Name))
		return c.fallback(code, reference)
	}

	return &Invoice{URL: parsed.Result.BotInvoiceURL, Reference: reference}, nil
}

func (c *CryptoPay) fallback(code plan.Code, reference string) (*Invoice, error) {
	if url, ok := c.fallbackURLs[string(code)]; ok && url != "" {
		return &Invoice{URL: url, Reference: reference}, nil
	}

	return nil, apperrors.NewInvoiceError(fmt.Errorf("no invoice source for plan %s", code))
}
