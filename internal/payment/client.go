package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/vasiliy-maslov/modest-storefront/internal/config"
)

const (
	checkoutsPath  = "/v0.1/checkouts"
	defaultTimeout = 15 * time.Second
	maxErrorBody   = 4 << 10
)

type Client struct {
	httpClient   *http.Client
	baseURL      string
	apiKey       string
	merchantCode string
}

func NewClient(cfg config.PaymentConfig) (*Client, error) {
	if cfg.APIURL == "" {
		return nil, errors.New("payment API URL is required")
	}
	if cfg.APIKey == "" || cfg.MerchantCode == "" {
		return nil, errors.New("payment API key and merchant code are required")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	return &Client{
		httpClient:   &http.Client{Timeout: timeout},
		baseURL:      strings.TrimSuffix(cfg.APIURL, "/"),
		apiKey:       cfg.APIKey,
		merchantCode: cfg.MerchantCode,
	}, nil
}

type createCheckoutBody struct {
	CheckoutReference string      `json:"checkout_reference"`
	Amount            json.Number `json:"amount"`
	Currency          string      `json:"currency"`
	MerchantCode      string      `json:"merchant_code"`
	Description       string      `json:"description,omitempty"`
	ReturnURL         string      `json:"return_url,omitempty"`
	RedirectURL       string      `json:"redirect_url,omitempty"`
	HostedCheckout    hostedFlag  `json:"hosted_checkout"`
}

type hostedFlag struct {
	Enabled bool `json:"enabled"`
}

type checkoutBody struct {
	ID                string          `json:"id"`
	CheckoutReference string          `json:"checkout_reference"`
	Amount            decimal.Decimal `json:"amount"`
	Currency          string          `json:"currency"`
	Status            string          `json:"status"`
	HostedCheckoutURL string          `json:"hosted_checkout_url"`
	TransactionID     string          `json:"transaction_id"`
	Transactions      []struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	} `json:"transactions"`
}

type errorBody struct {
	ErrorCode string `json:"error_code"`
	Message   string `json:"message"`
}

func (c *Client) CreateCheckout(ctx context.Context, req CheckoutRequest) (*Checkout, error) {
	body := createCheckoutBody{
		CheckoutReference: req.Reference,
		Amount:            json.Number(req.Amount.StringFixed(2)),
		Currency:          req.Currency,
		MerchantCode:      c.merchantCode,
		Description:       req.Description,
		ReturnURL:         req.ReturnURL,
		RedirectURL:       req.ReturnURL,
		HostedCheckout:    hostedFlag{Enabled: true},
	}

	var out checkoutBody
	if err := c.do(ctx, http.MethodPost, checkoutsPath, body, &out); err != nil {
		return nil, err
	}

	checkout := out.toCheckout()
	if checkout.ID == "" || checkout.RedirectURL == "" {
		return nil, errors.New("payment api returned a checkout without id or hosted url")
	}

	log.Info().Str("checkout_id", checkout.ID).Str("order_ref", req.Reference).Msg("payment: checkout created")
	return checkout, nil
}

func (c *Client) GetCheckout(ctx context.Context, id string) (*Checkout, error) {
	var out checkoutBody
	if err := c.do(ctx, http.MethodGet, checkoutsPath+"/"+url.PathEscape(id), nil, &out); err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
			return nil, ErrCheckoutNotFound
		}
		return nil, err
	}
	return out.toCheckout(), nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var reader io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode payment request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build payment request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to reach payment api: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		apiErr := &APIError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(raw))}
		var eb errorBody
		if json.Unmarshal(raw, &eb) == nil && eb.Message != "" {
			apiErr.Code = eb.ErrorCode
			apiErr.Message = eb.Message
		}
		log.Warn().Int("status", resp.StatusCode).Str("path", path).Str("error_code", apiErr.Code).Msg("payment: api returned an error")
		return apiErr
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode payment response: %w", err)
	}
	return nil
}

func (b checkoutBody) toCheckout() *Checkout {
	c := &Checkout{
		ID:            b.ID,
		Reference:     b.CheckoutReference,
		Amount:        b.Amount,
		Currency:      b.Currency,
		Status:        Status(strings.ToUpper(b.Status)),
		RedirectURL:   b.HostedCheckoutURL,
		TransactionID: b.TransactionID,
	}
	if c.TransactionID == "" {
		for _, tx := range b.Transactions {
			if strings.EqualFold(tx.Status, "SUCCESSFUL") {
				c.TransactionID = tx.ID
				break
			}
		}
	}
	return c
}
