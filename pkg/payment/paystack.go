// Package payment talks to the Paystack transaction API.
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
	"strconv"
	"strings"

	"github.com/example/storefront/pkg/config"
	"go.uber.org/zap"
)

var (
	ErrUnexpectedStatus  = errors.New("unexpected status from payment provider")
	ErrMalformedResponse = errors.New("malformed response from payment provider")
)

// MinorUnits converts a stored whole-unit amount into the provider's
// smallest currency subunit.
func MinorUnits(amount int64) int64 {
	return amount * 100
}

type InitializeRequest struct {
	Email       string
	Amount      int64 // minor units
	Currency    string
	CallbackURL string
	Reference   string
}

type InitializeResult struct {
	StatusCode       int
	AuthorizationURL string
	AccessCode       string
	Reference        string
}

// Verification is the provider's view of a transaction.
type Verification struct {
	StatusCode int
	Success    bool
	Amount     int64 // minor units
	Currency   string
	Reference  string
}

type Client struct {
	baseURL    string
	secretKey  string
	httpClient *http.Client
	logger     *zap.Logger
}

func NewClient(cfg *config.PaystackConfig, logger *zap.Logger) *Client {
	return &Client{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		secretKey: cfg.SecretKey,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		logger: logger,
	}
}

type envelope struct {
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type initializeBody struct {
	Email       string `json:"email"`
	Amount      string `json:"amount"`
	Currency    string `json:"currency"`
	CallbackURL string `json:"callback_url"`
	Reference   string `json:"reference"`
}

type initializeData struct {
	AuthorizationURL string `json:"authorization_url"`
	AccessCode       string `json:"access_code"`
	Reference        string `json:"reference"`
}

type verifyData struct {
	Status    string `json:"status"`
	Amount    int64  `json:"amount"`
	Currency  string `json:"currency"`
	Reference string `json:"reference"`
}

// Initialize starts a transaction and returns the page the customer pays on.
func (c *Client) Initialize(ctx context.Context, req InitializeRequest) (*InitializeResult, error) {
	body, err := json.Marshal(initializeBody{
		Email:       req.Email,
		Amount:      strconv.FormatInt(req.Amount, 10),
		Currency:    req.Currency,
		CallbackURL: req.CallbackURL,
		Reference:   req.Reference,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode initialize request: %w", err)
	}

	status, env, err := c.do(ctx, http.MethodPost, "/transaction/initialize", body)
	if err != nil {
		return nil, err
	}

	var data initializeData
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if data.AuthorizationURL == "" {
		return nil, fmt.Errorf("%w: missing authorization_url", ErrMalformedResponse)
	}

	return &InitializeResult{
		StatusCode:       status,
		AuthorizationURL: data.AuthorizationURL,
		AccessCode:       data.AccessCode,
		Reference:        data.Reference,
	}, nil
}

// Verify fetches the outcome of the transaction with the given reference.
func (c *Client) Verify(ctx context.Context, reference string) (*Verification, error) {
	status, env, err := c.do(ctx, http.MethodGet, "/transaction/verify/"+url.PathEscape(reference), nil)
	if err != nil {
		return nil, err
	}

	var data verifyData
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	return &Verification{
		StatusCode: status,
		Success:    env.Status && data.Status == "success",
		Amount:     data.Amount,
		Currency:   data.Currency,
		Reference:  data.Reference,
	}, nil
}

func (c *Client) do(ctx context.Context, method, path string, body []byte) (int, *envelope, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.secretKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("paystack %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		c.logger.Warn("Payment provider returned non-200",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", resp.StatusCode))
		return resp.StatusCode, nil, fmt.Errorf("%w: %d", ErrUnexpectedStatus, resp.StatusCode)
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return resp.StatusCode, nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return resp.StatusCode, nil, fmt.Errorf("%w: missing data", ErrMalformedResponse)
	}

	return resp.StatusCode, &env, nil
}
