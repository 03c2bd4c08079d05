// README: Payment provider contract and HTTP implementation (initialize/verify only).
package payments

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// Provider is the opaque gateway the order module talks to. Tokenization,
// webhooks and retries live on the other side of this contract.
type Provider interface {
	Initialize(ctx context.Context, amount float64, currency, reference string) (InitResult, error)
	Verify(ctx context.Context, reference string) (VerifyResult, error)
}

// HTTPProvider speaks a Paystack-style JSON API.
type HTTPProvider struct {
	baseURL string
	secret  string
	client  *http.Client
}

func NewHTTPProvider(baseURL, secret string) *HTTPProvider {
	return &HTTPProvider{
		baseURL: baseURL,
		secret:  secret,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

type initRequest struct {
	Amount    float64 `json:"amount"`
	Currency  string  `json:"currency"`
	Reference string  `json:"reference"`
}

type initResponse struct {
	Data struct {
		Reference        string `json:"reference"`
		AuthorizationURL string `json:"authorization_url"`
	} `json:"data"`
}

type verifyResponse struct {
	Data struct {
		Status string    `json:"status"`
		Amount float64   `json:"amount"`
		PaidAt time.Time `json:"paid_at"`
	} `json:"data"`
}

func (p *HTTPProvider) Initialize(ctx context.Context, amount float64, currency, reference string) (InitResult, error) {
	body, err := json.Marshal(initRequest{Amount: amount, Currency: currency, Reference: reference})
	if err != nil {
		return InitResult{}, err
	}
	var out initResponse
	if err := p.do(ctx, http.MethodPost, "/transaction/initialize", body, &out); err != nil {
		return InitResult{}, fmt.Errorf("payment initialize: %w", err)
	}
	return InitResult{Reference: out.Data.Reference, RedirectURL: out.Data.AuthorizationURL}, nil
}

func (p *HTTPProvider) Verify(ctx context.Context, reference string) (VerifyResult, error) {
	var out verifyResponse
	path := "/transaction/verify/" + url.PathEscape(reference)
	if err := p.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return VerifyResult{}, fmt.Errorf("payment verify: %w", err)
	}
	status := StatusFailed
	if out.Data.Status == "success" {
		status = StatusCompleted
	}
	return VerifyResult{Status: status, Amount: out.Data.Amount, PaidAt: out.Data.PaidAt}, nil
}

func (p *HTTPProvider) do(ctx context.Context, method, path string, body []byte, out any) error {
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, p.baseURL+path, rd)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+p.secret)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("gateway returned %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
