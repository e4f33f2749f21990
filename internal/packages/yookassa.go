package packages

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

type YooKassaOptions struct {
	APIURL    string
	ShopID    string
	SecretKey string
	ReturnURL string
}

type YooKassaProvider struct {
	httpClient *http.Client
	opts       YooKassaOptions
}

func NewYooKassaProvider(opts YooKassaOptions) *YooKassaProvider {
	opts.APIURL = strings.TrimRight(opts.APIURL, "/")
	if !strings.HasSuffix(opts.APIURL, "/v3/payments") {
		opts.APIURL += "/v3/payments"
	}
	return &YooKassaProvider{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		opts:       opts,
	}
}

type ykPayment struct {
	ID           string `json:"id"`
	Status       string `json:"status"`
	Confirmation struct {
		URL string `json:"confirmation_url"`
	} `json:"confirmation"`
}

func (p *YooKassaProvider) CreatePayment(ctx context.Context, userID int64, pkg *Package) (string, string, error) {
	body := map[string]any{
		"amount": map[string]any{
			"value":    fmt.Sprintf("%.2f", pkg.Price),
			"currency": "RUB",
		},
		"capture":     true,
		"description": fmt.Sprintf("Пакет '%s' (%d кредитов)", pkg.Name, pkg.Credits),
		"confirmation": map[string]any{
			"type":       "redirect",
			"return_url": p.opts.ReturnURL,
		},
		"metadata": map[string]any{
			"telegram_id": fmt.Sprintf("%d", userID),
			"package_id":  fmt.Sprintf("%d", pkg.ID),
		},
	}

	reqBody, err := json.Marshal(body)
	if err != nil {
		return "", "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.opts.APIURL, bytes.NewReader(reqBody))
	if err != nil {
		return "", "", err
	}
	req.Header.Set("Idempotence-Key", uuid.NewString())
	req.Header.Set("Content-Type", "application/json")

	var out ykPayment
	if err := p.do(req, &out); err != nil {
		return "", "", err
	}
	if out.ID == "" || out.Confirmation.URL == "" {
		return "", "", fmt.Errorf("yookassa: empty payment in response")
	}
	return out.Confirmation.URL, out.ID, nil
}

func (p *YooKassaProvider) PaymentStatus(ctx context.Context, paymentID string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.opts.APIURL+"/"+url.PathEscape(paymentID), nil)
	if err != nil {
		return "", err
	}

	var out ykPayment
	if err := p.do(req, &out); err != nil {
		return "", err
	}
	return out.Status, nil
}

func (p *YooKassaProvider) do(req *http.Request, out any) error {
	req.SetBasicAuth(p.opts.ShopID, p.opts.SecretKey)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("yookassa request: %w", err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 300 {
		return fmt.Errorf("yookassa error status=%d body=%s", resp.StatusCode, string(raw))
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode yookassa: %w", err)
	}
	return nil
}
