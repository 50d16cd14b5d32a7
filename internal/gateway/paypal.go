// Package gateway talks to the PayPal REST API. Every call fetches a fresh
// client-credentials token; nothing is cached between calls.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Eursukkul/booking-microservice/carpool-service/config"
	"github.com/Eursukkul/booking-microservice/carpool-service/internal/apperr"
	"github.com/Eursukkul/booking-microservice/carpool-service/pkg/logger"
	"github.com/google/uuid"
)

const (
	StatusCompleted = "COMPLETED"
	BatchSuccess    = "SUCCESS"
)

type Order struct {
	ID          string
	Status      string
	ApprovalURL string
}

type Capture struct {
	OrderID       string
	OrderStatus   string
	CaptureID     string
	CaptureStatus string
}

// Completed reports whether the provider confirmed the money moved.
func (c *Capture) Completed() bool {
	return c.OrderStatus == StatusCompleted && c.CaptureStatus == StatusCompleted && c.CaptureID != ""
}

type Refund struct {
	ID     string
	Status string
}

type PayoutItem struct {
	SenderItemID  string
	ReceiverEmail string
	Amount        float64
	Currency      string
	Note          string
}

type PayoutBatch struct {
	BatchID       string
	SenderBatchID string
	Status        string
}

func (b *PayoutBatch) Completed() bool {
	return b.Status == BatchSuccess
}

type PayPalClient struct {
	cfg  config.PayPal
	http *http.Client
	log  logger.ILogger
}

func NewPayPalClient(cfg config.PayPal, log logger.ILogger) *PayPalClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &PayPalClient{
		cfg:  cfg,
		http: &http.Client{Timeout: timeout},
		log:  log,
	}
}

type link struct {
	Href string `json:"href"`
	Rel  string `json:"rel"`
}

type money struct {
	CurrencyCode string `json:"currency_code"`
	Value        string `json:"value"`
}

func formatAmount(v float64) string {
	return fmt.Sprintf("%.2f", v)
}

func (c *PayPalClient) CreateOrder(ctx context.Context, referenceID string, amount float64, currency string) (*Order, error) {
	payload := map[string]any{
		"intent": "CAPTURE",
		"purchase_units": []map[string]any{{
			"reference_id": referenceID,
			"amount":       money{CurrencyCode: currency, Value: formatAmount(amount)},
		}},
		"application_context": map[string]string{
			"return_url": c.cfg.ReturnURL,
			"cancel_url": c.cfg.CancelURL,
		},
	}

	var resp struct {
		ID     string `json:"id"`
		Status string `json:"status"`
		Links  []link `json:"links"`
	}
	if err := c.do(ctx, "create order", "/v2/checkout/orders", payload, &resp); err != nil {
		return nil, err
	}

	order := &Order{ID: resp.ID, Status: resp.Status}
	for _, l := range resp.Links {
		if l.Rel == "approve" || l.Rel == "payer-action" {
			order.ApprovalURL = l.Href
			break
		}
	}
	return order, nil
}

func (c *PayPalClient) CaptureOrder(ctx context.Context, orderID string) (*Capture, error) {
	var resp struct {
		ID            string `json:"id"`
		Status        string `json:"status"`
		PurchaseUnits []struct {
			Payments struct {
				Captures []struct {
					ID     string `json:"id"`
					Status string `json:"status"`
				} `json:"captures"`
			} `json:"payments"`
		} `json:"purchase_units"`
	}
	path := "/v2/checkout/orders/" + url.PathEscape(orderID) + "/capture"
	if err := c.do(ctx, "capture order", path, struct{}{}, &resp); err != nil {
		return nil, err
	}

	capture := &Capture{OrderID: resp.ID, OrderStatus: resp.Status}
	if len(resp.PurchaseUnits) > 0 && len(resp.PurchaseUnits[0].Payments.Captures) > 0 {
		first := resp.PurchaseUnits[0].Payments.Captures[0]
		capture.CaptureID = first.ID
		capture.CaptureStatus = first.Status
	}
	return capture, nil
}

func (c *PayPalClient) RefundCapture(ctx context.Context, captureID string, amount float64, currency string) (*Refund, error) {
	payload := map[string]any{
		"amount": money{CurrencyCode: currency, Value: formatAmount(amount)},
	}
	var resp struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	path := "/v2/payments/captures/" + url.PathEscape(captureID) + "/refund"
	if err := c.do(ctx, "refund capture", path, payload, &resp); err != nil {
		return nil, err
	}
	return &Refund{ID: resp.ID, Status: resp.Status}, nil
}

func (c *PayPalClient) CreatePayout(ctx context.Context, item PayoutItem) (*PayoutBatch, error) {
	senderBatchID := uuid.NewString()
	payload := map[string]any{
		"sender_batch_header": map[string]string{
			"sender_batch_id": senderBatchID,
			"email_subject":   "You have a payout",
		},
		"items": []map[string]any{{
			"recipient_type": "EMAIL",
			"receiver":       item.ReceiverEmail,
			"sender_item_id": item.SenderItemID,
			"note":           item.Note,
			"amount": map[string]string{
				"currency": item.Currency,
				"value":    formatAmount(item.Amount),
			},
		}},
	}
	var resp struct {
		BatchHeader struct {
			PayoutBatchID string `json:"payout_batch_id"`
			BatchStatus   string `json:"batch_status"`
		} `json:"batch_header"`
	}
	if err := c.do(ctx, "create payout", "/v1/payments/payouts", payload, &resp); err != nil {
		return nil, err
	}
	return &PayoutBatch{
		BatchID:       resp.BatchHeader.PayoutBatchID,
		SenderBatchID: senderBatchID,
		Status:        resp.BatchHeader.BatchStatus,
	}, nil
}

func (c *PayPalClient) accessToken(ctx context.Context) (string, error) {
	const op = "access token"
	form := strings.NewReader(url.Values{"grant_type": {"client_credentials"}}.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/v1/oauth2/token", form)
	if err != nil {
		return "", &apperr.GatewayError{Op: op, Err: err}
	}
	req.SetBasicAuth(c.cfg.ClientID, c.cfg.ClientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	var tok struct {
		AccessToken string `json:"access_token"`
	}
	if err := c.send(op, req, &tok); err != nil {
		return "", err
	}
	if tok.AccessToken == "" {
		return "", &apperr.GatewayError{Op: op, Status: "empty access token"}
	}
	return tok.AccessToken, nil
}

func (c *PayPalClient) do(ctx context.Context, op, path string, payload, out any) error {
	token, err := c.accessToken(ctx)
	if err != nil {
		return err
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return &apperr.GatewayError{Op: op, Err: err}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return &apperr.GatewayError{Op: op, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("PayPal-Request-Id", uuid.NewString())

	return c.send(op, req, out)
}

func (c *PayPalClient) send(op string, req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Error("paypal request failed", logger.String("op", op), logger.Error(err))
		return &apperr.GatewayError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return &apperr.GatewayError{Op: op, StatusCode: resp.StatusCode, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.log.Error("paypal returned an error",
			logger.String("op", op),
			logger.Int("status", resp.StatusCode),
			logger.String("body", string(raw)),
		)
		return &apperr.GatewayError{Op: op, StatusCode: resp.StatusCode, Body: string(raw)}
	}
	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &apperr.GatewayError{Op: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}
