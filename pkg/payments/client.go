package payments

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Client talks to the payment collaborator's capture API.
type Client struct {
	HTTPClient *http.Client
	BaseURL    string
	APIKey     string
}

type CaptureRequest struct {
	// Reference correlates the charge with our record (the booking id).
	Reference      string
	IdempotencyKey string
	Amount         decimal.Decimal
	Currency       string
	Description    string
}

type Receipt struct {
	ID         string    `json:"id"`
	Status     string    `json:"status"`
	CapturedAt time.Time `json:"capturedAt"`
}

// DeclinedError means the provider answered and refused the charge.
type DeclinedError struct {
	Reason string
}

func (e *DeclinedError) Error() string {
	if e.Reason == "" {
		return "payment declined"
	}
	return "payment declined: " + e.Reason
}

type captureBody struct {
	Reference   string `json:"reference"`
	Amount      string `json:"amount"`
	Currency    string `json:"currency"`
	Description string `json:"description,omitempty"`
}

type captureResponse struct {
	Receipt
	DeclineReason string `json:"declineReason,omitempty"`
}

// Capture charges req.Amount and returns only once the provider confirms the funds.
func (c Client) Capture(ctx context.Context, req CaptureRequest) (*Receipt, error) {
	if req.Amount.LessThanOrEqual(decimal.Zero) {
		return nil, fmt.Errorf("capture amount must be > 0")
	}
	body := captureBody{
		Reference:   req.Reference,
		Amount:      req.Amount.StringFixed(2),
		Currency:    strings.ToUpper(req.Currency),
		Description: req.Description,
	}

	var resp captureResponse
	status, err := c.doJSON(ctx, http.MethodPost, "/v1/captures", req.IdempotencyKey, body, &resp)
	if status == http.StatusPaymentRequired {
		return nil, &DeclinedError{Reason: resp.DeclineReason}
	}
	if err != nil {
		return nil, err
	}

	switch resp.Status {
	case "captured", "succeeded":
	case "declined", "failed":
		return nil, &DeclinedError{Reason: resp.DeclineReason}
	default:
		return nil, fmt.Errorf("payment provider returned unexpected status %q", resp.Status)
	}
	if resp.ID == "" {
		return nil, fmt.Errorf("payment provider returned no capture id")
	}
	if resp.CapturedAt.IsZero() {
		resp.CapturedAt = time.Now().UTC()
	}
	return &resp.Receipt, nil
}

func (c Client) doJSON(ctx context.Context, method, path, idempotencyKey string, reqBody any, respBody any) (int, error) {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: 20 * time.Second}
	}
	if c.BaseURL == "" {
		return 0, fmt.Errorf("missing payments base url")
	}

	var buf bytes.Buffer
	if reqBody != nil {
		if err := json.NewEncoder(&buf).Encode(reqBody); err != nil {
			return 0, err
		}
	}

	u := strings.TrimRight(c.BaseURL, "/") + path
	req, err := http.NewRequestWithContext(ctx, method, u, &buf)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.APIKey)
	}
	if idempotencyKey != "" {
		req.Header.Set("Idempotency-Key", idempotencyKey)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	b, readErr := io.ReadAll(resp.Body)
	if readErr != nil {
		return resp.StatusCode, readErr
	}

	// Decline bodies still carry a reason worth surfacing.
	if respBody != nil && len(b) > 0 {
		if err := json.Unmarshal(b, respBody); err != nil && resp.StatusCode < 300 {
			return resp.StatusCode, fmt.Errorf("decode payments response failed: %w body=%s", err, string(b))
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if len(b) > 0 {
			return resp.StatusCode, fmt.Errorf("payments api error: status=%d body=%s", resp.StatusCode, string(b))
		}
		return resp.StatusCode, fmt.Errorf("payments api error: status=%d", resp.StatusCode)
	}

	return resp.StatusCode, nil
}
