package bookingclient

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

	"marketplace/internal/api"
	"marketplace/internal/booking"
)

// Client talks to the booking API on behalf of one signed-in user.
type Client struct {
	HTTPClient *http.Client
	BaseURL    string
	Token      string
}

// APIError is a non-2xx answer from the booking API. Message is the server's text verbatim.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("booking api error: status=%d %s", e.Status, http.StatusText(e.Status))
	}
	return e.Message
}

// Request is one transition request as sent to the server.
type Request struct {
	Action booking.Action `json:"action"`
	booking.Payload
}

// Dispatch posts a transition and returns the booking exactly as the server stored it.
func (c Client) Dispatch(ctx context.Context, bookingID string, req Request) (*booking.Booking, error) {
	var out booking.Booking
	path := "/v1/bookings/" + url.PathEscape(bookingID) + "/transitions"
	if err := c.doJSON(ctx, http.MethodPost, path, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c Client) Create(ctx context.Context, req booking.CreateRequest) (*booking.Booking, error) {
	var out booking.Booking
	if err := c.doJSON(ctx, http.MethodPost, "/v1/bookings", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c Client) Get(ctx context.Context, bookingID string) (*booking.Booking, error) {
	var out struct {
		Booking booking.Booking `json:"booking"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/v1/bookings/"+url.PathEscape(bookingID), nil, &out); err != nil {
		return nil, err
	}
	return &out.Booking, nil
}

func (c Client) doJSON(ctx context.Context, method, path string, reqBody any, respBody any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: 20 * time.Second}
	}
	if c.BaseURL == "" {
		return fmt.Errorf("missing booking api base url")
	}

	var buf bytes.Buffer
	if reqBody != nil {
		if err := json.NewEncoder(&buf).Encode(reqBody); err != nil {
			return err
		}
	}

	u := strings.TrimRight(c.BaseURL, "/") + path
	req, err := http.NewRequestWithContext(ctx, method, u, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{Status: resp.StatusCode}
		var env api.ErrorEnvelope
		if json.Unmarshal(b, &env) == nil {
			apiErr.Code = env.Error.Code
			apiErr.Message = env.Error.Message
		}
		return apiErr
	}

	if respBody != nil && len(b) > 0 {
		if err := json.Unmarshal(b, respBody); err != nil {
			return fmt.Errorf("decode booking response failed: %w body=%s", err, string(b))
		}
	}
	return nil
}
