package booking

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type Booking struct {
	ID             string          `json:"id"`
	OpportunityID  string          `json:"opportunityId"`
	AdvertiserID   string          `json:"advertiserId"`
	PublisherID    string          `json:"publisherId"`
	Status         Status          `json:"status"`
	RequestedStart time.Time       `json:"requestedStart"`
	RequestedEnd   time.Time       `json:"requestedEnd"`
	SelectedPrice  decimal.Decimal `json:"selectedPrice"`
	Currency       string          `json:"currency"`
	PaymentStatus  PaymentStatus   `json:"paymentStatus"`
	DeliveredFiles []string        `json:"deliveredFiles"`
	DeliveredNotes string          `json:"deliveredNotes,omitempty"`
	DisputeReason  string          `json:"disputeReason,omitempty"`
	Notes          string          `json:"notes,omitempty"`
	CreatedAt      time.Time       `json:"createdAt"`
	UpdatedAt      time.Time       `json:"updatedAt"`
}

// Actor is the authenticated caller as supplied by the session layer.
type Actor struct {
	ID   string
	Role Role
}

// IsParticipant reports whether actor may act on b at all. The party is derived from the
// role: an advertiser must be this booking's advertiser, a publisher its publisher.
func (b *Booking) IsParticipant(actor Actor) bool {
	switch actor.Role {
	case RoleAdmin:
		return true
	case RoleAdvertiser:
		return actor.ID != "" && actor.ID == b.AdvertiserID
	case RolePublisher:
		return actor.ID != "" && actor.ID == b.PublisherID
	}
	return false
}

// Payload carries the action-specific fields of a transition request.
type Payload struct {
	DeliveredFiles []string `json:"deliveredFiles,omitempty"`
	DeliveredNotes string   `json:"deliveredNotes,omitempty"`
	DisputeReason  string   `json:"disputeReason,omitempty"`
}

// Outcome is the full set of writes a transition makes. Nil pointers mean "unchanged".
type Outcome struct {
	From           Status
	To             Status
	Action         Action
	PaymentStatus  *PaymentStatus
	DeliveredFiles []string
	DeliveredNotes *string
	DisputeReason  *string
}

// Decide computes the next state for (current, action, payload) without touching storage.
// Row lookup comes before payload validation, so a DELIVER with no files against a PENDING
// booking reports InvalidTransition, not ValidationError.
func Decide(current Status, action Action, p Payload) (Outcome, error) {
	next, ok := NextStatus(current, action)
	if !ok {
		return Outcome{}, invalidTransition(current, action)
	}
	out := Outcome{From: current, To: next, Action: action}

	switch action {
	case ActionPay:
		paid := PaymentPaid
		out.PaymentStatus = &paid

	case ActionDeliver:
		files, err := normalizeFiles(p.DeliveredFiles)
		if err != nil {
			return Outcome{}, err
		}
		notes := strings.TrimSpace(p.DeliveredNotes)
		out.DeliveredFiles = files
		out.DeliveredNotes = &notes

	case ActionDispute:
		reason := strings.TrimSpace(p.DisputeReason)
		if reason == "" {
			return Outcome{}, validationError("disputeReason is required")
		}
		out.DisputeReason = &reason
	}

	return out, nil
}

// Apply returns a copy of b with the outcome's writes. Existing delivered files are kept
// ahead of the new ones.
func (o Outcome) Apply(b Booking, now time.Time) Booking {
	b.Status = o.To
	if o.PaymentStatus != nil {
		b.PaymentStatus = *o.PaymentStatus
	}
	if len(o.DeliveredFiles) > 0 {
		files := make([]string, 0, len(b.DeliveredFiles)+len(o.DeliveredFiles))
		files = append(files, b.DeliveredFiles...)
		b.DeliveredFiles = append(files, o.DeliveredFiles...)
	}
	if o.DeliveredNotes != nil {
		b.DeliveredNotes = *o.DeliveredNotes
	}
	if o.DisputeReason != nil {
		b.DisputeReason = *o.DisputeReason
	}
	b.UpdatedAt = now
	return b
}

const maxDeliveredFiles = 50

func normalizeFiles(in []string) ([]string, error) {
	if len(in) == 0 {
		return nil, validationError("deliveredFiles must contain at least one file")
	}
	if len(in) > maxDeliveredFiles {
		return nil, validationError(fmt.Sprintf("deliveredFiles must contain at most %d files", maxDeliveredFiles))
	}
	out := make([]string, 0, len(in))
	for _, raw := range in {
		s := strings.TrimSpace(raw)
		u, err := url.Parse(s)
		if s == "" || err != nil || !u.IsAbs() || u.Host == "" {
			return nil, validationError("deliveredFiles must be absolute URIs")
		}
		out = append(out, s)
	}
	return out, nil
}
