package opportunity

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusDraft     Status = "DRAFT"
	StatusPublished Status = "PUBLISHED"
	StatusArchived  Status = "ARCHIVED"
)

var ErrNotFound = errors.New("opportunity not found")

// Opportunity is a publisher's listing of an ad placement. Read-only here.
type Opportunity struct {
	ID            string          `json:"id"`
	PublisherID   string          `json:"publisherId"`
	Title         string          `json:"title"`
	PlacementType string          `json:"placementType"`
	BasePrice     decimal.Decimal `json:"basePrice"`
	Currency      string          `json:"currency"`
	Status        Status          `json:"status"`
	AvailableFrom *time.Time      `json:"availableFrom,omitempty"`
	AvailableTo   *time.Time      `json:"availableTo,omitempty"`
}

// Covers reports whether [start, end) falls inside the availability window. Open ends are
// unbounded.
func (o *Opportunity) Covers(start, end time.Time) bool {
	if o.AvailableFrom != nil && start.Before(*o.AvailableFrom) {
		return false
	}
	if o.AvailableTo != nil && end.After(*o.AvailableTo) {
		return false
	}
	return true
}
