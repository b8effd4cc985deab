package booking

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"marketplace/internal/opportunity"
)

type Opportunities interface {
	Get(ctx context.Context, id string) (*opportunity.Opportunity, error)
}

type Inserter interface {
	Insert(ctx context.Context, b *Booking, actor Actor) (*Booking, error)
}

type CreateRequest struct {
	OpportunityID  string    `json:"opportunityId"`
	RequestedStart time.Time `json:"requestedStart"`
	RequestedEnd   time.Time `json:"requestedEnd"`
	Notes          string    `json:"notes,omitempty"`
}

// Creator opens new bookings against published opportunities.
type Creator struct {
	Opportunities Opportunities
	Bookings      Inserter
	Publisher     Publisher // optional
	Now           func() time.Time
	NewID         func() string
}

// Create snapshots the opportunity's price into a new PENDING, UNPAID booking.
func (c *Creator) Create(ctx context.Context, actor Actor, req CreateRequest) (*Booking, error) {
	if actor.Role != RoleAdvertiser {
		return nil, newError(KindForbiddenAction, "only advertisers can request bookings", nil)
	}
	if req.RequestedStart.IsZero() || req.RequestedEnd.IsZero() {
		return nil, validationError("requestedStart and requestedEnd are required")
	}
	if !req.RequestedEnd.After(req.RequestedStart) {
		return nil, validationError("requestedEnd must be after requestedStart")
	}

	opp, err := c.Opportunities.Get(ctx, strings.TrimSpace(req.OpportunityID))
	if errors.Is(err, opportunity.ErrNotFound) {
		return nil, newError(KindNotFound, "opportunity not found", nil)
	}
	if err != nil {
		return nil, err
	}
	if opp.Status != opportunity.StatusPublished {
		return nil, validationError("opportunity is not open for booking")
	}
	if opp.PublisherID == actor.ID {
		return nil, validationError("cannot book your own opportunity")
	}
	if !opp.Covers(req.RequestedStart, req.RequestedEnd) {
		return nil, validationError("requested window is outside the opportunity's availability")
	}

	now := time.Now()
	if c.Now != nil {
		now = c.Now()
	}
	id := uuid.NewString()
	if c.NewID != nil {
		id = c.NewID()
	}

	b := &Booking{
		ID:             id,
		OpportunityID:  opp.ID,
		AdvertiserID:   actor.ID,
		PublisherID:    opp.PublisherID,
		Status:         StatusPending,
		RequestedStart: req.RequestedStart.UTC(),
		RequestedEnd:   req.RequestedEnd.UTC(),
		SelectedPrice:  opp.BasePrice,
		Currency:       opp.Currency,
		PaymentStatus:  PaymentUnpaid,
		DeliveredFiles: []string{},
		Notes:          strings.TrimSpace(req.Notes),
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	created, err := c.Bookings.Insert(ctx, b, actor)
	if err != nil {
		return nil, err
	}

	if c.Publisher != nil {
		if err := c.Publisher.PublishJSON(ctx, "booking.created", created); err != nil {
			logPublishFailure("booking.created", err)
		}
	}
	return created, nil
}
