package booking

import (
	"context"
	"errors"
	"log"
	"time"

	"marketplace/pkg/payments"
)

// ErrStale is returned by Store.Commit when the stored status no longer matches the
// outcome's From status.
var ErrStale = errors.New("booking status changed concurrently")

// Commit is one transition ready to be persisted.
type Commit struct {
	BookingID string
	Outcome   Outcome
	Actor     Actor
	Payment   *PaymentRecord
	At        time.Time
}

type PaymentRecord struct {
	ProviderRef string
	Amount      string
	Currency    string
	CapturedAt  time.Time
}

type Store interface {
	// Get reads the authoritative record. Missing ids return ErrNotFound.
	Get(ctx context.Context, id string) (*Booking, error)
	// Commit applies c atomically, only if the stored status still equals c.Outcome.From.
	// Otherwise it returns ErrStale and writes nothing.
	Commit(ctx context.Context, c Commit) (*Booking, error)
}

type Payer interface {
	Capture(ctx context.Context, req payments.CaptureRequest) (*payments.Receipt, error)
}

type Publisher interface {
	PublishJSON(ctx context.Context, key string, v any) error
}

// Executor applies transition actions to stored bookings.
type Executor struct {
	Store     Store
	Payer     Payer
	Publisher Publisher // optional
	Now       func() time.Time
}

func (e *Executor) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

// Execute runs one transition request end to end and returns the stored result.
func (e *Executor) Execute(ctx context.Context, actor Actor, bookingID string, action Action, p Payload) (*Booking, error) {
	b, err := e.Store.Get(ctx, bookingID)
	if err != nil {
		return nil, err
	}

	if !b.IsParticipant(actor) {
		return nil, ErrUnauthorized
	}
	if !Authorize(actor.Role, action) {
		return nil, ErrForbiddenAction
	}

	out, err := Decide(b.Status, action, p)
	if err != nil {
		return nil, err
	}

	c := Commit{BookingID: b.ID, Outcome: out, Actor: actor}

	if action == ActionPay {
		rec, err := e.capture(ctx, b)
		if err != nil {
			return nil, err
		}
		c.Payment = rec
	}

	c.At = e.now()
	updated, err := e.Store.Commit(ctx, c)
	if errors.Is(err, ErrStale) {
		if c.Payment != nil {
			// The capture used an idempotency key tied to the booking, so a retried PAY
			// resolves to the same charge.
			log.Printf("booking pay lost race booking=%s provider_ref=%s", b.ID, c.Payment.ProviderRef)
		}
		return nil, invalidTransition(b.Status, action)
	}
	if err != nil {
		return nil, err
	}

	e.publish(ctx, "booking.transitioned", TransitionedEvent{
		BookingID:  updated.ID,
		From:       out.From,
		To:         out.To,
		Action:     action,
		ActorID:    actor.ID,
		ActorRole:  actor.Role,
		OccurredAt: c.At,
	})

	return updated, nil
}

func (e *Executor) capture(ctx context.Context, b *Booking) (*PaymentRecord, error) {
	if e.Payer == nil {
		return nil, newError(KindPaymentFailed, "payments are not configured", nil)
	}
	receipt, err := e.Payer.Capture(ctx, payments.CaptureRequest{
		Reference:      b.ID,
		IdempotencyKey: "booking-pay-" + b.ID,
		Amount:         b.SelectedPrice,
		Currency:       b.Currency,
		Description:    "Booking " + b.ID,
	})
	if err != nil {
		msg := ErrPaymentFailed.Message
		var declined *payments.DeclinedError
		if errors.As(err, &declined) && declined.Reason != "" {
			msg = msg + ": " + declined.Reason
		}
		return nil, newError(KindPaymentFailed, msg, err)
	}
	return &PaymentRecord{
		ProviderRef: receipt.ID,
		Amount:      b.SelectedPrice.StringFixed(2),
		Currency:    b.Currency,
		CapturedAt:  receipt.CapturedAt,
	}, nil
}

func (e *Executor) publish(ctx context.Context, key string, v any) {
	if e.Publisher == nil {
		return
	}
	if err := e.Publisher.PublishJSON(ctx, key, v); err != nil {
		logPublishFailure(key, err)
	}
}

func logPublishFailure(key string, err error) {
	log.Printf("booking publish failed key=%s err=%v", key, err)
}

type TransitionedEvent struct {
	BookingID  string    `json:"bookingId"`
	From       Status    `json:"from"`
	To         Status    `json:"to"`
	Action     Action    `json:"action"`
	ActorID    string    `json:"actorId"`
	ActorRole  Role      `json:"actorRole"`
	OccurredAt time.Time `json:"occurredAt"`
}
