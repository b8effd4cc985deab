package booking

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"marketplace/internal/audit"
	"marketplace/internal/events"
	"marketplace/pkg/db"
)

const bookingColumns = `
id, opportunity_id, advertiser_id, publisher_id, status, requested_start, requested_end,
selected_price::text, currency, payment_status, delivered_files, delivered_notes, dispute_reason,
notes, created_at, updated_at`

type Repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

func scanBooking(row pgx.Row) (*Booking, error) {
	var b Booking
	var price string
	var deliveredNotes, disputeReason, notes *string
	if err := row.Scan(
		&b.ID, &b.OpportunityID, &b.AdvertiserID, &b.PublisherID, &b.Status, &b.RequestedStart, &b.RequestedEnd,
		&price, &b.Currency, &b.PaymentStatus, &b.DeliveredFiles, &deliveredNotes, &disputeReason,
		&notes, &b.CreatedAt, &b.UpdatedAt,
	); err != nil {
		return nil, err
	}
	d, err := decimal.NewFromString(price)
	if err != nil {
		return nil, fmt.Errorf("booking %s: bad selected_price %q: %w", b.ID, price, err)
	}
	b.SelectedPrice = d
	if b.DeliveredFiles == nil {
		b.DeliveredFiles = []string{}
	}
	if deliveredNotes != nil {
		b.DeliveredNotes = *deliveredNotes
	}
	if disputeReason != nil {
		b.DisputeReason = *disputeReason
	}
	if notes != nil {
		b.Notes = *notes
	}
	return &b, nil
}

func (r *Repository) Get(ctx context.Context, id string) (*Booking, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrNotFound
	}
	q := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = $1`
	b, err := scanBooking(r.db.QueryRow(ctx, q, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return b, err
}

// Commit flips the status with a compare-and-set on the expected prior status and writes
// payment, timeline and audit rows in the same transaction.
func (r *Repository) Commit(ctx context.Context, c Commit) (*Booking, error) {
	var out *Booking
	err := db.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		o := c.Outcome
		var paymentStatus *string
		if o.PaymentStatus != nil {
			s := string(*o.PaymentStatus)
			paymentStatus = &s
		}
		files := o.DeliveredFiles
		if files == nil {
			files = []string{}
		}

		q := `
UPDATE bookings
SET status = $3,
    payment_status = COALESCE($4, payment_status),
    delivered_files = delivered_files || $5::text[],
    delivered_notes = COALESCE($6, delivered_notes),
    dispute_reason = COALESCE($7, dispute_reason),
    updated_at = $8
WHERE id = $1 AND status = $2
RETURNING ` + bookingColumns
		b, err := scanBooking(tx.QueryRow(ctx, q,
			c.BookingID, string(o.From), string(o.To), paymentStatus, files, o.DeliveredNotes, o.DisputeReason, c.At,
		))
		if errors.Is(err, pgx.ErrNoRows) {
			var exists bool
			if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM bookings WHERE id = $1)`, c.BookingID).Scan(&exists); err != nil {
				return err
			}
			if !exists {
				return ErrNotFound
			}
			return ErrStale
		}
		if err != nil {
			return err
		}

		if c.Payment != nil {
			const qPay = `
INSERT INTO booking_payments (booking_id, provider_ref, amount, currency, captured_at)
VALUES ($1, $2, $3::numeric, $4, $5)
`
			if _, err := tx.Exec(ctx, qPay, b.ID, c.Payment.ProviderRef, c.Payment.Amount, c.Payment.Currency, c.Payment.CapturedAt); err != nil {
				if db.IsUniqueViolation(err) {
					return ErrStale
				}
				return err
			}
		}

		actor := string(c.Actor.Role)
		data := map[string]any{"from": o.From, "to": o.To, "action": o.Action}
		if c.Payment != nil {
			data["providerRef"] = c.Payment.ProviderRef
		}
		if err := events.Insert(ctx, tx, b.ID, "STATUS_CHANGED", transitionSummary(o), actor, c.At, data); err != nil {
			return err
		}
		bookingID := b.ID
		if err := audit.Insert(ctx, tx, &bookingID, string(o.Action), c.Actor.ID, actor, data); err != nil {
			return err
		}

		out = b
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func transitionSummary(o Outcome) string {
	switch o.Action {
	case ActionAccept:
		return "Publisher accepted the booking"
	case ActionReject:
		return "Publisher rejected the booking"
	case ActionPay:
		return "Advertiser paid"
	case ActionDeliver:
		return "Publisher delivered"
	case ActionApprove:
		return "Advertiser approved the delivery"
	case ActionDispute:
		return "Advertiser disputed the delivery"
	}
	return fmt.Sprintf("Status changed %s -> %s", o.From, o.To)
}

// Insert stores a new PENDING booking plus its creation event.
func (r *Repository) Insert(ctx context.Context, b *Booking, actor Actor) (*Booking, error) {
	var out *Booking
	err := db.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		q := `
INSERT INTO bookings (id, opportunity_id, advertiser_id, publisher_id, status, requested_start, requested_end,
                      selected_price, currency, payment_status, notes, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8::numeric, $9, $10, NULLIF($11, ''), $12, $12)
RETURNING ` + bookingColumns
		created, err := scanBooking(tx.QueryRow(ctx, q,
			b.ID, b.OpportunityID, b.AdvertiserID, b.PublisherID, string(StatusPending), b.RequestedStart, b.RequestedEnd,
			b.SelectedPrice.String(), b.Currency, string(PaymentUnpaid), b.Notes, b.CreatedAt,
		))
		if err != nil {
			return err
		}

		data := map[string]any{"opportunityId": created.OpportunityID, "selectedPrice": created.SelectedPrice, "currency": created.Currency}
		if err := events.Insert(ctx, tx, created.ID, "CREATED", "Advertiser requested a booking", string(actor.Role), created.CreatedAt, data); err != nil {
			return err
		}
		bookingID := created.ID
		if err := audit.Insert(ctx, tx, &bookingID, "CREATE", actor.ID, string(actor.Role), data); err != nil {
			return err
		}
		out = created
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

type ListFilter struct {
	Actor  Actor
	Status Status
	Limit  int
}

// List returns the caller's bookings, newest first. Admins see every booking.
func (r *Repository) List(ctx context.Context, f ListFilter) ([]Booking, error) {
	var where []string
	var args []any
	switch f.Actor.Role {
	case RoleAdvertiser:
		args = append(args, f.Actor.ID)
		where = append(where, fmt.Sprintf("advertiser_id = $%d", len(args)))
	case RolePublisher:
		args = append(args, f.Actor.ID)
		where = append(where, fmt.Sprintf("publisher_id = $%d", len(args)))
	case RoleAdmin:
	default:
		return []Booking{}, nil
	}
	if f.Status != "" {
		args = append(args, string(f.Status))
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	limit := f.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	args = append(args, limit)

	q := `SELECT ` + bookingColumns + ` FROM bookings`
	if len(where) > 0 {
		q += ` WHERE ` + strings.Join(where, " AND ")
	}
	q += fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d`, len(args))

	rows, err := r.db.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Booking{}
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *b)
	}
	return out, rows.Err()
}

var _ Store = (*Repository)(nil)
