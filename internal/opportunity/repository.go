package opportunity

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

type Repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Get(ctx context.Context, id string) (*Opportunity, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrNotFound
	}
	const q = `
SELECT id, publisher_id, title, placement_type, base_price::text, currency, status, available_from, available_to
FROM opportunities
WHERE id = $1
`
	var o Opportunity
	var price string
	if err := r.db.QueryRow(ctx, q, id).Scan(
		&o.ID, &o.PublisherID, &o.Title, &o.PlacementType, &price, &o.Currency, &o.Status, &o.AvailableFrom, &o.AvailableTo,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	d, err := decimal.NewFromString(price)
	if err != nil {
		return nil, err
	}
	o.BasePrice = d
	return &o, nil
}

// Upsert writes a listing as-is. Listings are owned by the catalog side; only dev tooling
// seeds them here.
func (r *Repository) Upsert(ctx context.Context, o Opportunity) (*Opportunity, error) {
	const q = `
INSERT INTO opportunities (id, publisher_id, title, placement_type, base_price, currency, status, available_from, available_to)
VALUES ($1, $2, $3, $4, $5::numeric, $6, $7, $8, $9)
ON CONFLICT (id) DO UPDATE
SET publisher_id = EXCLUDED.publisher_id,
    title = EXCLUDED.title,
    placement_type = EXCLUDED.placement_type,
    base_price = EXCLUDED.base_price,
    currency = EXCLUDED.currency,
    status = EXCLUDED.status,
    available_from = EXCLUDED.available_from,
    available_to = EXCLUDED.available_to,
    updated_at = NOW()
`
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	if _, err := r.db.Exec(ctx, q,
		o.ID, o.PublisherID, o.Title, o.PlacementType, o.BasePrice.String(), o.Currency, string(o.Status), o.AvailableFrom, o.AvailableTo,
	); err != nil {
		return nil, err
	}
	return r.Get(ctx, o.ID)
}
