package message

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Message struct {
	ID         string    `json:"id"`
	BookingID  string    `json:"bookingId"`
	SenderID   string    `json:"senderId"`
	SenderRole string    `json:"senderRole"`
	Body       string    `json:"body"`
	CreatedAt  time.Time `json:"createdAt"`
}

type Repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Insert(ctx context.Context, m Message) (*Message, error) {
	const q = `
INSERT INTO booking_messages (id, booking_id, sender_id, sender_role, body, created_at)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING id, booking_id, sender_id, sender_role, body, created_at
`
	var out Message
	err := r.db.QueryRow(ctx, q, m.ID, m.BookingID, m.SenderID, m.SenderRole, m.Body, m.CreatedAt).
		Scan(&out.ID, &out.BookingID, &out.SenderID, &out.SenderRole, &out.Body, &out.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *Repository) ListByBooking(ctx context.Context, bookingID string, limit int) ([]Message, error) {
	const q = `
SELECT id, booking_id, sender_id, sender_role, body, created_at
FROM booking_messages
WHERE booking_id = $1
ORDER BY created_at ASC, id ASC
LIMIT $2
`
	rows, err := r.db.Query(ctx, q, bookingID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Message{}
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.BookingID, &m.SenderID, &m.SenderRole, &m.Body, &m.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
