package audit

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5"
)

// Insert records who did what. bookingID may be nil for actions not tied to a booking.
func Insert(ctx context.Context, tx pgx.Tx, bookingID *string, action, actorID, actorRole string, metadata any) error {
	var s *string
	if metadata != nil {
		b, err := json.Marshal(metadata)
		if err != nil {
			return err
		}
		str := string(b)
		s = &str
	}
	const q = `
INSERT INTO audit_logs (booking_id, action, actor_id, actor_role, metadata)
VALUES ($1, $2, $3, $4, CAST($5 AS jsonb))
`
	_, err := tx.Exec(ctx, q, bookingID, action, actorID, actorRole, s)
	return err
}
