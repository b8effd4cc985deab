package bookingclient

import (
	"context"
	"errors"
	"sync"

	"marketplace/internal/booking"
)

type Dispatcher interface {
	Dispatch(ctx context.Context, bookingID string, req Request) (*booking.Booking, error)
}

// View holds the booking a screen is currently showing. It never derives a status on its
// own: the shown record only ever changes to what the server returned.
type View struct {
	mu      sync.Mutex
	current booking.Booking
	lastErr string
}

func NewView(b booking.Booking) *View {
	return &View{current: b}
}

func (v *View) Booking() booking.Booking {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.current
}

// LastError is the message of the most recent failed Apply, cleared on success.
func (v *View) LastError() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.lastErr
}

// Apply sends req for the shown booking. On success the shown record is replaced wholesale;
// on failure it is left as it was and the error is returned.
func (v *View) Apply(ctx context.Context, d Dispatcher, req Request) error {
	id := v.Booking().ID

	updated, err := d.Dispatch(ctx, id, req)

	v.mu.Lock()
	defer v.mu.Unlock()
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) {
			v.lastErr = apiErr.Error()
		} else {
			v.lastErr = err.Error()
		}
		return err
	}
	v.current = *updated
	v.lastErr = ""
	return nil
}
