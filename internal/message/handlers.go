package message

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"marketplace/internal/api"
	"marketplace/internal/booking"
)

const (
	maxBodyLen  = 4000
	threadLimit = 500
)

// Store persists a booking's message thread.
type Store interface {
	Insert(ctx context.Context, m Message) (*Message, error)
	ListByBooking(ctx context.Context, bookingID string, limit int) ([]Message, error)
}

type Bookings interface {
	Get(ctx context.Context, id string) (*booking.Booking, error)
}

type Publisher interface {
	PublishJSON(ctx context.Context, key string, v any) error
}

// Handlers serve the per-booking thread. Messages never read or change booking status;
// the booking is loaded only to check who may see the thread.
type Handlers struct {
	Bookings  Bookings
	Messages  Store
	Publisher Publisher // optional
	Now       func() time.Time
}

func (h Handlers) participant(w http.ResponseWriter, r *http.Request) (*booking.Booking, booking.Actor, bool) {
	id := api.IdentityFromContext(r.Context())
	if id == nil {
		api.WriteError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing caller identity")
		return nil, booking.Actor{}, false
	}
	role, err := booking.ParseRole(id.Role)
	if err != nil {
		api.WriteError(w, http.StatusForbidden, "UNAUTHORIZED", booking.ErrUnauthorized.Message)
		return nil, booking.Actor{}, false
	}
	actor := booking.Actor{ID: id.UserID, Role: role}

	b, err := h.Bookings.Get(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, booking.ErrNotFound) {
		api.WriteError(w, http.StatusNotFound, "NOT_FOUND", "booking not found")
		return nil, actor, false
	}
	if err != nil {
		log.Printf("message load booking err=%v", err)
		api.WriteError(w, http.StatusInternalServerError, "INTERNAL", "internal error")
		return nil, actor, false
	}
	if !b.IsParticipant(actor) {
		api.WriteError(w, http.StatusForbidden, "UNAUTHORIZED", booking.ErrUnauthorized.Message)
		return nil, actor, false
	}
	return b, actor, true
}

func (h Handlers) List(w http.ResponseWriter, r *http.Request) {
	b, _, ok := h.participant(w, r)
	if !ok {
		return
	}
	items, err := h.Messages.ListByBooking(r.Context(), b.ID, threadLimit)
	if err != nil {
		log.Printf("message list booking=%s err=%v", b.ID, err)
		api.WriteError(w, http.StatusInternalServerError, "INTERNAL", "internal error")
		return
	}
	api.WriteJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (h Handlers) Create(w http.ResponseWriter, r *http.Request) {
	b, actor, ok := h.participant(w, r)
	if !ok {
		return
	}

	var req struct {
		Body string `json:"body"`
	}
	if !api.DecodeJSON(w, r, &req) {
		return
	}
	body := strings.TrimSpace(req.Body)
	if body == "" {
		api.WriteError(w, http.StatusBadRequest, "VALIDATION_FAILED", "body is required")
		return
	}
	if utf8.RuneCountInString(body) > maxBodyLen {
		api.WriteError(w, http.StatusBadRequest, "VALIDATION_FAILED", "body is too long")
		return
	}

	now := time.Now().UTC()
	if h.Now != nil {
		now = h.Now()
	}
	m, err := h.Messages.Insert(r.Context(), Message{
		ID:         uuid.NewString(),
		BookingID:  b.ID,
		SenderID:   actor.ID,
		SenderRole: string(actor.Role),
		Body:       body,
		CreatedAt:  now,
	})
	if err != nil {
		log.Printf("message insert booking=%s err=%v", b.ID, err)
		api.WriteError(w, http.StatusInternalServerError, "INTERNAL", "internal error")
		return
	}

	if h.Publisher != nil {
		if err := h.Publisher.PublishJSON(r.Context(), "message.posted", m); err != nil {
			log.Printf("message publish failed booking=%s err=%v", b.ID, err)
		}
	}
	api.WriteJSON(w, http.StatusCreated, m)
}
