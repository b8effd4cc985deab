package booking

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"marketplace/internal/api"
	"marketplace/internal/events"
)

type Reader interface {
	Get(ctx context.Context, id string) (*Booking, error)
	List(ctx context.Context, f ListFilter) ([]Booking, error)
}

type TimelineReader interface {
	ListByBooking(ctx context.Context, bookingID string) ([]events.Event, error)
}

type Handlers struct {
	Bookings Reader
	Timeline TimelineReader
	Executor *Executor
	Creator  *Creator
}

func actorFromRequest(w http.ResponseWriter, r *http.Request) (Actor, bool) {
	id := api.IdentityFromContext(r.Context())
	if id == nil {
		api.WriteError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing caller identity")
		return Actor{}, false
	}
	role, err := ParseRole(id.Role)
	if err != nil {
		writeError(w, ErrUnauthorized)
		return Actor{}, false
	}
	return Actor{ID: id.UserID, Role: role}, true
}

// writeError maps booking errors onto the API error envelope. Anything that is not a
// *Error is logged and reported as INTERNAL.
func writeError(w http.ResponseWriter, err error) {
	var be *Error
	if !errors.As(err, &be) {
		log.Printf("booking internal error err=%v", err)
		api.WriteError(w, http.StatusInternalServerError, "INTERNAL", "internal error")
		return
	}
	switch be.Kind {
	case KindNotFound:
		api.WriteError(w, http.StatusNotFound, "NOT_FOUND", be.Message)
	case KindUnauthorized:
		api.WriteError(w, http.StatusForbidden, "UNAUTHORIZED", be.Message)
	case KindForbiddenAction:
		api.WriteError(w, http.StatusForbidden, "FORBIDDEN_ACTION", be.Message)
	case KindInvalidTransition:
		api.WriteError(w, http.StatusConflict, "INVALID_STATE_TRANSITION", be.Message)
	case KindValidation:
		api.WriteError(w, http.StatusBadRequest, "VALIDATION_FAILED", be.Message)
	case KindPaymentFailed:
		api.WriteError(w, http.StatusPaymentRequired, "PAYMENT_FAILED", be.Message)
	default:
		api.WriteError(w, http.StatusInternalServerError, "INTERNAL", "internal error")
	}
}

func (h Handlers) List(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(w, r)
	if !ok {
		return
	}

	f := ListFilter{Actor: actor}
	if s := r.URL.Query().Get("status"); s != "" {
		st, err := ParseStatus(s)
		if err != nil {
			api.WriteError(w, http.StatusBadRequest, "VALIDATION_FAILED", "invalid status")
			return
		}
		f.Status = st
	}
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			api.WriteError(w, http.StatusBadRequest, "VALIDATION_FAILED", "invalid limit")
			return
		}
		f.Limit = n
	}

	items, err := h.Bookings.List(r.Context(), f)
	if err != nil {
		writeError(w, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, map[string]any{"items": items})
}

// loadVisible returns the booking only if the caller is one of its parties or an admin.
func (h Handlers) loadVisible(w http.ResponseWriter, r *http.Request, actor Actor) (*Booking, bool) {
	id := chi.URLParam(r, "id")
	if id == "" {
		api.WriteError(w, http.StatusBadRequest, "VALIDATION_FAILED", "missing id")
		return nil, false
	}
	b, err := h.Bookings.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return nil, false
	}
	if !b.IsParticipant(actor) {
		writeError(w, ErrUnauthorized)
		return nil, false
	}
	return b, true
}

func (h Handlers) Get(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(w, r)
	if !ok {
		return
	}
	b, ok := h.loadVisible(w, r, actor)
	if !ok {
		return
	}

	allowed := []Action{}
	for _, a := range ActionsFrom(b.Status) {
		if Authorize(actor.Role, a) {
			allowed = append(allowed, a)
		}
	}
	api.WriteJSON(w, http.StatusOK, map[string]any{
		"booking":        b,
		"allowedActions": allowed,
	})
}

func (h Handlers) Create(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(w, r)
	if !ok {
		return
	}

	var req CreateRequest
	if !api.DecodeJSON(w, r, &req) {
		return
	}

	b, err := h.Creator.Create(r.Context(), actor, req)
	if err != nil {
		writeError(w, err)
		return
	}
	api.WriteJSON(w, http.StatusCreated, b)
}

type TransitionRequest struct {
	Action string `json:"action"`
	Payload
}

func (h Handlers) Transition(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(w, r)
	if !ok {
		return
	}

	id := chi.URLParam(r, "id")
	if id == "" {
		api.WriteError(w, http.StatusBadRequest, "VALIDATION_FAILED", "missing id")
		return
	}

	var req TransitionRequest
	if !api.DecodeJSON(w, r, &req) {
		return
	}
	action, err := ParseAction(req.Action)
	if err != nil {
		api.WriteError(w, http.StatusBadRequest, "VALIDATION_FAILED", "invalid action")
		return
	}

	b, err := h.Executor.Execute(r.Context(), actor, id, action, req.Payload)
	if err != nil {
		writeError(w, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, b)
}

func (h Handlers) Events(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(w, r)
	if !ok {
		return
	}
	b, ok := h.loadVisible(w, r, actor)
	if !ok {
		return
	}

	evs, err := h.Timeline.ListByBooking(r.Context(), b.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, map[string]any{"items": evs})
}
