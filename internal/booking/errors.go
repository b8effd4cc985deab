package booking

import "fmt"

type Kind string

const (
	KindNotFound          Kind = "NotFound"
	KindUnauthorized      Kind = "Unauthorized"
	KindForbiddenAction   Kind = "ForbiddenAction"
	KindInvalidTransition Kind = "InvalidTransition"
	KindValidation        Kind = "ValidationError"
	KindPaymentFailed     Kind = "PaymentFailed"
)

// Error is a request-scoped failure of a booking operation. Message is safe to show to
// the caller verbatim.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same Kind, so errors.Is(err, ErrInvalidTransition) works.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

var (
	ErrNotFound          = &Error{Kind: KindNotFound, Message: "booking not found"}
	ErrUnauthorized      = &Error{Kind: KindUnauthorized, Message: "caller is not a participant of this booking"}
	ErrForbiddenAction   = &Error{Kind: KindForbiddenAction, Message: "role may not perform this action"}
	ErrInvalidTransition = &Error{Kind: KindInvalidTransition, Message: "action does not apply to the booking's current status"}
	ErrValidation        = &Error{Kind: KindValidation, Message: "invalid request"}
	ErrPaymentFailed     = &Error{Kind: KindPaymentFailed, Message: "payment could not be captured"}
)

func newError(kind Kind, msg string, cause error) *Error {
	return &Error{Kind: kind, Message: msg, Err: cause}
}

func invalidTransition(from Status, action Action) *Error {
	return newError(KindInvalidTransition, fmt.Sprintf("cannot %s a booking in status %s", action, from), nil)
}

func validationError(msg string) *Error {
	return newError(KindValidation, msg, nil)
}
