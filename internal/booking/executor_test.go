package booking

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"marketplace/pkg/payments"
)

func TestExecute_FullLifecycleToCompleted(t *testing.T) {
	store := newMemStore(sampleBooking("b1", StatusPending))
	ex, payer, pub := newExecutor(store)
	ctx := context.Background()

	b, err := ex.Execute(ctx, publisher, "b1", ActionAccept, Payload{})
	if err != nil || b.Status != StatusAccepted {
		t.Fatalf("accept: %v %v", b, err)
	}
	b, err = ex.Execute(ctx, advertiser, "b1", ActionPay, Payload{})
	if err != nil {
		t.Fatalf("pay: %v", err)
	}
	if b.Status != StatusPaid || b.PaymentStatus != PaymentPaid {
		t.Fatalf("expected PAID/PAID, got %s/%s", b.Status, b.PaymentStatus)
	}
	b, err = ex.Execute(ctx, publisher, "b1", ActionDeliver, Payload{
		DeliveredFiles: []string{"https://cdn.example.com/banner.png"},
		DeliveredNotes: "as agreed",
	})
	if err != nil || b.Status != StatusDelivered {
		t.Fatalf("deliver: %v %v", b, err)
	}
	if len(b.DeliveredFiles) != 1 || b.DeliveredNotes != "as agreed" {
		t.Fatalf("unexpected delivery fields %+v", b)
	}
	b, err = ex.Execute(ctx, advertiser, "b1", ActionApprove, Payload{})
	if err != nil || b.Status != StatusCompleted {
		t.Fatalf("approve: %v %v", b, err)
	}

	if len(payer.calls) != 1 {
		t.Fatalf("expected one capture, got %d", len(payer.calls))
	}
	call := payer.calls[0]
	if call.IdempotencyKey != "booking-pay-b1" || call.Currency != "USD" || call.Amount.StringFixed(2) != "150.00" {
		t.Fatalf("unexpected capture %+v", call)
	}
	if len(store.payments) != 1 || store.payments[0].ProviderRef != "rcpt_1" {
		t.Fatalf("unexpected payment records %+v", store.payments)
	}
	if pub.count() != 4 {
		t.Fatalf("expected 4 published events, got %d", pub.count())
	}
	ev, ok := pub.msgs[0].v.(TransitionedEvent)
	if !ok || pub.msgs[0].key != "booking.transitioned" || ev.From != StatusPending || ev.To != StatusAccepted {
		t.Fatalf("unexpected first event %+v", pub.msgs[0])
	}
}

func TestExecute_RejectCancels(t *testing.T) {
	store := newMemStore(sampleBooking("b1", StatusPending))
	ex, _, _ := newExecutor(store)

	b, err := ex.Execute(context.Background(), publisher, "b1", ActionReject, Payload{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if b.Status != StatusCancelled || b.PaymentStatus != PaymentUnpaid {
		t.Fatalf("expected CANCELLED/UNPAID, got %s/%s", b.Status, b.PaymentStatus)
	}
}

func TestExecute_AcceptTwiceIsInvalidTransition(t *testing.T) {
	store := newMemStore(sampleBooking("b1", StatusPending))
	ex, _, pub := newExecutor(store)
	ctx := context.Background()

	if _, err := ex.Execute(ctx, publisher, "b1", ActionAccept, Payload{}); err != nil {
		t.Fatalf("first accept: %v", err)
	}
	_, err := ex.Execute(ctx, publisher, "b1", ActionAccept, Payload{})
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected InvalidTransition, got %v", err)
	}
	if store.commits != 1 || pub.count() != 1 {
		t.Fatalf("replay must not write or publish: commits=%d published=%d", store.commits, pub.count())
	}
}

func TestExecute_WrongRoleIsForbidden(t *testing.T) {
	store := newMemStore(sampleBooking("b1", StatusPending))
	ex, _, _ := newExecutor(store)

	_, err := ex.Execute(context.Background(), advertiser, "b1", ActionAccept, Payload{})
	if !errors.Is(err, ErrForbiddenAction) {
		t.Fatalf("expected ForbiddenAction, got %v", err)
	}
	if got := store.stored("b1").Status; got != StatusPending {
		t.Fatalf("expected status unchanged, got %s", got)
	}
}

func TestExecute_NonParticipantUnauthorized(t *testing.T) {
	store := newMemStore(sampleBooking("b1", StatusPending))
	ex, _, _ := newExecutor(store)

	stranger := Actor{ID: "pub-2", Role: RolePublisher}
	_, err := ex.Execute(context.Background(), stranger, "b1", ActionAccept, Payload{})
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected Unauthorized, got %v", err)
	}
}

func TestExecute_MissingBookingNotFound(t *testing.T) {
	ex, _, _ := newExecutor(newMemStore())
	_, err := ex.Execute(context.Background(), publisher, "nope", ActionAccept, Payload{})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected NotFound, got %v", err)
	}
}

func TestExecute_EveryUnlistedPairLeavesRecordUnchanged(t *testing.T) {
	p := Payload{DeliveredFiles: []string{"https://cdn.example.com/a.png"}, DisputeReason: "late"}
	for _, s := range AllStatuses {
		for _, a := range AllActions {
			if _, ok := NextStatus(s, a); ok {
				continue
			}
			before := sampleBooking("b1", s)
			store := newMemStore(before)
			ex, payer, pub := newExecutor(store)

			_, err := ex.Execute(context.Background(), admin, "b1", a, p)
			if !errors.Is(err, ErrInvalidTransition) {
				t.Fatalf("(%s, %s): expected InvalidTransition, got %v", s, a, err)
			}
			after := store.stored("b1")
			if after.Status != before.Status || after.PaymentStatus != before.PaymentStatus || !after.UpdatedAt.Equal(before.UpdatedAt) {
				t.Fatalf("(%s, %s): record changed to %+v", s, a, after)
			}
			if len(payer.calls) != 0 || pub.count() != 0 {
				t.Fatalf("(%s, %s): unexpected side effects", s, a)
			}
		}
	}
}

func TestExecute_AdminCancelHasNoRow(t *testing.T) {
	store := newMemStore(sampleBooking("b1", StatusPending))
	ex, _, _ := newExecutor(store)

	_, err := ex.Execute(context.Background(), admin, "b1", ActionCancel, Payload{})
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected InvalidTransition, got %v", err)
	}
	if !strings.Contains(err.Error(), "cannot CANCEL a booking in status PENDING") {
		t.Fatalf("unexpected message %q", err.Error())
	}
}

func TestExecute_DeliverWithoutFilesIsValidationError(t *testing.T) {
	store := newMemStore(sampleBooking("b1", StatusPaid))
	ex, _, _ := newExecutor(store)

	_, err := ex.Execute(context.Background(), publisher, "b1", ActionDeliver, Payload{DeliveredNotes: "see attached"})
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if got := store.stored("b1").Status; got != StatusPaid {
		t.Fatalf("expected PAID, got %s", got)
	}
}

func TestExecute_DisputeRecordsReason(t *testing.T) {
	store := newMemStore(sampleBooking("b1", StatusDelivered))
	ex, _, _ := newExecutor(store)

	b, err := ex.Execute(context.Background(), advertiser, "b1", ActionDispute, Payload{DisputeReason: "banner never ran"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if b.Status != StatusDisputed || b.DisputeReason != "banner never ran" {
		t.Fatalf("unexpected booking %+v", b)
	}

	_, err = ex.Execute(context.Background(), advertiser, "b1", ActionApprove, Payload{})
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected DISPUTED to be terminal, got %v", err)
	}
}

func TestExecute_PaymentDeclinedLeavesAccepted(t *testing.T) {
	store := newMemStore(sampleBooking("b1", StatusAccepted))
	ex, payer, pub := newExecutor(store)
	payer.err = &payments.DeclinedError{Reason: "card_declined"}

	_, err := ex.Execute(context.Background(), advertiser, "b1", ActionPay, Payload{})
	if !errors.Is(err, ErrPaymentFailed) {
		t.Fatalf("expected PaymentFailed, got %v", err)
	}
	var be *Error
	if !errors.As(err, &be) || !strings.Contains(be.Message, "card_declined") {
		t.Fatalf("expected decline reason in message, got %v", err)
	}

	after := store.stored("b1")
	if after.Status != StatusAccepted || after.PaymentStatus != PaymentUnpaid {
		t.Fatalf("expected ACCEPTED/UNPAID, got %s/%s", after.Status, after.PaymentStatus)
	}
	if store.commits != 0 || pub.count() != 0 {
		t.Fatalf("failed payment must not commit or publish")
	}
}

func TestExecute_PayWithoutPayerFails(t *testing.T) {
	store := newMemStore(sampleBooking("b1", StatusAccepted))
	ex, _, _ := newExecutor(store)
	ex.Payer = nil

	_, err := ex.Execute(context.Background(), advertiser, "b1", ActionPay, Payload{})
	if !errors.Is(err, ErrPaymentFailed) {
		t.Fatalf("expected PaymentFailed, got %v", err)
	}
}

func TestExecute_NonPayActionsDoNotCapture(t *testing.T) {
	store := newMemStore(sampleBooking("b1", StatusPending))
	ex, payer, _ := newExecutor(store)

	if _, err := ex.Execute(context.Background(), publisher, "b1", ActionAccept, Payload{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(payer.calls) != 0 {
		t.Fatalf("expected no capture, got %d", len(payer.calls))
	}
}

// barrierStore holds every Get until all racing callers have read, so they all act on the
// same prior status.
type barrierStore struct {
	*memStore
	wg *sync.WaitGroup
}

func (s barrierStore) Get(ctx context.Context, id string) (*Booking, error) {
	b, err := s.memStore.Get(ctx, id)
	s.wg.Done()
	s.wg.Wait()
	return b, err
}

func TestExecute_ConcurrentAcceptAndRejectOneWins(t *testing.T) {
	mem := newMemStore(sampleBooking("b1", StatusPending))
	var barrier sync.WaitGroup
	barrier.Add(2)
	ex, _, _ := newExecutor(barrierStore{memStore: mem, wg: &barrier})

	actions := []Action{ActionAccept, ActionReject}
	errs := make([]error, len(actions))
	var done sync.WaitGroup
	for i, a := range actions {
		done.Add(1)
		go func(i int, a Action) {
			defer done.Done()
			_, errs[i] = ex.Execute(context.Background(), publisher, "b1", a, Payload{})
		}(i, a)
	}
	done.Wait()

	var ok, lost int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, ErrInvalidTransition):
			lost++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if ok != 1 || lost != 1 {
		t.Fatalf("expected exactly one winner, got ok=%d lost=%d", ok, lost)
	}
	final := mem.stored("b1").Status
	if final != StatusAccepted && final != StatusCancelled {
		t.Fatalf("unexpected final status %s", final)
	}
	if mem.commits != 1 {
		t.Fatalf("expected one commit, got %d", mem.commits)
	}
}
