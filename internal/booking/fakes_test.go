package booking

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"marketplace/internal/opportunity"
	"marketplace/pkg/payments"
)

var fixedNow = time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

var (
	advertiser = Actor{ID: "adv-1", Role: RoleAdvertiser}
	publisher  = Actor{ID: "pub-1", Role: RolePublisher}
	admin      = Actor{ID: "admin-1", Role: RoleAdmin}
)

func sampleBooking(id string, status Status) Booking {
	ps := PaymentUnpaid
	switch status {
	case StatusPaid, StatusInProgress, StatusDelivered, StatusCompleted, StatusDisputed:
		ps = PaymentPaid
	}
	return Booking{
		ID:             id,
		OpportunityID:  "opp-1",
		AdvertiserID:   advertiser.ID,
		PublisherID:    publisher.ID,
		Status:         status,
		RequestedStart: fixedNow.Add(24 * time.Hour),
		RequestedEnd:   fixedNow.Add(48 * time.Hour),
		SelectedPrice:  decimal.RequireFromString("150.00"),
		Currency:       "USD",
		PaymentStatus:  ps,
		DeliveredFiles: []string{},
		CreatedAt:      fixedNow,
		UpdatedAt:      fixedNow,
	}
}

type memStore struct {
	mu       sync.Mutex
	items    map[string]Booking
	payments []PaymentRecord
	commits  int
}

func newMemStore(bs ...Booking) *memStore {
	s := &memStore{items: map[string]Booking{}}
	for _, b := range bs {
		s.items[b.ID] = b
	}
	return s
}

func (s *memStore) Get(_ context.Context, id string) (*Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.items[id]
	if !ok {
		return nil, ErrNotFound
	}
	b.DeliveredFiles = append([]string{}, b.DeliveredFiles...)
	return &b, nil
}

func (s *memStore) Commit(_ context.Context, c Commit) (*Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.items[c.BookingID]
	if !ok {
		return nil, ErrNotFound
	}
	if b.Status != c.Outcome.From {
		return nil, ErrStale
	}
	next := c.Outcome.Apply(b, c.At)
	s.items[c.BookingID] = next
	if c.Payment != nil {
		s.payments = append(s.payments, *c.Payment)
	}
	s.commits++
	return &next, nil
}

func (s *memStore) Insert(_ context.Context, b *Booking, _ Actor) (*Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[b.ID] = *b
	out := *b
	return &out, nil
}

func (s *memStore) List(_ context.Context, f ListFilter) ([]Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []Booking{}
	for _, b := range s.items {
		if !b.IsParticipant(f.Actor) {
			continue
		}
		if f.Status != "" && b.Status != f.Status {
			continue
		}
		out = append(out, b)
	}
	return out, nil
}

// stored returns the current record without going through Get.
func (s *memStore) stored(id string) Booking {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.items[id]
}

type fakePayer struct {
	mu    sync.Mutex
	calls []payments.CaptureRequest
	err   error
}

func (p *fakePayer) Capture(_ context.Context, req payments.CaptureRequest) (*payments.Receipt, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, req)
	if p.err != nil {
		return nil, p.err
	}
	return &payments.Receipt{ID: "rcpt_1", Status: "captured", CapturedAt: fixedNow}, nil
}

type published struct {
	key string
	v   any
}

type fakePublisher struct {
	mu   sync.Mutex
	msgs []published
}

func (p *fakePublisher) PublishJSON(_ context.Context, key string, v any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.msgs = append(p.msgs, published{key: key, v: v})
	return nil
}

func (p *fakePublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.msgs)
}

type fakeOpportunities map[string]*opportunity.Opportunity

func (f fakeOpportunities) Get(_ context.Context, id string) (*opportunity.Opportunity, error) {
	o, ok := f[id]
	if !ok {
		return nil, opportunity.ErrNotFound
	}
	return o, nil
}

func newExecutor(s Store) (*Executor, *fakePayer, *fakePublisher) {
	payer := &fakePayer{}
	pub := &fakePublisher{}
	return &Executor{
		Store:     s,
		Payer:     payer,
		Publisher: pub,
		Now:       func() time.Time { return fixedNow.Add(time.Hour) },
	}, payer, pub
}
