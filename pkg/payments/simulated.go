package payments

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Simulated captures every positive amount without calling out. Dev only; repeated
// idempotency keys return the first receipt.
type Simulated struct {
	mu   sync.Mutex
	seen map[string]*Receipt
}

func (s *Simulated) Capture(_ context.Context, req CaptureRequest) (*Receipt, error) {
	if req.Amount.LessThanOrEqual(decimal.Zero) {
		return nil, fmt.Errorf("capture amount must be > 0")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.seen == nil {
		s.seen = make(map[string]*Receipt)
	}
	if r, ok := s.seen[req.IdempotencyKey]; ok && req.IdempotencyKey != "" {
		return r, nil
	}
	r := &Receipt{ID: "sim_" + uuid.NewString(), Status: "captured", CapturedAt: time.Now().UTC()}
	if req.IdempotencyKey != "" {
		s.seen[req.IdempotencyKey] = r
	}
	return r, nil
}
