package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"slipdesk/internal/slip/models"
	"slipdesk/pkg/platform/sentinel"
)

// InMemoryStore keeps slips in a map guarded by a mutex. Execute holds the
// lock across read-mutate-write so the version check is exact; concurrency
// behavior still matches the durable stores because callers only ever see
// committed copies.
type InMemoryStore struct {
	mu    sync.Mutex
	slips map[string]*models.DepositSlip
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{slips: make(map[string]*models.DepositSlip)}
}

func (s *InMemoryStore) Create(_ context.Context, slip *models.DepositSlip) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.slips[slip.Code]; ok {
		return fmt.Errorf("slip %s: %w", slip.Code, sentinel.ErrConflict)
	}
	stored := slip.Clone()
	stored.Version = 1
	s.slips[slip.Code] = stored
	slip.Version = 1
	return nil
}

func (s *InMemoryStore) FindByCode(_ context.Context, code string) (*models.DepositSlip, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.slips[code]
	if !ok {
		return nil, fmt.Errorf("slip %s: %w", code, sentinel.ErrNotFound)
	}
	return stored.Clone(), nil
}

func (s *InMemoryStore) Execute(_ context.Context, code string, mutate func(*models.DepositSlip) error) (*models.DepositSlip, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.slips[code]
	if !ok {
		return nil, fmt.Errorf("slip %s: %w", code, sentinel.ErrNotFound)
	}
	working := stored.Clone()
	if err := mutate(working); err != nil {
		return nil, err
	}
	if working.Version != stored.Version {
		return nil, fmt.Errorf("slip %s version %d: %w", code, working.Version, sentinel.ErrConflict)
	}
	working.Version++
	s.slips[code] = working
	return working.Clone(), nil
}

func (s *InMemoryStore) FindActiveByAccount(_ context.Context, account string, txType models.TransactionType) (*models.DepositSlip, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, stored := range s.slips {
		if stored.Payload.CustomerAccount == account &&
			stored.Payload.Type == txType &&
			!stored.Status.IsTerminal() {
			return stored.Clone(), nil
		}
	}
	return nil, fmt.Errorf("active slip for account: %w", sentinel.ErrNotFound)
}

func (s *InMemoryStore) ListPending(_ context.Context, branch string) ([]*models.DepositSlip, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*models.DepositSlip
	for _, stored := range s.slips {
		if stored.RetrievedBranch == branch && stored.Status.InProgress() {
			out = append(out, stored.Clone())
		}
	}
	sortByCreatedAt(out)
	return out, nil
}

func (s *InMemoryStore) ListExpirable(_ context.Context, now time.Time) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var codes []string
	for code, stored := range s.slips {
		if !stored.Status.IsTerminal() && !now.Before(stored.ExpiresAt) {
			codes = append(codes, code)
		}
	}
	sort.Strings(codes)
	return codes, nil
}

// Clear drops all slips. Test helper.
func (s *InMemoryStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.slips = make(map[string]*models.DepositSlip)
}
