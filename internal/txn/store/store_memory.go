package store

import (
	"context"
	"fmt"
	"sync"

	"slipdesk/internal/txn/models"
	id "slipdesk/pkg/domain"
	"slipdesk/pkg/platform/sentinel"
)

type completionRecord struct {
	txn     *models.Transaction
	receipt *models.Receipt
}

// InMemoryStore keeps completions in a map keyed by slip ID. The per-slip
// uniqueness check and the insert happen under one lock, so two racing
// completion attempts cannot both post.
type InMemoryStore struct {
	mu        sync.Mutex
	bySlip    map[id.SlipID]completionRecord
	byReceipt map[string]*models.Receipt
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		bySlip:    make(map[id.SlipID]completionRecord),
		byReceipt: make(map[string]*models.Receipt),
	}
}

func (s *InMemoryStore) SaveCompletion(_ context.Context, txn *models.Transaction, receipt *models.Receipt) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.bySlip[txn.SlipID]; ok {
		return fmt.Errorf("slip %s already posted: %w", txn.SlipID, sentinel.ErrConflict)
	}
	txnCopy := *txn
	receiptCopy := *receipt
	s.bySlip[txn.SlipID] = completionRecord{txn: &txnCopy, receipt: &receiptCopy}
	s.byReceipt[receipt.Number] = &receiptCopy
	return nil
}

func (s *InMemoryStore) FindBySlip(_ context.Context, slipID id.SlipID) (*models.Transaction, *models.Receipt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.bySlip[slipID]
	if !ok {
		return nil, nil, fmt.Errorf("completion for slip %s: %w", slipID, sentinel.ErrNotFound)
	}
	txnCopy := *record.txn
	receiptCopy := *record.receipt
	return &txnCopy, &receiptCopy, nil
}

func (s *InMemoryStore) FindReceiptByNumber(_ context.Context, number string) (*models.Receipt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	receipt, ok := s.byReceipt[number]
	if !ok {
		return nil, fmt.Errorf("receipt %s: %w", number, sentinel.ErrNotFound)
	}
	receiptCopy := *receipt
	return &receiptCopy, nil
}

func (s *InMemoryStore) FindTransaction(_ context.Context, txnID id.TransactionID) (*models.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, record := range s.bySlip {
		if record.txn.ID == txnID {
			txnCopy := *record.txn
			return &txnCopy, nil
		}
	}
	return nil, fmt.Errorf("transaction %s: %w", txnID, sentinel.ErrNotFound)
}

// Clear drops all completions. Test helper.
func (s *InMemoryStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bySlip = make(map[id.SlipID]completionRecord)
	s.byReceipt = make(map[string]*models.Receipt)
}
