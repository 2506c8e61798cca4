// Package promoter turns an authorized deposit slip into a posted
// transaction with a signed receipt, exactly once. The signature is produced
// before any state changes so a signing failure leaves the slip authorized
// and retryable. The commit itself rides the slip store's compare-and-swap:
// only one caller can move the slip to COMPLETED, and everyone else observes
// the winner's completion.
package promoter

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"slipdesk/internal/adapters/signature"
	slipmodels "slipdesk/internal/slip/models"
	slipstore "slipdesk/internal/slip/store"
	"slipdesk/internal/slip/ttl"
	txnmodels "slipdesk/internal/txn/models"
	txnstore "slipdesk/internal/txn/store"
	id "slipdesk/pkg/domain"
	"slipdesk/pkg/platform/sentinel"
)

// Atomic runs a function as a single commit unit. The postgres runner wraps
// fn in a database transaction; memory stores use Passthrough because their
// per-store locks already make the two writes safe.
type Atomic interface {
	Run(ctx context.Context, fn func(ctx context.Context) error) error
}

// Passthrough is the Atomic for non-transactional store pairs.
type Passthrough struct{}

func (Passthrough) Run(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// Outcome is the result of a promotion. Replayed is set when this call lost
// the race and returned the winner's transaction and receipt instead of
// posting its own.
type Outcome struct {
	Slip        *slipmodels.DepositSlip
	Transaction *txnmodels.Transaction
	Receipt     *txnmodels.Receipt
	Replayed    bool
}

type Promoter struct {
	slips  slipstore.Store
	txns   txnstore.Store
	signer signature.Signer
	atomic Atomic
}

func New(slips slipstore.Store, txns txnstore.Store, signer signature.Signer, atomic Atomic) *Promoter {
	return &Promoter{slips: slips, txns: txns, signer: signer, atomic: atomic}
}

var errAlreadyCompleted = errors.New("slip already completed")

var tracer = otel.Tracer("slipdesk/promoter")

// Request carries the completion confirmation from the counter. Captured is
// the teller's explicit statement that the customer authorized the deposit;
// promotion refuses without it.
type Request struct {
	Code        string
	TellerID    string
	Branch      string
	Captured    bool
	TellerNotes string
	Now         time.Time
}

// Promote posts the transaction and receipt for an authorized slip. The
// returned errors wrap sentinels: ErrInvalidState when the slip is not
// authorized or the capture flag is missing, ErrExpired past the hard
// expiry, ErrUnavailable when signing fails. A concurrent duplicate
// resolves to the first caller's outcome.
func (p *Promoter) Promote(ctx context.Context, req Request) (*Outcome, error) {
	ctx, span := tracer.Start(ctx, "promoter.Promote",
		trace.WithAttributes(attribute.String("slip.drid", req.Code)))
	defer span.End()

	slip, err := p.slips.FindByCode(ctx, req.Code)
	if err != nil {
		return nil, err
	}
	if slip.Status == slipmodels.StatusCompleted {
		return p.replay(ctx, slip)
	}
	if err := eligible(slip, req); err != nil {
		return nil, err
	}

	txn, receipt, err := p.mint(slip, req)
	if err != nil {
		return nil, err
	}

	committed, err := p.commit(ctx, req, txn, receipt)
	if errors.Is(err, errAlreadyCompleted) || errors.Is(err, sentinel.ErrConflict) {
		// Lost the race. Re-read and hand back whatever the winner posted.
		fresh, findErr := p.slips.FindByCode(ctx, req.Code)
		if findErr != nil {
			return nil, findErr
		}
		if fresh.Status == slipmodels.StatusCompleted {
			return p.replay(ctx, fresh)
		}
		return nil, fmt.Errorf("slip %s: %w", req.Code, sentinel.ErrConflict)
	}
	if err != nil {
		return nil, err
	}
	return &Outcome{Slip: committed, Transaction: txn, Receipt: receipt}, nil
}

func eligible(slip *slipmodels.DepositSlip, req Request) error {
	if ttl.Expired(req.Now, slip.ExpiresAt) {
		return fmt.Errorf("slip %s: %w", slip.Code, sentinel.ErrExpired)
	}
	if slip.Status != slipmodels.StatusAuthorized {
		return fmt.Errorf("slip %s in status %s: %w", slip.Code, slip.Status, sentinel.ErrInvalidState)
	}
	if slip.OTP == nil || !slip.OTP.Verified {
		return fmt.Errorf("slip %s has no verified authorization: %w", slip.Code, sentinel.ErrInvalidState)
	}
	if !req.Captured {
		return fmt.Errorf("slip %s: customer authorization not captured: %w", slip.Code, sentinel.ErrInvalidState)
	}
	return nil
}

// mint builds and signs the transaction and receipt before any store write.
func (p *Promoter) mint(slip *slipmodels.DepositSlip, req Request) (*txnmodels.Transaction, *txnmodels.Receipt, error) {
	txn := &txnmodels.Transaction{
		ID:            id.NewTransactionID(),
		Reference:     txnmodels.NewTransactionReference(req.Now),
		SlipID:        slip.ID,
		DRID:          slip.Code,
		Type:          slip.Payload.Type,
		AccountNumber: slip.Payload.CustomerAccount,
		Amount:        slip.Payload.Amount,
		Currency:      slip.Payload.Currency,
		Branch:        req.Branch,
		TellerID:      req.TellerID,
		PostedAt:      req.Now,
	}
	receipt := &txnmodels.Receipt{
		ID:            id.NewReceiptID(),
		Number:        txnmodels.NewReceiptNumber(req.Now),
		TransactionID: txn.ID,
		DRID:          slip.Code,
		Amount:        txn.Amount,
		Currency:      txn.Currency,
		AccountMasked: txnmodels.MaskAccount(txn.AccountNumber),
		Branch:        req.Branch,
		IssuedAt:      req.Now,
	}

	sig, alg, err := p.signer.Sign(signature.Payload{
		ReceiptNumber:        receipt.Number,
		TransactionReference: txn.Reference,
		DRID:                 slip.Code,
		Amount:               receipt.Amount,
		Currency:             receipt.Currency,
		IssuedAt:             receipt.IssuedAt,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("sign receipt for slip %s: %w", slip.Code, sentinel.ErrUnavailable)
	}
	receipt.Signature = sig
	receipt.SignatureAlg = alg
	return txn, receipt, nil
}

func (p *Promoter) commit(ctx context.Context, req Request, txn *txnmodels.Transaction, receipt *txnmodels.Receipt) (*slipmodels.DepositSlip, error) {
	var committed *slipmodels.DepositSlip
	err := p.atomic.Run(ctx, func(ctx context.Context) error {
		updated, err := p.slips.Execute(ctx, req.Code, func(s *slipmodels.DepositSlip) error {
			if s.Status == slipmodels.StatusCompleted {
				return errAlreadyCompleted
			}
			if err := eligible(s, req); err != nil {
				return err
			}
			s.Status = slipmodels.StatusCompleted
			s.AuthorizationCaptured = true
			s.Completion = &slipmodels.Completion{
				TransactionID:        txn.ID,
				TransactionReference: txn.Reference,
				ReceiptNumber:        receipt.Number,
				CompletedBy:          req.TellerID,
				CompletedAt:          req.Now,
				TellerNotes:          req.TellerNotes,
			}
			return nil
		})
		if err != nil {
			return err
		}
		if err := p.txns.SaveCompletion(ctx, txn, receipt); err != nil {
			return err
		}
		committed = updated
		return nil
	})
	if err != nil {
		return nil, err
	}
	return committed, nil
}

func (p *Promoter) replay(ctx context.Context, slip *slipmodels.DepositSlip) (*Outcome, error) {
	txn, receipt, err := p.txns.FindBySlip(ctx, slip.ID)
	if err != nil {
		return nil, fmt.Errorf("completed slip %s has no posted transaction: %w", slip.Code, err)
	}
	return &Outcome{Slip: slip, Transaction: txn, Receipt: receipt, Replayed: true}, nil
}

// ReceiptCheck is a stored receipt together with the result of re-verifying
// its signature over the canonical fields.
type ReceiptCheck struct {
	Receipt     *txnmodels.Receipt
	Transaction *txnmodels.Transaction
	Authentic   bool
}

// CheckReceipt loads a receipt by its public number and verifies its
// signature against the posted transaction. A failed check is not an error;
// it surfaces as Authentic=false so the counter can flag a forged or
// tampered receipt.
func (p *Promoter) CheckReceipt(ctx context.Context, number string) (*ReceiptCheck, error) {
	receipt, err := p.txns.FindReceiptByNumber(ctx, number)
	if err != nil {
		return nil, err
	}
	txn, err := p.txns.FindTransaction(ctx, receipt.TransactionID)
	if err != nil {
		return nil, err
	}

	verifyErr := p.signer.Verify(signature.Payload{
		ReceiptNumber:        receipt.Number,
		TransactionReference: txn.Reference,
		DRID:                 receipt.DRID,
		Amount:               receipt.Amount,
		Currency:             receipt.Currency,
		IssuedAt:             receipt.IssuedAt,
	}, receipt.Signature)
	if verifyErr != nil && !errors.Is(verifyErr, signature.ErrVerificationFailed) {
		return nil, fmt.Errorf("verify receipt %s: %w", number, sentinel.ErrUnavailable)
	}
	return &ReceiptCheck{Receipt: receipt, Transaction: txn, Authentic: verifyErr == nil}, nil
}
