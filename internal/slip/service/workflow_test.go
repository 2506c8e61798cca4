package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"slipdesk/internal/adapters/notification"
	"slipdesk/internal/slip/models"
	derrors "slipdesk/pkg/domain-errors"
)

// --- Full workflow ---

func (s *ServiceSuite) TestHappyPathToCompletion() {
	code := s.createSlip().Slip.Code
	ctx := s.tellerCtx("T-100", "KHI-001", s.now.Add(time.Minute))

	slip, err := s.svc.Retrieve(ctx, code)
	s.Require().NoError(err)
	s.Equal(models.StatusRetrieved, slip.Status)
	s.Equal("T-100", slip.RetrievedBy)
	s.Equal("KHI-001", slip.RetrievedBranch)

	slip, err = s.svc.Verify(ctx, code, VerifyInput{AmountConfirmed: true, IdentityVerified: true})
	s.Require().NoError(err)
	s.Equal(models.StatusVerified, slip.Status)

	issued, err := s.svc.IssueOTP(ctx, code)
	s.Require().NoError(err)
	s.Equal("*******4567", issued.MaskedPhone)
	s.Equal(5, issued.MaxAttempts)
	s.False(issued.DeliveryFailed)

	plain := s.notifier.lastOTP()
	s.Require().Len(plain, 5)

	slip, err = s.svc.VerifyOTP(ctx, code, plain)
	s.Require().NoError(err)
	s.Equal(models.StatusAuthorized, slip.Status)
	s.NotNil(slip.AuthorizedAt)
	s.Require().NotNil(slip.OTP)
	s.Empty(slip.OTP.CodeHash, "sanitized responses never carry the code hash")
	s.True(slip.OTP.Consumed)

	outcome, err := s.svc.Complete(ctx, code, CompleteInput{AuthorizationCaptured: true, TellerNotes: "cash counted"})
	s.Require().NoError(err)
	s.False(outcome.Replayed)
	s.Equal(models.StatusCompleted, outcome.Slip.Status)
	s.True(outcome.Slip.AuthorizationCaptured)
	s.Require().NotNil(outcome.Slip.Completion)
	s.Equal("cash counted", outcome.Slip.Completion.TellerNotes)
	s.Regexp(`^TXN-20250601-[0-9A-Z]{8}$`, outcome.Transaction.Reference)
	s.Regexp(`^RCP-20250601-[0-9A-Z]{8}$`, outcome.Receipt.Number)
	s.Equal(int64(250_000), outcome.Transaction.Amount)

	view, err := s.svc.Status(s.customerCtx(s.now.Add(2*time.Minute)), code)
	s.Require().NoError(err)
	s.Equal(models.StatusCompleted, view.Status)
	s.Equal(outcome.Receipt.Number, view.ReceiptNumber)
	s.Equal(1, s.notifier.count(notification.KindReceipt))
}

// --- Retrieval ---

func (s *ServiceSuite) TestRetrieveSecondTellerLosesClaim() {
	code := s.advanceTo(models.StatusRetrieved)

	_, err := s.svc.Retrieve(s.tellerCtx("T-200", "KHI-001", s.now.Add(time.Minute)), code)
	s.True(derrors.HasCode(err, derrors.CodeAlreadyClaimed))
}

func (s *ServiceSuite) TestRetrieveIsIdempotentForClaimingTeller() {
	code := s.advanceTo(models.StatusRetrieved)
	ctx := s.tellerCtx("T-100", "KHI-001", s.now.Add(2*time.Minute))

	slip, err := s.svc.Retrieve(ctx, code)
	s.Require().NoError(err)
	s.Equal(models.StatusRetrieved, slip.Status)
	s.Equal("T-100", slip.RetrievedBy)
}

func (s *ServiceSuite) TestRetrieveRaceHasOneWinner() {
	code := s.createSlip().Slip.Code

	var mu sync.Mutex
	claims := 0
	rejected := 0

	var g errgroup.Group
	for i := 0; i < 8; i++ {
		teller := fmt.Sprintf("T-%03d", 100+i)
		g.Go(func() error {
			_, err := s.svc.Retrieve(s.tellerCtx(teller, "KHI-001", s.now.Add(time.Minute)), code)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				claims++
			case derrors.HasCode(err, derrors.CodeAlreadyClaimed):
				rejected++
			default:
				return err
			}
			return nil
		})
	}
	s.Require().NoError(g.Wait())
	s.Equal(1, claims)
	s.Equal(7, rejected)
}

func (s *ServiceSuite) TestRetrieveExpiredSlip() {
	code := s.createSlip().Slip.Code

	_, err := s.svc.Retrieve(s.tellerCtx("T-100", "KHI-001", s.now.Add(2*time.Hour)), code)
	s.True(derrors.HasCode(err, derrors.CodeExpired))
}

func (s *ServiceSuite) TestRetrieveUnknownCode() {
	_, err := s.svc.Retrieve(s.tellerCtx("T-100", "KHI-001", s.now), "DRID-20250601-ZZZZZZ")
	s.True(derrors.HasCode(err, derrors.CodeNotFound))
}

// --- Verification ---

func (s *ServiceSuite) TestVerifyRequiresCompleteChecklist() {
	code := s.advanceTo(models.StatusRetrieved)
	ctx := s.tellerCtx("T-100", "KHI-001", s.now.Add(2*time.Minute))

	_, err := s.svc.Verify(ctx, code, VerifyInput{AmountConfirmed: true})
	s.True(derrors.HasCode(err, derrors.CodeChecklistIncomplete))
}

func (s *ServiceSuite) TestVerifyOnlyByClaimingTeller() {
	code := s.advanceTo(models.StatusRetrieved)

	_, err := s.svc.Verify(s.tellerCtx("T-200", "KHI-001", s.now.Add(2*time.Minute)), code,
		VerifyInput{AmountConfirmed: true, IdentityVerified: true})
	s.True(derrors.HasCode(err, derrors.CodeAlreadyClaimed))
}

func (s *ServiceSuite) TestVerifyAppliesPayloadEdits() {
	code := s.advanceTo(models.StatusRetrieved)
	ctx := s.tellerCtx("T-100", "KHI-001", s.now.Add(2*time.Minute))

	edited := validPayload()
	edited.Amount = 300_000

	slip, err := s.svc.Verify(ctx, code, VerifyInput{
		AmountConfirmed:  true,
		IdentityVerified: true,
		PayloadEdits:     &edited,
	})
	s.Require().NoError(err)
	s.Equal(int64(300_000), slip.Payload.Amount)
}

func (s *ServiceSuite) TestVerifyRejectsInvalidEdits() {
	code := s.advanceTo(models.StatusRetrieved)
	ctx := s.tellerCtx("T-100", "KHI-001", s.now.Add(2*time.Minute))

	edited := validPayload()
	edited.Amount = -1

	_, err := s.svc.Verify(ctx, code, VerifyInput{
		AmountConfirmed:  true,
		IdentityVerified: true,
		PayloadEdits:     &edited,
	})
	s.True(derrors.HasCode(err, derrors.CodeValidationFailed))
}

// --- OTP authorization ---

func (s *ServiceSuite) TestVerifyOTPWithoutIssuance() {
	code := s.advanceTo(models.StatusVerified)
	ctx := s.tellerCtx("T-100", "KHI-001", s.now.Add(2*time.Minute))

	_, err := s.svc.VerifyOTP(ctx, code, "12345")
	s.True(derrors.HasCode(err, derrors.CodeNoActiveOtp))
}

func (s *ServiceSuite) TestVerifyOTPLockoutThenReissue() {
	code := s.advanceTo(models.StatusVerified)
	ctx := s.tellerCtx("T-100", "KHI-001", s.now.Add(2*time.Minute))

	_, err := s.svc.IssueOTP(ctx, code)
	s.Require().NoError(err)

	for i := 0; i < 5; i++ {
		_, err = s.svc.VerifyOTP(ctx, code, "00000")
		if i < 4 {
			s.True(derrors.HasCode(err, derrors.CodeValidationFailed), "attempt %d", i+1)
		} else {
			s.True(derrors.HasCode(err, derrors.CodeTooManyAttempts), "attempt %d", i+1)
		}
	}

	// the correct code is dead once the record locks
	_, err = s.svc.VerifyOTP(ctx, code, s.notifier.lastOTP())
	s.True(derrors.HasCode(err, derrors.CodeTooManyAttempts))

	// re-issuing supersedes the locked record and restores the budget
	_, err = s.svc.IssueOTP(ctx, code)
	s.Require().NoError(err)
	slip, err := s.svc.VerifyOTP(ctx, code, s.notifier.lastOTP())
	s.Require().NoError(err)
	s.Equal(models.StatusAuthorized, slip.Status)
}

func (s *ServiceSuite) TestVerifyOTPSingleUse() {
	code := s.advanceTo(models.StatusVerified)
	ctx := s.tellerCtx("T-100", "KHI-001", s.now.Add(2*time.Minute))

	_, err := s.svc.IssueOTP(ctx, code)
	s.Require().NoError(err)
	plain := s.notifier.lastOTP()

	_, err = s.svc.VerifyOTP(ctx, code, plain)
	s.Require().NoError(err)

	// the slip is already AUTHORIZED, the code cannot be replayed
	_, err = s.svc.VerifyOTP(ctx, code, plain)
	s.True(derrors.HasCode(err, derrors.CodeInvalidTransition))
}

func (s *ServiceSuite) TestVerifyOTPExpiredCode() {
	code := s.advanceTo(models.StatusVerified)

	_, err := s.svc.IssueOTP(s.tellerCtx("T-100", "KHI-001", s.now.Add(2*time.Minute)), code)
	s.Require().NoError(err)

	stale := s.tellerCtx("T-100", "KHI-001", s.now.Add(10*time.Minute))
	_, err = s.svc.VerifyOTP(stale, code, s.notifier.lastOTP())
	s.True(derrors.HasCode(err, derrors.CodeOtpExpired))
}

func (s *ServiceSuite) TestIssueOTPSupersedesPreviousCode() {
	code := s.advanceTo(models.StatusVerified)
	ctx := s.tellerCtx("T-100", "KHI-001", s.now.Add(2*time.Minute))

	_, err := s.svc.IssueOTP(ctx, code)
	s.Require().NoError(err)
	first := s.notifier.lastOTP()

	_, err = s.svc.IssueOTP(ctx, code)
	s.Require().NoError(err)
	second := s.notifier.lastOTP()

	if first != second {
		_, err = s.svc.VerifyOTP(ctx, code, first)
		s.True(derrors.HasCode(err, derrors.CodeValidationFailed))
	}
	slip, err := s.svc.VerifyOTP(ctx, code, second)
	s.Require().NoError(err)
	s.Equal(models.StatusAuthorized, slip.Status)
}

func (s *ServiceSuite) TestIssueOTPRequiresVerifiedSlip() {
	code := s.advanceTo(models.StatusRetrieved)

	_, err := s.svc.IssueOTP(s.tellerCtx("T-100", "KHI-001", s.now.Add(2*time.Minute)), code)
	s.True(derrors.HasCode(err, derrors.CodeInvalidTransition))
}

// --- Completion ---

func (s *ServiceSuite) TestCompleteReplaysForDuplicateCall() {
	code := s.advanceTo(models.StatusAuthorized)
	ctx := s.tellerCtx("T-100", "KHI-001", s.now.Add(3*time.Minute))

	first, err := s.svc.Complete(ctx, code, CompleteInput{AuthorizationCaptured: true})
	s.Require().NoError(err)
	second, err := s.svc.Complete(ctx, code, CompleteInput{AuthorizationCaptured: true})
	s.Require().NoError(err)

	s.True(second.Replayed)
	s.Equal(first.Transaction.Reference, second.Transaction.Reference)
	s.Equal(first.Receipt.Number, second.Receipt.Number)
}

func (s *ServiceSuite) TestCompleteConcurrentCallersPostOnce() {
	code := s.advanceTo(models.StatusAuthorized)
	ctx := s.tellerCtx("T-100", "KHI-001", s.now.Add(3*time.Minute))

	const callers = 12
	references := make([]string, callers)
	replayed := make([]bool, callers)

	var g errgroup.Group
	for i := 0; i < callers; i++ {
		g.Go(func() error {
			outcome, err := s.svc.Complete(ctx, code, CompleteInput{AuthorizationCaptured: true})
			if err != nil {
				return err
			}
			references[i] = outcome.Transaction.Reference
			replayed[i] = outcome.Replayed
			return nil
		})
	}
	s.Require().NoError(g.Wait())

	winners := 0
	for i := 0; i < callers; i++ {
		s.Equal(references[0], references[i], "every caller sees the same posted transaction")
		if !replayed[i] {
			winners++
		}
	}
	s.Equal(1, winners)

	txn, _, err := s.txns.FindBySlip(context.Background(), s.mustLoad(code).ID)
	s.Require().NoError(err)
	s.Equal(references[0], txn.Reference)
}

func (s *ServiceSuite) TestCompleteRequiresAuthorization() {
	code := s.advanceTo(models.StatusVerified)

	_, err := s.svc.Complete(s.tellerCtx("T-100", "KHI-001", s.now.Add(2*time.Minute)), code, CompleteInput{AuthorizationCaptured: true})
	s.True(derrors.HasCode(err, derrors.CodeNotAuthorized))
}

func (s *ServiceSuite) TestCompleteOnlyByClaimingTeller() {
	code := s.advanceTo(models.StatusAuthorized)

	_, err := s.svc.Complete(s.tellerCtx("T-200", "KHI-001", s.now.Add(3*time.Minute)), code, CompleteInput{AuthorizationCaptured: true})
	s.True(derrors.HasCode(err, derrors.CodeAlreadyClaimed))
}

func (s *ServiceSuite) TestCompleteRefusedWhenCaptureDenied() {
	code := s.advanceTo(models.StatusAuthorized)
	ctx := s.tellerCtx("T-100", "KHI-001", s.now.Add(3*time.Minute))

	_, err := s.svc.Complete(ctx, code, CompleteInput{
		AuthorizationCaptured: false,
		TellerNotes:           "customer walked away",
	})
	s.True(derrors.HasCode(err, derrors.CodeNotAuthorized))

	slip := s.mustLoad(code)
	s.Equal(models.StatusAuthorized, slip.Status, "a denied capture must not post anything")
	s.False(slip.AuthorizationCaptured)
	_, _, err = s.txns.FindBySlip(context.Background(), slip.ID)
	s.Error(err)

	// the teller can still complete once the customer confirms
	outcome, err := s.svc.Complete(ctx, code, CompleteInput{AuthorizationCaptured: true})
	s.Require().NoError(err)
	s.False(outcome.Replayed)
}

func (s *ServiceSuite) TestReceiptFetchVerifiesSignature() {
	code := s.advanceTo(models.StatusAuthorized)
	ctx := s.tellerCtx("T-100", "KHI-001", s.now.Add(3*time.Minute))

	outcome, err := s.svc.Complete(ctx, code, CompleteInput{AuthorizationCaptured: true})
	s.Require().NoError(err)

	check, err := s.svc.Receipt(ctx, outcome.Receipt.Number)
	s.Require().NoError(err)
	s.True(check.Authentic)
	s.Equal(outcome.Receipt.Number, check.Receipt.Number)
	s.Equal(outcome.Transaction.Reference, check.Transaction.Reference)

	_, err = s.svc.Receipt(ctx, "RCP-20250601-ZZZZZZZZ")
	s.True(derrors.HasCode(err, derrors.CodeNotFound))
}

// --- Closure ---

func (s *ServiceSuite) TestCancelBeforeRetrieval() {
	code := s.createSlip().Slip.Code

	slip, err := s.svc.Cancel(s.customerCtx(s.now.Add(time.Minute)), code, "changed my mind")
	s.Require().NoError(err)
	s.Equal(models.StatusCancelled, slip.Status)
	s.Equal("customer", slip.ClosedBy)
	s.Equal("changed my mind", slip.ClosedReason)
	s.Equal(1, s.notifier.count(notification.KindSlipCancelled))
}

func (s *ServiceSuite) TestCancelRequiresReason() {
	code := s.createSlip().Slip.Code
	ctx := s.customerCtx(s.now.Add(time.Minute))

	_, err := s.svc.Cancel(ctx, code, "")
	s.True(derrors.HasCode(err, derrors.CodeValidationFailed))
	_, err = s.svc.Cancel(ctx, code, "   ")
	s.True(derrors.HasCode(err, derrors.CodeValidationFailed))

	s.Equal(models.StatusCreated, s.mustLoad(code).Status)
}

func (s *ServiceSuite) TestCancelIsIdempotent() {
	code := s.createSlip().Slip.Code
	ctx := s.customerCtx(s.now.Add(time.Minute))

	_, err := s.svc.Cancel(ctx, code, "changed my mind")
	s.Require().NoError(err)
	slip, err := s.svc.Cancel(ctx, code, "changed my mind")
	s.Require().NoError(err)
	s.Equal(models.StatusCancelled, slip.Status)
}

func (s *ServiceSuite) TestCancelWithinGraceAfterExpiry() {
	code := s.createSlip().Slip.Code

	// 10 minutes past expiry, inside the 30 minute grace window
	slip, err := s.svc.Cancel(s.customerCtx(s.now.Add(70*time.Minute)), code, "never made it to the branch")
	s.Require().NoError(err)
	s.Equal(models.StatusCancelled, slip.Status)
}

func (s *ServiceSuite) TestCancelPastGraceWindow() {
	code := s.createSlip().Slip.Code

	_, err := s.svc.Cancel(s.customerCtx(s.now.Add(2*time.Hour)), code, "too late")
	s.True(derrors.HasCode(err, derrors.CodeExpired))
}

func (s *ServiceSuite) TestCancelAuthorizedSlipRefused() {
	code := s.advanceTo(models.StatusAuthorized)

	_, err := s.svc.Cancel(s.customerCtx(s.now.Add(3*time.Minute)), code, "changed my mind")
	s.True(derrors.HasCode(err, derrors.CodeInvalidTransition))
}

func (s *ServiceSuite) TestRejectRequiresReason() {
	code := s.advanceTo(models.StatusRetrieved)

	_, err := s.svc.Reject(s.tellerCtx("T-100", "KHI-001", s.now.Add(2*time.Minute)), code, "  ")
	s.True(derrors.HasCode(err, derrors.CodeValidationFailed))
}

func (s *ServiceSuite) TestRejectByClaimingTeller() {
	code := s.advanceTo(models.StatusRetrieved)

	slip, err := s.svc.Reject(s.tellerCtx("T-100", "KHI-001", s.now.Add(2*time.Minute)), code, "signature mismatch")
	s.Require().NoError(err)
	s.Equal(models.StatusRejected, slip.Status)
	s.Equal("signature mismatch", slip.ClosedReason)
}

func (s *ServiceSuite) TestRejectByOtherTellerRefused() {
	code := s.advanceTo(models.StatusRetrieved)

	_, err := s.svc.Reject(s.tellerCtx("T-200", "KHI-001", s.now.Add(2*time.Minute)), code, "wrong desk")
	s.True(derrors.HasCode(err, derrors.CodeAlreadyClaimed))
}

// --- Expiry ---

func (s *ServiceSuite) TestStatusProbeExpiresLazily() {
	code := s.createSlip().Slip.Code

	view, err := s.svc.Status(s.customerCtx(s.now.Add(90*time.Minute)), code)
	s.Require().NoError(err)
	s.Equal(models.StatusExpired, view.Status)
	s.Zero(view.RemainingSeconds)
}

func (s *ServiceSuite) TestStatusReportsRemainingTime() {
	code := s.createSlip().Slip.Code

	view, err := s.svc.Status(s.customerCtx(s.now.Add(15*time.Minute)), code)
	s.Require().NoError(err)
	s.Equal(models.StatusCreated, view.Status)
	s.Equal(int64(45*60), view.RemainingSeconds)
}

func (s *ServiceSuite) TestSweepExpiresLapsedSlips() {
	first := s.createSlip().Slip.Code

	other := validPayload()
	other.CustomerCNIC = "35202-7654321-9"
	other.CustomerAccount = "PK70BAHL0000987654321001"
	second, err := s.svc.Create(s.customerCtx(s.now), CreateSlipInput{Payload: other})
	s.Require().NoError(err)

	count, err := s.svc.Sweep(s.customerCtx(s.now.Add(2*time.Hour)), s.now.Add(2*time.Hour))
	s.Require().NoError(err)
	s.Equal(2, count)

	s.Equal(models.StatusExpired, s.mustLoad(first).Status)
	s.Equal(models.StatusExpired, s.mustLoad(second.Slip.Code).Status)

	// nothing left to sweep
	count, err = s.svc.Sweep(s.customerCtx(s.now.Add(3*time.Hour)), s.now.Add(3*time.Hour))
	s.Require().NoError(err)
	s.Zero(count)
}

func (s *ServiceSuite) TestTerminalSlipIsImmutable() {
	code := s.createSlip().Slip.Code
	_, err := s.svc.Cancel(s.customerCtx(s.now.Add(time.Minute)), code, "changed my mind")
	s.Require().NoError(err)

	ctx := s.tellerCtx("T-100", "KHI-001", s.now.Add(2*time.Minute))
	_, err = s.svc.Retrieve(ctx, code)
	s.True(derrors.HasCode(err, derrors.CodeInvalidTransition))
	_, err = s.svc.Reject(ctx, code, "too late")
	s.True(derrors.HasCode(err, derrors.CodeInvalidTransition))
}

// --- Teller queries ---

func (s *ServiceSuite) TestPendingListsBranchQueue() {
	code := s.advanceTo(models.StatusRetrieved)

	pending, err := s.svc.Pending(s.tellerCtx("T-100", "KHI-001", s.now.Add(2*time.Minute)))
	s.Require().NoError(err)
	s.Require().Len(pending, 1)
	s.Equal(code, pending[0].Code)

	elsewhere, err := s.svc.Pending(s.tellerCtx("T-300", "LHR-002", s.now.Add(2*time.Minute)))
	s.Require().NoError(err)
	s.Empty(elsewhere)
}

func (s *ServiceSuite) TestGetPreviewsUnclaimedSlip() {
	code := s.createSlip().Slip.Code

	slip, err := s.svc.Get(s.tellerCtx("T-200", "KHI-001", s.now.Add(time.Minute)), code)
	s.Require().NoError(err)
	s.Equal(models.StatusCreated, slip.Status)
}

func (s *ServiceSuite) TestGetHidesSlipClaimedByOtherTeller() {
	code := s.advanceTo(models.StatusRetrieved)

	_, err := s.svc.Get(s.tellerCtx("T-200", "KHI-001", s.now.Add(2*time.Minute)), code)
	s.True(derrors.HasCode(err, derrors.CodeAlreadyClaimed))
}

func (s *ServiceSuite) mustLoad(code string) *models.DepositSlip {
	slip, err := s.slips.FindByCode(s.customerCtx(s.now), code)
	s.Require().NoError(err)
	return slip
}
