package otp

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"golang.org/x/crypto/bcrypt"

	derrors "slipdesk/pkg/domain-errors"
)

type IssuerSuite struct {
	suite.Suite
	issuer *Issuer
	now    time.Time
}

func TestIssuerSuite(t *testing.T) {
	suite.Run(t, new(IssuerSuite))
}

func (s *IssuerSuite) SetupTest() {
	s.issuer = NewIssuer(5, 5*time.Minute, 5)
	s.now = time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
}

// --- Issue ---

func (s *IssuerSuite) TestIssueProducesNumericCodeOfConfiguredLength() {
	record, code, err := s.issuer.Issue(s.now)
	s.Require().NoError(err)

	s.Len(code, 5)
	for _, c := range code {
		s.True(c >= '0' && c <= '9', "expected digit, got %q", c)
	}
	s.Equal(s.now, record.IssuedAt)
	s.Equal(s.now.Add(5*time.Minute), record.ExpiresAt)
	s.Equal(5, record.MaxAttempts)
	s.Zero(record.AttemptsUsed)
	s.False(record.Verified)
	s.False(record.Consumed)
}

func (s *IssuerSuite) TestIssueStoresHashNotPlaintext() {
	record, code, err := s.issuer.Issue(s.now)
	s.Require().NoError(err)

	s.NotContains(string(record.CodeHash), code)
	s.NoError(bcrypt.CompareHashAndPassword(record.CodeHash, []byte(code)))
}

// --- Check ---

func (s *IssuerSuite) TestCheckCorrectCodeConsumes() {
	record, code, err := s.issuer.Issue(s.now)
	s.Require().NoError(err)

	err = s.issuer.Check(record, code, s.now.Add(time.Minute))
	s.Require().NoError(err)
	s.True(record.Verified)
	s.True(record.Consumed)
	s.Require().NotNil(record.VerifiedAt)
	s.Equal(s.now.Add(time.Minute), *record.VerifiedAt)
}

func (s *IssuerSuite) TestCheckConsumedCodeCannotBeReplayed() {
	record, code, err := s.issuer.Issue(s.now)
	s.Require().NoError(err)
	s.Require().NoError(s.issuer.Check(record, code, s.now))

	err = s.issuer.Check(record, code, s.now)
	s.True(derrors.HasCode(err, derrors.CodeNoActiveOtp))
}

func (s *IssuerSuite) TestCheckWrongCodeCountsAttempt() {
	record, _, err := s.issuer.Issue(s.now)
	s.Require().NoError(err)

	err = s.issuer.Check(record, "00000", s.now)
	s.True(derrors.HasCode(err, derrors.CodeValidationFailed))
	s.Equal(1, record.AttemptsUsed)
	s.Contains(err.Error(), "4 attempts remaining")
}

func (s *IssuerSuite) TestCheckLocksAfterMaxAttempts() {
	record, code, err := s.issuer.Issue(s.now)
	s.Require().NoError(err)

	for i := 0; i < 4; i++ {
		err = s.issuer.Check(record, "99999", s.now)
		s.True(derrors.HasCode(err, derrors.CodeValidationFailed))
	}
	// fifth wrong attempt exhausts the budget
	err = s.issuer.Check(record, "99999", s.now)
	s.True(derrors.HasCode(err, derrors.CodeTooManyAttempts))

	// even the right code is refused once locked
	err = s.issuer.Check(record, code, s.now)
	s.True(derrors.HasCode(err, derrors.CodeTooManyAttempts))
	s.False(record.Verified)
}

func (s *IssuerSuite) TestCheckExpiredCode() {
	record, code, err := s.issuer.Issue(s.now)
	s.Require().NoError(err)

	err = s.issuer.Check(record, code, s.now.Add(5*time.Minute))
	s.True(derrors.HasCode(err, derrors.CodeOtpExpired))
	s.Zero(record.AttemptsUsed, "expired checks must not burn attempts")
}

func (s *IssuerSuite) TestCheckNilRecord() {
	err := s.issuer.Check(nil, "12345", s.now)
	s.True(derrors.HasCode(err, derrors.CodeNoActiveOtp))
}

func (s *IssuerSuite) TestReissueSupersedesAndResetsAttempts() {
	first, firstCode, err := s.issuer.Issue(s.now)
	s.Require().NoError(err)
	s.Require().Error(s.issuer.Check(first, "00000", s.now))
	s.Equal(1, first.AttemptsUsed)

	second, secondCode, err := s.issuer.Issue(s.now.Add(time.Minute))
	s.Require().NoError(err)
	s.Zero(second.AttemptsUsed)
	if firstCode == secondCode {
		// astronomically unlikely but not a correctness failure
		s.T().Log("codes collided")
	}
	s.NoError(s.issuer.Check(second, secondCode, s.now.Add(2*time.Minute)))
}

// --- MaskPhone ---

func TestMaskPhone(t *testing.T) {
	require.Equal(t, "*******6789", MaskPhone("03001236789"))
	require.Equal(t, "1234", MaskPhone("1234"))
	require.Equal(t, "", MaskPhone(""))
	require.Equal(t, "*********4567", MaskPhone("+923001234567"))
}
