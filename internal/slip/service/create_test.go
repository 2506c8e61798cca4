package service

import (
	"encoding/base64"
	"encoding/json"
	"time"

	"slipdesk/internal/adapters/notification"
	"slipdesk/internal/slip/models"
	derrors "slipdesk/pkg/domain-errors"
)

// --- Create ---

func (s *ServiceSuite) TestCreateMintsSlip() {
	result := s.createSlip()
	slip := result.Slip

	s.Regexp(`^DRID-20250601-[0-9A-Z]{6}$`, slip.Code)
	s.Equal(models.StatusCreated, slip.Status)
	s.Equal(s.now, slip.CreatedAt)
	s.Equal(s.now.Add(time.Hour), slip.ExpiresAt)
	s.Equal(60, slip.ValidityMinutes)
	s.Equal("MOBILE", slip.Channel)
	s.NotEmpty(result.CancelToken)
	s.False(result.NotificationFailed)
	s.Equal(1, s.notifier.count(notification.KindSlipCreated))
}

func (s *ServiceSuite) TestCreatePresentationCodeRoundTrips() {
	result := s.createSlip()

	raw, err := base64.StdEncoding.DecodeString(result.PresentationCode)
	s.Require().NoError(err)
	var decoded map[string]any
	s.Require().NoError(json.Unmarshal(raw, &decoded))
	s.Equal(result.Slip.Code, decoded["drid"])
	s.Equal("CASH_DEPOSIT", decoded["type"])
	s.Equal(float64(250_000), decoded["amount"])
}

func (s *ServiceSuite) TestCreateRejectsInvalidPayload() {
	payload := validPayload()
	payload.Amount = 0

	_, err := s.svc.Create(s.customerCtx(s.now), CreateSlipInput{Payload: payload})
	s.True(derrors.HasCode(err, derrors.CodeValidationFailed))
}

func (s *ServiceSuite) TestCreateRejectsUnknownChannel() {
	_, err := s.svc.Create(s.customerCtx(s.now), CreateSlipInput{Payload: validPayload(), Channel: "CARRIER_PIGEON"})
	s.True(derrors.HasCode(err, derrors.CodeValidationFailed))
}

func (s *ServiceSuite) TestCreateDefaultsChannelToWeb() {
	result, err := s.svc.Create(s.customerCtx(s.now), CreateSlipInput{Payload: validPayload()})
	s.Require().NoError(err)
	s.Equal("WEB", result.Slip.Channel)
}

func (s *ServiceSuite) TestCreateRefusesDuplicateActiveSlip() {
	s.createSlip()

	_, err := s.svc.Create(s.customerCtx(s.now.Add(time.Minute)), CreateSlipInput{Payload: validPayload()})
	s.True(derrors.HasCode(err, derrors.CodeConflict))
}

func (s *ServiceSuite) TestCreateAllowsDifferentTypeForSameAccount() {
	s.createSlip()

	payload := validPayload()
	payload.Type = models.TypeBillPayment
	payload.Bill = &models.BillDetails{BillerName: "K-Electric", ConsumerNumber: "0400012345678"}

	_, err := s.svc.Create(s.customerCtx(s.now), CreateSlipInput{Payload: payload})
	s.NoError(err)
}

func (s *ServiceSuite) TestCreateAllowsNewSlipAfterOldOneLapses() {
	s.createSlip()

	// the first slip lapses unswept; intake expires it and proceeds
	later := s.now.Add(2 * time.Hour)
	result, err := s.svc.Create(s.customerCtx(later), CreateSlipInput{Payload: validPayload()})
	s.Require().NoError(err)
	s.Equal(models.StatusCreated, result.Slip.Status)
}

func (s *ServiceSuite) TestCreateRateLimitsPerCustomer() {
	for i := 0; i < 10; i++ {
		payload := validPayload()
		// distinct accounts so the duplicate guard stays out of the way
		payload.CustomerAccount = payload.CustomerAccount[:20] + string(rune('A'+i))
		_, err := s.svc.Create(s.customerCtx(s.now), CreateSlipInput{Payload: payload})
		s.Require().NoError(err)
	}

	_, err := s.svc.Create(s.customerCtx(s.now), CreateSlipInput{Payload: validPayload()})
	s.True(derrors.HasCode(err, derrors.CodeRateLimited))

	// a different customer is unaffected
	other := validPayload()
	other.CustomerCNIC = "35202-7654321-9"
	other.CustomerAccount = "PK70BAHL0000987654321001"
	_, err = s.svc.Create(s.customerCtx(s.now), CreateSlipInput{Payload: other})
	s.NoError(err)
}

func (s *ServiceSuite) TestCreateSurvivesNotificationFailure() {
	s.notifier.fail = true

	result, err := s.svc.Create(s.customerCtx(s.now), CreateSlipInput{Payload: validPayload()})
	s.Require().NoError(err)
	s.True(result.NotificationFailed)
	s.Equal(models.StatusCreated, result.Slip.Status, "slip must be live even when the message did not go out")
}

func (s *ServiceSuite) TestCreateStripsOTPSecretFromResult() {
	result := s.createSlip()
	s.Nil(result.Slip.OTP)
}
