package jwttoken

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTellerTokenRoundTrip(t *testing.T) {
	svc := NewJWTService("unit-test-key", "slipdesk-test")

	token, err := svc.GenerateTellerToken("T-100", "KHI-001", time.Hour)
	require.NoError(t, err)

	claims, err := svc.ValidateTellerToken(token)
	require.NoError(t, err)
	assert.Equal(t, "T-100", claims.TellerID)
	assert.Equal(t, "KHI-001", claims.BranchID)
}

func TestCancelTokenRoundTrip(t *testing.T) {
	svc := NewJWTService("unit-test-key", "slipdesk-test")

	token, err := svc.GenerateCancelToken("DRID-20250601-ABC123", time.Now().Add(time.Hour))
	require.NoError(t, err)

	drid, err := svc.ValidateCancelToken(token)
	require.NoError(t, err)
	assert.Equal(t, "DRID-20250601-ABC123", drid)
}

func TestAudiencesDoNotCross(t *testing.T) {
	svc := NewJWTService("unit-test-key", "slipdesk-test")

	cancel, err := svc.GenerateCancelToken("DRID-20250601-ABC123", time.Now().Add(time.Hour))
	require.NoError(t, err)
	teller, err := svc.GenerateTellerToken("T-100", "KHI-001", time.Hour)
	require.NoError(t, err)

	_, err = svc.ValidateTellerToken(cancel)
	assert.Error(t, err, "a cancel token must not open the teller surface")
	_, err = svc.ValidateCancelToken(teller)
	assert.Error(t, err, "a teller token must not cancel slips")
}

func TestExpiredTokenRejected(t *testing.T) {
	svc := NewJWTService("unit-test-key", "slipdesk-test")

	token, err := svc.GenerateCancelToken("DRID-20250601-ABC123", time.Now().Add(-time.Minute))
	require.NoError(t, err)

	_, err = svc.ValidateCancelToken(token)
	assert.Error(t, err)
}

func TestWrongKeyRejected(t *testing.T) {
	minter := NewJWTService("key-one", "slipdesk-test")
	verifier := NewJWTService("key-two", "slipdesk-test")

	token, err := minter.GenerateTellerToken("T-100", "KHI-001", time.Hour)
	require.NoError(t, err)

	_, err = verifier.ValidateTellerToken(token)
	assert.Error(t, err)
}
