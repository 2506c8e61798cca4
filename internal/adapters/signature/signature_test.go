package signature

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func payload() Payload {
	return Payload{
		ReceiptNumber:        "RCP-20250601-AB12CD34",
		TransactionReference: "TXN-20250601-EF56GH78",
		DRID:                 "DRID-20250601-JK90MN",
		Amount:               250_000,
		Currency:             "PKR",
		IssuedAt:             time.Date(2025, 6, 1, 10, 30, 0, 0, time.UTC),
	}
}

func TestSignAndVerify(t *testing.T) {
	signer, err := NewHMACSigner([]byte("branch-signing-key"))
	require.NoError(t, err)

	sig, alg, err := signer.Sign(payload())
	require.NoError(t, err)
	require.Equal(t, "HMAC-SHA256", alg)
	require.NotEmpty(t, sig)

	require.NoError(t, signer.Verify(payload(), sig))
}

func TestVerifyRejectsTamperedPayload(t *testing.T) {
	signer, err := NewHMACSigner([]byte("branch-signing-key"))
	require.NoError(t, err)

	sig, _, err := signer.Sign(payload())
	require.NoError(t, err)

	tampered := payload()
	tampered.Amount = 1_250_000
	require.ErrorIs(t, signer.Verify(tampered, sig), ErrVerificationFailed)
}

func TestVerifyRejectsWrongKey(t *testing.T) {
	signer, err := NewHMACSigner([]byte("branch-signing-key"))
	require.NoError(t, err)
	other, err := NewHMACSigner([]byte("different-key"))
	require.NoError(t, err)

	sig, _, err := signer.Sign(payload())
	require.NoError(t, err)
	require.ErrorIs(t, other.Verify(payload(), sig), ErrVerificationFailed)
}

func TestVerifyRejectsGarbageSignature(t *testing.T) {
	signer, err := NewHMACSigner([]byte("branch-signing-key"))
	require.NoError(t, err)
	require.Error(t, signer.Verify(payload(), "not-base64!!"))
}

func TestNewHMACSignerRequiresKey(t *testing.T) {
	_, err := NewHMACSigner(nil)
	require.Error(t, err)
}
