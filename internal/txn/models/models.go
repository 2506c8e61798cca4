// Package models holds the posted Transaction and its signed Receipt, the
// durable artifacts minted exactly once when a deposit slip completes.
package models

import (
	"time"

	"github.com/jaevor/go-nanoid"

	slipmodels "slipdesk/internal/slip/models"
	id "slipdesk/pkg/domain"
)

// Crockford-style alphabet, no easily confused glyphs. Matches the slip code
// suffix alphabet so all customer-facing references read the same.
const referenceAlphabet = "0123456789ABCDEFGHJKMNPQRSTVWXYZ"

var newReferenceSuffix = mustGenerator(8)

func mustGenerator(length int) func() string {
	gen, err := nanoid.CustomASCII(referenceAlphabet, length)
	if err != nil {
		panic(err)
	}
	return gen
}

// NewTransactionReference mints a TXN-YYYYMMDD-XXXXXXXX reference.
func NewTransactionReference(now time.Time) string {
	return "TXN-" + now.Format("20060102") + "-" + newReferenceSuffix()
}

// NewReceiptNumber mints an RCP-YYYYMMDD-XXXXXXXX receipt number.
func NewReceiptNumber(now time.Time) string {
	return "RCP-" + now.Format("20060102") + "-" + newReferenceSuffix()
}

// Transaction is the posted core-banking record for a completed slip.
type Transaction struct {
	ID            id.TransactionID           `json:"id"`
	Reference     string                     `json:"reference"`
	SlipID        id.SlipID                  `json:"slip_id"`
	DRID          string                     `json:"drid"`
	Type          slipmodels.TransactionType `json:"type"`
	AccountNumber string                     `json:"account_number"`
	Amount        int64                      `json:"amount"`
	Currency      string                     `json:"currency"`
	Branch        string                     `json:"branch"`
	TellerID      string                     `json:"teller_id"`
	PostedAt      time.Time                  `json:"posted_at"`
}

// Receipt is the customer-facing proof of a posted transaction. Signature
// covers the canonical receipt fields; verification needs only the receipt
// itself and the signing key.
type Receipt struct {
	ID            id.ReceiptID     `json:"id"`
	Number        string           `json:"number"`
	TransactionID id.TransactionID `json:"transaction_id"`
	DRID          string           `json:"drid"`
	Amount        int64            `json:"amount"`
	Currency      string           `json:"currency"`
	AccountMasked string           `json:"account_masked"`
	Branch        string           `json:"branch"`
	IssuedAt      time.Time        `json:"issued_at"`
	Signature     string           `json:"signature"`
	SignatureAlg  string           `json:"signature_alg"`
}

// MaskAccount keeps the last four characters of an account number visible.
func MaskAccount(account string) string {
	if len(account) <= 4 {
		return account
	}
	masked := make([]byte, len(account))
	for i := range masked {
		masked[i] = '*'
	}
	copy(masked[len(masked)-4:], account[len(account)-4:])
	return string(masked)
}
