// Package signature abstracts receipt signing. The service treats the signer
// as a black box that either returns a signature or fails; completion never
// proceeds on a failed signature.
package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var ErrVerificationFailed = errors.New("signature verification failed")

// Payload is the canonical set of receipt fields covered by the signature.
type Payload struct {
	ReceiptNumber        string
	TransactionReference string
	DRID                 string
	Amount               int64
	Currency             string
	IssuedAt             time.Time
}

// canonical renders the payload as a stable pipe-delimited string. Field
// order is part of the signature contract and must not change.
func (p Payload) canonical() []byte {
	fields := []string{
		p.ReceiptNumber,
		p.TransactionReference,
		p.DRID,
		strconv.FormatInt(p.Amount, 10),
		p.Currency,
		p.IssuedAt.UTC().Format(time.RFC3339),
	}
	return []byte(strings.Join(fields, "|"))
}

// Signer produces and checks detached signatures over receipt payloads.
type Signer interface {
	Sign(payload Payload) (signature string, alg string, err error)
	Verify(payload Payload, signature string) error
}

// HMACSigner signs with HMAC-SHA256 under a shared branch key. Stands in for
// an HSM-backed signer in deployments that have one.
type HMACSigner struct {
	key []byte
}

func NewHMACSigner(key []byte) (*HMACSigner, error) {
	if len(key) == 0 {
		return nil, errors.New("signing key must not be empty")
	}
	return &HMACSigner{key: key}, nil
}

func (s *HMACSigner) Sign(payload Payload) (string, string, error) {
	mac := hmac.New(sha256.New, s.key)
	mac.Write(payload.canonical())
	return base64.StdEncoding.EncodeToString(mac.Sum(nil)), "HMAC-SHA256", nil
}

func (s *HMACSigner) Verify(payload Payload, signature string) error {
	given, err := base64.StdEncoding.DecodeString(signature)
	if err != nil {
		return fmt.Errorf("decode signature: %w", err)
	}
	mac := hmac.New(sha256.New, s.key)
	mac.Write(payload.canonical())
	if !hmac.Equal(mac.Sum(nil), given) {
		return ErrVerificationFailed
	}
	return nil
}
