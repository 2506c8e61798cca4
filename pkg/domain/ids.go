// Package domain holds small shared identifier types. Typed IDs keep slip,
// transaction and receipt identifiers from being swapped accidentally at
// call sites that juggle several UUIDs.
package domain

import "github.com/google/uuid"

type SlipID uuid.UUID

type TransactionID uuid.UUID

type ReceiptID uuid.UUID

func NewSlipID() SlipID               { return SlipID(uuid.New()) }
func NewTransactionID() TransactionID { return TransactionID(uuid.New()) }
func NewReceiptID() ReceiptID         { return ReceiptID(uuid.New()) }

func (id SlipID) String() string        { return uuid.UUID(id).String() }
func (id TransactionID) String() string { return uuid.UUID(id).String() }
func (id ReceiptID) String() string     { return uuid.UUID(id).String() }

func (id SlipID) IsNil() bool        { return uuid.UUID(id) == uuid.Nil }
func (id TransactionID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id ReceiptID) IsNil() bool     { return uuid.UUID(id) == uuid.Nil }

// Defined types do not inherit uuid.UUID's method set, so each ID implements
// text marshaling itself to keep the canonical string form in JSON.

func (id SlipID) MarshalText() ([]byte, error)        { return []byte(id.String()), nil }
func (id TransactionID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }
func (id ReceiptID) MarshalText() ([]byte, error)     { return []byte(id.String()), nil }

func (id *SlipID) UnmarshalText(b []byte) error {
	u, err := uuid.Parse(string(b))
	if err != nil {
		return err
	}
	*id = SlipID(u)
	return nil
}

func (id *TransactionID) UnmarshalText(b []byte) error {
	u, err := uuid.Parse(string(b))
	if err != nil {
		return err
	}
	*id = TransactionID(u)
	return nil
}

func (id *ReceiptID) UnmarshalText(b []byte) error {
	u, err := uuid.Parse(string(b))
	if err != nil {
		return err
	}
	*id = ReceiptID(u)
	return nil
}

// ParseSlipID parses the canonical UUID form of a slip ID.
func ParseSlipID(s string) (SlipID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return SlipID{}, err
	}
	return SlipID(u), nil
}

// ParseTransactionID parses the canonical UUID form of a transaction ID.
func ParseTransactionID(s string) (TransactionID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return TransactionID{}, err
	}
	return TransactionID(u), nil
}
