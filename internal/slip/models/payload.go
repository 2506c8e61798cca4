package models

import (
	"regexp"
	"strings"

	derrors "slipdesk/pkg/domain-errors"
)

// TransactionType keys the payload union. Each type carries its own
// required sub-fields, so validation and checklist rules stay exhaustive
// per type instead of stringly-typed lookups.
type TransactionType string

const (
	TypeCashDeposit   TransactionType = "CASH_DEPOSIT"
	TypeChequeDeposit TransactionType = "CHEQUE_DEPOSIT"
	TypePayOrder      TransactionType = "PAY_ORDER"
	TypeBillPayment   TransactionType = "BILL_PAYMENT"
	TypeFundTransfer  TransactionType = "FUND_TRANSFER"
)

func (t TransactionType) Valid() bool {
	switch t {
	case TypeCashDeposit, TypeChequeDeposit, TypePayOrder, TypeBillPayment, TypeFundTransfer:
		return true
	}
	return false
}

// RequiresInstrument reports whether the physical instrument must be
// verified at the counter before the slip can move to VERIFIED.
func (t TransactionType) RequiresInstrument() bool {
	return t == TypeChequeDeposit || t == TypePayOrder
}

// MaxAmountMinor is the single-slip ceiling: 10 million PKR in paisa.
const MaxAmountMinor int64 = 10_000_000_00

// Depositor identifies who is physically presenting the deposit when it is
// not the account holder.
type Depositor struct {
	Name         string `json:"name"`
	CNIC         string `json:"cnic,omitempty"`
	Phone        string `json:"phone,omitempty"`
	Relationship string `json:"relationship"` // SELF, FAMILY, AGENT, OTHER
}

// ChequeDetails carries instrument fields for cheque and pay-order slips.
type ChequeDetails struct {
	Number     string `json:"number"`
	BankName   string `json:"bank_name"`
	BranchName string `json:"branch_name,omitempty"`
	Date       string `json:"date,omitempty"` // instrument date as written, YYYY-MM-DD
}

// BillDetails carries biller fields for bill-payment slips.
type BillDetails struct {
	BillerName     string `json:"biller_name"`
	ConsumerNumber string `json:"consumer_number"`
	BillMonth      string `json:"bill_month,omitempty"`
}

// BeneficiaryDetails carries the receiving side of a fund transfer.
type BeneficiaryDetails struct {
	Name     string `json:"name"`
	Account  string `json:"account"`
	BankName string `json:"bank_name,omitempty"`
}

// Payload is the transaction shape captured at intake. Immutable once the
// slip is created, except through explicit teller edits during verification,
// which are audit-logged.
//
// Amount is in minor units (paisa for PKR).
type Payload struct {
	Type            TransactionType     `json:"type"`
	CustomerName    string              `json:"customer_name"`
	CustomerCNIC    string              `json:"customer_cnic"`
	CustomerAccount string              `json:"customer_account"`
	CustomerPhone   string              `json:"customer_phone"`
	Amount          int64               `json:"amount"`
	Currency        string              `json:"currency"`
	Narration       string              `json:"narration,omitempty"`
	Depositor       *Depositor          `json:"depositor,omitempty"`
	Cheque          *ChequeDetails      `json:"cheque,omitempty"`
	Bill            *BillDetails        `json:"bill,omitempty"`
	Beneficiary     *BeneficiaryDetails `json:"beneficiary,omitempty"`
}

var (
	cnicPattern    = regexp.MustCompile(`^\d{5}-?\d{7}-?\d$`)
	accountPattern = regexp.MustCompile(`^[A-Za-z0-9-]{8,34}$`)
)

// Validate enforces the per-type shape. Called once at intake and again
// before verification so teller edits cannot smuggle in an invalid payload.
func (p *Payload) Validate() error {
	if !p.Type.Valid() {
		return derrors.Newf(derrors.CodeValidationFailed, "unknown transaction type %q", p.Type)
	}
	if strings.TrimSpace(p.CustomerName) == "" {
		return derrors.New(derrors.CodeValidationFailed, "customer name is required")
	}
	if !cnicPattern.MatchString(p.CustomerCNIC) {
		return derrors.New(derrors.CodeValidationFailed, "customer CNIC is malformed")
	}
	if !accountPattern.MatchString(p.CustomerAccount) {
		return derrors.New(derrors.CodeValidationFailed, "customer account is malformed")
	}
	if strings.TrimSpace(p.CustomerPhone) == "" {
		return derrors.New(derrors.CodeValidationFailed, "customer phone is required for OTP delivery")
	}
	if p.Amount <= 0 {
		return derrors.New(derrors.CodeValidationFailed, "amount must be positive")
	}
	if p.Amount > MaxAmountMinor {
		return derrors.New(derrors.CodeValidationFailed, "amount exceeds the single-slip limit")
	}
	if len(p.Currency) != 3 {
		return derrors.New(derrors.CodeValidationFailed, "currency must be a 3-letter code")
	}

	// Per-type sub-fields: required for the matching type, rejected otherwise.
	switch p.Type {
	case TypeChequeDeposit, TypePayOrder:
		if p.Cheque == nil || p.Cheque.Number == "" || p.Cheque.BankName == "" {
			return derrors.Newf(derrors.CodeValidationFailed, "%s requires cheque number and bank", p.Type)
		}
		if p.Bill != nil || p.Beneficiary != nil {
			return derrors.Newf(derrors.CodeValidationFailed, "%s does not accept bill or beneficiary details", p.Type)
		}
	case TypeBillPayment:
		if p.Bill == nil || p.Bill.BillerName == "" || p.Bill.ConsumerNumber == "" {
			return derrors.New(derrors.CodeValidationFailed, "bill payment requires biller and consumer number")
		}
		if p.Cheque != nil || p.Beneficiary != nil {
			return derrors.New(derrors.CodeValidationFailed, "bill payment does not accept cheque or beneficiary details")
		}
	case TypeFundTransfer:
		if p.Beneficiary == nil || p.Beneficiary.Name == "" || p.Beneficiary.Account == "" {
			return derrors.New(derrors.CodeValidationFailed, "fund transfer requires beneficiary name and account")
		}
		if p.Cheque != nil || p.Bill != nil {
			return derrors.New(derrors.CodeValidationFailed, "fund transfer does not accept cheque or bill details")
		}
	case TypeCashDeposit:
		if p.Cheque != nil || p.Bill != nil || p.Beneficiary != nil {
			return derrors.New(derrors.CodeValidationFailed, "cash deposit does not accept instrument details")
		}
	}

	if p.Depositor != nil {
		switch p.Depositor.Relationship {
		case "SELF", "FAMILY", "AGENT", "OTHER":
		default:
			return derrors.New(derrors.CodeValidationFailed, "depositor relationship must be SELF, FAMILY, AGENT or OTHER")
		}
	}
	return nil
}

// DepositorName resolves who presents the deposit, defaulting to the
// account holder.
func (p *Payload) DepositorName() string {
	if p.Depositor != nil && p.Depositor.Name != "" {
		return p.Depositor.Name
	}
	return p.CustomerName
}

// DepositorPhone resolves the OTP delivery number, defaulting to the
// account holder's.
func (p *Payload) DepositorPhone() string {
	if p.Depositor != nil && p.Depositor.Phone != "" {
		return p.Depositor.Phone
	}
	return p.CustomerPhone
}
