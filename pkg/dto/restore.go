package dto

import (
	"github.com/shopspring/decimal"
)

type TaskRef struct {
	ID     uint       `json:"id"`
	Title  string     `json:"title"`
	Status TaskStatus `json:"status"`
}

type InvoiceConsequence struct {
	ID          uint            `json:"id"`
	Number      string          `json:"number"`
	Amount      decimal.Decimal `json:"amount"`
	HasPayments bool            `json:"has_payments"`
}

type CommissionConsequence struct {
	ID         uint            `json:"id"`
	EmployeeID uint            `json:"employee_id"`
	Amount     decimal.Decimal `json:"amount"`
	Status     string          `json:"status"`
}

type RestoreConsequences struct {
	Task               TaskRef                `json:"task"`
	InvoicesToDelete   []InvoiceConsequence   `json:"invoices_to_delete"`
	CommissionToDelete *CommissionConsequence `json:"commission_to_delete"`
}

// RestoreValidation - ответ validate-restore.
type RestoreValidation struct {
	Allowed      bool                `json:"allowed"`
	Reason       string              `json:"reason,omitempty"`
	Consequences RestoreConsequences `json:"consequences"`
}

// HasPaidInvoices - по какому-то из удаляемых счетов уже есть деньги.
func (v *RestoreValidation) HasPaidInvoices() bool {
	for _, inv := range v.Consequences.InvoicesToDelete {
		if inv.HasPayments {
			return true
		}
	}
	return false
}

type RestoreRequest struct {
	Confirm         bool `json:"confirm"`
	ExpectedVersion *int `json:"expected_version,omitempty"`
}
