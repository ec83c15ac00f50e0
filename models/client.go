package models

import (
	"agency-crm/pkg/dto"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type ClientType string

const (
	ClientGovernment ClientType = "government"
	ClientAccounting ClientType = "accounting"
	ClientRealEstate ClientType = "real_estate"
)

func (t ClientType) Valid() bool {
	switch t {
	case ClientGovernment, ClientAccounting, ClientRealEstate:
		return true
	}
	return false
}

// Client - заказчик агентства.
type Client struct {
	gorm.Model
	Name    string         `json:"name" gorm:"not null"`
	Type    ClientType     `json:"type" gorm:"type:varchar(32);not null"`
	Email   string         `json:"email"`
	Phone   string         `json:"phone"`
	Credits []ClientCredit `json:"credits,omitempty" gorm:"foreignKey:ClientID"`
}

type CreditSource string

const (
	CreditFromPaymentConversion CreditSource = "payment_conversion"
	CreditManual                CreditSource = "manual"
	CreditOverpayment           CreditSource = "overpayment"
)

// ClientCredit - деньги клиента, которые можно зачесть в будущие дебиторки.
// Balance уменьшается распределениями и восстанавливается при их возврате.
type ClientCredit struct {
	gorm.Model
	ClientID        uint            `json:"client_id" gorm:"not null;index"`
	Source          CreditSource    `json:"source" gorm:"type:varchar(32);not null"`
	Amount          decimal.Decimal `json:"amount" gorm:"type:numeric(12,2);not null"`
	Balance         decimal.Decimal `json:"balance" gorm:"type:numeric(12,2);not null"`
	SourcePaymentID *uint           `json:"source_payment_id"`
	Note            string          `json:"note"`
}

func (c *ClientCredit) DTO() dto.Credit {
	return dto.Credit{
		ID:              c.ID,
		Source:          string(c.Source),
		Amount:          c.Amount,
		Balance:         c.Balance,
		SourcePaymentID: c.SourcePaymentID,
		Note:            c.Note,
		CreatedAt:       c.CreatedAt,
	}
}
