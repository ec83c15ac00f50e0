package lifecycle

import (
	"fmt"

	"agency-crm/models"

	"github.com/divan/num2words"
	"github.com/shopspring/decimal"
)

// Currency - названия единиц валюты для суммы прописью.
type Currency struct {
	Major string
	Minor string
}

var DefaultCurrency = Currency{Major: "dollars", Minor: "cents"}

// AmountInWords - сумма прописью для печатной формы счета.
func (cur Currency) AmountInWords(amount decimal.Decimal) string {
	major := amount.IntPart()
	minor := amount.Sub(decimal.NewFromInt(major)).Mul(decimal.NewFromInt(100)).Round(0).IntPart()
	return fmt.Sprintf("%s %s %02d %s", num2words.Convert(int(major)), cur.Major, minor, cur.Minor)
}

func invoiceNumber(task *models.Task, kind models.ReceivableKind) string {
	return fmt.Sprintf("INV-%d-%d-%s", task.ID, task.Version, kind)
}
