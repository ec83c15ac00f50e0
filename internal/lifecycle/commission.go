package lifecycle

import (
	"fmt"

	"agency-crm/models"

	"github.com/Knetic/govaluate"
	"github.com/shopspring/decimal"
)

// Formula - выражение комиссии исполнителя. Доступные переменные:
// amount, prepaid_amount, expense_amount.
type Formula struct {
	source string
	expr   *govaluate.EvaluableExpression
}

// ParseFormula разбирает выражение один раз при старте, чтобы ошибка всплыла сразу.
func ParseFormula(source string) (*Formula, error) {
	expr, err := govaluate.NewEvaluableExpression(source)
	if err != nil {
		return nil, fmt.Errorf("commission formula %q: %w", source, err)
	}
	return &Formula{source: source, expr: expr}, nil
}

func (f *Formula) String() string { return f.source }

// Commission считает комиссию по суммам задачи. Отрицательный результат дает ноль.
func (f *Formula) Commission(task *models.Task) (decimal.Decimal, error) {
	parameters := map[string]interface{}{
		"amount":         task.Amount.InexactFloat64(),
		"prepaid_amount": task.PrepaidAmount.InexactFloat64(),
		"expense_amount": task.ExpenseAmount.InexactFloat64(),
	}
	result, err := f.expr.Evaluate(parameters)
	if err != nil {
		return decimal.Zero, fmt.Errorf("evaluate commission formula %q: %w", f.source, err)
	}
	value, ok := result.(float64)
	if !ok {
		return decimal.Zero, fmt.Errorf("commission formula %q returned %T, not a number", f.source, result)
	}
	amount := decimal.NewFromFloat(value).Round(2)
	if amount.IsNegative() {
		return decimal.Zero, nil
	}
	return amount, nil
}
