package decision

import (
	"sort"

	"github.com/shopspring/decimal"
)

// Record - платеж или распределение, по которому нужно решение.
type Record struct {
	ID     uint
	Amount decimal.Decimal
}

// Collector накапливает решения оператора по шагам и не выпускает неполный набор.
type Collector struct {
	payments    map[uint]decimal.Decimal
	allocations map[uint]decimal.Decimal
	opts        Options
	ceiling     decimal.NullDecimal
	set         Set
}

// NewCollector создает форму для указанных записей. ceiling - новый предел дебиторки,
// он ограничивает reduce_to; невалидный ceiling означает "без ограничения".
func NewCollector(payments, allocations []Record, opts Options, ceiling decimal.NullDecimal) *Collector {
	c := &Collector{
		payments:    make(map[uint]decimal.Decimal, len(payments)),
		allocations: make(map[uint]decimal.Decimal, len(allocations)),
		opts:        opts,
		ceiling:     ceiling,
		set:         NewSet(),
	}
	for _, p := range payments {
		c.payments[p.ID] = p.Amount
	}
	for _, a := range allocations {
		c.allocations[a.ID] = a.Amount
	}
	return c
}

func (c *Collector) DecidePayment(id uint, d PaymentDecision) error {
	original, ok := c.payments[id]
	if !ok {
		return invalidf("payment %d is not part of this decision", id)
	}
	if r, ok := d.(ReducePayment); ok {
		if err := ValidateReduce(id, r.Amount, original, c.ceiling, c.opts); err != nil {
			return err
		}
	}
	c.set.Payments[id] = d
	return nil
}

func (c *Collector) DecideAllocation(id uint, d AllocationDecision) error {
	if _, ok := c.allocations[id]; !ok {
		return invalidf("allocation %d is not part of this decision", id)
	}
	c.set.Allocations[id] = d
	return nil
}

// Pending возвращает записи без решения.
func (c *Collector) Pending() (payments, allocations []uint) {
	err := c.set.Missing(c.paymentIDs(), c.allocationIDs())
	if err == nil {
		return nil, nil
	}
	missing := err.(*MissingError)
	return missing.Payments, missing.Allocations
}

// Submit возвращает набор решений или *MissingError, если решены не все записи.
func (c *Collector) Submit() (Set, error) {
	if err := c.set.Missing(c.paymentIDs(), c.allocationIDs()); err != nil {
		return Set{}, err
	}
	return c.set, nil
}

func (c *Collector) paymentIDs() []uint {
	return sortedKeys(c.payments)
}

func (c *Collector) allocationIDs() []uint {
	return sortedKeys(c.allocations)
}

// ValidateReduce проверяет границы reduce_to: 0 < amount <= original и amount <= ceiling.
func ValidateReduce(id uint, amount, original decimal.Decimal, ceiling decimal.NullDecimal, opts Options) error {
	if !opts.AllowReduce {
		return invalidf("payment %d: reduce_to is not allowed here", id)
	}
	if !amount.IsPositive() {
		return invalidf("payment %d: reduce_to requires a positive amount", id)
	}
	if amount.GreaterThan(original) {
		return invalidf("payment %d: cannot reduce %s to %s", id, original.StringFixed(2), amount.StringFixed(2))
	}
	if ceiling.Valid && amount.GreaterThan(ceiling.Decimal) {
		return invalidf("payment %d: %s exceeds the new receivable amount %s", id, amount.StringFixed(2), ceiling.Decimal.StringFixed(2))
	}
	return nil
}

func sortedKeys(m map[uint]decimal.Decimal) []uint {
	keys := make([]uint, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}
