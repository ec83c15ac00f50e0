package decision

import (
	"errors"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidDecision        = errors.New("invalid decision")
	ErrPartialDecisionMissing = errors.New("partial decision missing")
)

// MissingError перечисляет записи, по которым оператор не принял решение.
type MissingError struct {
	Payments    []uint `json:"payments,omitempty"`
	Allocations []uint `json:"allocations,omitempty"`
}

func (e *MissingError) Error() string {
	return fmt.Sprintf("no decision for payments %v and allocations %v", e.Payments, e.Allocations)
}

func (e *MissingError) Unwrap() error { return ErrPartialDecisionMissing }

func invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidDecision, fmt.Sprintf(format, args...))
}

// PaymentItem - решение по платежу в формате API.
type PaymentItem struct {
	PaymentID uint             `json:"payment_id"`
	Action    Action           `json:"action"`
	Amount    *decimal.Decimal `json:"amount,omitempty"`
}

// AllocationItem - решение по распределению в формате API.
type AllocationItem struct {
	AllocationID uint   `json:"allocation_id"`
	Action       Action `json:"action"`
}

// Options ограничивают допустимые решения для конкретного сценария.
type Options struct {
	// AllowReduce разрешает reduce_to. При отмене задачи уменьшать платежи нельзя.
	AllowReduce bool
}

func (it PaymentItem) Decode(opts Options) (PaymentDecision, error) {
	switch it.Action {
	case ActionKeep:
		return KeepPayment{}, nil
	case ActionDelete:
		return DeletePayment{}, nil
	case ActionConvertToCredit:
		return ConvertPaymentToCredit{}, nil
	case ActionReduceTo:
		if !opts.AllowReduce {
			return nil, invalidf("payment %d: reduce_to is not allowed here", it.PaymentID)
		}
		if it.Amount == nil || !it.Amount.IsPositive() {
			return nil, invalidf("payment %d: reduce_to requires a positive amount", it.PaymentID)
		}
		return ReducePayment{Amount: *it.Amount}, nil
	default:
		return nil, invalidf("payment %d: unknown action %q", it.PaymentID, it.Action)
	}
}

func (it AllocationItem) Decode() (AllocationDecision, error) {
	switch it.Action {
	case ActionKeep:
		return KeepAllocation{}, nil
	// delete и convert_to_credit - общие названия действий, для распределений они означают то же самое
	case ActionReturnToCredit, ActionConvertToCredit:
		return ReturnAllocationToCredit{}, nil
	case ActionDeleteAllocation, ActionDelete:
		return DeleteAllocation{}, nil
	default:
		return nil, invalidf("allocation %d: unknown action %q", it.AllocationID, it.Action)
	}
}

func EncodePayment(id uint, d PaymentDecision) PaymentItem {
	it := PaymentItem{PaymentID: id, Action: d.Action()}
	if r, ok := d.(ReducePayment); ok {
		amount := r.Amount
		it.Amount = &amount
	}
	return it
}

func EncodeAllocation(id uint, d AllocationDecision) AllocationItem {
	return AllocationItem{AllocationID: id, Action: d.Action()}
}

// Set - решения по всем записям одной дебиторки.
type Set struct {
	Payments    map[uint]PaymentDecision
	Allocations map[uint]AllocationDecision
}

func NewSet() Set {
	return Set{
		Payments:    make(map[uint]PaymentDecision),
		Allocations: make(map[uint]AllocationDecision),
	}
}

// Decode собирает Set из элементов запроса. Повторное решение по одной записи - ошибка.
func Decode(payments []PaymentItem, allocations []AllocationItem, opts Options) (Set, error) {
	set := NewSet()
	for _, it := range payments {
		if _, dup := set.Payments[it.PaymentID]; dup {
			return Set{}, invalidf("duplicate decision for payment %d", it.PaymentID)
		}
		d, err := it.Decode(opts)
		if err != nil {
			return Set{}, err
		}
		set.Payments[it.PaymentID] = d
	}
	for _, it := range allocations {
		if _, dup := set.Allocations[it.AllocationID]; dup {
			return Set{}, invalidf("duplicate decision for allocation %d", it.AllocationID)
		}
		d, err := it.Decode()
		if err != nil {
			return Set{}, err
		}
		set.Allocations[it.AllocationID] = d
	}
	return set, nil
}

// Items возвращает решения в формате API, отсортированные по ID.
func (s Set) Items() ([]PaymentItem, []AllocationItem) {
	payments := make([]PaymentItem, 0, len(s.Payments))
	for id, d := range s.Payments {
		payments = append(payments, EncodePayment(id, d))
	}
	sort.Slice(payments, func(i, j int) bool { return payments[i].PaymentID < payments[j].PaymentID })

	allocations := make([]AllocationItem, 0, len(s.Allocations))
	for id, d := range s.Allocations {
		allocations = append(allocations, EncodeAllocation(id, d))
	}
	sort.Slice(allocations, func(i, j int) bool { return allocations[i].AllocationID < allocations[j].AllocationID })
	return payments, allocations
}

func (s Set) Empty() bool {
	return len(s.Payments) == 0 && len(s.Allocations) == 0
}

// Missing возвращает *MissingError, если хотя бы одна запись осталась без решения.
func (s Set) Missing(paymentIDs, allocationIDs []uint) error {
	missing := &MissingError{}
	for _, id := range paymentIDs {
		if _, ok := s.Payments[id]; !ok {
			missing.Payments = append(missing.Payments, id)
		}
	}
	for _, id := range allocationIDs {
		if _, ok := s.Allocations[id]; !ok {
			missing.Allocations = append(missing.Allocations, id)
		}
	}
	if len(missing.Payments) == 0 && len(missing.Allocations) == 0 {
		return nil
	}
	return missing
}

// Unknown возвращает ID записей, решения по которым есть, а самих записей среди переданных нет.
func (s Set) Unknown(paymentIDs, allocationIDs []uint) (payments, allocations []uint) {
	known := make(map[uint]bool, len(paymentIDs))
	for _, id := range paymentIDs {
		known[id] = true
	}
	for id := range s.Payments {
		if !known[id] {
			payments = append(payments, id)
		}
	}

	known = make(map[uint]bool, len(allocationIDs))
	for _, id := range allocationIDs {
		known[id] = true
	}
	for id := range s.Allocations {
		if !known[id] {
			allocations = append(allocations, id)
		}
	}
	sort.Slice(payments, func(i, j int) bool { return payments[i] < payments[j] })
	sort.Slice(allocations, func(i, j int) bool { return allocations[i] < allocations[j] })
	return payments, allocations
}

// RequiresConfirmation reports whether applying the set voids money or returns it to credit.
func (s Set) RequiresConfirmation() bool {
	for _, d := range s.Payments {
		if _, ok := d.(DeletePayment); ok {
			return true
		}
	}
	for _, d := range s.Allocations {
		switch d.(type) {
		case ReturnAllocationToCredit, DeleteAllocation:
			return true
		}
	}
	return false
}
