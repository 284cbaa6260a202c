// Package billing holds the invoice arithmetic: totals, payment checks and
// status derivation. Amounts are minor currency units.
package billing

import (
	"errors"
	"math"
	"sort"
	"time"

	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"

	"tabibdesk/internal/model"
)

var (
	ErrNoItems      = errors.New("invoice needs at least one item")
	ErrItemQuantity = errors.New("item quantity must be at least 1")
	ErrItemPrice    = errors.New("item price cannot be negative")
	ErrItemName     = errors.New("item description required")
	ErrTooLarge     = errors.New("invoice amount is too large")
	ErrDiscount     = errors.New("discount must be between zero and the subtotal")
	ErrAmount       = errors.New("payment amount must be positive")
	ErrOverpayment  = errors.New("payment exceeds invoice balance")
	ErrVoid         = errors.New("invoice is void")
	ErrSettled      = errors.New("invoice already paid")
)

// Totals returns subtotal and total for items less discount.
func Totals(items []model.LineItem, discount int64) (subtotal, total int64, err error) {
	if len(items) == 0 {
		return 0, 0, ErrNoItems
	}
	for _, it := range items {
		switch {
		case it.Description == "":
			return 0, 0, ErrItemName
		case it.Quantity < 1:
			return 0, 0, ErrItemQuantity
		case it.UnitPrice < 0:
			return 0, 0, ErrItemPrice
		}
		if it.UnitPrice != 0 && it.Quantity > math.MaxInt64/it.UnitPrice {
			return 0, 0, ErrTooLarge
		}
		line := it.Quantity * it.UnitPrice
		if subtotal > math.MaxInt64-line {
			return 0, 0, ErrTooLarge
		}
		subtotal += line
	}
	if discount < 0 || discount > subtotal {
		return 0, 0, ErrDiscount
	}
	return subtotal, subtotal - discount, nil
}

// Status derives the invoice status from what has been paid. Void is sticky.
func Status(inv *model.Invoice) model.InvoiceStatus {
	switch {
	case inv.Status == model.InvoiceVoid:
		return model.InvoiceVoid
	case inv.AmountPaid >= inv.Total:
		return model.InvoicePaid
	case inv.AmountPaid > 0:
		return model.InvoicePartiallyPaid
	default:
		return model.InvoiceUnpaid
	}
}

// CheckPayment validates adding amount to inv.
func CheckPayment(inv *model.Invoice, amount int64) error {
	if inv.Status == model.InvoiceVoid {
		return ErrVoid
	}
	if amount <= 0 {
		return ErrAmount
	}
	bal := inv.Balance()
	if bal == 0 {
		return ErrSettled
	}
	if amount > bal {
		return ErrOverpayment
	}
	return nil
}

// Reconcile recomputes AmountPaid, Status and PaidAt from the invoice's
// remaining payments.
func Reconcile(inv *model.Invoice, payments []model.Payment) {
	var paid int64
	var last time.Time
	for _, p := range payments {
		if p.InvoiceID != inv.ID {
			continue
		}
		paid += p.Amount
		if p.PaidAt.After(last) {
			last = p.PaidAt
		}
	}
	inv.AmountPaid = paid
	inv.Status = Status(inv)
	if inv.Status == model.InvoicePaid && !last.IsZero() {
		inv.PaidAt = &last
	} else {
		inv.PaidAt = nil
	}
}

type Summary struct {
	Revenue     int64
	Expenses    int64
	Net         int64
	Outstanding int64
	ByMethod    map[model.PaymentMethod]int64
	ByCategory  map[model.ExpenseCategory]int64
}

// Summarize totals payments and expenses of a period and the open balance of
// invoices.
func Summarize(payments []model.Payment, expenses []model.Expense, invoices []model.Invoice) Summary {
	s := Summary{
		ByMethod:   map[model.PaymentMethod]int64{},
		ByCategory: map[model.ExpenseCategory]int64{},
	}
	for _, p := range payments {
		s.Revenue += p.Amount
		s.ByMethod[p.Method] += p.Amount
	}
	for _, e := range expenses {
		s.Expenses += e.Amount
		s.ByCategory[e.Category] += e.Amount
	}
	for i := range invoices {
		s.Outstanding += invoices[i].Balance()
	}
	s.Net = s.Revenue - s.Expenses
	return s
}

// SortedMethods lists map keys in a stable order for responses.
func SortedMethods(m map[model.PaymentMethod]int64) []model.PaymentMethod {
	out := make([]model.PaymentMethod, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func SortedCategories(m map[model.ExpenseCategory]int64) []model.ExpenseCategory {
	out := make([]model.ExpenseCategory, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

var printer = message.NewPrinter(language.English)

// Format renders minor units as "EGP 1,234.50" using the currency's standard scale.
func Format(amount int64, code string) string {
	scale := 2
	if unit, err := currency.ParseISO(code); err == nil {
		scale, _ = currency.Standard.Rounding(unit)
		code = unit.String()
	}
	return printer.Sprintf("%s %v", code, number.Decimal(float64(amount)/math.Pow10(scale), number.Scale(scale)))
}
