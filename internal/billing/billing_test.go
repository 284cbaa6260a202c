package billing_test

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tabibdesk/internal/billing"
	"tabibdesk/internal/model"
)

func TestTotals(t *testing.T) {
	items := []model.LineItem{
		{Description: "Consultation", Quantity: 1, UnitPrice: 30000},
		{Description: "Dressing", Quantity: 3, UnitPrice: 2500},
	}
	sub, total, err := billing.Totals(items, 5000)
	require.NoError(t, err)
	assert.EqualValues(t, 37500, sub)
	assert.EqualValues(t, 32500, total)
}

func TestTotalsErrors(t *testing.T) {
	one := []model.LineItem{{Description: "X", Quantity: 1, UnitPrice: 100}}
	tests := []struct {
		name     string
		items    []model.LineItem
		discount int64
		want     error
	}{
		{"no items", nil, 0, billing.ErrNoItems},
		{"zero quantity", []model.LineItem{{Description: "X", Quantity: 0, UnitPrice: 100}}, 0, billing.ErrItemQuantity},
		{"negative price", []model.LineItem{{Description: "X", Quantity: 1, UnitPrice: -1}}, 0, billing.ErrItemPrice},
		{"no description", []model.LineItem{{Quantity: 1, UnitPrice: 1}}, 0, billing.ErrItemName},
		{"negative discount", one, -1, billing.ErrDiscount},
		{"discount above subtotal", one, 101, billing.ErrDiscount},
		{"line overflows", []model.LineItem{{Description: "X", Quantity: 4, UnitPrice: 1 << 62}}, 0, billing.ErrTooLarge},
		{"sum overflows", []model.LineItem{
			{Description: "X", Quantity: 1, UnitPrice: math.MaxInt64},
			{Description: "Y", Quantity: 1, UnitPrice: 1},
		}, 0, billing.ErrTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := billing.Totals(tt.items, tt.discount)
			require.ErrorIs(t, err, tt.want)
		})
	}
}

func TestStatus(t *testing.T) {
	assert.Equal(t, model.InvoiceUnpaid, billing.Status(&model.Invoice{Total: 100}))
	assert.Equal(t, model.InvoicePartiallyPaid, billing.Status(&model.Invoice{Total: 100, AmountPaid: 40}))
	assert.Equal(t, model.InvoicePaid, billing.Status(&model.Invoice{Total: 100, AmountPaid: 100}))
	assert.Equal(t, model.InvoicePaid, billing.Status(&model.Invoice{Total: 0}))
	assert.Equal(t, model.InvoiceVoid, billing.Status(&model.Invoice{Total: 100, AmountPaid: 100, Status: model.InvoiceVoid}))
}

func TestCheckPayment(t *testing.T) {
	inv := &model.Invoice{Total: 1000, AmountPaid: 400, Status: model.InvoicePartiallyPaid}
	require.NoError(t, billing.CheckPayment(inv, 600))
	require.ErrorIs(t, billing.CheckPayment(inv, 601), billing.ErrOverpayment)
	require.ErrorIs(t, billing.CheckPayment(inv, 0), billing.ErrAmount)

	inv.AmountPaid = 1000
	inv.Status = model.InvoicePaid
	require.ErrorIs(t, billing.CheckPayment(inv, 1), billing.ErrSettled)

	inv.Status = model.InvoiceVoid
	require.ErrorIs(t, billing.CheckPayment(inv, 1), billing.ErrVoid)
}

func TestReconcile(t *testing.T) {
	t1 := time.Date(2026, 1, 5, 10, 0, 0, 0, time.UTC)
	t2 := t1.Add(48 * time.Hour)
	inv := &model.Invoice{ID: "inv", Total: 1000}
	payments := []model.Payment{
		{InvoiceID: "inv", Amount: 300, PaidAt: t1},
		{InvoiceID: "other", Amount: 999, PaidAt: t2},
	}
	billing.Reconcile(inv, payments)
	assert.EqualValues(t, 300, inv.AmountPaid)
	assert.Equal(t, model.InvoicePartiallyPaid, inv.Status)
	assert.Nil(t, inv.PaidAt)

	payments = append(payments, model.Payment{InvoiceID: "inv", Amount: 700, PaidAt: t2})
	billing.Reconcile(inv, payments)
	assert.Equal(t, model.InvoicePaid, inv.Status)
	require.NotNil(t, inv.PaidAt)
	assert.True(t, inv.PaidAt.Equal(t2))

	// reversal: no payments left
	billing.Reconcile(inv, nil)
	assert.EqualValues(t, 0, inv.AmountPaid)
	assert.Equal(t, model.InvoiceUnpaid, inv.Status)
	assert.Nil(t, inv.PaidAt)
}

func TestSummarize(t *testing.T) {
	s := billing.Summarize(
		[]model.Payment{
			{Amount: 500, Method: model.MethodCash},
			{Amount: 250, Method: model.MethodCard},
			{Amount: 100, Method: model.MethodCash},
		},
		[]model.Expense{
			{Amount: 300, Category: model.ExpenseRent},
			{Amount: 50, Category: model.ExpenseSupplies},
		},
		[]model.Invoice{
			{Total: 1000, AmountPaid: 600, Status: model.InvoicePartiallyPaid},
			{Total: 400, Status: model.InvoiceVoid},
			{Total: 200, Status: model.InvoiceUnpaid},
		},
	)
	assert.EqualValues(t, 850, s.Revenue)
	assert.EqualValues(t, 350, s.Expenses)
	assert.EqualValues(t, 500, s.Net)
	assert.EqualValues(t, 600, s.Outstanding)
	assert.EqualValues(t, 600, s.ByMethod[model.MethodCash])
	assert.Equal(t, []model.PaymentMethod{model.MethodCard, model.MethodCash}, billing.SortedMethods(s.ByMethod))
	assert.Equal(t, []model.ExpenseCategory{model.ExpenseRent, model.ExpenseSupplies}, billing.SortedCategories(s.ByCategory))
}

func TestFormat(t *testing.T) {
	assert.Equal(t, "EGP 150.50", billing.Format(15050, "EGP"))
	assert.Contains(t, billing.Format(5, "USD"), "0.05")
	assert.Contains(t, billing.Format(1500, "JPY"), "1,500")
}
