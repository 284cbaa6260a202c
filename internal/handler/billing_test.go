package handler_test

import (
	"context"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/protobuf/types/known/timestamppb"

	"tabibdesk/internal/handler"
	"tabibdesk/internal/rpc"
)

func invoice(t *testing.T, h *handler.Handler, ctx context.Context, patientID string, price int64) *rpc.Invoice {
	t.Helper()
	inv, err := h.CreateInvoice(ctx, &rpc.CreateInvoiceRequest{
		PatientID: patientID,
		Items:     []*rpc.LineItem{{Description: "Consultation", Quantity: 1, UnitPrice: price}},
	})
	require.NoError(t, err)
	return inv
}

func pay(h *handler.Handler, ctx context.Context, invoiceID string, amount int64) (*rpc.PaymentResponse, error) {
	return h.RecordPayment(ctx, &rpc.RecordPaymentRequest{InvoiceID: invoiceID, Amount: amount, Method: "cash"})
}

func TestCreateInvoice(t *testing.T) {
	h, _ := setup(t)
	c := registerClinic(t, h)
	p := createPatient(t, h, c.recep, "Amira", "01001234567")

	inv, err := h.CreateInvoice(c.recep, &rpc.CreateInvoiceRequest{
		PatientID: p.ID,
		Items: []*rpc.LineItem{
			{Description: "Consultation", Quantity: 1, UnitPrice: 15000},
			{Description: "Dressing", Quantity: 2, UnitPrice: 2500},
		},
		Discount: 5000,
	})
	require.NoError(t, err)

	assert.Regexp(t, regexp.MustCompile(`^INV-\d{4}-0001$`), inv.Number)
	assert.EqualValues(t, 20000, inv.Subtotal)
	assert.EqualValues(t, 15000, inv.Total)
	assert.EqualValues(t, 15000, inv.Balance)
	assert.Equal(t, "unpaid", inv.Status)
	assert.Equal(t, "EGP", inv.Currency)
	assert.Equal(t, "EGP 150.00", inv.TotalText)

	second := invoice(t, h, c.recep, p.ID, 1000)
	assert.Regexp(t, `-0002$`, second.Number)

	t.Run("validation", func(t *testing.T) {
		tests := []struct {
			name string
			req  *rpc.CreateInvoiceRequest
			want codes.Code
		}{
			{"no items", &rpc.CreateInvoiceRequest{PatientID: p.ID}, codes.InvalidArgument},
			{"zero quantity", &rpc.CreateInvoiceRequest{PatientID: p.ID, Items: []*rpc.LineItem{{Description: "x", UnitPrice: 10}}}, codes.InvalidArgument},
			{"discount above subtotal", &rpc.CreateInvoiceRequest{
				PatientID: p.ID, Items: []*rpc.LineItem{{Description: "x", Quantity: 1, UnitPrice: 10}}, Discount: 11,
			}, codes.InvalidArgument},
			{"amount overflows", &rpc.CreateInvoiceRequest{
				PatientID: p.ID, Items: []*rpc.LineItem{{Description: "x", Quantity: 4, UnitPrice: 1 << 62}},
			}, codes.InvalidArgument},
			{"unknown patient", &rpc.CreateInvoiceRequest{
				PatientID: "ghost", Items: []*rpc.LineItem{{Description: "x", Quantity: 1, UnitPrice: 10}},
			}, codes.NotFound},
			{"due before issue", &rpc.CreateInvoiceRequest{
				PatientID: p.ID, Items: []*rpc.LineItem{{Description: "x", Quantity: 1, UnitPrice: 10}},
				DueAt: timestamppb.New(time.Now().Add(-48 * time.Hour)),
			}, codes.InvalidArgument},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				_, err := h.CreateInvoice(c.recep, tt.req)
				assert.Equal(t, tt.want, code(err))
			})
		}
	})

	t.Run("appointment of another patient", func(t *testing.T) {
		other := createPatient(t, h, c.recep, "Omar", "01112223334")
		apt, err := book(h, c.recep, other.ID, c.doctorID, time.Now().Add(3*time.Hour), 20*time.Minute)
		require.NoError(t, err)
		_, err = h.CreateInvoice(c.recep, &rpc.CreateInvoiceRequest{
			PatientID: p.ID, AppointmentID: apt.ID,
			Items: []*rpc.LineItem{{Description: "x", Quantity: 1, UnitPrice: 10}},
		})
		assert.Equal(t, codes.InvalidArgument, code(err))
	})
}

func TestPayments(t *testing.T) {
	h, _ := setup(t)
	c := registerClinic(t, h)
	p := createPatient(t, h, c.recep, "Amira", "01001234567")
	inv := invoice(t, h, c.recep, p.ID, 15000)

	res, err := pay(h, c.recep, inv.ID, 5000)
	require.NoError(t, err)
	assert.Equal(t, "partially_paid", res.Invoice.Status)
	assert.EqualValues(t, 10000, res.Invoice.Balance)
	assert.Equal(t, c.recepID, res.Payment.CreatedBy)

	_, err = pay(h, c.recep, inv.ID, 10001)
	assert.Equal(t, codes.InvalidArgument, code(err))
	_, err = pay(h, c.recep, inv.ID, 0)
	assert.Equal(t, codes.InvalidArgument, code(err))
	_, err = h.RecordPayment(c.recep, &rpc.RecordPaymentRequest{InvoiceID: inv.ID, Amount: 100, Method: "barter"})
	assert.Equal(t, codes.InvalidArgument, code(err))

	// items are frozen once money came in
	_, err = h.UpdateInvoice(c.recep, &rpc.UpdateInvoiceRequest{
		ID: inv.ID, Items: []*rpc.LineItem{{Description: "x", Quantity: 1, UnitPrice: 10}},
	})
	assert.Equal(t, codes.FailedPrecondition, code(err))
	_, err = h.VoidInvoice(c.recep, &rpc.VoidInvoiceRequest{ID: inv.ID})
	assert.Equal(t, codes.FailedPrecondition, code(err))

	paid, err := h.MarkInvoicePaid(c.recep, &rpc.MarkInvoicePaidRequest{InvoiceID: inv.ID, Method: "card"})
	require.NoError(t, err)
	assert.EqualValues(t, 10000, paid.Payment.Amount)
	assert.Equal(t, "paid", paid.Invoice.Status)
	assert.EqualValues(t, 0, paid.Invoice.Balance)
	assert.NotNil(t, paid.Invoice.PaidAt)

	_, err = h.MarkInvoicePaid(c.recep, &rpc.MarkInvoicePaidRequest{InvoiceID: inv.ID})
	assert.Equal(t, codes.FailedPrecondition, code(err))
	_, err = pay(h, c.recep, inv.ID, 1)
	assert.Equal(t, codes.FailedPrecondition, code(err))

	list, err := h.ListPayments(c.recep, &rpc.ListPaymentsRequest{InvoiceID: inv.ID})
	require.NoError(t, err)
	assert.EqualValues(t, 2, list.Total)

	// dropping one payment re-derives the status
	back, err := h.DeletePayment(c.recep, &rpc.IDRequest{ID: paid.Payment.ID})
	require.NoError(t, err)
	assert.Equal(t, "partially_paid", back.Status)
	assert.EqualValues(t, 5000, back.AmountPaid)
	assert.Nil(t, back.PaidAt)
}

func TestReverseInvoicePayments(t *testing.T) {
	h, _ := setup(t)
	c := registerClinic(t, h)
	p := createPatient(t, h, c.recep, "Amira", "01001234567")
	inv := invoice(t, h, c.recep, p.ID, 15000)

	for _, amt := range []int64{5000, 4000, 6000} {
		_, err := pay(h, c.recep, inv.ID, amt)
		require.NoError(t, err)
	}

	res, err := h.ReverseInvoicePayments(c.admin, &rpc.ReverseInvoicePaymentsRequest{InvoiceID: inv.ID})
	require.NoError(t, err)
	assert.EqualValues(t, 3, res.Removed)
	assert.Equal(t, "unpaid", res.Invoice.Status)
	assert.EqualValues(t, 0, res.Invoice.AmountPaid)
	assert.EqualValues(t, 15000, res.Invoice.Balance)

	list, err := h.ListPayments(c.recep, &rpc.ListPaymentsRequest{InvoiceID: inv.ID})
	require.NoError(t, err)
	assert.Empty(t, list.Payments)

	_, err = h.ReverseInvoicePayments(c.admin, &rpc.ReverseInvoicePaymentsRequest{InvoiceID: inv.ID})
	assert.Equal(t, codes.FailedPrecondition, code(err))

	// the invoice is editable again
	_, err = h.UpdateInvoice(c.recep, &rpc.UpdateInvoiceRequest{
		ID: inv.ID, Items: []*rpc.LineItem{{Description: "Follow-up", Quantity: 1, UnitPrice: 8000}},
	})
	require.NoError(t, err)
}

func TestVoidInvoice(t *testing.T) {
	h, _ := setup(t)
	c := registerClinic(t, h)
	p := createPatient(t, h, c.recep, "Amira", "01001234567")
	inv := invoice(t, h, c.recep, p.ID, 15000)

	void, err := h.VoidInvoice(c.recep, &rpc.VoidInvoiceRequest{ID: inv.ID, Reason: "duplicate"})
	require.NoError(t, err)
	assert.Equal(t, "void", void.Status)
	assert.Contains(t, void.Notes, "duplicate")

	_, err = pay(h, c.recep, inv.ID, 100)
	assert.Equal(t, codes.FailedPrecondition, code(err))
	_, err = h.VoidInvoice(c.recep, &rpc.VoidInvoiceRequest{ID: inv.ID})
	assert.Equal(t, codes.FailedPrecondition, code(err))
	_, err = h.UpdateInvoice(c.recep, &rpc.UpdateInvoiceRequest{
		ID: inv.ID, Items: []*rpc.LineItem{{Description: "x", Quantity: 1, UnitPrice: 10}},
	})
	assert.Equal(t, codes.FailedPrecondition, code(err))

	open, err := h.ListInvoices(c.recep, &rpc.ListInvoicesRequest{OpenOnly: true})
	require.NoError(t, err)
	assert.Empty(t, open.Invoices)
}

func TestConcurrentPayments(t *testing.T) {
	h, _ := setup(t)
	c := registerClinic(t, h)
	p := createPatient(t, h, c.recep, "Amira", "01001234567")
	inv := invoice(t, h, c.recep, p.ID, 10000)

	const n = 8
	var wg sync.WaitGroup
	var mu sync.Mutex
	ok := 0
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := pay(h, c.recep, inv.ID, 4000); err == nil {
				mu.Lock()
				ok++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	// only two fit under the total
	assert.Equal(t, 2, ok)
	got, err := h.GetInvoice(c.recep, &rpc.IDRequest{ID: inv.ID})
	require.NoError(t, err)
	assert.EqualValues(t, 8000, got.AmountPaid)
}

func TestListInvoices(t *testing.T) {
	h, _ := setup(t)
	c := registerClinic(t, h)
	amira := createPatient(t, h, c.recep, "Amira", "01001234567")
	omar := createPatient(t, h, c.recep, "Omar", "01112223334")

	a1 := invoice(t, h, c.recep, amira.ID, 1000)
	invoice(t, h, c.recep, amira.ID, 2000)
	invoice(t, h, c.recep, omar.ID, 3000)
	_, err := pay(h, c.recep, a1.ID, 1000)
	require.NoError(t, err)

	byPatient, err := h.ListInvoices(c.recep, &rpc.ListInvoicesRequest{PatientID: amira.ID})
	require.NoError(t, err)
	assert.EqualValues(t, 2, byPatient.Total)

	paid, err := h.ListInvoices(c.recep, &rpc.ListInvoicesRequest{Status: "paid"})
	require.NoError(t, err)
	require.Len(t, paid.Invoices, 1)
	assert.Equal(t, a1.ID, paid.Invoices[0].ID)

	open, err := h.ListInvoices(c.recep, &rpc.ListInvoicesRequest{OpenOnly: true})
	require.NoError(t, err)
	assert.EqualValues(t, 2, open.Total)

	_, err = h.ListInvoices(c.recep, &rpc.ListInvoicesRequest{Status: "overdue"})
	assert.Equal(t, codes.InvalidArgument, code(err))
}

// ----- finance -----

func TestVendors(t *testing.T) {
	h, _ := setup(t)
	c := registerClinic(t, h)

	v, err := h.CreateVendor(c.admin, &rpc.CreateVendorRequest{VendorFields: rpc.VendorFields{
		Name: "  MedSupply Co ", Email: "Sales@MedSupply.example", Category: "supplies",
	}})
	require.NoError(t, err)
	assert.Equal(t, "MedSupply Co", v.Name)
	assert.Equal(t, "sales@medsupply.example", v.Email)

	_, err = h.CreateVendor(c.admin, &rpc.CreateVendorRequest{VendorFields: rpc.VendorFields{Name: " "}})
	assert.Equal(t, codes.InvalidArgument, code(err))

	upd, err := h.UpdateVendor(c.admin, &rpc.UpdateVendorRequest{ID: v.ID, VendorFields: rpc.VendorFields{
		Name: "MedSupply", Phone: "0223456789",
	}})
	require.NoError(t, err)
	assert.Equal(t, "0223456789", upd.Phone)

	found, err := h.ListVendors(c.admin, &rpc.ListVendorsRequest{Query: "medsup"})
	require.NoError(t, err)
	assert.EqualValues(t, 1, found.Total)

	_, err = h.CreateExpense(c.admin, &rpc.CreateExpenseRequest{ExpenseFields: rpc.ExpenseFields{
		VendorID: v.ID, Category: "supplies", Amount: 12000,
	}})
	require.NoError(t, err)

	_, err = h.DeleteVendor(c.admin, &rpc.IDRequest{ID: v.ID})
	assert.Equal(t, codes.FailedPrecondition, code(err))

	empty, err := h.CreateVendor(c.admin, &rpc.CreateVendorRequest{VendorFields: rpc.VendorFields{Name: "Cleaners"}})
	require.NoError(t, err)
	_, err = h.DeleteVendor(c.admin, &rpc.IDRequest{ID: empty.ID})
	require.NoError(t, err)
	_, err = h.GetVendor(c.admin, &rpc.IDRequest{ID: empty.ID})
	assert.Equal(t, codes.NotFound, code(err))
}

func TestExpenses(t *testing.T) {
	h, _ := setup(t)
	c := registerClinic(t, h)

	tests := []struct {
		name string
		f    rpc.ExpenseFields
		want codes.Code
	}{
		{"unknown category", rpc.ExpenseFields{Category: "bribes", Amount: 100}, codes.InvalidArgument},
		{"zero amount", rpc.ExpenseFields{Category: "rent"}, codes.InvalidArgument},
		{"unknown vendor", rpc.ExpenseFields{Category: "rent", Amount: 100, VendorID: "ghost"}, codes.NotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.CreateExpense(c.admin, &rpc.CreateExpenseRequest{ExpenseFields: tt.f})
			assert.Equal(t, tt.want, code(err))
		})
	}

	e, err := h.CreateExpense(c.admin, &rpc.CreateExpenseRequest{ExpenseFields: rpc.ExpenseFields{
		Category: "rent", Amount: 500000, Description: "October rent",
	}})
	require.NoError(t, err)
	assert.NotNil(t, e.IncurredAt)
	assert.Equal(t, c.adminID, e.CreatedBy)

	upd, err := h.UpdateExpense(c.admin, &rpc.UpdateExpenseRequest{ID: e.ID, ExpenseFields: rpc.ExpenseFields{
		Category: "rent", Amount: 550000,
	}})
	require.NoError(t, err)
	assert.EqualValues(t, 550000, upd.Amount)

	rent, err := h.ListExpenses(c.admin, &rpc.ListExpensesRequest{Category: "rent"})
	require.NoError(t, err)
	assert.EqualValues(t, 1, rent.Total)

	_, err = h.DeleteExpense(c.admin, &rpc.IDRequest{ID: e.ID})
	require.NoError(t, err)
	_, err = h.DeleteExpense(c.admin, &rpc.IDRequest{ID: e.ID})
	assert.Equal(t, codes.NotFound, code(err))
}

func TestFinanceSummary(t *testing.T) {
	h, _ := setup(t)
	c := registerClinic(t, h)
	p := createPatient(t, h, c.recep, "Amira", "01001234567")

	a := invoice(t, h, c.recep, p.ID, 20000)
	invoice(t, h, c.recep, p.ID, 7000)
	_, err := pay(h, c.recep, a.ID, 5000)
	require.NoError(t, err)
	_, err = h.MarkInvoicePaid(c.recep, &rpc.MarkInvoicePaidRequest{InvoiceID: a.ID, Method: "card"})
	require.NoError(t, err)

	for _, e := range []rpc.ExpenseFields{
		{Category: "supplies", Amount: 3000},
		{Category: "rent", Amount: 10000},
	} {
		_, err := h.CreateExpense(c.admin, &rpc.CreateExpenseRequest{ExpenseFields: e})
		require.NoError(t, err)
	}

	s, err := h.FinanceSummary(c.admin, &rpc.FinanceSummaryRequest{})
	require.NoError(t, err)
	assert.EqualValues(t, 20000, s.Revenue)
	assert.EqualValues(t, 13000, s.Expenses)
	assert.EqualValues(t, 7000, s.Net)
	assert.EqualValues(t, 7000, s.Outstanding)
	assert.Equal(t, "EGP 70.00", s.NetText)
	assert.Equal(t, []*rpc.Amount{{Key: "card", Amount: 15000}, {Key: "cash", Amount: 5000}}, s.ByMethod)
	require.Len(t, s.ByCategory, 2)

	// a window in the past sees no money moving but still the open balance
	past, err := h.FinanceSummary(c.admin, &rpc.FinanceSummaryRequest{
		From: timestamppb.New(time.Now().AddDate(0, -2, 0)),
		To:   timestamppb.New(time.Now().AddDate(0, -1, 0)),
	})
	require.NoError(t, err)
	assert.Zero(t, past.Revenue)
	assert.Zero(t, past.Expenses)
	assert.EqualValues(t, 7000, past.Outstanding)

	_, err = h.FinanceSummary(c.admin, &rpc.FinanceSummaryRequest{
		From: timestamppb.Now(), To: timestamppb.New(time.Now().Add(-time.Hour)),
	})
	assert.Equal(t, codes.InvalidArgument, code(err))
}
