package handler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"tabibdesk/internal/apperr"
	"tabibdesk/internal/billing"
	"tabibdesk/internal/middleware"
	"tabibdesk/internal/model"
	"tabibdesk/internal/rpc"
	"tabibdesk/internal/store"
)

// billingErr turns arithmetic failures into caller errors.
func billingErr(err error) error {
	switch {
	case errors.Is(err, billing.ErrVoid), errors.Is(err, billing.ErrSettled):
		return apperr.Precondition(err.Error())
	case errors.Is(err, billing.ErrNoItems), errors.Is(err, billing.ErrItemQuantity),
		errors.Is(err, billing.ErrItemPrice), errors.Is(err, billing.ErrItemName),
		errors.Is(err, billing.ErrDiscount), errors.Is(err, billing.ErrAmount),
		errors.Is(err, billing.ErrOverpayment), errors.Is(err, billing.ErrTooLarge):
		return apperr.Invalid(err.Error())
	}
	return apperr.Internal(err)
}

func lineItems(in []*rpc.LineItem) []model.LineItem {
	out := make([]model.LineItem, 0, len(in))
	for _, it := range in {
		if it == nil {
			continue
		}
		out = append(out, model.LineItem{
			Description: strings.TrimSpace(it.Description),
			Quantity:    it.Quantity,
			UnitPrice:   it.UnitPrice,
		})
	}
	return out
}

// currency of the clinic, for display only.
func (h *Handler) currency(ctx context.Context, clinicID string) string {
	c, err := h.store.GetClinic(ctx, clinicID)
	if err != nil || c.Currency == "" {
		return defaultCurrency
	}
	return c.Currency
}

func (h *Handler) CreateInvoice(ctx context.Context, req *rpc.CreateInvoiceRequest) (*rpc.Invoice, error) {
	c, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	if req.PatientID == "" {
		return nil, apperr.Invalid("patient required")
	}
	pat, err := h.store.GetPatient(ctx, c.ClinicID, req.PatientID)
	if err != nil {
		return nil, storeErr(err, "Patient")
	}
	if pat.Status == model.PatientArchived {
		return nil, apperr.Precondition("patient is archived")
	}
	if req.AppointmentID != "" {
		apt, err := h.store.GetAppointment(ctx, c.ClinicID, req.AppointmentID)
		if err != nil {
			return nil, storeErr(err, "Appointment")
		}
		if apt.PatientID != pat.ID {
			return nil, apperr.Invalid("appointment belongs to another patient")
		}
	}

	items := lineItems(req.Items)
	sub, total, err := billing.Totals(items, req.Discount)
	if err != nil {
		return nil, billingErr(err)
	}
	issued := timeOf(req.IssuedAt)
	if issued.IsZero() {
		issued = h.now().UTC()
	}
	due := timePtr(req.DueAt)
	if due != nil && due.Before(issued) {
		return nil, apperr.Invalid("due date is before the issue date")
	}

	inv := &model.Invoice{
		ID:            newID(),
		ClinicID:      c.ClinicID,
		PatientID:     pat.ID,
		AppointmentID: req.AppointmentID,
		Items:         items,
		Discount:      req.Discount,
		Subtotal:      sub,
		Total:         total,
		IssuedAt:      issued,
		DueAt:         due,
		Notes:         req.Notes,
	}
	inv.Status = billing.Status(inv)
	if err := h.store.CreateInvoice(ctx, inv); err != nil {
		return nil, apperr.Internal(err)
	}

	cur := h.currency(ctx, c.ClinicID)
	h.record(ctx, c, "invoice", inv.ID, "created",
		fmt.Sprintf("Invoice %s for %s, %s", inv.Number, pat.FullName(), billing.Format(inv.Total, cur)))
	return toInvoice(inv, cur), nil
}

func (h *Handler) GetInvoice(ctx context.Context, req *rpc.IDRequest) (*rpc.Invoice, error) {
	c, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	if req.ID == "" {
		return nil, apperr.Invalid("id required")
	}
	inv, err := h.store.GetInvoice(ctx, c.ClinicID, req.ID)
	if err != nil {
		return nil, storeErr(err, "Invoice")
	}
	return toInvoice(inv, h.currency(ctx, c.ClinicID)), nil
}

// UpdateInvoice rewrites the items of an invoice nobody has paid yet.
func (h *Handler) UpdateInvoice(ctx context.Context, req *rpc.UpdateInvoiceRequest) (*rpc.Invoice, error) {
	c, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	if req.ID == "" {
		return nil, apperr.Invalid("id required")
	}

	h.payMu.Lock()
	defer h.payMu.Unlock()

	inv, err := h.store.GetInvoice(ctx, c.ClinicID, req.ID)
	if err != nil {
		return nil, storeErr(err, "Invoice")
	}
	if inv.Status == model.InvoiceVoid {
		return nil, apperr.Precondition("invoice is void")
	}
	if inv.AmountPaid > 0 {
		return nil, apperr.Precondition("invoice has payments")
	}

	items := lineItems(req.Items)
	sub, total, err := billing.Totals(items, req.Discount)
	if err != nil {
		return nil, billingErr(err)
	}
	due := timePtr(req.DueAt)
	if due != nil && due.Before(inv.IssuedAt) {
		return nil, apperr.Invalid("due date is before the issue date")
	}
	inv.Items, inv.Discount, inv.Subtotal, inv.Total = items, req.Discount, sub, total
	inv.DueAt = due
	inv.Notes = req.Notes
	inv.Status = billing.Status(inv)

	if err := h.store.UpdateInvoice(ctx, inv); err != nil {
		return nil, storeErr(err, "Invoice")
	}
	h.record(ctx, c, "invoice", inv.ID, "updated", "Updated invoice "+inv.Number)
	return toInvoice(inv, h.currency(ctx, c.ClinicID)), nil
}

func (h *Handler) ListInvoices(ctx context.Context, req *rpc.ListInvoicesRequest) (*rpc.ListInvoicesResponse, error) {
	c, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	st := model.InvoiceStatus(req.Status)
	switch st {
	case "", model.InvoiceUnpaid, model.InvoicePartiallyPaid, model.InvoicePaid, model.InvoiceVoid:
	default:
		return nil, apperr.Invalid("unknown invoice status")
	}
	invs, total, err := h.store.ListInvoices(ctx, c.ClinicID, store.InvoiceFilter{
		PatientID: req.PatientID,
		Status:    st,
		Open:      req.OpenOnly,
		From:      timeOf(req.From),
		To:        timeOf(req.To),
		Page:      page(req.Page, req.PageSize),
	})
	if err != nil {
		return nil, apperr.Internal(err)
	}
	cur := h.currency(ctx, c.ClinicID)
	out := make([]*rpc.Invoice, len(invs))
	for i := range invs {
		out[i] = toInvoice(&invs[i], cur)
	}
	return &rpc.ListInvoicesResponse{Invoices: out, Total: int32(total)}, nil
}

// payments returns every payment of inv, for re-deriving its status.
func (h *Handler) payments(ctx context.Context, inv *model.Invoice) ([]model.Payment, error) {
	ps, _, err := h.store.ListPayments(ctx, inv.ClinicID, store.PaymentFilter{InvoiceID: inv.ID})
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return ps, nil
}

func (h *Handler) RecordPayment(ctx context.Context, req *rpc.RecordPaymentRequest) (*rpc.PaymentResponse, error) {
	c, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	if req.InvoiceID == "" {
		return nil, apperr.Invalid("invoice required")
	}
	method := model.PaymentMethod(req.Method)
	if !method.Valid() {
		return nil, apperr.Invalid("unknown payment method")
	}

	h.payMu.Lock()
	defer h.payMu.Unlock()

	inv, err := h.store.GetInvoice(ctx, c.ClinicID, req.InvoiceID)
	if err != nil {
		return nil, storeErr(err, "Invoice")
	}
	if err := billing.CheckPayment(inv, req.Amount); err != nil {
		return nil, billingErr(err)
	}
	paidAt := timeOf(req.PaidAt)
	if paidAt.IsZero() {
		paidAt = h.now().UTC()
	}
	return h.addPayment(ctx, c, inv, req.Amount, method, req.Reference, paidAt)
}

// MarkInvoicePaid settles the whole balance in one payment.
func (h *Handler) MarkInvoicePaid(ctx context.Context, req *rpc.MarkInvoicePaidRequest) (*rpc.PaymentResponse, error) {
	c, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	if req.InvoiceID == "" {
		return nil, apperr.Invalid("invoice required")
	}
	method := model.PaymentMethod(req.Method)
	if method == "" {
		method = model.MethodCash
	}
	if !method.Valid() {
		return nil, apperr.Invalid("unknown payment method")
	}

	h.payMu.Lock()
	defer h.payMu.Unlock()

	inv, err := h.store.GetInvoice(ctx, c.ClinicID, req.InvoiceID)
	if err != nil {
		return nil, storeErr(err, "Invoice")
	}
	if inv.Status == model.InvoicePaid {
		return nil, apperr.Precondition("invoice already paid")
	}
	bal := inv.Balance()
	if err := billing.CheckPayment(inv, bal); err != nil {
		return nil, billingErr(err)
	}
	return h.addPayment(ctx, c, inv, bal, method, req.Reference, h.now().UTC())
}

func (h *Handler) addPayment(ctx context.Context, c middleware.Principal, inv *model.Invoice, amount int64,
	method model.PaymentMethod, ref string, paidAt time.Time) (*rpc.PaymentResponse, error) {
	existing, err := h.payments(ctx, inv)
	if err != nil {
		return nil, err
	}
	pay := model.Payment{
		ID:        newID(),
		ClinicID:  c.ClinicID,
		InvoiceID: inv.ID,
		PatientID: inv.PatientID,
		Amount:    amount,
		Method:    method,
		Reference: ref,
		PaidAt:    paidAt,
		CreatedBy: c.UserID,
	}
	billing.Reconcile(inv, append(existing, pay))
	if err := h.store.SavePayments(ctx, inv, []model.Payment{pay}, nil); err != nil {
		return nil, storeErr(err, "Invoice")
	}

	cur := h.currency(ctx, c.ClinicID)
	h.record(ctx, c, "invoice", inv.ID, "payment_recorded",
		fmt.Sprintf("%s %s on %s", billing.Format(amount, cur), method, inv.Number))
	return &rpc.PaymentResponse{Payment: toPayment(&pay), Invoice: toInvoice(inv, cur)}, nil
}

// ReverseInvoicePayments removes every payment and leaves the invoice unpaid.
func (h *Handler) ReverseInvoicePayments(ctx context.Context, req *rpc.ReverseInvoicePaymentsRequest) (*rpc.ReverseInvoicePaymentsResponse, error) {
	c, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	if req.InvoiceID == "" {
		return nil, apperr.Invalid("invoice required")
	}

	h.payMu.Lock()
	defer h.payMu.Unlock()

	inv, err := h.store.GetInvoice(ctx, c.ClinicID, req.InvoiceID)
	if err != nil {
		return nil, storeErr(err, "Invoice")
	}
	existing, err := h.payments(ctx, inv)
	if err != nil {
		return nil, err
	}
	if len(existing) == 0 {
		return nil, apperr.Precondition("invoice has no payments")
	}
	ids := make([]string, len(existing))
	for i, p := range existing {
		ids[i] = p.ID
	}
	billing.Reconcile(inv, nil)
	if err := h.store.SavePayments(ctx, inv, nil, ids); err != nil {
		return nil, storeErr(err, "Invoice")
	}

	h.record(ctx, c, "invoice", inv.ID, "payments_reversed",
		fmt.Sprintf("Reversed %d payments on %s", len(ids), inv.Number))
	return &rpc.ReverseInvoicePaymentsResponse{
		Invoice: toInvoice(inv, h.currency(ctx, c.ClinicID)),
		Removed: int32(len(ids)),
	}, nil
}

func (h *Handler) DeletePayment(ctx context.Context, req *rpc.IDRequest) (*rpc.Invoice, error) {
	c, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	if req.ID == "" {
		return nil, apperr.Invalid("id required")
	}

	h.payMu.Lock()
	defer h.payMu.Unlock()

	pay, err := h.store.GetPayment(ctx, c.ClinicID, req.ID)
	if err != nil {
		return nil, storeErr(err, "Payment")
	}
	inv, err := h.store.GetInvoice(ctx, c.ClinicID, pay.InvoiceID)
	if err != nil {
		return nil, storeErr(err, "Invoice")
	}
	existing, err := h.payments(ctx, inv)
	if err != nil {
		return nil, err
	}
	kept := existing[:0]
	for _, p := range existing {
		if p.ID != pay.ID {
			kept = append(kept, p)
		}
	}
	billing.Reconcile(inv, kept)
	if err := h.store.SavePayments(ctx, inv, nil, []string{pay.ID}); err != nil {
		return nil, storeErr(err, "Payment")
	}

	cur := h.currency(ctx, c.ClinicID)
	h.record(ctx, c, "invoice", inv.ID, "payment_deleted",
		fmt.Sprintf("Removed %s payment from %s", billing.Format(pay.Amount, cur), inv.Number))
	return toInvoice(inv, cur), nil
}

func (h *Handler) VoidInvoice(ctx context.Context, req *rpc.VoidInvoiceRequest) (*rpc.Invoice, error) {
	c, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	if req.ID == "" {
		return nil, apperr.Invalid("id required")
	}

	h.payMu.Lock()
	defer h.payMu.Unlock()

	inv, err := h.store.GetInvoice(ctx, c.ClinicID, req.ID)
	if err != nil {
		return nil, storeErr(err, "Invoice")
	}
	if inv.Status == model.InvoiceVoid {
		return nil, apperr.Precondition("invoice is void")
	}
	if inv.AmountPaid > 0 {
		return nil, apperr.Precondition("invoice has payments")
	}
	inv.Status = model.InvoiceVoid
	if req.Reason != "" {
		if inv.Notes != "" {
			inv.Notes += "\n"
		}
		inv.Notes += "Void: " + req.Reason
	}
	if err := h.store.UpdateInvoice(ctx, inv); err != nil {
		return nil, storeErr(err, "Invoice")
	}
	h.record(ctx, c, "invoice", inv.ID, "voided", "Voided invoice "+inv.Number)
	return toInvoice(inv, h.currency(ctx, c.ClinicID)), nil
}

func (h *Handler) ListPayments(ctx context.Context, req *rpc.ListPaymentsRequest) (*rpc.ListPaymentsResponse, error) {
	c, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	ps, total, err := h.store.ListPayments(ctx, c.ClinicID, store.PaymentFilter{
		InvoiceID: req.InvoiceID,
		PatientID: req.PatientID,
		From:      timeOf(req.From),
		To:        timeOf(req.To),
		Page:      page(req.Page, req.PageSize),
	})
	if err != nil {
		return nil, apperr.Internal(err)
	}
	out := make([]*rpc.Payment, len(ps))
	for i := range ps {
		out[i] = toPayment(&ps[i])
	}
	return &rpc.ListPaymentsResponse{Payments: out, Total: int32(total)}, nil
}

func toInvoice(inv *model.Invoice, cur string) *rpc.Invoice {
	items := make([]*rpc.LineItem, len(inv.Items))
	for i, it := range inv.Items {
		items[i] = &rpc.LineItem{Description: it.Description, Quantity: it.Quantity, UnitPrice: it.UnitPrice}
	}
	return &rpc.Invoice{
		ID:            inv.ID,
		Number:        inv.Number,
		PatientID:     inv.PatientID,
		AppointmentID: inv.AppointmentID,
		Items:         items,
		Discount:      inv.Discount,
		Subtotal:      inv.Subtotal,
		Total:         inv.Total,
		AmountPaid:    inv.AmountPaid,
		Balance:       inv.Balance(),
		Currency:      cur,
		TotalText:     billing.Format(inv.Total, cur),
		BalanceText:   billing.Format(inv.Balance(), cur),
		Status:        string(inv.Status),
		IssuedAt:      ts(inv.IssuedAt),
		DueAt:         tsPtr(inv.DueAt),
		PaidAt:        tsPtr(inv.PaidAt),
		Notes:         inv.Notes,
		CreatedAt:     ts(inv.CreatedAt),
		UpdatedAt:     ts(inv.UpdatedAt),
	}
}

func toPayment(p *model.Payment) *rpc.Payment {
	return &rpc.Payment{
		ID:        p.ID,
		InvoiceID: p.InvoiceID,
		PatientID: p.PatientID,
		Amount:    p.Amount,
		Method:    string(p.Method),
		Reference: p.Reference,
		PaidAt:    ts(p.PaidAt),
		CreatedBy: p.CreatedBy,
	}
}
