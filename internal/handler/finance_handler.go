package handler

import (
	"context"
	"fmt"
	"strings"

	"tabibdesk/internal/apperr"
	"tabibdesk/internal/billing"
	"tabibdesk/internal/model"
	"tabibdesk/internal/rpc"
	"tabibdesk/internal/store"
)

func applyVendor(v *model.Vendor, f rpc.VendorFields) error {
	name := strings.TrimSpace(f.Name)
	if name == "" {
		return apperr.Invalid("vendor name required")
	}
	email := normEmail(f.Email)
	if email != "" && !validEmail(email) {
		return apperr.Invalid("invalid email")
	}
	v.Name = name
	v.Phone = strings.TrimSpace(f.Phone)
	v.Email = email
	v.Category = strings.TrimSpace(f.Category)
	v.Notes = f.Notes
	return nil
}

func (h *Handler) CreateVendor(ctx context.Context, req *rpc.CreateVendorRequest) (*rpc.Vendor, error) {
	c, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	v := &model.Vendor{ID: newID(), ClinicID: c.ClinicID}
	if err := applyVendor(v, req.VendorFields); err != nil {
		return nil, err
	}
	if err := h.store.CreateVendor(ctx, v); err != nil {
		return nil, storeErr(err, "Vendor")
	}
	h.record(ctx, c, "vendor", v.ID, "created", "Added vendor "+v.Name)
	return toVendor(v), nil
}

func (h *Handler) GetVendor(ctx context.Context, req *rpc.IDRequest) (*rpc.Vendor, error) {
	c, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	if req.ID == "" {
		return nil, apperr.Invalid("id required")
	}
	v, err := h.store.GetVendor(ctx, c.ClinicID, req.ID)
	if err != nil {
		return nil, storeErr(err, "Vendor")
	}
	return toVendor(v), nil
}

func (h *Handler) UpdateVendor(ctx context.Context, req *rpc.UpdateVendorRequest) (*rpc.Vendor, error) {
	c, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	if req.ID == "" {
		return nil, apperr.Invalid("id required")
	}
	v, err := h.store.GetVendor(ctx, c.ClinicID, req.ID)
	if err != nil {
		return nil, storeErr(err, "Vendor")
	}
	if err := applyVendor(v, req.VendorFields); err != nil {
		return nil, err
	}
	if err := h.store.UpdateVendor(ctx, v); err != nil {
		return nil, storeErr(err, "Vendor")
	}
	h.record(ctx, c, "vendor", v.ID, "updated", "Updated vendor "+v.Name)
	return toVendor(v), nil
}

// DeleteVendor keeps vendors that expenses still point at.
func (h *Handler) DeleteVendor(ctx context.Context, req *rpc.IDRequest) (*rpc.Empty, error) {
	c, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	if req.ID == "" {
		return nil, apperr.Invalid("id required")
	}
	v, err := h.store.GetVendor(ctx, c.ClinicID, req.ID)
	if err != nil {
		return nil, storeErr(err, "Vendor")
	}
	n, err := h.store.CountVendorExpenses(ctx, c.ClinicID, v.ID)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	if n > 0 {
		return nil, apperr.Precondition("vendor has expenses")
	}
	if err := h.store.DeleteVendor(ctx, c.ClinicID, v.ID); err != nil {
		return nil, storeErr(err, "Vendor")
	}
	h.record(ctx, c, "vendor", v.ID, "deleted", "Deleted vendor "+v.Name)
	return &rpc.Empty{}, nil
}

func (h *Handler) ListVendors(ctx context.Context, req *rpc.ListVendorsRequest) (*rpc.ListVendorsResponse, error) {
	c, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	vs, total, err := h.store.ListVendors(ctx, c.ClinicID, store.VendorFilter{
		Query: strings.TrimSpace(req.Query),
		Page:  page(req.Page, req.PageSize),
	})
	if err != nil {
		return nil, apperr.Internal(err)
	}
	out := make([]*rpc.Vendor, len(vs))
	for i := range vs {
		out[i] = toVendor(&vs[i])
	}
	return &rpc.ListVendorsResponse{Vendors: out, Total: int32(total)}, nil
}

func (h *Handler) applyExpense(ctx context.Context, e *model.Expense, f rpc.ExpenseFields) error {
	cat := model.ExpenseCategory(f.Category)
	if !cat.Valid() {
		return apperr.Invalid("unknown expense category")
	}
	if f.Amount <= 0 {
		return apperr.Invalid("amount must be positive")
	}
	if f.VendorID != "" {
		if _, err := h.store.GetVendor(ctx, e.ClinicID, f.VendorID); err != nil {
			return storeErr(err, "Vendor")
		}
	}
	e.VendorID = f.VendorID
	e.Category = cat
	e.Amount = f.Amount
	e.Description = f.Description
	e.IncurredAt = timeOf(f.IncurredAt)
	if e.IncurredAt.IsZero() {
		e.IncurredAt = h.now().UTC()
	}
	return nil
}

func (h *Handler) CreateExpense(ctx context.Context, req *rpc.CreateExpenseRequest) (*rpc.Expense, error) {
	c, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	e := &model.Expense{ID: newID(), ClinicID: c.ClinicID, CreatedBy: c.UserID}
	if err := h.applyExpense(ctx, e, req.ExpenseFields); err != nil {
		return nil, err
	}
	if err := h.store.CreateExpense(ctx, e); err != nil {
		return nil, storeErr(err, "Expense")
	}
	h.record(ctx, c, "expense", e.ID, "created",
		fmt.Sprintf("Recorded %s expense of %s", e.Category, billing.Format(e.Amount, h.currency(ctx, c.ClinicID))))
	return toExpense(e), nil
}

func (h *Handler) GetExpense(ctx context.Context, req *rpc.IDRequest) (*rpc.Expense, error) {
	c, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	if req.ID == "" {
		return nil, apperr.Invalid("id required")
	}
	e, err := h.store.GetExpense(ctx, c.ClinicID, req.ID)
	if err != nil {
		return nil, storeErr(err, "Expense")
	}
	return toExpense(e), nil
}

func (h *Handler) UpdateExpense(ctx context.Context, req *rpc.UpdateExpenseRequest) (*rpc.Expense, error) {
	c, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	if req.ID == "" {
		return nil, apperr.Invalid("id required")
	}
	e, err := h.store.GetExpense(ctx, c.ClinicID, req.ID)
	if err != nil {
		return nil, storeErr(err, "Expense")
	}
	if err := h.applyExpense(ctx, e, req.ExpenseFields); err != nil {
		return nil, err
	}
	if err := h.store.UpdateExpense(ctx, e); err != nil {
		return nil, storeErr(err, "Expense")
	}
	h.record(ctx, c, "expense", e.ID, "updated", "Updated "+string(e.Category)+" expense")
	return toExpense(e), nil
}

func (h *Handler) DeleteExpense(ctx context.Context, req *rpc.IDRequest) (*rpc.Empty, error) {
	c, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	if req.ID == "" {
		return nil, apperr.Invalid("id required")
	}
	if err := h.store.DeleteExpense(ctx, c.ClinicID, req.ID); err != nil {
		return nil, storeErr(err, "Expense")
	}
	h.record(ctx, c, "expense", req.ID, "deleted", "Deleted expense")
	return &rpc.Empty{}, nil
}

func (h *Handler) ListExpenses(ctx context.Context, req *rpc.ListExpensesRequest) (*rpc.ListExpensesResponse, error) {
	c, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	cat := model.ExpenseCategory(req.Category)
	if cat != "" && !cat.Valid() {
		return nil, apperr.Invalid("unknown expense category")
	}
	es, total, err := h.store.ListExpenses(ctx, c.ClinicID, store.ExpenseFilter{
		VendorID: req.VendorID,
		Category: cat,
		From:     timeOf(req.From),
		To:       timeOf(req.To),
		Page:     page(req.Page, req.PageSize),
	})
	if err != nil {
		return nil, apperr.Internal(err)
	}
	out := make([]*rpc.Expense, len(es))
	for i := range es {
		out[i] = toExpense(&es[i])
	}
	return &rpc.ListExpensesResponse{Expenses: out, Total: int32(total)}, nil
}

// FinanceSummary totals collections and spending over [from, to). The
// outstanding figure covers every open invoice regardless of the range.
func (h *Handler) FinanceSummary(ctx context.Context, req *rpc.FinanceSummaryRequest) (*rpc.FinanceSummary, error) {
	c, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	from, to := timeOf(req.From), timeOf(req.To)
	if !from.IsZero() && !to.IsZero() && !to.After(from) {
		return nil, apperr.Invalid("to must be after from")
	}

	pays, _, err := h.store.ListPayments(ctx, c.ClinicID, store.PaymentFilter{From: from, To: to})
	if err != nil {
		return nil, apperr.Internal(err)
	}
	exps, _, err := h.store.ListExpenses(ctx, c.ClinicID, store.ExpenseFilter{From: from, To: to})
	if err != nil {
		return nil, apperr.Internal(err)
	}
	open, _, err := h.store.ListInvoices(ctx, c.ClinicID, store.InvoiceFilter{Open: true})
	if err != nil {
		return nil, apperr.Internal(err)
	}

	s := billing.Summarize(pays, exps, open)
	cur := h.currency(ctx, c.ClinicID)
	out := &rpc.FinanceSummary{
		Revenue:     s.Revenue,
		Expenses:    s.Expenses,
		Net:         s.Net,
		Outstanding: s.Outstanding,
		ByMethod:    []*rpc.Amount{},
		ByCategory:  []*rpc.Amount{},
		Currency:    cur,
		NetText:     billing.Format(s.Net, cur),
	}
	for _, m := range billing.SortedMethods(s.ByMethod) {
		out.ByMethod = append(out.ByMethod, &rpc.Amount{Key: string(m), Amount: s.ByMethod[m]})
	}
	for _, k := range billing.SortedCategories(s.ByCategory) {
		out.ByCategory = append(out.ByCategory, &rpc.Amount{Key: string(k), Amount: s.ByCategory[k]})
	}
	return out, nil
}

func toVendor(v *model.Vendor) *rpc.Vendor {
	return &rpc.Vendor{
		ID:        v.ID,
		Name:      v.Name,
		Phone:     v.Phone,
		Email:     v.Email,
		Category:  v.Category,
		Notes:     v.Notes,
		CreatedAt: ts(v.CreatedAt),
	}
}

func toExpense(e *model.Expense) *rpc.Expense {
	return &rpc.Expense{
		ID:          e.ID,
		VendorID:    e.VendorID,
		Category:    string(e.Category),
		Amount:      e.Amount,
		IncurredAt:  ts(e.IncurredAt),
		Description: e.Description,
		CreatedBy:   e.CreatedBy,
	}
}
