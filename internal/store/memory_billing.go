package store

import (
	"context"
	"fmt"
	"sort"

	"tabibdesk/internal/model"
	"tabibdesk/internal/textsearch"
)

// ----- invoices & payments -----

func cloneInvoice(inv *model.Invoice) *model.Invoice {
	cp := *inv
	cp.Items = append([]model.LineItem(nil), inv.Items...)
	cp.DueAt = copyTime(inv.DueAt)
	cp.PaidAt = copyTime(inv.PaidAt)
	return &cp
}

func (m *Memory) CreateInvoice(_ context.Context, inv *model.Invoice) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.invoices[inv.ID]; ok {
		return ErrConflict
	}
	if inv.IssuedAt.IsZero() {
		inv.IssuedAt = m.now().UTC()
	}
	year := inv.IssuedAt.Year()
	key := fmt.Sprintf("%s/%d", inv.ClinicID, year)
	m.invoiceSeq[key]++
	inv.Number = invoiceNumber(year, m.invoiceSeq[key])
	m.stamp(&inv.CreatedAt, &inv.UpdatedAt)
	m.invoices[inv.ID] = cloneInvoice(inv)
	return nil
}

func (m *Memory) GetInvoice(_ context.Context, clinicID, id string) (*model.Invoice, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	inv, ok := m.invoices[id]
	if !ok || inv.ClinicID != clinicID {
		return nil, ErrNotFound
	}
	return cloneInvoice(inv), nil
}

func (m *Memory) putInvoice(inv *model.Invoice) error {
	old, ok := m.invoices[inv.ID]
	if !ok || old.ClinicID != inv.ClinicID {
		return ErrNotFound
	}
	inv.CreatedAt = old.CreatedAt
	inv.Number = old.Number
	m.stamp(&inv.CreatedAt, &inv.UpdatedAt)
	m.invoices[inv.ID] = cloneInvoice(inv)
	return nil
}

func (m *Memory) UpdateInvoice(_ context.Context, inv *model.Invoice) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.putInvoice(inv)
}

func (m *Memory) ListInvoices(_ context.Context, clinicID string, f InvoiceFilter) ([]model.Invoice, int, error) {
	m.mu.RLock()
	var out []model.Invoice
	for _, inv := range m.invoices {
		if inv.ClinicID != clinicID ||
			(f.PatientID != "" && inv.PatientID != f.PatientID) ||
			(f.Status != "" && inv.Status != f.Status) ||
			(f.Open && inv.Status != model.InvoiceUnpaid && inv.Status != model.InvoicePartiallyPaid) ||
			!inRange(inv.IssuedAt, f.From, f.To) {
			continue
		}
		out = append(out, *cloneInvoice(inv))
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].IssuedAt.Equal(out[j].IssuedAt) {
			return out[i].IssuedAt.After(out[j].IssuedAt)
		}
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		// a longer number carries a higher sequence
		if len(out[i].Number) != len(out[j].Number) {
			return len(out[i].Number) > len(out[j].Number)
		}
		return out[i].Number > out[j].Number
	})
	return paginate(out, f.Page), len(out), nil
}

func (m *Memory) CountPatientInvoices(_ context.Context, clinicID, patientID string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, inv := range m.invoices {
		if inv.ClinicID == clinicID && inv.PatientID == patientID {
			n++
		}
	}
	return n, nil
}

func (m *Memory) SavePayments(_ context.Context, inv *model.Invoice, add []model.Payment, removeIDs []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	// nothing is written unless every step is valid
	if old, ok := m.invoices[inv.ID]; !ok || old.ClinicID != inv.ClinicID {
		return ErrNotFound
	}
	for _, id := range removeIDs {
		p, ok := m.payments[id]
		if !ok || p.ClinicID != inv.ClinicID || p.InvoiceID != inv.ID {
			return ErrNotFound
		}
	}
	for _, p := range add {
		if _, ok := m.payments[p.ID]; ok {
			return ErrConflict
		}
	}

	for _, id := range removeIDs {
		delete(m.payments, id)
	}
	for i := range add {
		p := add[i]
		if p.CreatedAt.IsZero() {
			p.CreatedAt = m.now().UTC()
		}
		m.payments[p.ID] = &p
	}
	return m.putInvoice(inv)
}

func (m *Memory) GetPayment(_ context.Context, clinicID, id string) (*model.Payment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.payments[id]
	if !ok || p.ClinicID != clinicID {
		return nil, ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *Memory) ListPayments(_ context.Context, clinicID string, f PaymentFilter) ([]model.Payment, int, error) {
	m.mu.RLock()
	var out []model.Payment
	for _, p := range m.payments {
		if p.ClinicID != clinicID ||
			(f.InvoiceID != "" && p.InvoiceID != f.InvoiceID) ||
			(f.PatientID != "" && p.PatientID != f.PatientID) ||
			!inRange(p.PaidAt, f.From, f.To) {
			continue
		}
		out = append(out, *p)
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].PaidAt.Equal(out[j].PaidAt) {
			return out[i].PaidAt.After(out[j].PaidAt)
		}
		return out[i].ID < out[j].ID
	})
	return paginate(out, f.Page), len(out), nil
}

// ----- vendors -----

func (m *Memory) CreateVendor(_ context.Context, v *model.Vendor) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.vendors[v.ID]; ok {
		return ErrConflict
	}
	m.stamp(&v.CreatedAt, &v.UpdatedAt)
	cp := *v
	m.vendors[v.ID] = &cp
	return nil
}

func (m *Memory) GetVendor(_ context.Context, clinicID, id string) (*model.Vendor, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.vendors[id]
	if !ok || v.ClinicID != clinicID {
		return nil, ErrNotFound
	}
	cp := *v
	return &cp, nil
}

func (m *Memory) UpdateVendor(_ context.Context, v *model.Vendor) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	old, ok := m.vendors[v.ID]
	if !ok || old.ClinicID != v.ClinicID {
		return ErrNotFound
	}
	v.CreatedAt = old.CreatedAt
	m.stamp(&v.CreatedAt, &v.UpdatedAt)
	cp := *v
	m.vendors[v.ID] = &cp
	return nil
}

func (m *Memory) DeleteVendor(_ context.Context, clinicID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.vendors[id]
	if !ok || v.ClinicID != clinicID {
		return ErrNotFound
	}
	delete(m.vendors, id)
	return nil
}

func (m *Memory) ListVendors(_ context.Context, clinicID string, f VendorFilter) ([]model.Vendor, int, error) {
	m.mu.RLock()
	var out []model.Vendor
	for _, v := range m.vendors {
		if v.ClinicID != clinicID || !textsearch.Match(f.Query, v.Phone, v.Name, v.Email, v.Category) {
			continue
		}
		out = append(out, *v)
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if c := textsearch.Compare(out[i].Name, out[j].Name); c != 0 {
			return c < 0
		}
		return out[i].ID < out[j].ID
	})
	return paginate(out, f.Page), len(out), nil
}

// ----- expenses -----

func (m *Memory) CreateExpense(_ context.Context, e *model.Expense) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.expenses[e.ID]; ok {
		return ErrConflict
	}
	m.stamp(&e.CreatedAt, &e.UpdatedAt)
	cp := *e
	m.expenses[e.ID] = &cp
	return nil
}

func (m *Memory) GetExpense(_ context.Context, clinicID, id string) (*model.Expense, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.expenses[id]
	if !ok || e.ClinicID != clinicID {
		return nil, ErrNotFound
	}
	cp := *e
	return &cp, nil
}

func (m *Memory) UpdateExpense(_ context.Context, e *model.Expense) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	old, ok := m.expenses[e.ID]
	if !ok || old.ClinicID != e.ClinicID {
		return ErrNotFound
	}
	e.CreatedAt = old.CreatedAt
	m.stamp(&e.CreatedAt, &e.UpdatedAt)
	cp := *e
	m.expenses[e.ID] = &cp
	return nil
}

func (m *Memory) DeleteExpense(_ context.Context, clinicID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.expenses[id]
	if !ok || e.ClinicID != clinicID {
		return ErrNotFound
	}
	delete(m.expenses, id)
	return nil
}

func (m *Memory) ListExpenses(_ context.Context, clinicID string, f ExpenseFilter) ([]model.Expense, int, error) {
	m.mu.RLock()
	var out []model.Expense
	for _, e := range m.expenses {
		if e.ClinicID != clinicID ||
			(f.VendorID != "" && e.VendorID != f.VendorID) ||
			(f.Category != "" && e.Category != f.Category) ||
			!inRange(e.IncurredAt, f.From, f.To) {
			continue
		}
		out = append(out, *e)
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].IncurredAt.Equal(out[j].IncurredAt) {
			return out[i].IncurredAt.After(out[j].IncurredAt)
		}
		return out[i].ID < out[j].ID
	})
	return paginate(out, f.Page), len(out), nil
}

func (m *Memory) CountVendorExpenses(_ context.Context, clinicID, vendorID string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, e := range m.expenses {
		if e.ClinicID == clinicID && e.VendorID == vendorID {
			n++
		}
	}
	return n, nil
}

// ----- tasks -----

func cloneTask(t *model.Task) *model.Task {
	cp := *t
	cp.DueAt = copyTime(t.DueAt)
	cp.CompletedAt = copyTime(t.CompletedAt)
	return &cp
}

func (m *Memory) CreateTask(_ context.Context, t *model.Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tasks[t.ID]; ok {
		return ErrConflict
	}
	m.stamp(&t.CreatedAt, &t.UpdatedAt)
	m.tasks[t.ID] = cloneTask(t)
	return nil
}

func (m *Memory) GetTask(_ context.Context, clinicID, id string) (*model.Task, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.tasks[id]
	if !ok || t.ClinicID != clinicID {
		return nil, ErrNotFound
	}
	return cloneTask(t), nil
}

func (m *Memory) UpdateTask(_ context.Context, t *model.Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	old, ok := m.tasks[t.ID]
	if !ok || old.ClinicID != t.ClinicID {
		return ErrNotFound
	}
	t.CreatedAt = old.CreatedAt
	m.stamp(&t.CreatedAt, &t.UpdatedAt)
	m.tasks[t.ID] = cloneTask(t)
	return nil
}

func (m *Memory) DeleteTask(_ context.Context, clinicID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[id]
	if !ok || t.ClinicID != clinicID {
		return ErrNotFound
	}
	delete(m.tasks, id)
	return nil
}

func (m *Memory) ListTasks(_ context.Context, clinicID string, f TaskFilter) ([]model.Task, int, error) {
	m.mu.RLock()
	var out []model.Task
	for _, t := range m.tasks {
		if t.ClinicID != clinicID ||
			(f.AssigneeID != "" && t.AssigneeID != f.AssigneeID) ||
			(f.PatientID != "" && t.PatientID != f.PatientID) ||
			(f.Status != "" && t.Status != f.Status) ||
			(f.OpenOnly && t.Status == model.TaskDone) ||
			(!f.OverdueAt.IsZero() && !t.Overdue(f.OverdueAt)) {
			continue
		}
		out = append(out, *cloneTask(t))
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return taskLess(&out[i], &out[j]) })
	return paginate(out, f.Page), len(out), nil
}

// taskLess orders by due date (undated last), then priority, then creation.
func taskLess(a, b *model.Task) bool {
	switch {
	case a.DueAt != nil && b.DueAt == nil:
		return true
	case a.DueAt == nil && b.DueAt != nil:
		return false
	case a.DueAt != nil && !a.DueAt.Equal(*b.DueAt):
		return a.DueAt.Before(*b.DueAt)
	}
	if ra, rb := a.Priority.Rank(), b.Priority.Rank(); ra != rb {
		return ra < rb
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.ID < b.ID
}
