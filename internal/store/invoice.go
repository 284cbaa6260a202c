package store

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"tabibdesk/internal/model"
)

const invoiceCols = `id, clinic_id, number, patient_id, COALESCE(appointment_id, ''), items, discount,
	subtotal, total, amount_paid, status, issued_at, due_at, paid_at, notes, created_at, updated_at`

func scanInvoice(row pgx.Row) (model.Invoice, error) {
	var inv model.Invoice
	err := row.Scan(&inv.ID, &inv.ClinicID, &inv.Number, &inv.PatientID, &inv.AppointmentID, &inv.Items,
		&inv.Discount, &inv.Subtotal, &inv.Total, &inv.AmountPaid, &inv.Status, &inv.IssuedAt,
		&inv.DueAt, &inv.PaidAt, &inv.Notes, &inv.CreatedAt, &inv.UpdatedAt)
	return inv, pgErr(err)
}

func items(a []model.LineItem) []model.LineItem {
	if a == nil {
		return []model.LineItem{}
	}
	return a
}

// CreateInvoice bumps the per-clinic yearly counter and inserts the invoice
// in one transaction, so numbers are never reused.
func (s *Postgres) CreateInvoice(ctx context.Context, inv *model.Invoice) error {
	if inv.IssuedAt.IsZero() {
		inv.IssuedAt = time.Now().UTC()
	}
	year := inv.IssuedAt.Year()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	var seq int
	err = tx.QueryRow(ctx,
		`INSERT INTO invoice_counters (clinic_id, year, seq) VALUES ($1, $2, 1)
		 ON CONFLICT (clinic_id, year) DO UPDATE SET seq = invoice_counters.seq + 1
		 RETURNING seq`,
		inv.ClinicID, year,
	).Scan(&seq)
	if err != nil {
		return pgErr(err)
	}
	inv.Number = invoiceNumber(year, seq)

	err = tx.QueryRow(ctx,
		`INSERT INTO invoices (id, clinic_id, number, patient_id, appointment_id, items, discount,
			subtotal, total, amount_paid, status, issued_at, due_at, paid_at, notes)
		 VALUES ($1,$2,$3,$4,NULLIF($5, ''),$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
		 RETURNING created_at, updated_at`,
		inv.ID, inv.ClinicID, inv.Number, inv.PatientID, inv.AppointmentID, items(inv.Items), inv.Discount,
		inv.Subtotal, inv.Total, inv.AmountPaid, inv.Status, inv.IssuedAt, inv.DueAt, inv.PaidAt, inv.Notes,
	).Scan(&inv.CreatedAt, &inv.UpdatedAt)
	if err != nil {
		return pgErr(err)
	}

	return tx.Commit(ctx)
}

func (s *Postgres) GetInvoice(ctx context.Context, clinicID, id string) (*model.Invoice, error) {
	inv, err := scanInvoice(s.pool.QueryRow(ctx,
		`SELECT `+invoiceCols+` FROM invoices WHERE id = $1 AND clinic_id = $2`, id, clinicID))
	if err != nil {
		return nil, err
	}
	return &inv, nil
}

type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func putInvoice(ctx context.Context, q querier, inv *model.Invoice) error {
	err := q.QueryRow(ctx,
		`UPDATE invoices SET patient_id=$3, appointment_id=NULLIF($4, ''), items=$5, discount=$6,
			subtotal=$7, total=$8, amount_paid=$9, status=$10, issued_at=$11, due_at=$12, paid_at=$13,
			notes=$14, updated_at=NOW()
		 WHERE id=$1 AND clinic_id=$2
		 RETURNING number, created_at, updated_at`,
		inv.ID, inv.ClinicID, inv.PatientID, inv.AppointmentID, items(inv.Items), inv.Discount,
		inv.Subtotal, inv.Total, inv.AmountPaid, inv.Status, inv.IssuedAt, inv.DueAt, inv.PaidAt, inv.Notes,
	).Scan(&inv.Number, &inv.CreatedAt, &inv.UpdatedAt)
	return pgErr(err)
}

func (s *Postgres) UpdateInvoice(ctx context.Context, inv *model.Invoice) error {
	return putInvoice(ctx, s.pool, inv)
}

func (s *Postgres) ListInvoices(ctx context.Context, clinicID string, f InvoiceFilter) ([]model.Invoice, int, error) {
	w := newWhere(clinicID)
	if f.PatientID != "" {
		w.add("patient_id = ?", f.PatientID)
	}
	if f.Status != "" {
		w.add("status = ?", f.Status)
	}
	if f.Open {
		w.add("status IN ('unpaid', 'partially_paid')")
	}
	w.timeRange("issued_at", f.From, f.To)
	return listRows(ctx, s, "invoices", invoiceCols, w, "issued_at DESC, created_at DESC, length(number) DESC, number DESC", f.Page, scanInvoice)
}

func (s *Postgres) CountPatientInvoices(ctx context.Context, clinicID, patientID string) (int, error) {
	w := newWhere(clinicID)
	w.add("patient_id = ?", patientID)
	return s.count(ctx, "invoices", w)
}

// SavePayments locks the invoice row so concurrent payments on the same
// invoice serialize.
func (s *Postgres) SavePayments(ctx context.Context, inv *model.Invoice, add []model.Payment, removeIDs []string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	var id string
	err = tx.QueryRow(ctx,
		`SELECT id FROM invoices WHERE id = $1 AND clinic_id = $2 FOR UPDATE`, inv.ID, inv.ClinicID,
	).Scan(&id)
	if err != nil {
		return pgErr(err)
	}

	for _, pid := range removeIDs {
		tag, err := tx.Exec(ctx,
			`DELETE FROM payments WHERE id = $1 AND clinic_id = $2 AND invoice_id = $3`,
			pid, inv.ClinicID, inv.ID,
		)
		if err := affected(tag, err); err != nil {
			return err
		}
	}

	for i := range add {
		p := &add[i]
		err := tx.QueryRow(ctx,
			`INSERT INTO payments (id, clinic_id, invoice_id, patient_id, amount, method, reference, paid_at, created_by)
			 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
			 RETURNING created_at`,
			p.ID, p.ClinicID, p.InvoiceID, p.PatientID, p.Amount, p.Method, p.Reference, p.PaidAt, p.CreatedBy,
		).Scan(&p.CreatedAt)
		if err != nil {
			return pgErr(err)
		}
	}

	if err := putInvoice(ctx, tx, inv); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

const paymentCols = `id, clinic_id, invoice_id, patient_id, amount, method, reference, paid_at, created_by, created_at`

func scanPayment(row pgx.Row) (model.Payment, error) {
	var p model.Payment
	err := row.Scan(&p.ID, &p.ClinicID, &p.InvoiceID, &p.PatientID, &p.Amount, &p.Method,
		&p.Reference, &p.PaidAt, &p.CreatedBy, &p.CreatedAt)
	return p, pgErr(err)
}

func (s *Postgres) GetPayment(ctx context.Context, clinicID, id string) (*model.Payment, error) {
	p, err := scanPayment(s.pool.QueryRow(ctx,
		`SELECT `+paymentCols+` FROM payments WHERE id = $1 AND clinic_id = $2`, id, clinicID))
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *Postgres) ListPayments(ctx context.Context, clinicID string, f PaymentFilter) ([]model.Payment, int, error) {
	w := newWhere(clinicID)
	if f.InvoiceID != "" {
		w.add("invoice_id = ?", f.InvoiceID)
	}
	if f.PatientID != "" {
		w.add("patient_id = ?", f.PatientID)
	}
	w.timeRange("paid_at", f.From, f.To)
	return listRows(ctx, s, "payments", paymentCols, w, "paid_at DESC, id", f.Page, scanPayment)
}
