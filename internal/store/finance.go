package store

import (
	"context"

	"github.com/jackc/pgx/v5"

	"tabibdesk/internal/model"
)

const vendorCols = `id, clinic_id, name, phone, email, category, notes, created_at, updated_at`

func scanVendor(row pgx.Row) (model.Vendor, error) {
	var v model.Vendor
	err := row.Scan(&v.ID, &v.ClinicID, &v.Name, &v.Phone, &v.Email, &v.Category, &v.Notes, &v.CreatedAt, &v.UpdatedAt)
	return v, pgErr(err)
}

func (s *Postgres) CreateVendor(ctx context.Context, v *model.Vendor) error {
	err := s.pool.QueryRow(ctx,
		`INSERT INTO vendors (id, clinic_id, name, phone, email, category, notes)
		 VALUES ($1,$2,$3,$4,$5,$6,$7) RETURNING created_at, updated_at`,
		v.ID, v.ClinicID, v.Name, v.Phone, v.Email, v.Category, v.Notes,
	).Scan(&v.CreatedAt, &v.UpdatedAt)
	return pgErr(err)
}

func (s *Postgres) GetVendor(ctx context.Context, clinicID, id string) (*model.Vendor, error) {
	v, err := scanVendor(s.pool.QueryRow(ctx,
		`SELECT `+vendorCols+` FROM vendors WHERE id = $1 AND clinic_id = $2`, id, clinicID))
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func (s *Postgres) UpdateVendor(ctx context.Context, v *model.Vendor) error {
	err := s.pool.QueryRow(ctx,
		`UPDATE vendors SET name=$3, phone=$4, email=$5, category=$6, notes=$7, updated_at=NOW()
		 WHERE id=$1 AND clinic_id=$2 RETURNING created_at, updated_at`,
		v.ID, v.ClinicID, v.Name, v.Phone, v.Email, v.Category, v.Notes,
	).Scan(&v.CreatedAt, &v.UpdatedAt)
	return pgErr(err)
}

func (s *Postgres) DeleteVendor(ctx context.Context, clinicID, id string) error {
	return affected(s.pool.Exec(ctx, `DELETE FROM vendors WHERE id = $1 AND clinic_id = $2`, id, clinicID))
}

func (s *Postgres) ListVendors(ctx context.Context, clinicID string, f VendorFilter) ([]model.Vendor, int, error) {
	w := newWhere(clinicID)
	if f.Query != "" {
		q := like(f.Query)
		w.add("(name ILIKE ? OR email ILIKE ? OR category ILIKE ? OR phone LIKE ?)", q, q, q, q)
	}
	return listRows(ctx, s, "vendors", vendorCols, w, "lower(name), id", f.Page, scanVendor)
}

const expenseCols = `id, clinic_id, COALESCE(vendor_id, ''), category, amount, incurred_at, description,
	created_by, created_at, updated_at`

func scanExpense(row pgx.Row) (model.Expense, error) {
	var e model.Expense
	err := row.Scan(&e.ID, &e.ClinicID, &e.VendorID, &e.Category, &e.Amount, &e.IncurredAt,
		&e.Description, &e.CreatedBy, &e.CreatedAt, &e.UpdatedAt)
	return e, pgErr(err)
}

func (s *Postgres) CreateExpense(ctx context.Context, e *model.Expense) error {
	err := s.pool.QueryRow(ctx,
		`INSERT INTO expenses (id, clinic_id, vendor_id, category, amount, incurred_at, description, created_by)
		 VALUES ($1,$2,NULLIF($3, ''),$4,$5,$6,$7,$8) RETURNING created_at, updated_at`,
		e.ID, e.ClinicID, e.VendorID, e.Category, e.Amount, e.IncurredAt, e.Description, e.CreatedBy,
	).Scan(&e.CreatedAt, &e.UpdatedAt)
	return pgErr(err)
}

func (s *Postgres) GetExpense(ctx context.Context, clinicID, id string) (*model.Expense, error) {
	e, err := scanExpense(s.pool.QueryRow(ctx,
		`SELECT `+expenseCols+` FROM expenses WHERE id = $1 AND clinic_id = $2`, id, clinicID))
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (s *Postgres) UpdateExpense(ctx context.Context, e *model.Expense) error {
	err := s.pool.QueryRow(ctx,
		`UPDATE expenses SET vendor_id=NULLIF($3, ''), category=$4, amount=$5, incurred_at=$6,
			description=$7, updated_at=NOW()
		 WHERE id=$1 AND clinic_id=$2 RETURNING created_by, created_at, updated_at`,
		e.ID, e.ClinicID, e.VendorID, e.Category, e.Amount, e.IncurredAt, e.Description,
	).Scan(&e.CreatedBy, &e.CreatedAt, &e.UpdatedAt)
	return pgErr(err)
}

func (s *Postgres) DeleteExpense(ctx context.Context, clinicID, id string) error {
	return affected(s.pool.Exec(ctx, `DELETE FROM expenses WHERE id = $1 AND clinic_id = $2`, id, clinicID))
}

func (s *Postgres) ListExpenses(ctx context.Context, clinicID string, f ExpenseFilter) ([]model.Expense, int, error) {
	w := newWhere(clinicID)
	if f.VendorID != "" {
		w.add("vendor_id = ?", f.VendorID)
	}
	if f.Category != "" {
		w.add("category = ?", f.Category)
	}
	w.timeRange("incurred_at", f.From, f.To)
	return listRows(ctx, s, "expenses", expenseCols, w, "incurred_at DESC, id", f.Page, scanExpense)
}

func (s *Postgres) CountVendorExpenses(ctx context.Context, clinicID, vendorID string) (int, error) {
	w := newWhere(clinicID)
	w.add("vendor_id = ?", vendorID)
	return s.count(ctx, "expenses", w)
}
