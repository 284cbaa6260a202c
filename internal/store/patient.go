package store

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"tabibdesk/internal/model"
	"tabibdesk/internal/textsearch"
)

const patientCols = `id, clinic_id, first_name, last_name, phone, email, date_of_birth, gender,
	address, notes, allergies, status, last_visit_at, created_at, updated_at`

func scanPatient(row pgx.Row) (model.Patient, error) {
	var p model.Patient
	err := row.Scan(&p.ID, &p.ClinicID, &p.FirstName, &p.LastName, &p.Phone, &p.Email, &p.DateOfBirth,
		&p.Gender, &p.Address, &p.Notes, &p.Allergies, &p.Status, &p.LastVisitAt, &p.CreatedAt, &p.UpdatedAt)
	return p, pgErr(err)
}

func strs(a []string) []string {
	if a == nil {
		return []string{}
	}
	return a
}

func (s *Postgres) CreatePatient(ctx context.Context, p *model.Patient) error {
	err := s.pool.QueryRow(ctx,
		`INSERT INTO patients (id, clinic_id, first_name, last_name, phone, phone_digits, email,
			date_of_birth, gender, address, notes, allergies, status, last_visit_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
		 RETURNING created_at, updated_at`,
		p.ID, p.ClinicID, p.FirstName, p.LastName, p.Phone, textsearch.Digits(p.Phone), p.Email,
		p.DateOfBirth, p.Gender, p.Address, p.Notes, strs(p.Allergies), p.Status, p.LastVisitAt,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	return pgErr(err)
}

func (s *Postgres) GetPatient(ctx context.Context, clinicID, id string) (*model.Patient, error) {
	p, err := scanPatient(s.pool.QueryRow(ctx,
		`SELECT `+patientCols+` FROM patients WHERE id = $1 AND clinic_id = $2`, id, clinicID))
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *Postgres) UpdatePatient(ctx context.Context, p *model.Patient) error {
	err := s.pool.QueryRow(ctx,
		`UPDATE patients SET first_name=$3, last_name=$4, phone=$5, phone_digits=$6, email=$7,
			date_of_birth=$8, gender=$9, address=$10, notes=$11, allergies=$12, status=$13,
			last_visit_at=$14, updated_at=NOW()
		 WHERE id=$1 AND clinic_id=$2
		 RETURNING created_at, updated_at`,
		p.ID, p.ClinicID, p.FirstName, p.LastName, p.Phone, textsearch.Digits(p.Phone), p.Email,
		p.DateOfBirth, p.Gender, p.Address, p.Notes, strs(p.Allergies), p.Status, p.LastVisitAt,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	return pgErr(err)
}

func (s *Postgres) DeactivateStalePatient(ctx context.Context, clinicID, id string, cutoff time.Time) (bool, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE patients SET status = $3, updated_at = NOW()
		 WHERE id = $1 AND clinic_id = $2 AND status = $4
		   AND COALESCE(last_visit_at, created_at) < $5`,
		id, clinicID, model.PatientInactive, model.PatientActive, cutoff)
	if err != nil {
		return false, pgErr(err)
	}
	return tag.RowsAffected() == 1, nil
}

func (s *Postgres) DeletePatient(ctx context.Context, clinicID, id string) error {
	return affected(s.pool.Exec(ctx, `DELETE FROM patients WHERE id = $1 AND clinic_id = $2`, id, clinicID))
}

// ListPatients matches the query case-insensitively on name and email, and on
// phone digits when the query carries at least three of them. Unlike the
// memory store it does not fold diacritics.
func (s *Postgres) ListPatients(ctx context.Context, clinicID string, f PatientFilter) ([]model.Patient, int, error) {
	w := newWhere(clinicID)
	if f.Status != "" {
		w.add("status = ?", f.Status)
	}
	if !f.VisitBefore.IsZero() {
		w.add("COALESCE(last_visit_at, created_at) < ?", f.VisitBefore)
	}
	if q := f.Query; q != "" {
		if d := textsearch.Digits(q); len(d) >= 3 {
			w.add(`((first_name || ' ' || last_name) ILIKE ? OR email ILIKE ? OR phone_digits LIKE ?)`,
				like(q), like(q), like(d))
		} else {
			w.add(`((first_name || ' ' || last_name) ILIKE ? OR email ILIKE ?)`, like(q), like(q))
		}
	}

	order := "created_at DESC, id"
	switch f.Sort {
	case SortName:
		order = "lower(first_name), lower(last_name), id"
	case SortLastVisit:
		order = "last_visit_at DESC NULLS LAST, id"
	}
	return listRows(ctx, s, "patients", patientCols, w, order, f.Page, scanPatient)
}
