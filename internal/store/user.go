package store

import (
	"context"

	"tabibdesk/internal/model"
)

func (s *Postgres) CreateClinic(ctx context.Context, c *model.Clinic) error {
	err := s.pool.QueryRow(ctx,
		`INSERT INTO clinics (id, name, timezone, currency) VALUES ($1,$2,$3,$4) RETURNING created_at`,
		c.ID, c.Name, c.Timezone, c.Currency,
	).Scan(&c.CreatedAt)
	return pgErr(err)
}

func (s *Postgres) GetClinic(ctx context.Context, id string) (*model.Clinic, error) {
	c := &model.Clinic{}
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, timezone, currency, created_at FROM clinics WHERE id = $1`, id,
	).Scan(&c.ID, &c.Name, &c.Timezone, &c.Currency, &c.CreatedAt)
	if err != nil {
		return nil, pgErr(err)
	}
	return c, nil
}

func (s *Postgres) CreateUser(ctx context.Context, u *model.User) error {
	err := s.pool.QueryRow(ctx,
		`INSERT INTO users (id, clinic_id, email, password_hash, name, role)
		 VALUES ($1,$2,$3,$4,$5,$6) RETURNING created_at, updated_at`,
		u.ID, u.ClinicID, u.Email, u.PasswordHash, u.Name, u.Role,
	).Scan(&u.CreatedAt, &u.UpdatedAt)
	return pgErr(err)
}

const userCols = `id, clinic_id, email, password_hash, name, role, created_at, updated_at`

func scanUser(row interface{ Scan(...any) error }) (*model.User, error) {
	u := &model.User{}
	err := row.Scan(&u.ID, &u.ClinicID, &u.Email, &u.PasswordHash, &u.Name, &u.Role, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, pgErr(err)
	}
	return u, nil
}

func (s *Postgres) UserByEmail(ctx context.Context, email string) (*model.User, error) {
	return scanUser(s.pool.QueryRow(ctx,
		`SELECT `+userCols+` FROM users WHERE lower(email) = lower($1)`, email))
}

func (s *Postgres) GetUser(ctx context.Context, clinicID, id string) (*model.User, error) {
	return scanUser(s.pool.QueryRow(ctx,
		`SELECT `+userCols+` FROM users WHERE id = $1 AND clinic_id = $2`, id, clinicID))
}

func (s *Postgres) UserByID(ctx context.Context, id string) (*model.User, error) {
	return scanUser(s.pool.QueryRow(ctx, `SELECT `+userCols+` FROM users WHERE id = $1`, id))
}

func (s *Postgres) ListUsers(ctx context.Context, clinicID string, role model.Role) ([]model.User, error) {
	w := newWhere(clinicID)
	if role != "" {
		w.add("role = ?", role)
	}
	rows, err := s.pool.Query(ctx, `SELECT `+userCols+` FROM users`+w.String()+` ORDER BY name, id`, w.args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *u)
	}
	return out, rows.Err()
}
