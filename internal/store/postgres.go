package store

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Postgres is the hosted backend.
type Postgres struct {
	pool *pgxpool.Pool
}

var _ Store = (*Postgres)(nil)

func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

// OpenPostgres connects and pings with backoff so the service can start
// alongside a database that is still booting.
func OpenPostgres(ctx context.Context, url string, log *zap.Logger) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("db: %w", err)
	}
	err = retry.Do(
		func() error { return pool.Ping(ctx) },
		retry.Context(ctx),
		retry.Attempts(6),
		retry.Delay(500*time.Millisecond),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			log.Warn("db ping failed, retrying", zap.Uint("attempt", n+1), zap.Error(err))
		}),
	)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return NewPostgres(pool), nil
}

func (s *Postgres) Close() { s.pool.Close() }

// Migrate applies every embedded migration in name order. The scripts are
// idempotent.
func (s *Postgres) Migrate(ctx context.Context) ([]string, error) {
	names, err := fs.Glob(migrations, "migrations/*.sql")
	if err != nil {
		return nil, err
	}
	sort.Strings(names)
	for _, name := range names {
		b, err := migrations.ReadFile(name)
		if err != nil {
			return nil, err
		}
		if _, err := s.pool.Exec(ctx, string(b)); err != nil {
			return nil, fmt.Errorf("migration %s: %w", name, err)
		}
	}
	return names, nil
}

// pgErr maps driver errors onto the store sentinels.
func pgErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	var pe *pgconn.PgError
	if errors.As(err, &pe) {
		switch pe.Code {
		case "23505", "23P01": // unique_violation, exclusion_violation
			return fmt.Errorf("%w: %s", ErrConflict, pe.ConstraintName)
		case "23503": // foreign_key_violation
			return fmt.Errorf("%w: %s", ErrNotFound, pe.ConstraintName)
		}
	}
	return err
}

// affected turns a zero-row update into ErrNotFound.
func affected(tag pgconn.CommandTag, err error) error {
	if err != nil {
		return pgErr(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// where accumulates AND-ed conditions with positional args. Each "?" in a
// condition is replaced by the next $n.
type where struct {
	conds []string
	args  []any
}

func newWhere(clinicID string) *where {
	w := &where{}
	w.add("clinic_id = ?", clinicID)
	return w
}

func (w *where) add(cond string, vals ...any) {
	for _, v := range vals {
		w.args = append(w.args, v)
		cond = strings.Replace(cond, "?", fmt.Sprintf("$%d", len(w.args)), 1)
	}
	w.conds = append(w.conds, cond)
}

func (w *where) timeRange(col string, from, to time.Time) {
	if !from.IsZero() {
		w.add(col+" >= ?", from)
	}
	if !to.IsZero() {
		w.add(col+" < ?", to)
	}
}

func (w *where) String() string {
	return " WHERE " + strings.Join(w.conds, " AND ")
}

func (w *where) limit(p Page) string {
	if p.Size <= 0 {
		return ""
	}
	return fmt.Sprintf(" LIMIT %d OFFSET %d", p.Size, p.offset())
}

func (s *Postgres) count(ctx context.Context, table string, w *where) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, "SELECT count(*) FROM "+table+w.String(), w.args...).Scan(&n)
	return n, err
}

// listRows runs the counted, paged select and hands each row to scan.
func listRows[T any](ctx context.Context, s *Postgres, table, cols string, w *where, order string, p Page, scan func(pgx.Row) (T, error)) ([]T, int, error) {
	total, err := s.count(ctx, table, w)
	if err != nil {
		return nil, 0, err
	}
	rows, err := s.pool.Query(ctx, "SELECT "+cols+" FROM "+table+w.String()+" ORDER BY "+order+w.limit(p), w.args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []T
	for rows.Next() {
		v, err := scan(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, v)
	}
	return out, total, rows.Err()
}

func like(q string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(strings.TrimSpace(q)) + "%"
}
