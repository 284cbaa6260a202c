package store

import (
	"context"

	"github.com/jackc/pgx/v5"

	"tabibdesk/internal/model"
)

const taskCols = `id, clinic_id, title, description, COALESCE(assignee_id, ''), COALESCE(patient_id, ''),
	priority, status, due_at, created_by, completed_at, created_at, updated_at`

const taskOrder = `due_at ASC NULLS LAST,
	CASE priority WHEN 'high' THEN 0 WHEN 'normal' THEN 1 WHEN 'low' THEN 2 ELSE 3 END,
	created_at, id`

func scanTask(row pgx.Row) (model.Task, error) {
	var t model.Task
	err := row.Scan(&t.ID, &t.ClinicID, &t.Title, &t.Description, &t.AssigneeID, &t.PatientID,
		&t.Priority, &t.Status, &t.DueAt, &t.CreatedBy, &t.CompletedAt, &t.CreatedAt, &t.UpdatedAt)
	return t, pgErr(err)
}

func (s *Postgres) CreateTask(ctx context.Context, t *model.Task) error {
	err := s.pool.QueryRow(ctx,
		`INSERT INTO tasks (id, clinic_id, title, description, assignee_id, patient_id, priority,
			status, due_at, created_by, completed_at)
		 VALUES ($1,$2,$3,$4,NULLIF($5, ''),NULLIF($6, ''),$7,$8,$9,$10,$11)
		 RETURNING created_at, updated_at`,
		t.ID, t.ClinicID, t.Title, t.Description, t.AssigneeID, t.PatientID, t.Priority,
		t.Status, t.DueAt, t.CreatedBy, t.CompletedAt,
	).Scan(&t.CreatedAt, &t.UpdatedAt)
	return pgErr(err)
}

func (s *Postgres) GetTask(ctx context.Context, clinicID, id string) (*model.Task, error) {
	t, err := scanTask(s.pool.QueryRow(ctx,
		`SELECT `+taskCols+` FROM tasks WHERE id = $1 AND clinic_id = $2`, id, clinicID))
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *Postgres) UpdateTask(ctx context.Context, t *model.Task) error {
	err := s.pool.QueryRow(ctx,
		`UPDATE tasks SET title=$3, description=$4, assignee_id=NULLIF($5, ''), patient_id=NULLIF($6, ''),
			priority=$7, status=$8, due_at=$9, completed_at=$10, updated_at=NOW()
		 WHERE id=$1 AND clinic_id=$2 RETURNING created_by, created_at, updated_at`,
		t.ID, t.ClinicID, t.Title, t.Description, t.AssigneeID, t.PatientID,
		t.Priority, t.Status, t.DueAt, t.CompletedAt,
	).Scan(&t.CreatedBy, &t.CreatedAt, &t.UpdatedAt)
	return pgErr(err)
}

func (s *Postgres) DeleteTask(ctx context.Context, clinicID, id string) error {
	return affected(s.pool.Exec(ctx, `DELETE FROM tasks WHERE id = $1 AND clinic_id = $2`, id, clinicID))
}

func (s *Postgres) ListTasks(ctx context.Context, clinicID string, f TaskFilter) ([]model.Task, int, error) {
	w := newWhere(clinicID)
	if f.AssigneeID != "" {
		w.add("assignee_id = ?", f.AssigneeID)
	}
	if f.PatientID != "" {
		w.add("patient_id = ?", f.PatientID)
	}
	if f.Status != "" {
		w.add("status = ?", f.Status)
	}
	if f.OpenOnly {
		w.add("status != 'done'")
	}
	if !f.OverdueAt.IsZero() {
		w.add("status != 'done' AND due_at < ?", f.OverdueAt)
	}
	return listRows(ctx, s, "tasks", taskCols, w, taskOrder, f.Page, scanTask)
}
