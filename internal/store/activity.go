package store

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"tabibdesk/internal/model"
)

const activityCols = `id, clinic_id, actor_id, entity_type, entity_id, action, message, created_at`

func (s *Postgres) AppendActivity(ctx context.Context, e *model.ActivityEvent) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	err := s.pool.QueryRow(ctx,
		`INSERT INTO activity_events (id, clinic_id, actor_id, entity_type, entity_id, action, message)
		 VALUES ($1,$2,$3,$4,$5,$6,$7) RETURNING created_at`,
		e.ID, e.ClinicID, e.ActorID, e.EntityType, e.EntityID, e.Action, e.Message,
	).Scan(&e.CreatedAt)
	return pgErr(err)
}

func (s *Postgres) ListActivity(ctx context.Context, clinicID string, f ActivityFilter) ([]model.ActivityEvent, int, error) {
	w := newWhere(clinicID)
	if f.EntityType != "" {
		w.add("entity_type = ?", f.EntityType)
	}
	if f.EntityID != "" {
		w.add("entity_id = ?", f.EntityID)
	}
	if f.ActorID != "" {
		w.add("actor_id = ?", f.ActorID)
	}
	w.timeRange("created_at", f.From, f.To)
	return listRows(ctx, s, "activity_events", activityCols, w, "created_at DESC, seq DESC", f.Page,
		func(row pgx.Row) (model.ActivityEvent, error) {
			var e model.ActivityEvent
			err := row.Scan(&e.ID, &e.ClinicID, &e.ActorID, &e.EntityType, &e.EntityID, &e.Action, &e.Message, &e.CreatedAt)
			return e, pgErr(err)
		})
}
