package store

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"tabibdesk/internal/model"
)

const appointmentCols = `id, clinic_id, patient_id, doctor_id, start_time, end_time, type, status,
	reason, notes, created_by, created_at, updated_at`

func scanAppointment(row pgx.Row) (model.Appointment, error) {
	var a model.Appointment
	err := row.Scan(&a.ID, &a.ClinicID, &a.PatientID, &a.DoctorID, &a.StartTime, &a.EndTime, &a.Type,
		&a.Status, &a.Reason, &a.Notes, &a.CreatedBy, &a.CreatedAt, &a.UpdatedAt)
	return a, pgErr(err)
}

// CreateAppointment relies on the exclusion constraint to reject a double
// booking that slipped past HasOverlap.
func (s *Postgres) CreateAppointment(ctx context.Context, a *model.Appointment) error {
	err := s.pool.QueryRow(ctx,
		`INSERT INTO appointments (id, clinic_id, patient_id, doctor_id, start_time, end_time,
			type, status, reason, notes, created_by)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
		 RETURNING created_at, updated_at`,
		a.ID, a.ClinicID, a.PatientID, a.DoctorID, a.StartTime, a.EndTime,
		a.Type, a.Status, a.Reason, a.Notes, a.CreatedBy,
	).Scan(&a.CreatedAt, &a.UpdatedAt)
	return pgErr(err)
}

func (s *Postgres) GetAppointment(ctx context.Context, clinicID, id string) (*model.Appointment, error) {
	a, err := scanAppointment(s.pool.QueryRow(ctx,
		`SELECT `+appointmentCols+` FROM appointments WHERE id = $1 AND clinic_id = $2`, id, clinicID))
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (s *Postgres) UpdateAppointment(ctx context.Context, a *model.Appointment) error {
	err := s.pool.QueryRow(ctx,
		`UPDATE appointments SET patient_id=$3, doctor_id=$4, start_time=$5, end_time=$6,
			type=$7, status=$8, reason=$9, notes=$10, updated_at=NOW()
		 WHERE id=$1 AND clinic_id=$2
		 RETURNING created_by, created_at, updated_at`,
		a.ID, a.ClinicID, a.PatientID, a.DoctorID, a.StartTime, a.EndTime,
		a.Type, a.Status, a.Reason, a.Notes,
	).Scan(&a.CreatedBy, &a.CreatedAt, &a.UpdatedAt)
	return pgErr(err)
}

func (s *Postgres) HasOverlap(ctx context.Context, clinicID, doctorID string, start, end time.Time, excludeID string) (bool, error) {
	q := `SELECT EXISTS(
		SELECT 1 FROM appointments
		WHERE clinic_id = $1
		  AND doctor_id = $2
		  AND status IN ('scheduled', 'confirmed', 'checked_in', 'in_progress')
		  AND start_time < $4
		  AND end_time > $3`

	args := []any{clinicID, doctorID, start, end}

	if excludeID != "" {
		q += ` AND id != $5`
		args = append(args, excludeID)
	}
	q += `)`

	var exists bool
	err := s.pool.QueryRow(ctx, q, args...).Scan(&exists)
	return exists, err
}

func (s *Postgres) ListAppointments(ctx context.Context, clinicID string, f AppointmentFilter) ([]model.Appointment, int, error) {
	w := newWhere(clinicID)
	if f.DoctorID != "" {
		w.add("doctor_id = ?", f.DoctorID)
	}
	if f.PatientID != "" {
		w.add("patient_id = ?", f.PatientID)
	}
	if len(f.Statuses) > 0 {
		st := make([]string, len(f.Statuses))
		for i, x := range f.Statuses {
			st[i] = string(x)
		}
		w.add("status = ANY(?)", st)
	}
	w.timeRange("start_time", f.From, f.To)
	return listRows(ctx, s, "appointments", appointmentCols, w, "start_time, id", f.Page, scanAppointment)
}

func (s *Postgres) GetDoctorSchedule(ctx context.Context, clinicID, doctorID string) (*model.DoctorSchedule, error) {
	ds := &model.DoctorSchedule{ClinicID: clinicID, DoctorID: doctorID}
	err := s.pool.QueryRow(ctx,
		`SELECT slot_minutes, days, updated_at FROM doctor_schedules WHERE clinic_id = $1 AND doctor_id = $2`,
		clinicID, doctorID,
	).Scan(&ds.Schedule.SlotMinutes, &ds.Schedule.Days, &ds.UpdatedAt)
	if err != nil {
		return nil, pgErr(err)
	}
	return ds, nil
}

func (s *Postgres) PutDoctorSchedule(ctx context.Context, ds *model.DoctorSchedule) error {
	days := ds.Schedule.Days
	if days == nil {
		days = map[time.Weekday][]model.Shift{}
	}
	err := s.pool.QueryRow(ctx,
		`INSERT INTO doctor_schedules (clinic_id, doctor_id, slot_minutes, days)
		 VALUES ($1,$2,$3,$4)
		 ON CONFLICT (clinic_id, doctor_id)
		 DO UPDATE SET slot_minutes = EXCLUDED.slot_minutes, days = EXCLUDED.days, updated_at = NOW()
		 RETURNING updated_at`,
		ds.ClinicID, ds.DoctorID, ds.Schedule.SlotMinutes, days,
	).Scan(&ds.UpdatedAt)
	return pgErr(err)
}
