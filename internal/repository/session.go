package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/Aun-shahid/TherapEase/internal/database"
	"github.com/Aun-shahid/TherapEase/internal/model"
)

type SessionRepository interface {
	FindByID(ctx context.Context, id string) (*model.Session, error)
	FindByRoomID(ctx context.Context, roomID string) (*model.Session, error)
	// Create inserts the session, assigning the next session_number for the
	// (patient, therapist) pair inside the INSERT when a patient is set, so
	// concurrent creates cannot issue duplicate numbers.
	Create(ctx context.Context, params model.CreateSessionParams) (*model.Session, error)

	// The Mark* methods are compare-and-set status mutations: the WHERE
	// clause pins the expected source statuses, and a false return means the
	// session was not in any of them (lost race or illegal transition).
	MarkStarted(ctx context.Context, id string, from []model.SessionStatus, at time.Time) (bool, error)
	MarkEnded(ctx context.Context, id string, params model.EndSessionParams, at time.Time) (bool, error)
	MarkCancelled(ctx context.Context, id string, from []model.SessionStatus, notePrefix string, at time.Time) (bool, error)
	MarkRescheduled(ctx context.Context, id string, from []model.SessionStatus, newDate time.Time, notePrefix string, at time.Time) (bool, error)
	AssignPatient(ctx context.Context, id string, patientID string) (bool, error)

	UpdateNotes(ctx context.Context, id string, params model.UpdateNotesParams) error
	SetRoomActive(ctx context.Context, roomID string, active bool) error
	// ReassignPatient moves every session from one patient identity to
	// another and reports how many rows moved.
	ReassignPatient(ctx context.Context, oldUserID, newUserID string) (int64, error)
	Delete(ctx context.Context, id string) error

	ListByTherapist(ctx context.Context, therapistID string, filter model.SessionFilter) ([]model.Session, error)
	ListByPatient(ctx context.Context, patientID string) ([]model.Session, error)
	ListUpcoming(ctx context.Context, userID string, role model.UserRole, limit int) ([]model.Session, error)
	ListPast(ctx context.Context, therapistID string, patientID *string) ([]model.Session, error)
	Stats(ctx context.Context, therapistID string, since time.Time) (*model.SessionStats, error)
	WithTx(tx *sqlx.Tx) SessionRepository
}

type sessionRepo struct {
	db database.DBTX
}

func NewSessionRepository(db *sqlx.DB) SessionRepository {
	return &sessionRepo{db: db}
}

func (r *sessionRepo) WithTx(tx *sqlx.Tx) SessionRepository {
	return &sessionRepo{db: tx}
}

func (r *sessionRepo) FindByID(ctx context.Context, id string) (*model.Session, error) {
	var session model.Session
	err := r.db.GetContext(ctx, &session, `
		SELECT * FROM sessions WHERE id = $1
	`, id)
	return HandleNotFound(&session, err)
}

func (r *sessionRepo) FindByRoomID(ctx context.Context, roomID string) (*model.Session, error) {
	var session model.Session
	err := r.db.GetContext(ctx, &session, `
		SELECT * FROM sessions WHERE room_id = $1
	`, roomID)
	return HandleNotFound(&session, err)
}

func (r *sessionRepo) Create(ctx context.Context, params model.CreateSessionParams) (*model.Session, error) {
	var session model.Session
	err := r.db.GetContext(ctx, &session, `
		INSERT INTO sessions (
			id, patient_id, therapist_id, session_number, session_type, status,
			scheduled_date, duration_minutes, location, is_online,
			patient_goals, patient_mood_before,
			consent_recording, consent_ai_analysis,
			is_quick_session, quick_session_patient_name,
			room_id, fee_charged, payment_status
		)
		VALUES (
			$1, $2, $3,
			CASE WHEN $2 IS NULL THEN NULL ELSE (
				SELECT COALESCE(MAX(session_number), 0) + 1 FROM sessions
				WHERE patient_id = $2 AND therapist_id = $3
			) END,
			$4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18
		)
		RETURNING *
	`,
		uuid.New().String(), params.PatientID, params.TherapistID,
		params.SessionType, params.Status, params.ScheduledDate, params.DurationMinutes,
		params.Location, params.IsOnline, params.PatientGoals, params.PatientMoodBefore,
		params.ConsentRecording, params.ConsentAIAnalysis,
		params.QuickSessionPatientName != nil, params.QuickSessionPatientName,
		params.RoomID, params.FeeCharged, model.PaymentPending,
	)
	if err != nil {
		return nil, err
	}
	return &session, nil
}

func statusList(statuses []model.SessionStatus) string {
	quoted := make([]string, len(statuses))
	for i, s := range statuses {
		quoted[i] = "'" + string(s) + "'"
	}
	return strings.Join(quoted, ", ")
}

func (r *sessionRepo) MarkStarted(ctx context.Context, id string, from []model.SessionStatus, at time.Time) (bool, error) {
	query := fmt.Sprintf(`
		UPDATE sessions SET
			status = 'in_progress',
			actual_start_time = $2,
			updated_at = $2
		WHERE id = $1 AND status IN (%s)
	`, statusList(from))
	result, err := r.db.ExecContext(ctx, query, id, at)
	if err != nil {
		return false, err
	}
	rows, err := result.RowsAffected()
	return rows == 1, err
}

func (r *sessionRepo) MarkEnded(ctx context.Context, id string, params model.EndSessionParams, at time.Time) (bool, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE sessions SET
			status = 'completed',
			actual_end_time = $2,
			session_notes = COALESCE($3, session_notes),
			patient_mood_after = COALESCE($4, patient_mood_after),
			homework_assigned = COALESCE($5, homework_assigned),
			next_session_goals = COALESCE($6, next_session_goals),
			session_effectiveness = COALESCE($7, session_effectiveness),
			updated_at = $2
		WHERE id = $1 AND status = 'in_progress'
	`, id, at, params.SessionNotes, params.PatientMoodAfter, params.HomeworkAssigned,
		params.NextSessionGoals, params.SessionEffectiveness)
	if err != nil {
		return false, err
	}
	rows, err := result.RowsAffected()
	return rows == 1, err
}

func (r *sessionRepo) MarkCancelled(ctx context.Context, id string, from []model.SessionStatus, notePrefix string, at time.Time) (bool, error) {
	query := fmt.Sprintf(`
		UPDATE sessions SET
			status = 'cancelled',
			session_notes = CASE WHEN $2 <> ''
				THEN $2 || COALESCE(E'\n\n' || session_notes, '')
				ELSE session_notes END,
			updated_at = $3
		WHERE id = $1 AND status IN (%s)
	`, statusList(from))
	result, err := r.db.ExecContext(ctx, query, id, notePrefix, at)
	if err != nil {
		return false, err
	}
	rows, err := result.RowsAffected()
	return rows == 1, err
}

func (r *sessionRepo) MarkRescheduled(ctx context.Context, id string, from []model.SessionStatus, newDate time.Time, notePrefix string, at time.Time) (bool, error) {
	query := fmt.Sprintf(`
		UPDATE sessions SET
			status = 'rescheduled',
			scheduled_date = $2,
			session_notes = CASE WHEN $3 <> ''
				THEN $3 || COALESCE(E'\n\n' || session_notes, '')
				ELSE session_notes END,
			updated_at = $4
		WHERE id = $1 AND status IN (%s)
	`, statusList(from))
	result, err := r.db.ExecContext(ctx, query, id, newDate, notePrefix, at)
	if err != nil {
		return false, err
	}
	rows, err := result.RowsAffected()
	return rows == 1, err
}

func (r *sessionRepo) AssignPatient(ctx context.Context, id string, patientID string) (bool, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE sessions SET
			patient_id = $2,
			session_number = (
				SELECT COALESCE(MAX(s.session_number), 0) + 1 FROM sessions s
				WHERE s.patient_id = $2 AND s.therapist_id = sessions.therapist_id
			),
			is_quick_session = FALSE,
			quick_session_patient_name = NULL,
			updated_at = $3
		WHERE id = $1 AND is_quick_session = TRUE AND patient_id IS NULL
	`, id, patientID, time.Now())
	if err != nil {
		return false, err
	}
	rows, err := result.RowsAffected()
	return rows == 1, err
}

func (r *sessionRepo) UpdateNotes(ctx context.Context, id string, params model.UpdateNotesParams) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE sessions SET
			session_notes = COALESCE($2, session_notes),
			patient_goals = COALESCE($3, patient_goals),
			homework_assigned = COALESCE($4, homework_assigned),
			next_session_goals = COALESCE($5, next_session_goals),
			therapist_observations = COALESCE($6, therapist_observations),
			patient_mood_before = COALESCE($7, patient_mood_before),
			patient_mood_after = COALESCE($8, patient_mood_after),
			session_effectiveness = COALESCE($9, session_effectiveness),
			updated_at = $10
		WHERE id = $1
	`, id, params.SessionNotes, params.PatientGoals, params.HomeworkAssigned,
		params.NextSessionGoals, params.TherapistObservations,
		params.PatientMoodBefore, params.PatientMoodAfter, params.SessionEffectiveness,
		time.Now())
	return err
}

func (r *sessionRepo) SetRoomActive(ctx context.Context, roomID string, active bool) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE sessions SET
			room_active = $2,
			updated_at = $3
		WHERE room_id = $1
	`, roomID, active, time.Now())
	return err
}

func (r *sessionRepo) ReassignPatient(ctx context.Context, oldUserID, newUserID string) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE sessions SET
			patient_id = $2,
			updated_at = $3
		WHERE patient_id = $1
	`, oldUserID, newUserID, time.Now())
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func (r *sessionRepo) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `
		DELETE FROM sessions WHERE id = $1
	`, id)
	return err
}

func (r *sessionRepo) ListByTherapist(ctx context.Context, therapistID string, filter model.SessionFilter) ([]model.Session, error) {
	query := `SELECT * FROM sessions WHERE therapist_id = $1`
	args := []interface{}{therapistID}

	if filter.Status != nil {
		args = append(args, *filter.Status)
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	if filter.PatientID != nil {
		args = append(args, *filter.PatientID)
		query += fmt.Sprintf(" AND patient_id = $%d", len(args))
	}
	if filter.From != nil {
		args = append(args, *filter.From)
		query += fmt.Sprintf(" AND scheduled_date >= $%d", len(args))
	}
	if filter.To != nil {
		args = append(args, *filter.To)
		query += fmt.Sprintf(" AND scheduled_date <= $%d", len(args))
	}
	query += " ORDER BY scheduled_date DESC"

	var sessions []model.Session
	err := r.db.SelectContext(ctx, &sessions, query, args...)
	if err != nil {
		return nil, err
	}
	return sessions, nil
}

func (r *sessionRepo) ListByPatient(ctx context.Context, patientID string) ([]model.Session, error) {
	var sessions []model.Session
	err := r.db.SelectContext(ctx, &sessions, `
		SELECT * FROM sessions
		WHERE patient_id = $1
		ORDER BY scheduled_date DESC
	`, patientID)
	if err != nil {
		return nil, err
	}
	return sessions, nil
}

func (r *sessionRepo) ListUpcoming(ctx context.Context, userID string, role model.UserRole, limit int) ([]model.Session, error) {
	column := "patient_id"
	if role == model.RoleTherapist {
		column = "therapist_id"
	}
	query := fmt.Sprintf(`
		SELECT * FROM sessions
		WHERE %s = $1
		AND status IN ('upcoming', 'rescheduled', 'requested')
		AND scheduled_date >= $2
		ORDER BY scheduled_date ASC
		LIMIT $3
	`, column)

	var sessions []model.Session
	err := r.db.SelectContext(ctx, &sessions, query, userID, time.Now(), limit)
	if err != nil {
		return nil, err
	}
	return sessions, nil
}

func (r *sessionRepo) ListPast(ctx context.Context, therapistID string, patientID *string) ([]model.Session, error) {
	query := `
		SELECT * FROM sessions
		WHERE therapist_id = $1
		AND status IN ('completed', 'cancelled', 'no_show')
	`
	args := []interface{}{therapistID}
	if patientID != nil {
		args = append(args, *patientID)
		query += fmt.Sprintf(" AND patient_id = $%d", len(args))
	}
	query += " ORDER BY scheduled_date DESC"

	var sessions []model.Session
	err := r.db.SelectContext(ctx, &sessions, query, args...)
	if err != nil {
		return nil, err
	}
	return sessions, nil
}

func (r *sessionRepo) Stats(ctx context.Context, therapistID string, since time.Time) (*model.SessionStats, error) {
	var rows []struct {
		Status model.SessionStatus `db:"status"`
		Type   model.SessionType   `db:"session_type"`
	}
	err := r.db.SelectContext(ctx, &rows, `
		SELECT status, session_type FROM sessions
		WHERE therapist_id = $1 AND scheduled_date >= $2
	`, therapistID, since)
	if err != nil {
		return nil, err
	}

	stats := &model.SessionStats{
		SessionsByStatus: make(map[string]int),
		SessionsByType:   make(map[string]int),
	}
	for _, row := range rows {
		stats.TotalSessions++
		stats.SessionsByStatus[string(row.Status)]++
		stats.SessionsByType[string(row.Type)]++
		switch row.Status {
		case model.StatusCompleted:
			stats.CompletedSessions++
		case model.StatusCancelled:
			stats.CancelledSessions++
		case model.StatusNoShow:
			stats.NoShowSessions++
		case model.StatusUpcoming, model.StatusRescheduled:
			stats.UpcomingSessions++
		}
	}

	err = r.db.GetContext(ctx, &stats.TotalPatients, `
		SELECT COUNT(DISTINCT patient_id) FROM sessions
		WHERE therapist_id = $1 AND scheduled_date >= $2 AND patient_id IS NOT NULL
	`, therapistID, since)
	if err != nil {
		return nil, err
	}

	var avg *float64
	err = r.db.GetContext(ctx, &avg, `
		SELECT AVG(session_effectiveness) FROM sessions
		WHERE therapist_id = $1 AND scheduled_date >= $2
		AND session_effectiveness IS NOT NULL
	`, therapistID, since)
	if err != nil {
		return nil, err
	}
	stats.AverageEffectiveness = avg

	return stats, nil
}
