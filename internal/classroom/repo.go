package classroom

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"campus/internal/academics"
)

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Repository persists classrooms, sessions and session attendance in Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

const classroomColumns = `id, name, capacity, type, status, active_session_id, created_at`

// ListClassrooms returns all rooms ordered by name.
func (r *Repository) ListClassrooms(ctx context.Context) ([]Classroom, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+classroomColumns+` FROM classrooms ORDER BY name
	`)
	if err != nil {
		return nil, fmt.Errorf("list classrooms: %w", err)
	}
	defer rows.Close()

	var rooms []Classroom
	for rows.Next() {
		var room Classroom
		if err := rows.Scan(&room.ID, &room.Name, &room.Capacity, &room.Type,
			&room.Status, &room.ActiveSessionID, &room.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan classroom: %w", err)
		}
		rooms = append(rooms, room)
	}
	return rooms, rows.Err()
}

// GetClassroom returns a room by id, nil when absent.
func (r *Repository) GetClassroom(ctx context.Context, q querier, id int64) (*Classroom, error) {
	return scanClassroom(q.QueryRowContext(ctx, `
		SELECT `+classroomColumns+` FROM classrooms WHERE id = $1
	`, id))
}

// ClassroomForUpdate locks the room row. Taken before the empty check inside
// the start transaction so concurrent starts serialize here.
func (r *Repository) ClassroomForUpdate(ctx context.Context, tx *sql.Tx, id int64) (*Classroom, error) {
	return scanClassroom(tx.QueryRowContext(ctx, `
		SELECT `+classroomColumns+` FROM classrooms WHERE id = $1
		FOR UPDATE
	`, id))
}

func scanClassroom(row *sql.Row) (*Classroom, error) {
	var room Classroom
	err := row.Scan(&room.ID, &room.Name, &room.Capacity, &room.Type,
		&room.Status, &room.ActiveSessionID, &room.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan classroom: %w", err)
	}
	return &room, nil
}

// SetOccupied marks the room occupied by the given session.
func (r *Repository) SetOccupied(ctx context.Context, tx *sql.Tx, roomID, sessionID int64) error {
	if _, err := tx.ExecContext(ctx, `
		UPDATE classrooms SET status = $2, active_session_id = $3 WHERE id = $1
	`, roomID, RoomOccupied, sessionID); err != nil {
		return fmt.Errorf("set occupied: %w", err)
	}
	return nil
}

// SetEmpty clears the room.
func (r *Repository) SetEmpty(ctx context.Context, tx *sql.Tx, roomID int64) error {
	if _, err := tx.ExecContext(ctx, `
		UPDATE classrooms SET status = $2, active_session_id = NULL WHERE id = $1
	`, roomID, RoomEmpty); err != nil {
		return fmt.Errorf("set empty: %w", err)
	}
	return nil
}

// ---------- sessions ----------

const sessionColumns = `id, classroom_id, class_id, professor_id, starts_at, ends_at, status, created_at`

// InsertSession writes a new session.
func (r *Repository) InsertSession(ctx context.Context, tx *sql.Tx, s *Session) error {
	row := tx.QueryRowContext(ctx, `
		INSERT INTO classroom_sessions (classroom_id, class_id, professor_id, starts_at, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`, s.ClassroomID, s.ClassID, s.ProfessorID, s.StartsAt, s.Status)
	if err := row.Scan(&s.ID, &s.CreatedAt); err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

// OngoingByClassroom returns the room's live session, nil when there is none.
func (r *Repository) OngoingByClassroom(ctx context.Context, q querier, classroomID int64) (*Session, error) {
	return scanSession(q.QueryRowContext(ctx, `
		SELECT `+sessionColumns+` FROM classroom_sessions
		WHERE classroom_id = $1 AND status = $2
	`, classroomID, SessionOngoing))
}

// OngoingByClassroomForUpdate locks the room's live session.
func (r *Repository) OngoingByClassroomForUpdate(ctx context.Context, tx *sql.Tx, classroomID int64) (*Session, error) {
	return scanSession(tx.QueryRowContext(ctx, `
		SELECT `+sessionColumns+` FROM classroom_sessions
		WHERE classroom_id = $1 AND status = $2
		FOR UPDATE
	`, classroomID, SessionOngoing))
}

func scanSession(row *sql.Row) (*Session, error) {
	var s Session
	err := row.Scan(&s.ID, &s.ClassroomID, &s.ClassID, &s.ProfessorID,
		&s.StartsAt, &s.EndsAt, &s.Status, &s.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan session: %w", err)
	}
	return &s, nil
}

// FinishSession closes a session.
func (r *Repository) FinishSession(ctx context.Context, tx *sql.Tx, id int64, at time.Time) error {
	if _, err := tx.ExecContext(ctx, `
		UPDATE classroom_sessions SET status = $2, ends_at = $3 WHERE id = $1
	`, id, SessionFinished, at); err != nil {
		return fmt.Errorf("finish session: %w", err)
	}
	return nil
}

// SessionDetail loads a session with its classroom, class (and course) and
// professor for display.
func (r *Repository) SessionDetail(ctx context.Context, id int64) (*Session, error) {
	var s Session
	var room Classroom
	var cc academics.CourseClass
	var course academics.Course
	var prof academics.Professor
	err := r.db.QueryRowContext(ctx, `
		SELECT s.id, s.classroom_id, s.class_id, s.professor_id, s.starts_at, s.ends_at, s.status, s.created_at,
		       r.id, r.name, r.capacity, r.type, r.status, r.active_session_id, r.created_at,
		       cc.id, cc.course_id, cc.semester, cc.academic_year, cc.iteration, cc.status, cc.pin, cc.created_at,
		       c.id, c.name, c.code, c.description, c.created_at,
		       p.id, p.user_id, p.name, p.code, p.created_at
		FROM classroom_sessions s
		JOIN classrooms r ON r.id = s.classroom_id
		JOIN classes cc ON cc.id = s.class_id
		JOIN courses c ON c.id = cc.course_id
		JOIN professors p ON p.id = s.professor_id
		WHERE s.id = $1
	`, id).Scan(
		&s.ID, &s.ClassroomID, &s.ClassID, &s.ProfessorID, &s.StartsAt, &s.EndsAt, &s.Status, &s.CreatedAt,
		&room.ID, &room.Name, &room.Capacity, &room.Type, &room.Status, &room.ActiveSessionID, &room.CreatedAt,
		&cc.ID, &cc.CourseID, &cc.Semester, &cc.AcademicYear, &cc.Iteration, &cc.Status, &cc.PIN, &cc.CreatedAt,
		&course.ID, &course.Name, &course.Code, &course.Description, &course.CreatedAt,
		&prof.ID, &prof.UserID, &prof.Name, &prof.Code, &prof.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("session detail: %w", err)
	}
	cc.Course = &course
	s.Classroom = &room
	s.Class = &cc
	s.Professor = &prof
	return &s, nil
}

// ---------- attendance ----------

// HasAttendance reports whether the student already checked in to the session.
func (r *Repository) HasAttendance(ctx context.Context, q querier, sessionID, studentID int64) (bool, error) {
	var id int64
	err := q.QueryRowContext(ctx, `
		SELECT id FROM classroom_session_attendances
		WHERE session_id = $1 AND student_id = $2
	`, sessionID, studentID).Scan(&id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("has attendance: %w", err)
	}
	return true, nil
}

// InsertAttendance writes a check-in record. The unique (session, student)
// constraint backs up the existence check; callers inspect the error for a
// unique violation.
func (r *Repository) InsertAttendance(ctx context.Context, tx *sql.Tx, a *Attendance) error {
	row := tx.QueryRowContext(ctx, `
		INSERT INTO classroom_session_attendances (session_id, student_id, checked_in_at, status)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`, a.SessionID, a.StudentID, a.CheckedInAt, a.Status)
	if err := row.Scan(&a.ID); err != nil {
		return fmt.Errorf("insert attendance: %w", err)
	}
	return nil
}

// Roster lists every student enrolled in the session's class with their
// check-in state.
func (r *Repository) Roster(ctx context.Context, sessionID, classID int64) ([]RosterEntry, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT s.id, s.name, s.code, a.checked_in_at, a.status
		FROM enrollments e
		JOIN students s ON s.id = e.student_id
		LEFT JOIN classroom_session_attendances a
			ON a.session_id = $1 AND a.student_id = s.id
		WHERE e.class_id = $2
		ORDER BY s.code
	`, sessionID, classID)
	if err != nil {
		return nil, fmt.Errorf("roster: %w", err)
	}
	defer rows.Close()

	var roster []RosterEntry
	for rows.Next() {
		var entry RosterEntry
		if err := rows.Scan(&entry.StudentID, &entry.Name, &entry.Code,
			&entry.CheckedInAt, &entry.Status); err != nil {
			return nil, fmt.Errorf("scan roster entry: %w", err)
		}
		entry.CheckedIn = entry.CheckedInAt != nil
		roster = append(roster, entry)
	}
	return roster, rows.Err()
}
