package classroom

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"

	"campus/internal/academics"
	"campus/internal/domain"
	"campus/internal/metrics"
)

// engineStore is the persistence surface the session engine drives;
// *Repository satisfies it.
type engineStore interface {
	ListClassrooms(ctx context.Context) ([]Classroom, error)
	GetClassroom(ctx context.Context, q querier, id int64) (*Classroom, error)
	ClassroomForUpdate(ctx context.Context, tx *sql.Tx, id int64) (*Classroom, error)
	SetOccupied(ctx context.Context, tx *sql.Tx, roomID, sessionID int64) error
	SetEmpty(ctx context.Context, tx *sql.Tx, roomID int64) error
	InsertSession(ctx context.Context, tx *sql.Tx, s *Session) error
	OngoingByClassroom(ctx context.Context, q querier, classroomID int64) (*Session, error)
	OngoingByClassroomForUpdate(ctx context.Context, tx *sql.Tx, classroomID int64) (*Session, error)
	FinishSession(ctx context.Context, tx *sql.Tx, id int64, at time.Time) error
	SessionDetail(ctx context.Context, id int64) (*Session, error)
	HasAttendance(ctx context.Context, q querier, sessionID, studentID int64) (bool, error)
	InsertAttendance(ctx context.Context, tx *sql.Tx, a *Attendance) error
	Roster(ctx context.Context, sessionID, classID int64) ([]RosterEntry, error)
}

// classDirectory resolves PINs, codes and memberships; *academics.Repository
// satisfies it.
type classDirectory interface {
	ClassByPIN(ctx context.Context, q academics.Querier, pin string) (*academics.CourseClass, error)
	ProfessorByCode(ctx context.Context, q academics.Querier, code string) (*academics.Professor, error)
	StudentByCode(ctx context.Context, q academics.Querier, code string) (*academics.Student, error)
	TeachingAssignment(ctx context.Context, q academics.Querier, professorID, classID int64) (bool, error)
	IsEnrolled(ctx context.Context, q academics.Querier, studentID, classID int64) (bool, error)
	MarkClassStarted(ctx context.Context, q academics.Querier, classID int64) error
	IncrementTaughtSessions(ctx context.Context, q academics.Querier, professorID, classID int64) error
	IncrementAttendedSessions(ctx context.Context, q academics.Querier, studentID, classID int64) error
	DB() academics.Querier
}

// Engine runs classroom sessions. Session start serializes on the classroom
// row lock, check-ins on the session row lock; the unique attendance
// constraint backs the duplicate check.
type Engine struct {
	db        *sql.DB
	repo      engineStore
	directory classDirectory
	lateAfter time.Duration
	logger    *zap.Logger
	now       func() time.Time
}

// NewEngine creates the engine.
func NewEngine(db *sql.DB, repo *Repository, directory *academics.Repository, lateAfter time.Duration, logger *zap.Logger) *Engine {
	if lateAfter <= 0 {
		lateAfter = 10 * time.Minute
	}
	return &Engine{
		db:        db,
		repo:      repo,
		directory: directory,
		lateAfter: lateAfter,
		logger:    logger,
		now:       time.Now,
	}
}

// classStartable rejects classes that cannot hold sessions anymore.
func classStartable(status string) error {
	if status != academics.ClassPlanned && status != academics.ClassActive {
		return domain.Conflict("class cannot be started")
	}
	return nil
}

// classifyCheckIn grades a check-in against the session start. Arrivals up to
// and including start+lateAfter are present; strictly after is late. A session
// without a start time cannot penalize anyone.
func classifyCheckIn(startsAt *time.Time, at time.Time, lateAfter time.Duration) string {
	if startsAt == nil {
		return AttendancePresent
	}
	if at.After(startsAt.Add(lateAfter)) {
		return AttendanceLate
	}
	return AttendancePresent
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// StartSession opens a session in the classroom, authenticated by class PIN
// and professor code. The room must be empty; exactly one of two concurrent
// starts for the same room can succeed.
func (e *Engine) StartSession(ctx context.Context, classroomID int64, classPIN, professorCode string) (*Session, error) {
	// Fast-path room check and credential checks run outside the
	// transaction; the room state is re-read under the row lock below.
	room, err := e.repo.GetClassroom(ctx, e.db, classroomID)
	if err != nil {
		return nil, err
	}
	if room == nil {
		return nil, domain.NotFound("classroom not found")
	}
	if room.Status != RoomEmpty {
		return nil, domain.Conflict("classroom is not available")
	}

	class, err := e.directory.ClassByPIN(ctx, e.directory.DB(), classPIN)
	if err != nil {
		return nil, err
	}
	if class == nil {
		return nil, domain.Validation("class_pin", "invalid class PIN")
	}
	if err := classStartable(class.Status); err != nil {
		return nil, err
	}

	professor, err := e.directory.ProfessorByCode(ctx, e.directory.DB(), professorCode)
	if err != nil {
		return nil, err
	}
	if professor == nil {
		return nil, domain.Validation("professor_code", "invalid professor code")
	}
	assigned, err := e.directory.TeachingAssignment(ctx, e.directory.DB(), professor.ID, class.ID)
	if err != nil {
		return nil, err
	}
	if !assigned {
		return nil, domain.Validation("professor_code", "professor not authorized to teach this class")
	}

	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin start session: %w", err)
	}
	defer tx.Rollback()

	room, err = e.repo.ClassroomForUpdate(ctx, tx, classroomID)
	if err != nil {
		return nil, err
	}
	if room == nil {
		return nil, domain.NotFound("classroom not found")
	}
	if room.Status != RoomEmpty {
		return nil, domain.Conflict("classroom is not available")
	}

	startsAt := e.now()
	session := &Session{
		ClassroomID: room.ID,
		ClassID:     class.ID,
		ProfessorID: professor.ID,
		StartsAt:    &startsAt,
		Status:      SessionOngoing,
	}
	if err := e.repo.InsertSession(ctx, tx, session); err != nil {
		return nil, err
	}
	if err := e.repo.SetOccupied(ctx, tx, room.ID, session.ID); err != nil {
		return nil, err
	}
	if err := e.directory.MarkClassStarted(ctx, tx, class.ID); err != nil {
		return nil, err
	}
	if err := e.directory.IncrementTaughtSessions(ctx, tx, professor.ID, class.ID); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit start session: %w", err)
	}

	metrics.SessionsStartedTotal.Inc()
	e.logger.Info("session started",
		zap.Int64("session_id", session.ID),
		zap.Int64("classroom_id", room.ID),
		zap.Int64("class_id", class.ID),
		zap.Int64("professor_id", professor.ID))

	return e.repo.SessionDetail(ctx, session.ID)
}

// EndSession finishes the classroom's ongoing session and frees the room.
func (e *Engine) EndSession(ctx context.Context, classroomID int64) (*Session, error) {
	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin end session: %w", err)
	}
	defer tx.Rollback()

	room, err := e.repo.ClassroomForUpdate(ctx, tx, classroomID)
	if err != nil {
		return nil, err
	}
	if room == nil {
		return nil, domain.NotFound("classroom not found")
	}

	session, err := e.repo.OngoingByClassroomForUpdate(ctx, tx, classroomID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, domain.NotFound("no ongoing session to end")
	}

	endedAt := e.now()
	if err := e.repo.FinishSession(ctx, tx, session.ID, endedAt); err != nil {
		return nil, err
	}
	if err := e.repo.SetEmpty(ctx, tx, room.ID); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit end session: %w", err)
	}

	metrics.SessionsEndedTotal.Inc()
	e.logger.Info("session ended",
		zap.Int64("session_id", session.ID),
		zap.Int64("classroom_id", room.ID),
		zap.Duration("length", sessionLength(session.StartsAt, endedAt)))

	return e.repo.SessionDetail(ctx, session.ID)
}

func sessionLength(startsAt *time.Time, endedAt time.Time) time.Duration {
	if startsAt == nil {
		return 0
	}
	return endedAt.Sub(*startsAt)
}

// CheckIn records the student's attendance for the classroom's ongoing
// session. Duplicate check-ins are rejected; a second submission races the
// first onto the unique constraint and loses there.
func (e *Engine) CheckIn(ctx context.Context, classroomID int64, studentCode string) (*Attendance, error) {
	student, err := e.directory.StudentByCode(ctx, e.directory.DB(), studentCode)
	if err != nil {
		return nil, err
	}
	if student == nil {
		return nil, domain.NotFound("student not found")
	}

	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin check-in: %w", err)
	}
	defer tx.Rollback()

	session, err := e.repo.OngoingByClassroomForUpdate(ctx, tx, classroomID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, domain.Conflict("session is not active")
	}

	enrolled, err := e.directory.IsEnrolled(ctx, tx, student.ID, session.ClassID)
	if err != nil {
		return nil, err
	}
	if !enrolled {
		return nil, domain.Validation("student_code", "student is not enrolled in this class")
	}

	already, err := e.repo.HasAttendance(ctx, tx, session.ID, student.ID)
	if err != nil {
		return nil, err
	}
	if already {
		return nil, domain.Validation("student_code", "student already checked in")
	}

	at := e.now()
	attendance := &Attendance{
		SessionID:   session.ID,
		StudentID:   student.ID,
		CheckedInAt: at,
		Status:      classifyCheckIn(session.StartsAt, at, e.lateAfter),
	}
	if err := e.repo.InsertAttendance(ctx, tx, attendance); err != nil {
		if isUniqueViolation(err) {
			return nil, domain.Validation("student_code", "student already checked in")
		}
		return nil, err
	}
	if err := e.directory.IncrementAttendedSessions(ctx, tx, student.ID, session.ClassID); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit check-in: %w", err)
	}

	metrics.CheckInsTotal.WithLabelValues(attendance.Status).Inc()
	e.logger.Info("student checked in",
		zap.Int64("session_id", session.ID),
		zap.Int64("student_id", student.ID),
		zap.String("status", attendance.Status))

	return attendance, nil
}

// CurrentSession returns the classroom's live session with its roster.
func (e *Engine) CurrentSession(ctx context.Context, classroomID int64) (*SessionWithRoster, error) {
	session, err := e.repo.OngoingByClassroom(ctx, e.db, classroomID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, domain.NotFound("no active session found")
	}

	detail, err := e.repo.SessionDetail(ctx, session.ID)
	if err != nil {
		return nil, err
	}
	roster, err := e.repo.Roster(ctx, session.ID, session.ClassID)
	if err != nil {
		return nil, err
	}
	return &SessionWithRoster{Session: detail, Students: roster}, nil
}

// Classrooms lists every room with its occupancy.
func (e *Engine) Classrooms(ctx context.Context) ([]Classroom, error) {
	return e.repo.ListClassrooms(ctx)
}
