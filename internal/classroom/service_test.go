package classroom

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"campus/internal/academics"
	"campus/internal/domain"
	"campus/internal/store/storetest"
)

// fakeEngineStore keeps rooms, sessions and attendance in memory. The tx
// arguments are ignored; the fixture's sql.DB only produces no-op
// transactions.
type fakeEngineStore struct {
	rooms      map[int64]*Classroom
	sessions   map[int64]*Session
	attendance []Attendance
	nextID     int64

	// occupiedAtLock makes the room flip to occupied between the fast-path
	// read and the locked re-read, simulating a concurrent start that won.
	occupiedAtLock map[int64]bool
	attendanceErr  error
}

func (f *fakeEngineStore) ListClassrooms(context.Context) ([]Classroom, error) {
	var out []Classroom
	for _, r := range f.rooms {
		out = append(out, *r)
	}
	return out, nil
}

func (f *fakeEngineStore) GetClassroom(_ context.Context, _ querier, id int64) (*Classroom, error) {
	return f.rooms[id], nil
}

func (f *fakeEngineStore) ClassroomForUpdate(_ context.Context, _ *sql.Tx, id int64) (*Classroom, error) {
	room := f.rooms[id]
	if room != nil && f.occupiedAtLock[id] {
		room.Status = RoomOccupied
	}
	return room, nil
}

func (f *fakeEngineStore) SetOccupied(_ context.Context, _ *sql.Tx, roomID, sessionID int64) error {
	f.rooms[roomID].Status = RoomOccupied
	f.rooms[roomID].ActiveSessionID = &sessionID
	return nil
}

func (f *fakeEngineStore) SetEmpty(_ context.Context, _ *sql.Tx, roomID int64) error {
	f.rooms[roomID].Status = RoomEmpty
	f.rooms[roomID].ActiveSessionID = nil
	return nil
}

func (f *fakeEngineStore) InsertSession(_ context.Context, _ *sql.Tx, s *Session) error {
	f.nextID++
	s.ID = f.nextID
	stored := *s
	f.sessions[s.ID] = &stored
	return nil
}

func (f *fakeEngineStore) ongoing(classroomID int64) *Session {
	for _, s := range f.sessions {
		if s.ClassroomID == classroomID && s.Status == SessionOngoing {
			return s
		}
	}
	return nil
}

func (f *fakeEngineStore) OngoingByClassroom(_ context.Context, _ querier, classroomID int64) (*Session, error) {
	return f.ongoing(classroomID), nil
}

func (f *fakeEngineStore) OngoingByClassroomForUpdate(_ context.Context, _ *sql.Tx, classroomID int64) (*Session, error) {
	return f.ongoing(classroomID), nil
}

func (f *fakeEngineStore) FinishSession(_ context.Context, _ *sql.Tx, id int64, at time.Time) error {
	s := f.sessions[id]
	s.Status = SessionFinished
	s.EndsAt = &at
	return nil
}

func (f *fakeEngineStore) SessionDetail(_ context.Context, id int64) (*Session, error) {
	return f.sessions[id], nil
}

func (f *fakeEngineStore) HasAttendance(_ context.Context, _ querier, sessionID, studentID int64) (bool, error) {
	for _, a := range f.attendance {
		if a.SessionID == sessionID && a.StudentID == studentID {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeEngineStore) InsertAttendance(_ context.Context, _ *sql.Tx, a *Attendance) error {
	if f.attendanceErr != nil {
		return f.attendanceErr
	}
	f.nextID++
	a.ID = f.nextID
	f.attendance = append(f.attendance, *a)
	return nil
}

func (f *fakeEngineStore) Roster(context.Context, int64, int64) ([]RosterEntry, error) {
	return nil, nil
}

type fakeClassDirectory struct {
	classes    map[string]*academics.CourseClass
	professors map[string]*academics.Professor
	students   map[string]*academics.Student
	teaching   map[[2]int64]bool
	enrolled   map[[2]int64]bool

	classesStarted []int64
	taughtBumps    int
	attendedBumps  int
}

func (f *fakeClassDirectory) ClassByPIN(_ context.Context, _ academics.Querier, pin string) (*academics.CourseClass, error) {
	return f.classes[pin], nil
}

func (f *fakeClassDirectory) ProfessorByCode(_ context.Context, _ academics.Querier, code string) (*academics.Professor, error) {
	return f.professors[code], nil
}

func (f *fakeClassDirectory) StudentByCode(_ context.Context, _ academics.Querier, code string) (*academics.Student, error) {
	return f.students[code], nil
}

func (f *fakeClassDirectory) TeachingAssignment(_ context.Context, _ academics.Querier, professorID, classID int64) (bool, error) {
	return f.teaching[[2]int64{professorID, classID}], nil
}

func (f *fakeClassDirectory) IsEnrolled(_ context.Context, _ academics.Querier, studentID, classID int64) (bool, error) {
	return f.enrolled[[2]int64{studentID, classID}], nil
}

func (f *fakeClassDirectory) MarkClassStarted(_ context.Context, _ academics.Querier, classID int64) error {
	f.classesStarted = append(f.classesStarted, classID)
	return nil
}

func (f *fakeClassDirectory) IncrementTaughtSessions(_ context.Context, _ academics.Querier, _, _ int64) error {
	f.taughtBumps++
	return nil
}

func (f *fakeClassDirectory) IncrementAttendedSessions(_ context.Context, _ academics.Querier, _, _ int64) error {
	f.attendedBumps++
	return nil
}

func (f *fakeClassDirectory) DB() academics.Querier { return nil }

var engineFixtureStart = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

func newEngineFixture() (*Engine, *fakeEngineStore, *fakeClassDirectory) {
	store := &fakeEngineStore{
		rooms:          map[int64]*Classroom{1: {ID: 1, Name: "A-101", Capacity: 40, Status: RoomEmpty}},
		sessions:       map[int64]*Session{},
		occupiedAtLock: map[int64]bool{},
	}
	dir := &fakeClassDirectory{
		classes:    map[string]*academics.CourseClass{"483921": {ID: 3, CourseID: 2, Status: academics.ClassPlanned, PIN: "483921"}},
		professors: map[string]*academics.Professor{"P100": {ID: 5, Name: "Grace", Code: "P100"}},
		students:   map[string]*academics.Student{"S1001": {ID: 7, Name: "Ada", Code: "S1001"}},
		teaching:   map[[2]int64]bool{{5, 3}: true},
		enrolled:   map[[2]int64]bool{{7, 3}: true},
	}
	engine := &Engine{
		db:        storetest.NewDB(),
		repo:      store,
		directory: dir,
		lateAfter: 10 * time.Minute,
		logger:    zap.NewNop(),
		now:       func() time.Time { return engineFixtureStart },
	}
	return engine, store, dir
}

func TestClassifyCheckInBoundary(t *testing.T) {
	start := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	lateAfter := 10 * time.Minute

	cases := []struct {
		name string
		at   time.Time
		want string
	}{
		{"at start", start, AttendancePresent},
		{"one second before cutoff", start.Add(lateAfter - time.Second), AttendancePresent},
		{"exactly at cutoff", start.Add(lateAfter), AttendancePresent},
		{"one second past cutoff", start.Add(lateAfter + time.Second), AttendanceLate},
		{"an hour in", start.Add(time.Hour), AttendanceLate},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, classifyCheckIn(&start, tc.at, lateAfter))
		})
	}
}

func TestClassifyCheckInWithoutStartTime(t *testing.T) {
	at := time.Date(2026, 3, 2, 14, 0, 0, 0, time.UTC)
	assert.Equal(t, AttendancePresent, classifyCheckIn(nil, at, 10*time.Minute))
}

func TestClassStartable(t *testing.T) {
	assert.NoError(t, classStartable(academics.ClassPlanned))
	assert.NoError(t, classStartable(academics.ClassActive))

	for _, status := range []string{academics.ClassFinished, academics.ClassCancelled} {
		err := classStartable(status)
		assert.True(t, domain.IsConflict(err), "status %q must conflict", status)
		assert.EqualError(t, err, "class cannot be started")
	}
}

func TestIsUniqueViolation(t *testing.T) {
	assert.True(t, isUniqueViolation(&pgconn.PgError{Code: "23505"}))
	assert.False(t, isUniqueViolation(&pgconn.PgError{Code: "23503"}))
	assert.False(t, isUniqueViolation(assert.AnError))
	assert.False(t, isUniqueViolation(nil))
}

func TestStartSessionOpensRoomAndBumpsCounters(t *testing.T) {
	engine, store, dir := newEngineFixture()

	session, err := engine.StartSession(context.Background(), 1, "483921", "P100")

	require.NoError(t, err)
	assert.Equal(t, SessionOngoing, session.Status)
	require.NotNil(t, session.StartsAt)
	assert.Equal(t, engineFixtureStart, *session.StartsAt)
	assert.Equal(t, RoomOccupied, store.rooms[1].Status)
	require.NotNil(t, store.rooms[1].ActiveSessionID)
	assert.Equal(t, session.ID, *store.rooms[1].ActiveSessionID)
	assert.Equal(t, []int64{3}, dir.classesStarted)
	assert.Equal(t, 1, dir.taughtBumps)
}

func TestStartSessionOccupiedRoom(t *testing.T) {
	engine, store, _ := newEngineFixture()
	store.rooms[1].Status = RoomOccupied

	_, err := engine.StartSession(context.Background(), 1, "483921", "P100")

	assert.True(t, domain.IsConflict(err))
	assert.EqualError(t, err, "classroom is not available")
	assert.Empty(t, store.sessions)
}

// the room looks empty before the lock but a concurrent start takes it first;
// the locked re-read must catch that and no session may be created
func TestStartSessionLosesRaceUnderLock(t *testing.T) {
	engine, store, dir := newEngineFixture()
	store.occupiedAtLock[1] = true

	_, err := engine.StartSession(context.Background(), 1, "483921", "P100")

	assert.True(t, domain.IsConflict(err))
	assert.EqualError(t, err, "classroom is not available")
	assert.Empty(t, store.sessions)
	assert.Empty(t, dir.classesStarted)
}

func TestStartSessionRejectsBadCredentials(t *testing.T) {
	engine, _, dir := newEngineFixture()

	_, err := engine.StartSession(context.Background(), 1, "000000", "P100")
	assert.True(t, domain.IsValidation(err))
	assert.EqualError(t, err, "invalid class PIN")

	_, err = engine.StartSession(context.Background(), 1, "483921", "P999")
	assert.True(t, domain.IsValidation(err))
	assert.EqualError(t, err, "invalid professor code")

	dir.teaching = map[[2]int64]bool{}
	_, err = engine.StartSession(context.Background(), 1, "483921", "P100")
	assert.True(t, domain.IsValidation(err))
	assert.EqualError(t, err, "professor not authorized to teach this class")
}

func seedOngoingSession(store *fakeEngineStore) *Session {
	start := engineFixtureStart
	session := &Session{
		ID:          1,
		ClassroomID: 1,
		ClassID:     3,
		ProfessorID: 5,
		StartsAt:    &start,
		Status:      SessionOngoing,
	}
	store.sessions[1] = session
	store.nextID = 1
	return session
}

func TestCheckInClassifiesLateArrival(t *testing.T) {
	engine, store, dir := newEngineFixture()
	seedOngoingSession(store)
	engine.now = func() time.Time { return engineFixtureStart.Add(11 * time.Minute) }

	attendance, err := engine.CheckIn(context.Background(), 1, "S1001")

	require.NoError(t, err)
	assert.Equal(t, AttendanceLate, attendance.Status)
	assert.Equal(t, int64(7), attendance.StudentID)
	require.Len(t, store.attendance, 1)
	assert.Equal(t, 1, dir.attendedBumps)
}

func TestCheckInDuplicate(t *testing.T) {
	engine, store, dir := newEngineFixture()
	seedOngoingSession(store)
	store.attendance = []Attendance{{SessionID: 1, StudentID: 7, Status: AttendancePresent}}

	_, err := engine.CheckIn(context.Background(), 1, "S1001")

	assert.True(t, domain.IsValidation(err))
	assert.EqualError(t, err, "student already checked in")
	assert.Len(t, store.attendance, 1)
	assert.Zero(t, dir.attendedBumps)
}

// two check-ins race past the existence check; the loser hits the unique
// constraint and must surface the same rejection
func TestCheckInDuplicateRace(t *testing.T) {
	engine, store, dir := newEngineFixture()
	seedOngoingSession(store)
	store.attendanceErr = &pgconn.PgError{Code: "23505"}

	_, err := engine.CheckIn(context.Background(), 1, "S1001")

	assert.True(t, domain.IsValidation(err))
	assert.EqualError(t, err, "student already checked in")
	assert.Zero(t, dir.attendedBumps)
}

func TestCheckInWithoutOngoingSession(t *testing.T) {
	engine, _, _ := newEngineFixture()

	_, err := engine.CheckIn(context.Background(), 1, "S1001")

	assert.True(t, domain.IsConflict(err))
	assert.EqualError(t, err, "session is not active")
}

func TestCheckInRejectsUnenrolledStudent(t *testing.T) {
	engine, store, dir := newEngineFixture()
	seedOngoingSession(store)
	dir.enrolled = map[[2]int64]bool{}

	_, err := engine.CheckIn(context.Background(), 1, "S1001")

	assert.True(t, domain.IsValidation(err))
	assert.EqualError(t, err, "student is not enrolled in this class")
	assert.Empty(t, store.attendance)
}

func TestEndSessionFreesRoom(t *testing.T) {
	engine, store, _ := newEngineFixture()
	session := seedOngoingSession(store)
	store.rooms[1].Status = RoomOccupied
	store.rooms[1].ActiveSessionID = &session.ID
	engine.now = func() time.Time { return engineFixtureStart.Add(90 * time.Minute) }

	ended, err := engine.EndSession(context.Background(), 1)

	require.NoError(t, err)
	assert.Equal(t, SessionFinished, ended.Status)
	require.NotNil(t, ended.EndsAt)
	assert.Equal(t, engineFixtureStart.Add(90*time.Minute), *ended.EndsAt)
	assert.Equal(t, RoomEmpty, store.rooms[1].Status)
	assert.Nil(t, store.rooms[1].ActiveSessionID)
}

func TestEndSessionWithoutOngoingSession(t *testing.T) {
	engine, _, _ := newEngineFixture()

	_, err := engine.EndSession(context.Background(), 1)

	assert.True(t, domain.IsNotFound(err))
	assert.EqualError(t, err, "no ongoing session to end")
}

func TestSessionLength(t *testing.T) {
	start := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	end := start.Add(90 * time.Minute)

	assert.Equal(t, 90*time.Minute, sessionLength(&start, end))
	assert.Zero(t, sessionLength(nil, end))
}
