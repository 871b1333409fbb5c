package classroom

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"campus/internal/domain"
	"campus/internal/queue"
)

type stubEngine struct {
	session    *Session
	attendance *Attendance
	view       *SessionWithRoster
	rooms      []Classroom
	err        error
}

func (s *stubEngine) StartSession(ctx context.Context, classroomID int64, classPIN, professorCode string) (*Session, error) {
	return s.session, s.err
}

func (s *stubEngine) EndSession(ctx context.Context, classroomID int64) (*Session, error) {
	return s.session, s.err
}

func (s *stubEngine) CheckIn(ctx context.Context, classroomID int64, studentCode string) (*Attendance, error) {
	return s.attendance, s.err
}

func (s *stubEngine) CurrentSession(ctx context.Context, classroomID int64) (*SessionWithRoster, error) {
	return s.view, s.err
}

func (s *stubEngine) Classrooms(ctx context.Context) ([]Classroom, error) {
	return s.rooms, s.err
}

func newTestRouter(engine SessionEngine, events queue.Queue) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	h := NewHandler(engine, events, zap.NewNop())
	h.Register(r.Group("/v1/classrooms"))
	return r
}

func postJSON(t *testing.T, r *gin.Engine, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestStartSessionPublishesEvent(t *testing.T) {
	startsAt := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	engine := &stubEngine{session: &Session{
		ID: 4, ClassroomID: 2, ClassID: 11, ProfessorID: 3,
		StartsAt: &startsAt, Status: SessionOngoing,
	}}
	events := queue.NewInMemory(1)
	r := newTestRouter(engine, events)

	w := postJSON(t, r, "/v1/classrooms/2/session/start",
		gin.H{"class_pin": "483921", "professor_code": "P100"})

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Contains(t, w.Body.String(), "Session started.")

	out, err := events.Consume(context.Background())
	require.NoError(t, err)
	evt := <-out
	assert.Equal(t, queue.EventSessionStarted, evt.Type)
	assert.Equal(t, int64(4), evt.SessionID)
	assert.Equal(t, int64(2), evt.ClassroomID)
}

func TestStartSessionOccupiedRoomMapsTo409(t *testing.T) {
	r := newTestRouter(&stubEngine{err: domain.Conflict("classroom is not available")}, nil)

	w := postJSON(t, r, "/v1/classrooms/2/session/start",
		gin.H{"class_pin": "483921", "professor_code": "P100"})

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.JSONEq(t, `{"error":"classroom is not available"}`, w.Body.String())
}

func TestStartSessionBadPINMapsTo422(t *testing.T) {
	r := newTestRouter(&stubEngine{err: domain.Validation("class_pin", "invalid class PIN")}, nil)

	w := postJSON(t, r, "/v1/classrooms/2/session/start",
		gin.H{"class_pin": "000000", "professor_code": "P100"})

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, w.Body.String(), "class_pin")
}

func TestStartSessionRejectsMalformedBody(t *testing.T) {
	r := newTestRouter(&stubEngine{}, nil)

	w := postJSON(t, r, "/v1/classrooms/2/session/start", gin.H{"class_pin": "483921"})

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestEndSessionWithoutOngoing(t *testing.T) {
	r := newTestRouter(&stubEngine{err: domain.NotFound("no ongoing session to end")}, nil)

	w := postJSON(t, r, "/v1/classrooms/2/session/end", gin.H{})

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCheckInReportsStatus(t *testing.T) {
	at := time.Date(2026, 3, 2, 9, 15, 0, 0, time.UTC)
	engine := &stubEngine{attendance: &Attendance{
		ID: 1, SessionID: 4, StudentID: 7, CheckedInAt: at, Status: AttendanceLate,
	}}
	events := queue.NewInMemory(1)
	r := newTestRouter(engine, events)

	w := postJSON(t, r, "/v1/classrooms/2/session/checkin", gin.H{"student_code": "S123"})

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"late"`)

	out, err := events.Consume(context.Background())
	require.NoError(t, err)
	evt := <-out
	assert.Equal(t, queue.EventCheckedIn, evt.Type)
	assert.Equal(t, "late", evt.Detail)
}

func TestCheckInDuplicateMapsTo422(t *testing.T) {
	r := newTestRouter(&stubEngine{err: domain.Validation("student_code", "student already checked in")}, nil)

	w := postJSON(t, r, "/v1/classrooms/2/session/checkin", gin.H{"student_code": "S123"})

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, w.Body.String(), "already checked in")
}

func TestCheckInInactiveSessionMapsTo409(t *testing.T) {
	r := newTestRouter(&stubEngine{err: domain.Conflict("session is not active")}, nil)

	w := postJSON(t, r, "/v1/classrooms/2/session/checkin", gin.H{"student_code": "S123"})

	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestCurrentSessionNotFound(t *testing.T) {
	r := newTestRouter(&stubEngine{err: domain.NotFound("no active session found")}, nil)

	req := httptest.NewRequest(http.MethodGet, "/v1/classrooms/2/session", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestClassroomIDValidation(t *testing.T) {
	r := newTestRouter(&stubEngine{}, nil)

	w := postJSON(t, r, "/v1/classrooms/abc/session/end", gin.H{})

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}
