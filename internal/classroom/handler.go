package classroom

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"campus/internal/domain"
	"campus/internal/httpapi"
	"campus/internal/queue"
)

// SessionEngine is the surface the handler needs; *Engine satisfies it.
type SessionEngine interface {
	StartSession(ctx context.Context, classroomID int64, classPIN, professorCode string) (*Session, error)
	EndSession(ctx context.Context, classroomID int64) (*Session, error)
	CheckIn(ctx context.Context, classroomID int64, studentCode string) (*Attendance, error)
	CurrentSession(ctx context.Context, classroomID int64) (*SessionWithRoster, error)
	Classrooms(ctx context.Context) ([]Classroom, error)
}

// Handler exposes the classroom terminal endpoints.
type Handler struct {
	engine SessionEngine
	events queue.Queue
	logger *zap.Logger
}

// NewHandler creates the handler.
func NewHandler(engine SessionEngine, events queue.Queue, logger *zap.Logger) *Handler {
	return &Handler{engine: engine, events: events, logger: logger}
}

// Register mounts the classroom routes.
func (h *Handler) Register(g *gin.RouterGroup) {
	g.GET("", h.ListClassrooms)
	g.GET("/:id/session", h.CurrentSession)
	g.POST("/:id/session/start", h.StartSession)
	g.POST("/:id/session/end", h.EndSession)
	g.POST("/:id/session/checkin", h.CheckIn)
}

func (h *Handler) publish(c *gin.Context, evt queue.Event) {
	if h.events == nil {
		return
	}
	if err := h.events.Publish(c.Request.Context(), evt); err != nil {
		h.logger.Warn("event publish failed", zap.String("type", evt.Type), zap.Error(err))
	}
}

func (h *Handler) ListClassrooms(c *gin.Context) {
	rooms, err := h.engine.Classrooms(c.Request.Context())
	if err != nil {
		httpapi.Error(c, err)
		return
	}
	httpapi.Data(c, http.StatusOK, rooms)
}

type startSessionRequest struct {
	ClassPIN      string `json:"class_pin" binding:"required"`
	ProfessorCode string `json:"professor_code" binding:"required"`
}

func (h *Handler) StartSession(c *gin.Context) {
	id, ok := classroomID(c)
	if !ok {
		return
	}
	var req startSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpapi.BadRequest(c, err)
		return
	}
	session, err := h.engine.StartSession(c.Request.Context(), id, req.ClassPIN, req.ProfessorCode)
	if err != nil {
		httpapi.Error(c, err)
		return
	}
	evt := queue.Event{
		Type:        queue.EventSessionStarted,
		ClassroomID: session.ClassroomID,
		SessionID:   session.ID,
	}
	if session.StartsAt != nil {
		evt.At = *session.StartsAt
	}
	h.publish(c, evt)
	httpapi.Message(c, http.StatusCreated, "Session started.", session)
}

func (h *Handler) EndSession(c *gin.Context) {
	id, ok := classroomID(c)
	if !ok {
		return
	}
	session, err := h.engine.EndSession(c.Request.Context(), id)
	if err != nil {
		httpapi.Error(c, err)
		return
	}
	evt := queue.Event{
		Type:        queue.EventSessionEnded,
		ClassroomID: session.ClassroomID,
		SessionID:   session.ID,
	}
	if session.EndsAt != nil {
		evt.At = *session.EndsAt
	}
	h.publish(c, evt)
	httpapi.Message(c, http.StatusOK, "Session ended.", session)
}

type checkInRequest struct {
	StudentCode string `json:"student_code" binding:"required"`
}

func (h *Handler) CheckIn(c *gin.Context) {
	id, ok := classroomID(c)
	if !ok {
		return
	}
	var req checkInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpapi.BadRequest(c, err)
		return
	}
	attendance, err := h.engine.CheckIn(c.Request.Context(), id, req.StudentCode)
	if err != nil {
		httpapi.Error(c, err)
		return
	}
	h.publish(c, queue.Event{
		Type:        queue.EventCheckedIn,
		At:          attendance.CheckedInAt,
		ClassroomID: id,
		SessionID:   attendance.SessionID,
		StudentID:   attendance.StudentID,
		Detail:      attendance.Status,
	})
	httpapi.Message(c, http.StatusCreated, "Checked in.", attendance)
}

func (h *Handler) CurrentSession(c *gin.Context) {
	id, ok := classroomID(c)
	if !ok {
		return
	}
	view, err := h.engine.CurrentSession(c.Request.Context(), id)
	if err != nil {
		httpapi.Error(c, err)
		return
	}
	httpapi.Data(c, http.StatusOK, view)
}

func classroomID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		httpapi.Error(c, domain.Validation("id", "invalid id"))
		return 0, false
	}
	return id, true
}
