// Package audit stores the append-only event trail written by the worker.
package audit

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"campus/internal/httpapi"
	"campus/internal/queue"
)

// Entry is one recorded event.
type Entry struct {
	ID          int64     `json:"id"`
	EventType   string    `json:"event_type"`
	OccurredAt  time.Time `json:"occurred_at"`
	StudentID   *int64    `json:"student_id,omitempty"`
	BookCopyID  *int64    `json:"book_copy_id,omitempty"`
	BorrowingID *int64    `json:"borrowing_id,omitempty"`
	ClassroomID *int64    `json:"classroom_id,omitempty"`
	SessionID   *int64    `json:"session_id,omitempty"`
	Detail      string    `json:"detail,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Repository persists audit entries.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Record writes the queue event as an audit row.
func (r *Repository) Record(ctx context.Context, evt queue.Event) error {
	if _, err := r.db.ExecContext(ctx, `
		INSERT INTO audit_log (event_type, occurred_at, student_id, book_copy_id, borrowing_id, classroom_id, session_id, detail)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, evt.Type, evt.At,
		nullID(evt.StudentID), nullID(evt.BookCopyID), nullID(evt.BorrowingID),
		nullID(evt.ClassroomID), nullID(evt.SessionID), evt.Detail); err != nil {
		return fmt.Errorf("record audit entry: %w", err)
	}
	return nil
}

// zero ids come from events that do not carry the field
func nullID(id int64) any {
	if id == 0 {
		return nil
	}
	return id
}

// Recent returns the newest entries, capped at limit.
func (r *Repository) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, event_type, occurred_at, student_id, book_copy_id, borrowing_id, classroom_id, session_id, COALESCE(detail, ''), created_at
		FROM audit_log
		ORDER BY id DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list audit entries: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.EventType, &e.OccurredAt,
			&e.StudentID, &e.BookCopyID, &e.BorrowingID,
			&e.ClassroomID, &e.SessionID, &e.Detail, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Handler exposes the audit trail to admins.
type Handler struct {
	repo *Repository
}

// NewHandler creates the handler.
func NewHandler(repo *Repository) *Handler {
	return &Handler{repo: repo}
}

// Register mounts the audit routes.
func (h *Handler) Register(g *gin.RouterGroup) {
	g.GET("", h.List)
}

func (h *Handler) List(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	entries, err := h.repo.Recent(c.Request.Context(), limit)
	if err != nil {
		httpapi.Error(c, err)
		return
	}
	httpapi.Data(c, http.StatusOK, entries)
}
