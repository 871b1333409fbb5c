package library

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

type stubLedger struct {
	borrowed  *Borrowing
	returned  *Borrowing
	copy      *BookCopy
	err       error
	histories []Borrowing
}

func (s *stubLedger) Borrow(ctx context.Context, studentID, copyID int64) (*Borrowing, error) {
	return s.borrowed, s.err
}

func (s *stubLedger) Return(ctx context.Context, studentID, copyID int64) (*Borrowing, error) {
	return s.returned, s.err
}

func (s *stubLedger) BorrowByCodeAndISBN(ctx context.Context, code, isbn string) (*Borrowing, error) {
	return s.borrowed, s.err
}

func (s *stubLedger) StudentBorrowings(ctx context.Context, studentID int64, current bool) ([]Borrowing, error) {
	return s.histories, s.err
}

func (s *stubLedger) AllActive(ctx context.Context) ([]Borrowing, error) {
	return s.histories, s.err
}

func (s *stubLedger) SetCopyCondition(ctx context.Context, copyID int64, status string) (*BookCopy, error) {
	return s.copy, s.err
}

func newTestRouter(ledger Ledger, events queue.Queue) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	h := NewHandler(nil, ledger, events, zap.NewNop())
	h.Register(r.Group("/v1/books"), r.Group("/v1/library"))
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

func TestBorrowSuccessPublishesEvent(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	ledger := &stubLedger{borrowed: &Borrowing{
		ID: 9, BookCopyID: 1, StudentID: 7,
		BorrowedAt: now, DueAt: now.AddDate(0, 0, 30), Status: BorrowingActive,
	}}
	events := queue.NewInMemory(1)
	r := newTestRouter(ledger, events)

	w := postJSON(t, r, "/v1/library/borrow", gin.H{"student_id": 7, "book_copy_id": 1})

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Contains(t, w.Body.String(), "Book successfully borrowed.")

	out, err := events.Consume(context.Background())
	require.NoError(t, err)
	evt := <-out
	assert.Equal(t, queue.EventBookBorrowed, evt.Type)
	assert.Equal(t, int64(9), evt.BorrowingID)
}

func TestBorrowConflictMapsTo409(t *testing.T) {
	r := newTestRouter(&stubLedger{err: domain.Conflict("copy is not available")}, nil)

	w := postJSON(t, r, "/v1/library/borrow", gin.H{"student_id": 9, "book_copy_id": 1})

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.JSONEq(t, `{"error":"copy is not available"}`, w.Body.String())
}

func TestReturnWithoutActiveBorrowing(t *testing.T) {
	r := newTestRouter(&stubLedger{err: domain.Conflict("no active borrowing found")}, nil)

	w := postJSON(t, r, "/v1/library/return", gin.H{"student_id": 7, "book_copy_id": 1})

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "no active borrowing found")
}

func TestTerminalBorrowUnknownStudent(t *testing.T) {
	r := newTestRouter(&stubLedger{err: domain.NotFound("student not found")}, nil)

	w := postJSON(t, r, "/v1/library/terminal/borrow", gin.H{"student_code": "S999", "isbn": "978-0"})

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestBorrowRejectsMalformedBody(t *testing.T) {
	r := newTestRouter(&stubLedger{}, nil)

	w := postJSON(t, r, "/v1/library/borrow", gin.H{"student_id": 7})

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestStudentBorrowingsValidatesType(t *testing.T) {
	r := newTestRouter(&stubLedger{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/v1/library/borrowings?student_id=7&type=overdue", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, w.Body.String(), "type")
}

func TestSetCopyConditionBorrowedCopy(t *testing.T) {
	r := newTestRouter(&stubLedger{err: domain.Conflict("copy is currently borrowed")}, nil)

	payload, err := json.Marshal(gin.H{"status": "damaged"})
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPut, "/v1/library/copies/3/status", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestStudentBorrowingsRequiresStudentID(t *testing.T) {
	r := newTestRouter(&stubLedger{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/v1/library/borrowings", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}
