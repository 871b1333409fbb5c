package library

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

// Ledger is the borrowing surface the handler needs; *Service satisfies it.
type Ledger interface {
	Borrow(ctx context.Context, studentID, copyID int64) (*Borrowing, error)
	Return(ctx context.Context, studentID, copyID int64) (*Borrowing, error)
	BorrowByCodeAndISBN(ctx context.Context, studentCode, isbn string) (*Borrowing, error)
	StudentBorrowings(ctx context.Context, studentID int64, current bool) ([]Borrowing, error)
	AllActive(ctx context.Context) ([]Borrowing, error)
	SetCopyCondition(ctx context.Context, copyID int64, status string) (*BookCopy, error)
}

// Handler exposes the catalog and ledger endpoints.
type Handler struct {
	repo   *Repository
	ledger Ledger
	events queue.Queue
	logger *zap.Logger
}

// NewHandler creates the handler.
func NewHandler(repo *Repository, ledger Ledger, events queue.Queue, logger *zap.Logger) *Handler {
	return &Handler{repo: repo, ledger: ledger, events: events, logger: logger}
}

// Register mounts catalog routes on books and ledger routes on library.
func (h *Handler) Register(books, library *gin.RouterGroup) {
	books.GET("", h.ListBooks)
	books.GET("/search", h.SearchBooks)
	books.GET("/:id", h.GetBook)
	books.POST("", h.CreateBook)
	books.PUT("/:id", h.UpdateBook)
	books.DELETE("/:id", h.DeleteBook)
	books.POST("/:id/copies", h.AddCopy)

	library.POST("/borrow", h.Borrow)
	library.POST("/return", h.Return)
	library.POST("/terminal/borrow", h.TerminalBorrow)
	library.GET("/borrowings", h.StudentBorrowings)
	library.GET("/borrowed", h.AllActive)
	library.PUT("/copies/:id/status", h.SetCopyCondition)
}

func (h *Handler) publish(c *gin.Context, evt queue.Event) {
	if h.events == nil {
		return
	}
	if err := h.events.Publish(c.Request.Context(), evt); err != nil {
		h.logger.Warn("event publish failed", zap.String("type", evt.Type), zap.Error(err))
	}
}

// ---------- ledger ----------

type borrowRequest struct {
	StudentID  int64 `json:"student_id" binding:"required"`
	BookCopyID int64 `json:"book_copy_id" binding:"required"`
}

func (h *Handler) Borrow(c *gin.Context) {
	var req borrowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpapi.BadRequest(c, err)
		return
	}
	borrowing, err := h.ledger.Borrow(c.Request.Context(), req.StudentID, req.BookCopyID)
	if err != nil {
		httpapi.Error(c, err)
		return
	}
	h.publish(c, queue.Event{
		Type:        queue.EventBookBorrowed,
		At:          borrowing.BorrowedAt,
		StudentID:   borrowing.StudentID,
		BookCopyID:  borrowing.BookCopyID,
		BorrowingID: borrowing.ID,
	})
	httpapi.Message(c, http.StatusCreated, "Book successfully borrowed.", borrowing)
}

func (h *Handler) Return(c *gin.Context) {
	var req borrowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpapi.BadRequest(c, err)
		return
	}
	borrowing, err := h.ledger.Return(c.Request.Context(), req.StudentID, req.BookCopyID)
	if err != nil {
		httpapi.Error(c, err)
		return
	}
	h.publish(c, queue.Event{
		Type:        queue.EventBookReturned,
		At:          *borrowing.ReturnedAt,
		StudentID:   borrowing.StudentID,
		BookCopyID:  borrowing.BookCopyID,
		BorrowingID: borrowing.ID,
	})
	httpapi.Message(c, http.StatusOK, "Book successfully returned.", borrowing)
}

type terminalBorrowRequest struct {
	StudentCode string `json:"student_code" binding:"required"`
	ISBN        string `json:"isbn" binding:"required"`
}

func (h *Handler) TerminalBorrow(c *gin.Context) {
	var req terminalBorrowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpapi.BadRequest(c, err)
		return
	}
	borrowing, err := h.ledger.BorrowByCodeAndISBN(c.Request.Context(), req.StudentCode, req.ISBN)
	if err != nil {
		httpapi.Error(c, err)
		return
	}
	h.publish(c, queue.Event{
		Type:        queue.EventBookBorrowed,
		At:          borrowing.BorrowedAt,
		StudentID:   borrowing.StudentID,
		BookCopyID:  borrowing.BookCopyID,
		BorrowingID: borrowing.ID,
		Detail:      "terminal",
	})
	httpapi.Message(c, http.StatusCreated, "Book successfully borrowed.", borrowing)
}

func (h *Handler) StudentBorrowings(c *gin.Context) {
	studentID, err := strconv.ParseInt(c.Query("student_id"), 10, 64)
	if err != nil || studentID <= 0 {
		httpapi.Error(c, domain.Validation("student_id", "student_id is required"))
		return
	}
	typ := c.DefaultQuery("type", "all")
	if typ != "all" && typ != "current" {
		httpapi.Error(c, domain.Validation("type", "type must be all or current"))
		return
	}
	borrowings, err := h.ledger.StudentBorrowings(c.Request.Context(), studentID, typ == "current")
	if err != nil {
		httpapi.Error(c, err)
		return
	}
	httpapi.Data(c, http.StatusOK, borrowings)
}

type copyStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

func (h *Handler) SetCopyCondition(c *gin.Context) {
	id, ok := bookID(c)
	if !ok {
		return
	}
	var req copyStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpapi.BadRequest(c, err)
		return
	}
	cp, err := h.ledger.SetCopyCondition(c.Request.Context(), id, req.Status)
	if err != nil {
		httpapi.Error(c, err)
		return
	}
	httpapi.Message(c, http.StatusOK, "Copy status updated.", cp)
}

func (h *Handler) AllActive(c *gin.Context) {
	borrowings, err := h.ledger.AllActive(c.Request.Context())
	if err != nil {
		httpapi.Error(c, err)
		return
	}
	httpapi.Data(c, http.StatusOK, borrowings)
}

// ---------- catalog ----------

func (h *Handler) ListBooks(c *gin.Context) {
	books, err := h.repo.ListBooks(c.Request.Context())
	if err != nil {
		httpapi.Error(c, err)
		return
	}
	httpapi.Data(c, http.StatusOK, books)
}

func (h *Handler) SearchBooks(c *gin.Context) {
	books, err := h.repo.SearchBooks(c.Request.Context(), c.Query("q"))
	if err != nil {
		httpapi.Error(c, err)
		return
	}
	httpapi.Data(c, http.StatusOK, books)
}

func (h *Handler) GetBook(c *gin.Context) {
	id, ok := bookID(c)
	if !ok {
		return
	}
	book, err := h.repo.GetBook(c.Request.Context(), id)
	if err != nil {
		httpapi.Error(c, err)
		return
	}
	if book == nil {
		httpapi.Error(c, domain.NotFound("book not found"))
		return
	}
	httpapi.Data(c, http.StatusOK, book)
}

type bookRequest struct {
	Title         string  `json:"title" binding:"required"`
	Author        string  `json:"author" binding:"required"`
	Publisher     *string `json:"publisher"`
	PublishedYear *int    `json:"published_year"`
	Description   *string `json:"description"`
}

func (h *Handler) CreateBook(c *gin.Context) {
	var req bookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpapi.BadRequest(c, err)
		return
	}
	book := &Book{
		Title:         req.Title,
		Author:        req.Author,
		Publisher:     req.Publisher,
		PublishedYear: req.PublishedYear,
		Description:   req.Description,
	}
	if err := h.repo.CreateBook(c.Request.Context(), book); err != nil {
		httpapi.Error(c, err)
		return
	}
	httpapi.Message(c, http.StatusCreated, "Book created.", book)
}

func (h *Handler) UpdateBook(c *gin.Context) {
	id, ok := bookID(c)
	if !ok {
		return
	}
	var req bookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpapi.BadRequest(c, err)
		return
	}
	book := &Book{
		ID:            id,
		Title:         req.Title,
		Author:        req.Author,
		Publisher:     req.Publisher,
		PublishedYear: req.PublishedYear,
		Description:   req.Description,
	}
	found, err := h.repo.UpdateBook(c.Request.Context(), book)
	if err != nil {
		httpapi.Error(c, err)
		return
	}
	if !found {
		httpapi.Error(c, domain.NotFound("book not found"))
		return
	}
	httpapi.Message(c, http.StatusOK, "Book updated.", book)
}

func (h *Handler) DeleteBook(c *gin.Context) {
	id, ok := bookID(c)
	if !ok {
		return
	}
	found, err := h.repo.DeleteBook(c.Request.Context(), id)
	if err != nil {
		httpapi.Error(c, err)
		return
	}
	if !found {
		httpapi.Error(c, domain.NotFound("book not found"))
		return
	}
	c.Status(http.StatusNoContent)
}

type copyRequest struct {
	ISBN   string `json:"isbn" binding:"required"`
	Status string `json:"status"`
}

func (h *Handler) AddCopy(c *gin.Context) {
	id, ok := bookID(c)
	if !ok {
		return
	}
	var req copyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpapi.BadRequest(c, err)
		return
	}
	if req.Status != "" && req.Status != CopyAvailable && req.Status != CopyDamaged && req.Status != CopyLost {
		httpapi.Error(c, domain.Validation("status", "status must be available, damaged or lost"))
		return
	}
	book, err := h.repo.GetBook(c.Request.Context(), id)
	if err != nil {
		httpapi.Error(c, err)
		return
	}
	if book == nil {
		httpapi.Error(c, domain.NotFound("book not found"))
		return
	}
	cp := &BookCopy{BookID: id, ISBN: req.ISBN, Status: req.Status}
	if err := h.repo.AddCopy(c.Request.Context(), cp); err != nil {
		httpapi.Error(c, err)
		return
	}
	httpapi.Message(c, http.StatusCreated, "Copy added.", cp)
}

func bookID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		httpapi.Error(c, domain.Validation("id", "invalid id"))
		return 0, false
	}
	return id, true
}
