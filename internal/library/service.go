package library

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	"campus/internal/academics"
	"campus/internal/domain"
	"campus/internal/metrics"
)

// ledgerStore is the persistence surface the ledger mutations drive;
// *Repository satisfies it.
type ledgerStore interface {
	CopyForUpdate(ctx context.Context, tx *sql.Tx, id int64) (*BookCopy, error)
	BookForUpdate(ctx context.Context, tx *sql.Tx, id int64) (*Book, error)
	SetCopyStatus(ctx context.Context, q querier, id int64, status string) error
	DecrementAvailable(ctx context.Context, tx *sql.Tx, bookID int64) error
	IncrementAvailableGuarded(ctx context.Context, tx *sql.Tx, bookID int64) (bool, error)
	InsertBorrowing(ctx context.Context, tx *sql.Tx, b *Borrowing) error
	ActiveBorrowingForUpdate(ctx context.Context, tx *sql.Tx, studentID, copyID int64) (*Borrowing, error)
	MarkReturned(ctx context.Context, tx *sql.Tx, id int64, at time.Time) error
	BorrowingDetail(ctx context.Context, id int64) (*Borrowing, error)
	AvailableCopyByISBN(ctx context.Context, isbn string) (*BookCopy, error)
	CurrentForStudent(ctx context.Context, studentID int64) ([]Borrowing, error)
	HistoryForStudent(ctx context.Context, studentID int64) ([]Borrowing, error)
	AllActive(ctx context.Context) ([]Borrowing, error)
}

// studentDirectory resolves student codes for the terminal flow.
type studentDirectory interface {
	StudentByCode(ctx context.Context, q academics.Querier, code string) (*academics.Student, error)
	DB() academics.Querier
}

// Service is the borrowing ledger. Every mutation runs as a single transaction
// that locks the copy (and transitively its book) before reading any state, so
// two concurrent borrows of the same copy serialize on the row lock and the
// loser observes the committed status.
type Service struct {
	db         *sql.DB
	repo       ledgerStore
	directory  studentDirectory
	loanPeriod time.Duration
	logger     *zap.Logger
	now        func() time.Time
}

// NewService creates the ledger service.
func NewService(db *sql.DB, repo *Repository, directory *academics.Repository, loanPeriod time.Duration, logger *zap.Logger) *Service {
	if loanPeriod <= 0 {
		loanPeriod = 30 * 24 * time.Hour
	}
	return &Service{
		db:         db,
		repo:       repo,
		directory:  directory,
		loanPeriod: loanPeriod,
		logger:     logger,
		now:        time.Now,
	}
}

// copyBorrowable rejects any copy that is not sitting on the shelf.
func copyBorrowable(status string) error {
	if status != CopyAvailable {
		return domain.Conflict("copy is not available")
	}
	return nil
}

// bookHasAvailability double-checks the denormalized counter in case it has
// drifted from the copy statuses.
func bookHasAvailability(availableCopies int) error {
	if availableCopies <= 0 {
		return domain.Conflict("no available copies")
	}
	return nil
}

// loanWindow computes the loan interval starting at now.
func loanWindow(now time.Time, period time.Duration) (borrowedAt, dueAt time.Time) {
	return now, now.Add(period)
}

// copyConditionDelta is the availability adjustment when a shelved copy
// changes condition.
func copyConditionDelta(from, to string) int {
	switch {
	case from == to:
		return 0
	case from == CopyAvailable:
		return -1
	case to == CopyAvailable:
		return 1
	}
	return 0
}

// SetCopyCondition marks a shelved copy available, damaged or lost and keeps
// the book's availability counter in step. Borrowed copies must be returned
// first.
func (s *Service) SetCopyCondition(ctx context.Context, copyID int64, status string) (*BookCopy, error) {
	if status != CopyAvailable && status != CopyDamaged && status != CopyLost {
		return nil, domain.Validation("status", "status must be available, damaged or lost")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin copy condition: %w", err)
	}
	defer tx.Rollback()

	copy, err := s.repo.CopyForUpdate(ctx, tx, copyID)
	if err != nil {
		return nil, err
	}
	if copy == nil {
		return nil, domain.NotFound("book copy not found")
	}
	if copy.Status == CopyBorrowed {
		return nil, domain.Conflict("copy is currently borrowed")
	}

	if err := s.repo.SetCopyStatus(ctx, tx, copy.ID, status); err != nil {
		return nil, err
	}
	switch copyConditionDelta(copy.Status, status) {
	case -1:
		if err := s.repo.DecrementAvailable(ctx, tx, copy.BookID); err != nil {
			return nil, err
		}
	case 1:
		if _, err := s.repo.IncrementAvailableGuarded(ctx, tx, copy.BookID); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit copy condition: %w", err)
	}

	s.logger.Info("copy condition changed",
		zap.Int64("book_copy_id", copy.ID),
		zap.String("from", copy.Status),
		zap.String("to", status))

	copy.Status = status
	return copy, nil
}

// Borrow lends the copy to the student. Exactly one of two concurrent calls
// for the same copy can succeed.
func (s *Service) Borrow(ctx context.Context, studentID, copyID int64) (*Borrowing, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin borrow: %w", err)
	}
	defer tx.Rollback()

	copy, err := s.repo.CopyForUpdate(ctx, tx, copyID)
	if err != nil {
		return nil, err
	}
	if copy == nil {
		return nil, domain.NotFound("book copy not found")
	}
	if err := copyBorrowable(copy.Status); err != nil {
		return nil, err
	}

	book, err := s.repo.BookForUpdate(ctx, tx, copy.BookID)
	if err != nil {
		return nil, err
	}
	if book == nil {
		return nil, domain.NotFound("book not found")
	}
	if err := bookHasAvailability(book.AvailableCopies); err != nil {
		return nil, err
	}

	if err := s.repo.SetCopyStatus(ctx, tx, copy.ID, CopyBorrowed); err != nil {
		return nil, err
	}
	if err := s.repo.DecrementAvailable(ctx, tx, book.ID); err != nil {
		return nil, err
	}

	borrowedAt, dueAt := loanWindow(s.now(), s.loanPeriod)
	borrowing := &Borrowing{
		BookCopyID: copy.ID,
		StudentID:  studentID,
		BorrowedAt: borrowedAt,
		DueAt:      dueAt,
		Status:     BorrowingActive,
	}
	if err := s.repo.InsertBorrowing(ctx, tx, borrowing); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit borrow: %w", err)
	}

	metrics.BorrowsTotal.Inc()
	s.logger.Info("book borrowed",
		zap.Int64("borrowing_id", borrowing.ID),
		zap.Int64("student_id", studentID),
		zap.Int64("book_copy_id", copy.ID),
		zap.Time("due_at", dueAt))

	return s.repo.BorrowingDetail(ctx, borrowing.ID)
}

// Return closes the student's active loan on the copy. The copy status is
// corrected even when the counter guard refuses the increment, so a drifted
// counter never blocks a return.
func (s *Service) Return(ctx context.Context, studentID, copyID int64) (*Borrowing, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin return: %w", err)
	}
	defer tx.Rollback()

	borrowing, err := s.repo.ActiveBorrowingForUpdate(ctx, tx, studentID, copyID)
	if err != nil {
		return nil, err
	}
	if borrowing == nil {
		return nil, domain.Conflict("no active borrowing found")
	}

	copy, err := s.repo.CopyForUpdate(ctx, tx, copyID)
	if err != nil {
		return nil, err
	}
	if copy == nil {
		return nil, domain.NotFound("book copy not found")
	}

	if err := s.repo.SetCopyStatus(ctx, tx, copy.ID, CopyAvailable); err != nil {
		return nil, err
	}
	incremented, err := s.repo.IncrementAvailableGuarded(ctx, tx, copy.BookID)
	if err != nil {
		return nil, err
	}
	if err := s.repo.MarkReturned(ctx, tx, borrowing.ID, s.now()); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit return: %w", err)
	}

	if !incremented {
		s.logger.Warn("availability counter at cap, increment skipped",
			zap.Int64("book_id", copy.BookID),
			zap.Int64("book_copy_id", copy.ID))
	}
	metrics.ReturnsTotal.Inc()
	s.logger.Info("book returned",
		zap.Int64("borrowing_id", borrowing.ID),
		zap.Int64("student_id", studentID),
		zap.Int64("book_copy_id", copy.ID))

	return s.repo.BorrowingDetail(ctx, borrowing.ID)
}

// BorrowByCodeAndISBN is the terminal flow: the student presents their code
// and the ISBN label, and any available copy is lent out. The copy may be
// snatched between lookup and borrow; Borrow re-checks under the row lock.
func (s *Service) BorrowByCodeAndISBN(ctx context.Context, studentCode, isbn string) (*Borrowing, error) {
	student, err := s.directory.StudentByCode(ctx, s.directory.DB(), studentCode)
	if err != nil {
		return nil, err
	}
	if student == nil {
		return nil, domain.NotFound("student not found")
	}

	copy, err := s.repo.AvailableCopyByISBN(ctx, isbn)
	if err != nil {
		return nil, err
	}
	if copy == nil {
		return nil, domain.NotFound("no available copy found for this ISBN")
	}

	return s.Borrow(ctx, student.ID, copy.ID)
}

// StudentBorrowings lists a student's loans; current limits to open ones.
func (s *Service) StudentBorrowings(ctx context.Context, studentID int64, current bool) ([]Borrowing, error) {
	if current {
		return s.repo.CurrentForStudent(ctx, studentID)
	}
	return s.repo.HistoryForStudent(ctx, studentID)
}

// AllActive lists every open loan for staff.
func (s *Service) AllActive(ctx context.Context) ([]Borrowing, error) {
	return s.repo.AllActive(ctx)
}
