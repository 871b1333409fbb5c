package library

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Repository persists catalog and ledger data in Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// ---------- catalog ----------

// CreateBook inserts a book with zero copies.
func (r *Repository) CreateBook(ctx context.Context, b *Book) error {
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO books (title, author, publisher, published_year, description, total_copies, available_copies)
		VALUES ($1, $2, $3, $4, $5, 0, 0)
		RETURNING id, total_copies, available_copies, created_at
	`, b.Title, b.Author, b.Publisher, b.PublishedYear, b.Description)
	if err := row.Scan(&b.ID, &b.TotalCopies, &b.AvailableCopies, &b.CreatedAt); err != nil {
		return fmt.Errorf("create book: %w", err)
	}
	return nil
}

// GetBook returns a book with its copies, nil when absent.
func (r *Repository) GetBook(ctx context.Context, id int64) (*Book, error) {
	var b Book
	err := r.db.QueryRowContext(ctx, `
		SELECT id, title, author, publisher, published_year, description, total_copies, available_copies, created_at
		FROM books WHERE id = $1
	`, id).Scan(&b.ID, &b.Title, &b.Author, &b.Publisher, &b.PublishedYear, &b.Description,
		&b.TotalCopies, &b.AvailableCopies, &b.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get book: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, book_id, isbn, status, created_at
		FROM book_copies WHERE book_id = $1 ORDER BY isbn
	`, id)
	if err != nil {
		return nil, fmt.Errorf("book copies: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var c BookCopy
		if err := rows.Scan(&c.ID, &c.BookID, &c.ISBN, &c.Status, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan copy: %w", err)
		}
		b.Copies = append(b.Copies, c)
	}
	return &b, rows.Err()
}

// ListBooks returns the whole catalog ordered by title.
func (r *Repository) ListBooks(ctx context.Context) ([]Book, error) {
	return r.queryBooks(ctx, `
		SELECT id, title, author, publisher, published_year, description, total_copies, available_copies, created_at
		FROM books ORDER BY title
	`)
}

// SearchBooks returns books matching every keyword against title, author and
// publisher.
func (r *Repository) SearchBooks(ctx context.Context, query string) ([]Book, error) {
	where, args := buildSearchClause(query)
	if where == "" {
		return r.ListBooks(ctx)
	}
	return r.queryBooks(ctx, `
		SELECT id, title, author, publisher, published_year, description, total_copies, available_copies, created_at
		FROM books WHERE `+where+` ORDER BY title
	`, args...)
}

// buildSearchClause turns "ada lovelace" into one AND-ed ILIKE clause per word,
// each matching title, author or publisher.
func buildSearchClause(query string) (string, []any) {
	words := strings.Fields(strings.TrimSpace(query))
	if len(words) == 0 {
		return "", nil
	}
	clauses := make([]string, 0, len(words))
	args := make([]any, 0, len(words))
	for i, word := range words {
		n := i + 1
		clauses = append(clauses, fmt.Sprintf(
			"(title ILIKE $%d OR author ILIKE $%d OR publisher ILIKE $%d)", n, n, n))
		args = append(args, "%"+word+"%")
	}
	return strings.Join(clauses, " AND "), args
}

func (r *Repository) queryBooks(ctx context.Context, query string, args ...any) ([]Book, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query books: %w", err)
	}
	defer rows.Close()

	var books []Book
	for rows.Next() {
		var b Book
		if err := rows.Scan(&b.ID, &b.Title, &b.Author, &b.Publisher, &b.PublishedYear, &b.Description,
			&b.TotalCopies, &b.AvailableCopies, &b.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan book: %w", err)
		}
		books = append(books, b)
	}
	return books, rows.Err()
}

// UpdateBook applies bibliographic changes. Copy counters are owned by the
// ledger and copy administration, never by this update.
func (r *Repository) UpdateBook(ctx context.Context, b *Book) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE books SET title = $2, author = $3, publisher = $4, published_year = $5, description = $6
		WHERE id = $1
	`, b.ID, b.Title, b.Author, b.Publisher, b.PublishedYear, b.Description)
	if err != nil {
		return false, fmt.Errorf("update book: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// DeleteBook removes a book and, via cascade, its copies.
func (r *Repository) DeleteBook(ctx context.Context, id int64) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM books WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("delete book: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// AddCopy registers a new physical copy and bumps both book counters in the
// same transaction.
func (r *Repository) AddCopy(ctx context.Context, c *BookCopy) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin add copy: %w", err)
	}
	defer tx.Rollback()

	if c.Status == "" {
		c.Status = CopyAvailable
	}
	row := tx.QueryRowContext(ctx, `
		INSERT INTO book_copies (book_id, isbn, status)
		VALUES ($1, $2, $3)
		RETURNING id, created_at
	`, c.BookID, c.ISBN, c.Status)
	if err := row.Scan(&c.ID, &c.CreatedAt); err != nil {
		return fmt.Errorf("insert copy: %w", err)
	}

	available := 0
	if c.Status == CopyAvailable {
		available = 1
	}
	if _, err := tx.ExecContext(ctx, `
		UPDATE books SET total_copies = total_copies + 1, available_copies = available_copies + $2
		WHERE id = $1
	`, c.BookID, available); err != nil {
		return fmt.Errorf("bump copy counters: %w", err)
	}

	return tx.Commit()
}

// AvailableCopyByISBN finds any available copy carrying the given ISBN label,
// nil when none is free.
func (r *Repository) AvailableCopyByISBN(ctx context.Context, isbn string) (*BookCopy, error) {
	var c BookCopy
	err := r.db.QueryRowContext(ctx, `
		SELECT id, book_id, isbn, status, created_at
		FROM book_copies
		WHERE isbn = $1 AND status = $2
		ORDER BY id
		LIMIT 1
	`, isbn, CopyAvailable).Scan(&c.ID, &c.BookID, &c.ISBN, &c.Status, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("available copy by isbn: %w", err)
	}
	return &c, nil
}

// ---------- ledger (transaction participants) ----------

// CopyForUpdate loads a copy under an exclusive row lock. The lock is taken
// before any decision is made on its state.
func (r *Repository) CopyForUpdate(ctx context.Context, tx *sql.Tx, id int64) (*BookCopy, error) {
	var c BookCopy
	err := tx.QueryRowContext(ctx, `
		SELECT id, book_id, isbn, status, created_at
		FROM book_copies WHERE id = $1
		FOR UPDATE
	`, id).Scan(&c.ID, &c.BookID, &c.ISBN, &c.Status, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("copy for update: %w", err)
	}
	return &c, nil
}

// BookForUpdate loads a book row under an exclusive lock.
func (r *Repository) BookForUpdate(ctx context.Context, tx *sql.Tx, id int64) (*Book, error) {
	var b Book
	err := tx.QueryRowContext(ctx, `
		SELECT id, title, author, publisher, published_year, description, total_copies, available_copies, created_at
		FROM books WHERE id = $1
		FOR UPDATE
	`, id).Scan(&b.ID, &b.Title, &b.Author, &b.Publisher, &b.PublishedYear, &b.Description,
		&b.TotalCopies, &b.AvailableCopies, &b.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("book for update: %w", err)
	}
	return &b, nil
}

// SetCopyStatus flips a copy's status.
func (r *Repository) SetCopyStatus(ctx context.Context, q querier, id int64, status string) error {
	if _, err := q.ExecContext(ctx, `UPDATE book_copies SET status = $2 WHERE id = $1`, id, status); err != nil {
		return fmt.Errorf("set copy status: %w", err)
	}
	return nil
}

// DecrementAvailable takes one copy off the book's availability counter.
func (r *Repository) DecrementAvailable(ctx context.Context, tx *sql.Tx, bookID int64) error {
	if _, err := tx.ExecContext(ctx, `
		UPDATE books SET available_copies = available_copies - 1 WHERE id = $1
	`, bookID); err != nil {
		return fmt.Errorf("decrement available: %w", err)
	}
	return nil
}

// IncrementAvailableGuarded restores one copy to the availability counter, but
// refuses to push it past total_copies. Returns false when the guard refused.
func (r *Repository) IncrementAvailableGuarded(ctx context.Context, tx *sql.Tx, bookID int64) (bool, error) {
	res, err := tx.ExecContext(ctx, `
		UPDATE books SET available_copies = available_copies + 1
		WHERE id = $1 AND available_copies < total_copies
	`, bookID)
	if err != nil {
		return false, fmt.Errorf("increment available: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// InsertBorrowing writes a new active loan.
func (r *Repository) InsertBorrowing(ctx context.Context, tx *sql.Tx, b *Borrowing) error {
	row := tx.QueryRowContext(ctx, `
		INSERT INTO borrowings (book_copy_id, student_id, borrowed_at, due_at, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`, b.BookCopyID, b.StudentID, b.BorrowedAt, b.DueAt, b.Status)
	if err := row.Scan(&b.ID); err != nil {
		return fmt.Errorf("insert borrowing: %w", err)
	}
	return nil
}

// ActiveBorrowingForUpdate locks the active loan for (student, copy), nil when
// there is none.
func (r *Repository) ActiveBorrowingForUpdate(ctx context.Context, tx *sql.Tx, studentID, copyID int64) (*Borrowing, error) {
	var b Borrowing
	err := tx.QueryRowContext(ctx, `
		SELECT id, book_copy_id, student_id, borrowed_at, due_at, returned_at, status
		FROM borrowings
		WHERE student_id = $1 AND book_copy_id = $2 AND status = $3
		FOR UPDATE
	`, studentID, copyID, BorrowingActive).Scan(
		&b.ID, &b.BookCopyID, &b.StudentID, &b.BorrowedAt, &b.DueAt, &b.ReturnedAt, &b.Status)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("active borrowing for update: %w", err)
	}
	return &b, nil
}

// MarkReturned closes a loan.
func (r *Repository) MarkReturned(ctx context.Context, tx *sql.Tx, id int64, at time.Time) error {
	if _, err := tx.ExecContext(ctx, `
		UPDATE borrowings SET status = $2, returned_at = $3 WHERE id = $1
	`, id, BorrowingReturned, at); err != nil {
		return fmt.Errorf("mark returned: %w", err)
	}
	return nil
}

// ---------- ledger queries ----------

const borrowingDetailQuery = `
	SELECT b.id, b.book_copy_id, b.student_id, b.borrowed_at, b.due_at, b.returned_at, b.status,
	       c.id, c.book_id, c.isbn, c.status, c.created_at,
	       bk.id, bk.title, bk.author, bk.publisher, bk.published_year, bk.description,
	       bk.total_copies, bk.available_copies, bk.created_at
	FROM borrowings b
	JOIN book_copies c ON c.id = b.book_copy_id
	JOIN books bk ON bk.id = c.book_id
`

// BorrowingDetail loads one loan with its copy and book for display.
func (r *Repository) BorrowingDetail(ctx context.Context, id int64) (*Borrowing, error) {
	b, err := scanBorrowingDetail(r.db.QueryRowContext(ctx, borrowingDetailQuery+` WHERE b.id = $1`, id))
	if err != nil {
		return nil, err
	}
	if b == nil {
		return nil, fmt.Errorf("borrowing %d vanished after commit", id)
	}
	return b, nil
}

// HistoryForStudent lists every loan of a student, newest first.
func (r *Repository) HistoryForStudent(ctx context.Context, studentID int64) ([]Borrowing, error) {
	return r.queryBorrowings(ctx,
		borrowingDetailQuery+` WHERE b.student_id = $1 ORDER BY b.borrowed_at DESC`, studentID)
}

// CurrentForStudent lists a student's open loans, newest first.
func (r *Repository) CurrentForStudent(ctx context.Context, studentID int64) ([]Borrowing, error) {
	return r.queryBorrowings(ctx,
		borrowingDetailQuery+` WHERE b.student_id = $1 AND b.status = $2 ORDER BY b.borrowed_at DESC`,
		studentID, BorrowingActive)
}

// AllActive lists every open loan system-wide, newest first.
func (r *Repository) AllActive(ctx context.Context) ([]Borrowing, error) {
	return r.queryBorrowings(ctx,
		borrowingDetailQuery+` WHERE b.status = $1 ORDER BY b.borrowed_at DESC`, BorrowingActive)
}

// Overdue lists open loans whose due date has passed.
func (r *Repository) Overdue(ctx context.Context, asOf time.Time) ([]Borrowing, error) {
	return r.queryBorrowings(ctx,
		borrowingDetailQuery+` WHERE b.status = $1 AND b.due_at < $2 ORDER BY b.due_at`,
		BorrowingActive, asOf)
}

func (r *Repository) queryBorrowings(ctx context.Context, query string, args ...any) ([]Borrowing, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query borrowings: %w", err)
	}
	defer rows.Close()

	var borrowings []Borrowing
	for rows.Next() {
		b, err := scanBorrowingDetailRows(rows)
		if err != nil {
			return nil, err
		}
		borrowings = append(borrowings, *b)
	}
	return borrowings, rows.Err()
}

func scanBorrowingDetail(row *sql.Row) (*Borrowing, error) {
	var b Borrowing
	var c BookCopy
	var bk Book
	err := row.Scan(
		&b.ID, &b.BookCopyID, &b.StudentID, &b.BorrowedAt, &b.DueAt, &b.ReturnedAt, &b.Status,
		&c.ID, &c.BookID, &c.ISBN, &c.Status, &c.CreatedAt,
		&bk.ID, &bk.Title, &bk.Author, &bk.Publisher, &bk.PublishedYear, &bk.Description,
		&bk.TotalCopies, &bk.AvailableCopies, &bk.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan borrowing: %w", err)
	}
	c.Book = &bk
	b.Copy = &c
	return &b, nil
}

func scanBorrowingDetailRows(rows *sql.Rows) (*Borrowing, error) {
	var b Borrowing
	var c BookCopy
	var bk Book
	err := rows.Scan(
		&b.ID, &b.BookCopyID, &b.StudentID, &b.BorrowedAt, &b.DueAt, &b.ReturnedAt, &b.Status,
		&c.ID, &c.BookID, &c.ISBN, &c.Status, &c.CreatedAt,
		&bk.ID, &bk.Title, &bk.Author, &bk.Publisher, &bk.PublishedYear, &bk.Description,
		&bk.TotalCopies, &bk.AvailableCopies, &bk.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("scan borrowing: %w", err)
	}
	c.Book = &bk
	b.Copy = &c
	return &b, nil
}
