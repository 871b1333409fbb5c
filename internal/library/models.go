package library

import "time"

// Book copy statuses. available ↔ borrowed flips through the ledger; damaged
// and lost are administrative.
const (
	CopyAvailable = "available"
	CopyBorrowed  = "borrowed"
	CopyDamaged   = "damaged"
	CopyLost      = "lost"
)

// Borrowing statuses.
const (
	BorrowingActive   = "borrowed"
	BorrowingReturned = "returned"
)

// Book is a bibliographic record. AvailableCopies is a denormalized cache of
// the copy statuses, only ever updated in the same transaction as a copy
// transition.
type Book struct {
	ID              int64     `json:"id"`
	Title           string    `json:"title"`
	Author          string    `json:"author"`
	Publisher       *string   `json:"publisher,omitempty"`
	PublishedYear   *int      `json:"published_year,omitempty"`
	Description     *string   `json:"description,omitempty"`
	TotalCopies     int       `json:"total_copies"`
	AvailableCopies int       `json:"available_copies"`
	CreatedAt       time.Time `json:"created_at"`

	Copies []BookCopy `json:"copies,omitempty"`
}

// BookCopy is one physical instance of a book, identified by its ISBN label.
type BookCopy struct {
	ID        int64     `json:"id"`
	BookID    int64     `json:"book_id"`
	ISBN      string    `json:"isbn"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`

	Book *Book `json:"book,omitempty"`
}

// Borrowing is one loan transaction of a copy to a student.
type Borrowing struct {
	ID         int64      `json:"id"`
	BookCopyID int64      `json:"book_copy_id"`
	StudentID  int64      `json:"student_id"`
	BorrowedAt time.Time  `json:"borrowed_at"`
	DueAt      time.Time  `json:"due_at"`
	ReturnedAt *time.Time `json:"returned_at,omitempty"`
	Status     string     `json:"status"`

	Copy *BookCopy `json:"book_copy,omitempty"`
}

// IsReturned reports whether the loan has been closed.
func (b *Borrowing) IsReturned() bool {
	return b.ReturnedAt != nil
}
