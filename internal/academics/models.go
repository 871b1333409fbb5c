package academics

import "time"

// Class statuses. A class is one semester's offering of a course.
const (
	ClassPlanned   = "planned"
	ClassActive    = "active"
	ClassFinished  = "finished"
	ClassCancelled = "cancelled"
)

// TeachingAssigned marks a professor as currently assigned to teach a class.
const TeachingAssigned = "assigned"

// Student is an enrolled student with a unique campus code used at terminals.
type Student struct {
	ID        int64     `json:"id"`
	UserID    *int64    `json:"user_id,omitempty"`
	Name      string    `json:"name"`
	Code      string    `json:"code"`
	Email     *string   `json:"email,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Professor teaches classes; the code authorizes session starts at terminals.
type Professor struct {
	ID        int64     `json:"id"`
	UserID    *int64    `json:"user_id,omitempty"`
	Name      string    `json:"name"`
	Code      string    `json:"code"`
	CreatedAt time.Time `json:"created_at"`
}

// Course is the catalog definition a class instantiates.
type Course struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Code        string    `json:"code"`
	Description *string   `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// CourseClass is one concrete offering of a course. The PIN authenticates
// session starts from classroom terminals; Iteration counts held sessions.
type CourseClass struct {
	ID           int64     `json:"id"`
	CourseID     int64     `json:"course_id"`
	Semester     string    `json:"semester"`
	AcademicYear string    `json:"academic_year"`
	Iteration    int       `json:"iteration"`
	Status       string    `json:"status"`
	PIN          string    `json:"pin"`
	CreatedAt    time.Time `json:"created_at"`

	Course *Course `json:"course,omitempty"`
}

// Teaching authorizes a professor to teach a class.
type Teaching struct {
	ID             int64  `json:"id"`
	ProfessorID    int64  `json:"professor_id"`
	ClassID        int64  `json:"class_id"`
	Role           string `json:"role"`
	Status         string `json:"status"`
	TaughtSessions int    `json:"taught_sessions"`
}

// Enrollment registers a student in a class and accumulates the semester-long
// attended-session counter.
type Enrollment struct {
	ID               int64  `json:"id"`
	StudentID        int64  `json:"student_id"`
	ClassID          int64  `json:"class_id"`
	Status           string `json:"status"`
	AttendedSessions int    `json:"attended_sessions"`
}

// Exam is a scheduled exam for a class.
type Exam struct {
	ID          int64     `json:"id"`
	ClassID     int64     `json:"class_id"`
	Name        string    `json:"name"`
	ExamAt      time.Time `json:"exam_at"`
	ClassroomID *int64    `json:"classroom_id,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// ExamResult is one student's grade for an exam.
type ExamResult struct {
	ID        int64   `json:"id"`
	ExamID    int64   `json:"exam_id"`
	StudentID int64   `json:"student_id"`
	Grade     float64 `json:"grade"`
	Status    string  `json:"status"`
}
