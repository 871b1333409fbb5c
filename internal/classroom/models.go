package classroom

import (
	"time"

	"campus/internal/academics"
)

// Classroom statuses. Only empty ↔ occupied transitions happen here; reserved
// is administrative.
const (
	RoomEmpty    = "empty"
	RoomOccupied = "occupied"
	RoomReserved = "reserved"
)

// Session statuses.
const (
	SessionScheduled = "scheduled"
	SessionOngoing   = "ongoing"
	SessionFinished  = "finished"
	SessionCancelled = "cancelled"
)

// Attendance statuses.
const (
	AttendancePresent = "present"
	AttendanceLate    = "late"
)

// Classroom is a physical room. Status and ActiveSessionID move together:
// occupied iff an ongoing session references the room.
type Classroom struct {
	ID              int64     `json:"id"`
	Name            string    `json:"name"`
	Capacity        int       `json:"capacity"`
	Type            string    `json:"type"`
	Status          string    `json:"status"`
	ActiveSessionID *int64    `json:"active_session_id,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

// Session is one live occurrence of a class meeting in a classroom. StartsAt
// is kept nullable so check-in classification can fall back on malformed rows.
type Session struct {
	ID          int64      `json:"id"`
	ClassroomID int64      `json:"classroom_id"`
	ClassID     int64      `json:"class_id"`
	ProfessorID int64      `json:"professor_id"`
	StartsAt    *time.Time `json:"starts_at,omitempty"`
	EndsAt      *time.Time `json:"ends_at,omitempty"`
	Status      string     `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`

	Classroom *Classroom            `json:"classroom,omitempty"`
	Class     *academics.CourseClass `json:"class,omitempty"`
	Professor *academics.Professor  `json:"professor,omitempty"`
}

// IsOngoing reports whether the session is live.
func (s *Session) IsOngoing() bool {
	return s.Status == SessionOngoing
}

// Attendance is one student's check-in for one session. Written once, never
// mutated.
type Attendance struct {
	ID          int64     `json:"id"`
	SessionID   int64     `json:"session_id"`
	StudentID   int64     `json:"student_id"`
	CheckedInAt time.Time `json:"checked_in_at"`
	Status      string    `json:"status"`
}

// RosterEntry is one enrolled student's line on the live roster.
type RosterEntry struct {
	StudentID   int64      `json:"id"`
	Name        string     `json:"name"`
	Code        string     `json:"code"`
	CheckedIn   bool       `json:"checked_in"`
	CheckedInAt *time.Time `json:"checked_in_at,omitempty"`
	Status      *string    `json:"status,omitempty"`
}

// SessionWithRoster is the live view rendered by classroom terminals.
type SessionWithRoster struct {
	Session  *Session      `json:"session"`
	Students []RosterEntry `json:"students"`
}
