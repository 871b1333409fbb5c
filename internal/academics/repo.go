package academics

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// Querier is satisfied by *sql.DB and *sql.Tx. Lookups that participate in a
// caller's transaction accept it explicitly so they observe locked rows.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Repository persists academic records in Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// ---------- students ----------

// CreateStudent inserts a student.
func (r *Repository) CreateStudent(ctx context.Context, st *Student) error {
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO students (user_id, name, code, email)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`, st.UserID, st.Name, st.Code, st.Email)
	if err := row.Scan(&st.ID, &st.CreatedAt); err != nil {
		return fmt.Errorf("create student: %w", err)
	}
	return nil
}

// GetStudent returns a student by id, nil when absent.
func (r *Repository) GetStudent(ctx context.Context, id int64) (*Student, error) {
	return scanStudent(r.db.QueryRowContext(ctx, `
		SELECT id, user_id, name, code, email, created_at
		FROM students WHERE id = $1
	`, id))
}

// StudentByCode resolves a student by campus code, nil when absent.
func (r *Repository) StudentByCode(ctx context.Context, q Querier, code string) (*Student, error) {
	return scanStudent(q.QueryRowContext(ctx, `
		SELECT id, user_id, name, code, email, created_at
		FROM students WHERE code = $1
	`, code))
}

// ListStudents returns all students ordered by code.
func (r *Repository) ListStudents(ctx context.Context) ([]Student, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, name, code, email, created_at
		FROM students ORDER BY code
	`)
	if err != nil {
		return nil, fmt.Errorf("list students: %w", err)
	}
	defer rows.Close()

	var students []Student
	for rows.Next() {
		var st Student
		if err := rows.Scan(&st.ID, &st.UserID, &st.Name, &st.Code, &st.Email, &st.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan student: %w", err)
		}
		students = append(students, st)
	}
	return students, rows.Err()
}

func scanStudent(row *sql.Row) (*Student, error) {
	var st Student
	if err := row.Scan(&st.ID, &st.UserID, &st.Name, &st.Code, &st.Email, &st.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan student: %w", err)
	}
	return &st, nil
}

// ---------- professors ----------

// UpdateStudent applies changes to a student. Returns false when it is missing.
func (r *Repository) UpdateStudent(ctx context.Context, st *Student) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE students SET name = $2, code = $3, email = $4
		WHERE id = $1
	`, st.ID, st.Name, st.Code, st.Email)
	if err != nil {
		return false, fmt.Errorf("update student: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// DeleteStudent removes a student. Returns false when it is missing.
func (r *Repository) DeleteStudent(ctx context.Context, id int64) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM students WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("delete student: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// CreateProfessor inserts a professor.
func (r *Repository) CreateProfessor(ctx context.Context, p *Professor) error {
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO professors (user_id, name, code)
		VALUES ($1, $2, $3)
		RETURNING id, created_at
	`, p.UserID, p.Name, p.Code)
	if err := row.Scan(&p.ID, &p.CreatedAt); err != nil {
		return fmt.Errorf("create professor: %w", err)
	}
	return nil
}

// ProfessorByCode resolves a professor by code, nil when absent.
func (r *Repository) ProfessorByCode(ctx context.Context, q Querier, code string) (*Professor, error) {
	var p Professor
	err := q.QueryRowContext(ctx, `
		SELECT id, user_id, name, code, created_at
		FROM professors WHERE code = $1
	`, code).Scan(&p.ID, &p.UserID, &p.Name, &p.Code, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("professor by code: %w", err)
	}
	return &p, nil
}

// ListProfessors returns all professors ordered by code.
func (r *Repository) ListProfessors(ctx context.Context) ([]Professor, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, name, code, created_at
		FROM professors ORDER BY code
	`)
	if err != nil {
		return nil, fmt.Errorf("list professors: %w", err)
	}
	defer rows.Close()

	var professors []Professor
	for rows.Next() {
		var p Professor
		if err := rows.Scan(&p.ID, &p.UserID, &p.Name, &p.Code, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan professor: %w", err)
		}
		professors = append(professors, p)
	}
	return professors, rows.Err()
}

// UpdateProfessor applies changes to a professor. Returns false when it is
// missing.
func (r *Repository) UpdateProfessor(ctx context.Context, p *Professor) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE professors SET name = $2, code = $3
		WHERE id = $1
	`, p.ID, p.Name, p.Code)
	if err != nil {
		return false, fmt.Errorf("update professor: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// DeleteProfessor removes a professor. Returns false when it is missing.
func (r *Repository) DeleteProfessor(ctx context.Context, id int64) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM professors WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("delete professor: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// ---------- courses ----------

// CreateCourse inserts a course.
func (r *Repository) CreateCourse(ctx context.Context, course *Course) error {
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO courses (name, code, description)
		VALUES ($1, $2, $3)
		RETURNING id, created_at
	`, course.Name, course.Code, course.Description)
	if err := row.Scan(&course.ID, &course.CreatedAt); err != nil {
		return fmt.Errorf("create course: %w", err)
	}
	return nil
}

// GetCourse returns a course by id, nil when absent.
func (r *Repository) GetCourse(ctx context.Context, id int64) (*Course, error) {
	var course Course
	err := r.db.QueryRowContext(ctx, `
		SELECT id, name, code, description, created_at
		FROM courses WHERE id = $1
	`, id).Scan(&course.ID, &course.Name, &course.Code, &course.Description, &course.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get course: %w", err)
	}
	return &course, nil
}

// ListCourses returns the catalog ordered by code.
func (r *Repository) ListCourses(ctx context.Context) ([]Course, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, code, description, created_at
		FROM courses ORDER BY code
	`)
	if err != nil {
		return nil, fmt.Errorf("list courses: %w", err)
	}
	defer rows.Close()

	var courses []Course
	for rows.Next() {
		var course Course
		if err := rows.Scan(&course.ID, &course.Name, &course.Code, &course.Description, &course.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan course: %w", err)
		}
		courses = append(courses, course)
	}
	return courses, rows.Err()
}

// UpdateCourse applies changes to a course. Returns false when it is missing.
func (r *Repository) UpdateCourse(ctx context.Context, course *Course) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE courses SET name = $2, code = $3, description = $4
		WHERE id = $1
	`, course.ID, course.Name, course.Code, course.Description)
	if err != nil {
		return false, fmt.Errorf("update course: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// DeleteCourse removes a course. Returns false when it is missing.
func (r *Repository) DeleteCourse(ctx context.Context, id int64) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM courses WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("delete course: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// ---------- classes ----------

// CreateClass inserts a class instance in planned state.
func (r *Repository) CreateClass(ctx context.Context, cc *CourseClass) error {
	if cc.Status == "" {
		cc.Status = ClassPlanned
	}
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO classes (course_id, semester, academic_year, iteration, status, pin)
		VALUES ($1, $2, $3, 0, $4, $5)
		RETURNING id, iteration, created_at
	`, cc.CourseID, cc.Semester, cc.AcademicYear, cc.Status, cc.PIN)
	if err := row.Scan(&cc.ID, &cc.Iteration, &cc.CreatedAt); err != nil {
		return fmt.Errorf("create class: %w", err)
	}
	return nil
}

// GetClass returns a class with its course, nil when absent.
func (r *Repository) GetClass(ctx context.Context, q Querier, id int64) (*CourseClass, error) {
	return scanClass(q.QueryRowContext(ctx, `
		SELECT cc.id, cc.course_id, cc.semester, cc.academic_year, cc.iteration, cc.status, cc.pin, cc.created_at,
		       c.id, c.name, c.code, c.description, c.created_at
		FROM classes cc JOIN courses c ON c.id = cc.course_id
		WHERE cc.id = $1
	`, id))
}

// ClassByPIN resolves a class instance by its check-in PIN, nil when absent.
func (r *Repository) ClassByPIN(ctx context.Context, q Querier, pin string) (*CourseClass, error) {
	return scanClass(q.QueryRowContext(ctx, `
		SELECT cc.id, cc.course_id, cc.semester, cc.academic_year, cc.iteration, cc.status, cc.pin, cc.created_at,
		       c.id, c.name, c.code, c.description, c.created_at
		FROM classes cc JOIN courses c ON c.id = cc.course_id
		WHERE cc.pin = $1
	`, pin))
}

// ListClasses returns all class instances with their courses.
func (r *Repository) ListClasses(ctx context.Context) ([]CourseClass, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT cc.id, cc.course_id, cc.semester, cc.academic_year, cc.iteration, cc.status, cc.pin, cc.created_at,
		       c.id, c.name, c.code, c.description, c.created_at
		FROM classes cc JOIN courses c ON c.id = cc.course_id
		ORDER BY cc.academic_year DESC, cc.semester, c.code
	`)
	if err != nil {
		return nil, fmt.Errorf("list classes: %w", err)
	}
	defer rows.Close()

	var classes []CourseClass
	for rows.Next() {
		cc, err := scanClassRows(rows)
		if err != nil {
			return nil, err
		}
		classes = append(classes, *cc)
	}
	return classes, rows.Err()
}

// MarkClassStarted bumps the iteration counter and activates the class. Runs
// inside the session-start transaction.
func (r *Repository) MarkClassStarted(ctx context.Context, q Querier, classID int64) error {
	_, err := q.ExecContext(ctx, `
		UPDATE classes SET iteration = iteration + 1, status = $2
		WHERE id = $1
	`, classID, ClassActive)
	if err != nil {
		return fmt.Errorf("mark class started: %w", err)
	}
	return nil
}

func scanClass(row *sql.Row) (*CourseClass, error) {
	var cc CourseClass
	var course Course
	err := row.Scan(
		&cc.ID, &cc.CourseID, &cc.Semester, &cc.AcademicYear, &cc.Iteration, &cc.Status, &cc.PIN, &cc.CreatedAt,
		&course.ID, &course.Name, &course.Code, &course.Description, &course.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan class: %w", err)
	}
	cc.Course = &course
	return &cc, nil
}

func scanClassRows(rows *sql.Rows) (*CourseClass, error) {
	var cc CourseClass
	var course Course
	err := rows.Scan(
		&cc.ID, &cc.CourseID, &cc.Semester, &cc.AcademicYear, &cc.Iteration, &cc.Status, &cc.PIN, &cc.CreatedAt,
		&course.ID, &course.Name, &course.Code, &course.Description, &course.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("scan class: %w", err)
	}
	cc.Course = &course
	return &cc, nil
}

// UpdateClass applies changes to a class. The iteration counter only moves
// through MarkClassStarted. Returns false when the class is missing.
func (r *Repository) UpdateClass(ctx context.Context, cc *CourseClass) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE classes SET semester = $2, academic_year = $3, status = $4, pin = $5
		WHERE id = $1
	`, cc.ID, cc.Semester, cc.AcademicYear, cc.Status, cc.PIN)
	if err != nil {
		return false, fmt.Errorf("update class: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// DeleteClass removes a class. Returns false when it is missing.
func (r *Repository) DeleteClass(ctx context.Context, id int64) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM classes WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("delete class: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// ---------- teaching ----------

// AssignTeaching links a professor to a class.
func (r *Repository) AssignTeaching(ctx context.Context, t *Teaching) error {
	if t.Status == "" {
		t.Status = TeachingAssigned
	}
	if t.Role == "" {
		t.Role = "lecturer"
	}
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO teaching (professor_id, class_id, role, status, taught_sessions)
		VALUES ($1, $2, $3, $4, 0)
		RETURNING id
	`, t.ProfessorID, t.ClassID, t.Role, t.Status)
	if err := row.Scan(&t.ID); err != nil {
		return fmt.Errorf("assign teaching: %w", err)
	}
	return nil
}

// TeachingAssignment reports whether the professor is assigned to teach the class.
func (r *Repository) TeachingAssignment(ctx context.Context, q Querier, professorID, classID int64) (bool, error) {
	var id int64
	err := q.QueryRowContext(ctx, `
		SELECT id FROM teaching
		WHERE professor_id = $1 AND class_id = $2 AND status = $3
	`, professorID, classID, TeachingAssigned).Scan(&id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("teaching assignment: %w", err)
	}
	return true, nil
}

// IncrementTaughtSessions bumps a professor's taught-session counter for a class.
func (r *Repository) IncrementTaughtSessions(ctx context.Context, q Querier, professorID, classID int64) error {
	_, err := q.ExecContext(ctx, `
		UPDATE teaching SET taught_sessions = taught_sessions + 1
		WHERE professor_id = $1 AND class_id = $2
	`, professorID, classID)
	if err != nil {
		return fmt.Errorf("increment taught sessions: %w", err)
	}
	return nil
}

// ProfessorsByClass lists professors assigned to a class.
func (r *Repository) ProfessorsByClass(ctx context.Context, classID int64) ([]Professor, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT p.id, p.user_id, p.name, p.code, p.created_at
		FROM teaching t JOIN professors p ON p.id = t.professor_id
		WHERE t.class_id = $1
		ORDER BY p.code
	`, classID)
	if err != nil {
		return nil, fmt.Errorf("professors by class: %w", err)
	}
	defer rows.Close()

	var professors []Professor
	for rows.Next() {
		var p Professor
		if err := rows.Scan(&p.ID, &p.UserID, &p.Name, &p.Code, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan professor: %w", err)
		}
		professors = append(professors, p)
	}
	return professors, rows.Err()
}

// ---------- enrollment ----------

// Enroll registers a student in a class.
func (r *Repository) Enroll(ctx context.Context, e *Enrollment) error {
	if e.Status == "" {
		e.Status = "enrolled"
	}
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO enrollments (student_id, class_id, status, attended_sessions)
		VALUES ($1, $2, $3, 0)
		RETURNING id
	`, e.StudentID, e.ClassID, e.Status)
	if err := row.Scan(&e.ID); err != nil {
		return fmt.Errorf("enroll: %w", err)
	}
	return nil
}

// IsEnrolled reports whether the student is registered in the class.
func (r *Repository) IsEnrolled(ctx context.Context, q Querier, studentID, classID int64) (bool, error) {
	var id int64
	err := q.QueryRowContext(ctx, `
		SELECT id FROM enrollments
		WHERE student_id = $1 AND class_id = $2
	`, studentID, classID).Scan(&id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("is enrolled: %w", err)
	}
	return true, nil
}

// IncrementAttendedSessions bumps the student's semester attendance counter.
// Runs inside the check-in transaction.
func (r *Repository) IncrementAttendedSessions(ctx context.Context, q Querier, studentID, classID int64) error {
	_, err := q.ExecContext(ctx, `
		UPDATE enrollments SET attended_sessions = attended_sessions + 1
		WHERE student_id = $1 AND class_id = $2
	`, studentID, classID)
	if err != nil {
		return fmt.Errorf("increment attended sessions: %w", err)
	}
	return nil
}

// StudentsByClass lists students enrolled in a class.
func (r *Repository) StudentsByClass(ctx context.Context, classID int64) ([]Student, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT s.id, s.user_id, s.name, s.code, s.email, s.created_at
		FROM enrollments e JOIN students s ON s.id = e.student_id
		WHERE e.class_id = $1
		ORDER BY s.code
	`, classID)
	if err != nil {
		return nil, fmt.Errorf("students by class: %w", err)
	}
	defer rows.Close()

	var students []Student
	for rows.Next() {
		var st Student
		if err := rows.Scan(&st.ID, &st.UserID, &st.Name, &st.Code, &st.Email, &st.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan student: %w", err)
		}
		students = append(students, st)
	}
	return students, rows.Err()
}

// ---------- exams ----------

// CreateExam schedules an exam for a class.
func (r *Repository) CreateExam(ctx context.Context, e *Exam) error {
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO exams (class_id, name, exam_at, classroom_id)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`, e.ClassID, e.Name, e.ExamAt, e.ClassroomID)
	if err := row.Scan(&e.ID, &e.CreatedAt); err != nil {
		return fmt.Errorf("create exam: %w", err)
	}
	return nil
}

// UpdateExam applies changes to an exam. Returns false when it is missing.
func (r *Repository) UpdateExam(ctx context.Context, e *Exam) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE exams SET name = $2, exam_at = $3, classroom_id = $4
		WHERE id = $1
	`, e.ID, e.Name, e.ExamAt, e.ClassroomID)
	if err != nil {
		return false, fmt.Errorf("update exam: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// DeleteExam removes an exam and its results. Returns false when it is
// missing.
func (r *Repository) DeleteExam(ctx context.Context, id int64) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM exams WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("delete exam: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// ListExams returns exams, optionally filtered by class.
func (r *Repository) ListExams(ctx context.Context, classID int64) ([]Exam, error) {
	query := `
		SELECT id, class_id, name, exam_at, classroom_id, created_at
		FROM exams
	`
	args := []any{}
	if classID > 0 {
		query += ` WHERE class_id = $1`
		args = append(args, classID)
	}
	query += ` ORDER BY exam_at`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list exams: %w", err)
	}
	defer rows.Close()

	var exams []Exam
	for rows.Next() {
		var e Exam
		if err := rows.Scan(&e.ID, &e.ClassID, &e.Name, &e.ExamAt, &e.ClassroomID, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan exam: %w", err)
		}
		exams = append(exams, e)
	}
	return exams, rows.Err()
}

// RecordExamResult upserts a student's grade for an exam.
func (r *Repository) RecordExamResult(ctx context.Context, res *ExamResult) error {
	if res.Status == "" {
		res.Status = "graded"
	}
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO exam_results (exam_id, student_id, grade, status)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (exam_id, student_id) DO UPDATE SET
			grade = EXCLUDED.grade,
			status = EXCLUDED.status
		RETURNING id
	`, res.ExamID, res.StudentID, res.Grade, res.Status)
	if err := row.Scan(&res.ID); err != nil {
		return fmt.Errorf("record exam result: %w", err)
	}
	return nil
}

// ExamResults lists all results for an exam.
func (r *Repository) ExamResults(ctx context.Context, examID int64) ([]ExamResult, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, exam_id, student_id, grade, status
		FROM exam_results WHERE exam_id = $1
		ORDER BY student_id
	`, examID)
	if err != nil {
		return nil, fmt.Errorf("exam results: %w", err)
	}
	defer rows.Close()

	var results []ExamResult
	for rows.Next() {
		var res ExamResult
		if err := rows.Scan(&res.ID, &res.ExamID, &res.StudentID, &res.Grade, &res.Status); err != nil {
			return nil, fmt.Errorf("scan exam result: %w", err)
		}
		results = append(results, res)
	}
	return results, rows.Err()
}

// DB exposes the underlying handle for lookups outside any transaction.
func (r *Repository) DB() Querier {
	return r.db
}
