package academics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"campus/internal/domain"
	"campus/internal/httpapi"
)

// Handler exposes the academic CRUD endpoints. Plain persistence, no domain
// invariants beyond referential checks.
type Handler struct {
	repo *Repository
}

// NewHandler creates the handler.
func NewHandler(repo *Repository) *Handler {
	return &Handler{repo: repo}
}

// Register mounts the routes on the given group.
func (h *Handler) Register(g *gin.RouterGroup) {
	g.GET("/courses", h.ListCourses)
	g.POST("/courses", h.CreateCourse)
	g.GET("/courses/:id", h.GetCourse)
	g.PUT("/courses/:id", h.UpdateCourse)
	g.DELETE("/courses/:id", h.DeleteCourse)

	g.GET("/classes", h.ListClasses)
	g.POST("/classes", h.CreateClass)
	g.GET("/classes/:id", h.GetClass)
	g.PUT("/classes/:id", h.UpdateClass)
	g.DELETE("/classes/:id", h.DeleteClass)
	g.GET("/classes/:id/professors", h.ClassProfessors)
	g.GET("/classes/:id/students", h.ClassStudents)

	g.GET("/students", h.ListStudents)
	g.POST("/students", h.CreateStudent)
	g.PUT("/students/:id", h.UpdateStudent)
	g.DELETE("/students/:id", h.DeleteStudent)
	g.GET("/professors", h.ListProfessors)
	g.POST("/professors", h.CreateProfessor)
	g.PUT("/professors/:id", h.UpdateProfessor)
	g.DELETE("/professors/:id", h.DeleteProfessor)

	g.POST("/teaching", h.AssignTeaching)
	g.POST("/enrollments", h.Enroll)

	g.GET("/exams", h.ListExams)
	g.POST("/exams", h.CreateExam)
	g.PUT("/exams/:id", h.UpdateExam)
	g.DELETE("/exams/:id", h.DeleteExam)
	g.POST("/exams/:id/results", h.RecordResult)
	g.GET("/exams/:id/results", h.ExamResults)
}

func idParam(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		httpapi.BadRequest(c, errInvalidID)
		return 0, false
	}
	return id, true
}

var errInvalidID = &domain.Error{Kind: domain.KindValidation, Field: "id", Message: "invalid id"}

// ---------- courses ----------

func (h *Handler) ListCourses(c *gin.Context) {
	courses, err := h.repo.ListCourses(c.Request.Context())
	if err != nil {
		httpapi.Error(c, err)
		return
	}
	httpapi.Data(c, http.StatusOK, courses)
}

type courseRequest struct {
	Name        string  `json:"name" binding:"required"`
	Code        string  `json:"code" binding:"required"`
	Description *string `json:"description"`
}

func (h *Handler) CreateCourse(c *gin.Context) {
	var req courseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpapi.BadRequest(c, err)
		return
	}
	course := &Course{Name: req.Name, Code: req.Code, Description: req.Description}
	if err := h.repo.CreateCourse(c.Request.Context(), course); err != nil {
		httpapi.Error(c, err)
		return
	}
	httpapi.Message(c, http.StatusCreated, "Course created.", course)
}

func (h *Handler) GetCourse(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	course, err := h.repo.GetCourse(c.Request.Context(), id)
	if err != nil {
		httpapi.Error(c, err)
		return
	}
	if course == nil {
		httpapi.Error(c, domain.NotFound("course not found"))
		return
	}
	httpapi.Data(c, http.StatusOK, course)
}

func (h *Handler) UpdateCourse(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	var req courseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpapi.BadRequest(c, err)
		return
	}
	course := &Course{ID: id, Name: req.Name, Code: req.Code, Description: req.Description}
	found, err := h.repo.UpdateCourse(c.Request.Context(), course)
	if err != nil {
		httpapi.Error(c, err)
		return
	}
	if !found {
		httpapi.Error(c, domain.NotFound("course not found"))
		return
	}
	httpapi.Message(c, http.StatusOK, "Course updated.", course)
}

func (h *Handler) DeleteCourse(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	found, err := h.repo.DeleteCourse(c.Request.Context(), id)
	if err != nil {
		httpapi.Error(c, err)
		return
	}
	if !found {
		httpapi.Error(c, domain.NotFound("course not found"))
		return
	}
	c.Status(http.StatusNoContent)
}

// ---------- classes ----------

func (h *Handler) ListClasses(c *gin.Context) {
	classes, err := h.repo.ListClasses(c.Request.Context())
	if err != nil {
		httpapi.Error(c, err)
		return
	}
	httpapi.Data(c, http.StatusOK, classes)
}

type classRequest struct {
	CourseID     int64  `json:"course_id" binding:"required"`
	Semester     string `json:"semester" binding:"required"`
	AcademicYear string `json:"academic_year" binding:"required"`
	PIN          string `json:"pin" binding:"required,min=4"`
}

func (h *Handler) CreateClass(c *gin.Context) {
	var req classRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpapi.BadRequest(c, err)
		return
	}
	course, err := h.repo.GetCourse(c.Request.Context(), req.CourseID)
	if err != nil {
		httpapi.Error(c, err)
		return
	}
	if course == nil {
		httpapi.Error(c, domain.Validation("course_id", "course does not exist"))
		return
	}
	cc := &CourseClass{
		CourseID:     req.CourseID,
		Semester:     req.Semester,
		AcademicYear: req.AcademicYear,
		PIN:          req.PIN,
	}
	if err := h.repo.CreateClass(c.Request.Context(), cc); err != nil {
		httpapi.Error(c, err)
		return
	}
	cc.Course = course
	httpapi.Message(c, http.StatusCreated, "Class created.", cc)
}

func (h *Handler) GetClass(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	cc, err := h.repo.GetClass(c.Request.Context(), h.repo.DB(), id)
	if err != nil {
		httpapi.Error(c, err)
		return
	}
	if cc == nil {
		httpapi.Error(c, domain.NotFound("class not found"))
		return
	}
	httpapi.Data(c, http.StatusOK, cc)
}

type classUpdateRequest struct {
	Semester     string `json:"semester" binding:"required"`
	AcademicYear string `json:"academic_year" binding:"required"`
	Status       string `json:"status" binding:"required"`
	PIN          string `json:"pin" binding:"required,min=4"`
}

func (h *Handler) UpdateClass(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	var req classUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpapi.BadRequest(c, err)
		return
	}
	if !validClassStatus(req.Status) {
		httpapi.Error(c, domain.Validation("status", "status must be planned, active, finished or cancelled"))
		return
	}
	cc := &CourseClass{
		ID:           id,
		Semester:     req.Semester,
		AcademicYear: req.AcademicYear,
		Status:       req.Status,
		PIN:          req.PIN,
	}
	found, err := h.repo.UpdateClass(c.Request.Context(), cc)
	if err != nil {
		httpapi.Error(c, err)
		return
	}
	if !found {
		httpapi.Error(c, domain.NotFound("class not found"))
		return
	}
	httpapi.Message(c, http.StatusOK, "Class updated.", cc)
}

func validClassStatus(status string) bool {
	switch status {
	case ClassPlanned, ClassActive, ClassFinished, ClassCancelled:
		return true
	}
	return false
}

func (h *Handler) DeleteClass(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	found, err := h.repo.DeleteClass(c.Request.Context(), id)
	if err != nil {
		httpapi.Error(c, err)
		return
	}
	if !found {
		httpapi.Error(c, domain.NotFound("class not found"))
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) ClassProfessors(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	professors, err := h.repo.ProfessorsByClass(c.Request.Context(), id)
	if err != nil {
		httpapi.Error(c, err)
		return
	}
	httpapi.Data(c, http.StatusOK, professors)
}

func (h *Handler) ClassStudents(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	students, err := h.repo.StudentsByClass(c.Request.Context(), id)
	if err != nil {
		httpapi.Error(c, err)
		return
	}
	httpapi.Data(c, http.StatusOK, students)
}

// ---------- students / professors ----------

func (h *Handler) ListStudents(c *gin.Context) {
	students, err := h.repo.ListStudents(c.Request.Context())
	if err != nil {
		httpapi.Error(c, err)
		return
	}
	httpapi.Data(c, http.StatusOK, students)
}

type studentRequest struct {
	Name  string  `json:"name" binding:"required"`
	Code  string  `json:"code" binding:"required"`
	Email *string `json:"email"`
}

func (h *Handler) CreateStudent(c *gin.Context) {
	var req studentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpapi.BadRequest(c, err)
		return
	}
	st := &Student{Name: req.Name, Code: req.Code, Email: req.Email}
	if err := h.repo.CreateStudent(c.Request.Context(), st); err != nil {
		httpapi.Error(c, err)
		return
	}
	httpapi.Message(c, http.StatusCreated, "Student created.", st)
}

func (h *Handler) UpdateStudent(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	var req studentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpapi.BadRequest(c, err)
		return
	}
	st := &Student{ID: id, Name: req.Name, Code: req.Code, Email: req.Email}
	found, err := h.repo.UpdateStudent(c.Request.Context(), st)
	if err != nil {
		httpapi.Error(c, err)
		return
	}
	if !found {
		httpapi.Error(c, domain.NotFound("student not found"))
		return
	}
	httpapi.Message(c, http.StatusOK, "Student updated.", st)
}

func (h *Handler) DeleteStudent(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	found, err := h.repo.DeleteStudent(c.Request.Context(), id)
	if err != nil {
		httpapi.Error(c, err)
		return
	}
	if !found {
		httpapi.Error(c, domain.NotFound("student not found"))
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) ListProfessors(c *gin.Context) {
	professors, err := h.repo.ListProfessors(c.Request.Context())
	if err != nil {
		httpapi.Error(c, err)
		return
	}
	httpapi.Data(c, http.StatusOK, professors)
}

type professorRequest struct {
	Name string `json:"name" binding:"required"`
	Code string `json:"code" binding:"required"`
}

func (h *Handler) CreateProfessor(c *gin.Context) {
	var req professorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpapi.BadRequest(c, err)
		return
	}
	p := &Professor{Name: req.Name, Code: req.Code}
	if err := h.repo.CreateProfessor(c.Request.Context(), p); err != nil {
		httpapi.Error(c, err)
		return
	}
	httpapi.Message(c, http.StatusCreated, "Professor created.", p)
}

func (h *Handler) UpdateProfessor(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	var req professorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpapi.BadRequest(c, err)
		return
	}
	p := &Professor{ID: id, Name: req.Name, Code: req.Code}
	found, err := h.repo.UpdateProfessor(c.Request.Context(), p)
	if err != nil {
		httpapi.Error(c, err)
		return
	}
	if !found {
		httpapi.Error(c, domain.NotFound("professor not found"))
		return
	}
	httpapi.Message(c, http.StatusOK, "Professor updated.", p)
}

func (h *Handler) DeleteProfessor(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	found, err := h.repo.DeleteProfessor(c.Request.Context(), id)
	if err != nil {
		httpapi.Error(c, err)
		return
	}
	if !found {
		httpapi.Error(c, domain.NotFound("professor not found"))
		return
	}
	c.Status(http.StatusNoContent)
}

// ---------- teaching / enrollment ----------

type teachingRequest struct {
	ProfessorID int64  `json:"professor_id" binding:"required"`
	ClassID     int64  `json:"class_id" binding:"required"`
	Role        string `json:"role"`
}

func (h *Handler) AssignTeaching(c *gin.Context) {
	var req teachingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpapi.BadRequest(c, err)
		return
	}
	t := &Teaching{ProfessorID: req.ProfessorID, ClassID: req.ClassID, Role: req.Role}
	if err := h.repo.AssignTeaching(c.Request.Context(), t); err != nil {
		httpapi.Error(c, err)
		return
	}
	httpapi.Message(c, http.StatusCreated, "Teaching assignment created.", t)
}

type enrollRequest struct {
	StudentID int64 `json:"student_id" binding:"required"`
	ClassID   int64 `json:"class_id" binding:"required"`
}

func (h *Handler) Enroll(c *gin.Context) {
	var req enrollRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpapi.BadRequest(c, err)
		return
	}
	e := &Enrollment{StudentID: req.StudentID, ClassID: req.ClassID}
	if err := h.repo.Enroll(c.Request.Context(), e); err != nil {
		httpapi.Error(c, err)
		return
	}
	httpapi.Message(c, http.StatusCreated, "Student enrolled.", e)
}

// ---------- exams ----------

func (h *Handler) ListExams(c *gin.Context) {
	var classID int64
	if v := c.Query("class_id"); v != "" {
		parsed, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			httpapi.BadRequest(c, err)
			return
		}
		classID = parsed
	}
	exams, err := h.repo.ListExams(c.Request.Context(), classID)
	if err != nil {
		httpapi.Error(c, err)
		return
	}
	httpapi.Data(c, http.StatusOK, exams)
}

type examRequest struct {
	ClassID     int64     `json:"class_id" binding:"required"`
	Name        string    `json:"name" binding:"required"`
	ExamAt      time.Time `json:"exam_at" binding:"required"`
	ClassroomID *int64    `json:"classroom_id"`
}

func (h *Handler) CreateExam(c *gin.Context) {
	var req examRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpapi.BadRequest(c, err)
		return
	}
	e := &Exam{ClassID: req.ClassID, Name: req.Name, ExamAt: req.ExamAt, ClassroomID: req.ClassroomID}
	if err := h.repo.CreateExam(c.Request.Context(), e); err != nil {
		httpapi.Error(c, err)
		return
	}
	httpapi.Message(c, http.StatusCreated, "Exam scheduled.", e)
}

type examUpdateRequest struct {
	Name        string    `json:"name" binding:"required"`
	ExamAt      time.Time `json:"exam_at" binding:"required"`
	ClassroomID *int64    `json:"classroom_id"`
}

func (h *Handler) UpdateExam(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	var req examUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpapi.BadRequest(c, err)
		return
	}
	e := &Exam{ID: id, Name: req.Name, ExamAt: req.ExamAt, ClassroomID: req.ClassroomID}
	found, err := h.repo.UpdateExam(c.Request.Context(), e)
	if err != nil {
		httpapi.Error(c, err)
		return
	}
	if !found {
		httpapi.Error(c, domain.NotFound("exam not found"))
		return
	}
	httpapi.Message(c, http.StatusOK, "Exam updated.", e)
}

func (h *Handler) DeleteExam(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	found, err := h.repo.DeleteExam(c.Request.Context(), id)
	if err != nil {
		httpapi.Error(c, err)
		return
	}
	if !found {
		httpapi.Error(c, domain.NotFound("exam not found"))
		return
	}
	c.Status(http.StatusNoContent)
}

type resultRequest struct {
	StudentID int64   `json:"student_id" binding:"required"`
	Grade     float64 `json:"grade" binding:"required"`
	Status    string  `json:"status"`
}

func (h *Handler) RecordResult(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	var req resultRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpapi.BadRequest(c, err)
		return
	}
	res := &ExamResult{ExamID: id, StudentID: req.StudentID, Grade: req.Grade, Status: req.Status}
	if err := h.repo.RecordExamResult(c.Request.Context(), res); err != nil {
		httpapi.Error(c, err)
		return
	}
	httpapi.Message(c, http.StatusCreated, "Result recorded.", res)
}

func (h *Handler) ExamResults(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	results, err := h.repo.ExamResults(c.Request.Context(), id)
	if err != nil {
		httpapi.Error(c, err)
		return
	}
	httpapi.Data(c, http.StatusOK, results)
}
