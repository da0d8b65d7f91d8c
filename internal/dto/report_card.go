package dto

// SubmitReportCardRequest is a teacher's rating of a student.
type SubmitReportCardRequest struct {
	StudentID string  `json:"studentId" validate:"required"`
	TeacherID string  `json:"teacherId" validate:"required"`
	Rating    int     `json:"rating" validate:"min=1,max=5"`
	Comments  *string `json:"comments" validate:"omitempty,max=2000"`
	Date      string  `json:"date" validate:"omitempty,datetime=2006-01-02"`
}
