package models

import "time"

const (
	MinReportCardRating = 1
	MaxReportCardRating = 5
)

// ReportCard is a teacher's rating of a student. Immutable once stored.
type ReportCard struct {
	ID        string    `db:"id" json:"id"`
	StudentID string    `db:"student_id" json:"student_id"`
	TeacherID string    `db:"teacher_id" json:"teacher_id"`
	Rating    int       `db:"rating" json:"rating"`
	Comments  *string   `db:"comments" json:"comments,omitempty"`
	Date      time.Time `db:"date" json:"date"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
