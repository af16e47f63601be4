package models

import "time"

// TimetableSlot is one published timetable entry: a class taught in a
// numbered period of the school day. TeacherID is a weak reference and is
// cleared when the referenced teacher is deleted.
type TimetableSlot struct {
	ID        string    `db:"id" json:"id"`
	ClassName string    `db:"class_name" json:"class_name"`
	Period    int       `db:"period" json:"period"`
	TeacherID *string   `db:"teacher_id" json:"teacher_id,omitempty"`
	Subject   string    `db:"subject" json:"subject"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// TimetableFilter captures filtering options for listing slots.
type TimetableFilter struct {
	Period    int
	TeacherID string
	ClassName string
	Page      int
	PageSize  int
}
