package models

import (
	"time"

	"github.com/lib/pq"
)

// Teacher represents a relief-eligible staff member.
type Teacher struct {
	ID            string         `db:"id" json:"id"`
	FullName      string         `db:"full_name" json:"full_name"`
	Subjects      pq.StringArray `db:"subjects" json:"subjects"`
	Contact       string         `db:"contact" json:"contact"`
	WorkloadToday int            `db:"workload_today" json:"workload_today"`
	CreatedAt     time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time      `db:"updated_at" json:"updated_at"`
}

// TeachesSubject reports whether the teacher covers the given subject.
// Matching is exact and case-sensitive.
func (t *Teacher) TeachesSubject(subject string) bool {
	for _, s := range t.Subjects {
		if s == subject {
			return true
		}
	}
	return false
}

// TeacherFilter captures filtering options for listing teachers.
type TeacherFilter struct {
	Search    string
	Subject   string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
