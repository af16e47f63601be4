package models

import (
	"time"

	"github.com/lib/pq"
)

// LeaveStatus captures the lifecycle states of a leave request.
type LeaveStatus string

const (
	LeaveStatusPending  LeaveStatus = "PENDING"
	LeaveStatusApproved LeaveStatus = "APPROVED"
	LeaveStatusRejected LeaveStatus = "REJECTED"
)

// LeaveRequest records a teacher's request to be absent for one or more
// periods on a given date. Once the status leaves PENDING the request is
// immutable. TeacherID is a weak reference: it may point at a teacher that
// has since been deleted, and the assignment flow must tolerate that.
type LeaveRequest struct {
	ID        string        `db:"id" json:"id"`
	TeacherID string        `db:"teacher_id" json:"teacher_id"`
	Date      string        `db:"date" json:"date"`
	Periods   pq.Int64Array `db:"periods" json:"periods"`
	Reason    string        `db:"reason" json:"reason"`
	Status    LeaveStatus   `db:"status" json:"status"`
	DecidedBy *string       `db:"decided_by" json:"decided_by,omitempty"`
	DecidedAt *time.Time    `db:"decided_at" json:"decided_at,omitempty"`
	CreatedAt time.Time     `db:"created_at" json:"created_at"`
}

// LeaveFilter constrains leave listing queries.
type LeaveFilter struct {
	TeacherID string
	Status    LeaveStatus
	Date      string
	Page      int
	PageSize  int
}
