package models

import "time"

// ReliefOutcome distinguishes filled from unfilled relief periods.
type ReliefOutcome string

const (
	ReliefOutcomeAssigned ReliefOutcome = "ASSIGNED"
	ReliefOutcomeUnfilled ReliefOutcome = "UNFILLED"
)

// ReliefLogEntry is the auditable record of one period's assignment attempt
// during leave approval. Unfilled periods are recorded too; a shortage is a
// normal outcome in this domain, not an error.
type ReliefLogEntry struct {
	ID                  string        `db:"id" json:"id"`
	LeaveID             string        `db:"leave_id" json:"leave_id"`
	Date                string        `db:"date" json:"date"`
	ClassName           string        `db:"class_name" json:"class_name"`
	Period              int           `db:"period" json:"period"`
	Subject             string        `db:"subject" json:"subject"`
	Outcome             ReliefOutcome `db:"outcome" json:"outcome"`
	AssignedTeacherID   *string       `db:"assigned_teacher_id" json:"assigned_teacher_id,omitempty"`
	AssignedTeacherName *string       `db:"assigned_teacher_name" json:"assigned_teacher_name,omitempty"`
	Detail              string        `db:"detail" json:"detail"`
	CreatedAt           time.Time     `db:"created_at" json:"created_at"`
}

// ReliefLogFilter constrains relief log queries.
type ReliefLogFilter struct {
	LeaveID string
	Date    string
	Outcome ReliefOutcome
}

// PeriodAssignment is one per-period outcome inside an AssignmentReport.
type PeriodAssignment struct {
	Period              int           `json:"period"`
	ClassName           string        `json:"class_name"`
	Subject             string        `json:"subject"`
	Outcome             ReliefOutcome `json:"outcome"`
	AssignedTeacherID   string        `json:"assigned_teacher_id,omitempty"`
	AssignedTeacherName string        `json:"assigned_teacher_name,omitempty"`
	Detail              string        `json:"detail,omitempty"`
}

// AssignmentReport is the ordered result of approving a leave request.
// Entries appear in the same order as the request's period list.
type AssignmentReport struct {
	LeaveID     string             `json:"leave_id"`
	TeacherID   string             `json:"teacher_id"`
	Date        string             `json:"date"`
	Assignments []PeriodAssignment `json:"assignments"`
	Filled      int                `json:"filled"`
	Unfilled    int                `json:"unfilled"`
}

// ReliefSummary aggregates relief activity for a date.
type ReliefSummary struct {
	Date        string        `json:"date"`
	Assigned    int           `json:"assigned"`
	Unfilled    int           `json:"unfilled"`
	Workloads   []TeacherLoad `json:"workloads"`
	GeneratedAt time.Time     `json:"generated_at"`
}

// TeacherLoad pairs a teacher with the current relief workload counter.
type TeacherLoad struct {
	TeacherID string `db:"teacher_id" json:"teacher_id"`
	FullName  string `db:"full_name" json:"full_name"`
	Workload  int    `db:"workload_today" json:"workload"`
}
