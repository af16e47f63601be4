package service

import (
	"sort"

	"github.com/noah-isme/relief-api/internal/models"
)

// AssignmentEngine selects relief teachers for vacated timetable periods.
// It is a pure query over the collections handed to it: no workload
// mutation happens here, which keeps the selection policy testable in
// isolation. Callers own the increment that follows a successful pick.
type AssignmentEngine struct{}

// NewAssignmentEngine constructs an AssignmentEngine.
func NewAssignmentEngine() *AssignmentEngine {
	return &AssignmentEngine{}
}

// OccupiedTeacherIDs returns the set of teacher ids already holding a slot
// in the given period. Those teachers cannot be double-booked for relief.
func (e *AssignmentEngine) OccupiedTeacherIDs(period int, slots []models.TimetableSlot) map[string]struct{} {
	occupied := make(map[string]struct{})
	for _, slot := range slots {
		if slot.Period != period || slot.TeacherID == nil || *slot.TeacherID == "" {
			continue
		}
		occupied[*slot.TeacherID] = struct{}{}
	}
	return occupied
}

// FindReplacement picks the relief teacher for one vacated period.
//
// Teachers already occupied in the period are excluded outright. Among the
// rest, teachers covering the vacated subject are preferred; when nobody
// free covers it, the whole free pool is considered instead. Subject match
// is a soft preference, not a hard filter. The working set is ordered by
// workload ascending with a stable sort, so ties fall back to the caller's
// collection order and the same inputs always produce the same pick.
//
// Returns nil when no free teacher exists at all. That is a normal outcome,
// not an error: relief shortages are routine.
func (e *AssignmentEngine) FindReplacement(period int, subject string, teachers []models.Teacher, slots []models.TimetableSlot) *models.Teacher {
	occupied := e.OccupiedTeacherIDs(period, slots)

	candidates := make([]*models.Teacher, 0, len(teachers))
	for i := range teachers {
		if _, busy := occupied[teachers[i].ID]; busy {
			continue
		}
		candidates = append(candidates, &teachers[i])
	}
	if len(candidates) == 0 {
		return nil
	}

	working := make([]*models.Teacher, 0, len(candidates))
	for _, t := range candidates {
		if t.TeachesSubject(subject) {
			working = append(working, t)
		}
	}
	if len(working) == 0 {
		working = candidates
	}

	sort.SliceStable(working, func(i, j int) bool {
		return working[i].WorkloadToday < working[j].WorkloadToday
	})

	return working[0]
}
