package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/relief-api/internal/models"
	appErrors "github.com/noah-isme/relief-api/pkg/errors"
)

type mockTimetableStore struct {
	items   map[string]*models.TimetableSlot
	deleted []string
}

func (m *mockTimetableStore) List(ctx context.Context, filter models.TimetableFilter) ([]models.TimetableSlot, int, error) {
	var out []models.TimetableSlot
	for _, s := range m.items {
		out = append(out, *s)
	}
	return out, len(out), nil
}

func (m *mockTimetableStore) ListAll(ctx context.Context) ([]models.TimetableSlot, error) {
	var out []models.TimetableSlot
	for _, s := range m.items {
		out = append(out, *s)
	}
	return out, nil
}

func (m *mockTimetableStore) FindByID(ctx context.Context, id string) (*models.TimetableSlot, error) {
	if s, ok := m.items[id]; ok {
		cp := *s
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockTimetableStore) Create(ctx context.Context, slot *models.TimetableSlot) error {
	if m.items == nil {
		m.items = make(map[string]*models.TimetableSlot)
	}
	if slot.ID == "" {
		slot.ID = "generated"
	}
	cp := *slot
	m.items[slot.ID] = &cp
	return nil
}

func (m *mockTimetableStore) Delete(ctx context.Context, id string) error {
	if _, ok := m.items[id]; !ok {
		return sql.ErrNoRows
	}
	delete(m.items, id)
	m.deleted = append(m.deleted, id)
	return nil
}

func TestTimetableServiceCreate(t *testing.T) {
	store := &mockTimetableStore{}
	svc := NewTimetableService(store, validator.New(), zap.NewNop())

	teacherID := "t1"
	slot, err := svc.Create(context.Background(), CreateSlotRequest{
		ClassName: "10A",
		Period:    3,
		TeacherID: &teacherID,
		Subject:   "Math",
	})

	require.NoError(t, err)
	assert.Equal(t, "10A", slot.ClassName)
	assert.Equal(t, 3, slot.Period)
	require.NotNil(t, slot.TeacherID)
	assert.Equal(t, "t1", *slot.TeacherID)
}

func TestTimetableServiceCreateVacantSlot(t *testing.T) {
	store := &mockTimetableStore{}
	svc := NewTimetableService(store, validator.New(), zap.NewNop())

	slot, err := svc.Create(context.Background(), CreateSlotRequest{
		ClassName: "10A",
		Period:    1,
		Subject:   "Math",
	})

	require.NoError(t, err)
	assert.Nil(t, slot.TeacherID)
}

func TestTimetableServiceCreateRejectsBadPeriod(t *testing.T) {
	svc := NewTimetableService(&mockTimetableStore{}, validator.New(), zap.NewNop())

	for _, period := range []int{0, -3} {
		_, err := svc.Create(context.Background(), CreateSlotRequest{
			ClassName: "10A",
			Period:    period,
			Subject:   "Math",
		})
		require.Error(t, err)
		assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
	}
}

func TestTimetableServiceDelete(t *testing.T) {
	store := &mockTimetableStore{items: map[string]*models.TimetableSlot{
		"s1": {ID: "s1", ClassName: "10A", Period: 1, Subject: "Math"},
	}}
	svc := NewTimetableService(store, validator.New(), zap.NewNop())

	require.NoError(t, svc.Delete(context.Background(), "s1"))
	assert.Empty(t, store.items)

	err := svc.Delete(context.Background(), "s1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}
