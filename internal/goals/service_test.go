package goals

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/salespulse/salespulse/internal/shared"
)

type memoryRepo struct {
	goals  map[int64]Goal
	nextID int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{goals: make(map[int64]Goal), nextID: 1}
}

func (m *memoryRepo) FindByID(ctx context.Context, id int64) (*Goal, error) {
	g, ok := m.goals[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return &g, nil
}

func (m *memoryRepo) ListForUser(ctx context.Context, userID int64) ([]Goal, error) {
	var out []Goal
	for _, g := range m.goals {
		if g.UserID == userID {
			out = append(out, g)
		}
	}
	return out, nil
}

func (m *memoryRepo) Create(ctx context.Context, g *Goal) (*Goal, error) {
	g.ID = m.nextID
	m.nextID++
	g.CreatedAt = time.Now()
	m.goals[g.ID] = *g
	return g, nil
}

func (m *memoryRepo) Update(ctx context.Context, g *Goal) error {
	if _, ok := m.goals[g.ID]; !ok {
		return shared.ErrNotFound
	}
	m.goals[g.ID] = *g
	return nil
}

func (m *memoryRepo) Delete(ctx context.Context, id int64) error {
	if _, ok := m.goals[id]; !ok {
		return shared.ErrNotFound
	}
	delete(m.goals, id)
	return nil
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestCreateRequiresOwnerAndOrderedRange(t *testing.T) {
	svc := NewService(newMemoryRepo())

	_, err := svc.Create(context.Background(), Input{StartDate: day(2024, 1, 1), EndDate: day(2024, 1, 31)})
	require.ErrorIs(t, err, ErrUserRequired)

	_, err = svc.Create(context.Background(), Input{UserID: 1, StartDate: day(2024, 2, 1), EndDate: day(2024, 1, 1)})
	require.ErrorIs(t, err, ErrBadRange)
}

func TestCreateDefaultsPeriodType(t *testing.T) {
	svc := NewService(newMemoryRepo())

	goal, err := svc.Create(context.Background(), Input{
		UserID:        1,
		StartDate:     day(2024, 1, 1),
		EndDate:       day(2024, 1, 31),
		TargetRevenue: 50000,
		TargetDeals:   10,
	})
	require.NoError(t, err)
	require.Equal(t, shared.PeriodMonth, goal.PeriodType)
	require.NotZero(t, goal.ID)
}

func TestUpdateKeepsIdentity(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo)

	created, err := svc.Create(context.Background(), Input{
		UserID:    1,
		StartDate: day(2024, 1, 1),
		EndDate:   day(2024, 3, 31),
	})
	require.NoError(t, err)

	updated, err := svc.Update(context.Background(), created.ID, Input{
		UserID:        1,
		PeriodType:    shared.PeriodQuarter,
		StartDate:     day(2024, 4, 1),
		EndDate:       day(2024, 6, 30),
		TargetRevenue: 75000,
	})
	require.NoError(t, err)
	require.Equal(t, created.ID, updated.ID)
	require.Equal(t, shared.PeriodQuarter, updated.PeriodType)

	_, err = svc.Update(context.Background(), 99, Input{UserID: 1, StartDate: day(2024, 1, 1), EndDate: day(2024, 1, 2)})
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestDeleteMissingGoal(t *testing.T) {
	svc := NewService(newMemoryRepo())
	require.ErrorIs(t, svc.Delete(context.Background(), 7), shared.ErrNotFound)
}
