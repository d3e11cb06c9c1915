package tasks

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var base = time.Date(2025, 6, 2, 6, 0, 0, 0, time.UTC)

func storeFactories() map[string]func(t *testing.T) Store {
	return map[string]func(t *testing.T) Store{
		"memory": func(t *testing.T) Store { return NewMemoryStore() },
		"sqlite": func(t *testing.T) Store {
			s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "tasks.db"))
			require.NoError(t, err)
			t.Cleanup(func() { s.Close() })
			return s
		},
	}
}

func newTask(id string, status Status, due time.Time) *Task {
	return &Task{
		ID:            id,
		EmployeeName:  "Employee " + id,
		EmployeeEmail: id + "@acme.test",
		TemplateName:  "Annual Conflict of Interest",
		Status:        status,
		DueDate:       due,
		CreatedAt:     base.Add(-30 * 24 * time.Hour),
		AccessToken:   "token-" + id,
	}
}

func TestStore_CreateGetList(t *testing.T) {
	for name, factory := range storeFactories() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := factory(t)

			require.NoError(t, s.Create(ctx, []*Task{
				newTask("b", StatusOutstanding, base.Add(48*time.Hour)),
				newTask("a", StatusOutstanding, base.Add(24*time.Hour)),
				newTask("c", StatusSubmitted, base.Add(-24*time.Hour)),
			}))

			got, err := s.Get(ctx, "a")
			require.NoError(t, err)
			assert.Equal(t, "a@acme.test", got.EmployeeEmail)
			assert.True(t, got.DueDate.Equal(base.Add(24*time.Hour)))
			assert.Equal(t, "token-a", got.AccessToken)
			assert.Nil(t, got.LastReminderAt)

			_, err = s.Get(ctx, "missing")
			assert.ErrorIs(t, err, ErrNotFound)

			all, err := s.List(ctx, Filter{})
			require.NoError(t, err)
			require.Len(t, all, 3)
			assert.Equal(t, []string{"c", "a", "b"}, ids(all))

			open, err := s.List(ctx, Filter{Status: []Status{StatusOutstanding, StatusOverdue}})
			require.NoError(t, err)
			assert.Equal(t, []string{"a", "b"}, ids(open))

			mine, err := s.List(ctx, Filter{EmployeeEmail: "b@acme.test"})
			require.NoError(t, err)
			assert.Equal(t, []string{"b"}, ids(mine))
		})
	}
}

func TestStore_MarkOverdue(t *testing.T) {
	for name, factory := range storeFactories() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := factory(t)
			require.NoError(t, s.Create(ctx, []*Task{
				newTask("late", StatusOutstanding, base.Add(-time.Hour)),
				newTask("future", StatusOutstanding, base.Add(time.Hour)),
				newTask("done", StatusSubmitted, base.Add(-time.Hour)),
				newTask("already", StatusOverdue, base.Add(-48*time.Hour)),
			}))

			n, err := s.MarkOverdue(ctx, base)
			require.NoError(t, err)
			assert.Equal(t, 1, n)

			late, err := s.Get(ctx, "late")
			require.NoError(t, err)
			assert.Equal(t, StatusOverdue, late.Status)

			done, err := s.Get(ctx, "done")
			require.NoError(t, err)
			assert.Equal(t, StatusSubmitted, done.Status)

			n, err = s.MarkOverdue(ctx, base)
			require.NoError(t, err)
			assert.Zero(t, n)
		})
	}
}

func TestStore_DueForReminder(t *testing.T) {
	for name, factory := range storeFactories() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := factory(t)
			recent := base.Add(-2 * time.Hour)
			old := base.Add(-48 * time.Hour)

			remindedRecently := newTask("recent", StatusOutstanding, base.Add(time.Hour))
			remindedRecently.LastReminderAt = &recent
			remindedLongAgo := newTask("old", StatusOverdue, base.Add(-time.Hour))
			remindedLongAgo.LastReminderAt = &old

			require.NoError(t, s.Create(ctx, []*Task{
				newTask("near", StatusOutstanding, base.Add(24*time.Hour)),
				newTask("far", StatusOutstanding, base.Add(10*24*time.Hour)),
				newTask("submitted", StatusSubmitted, base.Add(time.Hour)),
				remindedRecently,
				remindedLongAgo,
			}))

			due, err := s.DueForReminder(ctx, base.Add(72*time.Hour), base.Add(-20*time.Hour))
			require.NoError(t, err)
			assert.Equal(t, []string{"old", "near"}, ids(due))

			require.NoError(t, s.RecordReminder(ctx, "near", base))
			due, err = s.DueForReminder(ctx, base.Add(72*time.Hour), base.Add(-20*time.Hour))
			require.NoError(t, err)
			assert.Equal(t, []string{"old"}, ids(due))

			assert.ErrorIs(t, s.RecordReminder(ctx, "missing", base), ErrNotFound)
		})
	}
}

func TestStore_Submit(t *testing.T) {
	for name, factory := range storeFactories() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := factory(t)
			require.NoError(t, s.Create(ctx, []*Task{newTask("a", StatusOverdue, base.Add(-time.Hour))}))

			got, err := s.Submit(ctx, "a", base)
			require.NoError(t, err)
			assert.Equal(t, StatusSubmitted, got.Status)
			require.NotNil(t, got.SubmittedAt)
			assert.True(t, got.SubmittedAt.Equal(base))

			_, err = s.Submit(ctx, "a", base)
			assert.ErrorIs(t, err, ErrAlreadySubmitted)

			_, err = s.Submit(ctx, "missing", base)
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestWithPragmas(t *testing.T) {
	assert.Equal(t,
		"/var/lib/declarify/tasks.db?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)",
		withPragmas("/var/lib/declarify/tasks.db"))
	assert.Equal(t,
		"file:tasks.db?cache=shared&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)",
		withPragmas("file:tasks.db?cache=shared"))
}

func TestSQLiteStore_PragmasOnEveryConnection(t *testing.T) {
	ctx := context.Background()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "tasks.db"))
	require.NoError(t, err)
	defer s.Close()

	// Holding each connection open forces the pool to dial a new one.
	for i := 0; i < 3; i++ {
		conn, err := s.db.Conn(ctx)
		require.NoError(t, err)
		defer conn.Close()

		var timeout int
		require.NoError(t, conn.QueryRowContext(ctx, "PRAGMA busy_timeout").Scan(&timeout))
		assert.Equal(t, 5000, timeout, "connection %d", i)

		var mode string
		require.NoError(t, conn.QueryRowContext(ctx, "PRAGMA journal_mode").Scan(&mode))
		assert.Equal(t, "wal", mode, "connection %d", i)
	}
}

func TestSQLiteStore_ConcurrentWriters(t *testing.T) {
	ctx := context.Background()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "tasks.db"))
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Create(ctx, []*Task{newTask("seed", StatusOutstanding, base.Add(time.Hour))}))

	var wg sync.WaitGroup
	errs := make(chan error, 40)
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("t%02d", i)
			errs <- s.Create(ctx, []*Task{newTask(id, StatusOutstanding, base.Add(time.Hour))})
		}(i)
		go func(i int) {
			defer wg.Done()
			errs <- s.RecordReminder(ctx, "seed", base.Add(time.Duration(i)*time.Minute))
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		assert.NoError(t, err)
	}

	all, err := s.List(ctx, Filter{})
	require.NoError(t, err)
	assert.Len(t, all, 21)
}

func TestMemoryStore_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	orig := newTask("a", StatusOutstanding, base)
	require.NoError(t, s.Create(ctx, []*Task{orig}))

	orig.Status = StatusReviewed
	got, err := s.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, StatusOutstanding, got.Status)

	got.EmployeeName = "changed"
	again, err := s.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "Employee a", again.EmployeeName)
}

func TestMemoryStore_ConcurrentAccess(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := string(rune('a' + i))
			_ = s.Create(ctx, []*Task{newTask(id, StatusOutstanding, base.Add(-time.Hour))})
			_, _ = s.MarkOverdue(ctx, base)
			_, _ = s.List(ctx, Filter{})
		}(i)
	}
	wg.Wait()

	overdue, err := s.List(ctx, Filter{Status: []Status{StatusOverdue}})
	require.NoError(t, err)
	assert.Len(t, overdue, 20)
}

func ids(ts []*Task) []string {
	out := make([]string, len(ts))
	for i, t := range ts {
		out[i] = t.ID
	}
	return out
}
