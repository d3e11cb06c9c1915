package tasks

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore persists tasks in a SQLite database file.
type SQLiteStore struct {
	db *sql.DB
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore opens (or creates) the database at dsn and applies the schema.
func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", withPragmas(dsn))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

// sqlitePragmas are applied by the driver to every pooled connection.
var sqlitePragmas = []string{"busy_timeout(5000)", "journal_mode(WAL)", "synchronous(NORMAL)"}

func withPragmas(dsn string) string {
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "_pragma=" + strings.Join(sqlitePragmas, "&_pragma=")
}

func (s *SQLiteStore) initSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS tasks (
			id TEXT PRIMARY KEY,
			employee_name TEXT NOT NULL,
			employee_email TEXT NOT NULL,
			manager_email TEXT NOT NULL DEFAULT '',
			template_name TEXT NOT NULL,
			status TEXT NOT NULL,
			due_date INTEGER NOT NULL,
			created_at INTEGER NOT NULL,
			submitted_at INTEGER,
			last_reminder_at INTEGER,
			access_token TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_status_due ON tasks(status, due_date)`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_employee ON tasks(employee_email)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to execute schema statement: %w", err)
		}
	}
	return nil
}

const taskColumns = `id, employee_name, employee_email, manager_email, template_name, status,
	due_date, created_at, submitted_at, last_reminder_at, access_token`

func (s *SQLiteStore) Create(ctx context.Context, tasks []*Task) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO tasks (`+taskColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, t := range tasks {
		_, err := stmt.ExecContext(ctx, t.ID, t.EmployeeName, t.EmployeeEmail, t.ManagerEmail,
			t.TemplateName, string(t.Status), toMillis(t.DueDate), toMillis(t.CreatedAt),
			nullMillis(t.SubmittedAt), nullMillis(t.LastReminderAt), t.AccessToken)
		if err != nil {
			return fmt.Errorf("failed to insert task %s: %w", t.ID, err)
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) Get(ctx context.Context, id string) (*Task, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id)
	t, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get task: %w", err)
	}
	return t, nil
}

func (s *SQLiteStore) List(ctx context.Context, f Filter) ([]*Task, error) {
	var (
		where []string
		args  []any
	)
	if len(f.Status) > 0 {
		where = append(where, "status IN ("+placeholders(len(f.Status))+")")
		for _, st := range f.Status {
			args = append(args, string(st))
		}
	}
	if f.EmployeeEmail != "" {
		where = append(where, "employee_email = ?")
		args = append(args, f.EmployeeEmail)
	}
	query := `SELECT ` + taskColumns + ` FROM tasks`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY due_date, id"
	return s.query(ctx, query, args...)
}

func (s *SQLiteStore) MarkOverdue(ctx context.Context, now time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE tasks SET status = ? WHERE status = ? AND due_date < ?`,
		string(StatusOverdue), string(StatusOutstanding), toMillis(now))
	if err != nil {
		return 0, fmt.Errorf("failed to mark overdue tasks: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count overdue tasks: %w", err)
	}
	return int(n), nil
}

func (s *SQLiteStore) DueForReminder(ctx context.Context, dueBefore, remindedBefore time.Time) ([]*Task, error) {
	return s.query(ctx, `SELECT `+taskColumns+` FROM tasks
		WHERE status IN (?, ?) AND due_date < ?
		AND (last_reminder_at IS NULL OR last_reminder_at < ?)
		ORDER BY due_date, id`,
		string(StatusOutstanding), string(StatusOverdue), toMillis(dueBefore), toMillis(remindedBefore))
}

func (s *SQLiteStore) RecordReminder(ctx context.Context, id string, at time.Time) error {
	res, err := s.db.ExecContext(ctx, `UPDATE tasks SET last_reminder_at = ? WHERE id = ?`, toMillis(at), id)
	if err != nil {
		return fmt.Errorf("failed to record reminder: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLiteStore) Submit(ctx context.Context, id string, at time.Time) (*Task, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE tasks SET status = ?, submitted_at = ? WHERE id = ? AND status IN (?, ?)`,
		string(StatusSubmitted), toMillis(at), id, string(StatusOutstanding), string(StatusOverdue))
	if err != nil {
		return nil, fmt.Errorf("failed to submit task: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		if _, err := s.Get(ctx, id); err != nil {
			return nil, err
		}
		return nil, ErrAlreadySubmitted
	}
	return s.Get(ctx, id)
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) query(ctx context.Context, query string, args ...any) ([]*Task, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query tasks: %w", err)
	}
	defer rows.Close()

	var out []*Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTask(sc scanner) (*Task, error) {
	var (
		t                     Task
		status                string
		due, created          int64
		submitted, remindedAt sql.NullInt64
	)
	err := sc.Scan(&t.ID, &t.EmployeeName, &t.EmployeeEmail, &t.ManagerEmail, &t.TemplateName,
		&status, &due, &created, &submitted, &remindedAt, &t.AccessToken)
	if err != nil {
		return nil, err
	}
	t.Status = Status(status)
	t.DueDate = fromMillis(due)
	t.CreatedAt = fromMillis(created)
	if submitted.Valid {
		v := fromMillis(submitted.Int64)
		t.SubmittedAt = &v
	}
	if remindedAt.Valid {
		v := fromMillis(remindedAt.Int64)
		t.LastReminderAt = &v
	}
	return &t, nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func toMillis(t time.Time) int64 { return t.UnixMilli() }

func fromMillis(ms int64) time.Time { return time.UnixMilli(ms).UTC() }

func nullMillis(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UnixMilli(), Valid: true}
}
