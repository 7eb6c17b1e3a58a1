package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"task-manager/apperrors"
	"task-manager/models"

	_ "modernc.org/sqlite"
)

// MemoryDSN opens a private in-memory database.
const MemoryDSN = ":memory:"

// OpenSQLite opens (and migrates) the embedded store. A single connection is
// used so that an in-memory database is shared by every caller and writes
// never contend for the file lock.
func OpenSQLite(path string) (*sql.DB, error) {
	dsn := path
	if path != MemoryDSN {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, fmt.Errorf("create data dir: %w", err)
			}
		}
		dsn = path + "?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return db, nil
}

func migrate(db *sql.DB) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			email TEXT NOT NULL UNIQUE,
			password TEXT NOT NULL,
			role TEXT NOT NULL,
			avatar_url TEXT NOT NULL DEFAULT '',
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS tasks (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			description TEXT NOT NULL,
			priority TEXT NOT NULL,
			status TEXT NOT NULL,
			due_date INTEGER,
			created_by TEXT NOT NULL,
			assigned_to TEXT NOT NULL,
			checklist TEXT NOT NULL,
			progress INTEGER NOT NULL,
			attachments TEXT NOT NULL,
			version INTEGER NOT NULL,
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_created_at ON tasks(created_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_created_by ON tasks(created_by)`,
	}

	for _, m := range migrations {
		if _, err := db.Exec(m); err != nil {
			return fmt.Errorf("exec migration: %w", err)
		}
	}
	return nil
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func toUnix(t time.Time) int64 {
	return t.UnixNano()
}

func fromUnix(n int64) time.Time {
	return time.Unix(0, n).UTC()
}

// Due dates are user input and may lie past 2262, where UnixNano overflows,
// so they are stored at millisecond precision like BSON dates.
func toUnixMilli(t time.Time) int64 {
	return t.UnixMilli()
}

func fromUnixMilli(n int64) time.Time {
	return time.UnixMilli(n).UTC()
}

func encodeList[T any](items []T) (string, error) {
	if items == nil {
		items = []T{}
	}
	b, err := json.Marshal(items)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func decodeList[T any](raw string) ([]T, error) {
	items := []T{}
	if raw == "" {
		return items, nil
	}
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		return nil, err
	}
	if items == nil {
		items = []T{}
	}
	return items, nil
}

// SQLiteTaskRepository stores list fields (assignees, checklist, attachments)
// as JSON text and filters assignees with json_each.
type SQLiteTaskRepository struct {
	db *sql.DB
}

func NewSQLiteTaskRepository(db *sql.DB) *SQLiteTaskRepository {
	return &SQLiteTaskRepository{db: db}
}

const taskColumns = `id, title, description, priority, status, due_date, created_by,
	assigned_to, checklist, progress, attachments, version, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (*models.Task, error) {
	var (
		task                               models.Task
		dueDate                            sql.NullInt64
		assignedTo, checklist, attachments string
		createdAt, updatedAt               int64
	)
	err := row.Scan(&task.ID, &task.Title, &task.Description, &task.Priority, &task.Status,
		&dueDate, &task.CreatedBy, &assignedTo, &checklist, &task.Progress, &attachments,
		&task.Version, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	if dueDate.Valid {
		d := fromUnixMilli(dueDate.Int64)
		task.DueDate = &d
	}
	if task.AssignedTo, err = decodeList[string](assignedTo); err != nil {
		return nil, fmt.Errorf("decode assignees: %w", err)
	}
	if task.Checklist, err = decodeList[models.ChecklistItem](checklist); err != nil {
		return nil, fmt.Errorf("decode checklist: %w", err)
	}
	if task.Attachments, err = decodeList[string](attachments); err != nil {
		return nil, fmt.Errorf("decode attachments: %w", err)
	}
	task.CreatedAt = fromUnix(createdAt)
	task.UpdatedAt = fromUnix(updatedAt)
	return &task, nil
}

type encodedTask struct {
	dueDate                            sql.NullInt64
	assignedTo, checklist, attachments string
}

func encodeTask(task *models.Task) (encodedTask, error) {
	var enc encodedTask
	var err error
	if task.DueDate != nil {
		enc.dueDate = sql.NullInt64{Int64: toUnixMilli(*task.DueDate), Valid: true}
	}
	if enc.assignedTo, err = encodeList(task.AssignedTo); err != nil {
		return enc, err
	}
	if enc.checklist, err = encodeList(task.Checklist); err != nil {
		return enc, err
	}
	if enc.attachments, err = encodeList(task.Attachments); err != nil {
		return enc, err
	}
	return enc, nil
}

func taskWhere(f TaskFilter) (string, []any) {
	var clauses []string
	var args []any
	if f.AssigneeID != "" {
		clauses = append(clauses, "EXISTS (SELECT 1 FROM json_each(tasks.assigned_to) WHERE json_each.value = ?)")
		args = append(args, f.AssigneeID)
	}
	if f.Status != "" {
		clauses = append(clauses, "status = ?")
		args = append(args, string(f.Status))
	}
	if f.ExcludeStatus != "" {
		clauses = append(clauses, "status <> ?")
		args = append(args, string(f.ExcludeStatus))
	}
	if f.Priority != "" {
		clauses = append(clauses, "priority = ?")
		args = append(args, string(f.Priority))
	}
	if f.DueBefore != nil {
		clauses = append(clauses, "due_date IS NOT NULL AND due_date < ?")
		args = append(args, toUnixMilli(*f.DueBefore))
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func (r *SQLiteTaskRepository) Insert(ctx context.Context, task *models.Task) error {
	enc, err := encodeTask(task)
	if err != nil {
		return apperrors.Wrap(apperrors.KindInternal, err, "failed to encode task")
	}
	_, err = r.db.ExecContext(ctx, `INSERT INTO tasks (`+taskColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		task.ID, task.Title, task.Description, string(task.Priority), string(task.Status),
		enc.dueDate, task.CreatedBy, enc.assignedTo, enc.checklist, task.Progress, enc.attachments,
		task.Version, toUnix(task.CreatedAt), toUnix(task.UpdatedAt))
	if err != nil {
		return unavailable("failed to create task", err)
	}
	return nil
}

func (r *SQLiteTaskRepository) FindByID(ctx context.Context, id string) (*models.Task, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id)
	task, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NotFound("task %s not found", id)
	}
	if err != nil {
		return nil, unavailable("failed to load task", err)
	}
	return task, nil
}

func (r *SQLiteTaskRepository) Find(ctx context.Context, filter TaskFilter, opts FindOptions) ([]models.Task, error) {
	where, args := taskWhere(filter)
	query := `SELECT ` + taskColumns + ` FROM tasks` + where + ` ORDER BY created_at DESC, id DESC`
	if opts.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, opts.Limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, unavailable("failed to retrieve tasks", err)
	}
	defer rows.Close()

	tasks := []models.Task{}
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, unavailable("failed to decode task", err)
		}
		tasks = append(tasks, *task)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("cursor error", err)
	}
	return tasks, nil
}

func (r *SQLiteTaskRepository) Count(ctx context.Context, filter TaskFilter) (int64, error) {
	where, args := taskWhere(filter)
	var n int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM tasks`+where, args...).Scan(&n); err != nil {
		return 0, unavailable("failed to count tasks", err)
	}
	return n, nil
}

func (r *SQLiteTaskRepository) Update(ctx context.Context, task *models.Task, expectedVersion int64) error {
	enc, err := encodeTask(task)
	if err != nil {
		return apperrors.Wrap(apperrors.KindInternal, err, "failed to encode task")
	}

	query := `UPDATE tasks SET title = ?, description = ?, priority = ?, status = ?, due_date = ?,
		assigned_to = ?, checklist = ?, progress = ?, attachments = ?, updated_at = ?,
		version = version + 1
		WHERE id = ?`
	args := []any{task.Title, task.Description, string(task.Priority), string(task.Status), enc.dueDate,
		enc.assignedTo, enc.checklist, task.Progress, enc.attachments, toUnix(task.UpdatedAt), task.ID}
	if expectedVersion != AnyVersion {
		query += ` AND version = ?`
		args = append(args, expectedVersion)
	}
	query += ` RETURNING version`

	var version int64
	err = r.db.QueryRowContext(ctx, query, args...).Scan(&version)
	if errors.Is(err, sql.ErrNoRows) {
		return r.missOnUpdate(ctx, task.ID, expectedVersion)
	}
	if err != nil {
		return unavailable("failed to update task", err)
	}
	task.Version = version
	return nil
}

func (r *SQLiteTaskRepository) missOnUpdate(ctx context.Context, id string, expectedVersion int64) error {
	if expectedVersion == AnyVersion {
		return apperrors.NotFound("task %s not found", id)
	}
	current, err := r.FindByID(ctx, id)
	if err != nil {
		return err
	}
	return apperrors.Newf(apperrors.KindStaleWrite,
		"task %s was modified concurrently (expected version %d, current %d)", id, expectedVersion, current.Version)
}

func (r *SQLiteTaskRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, id)
	if err != nil {
		return unavailable("failed to delete task", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return unavailable("failed to delete task", err)
	}
	if n == 0 {
		return apperrors.NotFound("task %s not found", id)
	}
	return nil
}

func (r *SQLiteTaskRepository) CountReferences(ctx context.Context, userID string) (int64, error) {
	var n int64
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM tasks WHERE created_by = ?
		OR EXISTS (SELECT 1 FROM json_each(tasks.assigned_to) WHERE json_each.value = ?)`, userID, userID).Scan(&n)
	if err != nil {
		return 0, unavailable("failed to count task references", err)
	}
	return n, nil
}

func (r *SQLiteTaskRepository) Ping(ctx context.Context) error {
	if err := r.db.PingContext(ctx); err != nil {
		return unavailable("sqlite ping failed", err)
	}
	return nil
}

type SQLiteUserRepository struct {
	db *sql.DB
}

func NewSQLiteUserRepository(db *sql.DB) *SQLiteUserRepository {
	return &SQLiteUserRepository{db: db}
}

const userColumns = `id, name, email, password, role, avatar_url, created_at, updated_at`

func scanUser(row rowScanner) (*models.User, error) {
	var (
		user                 models.User
		createdAt, updatedAt int64
	)
	if err := row.Scan(&user.ID, &user.Name, &user.Email, &user.Password, &user.Role,
		&user.AvatarURL, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	user.CreatedAt = fromUnix(createdAt)
	user.UpdatedAt = fromUnix(updatedAt)
	return &user, nil
}

func (r *SQLiteUserRepository) Insert(ctx context.Context, user *models.User) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO users (`+userColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		user.ID, user.Name, user.Email, user.Password, string(user.Role), user.AvatarURL,
		toUnix(user.CreatedAt), toUnix(user.UpdatedAt))
	if isUniqueViolation(err) {
		return apperrors.Newf(apperrors.KindConflict, "user with email %s already exists", user.Email)
	}
	if err != nil {
		return unavailable("failed to save user", err)
	}
	return nil
}

func (r *SQLiteUserRepository) findOne(ctx context.Context, column, value string) (*models.User, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE `+column+` = ?`, value)
	user, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NotFound("user %s not found", value)
	}
	if err != nil {
		return nil, unavailable("failed to load user", err)
	}
	return user, nil
}

func (r *SQLiteUserRepository) FindByID(ctx context.Context, id string) (*models.User, error) {
	return r.findOne(ctx, "id", id)
}

func (r *SQLiteUserRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.findOne(ctx, "email", email)
}

func (r *SQLiteUserRepository) FindByRole(ctx context.Context, role models.Role) ([]models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users`
	var args []any
	if role != "" {
		query += ` WHERE role = ?`
		args = append(args, string(role))
	}
	query += ` ORDER BY name, id`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, unavailable("failed to fetch users", err)
	}
	defer rows.Close()

	users := []models.User{}
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, unavailable("failed to parse users", err)
		}
		users = append(users, *user)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("cursor error", err)
	}
	return users, nil
}

func (r *SQLiteUserRepository) Update(ctx context.Context, user *models.User) error {
	res, err := r.db.ExecContext(ctx, `UPDATE users SET name = ?, email = ?, password = ?, role = ?,
		avatar_url = ?, updated_at = ? WHERE id = ?`,
		user.Name, user.Email, user.Password, string(user.Role), user.AvatarURL, toUnix(user.UpdatedAt), user.ID)
	if isUniqueViolation(err) {
		return apperrors.Newf(apperrors.KindConflict, "user with email %s already exists", user.Email)
	}
	if err != nil {
		return unavailable("failed to update user", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return unavailable("failed to update user", err)
	}
	if n == 0 {
		return apperrors.NotFound("user %s not found", user.ID)
	}
	return nil
}

func (r *SQLiteUserRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return unavailable("failed to delete user", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return unavailable("failed to delete user", err)
	}
	if n == 0 {
		return apperrors.NotFound("user %s not found", id)
	}
	return nil
}
