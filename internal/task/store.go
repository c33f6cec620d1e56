package task

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/nao1215/taskapi/pkg/migration"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrations embed.FS

// ErrNotFound は指定したIDのタスクが存在しないことを表す。
var ErrNotFound = errors.New("task not found")

// Task は保存されたタスク。
type Task struct {
	// ID はタスクの一意識別子。
	ID int64 `json:"id"`
	// Name はタスク名。
	Name string `json:"name"`
	// Priority は優先度。
	Priority int `json:"priority"`
	// IsCompleted は完了状態。
	IsCompleted bool `json:"is_completed"`
	// CreatedBy はタスクを作成したユーザー。
	CreatedBy string `json:"created_by"`
	// CreatedAt は作成日時。
	CreatedAt string `json:"created_at"`
	// UpdatedAt は更新日時。
	UpdatedAt string `json:"updated_at"`
}

// NewTask はタスク作成時の入力値。
type NewTask struct {
	Name        string
	Priority    int
	IsCompleted bool
	CreatedBy   string
}

// Patch はタスク更新時の入力値。nilのフィールドは変更しない。
type Patch struct {
	Name        *string
	Priority    *int
	IsCompleted *bool
}

// Store はSQLiteに保存されたタスクを操作する。
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// OpenDB はSQLiteデータベースを開き、マイグレーションを適用する。
func OpenDB(ctx context.Context, path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("データベース接続に失敗: %w", err)
	}
	for _, pragma := range []string{
		`PRAGMA journal_mode=WAL;`,
		`PRAGMA busy_timeout=5000;`,
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("%s の実行に失敗: %w", pragma, err)
		}
	}
	if err := Migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// Migrate はタスクテーブルのマイグレーションを適用する。
func Migrate(ctx context.Context, db *sql.DB) error {
	if _, err := migration.Run(ctx, db, migrations, "migrations"); err != nil {
		return fmt.Errorf("マイグレーションに失敗: %w", err)
	}
	return nil
}

// NewStore はタスクストアを生成する。dbはマイグレーション済みであること。
func NewStore(db *sql.DB) *Store {
	return &Store{db: db, now: time.Now}
}

const selectColumns = `SELECT id, name, priority, is_completed, created_by, created_at, updated_at FROM tasks`

// List は全タスクをID順で返す。
func (s *Store) List(ctx context.Context) ([]Task, error) {
	rows, err := s.db.QueryContext(ctx, selectColumns+` ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("タスク一覧の取得に失敗: %w", err)
	}
	defer func() { _ = rows.Close() }()

	tasks := make([]Task, 0)
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("タスクの読み込みに失敗: %w", err)
		}
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("タスク一覧の取得に失敗: %w", err)
	}
	return tasks, nil
}

// Get は指定したIDのタスクを返す。存在しない場合はErrNotFoundを返す。
func (s *Store) Get(ctx context.Context, id int64) (Task, error) {
	t, err := scanTask(s.db.QueryRowContext(ctx, selectColumns+` WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Task{}, ErrNotFound
	}
	if err != nil {
		return Task{}, fmt.Errorf("タスク %d の取得に失敗: %w", id, err)
	}
	return t, nil
}

// Create はタスクを作成し、採番されたIDを返す。
func (s *Store) Create(ctx context.Context, in NewTask) (int64, error) {
	now := s.timestamp()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO tasks (name, priority, is_completed, created_by, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		in.Name, in.Priority, in.IsCompleted, in.CreatedBy, now, now,
	)
	if err != nil {
		return 0, fmt.Errorf("タスクの作成に失敗: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("タスクIDの取得に失敗: %w", err)
	}
	return id, nil
}

// Update は指定したフィールドだけを更新する。存在しない場合はErrNotFoundを返す。
func (s *Store) Update(ctx context.Context, id int64, p Patch) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE tasks SET
		   name = COALESCE(?, name),
		   priority = COALESCE(?, priority),
		   is_completed = COALESCE(?, is_completed),
		   updated_at = ?
		 WHERE id = ?`,
		nullable(p.Name), nullable(p.Priority), nullable(p.IsCompleted), s.timestamp(), id,
	)
	if err != nil {
		return fmt.Errorf("タスク %d の更新に失敗: %w", id, err)
	}
	return requireAffected(res, id)
}

// Delete は指定したIDのタスクを削除する。存在しない場合はErrNotFoundを返す。
func (s *Store) Delete(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("タスク %d の削除に失敗: %w", id, err)
	}
	return requireAffected(res, id)
}

func (s *Store) timestamp() string {
	return s.now().UTC().Format(time.RFC3339)
}

// scanner は *sql.Row と *sql.Rows の共通インターフェース。
type scanner interface {
	Scan(dest ...any) error
}

func scanTask(row scanner) (Task, error) {
	var t Task
	err := row.Scan(&t.ID, &t.Name, &t.Priority, &t.IsCompleted, &t.CreatedBy, &t.CreatedAt, &t.UpdatedAt)
	return t, err
}

func requireAffected(res sql.Result, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("タスク %d の更新件数の取得に失敗: %w", id, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// nullable はnilポインタをSQLのNULLに、それ以外を値に変換する。
func nullable[T any](p *T) any {
	if p == nil {
		return nil
	}
	return *p
}
