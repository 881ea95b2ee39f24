package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/michaelbrown/pylearn/internal/storage"

	_ "modernc.org/sqlite"
)

// timeLayout is fixed-width so that created_at sorts lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// SQLiteStore implements storage.Store backed by a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// Open creates or opens a SQLite database at the given path and runs migrations.
// Use ":memory:" for an in-memory database (useful for testing).
func Open(dbPath string) (*SQLiteStore, error) {
	if dbPath != ":memory:" {
		dir := filepath.Dir(dbPath)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating db directory: %w", err)
		}
	}

	dsn := dbPath
	if dbPath != ":memory:" {
		// Pragmas in the DSN apply to every pooled connection.
		dsn = dbPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if dbPath == ":memory:" {
		// Every connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) ListScripts(ctx context.Context) ([]storage.Script, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, content, output, created_at
		FROM scripts ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("listing scripts: %w", err)
	}
	defer rows.Close()

	var scripts []storage.Script
	for rows.Next() {
		sc, err := scanScript(rows)
		if err != nil {
			return nil, err
		}
		scripts = append(scripts, *sc)
	}
	return scripts, rows.Err()
}

func (s *SQLiteStore) GetScript(ctx context.Context, id int64) (*storage.Script, bool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, title, content, output, created_at
		FROM scripts WHERE id = ?`, id)
	sc, err := scanScript(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("getting script %d: %w", id, err)
	}
	return sc, true, nil
}

func (s *SQLiteStore) CreateScript(ctx context.Context, ns storage.NewScript) (*storage.Script, error) {
	title := ns.Title
	if title == "" {
		title = storage.DefaultScriptTitle
	}
	createdAt := time.Now().UTC()

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO scripts (title, content, output, created_at)
		VALUES (?, ?, ?, ?)`,
		title, ns.Content, ns.Output, createdAt.Format(timeLayout),
	)
	if err != nil {
		return nil, fmt.Errorf("inserting script: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("reading script id: %w", err)
	}

	return &storage.Script{
		ID:        id,
		Title:     title,
		Content:   ns.Content,
		Output:    ns.Output,
		CreatedAt: createdAt,
	}, nil
}

func (s *SQLiteStore) ListLessons(ctx context.Context) ([]storage.Lesson, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, description, content, example_code, difficulty, lesson_order
		FROM lessons ORDER BY lesson_order ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("listing lessons: %w", err)
	}
	defer rows.Close()

	var lessons []storage.Lesson
	for rows.Next() {
		l, err := scanLesson(rows)
		if err != nil {
			return nil, err
		}
		lessons = append(lessons, *l)
	}
	return lessons, rows.Err()
}

func (s *SQLiteStore) GetLesson(ctx context.Context, id int64) (*storage.Lesson, bool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, title, description, content, example_code, difficulty, lesson_order
		FROM lessons WHERE id = ?`, id)
	l, err := scanLesson(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("getting lesson %d: %w", id, err)
	}
	return l, true, nil
}

func (s *SQLiteStore) CreateLesson(ctx context.Context, nl storage.NewLesson) (*storage.Lesson, error) {
	return insertLesson(ctx, s.db, nl)
}

// CreateLessons inserts all lessons in one transaction.
func (s *SQLiteStore) CreateLessons(ctx context.Context, nls []storage.NewLesson) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	for _, nl := range nls {
		if _, err := insertLesson(ctx, tx, nl); err != nil {
			return 0, fmt.Errorf("lesson %q: %w", nl.Title, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing lessons: %w", err)
	}
	return len(nls), nil
}

// execer is satisfied by both *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertLesson(ctx context.Context, db execer, nl storage.NewLesson) (*storage.Lesson, error) {
	difficulty := nl.Difficulty
	if difficulty == "" {
		difficulty = storage.DifficultyBeginner
	}

	res, err := db.ExecContext(ctx, `
		INSERT INTO lessons (title, description, content, example_code, difficulty, lesson_order)
		VALUES (?, ?, ?, ?, ?, ?)`,
		nl.Title, nl.Description, nl.Content, nl.ExampleCode, string(difficulty), nl.Order,
	)
	if err != nil {
		return nil, fmt.Errorf("inserting lesson: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("reading lesson id: %w", err)
	}

	return &storage.Lesson{
		ID:          id,
		Title:       nl.Title,
		Description: nl.Description,
		Content:     nl.Content,
		ExampleCode: nl.ExampleCode,
		Difficulty:  difficulty,
		Order:       nl.Order,
	}, nil
}

func (s *SQLiteStore) CountLessons(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM lessons`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting lessons: %w", err)
	}
	return n, nil
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Scanner interface to work with both *sql.Row and *sql.Rows
type scanner interface {
	Scan(dest ...any) error
}

func scanScript(s scanner) (*storage.Script, error) {
	var sc storage.Script
	var output sql.NullString
	var createdAt string
	if err := s.Scan(&sc.ID, &sc.Title, &sc.Content, &output, &createdAt); err != nil {
		return nil, err
	}
	if output.Valid {
		sc.Output = &output.String
	}
	t, err := time.Parse(timeLayout, createdAt)
	if err != nil {
		return nil, fmt.Errorf("parsing created_at of script %d: %w", sc.ID, err)
	}
	sc.CreatedAt = t
	return &sc, nil
}

func scanLesson(s scanner) (*storage.Lesson, error) {
	var l storage.Lesson
	var difficulty string
	err := s.Scan(&l.ID, &l.Title, &l.Description, &l.Content,
		&l.ExampleCode, &difficulty, &l.Order)
	if err != nil {
		return nil, err
	}
	l.Difficulty = storage.Difficulty(difficulty)
	return &l, nil
}
