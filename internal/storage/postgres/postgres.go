// Package postgres implements storage.Store on PostgreSQL using GORM.
// All GORM usage is confined to this package; storage types remain ORM-free.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/michaelbrown/pylearn/internal/storage"
)

// Config configures the PostgreSQL connection and pool.
type Config struct {
	DSN             string
	MaxOpenConns    int           // Default: 25
	MaxIdleConns    int           // Default: 5
	ConnMaxLifetime time.Duration // Default: 30m
}

func (c Config) maxOpen() int {
	if c.MaxOpenConns > 0 {
		return c.MaxOpenConns
	}
	return 25
}

func (c Config) maxIdle() int {
	if c.MaxIdleConns > 0 {
		return c.MaxIdleConns
	}
	return 5
}

func (c Config) maxLifetime() time.Duration {
	if c.ConnMaxLifetime > 0 {
		return c.ConnMaxLifetime
	}
	return 30 * time.Minute
}

// Store implements storage.Store backed by PostgreSQL.
type Store struct {
	db     *gorm.DB
	logger *slog.Logger
}

// Open connects to PostgreSQL, configures the pool and runs AutoMigrate.
func Open(cfg Config, slogger *slog.Logger) (*Store, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("postgres dsn is required")
	}

	gormLogger := logger.New(
		slogAdapter{slogger},
		logger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
		},
	)

	db, err := gorm.Open(postgres.Open(cfg.DSN), &gorm.Config{
		Logger:      gormLogger,
		NowFunc:     func() time.Time { return time.Now().UTC() },
		PrepareStmt: true,
	})
	if err != nil {
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("getting underlying sql.DB: %w", err)
	}
	sqlDB.SetMaxOpenConns(cfg.maxOpen())
	sqlDB.SetMaxIdleConns(cfg.maxIdle())
	sqlDB.SetConnMaxLifetime(cfg.maxLifetime())

	if err := db.AutoMigrate(&ScriptModel{}, &LessonModel{}); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("auto-migrating: %w", err)
	}

	slogger.Info("postgres connected",
		slog.Int("max_open_conns", cfg.maxOpen()),
		slog.Int("max_idle_conns", cfg.maxIdle()),
	)

	return &Store{db: db, logger: slogger}, nil
}

func (s *Store) ListScripts(ctx context.Context) ([]storage.Script, error) {
	var models []ScriptModel
	if err := s.db.WithContext(ctx).Order("created_at DESC, id DESC").Find(&models).Error; err != nil {
		return nil, fmt.Errorf("listing scripts: %w", err)
	}
	scripts := make([]storage.Script, 0, len(models))
	for _, m := range models {
		scripts = append(scripts, m.toScript())
	}
	return scripts, nil
}

func (s *Store) GetScript(ctx context.Context, id int64) (*storage.Script, bool, error) {
	var m ScriptModel
	err := s.db.WithContext(ctx).First(&m, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("getting script %d: %w", id, err)
	}
	sc := m.toScript()
	return &sc, true, nil
}

func (s *Store) CreateScript(ctx context.Context, ns storage.NewScript) (*storage.Script, error) {
	m := ScriptModel{
		Title:   ns.Title,
		Content: ns.Content,
		Output:  ns.Output,
	}
	if m.Title == "" {
		m.Title = storage.DefaultScriptTitle
	}
	if err := s.db.WithContext(ctx).Create(&m).Error; err != nil {
		return nil, fmt.Errorf("inserting script: %w", err)
	}
	sc := m.toScript()
	return &sc, nil
}

func (s *Store) ListLessons(ctx context.Context) ([]storage.Lesson, error) {
	var models []LessonModel
	if err := s.db.WithContext(ctx).Order("lesson_order ASC, id ASC").Find(&models).Error; err != nil {
		return nil, fmt.Errorf("listing lessons: %w", err)
	}
	lessons := make([]storage.Lesson, 0, len(models))
	for _, m := range models {
		lessons = append(lessons, m.toLesson())
	}
	return lessons, nil
}

func (s *Store) GetLesson(ctx context.Context, id int64) (*storage.Lesson, bool, error) {
	var m LessonModel
	err := s.db.WithContext(ctx).First(&m, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("getting lesson %d: %w", id, err)
	}
	l := m.toLesson()
	return &l, true, nil
}

func (s *Store) CreateLesson(ctx context.Context, nl storage.NewLesson) (*storage.Lesson, error) {
	m := newLessonModel(nl)
	if err := s.db.WithContext(ctx).Create(&m).Error; err != nil {
		return nil, fmt.Errorf("inserting lesson: %w", err)
	}
	l := m.toLesson()
	return &l, nil
}

// CreateLessons inserts all lessons in one transaction.
func (s *Store) CreateLessons(ctx context.Context, nls []storage.NewLesson) (int, error) {
	if len(nls) == 0 {
		return 0, nil
	}
	models := make([]LessonModel, 0, len(nls))
	for _, nl := range nls {
		models = append(models, newLessonModel(nl))
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(&models).Error
	})
	if err != nil {
		return 0, fmt.Errorf("inserting lessons: %w", err)
	}
	return len(models), nil
}

func newLessonModel(nl storage.NewLesson) LessonModel {
	m := LessonModel{
		Title:       nl.Title,
		Description: nl.Description,
		Content:     nl.Content,
		ExampleCode: nl.ExampleCode,
		Difficulty:  string(nl.Difficulty),
		Order:       nl.Order,
	}
	if m.Difficulty == "" {
		m.Difficulty = string(storage.DifficultyBeginner)
	}
	return m
}

func (s *Store) CountLessons(ctx context.Context) (int, error) {
	var n int64
	if err := s.db.WithContext(ctx).Model(&LessonModel{}).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("counting lessons: %w", err)
	}
	return int(n), nil
}

// Ping checks the database connection for health probes.
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close releases the database connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// slogAdapter wraps *slog.Logger for GORM's logger.Writer interface.
type slogAdapter struct {
	logger *slog.Logger
}

func (s slogAdapter) Printf(format string, args ...any) {
	s.logger.Info(fmt.Sprintf(format, args...))
}
