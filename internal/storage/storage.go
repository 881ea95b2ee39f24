package storage

import (
	"context"
	"time"
)

// DefaultScriptTitle is used when a script is submitted without a title.
const DefaultScriptTitle = "Untitled Script"

// Difficulty labels a lesson for display.
type Difficulty string

const (
	DifficultyBeginner     Difficulty = "beginner"
	DifficultyIntermediate Difficulty = "intermediate"
	DifficultyAdvanced     Difficulty = "advanced"
)

// Script is a user-submitted piece of source code.
type Script struct {
	ID        int64     `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Output    *string   `json:"output"`
	CreatedAt time.Time `json:"createdAt"`
}

// NewScript holds the caller-supplied fields of a script.
type NewScript struct {
	Title   string
	Content string
	Output  *string
}

// Lesson is a unit of instructional content.
type Lesson struct {
	ID          int64      `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Content     string     `json:"content"`
	ExampleCode string     `json:"exampleCode"`
	Difficulty  Difficulty `json:"difficulty"`
	Order       int        `json:"order"`
}

// NewLesson holds the fields of a lesson before the store assigns an ID.
type NewLesson struct {
	Title       string     `yaml:"title"`
	Description string     `yaml:"description"`
	Content     string     `yaml:"content"`
	ExampleCode string     `yaml:"example_code"`
	Difficulty  Difficulty `yaml:"difficulty"`
	Order       int        `yaml:"order"`
}

// Store is the persistence interface for scripts and lessons.
//
// Get methods report absence with a false second return and a nil error.
type Store interface {
	// ListScripts returns all scripts, newest first.
	ListScripts(ctx context.Context) ([]Script, error)

	GetScript(ctx context.Context, id int64) (*Script, bool, error)

	// CreateScript inserts a script. ID and CreatedAt are assigned by the store.
	CreateScript(ctx context.Context, s NewScript) (*Script, error)

	// ListLessons returns all lessons ordered by Order ascending.
	ListLessons(ctx context.Context) ([]Lesson, error)

	GetLesson(ctx context.Context, id int64) (*Lesson, bool, error)

	CreateLesson(ctx context.Context, l NewLesson) (*Lesson, error)

	// CreateLessons inserts all of ls or none of them and returns the
	// number inserted.
	CreateLessons(ctx context.Context, ls []NewLesson) (int, error)

	CountLessons(ctx context.Context) (int, error)

	// Ping checks that the backing database is reachable.
	Ping(ctx context.Context) error

	// Close releases resources.
	Close() error
}
