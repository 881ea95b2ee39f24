package storage

import (
	"context"
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"
)

//go:embed lessons.yaml
var defaultLessonsYAML []byte

// DefaultLessons returns the introductory lessons inserted on first start.
func DefaultLessons() ([]NewLesson, error) {
	return ParseLessons(defaultLessonsYAML)
}

// ParseLessons decodes a YAML document with a top-level "lessons" list.
func ParseLessons(data []byte) ([]NewLesson, error) {
	var doc struct {
		Lessons []NewLesson `yaml:"lessons"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing lessons: %w", err)
	}
	for i := range doc.Lessons {
		if doc.Lessons[i].Difficulty == "" {
			doc.Lessons[i].Difficulty = DifficultyBeginner
		}
	}
	return doc.Lessons, nil
}

// Seed inserts lessons when the store has none and returns how many were
// inserted. It is a no-op on a store that already holds lessons. The
// inserts are atomic, so a failed seed leaves the store empty and the next
// call retries it.
func Seed(ctx context.Context, store Store, lessons []NewLesson) (int, error) {
	n, err := store.CountLessons(ctx)
	if err != nil {
		return 0, fmt.Errorf("counting lessons: %w", err)
	}
	if n > 0 {
		return 0, nil
	}

	if len(lessons) == 0 {
		return 0, nil
	}
	inserted, err := store.CreateLessons(ctx, lessons)
	if err != nil {
		return 0, fmt.Errorf("inserting lessons: %w", err)
	}
	return inserted, nil
}
