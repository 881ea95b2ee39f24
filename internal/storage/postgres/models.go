package postgres

import (
	"time"

	"github.com/michaelbrown/pylearn/internal/storage"
)

// ScriptModel is the GORM model for the scripts table.
type ScriptModel struct {
	ID        int64     `gorm:"primaryKey;autoIncrement"`
	Title     string    `gorm:"not null;default:'Untitled Script'"`
	Content   string    `gorm:"not null"`
	Output    *string   `gorm:"type:text"`
	CreatedAt time.Time `gorm:"not null;index:idx_scripts_created,sort:desc"`
}

func (ScriptModel) TableName() string { return "scripts" }

func (m ScriptModel) toScript() storage.Script {
	return storage.Script{
		ID:        m.ID,
		Title:     m.Title,
		Content:   m.Content,
		Output:    m.Output,
		CreatedAt: m.CreatedAt,
	}
}

// LessonModel is the GORM model for the lessons table.
type LessonModel struct {
	ID          int64  `gorm:"primaryKey;autoIncrement"`
	Title       string `gorm:"not null"`
	Description string `gorm:"not null"`
	Content     string `gorm:"not null"`
	ExampleCode string `gorm:"not null"`
	Difficulty  string `gorm:"not null;default:'beginner'"`
	Order       int    `gorm:"column:lesson_order;not null;index"`
}

func (LessonModel) TableName() string { return "lessons" }

func (m LessonModel) toLesson() storage.Lesson {
	return storage.Lesson{
		ID:          m.ID,
		Title:       m.Title,
		Description: m.Description,
		Content:     m.Content,
		ExampleCode: m.ExampleCode,
		Difficulty:  storage.Difficulty(m.Difficulty),
		Order:       m.Order,
	}
}
