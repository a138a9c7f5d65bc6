// Package drafts persists unsaved template-editor content locally so an
// interrupted editing session can be resumed. Drafts live in a small sqlite
// database and their content uses the same reversible obfuscation as the
// credential store.
package drafts

import (
	"os"
	"path/filepath"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/gradcert/console-client/credstore"
	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// Draft is one locally persisted, unsaved template edit.
type Draft struct {
	TemplateID string    `gorm:"primaryKey;column:template_id"`
	Content    string    `gorm:"column:content"`
	UpdatedAt  time.Time `gorm:"column:updated_at"`
}

// Store keeps drafts keyed by template id.
type Store struct {
	db *gorm.DB
}

// Open opens (or creates) the draft database at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, errors.Wrap(err, "[drafts.Open] create directory")
	}
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, errors.Wrap(err, "[drafts.Open] open database")
	}
	if err := db.AutoMigrate(&Draft{}); err != nil {
		return nil, errors.Wrap(err, "[drafts.Open] migrate")
	}
	return &Store{db: db}, nil
}

// Save writes (or replaces) the draft for templateID.
func (s *Store) Save(templateID, content string) error {
	draft := Draft{
		TemplateID: templateID,
		Content:    credstore.Encode(content),
		UpdatedAt:  time.Now(),
	}
	err := s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "template_id"}},
		UpdateAll: true,
	}).Create(&draft).Error
	return errors.Wrap(err, "[Store.Save]")
}

// Load returns the draft content for templateID. The second return value is
// false when no draft exists or the stored content is corrupt.
func (s *Store) Load(templateID string) (string, bool, error) {
	var draft Draft
	err := s.db.First(&draft, "template_id = ?", templateID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, errors.Wrap(err, "[Store.Load]")
	}
	content := credstore.Decode(draft.Content)
	if content == "" {
		return "", false, nil
	}
	return content, true, nil
}

// Discard removes the draft for templateID. Idempotent.
func (s *Store) Discard(templateID string) error {
	err := s.db.Delete(&Draft{}, "template_id = ?", templateID).Error
	return errors.Wrap(err, "[Store.Discard]")
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return errors.Wrap(err, "[Store.Close]")
	}
	return errors.Wrap(sqlDB.Close(), "[Store.Close]")
}
