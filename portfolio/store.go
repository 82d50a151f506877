package portfolio

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Store reads and writes portfolio content.
type Store struct {
	db *gorm.DB
}

// Open connects to the sqlite database at dsn and migrates the schema.
// ":memory:" gives a private in-process database.
func Open(dsn string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("portfolio: open %s: %w", dsn, err)
	}

	if dsn == ":memory:" {
		// Every pooled connection would otherwise see its own empty database.
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("portfolio: %w", err)
		}
		sqlDB.SetMaxOpenConns(1)
	}

	return NewStore(db)
}

// NewStore wraps an existing connection and migrates the schema.
func NewStore(db *gorm.DB) (*Store, error) {
	if err := db.AutoMigrate(AllModels()...); err != nil {
		return nil, fmt.Errorf("portfolio: auto-migrate: %w", err)
	}
	return &Store{db: db}, nil
}

// DB exposes the underlying connection.
func (s *Store) DB() *gorm.DB { return s.db }

// Close releases the connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Home returns the first home record, or the zero value when none exists.
func (s *Store) Home(ctx context.Context) (Home, error) {
	var h Home
	return h, first(s.db.WithContext(ctx), &h, "home")
}

// About returns the first about record, or the zero value.
func (s *Store) About(ctx context.Context) (About, error) {
	var a About
	return a, first(s.db.WithContext(ctx), &a, "about")
}

// Skilled returns the first skilled record, or the zero value.
func (s *Store) Skilled(ctx context.Context) (Skilled, error) {
	var sk Skilled
	return sk, first(s.db.WithContext(ctx), &sk, "skilled")
}

// Skills returns all skills in insertion order.
func (s *Store) Skills(ctx context.Context) ([]Skill, error) {
	skills := []Skill{}
	if err := s.db.WithContext(ctx).Order("id").Find(&skills).Error; err != nil {
		return nil, fmt.Errorf("portfolio: list skills: %w", err)
	}
	return skills, nil
}

// Works returns all projects in insertion order.
func (s *Store) Works(ctx context.Context) ([]Work, error) {
	works := []Work{}
	if err := s.db.WithContext(ctx).Order("id").Find(&works).Error; err != nil {
		return nil, fmt.Errorf("portfolio: list works: %w", err)
	}
	return works, nil
}

// CreateContact stores a contact message.
func (s *Store) CreateContact(ctx context.Context, c *Contact) error {
	if err := s.db.WithContext(ctx).Create(c).Error; err != nil {
		return fmt.Errorf("portfolio: create contact: %w", err)
	}
	return nil
}

// Contacts returns all stored contact messages, newest first.
func (s *Store) Contacts(ctx context.Context) ([]Contact, error) {
	var contacts []Contact
	if err := s.db.WithContext(ctx).Order("id desc").Find(&contacts).Error; err != nil {
		return nil, fmt.Errorf("portfolio: list contacts: %w", err)
	}
	return contacts, nil
}

func first(db *gorm.DB, dest any, what string) error {
	err := db.Order("id").First(dest).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("portfolio: get %s: %w", what, err)
	}
	return nil
}
