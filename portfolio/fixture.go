package portfolio

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
	"gorm.io/gorm"
)

// Fixture is the YAML seed format for portfolio content.
type Fixture struct {
	Home    *Home    `yaml:"home"`
	About   *About   `yaml:"about"`
	Skilled *Skilled `yaml:"skilled"`
	Skills  []Skill  `yaml:"skills"`
	Works   []Work   `yaml:"works"`
}

// LoadFixture reads a fixture file.
func LoadFixture(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("portfolio: read fixture %s: %w", path, err)
	}
	return ParseFixture(data)
}

// ParseFixture decodes fixture YAML.
func ParseFixture(data []byte) (*Fixture, error) {
	var f Fixture
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("portfolio: parse fixture: %w", err)
	}
	return &f, nil
}

// Seed replaces all content sections with the fixture in one transaction.
// Contact messages are left untouched.
func (s *Store) Seed(ctx context.Context, f *Fixture) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, m := range []any{&Home{}, &About{}, &Skilled{}, &Skill{}, &Work{}} {
			if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(m).Error; err != nil {
				return fmt.Errorf("portfolio: clear %T: %w", m, err)
			}
		}

		if f.Home != nil {
			h := *f.Home
			h.ID = 0
			if err := tx.Create(&h).Error; err != nil {
				return fmt.Errorf("portfolio: seed home: %w", err)
			}
		}
		if f.About != nil {
			a := *f.About
			a.ID = 0
			if err := tx.Create(&a).Error; err != nil {
				return fmt.Errorf("portfolio: seed about: %w", err)
			}
		}
		if f.Skilled != nil {
			sk := *f.Skilled
			sk.ID = 0
			if err := tx.Create(&sk).Error; err != nil {
				return fmt.Errorf("portfolio: seed skilled: %w", err)
			}
		}
		for _, skill := range f.Skills {
			skill.ID = 0
			if skill.Proficiency < 0 || skill.Proficiency > 100 {
				return fmt.Errorf("portfolio: skill %q: proficiency %d outside 0..100", skill.SkillName, skill.Proficiency)
			}
			if err := tx.Create(&skill).Error; err != nil {
				return fmt.Errorf("portfolio: seed skill %q: %w", skill.SkillName, err)
			}
		}
		for _, w := range f.Works {
			w.ID = 0
			if err := tx.Create(&w).Error; err != nil {
				return fmt.Errorf("portfolio: seed work %q: %w", w.ProjectName, err)
			}
		}
		return nil
	})
}
