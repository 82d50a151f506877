package portfolio

import "time"

// Home is the landing section.
type Home struct {
	ID           uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	Title        string `gorm:"size:100;not null" json:"title" yaml:"title"`
	Subtitle     string `gorm:"size:100" json:"subtitle" yaml:"subtitle"`
	Image        string `gorm:"size:255" json:"image,omitempty" yaml:"image"`
	GithubURL    string `gorm:"size:255" json:"github_url,omitempty" yaml:"github_url"`
	LinkedinURL  string `gorm:"size:255" json:"linkedin_url,omitempty" yaml:"linkedin_url"`
	EmailAddress string `gorm:"size:255" json:"email_address,omitempty" yaml:"email_address"`
}

// About describes the owner.
type About struct {
	ID           uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	Name         string `gorm:"size:50;not null" json:"name" yaml:"name"`
	Bio          string `gorm:"type:text" json:"bio" yaml:"bio"`
	ProfileImage string `gorm:"size:255" json:"profile_image,omitempty" yaml:"profile_image"`
}

// Skilled is the skills section header.
type Skilled struct {
	ID           uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	Name         string `gorm:"size:50;not null" json:"name" yaml:"name"`
	Bio          string `gorm:"type:text" json:"bio" yaml:"bio"`
	ProfileImage string `gorm:"size:255" json:"profile_image,omitempty" yaml:"profile_image"`
}

// Skill is one skill with a proficiency between 0 and 100.
type Skill struct {
	ID          uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	SkillName   string `gorm:"size:50;not null" json:"skill_name" yaml:"skill_name"`
	Proficiency int    `gorm:"not null;default:0" json:"proficiency" yaml:"proficiency"`
}

// Work is a portfolio project.
type Work struct {
	ID           uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	ProjectName  string `gorm:"size:100;not null" json:"project_name" yaml:"project_name"`
	ProjectImage string `gorm:"size:255" json:"project_image,omitempty" yaml:"project_image"`
	ProjectURL   string `gorm:"size:255" json:"project_url,omitempty" yaml:"project_url"`
}

// Contact is a message submitted through the contact endpoint.
type Contact struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	Name      string    `gorm:"size:50;not null" json:"name"`
	Email     string    `gorm:"size:255;not null" json:"email"`
	Message   string    `gorm:"type:text;not null" json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

// AllModels returns every model for migration.
func AllModels() []any {
	return []any{
		&Home{},
		&About{},
		&Skilled{},
		&Skill{},
		&Work{},
		&Contact{},
	}
}
