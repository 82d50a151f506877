package portfolio

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fixtureYAML = `
home:
  title: Vicky Kumar
  subtitle: Backend developer
  github_url: https://github.com/example
about:
  name: Vicky
  bio: Builds things.
skilled:
  name: Skills
  bio: What I work with.
skills:
  - skill_name: Go
    proficiency: 90
  - skill_name: Python
    proficiency: 80
works:
  - project_name: Chat bot
    project_url: https://example.com/bot
`

func testStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func seededStore(t *testing.T) *Store {
	t.Helper()
	s := testStore(t)
	f, err := ParseFixture([]byte(fixtureYAML))
	require.NoError(t, err)
	require.NoError(t, s.Seed(context.Background(), f))
	return s
}

func TestStore_EmptySections(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	home, err := s.Home(ctx)
	require.NoError(t, err)
	assert.Equal(t, Home{}, home)

	skills, err := s.Skills(ctx)
	require.NoError(t, err)
	assert.NotNil(t, skills)
	assert.Empty(t, skills)
}

func TestStore_Seed(t *testing.T) {
	s := seededStore(t)
	ctx := context.Background()

	home, err := s.Home(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Vicky Kumar", home.Title)
	assert.Equal(t, "https://github.com/example", home.GithubURL)

	about, err := s.About(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Builds things.", about.Bio)

	skilled, err := s.Skilled(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Skills", skilled.Name)

	skills, err := s.Skills(ctx)
	require.NoError(t, err)
	require.Len(t, skills, 2)
	assert.Equal(t, "Go", skills[0].SkillName)
	assert.Equal(t, 90, skills[0].Proficiency)

	works, err := s.Works(ctx)
	require.NoError(t, err)
	require.Len(t, works, 1)
	assert.Equal(t, "Chat bot", works[0].ProjectName)
}

func TestStore_SeedReplacesContentKeepsContacts(t *testing.T) {
	s := seededStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateContact(ctx, &Contact{Name: "a", Email: "a@b.c", Message: "hi"}))

	require.NoError(t, s.Seed(ctx, &Fixture{Skills: []Skill{{SkillName: "Rust", Proficiency: 10}}}))

	skills, err := s.Skills(ctx)
	require.NoError(t, err)
	require.Len(t, skills, 1)
	assert.Equal(t, "Rust", skills[0].SkillName)

	home, err := s.Home(ctx)
	require.NoError(t, err)
	assert.Empty(t, home.Title)

	contacts, err := s.Contacts(ctx)
	require.NoError(t, err)
	assert.Len(t, contacts, 1)
}

func TestStore_SeedRejectsBadProficiency(t *testing.T) {
	s := seededStore(t)
	ctx := context.Background()

	err := s.Seed(ctx, &Fixture{Skills: []Skill{{SkillName: "Go", Proficiency: 101}}})
	require.Error(t, err)

	// The transaction rolled back; the previous content is intact.
	skills, err := s.Skills(ctx)
	require.NoError(t, err)
	assert.Len(t, skills, 2)
}

func TestParseFixture_Invalid(t *testing.T) {
	_, err := ParseFixture([]byte("skills: [:"))
	assert.Error(t, err)
}
