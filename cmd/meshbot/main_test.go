package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/meshbot/config"
	"github.com/hupe1980/meshbot/logging"
	"github.com/hupe1980/meshbot/model"
	modelanthropic "github.com/hupe1980/meshbot/model/anthropic"
	modelopenai "github.com/hupe1980/meshbot/model/openai"
	"github.com/hupe1980/meshbot/portfolio"
	"github.com/hupe1980/meshbot/roster"
)

const mockConfig = `
providers:
  local:
    kind: mock
roster:
  primary:
    name: echo
    provider: local
log:
  level: error
`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func runCmd(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestVersionCmd(t *testing.T) {
	out, err := runCmd(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "meshbot dev (commit: none, built: unknown)\n", out)
}

func TestRootCmd_ListsSubcommands(t *testing.T) {
	out, err := runCmd(t, "--help")
	require.NoError(t, err)
	for _, name := range []string{"serve", "ask", "install-webhook", "seed", "version"} {
		assert.Contains(t, out, name)
	}
}

func TestExecute_ExitCode(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"seed"})
	assert.Equal(t, 1, execute(cmd))
}

func TestAskCmd_MockProvider(t *testing.T) {
	path := writeFile(t, "meshbot.yaml", mockConfig)

	out, err := runCmd(t, "ask", "--config", path, "--user", "alice", "hello")
	require.NoError(t, err)
	assert.Equal(t, "Mock response to: hello", strings.TrimSpace(out))
}

func TestAskCmd_InvalidConfig(t *testing.T) {
	path := writeFile(t, "meshbot.yaml", "log:\n  format: xml\n")

	_, err := runCmd(t, "ask", "-c", path, "hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "log.format")
}

func TestSeedCmd(t *testing.T) {
	fixture := writeFile(t, "fixture.yaml", `
home:
  title: Vicky Kumar
skills:
  - skill_name: Go
    proficiency: 90
works:
  - project_name: Chat bot
`)
	dsn := filepath.Join(t.TempDir(), "portfolio.db")

	out, err := runCmd(t, "seed", fixture, "--dsn", dsn)
	require.NoError(t, err)
	assert.Contains(t, out, "1 skills, 1 works")

	store, err := portfolio.Open(dsn)
	require.NoError(t, err)
	defer store.Close()

	home, err := store.Home(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Vicky Kumar", home.Title)
}

func TestSeedCmd_RequiresDSN(t *testing.T) {
	fixture := writeFile(t, "fixture.yaml", "skills: []\n")

	_, err := runCmd(t, "seed", fixture)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no database")
}

func TestInstallWebhookCmd_RequiresTelegram(t *testing.T) {
	t.Setenv("TELEGRAM_BOT_TOKEN", "")
	t.Setenv("WEBHOOK_SECRET", "")
	path := writeFile(t, "meshbot.yaml", mockConfig)

	_, err := runCmd(t, "install-webhook", "-c", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "telegram.token")
}

func TestInstallWebhookCmd(t *testing.T) {
	t.Setenv("TELEGRAM_BOT_TOKEN", "")
	t.Setenv("PUBLIC_BASE_URL", "")
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/bottok/setWebhook", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"ok":true,"result":true}`))
	}))
	defer srv.Close()

	path := writeFile(t, "meshbot.yaml", mockConfig+`
telegram:
  token: tok
  webhook_secret: s3cret
  public_base_url: https://bot.example.com/
  api_base_url: `+srv.URL+`
`)

	out, err := runCmd(t, "install-webhook", "-c", path)
	require.NoError(t, err)
	assert.Contains(t, out, "https://bot.example.com/webhook")
	assert.Equal(t, "https://bot.example.com/webhook", got["url"])
	assert.Equal(t, "s3cret", got["secret_token"])
}

func TestModelFactory(t *testing.T) {
	cfg, err := config.Parse([]byte(`
providers:
  groq:
    kind: openai
    base_url: https://api.groq.com/openai/v1/
    api_key: k
  claude:
    kind: anthropic
    api_key: k
  local:
    kind: mock
roster:
  primary:
    name: llama-3.3-70b-versatile
    provider: groq
`))
	require.NoError(t, err)
	f := newModelFactory(cfg)

	m, err := f.NewModel(roster.Descriptor{Name: "llama-3.3-70b-versatile", Provider: "groq"})
	require.NoError(t, err)
	assert.IsType(t, &modelopenai.Model{}, m)
	assert.Equal(t, "groq", m.Info().Provider)

	m, err = f.NewModel(roster.Descriptor{Name: "claude-3-5-haiku-latest", Provider: "claude"})
	require.NoError(t, err)
	assert.IsType(t, &modelanthropic.Model{}, m)

	m, err = f.NewModel(roster.Descriptor{Name: "echo", Provider: "local"})
	require.NoError(t, err)
	assert.IsType(t, &model.MockModel{}, m)

	_, err = f.NewModel(roster.Descriptor{Name: "x", Provider: "nope"})
	assert.Error(t, err)
}

func TestServer_Routes(t *testing.T) {
	cfg, err := config.Parse([]byte(mockConfig + `
telegram:
  token: tok
  webhook_secret: s3cret
portfolio:
  dsn: ":memory:"
console:
  enabled: true
`))
	require.NoError(t, err)

	s, err := newServer(cfg, logging.NewBotLogger(&logging.Config{Level: logging.LevelError, Output: &bytes.Buffer{}}))
	require.NoError(t, err)
	defer s.close()

	h := s.routes()

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"ok":true}`, w.Body.String())

	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/skills/", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())

	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(`{}`)))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestNewServer_RequiresSecret(t *testing.T) {
	t.Setenv("WEBHOOK_SECRET", "")
	cfg, err := config.Parse([]byte(mockConfig + "telegram:\n  token: tok\n"))
	require.NoError(t, err)

	_, err = newServer(cfg, logging.NewBotLogger(&logging.Config{Output: &bytes.Buffer{}}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "webhook_secret")
}
