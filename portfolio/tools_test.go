package portfolio

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/meshbot/core"
	"github.com/hupe1980/meshbot/logging"
	"github.com/hupe1980/meshbot/tool"
)

func toolContext() *core.ToolContext {
	key := core.NewConversationKey("blog_assistant_app", "tg_chat_1", "")
	return core.NewToolContext(context.Background(), key, "llama", "call-1", logging.NoOpLogger{})
}

func findTool(t *testing.T, tools []tool.Tool, name string) tool.Tool {
	t.Helper()
	for _, tl := range tools {
		if tl.Name() == name {
			return tl
		}
	}
	t.Fatalf("tool %s not found", name)
	return nil
}

func TestTools_AgainstAPI(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	RegisterRoutes(r, seededStore(t))
	srv := httptest.NewServer(r)
	defer srv.Close()

	tools := Tools(NewClient(srv.URL + "/"))
	require.Len(t, tools, 6)

	res, err := findTool(t, tools, "get_about").Call(toolContext(), map[string]any{"query": "who"})
	require.NoError(t, err)

	report := res.(map[string]any)
	assert.Equal(t, "success", report["status"])
	assert.Equal(t, "Vicky", report["report"].(map[string]any)["name"])

	res, err = findTool(t, tools, "get_work").Call(toolContext(), map[string]any{})
	require.NoError(t, err)
	works := res.(map[string]any)["report"].([]any)
	assert.Len(t, works, 1)
}

func TestTools_ErrorReports(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/home/" {
			time.Sleep(200 * time.Millisecond)
		}
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	tools := Tools(NewClient(srv.URL, func(o *ClientOptions) { o.Timeout = 50 * time.Millisecond }))

	res, err := findTool(t, tools, "get_skills").Call(toolContext(), nil)
	require.NoError(t, err)
	report := res.(map[string]any)
	assert.Equal(t, "error", report["status"])
	assert.Contains(t, report["report"], "An error occurred: 500 Internal Server Error")

	res, err = findTool(t, tools, "get_home").Call(toolContext(), nil)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"status": "error", "report": TimeoutReport}, res)
}

func TestReport(t *testing.T) {
	assert.Equal(t, map[string]any{"status": "success", "report": 1}, Report(1, nil))
	assert.Equal(t, TimeoutReport, Report(nil, context.DeadlineExceeded)["report"])
}
