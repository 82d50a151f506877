package portfolio

import (
	"context"
	"errors"
	"net"

	"github.com/hupe1980/meshbot/core"
	"github.com/hupe1980/meshbot/tool"
)

// TimeoutReport is reported to the model when the API does not answer in time.
const TimeoutReport = "The request timed out. Please try again later."

// Fetcher is the read side of Client.
type Fetcher interface {
	Fetch(ctx context.Context, path string) (any, error)
}

type queryArgs struct {
	Query string `json:"query,omitempty" description:"Free-text hint describing what the user asked for; not used for filtering"`
}

type endpoint struct {
	name        string
	path        string
	description string
}

var endpoints = []endpoint{
	{"get_api_overview", "", "List the available portfolio API endpoints."},
	{"get_home", "home/", "Fetch the portfolio home section: title, subtitle and social links."},
	{"get_about", "about/", "Fetch the about section: the owner's name and biography."},
	{"get_skilled", "skilled/", "Fetch the skills section header and its introduction."},
	{"get_skills", "skills/", "Fetch all skills with their proficiency from 0 to 100."},
	{"get_work", "work/", "Fetch the list of portfolio projects with their links."},
}

// Tools returns one tool per API endpoint. Every tool answers with
// {"status": "success", "report": <data>} or {"status": "error", "report": <message>};
// fetch failures are reported to the model rather than failing the call.
func Tools(f Fetcher) []tool.Tool {
	tools := make([]tool.Tool, 0, len(endpoints))
	for _, ep := range endpoints {
		tools = append(tools, tool.NewFunctionToolFromStruct(ep.name, ep.description, queryArgs{},
			func(tc *core.ToolContext, _ map[string]any) (any, error) {
				data, err := f.Fetch(tc.Context(), ep.path)
				if err != nil {
					tc.Logger().Warn("portfolio.tool.failed", "tool", ep.name, "error", err)
					return Report(nil, err), nil
				}
				return Report(data, nil), nil
			}))
	}
	return tools
}

// Report builds the status/report envelope returned by the tools.
func Report(data any, err error) map[string]any {
	if err == nil {
		return map[string]any{"status": "success", "report": data}
	}
	if isTimeout(err) {
		return map[string]any{"status": "error", "report": TimeoutReport}
	}
	return map[string]any{"status": "error", "report": "An error occurred: " + err.Error()}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
