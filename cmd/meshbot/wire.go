package main

import (
	"fmt"
	"io"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/hupe1980/meshbot"
	"github.com/hupe1980/meshbot/agent"
	"github.com/hupe1980/meshbot/config"
	"github.com/hupe1980/meshbot/dispatch"
	"github.com/hupe1980/meshbot/logging"
	"github.com/hupe1980/meshbot/model"
	modelanthropic "github.com/hupe1980/meshbot/model/anthropic"
	modelopenai "github.com/hupe1980/meshbot/model/openai"
	"github.com/hupe1980/meshbot/portfolio"
	"github.com/hupe1980/meshbot/roster"
	"github.com/hupe1980/meshbot/tool"
)

func newLogger(cfg *config.Config, out io.Writer) *logging.BotLogger {
	return logging.NewBotLogger(&logging.Config{
		Level:  logging.ParseLevel(cfg.Log.Level),
		Format: cfg.Log.Format,
		Output: out,
	})
}

// newModelFactory resolves roster descriptors through the configured providers.
func newModelFactory(cfg *config.Config) agent.ModelFactory {
	return agent.ModelFactoryFunc(func(d roster.Descriptor) (model.Model, error) {
		p, ok := cfg.Providers[d.Provider]
		if !ok {
			return nil, fmt.Errorf("unknown provider %q for responder %s", d.Provider, d.Name)
		}

		switch p.Kind {
		case config.KindOpenAI:
			return modelopenai.NewModel(func(o *modelopenai.Options) {
				o.Model = d.Name
				o.Provider = d.Provider
				o.BaseURL = p.BaseURL
				o.APIKey = p.APIKey
				o.MaxCompletionTokens = d.MaxOutputTokens
				o.Timeout = d.Timeout
				o.MaxRetries = d.TransportRetries
				if p.Temperature > 0 {
					o.Temperature = p.Temperature
				}
			}), nil
		case config.KindAnthropic:
			return modelanthropic.NewModel(func(o *modelanthropic.Options) {
				o.Model = anthropic.Model(d.Name)
				o.BaseURL = p.BaseURL
				o.APIKey = p.APIKey
				o.MaxTokens = d.MaxOutputTokens
				o.Timeout = d.Timeout
				o.MaxRetries = d.TransportRetries
				if p.Temperature > 0 {
					o.Temperature = p.Temperature
				}
			}), nil
		case config.KindMock:
			return model.NewMockModel(d.Name, d.Provider), nil
		default:
			return nil, fmt.Errorf("provider %q has unsupported kind %q", d.Provider, p.Kind)
		}
	})
}

// newResponder builds the agent with the escalation tool and, when a
// portfolio API is configured, the content tools.
func newResponder(cfg *config.Config, logger logging.Logger) (*agent.Responder, error) {
	tools := []tool.Tool{tool.NewEscalateTool()}
	if cfg.Portfolio.APIBaseURL != "" {
		client := portfolio.NewClient(cfg.Portfolio.APIBaseURL, func(o *portfolio.ClientOptions) {
			o.Timeout = cfg.Portfolio.Timeout
			o.Logger = logger
		})
		tools = append(tools, portfolio.Tools(client)...)
	}

	return agent.NewResponder(newModelFactory(cfg), func(o *agent.ResponderOptions) {
		if cfg.Agent.Instruction != "" {
			o.Instruction = agent.NewInstructionFromText(cfg.Agent.Instruction)
		}
		if cfg.Agent.Owner != "" {
			o.Vars = map[string]any{"owner": cfg.Agent.Owner}
		}
		o.MaxHistoryTurns = cfg.Agent.MaxHistoryTurns
		o.MaxModelCalls = cfg.Agent.MaxModelCalls
		o.Tools = tools
		o.Logger = logger
	})
}

func newBot(cfg *config.Config, logger *logging.BotLogger) (*meshbot.Bot, error) {
	r, err := cfg.Roster.Build()
	if err != nil {
		return nil, err
	}

	responder, err := newResponder(cfg, logger.WithComponent("agent"))
	if err != nil {
		return nil, err
	}

	dispatchLogger := logger.WithComponent("dispatch")

	return meshbot.New(r, responder, func(o *meshbot.Options) {
		o.AppName = cfg.AppName
		o.MaxAttempts = cfg.Dispatch.MaxAttempts
		o.Backoff = &dispatch.Backoff{Unit: cfg.Dispatch.BackoffUnit, CapUnits: cfg.Dispatch.BackoffCap}
		o.MaxConcurrent = cfg.Runner.MaxConcurrent
		o.RunTimeout = cfg.Runner.Timeout
		o.Logger = dispatchLogger
		o.OnTransition = func(t dispatch.Transition) {
			dispatchLogger.Debug("dispatch.transition", "conversation", t.Key,
				"from", t.From.String(), "to", t.To.String(), "attempt", t.Attempt, "responder", t.Responder)
		}
	}), nil
}
