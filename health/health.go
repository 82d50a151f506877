// Package health probes the upstream services the bot depends on.
//
// A probe only checks reachability: any HTTP response counts as reachable,
// a transport error does not. Probes run once at startup and then on a cron
// schedule; the latest report is served by the health endpoint.
package health

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/hupe1980/meshbot/logging"
)

// DefaultSchedule runs a probe every ten minutes.
const DefaultSchedule = "@every 10m"

// Target is an upstream endpoint to probe.
type Target struct {
	Name string `yaml:"name" json:"name"`
	URL  string `yaml:"url" json:"url"`
}

// DefaultTargets are the model provider and the Telegram API.
var DefaultTargets = []Target{
	{Name: "groq", URL: "https://api.groq.com"},
	{Name: "telegram", URL: "https://api.telegram.org"},
}

// Result is the outcome for one target.
type Result struct {
	Name      string `json:"name"`
	Reachable bool   `json:"reachable"`
	Status    int    `json:"status,omitempty"`
	LatencyMS int64  `json:"latency_ms"`
	Error     string `json:"error,omitempty"`
}

// Report is the outcome of one probe run.
type Report struct {
	CheckedAt time.Time `json:"checked_at"`
	OK        bool      `json:"ok"`
	Results   []Result  `json:"results"`
}

// Options configure a Prober.
type Options struct {
	Targets []Target
	// Schedule is a cron spec; descriptors like "@every 5m" are accepted.
	Schedule   string
	Timeout    time.Duration
	HTTPClient *http.Client
	Logger     logging.Logger
}

// Prober checks targets periodically.
type Prober struct {
	opts   Options
	client *http.Client

	mu   sync.RWMutex
	last *Report
}

// NewProber creates a prober.
func NewProber(optFns ...func(o *Options)) *Prober {
	opts := Options{
		Targets:  DefaultTargets,
		Schedule: DefaultSchedule,
		Timeout:  10 * time.Second,
		Logger:   logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}

	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: opts.Timeout}
	}

	return &Prober{opts: opts, client: client}
}

// Check probes every target concurrently and records the report.
func (p *Prober) Check(ctx context.Context) Report {
	results := make([]Result, len(p.opts.Targets))

	var wg sync.WaitGroup
	for i, t := range p.opts.Targets {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = p.probe(ctx, t)
		}()
	}
	wg.Wait()

	report := Report{CheckedAt: time.Now().UTC(), OK: true, Results: results}
	for _, r := range results {
		if !r.Reachable {
			report.OK = false
		}
	}

	p.mu.Lock()
	p.last = &report
	p.mu.Unlock()

	if report.OK {
		p.opts.Logger.Info("health.check.passed", "targets", len(results))
	} else {
		p.opts.Logger.Error("health.check.failed", "results", results)
	}

	return report
}

func (p *Prober) probe(ctx context.Context, t Target) Result {
	res := Result{Name: t.Name}
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.URL, nil)
	if err != nil {
		res.Error = err.Error()
		return res
	}

	resp, err := p.client.Do(req)
	res.LatencyMS = time.Since(start).Milliseconds()
	if err != nil {
		res.Error = err.Error()
		return res
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	_ = resp.Body.Close()

	res.Reachable = true
	res.Status = resp.StatusCode
	return res
}

// Last returns the most recent report, if any.
func (p *Prober) Last() (Report, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.last == nil {
		return Report{}, false
	}
	return *p.last, true
}

// Start runs a check now and then on the schedule until ctx is done.
func (p *Prober) Start(ctx context.Context) error {
	c := cron.New()
	if _, err := c.AddFunc(p.opts.Schedule, func() { p.Check(ctx) }); err != nil {
		return fmt.Errorf("health: schedule %q: %w", p.opts.Schedule, err)
	}

	go p.Check(ctx)
	c.Start()

	go func() {
		<-ctx.Done()
		<-c.Stop().Done()
	}()

	return nil
}

// ValidateSchedule reports whether spec is a usable schedule.
func ValidateSchedule(spec string) error {
	_, err := cron.ParseStandard(spec)
	return err
}
