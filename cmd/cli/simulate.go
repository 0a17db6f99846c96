package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/turtacn/throttle/internal/application/dto"
	"github.com/turtacn/throttle/internal/config"
	"github.com/turtacn/throttle/internal/domain/models"
	"github.com/turtacn/throttle/internal/infrastructure/ratelimit"
	"github.com/turtacn/throttle/pkg/errors"
	"github.com/turtacn/throttle/pkg/logger"
)

// simulatedStep is one decision of a simulation run.
type simulatedStep struct {
	Request  int             `json:"request" yaml:"request"`
	Offset   string          `json:"offset" yaml:"offset"`
	ResetsIn string          `json:"resets_in" yaml:"resets_in"`
	Decision dto.DecisionDTO `json:"decision" yaml:"decision"`
}

type simulateOptions struct {
	requests int
	interval time.Duration
	key      string
	format   string
}

func newSimulateCommand(load func() (*config.Config, error)) *cobra.Command {
	opts := simulateOptions{}

	cmd := &cobra.Command{
		Use:   "simulate <limiter>",
		Short: "Replay a burst of requests against a limiter with a simulated clock",
		Long: `simulate drives an in-memory copy of the named limiter. Requests are spaced
by --interval on a simulated clock, so long windows replay instantly.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkFormat(opts.format); err != nil {
				return err
			}
			cfg, err := load()
			if err != nil {
				return err
			}
			rules, err := cfg.RateLimit.Rules()
			if err != nil {
				return err
			}
			rule, err := findRule(rules, args[0])
			if err != nil {
				return err
			}

			steps, err := simulate(cmd.Context(), rule, opts)
			if err != nil {
				return err
			}
			return writeSteps(cmd.OutOrStdout(), opts.format, steps)
		},
	}
	cmd.Flags().IntVar(&opts.requests, "requests", 0, "number of requests to send (default: max requests + 2)")
	cmd.Flags().DurationVar(&opts.interval, "interval", 0, "simulated time between requests")
	cmd.Flags().StringVar(&opts.key, "key", "ip:203.0.113.10", "rate limit key the requests share")
	cmd.Flags().StringVarP(&opts.format, "output", "o", formatTable, "output format: table, json or yaml")
	return cmd
}

func findRule(rules []models.RateLimitRule, name string) (models.RateLimitRule, error) {
	for _, rule := range rules {
		if rule.Name == name {
			return rule, nil
		}
	}
	return models.RateLimitRule{}, errors.ErrUnknownLimiter.WithMessage("unknown rate limiter %q", name)
}

func simulate(ctx context.Context, rule models.RateLimitRule, opts simulateOptions) ([]simulatedStep, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	requests := opts.requests
	if requests <= 0 {
		requests = rule.MaxRequests + 2
	}
	if opts.interval < 0 {
		return nil, fmt.Errorf("interval must not be negative")
	}

	start := time.Now().UTC().Truncate(time.Second)
	now := start
	clock := func() time.Time { return now }

	store := ratelimit.NewMemoryStore(rule.Name, rule.Window, ratelimit.WithSweepInterval(0))
	defer store.Close()

	limiter, err := ratelimit.NewSlidingWindowLimiter(rule, store, logger.NewNoopLogger(),
		ratelimit.WithClock(clock),
		ratelimit.WithTrustedSources(nil),
	)
	if err != nil {
		return nil, err
	}

	steps := make([]simulatedStep, 0, requests)
	for i := 0; i < requests; i++ {
		if i > 0 {
			now = now.Add(opts.interval)
		}
		result := limiter.CheckLimit(ctx, opts.key)
		steps = append(steps, simulatedStep{
			Request:  i + 1,
			Offset:   now.Sub(start).String(),
			ResetsIn: result.ResetAt.Sub(now).String(),
			Decision: dto.NewDecisionDTO(rule.Name, opts.key, result),
		})
	}
	return steps, nil
}

func writeSteps(w io.Writer, format string, steps []simulatedStep) error {
	switch format {
	case formatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(steps)
	case formatYAML:
		enc := yaml.NewEncoder(w)
		defer enc.Close()
		return enc.Encode(steps)
	}

	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"#", "At", "Allowed", "Remaining", "Resets In"})
	allowed := 0
	for _, s := range steps {
		if s.Decision.Allowed {
			allowed++
		}
		t.AppendRow(table.Row{s.Request, s.Offset, s.Decision.Allowed, s.Decision.Remaining, s.ResetsIn})
	}
	t.AppendFooter(table.Row{"", "", fmt.Sprintf("%d/%d", allowed, len(steps)), "", ""})
	_, err := fmt.Fprintln(w, t.Render())
	return err
}
