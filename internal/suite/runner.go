package suite

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/WangZhewei1027/demoprobe/internal/config"
	"github.com/WangZhewei1027/demoprobe/internal/expect"
	"github.com/WangZhewei1027/demoprobe/internal/fixtures"
	"github.com/WangZhewei1027/demoprobe/internal/harness"
)

// Result is the outcome of one check.
type Result struct {
	Suite    string
	Check    string
	Err      error
	Duration time.Duration
}

// Summary aggregates a run's results.
type Summary struct {
	Total   int
	Failed  int
	Results []Result
}

// Runner executes suites against a shared browser with bounded concurrency.
// Each check runs in its own session; a failing check never aborts the rest
// of the run.
type Runner struct {
	logger  *zap.Logger
	cfg     config.Interface
	manager *harness.Manager
	server  *fixtures.Server
}

func NewRunner(logger *zap.Logger, cfg config.Interface, manager *harness.Manager, server *fixtures.Server) *Runner {
	return &Runner{
		logger:  logger,
		cfg:     cfg,
		manager: manager,
		server:  server,
	}
}

// Run executes every check in the given suites and returns the summary. The
// only error return is catastrophic (context canceled before completion);
// individual check failures are reported in the summary.
func (r *Runner) Run(ctx context.Context, suites []Suite) (Summary, error) {
	var (
		mu      sync.Mutex
		results []Result
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.Runner().Concurrency)

	for _, s := range suites {
		for _, c := range s.Checks {
			g.Go(func() error {
				start := time.Now()
				err := r.runCheck(gctx, s, c)
				mu.Lock()
				results = append(results, Result{
					Suite:    s.Name,
					Check:    c.Name,
					Err:      err,
					Duration: time.Since(start),
				})
				mu.Unlock()

				if err != nil {
					r.logger.Warn("Check failed",
						zap.String("suite", s.Name),
						zap.String("check", c.Name),
						zap.Error(err))
				} else {
					r.logger.Info("Check passed",
						zap.String("suite", s.Name),
						zap.String("check", c.Name),
						zap.Duration("duration", time.Since(start)))
				}
				return nil
			})
		}
	}

	if err := g.Wait(); err != nil {
		return Summary{}, err
	}

	summary := Summary{Total: len(results), Results: results}
	for _, res := range results {
		if res.Err != nil {
			summary.Failed++
		}
	}
	return summary, nil
}

func (r *Runner) runCheck(ctx context.Context, s Suite, c Check) (err error) {
	session, err := r.manager.NewSession(ctx)
	if err != nil {
		return fmt.Errorf("failed to open session: %w", err)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if closeErr := session.Close(closeCtx); closeErr != nil && err == nil {
			err = fmt.Errorf("session close failed: %w", closeErr)
		}
	}()

	// The zero Readiness waits for the load event, which suits every fixture.
	if err := session.Goto(ctx, r.server.PageURL(s.Page), s.Ready); err != nil {
		return fmt.Errorf("failed to load %s: %w", s.Page, err)
	}

	if err := c.Fn(ctx, session); err != nil {
		return err
	}
	if !c.AllowPageErrors {
		return expect.CheckNoUnexpectedErrors(session)
	}
	return nil
}
