package domain

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sync"

	"golang.org/x/sync/errgroup"

	"defectbench.dev/pkg/defectbench/internal/controller"
	m "defectbench.dev/pkg/defectbench/internal/model"
	"defectbench.dev/pkg/defectbench/pkg"
)

// Unit is one independent piece of scheduled work.
type Unit struct {
	TestCase m.TestCase
	Spec     m.BuildSpec
}

// BuildUnits pairs every case with its build spec.
func BuildUnits(cases []m.TestCase, opts BuildOptions) []Unit {
	units := make([]Unit, 0, len(cases))
	for _, tc := range cases {
		units = append(units, Unit{TestCase: tc, Spec: BuildSpecFor(tc, opts)})
	}

	return units
}

// ScheduleStats summarizes a Schedule call.
type ScheduleStats struct {
	Completed int
	Skipped   int
	Cancelled bool
}

// Scheduler runs units on a bounded worker pool and records one outcome
// per unit that started.
type Scheduler interface {
	Schedule(ctx context.Context, units []Unit, sink pkg.FileSpill[m.Outcome]) (ScheduleStats, error)
}

type scheduler struct {
	runner  TrialRunner
	oracle  DynamicOracle
	invoker AnalysisInvoker
	ui      controller.UI
	workers int
}

// NewScheduler creates a Scheduler. workers <= 0 selects runtime.NumCPU().
func NewScheduler(runner TrialRunner, oracle DynamicOracle, invoker AnalysisInvoker, ui controller.UI, workers int) Scheduler {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	return &scheduler{
		runner:  runner,
		oracle:  oracle,
		invoker: invoker,
		ui:      ui,
		workers: workers,
	}
}

func (s *scheduler) Schedule(ctx context.Context, units []Unit, sink pkg.FileSpill[m.Outcome]) (ScheduleStats, error) {
	s.ui.DisplayConcurrencyInfo(ctx, s.workers, len(units))

	var (
		stats   ScheduleStats
		statsMu sync.Mutex
		sinkMu  sync.Mutex
	)

	workerIDs := make(chan int, s.workers)
	for i := range s.workers {
		workerIDs <- i
	}

	var group errgroup.Group
	group.SetLimit(s.workers)

	for i, unit := range units {
		if ctx.Err() != nil {
			statsMu.Lock()
			stats.Skipped += len(units) - i
			statsMu.Unlock()

			break
		}

		current := unit

		group.Go(func() error {
			// The slot may have been granted after cancellation.
			if ctx.Err() != nil {
				statsMu.Lock()
				stats.Skipped++
				statsMu.Unlock()

				return nil
			}

			workerID := <-workerIDs
			defer func() { workerIDs <- workerID }()

			s.ui.DisplayStartingTrialInfo(ctx, current.TestCase, workerID)

			outcome := s.process(ctx, current)

			sinkMu.Lock()
			err := sink.Append(outcome)
			sinkMu.Unlock()

			if err != nil {
				return fmt.Errorf("record outcome of %s: %w", current.TestCase.ID, err)
			}

			statsMu.Lock()
			stats.Completed++
			statsMu.Unlock()

			s.ui.DisplayCompletedTrialInfo(ctx, outcome, Classify(outcome.Oracle, outcome.Tool))

			return nil
		})
	}

	err := group.Wait()

	stats.Cancelled = ctx.Err() != nil
	if stats.Cancelled {
		slog.Info("Run cancelled", "completed", stats.Completed, "skipped", stats.Skipped)
	}

	return stats, err
}

func (s *scheduler) process(ctx context.Context, unit Unit) m.Outcome {
	tc := unit.TestCase

	trial := s.runner.Run(ctx, tc, unit.Spec)
	verdict := s.oracle.Evaluate(ctx, tc, trial)

	outcome := m.Outcome{
		TestCase: tc,
		Trial:    trial,
		Oracle:   verdict,
	}

	if trial.Exit.Kind == m.ExitCancelled {
		outcome.Tool = toolError("cancelled")
		return outcome
	}

	outcome.Tool, outcome.ToolRun = s.invoker.Invoke(ctx, tc)

	slog.Debug("Unit finished",
		"case", tc.ID,
		"exit", trial.Exit.String(),
		"oracle", verdict.Kind.String(),
		"tool", outcome.Tool.Kind.String(),
	)

	return outcome
}
