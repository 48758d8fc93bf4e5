package calibration

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"epicalib/adapters/simulator"
	"epicalib/domain/core"
	"epicalib/domain/scenario"
	"epicalib/domain/verdict"
	apperrors "epicalib/internal/errors"
	"epicalib/ports"
)

// SuiteConfig locates the baseline inputs and controls scheduling
type SuiteConfig struct {
	BaselineParams string
	HouseholdFile  string
	LineNumber     int
	WorkspaceRoot  string
	KeepArtifacts  bool
	Parallelism    int
}

// SimulatorFactory builds the simulator bound to one workspace
type SimulatorFactory func(ws *Workspace) ports.Simulator

// ExecutorFactory runs binary as a subprocess inside each workspace
func ExecutorFactory(binary, timeSeriesFile, transmissionFile string) SimulatorFactory {
	return func(ws *Workspace) ports.Simulator {
		return simulator.NewExecutor(simulator.Config{
			Binary:           binary,
			OutputDir:        ws.OutputDir,
			HouseholdFile:    ws.HouseholdFile,
			TimeSeriesFile:   timeSeriesFile,
			TransmissionFile: transmissionFile,
		})
	}
}

// Suite runs a scenario matrix. Each scenario gets its own workspace,
// parameter copy and simulator, so scenarios may run in parallel while the
// trials inside one scenario stay sequential.
type Suite struct {
	cfg          SuiteConfig
	newSimulator SimulatorFactory
	store        ports.ResultStore
	progress     ports.ProgressReporter
}

// NewSuite creates a suite. store and progress may be nil.
func NewSuite(cfg SuiteConfig, newSimulator SimulatorFactory, store ports.ResultStore, progress ports.ProgressReporter) *Suite {
	if cfg.Parallelism < 1 {
		cfg.Parallelism = 1
	}
	if cfg.LineNumber < 1 {
		cfg.LineNumber = 1
	}
	if progress == nil {
		progress = ports.NopProgress{}
	}
	return &Suite{
		cfg:          cfg,
		newSimulator: newSimulator,
		store:        store,
		progress:     progress,
	}
}

// SuiteReport collects the outcomes of one suite run in matrix order
type SuiteReport struct {
	SuiteID    core.SuiteID        `json:"suite_id"`
	Outcomes   []*scenario.Outcome `json:"outcomes"`
	StartedAt  time.Time           `json:"started_at"`
	FinishedAt time.Time           `json:"finished_at"`
	firstFatal error
}

// Counts tallies outcomes by status
func (r *SuiteReport) Counts() (passed, failed, errored int) {
	for _, o := range r.Outcomes {
		switch o.Status {
		case verdict.StatusPassed:
			passed++
		case verdict.StatusFailed:
			failed++
		default:
			errored++
		}
	}
	return passed, failed, errored
}

// Passed reports whether every scenario passed
func (r *SuiteReport) Passed() bool {
	_, failed, errored := r.Counts()
	return failed == 0 && errored == 0
}

// Err summarises what went wrong. Aborted scenarios take precedence over
// failed checks so the error keeps the abort's code.
func (r *SuiteReport) Err() error {
	passed, failed, errored := r.Counts()
	if failed == 0 && errored == 0 {
		return nil
	}
	var names []string
	for _, o := range r.Outcomes {
		if !o.Passed() {
			names = append(names, o.Scenario.Name)
		}
	}
	msg := fmt.Sprintf("%d passed, %d failed, %d aborted: %s", passed, failed, errored, strings.Join(names, ", "))
	if errored > 0 && r.firstFatal != nil {
		return apperrors.Wrap(r.firstFatal, msg)
	}
	return apperrors.InvariantViolation(msg)
}

// Run executes every scenario of m. A failing or aborted scenario does not
// stop the others. The returned error is only set when m is invalid or ctx
// ends before every scenario started; check SuiteReport.Err for verdicts.
func (s *Suite) Run(ctx context.Context, m *scenario.Matrix) (*SuiteReport, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}

	report := &SuiteReport{
		SuiteID:   core.NewSuiteID(),
		Outcomes:  make([]*scenario.Outcome, len(m.Scenarios)),
		StartedAt: time.Now().UTC(),
	}
	log.Printf("[Suite] %s: %d scenarios, parallelism %d", report.SuiteID, len(m.Scenarios), s.cfg.Parallelism)
	s.publish(ports.ProgressEvent{
		Type:    ports.EventSuiteStarted,
		SuiteID: report.SuiteID,
		Trials:  len(m.Scenarios),
	})

	sem := semaphore.NewWeighted(int64(s.cfg.Parallelism))
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		startErr error
	)
	for i, sc := range m.Scenarios {
		if err := sem.Acquire(ctx, 1); err != nil {
			startErr = fmt.Errorf("suite cancelled before scenario %s: %w", sc.Name, err)
			break
		}
		wg.Add(1)
		go func(i int, sc scenario.Scenario) {
			defer wg.Done()
			defer sem.Release(1)

			outcome, err := s.runScenario(ctx, report.SuiteID, withBaseOverrides(m.BaseOverrides, sc))
			mu.Lock()
			report.Outcomes[i] = outcome
			if apperrors.IsFatal(err) && report.firstFatal == nil {
				report.firstFatal = err
			}
			mu.Unlock()
		}(i, sc)
	}
	wg.Wait()

	report.Outcomes = compact(report.Outcomes)
	report.FinishedAt = time.Now().UTC()

	passed, failed, errored := report.Counts()
	log.Printf("[Suite] %s finished in %v: %d passed, %d failed, %d aborted",
		report.SuiteID, report.FinishedAt.Sub(report.StartedAt).Round(time.Millisecond), passed, failed, errored)
	s.publish(ports.ProgressEvent{
		Type:    ports.EventSuiteFinished,
		SuiteID: report.SuiteID,
		Message: fmt.Sprintf("%d passed, %d failed, %d aborted", passed, failed, errored),
	})
	return report, startErr
}

func (s *Suite) runScenario(ctx context.Context, suiteID core.SuiteID, sc scenario.Scenario) (*scenario.Outcome, error) {
	s.publish(ports.ProgressEvent{
		Type:     ports.EventScenarioStarted,
		SuiteID:  suiteID,
		Scenario: sc.Name,
		Trials:   sc.TrialCount(),
	})

	outcome, err := s.execute(ctx, suiteID, sc)
	if err != nil && outcome == nil {
		outcome = abortedOutcome(suiteID, sc, err)
		log.Printf("[Suite] scenario %s could not start: %v", sc.Name, err)
	}

	if s.store != nil {
		if saveErr := s.store.SaveOutcome(ctx, outcome); saveErr != nil {
			log.Printf("[Suite] failed to save outcome of %s: %v", sc.Name, saveErr)
		}
	}

	s.publish(ports.ProgressEvent{
		Type:     ports.EventScenarioFinished,
		SuiteID:  suiteID,
		RunID:    outcome.RunID,
		Scenario: sc.Name,
		Trials:   len(outcome.Trials),
		Status:   string(outcome.Status),
		Message:  outcome.Error,
	})
	return outcome, err
}

func (s *Suite) execute(ctx context.Context, suiteID core.SuiteID, sc scenario.Scenario) (*scenario.Outcome, error) {
	ws, err := NewWorkspace(s.cfg.WorkspaceRoot, sc.Name, s.cfg.BaselineParams, s.cfg.HouseholdFile, s.cfg.KeepArtifacts)
	if err != nil {
		return nil, err
	}
	defer ws.Teardown()

	p, err := ws.Params(s.cfg.LineNumber)
	if err != nil {
		return nil, err
	}

	runner := NewRunner(s.newSimulator(ws), s.progress).WithSuite(suiteID)
	return runner.RunScenario(ctx, p, sc)
}

func (s *Suite) publish(event ports.ProgressEvent) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	s.progress.Publish(event)
}

// withBaseOverrides layers the scenario's own overrides over the matrix-wide ones
func withBaseOverrides(base map[string]string, sc scenario.Scenario) scenario.Scenario {
	if len(base) == 0 {
		return sc
	}
	merged := make(map[string]string, len(base)+len(sc.Overrides))
	for k, v := range base {
		merged[k] = v
	}
	for k, v := range sc.Overrides {
		merged[k] = v
	}
	sc.Overrides = merged
	return sc
}

func abortedOutcome(suiteID core.SuiteID, sc scenario.Scenario, err error) *scenario.Outcome {
	now := time.Now().UTC()
	return &scenario.Outcome{
		RunID:      core.NewRunID(),
		SuiteID:    suiteID,
		Scenario:   sc,
		Status:     verdict.StatusError,
		Error:      err.Error(),
		StartedAt:  now,
		FinishedAt: now,
	}
}

func compact(outcomes []*scenario.Outcome) []*scenario.Outcome {
	out := outcomes[:0]
	for _, o := range outcomes {
		if o != nil {
			out = append(out, o)
		}
	}
	return out
}
