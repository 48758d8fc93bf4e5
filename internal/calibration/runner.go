package calibration

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"epicalib/adapters/params"
	"epicalib/domain/core"
	"epicalib/domain/epidemic"
	"epicalib/domain/scenario"
	"epicalib/domain/verdict"
	"epicalib/internal"
	apperrors "epicalib/internal/errors"
	"epicalib/internal/extract"
	"epicalib/internal/oracle"
	"epicalib/internal/verify"
	"epicalib/ports"
)

var trialLog = internal.DefaultLogger.For("Runner")

// TrialArtifacts is the outcome of one set-write-run-read step
type TrialArtifacts struct {
	Snapshot    map[string]string
	Fingerprint core.ParameterHash
	Artifacts   *epidemic.Artifacts
	SeriesCheck verify.Result
	Duration    time.Duration
}

// Runner executes scenarios trial by trial against one simulator. A runner
// is used by a single goroutine at a time; parallel scenarios each get their
// own runner and parameter set.
type Runner struct {
	simulator ports.Simulator
	progress  ports.ProgressReporter
	suiteID   core.SuiteID
}

// NewRunner creates a runner. A nil progress reporter discards events.
func NewRunner(simulator ports.Simulator, progress ports.ProgressReporter) *Runner {
	if progress == nil {
		progress = ports.NopProgress{}
	}
	return &Runner{simulator: simulator, progress: progress}
}

// WithSuite returns a copy of the runner that tags its events with suiteID
func (r *Runner) WithSuite(suiteID core.SuiteID) *Runner {
	cp := *r
	cp.suiteID = suiteID
	return &cp
}

// RunAndExtract applies overrides, snapshots the configuration, runs the
// simulator and checks that the cumulative infected count never decreases.
// A decreasing series is returned as an INVARIANT_VIOLATION error together
// with the trial; every other error leaves the trial nil.
func (r *Runner) RunAndExtract(ctx context.Context, p ports.ParameterSet, overrides map[string]string) (*TrialArtifacts, error) {
	if err := params.ApplyTo(p, overrides); err != nil {
		return nil, err
	}
	snapshot := p.Snapshot()

	start := time.Now()
	artifacts, err := r.simulator.Execute(ctx, p)
	if err != nil {
		return nil, err
	}

	trial := &TrialArtifacts{
		Snapshot:    snapshot,
		Fingerprint: core.ComputeParameterHash(snapshot),
		Artifacts:   artifacts,
		SeriesCheck: verify.NonDecreasing(artifacts.TimeSeries),
		Duration:    time.Since(start),
	}
	return trial, trial.SeriesCheck.Err()
}

// scenarioRun carries the state of one RunScenario call
type scenarioRun struct {
	runner  *Runner
	params  ports.ParameterSet
	sc      scenario.Scenario
	outcome *scenario.Outcome
	result  verify.Result
}

// RunScenario runs every trial of sc against p, which the caller has freshly
// loaded from the baseline, and verifies the trials according to the
// scenario kind. Configuration errors, run failures, insufficient growth and
// missing oracle roots abort the scenario and are returned with the partial
// outcome. Failed checks are recorded on the outcome and returned as an
// INVARIANT_VIOLATION error.
func (r *Runner) RunScenario(ctx context.Context, p ports.ParameterSet, sc scenario.Scenario) (*scenario.Outcome, error) {
	run := &scenarioRun{
		runner: r,
		params: p,
		sc:     sc,
		outcome: &scenario.Outcome{
			RunID:     core.NewRunID(),
			SuiteID:   r.suiteID,
			Scenario:  sc,
			StartedAt: time.Now().UTC(),
		},
	}

	log.Printf("[Runner] scenario %s (%s): %d trials", sc.Name, sc.Kind, sc.TrialCount())

	err := run.execute(ctx)
	return run.finish(err)
}

func (run *scenarioRun) execute(ctx context.Context) error {
	if err := params.ApplyTo(run.params, run.sc.Overrides); err != nil {
		return err
	}

	switch run.sc.Kind {
	case scenario.KindGrowthOracle:
		return run.growthOracle(ctx)
	case scenario.KindCounterfactual:
		return run.counterfactual(ctx)
	case scenario.KindMonotone:
		return run.monotone(ctx)
	case scenario.KindAgeGroupMonotone:
		return run.ageGroupMonotone(ctx)
	case scenario.KindTransmissionStructure:
		return run.transmissionStructure(ctx)
	default:
		return apperrors.ConfigInvalid(fmt.Sprintf("unknown scenario kind %q", run.sc.Kind))
	}
}

func (run *scenarioRun) finish(err error) (*scenario.Outcome, error) {
	o := run.outcome
	o.FinishedAt = time.Now().UTC()
	o.Violations = append(o.Violations, run.result.Violations...)

	switch {
	case err != nil:
		o.Status = verdict.StatusError
		o.Error = err.Error()
		log.Printf("[Runner] scenario %s aborted after %d trials: %v", o.Scenario.Name, len(o.Trials), err)
		return o, err
	case len(o.Violations) > 0:
		o.Status = verdict.StatusFailed
		vErr := run.result.Err()
		o.Error = vErr.Error()
		log.Printf("[Runner] scenario %s failed: %d violations", o.Scenario.Name, len(o.Violations))
		return o, vErr
	default:
		o.Status = verdict.StatusPassed
		log.Printf("[Runner] scenario %s passed (%d checks) in %v", o.Scenario.Name, run.result.Checked, o.Duration().Round(time.Millisecond))
		return o, nil
	}
}

// trial runs trial index of the sweep and records it on the outcome
func (run *scenarioRun) trial(ctx context.Context, index int) (*scenario.TrialRecord, *TrialArtifacts, error) {
	overrides := make(map[string]string, len(run.sc.Sweep))
	for name, value := range run.sc.TrialValues(index) {
		overrides[name] = params.FormatValue(value)
	}

	t, err := run.runner.RunAndExtract(ctx, run.params, overrides)
	if t == nil {
		return nil, nil, apperrors.Wrapf(err, "trial %d", index)
	}
	run.result.Merge(seriesResult(t.SeriesCheck, index))

	record := scenario.TrialRecord{
		Index:       index,
		Parameters:  t.Snapshot,
		Fingerprint: t.Fingerprint,
		Driver:      run.sc.Driver(index),
		SeriesRows:  len(t.Artifacts.TimeSeries),
		Events:      len(t.Artifacts.Transmission),
		Duration:    t.Duration,
		Statistics: scenario.Statistics{
			FinalTotalInfected: t.Artifacts.TimeSeries.Final(),
		},
	}
	counts := extract.NetworkCounts(t.Artifacts.Transmission)
	record.Statistics.NetworkCounts = counts[:]

	run.outcome.Trials = append(run.outcome.Trials, record)
	trialLog.Debug("%s trial %d %v: %d events, fingerprint %s", run.sc.Name, index, overrides, record.Events, record.Fingerprint.Short())
	run.runner.progress.Publish(ports.ProgressEvent{
		Type:      ports.EventTrialCompleted,
		SuiteID:   run.runner.suiteID,
		RunID:     run.outcome.RunID,
		Scenario:  run.sc.Name,
		Trial:     index + 1,
		Trials:    run.sc.TrialCount(),
		Timestamp: time.Now().UTC(),
	})
	return &run.outcome.Trials[len(run.outcome.Trials)-1], t, nil
}

// seriesResult tags time-series violations with the trial they came from
func seriesResult(res verify.Result, index int) verify.Result {
	for i := range res.Violations {
		res.Violations[i].Detail = fmt.Sprintf("trial %d: %s between rows %d and %d",
			index, res.Violations[i].Detail, res.Violations[i].FromIndex, res.Violations[i].ToIndex)
		res.Violations[i].FromIndex = index
		res.Violations[i].ToIndex = index
	}
	return res
}

func (run *scenarioRun) growthOracle(ctx context.Context) error {
	for i := 0; i < run.sc.TrialCount(); i++ {
		record, t, err := run.trial(ctx, i)
		if err != nil {
			return err
		}

		values, err := floatsOf(t.Snapshot, "n_total", "infectious_rate", "mean_infectious_period", "sd_infectious_period")
		if err != nil {
			return err
		}
		total, reproduction, mean, sd := values[0], values[1], values[2], values[3]

		rate, err := extract.GrowthRate(t.Artifacts.TimeSeries, run.sc.Growth.FractionLow, run.sc.Growth.FractionHigh, total)
		if err != nil {
			return apperrors.Wrapf(err, "trial %d", i)
		}
		analytic, err := oracle.AnalyticGrowthRate(reproduction, mean, sd)
		if err != nil {
			return apperrors.Wrapf(err, "trial %d", i)
		}

		record.Statistic = rate
		record.Statistics.GrowthRate = rate
		record.Statistics.OracleRate = analytic
		trialLog.Debug("%s trial %d: growth rate %.5f, analytic %.5f", run.sc.Name, i, rate, analytic)
		run.result.Merge(verify.Relative(i, rate, analytic, run.sc.Tolerance.Relative))
	}
	return nil
}

func (run *scenarioRun) counterfactual(ctx context.Context) error {
	network, err := run.sc.NetworkOf()
	if err != nil {
		return apperrors.WithCode(apperrors.CodeConfigInvalid, err)
	}

	base, err := run.runner.RunAndExtract(ctx, run.params, scenario.RelativeTransmissionBasis())
	if base == nil {
		return apperrors.Wrap(err, "baseline run")
	}
	run.result.Merge(seriesResult(base.SeriesCheck, -1))
	baseRatio, err := extract.NetworkAttributionRatio(base.Artifacts.Transmission, network)
	if err != nil {
		return apperrors.Wrap(err, "baseline run")
	}
	baseCounts := extract.NetworkCounts(base.Artifacts.Transmission)
	run.outcome.Baseline = &scenario.TrialRecord{
		Index:       -1,
		Parameters:  base.Snapshot,
		Fingerprint: base.Fingerprint,
		Driver:      1,
		Statistic:   baseRatio,
		SeriesRows:  len(base.Artifacts.TimeSeries),
		Events:      len(base.Artifacts.Transmission),
		Duration:    base.Duration,
		Statistics: scenario.Statistics{
			NetworkRatio:       baseRatio,
			FinalTotalInfected: base.Artifacts.TimeSeries.Final(),
			NetworkCounts:      baseCounts[:],
		},
	}

	for i := 0; i < run.sc.TrialCount(); i++ {
		record, t, err := run.trial(ctx, i)
		if err != nil {
			return err
		}
		scale := record.Driver

		observed, err := extract.NetworkAttributionRatio(t.Artifacts.Transmission, network)
		if err != nil {
			return apperrors.Wrapf(err, "trial %d", i)
		}
		expected, err := extract.WeightedAttributionRatio(base.Artifacts.Transmission, network, scale)
		if err != nil {
			return apperrors.Wrapf(err, "trial %d", i)
		}

		record.Statistic = observed
		record.Statistics.NetworkRatio = observed
		record.Statistics.ExpectedRatio = expected
		run.result.Merge(verify.Absolute(i, observed, expected, run.sc.Tolerance.Absolute))
	}
	return nil
}

func (run *scenarioRun) monotone(ctx context.Context) error {
	var network epidemic.Network
	if run.sc.Statistic == scenario.StatNetworkRatio {
		n, err := run.sc.NetworkOf()
		if err != nil {
			return apperrors.WithCode(apperrors.CodeConfigInvalid, err)
		}
		network = n
	}

	for i := 0; i < run.sc.TrialCount(); i++ {
		record, t, err := run.trial(ctx, i)
		if err != nil {
			return err
		}
		switch run.sc.Statistic {
		case scenario.StatNetworkRatio:
			ratio, err := extract.NetworkAttributionRatio(t.Artifacts.Transmission, network)
			if err != nil {
				return apperrors.Wrapf(err, "trial %d", i)
			}
			record.Statistic = ratio
			record.Statistics.NetworkRatio = ratio
		case scenario.StatFinalTotalInfected:
			final, err := extract.FinalTotalInfected(t.Artifacts.TimeSeries)
			if err != nil {
				return apperrors.Wrapf(err, "trial %d", i)
			}
			record.Statistic = final
		default:
			return apperrors.ConfigInvalid(fmt.Sprintf("unsupported monotone statistic %q", run.sc.Statistic))
		}
	}

	run.result.Merge(verify.Sequence(run.outcome.Trials,
		func(t scenario.TrialRecord) float64 { return t.Driver },
		func(t scenario.TrialRecord) float64 { return t.Statistic },
		verify.Options{
			Direction:       run.sc.Direction,
			DriverTolerance: run.sc.Tolerance.Driver,
			StatTolerance:   run.sc.Tolerance.Statistic,
		}))
	return nil
}

func (run *scenarioRun) ageGroupMonotone(ctx context.Context) error {
	names := make([]string, 0, epidemic.AgeGroupCount)
	for _, band := range epidemic.AgeGroupLabels() {
		names = append(names, "relative_susceptibility_"+band)
	}

	drivers := make([][]float64, 0, run.sc.TrialCount())
	stats := make([][]float64, 0, run.sc.TrialCount())
	for i := 0; i < run.sc.TrialCount(); i++ {
		record, t, err := run.trial(ctx, i)
		if err != nil {
			return err
		}
		susceptibility, err := floatsOf(t.Snapshot, names...)
		if err != nil {
			return err
		}
		counts := extract.PerAgeGroupCounts(t.Artifacts.Transmission)

		record.DriverVector = susceptibility
		record.Statistics.AgeGroupCounts = counts
		drivers = append(drivers, susceptibility)
		stats = append(stats, counts)
	}

	run.result.Merge(verify.Groupwise(drivers, stats, verify.Options{
		Direction:       run.sc.Direction,
		DriverTolerance: run.sc.Tolerance.Driver,
		StatTolerance:   run.sc.Tolerance.Statistic,
	}))
	return nil
}

func (run *scenarioRun) transmissionStructure(ctx context.Context) error {
	_, t, err := run.trial(ctx, 0)
	if err != nil {
		return err
	}
	values, err := floatsOf(t.Snapshot, "n_seed_infection", "mean_infectious_period", "sd_infectious_period")
	if err != nil {
		return err
	}
	run.result.Merge(verify.TransmissionStructure(t.Artifacts, verify.StructureExpectations{
		SeedInfections: int(values[0]),
		InfectiousMean: values[1],
		InfectiousSD:   values[2],
	}))
	return nil
}

// floatsOf reads numeric parameters from a snapshot
func floatsOf(snapshot map[string]string, names ...string) ([]float64, error) {
	out := make([]float64, len(names))
	for i, name := range names {
		raw, ok := snapshot[name]
		if !ok {
			return nil, apperrors.ConfigInvalid(fmt.Sprintf("unknown parameter %q", name))
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil {
			return nil, apperrors.WithCode(apperrors.CodeConfigInvalid, fmt.Errorf("parameter %s is not numeric: %w", name, err))
		}
		out[i] = v
	}
	return out, nil
}
