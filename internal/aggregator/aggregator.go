// Package aggregator drives one collection run: page through the tracker's
// issues, classify them, and hand the tallies to the measurement factory.
package aggregator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/GripQA/client-tools/internal/config"
	"github.com/GripQA/client-tools/internal/logger"
	"github.com/GripQA/client-tools/internal/measurement"
	"github.com/GripQA/client-tools/internal/model"
	"github.com/GripQA/client-tools/internal/scanner"
	"github.com/GripQA/client-tools/internal/transport"
)

// State is the aggregator's position in one run.
type State int

const (
	StateInit State = iota
	StateFetching
	StateClassifying
	StateFinalized
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "init"
	case StateFetching:
		return "fetching"
	case StateClassifying:
		return "classifying"
	case StateFinalized:
		return "finalized"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}

const (
	maxRetries   = 3
	retryBackoff = 500 * time.Millisecond
)

// AggregationFailed wraps the error that terminated a run. No partial
// output accompanies it.
type AggregationFailed struct {
	State State
	Err   error
}

func (e *AggregationFailed) Error() string {
	return fmt.Sprintf("aggregation failed in state %s: %v", e.State, e.Err)
}

func (e *AggregationFailed) Unwrap() error { return e.Err }

// Result is the complete output of one successful run. Measurement order is
// computation order and is stable across identical inputs.
type Result struct {
	RunID        string                    `json:"run_id"`
	StartedAt    time.Time                 `json:"started_at"`
	Measurements []measurement.Measurement `json:"measurements"`
}

// IssueSource is the revision-independent tracker surface the aggregator
// drives. *jira.Adapter implements it.
type IssueSource interface {
	Resolve(ctx context.Context) error
	SearchIssues(ctx context.Context, query, pageToken string) ([]model.Issue, string, error)
	FieldMetadata(ctx context.Context) (model.FieldMetadata, error)
}

// Aggregator runs the Init -> Fetching -> Classifying -> Finalized state
// machine. One Aggregator serves one run.
type Aggregator struct {
	src     IssueSource
	cfg     config.Jira
	scan    *scanner.Scanner
	log     *zap.Logger
	state   State
	backoff time.Duration

	defectTypes      map[string]struct{}
	requirementTypes map[string]struct{}
	closedStatuses   map[string]struct{}
}

// New builds an aggregator for one run against the given source.
func New(src IssueSource, jiraCfg config.Jira, scanCfg config.Scanner) (*Aggregator, error) {
	scan, err := scanner.New(scanCfg.MarkerPattern, scanner.DedupScope(scanCfg.DedupScope))
	if err != nil {
		return nil, err
	}
	return &Aggregator{
		src:              src,
		cfg:              jiraCfg,
		scan:             scan,
		log:              logger.GetLogger(),
		state:            StateInit,
		backoff:          retryBackoff,
		defectTypes:      toSet(jiraCfg.DefectTypes),
		requirementTypes: toSet(jiraCfg.RequirementTypes),
		closedStatuses:   toSet(jiraCfg.ClosedStatuses),
	}, nil
}

func toSet(names []string) map[string]struct{} {
	set := make(map[string]struct{}, len(names))
	for _, n := range names {
		set[n] = struct{}{}
	}
	return set
}

// State returns the aggregator's current state.
func (a *Aggregator) State() State { return a.state }

// Run executes one aggregation pass. It returns the full result or a
// *AggregationFailed, never both and never a partial result.
func (a *Aggregator) Run(ctx context.Context) (*Result, error) {
	runStart := time.Now().UTC()
	factory := measurement.NewFactory(runStart)
	runID := uuid.NewString()
	log := logger.WithRun(runID)

	if err := a.withRetry(ctx, "resolve", func() error { return a.src.Resolve(ctx) }); err != nil {
		return nil, a.fail(err)
	}
	a.state = StateFetching

	issues, err := a.fetchAll(ctx, log)
	if err != nil {
		return nil, a.fail(err)
	}

	a.state = StateClassifying
	meta, err := a.fetchMetadata(ctx)
	if err != nil {
		return nil, a.fail(err)
	}
	a.checkConfiguredTypes(meta, log)

	measurements, err := a.classify(issues, factory, log)
	if err != nil {
		return nil, a.fail(err)
	}

	a.state = StateFinalized
	log.Info("aggregation finalized",
		zap.Int("issues", len(issues)),
		zap.Int("measurements", len(measurements)))
	return &Result{
		RunID:        runID,
		StartedAt:    runStart,
		Measurements: measurements,
	}, nil
}

func (a *Aggregator) fail(err error) error {
	failed := &AggregationFailed{State: a.state, Err: err}
	a.state = StateFailed
	a.log.Error("aggregation failed", zap.Error(err))
	return failed
}

// fetchAll pages through the search results in token order, preserving
// fetch order within and across pages.
func (a *Aggregator) fetchAll(ctx context.Context, log *zap.Logger) ([]model.Issue, error) {
	query := fmt.Sprintf("project=%s order by created asc", a.cfg.Project)
	var all []model.Issue
	token := ""
	for page := 0; ; page++ {
		var issues []model.Issue
		var next string
		err := a.withRetry(ctx, "search", func() error {
			var err error
			issues, next, err = a.src.SearchIssues(ctx, query, token)
			return err
		})
		if err != nil {
			return nil, err
		}
		all = append(all, issues...)
		log.Debug("fetched page", zap.Int("page", page), zap.Int("issues", len(issues)))
		if next == "" {
			break
		}
		token = next
	}
	return all, nil
}

func (a *Aggregator) fetchMetadata(ctx context.Context) (model.FieldMetadata, error) {
	var meta model.FieldMetadata
	err := a.withRetry(ctx, "field metadata", func() error {
		var err error
		meta, err = a.src.FieldMetadata(ctx)
		return err
	})
	return meta, err
}

// checkConfiguredTypes warns when a configured classification name is not
// among the tracker's declared issue type values. Classification still runs;
// the mismatch usually means a typo in the config.
func (a *Aggregator) checkConfiguredTypes(meta model.FieldMetadata, log *zap.Logger) {
	info, ok := meta["Issue Type"]
	if !ok || len(info.Values) == 0 {
		return
	}
	declared := toSet(info.Values)
	for name := range a.defectTypes {
		if _, ok := declared[name]; !ok {
			log.Warn("configured defect type not declared by tracker", zap.String("type", name))
		}
	}
	for name := range a.requirementTypes {
		if _, ok := declared[name]; !ok {
			log.Warn("configured requirement type not declared by tracker", zap.String("type", name))
		}
	}
}

// classify walks the working set in fetch order, tallies open defects and
// requirement markers, and emits the measurement sequence.
func (a *Aggregator) classify(issues []model.Issue, factory *measurement.Factory, log *zap.Logger) ([]measurement.Measurement, error) {
	var out []measurement.Measurement
	openDefects := 0
	requirements := 0
	defectsTotal := 0

	for i := range issues {
		issue := &issues[i]
		issue.Type = a.issueType(issue.TypeName)

		switch issue.Type {
		case model.TypeDefect:
			defectsTotal++
			if !a.isClosed(issue.Status) {
				openDefects++
			}
			if a.cfg.EmitTrail {
				m, err := factory.New(measurement.DefectCount, float64(defectsTotal), issue.CreatedAt, a.cfg.Project, measurement.SourceJira)
				if err != nil {
					return nil, err
				}
				out = append(out, m)
			}
		case model.TypeRequirement:
			requirements += a.scan.Count(issue.TextBody)
		default:
			// Text-bearing issues of any other type can still reference
			// requirements.
			if issue.TextBody != "" {
				requirements += a.scan.Count(issue.TextBody)
			}
		}

		if a.cfg.EmitTrail {
			m, err := factory.New(measurement.IssueCount, float64(i+1), issue.CreatedAt, a.cfg.Project, measurement.SourceJira)
			if err != nil {
				return nil, err
			}
			out = append(out, m)
		}
	}

	open, err := factory.New(measurement.OpenDefectCount, float64(openDefects), "", a.cfg.Project, measurement.SourceJira)
	if err != nil {
		return nil, err
	}
	reqs, err := factory.New(measurement.RequirementCount, float64(requirements), "", a.cfg.Project, measurement.SourceJira)
	if err != nil {
		return nil, err
	}
	out = append(out, open, reqs)

	log.Info("classified issues",
		zap.Int("open_defects", openDefects),
		zap.Int("requirements", requirements))
	return out, nil
}

func (a *Aggregator) issueType(name string) model.IssueType {
	if name == model.UnknownSentinel || name == "" {
		return model.TypeUnknown
	}
	if _, ok := a.defectTypes[name]; ok {
		return model.TypeDefect
	}
	if _, ok := a.requirementTypes[name]; ok {
		return model.TypeRequirement
	}
	return model.TypeOther
}

func (a *Aggregator) isClosed(status string) bool {
	_, ok := a.closedStatuses[status]
	return ok
}

// withRetry runs fn, retrying transient transport failures up to maxRetries
// times with a fixed backoff. Permanent failures and non-transport errors
// return immediately.
func (a *Aggregator) withRetry(ctx context.Context, op string, fn func() error) error {
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(a.backoff):
			}
		}
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err
		var terr *transport.Error
		if errors.As(err, &terr) && terr.Transient() {
			a.log.Warn("transient failure, retrying",
				zap.String("op", op),
				zap.Int("attempt", attempt+1),
				zap.Error(err))
			continue
		}
		return err
	}
	return lastErr
}
