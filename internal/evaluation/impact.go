package evaluation

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"docgate/internal/ruleset/models"
)

// ImpactSummary is the pre-activation statistic for a candidate draft.
// When Sampled is true the counts are estimates over a head sample of the
// supplied population, not the full population.
type ImpactSummary struct {
	EvaluatedCount           int      `json:"evaluated_count"`
	AffectedCount            int      `json:"affected_count"`
	BlockedCount             int      `json:"blocked_count"`
	PendingVerificationCount int      `json:"pending_verification_count"`
	Sampled                  bool     `json:"sampled"`
	Hazards                  []string `json:"hazards,omitempty"`
}

// Analyzer runs the evaluation engine over a population sample so an
// administrator previews the consequence of activating a draft before
// committing. Evaluation is read-only: no overrides, no audit records.
type Analyzer struct {
	sampleLimit int
	concurrency int
}

// AnalyzerOption configures an Analyzer.
type AnalyzerOption func(*Analyzer)

// WithSampleLimit caps how many entities are evaluated; populations beyond
// the cap are head-sampled deterministically and the summary is marked as an
// estimate.
func WithSampleLimit(limit int) AnalyzerOption {
	return func(a *Analyzer) {
		a.sampleLimit = limit
	}
}

// WithConcurrency bounds the evaluation fan-out.
func WithConcurrency(n int) AnalyzerOption {
	return func(a *Analyzer) {
		a.concurrency = n
	}
}

// NewAnalyzer constructs an impact analyzer with sane defaults.
func NewAnalyzer(opts ...AnalyzerOption) *Analyzer {
	a := &Analyzer{
		sampleLimit: 1000,
		concurrency: 8,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Analyze evaluates the candidate ruleset over the population and counts:
// affected entities (at least one non-allow document outcome), blocked
// entities (aggregate block), and entities with at least one applicable
// document pending verification. Configuration hazards of the candidate are
// surfaced alongside the counts.
func (a *Analyzer) Analyze(ctx context.Context, rs *models.RuleSet, population []EntitySnapshot, stage models.Stage, now time.Time) (*ImpactSummary, error) {
	summary := &ImpactSummary{Hazards: rs.ConfigurationHazards()}

	sample := population
	if len(sample) > a.sampleLimit {
		sample = sample[:a.sampleLimit]
		summary.Sampled = true
	}
	summary.EvaluatedCount = len(sample)

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.concurrency)

	for _, entity := range sample {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			verdict, err := Evaluate(rs, entity, stage, now, nil)
			if err != nil {
				return err
			}

			affected := false
			pending := false
			for _, dv := range verdict.Documents {
				if dv.Outcome != OutcomeAllow {
					affected = true
				}
				if entity.Document(dv.DocumentCategory).Status == StatusPendingVerification {
					pending = true
				}
			}

			mu.Lock()
			defer mu.Unlock()
			if affected {
				summary.AffectedCount++
			}
			if verdict.Outcome == OutcomeBlock {
				summary.BlockedCount++
			}
			if pending {
				summary.PendingVerificationCount++
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return summary, nil
}
