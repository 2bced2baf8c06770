// Package alerting evaluates inventory rules and stores the resulting
// alerts, one cycle at a time.
package alerting

import (
	"context"
	"fmt"
	"time"

	"github.com/upb/hms-audit/models"
	"github.com/upb/hms-audit/repositories"
	"go.uber.org/zap"
)

const (
	DefaultLowStockThreshold = 10
	DefaultExpiryWindowDays  = 30
)

// Rule turns the current inventory into candidate alerts. Title and detail
// must be built only from stable row fields, or deduplication breaks.
type Rule interface {
	Name() string
	Evaluate(ctx context.Context, inv repositories.InventoryReader, asOf time.Time) ([]models.CandidateAlert, error)
}

// LowStockRule warns about every medicine whose count is at or below Threshold
type LowStockRule struct {
	Threshold int
}

// NewLowStockRule creates a low-stock rule. A negative threshold uses the
// default; zero alerts only on items that ran out.
func NewLowStockRule(threshold int) *LowStockRule {
	if threshold < 0 {
		threshold = DefaultLowStockThreshold
	}
	return &LowStockRule{Threshold: threshold}
}

func (r *LowStockRule) Name() string { return "low_stock" }

func (r *LowStockRule) Evaluate(ctx context.Context, inv repositories.InventoryReader, _ time.Time) ([]models.CandidateAlert, error) {
	items, err := inv.ListLowStock(ctx, r.Threshold)
	if err != nil {
		return nil, err
	}

	var out []models.CandidateAlert
	for _, m := range items {
		if m.Count > r.Threshold {
			continue
		}
		out = append(out, models.NewCandidateAlert(
			models.SeverityWarn,
			"Low stock: "+m.Name,
			fmt.Sprintf("ID %s, count=%d", m.ID, m.Count),
		))
	}
	return out, nil
}

// ExpiryRule reports every medicine expiring within WindowDays calendar days
// of the evaluation date.
type ExpiryRule struct {
	WindowDays int
	// Location fixes the calendar used to find today's date. Nil uses asOf's own location.
	Location *time.Location
}

// NewExpiryRule creates an expiry rule. A non-positive window uses the default.
func NewExpiryRule(windowDays int, loc *time.Location) *ExpiryRule {
	if windowDays <= 0 {
		windowDays = DefaultExpiryWindowDays
	}
	return &ExpiryRule{WindowDays: windowDays, Location: loc}
}

func (r *ExpiryRule) Name() string { return "expiry" }

// Cutoff returns the last expiry date that still triggers the rule
func (r *ExpiryRule) Cutoff(asOf time.Time) models.Date {
	if r.Location != nil {
		asOf = asOf.In(r.Location)
	}
	return models.DateOf(asOf).AddDays(r.WindowDays)
}

func (r *ExpiryRule) Evaluate(ctx context.Context, inv repositories.InventoryReader, asOf time.Time) ([]models.CandidateAlert, error) {
	cutoff := r.Cutoff(asOf)
	items, err := inv.ListExpiringBy(ctx, cutoff)
	if err != nil {
		return nil, err
	}

	var out []models.CandidateAlert
	for _, m := range items {
		if m.ExpiryDate.IsZero() || !m.ExpiryDate.OnOrBefore(cutoff) {
			continue
		}
		out = append(out, models.NewCandidateAlert(
			models.SeverityInfo,
			"Expiring soon: "+m.Name,
			fmt.Sprintf("ID %s, expires %s", m.ID, m.ExpiryDate),
		))
	}
	return out, nil
}

// Evaluator runs rules in registration order and concatenates their output
type Evaluator struct {
	rules  []Rule
	logger *zap.Logger
}

// NewEvaluator creates an evaluator over rules
func NewEvaluator(logger *zap.Logger, rules ...Rule) *Evaluator {
	return &Evaluator{rules: rules, logger: logger}
}

// Rules returns the registered rules
func (e *Evaluator) Rules() []Rule {
	return e.rules
}

// Evaluate runs every rule. Any rule error aborts the evaluation, since
// it means the inventory could not be read.
func (e *Evaluator) Evaluate(ctx context.Context, inv repositories.InventoryReader, asOf time.Time) ([]models.CandidateAlert, error) {
	candidates := []models.CandidateAlert{}
	for _, rule := range e.rules {
		out, err := rule.Evaluate(ctx, inv, asOf)
		if err != nil {
			return nil, fmt.Errorf("rule %s: %w", rule.Name(), err)
		}
		e.logger.Debug("rule evaluated",
			zap.String("rule", rule.Name()),
			zap.Int("candidates", len(out)))
		candidates = append(candidates, out...)
	}
	return candidates, nil
}
