package standards

import (
	"context"
	"strings"

	"tga-backend/internal/project"
	"tga-backend/internal/shared/telemetry"
	"tga-backend/internal/standards/condition"
)

// Violation is a rule whose condition flagged the project.
type Violation struct {
	StandardID     string `json:"standard"`
	RuleID         string `json:"ruleId"`
	Description    string `json:"description"`
	Recommendation string `json:"recommendation"`
}

// Checker evaluates catalog rules against project attributes.
type Checker struct {
	Catalog   *Catalog
	Evaluator condition.Evaluator
}

// NewChecker returns a checker with the given unresolved policy.
func NewChecker(catalog *Catalog, policy condition.UnresolvedPolicy) *Checker {
	return &Checker{Catalog: catalog, Evaluator: condition.Evaluator{Policy: policy}}
}

// Check evaluates every rule of the requested standards, in request order and
// then rule order. Unknown ids are skipped with a warning.
func (c *Checker) Check(ctx context.Context, p project.Config, ids []string) []Violation {
	return c.CheckAttributes(ctx, AttributesFor(p), ids)
}

// CheckAttributes is Check over an explicit attribute set.
func (c *Checker) CheckAttributes(ctx context.Context, attrs condition.Attributes, ids []string) []Violation {
	violations := []Violation{}
	for _, id := range ids {
		if ctx.Err() != nil {
			break
		}
		std := c.Catalog.Get(id)
		if std == nil {
			telemetry.Warn("unknown standard skipped", map[string]any{"standard": strings.TrimSpace(id)})
			continue
		}
		for _, rule := range std.Rules {
			if !c.Evaluator.Violated(rule.Condition, attrs) {
				continue
			}
			violations = append(violations, Violation{
				StandardID:     std.ID,
				RuleID:         rule.ID,
				Description:    rule.Description,
				Recommendation: rule.Recommendation,
			})
		}
	}
	return violations
}

// StandardResult summarizes one checked standard.
type StandardResult struct {
	StandardID      string   `json:"standard"`
	Title           string   `json:"title,omitempty"`
	Compliant       bool     `json:"compliant"`
	Score           int      `json:"score"`
	RulesTotal      int      `json:"rulesTotal"`
	Violations      []string `json:"violations"`
	Recommendations []string `json:"recommendations"`
}

// Summarize groups violations per requested standard. Score is the share of
// passed rules as a whole percentage; a standard without rules scores 100.
// Unknown ids are left out.
func (c *Checker) Summarize(ids []string, violations []Violation) []StandardResult {
	byStandard := map[string][]Violation{}
	for _, v := range violations {
		byStandard[v.StandardID] = append(byStandard[v.StandardID], v)
	}
	out := []StandardResult{}
	seen := map[string]bool{}
	for _, id := range ids {
		std := c.Catalog.Get(id)
		if std == nil || seen[std.ID] {
			continue
		}
		seen[std.ID] = true
		res := StandardResult{
			StandardID:      std.ID,
			Title:           std.Title,
			RulesTotal:      len(std.Rules),
			Violations:      []string{},
			Recommendations: []string{},
		}
		failed := map[string]bool{}
		for _, v := range byStandard[std.ID] {
			if failed[v.RuleID] {
				continue
			}
			failed[v.RuleID] = true
			res.Violations = append(res.Violations, v.RuleID)
			if v.Recommendation != "" {
				res.Recommendations = append(res.Recommendations, v.Recommendation)
			}
		}
		res.Compliant = len(failed) == 0
		res.Score = 100
		if res.RulesTotal > 0 {
			passed := res.RulesTotal - len(failed)
			if passed < 0 {
				passed = 0
			}
			res.Score = passed * 100 / res.RulesTotal
		}
		out = append(out, res)
	}
	return out
}
