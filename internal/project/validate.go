package project

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidConfig is the sentinel matched by every ValidationError.
var ErrInvalidConfig = errors.New("invalid project config")

// FieldIssue names a single rejected field.
type FieldIssue struct {
	Field string `json:"field"`
	Issue string `json:"issue"`
}

// ValidationError lists every problem found in a Config.
type ValidationError struct {
	Issues []FieldIssue
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Issues))
	for _, issue := range e.Issues {
		parts = append(parts, issue.Field+": "+issue.Issue)
	}
	return fmt.Sprintf("%s: %s", ErrInvalidConfig, strings.Join(parts, "; "))
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidConfig
}

// Normalize trims and canonicalizes a Config and validates it.
// The returned Config is safe to hand to a job.
func Normalize(c Config) (Config, error) {
	var issues []FieldIssue
	out := Config{
		TotalArea:   c.TotalArea,
		Floors:      c.Floors,
		Description: strings.TrimSpace(c.Description),
	}

	if t, ok := ParseType(string(c.ProjectType)); ok {
		out.ProjectType = t
	} else {
		issues = append(issues, FieldIssue{Field: "projectType", Issue: "must be one of residential, office, industrial, retail, healthcare, education"})
	}
	if r, ok := ParseRegion(string(c.Region)); ok {
		out.Region = r
	} else {
		issues = append(issues, FieldIssue{Field: "region", Issue: "must be one of germany, europe, international"})
	}
	if c.TotalArea < 1 {
		issues = append(issues, FieldIssue{Field: "totalArea", Issue: "must be a positive integer"})
	}
	if c.Floors < 1 {
		issues = append(issues, FieldIssue{Field: "floors", Issue: "must be a positive integer"})
	}

	seen := make(map[string]bool, len(c.Disciplines))
	for i, d := range c.Disciplines {
		code := strings.ToUpper(strings.TrimSpace(d.Code))
		name := strings.TrimSpace(d.Name)
		field := fmt.Sprintf("disciplines[%d]", i)
		switch {
		case code == "":
			issues = append(issues, FieldIssue{Field: field + ".code", Issue: "is required"})
			continue
		case name == "":
			issues = append(issues, FieldIssue{Field: field + ".name", Issue: "is required"})
			continue
		case seen[code]:
			issues = append(issues, FieldIssue{Field: field + ".code", Issue: "duplicate discipline " + code})
			continue
		}
		seen[code] = true
		out.Disciplines = append(out.Disciplines, Discipline{Code: code, Name: name})
	}

	if len(issues) > 0 {
		return Config{}, &ValidationError{Issues: issues}
	}
	return out, nil
}

// Decode parses the JSON form of a Config and normalizes it.
func Decode(raw []byte) (Config, error) {
	if len(strings.TrimSpace(string(raw))) == 0 {
		return Config{}, &ValidationError{Issues: []FieldIssue{{Field: "projectConfig", Issue: "is required"}}}
	}
	var c Config
	if err := json.Unmarshal(raw, &c); err != nil {
		return Config{}, &ValidationError{Issues: []FieldIssue{{Field: "projectConfig", Issue: "invalid JSON: " + err.Error()}}}
	}
	return Normalize(c)
}
