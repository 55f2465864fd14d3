package condition

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAndEvaluate(t *testing.T) {
	attrs := Attributes{
		AttrArea:             Int(60),
		AttrFloors:           Int(3),
		AttrType:             String("office"),
		AttrRegion:           String("germany"),
		DisciplineAttr("EL"): Bool(true),
	}

	cases := []struct {
		src  string
		want Result
	}{
		{"area > 50", True},
		{"project_area > 50", True},
		{"area <= 50", False},
		{"area >= 60 && floors < 4", True},
		{`type == "restaurant" or type == "commercial_kitchen"`, False},
		{`type == 'office'`, True},
		{`type != "office"`, False},
		{"discipline.EL", True},
		{"discipline.el and not discipline.HV", Unresolved},
		{"!(area > 100)", True},
		{"(area > 100 || floors == 3) and region == \"germany\"", True},
		{"hasBathroom and hasKitchen", Unresolved},
		{"has_bathroom and area < 10", False},
		{"hasKitchen or area > 10", True},
		{"area == \"60\"", Unresolved},
		{"type > \"a\"", Unresolved},
		{"area", Unresolved},
		{"true", True},
		{"not false and 1 < 2", True},
	}
	for _, tc := range cases {
		t.Run(tc.src, func(t *testing.T) {
			c, err := Parse(tc.src)
			require.NoError(t, err)
			assert.Equal(t, tc.want, c.Evaluate(attrs))
		})
	}
}

func TestParseRejectsUnsupportedInput(t *testing.T) {
	cases := []string{
		"",
		"area >",
		"area = 5",
		"__import__('os')",
		"open(\"x\")",
		"area > 5 extra",
		"(area > 5",
		"\"unterminated",
		"area & floors",
		"discipline.",
		"project_data.area > 5",
	}
	for _, src := range cases {
		t.Run(src, func(t *testing.T) {
			_, err := Parse(src)
			require.Error(t, err)
			var syntaxErr *SyntaxError
			assert.True(t, errors.As(err, &syntaxErr), "expected SyntaxError, got %T", err)
		})
	}
}

func TestConditionAttributes(t *testing.T) {
	c := MustParse("project_area > 50 and area < 100 or discipline.hy")
	assert.Equal(t, []string{AttrArea, "discipline.HY"}, c.Attributes())
	assert.Equal(t, "project_area > 50 and area < 100 or discipline.hy", c.Source())
}

func TestEvaluatorFailsClosedOnMissingAttributes(t *testing.T) {
	c := MustParse("area > 50")

	compliant := Evaluator{Policy: PolicyCompliant}
	assert.False(t, compliant.Violated(c, Attributes{}))
	assert.False(t, compliant.Violated(c, Attributes{AttrArea: String("big")}))
	assert.True(t, compliant.Violated(c, Attributes{AttrArea: Int(60)}))
	assert.False(t, compliant.Violated(c, Attributes{AttrArea: Int(10)}))

	review := Evaluator{Policy: PolicyViolation}
	assert.True(t, review.Violated(c, Attributes{}))
	assert.False(t, review.Violated(c, Attributes{AttrArea: Int(10)}))
}

func TestParsePolicy(t *testing.T) {
	p, err := ParsePolicy("")
	require.NoError(t, err)
	assert.Equal(t, PolicyCompliant, p)

	p, err = ParsePolicy(" Violation ")
	require.NoError(t, err)
	assert.Equal(t, PolicyViolation, p)

	_, err = ParsePolicy("maybe")
	assert.Error(t, err)
}
