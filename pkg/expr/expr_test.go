package expr_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wovenlab/shuttle/pkg/expr"
)

func TestEvaluate_Literals(t *testing.T) {
	ctx := map[string]any{}

	cases := []struct {
		expression string
		want       any
	}{
		{"42", 42.0},
		{"-3.5", -3.5},
		{"'hello'", "hello"},
		{`"world"`, "world"},
		{"true", true},
		{"false", false},
		{"null", nil},
	}

	for _, tc := range cases {
		t.Run(tc.expression, func(t *testing.T) {
			got, err := expr.Evaluate(tc.expression, ctx)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestEvaluate_MemberAccess(t *testing.T) {
	ctx := map[string]any{
		"Order": map[string]any{
			"total": 99.5,
			"customer": map[string]any{
				"name": "ada",
			},
			"items": []any{"a", "b"},
		},
	}

	t.Run("Nested Path", func(t *testing.T) {
		got, err := expr.Evaluate("Order.customer.name", ctx)
		require.NoError(t, err)
		assert.Equal(t, "ada", got)
	})

	t.Run("Slice Index", func(t *testing.T) {
		got, err := expr.Evaluate("Order.items.1", ctx)
		require.NoError(t, err)
		assert.Equal(t, "b", got)
	})

	t.Run("Missing Path Yields Undefined", func(t *testing.T) {
		got, err := expr.Evaluate("Order.shipping.method", ctx)
		require.NoError(t, err)
		assert.True(t, expr.IsUndefined(got))
	})

	t.Run("Traversal Into Scalar Yields Undefined", func(t *testing.T) {
		got, err := expr.Evaluate("Order.total.cents", ctx)
		require.NoError(t, err)
		assert.True(t, expr.IsUndefined(got))
	})
}

func TestEvaluate_Comparisons(t *testing.T) {
	ctx := map[string]any{
		"age":   float64(21),
		"name":  "ada",
		"admin": true,
		"count": 0.0,
	}

	cases := []struct {
		expression string
		want       bool
	}{
		{"age >= 18", true},
		{"age < 18", false},
		{"age == 21", true},
		{"age != 21", false},
		{"name == 'ada'", true},
		{"name != 'bob'", true},
		{"name < 'bob'", true},
		{"admin == true", true},
		{"count == 0", true},
		{"age >= 18 && name == 'ada'", true},
		{"age < 18 || admin", true},
		{"!(age < 18)", true},
		{"!admin", false},
	}

	for _, tc := range cases {
		t.Run(tc.expression, func(t *testing.T) {
			got, err := expr.EvaluateBool(tc.expression, ctx)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestEvaluate_UndefinedSemantics(t *testing.T) {
	ctx := map[string]any{
		"present": "yes",
		"empty":   nil,
	}

	cases := []struct {
		expression string
		want       bool
	}{
		// Every ordinary comparison against a missing field is false.
		{"missing == 'yes'", false},
		{"missing < 1", false},
		{"missing > 1", false},
		{"missing >= 1", false},
		// Explicit existence checks.
		{"missing != 'yes'", true},
		{"present != 'no'", true},
		{"missing != other_missing", false},
		// A missing field equals null, and a null field is not "missing != null".
		{"missing == null", true},
		{"missing != null", false},
		{"empty == null", true},
		// Undefined is falsy.
		{"!missing", true},
		{"missing && present == 'yes'", false},
		{"missing || present == 'yes'", true},
	}

	for _, tc := range cases {
		t.Run(tc.expression, func(t *testing.T) {
			got, err := expr.EvaluateBool(tc.expression, ctx)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestEvaluate_ParseErrors(t *testing.T) {
	ctx := map[string]any{}

	for _, bad := range []string{"a ==", "(a == 1", "'unterminated", "a $ b", "1 2"} {
		t.Run(bad, func(t *testing.T) {
			_, err := expr.Evaluate(bad, ctx)
			require.Error(t, err)
			var perr *expr.ParseError
			assert.ErrorAs(t, err, &perr)
		})
	}
}

func TestStringify(t *testing.T) {
	assert.Equal(t, "1", expr.Stringify(float64(1)))
	assert.Equal(t, "1.5", expr.Stringify(1.5))
	assert.Equal(t, "true", expr.Stringify(true))
	assert.Equal(t, "", expr.Stringify(nil))
	assert.Equal(t, "", expr.Stringify(expr.Undefined))
	assert.Equal(t, `{"a":1}`, expr.Stringify(map[string]any{"a": 1}))
	assert.Equal(t, `["x","y"]`, expr.Stringify([]any{"x", "y"}))
}

func TestStringify_UnserializableFallsBack(t *testing.T) {
	// A self-referential structure cannot be marshalled to JSON; the
	// renderer must degrade to a best-effort string, not fail.
	loop := map[string]any{}
	loop["self"] = loop
	assert.NotEmpty(t, expr.Stringify(loop))
}
