package expr_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/wovenlab/shuttle/pkg/expr"
)

func TestResolveTemplate_Markers(t *testing.T) {
	ctx := map[string]any{
		"a": float64(1),
		"b": "x",
		"user": map[string]any{
			"name": "ada",
		},
	}

	t.Run("Simple Substitution", func(t *testing.T) {
		got := expr.ResolveTemplate("{{a}}-{{b}}", ctx)
		assert.Equal(t, "1-x", got)
	})

	t.Run("Dotted Path And Whitespace", func(t *testing.T) {
		got := expr.ResolveTemplate("hello {{ user.name }}!", ctx)
		assert.Equal(t, "hello ada!", got)
	})

	t.Run("Missing Field Renders Empty", func(t *testing.T) {
		got := expr.ResolveTemplate("[{{ user.email }}]", ctx)
		assert.Equal(t, "[]", got)
	})

	t.Run("Expression Marker", func(t *testing.T) {
		got := expr.ResolveTemplate("adult: {{ a >= 1 }}", ctx)
		assert.Equal(t, "adult: true", got)
	})

	t.Run("Malformed Marker Left Verbatim", func(t *testing.T) {
		got := expr.ResolveTemplate("keep {{ a == }}", ctx)
		assert.Equal(t, "keep {{ a == }}", got)
	})

	t.Run("Object Value Renders As JSON", func(t *testing.T) {
		got := expr.ResolveTemplate("{{user}}", ctx)
		assert.Equal(t, `{"name":"ada"}`, got)
	})
}

func TestResolveTemplate_EachBlocks(t *testing.T) {
	t.Run("Mapping Sorted By Key", func(t *testing.T) {
		ctx := map[string]any{
			"attributes": map[string]any{
				"b": "second",
				"a": "first",
			},
		}
		tmpl := "{{#each attributes}}{{@key}}={{this}};{{/each}}"
		got := expr.ResolveTemplate(tmpl, ctx)
		assert.Equal(t, "a=first;b=second;", got)
	})

	t.Run("Sequence With Index", func(t *testing.T) {
		ctx := map[string]any{
			"steps": []any{"plan", "apply"},
		}
		tmpl := "{{#each steps}}{{@index}}:{{this}} {{/each}}"
		got := expr.ResolveTemplate(tmpl, ctx)
		assert.Equal(t, "0:plan 1:apply ", got)
	})

	t.Run("This With Member Access", func(t *testing.T) {
		ctx := map[string]any{
			"attributes": map[string]any{
				"retry": map[string]any{"max": float64(3)},
			},
		}
		tmpl := "{{#each attributes}}{{@key}}.max={{this.max}}{{/each}}"
		got := expr.ResolveTemplate(tmpl, ctx)
		assert.Equal(t, "retry.max=3", got)
	})

	t.Run("Missing Collection Removes Section", func(t *testing.T) {
		tmpl := "header\n{{#each attributes}}- {{@key}}: {{this}}\n{{/each}}footer"
		got := expr.ResolveTemplate(tmpl, map[string]any{})
		assert.Equal(t, "header\nfooter", got)
	})

	t.Run("Empty Mapping Removes Section", func(t *testing.T) {
		ctx := map[string]any{"attributes": map[string]any{}}
		got := expr.ResolveTemplate("x{{#each attributes}}never{{/each}}y", ctx)
		assert.Equal(t, "xy", got)
	})
}
