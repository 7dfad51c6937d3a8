package expr

import (
	"regexp"
	"sort"
	"strconv"
)

var (
	eachBlockRe  = regexp.MustCompile(`(?s)\{\{#each\s+([A-Za-z_][A-Za-z0-9_.]*)\s*\}\}(.*?)\{\{/each\}\}\n?`)
	thisMarkerRe = regexp.MustCompile(`\{\{\s*this(\.[A-Za-z0-9_.]+)?\s*\}\}`)
	keyMarkerRe  = regexp.MustCompile(`\{\{\s*@key\s*\}\}`)
	idxMarkerRe  = regexp.MustCompile(`\{\{\s*@index\s*\}\}`)
	exprMarkerRe = regexp.MustCompile(`\{\{\s*([^{}]+?)\s*\}\}`)
)

// ResolveTemplate renders a template in two passes.
//
// The first pass is purely structural and expression-oblivious: every
// {{#each path}}...{{/each}} block is inlined once per element of the
// referenced mapping (sorted by key) or sequence, rewriting {{this...}}
// markers into absolute paths and {{@key}}/{{@index}} into literals. A
// block over a missing or empty collection is removed entirely, so a
// context without the referenced key leaves no dangling markers behind.
//
// The second pass evaluates every remaining {{ expr }} marker against the
// context and substitutes its stringified value. A marker that fails to
// parse is left verbatim rather than aborting the render.
func ResolveTemplate(text string, ctx map[string]any) string {
	expanded := expandBlocks(text, ctx)
	return exprMarkerRe.ReplaceAllStringFunc(expanded, func(marker string) string {
		inner := exprMarkerRe.FindStringSubmatch(marker)[1]
		v, err := Evaluate(inner, ctx)
		if err != nil {
			return marker
		}
		return Stringify(v)
	})
}

func expandBlocks(text string, ctx map[string]any) string {
	return eachBlockRe.ReplaceAllStringFunc(text, func(block string) string {
		m := eachBlockRe.FindStringSubmatch(block)
		path, body := m[1], m[2]

		switch coll := Lookup(ctx, path).(type) {
		case map[string]any:
			keys := make([]string, 0, len(coll))
			for k := range coll {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			var out string
			for _, k := range keys {
				item := keyMarkerRe.ReplaceAllLiteralString(body, k)
				out += thisMarkerRe.ReplaceAllString(item, "{{"+path+"."+k+"$1}}")
			}
			return out
		case []any:
			var out string
			for i := range coll {
				idx := strconv.Itoa(i)
				item := idxMarkerRe.ReplaceAllLiteralString(body, idx)
				out += thisMarkerRe.ReplaceAllString(item, "{{"+path+"."+idx+"$1}}")
			}
			return out
		default:
			// Missing or non-iterable collection: drop the section.
			return ""
		}
	})
}
