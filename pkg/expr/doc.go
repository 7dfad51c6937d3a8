// Package expr implements the small expression language used for edge
// conditions and prompt templating: literals, dotted member access over a
// context namespace, comparisons and boolean combinators. Evaluation is
// tolerant of missing context fields, which resolve to the Undefined
// sentinel instead of failing.
package expr
