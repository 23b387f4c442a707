// Package assertions evaluates the "assert" lines of a request definition.
//
// Each assertion is an expression in the language of package expr, already
// template-resolved by the caller. An assertion passes when the expression
// evaluates to a truthy value. Evaluation errors fail the assertion and are
// reported with the expression text.
package assertions
