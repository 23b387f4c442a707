// Package expr implements the assertion expression language.
//
// An expression is a boolean formula over literals, dotted paths and a fixed
// set of functions:
//
//	response.status_code == 200 and len(response.body.items) > 0
//	'admin' in login.response.body.roles
//	200 <= response.status < 300
//	matches(response.headers.Content-Type, '^application/json')
//
// Paths are not resolved here. Evaluation hands every path to the Env's
// Lookup function, so the caller decides what names mean.
package expr
