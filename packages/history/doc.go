// Package history records finished runs in a SQLite database so results
// can be compared across invocations.
package history
