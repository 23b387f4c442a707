// Package runner executes loaded documents.
//
// A Processor loads documents (following @import directives), registers
// every definition by name and runs them in the order a Selection asks for.
// References to other definitions inside templates or assertions run the
// referenced definition on demand, at most once per invocation, so a
// document never has to declare execution order explicitly.
//
// Variables flow through an explicit session: a definition is seeded with
// the session before it runs and its resolved variables are merged back
// afterwards.
package runner
