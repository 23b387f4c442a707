// Package cmd implements the testhttp CLI commands using Cobra.
//
// Available commands:
//   - run: send the requests in .http files and evaluate their asserts
//   - validate: parse files and check assert syntax without sending
//   - list: print the definitions of each file with their positions
//   - history: browse runs recorded in a SQLite database
//   - init: create a config file and an example .http file
//   - version: show version information
//
// Flags fall back to TESTHTTP_* environment variables and then to the
// .testhttp.yaml config file.
package cmd
