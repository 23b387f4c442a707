// Package output renders runs for people and machines.
//
// Console implements runner.Reporter and prints progress as definitions
// run. The report formatters (JSON, JUnit, TAP) write the final
// runner.Report once the run is over.
package output
