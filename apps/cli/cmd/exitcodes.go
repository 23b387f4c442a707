package cmd

// Exit codes for the testhttp CLI
const (
	// ExitSuccess indicates every test passed
	ExitSuccess = 0

	// ExitFailure indicates a failed test, a fatal run error or bad usage
	ExitFailure = 1
)
