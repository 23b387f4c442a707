// Package config loads testhttp settings.
//
// Settings come from the first config file found in the working directory
// (.testhttp.yaml, .testhttp.yml, testhttp.yaml, .testhttp.json or
// .testhttprc). Files are decoded as YAML, so JSON files work unchanged.
// Command-line flags are merged on top with Merge.
package config
