package config

const (
	DefaultTimeout      = 30000 // 30 seconds
	DefaultMaxRedirects = 10
)

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	return &Config{
		Timeout:         DefaultTimeout,
		FollowRedirects: BoolPtr(true),
		MaxRedirects:    DefaultMaxRedirects,
		ValidateSSL:     BoolPtr(true),
		StopOnFail:      BoolPtr(false),
		Verbose:         BoolPtr(false),
		NoColor:         BoolPtr(false),
		Distinct:        BoolPtr(false),
	}
}

// IsDefault returns true if the config matches defaults
func (c *Config) IsDefault() bool {
	defaults := DefaultConfig()
	return c.Timeout == defaults.Timeout &&
		c.GetFollowRedirects() == defaults.GetFollowRedirects() &&
		c.MaxRedirects == defaults.MaxRedirects &&
		c.GetValidateSSL() == defaults.GetValidateSSL() &&
		c.Proxy == "" &&
		len(c.Headers) == 0 &&
		len(c.Vars) == 0 &&
		c.RateLimit == 0 &&
		!c.GetStopOnFail() &&
		!c.GetVerbose() &&
		!c.GetNoColor() &&
		!c.GetDistinct() &&
		c.History == ""
}
