// internal/workers/drafting/screen-input/config.go
package screeninput

import "time"

type Config struct {
	Timeout time.Duration
	// ThrowOnBlock raises INPUT_BLOCKED as a BPMN error instead of completing
	// the job with shouldBlock set.
	ThrowOnBlock bool
}

func LoadConfig() *Config {
	return &Config{
		Timeout:      5 * time.Second,
		ThrowOnBlock: true,
	}
}
