// internal/workers/drafting/generate-draft/config.go
package generatedraft

import (
	"time"

	"support-drafts/internal/common/config"
)

type Config struct {
	Timeout time.Duration
}

// LoadConfig takes the job timeout from the worker section; the draft
// pipeline needs well over the default 30 seconds for slow models.
func LoadConfig(wcfg config.WorkerConfig) *Config {
	timeout := config.GetDuration(wcfg.Timeout)
	if timeout <= 0 {
		timeout = 90 * time.Second
	}
	return &Config{Timeout: timeout}
}
