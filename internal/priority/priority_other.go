//go:build !unix

package priority

import "go.uber.org/zap"

// SetHigh is a no-op on platforms without a setpriority equivalent wired
// up; it logs so operators know timing jitter mitigation is unavailable.
func SetHigh(log *zap.Logger) {
	log.Warn("setting process priority is not supported on this platform")
}
