//go:build unix

// Package priority raises the broadcaster process's scheduling priority so
// playback timing jitter isn't made worse by other processes contending
// for the CPU.
package priority

import (
	"os"

	"go.uber.org/zap"
	"golang.org/x/sys/unix"
)

// highPriorityNice matches the original's setpriority(PRIO_PROCESS, pid, -20).
const highPriorityNice = -20

// SetHigh attempts to raise this process's nice value. Failure (most
// commonly insufficient privilege) is logged and otherwise ignored: a
// station still runs correctly at default priority, just with slightly
// more exposure to scheduling jitter.
func SetHigh(log *zap.Logger) {
	if err := unix.Setpriority(unix.PRIO_PROCESS, os.Getpid(), highPriorityNice); err != nil {
		log.Warn("failed to raise process priority", zap.Error(err))
	}
}
