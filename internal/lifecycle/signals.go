package lifecycle

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/unfsd-go/unfsd/internal/logger"
)

// installSignals wires the nine signals daemon_exit() and main()'s
// sigaction calls handle (spec.md §4.5): SIGHUP reloads policy, SIGUSR1
// logs cache statistics, SIGTERM/SIGINT/SIGQUIT/SIGSEGV run the shutdown
// path (SIGSEGV additionally logging at emergency severity first), and
// SIGPIPE/SIGUSR2/SIGALRM are ignored outright rather than left at their
// default disposition.
func (s *Supervisor) installSignals() {
	signal.Ignore(syscall.SIGPIPE, syscall.SIGUSR2, syscall.SIGALRM)

	ch := make(chan os.Signal, 1)
	signal.Notify(ch,
		syscall.SIGHUP,
		syscall.SIGUSR1,
		syscall.SIGTERM,
		syscall.SIGINT,
		syscall.SIGQUIT,
		syscall.SIGSEGV,
	)

	go func() {
		for sig := range ch {
			s.handleSignal(sig)
		}
	}()
}

func (s *Supervisor) handleSignal(sig os.Signal) {
	switch sig {
	case syscall.SIGHUP:
		s.reload()
	case syscall.SIGUSR1:
		s.logCacheStats()
	case syscall.SIGSEGV:
		logger.Emergency("segmentation fault")
		s.Shutdown()
	default:
		s.Shutdown()
	}
}

// reload re-reads the exports file and re-installs the current squash-id
// policy (which is held in memory, not re-read from disk), matching
// daemon_exit(SIGHUP) in the original. It never touches transports or
// in-flight calls — those are left entirely alone, per spec.md §5.
func (s *Supervisor) reload() {
	if err := s.Exports.Parse(); err != nil {
		logger.Warn("exports reload failed", "error", err)
		return
	}
	s.Exports.SetSquashIDs(s.Exports.GetSquashIDs())
	logger.Info("exports reloaded")
}

// logCacheStats reports the file-handle and fd cache counters, matching
// daemon_exit(SIGUSR1)'s logmsg() calls.
func (s *Supervisor) logCacheStats() {
	fh := s.Handles.Stats()
	if fh.Use > 0 {
		logger.Info("file handle cache", "max", fh.Max, "use", fh.Use, "hit", fh.Hit, "miss", fh.Use-fh.Hit)
	} else {
		logger.Info("file handle cache unused")
	}
	readers, writers := s.FDCache.Counts()
	logger.Info("open file descriptors", "read", readers, "write", writers)
}
