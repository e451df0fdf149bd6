package lifecycle

import (
	"github.com/unfsd-go/unfsd/internal/logger"
	"github.com/unfsd-go/unfsd/internal/portmapclient"
	"github.com/unfsd-go/unfsd/internal/rpcsvc"
)

// Shutdown runs the graceful teardown path exactly once (daemon_exit()'s
// non-SIGHUP/SIGUSR1 branch, spec.md §4.5): unregister from the
// portmapper, purge the fd cache, close the backend, and stop the event
// loop. Safe to call more than once or from multiple goroutines (the
// signal handler and a direct caller, say) — only the first call has any
// effect.
func (s *Supervisor) Shutdown() {
	s.shutdownOnce.Do(func() {
		logger.Info("shutting down")

		if s.Options.PortmapperRegister {
			pm := portmapclient.New("")
			pm.Unset(rpcsvc.ProgramMount, rpcsvc.MountVersion1)
			pm.Unset(rpcsvc.ProgramMount, rpcsvc.MountVersion3)
			pm.Unset(rpcsvc.ProgramNFS3, rpcsvc.NFS3Version)
		}

		s.FDCache.Purge()

		if err := s.FS.Shutdown(); err != nil {
			logger.Warn("backend shutdown failed", "error", err)
		}

		for _, t := range s.liveTransports() {
			_ = t.Close()
		}

		close(s.stop)
	})
}
