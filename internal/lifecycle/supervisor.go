// Package lifecycle implements the server's startup sequence, signal
// handling, and shutdown path — the Go counterpart of daemon.c's main(),
// daemon_exit(), and the transport/registration helpers it calls, tied
// together behind one Supervisor instead of process-wide globals.
package lifecycle

import (
	"fmt"
	"os"
	"sync"

	"golang.org/x/sys/unix"

	"github.com/unfsd-go/unfsd/internal/backend"
	"github.com/unfsd-go/unfsd/internal/cache"
	"github.com/unfsd-go/unfsd/internal/config"
	"github.com/unfsd-go/unfsd/internal/exports"
	"github.com/unfsd-go/unfsd/internal/logger"
	"github.com/unfsd-go/unfsd/internal/mount"
	"github.com/unfsd-go/unfsd/internal/nfs3"
	"github.com/unfsd-go/unfsd/internal/portmapclient"
	"github.com/unfsd-go/unfsd/internal/rpcsvc"
	"github.com/unfsd-go/unfsd/internal/verifier"
)

// Supervisor owns every long-lived piece of server state: the transports,
// the dispatch tables, the ambient collaborators (backend, exports,
// caches), and the write verifier. Exactly one exists per process.
type Supervisor struct {
	Options config.Options

	FS      backend.Filesystem
	Exports *exports.Table
	Handles *cache.FileHandleCache
	FDCache *cache.FDCache
	Verf    verifier.Verifier

	nfsServer  *nfs3.Server
	nfsTable   rpcsvc.Table
	mountTable rpcsvc.Table

	nfsUDP, mountUDP *rpcsvc.Transport
	nfsTCP, mountTCP *rpcsvc.Transport

	shutdownOnce sync.Once
	stop         chan struct{}
}

// New builds a Supervisor from parsed options, wiring the ambient
// collaborators together. It performs no I/O.
func New(opts config.Options) *Supervisor {
	exportTable := exports.New(opts.ExportsFile)
	handles := cache.NewFileHandleCache(4096)

	s := &Supervisor{
		Options: opts,
		FS:      backend.New(),
		Exports: exportTable,
		Handles: handles,
		FDCache: cache.NewFDCache(opts.ExpireWriters),
		stop:    make(chan struct{}),
	}

	nfsSrv := &nfs3.Server{FS: s.FS, Exports: exportTable, Handles: handles}
	mountSrv := mount.NewServer(exportTable, handles)
	s.nfsServer = nfsSrv
	s.nfsTable = nfsSrv.NewDispatchTable()
	s.mountTable = mountSrv.NewDispatchTable()

	return s
}

// Run executes the startup sequence of spec.md §3/§4.5 in the exact order
// daemon.c's main() does: write verifier, logging sink, transports,
// portmapper registration, backend init, signal handlers, process
// detachment (chdir, umask, session detach), policy load, and finally the
// event loop — which never returns except via Shutdown.
func (s *Supervisor) Run() error {
	v, err := verifier.Generate()
	if err != nil {
		return fmt.Errorf("generate write verifier: %w", err)
	}
	s.Verf = v
	s.nfsServer.Verf = v

	if s.Options.Detach {
		if err := logger.ToSyslog("unfsd"); err != nil {
			return fmt.Errorf("open syslog: %w", err)
		}
	} else {
		logger.ToStdout()
	}

	if err := s.createTransports(); err != nil {
		return err
	}
	if err := s.registerServices(); err != nil {
		return err
	}

	if err := s.FS.Init(); err != nil {
		return fmt.Errorf("backend init: %w", err)
	}

	s.installSignals()

	if err := os.Chdir("/"); err != nil {
		logger.Warn("chdir / failed", "error", err)
	}
	unix.Umask(0)

	if s.Options.Detach {
		if err := unix.Setsid(); err != nil {
			logger.Warn("setsid failed", "error", err)
		}
	}

	if s.Options.SingleUser && s.FS.Getuid() == 0 {
		logger.Warn("running as root with single-user mode is dangerous")
		logger.Warn("all clients will have root access to all exported files")
	}

	if err := s.Exports.Parse(); err != nil {
		return fmt.Errorf("parse exports file: %w", err)
	}
	s.Exports.SetSquashIDs(exports.SquashIDs{UID: 65534, GID: 65534})

	logger.Info("unfsd ready",
		"nfs_port", s.Options.NFSPort,
		"mount_port", s.Options.MountPort,
		"exports", s.Options.ExportsFile,
	)

	return s.serve()
}

// createTransports builds the NFS and MOUNT transports. If the two
// services share a port, the MOUNT service reuses the NFS transports
// rather than binding a second listener to the same port, matching
// main()'s "If ports are equal, then the MOUNT service can reuse the NFS
// transports" comment.
func (s *Supervisor) createTransports() error {
	bind := s.Options.BindAddress

	if !s.Options.TCPOnly {
		udp, err := rpcsvc.NewTransport(rpcsvc.UDP, bind, s.Options.NFSPort)
		if err != nil {
			return fmt.Errorf("create nfs udp transport: %w", err)
		}
		s.nfsUDP = udp
	}
	tcp, err := rpcsvc.NewTransport(rpcsvc.TCP, bind, s.Options.NFSPort)
	if err != nil {
		return fmt.Errorf("create nfs tcp transport: %w", err)
	}
	s.nfsTCP = tcp

	if s.Options.MountPort == s.Options.NFSPort {
		s.mountUDP, s.mountTCP = s.nfsUDP, s.nfsTCP
		return nil
	}

	if !s.Options.TCPOnly {
		udp, err := rpcsvc.NewTransport(rpcsvc.UDP, bind, s.Options.MountPort)
		if err != nil {
			return fmt.Errorf("create mount udp transport: %w", err)
		}
		s.mountUDP = udp
	}
	mtcp, err := rpcsvc.NewTransport(rpcsvc.TCP, bind, s.Options.MountPort)
	if err != nil {
		return fmt.Errorf("create mount tcp transport: %w", err)
	}
	s.mountTCP = mtcp
	return nil
}

// registerServices advertises the NFS3 and MOUNT programs with the
// portmapper, or suppresses that traffic entirely when -p was given
// (spec.md §4.2). Unset runs first to clear any stale advertisement a
// previous run of the server left behind.
func (s *Supervisor) registerServices() error {
	pm := portmapclient.New("")
	proto := func(p rpcsvc.Protocol) uint32 {
		if !s.Options.PortmapperRegister {
			return 0
		}
		if p == rpcsvc.UDP {
			return portmapclient.IPProtoUDP
		}
		return portmapclient.IPProtoTCP
	}

	if s.Options.PortmapperRegister {
		pm.Unset(rpcsvc.ProgramNFS3, rpcsvc.NFS3Version)
		pm.Unset(rpcsvc.ProgramMount, rpcsvc.MountVersion1)
		pm.Unset(rpcsvc.ProgramMount, rpcsvc.MountVersion3)
	}

	if s.nfsUDP != nil {
		if err := pm.Set(rpcsvc.ProgramNFS3, rpcsvc.NFS3Version, proto(rpcsvc.UDP), s.nfsUDP.Port); err != nil {
			return fmt.Errorf("register NFS3 udp: %w", err)
		}
	}
	if err := pm.Set(rpcsvc.ProgramNFS3, rpcsvc.NFS3Version, proto(rpcsvc.TCP), s.nfsTCP.Port); err != nil {
		return fmt.Errorf("register NFS3 tcp: %w", err)
	}

	if s.mountUDP != nil {
		if err := pm.Set(rpcsvc.ProgramMount, rpcsvc.MountVersion1, proto(rpcsvc.UDP), s.mountUDP.Port); err != nil {
			return fmt.Errorf("register MOUNT v1 udp: %w", err)
		}
		if err := pm.Set(rpcsvc.ProgramMount, rpcsvc.MountVersion3, proto(rpcsvc.UDP), s.mountUDP.Port); err != nil {
			return fmt.Errorf("register MOUNT v3 udp: %w", err)
		}
	}
	if err := pm.Set(rpcsvc.ProgramMount, rpcsvc.MountVersion1, proto(rpcsvc.TCP), s.mountTCP.Port); err != nil {
		return fmt.Errorf("register MOUNT v1 tcp: %w", err)
	}
	if err := pm.Set(rpcsvc.ProgramMount, rpcsvc.MountVersion3, proto(rpcsvc.TCP), s.mountTCP.Port); err != nil {
		return fmt.Errorf("register MOUNT v3 tcp: %w", err)
	}

	return nil
}
