// Command unfsd is a user-space NFSv3 server that exports a local
// directory tree over ONC RPC, speaking the NFS3 and MOUNT protocols and
// registering itself with the system portmapper.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/unfsd-go/unfsd/internal/config"
	"github.com/unfsd-go/unfsd/internal/lifecycle"
	"github.com/unfsd-go/unfsd/internal/logger"
)

const banner = "unfsd (unfsd-go) - user-space NFSv3 server\n"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := config.Default()
	var noDetach, noPortmapper, unprivileged bool

	cmd := &cobra.Command{
		Use:           "unfsd",
		Short:         "user-space NFSv3 server",
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.Detach = !noDetach
			opts.PortmapperRegister = !noPortmapper
			if unprivileged {
				opts.Unprivileged()
			}
			if !opts.Detach {
				fmt.Print(banner)
			}
			if err := opts.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}

			sup := lifecycle.New(opts)
			if err := sup.Run(); err != nil {
				logger.Emergency("startup failed", "error", err)
				return err
			}
			return nil
		},
	}

	flags := cmd.Flags()
	flags.BoolVarP(&opts.BruteForceSearch, "brute-force", "b", opts.BruteForceSearch, "enable brute force file searching")
	flags.BoolVarP(&opts.Cluster, "cluster", "c", opts.Cluster, "enable cluster extensions (when built in)")
	flags.StringVarP(&opts.ClusterPath, "cluster-path", "C", opts.ClusterPath, "cluster path")
	flags.BoolVarP(&noDetach, "no-detach", "d", false, "do not detach from terminal")
	flags.StringVarP(&opts.ExportsFile, "exports", "e", opts.ExportsFile, "file to use instead of /etc/exports")
	flags.StringVarP(&opts.BindAddress, "bind", "l", opts.BindAddress, "bind to interface with the specified address")
	flags.IntVarP(&opts.MountPort, "mount-port", "m", opts.MountPort, "port to use for the MOUNT service")
	flags.IntVarP(&opts.NFSPort, "nfs-port", "n", opts.NFSPort, "port to use for the NFS service")
	flags.BoolVarP(&noPortmapper, "no-portmapper", "p", false, "do not register with the portmapper")
	flags.BoolVarP(&opts.ReadableExecutables, "readable-executables", "r", opts.ReadableExecutables, "report unreadable executables as readable")
	flags.BoolVarP(&opts.SingleUser, "single-user", "s", opts.SingleUser, "single user mode")
	flags.BoolVarP(&opts.TCPOnly, "tcp-only", "t", opts.TCPOnly, "TCP only, do not listen on UDP ports")
	flags.BoolVarP(&unprivileged, "unprivileged", "u", unprivileged, "use unprivileged (OS-assigned) ports for services")
	flags.BoolVarP(&opts.ExpireWriters, "expire-writers", "w", opts.ExpireWriters, "expire writers from the fd cache on shutdown")

	return cmd
}
