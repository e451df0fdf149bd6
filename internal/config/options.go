// Package config holds the server's startup configuration: the exact
// set of command-line flags daemon.c's parse_options() defines, validated
// the same way the teacher repo validates its own configuration structs.
package config

import "github.com/go-playground/validator/v10"

// Options is the parsed command-line configuration (spec.md §3's
// Configuration record), the Go counterpart of daemon.c's opt_* globals.
type Options struct {
	ExpireWriters        bool   `validate:"-"`
	Detach               bool   `validate:"-"`
	ExportsFile          string `validate:"required,filepath"`
	Cluster              bool   `validate:"-"`
	ClusterPath          string `validate:"required"`
	TCPOnly              bool   `validate:"-"`
	NFSPort              int    `validate:"gte=0,lte=65535"`
	MountPort            int    `validate:"gte=0,lte=65535"`
	SingleUser           bool   `validate:"-"`
	BruteForceSearch     bool   `validate:"-"`
	BindAddress          string `validate:"omitempty,ip"`
	ReadableExecutables  bool   `validate:"-"`
	PortmapperRegister   bool   `validate:"-"`
}

// Default returns the configuration daemon.c's opt_* initializers
// establish before parse_options() runs.
func Default() Options {
	return Options{
		ExpireWriters:       false,
		Detach:              true,
		ExportsFile:         "/etc/exports",
		Cluster:             false,
		ClusterPath:         "/",
		TCPOnly:             false,
		NFSPort:             2049,
		MountPort:           2049,
		SingleUser:          false,
		BruteForceSearch:    false,
		BindAddress:         "",
		ReadableExecutables: false,
		PortmapperRegister:  true,
	}
}

var validate = validator.New()

// Validate checks the option struct's invariants (non-empty exports path,
// valid port range, well-formed bind address), matching the ad hoc checks
// parse_options() performs inline for -e, -l, -n, and -m.
func (o Options) Validate() error {
	return validate.Struct(o)
}

// Unprivileged sets both service ports to 0 (RPC_ANYSOCK in the
// original), requesting OS-assigned anonymous ports instead of the
// well-known NFS port — the -u flag's effect.
func (o *Options) Unprivileged() {
	o.NFSPort = 0
	o.MountPort = 0
}
