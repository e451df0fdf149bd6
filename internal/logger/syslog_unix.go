//go:build unix

package logger

import "log/syslog"

// ToSyslog switches the sink to the system log, used once the daemon has
// detached from its controlling terminal (opt_detach in the original).
func ToSyslog(tag string) error {
	w, err := syslog.New(syslog.LOG_DAEMON|syslog.LOG_INFO, tag)
	if err != nil {
		return err
	}
	ToWriter(w)
	return nil
}
