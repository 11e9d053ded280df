// Package systemd reports service lifecycle to systemd through the
// sd_notify protocol.
package systemd

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	"github.com/smazurov/noisestream/internal/logging"
)

// NotifyFunc sends one sd_notify state string. It reports false when no
// notification socket is configured.
type NotifyFunc func(state string) (bool, error)

// Notifier sends readiness, stopping and watchdog notifications. Outside
// systemd every call is a no-op.
type Notifier struct {
	notify   NotifyFunc
	watchdog time.Duration
	logger   *slog.Logger
}

// NewNotifier creates a notifier bound to NOTIFY_SOCKET and WATCHDOG_USEC.
func NewNotifier() *Notifier {
	interval, err := daemon.SdWatchdogEnabled(false)
	logger := logging.GetLogger("systemd")
	if err != nil {
		logger.Warn("Invalid watchdog configuration", "error", err)
		interval = 0
	}
	return NewNotifierWith(func(state string) (bool, error) {
		return daemon.SdNotify(false, state)
	}, interval, logger)
}

// NewNotifierWith creates a notifier using a custom send function.
func NewNotifierWith(notify NotifyFunc, watchdog time.Duration, logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = logging.GetLogger("systemd")
	}
	return &Notifier{notify: notify, watchdog: watchdog, logger: logger}
}

// Ready tells systemd that startup finished.
func (n *Notifier) Ready() {
	n.send(daemon.SdNotifyReady)
}

// Stopping tells systemd that shutdown began.
func (n *Notifier) Stopping() {
	n.send(daemon.SdNotifyStopping)
}

// Status publishes a free-form status line shown by systemctl status.
func (n *Notifier) Status(format string, args ...any) {
	n.send("STATUS=" + fmt.Sprintf(format, args...))
}

// Watchdog pings the service watchdog when one is configured.
func (n *Notifier) Watchdog() {
	if n.watchdog <= 0 {
		return
	}
	n.send(daemon.SdNotifyWatchdog)
}

// WatchdogInterval returns WATCHDOG_USEC, or zero when the watchdog is off.
func (n *Notifier) WatchdogInterval() time.Duration {
	return n.watchdog
}

// MonitorHook returns a cycle callback that pings the watchdog after every
// successful health cycle. A failing cycle skips the ping so a wedged
// supervisor is eventually restarted by systemd.
func (n *Notifier) MonitorHook() func(error) {
	return func(err error) {
		if err != nil {
			n.logger.Warn("Skipping watchdog ping after failed cycle", "error", err)
			return
		}
		n.Watchdog()
	}
}

func (n *Notifier) send(state string) {
	sent, err := n.notify(state)
	switch {
	case err != nil:
		n.logger.Warn("sd_notify failed", "state", state, "error", err)
	case sent:
		n.logger.Debug("sd_notify sent", "state", state)
	}
}
