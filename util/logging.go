package util

import (
	"log"
	"strings"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/coreos/go-systemd/v22/journal"
)

// journalWriter forwards std log lines to the systemd journal
type journalWriter struct {
	priority journal.Priority
}

func (w journalWriter) Write(p []byte) (int, error) {
	msg := strings.TrimRight(string(p), "\n")
	if err := journal.Send(msg, w.priority, map[string]string{"SYSLOG_IDENTIFIER": Name}); err != nil {
		return 0, err
	}
	return len(p), nil
}

// SetupLogging sends the standard logger to journald when configured and available
func SetupLogging(conf *AppConfig) {
	if !conf.Conf.WithJournald {
		return
	}
	if !journal.Enabled() {
		log.Printf("Journald logging requested but the journal is not reachable, using stderr")
		return
	}
	// journald stamps entries itself
	log.SetFlags(0)
	log.SetOutput(journalWriter{priority: journal.PriInfo})
}

// NotifyReady tells systemd the service is up. It is a no-op outside of systemd.
func NotifyReady() {
	sent, err := daemon.SdNotify(false, daemon.SdNotifyReady)
	if err != nil {
		log.Printf("sd_notify failed: %v", err)
		return
	}
	if sent {
		log.Printf("Notified systemd that %s is ready", Name)
	}
}
