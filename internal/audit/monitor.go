package audit

import (
	"fmt"
	"log"
	"time"
)

// Actions the monitor watches for repeated failures.
const (
	ActionLoginFailed = "LOGIN_FAILED"
	ActionLiftDenied  = "LIFT_DENIED"
)

type Monitor struct {
	logger *Logger
}

// NewMonitor creates a new security monitor
func NewMonitor(logger *Logger) *Monitor {
	return &Monitor{
		logger: logger,
	}
}

// detectRepeatedFailures raises a CRITICAL event when one source produces
// threshold failures of the given action inside the window.
func (m *Monitor) detectRepeatedFailures(action string, window time.Duration, threshold int) error {
	now := time.Now()
	start := now.Add(-window)

	events, err := m.logger.QueryLogs(QueryFilters{
		StartTime: &start,
		EndTime:   &now,
		Action:    action,
		Limit:     1000,
	})
	if err != nil {
		return fmt.Errorf("failed to query audit logs: %w", err)
	}

	// Key on username metadata when present, else caller IP
	failures := make(map[string]int)
	for _, event := range events {
		key := event.Metadata
		if key == "" {
			key = event.IPAddress
		}
		if key == "" {
			continue
		}
		failures[key]++
	}

	for key, count := range failures {
		if count < threshold {
			continue
		}

		log.Printf("SECURITY ALERT: %d %s events for %q in last %v", count, action, key, window)

		m.logger.Log(&Event{
			Level:    LevelCritical,
			Action:   action + "_THRESHOLD",
			Resource: "security",
			Success:  false,
			Metadata: key,
			ErrorMsg: fmt.Sprintf("%d failures detected", count),
		})
	}

	return nil
}

// DetectSuspiciousActivity runs all security checks
func (m *Monitor) DetectSuspiciousActivity() error {
	if err := m.detectRepeatedFailures(ActionLoginFailed, 5*time.Minute, 5); err != nil {
		log.Printf("Failed to scan login failures: %v", err)
	}

	if err := m.detectRepeatedFailures(ActionLiftDenied, 15*time.Minute, 3); err != nil {
		log.Printf("Failed to scan lift denials: %v", err)
	}

	return nil
}
