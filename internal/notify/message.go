package notify

import (
	"fmt"
	"strings"
	"time"

	"github.com/roach88/wfkeeper/internal/n8n"
)

// Status colours a notification.
type Status string

const (
	StatusSuccess Status = "success"
	StatusError   Status = "error"
	StatusInfo    Status = "info"
)

const timestampLayout = "2006-01-02 15:04:05"

// BackupSummary is the part of a backup cycle result worth reporting.
type BackupSummary struct {
	TotalCount       int
	ChangedCount     int
	ChangedWorkflows []string
	// WorkflowChanges maps a workflow name to its change summary.
	WorkflowChanges map[string]string
	Error           string
}

// Message is one notification, independent of platform.
type Message struct {
	Title     string
	Status    Status
	Text      string
	Timestamp time.Time
	Backup    *BackupSummary
	Health    *n8n.HealthStatus
	ServerURL string
	BackupURL string
}

// BackupMessage describes a finished backup cycle.
func BackupMessage(sum BackupSummary, at time.Time) Message {
	msg := Message{Timestamp: at, Backup: &sum}
	if sum.Error != "" {
		msg.Title = "n8n workflow backup failed"
		msg.Status = StatusError
		msg.Text = "Backup failed: " + sum.Error
		return msg
	}
	msg.Title = "n8n workflow backup completed"
	msg.Status = StatusSuccess

	var b strings.Builder
	fmt.Fprintf(&b, "%d of %d workflows changed", sum.ChangedCount, sum.TotalCount)
	for _, name := range sum.ChangedWorkflows {
		b.WriteString("\n- ")
		b.WriteString(name)
	}
	msg.Text = b.String()
	return msg
}

// HealthMessage describes a health transition to h.
func HealthMessage(h n8n.HealthStatus) Message {
	msg := Message{Timestamp: h.Timestamp, Health: &h}
	if h.Healthy() {
		msg.Title = "n8n service recovered"
		msg.Status = StatusSuccess
		msg.Text = "n8n is healthy again"
		return msg
	}
	msg.Title = "n8n service unavailable"
	msg.Status = StatusError
	msg.Text = fmt.Sprintf("n8n is %s", h.Status)
	if h.Error != "" {
		msg.Text += ": " + h.Error
	}
	return msg
}

func (m Message) timestamp() string {
	return m.Timestamp.Format(timestampLayout)
}
