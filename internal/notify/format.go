package notify

import (
	"fmt"
	"sort"
	"strconv"
)

// Platform names a payload shape.
type Platform string

const (
	Generic   Platform = "generic"
	Slack     Platform = "slack"
	Discord   Platform = "discord"
	Teams     Platform = "teams"
	TeamsCard Platform = "teams-card"
)

const (
	colorError   = 15158332
	colorSuccess = 3066993
)

type formatter func(Message) map[string]any

var formatters = map[Platform]formatter{
	Generic:   formatGeneric,
	Slack:     formatSlack,
	Discord:   formatDiscord,
	Teams:     formatTeams,
	TeamsCard: formatTeamsCard,
}

// Platforms lists the supported platform names in sorted order.
func Platforms() []string {
	names := make([]string, 0, len(formatters))
	for p := range formatters {
		names = append(names, string(p))
	}
	sort.Strings(names)
	return names
}

// ParsePlatform validates a platform name. The empty string is Generic.
func ParsePlatform(s string) (Platform, error) {
	if s == "" {
		return Generic, nil
	}
	p := Platform(s)
	if _, ok := formatters[p]; !ok {
		return "", fmt.Errorf("unknown notification platform %q", s)
	}
	return p, nil
}

// Format renders msg as the JSON payload for platform. Unknown platforms
// fall back to Generic.
func Format(platform Platform, msg Message) map[string]any {
	f, ok := formatters[platform]
	if !ok {
		f = formatGeneric
	}
	return f(msg)
}

func formatGeneric(m Message) map[string]any {
	out := map[string]any{
		"title":     m.Title,
		"status":    string(m.Status),
		"message":   m.Text,
		"timestamp": m.timestamp(),
	}
	if m.ServerURL != "" {
		out["n8n_url"] = m.ServerURL
	}
	if m.BackupURL != "" {
		out["backup_url"] = m.BackupURL
	}
	if b := m.Backup; b != nil {
		result := map[string]any{
			"total_count":       b.TotalCount,
			"changed_count":     b.ChangedCount,
			"changed_workflows": stringList(b.ChangedWorkflows),
		}
		if len(b.WorkflowChanges) > 0 {
			changes := make(map[string]any, len(b.WorkflowChanges))
			for name, summary := range b.WorkflowChanges {
				changes[name] = summary
			}
			result["workflow_changes"] = changes
		}
		if b.Error != "" {
			result["error"] = b.Error
		}
		out["backup_result"] = result
	}
	if m.Health != nil {
		out["health_status"] = healthFields(m)
	}
	return out
}

func formatSlack(m Message) map[string]any {
	return map[string]any{
		"text": m.Text,
		"blocks": []any{
			map[string]any{
				"type": "section",
				"text": map[string]any{"type": "mrkdwn", "text": m.Text},
			},
		},
	}
}

func formatDiscord(m Message) map[string]any {
	color := colorSuccess
	if m.Status == StatusError {
		color = colorError
	}
	return map[string]any{
		"content": m.Text,
		"embeds": []any{
			map[string]any{
				"title":       m.Title,
				"description": m.Text,
				"color":       color,
			},
		},
	}
}

// formatTeams builds the flat payload a Power Automate flow turns into a
// card on its side.
func formatTeams(m Message) map[string]any {
	out := map[string]any{
		"title":     m.Title,
		"status":    string(m.Status),
		"timestamp": m.timestamp(),
		"n8n_url":   m.ServerURL,
	}
	switch {
	case m.Backup != nil:
		out["type"] = "backup"
		out["total_count"] = m.Backup.TotalCount
		out["changed_count"] = m.Backup.ChangedCount
		out["changed_workflows"] = stringList(m.Backup.ChangedWorkflows)
		out["backup_url"] = m.BackupURL
		if m.Backup.Error != "" {
			out["error"] = m.Backup.Error
		}
	case m.Health != nil:
		out["type"] = "health"
		out["health_status"] = string(m.Health.Status)
		out["error"] = m.Health.Error
	default:
		out["type"] = "info"
		out["message"] = m.Text
	}
	return out
}

func formatTeamsCard(m Message) map[string]any {
	color, icon := "Default", "ℹ️"
	switch m.Status {
	case StatusError:
		color, icon = "Attention", "⚠️"
	case StatusSuccess:
		color, icon = "Good", "✅"
	}

	body := []any{
		map[string]any{
			"type":   "TextBlock",
			"text":   icon + " " + m.Title,
			"size":   "Large",
			"weight": "Bolder",
			"color":  color,
		},
	}
	var actions []any

	switch {
	case m.Backup != nil:
		b := m.Backup
		body = append(body, factSet(
			"Backup time", m.timestamp(),
			"Total workflows", strconv.Itoa(b.TotalCount),
			"Changed", strconv.Itoa(b.ChangedCount),
		))
		if b.Error != "" {
			body = append(body, errorBlock(b.Error))
		}
		if len(b.ChangedWorkflows) > 0 {
			body = append(body, map[string]any{
				"type":    "TextBlock",
				"text":    "**Changed workflows:**",
				"weight":  "Bolder",
				"spacing": "Medium",
			})
			for _, name := range b.ChangedWorkflows {
				body = append(body, map[string]any{
					"type":    "TextBlock",
					"text":    "• " + name,
					"spacing": "Small",
				})
				if summary := b.WorkflowChanges[name]; summary != "" {
					body = append(body, map[string]any{
						"type":     "TextBlock",
						"text":     summary,
						"wrap":     true,
						"isSubtle": true,
						"spacing":  "None",
					})
				}
			}
		}
		actions = append(actions, openURL("Open n8n", m.ServerURL))
		if m.BackupURL != "" {
			actions = append(actions, openURL("View backup", m.BackupURL))
		}

	case m.Health != nil:
		body = append(body, factSet(
			"Time", m.timestamp(),
			"Status", string(m.Health.Status),
		))
		if m.Health.Error != "" {
			body = append(body, errorBlock(m.Health.Error))
		}
		actions = append(actions, openURL("Check n8n", m.ServerURL))

	default:
		body = append(body, map[string]any{
			"type": "TextBlock",
			"text": m.Text,
			"wrap": true,
		})
	}

	content := map[string]any{
		"type":    "AdaptiveCard",
		"$schema": "http://adaptivecards.io/schemas/adaptive-card.json",
		"version": "1.4",
		"body":    body,
	}
	if len(actions) > 0 {
		content["actions"] = actions
	}
	return map[string]any{
		"type": "message",
		"attachments": []any{
			map[string]any{
				"contentType": "application/vnd.microsoft.card.adaptive",
				"content":     content,
			},
		},
	}
}

func healthFields(m Message) map[string]any {
	out := map[string]any{
		"status":    string(m.Health.Status),
		"timestamp": m.Health.Timestamp.Format(timestampLayout),
	}
	if m.Health.Error != "" {
		out["error"] = m.Health.Error
	}
	if m.Health.ResponseTime > 0 {
		out["response_time_ms"] = m.Health.ResponseTime.Milliseconds()
	}
	return out
}

// factSet pairs up title/value arguments.
func factSet(pairs ...string) map[string]any {
	facts := make([]any, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		facts = append(facts, map[string]any{"title": pairs[i], "value": pairs[i+1]})
	}
	return map[string]any{"type": "FactSet", "facts": facts}
}

func errorBlock(text string) map[string]any {
	return map[string]any{
		"type":    "TextBlock",
		"text":    "**Error:**\n" + text,
		"wrap":    true,
		"spacing": "Medium",
		"color":   "Attention",
	}
}

func openURL(title, url string) map[string]any {
	return map[string]any{"type": "Action.OpenUrl", "title": title, "url": url}
}

func stringList(s []string) []any {
	out := make([]any, len(s))
	for i, v := range s {
		out[i] = v
	}
	return out
}
