package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

const sendTimeout = 10 * time.Second

// Notifier delivers messages. Implementations must not block the caller on
// delivery failure.
type Notifier interface {
	Send(ctx context.Context, msg Message)
}

// Nop discards every message.
type Nop struct{}

// Send implements Notifier.
func (Nop) Send(context.Context, Message) {}

// Webhook posts formatted messages to a URL.
type Webhook struct {
	URL      string
	Platform Platform
	// ServerURL and BackupURL are stamped on messages that lack them.
	ServerURL string
	BackupURL string
	Client    *http.Client
}

// Send implements Notifier. Failures are logged and dropped.
func (w *Webhook) Send(ctx context.Context, msg Message) {
	if w == nil || w.URL == "" {
		return
	}
	if msg.ServerURL == "" {
		msg.ServerURL = w.ServerURL
	}
	if msg.BackupURL == "" {
		msg.BackupURL = w.BackupURL
	}
	if err := w.post(ctx, msg); err != nil {
		slog.Error("webhook notification failed", "platform", w.Platform, "title", msg.Title, "error", err)
		return
	}
	slog.Info("webhook notification sent", "platform", w.Platform, "title", msg.Title)
}

func (w *Webhook) post(ctx context.Context, msg Message) error {
	body, err := Encode(w.Platform, msg)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	client := w.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("post: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("post: status %s", resp.Status)
	}
	return nil
}

// Encode renders the platform payload as indented JSON. HTML characters are
// left unescaped so workflow names read naturally in chat clients.
func Encode(platform Platform, msg Message) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(Format(platform, msg)); err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", platform, err)
	}
	return buf.Bytes(), nil
}
