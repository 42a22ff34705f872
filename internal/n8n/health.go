package n8n

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"syscall"
	"time"
)

// HealthState is the outcome kind of a liveness probe.
type HealthState string

const (
	Healthy   HealthState = "healthy"
	Unhealthy HealthState = "unhealthy"
	Timeout   HealthState = "timeout"
	Down      HealthState = "down"
	Errored   HealthState = "error"
)

// HealthStatus is the result of one probe.
type HealthStatus struct {
	Status       HealthState
	Error        string
	Timestamp    time.Time
	ResponseTime time.Duration
}

// Healthy reports whether the probe succeeded.
func (h HealthStatus) Healthy() bool {
	return h.Status == Healthy
}

// MarshalJSON renders the response time in seconds and omits empty fields.
func (h HealthStatus) MarshalJSON() ([]byte, error) {
	out := struct {
		Status       HealthState `json:"status"`
		Error        string      `json:"error,omitempty"`
		Timestamp    string      `json:"timestamp"`
		ResponseTime float64     `json:"response_time,omitempty"`
	}{
		Status:       h.Status,
		Error:        h.Error,
		Timestamp:    h.Timestamp.Format(time.RFC3339),
		ResponseTime: h.ResponseTime.Seconds(),
	}
	return json.Marshal(out)
}

// CheckHealth probes the liveness endpoint. Only HTTP 200 is healthy.
// It never returns an error; failures are classified into the status.
func (c *Client) CheckHealth(ctx context.Context) HealthStatus {
	start := time.Now()
	resp, err := c.do(ctx, c.BaseURL+healthPath, false)
	if err != nil {
		st := HealthStatus{Status: classify(err), Error: err.Error(), Timestamp: time.Now()}
		if st.Status == Timeout {
			st.Error = "connection timeout"
		}
		slog.Error("health check failed", "status", st.Status, "error", err)
		return st
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	elapsed := time.Since(start)

	if resp.StatusCode != http.StatusOK {
		slog.Warn("health check returned non-200", "code", resp.StatusCode)
		return HealthStatus{
			Status:    Unhealthy,
			Error:     fmt.Sprintf("HTTP %d", resp.StatusCode),
			Timestamp: time.Now(),
		}
	}
	slog.Info("server healthy", "response_time", elapsed)
	return HealthStatus{Status: Healthy, Timestamp: time.Now(), ResponseTime: elapsed}
}

func classify(err error) HealthState {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, os.ErrDeadlineExceeded) {
		return Timeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return Timeout
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return Down
	}
	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.EHOSTUNREACH) {
		return Down
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return Down
	}
	return Errored
}
