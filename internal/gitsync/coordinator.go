package gitsync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// State is the position of a sync in the commit/push state machine.
type State string

const (
	Clean     State = "clean"
	Staged    State = "staged"
	Committed State = "committed"
	Pushed    State = "pushed"
	// Reset means the push was abandoned and the branch moved to the
	// remote tip. The next cycle commits the working tree again.
	Reset State = "reset"
)

// Outcome classifies a single push attempt or a whole sync.
type Outcome string

const (
	Success Outcome = "success"
	Retry   Outcome = "retry"
	Failure Outcome = "failure"
)

const (
	DefaultRemote = "origin"
	DefaultBranch = "main"

	maxPushAttempts = 3
	timestampLayout = "2006-01-02 15:04:05"
	commitPrefix    = "[auto-backup]"
)

// backoff is the delay before push attempt n+1 after an unclassified failure.
var backoff = []time.Duration{1 * time.Second, 2 * time.Second, 4 * time.Second}

// ErrPushFailed is wrapped by the error returned when every push attempt
// failed.
var ErrPushFailed = errors.New("push failed")

// Attempt records one push attempt.
type Attempt struct {
	N       int
	Outcome Outcome
	Reason  string
}

// Result describes how far a sync got.
type Result struct {
	State    State
	Outcome  Outcome
	Attempts []Attempt
	// Reason explains a non-success outcome.
	Reason string
}

// Pushed reports whether the remote now holds the commit.
func (r Result) Pushed() bool {
	return r.State == Pushed
}

// Coordinator stages, commits and pushes a working tree.
type Coordinator struct {
	Dir    string
	Remote string
	Branch string
	Runner Runner

	// Now stamps commit messages. Defaults to time.Now.
	Now func() time.Time
	// Sleep waits between push attempts. Defaults to a context-aware timer.
	Sleep func(ctx context.Context, d time.Duration) error
}

// New returns a coordinator for dir using the git binary and the default
// remote and branch.
func New(dir string) *Coordinator {
	return &Coordinator{Dir: dir, Runner: ExecRunner{}}
}

// Sync commits all working tree changes and pushes them. changed names the
// workflows listed in the commit message.
//
// A clean tree returns State Clean with Outcome Success. An abandoned push
// returns State Reset with Outcome Failure and a nil error; the working tree
// is not touched. Stage, detect and commit failures, a failed reset, and
// exhausted push attempts return an error.
func (c *Coordinator) Sync(ctx context.Context, changed []string) (Result, error) {
	res := Result{State: Clean, Outcome: Failure}

	slog.Debug("git add", "dir", c.Dir)
	if _, _, err := c.git(ctx, "add", "."); err != nil && !ignoredPathsOnly(err) {
		return res, c.fail(&res, "stage", err)
	}
	res.State = Staged

	status, _, err := c.git(ctx, "status", "--porcelain")
	if err != nil {
		return res, c.fail(&res, "status", err)
	}
	if strings.TrimSpace(status) == "" {
		slog.Info("no changes to commit", "dir", c.Dir)
		res.State = Clean
		res.Outcome = Success
		return res, nil
	}
	slog.Info("working tree changes detected", "files", countLines(status))

	if _, _, err := c.git(ctx, "commit", "-m", c.commitMessage(changed)); err != nil {
		return res, c.fail(&res, "commit", err)
	}
	res.State = Committed
	slog.Info("commit created", "workflows", len(changed))

	return c.push(ctx, res)
}

func (c *Coordinator) push(ctx context.Context, res Result) (Result, error) {
	remote, branch := c.remote(), c.branch()
	setUpstream := false
	limit := maxPushAttempts
	var lastErr error

	for n := 1; n <= limit; n++ {
		args := []string{"push"}
		if setUpstream {
			args = append(args, "--set-upstream", remote, branch)
		}
		stdout, stderr, err := c.git(ctx, args...)
		if err == nil {
			res.Attempts = append(res.Attempts, Attempt{N: n, Outcome: Success})
			res.State = Pushed
			res.Outcome = Success
			slog.Info("push succeeded", "attempt", n, "stdout", strings.TrimSpace(stdout), "stderr", strings.TrimSpace(stderr))
			return res, nil
		}
		lastErr = err

		switch {
		case isNoUpstream(err) && !setUpstream:
			slog.Info("no upstream branch, setting upstream", "remote", remote, "branch", branch)
			setUpstream = true
			res.Attempts = append(res.Attempts, Attempt{N: n, Outcome: Retry, Reason: "no upstream"})
			if n == limit {
				// The upstream retry is owed even on the last attempt.
				limit++
			}

		case isRejected(err):
			res.Attempts = append(res.Attempts, Attempt{N: n, Outcome: Retry, Reason: "rejected"})
			slog.Warn("push rejected, merging remote changes", "attempt", n, "remote", remote, "branch", branch)
			if _, _, err := c.git(ctx, "pull", "--no-rebase", "-X", "theirs", remote, branch); err != nil {
				logCommandError("merge failed", err)
				return c.resetToRemote(ctx, res, err)
			}

		default:
			res.Attempts = append(res.Attempts, Attempt{N: n, Outcome: Retry, Reason: err.Error()})
			if n < limit {
				delay := backoff[n-1]
				slog.Warn("push failed, backing off", "attempt", n, "delay", delay, "error", err)
				if err := c.sleep(ctx, delay); err != nil {
					return res, c.fail(&res, "push", err)
				}
			}
		}
	}

	res.Attempts[len(res.Attempts)-1].Outcome = Failure
	return res, c.fail(&res, "push", fmt.Errorf("%w after %d attempts: %w", ErrPushFailed, len(res.Attempts), lastErr))
}

// resetToRemote abandons the local commit: the merge is aborted, the remote
// fetched and the branch moved to the remote tip. The working tree keeps the
// snapshot files written this cycle.
func (c *Coordinator) resetToRemote(ctx context.Context, res Result, cause error) (Result, error) {
	remote, branch := c.remote(), c.branch()

	if _, _, err := c.git(ctx, "merge", "--abort"); err != nil {
		slog.Debug("merge abort failed", "error", err)
	}
	if _, _, err := c.git(ctx, "fetch", remote); err != nil {
		return res, c.fail(&res, "fetch", err)
	}
	target := remote + "/" + branch
	if _, _, err := c.git(ctx, "reset", "--mixed", target); err != nil {
		return res, c.fail(&res, "reset", err)
	}

	res.State = Reset
	res.Outcome = Failure
	res.Reason = "push abandoned after failed merge: " + cause.Error()
	slog.Warn("branch reset to remote tip, push deferred to next cycle", "target", target)
	return res, nil
}

func (c *Coordinator) fail(res *Result, step string, err error) error {
	res.Outcome = Failure
	res.Reason = err.Error()
	logCommandError("git "+step+" failed", err)
	return fmt.Errorf("git %s: %w", step, err)
}

func (c *Coordinator) git(ctx context.Context, args ...string) (string, string, error) {
	return c.Runner.Run(ctx, c.Dir, args...)
}

func (c *Coordinator) commitMessage(changed []string) string {
	now := time.Now
	if c.Now != nil {
		now = c.Now
	}
	var b strings.Builder
	b.WriteString(commitPrefix)
	b.WriteString(" ")
	b.WriteString(now().Format(timestampLayout))
	b.WriteString("\n\nChanged workflows:\n")
	if len(changed) == 0 {
		b.WriteString("- (none listed)")
	}
	for i, name := range changed {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString("- ")
		b.WriteString(name)
	}
	return b.String()
}

func (c *Coordinator) sleep(ctx context.Context, d time.Duration) error {
	if c.Sleep != nil {
		return c.Sleep(ctx, d)
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (c *Coordinator) remote() string {
	if c.Remote == "" {
		return DefaultRemote
	}
	return c.Remote
}

func (c *Coordinator) branch() string {
	if c.Branch == "" {
		return DefaultBranch
	}
	return c.Branch
}

func logCommandError(msg string, err error) {
	ce, ok := AsCommandError(err)
	if !ok {
		slog.Error(msg, "error", err)
		return
	}
	slog.Error(msg,
		"cmd", "git "+strings.Join(ce.Args, " "),
		"exit_code", ce.ExitCode,
		"stdout", strings.TrimSpace(ce.Stdout),
		"stderr", strings.TrimSpace(ce.Stderr),
	)
}

func ignoredPathsOnly(err error) bool {
	ce, ok := AsCommandError(err)
	return ok && strings.Contains(ce.Output(), "ignored by one of your .gitignore")
}

func isNoUpstream(err error) bool {
	ce, ok := AsCommandError(err)
	if !ok {
		return false
	}
	out := ce.Output()
	return strings.Contains(out, "no upstream branch") || strings.Contains(out, "has no upstream")
}

func isRejected(err error) bool {
	ce, ok := AsCommandError(err)
	if !ok {
		return false
	}
	out := ce.Output()
	// "[remote rejected]" is a hook or permission refusal, not a stale branch.
	return strings.Contains(out, "[rejected]") ||
		strings.Contains(out, "fetch first") ||
		strings.Contains(out, "non-fast-forward")
}

func countLines(s string) int {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	return strings.Count(s, "\n") + 1
}
