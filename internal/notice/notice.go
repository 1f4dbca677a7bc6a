// Package notice carries transient user-visible messages out of the sync core.
package notice

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
)

type Level string

const (
	LevelInfo    Level = "info"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

const (
	TextSignIn         = "Please sign in to use the chat."
	TextMessageNotSent = "Your message was not sent."
	TextBadPush        = "A notification could not be displayed."
)

type Notice struct {
	Level Level
	Text  string
}

type Notifier interface {
	Notify(Notice)
}

// Func adapts a plain function to Notifier.
type Func func(Notice)

func (f Func) Notify(n Notice) { f(n) }

// Log returns a Notifier that only writes notices to the logger.
func Log(logger *slog.Logger) Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	return Func(func(n Notice) {
		logger.Info("notice", "level", string(n.Level), "text", n.Text)
	})
}

// Recorder keeps every notice it receives.
type Recorder struct {
	mu      sync.Mutex
	notices []Notice
}

func (r *Recorder) Notify(n Notice) {
	r.mu.Lock()
	r.notices = append(r.notices, n)
	r.mu.Unlock()
}

func (r *Recorder) Notices() []Notice {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Notice(nil), r.notices...)
}

// Count returns how many recorded notices carry the given text.
func (r *Recorder) Count(text string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, item := range r.notices {
		if item.Text == text {
			n++
		}
	}
	return n
}

// Policy decides whether a dropped inbound payload reaches the user.
// The same policy applies to chat messages and notification pushes.
type Policy string

const (
	PolicyNotify Policy = "notify"
	PolicySilent Policy = "silent"
)

func ParsePolicy(s string) (Policy, error) {
	switch Policy(strings.ToLower(strings.TrimSpace(s))) {
	case "", PolicyNotify:
		return PolicyNotify, nil
	case PolicySilent:
		return PolicySilent, nil
	}
	return "", fmt.Errorf("unknown malformed payload policy %q", s)
}

// Dropped logs a malformed payload and, under PolicyNotify, raises text as an
// error notice.
func (p Policy) Dropped(logger *slog.Logger, notifier Notifier, text string, args ...any) {
	if logger == nil {
		logger = slog.Default()
	}
	logger.Warn("malformed payload dropped", args...)
	if p == PolicySilent || notifier == nil {
		return
	}
	notifier.Notify(Notice{Level: LevelError, Text: text})
}

type Redirector interface {
	Redirect(path string)
}

type RedirectFunc func(path string)

func (f RedirectFunc) Redirect(path string) { f(path) }

// RedirectAfter schedules r.Redirect(path) after delay. The returned function
// cancels the redirect if it has not fired yet.
func RedirectAfter(r Redirector, delay time.Duration, path string) (cancel func()) {
	if r == nil {
		return func() {}
	}
	t := time.AfterFunc(delay, func() { r.Redirect(path) })
	return func() { t.Stop() }
}
