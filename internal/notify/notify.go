// Package notify surfaces short human readable notifications (toasts).
package notify

import (
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"
)

// Level classifies a notification.
type Level string

const (
	LevelSuccess Level = "success"
	LevelError   Level = "error"
	LevelInfo    Level = "info"
	LevelLive    Level = "live"
)

// Display durations per level.
const (
	SuccessDuration = 3 * time.Second
	ErrorDuration   = 4 * time.Second
	InfoDuration    = 3 * time.Second
	LiveDuration    = 5 * time.Second
)

// Notification is one surfaced message.
type Notification struct {
	Level    Level
	Message  string
	ImageURL string
	Duration time.Duration
}

// Notifier surfaces notifications to the user.
type Notifier interface {
	Success(msg string)
	Error(msg string)
	Info(msg string)
	// LiveUpdate announces media uploaded by someone else.
	LiveUpdate(msg, imageURL string)
}

// Writer prints notifications as single lines, for the CLI.
type Writer struct {
	mu  sync.Mutex
	out io.Writer
	log *slog.Logger
}

// NewWriter creates a Writer printing to out.
func NewWriter(out io.Writer, logger *slog.Logger) *Writer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Writer{out: out, log: logger}
}

func (w *Writer) Success(msg string) { w.emit(Notification{Level: LevelSuccess, Message: msg, Duration: SuccessDuration}) }
func (w *Writer) Error(msg string)   { w.emit(Notification{Level: LevelError, Message: msg, Duration: ErrorDuration}) }
func (w *Writer) Info(msg string)    { w.emit(Notification{Level: LevelInfo, Message: msg, Duration: InfoDuration}) }

func (w *Writer) LiveUpdate(msg, imageURL string) {
	w.emit(Notification{Level: LevelLive, Message: msg, ImageURL: imageURL, Duration: LiveDuration})
}

func (w *Writer) emit(n Notification) {
	w.mu.Lock()
	defer w.mu.Unlock()
	icon := map[Level]string{LevelSuccess: "✓", LevelError: "✕", LevelInfo: "i", LevelLive: "★"}[n.Level]
	line := fmt.Sprintf("%s %s", icon, n.Message)
	if n.ImageURL != "" {
		line += " (" + n.ImageURL + ")"
	}
	if _, err := fmt.Fprintln(w.out, line); err != nil {
		w.log.Warn("write notification", "err", err)
	}
	w.log.Debug("notification", "level", n.Level, "message", n.Message)
}

// Recorder keeps every notification in memory. Tests and headless callers use
// it to observe what would have been shown.
type Recorder struct {
	mu    sync.Mutex
	items []Notification
}

func (r *Recorder) Success(msg string) { r.add(Notification{Level: LevelSuccess, Message: msg, Duration: SuccessDuration}) }
func (r *Recorder) Error(msg string)   { r.add(Notification{Level: LevelError, Message: msg, Duration: ErrorDuration}) }
func (r *Recorder) Info(msg string)    { r.add(Notification{Level: LevelInfo, Message: msg, Duration: InfoDuration}) }

func (r *Recorder) LiveUpdate(msg, imageURL string) {
	r.add(Notification{Level: LevelLive, Message: msg, ImageURL: imageURL, Duration: LiveDuration})
}

func (r *Recorder) add(n Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = append(r.items, n)
}

// All returns a copy of the recorded notifications.
func (r *Recorder) All() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Notification, len(r.items))
	copy(out, r.items)
	return out
}

// Count returns how many notifications of level were recorded.
func (r *Recorder) Count(level Level) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, item := range r.items {
		if item.Level == level {
			n++
		}
	}
	return n
}
