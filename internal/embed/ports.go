package embed

import (
	"encoding/json"
	"time"
)

// WindowID identifies the document currently loaded in the frame. It changes
// on every navigation, so messages from a replaced document no longer match.
type WindowID string

// BlankURL empties the frame.
const BlankURL = "about:blank"

// Frame drives the iframe hosting the widget.
type Frame interface {
	// Navigate loads url and returns the id of the new content window.
	Navigate(url string) WindowID
	ContentWindow() WindowID
	PostMessage(msg any, targetOrigin string) error
	SetHeight(px int)
}

// Level grades log lines and notifications.
type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Progress is a snapshot of step completion.
type Progress struct {
	Percent   float64
	Completed []string
	Total     int
}

// Renderer presents flow state to the user.
type Renderer interface {
	Log(level Level, msg string)
	Notify(level Level, msg string)
	Progress(p Progress)
	Results(results map[string]json.RawMessage)
	FlowActive(active bool)
}

// Timer is a scheduled callback that can be stopped before it fires.
type Timer interface {
	Stop() bool
}

// Scheduler runs fn after d on the session's goroutine.
type Scheduler interface {
	After(d time.Duration, fn func()) Timer
}

// Envelope is a cross-document message as observed by the host page.
type Envelope struct {
	Origin string          `json:"origin"`
	Source WindowID        `json:"source"`
	Data   json.RawMessage `json:"data"`
}
