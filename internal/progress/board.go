// Package progress renders flow state for the operator: a progress bar with
// its caption, a bounded log, notifications and the collected results.
package progress

import (
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/soyYisus/jaak-kyc-demo/internal/embed"
)

// Kind tags an update pushed to a Sink.
type Kind string

const (
	KindProgress Kind = "progress"
	KindLog      Kind = "log"
	KindNotify   Kind = "notify"
	KindResults  Kind = "results"
	KindActive   Kind = "active"
	KindExport   Kind = "export"
	KindLogs     Kind = "logs"
)

const (
	DefaultMaxLogs = 500
	recentSteps    = 3
	waitingText    = "Waiting for the flow to start..."
)

var ErrNoResults = errors.New("no results to export")

// Sink receives every change made to a Board.
type Sink interface {
	Push(kind Kind, payload any)
}

type LogEntry struct {
	Time    time.Time   `json:"time"`
	Level   embed.Level `json:"level"`
	Message string      `json:"message"`
}

type Notification struct {
	Level   embed.Level `json:"level"`
	Message string      `json:"message"`
}

// View is the rendered progress bar.
type View struct {
	Percent   float64  `json:"percent"`
	Completed int      `json:"completed"`
	Total     int      `json:"total"`
	Recent    []string `json:"recent"`
	Text      string   `json:"text"`
}

// Export is a downloadable results document.
type Export struct {
	FileName string          `json:"fileName"`
	Body     json.RawMessage `json:"body"`
}

// Snapshot is a copy of everything the board shows.
type Snapshot struct {
	Progress View                       `json:"progress"`
	Logs     []LogEntry                 `json:"logs"`
	Results  map[string]json.RawMessage `json:"results"`
	Active   bool                       `json:"active"`
}

var _ embed.Renderer = (*Board)(nil)

// Board implements embed.Renderer.
type Board struct {
	mu       sync.Mutex
	sink     Sink
	now      func() time.Time
	maxLogs  int
	logs     []LogEntry
	progress View
	results  map[string]json.RawMessage
	active   bool
}

type Option func(*Board)

func WithClock(now func() time.Time) Option {
	return func(b *Board) { b.now = now }
}

func WithMaxLogs(n int) Option {
	return func(b *Board) {
		if n > 0 {
			b.maxLogs = n
		}
	}
}

// NewBoard creates an empty board. sink may be nil.
func NewBoard(sink Sink, opts ...Option) *Board {
	b := &Board{
		sink:     sink,
		now:      time.Now,
		maxLogs:  DefaultMaxLogs,
		progress: View{Text: waitingText, Recent: []string{}},
		results:  map[string]json.RawMessage{},
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *Board) push(kind Kind, payload any) {
	if b.sink != nil {
		b.sink.Push(kind, payload)
	}
}

func (b *Board) Log(level embed.Level, msg string) {
	b.mu.Lock()
	e := LogEntry{Time: b.now(), Level: level, Message: msg}
	b.logs = append(b.logs, e)
	if over := len(b.logs) - b.maxLogs; over > 0 {
		b.logs = slices.Delete(b.logs, 0, over)
	}
	b.mu.Unlock()
	b.push(KindLog, e)
}

func (b *Board) Notify(level embed.Level, msg string) {
	b.push(KindNotify, Notification{Level: level, Message: msg})
}

func (b *Board) Progress(p embed.Progress) {
	v := Render(p)
	b.mu.Lock()
	b.progress = v
	b.mu.Unlock()
	b.push(KindProgress, v)
}

func (b *Board) Results(results map[string]json.RawMessage) {
	r := maps.Clone(results)
	if r == nil {
		r = map[string]json.RawMessage{}
	}
	b.mu.Lock()
	b.results = r
	b.mu.Unlock()
	b.push(KindResults, maps.Clone(r))
}

func (b *Board) FlowActive(active bool) {
	b.mu.Lock()
	b.active = active
	b.mu.Unlock()
	b.push(KindActive, active)
}

// ClearLogs empties the log, leaving a single marker entry.
func (b *Board) ClearLogs() {
	b.mu.Lock()
	b.logs = []LogEntry{{Time: b.now(), Level: embed.LevelInfo, Message: "Logs cleared"}}
	logs := slices.Clone(b.logs)
	b.mu.Unlock()
	b.push(KindLogs, logs)
}

// Export renders the results as an indented JSON download. An empty result
// set is refused with a warning.
func (b *Board) Export(now time.Time) (Export, error) {
	b.mu.Lock()
	results := maps.Clone(b.results)
	b.mu.Unlock()

	if len(results) == 0 {
		b.Notify(embed.LevelWarning, "No data to export")
		return Export{}, ErrNoResults
	}
	body, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return Export{}, fmt.Errorf("encode results: %w", err)
	}
	exp := Export{FileName: ExportFileName(now), Body: body}
	b.push(KindExport, exp)
	b.Notify(embed.LevelSuccess, "Data exported")
	return exp, nil
}

func (b *Board) Snapshot() Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	return Snapshot{
		Progress: b.progress,
		Logs:     slices.Clone(b.logs),
		Results:  maps.Clone(b.results),
		Active:   b.active,
	}
}

// ExportFileName is kyc-results-YYYY-MM-DD.json for the UTC date of now.
func ExportFileName(now time.Time) string {
	return "kyc-results-" + now.UTC().Format(time.DateOnly) + ".json"
}

// Render computes the progress caption.
func Render(p embed.Progress) View {
	recent := p.Completed
	if len(recent) > recentSteps {
		recent = recent[len(recent)-recentSteps:]
	}
	v := View{
		Percent:   p.Percent,
		Completed: len(p.Completed),
		Total:     p.Total,
		Recent:    slices.Clone(recent),
	}
	if v.Recent == nil {
		v.Recent = []string{}
	}
	if len(p.Completed) == 0 {
		v.Text = waitingText
		return v
	}
	v.Text = fmt.Sprintf("Progress: %d/%d steps completed", len(p.Completed), p.Total)
	if len(recent) > 0 {
		v.Text += " (latest: " + strings.Join(recent, ", ") + ")"
	}
	return v
}
