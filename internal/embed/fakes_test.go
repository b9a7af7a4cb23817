package embed

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

type fakeTimer struct {
	d       time.Duration
	fn      func()
	stopped bool
	fired   bool
}

func (t *fakeTimer) Stop() bool {
	active := !t.stopped && !t.fired
	t.stopped = true
	return active
}

// fakeScheduler runs callbacks only when the test says so.
type fakeScheduler struct {
	timers []*fakeTimer
}

func (f *fakeScheduler) After(d time.Duration, fn func()) Timer {
	t := &fakeTimer{d: d, fn: fn}
	f.timers = append(f.timers, t)
	return t
}

// fire runs every live timer scheduled with delay d.
func (f *fakeScheduler) fire(d time.Duration) int {
	n := 0
	for i := 0; i < len(f.timers); i++ {
		t := f.timers[i]
		if t.d != d || t.stopped || t.fired {
			continue
		}
		t.fired = true
		t.fn()
		n++
	}
	return n
}

// fireRegardless runs a timer even if it was stopped, as happens when the
// callback was already queued before Stop.
func (f *fakeScheduler) fireRegardless(t *fakeTimer) {
	t.fired = true
	t.fn()
}

func (f *fakeScheduler) live(d time.Duration) []*fakeTimer {
	var out []*fakeTimer
	for _, t := range f.timers {
		if t.d == d && !t.stopped && !t.fired {
			out = append(out, t)
		}
	}
	return out
}

type posted struct {
	msg    any
	origin string
}

type fakeFrame struct {
	navigations []string
	posts       []posted
	height      int
	window      WindowID
	seq         int
	postErr     error
}

func (f *fakeFrame) Navigate(url string) WindowID {
	f.navigations = append(f.navigations, url)
	f.seq++
	f.window = WindowID(fmt.Sprintf("w%d", f.seq))
	return f.window
}

func (f *fakeFrame) ContentWindow() WindowID { return f.window }

func (f *fakeFrame) PostMessage(msg any, targetOrigin string) error {
	if f.postErr != nil {
		return f.postErr
	}
	f.posts = append(f.posts, posted{msg: msg, origin: targetOrigin})
	return nil
}

func (f *fakeFrame) SetHeight(px int) { f.height = px }

type entry struct {
	level Level
	msg   string
}

type fakeRenderer struct {
	logs     []entry
	notices  []entry
	progress []Progress
	results  map[string]json.RawMessage
	active   bool
}

func (r *fakeRenderer) Log(level Level, msg string) { r.logs = append(r.logs, entry{level, msg}) }
func (r *fakeRenderer) Notify(level Level, msg string) {
	r.notices = append(r.notices, entry{level, msg})
}
func (r *fakeRenderer) Progress(p Progress) { r.progress = append(r.progress, p) }
func (r *fakeRenderer) Results(res map[string]json.RawMessage) {
	r.results = res
}
func (r *fakeRenderer) FlowActive(active bool) { r.active = active }

func (r *fakeRenderer) lastProgress() Progress {
	if len(r.progress) == 0 {
		return Progress{}
	}
	return r.progress[len(r.progress)-1]
}

func (r *fakeRenderer) lastNotice() entry {
	if len(r.notices) == 0 {
		return entry{}
	}
	return r.notices[len(r.notices)-1]
}

func (r *fakeRenderer) hasLog(level Level, msg string) bool {
	for _, e := range r.logs {
		if e.level == level && e.msg == msg {
			return true
		}
	}
	return false
}

var errFrameGone = errors.New("frame detached")
