package relay

import (
	"strconv"

	"github.com/soyYisus/jaak-kyc-demo/internal/embed"
	"github.com/soyYisus/jaak-kyc-demo/internal/progress"
)

// outbox queues events for the connection writer. Sends block while the
// queue is full and fail once the writer has stopped.
type outbox struct {
	events chan Event
	done   chan struct{}
}

func newOutbox(size int) *outbox {
	return &outbox{events: make(chan Event, size), done: make(chan struct{})}
}

func (o *outbox) send(ev Event) error {
	select {
	case <-o.done:
		return ErrClosed
	default:
	}
	select {
	case o.events <- ev:
		return nil
	case <-o.done:
		return ErrClosed
	}
}

func (o *outbox) close() {
	select {
	case <-o.done:
	default:
		close(o.done)
	}
}

// Push implements progress.Sink.
func (o *outbox) Push(kind progress.Kind, payload any) {
	_ = o.send(Event{Kind: string(kind), Payload: payload})
}

var _ embed.Frame = (*frame)(nil)

// frame is the remote iframe. Every navigation gets a new window id, which
// the page echoes back as the source of messages from that document.
type frame struct {
	out     *outbox
	gen     int
	current embed.WindowID
}

func newFrame(out *outbox) *frame {
	return &frame{out: out}
}

func (f *frame) Navigate(url string) embed.WindowID {
	f.gen++
	f.current = embed.WindowID("frame-" + strconv.Itoa(f.gen))
	_ = f.out.send(Event{Kind: EventNavigate, URL: url, FrameID: f.current})
	return f.current
}

func (f *frame) ContentWindow() embed.WindowID {
	return f.current
}

func (f *frame) PostMessage(msg any, targetOrigin string) error {
	return f.out.send(Event{Kind: EventPost, TargetOrigin: targetOrigin, Message: msg})
}

func (f *frame) SetHeight(px int) {
	_ = f.out.send(Event{Kind: EventResize, Height: px})
}
