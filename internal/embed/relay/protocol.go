package relay

import (
	"encoding/json"
	"errors"

	"github.com/soyYisus/jaak-kyc-demo/internal/embed"
)

// Commands sent by the page.
const (
	CommandInit      = "init"
	CommandStart     = "start"
	CommandRestart   = "restart"
	CommandExport    = "export"
	CommandClearLogs = "clearLogs"
	CommandMessage   = "message"
)

// Events sent to the page besides the progress board kinds.
const (
	EventNavigate = "navigate"
	EventPost     = "post"
	EventResize   = "resize"
	EventConfig   = "config"
)

var (
	ErrClosed         = errors.New("relay connection closed")
	ErrUnknownCommand = errors.New("unknown relay command")
)

// Command is a page to server frame.
type Command struct {
	Kind     string          `json:"kind"`
	ShortKey string          `json:"shortKey,omitempty"`
	Steps    []string        `json:"steps,omitempty"`
	Origin   string          `json:"origin,omitempty"`
	Source   embed.WindowID  `json:"source,omitempty"`
	Data     json.RawMessage `json:"data,omitempty"`
}

// Envelope extracts the cross-document message carried by a message command.
func (c Command) Envelope() embed.Envelope {
	return embed.Envelope{Origin: c.Origin, Source: c.Source, Data: c.Data}
}

// Event is a server to page frame. Navigate, post and resize drive the
// iframe; every other kind carries a board update in Payload.
type Event struct {
	Kind         string         `json:"kind"`
	URL          string         `json:"url,omitempty"`
	FrameID      embed.WindowID `json:"frameId,omitempty"`
	TargetOrigin string         `json:"targetOrigin,omitempty"`
	Message      any            `json:"message,omitempty"`
	Height       int            `json:"height,omitempty"`
	Payload      any            `json:"payload,omitempty"`
}

// DecodeCommand parses a page frame.
func DecodeCommand(raw []byte) (Command, error) {
	var cmd Command
	if err := json.Unmarshal(raw, &cmd); err != nil {
		return Command{}, err
	}
	switch cmd.Kind {
	case CommandInit, CommandStart, CommandRestart, CommandExport, CommandClearLogs, CommandMessage:
		return cmd, nil
	default:
		return Command{}, ErrUnknownCommand
	}
}
