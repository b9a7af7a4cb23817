package embed

import (
	"encoding/json"
	"errors"

	"github.com/tidwall/gjson"
)

// Type is the discriminator carried in every widget message.
type Type string

const (
	TypeReady          Type = "READY"
	TypeConfigReceived Type = "CONFIG_RECEIVED"
	TypeStepComplete   Type = "STEP_COMPLETE"
	TypeFlowComplete   Type = "FLOW_COMPLETE"
	TypeError          Type = "ERROR"
	TypeStepFailed     Type = "STEP_FAILED"
	TypeResize         Type = "RESIZE"

	// TypeConfig is the only message the host sends to the widget.
	TypeConfig Type = "CONFIG"
)

// ErrorCancelled is the ERROR code the widget uses when the user aborts.
const ErrorCancelled = "CANCELLED"

var (
	ErrMalformedMessage = errors.New("widget message is not a JSON object with a string type")
	ErrMissingStepKey   = errors.New("STEP_COMPLETE without stepKey")
)

// Message is one inbound widget message.
type Message interface {
	Type() Type
}

type Ready struct{}

// ConfigReceived acknowledges a CONFIG; Steps is how many the widget processed.
type ConfigReceived struct {
	Steps int
}

type StepComplete struct {
	StepKey string
	Data    json.RawMessage
}

// FlowComplete carries final results keyed by step, merged over earlier ones.
type FlowComplete struct {
	Data map[string]json.RawMessage
}

// Failure is the ERROR message. Code is the widget's error field.
type Failure struct {
	Code    string
	Message string
}

type StepFailed struct {
	StepKey string
	Message string
}

type Resize struct {
	Height int
}

// Unknown preserves messages of a type this host does not handle.
type Unknown struct {
	Kind string
	Raw  json.RawMessage
}

func (Ready) Type() Type          { return TypeReady }
func (ConfigReceived) Type() Type { return TypeConfigReceived }
func (StepComplete) Type() Type   { return TypeStepComplete }
func (FlowComplete) Type() Type   { return TypeFlowComplete }
func (Failure) Type() Type        { return TypeError }
func (StepFailed) Type() Type     { return TypeStepFailed }
func (Resize) Type() Type         { return TypeResize }
func (u Unknown) Type() Type      { return Type(u.Kind) }

// Describe renders the failure the way it is shown to the user.
func (f Failure) Describe() string {
	if f.Code != "" {
		return f.Code
	}
	return f.Message
}

// Decode parses a {type, data} message.
func Decode(raw []byte) (Message, error) {
	if !gjson.ValidBytes(raw) {
		return nil, ErrMalformedMessage
	}
	root := gjson.ParseBytes(raw)
	typ := root.Get("type")
	if !root.IsObject() || typ.Type != gjson.String {
		return nil, ErrMalformedMessage
	}
	data := root.Get("data")

	switch Type(typ.Str) {
	case TypeReady:
		return Ready{}, nil
	case TypeConfigReceived:
		return ConfigReceived{Steps: len(data.Get("steps").Array())}, nil
	case TypeStepComplete:
		key := data.Get("stepKey")
		if key.Type != gjson.String || key.Str == "" {
			return nil, ErrMissingStepKey
		}
		payload := json.RawMessage("null")
		if d := data.Get("data"); d.Exists() {
			payload = json.RawMessage(d.Raw)
		}
		return StepComplete{StepKey: key.Str, Data: payload}, nil
	case TypeFlowComplete:
		msg := FlowComplete{}
		if data.IsObject() {
			msg.Data = make(map[string]json.RawMessage)
			data.ForEach(func(k, v gjson.Result) bool {
				msg.Data[k.String()] = json.RawMessage(v.Raw)
				return true
			})
		}
		return msg, nil
	case TypeError:
		return Failure{Code: data.Get("error").String(), Message: data.Get("message").String()}, nil
	case TypeStepFailed:
		return StepFailed{StepKey: data.Get("stepKey").String(), Message: data.Get("message").String()}, nil
	case TypeResize:
		return Resize{Height: int(data.Get("height").Int())}, nil
	default:
		return Unknown{Kind: typ.Str, Raw: json.RawMessage(raw)}, nil
	}
}

// StepRef is one entry of the outbound step list.
type StepRef struct {
	Key string `json:"key"`
}

// ConfigPayload is the data of the outbound CONFIG message.
type ConfigPayload struct {
	Steps    []StepRef `json:"steps"`
	ShortKey string    `json:"shortKey"`
	ConfigID string    `json:"configId"`
}

// Outbound is the envelope posted to the widget.
type Outbound struct {
	Type Type          `json:"type"`
	Data ConfigPayload `json:"data"`
}
