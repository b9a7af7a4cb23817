// Package embed is the host side of the widget's cross-document protocol. A
// Session tracks one verification flow: it reloads the frame, answers READY
// with a single delayed CONFIG, and folds step results into the flow state.
//
// A Session is not safe for concurrent use. Every call, including scheduled
// callbacks, must run on the same goroutine; Loop provides that.
package embed

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/soyYisus/jaak-kyc-demo/internal/platform/metrics"
	"github.com/soyYisus/jaak-kyc-demo/internal/steps"
	dErrors "github.com/soyYisus/jaak-kyc-demo/pkg/domain-errors"
)

// Phase is the position of the flow in its lifecycle.
type Phase string

const (
	PhaseIdle          Phase = "IDLE"
	PhaseConfigPending Phase = "CONFIG_PENDING"
	PhaseConfigSent    Phase = "CONFIG_SENT"
	PhaseStepProgress  Phase = "STEP_PROGRESS"
	PhaseFlowComplete  Phase = "FLOW_COMPLETE"
	PhaseError         Phase = "ERROR"
)

// Terminal reports whether no further progress is expected.
func (p Phase) Terminal() bool {
	return p == PhaseFlowComplete || p == PhaseError
}

// Config holds the widget coordinates and protocol delays.
type Config struct {
	WidgetOrigin     string
	EmbedURL         string
	ConfigSendDelay  time.Duration
	FrameReloadDelay time.Duration
}

// FlowConfig is what a flow is started with.
type FlowConfig struct {
	ShortKey string
	Steps    []string
}

// Snapshot is a read-only copy of the flow state.
type Snapshot struct {
	Phase          Phase
	Active         bool
	ShortKey       string
	CurrentSteps   []string
	CompletedSteps []string
	Results        map[string]json.RawMessage
	ConfigSent     bool
	ConfigID       string
}

type flowState struct {
	currentSteps   []string
	completedSteps []string
	results        map[string]json.RawMessage
	configSent     bool
	configID       string
	active         bool
}

type Session struct {
	cfg      Config
	frame    Frame
	renderer Renderer
	sched    Scheduler
	logger   *slog.Logger
	metrics  *metrics.Metrics
	now      func() time.Time

	phase      Phase
	flow       *FlowConfig
	state      flowState
	flowCtx    context.Context
	cancelFlow context.CancelFunc
	pending    []Timer
	reload     Timer
}

type Option func(*Session)

// WithClock overrides time.Now, used for config ids and cache-busting URLs.
func WithClock(now func() time.Time) Option {
	return func(s *Session) { s.now = now }
}

// WithMetrics records message and delivery counters.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Session) { s.metrics = m }
}

func NewSession(cfg Config, frame Frame, renderer Renderer, sched Scheduler, logger *slog.Logger, opts ...Option) *Session {
	s := &Session{
		cfg:      cfg,
		frame:    frame,
		renderer: renderer,
		sched:    sched,
		logger:   logger,
		now:      time.Now,
		phase:    PhaseIdle,
		state:    flowState{results: map[string]json.RawMessage{}},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Session) Phase() Phase {
	return s.phase
}

// State returns a copy of the flow state.
func (s *Session) State() Snapshot {
	snap := Snapshot{
		Phase:          s.phase,
		Active:         s.state.active,
		CurrentSteps:   slices.Clone(s.state.currentSteps),
		CompletedSteps: slices.Clone(s.state.completedSteps),
		Results:        maps.Clone(s.state.results),
		ConfigSent:     s.state.configSent,
		ConfigID:       s.state.configID,
	}
	if s.flow != nil {
		snap.ShortKey = s.flow.ShortKey
	}
	return snap
}

// InitKYC starts a new flow. Any previous flow is abandoned: its pending
// CONFIG send and frame reload are cancelled and its results dropped.
// ctx bounds the lifetime of the flow's scheduled work.
func (s *Session) InitKYC(ctx context.Context, fc FlowConfig) error {
	if strings.TrimSpace(fc.ShortKey) == "" {
		s.renderer.Notify(LevelError, "Short key is required")
		s.renderer.Log(LevelError, "Invalid configuration: missing short key")
		return dErrors.New(dErrors.CodeValidation, "short key is required")
	}
	if len(fc.Steps) == 0 {
		s.renderer.Notify(LevelError, "Select at least one step for the flow")
		s.renderer.Log(LevelError, "Invalid configuration: no steps defined")
		return dErrors.New(dErrors.CodeValidation, "at least one step is required")
	}

	s.reset()
	s.flowCtx, s.cancelFlow = context.WithCancel(ctx)
	fc = FlowConfig{ShortKey: strings.TrimSpace(fc.ShortKey), Steps: slices.Clone(fc.Steps)}
	s.flow = &fc
	s.state.currentSteps = slices.Clone(fc.Steps)
	s.renderer.Log(LevelInfo, "Configured steps: "+strings.Join(fc.Steps, " -> "))
	for step, deps := range steps.MissingDependencies(steps.Keys(fc.Steps)) {
		s.renderer.Log(LevelWarning, fmt.Sprintf("Step %s usually requires %v", step, deps))
	}

	s.reloadFrame()

	s.phase = PhaseConfigPending
	s.setActive(true)
	s.renderer.Log(LevelInfo, fmt.Sprintf("Starting KYC flow with %d steps", len(fc.Steps)))
	s.renderer.Progress(Progress{Percent: 0, Total: len(fc.Steps)})
	s.renderer.Results(maps.Clone(s.state.results))
	s.logger.InfoContext(ctx, "kyc flow started",
		"short_key", fc.ShortKey,
		"steps", len(fc.Steps),
	)
	return nil
}

// Restart abandons the current flow and blanks the frame.
func (s *Session) Restart(ctx context.Context) {
	s.reset()
	s.flow = nil
	s.frame.Navigate(BlankURL)
	s.phase = PhaseIdle
	s.setActive(false)
	s.renderer.Results(map[string]json.RawMessage{})
	s.renderer.Progress(Progress{Percent: 0})
	s.renderer.Log(LevelInfo, "Session state cleared")
	s.logger.InfoContext(ctx, "kyc flow reset")
}

// Close cancels all scheduled work.
func (s *Session) Close() {
	s.reset()
}

func (s *Session) reset() {
	if s.cancelFlow != nil {
		s.cancelFlow()
		s.cancelFlow = nil
	}
	s.cancelPending()
	if s.reload != nil {
		s.reload.Stop()
		s.reload = nil
	}
	s.state = flowState{results: map[string]json.RawMessage{}}
}

func (s *Session) cancelPending() {
	for _, t := range s.pending {
		t.Stop()
	}
	s.pending = nil
	s.state.configID = ""
}

func (s *Session) reloadFrame() {
	s.renderer.Log(LevelInfo, "Reloading frame")
	s.frame.Navigate(BlankURL)

	flowCtx := s.flowCtx
	s.reload = s.sched.After(s.cfg.FrameReloadDelay, func() {
		if flowCtx.Err() != nil {
			return
		}
		s.reload = nil
		s.frame.Navigate(s.cfg.EmbedURL + "?t=" + strconv.FormatInt(s.now().UnixMilli(), 10))
		s.renderer.Log(LevelSuccess, "Frame reloaded")
	})
}

// Receive applies the origin and source filter, then handles the message.
func (s *Session) Receive(ctx context.Context, env Envelope) {
	if env.Origin != s.cfg.WidgetOrigin {
		s.metrics.IncrementEmbedRejected("origin")
		s.logger.DebugContext(ctx, "widget message rejected", "reason", "origin", "origin", env.Origin)
		return
	}
	if env.Source == "" || env.Source != s.frame.ContentWindow() {
		s.metrics.IncrementEmbedRejected("source")
		s.logger.DebugContext(ctx, "widget message rejected", "reason", "source", "source", env.Source)
		return
	}

	msg, err := Decode(env.Data)
	if err != nil {
		s.logger.WarnContext(ctx, "unreadable widget message", "error", err)
		s.renderer.Log(LevelWarning, "Ignored unreadable widget message: "+err.Error())
		return
	}
	s.Handle(ctx, msg)
}

// Handle dispatches an accepted message.
func (s *Session) Handle(ctx context.Context, msg Message) {
	s.metrics.IncrementEmbedMessage(string(msg.Type()))
	s.renderer.Log(LevelInfo, "Event received: "+string(msg.Type()))

	switch m := msg.(type) {
	case Ready:
		s.handleReady(ctx)
	case ConfigReceived:
		s.renderer.Log(LevelSuccess, "Widget acknowledged the configuration")
		s.renderer.Log(LevelInfo, fmt.Sprintf("Widget processed %d steps", m.Steps))
	case StepComplete:
		s.handleStepComplete(m)
	case FlowComplete:
		s.handleFlowComplete(ctx, m)
	case Failure:
		s.handleFailure(ctx, m)
	case StepFailed:
		key, detail := m.StepKey, m.Message
		if key == "" {
			key = "unknown"
		}
		if detail == "" {
			detail = "no details"
		}
		s.renderer.Log(LevelError, fmt.Sprintf("Step failed: %s - %s", key, detail))
	case Resize:
		if m.Height > 0 {
			s.frame.SetHeight(m.Height)
			s.renderer.Log(LevelInfo, fmt.Sprintf("Frame resized: %dpx", m.Height))
		}
	default:
		s.renderer.Log(LevelInfo, "Unhandled event: "+string(msg.Type()))
	}
}

func (s *Session) handleReady(ctx context.Context) {
	s.renderer.Log(LevelSuccess, "Widget ready for configuration")
	switch {
	case s.state.configSent:
		s.renderer.Log(LevelWarning, "Configuration already sent, ignoring extra READY")
	case s.flow == nil:
		s.renderer.Log(LevelWarning, "READY received without an active configuration")
	default:
		s.renderer.Log(LevelInfo, "Sending configuration to the widget")
		s.sendConfiguration(ctx, *s.flow)
		s.state.configSent = true
	}
}

// sendConfiguration schedules the CONFIG post. Only the most recently
// scheduled send may deliver, and only while its flow is alive.
func (s *Session) sendConfiguration(ctx context.Context, fc FlowConfig) {
	id := NewConfigID(s.now())
	s.cancelPending()
	s.state.configID = id

	refs := make([]StepRef, len(fc.Steps))
	for i, k := range fc.Steps {
		refs[i] = StepRef{Key: k}
	}
	out := Outbound{
		Type: TypeConfig,
		Data: ConfigPayload{Steps: refs, ShortKey: fc.ShortKey, ConfigID: id},
	}
	s.renderer.Log(LevelInfo, fmt.Sprintf("Sending configuration: %d steps", len(refs)))

	flowCtx := s.flowCtx
	timer := s.sched.After(s.cfg.ConfigSendDelay, func() {
		if s.state.configID != id || flowCtx == nil || flowCtx.Err() != nil {
			s.metrics.IncrementConfigSend("stale")
			s.logger.DebugContext(ctx, "stale configuration send dropped", "config_id", id)
			return
		}
		if err := s.frame.PostMessage(out, s.cfg.WidgetOrigin); err != nil {
			s.metrics.IncrementConfigSend("failed")
			s.logger.ErrorContext(ctx, "failed to post configuration", "config_id", id, "error", err)
			s.renderer.Log(LevelError, "Failed to send configuration: "+err.Error())
			s.renderer.Notify(LevelError, "Could not reach the verification widget")
			return
		}
		s.metrics.IncrementConfigSend("delivered")
		if s.phase == PhaseConfigPending {
			s.phase = PhaseConfigSent
		}
		s.renderer.Log(LevelSuccess, fmt.Sprintf("Configuration sent: %d steps", len(refs)))
		s.renderer.Log(LevelInfo, "Short key: "+fc.ShortKey)
		s.renderer.Log(LevelInfo, "Steps: "+strings.Join(fc.Steps, " -> "))
		s.logger.InfoContext(ctx, "configuration delivered", "config_id", id, "steps", len(refs))
	})
	s.pending = append(s.pending, timer)
}

func (s *Session) handleStepComplete(m StepComplete) {
	s.renderer.Log(LevelSuccess, "Step completed: "+m.StepKey)
	s.state.results[m.StepKey] = m.Data
	if !slices.Contains(s.state.completedSteps, m.StepKey) {
		s.state.completedSteps = append(s.state.completedSteps, m.StepKey)
	}
	if !s.phase.Terminal() && s.phase != PhaseIdle {
		s.phase = PhaseStepProgress
	}

	s.renderer.Progress(s.progress())
	s.renderer.Results(maps.Clone(s.state.results))
	for _, line := range stepDetails(m.StepKey, m.Data) {
		s.renderer.Log(LevelInfo, line)
	}
}

func (s *Session) handleFlowComplete(ctx context.Context, m FlowComplete) {
	s.renderer.Log(LevelSuccess, "KYC flow completed")
	maps.Copy(s.state.results, m.Data)
	s.phase = PhaseFlowComplete
	s.setActive(false)

	s.renderer.Results(maps.Clone(s.state.results))
	p := s.progress()
	p.Percent = 100
	s.renderer.Progress(p)
	s.renderer.Notify(LevelSuccess, "KYC verification completed")
	s.logger.InfoContext(ctx, "kyc flow completed", "results", len(s.state.results))
}

func (s *Session) handleFailure(ctx context.Context, m Failure) {
	s.phase = PhaseError
	s.setActive(false)
	if m.Code == ErrorCancelled {
		s.renderer.Log(LevelWarning, "KYC cancelled by the user")
		s.renderer.Notify(LevelWarning, "KYC process cancelled")
		s.logger.WarnContext(ctx, "kyc flow cancelled by user")
		return
	}
	s.renderer.Log(LevelError, "Error: "+m.Describe())
	s.renderer.Notify(LevelError, "Error: "+m.Describe())
	s.logger.ErrorContext(ctx, "kyc flow failed", "error", m.Describe())
}

func (s *Session) progress() Progress {
	p := Progress{Completed: slices.Clone(s.state.completedSteps), Total: len(s.state.currentSteps)}
	if p.Total > 0 {
		p.Percent = float64(len(p.Completed)) / float64(p.Total) * 100
	}
	return p
}

func (s *Session) setActive(active bool) {
	s.state.active = active
	s.renderer.FlowActive(active)
}
