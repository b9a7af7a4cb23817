package relay

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/soyYisus/jaak-kyc-demo/internal/embed"
	kycModels "github.com/soyYisus/jaak-kyc-demo/internal/kyc/models"
	"github.com/soyYisus/jaak-kyc-demo/internal/progress"
	"github.com/soyYisus/jaak-kyc-demo/internal/sessionconfig/models"
)

// client is one page connection. The calling goroutine writes to the
// socket, a reader goroutine turns commands into closures on the loop, and
// the loop goroutine owns the session.
type client struct {
	h       *Handler
	conn    *websocket.Conn
	logger  *slog.Logger
	out     *outbox
	loop    *embed.Loop
	board   *progress.Board
	session *embed.Session
	wg      sync.WaitGroup
}

// startPlan is a flow configuration resolved against the server config.
type startPlan struct {
	flow       embed.FlowConfig
	fromServer bool
}

func newClient(h *Handler, conn *websocket.Conn, logger *slog.Logger) *client {
	out := newOutbox(outboxSize)
	loop := embed.NewLoop(loopBuffer)
	board := progress.NewBoard(out, progress.WithClock(h.now))
	c := &client{h: h, conn: conn, logger: logger, out: out, loop: loop, board: board}
	c.session = embed.NewSession(h.cfg, newFrame(out), board, loop, logger,
		embed.WithClock(h.now),
		embed.WithMetrics(h.metrics),
	)
	return c
}

func (c *client) run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	go c.loop.Run(ctx)
	defer func() {
		c.out.close()
		cancel()
		_ = c.conn.Close()
		c.wg.Wait()
		<-c.loop.Done()
		c.session.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	readDone := make(chan struct{})
	c.wg.Add(1)
	go c.readMessages(ctx, readDone)

	for {
		select {
		case <-readDone:
			return
		case <-ctx.Done():
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
			return
		case ev := <-c.out.events:
			if !c.write(ev) {
				return
			}
		case <-ticker.C:
			if !c.sendPing() {
				return
			}
		}
	}
}

func (c *client) write(ev Event) bool {
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.conn.WriteJSON(ev); err != nil {
		c.logger.Warn("relay write failed", "kind", ev.Kind, "error", err)
		return false
	}
	return true
}

func (c *client) sendPing() bool {
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(websocket.PingMessage, nil) == nil
}

func (c *client) readMessages(ctx context.Context, done chan struct{}) {
	defer c.wg.Done()
	defer close(done)

	if !c.pushConfig(c.h.configs.Get(ctx)) {
		return
	}

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.WarnContext(ctx, "relay read failed", "error", err)
			}
			return
		}
		cmd, err := DecodeCommand(raw)
		if err != nil {
			c.logger.WarnContext(ctx, "invalid relay command", "error", err)
			continue
		}
		if !c.dispatch(ctx, cmd) {
			return
		}
	}
}

// pushConfig hands the stored configuration to the page, ordered with the
// session's own updates.
func (c *client) pushConfig(cfg models.SessionConfig) bool {
	return c.loop.Post(func() { _ = c.out.send(Event{Kind: EventConfig, Payload: cfg}) })
}

// dispatch reports false once the loop has stopped.
func (c *client) dispatch(ctx context.Context, cmd Command) bool {
	switch cmd.Kind {
	case CommandMessage:
		env := cmd.Envelope()
		return c.loop.Post(func() { c.session.Receive(ctx, env) })
	case CommandInit:
		c.wg.Add(1)
		go c.initialize(ctx, cmd.ShortKey)
		return true
	case CommandStart:
		plan := c.plan(ctx, cmd)
		return c.loop.Post(func() { c.start(ctx, plan) })
	case CommandRestart:
		ok := c.loop.Post(func() {
			c.board.Log(embed.LevelInfo, "Restarting the system")
			c.session.Restart(ctx)
		})
		if ok {
			c.wg.Add(1)
			go c.reload(ctx, cmd.ShortKey)
		}
		return ok
	case CommandExport:
		return c.loop.Post(func() {
			if _, err := c.board.Export(c.h.now()); err == nil {
				c.board.Log(embed.LevelSuccess, "Data exported to a JSON file")
			}
		})
	case CommandClearLogs:
		return c.loop.Post(c.board.ClearLogs)
	}
	return true
}

// plan resolves the flow to start. The page's short key wins over the stored
// one; stored steps win over the page selection.
func (c *client) plan(ctx context.Context, cmd Command) startPlan {
	server := c.h.configs.Get(ctx)
	shortKey := strings.TrimSpace(cmd.ShortKey)
	if shortKey == "" {
		shortKey = server.ShortKey
	}
	if keys := server.StepKeys(); len(keys) > 0 {
		return startPlan{flow: embed.FlowConfig{ShortKey: shortKey, Steps: keys}, fromServer: true}
	}
	return startPlan{flow: embed.FlowConfig{ShortKey: shortKey, Steps: cmd.Steps}}
}

func (c *client) start(ctx context.Context, p startPlan) {
	c.board.Log(embed.LevelInfo, "Preparing KYC flow")
	if p.fromServer {
		c.board.Log(embed.LevelSuccess, "Using server steps: "+strings.Join(p.flow.Steps, " -> "))
	} else {
		c.board.Log(embed.LevelWarning, "No steps stored on the server, using the page selection")
	}
	if err := c.session.InitKYC(ctx, p.flow); err != nil {
		c.logger.InfoContext(ctx, "kyc flow not started", "error", err)
	}
}

// initialize runs once per page load. A page that knows no short key, with
// none stored either, gets a fresh provider session.
func (c *client) initialize(ctx context.Context, pageShortKey string) {
	defer c.wg.Done()

	c.loop.Post(func() { c.board.Log(embed.LevelInfo, "Initializing KYC system") })
	if err := c.ensureShortKey(ctx, pageShortKey, c.h.configs.Get(ctx)); err != nil {
		if ctx.Err() != nil {
			return
		}
		c.loop.Post(func() {
			c.board.Log(embed.LevelError, "Initialization failed: "+err.Error())
			c.board.Notify(embed.LevelError, "Initialization failed: "+err.Error())
		})
		return
	}
	c.loop.Post(func() {
		c.board.Log(embed.LevelSuccess, "System initialized")
		c.board.Notify(embed.LevelInfo, "KYC system ready")
	})
}

// reload refreshes the page's view of the stored configuration after a
// restart, opening a new provider session when no short key is known.
func (c *client) reload(ctx context.Context, pageShortKey string) {
	defer c.wg.Done()

	c.loop.Post(func() { c.board.Log(embed.LevelInfo, "Reloading configuration from the server") })
	cfg := c.h.configs.Get(ctx)
	c.pushConfig(cfg)

	if err := c.ensureShortKey(ctx, pageShortKey, cfg); err != nil {
		if ctx.Err() != nil {
			return
		}
		c.loop.Post(func() {
			c.board.Log(embed.LevelError, "Restart failed: "+err.Error())
			c.board.Notify(embed.LevelError, "Restart failed: "+err.Error())
		})
		return
	}

	c.loop.Post(func() {
		c.board.Log(embed.LevelSuccess, "Restart complete, system ready")
		c.board.Notify(embed.LevelSuccess, "System restarted and configuration reloaded")
	})
}

// ensureShortKey creates a provider session when neither the page nor the
// stored config has a short key, then pushes the updated config.
func (c *client) ensureShortKey(ctx context.Context, pageShortKey string, cfg models.SessionConfig) error {
	if strings.TrimSpace(pageShortKey) != "" || cfg.ShortKey != "" {
		return nil
	}
	c.loop.Post(func() { c.board.Log(embed.LevelInfo, "No short key, requesting a new one") })
	session, err := c.h.sessions.CreateSession(ctx, kycModels.FlowRequest{})
	if err != nil {
		if ctx.Err() == nil {
			c.logger.ErrorContext(ctx, "could not create a kyc session", "error", err)
		}
		return err
	}
	if session != nil && session.ShortKey != nil {
		key := *session.ShortKey
		c.loop.Post(func() { c.board.Log(embed.LevelSuccess, "Short key obtained: "+key) })
	}
	c.pushConfig(c.h.configs.Get(ctx))
	return nil
}
