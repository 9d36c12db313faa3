package analysis

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// DefaultStreamPath is the backend route serving NDJSON analysis streams.
const DefaultStreamPath = "/api/ask/web/stream"

// ControllerConfig configures a Controller.
type ControllerConfig struct {
	BaseURL    string
	StreamPath string
	Transport  Transport
	Logger     *zap.Logger
	// Notify is called once for every session that ends in StatusFailed.
	Notify Notifier
}

// Controller owns at most one active Session. Starting a new query cancels
// the previous one and waits for it to release its transport.
type Controller struct {
	baseURL    string
	streamPath string
	transport  Transport
	logger     *zap.Logger
	notify     Notifier

	mu     sync.Mutex
	active *Session
}

func NewController(cfg ControllerConfig) (*Controller, error) {
	if cfg.Transport == nil {
		return nil, fmt.Errorf("analysis controller requires a transport")
	}
	if cfg.StreamPath == "" {
		cfg.StreamPath = DefaultStreamPath
	}
	if _, err := urlJoin(cfg.BaseURL, cfg.StreamPath); err != nil {
		return nil, fmt.Errorf("invalid analysis URL %q: %w", cfg.BaseURL, err)
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	return &Controller{
		baseURL:    cfg.BaseURL,
		streamPath: cfg.StreamPath,
		transport:  cfg.Transport,
		logger:     cfg.Logger,
		notify:     cfg.Notify,
	}, nil
}

// Start validates q, supersedes the active session and begins streaming.
// The returned session is already StatusStreaming. An invalid query leaves
// the active session untouched.
func (c *Controller) Start(ctx context.Context, q Query) (*Session, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	streamURL, err := StreamURL(c.baseURL, c.streamPath, q)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if prev := c.active; prev != nil {
		prev.Cancel()
		<-prev.Released()
		c.logger.Debug("superseded analysis session", zap.String("session", prev.ID()))
	}

	s := newSession(ctx, q, streamURL, c.transport, c.logger, c.notify)
	c.active = s
	s.start()

	c.logger.Info("analysis session started",
		zap.String("session", s.ID()),
		zap.String("model", q.Model),
		zap.Int("prompt_len", len(q.Prompt)),
	)
	return s, nil
}

// Active returns the current session, or nil.
func (c *Controller) Active() *Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

// Cancel cancels the active session, if any. The session stays Active so
// its final state can still be read.
func (c *Controller) Cancel() {
	if s := c.Active(); s != nil {
		s.Cancel()
	}
}

// Reset cancels the active session and forgets it, returning the
// controller to idle.
func (c *Controller) Reset() {
	c.mu.Lock()
	prev := c.active
	c.active = nil
	c.mu.Unlock()

	if prev != nil {
		prev.Cancel()
		<-prev.Released()
	}
}

// Status reports the active session's status, StatusIdle when there is none.
func (c *Controller) Status() Status {
	s := c.Active()
	if s == nil {
		return StatusIdle
	}
	return s.State().Status
}
