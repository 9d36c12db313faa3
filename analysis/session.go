package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// InitialMessage is shown until the backend reports its first step.
const InitialMessage = "Analyzing request..."

const readChunkSize = 4 * 1024

// Notifier receives the one user-facing failure of a session.
type Notifier func(err error)

// Session is one query's lifecycle, from Start to a terminal status.
type Session struct {
	id        string
	query     Query
	url       string
	transport Transport
	logger    *zap.Logger
	notify    Notifier

	ctx   context.Context
	abort context.CancelFunc

	// decoder is only touched by the read goroutine.
	decoder lineDecoder

	mu         sync.Mutex
	status     Status
	progress   ProgressEvent
	results    []ResultItem
	notebook   json.RawMessage
	err        error
	cancelled  bool
	body       io.ReadCloser
	startedAt  time.Time
	finishedAt time.Time

	// seenProgress is set once any backend progress has been accepted.
	seenProgress bool

	changed  chan struct{}
	done     chan struct{}
	released chan struct{}
}

func newSession(parent context.Context, q Query, streamURL string, t Transport, logger *zap.Logger, notify Notifier) *Session {
	ctx, abort := context.WithCancel(parent)
	id := uuid.NewString()
	return &Session{
		id:        id,
		query:     q,
		url:       streamURL,
		transport: t,
		logger:    logger.With(zap.String("session", id)),
		notify:    notify,
		ctx:       ctx,
		abort:     abort,
		status:    StatusStreaming,
		progress:  ProgressEvent{Progress: 0, Message: InitialMessage},
		startedAt: time.Now(),
		changed:   make(chan struct{}, 1),
		done:      make(chan struct{}),
		released:  make(chan struct{}),
	}
}

// ID is the unique identifier of the session.
func (s *Session) ID() string { return s.id }

// Query returns the submission this session was started with.
func (s *Session) Query() Query { return s.query }

// Changed delivers a signal after state changes. Signals coalesce; read
// State to see the latest values.
func (s *Session) Changed() <-chan struct{} { return s.changed }

// Done is closed on the terminal transition.
func (s *Session) Done() <-chan struct{} { return s.done }

// Released is closed once the read goroutine has let go of the transport.
func (s *Session) Released() <-chan struct{} { return s.released }

// State returns a snapshot of the session.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	results := make([]ResultItem, len(s.results))
	copy(results, s.results)

	return State{
		ID:         s.id,
		Query:      s.query,
		Status:     s.status,
		Progress:   s.progress,
		Results:    results,
		Notebook:   s.notebook,
		Err:        s.err,
		StartedAt:  s.startedAt,
		FinishedAt: s.finishedAt,
	}
}

// Wait blocks until the session is terminal or ctx ends, and returns the
// latest snapshot either way.
func (s *Session) Wait(ctx context.Context) State {
	select {
	case <-s.done:
	case <-ctx.Done():
	}
	return s.State()
}

// Cancel aborts the transport and marks the session cancelled. It is a
// no-op on a terminal session. No state change is observable after it
// returns.
func (s *Session) Cancel() {
	s.mu.Lock()
	if s.status.Terminal() {
		s.mu.Unlock()
		return
	}
	s.cancelled = true
	body := s.body
	s.finishLocked(StatusCancelled)
	s.mu.Unlock()

	if body != nil {
		body.Close()
	}
	s.signal()
	s.logger.Debug("analysis session cancelled")
}

func (s *Session) start() {
	go s.run()
}

func (s *Session) run() {
	defer close(s.released)

	body, err := s.transport.Open(s.ctx, s.url)
	if err != nil {
		s.fail(err)
		return
	}
	defer body.Close()

	s.mu.Lock()
	if s.status.Terminal() {
		s.mu.Unlock()
		return
	}
	s.body = body
	s.mu.Unlock()

	buf := make([]byte, readChunkSize)
	for {
		n, rerr := body.Read(buf)
		if n > 0 {
			if stop := s.onChunk(buf[:n]); stop {
				return
			}
		}
		if rerr == nil {
			continue
		}
		if errors.Is(rerr, io.EOF) {
			if stop := s.flush(); stop {
				return
			}
			s.fail(ErrIncompleteStream)
			return
		}
		s.fail(rerr)
		return
	}
}

// onChunk ingests one read and reports whether reading should stop.
func (s *Session) onChunk(chunk []byte) bool {
	frames, errs := s.decoder.Feed(chunk)
	for _, err := range errs {
		s.logger.Warn("dropping malformed stream line", zap.Error(err))
	}
	return s.apply(frames)
}

// flush handles a final line that was not newline-terminated.
func (s *Session) flush() bool {
	f, ok, err := s.decoder.Flush()
	if err != nil {
		s.logger.Warn("dropping malformed stream line", zap.Error(err))
	}
	if !ok {
		s.mu.Lock()
		terminal := s.status.Terminal()
		s.mu.Unlock()
		return terminal
	}
	return s.apply([]frame{f})
}

func (s *Session) apply(frames []frame) bool {
	s.mu.Lock()
	if s.status != StatusStreaming {
		s.mu.Unlock()
		return true
	}

	changed := false
	completed := false
	for _, f := range frames {
		c, terminal := s.applyFrameLocked(f)
		changed = changed || c
		if terminal {
			completed = true
			break
		}
	}
	if completed {
		s.finishLocked(StatusCompleted)
		changed = true
	}
	s.mu.Unlock()

	if changed {
		s.signal()
	}
	if completed {
		s.logger.Debug("analysis session completed")
	}
	return completed
}

func (s *Session) applyFrameLocked(f frame) (changed, terminal bool) {
	if f.Progress != nil {
		p := *f.Progress
		if !s.seenProgress || p > s.progress.Progress {
			s.progress = ProgressEvent{Progress: p, Message: f.Message}
			s.seenProgress = true
			changed = true
		} else {
			s.logger.Debug("ignoring stale progress",
				zap.Float64("progress", p),
				zap.Float64("current", s.progress.Progress))
		}
	}

	if f.Data != nil {
		for i, raw := range f.Data.Result {
			item, ok := s.decodeResult(i, raw)
			if !ok {
				continue
			}
			s.results = append(s.results, item)
			changed = true
		}
		if nb := f.Data.Notebook; len(nb) > 0 && string(nb) != "null" {
			s.notebook = append(json.RawMessage(nil), nb...)
			changed = true
		}
	}

	terminal = f.Progress != nil && *f.Progress == 1.0
	return changed, terminal
}

func (s *Session) decodeResult(index int, raw json.RawMessage) (ResultItem, bool) {
	var fr frameResult
	if err := json.Unmarshal(raw, &fr); err != nil {
		s.logger.Warn("dropping result entry", zap.Int("index", index), zap.Error(err))
		return ResultItem{}, false
	}
	if fr.Explanation == nil {
		s.logger.Warn("dropping result entry", zap.Int("index", index), zap.Error(errNoExplanation))
		return ResultItem{}, false
	}

	item := ResultItem{Explanation: *fr.Explanation}

	rows, err := decodeDataset(fr.Data)
	if err != nil {
		s.logger.Warn("dropping malformed dataset", zap.Int("index", index), zap.Error(err))
		return item, true
	}
	if len(rows) > 0 {
		item.Dataset = rows
		item.Columns = append([]string(nil), rows[0].Keys...)
		item.VisualizationType = fr.VisualizationType
	}
	return item, true
}

func (s *Session) fail(err error) {
	s.mu.Lock()
	if s.status != StatusStreaming || s.cancelled {
		s.mu.Unlock()
		s.logger.Debug("suppressing error of finished session", zap.Error(err))
		return
	}

	// Once the caller's context has ended, whatever error the transport
	// reports for the abort is an abandonment, not a failure.
	if s.ctx.Err() != nil {
		s.cancelled = true
		s.finishLocked(StatusCancelled)
		s.mu.Unlock()
		s.signal()
		return
	}

	terr := asTransportError(err, s.url)
	s.err = terr
	s.finishLocked(StatusFailed)
	s.mu.Unlock()

	s.signal()
	s.logger.Error("analysis session failed", zap.Error(terr))
	if s.notify != nil {
		s.notify(terr)
	}
}

func (s *Session) finishLocked(status Status) {
	s.status = status
	s.finishedAt = time.Now()
	s.abort()
	close(s.done)
}

func (s *Session) signal() {
	select {
	case s.changed <- struct{}{}:
	default:
	}
}

func asTransportError(err error, url string) *TransportError {
	var terr *TransportError
	if errors.As(err, &terr) {
		return terr
	}
	return &TransportError{URL: url, Err: err}
}
