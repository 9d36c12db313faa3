package analysis

import (
	"context"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewControllerValidation(t *testing.T) {
	tests := []struct {
		name    string
		cfg     ControllerConfig
		wantErr bool
	}{
		{name: "no transport", cfg: ControllerConfig{BaseURL: "http://x"}, wantErr: true},
		{name: "relative base", cfg: ControllerConfig{BaseURL: "elisa.local", Transport: blockingTransport{}}, wantErr: true},
		{name: "empty base", cfg: ControllerConfig{Transport: blockingTransport{}}, wantErr: true},
		{name: "ok", cfg: ControllerConfig{BaseURL: "https://elisa.itb.ac.id/", Transport: blockingTransport{}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := NewController(tt.cfg)
			if tt.wantErr {
				assert.Error(t, err)
				assert.Nil(t, c)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, DefaultStreamPath, c.streamPath)
		})
	}
}

func TestStreamURL(t *testing.T) {
	got, err := StreamURL("https://elisa.itb.ac.id/backend/", "/api/ask/web/stream", Query{Prompt: "top 5 gedung & biaya?", Model: ModelGemma})
	require.NoError(t, err)

	u, err := url.Parse(got)
	require.NoError(t, err)
	assert.Equal(t, "elisa.itb.ac.id", u.Host)
	assert.Equal(t, "/backend/api/ask/web/stream", u.Path)
	assert.Equal(t, "top 5 gedung & biaya?", u.Query().Get("prompt"))
	assert.Equal(t, ModelGemma, u.Query().Get("model"))
	assert.NotContains(t, u.RawQuery, " ")
}

func TestControllerSupersedesActiveSession(t *testing.T) {
	tr := newPipeTransport()
	var nc notifyCounter
	c := newTestController(t, tr, nil, nc.notify)

	first, err := c.Start(context.Background(), Query{Prompt: "first"})
	require.NoError(t, err)
	w1 := tr.next(t)
	send(t, w1, `{"progress":0.2,"message":"first step"}`)
	require.Eventually(t, func() bool {
		return first.State().Progress.Progress == 0.2
	}, waitFor, tick)

	second, err := c.Start(context.Background(), Query{Prompt: "second"})
	require.NoError(t, err)
	w2 := tr.next(t)

	// The first transport is released before the second session exists.
	select {
	case <-first.Released():
	default:
		t.Fatal("previous session still holds its transport")
	}
	assert.Equal(t, StatusCancelled, first.State().Status)
	assert.Same(t, second, c.Active())
	assert.Equal(t, 2, tr.opened())

	// Late chunks from the superseded stream go nowhere.
	_, err = w1.Write([]byte(`{"progress":1.0,"data":{"result":[{"explanation":"stale"}]}}` + "\n"))
	assert.Error(t, err)
	assert.Equal(t, 0.2, first.State().Progress.Progress)
	assert.Empty(t, first.State().Results)

	send(t, w2, `{"progress":1.0,"data":{"result":[{"explanation":"fresh"}]}}`)
	st := waitDone(t, second)
	require.Equal(t, StatusCompleted, st.Status)
	require.Len(t, st.Results, 1)
	assert.Equal(t, "fresh", st.Results[0].Explanation)
	assert.Equal(t, "second", st.Query.Prompt)

	assert.Zero(t, nc.n.Load())
}

func TestControllerInvalidStartKeepsActive(t *testing.T) {
	tr := newPipeTransport()
	c := newTestController(t, tr, nil, nil)

	s, err := c.Start(context.Background(), Query{Prompt: "running"})
	require.NoError(t, err)
	tr.next(t)

	_, err = c.Start(context.Background(), Query{Prompt: "  "})
	require.ErrorIs(t, err, ErrEmptyPrompt)

	assert.Same(t, s, c.Active())
	assert.Equal(t, StatusStreaming, s.State().Status)
	s.Cancel()
}

func TestControllerReset(t *testing.T) {
	tr := newPipeTransport()
	c := newTestController(t, tr, nil, nil)
	assert.Equal(t, StatusIdle, c.Status())

	s, err := c.Start(context.Background(), Query{Prompt: "q"})
	require.NoError(t, err)
	tr.next(t)
	assert.Equal(t, StatusStreaming, c.Status())

	c.Reset()
	assert.Nil(t, c.Active())
	assert.Equal(t, StatusIdle, c.Status())
	assert.Equal(t, StatusCancelled, s.State().Status)

	// Reset on an idle controller is harmless.
	c.Reset()
}

func TestControllerCancelKeepsFinalState(t *testing.T) {
	tr := newPipeTransport()
	c := newTestController(t, tr, nil, nil)

	s, err := c.Start(context.Background(), Query{Prompt: "q"})
	require.NoError(t, err)
	tr.next(t)

	c.Cancel()
	c.Cancel()
	assert.Same(t, s, c.Active())
	assert.Equal(t, StatusCancelled, c.Status())

	select {
	case <-s.Released():
	case <-time.After(waitFor):
		t.Fatal("cancelled session kept its transport")
	}
}
