package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rook-computer/bgenerator/internal/state"
	"github.com/rook-computer/bgenerator/internal/texture"
	"github.com/rook-computer/bgenerator/internal/web"
)

type recordingServer struct {
	started, stopped bool
}

func (s *recordingServer) Start(ctx context.Context) error { s.started = true; return nil }
func (s *recordingServer) Stop() error                     { s.stopped = true; return nil }

func TestAppRunsUntilExit(t *testing.T) {
	regen, rend, surf := newTestRegenerator()
	srv := &recordingServer{}
	a := New(regen.Store, regen, surf, srv)
	regen.Surface = nil

	errCh := make(chan error, 1)
	go func() { errCh <- a.Start(context.Background()) }()

	require.Eventually(t, func() bool { return rend.count() == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, surf.count())

	want := errors.New("done")
	a.Exit(want)
	a.Exit(errors.New("ignored"))

	select {
	case err := <-errCh:
		assert.Equal(t, want, err)
	case <-time.After(time.Second):
		t.Fatal("app did not stop")
	}
	assert.True(t, srv.started)
	assert.True(t, srv.stopped)
}

func TestAppStopsOnContext(t *testing.T) {
	regen, _, _ := newTestRegenerator()
	a := New(regen.Store, regen, nil, &web.NoopServer{})
	ctx, cancel := context.WithCancel(context.Background())

	errCh := make(chan error, 1)
	go func() { errCh <- a.Start(ctx) }()
	cancel()

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("app did not stop")
	}
}

func TestBootstrap(t *testing.T) {
	store, catalog, err := Bootstrap("warm", nil)
	require.NoError(t, err)
	require.NotNil(t, catalog)
	snap := store.Snapshot()
	assert.Equal(t, "warm", snap.PresetID)
	assert.Equal(t, state.BOOTING, snap.Phase)

	store, _, err = Bootstrap("neon", nil)
	require.NoError(t, err)
	assert.Equal(t, texture.DefaultConfig(), store.Snapshot().Config)
	assert.Empty(t, store.Snapshot().PresetID)
}
