package handler

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/lavabox/internal/app/event"
	"github.com/osa030/lavabox/internal/app/player"
	"github.com/osa030/lavabox/internal/app/rest"
	"github.com/osa030/lavabox/internal/app/session"
	"github.com/osa030/lavabox/internal/domain/track"
	"github.com/osa030/lavabox/internal/testutil/fakenode"
	"github.com/osa030/lavabox/internal/testutil/nodetest"
)

func newSession(name string) *session.Session {
	return session.New(session.Config{Name: name}, session.Deps{Identity: nodetest.Identity{}})
}

// connectedSession adds a session to h and waits until its node says ready.
func connectedSession(t *testing.T, h *SessionHandler, node *fakenode.Node, name string, bus *event.Bus) *session.Session {
	t.Helper()
	s := session.New(nodetest.Config(node, name), session.Deps{Identity: nodetest.Identity{}, Publisher: bus})
	require.NoError(t, h.AddSession(s))
	t.Cleanup(func() { s.Stop(context.Background()) })
	if !h.IsAlive() {
		s.Start()
	}
	require.True(t, node.WaitConnected(2*time.Second))
	node.SendReady(name + "-id")
	require.Eventually(t, func() bool {
		_, err := s.SessionID()
		return err == nil
	}, 2*time.Second, 5*time.Millisecond)
	return s
}

func newPlayer(t *testing.T, h *SessionHandler, s *session.Session, guildID snowflake.ID, bus *event.Bus) *player.Player {
	t.Helper()
	p := player.New(guildID, s, player.Deps{Bus: bus, Rest: rest.New(h)})
	require.NoError(t, h.AddPlayer(p))
	return p
}

func TestFetchSession_NoSessions(t *testing.T) {
	h := New()

	_, err := h.FetchSession("missing")
	assert.ErrorIs(t, err, ErrSessionMissing)

	_, err = h.FetchSession("")
	assert.ErrorIs(t, err, ErrNoSessions)

	require.NoError(t, h.AddSession(newSession("idle")))
	_, err = h.FetchSession("")
	assert.ErrorIs(t, err, ErrNoSessions)

	s, err := h.FetchSession("idle")
	require.NoError(t, err)
	assert.Equal(t, "idle", s.Name())
}

func TestAddSession_Unique(t *testing.T) {
	h := New()
	require.NoError(t, h.AddSession(newSession("main")))

	err := h.AddSession(newSession("main"))
	assert.ErrorIs(t, err, ErrNotUnique)
	assert.Len(t, h.Sessions(), 1)
}

func TestAddSession_StartsWhenAlive(t *testing.T) {
	h := New()
	require.NoError(t, h.Start(context.Background()))
	assert.True(t, h.IsAlive())
	defer h.Stop(context.Background())

	node := fakenode.New(t)
	s := session.New(nodetest.Config(node, "late"), session.Deps{Identity: nodetest.Identity{}})
	require.NoError(t, h.AddSession(s))

	assert.True(t, node.WaitConnected(2*time.Second))
}

func TestStart_StartsSessions(t *testing.T) {
	node := fakenode.New(t)
	h := New()
	s := session.New(nodetest.Config(node, "main"), session.Deps{Identity: nodetest.Identity{}})
	require.NoError(t, h.AddSession(s))
	assert.Equal(t, 0, node.Connects())

	require.NoError(t, h.Start(context.Background()))
	assert.True(t, node.WaitConnected(2*time.Second))

	require.NoError(t, h.Stop(context.Background()))
	assert.False(t, h.IsAlive())
	assert.Equal(t, session.StatusNotConnected, s.Status())
}

func TestFetchSession_Current(t *testing.T) {
	bus := event.NewBus()
	defer bus.Close()
	first := fakenode.New(t)
	second := fakenode.New(t)
	h := New()

	idle := newSession("idle")
	require.NoError(t, h.AddSession(idle))
	a := connectedSession(t, h, first, "a", bus)
	b := connectedSession(t, h, second, "b", bus)

	current, err := h.FetchSession("")
	require.NoError(t, err)
	assert.Same(t, a, current)

	// The cached session is dropped as soon as it stops being connected.
	require.NoError(t, a.Stop(context.Background()))
	current, err = h.FetchSession("")
	require.NoError(t, err)
	assert.Same(t, b, current)

	require.NoError(t, h.DeleteSession(context.Background(), "b"))
	_, err = h.FetchSession("")
	assert.ErrorIs(t, err, ErrNoSessions)
	_, err = h.FetchSession("b")
	assert.ErrorIs(t, err, ErrSessionMissing)
	assert.Equal(t, session.StatusNotConnected, b.Status())
}

func TestDeleteSession_Missing(t *testing.T) {
	h := New()
	assert.ErrorIs(t, h.DeleteSession(context.Background(), "nope"), ErrSessionMissing)
}

func TestPlayers(t *testing.T) {
	bus := event.NewBus()
	defer bus.Close()
	h := New()
	s := newSession("main")
	require.NoError(t, h.AddSession(s))

	p := newPlayer(t, h, s, 1, bus)

	dup := player.New(1, s, player.Deps{Bus: bus})
	defer dup.Close()
	assert.ErrorIs(t, h.AddPlayer(dup), ErrNotUnique)

	got, err := h.FetchPlayer(1)
	require.NoError(t, err)
	assert.Same(t, p, got)

	_, err = h.FetchPlayer(2)
	assert.ErrorIs(t, err, ErrPlayerMissing)
	assert.ErrorIs(t, h.DeletePlayer(context.Background(), 2), ErrPlayerMissing)

	// AdoptPlayer swaps the entry instead of failing.
	replacement := player.New(1, s, player.Deps{Bus: bus})
	defer replacement.Close()
	require.NoError(t, h.AdoptPlayer(replacement))
	got, err = h.FetchPlayer(1)
	require.NoError(t, err)
	assert.Same(t, replacement, got)
	assert.Len(t, h.Players(), 1)
}

func TestDeletePlayer_Disconnects(t *testing.T) {
	bus := event.NewBus()
	defer bus.Close()
	node := fakenode.New(t)
	h := New()
	s := connectedSession(t, h, node, "main", bus)
	node.Respond(http.MethodPatch, "/v4/sessions/main-id/players/5", http.StatusOK,
		`{"guildId": "5", "track": null, "volume": 100, "paused": false, "state": {"time": 1, "position": 0, "connected": false, "ping": -1}, "voice": {"token": "", "endpoint": "", "sessionId": ""}, "filters": {}}`)
	node.Respond(http.MethodDelete, "/v4/sessions/main-id/players/5", http.StatusNoContent, "")

	p := newPlayer(t, h, s, 5, bus)
	p.Add(0, track.Track{Encoded: "enc", Info: track.Info{Identifier: "id"}})

	require.NoError(t, h.DeletePlayer(context.Background(), 5))
	assert.Empty(t, p.Queue())
	assert.Len(t, node.RequestsTo(http.MethodDelete, "/v4/sessions/main-id/players/5"), 1)
	assert.Empty(t, h.Players())
	assert.Empty(t, s.Players())
}

func TestStop_DropsPlayers(t *testing.T) {
	bus := event.NewBus()
	defer bus.Close()
	h := New()
	s := newSession("main")
	require.NoError(t, h.AddSession(s))
	newPlayer(t, h, s, 1, bus)
	newPlayer(t, h, s, 2, bus)
	require.NoError(t, h.Start(context.Background()))

	require.NoError(t, h.Stop(context.Background()))
	assert.Empty(t, h.Players())
	assert.Empty(t, s.Players())
	assert.Equal(t, 0, bus.SubscriberCount())
}

func TestSessionFailure_MovesPlayers(t *testing.T) {
	bus := event.NewBus()
	defer bus.Close()
	failing := fakenode.New(t)
	backup := fakenode.New(t)
	h := New()

	main := connectedSession(t, h, failing, "main", bus)
	spare := connectedSession(t, h, backup, "backup", bus)

	current, err := h.FetchSession("")
	require.NoError(t, err)
	require.Same(t, main, current)

	old := newPlayer(t, h, main, 7, bus)
	old.Add(9, track.Track{Encoded: "enc", Info: track.Info{Identifier: "id"}})

	failing.CloseWebsocket()

	require.Eventually(t, func() bool {
		p, err := h.FetchPlayer(7)
		return err == nil && p != old
	}, 2*time.Second, 5*time.Millisecond)

	moved, err := h.FetchPlayer(7)
	require.NoError(t, err)
	assert.Same(t, spare, moved.Session())
	require.Len(t, moved.Queue(), 1)
	assert.Equal(t, snowflake.ID(9), moved.Queue()[0].Requestor)
	assert.Equal(t, session.StatusFailure, main.Status())
	assert.Empty(t, main.Players())

	current, err = h.FetchSession("")
	require.NoError(t, err)
	assert.Same(t, spare, current)
}
