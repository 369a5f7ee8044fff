package session

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/lavabox/internal/domain/payload"
	"github.com/osa030/lavabox/internal/domain/remote"
	"github.com/osa030/lavabox/internal/testutil/fakenode"
)

func TestRequest_DecodesJSON(t *testing.T) {
	node := fakenode.New(t)
	node.Respond(http.MethodGet, "/v4/stats", http.StatusOK,
		`{"players": 3, "playingPlayers": 1, "uptime": 1000, "memory": {"free": 1}, "cpu": {"cores": 2}}`)
	s := newTestSession(node, "main", Deps{})

	stats, err := Request[remote.Statistics](context.Background(), s, http.MethodGet, "/stats")
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Players)
	assert.Equal(t, 2, stats.CPU.Cores)

	reqs := node.RequestsTo(http.MethodGet, "/v4/stats")
	require.Len(t, reqs, 1)
	assert.Equal(t, fakenode.Password, reqs[0].Header.Get("Authorization"))
}

func TestRequest_Primitives(t *testing.T) {
	node := fakenode.New(t)
	node.Respond(http.MethodGet, "/version", http.StatusOK, "4.0.7")
	node.Respond(http.MethodGet, "/v4/count", http.StatusOK, " 12 \n")
	node.Respond(http.MethodGet, "/v4/flag", http.StatusOK, "true")
	node.Respond(http.MethodGet, "/v4/load", http.StatusOK, "0.75")
	s := newTestSession(node, "main", Deps{})
	ctx := context.Background()

	version, err := Request[string](ctx, s, http.MethodGet, "/version", WithoutVersion())
	require.NoError(t, err)
	assert.Equal(t, "4.0.7", version)

	count, err := Request[int](ctx, s, http.MethodGet, "/count")
	require.NoError(t, err)
	assert.Equal(t, 12, count)

	flag, err := Request[bool](ctx, s, http.MethodGet, "/flag")
	require.NoError(t, err)
	assert.True(t, flag)

	load, err := Request[float64](ctx, s, http.MethodGet, "/load")
	require.NoError(t, err)
	assert.Equal(t, 0.75, load)

	_, err = Request[int](ctx, s, http.MethodGet, "/flag")
	var buildErr *payload.BuildError
	assert.ErrorAs(t, err, &buildErr)
}

func TestRequest_NoContent(t *testing.T) {
	node := fakenode.New(t)
	node.Respond(http.MethodDelete, "/v4/sessions/abc/players/1", http.StatusNoContent, "")
	s := newTestSession(node, "main", Deps{})
	ctx := context.Background()

	_, err := Request[remote.Player](ctx, s, http.MethodDelete, "/sessions/abc/players/1")
	assert.ErrorIs(t, err, ErrRestEmpty)

	assert.NoError(t, s.Do(ctx, http.MethodDelete, "/sessions/abc/players/1"))
}

func TestRequest_Errors(t *testing.T) {
	node := fakenode.New(t)
	node.Respond(http.MethodGet, "/v4/broken", http.StatusInternalServerError, "")
	node.Respond(http.MethodGet, "/v4/garbled", http.StatusBadGateway, "<html>bad gateway</html>")
	node.Respond(http.MethodGet, "/v4/invalid", http.StatusOK, `{"players": "many"}`)
	node.Respond(http.MethodPatch, "/v4/sessions/abc", http.StatusBadRequest,
		`{"timestamp": 1667857581613, "status": 400, "error": "Bad Request", "trace": "...", "message": "timeout must be positive", "path": "/v4/sessions/abc"}`)
	s := newTestSession(node, "main", Deps{})
	ctx := context.Background()

	t.Run("status without body", func(t *testing.T) {
		err := s.Do(ctx, http.MethodGet, "/broken")
		var statusErr *RestStatusError
		require.ErrorAs(t, err, &statusErr)
		assert.Equal(t, http.StatusInternalServerError, statusErr.Status)
		assert.Equal(t, "Internal Server Error", statusErr.Reason)
	})

	t.Run("status with unreadable body", func(t *testing.T) {
		err := s.Do(ctx, http.MethodGet, "/garbled")
		var statusErr *RestStatusError
		require.ErrorAs(t, err, &statusErr)
		assert.Equal(t, http.StatusBadGateway, statusErr.Status)
	})

	t.Run("structured error", func(t *testing.T) {
		_, err := Request[remote.SessionInfo](ctx, s, http.MethodPatch, "/sessions/abc", WithJSON(remote.SessionInfo{Timeout: -1}))
		var reqErr *RestRequestError
		require.ErrorAs(t, err, &reqErr)
		assert.Equal(t, 400, reqErr.Status)
		assert.Equal(t, "Bad Request", reqErr.ErrorText)
		assert.Equal(t, "timeout must be positive", reqErr.Message)
		assert.Equal(t, "/v4/sessions/abc", reqErr.Path)
		assert.Equal(t, int64(1667857581613), reqErr.Timestamp.UnixMilli())
		require.NotNil(t, reqErr.Trace)
	})

	t.Run("unknown route", func(t *testing.T) {
		err := s.Do(ctx, http.MethodGet, "/missing")
		var reqErr *RestRequestError
		require.ErrorAs(t, err, &reqErr)
		assert.Equal(t, http.StatusNotFound, reqErr.Status)
	})

	t.Run("undecodable body", func(t *testing.T) {
		_, err := Request[remote.Statistics](ctx, s, http.MethodGet, "/invalid")
		var buildErr *payload.BuildError
		assert.ErrorAs(t, err, &buildErr)
	})
}

func TestRequest_Options(t *testing.T) {
	node := fakenode.New(t)
	node.Respond(http.MethodPatch, "/v4/sessions/abc", http.StatusOK, `{"resuming": true, "timeout": 60}`)
	s := newTestSession(node, "main", Deps{})

	info, err := Request[remote.SessionInfo](context.Background(), s, http.MethodPatch, "/sessions/abc",
		WithJSON(remote.SessionInfo{Resuming: true, Timeout: 60}),
		WithQuery("noReplace", "true"),
		WithHeader("X-Trace-Id", "abc"),
	)
	require.NoError(t, err)
	assert.Equal(t, remote.SessionInfo{Resuming: true, Timeout: 60}, info)

	reqs := node.RequestsTo(http.MethodPatch, "/v4/sessions/abc")
	require.Len(t, reqs, 1)
	assert.Equal(t, "true", reqs[0].Query.Get("noReplace"))
	assert.Equal(t, "abc", reqs[0].Header.Get("X-Trace-Id"))
	assert.Equal(t, "application/json", reqs[0].Header.Get("Content-Type"))

	var body map[string]any
	require.NoError(t, json.Unmarshal(reqs[0].Body, &body))
	assert.Equal(t, map[string]any{"resuming": true, "timeout": float64(60)}, body)
}

func TestRequest_WrongPassword(t *testing.T) {
	node := fakenode.New(t)
	s := New(Config{Name: "main", Host: node.Host(), Port: node.Port(), Password: "wrong"}, Deps{})

	err := s.Do(context.Background(), http.MethodGet, "/info")
	var statusErr *RestStatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusUnauthorized, statusErr.Status)
}

func TestRequest_RateLimited(t *testing.T) {
	node := fakenode.New(t)
	node.Respond(http.MethodGet, "/v4/flag", http.StatusOK, "true")
	s := New(Config{
		Name:              "limited",
		Host:              node.Host(),
		Port:              node.Port(),
		Password:          fakenode.Password,
		RequestsPerSecond: 100,
	}, Deps{})
	require.NotNil(t, s.limiter)

	for range 3 {
		ok, err := Request[bool](context.Background(), s, http.MethodGet, "/flag")
		require.NoError(t, err)
		assert.True(t, ok)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Error(t, s.Do(ctx, http.MethodGet, "/flag"))
}
