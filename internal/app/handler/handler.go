// Package handler provides the registry of the sessions and players of a client.
package handler

import (
	"context"
	"slices"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/disgoorg/snowflake/v2"
	zlog "github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/osa030/lavabox/internal/app/player"
	"github.com/osa030/lavabox/internal/app/session"
)

var (
	ErrNoSessions     = errors.New("no sessions available")
	ErrSessionMissing = errors.New("session missing")
	ErrPlayerMissing  = errors.New("player missing")
	ErrNotUnique      = errors.New("not unique")
)

// SessionHandler owns the sessions and players of a client and picks the
// session new work goes to.
type SessionHandler struct {
	mu       sync.RWMutex
	alive    bool
	sessions map[string]*session.Session
	order    []string
	players  map[snowflake.ID]*player.Player
	current  *session.Session
}

// New creates an empty handler.
func New() *SessionHandler {
	return &SessionHandler{
		sessions: make(map[string]*session.Session),
		players:  make(map[snowflake.ID]*player.Player),
	}
}

// IsAlive reports whether Start was called without a later Stop.
func (h *SessionHandler) IsAlive() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.alive
}

// Sessions returns the sessions in the order they were added.
func (h *SessionHandler) Sessions() []*session.Session {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]*session.Session, 0, len(h.order))
	for _, name := range h.order {
		out = append(out, h.sessions[name])
	}
	return out
}

// Players returns the registered players.
func (h *SessionHandler) Players() []*player.Player {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]*player.Player, 0, len(h.players))
	for _, p := range h.players {
		out = append(out, p)
	}
	return out
}

// Start marks the handler alive and starts every session that is not connected.
func (h *SessionHandler) Start(ctx context.Context) error {
	h.mu.Lock()
	h.alive = true
	h.mu.Unlock()

	sessions := h.Sessions()
	for _, s := range sessions {
		if err := ctx.Err(); err != nil {
			return err
		}
		if s.Status() == session.StatusNotConnected {
			s.Start()
		}
	}
	zlog.Info().Msgf("session handler started: sessions=%d", len(sessions))
	return nil
}

// Stop stops every session, drops every player and marks the handler dead.
func (h *SessionHandler) Stop(ctx context.Context) error {
	h.mu.Lock()
	sessions := make([]*session.Session, 0, len(h.order))
	for _, name := range h.order {
		sessions = append(sessions, h.sessions[name])
	}
	players := h.players
	h.players = make(map[snowflake.ID]*player.Player)
	h.current = nil
	h.alive = false
	h.mu.Unlock()

	for _, p := range players {
		p.Close()
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, s := range sessions {
		g.Go(func() error {
			return s.Stop(gctx)
		})
	}
	if err := g.Wait(); err != nil {
		return errors.Wrap(err, "failed to stop sessions")
	}
	zlog.Info().Msgf("session handler stopped: sessions=%d players=%d", len(sessions), len(players))
	return nil
}

// AddSession registers a session. The session is started right away when the
// handler is alive.
func (h *SessionHandler) AddSession(s *session.Session) error {
	h.mu.Lock()
	if _, ok := h.sessions[s.Name()]; ok {
		h.mu.Unlock()
		return errors.Wrapf(ErrNotUnique, "session name %q", s.Name())
	}
	h.sessions[s.Name()] = s
	h.order = append(h.order, s.Name())
	alive := h.alive
	h.mu.Unlock()

	s.SetTarget(h)
	if alive {
		s.Start()
	}
	zlog.Debug().Msgf("session added: name=%s started=%v", s.Name(), alive)
	return nil
}

// FetchSession returns the named session. An empty name returns the current
// session: the last one handed out while it stays connected, else the first
// connected session.
func (h *SessionHandler) FetchSession(name string) (*session.Session, error) {
	if name != "" {
		h.mu.RLock()
		defer h.mu.RUnlock()
		s, ok := h.sessions[name]
		if !ok {
			return nil, errors.Wrapf(ErrSessionMissing, "session %q", name)
		}
		return s, nil
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.current != nil && h.current.Status() == session.StatusConnected {
		return h.current, nil
	}
	h.current = nil
	for _, n := range h.order {
		if s := h.sessions[n]; s.Status() == session.StatusConnected {
			h.current = s
			return s, nil
		}
	}
	return nil, ErrNoSessions
}

// DeleteSession removes and stops a session. Its players move to another
// session when one is connected.
func (h *SessionHandler) DeleteSession(ctx context.Context, name string) error {
	h.mu.Lock()
	s, ok := h.sessions[name]
	if !ok {
		h.mu.Unlock()
		return errors.Wrapf(ErrSessionMissing, "session %q", name)
	}
	delete(h.sessions, name)
	h.order = slices.DeleteFunc(h.order, func(n string) bool { return n == name })
	if h.current == s {
		h.current = nil
	}
	h.mu.Unlock()

	if len(s.Players()) > 0 {
		if err := s.Transfer(ctx, h); err != nil {
			zlog.Warn().Msgf("players of deleted session not moved: name=%s error=%v", name, err)
		}
		return nil
	}
	return s.Stop(ctx)
}

// AddPlayer registers a player. Only one player may exist per guild.
func (h *SessionHandler) AddPlayer(p *player.Player) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.players[p.GuildID()]; ok {
		return errors.Wrapf(ErrNotUnique, "player for guild %s", p.GuildID())
	}
	h.players[p.GuildID()] = p
	return nil
}

// FetchPlayer returns the player of a guild.
func (h *SessionHandler) FetchPlayer(guildID snowflake.ID) (*player.Player, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	p, ok := h.players[guildID]
	if !ok {
		return nil, errors.Wrapf(ErrPlayerMissing, "guild %s", guildID)
	}
	return p, nil
}

// DeletePlayer removes the player of a guild after disconnecting it.
func (h *SessionHandler) DeletePlayer(ctx context.Context, guildID snowflake.ID) error {
	h.mu.Lock()
	p, ok := h.players[guildID]
	if !ok {
		h.mu.Unlock()
		return errors.Wrapf(ErrPlayerMissing, "guild %s", guildID)
	}
	delete(h.players, guildID)
	h.mu.Unlock()

	defer p.Close()
	return p.Disconnect(ctx)
}

// AdoptPlayer replaces the registered player of a guild with one moved from
// another session.
func (h *SessionHandler) AdoptPlayer(p session.Player) error {
	moved, ok := p.(*player.Player)
	if !ok {
		return errors.Newf("cannot adopt player of type %T", p)
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.players[moved.GuildID()] = moved
	return nil
}
