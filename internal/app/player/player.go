// Package player provides the per-guild playback state machine.
package player

import (
	"context"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/disgoorg/snowflake/v2"
	zlog "github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/osa030/lavabox/internal/app/event"
	"github.com/osa030/lavabox/internal/app/rest"
	"github.com/osa030/lavabox/internal/app/session"
	"github.com/osa030/lavabox/internal/domain/filters"
	"github.com/osa030/lavabox/internal/domain/remote"
	"github.com/osa030/lavabox/internal/domain/track"
)

// DefaultVoiceTimeout bounds the wait for the voice events after a join request.
const DefaultVoiceTimeout = 5 * time.Second

// Gateway changes the bot's voice state through the host's Discord gateway.
// A nil channelID leaves the voice channel.
type Gateway interface {
	UpdateVoiceState(ctx context.Context, guildID snowflake.ID, channelID *snowflake.ID, mute, deaf bool) error
}

// Deps holds the collaborators of a player.
type Deps struct {
	Gateway      Gateway
	Bus          *event.Bus
	Rest         *rest.Client
	VoiceTimeout time.Duration
}

// Player is the playback state of one guild, bound to one session.
type Player struct {
	guildID snowflake.ID
	session *session.Session
	deps    Deps

	ctx            context.Context
	cancel         context.CancelFunc
	subscriptionID string

	mu        sync.RWMutex
	channelID *snowflake.ID
	alive     bool
	paused    bool
	connected bool
	volume    int
	state     remote.State
	voice     remote.Voice
	filters   *filters.Filters
	queue     []track.Track
	autoplay  bool
	loop      bool
	position  int64
}

// New creates a player for a guild, attaches it to sess and subscribes it to
// the guild's node events.
func New(guildID snowflake.ID, sess *session.Session, deps Deps) *Player {
	if deps.VoiceTimeout <= 0 {
		deps.VoiceTimeout = DefaultVoiceTimeout
	}

	ctx, cancel := context.WithCancel(context.Background())
	p := &Player{
		guildID:  guildID,
		session:  sess,
		deps:     deps,
		ctx:      ctx,
		cancel:   cancel,
		paused:   true,
		volume:   -1,
		autoplay: true,
	}
	if deps.Bus != nil {
		p.subscriptionID = deps.Bus.Subscribe(p.handle, p.matchNodeEvent)
	}
	sess.AttachPlayer(p)
	return p
}

// GuildID returns the guild the player plays in.
func (p *Player) GuildID() snowflake.ID {
	return p.guildID
}

// Session returns the session the player talks through.
func (p *Player) Session() *session.Session {
	return p.session
}

// ChannelID returns the voice channel, or nil when the player never connected.
func (p *Player) ChannelID() *snowflake.ID {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.channelID == nil {
		return nil
	}
	id := *p.channelID
	return &id
}

// IsAlive reports whether the player joined voice and was not disconnected since.
func (p *Player) IsAlive() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.alive
}

// IsPaused reports whether playback is paused.
func (p *Player) IsPaused() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.paused
}

// Connected reports whether the node's voice link is up.
func (p *Player) Connected() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.connected
}

// Volume returns the node volume, or -1 before the first update.
func (p *Player) Volume() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.volume
}

// State returns the last state reported by the node.
func (p *Player) State() remote.State {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.state
}

// Voice returns the voice credentials known to the node.
func (p *Player) Voice() remote.Voice {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.voice
}

// Filters returns a copy of the node filters, or nil when none are set.
func (p *Player) Filters() *filters.Filters {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.filters.Clone()
}

// Queue returns a copy of the queue. The first track is the one playing.
func (p *Player) Queue() []track.Track {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]track.Track(nil), p.queue...)
}

// Autoplay reports whether the next track starts when one finishes.
func (p *Player) Autoplay() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.autoplay
}

// Loop reports whether the current track repeats.
func (p *Player) Loop() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.loop
}

// Position returns the last playback position reported by the node in milliseconds.
func (p *Player) Position() int64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.position
}

// Connect joins a voice channel and hands the voice credentials to the node.
func (p *Player) Connect(ctx context.Context, channelID snowflake.ID, mute, deaf bool) error {
	p.mu.Lock()
	p.channelID = &channelID
	p.mu.Unlock()

	if p.deps.Gateway == nil || p.deps.Bus == nil {
		return errors.Wrap(ErrConnect, "player has no voice gateway")
	}
	zlog.Debug().Msgf("connecting player: guild_id=%s channel_id=%s", p.guildID, channelID)

	// Both waiters must exist before the gateway can answer.
	stateWaiter := p.deps.Bus.Await(func(e event.Event) bool {
		u, ok := e.(event.VoiceStateUpdate)
		return ok && u.GuildID == p.guildID && u.ChannelID != nil && *u.ChannelID == channelID
	})
	serverWaiter := p.deps.Bus.Await(func(e event.Event) bool {
		u, ok := e.(event.VoiceServerUpdate)
		return ok && u.GuildID == p.guildID
	})
	defer stateWaiter.Cancel()
	defer serverWaiter.Cancel()

	if err := p.deps.Gateway.UpdateVoiceState(ctx, p.guildID, &channelID, mute, deaf); err != nil {
		return errors.Wrapf(ErrConnect, "voice state update failed: %v", err)
	}

	var (
		stateUpdate  event.VoiceStateUpdate
		serverUpdate event.VoiceServerUpdate
	)
	waitCtx, cancel := context.WithTimeout(ctx, p.deps.VoiceTimeout)
	defer cancel()
	g, gctx := errgroup.WithContext(waitCtx)
	g.Go(func() error {
		e, err := stateWaiter.Wait(gctx)
		if err != nil {
			return err
		}
		stateUpdate = e.(event.VoiceStateUpdate)
		return nil
	})
	g.Go(func() error {
		e, err := serverWaiter.Wait(gctx)
		if err != nil {
			return err
		}
		serverUpdate = e.(event.VoiceServerUpdate)
		return nil
	})
	if err := g.Wait(); err != nil {
		return errors.Wrapf(ErrConnect, "voice events for channel %s in guild %s not received: %v", channelID, p.guildID, err)
	}
	if serverUpdate.Endpoint == nil {
		return errors.Wrapf(ErrConnect, "voice server for channel %s in guild %s has no endpoint", channelID, p.guildID)
	}

	voice := remote.Voice{
		Token:     serverUpdate.Token,
		Endpoint:  *serverUpdate.Endpoint,
		SessionID: stateUpdate.SessionID,
	}
	p.mu.Lock()
	p.voice = voice
	p.alive = true
	p.mu.Unlock()

	return p.update(ctx, rest.PlayerUpdate{Voice: &voice}, false)
}

// Disconnect clears the queue, destroys the node player and leaves the voice
// channel. Every step runs even when an earlier one fails.
func (p *Player) Disconnect(ctx context.Context) error {
	zlog.Debug().Msgf("disconnecting player: guild_id=%s", p.guildID)

	errs := p.Clear(ctx)
	if p.deps.Rest != nil {
		if err := p.deps.Rest.DeletePlayer(ctx, p.guildID, rest.Using(p.session)); err != nil {
			errs = errors.CombineErrors(errs, err)
		}
	}

	p.mu.Lock()
	p.alive = false
	p.mu.Unlock()

	if p.deps.Gateway != nil {
		if err := p.deps.Gateway.UpdateVoiceState(ctx, p.guildID, nil, false, false); err != nil {
			errs = errors.CombineErrors(errs, errors.Wrap(err, "failed to leave voice channel"))
		}
	}
	return errs
}

// Transfer rebuilds the player on another session and returns the new player.
// The queue, autoplay and loop flags carry over; a connected player rejoins its
// channel and resumes where it was unless paused. The old player is closed. The
// returned player is never nil, also when an error is returned.
func (p *Player) Transfer(ctx context.Context, to *session.Session) (*Player, error) {
	p.mu.RLock()
	queue := append([]track.Track(nil), p.queue...)
	channelID := p.channelID
	connected := p.connected
	paused := p.paused
	position := p.position
	autoplay, loop := p.autoplay, p.loop
	p.mu.RUnlock()

	zlog.Debug().Msgf("transferring player: guild_id=%s from=%s to=%s", p.guildID, p.session.Name(), to.Name())

	next := New(p.guildID, to, p.deps)
	next.mu.Lock()
	next.queue = queue
	next.autoplay = autoplay
	next.loop = loop
	next.mu.Unlock()

	defer p.Close()

	if !connected || channelID == nil {
		return next, nil
	}

	// The old node is usually gone, so its cleanup may fail.
	if err := p.Disconnect(ctx); err != nil {
		zlog.Warn().Msgf("old player did not disconnect cleanly: guild_id=%s session=%s error=%v", p.guildID, p.session.Name(), err)
	}
	if err := next.Connect(ctx, *channelID, false, true); err != nil {
		return next, err
	}
	if paused || len(queue) == 0 {
		return next, nil
	}
	if err := next.Play(ctx, nil, 0); err != nil {
		return next, err
	}
	if position > 0 {
		if err := next.SetPosition(ctx, position); err != nil {
			return next, err
		}
	}
	return next, nil
}

// TransferTo implements session.Player. The new player is returned even when
// restoring playback failed.
func (p *Player) TransferTo(ctx context.Context, to *session.Session) (session.Player, error) {
	return p.Transfer(ctx, to)
}

// Close stops reacting to node events and detaches the player from its session.
func (p *Player) Close() {
	p.cancel()
	if p.deps.Bus != nil {
		p.deps.Bus.Unsubscribe(p.subscriptionID)
	}
	p.session.DetachPlayer(p.guildID)
}

// update sends a partial update through the player's session and adopts the
// node's answer.
func (p *Player) update(ctx context.Context, u rest.PlayerUpdate, noReplace bool) error {
	if p.deps.Rest == nil {
		return errors.New("player has no rest client")
	}
	zlog.Debug().Msgf("updating player: guild_id=%s session=%s", p.guildID, p.session.Name())

	np, err := p.deps.Rest.UpdatePlayer(ctx, p.guildID, u, noReplace, rest.Using(p.session))
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.volume = np.Volume
	p.paused = np.Paused
	p.state = np.State
	p.voice = np.Voice
	p.filters = np.Filters
	p.connected = np.State.Connected
	p.position = np.State.Position
	return nil
}

func (p *Player) matchNodeEvent(e event.Event) bool {
	switch e := e.(type) {
	case event.TrackEnd:
		return e.GuildID == p.guildID && e.Session == p.session.Name()
	case event.PlayerUpdate:
		return e.GuildID == p.guildID && e.Session == p.session.Name()
	}
	return false
}

func (p *Player) handle(e event.Event) {
	switch e := e.(type) {
	case event.TrackEnd:
		p.onTrackEnd(e)
	case event.PlayerUpdate:
		p.onPlayerUpdate(e)
	}
}

func (p *Player) onTrackEnd(e event.TrackEnd) {
	p.mu.Lock()
	if !p.autoplay || !e.Reason.MayStartNext() {
		p.mu.Unlock()
		return
	}
	if len(p.queue) == 0 {
		p.mu.Unlock()
		zlog.Debug().Msgf("autoplay skipped, queue is empty: guild_id=%s", p.guildID)
		return
	}
	if len(p.queue) == 1 && !p.loop {
		last := p.queue[0]
		p.queue = nil
		p.mu.Unlock()
		zlog.Debug().Msgf("queue finished: guild_id=%s", p.guildID)
		p.publish(event.QueueEmpty{GuildID: p.guildID, OldTrack: last})
		return
	}
	if !p.loop {
		p.queue = p.queue[1:]
	}
	next := p.queue[0]
	p.mu.Unlock()

	zlog.Debug().Msgf("autoplaying next track: guild_id=%s title=%s", p.guildID, next.Info.Title)
	if err := p.Play(p.ctx, nil, 0); err != nil {
		if p.ctx.Err() == nil {
			zlog.Error().Msgf("autoplay failed: guild_id=%s error=%v", p.guildID, err)
		}
		return
	}
	p.publish(event.QueueNext{GuildID: p.guildID, Track: next, OldTrack: e.Track})
}

func (p *Player) onPlayerUpdate(e event.PlayerUpdate) {
	p.mu.RLock()
	lost := p.connected && !e.State.Connected
	p.mu.RUnlock()

	if lost {
		zlog.Warn().Msgf("voice link lost, stopping player: guild_id=%s", p.guildID)
		if err := p.Stop(p.ctx); err != nil && p.ctx.Err() == nil {
			zlog.Error().Msgf("failed to stop player: guild_id=%s error=%v", p.guildID, err)
		}
	}

	p.mu.Lock()
	p.state = e.State
	p.connected = e.State.Connected
	p.position = e.State.Position
	p.mu.Unlock()
}

func (p *Player) publish(e event.Event) {
	if p.deps.Bus != nil {
		p.deps.Bus.Publish(e)
	}
}
