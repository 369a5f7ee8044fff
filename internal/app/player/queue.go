package player

import (
	"context"
	"math/rand/v2"
	"slices"
	"strconv"

	"github.com/cockroachdb/errors"
	"github.com/disgoorg/snowflake/v2"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/lavabox/internal/app/rest"
	"github.com/osa030/lavabox/internal/domain/filters"
	"github.com/osa030/lavabox/internal/domain/track"
)

const (
	MinVolume = 0
	MaxVolume = 1000
)

// Play starts the first track of the queue, replacing whatever the node plays.
// A non-nil t is pushed to the front of the queue first and tagged with
// requestor unless requestor is 0.
func (p *Player) Play(ctx context.Context, t *track.Track, requestor snowflake.ID) error {
	p.mu.Lock()
	if p.channelID == nil {
		p.mu.Unlock()
		return errors.Wrap(ErrConnect, "player is not in a voice channel")
	}
	if t == nil && len(p.queue) == 0 {
		p.mu.Unlock()
		return ErrQueueEmpty
	}
	if t != nil {
		front := *t
		if requestor != 0 {
			front = front.WithRequestor(requestor)
		}
		p.queue = slices.Insert(p.queue, 0, front)
	}
	current := p.queue[0]
	p.paused = false
	p.mu.Unlock()

	zlog.Debug().Msgf("playing track: guild_id=%s title=%s", p.guildID, current.Info.Title)
	paused := false
	return p.update(ctx, rest.PlayerUpdate{Paused: &paused}.WithTrack(&current), false)
}

// Add appends tracks to the queue, tagged with requestor (0 for none). It does
// not start playback.
func (p *Player) Add(requestor snowflake.ID, tracks ...track.Track) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, t := range tracks {
		p.queue = append(p.queue, t.WithRequestor(requestor))
	}
	zlog.Debug().Msgf("tracks added: guild_id=%s count=%d", p.guildID, len(tracks))
}

// AddPlaylist appends the tracks of a playlist to the queue.
func (p *Player) AddPlaylist(requestor snowflake.ID, playlist track.Playlist) {
	p.Add(requestor, playlist.Tracks...)
}

// Pause sets the paused state. A nil value toggles it.
func (p *Player) Pause(ctx context.Context, value *bool) error {
	p.mu.Lock()
	if value != nil {
		p.paused = *value
	} else {
		p.paused = !p.paused
	}
	paused := p.paused
	p.mu.Unlock()

	zlog.Debug().Msgf("setting paused: guild_id=%s paused=%v", p.guildID, paused)
	return p.update(ctx, rest.PlayerUpdate{Paused: &paused}, true)
}

// Stop pauses and unloads the current track on the node. The queue is kept.
func (p *Player) Stop(ctx context.Context) error {
	p.mu.Lock()
	p.paused = true
	p.mu.Unlock()

	zlog.Debug().Msgf("stopping player: guild_id=%s", p.guildID)
	paused := true
	return p.update(ctx, rest.PlayerUpdate{Paused: &paused}.WithTrack(nil), false)
}

// Shuffle reorders every track but the one playing. It needs more than two tracks.
func (p *Player) Shuffle() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.queue) <= 2 {
		return &QueueError{Reason: "queue must have more than 2 tracks to shuffle"}
	}
	tail := p.queue[1:]
	rand.Shuffle(len(tail), func(i, j int) {
		tail[i], tail[j] = tail[j], tail[i]
	})
	zlog.Debug().Msgf("queue shuffled: guild_id=%s", p.guildID)
	return nil
}

// Skip drops amount tracks from the front of the queue and plays the new first
// track. Skipping the whole queue unloads the node track.
func (p *Player) Skip(ctx context.Context, amount int) error {
	if amount <= 0 {
		return errors.Wrapf(ErrInvalidValue, "skip amount %d must be positive", amount)
	}

	p.mu.Lock()
	if len(p.queue) == 0 {
		p.mu.Unlock()
		return ErrQueueEmpty
	}
	var next *track.Track
	if amount >= len(p.queue) {
		p.queue = nil
	} else {
		p.queue = slices.Delete(p.queue, 0, amount)
		t := p.queue[0]
		next = &t
	}
	p.mu.Unlock()

	zlog.Debug().Msgf("tracks skipped: guild_id=%s amount=%d", p.guildID, amount)
	return p.update(ctx, rest.PlayerUpdate{}.WithTrack(next), false)
}

// Index returns the position of the first queued track equal to t.
func (p *Player) Index(t track.Track) (int, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.indexLocked(t)
}

func (p *Player) indexLocked(t track.Track) (int, error) {
	i := slices.IndexFunc(p.queue, t.Equal)
	if i < 0 {
		return -1, &QueueError{Reason: "track not found: " + t.Info.Title}
	}
	return i, nil
}

// Remove drops the first queued track equal to t. Playback is not affected.
func (p *Player) Remove(t track.Track) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.queue) == 0 {
		return ErrQueueEmpty
	}
	i, err := p.indexLocked(t)
	if err != nil {
		return err
	}
	p.queue = slices.Delete(p.queue, i, i+1)
	return nil
}

// RemoveAt drops the queued track at index. Playback is not affected.
func (p *Player) RemoveAt(index int) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.queue) == 0 {
		return ErrQueueEmpty
	}
	if index < 0 || index >= len(p.queue) {
		return &QueueError{Reason: "no track at position " + strconv.Itoa(index)}
	}
	p.queue = slices.Delete(p.queue, index, index+1)
	return nil
}

// Clear empties the queue and unloads the node track.
func (p *Player) Clear(ctx context.Context) error {
	p.mu.Lock()
	p.queue = nil
	p.mu.Unlock()

	zlog.Debug().Msgf("queue cleared: guild_id=%s", p.guildID)
	return p.update(ctx, rest.PlayerUpdate{}.WithTrack(nil), false)
}

// SetVolume sets the node volume, from 0 to 1000.
func (p *Player) SetVolume(ctx context.Context, volume int) error {
	if volume < MinVolume || volume > MaxVolume {
		return errors.Wrapf(ErrInvalidValue, "volume %d must be in %d..%d", volume, MinVolume, MaxVolume)
	}
	zlog.Debug().Msgf("setting volume: guild_id=%s volume=%d", p.guildID, volume)
	return p.update(ctx, rest.PlayerUpdate{Volume: &volume}, false)
}

// SetPosition seeks the current track to position milliseconds.
func (p *Player) SetPosition(ctx context.Context, position int64) error {
	if position <= 0 {
		return errors.Wrapf(ErrInvalidValue, "position %d must be positive", position)
	}

	p.mu.RLock()
	if len(p.queue) == 0 {
		p.mu.RUnlock()
		return ErrQueueEmpty
	}
	length := p.queue[0].Info.Length
	p.mu.RUnlock()

	if position > length {
		return errors.Wrapf(ErrInvalidValue, "position %d is past the track length %d", position, length)
	}
	zlog.Debug().Msgf("setting position: guild_id=%s position=%d", p.guildID, position)
	return p.update(ctx, rest.PlayerUpdate{Position: &position}, false)
}

// SetFilters replaces the node filters. Nil clears them.
func (p *Player) SetFilters(ctx context.Context, f *filters.Filters) error {
	zlog.Debug().Msgf("setting filters: guild_id=%s", p.guildID)
	return p.update(ctx, rest.PlayerUpdate{}.WithFilters(f.Clone()), true)
}

// SetAutoplay sets autoplay and returns the new value. A nil value toggles it.
func (p *Player) SetAutoplay(value *bool) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.autoplay = toggle(p.autoplay, value)
	return p.autoplay
}

// SetLoop sets looping and returns the new value. A nil value toggles it.
func (p *Player) SetLoop(value *bool) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.loop = toggle(p.loop, value)
	return p.loop
}

func toggle(current bool, value *bool) bool {
	if value != nil {
		return *value
	}
	return !current
}
