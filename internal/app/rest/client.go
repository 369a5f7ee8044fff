// Package rest provides typed calls to the Lavalink REST API.
package rest

import (
	"context"
	"fmt"
	"net/http"

	"github.com/cockroachdb/errors"
	"github.com/disgoorg/snowflake/v2"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/lavabox/internal/app/session"
	"github.com/osa030/lavabox/internal/domain/payload"
	"github.com/osa030/lavabox/internal/domain/remote"
	"github.com/osa030/lavabox/internal/domain/track"
)

// ErrEmptyUpdate is returned when a player update sets no field.
var ErrEmptyUpdate = errors.New("player update has no fields")

// RestExceptionError is returned when the node failed to load a track.
type RestExceptionError struct {
	Message  string
	Severity remote.Severity
	Cause    string
}

func (e *RestExceptionError) Error() string {
	return fmt.Sprintf("track load failed: severity=%s message=%s cause=%s", e.Severity, e.Message, e.Cause)
}

// SessionSource picks the session a call goes through. An empty name selects
// the current session.
type SessionSource interface {
	FetchSession(name string) (*session.Session, error)
}

type callOptions struct {
	session *session.Session
}

// CallOption customizes a call.
type CallOption func(*callOptions)

// Using sends the call through s instead of the current session.
func Using(s *session.Session) CallOption {
	return func(o *callOptions) {
		o.session = s
	}
}

// Client calls the REST API of the node behind a session.
type Client struct {
	sessions SessionSource
}

// New creates a new REST client.
func New(sessions SessionSource) *Client {
	return &Client{sessions: sessions}
}

func (c *Client) session(opts []CallOption) (*session.Session, error) {
	var o callOptions
	for _, opt := range opts {
		opt(&o)
	}
	if o.session != nil {
		return o.session, nil
	}
	if c.sessions == nil {
		return nil, errors.New("rest client has no session source")
	}
	return c.sessions.FetchSession("")
}

// LoadTracks resolves an identifier or search query into tracks.
func (c *Client) LoadTracks(ctx context.Context, query string, opts ...CallOption) (track.LoadResult, error) {
	s, err := c.session(opts)
	if err != nil {
		return track.LoadResult{}, err
	}

	raw, err := session.Request[track.RawLoadResult](ctx, s, http.MethodGet, "/loadtracks", session.WithQuery("identifier", query))
	if err != nil {
		return track.LoadResult{}, err
	}

	result := track.LoadResult{Type: raw.LoadType}
	switch raw.LoadType {
	case track.LoadTypeTrack:
		t, err := track.Decode(raw.Data)
		if err != nil {
			return track.LoadResult{}, err
		}
		result.Track = &t
	case track.LoadTypePlaylist:
		p, err := track.DecodePlaylist(raw.Data)
		if err != nil {
			return track.LoadResult{}, err
		}
		result.Playlist = &p
	case track.LoadTypeSearch:
		if err := payload.DecodeArray(raw.Data, &result.Tracks); err != nil {
			return track.LoadResult{}, err
		}
	case track.LoadTypeEmpty:
	case track.LoadTypeError:
		var ex remote.TrackException
		if err := payload.Decode(raw.Data, &ex); err != nil {
			return track.LoadResult{}, err
		}
		loadErr := &RestExceptionError{Severity: ex.Severity, Cause: ex.Cause}
		if ex.Message != nil {
			loadErr.Message = *ex.Message
		}
		return result, loadErr
	default:
		return track.LoadResult{}, payload.NewBuildError(nil, fmt.Sprintf("unknown load type %q", raw.LoadType))
	}

	zlog.Debug().Msgf("tracks loaded: query=%s load_type=%s count=%d", query, raw.LoadType, len(result.All()))
	return result, nil
}

// DecodeTrack decodes a single encoded track.
func (c *Client) DecodeTrack(ctx context.Context, encoded string, opts ...CallOption) (track.Track, error) {
	s, err := c.session(opts)
	if err != nil {
		return track.Track{}, err
	}
	return session.Request[track.Track](ctx, s, http.MethodGet, "/decodetrack", session.WithQuery("encodedTrack", encoded))
}

// DecodeTracks decodes several encoded tracks.
func (c *Client) DecodeTracks(ctx context.Context, encoded []string, opts ...CallOption) ([]track.Track, error) {
	s, err := c.session(opts)
	if err != nil {
		return nil, err
	}
	return session.Request[[]track.Track](ctx, s, http.MethodPost, "/decodetracks", session.WithJSON(encoded))
}

// FetchPlayers returns every player of the session on the node.
func (c *Client) FetchPlayers(ctx context.Context, opts ...CallOption) ([]remote.Player, error) {
	s, err := c.session(opts)
	if err != nil {
		return nil, err
	}
	sessionID, err := s.SessionID()
	if err != nil {
		return nil, err
	}
	return session.Request[[]remote.Player](ctx, s, http.MethodGet, "/sessions/"+sessionID+"/players")
}

// FetchPlayer returns the node player of a guild.
func (c *Client) FetchPlayer(ctx context.Context, guildID snowflake.ID, opts ...CallOption) (remote.Player, error) {
	s, err := c.session(opts)
	if err != nil {
		return remote.Player{}, err
	}
	path, err := playerPath(s, guildID)
	if err != nil {
		return remote.Player{}, err
	}
	return session.Request[remote.Player](ctx, s, http.MethodGet, path)
}

// UpdatePlayer applies a partial update to the node player of a guild, creating
// it when needed. With noReplace, a playing track is not replaced.
func (c *Client) UpdatePlayer(ctx context.Context, guildID snowflake.ID, update PlayerUpdate, noReplace bool, opts ...CallOption) (remote.Player, error) {
	if update.Empty() {
		return remote.Player{}, ErrEmptyUpdate
	}
	s, err := c.session(opts)
	if err != nil {
		return remote.Player{}, err
	}
	path, err := playerPath(s, guildID)
	if err != nil {
		return remote.Player{}, err
	}
	return session.Request[remote.Player](ctx, s, http.MethodPatch, path,
		session.WithJSON(update),
		session.WithQuery("noReplace", fmt.Sprint(noReplace)),
	)
}

// DeletePlayer destroys the node player of a guild.
func (c *Client) DeletePlayer(ctx context.Context, guildID snowflake.ID, opts ...CallOption) error {
	s, err := c.session(opts)
	if err != nil {
		return err
	}
	path, err := playerPath(s, guildID)
	if err != nil {
		return err
	}
	return s.Do(ctx, http.MethodDelete, path)
}

// UpdateSession changes the resume settings of the websocket session.
func (c *Client) UpdateSession(ctx context.Context, resuming *bool, timeout *int, opts ...CallOption) (remote.SessionInfo, error) {
	s, err := c.session(opts)
	if err != nil {
		return remote.SessionInfo{}, err
	}
	sessionID, err := s.SessionID()
	if err != nil {
		return remote.SessionInfo{}, err
	}

	body := make(map[string]any)
	if resuming != nil {
		body["resuming"] = *resuming
	}
	if timeout != nil {
		body["timeout"] = *timeout
	}
	return session.Request[remote.SessionInfo](ctx, s, http.MethodPatch, "/sessions/"+sessionID, session.WithJSON(body))
}

// FetchInfo returns the node build information.
func (c *Client) FetchInfo(ctx context.Context, opts ...CallOption) (remote.Info, error) {
	s, err := c.session(opts)
	if err != nil {
		return remote.Info{}, err
	}
	return session.Request[remote.Info](ctx, s, http.MethodGet, "/info")
}

// FetchVersion returns the node version string.
func (c *Client) FetchVersion(ctx context.Context, opts ...CallOption) (string, error) {
	s, err := c.session(opts)
	if err != nil {
		return "", err
	}
	return session.Request[string](ctx, s, http.MethodGet, "/version", session.WithoutVersion())
}

// FetchStats returns the node statistics. Frame statistics are never set.
func (c *Client) FetchStats(ctx context.Context, opts ...CallOption) (remote.Statistics, error) {
	s, err := c.session(opts)
	if err != nil {
		return remote.Statistics{}, err
	}
	return session.Request[remote.Statistics](ctx, s, http.MethodGet, "/stats")
}

// FetchRoutePlannerStatus returns the route planner state, or nil when the
// node has no route planner.
func (c *Client) FetchRoutePlannerStatus(ctx context.Context, opts ...CallOption) (*remote.RoutePlannerStatus, error) {
	s, err := c.session(opts)
	if err != nil {
		return nil, err
	}
	status, err := session.Request[remote.RoutePlannerStatus](ctx, s, http.MethodGet, "/routeplanner/status")
	if errors.Is(err, session.ErrRestEmpty) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &status, nil
}

// FreeAddress unmarks a failing address.
func (c *Client) FreeAddress(ctx context.Context, address string, opts ...CallOption) error {
	s, err := c.session(opts)
	if err != nil {
		return err
	}
	return s.Do(ctx, http.MethodPost, "/routeplanner/free/address", session.WithJSON(map[string]string{"address": address}))
}

// FreeAllAddresses unmarks every failing address.
func (c *Client) FreeAllAddresses(ctx context.Context, opts ...CallOption) error {
	s, err := c.session(opts)
	if err != nil {
		return err
	}
	return s.Do(ctx, http.MethodPost, "/routeplanner/free/all")
}

func playerPath(s *session.Session, guildID snowflake.ID) (string, error) {
	sessionID, err := s.SessionID()
	if err != nil {
		return "", err
	}
	return "/sessions/" + sessionID + "/players/" + guildID.String(), nil
}
