// Package client wires sessions, players and the event bus into a single
// entry point for a bot.
package client

import (
	"context"
	"net/http"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/disgoorg/snowflake/v2"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/lavabox/internal/app/event"
	"github.com/osa030/lavabox/internal/app/handler"
	"github.com/osa030/lavabox/internal/app/player"
	"github.com/osa030/lavabox/internal/app/rest"
	"github.com/osa030/lavabox/internal/app/session"
	"github.com/osa030/lavabox/internal/infra/config"
)

// Default connection settings of a session.
const (
	DefaultHost     = "127.0.0.1"
	DefaultPort     = 2333
	DefaultPassword = "youshallnotpass"
)

// Host is the bot the client runs inside. It knows the bot's user and can
// change its voice state through the Discord gateway.
type Host interface {
	session.Identity
	player.Gateway
}

// SessionConfig describes a node to connect to. Zero fields take the defaults.
type SessionConfig struct {
	Name     string
	Host     string
	Port     int
	Password string
	SSL      bool
}

// Option configures a Client.
type Option func(*Client)

// WithAttempts sets the handshake attempts of every session created afterwards.
func WithAttempts(n int) Option {
	return func(c *Client) {
		c.attempts = n
	}
}

// WithRetryDelay sets the delay between handshake attempts.
func WithRetryDelay(d time.Duration) Option {
	return func(c *Client) {
		c.retryDelay = d
	}
}

// WithRequestTimeout sets the REST and handshake timeout of every session.
func WithRequestTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.requestTimeout = d
	}
}

// WithRateLimit caps the REST requests per second of every session.
func WithRateLimit(perSecond float64) Option {
	return func(c *Client) {
		c.requestsPerSecond = perSecond
	}
}

// WithHTTPClient sets the HTTP client shared by every session.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithVoiceTimeout sets how long a player waits for Discord's voice events.
func WithVoiceTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.voiceTimeout = d
	}
}

// Client is the entry point a bot holds on to.
type Client struct {
	host    Host
	bus     *event.Bus
	handler *handler.SessionHandler
	restAPI *rest.Client

	attempts          int
	retryDelay        time.Duration
	requestTimeout    time.Duration
	requestsPerSecond float64
	httpClient        *http.Client
	voiceTimeout      time.Duration
}

// New creates a client for host.
func New(host Host, opts ...Option) *Client {
	h := handler.New()
	c := &Client{
		host:     host,
		bus:      event.NewBus(),
		handler:  h,
		restAPI:  rest.New(h),
		attempts: session.DefaultAttempts,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FromConfig creates a client with a session for every configured node.
func FromConfig(host Host, cfg *config.Config, opts ...Option) (*Client, error) {
	base := []Option{
		WithAttempts(cfg.Client.Attempts),
		WithRetryDelay(cfg.Client.RetryDelay),
		WithRequestTimeout(cfg.Client.RequestTimeout),
		WithRateLimit(cfg.Client.RequestsPerSecond),
		WithVoiceTimeout(cfg.Client.VoiceTimeout),
	}
	c := New(host, append(base, opts...)...)
	for _, n := range cfg.Nodes {
		_, err := c.CreateSession(SessionConfig{
			Name:     n.Name,
			Host:     n.Host,
			Port:     n.Port,
			Password: n.Password,
			SSL:      n.SSL,
		})
		if err != nil {
			return nil, errors.Wrapf(err, "failed to create session for node %s", n.Name)
		}
	}
	return c, nil
}

// Rest returns the REST API of the client's nodes.
func (c *Client) Rest() *rest.Client {
	return c.restAPI
}

// Bus returns the bus every node and player event is published on.
func (c *Client) Bus() *event.Bus {
	return c.bus
}

// Handler returns the session and player registry.
func (c *Client) Handler() *handler.SessionHandler {
	return c.handler
}

// IsAlive reports whether the client is started.
func (c *Client) IsAlive() bool {
	return c.handler.IsAlive()
}

// Start connects every session. It is meant to run once the bot is ready.
func (c *Client) Start(ctx context.Context) error {
	return c.handler.Start(ctx)
}

// Stop disconnects every session and drops every player.
func (c *Client) Stop(ctx context.Context) error {
	return c.handler.Stop(ctx)
}

// Close stops the client and releases the event bus.
func (c *Client) Close(ctx context.Context) error {
	err := c.Stop(ctx)
	c.bus.Close()
	return err
}

// CreateSession registers a session for a node. It connects right away when
// the client is started.
func (c *Client) CreateSession(cfg SessionConfig) (*session.Session, error) {
	if cfg.Name == "" {
		return nil, errors.New("session name is required")
	}
	if cfg.Host == "" {
		cfg.Host = DefaultHost
	}
	if cfg.Port == 0 {
		cfg.Port = DefaultPort
	}
	if cfg.Password == "" {
		cfg.Password = DefaultPassword
	}

	s := session.New(session.Config{
		Name:              cfg.Name,
		Host:              cfg.Host,
		Port:              cfg.Port,
		Password:          cfg.Password,
		SSL:               cfg.SSL,
		Attempts:          c.attempts,
		RetryDelay:        c.retryDelay,
		RequestTimeout:    c.requestTimeout,
		RequestsPerSecond: c.requestsPerSecond,
	}, session.Deps{
		Identity:   c.host,
		Publisher:  c.bus,
		HTTPClient: c.httpClient,
	})
	if err := c.handler.AddSession(s); err != nil {
		return nil, err
	}
	zlog.Info().Msgf("session created: name=%s host=%s port=%d ssl=%v", cfg.Name, cfg.Host, cfg.Port, cfg.SSL)
	return s, nil
}

// FetchSession returns the named session, or the current one for an empty name.
func (c *Client) FetchSession(name string) (*session.Session, error) {
	return c.handler.FetchSession(name)
}

// DeleteSession removes a session. Its players move to another session.
func (c *Client) DeleteSession(ctx context.Context, name string) error {
	return c.handler.DeleteSession(ctx, name)
}

// CreatePlayer returns the player of a guild, creating it on the current
// session when there is none.
func (c *Client) CreatePlayer(guildID snowflake.ID) (*player.Player, error) {
	if p, err := c.handler.FetchPlayer(guildID); err == nil {
		return p, nil
	}

	s, err := c.handler.FetchSession("")
	if err != nil {
		return nil, err
	}
	p := player.New(guildID, s, player.Deps{
		Gateway:      c.host,
		Bus:          c.bus,
		Rest:         c.restAPI,
		VoiceTimeout: c.voiceTimeout,
	})
	if err := c.handler.AddPlayer(p); err != nil {
		p.Close()
		// Lost a race with another CreatePlayer for the same guild.
		if errors.Is(err, handler.ErrNotUnique) {
			return c.handler.FetchPlayer(guildID)
		}
		return nil, err
	}
	zlog.Debug().Msgf("player created: guild=%s session=%s", guildID, s.Name())
	return p, nil
}

// FetchPlayer returns the player of a guild.
func (c *Client) FetchPlayer(guildID snowflake.ID) (*player.Player, error) {
	return c.handler.FetchPlayer(guildID)
}

// DeletePlayer disconnects and removes the player of a guild.
func (c *Client) DeletePlayer(ctx context.Context, guildID snowflake.ID) error {
	return c.handler.DeletePlayer(ctx, guildID)
}

// HandleVoiceStateUpdate forwards a voice state update from the Discord gateway.
func (c *Client) HandleVoiceStateUpdate(e event.VoiceStateUpdate) {
	c.bus.Publish(e)
}

// HandleVoiceServerUpdate forwards a voice server update from the Discord gateway.
func (c *Client) HandleVoiceServerUpdate(e event.VoiceServerUpdate) {
	c.bus.Publish(e)
}
