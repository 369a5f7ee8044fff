// Package session provides the connection to a single Lavalink node.
package session

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/disgoorg/snowflake/v2"
	zlog "github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
	"nhooyr.io/websocket"

	"github.com/osa030/lavabox/internal/app/event"
	"github.com/osa030/lavabox/internal/infra/metrics"
)

// Version is reported to nodes in the Client-Name header.
const Version = "0.3.0"

const (
	DefaultAttempts       = 3
	DefaultRetryDelay     = 2500 * time.Millisecond
	DefaultRequestTimeout = 10 * time.Second
	readLimit             = 1 << 20
)

// Config represents the connection settings of a session.
type Config struct {
	Name              string
	Host              string
	Port              int
	Password          string
	SSL               bool
	Attempts          int           // handshake attempts per Start
	RetryDelay        time.Duration // delay before every attempt but the first
	RequestTimeout    time.Duration // REST and handshake timeout
	RequestsPerSecond float64       // REST rate limit, 0 for none
}

// User is the identity of the bot the client runs as.
type User struct {
	ID   snowflake.ID
	Name string
}

// Identity resolves the bot's own user.
type Identity interface {
	CurrentUser(ctx context.Context) (User, error)
}

// Publisher receives the events decoded from the node.
type Publisher interface {
	Publish(e event.Event)
}

// Player is a guild player bound to a session.
type Player interface {
	GuildID() snowflake.ID
	TransferTo(ctx context.Context, to *Session) (Player, error)
}

// Target receives the players of a failed session.
type Target interface {
	FetchSession(name string) (*Session, error)
	AdoptPlayer(p Player) error
}

// Deps holds the collaborators of a session.
type Deps struct {
	Identity   Identity
	Publisher  Publisher
	HTTPClient *http.Client
	Target     Target
}

// Session owns the REST and websocket connection to one node.
type Session struct {
	cfg        Config
	identity   Identity
	publisher  Publisher
	httpClient *http.Client
	limiter    *rate.Limiter

	mu        sync.RWMutex
	target    Target
	status    Status
	sessionID string
	remaining int
	lastErr   error
	players   map[snowflake.ID]Player
	cancel    context.CancelFunc
	done      chan struct{}
}

// New creates a session. It does not connect until Start is called.
func New(cfg Config, deps Deps) *Session {
	if cfg.Attempts <= 0 {
		cfg.Attempts = DefaultAttempts
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = DefaultRetryDelay
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = DefaultRequestTimeout
	}

	httpClient := deps.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.RequestTimeout}
	}

	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), max(1, int(cfg.RequestsPerSecond)))
	}

	s := &Session{
		cfg:        cfg,
		identity:   deps.Identity,
		publisher:  deps.Publisher,
		httpClient: httpClient,
		limiter:    limiter,
		target:     deps.Target,
		status:     StatusNotConnected,
		remaining:  cfg.Attempts,
		players:    make(map[snowflake.ID]Player),
	}
	metrics.SetSessionStatus(cfg.Name, s.status.String(), allStatuses)
	return s
}

// Name returns the unique name of the session.
func (s *Session) Name() string {
	return s.cfg.Name
}

// Status returns the current connection status.
func (s *Session) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// SessionID returns the ID assigned by the node on READY.
func (s *Session) SessionID() (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.sessionID == "" {
		return "", errors.Wrapf(ErrSessionNotReady, "session %s", s.cfg.Name)
	}
	return s.sessionID, nil
}

// RemainingAttempts returns the handshake attempts left before the session gives up.
func (s *Session) RemainingAttempts() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.remaining
}

// LastError returns the error that last ended or interrupted the receive loop.
func (s *Session) LastError() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastErr
}

// SetTarget sets where players are moved when the session fails.
func (s *Session) SetTarget(t Target) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.target = t
}

// AttachPlayer binds a player to the session.
func (s *Session) AttachPlayer(p Player) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.players[p.GuildID()] = p
}

// DetachPlayer unbinds the player of a guild.
func (s *Session) DetachPlayer(guildID snowflake.ID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.players, guildID)
}

// Players returns the players bound to the session.
func (s *Session) Players() []Player {
	s.mu.RLock()
	defer s.mu.RUnlock()
	players := make([]Player, 0, len(s.players))
	for _, p := range s.players {
		players = append(players, p)
	}
	return players
}

// Start spawns the receive loop and resets the attempt budget. It does not block.
func (s *Session) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.done != nil {
		select {
		case <-s.done:
		default:
			zlog.Warn().Msgf("session already running: name=%s", s.cfg.Name)
			return
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})
	s.remaining = s.cfg.Attempts
	s.lastErr = nil

	go s.run(ctx, s.done)
}

// Stop cancels the receive loop and waits for it to exit. Stopping a session that
// was never started does nothing.
func (s *Session) Stop(ctx context.Context) error {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel = nil
	s.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return errors.Wrapf(ctx.Err(), "timed out stopping session %s", s.cfg.Name)
	}
}

// Transfer moves every player of the session to a session chosen by target,
// then stops this session.
func (s *Session) Transfer(ctx context.Context, target Target) error {
	err := s.transfer(ctx, target)
	if stopErr := s.Stop(ctx); stopErr != nil {
		return errors.CombineErrors(err, stopErr)
	}
	return err
}

func (s *Session) transfer(ctx context.Context, target Target) error {
	players := s.Players()
	if len(players) == 0 {
		return nil
	}
	if target == nil {
		return errors.Newf("session %s has no transfer target for %d players", s.cfg.Name, len(players))
	}

	next, err := target.FetchSession("")
	if err != nil {
		metrics.IncTransfer(s.cfg.Name, false)
		return errors.Wrapf(err, "no session to take over the players of %s", s.cfg.Name)
	}

	var errs error
	for _, p := range players {
		moved, err := p.TransferTo(ctx, next)
		if moved != nil {
			// A player that could not resume still belongs to the new session.
			if adoptErr := target.AdoptPlayer(moved); adoptErr != nil {
				err = errors.CombineErrors(err, adoptErr)
			}
		}
		if err != nil {
			metrics.IncTransfer(s.cfg.Name, false)
			zlog.Error().Msgf("failed to transfer player: guild_id=%s from=%s to=%s error=%v", p.GuildID(), s.cfg.Name, next.Name(), err)
			errs = errors.CombineErrors(errs, err)
			continue
		}
		metrics.IncTransfer(s.cfg.Name, true)
		zlog.Info().Msgf("player transferred: guild_id=%s from=%s to=%s", p.GuildID(), s.cfg.Name, next.Name())
	}
	return errs
}

func (s *Session) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	user, err := s.identity.CurrentUser(ctx)
	if err != nil {
		s.mu.Lock()
		status := StatusNotConnected
		if s.remaining == 0 {
			status = StatusFailure
		}
		s.lastErr = errors.Wrapf(ErrSessionStart, "failed to resolve bot identity: %v", err)
		s.mu.Unlock()
		s.setStatus(status)
		zlog.Error().Msgf("session could not start: name=%s error=%v", s.cfg.Name, err)
		return
	}

	header := http.Header{}
	header.Set("Authorization", s.cfg.Password)
	header.Set("User-Id", user.ID.String())
	header.Set("Client-Name", clientName(user.Name))

	for attempt := 0; s.takeAttempt(); attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				s.setStatus(StatusNotConnected)
				return
			case <-time.After(s.cfg.RetryDelay):
			}
		}

		conn, err := s.dial(ctx, header)
		if err != nil {
			if ctx.Err() != nil {
				s.setStatus(StatusNotConnected)
				return
			}
			metrics.IncHandshake(s.cfg.Name, false)
			s.setErr(err)
			s.setStatus(StatusNotConnected)
			zlog.Warn().Msgf("session handshake failed: name=%s remaining=%d error=%v", s.cfg.Name, s.RemainingAttempts(), err)
			continue
		}

		metrics.IncHandshake(s.cfg.Name, true)
		s.setStatus(StatusConnected)
		zlog.Info().Msgf("session connected: name=%s", s.cfg.Name)

		err = s.listen(ctx, conn)
		if err == nil {
			s.setStatus(StatusNotConnected)
			return
		}
		s.setErr(err)
		zlog.Warn().Msgf("session failed: name=%s error=%v", s.cfg.Name, err)

		// Mid-stream failures do not go back to the attempt loop.
		s.setStatus(StatusFailure)
		s.mu.RLock()
		target := s.target
		s.mu.RUnlock()
		if err := s.transfer(ctx, target); err != nil {
			zlog.Error().Msgf("session transfer incomplete: name=%s error=%v", s.cfg.Name, err)
		}
		return
	}

	zlog.Warn().Msgf("session ran out of attempts: name=%s attempts=%d", s.cfg.Name, s.cfg.Attempts)
	s.setStatus(StatusNotConnected)
}

func (s *Session) takeAttempt() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.remaining < 1 {
		return false
	}
	s.remaining--
	return true
}

func (s *Session) dial(ctx context.Context, header http.Header) (*websocket.Conn, error) {
	dialCtx, cancel := context.WithTimeout(ctx, s.cfg.RequestTimeout)
	defer cancel()

	conn, resp, err := websocket.Dial(dialCtx, s.websocketURL(), &websocket.DialOptions{HTTPHeader: header})
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to connect to %s", s.websocketURL())
	}
	conn.SetReadLimit(readLimit)
	return conn, nil
}

// listen reads frames until the connection fails. It returns nil only when ctx
// was cancelled.
func (s *Session) listen(ctx context.Context, conn *websocket.Conn) error {
	defer conn.Close(websocket.StatusNormalClosure, "")

	for {
		typ, data, err := conn.Read(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return errors.Wrapf(err, "websocket closed: status=%d", websocket.CloseStatus(err))
		}
		if typ != websocket.MessageText {
			return errors.Newf("unexpected websocket message type %v", typ)
		}
		if err := s.handleFrame(data); err != nil {
			return err
		}
	}
}

func (s *Session) handleFrame(data []byte) error {
	metrics.IncFrame(s.cfg.Name, event.Op(data))
	zlog.Trace().Msgf("frame received: session=%s payload=%s", s.cfg.Name, data)

	e, err := event.Decode(s.cfg.Name, data)
	if err != nil {
		return errors.Wrap(err, "failed to decode frame")
	}
	s.publish(event.Payload{Session: s.cfg.Name, Raw: string(data)})

	if ready, ok := e.(event.Ready); ok {
		s.mu.Lock()
		s.sessionID = ready.SessionID
		s.mu.Unlock()
		zlog.Info().Msgf("session ready: name=%s session_id=%s resumed=%v", s.cfg.Name, ready.SessionID, ready.Resumed)
	}
	s.publish(e)
	return nil
}

func (s *Session) publish(e event.Event) {
	if s.publisher != nil {
		s.publisher.Publish(e)
	}
}

func (s *Session) setStatus(status Status) {
	s.mu.Lock()
	s.status = status
	s.mu.Unlock()
	metrics.SetSessionStatus(s.cfg.Name, status.String(), allStatuses)
}

func (s *Session) setErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastErr = err
}

func (s *Session) websocketURL() string {
	scheme := "ws"
	if s.cfg.SSL {
		scheme = "wss"
	}
	return fmt.Sprintf("%s://%s/v4/websocket", scheme, s.hostPort())
}

func (s *Session) restURL(versioned bool) string {
	scheme := "http"
	if s.cfg.SSL {
		scheme = "https"
	}
	base := fmt.Sprintf("%s://%s", scheme, s.hostPort())
	if versioned {
		base += "/v4"
	}
	return base
}

func (s *Session) hostPort() string {
	return net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
}

func clientName(botName string) string {
	if botName == "" {
		botName = "unknown"
	}
	return botName + "/" + Version
}
