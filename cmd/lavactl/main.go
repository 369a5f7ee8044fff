// Package main provides the lavactl entry point, a command line client for
// Lavalink nodes.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"github.com/cockroachdb/errors"
	"github.com/disgoorg/snowflake/v2"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/lavabox/internal/app/client"
	"github.com/osa030/lavabox/internal/app/event"
	"github.com/osa030/lavabox/internal/app/rest"
	"github.com/osa030/lavabox/internal/app/session"
	"github.com/osa030/lavabox/internal/domain/checker"
	"github.com/osa030/lavabox/internal/domain/track"
	"github.com/osa030/lavabox/internal/infra/config"
	"github.com/osa030/lavabox/internal/infra/logger"
)

var (
	app        = kingpin.New("lavactl", "Lavalink node client")
	configPath = app.Flag("config", "Path to config file").Default("config/lavactl.yaml").String()
	nodeName   = app.Flag("node", "Node to talk to (default: first configured node)").Short('n').String()
	userID     = app.Flag("user-id", "Bot user ID (or set LAVABOX_USER_ID env)").Envar("LAVABOX_USER_ID").String()
	verbose    = app.Flag("verbose", "Enable verbose (DEBUG) logging").Short('v').Bool()
	trace      = app.Flag("trace", "Enable TRACE logging and node stack traces").Bool()
	logfile    = app.Flag("logfile", "Path to log file (default: stdout)").String()

	// info command
	infoCmd = app.Command("info", "Show node information")

	// version command
	versionCmd = app.Command("version", "Show node version")

	// stats command
	statsCmd = app.Command("stats", "Show node statistics")

	// load command
	loadCmd   = app.Command("load", "Load tracks from a link or search query")
	loadQuery = loadCmd.Arg("query", "Link, identifier or search terms").Required().Strings()

	// decode command
	decodeCmd     = app.Command("decode", "Decode encoded tracks")
	decodeEncoded = decodeCmd.Arg("encoded", "Encoded track").Required().Strings()

	// routeplanner command
	routePlannerCmd     = app.Command("routeplanner", "Show or reset the route planner")
	routePlannerFree    = routePlannerCmd.Flag("free", "Unmark a failing address").String()
	routePlannerFreeAll = routePlannerCmd.Flag("free-all", "Unmark every failing address").Bool()

	// watch command
	watchCmd         = app.Command("watch", "Connect to every node and log their events")
	watchMetricsAddr = watchCmd.Flag("metrics-addr", "Serve Prometheus metrics on this address").String()
	watchPayloads    = watchCmd.Flag("payloads", "Also log raw payloads").Bool()
)

// cliHost is a bot identity without a Discord gateway behind it.
type cliHost struct {
	user session.User
}

func (h cliHost) CurrentUser(context.Context) (session.User, error) {
	if h.user.ID == 0 {
		return session.User{}, errors.New("bot user ID is required (use --user-id or LAVABOX_USER_ID env)")
	}
	return h.user, nil
}

func (cliHost) UpdateVoiceState(context.Context, snowflake.ID, *snowflake.ID, bool, bool) error {
	return errors.New("voice connections are not available from the command line")
}

func main() {
	// Load .env file if it exists (errors are ignored)
	_ = godotenv.Load()

	// Parse command
	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	// Load config
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Printf("Error: failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger, command-line flags win over the config file
	loggerConfig := logger.Config{
		Output: cfg.Log.Output,
		Level:  cfg.Log.Level,
		File:   cfg.Log.File,
	}
	if *verbose {
		loggerConfig.Level = "debug"
	}
	if *trace {
		loggerConfig.Level = "trace"
	}
	if *logfile != "" {
		loggerConfig.Output = *logfile
		loggerConfig.File = *logfile
	}
	if err := logger.Init(loggerConfig); err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}

	if err := run(command, cfg); err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
}

func run(command string, cfg *config.Config) error {
	host, err := newHost(cfg)
	if err != nil {
		return err
	}
	c, err := client.FromConfig(host, cfg)
	if err != nil {
		return err
	}
	defer c.Close(context.Background())

	if command == watchCmd.FullCommand() {
		return watch(c, cfg)
	}

	name := *nodeName
	if name == "" {
		name = cfg.Nodes[0].Name
	}
	s, err := c.FetchSession(name)
	if err != nil {
		return err
	}
	api := c.Rest()
	node := rest.Using(s)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Client.RequestTimeout)
	defer cancel()

	switch command {
	case infoCmd.FullCommand():
		return info(ctx, api, node)
	case versionCmd.FullCommand():
		v, err := api.FetchVersion(ctx, node)
		if err != nil {
			return err
		}
		fmt.Println(v)
	case statsCmd.FullCommand():
		return stats(ctx, api, node)
	case loadCmd.FullCommand():
		return load(ctx, api, node, strings.Join(*loadQuery, " "))
	case decodeCmd.FullCommand():
		tracks, err := api.DecodeTracks(ctx, *decodeEncoded, node)
		if err != nil {
			return err
		}
		for i, t := range tracks {
			printTrack(i+1, t)
		}
	case routePlannerCmd.FullCommand():
		return routePlanner(ctx, api, node)
	}
	return nil
}

func newHost(cfg *config.Config) (cliHost, error) {
	raw := *userID
	if raw == "" {
		raw = cfg.Client.UserID
	}
	h := cliHost{user: session.User{Name: cfg.Client.BotName}}
	if raw == "" {
		return h, nil
	}
	id, err := snowflake.Parse(raw)
	if err != nil {
		return cliHost{}, errors.Wrapf(err, "invalid user ID %q", raw)
	}
	h.user.ID = id
	return h, nil
}

func info(ctx context.Context, api *rest.Client, node rest.CallOption) error {
	i, err := api.FetchInfo(ctx, node)
	if err != nil {
		return err
	}
	fmt.Println("\n=== NODE INFO ===")
	fmt.Printf("Version: %s\n", i.Version.Semver)
	fmt.Printf("Build Time: %s\n", i.BuildTime.Format(time.RFC3339))
	fmt.Printf("Git: %s@%s\n", i.Git.Branch, i.Git.Commit)
	fmt.Printf("JVM: %s\n", i.JVM)
	fmt.Printf("Lavaplayer: %s\n", i.Lavaplayer)
	fmt.Printf("Source Managers: %s\n", strings.Join(i.SourceManagers, ", "))
	fmt.Printf("Filters: %s\n", strings.Join(i.Filters, ", "))
	if len(i.Plugins) > 0 {
		fmt.Println("\nPlugins:")
		for _, p := range i.Plugins {
			fmt.Printf("  %s %s\n", p.Name, p.Version)
		}
	}
	fmt.Println()
	return nil
}

func stats(ctx context.Context, api *rest.Client, node rest.CallOption) error {
	s, err := api.FetchStats(ctx, node)
	if err != nil {
		return err
	}
	fmt.Println("\n=== NODE STATISTICS ===")
	fmt.Printf("Players: %d (%d playing)\n", s.Players, s.PlayingPlayers)
	fmt.Printf("Uptime: %s\n", (time.Duration(s.Uptime) * time.Millisecond).Round(time.Second))
	fmt.Printf("Memory: used=%d free=%d allocated=%d reservable=%d\n",
		s.Memory.Used, s.Memory.Free, s.Memory.Allocated, s.Memory.Reservable)
	fmt.Printf("CPU: cores=%d system=%.2f lavalink=%.2f\n", s.CPU.Cores, s.CPU.SystemLoad, s.CPU.LavalinkLoad)
	fmt.Println()
	return nil
}

func load(ctx context.Context, api *rest.Client, node rest.CallOption, query string) error {
	checked := checker.Check(query)
	zlog.Debug().Msgf("loading tracks: type=%s identifier=%s", checked.Type, checked.Identifier())

	result, err := api.LoadTracks(ctx, checked.Identifier(), node)
	if err != nil {
		var exc *rest.RestExceptionError
		if errors.As(err, &exc) {
			return errors.Newf("node could not load %q: %s (%s)", query, exc.Message, exc.Severity)
		}
		return err
	}
	if result.Empty() {
		fmt.Println("No tracks found")
		return nil
	}

	if result.Playlist != nil {
		fmt.Printf("\nPlaylist: %s (%d tracks)\n", result.Playlist.Info.Name, len(result.Playlist.Tracks))
	}
	fmt.Println()
	for i, t := range result.All() {
		printTrack(i+1, t)
	}
	fmt.Println()
	return nil
}

func printTrack(n int, t track.Track) {
	fmt.Printf("%3d. %s - %s [%s]\n", n, t.Info.Author, t.Info.Title, t.Info.Duration().Round(time.Second))
	fmt.Printf("     %s:%s\n", t.Info.SourceName, t.Info.Identifier)
	fmt.Printf("     %s\n", t.Encoded)
}

func routePlanner(ctx context.Context, api *rest.Client, node rest.CallOption) error {
	switch {
	case *routePlannerFreeAll:
		if err := api.FreeAllAddresses(ctx, node); err != nil {
			return err
		}
		fmt.Println("All failing addresses freed")
		return nil
	case *routePlannerFree != "":
		if err := api.FreeAddress(ctx, *routePlannerFree, node); err != nil {
			return err
		}
		fmt.Printf("Address %s freed\n", *routePlannerFree)
		return nil
	}

	status, err := api.FetchRoutePlannerStatus(ctx, node)
	if err != nil {
		return err
	}
	if status == nil {
		fmt.Println("Route planner is not enabled")
		return nil
	}
	d := status.Details
	fmt.Println("\n=== ROUTE PLANNER ===")
	fmt.Printf("Class: %s\n", status.Class)
	fmt.Printf("IP Block: %s %s\n", d.IPBlock.Type, d.IPBlock.Size)
	if len(d.FailingAddresses) > 0 {
		fmt.Println("\nFailing Addresses:")
		for _, a := range d.FailingAddresses {
			fmt.Printf("  %s since %s\n", a.Address, a.Timestamp.Format(time.RFC3339))
		}
	}
	fmt.Println()
	return nil
}

// watch connects every node and logs their events until interrupted.
func watch(c *client.Client, cfg *config.Config) error {
	addr := *watchMetricsAddr
	if addr == "" {
		addr = cfg.Metrics.Addr
	}

	var server *http.Server
	serverErr := make(chan error, 1)
	if addr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		server = &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			zlog.Info().Msgf("serving metrics: addr=%s", addr)
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				serverErr <- err
			}
		}()
	}

	subscriptionID := c.Bus().Subscribe(logEvent, func(e event.Event) bool {
		_, raw := e.(event.Payload)
		return !raw || *watchPayloads
	})
	defer c.Bus().Unsubscribe(subscriptionID)

	if err := c.Start(context.Background()); err != nil {
		return err
	}

	// Wait for shutdown signal or metrics server error
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	var runErr error
	select {
	case <-sigCh:
		zlog.Info().Msg("Received shutdown signal...")
	case runErr = <-serverErr:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if server != nil {
		if err := server.Shutdown(shutdownCtx); err != nil {
			zlog.Warn().Msgf("metrics server shutdown failed: %v", err)
		}
	}
	if err := c.Stop(shutdownCtx); err != nil {
		return errors.CombineErrors(runErr, err)
	}
	return runErr
}

func logEvent(e event.Event) {
	switch e := e.(type) {
	case event.Ready:
		zlog.Info().Msgf("ready: session=%s session_id=%s resumed=%v", e.Session, e.SessionID, e.Resumed)
	case event.Stats:
		zlog.Info().Msgf("stats: session=%s players=%d playing=%d cpu=%.2f", e.Session, e.Players, e.PlayingPlayers, e.CPU.LavalinkLoad)
	case event.PlayerUpdate:
		zlog.Info().Msgf("player update: session=%s guild=%s position=%d connected=%v ping=%d",
			e.Session, e.GuildID, e.State.Position, e.State.Connected, e.State.Ping)
	case event.TrackStart:
		zlog.Info().Msgf("track start: session=%s guild=%s title=%q", e.Session, e.GuildID, e.Track.Info.Title)
	case event.TrackEnd:
		zlog.Info().Msgf("track end: session=%s guild=%s title=%q reason=%s", e.Session, e.GuildID, e.Track.Info.Title, e.Reason)
	case event.Payload:
		zlog.Info().Msgf("payload: session=%s data=%s", e.Session, e.Raw)
	default:
		zlog.Info().Msgf("%s: %+v", e.Name(), e)
	}
}
