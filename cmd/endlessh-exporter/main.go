package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Peuqui/endlessh-exporter/internal/adapters/geo"
	"github.com/Peuqui/endlessh-exporter/internal/adapters/input"
	"github.com/Peuqui/endlessh-exporter/internal/adapters/output"
	"github.com/Peuqui/endlessh-exporter/internal/adapters/storage"
	"github.com/Peuqui/endlessh-exporter/internal/app"
	"github.com/Peuqui/endlessh-exporter/internal/ports"
)

var (
	cfgFile     string
	listenAddr  string
	journalUnit string
	logPath     string
	boardPath   string

	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "endlessh-exporter",
	Short: "Prometheus exporter for the endlessh SSH tarpit",
	Long: `endlessh-exporter reads the endlessh tarpit log, reconciles open and
close events into a consistent picture of trapped and released connections,
and exposes the result for Prometheus scraping.

Each scrape runs one reconciliation pass: the log is re-read over a long
look-back window, connections are classified trapped or released, the
longest released connections are folded into a persisted hall of fame,
and per-origin and per-country rollups are computed with GeoIP data.`,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the scrape endpoint",
	Long: `Start the HTTP scrape endpoint.

Examples:
  endlessh-exporter serve
  endlessh-exporter serve --listen :9314 --journal-unit endlessh
  endlessh-exporter serve --log-file /var/log/endlessh.log
  endlessh-exporter serve --leaderboard /data/hall_of_fame.json`,
	RunE: runServe,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("endlessh-exporter %s\n", Version)
		fmt.Printf("Commit:  %s\n", Commit)
		fmt.Printf("Built:   %s\n", BuildTime)
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./configs/config.yaml)")
	serveCmd.Flags().StringVar(&listenAddr, "listen", "", "scrape listen address")
	serveCmd.Flags().StringVar(&journalUnit, "journal-unit", "", "systemd unit to read")
	serveCmd.Flags().StringVar(&logPath, "log-file", "", "read a plain log file instead of the journal")
	serveCmd.Flags().StringVar(&boardPath, "leaderboard", "", "leaderboard JSON file path")

	viper.BindPFlag("listen.addr", serveCmd.Flags().Lookup("listen"))
	viper.BindPFlag("log.unit", serveCmd.Flags().Lookup("journal-unit"))
	viper.BindPFlag("log.path", serveCmd.Flags().Lookup("log-file"))
	viper.BindPFlag("leaderboard.path", serveCmd.Flags().Lookup("leaderboard"))

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath("./configs")
		viper.AddConfigPath(".")
		viper.AddConfigPath("/etc/endlessh-exporter")
	}

	viper.SetDefault("listen.addr", ":9314")
	viper.SetDefault("metrics.path", "/metrics")
	viper.SetDefault("log.unit", "endlessh")
	viper.SetDefault("log.path", "")
	viper.SetDefault("windows.long", "6h")
	viper.SetDefault("windows.short", "5m")
	viper.SetDefault("leaderboard.path", "/data/hall_of_fame.json")
	viper.SetDefault("leaderboard.capacity", 100)
	viper.SetDefault("counter.recency_limit", 1000)
	viper.SetDefault("geo.endpoint", geo.DefaultEndpoint)
	viper.SetDefault("geo.timeout", "2s")
	viper.SetDefault("logging.level", "info")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Warn().Err(err).Msg("Error reading config file")
		}
	}

	viper.SetEnvPrefix("ENDLESSH_EXPORTER")
	viper.AutomaticEnv()
}

func setupLogging() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	switch viper.GetString("logging.level") {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	log.Logger = log.Output(zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: "15:04:05",
	})
}

func runServe(cmd *cobra.Command, args []string) error {
	setupLogging()

	var source ports.LogSource
	var journal *input.JournalSource
	if path := viper.GetString("log.path"); path != "" {
		source = input.NewFileSource(path)
	} else {
		journal = input.NewJournalSource(viper.GetString("log.unit"))
		source = journal
	}

	resolver := geo.NewResolver(geo.ResolverConfig{
		Endpoint: viper.GetString("geo.endpoint"),
		Timeout:  viper.GetDuration("geo.timeout"),
	})
	geoCache := geo.NewCache(resolver)

	repo := storage.NewJSONFileRepository(viper.GetString("leaderboard.path"))
	leaderboard := app.NewLeaderboard(viper.GetInt("leaderboard.capacity"), repo)
	leaderboard.Load()

	counter := app.NewCounterTracker(viper.GetInt("counter.recency_limit"))

	engineConfig := app.DefaultEngineConfig()
	if d := viper.GetDuration("windows.long"); d > 0 {
		engineConfig.LongWindow = d
	}
	if d := viper.GetDuration("windows.short"); d > 0 {
		engineConfig.ShortWindow = d
	}

	engine := app.NewEngine(
		source,
		input.NewExtractor(),
		geoCache,
		leaderboard,
		counter,
		output.NewExpositionRenderer(),
		engineConfig,
	)

	telemetry := output.NewTelemetry(output.TelemetryOptions{
		GeoCacheLen: geoCache.Len,
	})
	engine.AddObserver(telemetry)

	reload := app.ReloadOptions{
		Engine:         engine,
		SetGeoEndpoint: resolver.SetEndpoint,
	}
	if journal != nil {
		reload.SetUnit = journal.SetUnit
	}
	app.WatchConfig(reload)

	server := output.NewServer(engine, telemetry, output.ServerConfig{
		Addr: viper.GetString("listen.addr"),
		Path: viper.GetString("metrics.path"),
	})
	if err := server.Start(); err != nil {
		return err
	}

	log.Info().
		Str("source", source.Name()).
		Str("addr", viper.GetString("listen.addr")).
		Dur("long_window", engineConfig.LongWindow).
		Dur("short_window", engineConfig.ShortWindow).
		Msg("endlessh-exporter started")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	log.Info().Str("signal", sig.String()).Msg("Shutting down...")

	engine.Shutdown()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Stop(ctx); err != nil {
		log.Warn().Err(err).Msg("Scrape server shutdown timed out")
	}
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
