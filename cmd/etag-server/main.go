package main

import (
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/always-cache/etag"
	"github.com/always-cache/etag/content"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var (
	// CLI flags
	configFilenameFlag string
	portFlag           int
	minimumSizeFlag    int
	streamingFlag      bool
	dbFilenameFlag     string
	verbosityTraceFlag bool
	logFilenameFlag    string

	// this is set by goreleaser
	version string
)

func init() {
	flag.StringVar(&configFilenameFlag, "config", "", "Path to config file")
	flag.IntVar(&portFlag, "port", 8080, "Port to listen on")
	flag.IntVar(&minimumSizeFlag, "min-size", etag.DefaultMinimumSize, "Minimum body size for ETags")
	flag.BoolVar(&streamingFlag, "streaming", false, "Buffer streamed responses to compute ETags")
	flag.StringVar(&dbFilenameFlag, "db", "memory", "Content DB file name (use 'memory' for in-memory db)")
	flag.BoolVar(&verbosityTraceFlag, "vv", false, "Verbosity: trace logging")
	flag.StringVar(&logFilenameFlag, "log-file", "", "Log file to use (in addition to stdout)")

	if version == "" {
		version = "DEV"
	}
}

func main() {
	flag.Parse()

	config := defaultConfig()
	if configFilenameFlag != "" {
		var err error
		if config, err = getConfig(configFilenameFlag); err != nil {
			fmt.Fprintf(os.Stderr, "Could not read config: %v\n", err)
			os.Exit(1)
		}
	}
	// explicitly set flags override the config file
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "port":
			config.Port = portFlag
		case "min-size":
			config.MinimumSize = minimumSizeFlag
		case "streaming":
			config.Streaming = streamingFlag
		case "db":
			config.DB = dbFilenameFlag
		case "log-file":
			config.LogFile = logFilenameFlag
		}
	})

	// set log level
	logLevel := zerolog.DebugLevel
	if verbosityTraceFlag {
		logLevel = zerolog.TraceLevel
	}

	// set up log output to stdout
	// also output to logfile if specified
	logOutputs := make([]io.Writer, 0)
	logOutputs = append(logOutputs, zerolog.ConsoleWriter{Out: os.Stdout})
	if config.LogFile != "" {
		if logFileOutput, err := os.OpenFile(config.LogFile, os.O_APPEND|os.O_WRONLY|os.O_CREATE, 0644); err != nil {
			log.Fatal().Err(err).Msg("Cannot open log file")
		} else {
			logOutputs = append(logOutputs, logFileOutput)
		}
	}
	multiWriter := zerolog.MultiLevelWriter(logOutputs...)
	log.Logger = log.Level(logLevel).Output(multiWriter).
		With().Str("version", version).Logger()

	store, err := content.NewSQLiteStore(config.DB)
	if err != nil {
		log.Fatal().Err(err).Str("db", config.DB).Msg("Could not open content db")
	}
	defer store.Close()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	mw := etag.New(etag.Config{
		MinimumSize: config.MinimumSize,
		Streaming:   config.Streaming,
		Logger:      &log.Logger,
		Metrics:     etag.NewMetrics("etag_server", registry),
	})
	handler := newRouter(
		&app{store: store, log: log.Logger},
		mw,
		promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
	)

	log.Info().
		Int("minimumSize", config.MinimumSize).
		Bool("streaming", config.Streaming).
		Msgf("Listening on port %v", config.Port)
	err = http.ListenAndServe(fmt.Sprintf(":%d", config.Port), handler)

	if err != nil {
		log.Fatal().Err(err).Msg("Server stopped")
	}
}
