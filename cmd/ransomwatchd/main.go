// ransomwatchd is a host-based ransomware detector and first responder. It
// watches a set of directories for mass file-modification activity, scores
// the observed entropy of recently touched files, and on a positive
// verdict quarantines affected files, terminates the suspected process
// tree, and snapshots a read-only recovery copy.
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"ransomwatch/internal/config"
	"ransomwatch/internal/engine"
	"ransomwatch/internal/logging"
	"ransomwatch/internal/notify"
)

// Version is set via ldflags during build.
var Version = "dev"

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "run":
		cmdRun()
	case "check":
		cmdCheck()
	case "version", "-v", "--version":
		fmt.Println("ransomwatchd", Version)
	case "help", "-h", "--help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Println(`ransomwatchd - behavior-based ransomware detection and response

USAGE:
    ransomwatchd <command> [options]

COMMANDS:
    run       Run the detection engine in the foreground
    check     Run one evaluation pass without starting the watcher and exit
    version   Show version information
    help      Show this help message`)
}

func cmdRun() {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	configPath := fs.String("config", "", "path to config.toml (defaults to ~/.ransomwatchd/config.toml)")
	fs.Parse(os.Args[2:])

	cfg, logger, eng := mustBootstrap(*configPath)
	defer logger.Close()

	if err := eng.Start(); err != nil {
		logger.Error("engine start failed", "error", err)
		os.Exit(1)
	}
	logger.Info("ransomwatchd started", "watch_paths", cfg.WatchPaths, "quarantine_dir", cfg.QuarantineDir)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	sig := <-sigCh
	logger.Info("shutting down", "signal", sig.String())
	eng.Stop()
}

func cmdCheck() {
	fs := flag.NewFlagSet("check", flag.ExitOnError)
	configPath := fs.String("config", "", "path to config.toml")
	fs.Parse(os.Args[2:])

	_, logger, eng := mustBootstrap(*configPath)
	defer logger.Close()

	eng.CheckNow()
	logger.Info("manual check complete")
}

// mustBootstrap loads and validates configuration, sets up logging, and
// constructs the Engine. Any failure here is a startup failure and exits
// the process with status 1, per the daemon's documented exit codes.
func mustBootstrap(configPath string) (*config.Config, *logging.Logger, *engine.Engine) {
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ransomwatchd: load config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "ransomwatchd: invalid config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.ValidateSchema(); err != nil {
		fmt.Fprintf(os.Stderr, "ransomwatchd: invalid config: %v\n", err)
		os.Exit(1)
	}

	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = logging.LevelInfo
	}
	format := logging.FormatText
	if cfg.LogFormat == "json" {
		format = logging.FormatJSON
	}

	logger, err := logging.New(&logging.Config{
		Level:      level,
		Format:     format,
		Output:     "both",
		FilePath:   cfg.LogPath,
		MaxSize:    100,
		MaxAge:     30,
		MaxBackups: 5,
		Compress:   true,
		Component:  "ransomwatchd",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "ransomwatchd: init logging: %v\n", err)
		os.Exit(1)
	}

	uiSink := func(msg string) { logger.Info("ui", "message", msg) }
	if cfg.NotifyDBus {
		if sink, err := notify.NewDBusSink(); err != nil {
			logger.Warn("desktop notifications unavailable", "error", err)
		} else {
			uiSink = func(msg string) {
				logger.Info("ui", "message", msg)
				sink.Notify(msg)
			}
		}
	}

	eng, err := engine.New(cfg, logger, uiSink)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ransomwatchd: init engine: %v\n", err)
		os.Exit(1)
	}

	return cfg, logger, eng
}
