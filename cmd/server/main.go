package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/NicolasHaas/mustangchat/pkg/datastore"
	"github.com/NicolasHaas/mustangchat/pkg/logging"
	"github.com/NicolasHaas/mustangchat/pkg/server"
	"github.com/NicolasHaas/mustangchat/pkg/version"
)

func main() {
	defaults := server.DefaultConfig()
	var flagCfg server.Config

	configPath := flag.String("config", "", "YAML config file")
	flag.StringVar(&flagCfg.ListenAddr, "listen", defaults.ListenAddr, "UDP bind address")
	flag.StringVar(&flagCfg.Wire, "wire", defaults.Wire, "Wire format: binary or json")
	flag.IntVar(&flagCfg.Workers, "workers", defaults.Workers, "Dispatch workers (datagrams from one client stay ordered)")
	flag.IntVar(&flagCfg.QueueSize, "queue-size", defaults.QueueSize, "Per-worker datagram queue")
	flag.DurationVar(&flagCfg.SweepInterval, "sweep-interval", defaults.SweepInterval, "How often idle sessions are checked")
	flag.DurationVar(&flagCfg.SessionTimeout, "session-timeout", defaults.SessionTimeout, "Silence after which a session is evicted")
	flag.StringVar(&flagCfg.MetricsAddr, "metrics", defaults.MetricsAddr, "HTTP bind address for Prometheus /metrics (empty to disable)")
	flag.StringVar(&flagCfg.JournalPath, "journal", defaults.JournalPath, "SQLite session journal file (empty to disable)")
	exportJournal := flag.Bool("export-journal", false, "Export the session journal as YAML and exit")
	showVersion := flag.Bool("version", false, "Print version and exit")

	logLevel := flag.String("log-level", "info", "Log level: "+logging.LevelNames())
	logFormat := flag.String("log-format", "text", "Log format: text or json")
	flag.Parse()

	if *showVersion {
		fmt.Println("mustangchat-server", version.Full())
		return
	}

	// Configure structured logging
	if err := logging.Setup(logging.Options{
		Level:  *logLevel,
		Format: *logFormat,
		Output: os.Stdout,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "invalid logging config: %v\n", err)
		os.Exit(1)
	}

	cfg, err := server.LoadConfig(*configPath)
	if err != nil {
		slog.Error("load config", "err", err)
		os.Exit(1)
	}
	applyFlags(&cfg, flagCfg)

	// Handle export command (run and exit)
	if *exportJournal {
		if err := writeJournalExport(context.Background(), cfg.JournalPath, os.Stdout); err != nil {
			slog.Error("export journal", "err", err)
			os.Exit(1)
		}
		return
	}

	srv, err := newServer(cfg)
	if err != nil {
		slog.Error("start server", "err", err)
		os.Exit(1)
	}
	slog.Info("starting mustangchat", "version", version.String())
	if err := srv.Run(); err != nil {
		srv.Shutdown() // closes the journal
		slog.Error("server error", "err", err)
		os.Exit(1)
	}
}

// writeJournalExport writes the journal at path as YAML to w.
func writeJournalExport(ctx context.Context, path string, w io.Writer) error {
	if path == "" {
		return errors.New("no journal configured (use -journal)")
	}
	j, err := datastore.Open(path)
	if err != nil {
		return err
	}
	defer func() { _ = j.Close() }()

	data, err := datastore.ExportYAML(ctx, j)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

// newServer validates cfg, opens the journal if one is configured and builds
// the server, which then owns the journal. The journal is closed again if
// the server cannot be built.
func newServer(cfg server.Config) (*server.Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	var deps server.Dependencies
	if cfg.JournalPath != "" {
		j, err := datastore.Open(cfg.JournalPath)
		if err != nil {
			return nil, fmt.Errorf("open journal: %w", err)
		}
		deps.Journal = j
	}
	srv, err := server.New(cfg, deps)
	if err != nil {
		if deps.Journal != nil {
			_ = deps.Journal.Close()
		}
		return nil, err
	}
	return srv, nil
}

// applyFlags copies only the flags given on the command line, so that file
// and environment values survive unset flags.
func applyFlags(cfg *server.Config, f server.Config) {
	flag.Visit(func(fl *flag.Flag) {
		switch fl.Name {
		case "listen":
			cfg.ListenAddr = f.ListenAddr
		case "wire":
			cfg.Wire = f.Wire
		case "workers":
			cfg.Workers = f.Workers
		case "queue-size":
			cfg.QueueSize = f.QueueSize
		case "sweep-interval":
			cfg.SweepInterval = f.SweepInterval
		case "session-timeout":
			cfg.SessionTimeout = f.SessionTimeout
		case "metrics":
			cfg.MetricsAddr = f.MetricsAddr
		case "journal":
			cfg.JournalPath = f.JournalPath
		}
	})
}
