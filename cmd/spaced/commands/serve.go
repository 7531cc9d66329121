package commands

import (
	"context"
	"net"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/openspaces/spaced/pkg/providers"
	"github.com/openspaces/spaced/pkg/server"
	"github.com/openspaces/spaced/pkg/settings"
	"github.com/openspaces/spaced/pkg/stores"
	"github.com/openspaces/spaced/pkg/telemetry"
)

func newServeCommand() *cobra.Command {
	var (
		settingsPath string
		listen       string
		journalPath  string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve provisioning sessions over TCP",
		Long: `Serve the connection-oriented protocol binding: each connection gets its own
session over the space definition. A client sends PROVIDE or REVERT, answers
every CMD reply with a STATUS/STDOUT/STDERR outcome block, and the session
ends with END or ERR.

The definition file is re-read when it changes on disk, so edits take effect
for the next connection without a restart.`,
		Example: `  # Serve with flags only
  spaced serve -f space.cfg --listen 127.0.0.1:7077

  # Serve from a settings file
  spaced serve --settings /etc/spaced/spaced.yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadSettings(settingsPath, listen, journalPath)
			if err != nil {
				return err
			}

			logger, err := telemetry.NewLogger(s.Telemetry.Logging)
			if err != nil {
				return err
			}
			log.Logger = logger

			return serve(cmd.Context(), s)
		},
	}

	cmd.Flags().StringVar(&settingsPath, "settings", "", "daemon settings file (YAML)")
	cmd.Flags().StringVar(&listen, "listen", "", "TCP listen address (overrides settings)")
	cmd.Flags().StringVar(&journalPath, "journal", "", "sqlite run journal path (overrides settings)")

	return cmd
}

// loadSettings merges the optional settings file with command-line overrides.
// The global -f flag supplies the space file when the settings file does not.
func loadSettings(path, listen, journal string) (*settings.Settings, error) {
	var s *settings.Settings
	if path != "" {
		loaded, err := settings.Load(path)
		if err != nil {
			return nil, err
		}
		s = loaded
	} else {
		s = settings.Default()
	}
	if s.SpaceFile == "" {
		s.SpaceFile = spaceFile
	}
	if listen != "" {
		s.Listen = listen
	}
	if journal != "" {
		s.JournalPath = journal
	}
	return s, s.Validate()
}

func serve(ctx context.Context, s *settings.Settings) error {
	metrics := telemetry.NewMetrics(s.Telemetry.Metrics)
	tracer, err := telemetry.NewTracer(s.Telemetry.Tracing, s.Telemetry.ServiceName, s.Telemetry.ServiceVersion)
	if err != nil {
		return err
	}

	var journal server.Journal
	if s.JournalPath != "" {
		store, err := stores.NewSQLiteStore(s.JournalPath)
		if err != nil {
			return err
		}
		if err := store.Init(ctx); err != nil {
			return err
		}
		if err := store.Migrate(ctx); err != nil {
			return err
		}
		defer store.Close()
		journal = store
	}

	cache, err := server.NewConfigCache(s.SpaceFile, log.Logger)
	if err != nil {
		return err
	}
	defer cache.Close()

	go func() {
		if err := metrics.Serve(); err != nil {
			log.Warn().Err(err).Msg("metrics endpoint failed")
		}
	}()

	ln, err := net.Listen("tcp", s.Listen)
	if err != nil {
		return err
	}

	space := filepath.Base(s.SpaceFile)
	factory := providers.NewFactory(localPlatform())
	srv := server.New(space, cache, factory, journal, metrics, tracer, log.Logger)
	serveErr := srv.Serve(ctx, ln)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := metrics.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("metrics shutdown failed")
	}
	if err := tracer.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("tracer shutdown failed")
	}
	if serveErr == context.Canceled {
		return nil
	}
	return serveErr
}
