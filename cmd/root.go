// Package cmd holds the nihongo command line.
package cmd

import (
	"os"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/example/nihongo/internal/config"
	"github.com/example/nihongo/internal/database"
	"github.com/example/nihongo/internal/kanji"
	"github.com/example/nihongo/internal/logging"
	"github.com/example/nihongo/internal/progress"
)

var configFile string

var rootCmd = &cobra.Command{
	Use:           "nihongo",
	Short:         "Japanese study progress with cloud sync",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		rootCmd.PrintErrln("Error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (yaml, toml or json)")
}

// app bundles what every command needs
type app struct {
	cfg    *config.Config
	logger *logrus.Logger
}

func loadApp() (*app, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, errors.Wrap(err, "set up logging")
	}
	return &app{cfg: cfg, logger: logger}, nil
}

func (a *app) openDevice() (*sqlx.DB, error) {
	db, err := database.OpenDevice(a.cfg.Local.Path)
	if err != nil {
		return nil, errors.Wrap(err, "open device database")
	}
	return db, nil
}

func (a *app) openCloud() (*sqlx.DB, error) {
	db, err := database.OpenCloud(a.cfg.Cloud.Driver, a.cfg.Cloud.DSN)
	if err != nil {
		return nil, errors.Wrap(err, "open cloud database")
	}
	return db, nil
}

func (a *app) progressConfig() progress.Config {
	cfg := progress.DefaultConfig()
	cfg.DebounceWindow = a.cfg.Sync.Debounce
	cfg.CloudTimeout = a.cfg.Cloud.Timeout
	return cfg
}

// catalog serves kanji from the API when a key is configured and from the
// device database otherwise
func (a *app) catalog(deviceDB *sqlx.DB) *kanji.Catalog {
	var source kanji.Source
	client, err := kanji.NewClient(kanji.ClientConfig{
		BaseURL:       a.cfg.Kanji.BaseURL,
		APIKey:        a.cfg.Kanji.APIKey,
		APIHost:       a.cfg.Kanji.APIHost,
		RatePerSecond: a.cfg.Kanji.RatePerSecond,
	})
	switch {
	case errors.Is(err, kanji.ErrMissingAPIKey):
		a.logger.Warn("Kanji API key is not set, using the device catalog only")
	case err != nil:
		a.logger.WithError(err).Warn("Failed to create kanji API client")
	default:
		source = client
	}
	return kanji.NewCatalog(source, database.NewKanjiRepository(deviceDB), a.cfg.Kanji.CacheTTL, a.logger)
}

// openDeviceProgress loads one device's progress without cloud sync
func (a *app) openDeviceProgress(db *sqlx.DB, device string) (*progress.Engine, error) {
	if device == "" {
		return nil, errors.New("--device is required, see the devices command")
	}
	engine := progress.New(database.NewLocalStore(db, device), nil, a.logger, a.progressConfig())
	if err := engine.Load(); err != nil {
		return nil, errors.Wrapf(err, "load progress for %s", device)
	}
	return engine, nil
}
