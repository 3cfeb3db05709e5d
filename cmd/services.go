package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/xvierd/cadence/internal/adapters/notification"
	"github.com/xvierd/cadence/internal/adapters/storage"
	"github.com/xvierd/cadence/internal/config"
	"github.com/xvierd/cadence/internal/domain"
	"github.com/xvierd/cadence/internal/logging"
	"github.com/xvierd/cadence/internal/ports"
	"github.com/xvierd/cadence/internal/services"
)

// appDeps groups all service-layer dependencies initialized at startup.
type appDeps struct {
	config     *config.Config
	configPath string
	logger     zerolog.Logger
	clock      domain.Clock
	storage    ports.Storage
	templates  *services.TemplateService
	instances  *services.InstanceService
	state      *services.StateService
	notifier   *notification.Notifier
}

// app holds all initialized service dependencies.
// Populated by initializeServices() and accessible to all commands.
var app appDeps

// initializeServices sets up all the required services and adapters.
func initializeServices(cmd *cobra.Command) error {
	// A failed command skips the post-run hook and leaves storage open.
	if err := cleanupServices(); err != nil {
		return err
	}

	var err error
	app.configPath = configPath
	if app.configPath == "" {
		if app.configPath, err = config.GetConfigPath(); err != nil {
			return err
		}
	}

	app.config, err = config.LoadFrom(app.configPath)
	if err != nil {
		// A broken config file should not lock the user out.
		fmt.Fprintf(cmd.ErrOrStderr(), "Warning: %v (using defaults)\n", err)
		app.config = config.DefaultConfig()
	}

	app.logger = logging.New(app.config.Logging, cmd.ErrOrStderr())
	app.clock = app.config.Clock()
	app.notifier = notification.New(&app.config.Notifications)

	settings, err := settingsFrom(app.config)
	if err != nil {
		return err
	}

	path := dbPath
	if path == "" {
		path = config.GetDBPath(app.config)
	}
	if err := os.MkdirAll(getDir(path), 0750); err != nil {
		return fmt.Errorf("failed to create database directory: %w", err)
	}

	app.storage, err = storage.New(path)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}

	app.templates = services.NewTemplateService(app.storage, app.clock, app.logger)
	app.templates.SetSettings(settings)
	app.instances = services.NewInstanceService(app.storage, app.clock, app.logger)
	app.instances.SetSettings(settings)

	app.state = services.NewStateService(app.storage, app.clock)
	app.state.SetTemplateService(app.templates)
	app.state.SetInstanceService(app.instances)

	return nil
}

// settingsFrom converts the loaded configuration into service settings.
func settingsFrom(cfg *config.Config) (services.Settings, error) {
	opts, err := cfg.ScheduleOptions()
	if err != nil {
		return services.Settings{}, fmt.Errorf("invalid generation config: %w", err)
	}
	return services.Settings{
		Schedule:        opts,
		MaxInstances:    cfg.Generation.MaxInstances,
		DefaultDuration: time.Duration(cfg.Generation.DefaultDuration),
		MaxSnoozes:      cfg.Reminders.MaxSnoozes,
		DefaultSnooze:   time.Duration(cfg.Reminders.DefaultSnooze),
	}, nil
}

// cleanupServices closes all resources.
func cleanupServices() error {
	if app.storage != nil {
		err := app.storage.Close()
		app.storage = nil
		return err
	}
	return nil
}

// timezone is the label used to read dates typed on the command line.
func timezone() string {
	if app.config == nil || app.config.Timezone == "" {
		return "Local"
	}
	return app.config.Timezone
}
