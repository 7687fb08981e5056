package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"

	"mealcal/internal/config"
	appLog "mealcal/internal/log"
	"mealcal/internal/pipeline"
	"mealcal/internal/watch"
	"mealcal/internal/web"
)

const (
	version     = "0.1.0"
	envLogLevel = "MEALCAL_LOG_LEVEL"
)

// appContext is passed to every command's Run method.
type appContext struct {
	ctx    context.Context
	config string
}

var CLI struct {
	Version kong.VersionFlag
	Config  string `help:"YAML config file path. Optional; environment variables are enough." type:"path"`
	EnvFile string `name:"env-file" help:"Dotenv file loaded before reading the environment." default:".env"`
	Debug   bool   `help:"Enable debug logging."`

	Run   RunCmd   `cmd:"" help:"Fetch the feed once and write the meal file." default:"1"`
	Watch WatchCmd `cmd:"" help:"Refresh the meal file on a cron schedule and serve it over HTTP."`
}

// RunCmd performs a single extraction.
type RunCmd struct{}

func (RunCmd) Run(app *appContext) error {
	cfg, err := config.Resolve(app.config, os.Getenv)
	if err != nil {
		return err
	}
	res, err := pipeline.Run(app.ctx, cfg, pipeline.Options{})
	if err != nil {
		return err
	}
	fmt.Printf("%s written.\n", res.Output)
	return nil
}

// WatchCmd keeps the meal file fresh until interrupted.
type WatchCmd struct {
	Listen string `help:"HTTP listen address (overrides config if set)."`
}

func (c WatchCmd) Run(app *appContext) error {
	cfg, err := config.Resolve(app.config, os.Getenv)
	if err != nil {
		return err
	}
	if c.Listen != "" {
		cfg.Listen = c.Listen
	}

	var srv *web.Server
	if cfg.Listen != "" {
		srv = web.NewServer(cfg)
	}
	return watch.New(cfg, pipeline.Options{}, srv).Run(app.ctx)
}

func main() {
	kctx := kong.Parse(&CLI,
		kong.Name("mealcal"),
		kong.Description("Build a weekly meal schedule from a calendar feed"),
		kong.UsageOnError(),
		kong.Vars{"version": version},
	)

	if err := config.LoadEnvFile(CLI.EnvFile); err != nil {
		appLog.Error("failed to load env file", err, "path", CLI.EnvFile)
		appLog.Sync()
		os.Exit(pipeline.ExitCode(err))
	}

	appLog.SetLevel(appLog.ParseLevel(os.Getenv(envLogLevel)))
	if CLI.Debug {
		appLog.SetLevel(appLog.LevelDebug)
	}
	defer appLog.Sync()

	// Root context with cancellation on SIGINT/SIGTERM.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		appLog.Info("signal received, shutting down", "signal", sig.String())
		cancel()
	}()

	appLog.Debug("mealcal starting", "version", version, "command", kctx.Command())

	if err := kctx.Run(&appContext{ctx: ctx, config: CLI.Config}); err != nil {
		appLog.Error("mealcal failed", err)
		appLog.Sync()
		cancel()
		os.Exit(pipeline.ExitCode(err))
	}
}
