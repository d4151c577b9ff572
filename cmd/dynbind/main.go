package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/alecthomas/kong"

	"github.com/funvibe/dynbind/internal/config"
	"github.com/funvibe/dynbind/pkg/binder"
)

type CLI struct {
	Config  string `help:"Path to dynbind.yaml (default: search upwards from the working directory)." short:"c" type:"path"`
	NoColor bool   `help:"Disable colored output." name:"no-color"`

	Call     CallCmd     `cmd:"" help:"Invoke a gRPC method through the binder."`
	Services ServicesCmd `cmd:"" help:"List services and methods in the loaded protos."`
	Inspect  InspectCmd  `cmd:"" help:"List Invoke methods and function types in Go packages."`
	Trace    TraceCmd    `cmd:"" help:"Show recorded binding events."`
	Version  VersionCmd  `cmd:"" help:"Print version information."`
}

// Env is what every command runs with.
type Env struct {
	Config *config.Config
	Logger *slog.Logger
	Style  Style
	Sites  *binder.SiteCache
}

func (c *CLI) env() (*Env, error) {
	path := c.Config
	if path == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, err
		}
		if path, err = config.FindConfig(wd); err != nil {
			return nil, err
		}
	}

	cfg := config.Default()
	if path != "" {
		var err error
		if cfg, err = config.LoadConfig(path); err != nil {
			return nil, err
		}
	}

	logger := cfg.Log.Logger(os.Stderr)
	if path != "" {
		logger.Debug("loaded config", slog.String("path", path))
	}
	return &Env{
		Config: cfg,
		Logger: logger,
		Style:  NewStyle(os.Stdout, c.NoColor),
		Sites:  binder.NewSiteCache(cfg.Cache.MaxSites),
	}, nil
}

type VersionCmd struct{}

func (c *VersionCmd) Run() error {
	fmt.Println(Version())
	return nil
}

func main() {
	cli := &CLI{}
	ctx := kong.Parse(cli,
		kong.Name("dynbind"),
		kong.Description("Bind and run dynamic invoke call sites against Go values and gRPC services."),
		kong.UsageOnError(),
	)
	env, err := cli.env()
	ctx.FatalIfErrorf(err)
	err = ctx.Run(env)
	ctx.FatalIfErrorf(err)
}
