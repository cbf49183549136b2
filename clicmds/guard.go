package clicmds

import (
	"context"
	"io/ioutil"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/pelletier/go-toml"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"

	"gitlab.com/phishguard/api"
	"gitlab.com/phishguard/guard"
	"gitlab.com/phishguard/guard/browser"
	"gitlab.com/phishguard/guard/classify"
	"gitlab.com/phishguard/phishguard"
	"gitlab.com/phishguard/store"
)

// GuardFlags for the guard command
func GuardFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "config",
			Usage: "config to use",
			Value: "",
		},
		&cli.StringFlag{
			Name:  "classifier",
			Usage: "base URL of the prediction service",
			Value: "http://127.0.0.1:8000",
		},
		&cli.StringFlag{
			Name:  "debugger-host",
			Usage: "chromium remote debugger host",
			Value: "localhost",
		},
		&cli.StringFlag{
			Name:  "debugger-port",
			Usage: "chromium remote debugger port",
			Value: "9222",
		},
		&cli.StringFlag{
			Name:  "listen",
			Usage: "address for the command/state api",
			Value: "127.0.0.1:8654",
		},
		&cli.StringFlag{
			Name:  "datadir",
			Usage: "data directory",
			Value: "phishguardtmp",
		},
		&cli.BoolFlag{
			Name:  "strict-domains",
			Usage: "resolve trust domains via the public suffix list",
			Value: false,
		},
		&cli.IntFlag{
			Name:  "classify-timeout",
			Usage: "seconds to wait on the classifier, 0 waits forever",
			Value: 0,
		},
	}
}

// Guard runs the navigation interception engine
func Guard(ctx *cli.Context) error {
	cfg, err := loadConfig(ctx)
	if err != nil {
		return err
	}

	state := store.NewStateStore(cfg.DataPath + "/state")
	if err := state.Init(); err != nil {
		log.Error().Err(err).Msg("failed to init state store")
		return err
	}
	defer state.Close()

	history := store.NewHistory(cfg.DataPath + "/history")
	if err := history.Init(); err != nil {
		log.Error().Err(err).Msg("failed to init decision history")
		return err
	}
	defer history.Close()

	chrome := browser.NewChrome(cfg.DebuggerHost, cfg.DebuggerPort)
	if err := chrome.Init(); err != nil {
		log.Error().Err(err).Msg("failed to attach to browser")
		return err
	}
	defer chrome.Close()

	classifier := classify.NewClient(cfg.ClassifierURL, cfg.ClassifyTimeout())
	engine := guard.New(cfg, state, history, classifier, chrome)
	server := api.NewServer(cfg.ListenAddr, engine, state, history)

	runCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-c
		log.Info().Msg("Ctrl-C pressed, shutting down")
		cancel()
	}()

	log.Info().Str("classifier", cfg.ClassifierURL).Str("listen", cfg.ListenAddr).Msg("starting phishguard")

	g, groupCtx := errgroup.WithContext(runCtx)
	g.Go(func() error {
		return engine.Run(groupCtx, chrome.Events())
	})
	g.Go(func() error {
		return server.Run(groupCtx)
	})

	if err := g.Wait(); err != nil && err != context.Canceled {
		log.Error().Err(err).Msg("guard failure occurred")
		return err
	}
	return nil
}

func loadConfig(ctx *cli.Context) (*phishguard.Config, error) {
	cfg := &phishguard.Config{}

	if ctx.String("config") == "" {
		cfg = &phishguard.Config{
			ClassifierURL:          ctx.String("classifier"),
			DebuggerHost:           ctx.String("debugger-host"),
			DebuggerPort:           ctx.String("debugger-port"),
			ListenAddr:             ctx.String("listen"),
			DataPath:               ctx.String("datadir"),
			StrictBaseDomain:       ctx.Bool("strict-domains"),
			ClassifyTimeoutSeconds: ctx.Int("classify-timeout"),
		}
	} else {
		data, err := ioutil.ReadFile(ctx.String("config"))
		if err != nil {
			return nil, err
		}

		if err := toml.NewDecoder(strings.NewReader(string(data))).Decode(cfg); err != nil {
			return nil, err
		}

		if cfg.ClassifierURL == "" && ctx.String("classifier") != "" {
			cfg.ClassifierURL = ctx.String("classifier")
		}
		if cfg.DataPath == "" && ctx.String("datadir") != "" {
			cfg.DataPath = ctx.String("datadir")
		}
	}

	cfg.SetDefaults()
	return cfg, nil
}
