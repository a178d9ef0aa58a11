package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"gglcd/internal/config"
	"gglcd/internal/gamesense"
	appLog "gglcd/internal/log"
	"gglcd/internal/session"
	"gglcd/internal/web"
)

type flagConfig struct {
	configPath string
	mode       string
	text       string
	svg        string
	url        string
	address    string
	listen     string
	once       bool
	cleanup    bool
}

func main() {
	flags := parseFlags()

	conf, err := config.Load(flags.configPath)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", flags.configPath)
		os.Exit(1)
	}
	applyFlags(conf, flags)
	conf.Normalize()

	appLog.SetLevel(appLog.ParseLevel(conf.LogLevel))
	appLog.Info("gglcd starting", "version", "0.1.0")

	if err := conf.Validate(); err != nil {
		appLog.Error("invalid config", err, "config_path", flags.configPath)
		os.Exit(1)
	}

	if err := run(conf, flags); err != nil {
		appLog.Error("gglcd failed", err)
		os.Exit(1)
	}
	appLog.Info("gglcd exiting")
}

func run(conf *config.Config, flags flagConfig) error {
	variants, err := conf.Variants()
	if err != nil {
		return err
	}

	opts := []gamesense.Option{gamesense.WithTimeout(conf.RequestTimeout)}
	if conf.Address != "" {
		opts = append(opts, gamesense.WithAddress(conf.Address))
	} else if conf.CoreProps != "" {
		opts = append(opts, gamesense.WithCorePropsPath(conf.CoreProps))
	}
	client, err := gamesense.New(conf.Identity(), opts...)
	if err != nil {
		return err
	}

	sess, err := session.New(client, variants...)
	if err != nil {
		return err
	}

	appLog.Info("effective config",
		"game", conf.Game,
		"panels", conf.Panels,
		"mode", conf.Mode,
		"refresh", conf.Refresh,
		"heartbeat", conf.HeartbeatInterval.String(),
		"preview", conf.Preview.Listen,
		"once", flags.once,
	)

	// Root context with cancellation on SIGINT/SIGTERM.
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := setup(ctx, conf, sess); err != nil {
		return err
	}

	r, err := newRenderer(conf, sess)
	if err != nil {
		return err
	}

	if flags.once {
		err := r.draw(ctx)
		if flags.cleanup {
			removeGame(sess, conf.RequestTimeout)
		}
		return err
	}

	if conf.Preview.Listen != "" {
		srv := web.NewServer(conf.Preview, sess)
		go func() {
			if err := srv.Run(ctx); err != nil {
				appLog.Error("preview server stopped", err)
			}
		}()
	}

	if err := r.draw(ctx); err != nil {
		appLog.Error("initial draw failed", err)
	}

	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	if _, err := c.AddFunc(conf.Refresh, func() {
		if err := r.draw(ctx); err != nil {
			appLog.Error("scheduled draw failed", err)
		}
	}); err != nil {
		return err
	}
	c.Start()

	sess.StartHeartbeat(conf.HeartbeatInterval)

	<-ctx.Done()
	appLog.Info("signal received, shutting down")

	sess.StopHeartbeat()
	<-c.Stop().Done()

	if flags.cleanup {
		removeGame(sess, conf.RequestTimeout)
	}
	return nil
}

func setup(ctx context.Context, conf *config.Config, sess *session.Session) error {
	reqCtx, cancel := context.WithTimeout(ctx, conf.RequestTimeout)
	defer cancel()

	if err := sess.Register(reqCtx); err != nil {
		return err
	}
	return sess.Bind(reqCtx)
}

func removeGame(sess *session.Session, timeout time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := sess.Remove(ctx); err != nil {
		appLog.Error("remove game failed", err)
	}
}

func applyFlags(conf *config.Config, flags flagConfig) {
	if flags.mode != "" {
		conf.Mode = flags.mode
	}
	if flags.text != "" {
		conf.Text = flags.text
		if flags.mode == "" {
			conf.Mode = config.ModeText
		}
	}
	if flags.svg != "" {
		conf.SVG = flags.svg
		if flags.mode == "" {
			conf.Mode = config.ModeSVG
		}
	}
	if flags.url != "" {
		conf.URL = flags.url
		if flags.mode == "" {
			conf.Mode = config.ModeURL
		}
	}
	if flags.address != "" {
		conf.Address = flags.address
	}
	// CLI --listen overrides config file listen if provided.
	if flags.listen != "" {
		conf.Preview.Listen = flags.listen
	}
}

func parseFlags() flagConfig {
	var cfg flagConfig

	flag.StringVar(&cfg.configPath, "config", defaultConfigPath(), "Path to config file")
	flag.StringVar(&cfg.mode, "mode", "", "What to draw: text, clock, svg, url, agenda (overrides config)")
	flag.StringVar(&cfg.text, "text", "", "Text to draw; implies -mode text")
	flag.StringVar(&cfg.svg, "svg", "", "SVG file to draw; implies -mode svg")
	flag.StringVar(&cfg.url, "url", "", "Web page to capture; implies -mode url")
	flag.StringVar(&cfg.address, "address", "", "GameSense host:port (skips coreProps.json)")
	flag.StringVar(&cfg.listen, "listen", "", "Preview server listen address (overrides config if set)")
	flag.BoolVar(&cfg.once, "once", false, "Draw and flush one frame, then exit")
	flag.BoolVar(&cfg.cleanup, "cleanup", false, "Remove the game from GameSense on exit")

	flag.Parse()

	return cfg
}

func defaultConfigPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "gglcd.yaml"
	}
	return filepath.Join(dir, "gglcd", "config.yaml")
}
