package main

import (
	"context"
	"fmt"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
	"os"
	"os/signal"
	"s3stream/config"
	"strings"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newApp().RunContext(ctx, os.Args); err != nil {
		logrus.Fatalln(err)
	}
}

func newApp() *cli.App {
	cfg := &config.Config{}
	return &cli.App{
		Name:  "s3stream",
		Usage: "stream S3 objects through chunked ranged GET requests",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Usage:   "YAML config file; environment variables are used when empty",
				EnvVars: []string{"CONFIG_FILE"},
			},
		},
		Before: func(c *cli.Context) error {
			loaded, err := config.Load(c.String("config"))
			if err != nil {
				return fmt.Errorf("%w\n\n%s", err, config.Usage())
			}
			*cfg = *loaded
			return setupLogging(cfg.Log)
		},
		Commands: []*cli.Command{
			serveCommand(cfg),
			downloadCommand(cfg),
			copyCommand(cfg),
			tarCommand(cfg),
			signCommand(cfg),
		},
	}
}

func setupLogging(cfg config.Log) error {
	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		return err
	}
	logrus.SetLevel(level)
	switch strings.ToLower(cfg.Format) {
	case "json":
		logrus.SetFormatter(&logrus.JSONFormatter{})
	case "text", "":
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	default:
		return fmt.Errorf("unknown log format %q", cfg.Format)
	}
	return nil
}
