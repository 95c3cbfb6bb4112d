package cmd

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"textrefine/internal/server"
)

const serveUsage = `Usage:
  textrefine serve [--config <path>] [--port <port>]

Flags:
  --config string   Path to YAML configuration file (defaults apply when omitted)
  --port   int      Override server.port from the configuration`

func serve(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.Usage = func() { fmt.Fprintln(os.Stderr, serveUsage) }
	cfgPath := fs.String("config", "", "path to configuration file")
	port := fs.Int("port", 0, "override server port")

	switch err := fs.Parse(args); {
	case errors.Is(err, flag.ErrHelp):
		return nil
	case err != nil:
		return fmt.Errorf("parse serve flags: %w", err)
	}

	cfg, err := loadConfig(*cfgPath)
	if err != nil {
		return err
	}
	if *port != 0 {
		cfg.Server.Port = *port
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("--port: %w", err)
		}
	}

	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer a.close()

	srv, err := server.New(cfg, a.router, a.logger)
	if err != nil {
		return err
	}
	return srv.Run(ctx)
}
