package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/coopco/toolbridge/internal/bridge"
	"github.com/coopco/toolbridge/internal/gateway"
	"github.com/coopco/toolbridge/internal/mcp"
)

func serveCmd(a *app) *cobra.Command {
	var withStdio bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP gateway",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return a.serve(ctx, withStdio)
		},
	}
	cmd.Flags().BoolVar(&withStdio, "stdio", false, "Also serve MCP on stdin/stdout; the process exits when stdin closes")
	return cmd
}

func (a *app) serve(ctx context.Context, withStdio bool) error {
	reg, err := buildRegistry(a.cfg)
	if err != nil {
		return err
	}
	disp, release, err := dispatcher(ctx, a.cfg, reg)
	if err != nil {
		return err
	}
	defer release()

	b := bridge.New(bridge.Config{Dispatcher: disp, Logger: a.logger})
	gw := a.cfg.Gateway
	srv := gateway.New(b, reg, gateway.Options{
		Addr:         gw.Addr(),
		Model:        gw.Model,
		ReadTimeout:  gw.ReadTimeout,
		WriteTimeout: gw.WriteTimeout,
		Logger:       a.logger,
	})

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.Serve(gctx) })
	if withStdio {
		g.Go(func() error {
			defer cancel()
			return mcp.NewServer(reg, "toolbridge", version, a.logger).Serve(gctx, os.Stdin, os.Stdout)
		})
	}

	a.logger.Info("toolbridge started",
		"dispatcher", a.cfg.Bridge.Dispatcher,
		"tools", len(reg.List()),
		"stdio", withStdio,
	)
	return g.Wait()
}

func stdioCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "stdio",
		Short: "Serve the tool registry as an MCP server on stdin/stdout",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			reg, err := buildRegistry(a.cfg)
			if err != nil {
				return err
			}
			return mcp.NewServer(reg, "toolbridge", version, a.logger).Serve(ctx, os.Stdin, os.Stdout)
		},
	}
}
