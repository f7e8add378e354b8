package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/HUMBLE6666/rpc/config"
	"github.com/HUMBLE6666/rpc/discovery"
	"github.com/HUMBLE6666/rpc/example/arith"
	"github.com/HUMBLE6666/rpc/middleware"
	"github.com/HUMBLE6666/rpc/server"
	"go.uber.org/zap"
	cli "gopkg.in/urfave/cli.v1"
)

var app = cli.NewApp()

func init() {
	app.Name = "arith-server"
	app.Usage = "serve the Arith service and advertise it through etcd"
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:  "i",
			Usage: "config file path",
		},
		cli.BoolFlag{
			Name:  "debug",
			Usage: "development logging at debug level",
		},
		cli.Float64Flag{
			Name:  "rate",
			Usage: "calls per second accepted, 0 for no limit",
		},
		cli.DurationFlag{
			Name:  "handler-timeout",
			Usage: "abandon calls whose handler has not completed in time, 0 for no limit",
		},
	}
	app.Before = setupLogger
	app.After = func(ctx *cli.Context) error {
		zap.L().Sync()
		return nil
	}
	app.Action = serve
}

func main() {
	if err := app.Run(os.Args); err != nil {
		zap.L().Error("arith-server exited", zap.Error(err))
		os.Exit(1)
	}
}

func setupLogger(ctx *cli.Context) error {
	var (
		logger *zap.Logger
		err    error
	)
	if ctx.Bool("debug") {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		return err
	}
	zap.ReplaceGlobals(logger)
	return nil
}

func serve(ctx *cli.Context) error {
	path := ctx.String("i")
	if path == "" {
		return cli.NewExitError("format: arith-server -i <configfile>", 2)
	}
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}

	etcd := discovery.NewEtcd(discovery.EtcdConfig{
		Endpoints:   cfg.DiscoveryEndpoints,
		DialTimeout: 5 * time.Second,
		SessionTTL:  cfg.SessionTTL,
	})
	defer etcd.Close()

	p, err := newProvider(cfg, etcd, ctx.Float64("rate"), ctx.Duration("handler-timeout"))
	if err != nil {
		return err
	}

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errc := make(chan error, 1)
	go func() {
		errc <- p.ListenAndServe(context.Background())
	}()

	select {
	case err := <-errc:
		return err
	case <-sigCtx.Done():
	}

	zap.L().Info("shutting down")
	if err := p.Shutdown(5 * time.Second); err != nil {
		zap.L().Warn("shutdown", zap.Error(err))
	}
	return <-errc
}

// newProvider builds the Arith provider with its middleware. rate and
// handlerTimeout are skipped when zero.
func newProvider(cfg *config.Config, d discovery.Client, rate float64, handlerTimeout time.Duration) (*server.Provider, error) {
	p := server.NewProvider(
		server.WithAddress(cfg.ServerIP, cfg.ServerPort),
		server.WithWorkers(cfg.Workers),
		server.WithDiscovery(d),
	)
	mws := []middleware.Middleware{
		middleware.RecoverMiddleware(),
		middleware.LoggingMiddleware(zap.L()),
	}
	if rate > 0 {
		mws = append(mws, middleware.RateLimitMiddleware(rate, int(rate)+1))
	}
	if handlerTimeout > 0 {
		mws = append(mws, middleware.TimeOutMiddleware(handlerTimeout))
	}
	for _, mw := range mws {
		if err := p.Use(mw); err != nil {
			return nil, err
		}
	}
	if err := p.Register(arith.NewService()); err != nil {
		return nil, err
	}
	return p, nil
}
