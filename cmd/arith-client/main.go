package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/HUMBLE6666/rpc/client"
	"github.com/HUMBLE6666/rpc/config"
	"github.com/HUMBLE6666/rpc/discovery"
	"github.com/HUMBLE6666/rpc/example/arith"
	"go.uber.org/zap"
	cli "gopkg.in/urfave/cli.v1"
)

var app = cli.NewApp()

func init() {
	app.Name = "arith-client"
	app.Usage = "call the Arith service found through etcd"
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:  "i",
			Usage: "config file path",
		},
		cli.StringFlag{
			Name:  "method",
			Value: "Add",
			Usage: "Add, Sub or Mul",
		},
		cli.Int64Flag{
			Name: "a",
		},
		cli.Int64Flag{
			Name: "b",
		},
		cli.DurationFlag{
			Name:  "timeout",
			Usage: "bound on the whole call, 0 for no limit",
		},
		cli.BoolFlag{
			Name:  "debug",
			Usage: "development logging at debug level",
		},
	}
	app.Before = func(ctx *cli.Context) error {
		logger, err := zap.NewProduction()
		if ctx.Bool("debug") {
			logger, err = zap.NewDevelopment()
		}
		if err != nil {
			return err
		}
		zap.ReplaceGlobals(logger)
		return nil
	}
	app.After = func(ctx *cli.Context) error {
		zap.L().Sync()
		return nil
	}
	app.Action = call
}

func main() {
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func call(ctx *cli.Context) error {
	path := ctx.String("i")
	if path == "" {
		return cli.NewExitError("format: arith-client -i <configfile> --method Add --a 3 --b 4", 2)
	}
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}

	c := context.Background()
	if d := ctx.Duration("timeout"); d > 0 {
		var cancel context.CancelFunc
		c, cancel = context.WithTimeout(c, d)
		defer cancel()
	}

	etcd := discovery.NewEtcd(discovery.EtcdConfig{
		Endpoints:   cfg.DiscoveryEndpoints,
		DialTimeout: 5 * time.Second,
		SessionTTL:  cfg.SessionTTL,
	})
	if err := etcd.Connect(c); err != nil {
		return err
	}
	defer etcd.Close()

	stub := arith.NewStub(client.NewChannel(etcd))
	a, b := ctx.Int64("a"), ctx.Int64("b")

	var result int64
	switch m := ctx.String("method"); m {
	case "Add":
		result, err = stub.Add(c, a, b)
	case "Sub":
		result, err = stub.Sub(c, a, b)
	case "Mul":
		result, err = stub.Mul(c, a, b)
	default:
		return cli.NewExitError("unknown method "+m, 2)
	}
	if err != nil {
		return err
	}
	fmt.Printf("rpc %s response success: %d\n", ctx.String("method"), result)
	return nil
}
