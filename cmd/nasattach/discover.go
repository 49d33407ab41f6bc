package main

import (
	"context"
	"os"

	"github.com/onkernel/nasattach/cmd/nasattach/config"
	"github.com/onkernel/nasattach/lib/discovery"
	"github.com/urfave/cli/v2"
)

func discoverCommand(cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:  "discover",
		Usage: "list cluster hosts and the array state for a name",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "cluster", Usage: "cluster to inspect"},
			&cli.StringFlag{Name: "name", Usage: "file system to inspect"},
			outputFlag(),
		},
		Action: func(c *cli.Context) error {
			req := discovery.Request{Cluster: c.String("cluster"), Name: c.String("name")}
			if req.Cluster == "" && req.Name == "" {
				return cli.Exit("one of --cluster or --name is required", 2)
			}
			return withApp(cfg, newRunID(), func(ctx context.Context, app *application) error {
				report, err := app.Discoverer.Discover(ctx, req)
				if err != nil {
					return err
				}
				return discovery.Render(os.Stdout, report, c.String("output"))
			})
		},
	}
}
