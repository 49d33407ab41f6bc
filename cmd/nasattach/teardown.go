package main

import (
	"context"
	"fmt"
	"os"

	"github.com/onkernel/nasattach/cmd/nasattach/config"
	"github.com/onkernel/nasattach/lib/paths"
	"github.com/onkernel/nasattach/lib/run"
	"github.com/onkernel/nasattach/lib/teardown"
	"github.com/urfave/cli/v2"
)

func teardownCommand(cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:  "teardown",
		Usage: "unmount the datastore from every host and destroy the file system",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "run", Usage: "take name, cluster and datastore from a previous run"},
			&cli.StringFlag{Name: "name", Usage: "file system name"},
			&cli.StringFlag{Name: "cluster", Usage: "cluster to unmount from (skip unmount when empty)"},
			&cli.StringFlag{Name: "datastore", Usage: "datastore name (default: --name)"},
			&cli.BoolFlag{Name: "eradicate", Usage: "eradicate instead of leaving the file system destroyed"},
			outputFlag(),
		},
		Action: func(c *cli.Context) error {
			req, err := teardownRequest(c, paths.New(cfg.DataDir))
			if err != nil {
				return err
			}
			return withApp(cfg, newRunID(), func(ctx context.Context, app *application) error {
				res, err := app.Teardown.Teardown(ctx, req)
				if res != nil {
					if rerr := teardown.Render(os.Stdout, res, c.String("output")); rerr != nil {
						return rerr
					}
				}
				return err
			})
		},
	}
}

// teardownRequest merges a stored run with explicit flags; flags win.
func teardownRequest(c *cli.Context, p *paths.Paths) (teardown.Request, error) {
	var req teardown.Request
	if runID := c.String("run"); runID != "" {
		prev, err := run.Load(p, runID)
		if err != nil {
			return req, fmt.Errorf("load run %s: %w", runID, err)
		}
		req.Name = prev.Request.Provision.Name
		req.Cluster = prev.Request.Cluster
		req.DatastoreName = prev.Request.DatastoreName
	}
	if c.IsSet("name") {
		req.Name = c.String("name")
	}
	if c.IsSet("cluster") {
		req.Cluster = c.String("cluster")
	}
	if c.IsSet("datastore") {
		req.DatastoreName = c.String("datastore")
	}
	req.Eradicate = c.Bool("eradicate")
	if req.Name == "" {
		return req, cli.Exit("--name or --run is required", 2)
	}
	return req, nil
}
