package main

import (
	"context"
	"os"

	"github.com/onkernel/nasattach/cmd/nasattach/config"
	"github.com/onkernel/nasattach/lib/logger"
	"github.com/onkernel/nasattach/lib/provisioning"
	"github.com/onkernel/nasattach/lib/run"
	"github.com/onkernel/nasattach/lib/storage"
	"github.com/urfave/cli/v2"
)

func provisionCommand(cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:  "provision",
		Usage: "create the file system, its policies and export, then mount it cluster-wide",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "name", Required: true, Usage: "file system, export and policy name"},
			&cli.StringFlag{Name: "cluster", Required: true, Usage: "cluster to mount on"},
			&cli.StringFlag{Name: "datastore", Usage: "datastore name (default: --name)"},
			&cli.StringFlag{Name: "protocol", Value: string(storage.ProtocolV3), Usage: "NFS protocol: v3 or v4.1"},
			&cli.IntFlag{Name: "sessions", Value: 1, Usage: "parallel NFS sessions per mount (v4.1)"},
			&cli.BoolFlag{Name: "quota", Usage: "add a hard quota policy"},
			&cli.StringFlag{Name: "capacity", Usage: "quota limit, e.g. 10TB"},
			&cli.BoolFlag{Name: "snapshot", Usage: "add a snapshot policy"},
			&cli.DurationFlag{Name: "snapshot-interval", Value: provisioning.DefaultSnapshotInterval, Usage: "snapshot cadence"},
			&cli.DurationFlag{Name: "snapshot-retention", Value: provisioning.DefaultSnapshotRetention, Usage: "snapshot retention"},
			&cli.StringFlag{Name: "snapshot-label", Value: provisioning.DefaultSnapshotClientLabel, Usage: "snapshot client label"},
			&cli.StringFlag{Name: "export-client", Value: provisioning.DefaultExportClient, Usage: "export rule client pattern"},
			outputFlag(),
		},
		Action: func(c *cli.Context) error {
			req := run.Request{
				RunID: newRunID(),
				Provision: provisioning.Request{
					Name:            c.String("name"),
					Capacity:        c.String("capacity"),
					Protocol:        storage.ProtocolVersion(c.String("protocol")),
					QuotaEnabled:    c.Bool("quota"),
					SnapshotEnabled: c.Bool("snapshot"),
					Snapshot: provisioning.SnapshotSchedule{
						Interval:    c.Duration("snapshot-interval"),
						Retention:   c.Duration("snapshot-retention"),
						ClientLabel: c.String("snapshot-label"),
					},
					Export: provisioning.ExportAccess{Client: c.String("export-client")},
				},
				Cluster:          c.String("cluster"),
				DatastoreName:    c.String("datastore"),
				ParallelSessions: c.Int("sessions"),
			}

			// Reject bad input before any connection is made.
			if err := req.Provision.WithDefaults().Validate(); err != nil {
				return err
			}

			var code int
			err := withApp(cfg, req.RunID, func(ctx context.Context, app *application) error {
				res, err := app.Coordinator.Run(ctx, req)
				if err != nil {
					return err
				}
				logger.FromContext(ctx).InfoContext(ctx, "run finished",
					"status", res.Status, "result", app.Paths.RunResult(res.RunID))
				code = res.ExitCode()
				return run.Render(os.Stdout, res, c.String("output"))
			})
			if err != nil {
				return err
			}
			return exitCode(code)
		},
	}
}
