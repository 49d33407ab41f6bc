// Package discovery gathers the parameters a provisioning run needs: the
// hosts of a cluster and whatever already exists on the array for a name.
package discovery

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/ghodss/yaml"
	"github.com/onkernel/nasattach/lib/compute"
	"github.com/onkernel/nasattach/lib/logger"
	"github.com/onkernel/nasattach/lib/storage"
	"github.com/samber/lo"
)

// Request selects what to look up. Either field may be empty.
type Request struct {
	Cluster string
	Name    string
}

// Host is one cluster member as seen for provisioning.
type Host struct {
	Name         string `json:"name"`
	Version      string `json:"version"`
	Build        string `json:"build"`
	MultiSession bool   `json:"multi_session"`
}

// Report is the discovery output.
type Report struct {
	Cluster    string                    `json:"cluster,omitempty"`
	Hosts      []Host                    `json:"hosts,omitempty"`
	Name       string                    `json:"name,omitempty"`
	FileSystem *storage.FileSystemHandle `json:"file_system,omitempty"`
	Export     *storage.ExportDescriptor `json:"export,omitempty"`
	// Note explains why FileSystem or Export is missing.
	Note string `json:"note,omitempty"`
}

// MultiSessionHosts counts hosts that accept more than one NFS session.
func (r *Report) MultiSessionHosts() int {
	return lo.CountBy(r.Hosts, func(h Host) bool { return h.MultiSession })
}

// Discoverer reads cluster and array state without changing either.
type Discoverer struct {
	storage    storage.Client
	compute    compute.Client
	minVersion string
}

// New creates a Discoverer. Either client may be nil when the matching
// request field is never set.
func New(storageClient storage.Client, computeClient compute.Client, minVersion string) *Discoverer {
	return &Discoverer{storage: storageClient, compute: computeClient, minVersion: minVersion}
}

// Discover fills a Report. A missing file system is reported in Note, not
// as an error; a missing cluster is an error.
func (d *Discoverer) Discover(ctx context.Context, req Request) (*Report, error) {
	log := logger.FromContext(ctx)
	report := &Report{Cluster: req.Cluster, Name: req.Name}

	if req.Cluster != "" {
		if d.compute == nil {
			return nil, fmt.Errorf("cluster lookup needs a compute client")
		}
		target, err := d.compute.ResolveCluster(ctx, req.Cluster)
		if err != nil {
			return nil, fmt.Errorf("resolve cluster %s: %w", req.Cluster, err)
		}
		report.Hosts = lo.Map(target.Hosts, func(h compute.HostHandle, _ int) Host {
			ok, err := compute.SupportsMultiSession(h.Version, d.minVersion)
			if err != nil {
				log.WarnContext(ctx, "cannot parse host version", "host", h.Name, "version", h.Version, "error", err)
			}
			return Host{Name: h.Name, Version: h.Version, Build: h.Build, MultiSession: ok}
		})
	}

	if req.Name != "" {
		if d.storage == nil {
			return nil, fmt.Errorf("file system lookup needs a storage client")
		}
		if err := d.discoverFileSystem(ctx, report); err != nil {
			return nil, err
		}
	}
	return report, nil
}

func (d *Discoverer) discoverFileSystem(ctx context.Context, report *Report) error {
	fs, err := d.storage.GetFileSystem(ctx, report.Name)
	if errors.Is(err, storage.ErrNotFound) {
		report.Note = fmt.Sprintf("file system %s does not exist", report.Name)
		return nil
	}
	if err != nil {
		return fmt.Errorf("get file system %s: %w", report.Name, err)
	}
	if fs.Directory == "" {
		dir, err := d.storage.GetManagedDirectory(ctx, report.Name)
		if err != nil {
			return fmt.Errorf("get managed directory: %w", err)
		}
		fs.Directory = dir
	}
	report.FileSystem = fs

	export, err := d.storage.ResolveExport(ctx, fs.Directory)
	switch {
	case errors.Is(err, storage.ErrNotBound):
		report.Note = fmt.Sprintf("directory %s has no export", fs.Directory)
	case err != nil:
		return fmt.Errorf("resolve export: %w", err)
	default:
		report.Export = export
	}
	return nil
}

// Render writes the report as text, json or yaml.
func Render(w io.Writer, r *Report, format string) error {
	switch strings.ToLower(format) {
	case "", "text":
	case "json":
		data, err := json.MarshalIndent(r, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, string(data))
		return err
	case "yaml":
		data, err := yaml.Marshal(r)
		if err != nil {
			return err
		}
		_, err = w.Write(data)
		return err
	default:
		return fmt.Errorf("unknown output format %q", format)
	}

	if r.Cluster != "" {
		fmt.Fprintf(w, "Cluster %s: %d hosts, %d multi-session capable\n", r.Cluster, len(r.Hosts), r.MultiSessionHosts())
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "  HOST\tVERSION\tBUILD\tMULTI-SESSION")
		for _, h := range r.Hosts {
			fmt.Fprintf(tw, "  %s\t%s\t%s\t%t\n", h.Name, h.Version, h.Build, h.MultiSession)
		}
		if err := tw.Flush(); err != nil {
			return err
		}
	}
	if r.Name != "" {
		fmt.Fprintf(w, "File system %s\n", r.Name)
		if r.FileSystem != nil {
			fmt.Fprintf(w, "  directory: %s\n", r.FileSystem.Directory)
		}
		if r.Export != nil {
			fmt.Fprintf(w, "  export:    %s (%s)\n", r.Export.Path, r.Export.Name)
		}
		if r.Note != "" {
			fmt.Fprintf(w, "  note:      %s\n", r.Note)
		}
	}
	return nil
}
