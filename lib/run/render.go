package run

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/ghodss/yaml"
	"github.com/onkernel/nasattach/lib/compute"
)

// Output formats accepted by Render.
const (
	FormatText = "text"
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// Render writes res to w in the given format.
func Render(w io.Writer, res *Result, format string) error {
	switch strings.ToLower(format) {
	case "", FormatText:
		return renderText(w, res)
	case FormatJSON:
		data, err := json.MarshalIndent(res, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, string(data))
		return err
	case FormatYAML:
		data, err := yaml.Marshal(res)
		if err != nil {
			return err
		}
		_, err = w.Write(data)
		return err
	}
	return fmt.Errorf("unknown output format %q", format)
}

func renderText(w io.Writer, res *Result) error {
	var b strings.Builder
	fmt.Fprintf(&b, "Run %s: %s (%s)\n", res.RunID, res.Status, res.Duration().Round(time.Millisecond))
	if res.Error != "" {
		fmt.Fprintf(&b, "  error: %s\n", res.Error)
	}

	if prov := res.Provisioning; prov != nil {
		req := prov.Request
		fmt.Fprintf(&b, "\nFile system %s (%s)\n", req.Name, req.Protocol)
		if res.Export != nil {
			fmt.Fprintf(&b, "  export:   %s\n", res.Export.Path)
		}
		var bound []string
		for _, binding := range prov.Bindings {
			bound = append(bound, string(binding.Kind))
		}
		fmt.Fprintf(&b, "  policies: %s\n", strings.Join(bound, ", "))
		for _, warning := range prov.Warnings() {
			fmt.Fprintf(&b, "  warning:  %s: %s\n", warning.Step, warning.Error)
		}
	}

	if _, err := io.WriteString(w, b.String()); err != nil {
		return err
	}

	report := res.Mounts
	if report == nil {
		return nil
	}
	fmt.Fprintf(w, "\nCluster %s: %d/%d hosts mounted %s\n", report.Cluster, report.Mounted, report.Total(), report.Datastore)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "  HOST\tVERSION\tSTATUS\tCAPACITY\tFREE\tDETAIL")
	for _, o := range report.Outcomes {
		capacity, free, detail := "-", "-", o.Detail
		if o.Status == compute.StatusMounted {
			capacity = humanize.IBytes(uint64(o.CapacityBytes))
			free = humanize.IBytes(uint64(o.FreeBytes))
		} else {
			detail = o.Error
		}
		fmt.Fprintf(tw, "  %s\t%s\t%s\t%s\t%s\t%s\n", o.Host, o.Version, o.Status, capacity, free, detail)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	for _, d := range report.Diagnostics {
		mark := "ok"
		if !d.OK {
			mark = "!!"
		}
		fmt.Fprintf(w, "  [%s] %s on %s: %s\n", mark, d.Kind, d.Host, d.Summary)
	}
	return nil
}
