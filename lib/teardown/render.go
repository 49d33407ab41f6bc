package teardown

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/ghodss/yaml"
)

// Render writes the result as text, json or yaml.
func Render(w io.Writer, res *Result, format string) error {
	switch strings.ToLower(format) {
	case "", "text":
		return renderText(w, res)
	case "json":
		data, err := json.MarshalIndent(res, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, string(data))
		return err
	case "yaml":
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
	if len(res.Hosts) > 0 {
		fmt.Fprintf(w, "Datastore %s on %s: %d/%d hosts clean\n",
			res.Request.DatastoreName, res.Request.Cluster, len(res.Hosts)-res.Failed(), len(res.Hosts))
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "  HOST\tSTATUS\tERROR")
		for _, h := range res.Hosts {
			fmt.Fprintf(tw, "  %s\t%s\t%s\n", h.Host, h.Status, h.Error)
		}
		if err := tw.Flush(); err != nil {
			return err
		}
	}
	state := "kept"
	if res.FileSystemRemoved {
		state = "destroyed"
		if res.Request.Eradicate {
			state = "eradicated"
		}
	}
	_, err := fmt.Fprintf(w, "File system %s: %s\n", res.Request.Name, state)
	return err
}
