package flasharray

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/onkernel/nasattach/lib/storage"
)

type directoryExport struct {
	ExportName string    `json:"export_name"`
	Path       string    `json:"path"`
	Enabled    bool      `json:"enabled"`
	Directory  reference `json:"directory"`
	Policy     reference `json:"policy"`
	PolicyType string    `json:"policy_type"`
}

type exportBody struct {
	ExportName string `json:"export_name"`
}

// BindExportPolicy exports directory under exportName using the given NFS policy.
func (c *Client) BindExportPolicy(ctx context.Context, directory, policyName, exportName string) error {
	q := url.Values{}
	q.Set("directory_names", directory)
	q.Set("policy_names", policyName)
	return c.do(ctx, "BindExportPolicy", http.MethodPost, "/directory-exports", q, exportBody{ExportName: exportName}, nil)
}

// ResolveExport returns the mountable path of the directory's NFS export.
func (c *Client) ResolveExport(ctx context.Context, directory string) (*storage.ExportDescriptor, error) {
	var resp listResponse[directoryExport]
	if err := c.do(ctx, "ResolveExport", http.MethodGet, "/directory-exports", names("directory_names", directory), nil, &resp); err != nil {
		if storage.KindOf(err) == storage.KindNotFound {
			return nil, storage.NewError(storage.KindNotBound, "ResolveExport", fmt.Sprintf("directory %q has no export", directory))
		}
		return nil, err
	}

	for _, e := range resp.Items {
		if e.PolicyType != "" && e.PolicyType != "nfs" {
			continue
		}
		return &storage.ExportDescriptor{
			Name: e.ExportName,
			Path: e.Path,
		}, nil
	}
	return nil, storage.NewError(storage.KindNotBound, "ResolveExport", fmt.Sprintf("directory %q has no export", directory))
}
