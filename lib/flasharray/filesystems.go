package flasharray

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/onkernel/nasattach/lib/storage"
)

type fileSystem struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Created   int64  `json:"created"`
	Destroyed bool   `json:"destroyed"`
}

type directory struct {
	Name          string    `json:"name"`
	Path          string    `json:"path"`
	DirectoryName string    `json:"directory_name"`
	FileSystem    reference `json:"file_system"`
}

type reference struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name"`
}

// rootDirectorySuffix names the implicit directory created with every file system.
const rootDirectorySuffix = ":root"

func (fs fileSystem) handle() *storage.FileSystemHandle {
	h := &storage.FileSystemHandle{
		Name:      fs.Name,
		ID:        fs.ID,
		Directory: fs.Name + rootDirectorySuffix,
	}
	if fs.Created > 0 {
		h.Created = time.UnixMilli(fs.Created)
	}
	return h
}

// CreateFileSystem creates a file system; the array creates its root directory alongside.
func (c *Client) CreateFileSystem(ctx context.Context, name string) (*storage.FileSystemHandle, error) {
	var resp listResponse[fileSystem]
	if err := c.do(ctx, "CreateFileSystem", http.MethodPost, "/file-systems", names("names", name), nil, &resp); err != nil {
		return nil, err
	}
	if len(resp.Items) == 0 {
		return (&fileSystem{Name: name}).handle(), nil
	}
	return resp.Items[0].handle(), nil
}

// GetFileSystem looks up a file system by name, including destroyed (pending eradication) ones.
func (c *Client) GetFileSystem(ctx context.Context, name string) (*storage.FileSystemHandle, error) {
	var resp listResponse[fileSystem]
	if err := c.do(ctx, "GetFileSystem", http.MethodGet, "/file-systems", names("names", name), nil, &resp); err != nil {
		return nil, err
	}
	if len(resp.Items) == 0 {
		return nil, storage.NewError(storage.KindNotFound, "GetFileSystem", fmt.Sprintf("file system %q does not exist", name))
	}
	return resp.Items[0].handle(), nil
}

// GetManagedDirectory returns the root managed directory of a file system.
func (c *Client) GetManagedDirectory(ctx context.Context, fsName string) (string, error) {
	var resp listResponse[directory]
	if err := c.do(ctx, "GetManagedDirectory", http.MethodGet, "/directories", names("file_system_names", fsName), nil, &resp); err != nil {
		return "", err
	}
	for _, d := range resp.Items {
		if strings.HasSuffix(d.Name, rootDirectorySuffix) || d.Path == "/" {
			return d.Name, nil
		}
	}
	return "", storage.NewError(storage.KindNotFound, "GetManagedDirectory", fmt.Sprintf("file system %q has no root directory", fsName))
}

// RemoveFileSystem destroys a file system and, when eradicate is set, purges it.
func (c *Client) RemoveFileSystem(ctx context.Context, name string, eradicate bool) error {
	patch := map[string]any{"destroyed": true}
	if err := c.do(ctx, "RemoveFileSystem", http.MethodPatch, "/file-systems", names("names", name), patch, nil); err != nil {
		return err
	}
	if !eradicate {
		return nil
	}
	return c.do(ctx, "RemoveFileSystem", http.MethodDelete, "/file-systems", names("names", name), nil, nil)
}
