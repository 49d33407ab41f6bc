package run

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/onkernel/nasattach/lib/attachment"
	"github.com/onkernel/nasattach/lib/compute"
	"github.com/onkernel/nasattach/lib/paths"
	"github.com/onkernel/nasattach/lib/provisioning"
	"github.com/onkernel/nasattach/lib/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockProvisioning struct {
	provisionFunc      func(ctx context.Context, req provisioning.Request) (*provisioning.Result, error)
	provisionCallCount int
}

func (m *mockProvisioning) Provision(ctx context.Context, req provisioning.Request) (*provisioning.Result, error) {
	m.provisionCallCount++
	if m.provisionFunc != nil {
		return m.provisionFunc(ctx, req)
	}
	return &provisioning.Result{
		Request:  req,
		Export:   &storage.ExportDescriptor{Name: req.Name, Path: "/" + req.Name, Protocol: req.Protocol},
		Bindings: []storage.PolicyBinding{{Kind: storage.PolicyExport, Policy: req.Name + "-export"}},
		Steps:    []provisioning.StepResult{{Step: provisioning.StepExportResolved, Outcome: provisioning.OutcomeSuccess}},
		Reached:  provisioning.StepDone,
	}, nil
}

type mockAttachment struct {
	attachFunc      func(ctx context.Context, req attachment.Request) (*attachment.MountReport, error)
	attachCallCount int
	lastRequest     attachment.Request
}

func (m *mockAttachment) Attach(ctx context.Context, req attachment.Request) (*attachment.MountReport, error) {
	m.attachCallCount++
	m.lastRequest = req
	if m.attachFunc != nil {
		return m.attachFunc(ctx, req)
	}
	return report(req, 3, 0), nil
}

func report(req attachment.Request, mounted, failed int) *attachment.MountReport {
	r := &attachment.MountReport{Cluster: req.Cluster, Datastore: req.DatastoreName, Mounted: mounted, Failed: failed}
	for i := 0; i < mounted; i++ {
		r.Outcomes = append(r.Outcomes, attachment.HostOutcome{
			Host: fmt.Sprintf("esx%d", i+1), Version: "8.0.2", Status: compute.StatusMounted,
			CapacityBytes: 10 << 30, FreeBytes: 9 << 30,
		})
	}
	for i := 0; i < failed; i++ {
		r.Outcomes = append(r.Outcomes, attachment.HostOutcome{
			Host: fmt.Sprintf("esx%d", mounted+i+1), Status: compute.StatusFailed, Error: "mount rejected",
		})
	}
	switch {
	case failed == 0:
		r.Status = attachment.StatusSuccess
	case mounted == 0:
		r.Status = attachment.StatusFailed
	default:
		r.Status = attachment.StatusPartialSuccess
	}
	return r
}

func runRequest() Request {
	return Request{
		RunID:     "run1",
		Cluster:   "cluster-a",
		Provision: provisioning.Request{Name: "fs1", Protocol: storage.ProtocolV3},
	}
}

func setupCoordinator(t *testing.T) (*mockProvisioning, *mockAttachment, *Coordinator, *paths.Paths) {
	t.Helper()
	prov := &mockProvisioning{}
	att := &mockAttachment{}
	p := paths.New(t.TempDir())
	c, err := NewCoordinator(prov, att, p, nil, nil)
	require.NoError(t, err)
	return prov, att, c, p
}

func TestRunSuccess(t *testing.T) {
	_, att, c, p := setupCoordinator(t)

	res, err := c.Run(context.Background(), runRequest())
	require.NoError(t, err)

	assert.Equal(t, StatusSuccess, res.Status)
	assert.Equal(t, ExitOK, res.ExitCode())
	assert.Equal(t, "/fs1", res.Export.Path)
	assert.Equal(t, "fs1", att.lastRequest.DatastoreName)
	assert.Equal(t, "/fs1", att.lastRequest.Export.Path)

	saved, err := Load(p, "run1")
	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, saved.Status)
	assert.Equal(t, 3, saved.Mounts.Mounted)
	assert.Equal(t, "cluster-a", saved.Request.Cluster)
}

func TestRunFatalProvisioningSkipsAttachment(t *testing.T) {
	prov, att, c, _ := setupCoordinator(t)
	unreachable := storage.NewError(storage.KindUnreachable, "CreateFileSystem", "connection refused")
	prov.provisionFunc = func(ctx context.Context, req provisioning.Request) (*provisioning.Result, error) {
		return &provisioning.Result{Request: req, Reached: provisioning.StepStart},
			fmt.Errorf("%w at %s: %w", provisioning.ErrAborted, provisioning.StepFileSystemCreated, unreachable)
	}

	res, err := c.Run(context.Background(), runRequest())
	require.NoError(t, err)

	assert.Equal(t, StatusFailed, res.Status)
	assert.Equal(t, ExitFailed, res.ExitCode())
	assert.Contains(t, res.Error, "connection refused")
	assert.Nil(t, res.Mounts)
	assert.Equal(t, 0, att.attachCallCount)
}

func TestRunStatusMapping(t *testing.T) {
	tests := []struct {
		name     string
		mounted  int
		failed   int
		want     Status
		wantExit int
	}{
		{"all mounted", 5, 0, StatusSuccess, ExitOK},
		{"partial", 3, 2, StatusPartialSuccess, ExitOK},
		{"none mounted", 0, 5, StatusFailed, ExitFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, att, c, _ := setupCoordinator(t)
			att.attachFunc = func(ctx context.Context, req attachment.Request) (*attachment.MountReport, error) {
				return report(req, tt.mounted, tt.failed), nil
			}
			res, err := c.Run(context.Background(), runRequest())
			require.NoError(t, err)
			assert.Equal(t, tt.want, res.Status)
			assert.Equal(t, tt.wantExit, res.ExitCode())
		})
	}
}

func TestRunKeepsDegradationsAlongsidePartialSuccess(t *testing.T) {
	prov, att, c, _ := setupCoordinator(t)
	prov.provisionFunc = func(ctx context.Context, req provisioning.Request) (*provisioning.Result, error) {
		return &provisioning.Result{
			Request: req,
			Export:  &storage.ExportDescriptor{Name: req.Name, Path: "/" + req.Name},
			Steps: []provisioning.StepResult{
				{Step: provisioning.StepSnapshotPolicyBound, Outcome: provisioning.OutcomeWarning, Error: "Invalid retention."},
			},
			Reached: provisioning.StepDone,
		}, nil
	}
	att.attachFunc = func(ctx context.Context, req attachment.Request) (*attachment.MountReport, error) {
		return report(req, 3, 2), nil
	}

	res, err := c.Run(context.Background(), runRequest())
	require.NoError(t, err)
	assert.Equal(t, StatusPartialSuccess, res.Status)
	assert.True(t, res.Degraded())

	var out bytes.Buffer
	require.NoError(t, Render(&out, res, FormatText))
	assert.Contains(t, out.String(), "warning:  SnapshotPolicyBound: Invalid retention.")
	assert.Contains(t, out.String(), "3/5 hosts mounted")
	assert.Contains(t, out.String(), "10 GiB")
}

func TestRunAttachmentError(t *testing.T) {
	_, att, c, _ := setupCoordinator(t)
	att.attachFunc = func(ctx context.Context, req attachment.Request) (*attachment.MountReport, error) {
		return nil, fmt.Errorf("resolve cluster %s: %w", req.Cluster, compute.ErrClusterNotFound)
	}

	res, err := c.Run(context.Background(), runRequest())
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, res.Status)
	assert.Equal(t, ExitFailed, res.ExitCode())
	assert.Contains(t, res.Error, "cluster not found")
}

func TestRunRejectsInvalidRequest(t *testing.T) {
	prov, att, c, _ := setupCoordinator(t)
	req := runRequest()
	req.Provision.QuotaEnabled = true

	res, err := c.Run(context.Background(), req)
	assert.ErrorIs(t, err, provisioning.ErrInvalidRequest)
	assert.Nil(t, res)
	assert.Zero(t, prov.provisionCallCount)
	assert.Zero(t, att.attachCallCount)
}

func TestRunGeneratesID(t *testing.T) {
	_, _, c, _ := setupCoordinator(t)
	req := runRequest()
	req.RunID = ""
	req.DatastoreName = "custom-ds"

	res, err := c.Run(context.Background(), req)
	require.NoError(t, err)
	assert.NotEmpty(t, res.RunID)
	assert.Equal(t, "custom-ds", res.Request.DatastoreName)
}

func TestRender(t *testing.T) {
	start := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	res := &Result{
		RunID:      "run1",
		Status:     StatusSuccess,
		Export:     &storage.ExportDescriptor{Name: "fs1", Path: "/fs1"},
		Mounts:     report(attachment.Request{Cluster: "c", DatastoreName: "fs1"}, 1, 0),
		StartedAt:  start,
		FinishedAt: start.Add(2 * time.Second),
	}

	var js bytes.Buffer
	require.NoError(t, Render(&js, res, FormatJSON))
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(js.Bytes(), &decoded))
	assert.Equal(t, "Success", decoded["status"])

	var ym bytes.Buffer
	require.NoError(t, Render(&ym, res, FormatYAML))
	assert.Contains(t, ym.String(), "run_id: run1")

	var txt bytes.Buffer
	require.NoError(t, Render(&txt, res, ""))
	assert.Contains(t, txt.String(), "Run run1: Success (2s)")

	assert.Error(t, Render(&txt, res, "xml"))
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, ExitFailed, (&Result{Status: StatusPartialSuccess}).ExitCode())
	assert.Equal(t, ExitFailed, (&Result{Status: StatusFailed}).ExitCode())
	assert.Equal(t, ExitOK, (&Result{Status: StatusSuccess}).ExitCode())
}
