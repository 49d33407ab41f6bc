package flasharray

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/onkernel/nasattach/lib/storage"
)

type nfsClientRule struct {
	Client     string `json:"client"`
	Access     string `json:"access"`
	Permission string `json:"permission"`
	NFSVersion string `json:"nfs_version"`
}

type quotaRule struct {
	QuotaLimit int64 `json:"quota_limit"`
	Enforced   bool  `json:"enforced"`
}

type snapshotRule struct {
	ClientName string `json:"client_name"`
	Every      int64  `json:"every"`
	KeepFor    int64  `json:"keep_for"`
}

type rulesBody[T any] struct {
	Rules []T `json:"rules"`
}

// nfsVersionParam maps a protocol version to the array's rule vocabulary.
func nfsVersionParam(v storage.ProtocolVersion) string {
	if v == storage.ProtocolV41 {
		return "nfsv4"
	}
	return "nfsv3"
}

func (c *Client) createPolicy(ctx context.Context, op, kind, name string) error {
	return c.do(ctx, op, http.MethodPost, "/policies/"+kind, names("names", name), nil, nil)
}

func (c *Client) bindPolicy(ctx context.Context, op, kind, directory, policyName string) error {
	q := url.Values{}
	q.Set("member_names", directory)
	q.Set("policy_names", policyName)
	return c.do(ctx, op, http.MethodPost, "/directories/policies/"+kind, q, nil, nil)
}

func (c *Client) CreateExportPolicy(ctx context.Context, name string) error {
	return c.createPolicy(ctx, "CreateExportPolicy", "nfs", name)
}

func (c *Client) AddExportRule(ctx context.Context, policyName string, rule storage.ExportRule) error {
	body := rulesBody[nfsClientRule]{Rules: []nfsClientRule{{
		Client:     rule.Client,
		Access:     rule.Access,
		Permission: rule.Permission,
		NFSVersion: nfsVersionParam(rule.Protocol),
	}}}
	return c.do(ctx, "AddExportRule", http.MethodPost, "/policies/nfs/client-rules", names("policy_names", policyName), body, nil)
}

func (c *Client) CreateQuotaPolicy(ctx context.Context, name string) error {
	return c.createPolicy(ctx, "CreateQuotaPolicy", "quota", name)
}

func (c *Client) AddQuotaRule(ctx context.Context, policyName string, limitBytes int64) error {
	body := rulesBody[quotaRule]{Rules: []quotaRule{{QuotaLimit: limitBytes, Enforced: true}}}
	return c.do(ctx, "AddQuotaRule", http.MethodPost, "/policies/quota/rules", names("policy_names", policyName), body, nil)
}

func (c *Client) BindQuotaPolicy(ctx context.Context, directory, policyName string) error {
	return c.bindPolicy(ctx, "BindQuotaPolicy", "quota", directory, policyName)
}

func (c *Client) CreateSnapshotPolicy(ctx context.Context, name string) error {
	return c.createPolicy(ctx, "CreateSnapshotPolicy", "snapshot", name)
}

// AddSnapshotRule sends interval and retention in milliseconds.
func (c *Client) AddSnapshotRule(ctx context.Context, policyName, clientLabel string, interval, retention time.Duration) error {
	body := rulesBody[snapshotRule]{Rules: []snapshotRule{{
		ClientName: clientLabel,
		Every:      interval.Milliseconds(),
		KeepFor:    retention.Milliseconds(),
	}}}
	return c.do(ctx, "AddSnapshotRule", http.MethodPost, "/policies/snapshot/rules", names("policy_names", policyName), body, nil)
}

func (c *Client) BindSnapshotPolicy(ctx context.Context, directory, policyName string) error {
	return c.bindPolicy(ctx, "BindSnapshotPolicy", "snapshot", directory, policyName)
}

func (c *Client) CreateAutodirPolicy(ctx context.Context, name string) error {
	return c.createPolicy(ctx, "CreateAutodirPolicy", "autodir", name)
}

func (c *Client) BindAutodirPolicy(ctx context.Context, directory, policyName string) error {
	return c.bindPolicy(ctx, "BindAutodirPolicy", "autodir", directory, policyName)
}
