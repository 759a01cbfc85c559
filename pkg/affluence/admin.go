package affluence

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/me/affluence/pkg/session"
)

// AdminPath prefixes path with /admin unless it already has it.
func AdminPath(path string) string {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	if path != "/admin" && !strings.HasPrefix(path, "/admin/") {
		path = "/admin" + path
	}
	return path
}

// LogEntry is an admin audit log record.
type LogEntry struct {
	ID        ID     `json:"id"`
	AdminID   ID     `json:"admin_id,omitempty"`
	Action    string `json:"action"`
	Details   string `json:"details,omitempty"`
	CreatedAt Time   `json:"created_at"`
}

// AdminDashboard returns platform-wide statistics.
func (c *Client) AdminDashboard(ctx context.Context) (map[string]any, error) {
	var out map[string]any
	if err := c.Get(ctx, AdminPath("/dashboard"), &out); err != nil {
		return nil, err
	}
	return out, nil
}

// AdminUsers returns one page of users, optionally filtered by role.
func (c *Client) AdminUsers(ctx context.Context, skip, limit int, role string) ([]User, error) {
	q := pageQuery(skip, limit)
	if role != "" {
		q.Set("role", role)
	}
	var out []User
	if err := c.Get(ctx, AdminPath("/users"), &out, WithQuery(q)); err != nil {
		return nil, err
	}
	return out, nil
}

// AdminUser returns a single user.
func (c *Client) AdminUser(ctx context.Context, id string) (*User, error) {
	var u User
	if err := c.Get(ctx, AdminPath("/users/"+url.PathEscape(id)), &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// UpdateUserRole changes a user's role.
func (c *Client) UpdateUserRole(ctx context.Context, id, role string) error {
	if strings.TrimSpace(role) == "" {
		return invalid("role", "Please select a role")
	}
	return c.Put(ctx, AdminPath("/users/"+url.PathEscape(id)+"/role"), map[string]string{"role": role}, nil)
}

// UpdateUserStatus enables or disables a user account.
func (c *Client) UpdateUserStatus(ctx context.Context, id string, active bool) error {
	return c.Put(ctx, AdminPath("/users/"+url.PathEscape(id)+"/status"), map[string]bool{"is_active": active}, nil)
}

// DeleteUser removes a user account.
func (c *Client) DeleteUser(ctx context.Context, id string) error {
	return c.Delete(ctx, AdminPath("/users/"+url.PathEscape(id)), nil)
}

// Impersonate switches the session to the given user while keeping the
// admin token as a backup. It returns the stored impersonation meta.
func (c *Client) Impersonate(ctx context.Context, userID string) (*session.Meta, error) {
	if err := c.requireSession(ctx); err != nil {
		return nil, err
	}
	var resp map[string]any
	if err := c.Post(ctx, AdminPath("/impersonate/"+url.PathEscape(userID)), nil, &resp); err != nil {
		return nil, err
	}
	if err := c.session.StartImpersonationFromResponse(ctx, resp); err != nil {
		return nil, fmt.Errorf("start impersonation: %w", err)
	}
	return c.session.ImpersonationMeta(ctx), nil
}

// StopImpersonation restores the admin session. See session.Manager.
func (c *Client) StopImpersonation(ctx context.Context) (bool, error) {
	return c.session.StopImpersonation(ctx)
}

// AdminWithdrawals returns one page of all users' withdrawals, optionally
// filtered by status.
func (c *Client) AdminWithdrawals(ctx context.Context, skip, limit int, status WithdrawalStatus) ([]Withdrawal, error) {
	q := pageQuery(skip, limit)
	if status != "" {
		if !status.Valid() {
			return nil, invalid("status", fmt.Sprintf("unknown withdrawal status %q", status))
		}
		q.Set("status", string(status))
	}
	var out []Withdrawal
	if err := c.Get(ctx, AdminPath("/withdrawals"), &out, WithQuery(q)); err != nil {
		return nil, err
	}
	return out, nil
}

// ProcessWithdrawal approves or rejects a pending withdrawal.
func (c *Client) ProcessWithdrawal(ctx context.Context, id string, status WithdrawalStatus, note string) (*Withdrawal, error) {
	if status != WithdrawalApproved && status != WithdrawalRejected {
		return nil, invalid("status", "Status must be approved or rejected")
	}
	body := map[string]string{"status": string(status), "admin_note": note}
	var w Withdrawal
	if err := c.Put(ctx, AdminPath("/withdrawals/"+url.PathEscape(id)+"/approve"), body, &w); err != nil {
		return nil, err
	}
	return &w, nil
}

// AdminLogs returns one page of the admin audit log.
func (c *Client) AdminLogs(ctx context.Context, skip, limit int) ([]LogEntry, error) {
	var out []LogEntry
	if err := c.Get(ctx, AdminPath("/logs"), &out, WithQuery(pageQuery(skip, limit))); err != nil {
		return nil, err
	}
	return out, nil
}

// ClickToEarn returns the click-to-earn task configuration. The backend
// answers with a single object or a list; both come back as a list.
func (c *Client) ClickToEarn(ctx context.Context) ([]map[string]any, error) {
	resp, err := c.Request(ctx, "GET", AdminPath("/click-to-earn"), nil)
	if err != nil {
		return nil, err
	}
	body := bytes.TrimSpace(resp.Body)
	if len(body) > 0 && body[0] == '[' {
		var list []map[string]any
		if err := json.Unmarshal(body, &list); err != nil {
			return nil, fmt.Errorf("unmarshaling click-to-earn: %w", err)
		}
		return list, nil
	}
	var one map[string]any
	if err := resp.Decode(&one); err != nil {
		return nil, err
	}
	if one == nil {
		return nil, nil
	}
	return []map[string]any{one}, nil
}

// UpdateClickToEarn replaces the click-to-earn task configuration.
func (c *Client) UpdateClickToEarn(ctx context.Context, data map[string]any) (map[string]any, error) {
	var out map[string]any
	if err := c.Put(ctx, AdminPath("/click-to-earn"), data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Admin content resources with uniform CRUD endpoints.
const (
	ResourceCoupons       = "coupons"
	ResourceArticles      = "articles"
	ResourceCards         = "cards"
	ResourceAnnouncements = "announcements"
	ResourceTasks         = "tasks"
)

// AdminResources lists the resources served by AdminResource.
var AdminResources = []string{
	ResourceCoupons, ResourceArticles, ResourceCards, ResourceAnnouncements, ResourceTasks,
}

// AdminResource is the CRUD surface of one admin content collection.
// Records are passed through as decoded JSON objects.
type AdminResource struct {
	client *Client
	name   string
}

// Resource returns the CRUD surface for name, which must be one of
// AdminResources.
func (c *Client) Resource(name string) (*AdminResource, error) {
	for _, r := range AdminResources {
		if r == name {
			return &AdminResource{client: c, name: name}, nil
		}
	}
	return nil, fmt.Errorf("unknown admin resource %q", name)
}

// Name returns the resource name.
func (r *AdminResource) Name() string { return r.name }

// List returns one page of records.
func (r *AdminResource) List(ctx context.Context, skip, limit int) ([]map[string]any, error) {
	var out []map[string]any
	if err := r.client.Get(ctx, AdminPath("/"+r.name), &out, WithQuery(pageQuery(skip, limit))); err != nil {
		return nil, err
	}
	return out, nil
}

// Create adds a record and returns it as stored.
func (r *AdminResource) Create(ctx context.Context, data map[string]any) (map[string]any, error) {
	var out map[string]any
	if err := r.client.Post(ctx, AdminPath("/"+r.name), data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Update replaces fields of a record.
func (r *AdminResource) Update(ctx context.Context, id string, data map[string]any) (map[string]any, error) {
	var out map[string]any
	if err := r.client.Put(ctx, AdminPath("/"+r.name+"/"+url.PathEscape(id)), data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Delete removes a record.
func (r *AdminResource) Delete(ctx context.Context, id string) error {
	return r.client.Delete(ctx, AdminPath("/"+r.name+"/"+url.PathEscape(id)), nil)
}
