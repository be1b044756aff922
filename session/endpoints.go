package session

import (
	"context"
	"errors"
	"net/http"

	"github.com/nimbusdrive/nimbus-go/types"
)

// Typed wrappers over the drive API. Everything funnels through Call, so the
// refresh and retry policy applies uniformly.

// LoginRequest carries the credentials accepted by the dev backend. Against the
// production identity provider the browser performs this step instead.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (c *Client) Login(ctx context.Context, username, password string) (*types.UserProfile, error) {
	var out struct {
		Message string            `json:"message"`
		User    types.UserProfile `json:"user"`
	}
	if err := c.Call(ctx, http.MethodPost, "/auth/login", LoginRequest{Username: username, Password: password}, &out); err != nil {
		return nil, err
	}
	return &out.User, nil
}

func (c *Client) Logout(ctx context.Context) error {
	return c.Call(ctx, http.MethodPost, "/auth/logout", nil, nil)
}

func (c *Client) Me(ctx context.Context) (*types.UserProfile, error) {
	var out types.UserProfile
	if err := c.Call(ctx, http.MethodGet, "/auth/me", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ListFiles(ctx context.Context) ([]types.FileRecord, error) {
	var out types.FileListResponse
	if err := c.Call(ctx, http.MethodGet, "/files", nil, &out); err != nil {
		return nil, err
	}
	return out.Files, nil
}

func (c *Client) GetFile(ctx context.Context, fileID string) (*types.FileRecord, error) {
	var out types.FileRecord
	if err := c.Call(ctx, http.MethodGet, "/files/"+fileID, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SoftDelete moves a file to the recycle bin.
func (c *Client) SoftDelete(ctx context.Context, fileID string) error {
	return c.Call(ctx, http.MethodDelete, "/files/"+fileID, nil, nil)
}

// ListBin returns the soft-deleted records.
func (c *Client) ListBin(ctx context.Context) ([]types.DeletedRecord, error) {
	var out types.BinListResponse
	if err := c.Call(ctx, http.MethodGet, "/recycle-bin", nil, &out); err != nil {
		return nil, err
	}
	return out.Files, nil
}

// Restore moves a soft-deleted file back to the library.
func (c *Client) Restore(ctx context.Context, fileID string) error {
	return c.Call(ctx, http.MethodPost, "/recycle-bin/"+fileID+"/restore", nil, nil)
}

// Purge permanently deletes a recycle-bin record. Purging is idempotent: a
// not-found on a repeated attempt counts as success.
func (c *Client) Purge(ctx context.Context, fileID string) error {
	err := c.Call(ctx, http.MethodDelete, "/recycle-bin/"+fileID, nil, nil)
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Kind == KindServer && apiErr.Status == http.StatusNotFound {
		return nil
	}
	return err
}
