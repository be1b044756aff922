package api

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nimbusdrive/nimbus-go/session"
	"github.com/nimbusdrive/nimbus-go/types"
)

func startBackend(t *testing.T) (*Server, *httptest.Server, *session.Client) {
	t.Helper()
	backend := NewServer(0, 100, nil)
	srv := httptest.NewServer(backend.Engine())
	t.Cleanup(srv.Close)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	client, err := session.NewClient(session.Config{
		ServerURL:  srv.URL,
		HTTPClient: &http.Client{Jar: jar},
	})
	require.NoError(t, err)
	return backend, srv, client
}

func pngSource(name string, data []byte) types.FileSource {
	return types.FileSource{
		Name: name,
		MIME: "image/png",
		Size: int64(len(data)),
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(data)), nil
		},
	}
}

func TestAuthFlow(t *testing.T) {
	_, srv, client := startBackend(t)
	ctx := context.Background()

	user, err := client.Login(ctx, "alice", "secret")
	require.NoError(t, err)
	assert.Equal(t, "alice@nimbus.local", user.Email)

	me, err := client.Me(ctx)
	require.NoError(t, err)
	assert.Equal(t, "alice", me.Name)

	require.NoError(t, client.Logout(ctx))

	// Without cookies the protected routes answer 401.
	resp, err := http.Get(srv.URL + "/api/v1/files")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestLoginValidation(t *testing.T) {
	_, srv, _ := startBackend(t)

	resp, err := http.Post(srv.URL+"/api/v1/auth/login", "application/json",
		strings.NewReader(`{"username":"","password":""}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

// Dropping every access token server-side forces the next call into the 401
// refresh retry path; with a live refresh cookie the call still succeeds.
func TestExpiredAccessTokenIsRefreshedTransparently(t *testing.T) {
	backend, _, client := startBackend(t)
	ctx := context.Background()

	_, err := client.Login(ctx, "bob", "pw")
	require.NoError(t, err)

	backend.Store().ExpireAllAccess()

	files, err := client.ListFiles(ctx)
	require.NoError(t, err, "an expired access token must be refreshed, not surfaced")
	assert.Empty(t, files)
}

func TestFileLifecycle(t *testing.T) {
	_, _, client := startBackend(t)
	ctx := context.Background()
	_, err := client.Login(ctx, "carol", "pw")
	require.NoError(t, err)

	rec, err := client.Upload(ctx, pngSource("photo.png", []byte("png-ish payload")), 800, 600)
	require.NoError(t, err)
	assert.NotEmpty(t, rec.FileID)
	assert.Equal(t, "image", rec.FileType)
	assert.Equal(t, 800, rec.Width)
	assert.Equal(t, "/share/"+rec.FileID, rec.ShareURL)

	files, err := client.ListFiles(ctx)
	require.NoError(t, err)
	require.Len(t, files, 1)

	// Soft delete moves the record out of the library and into the bin.
	require.NoError(t, client.SoftDelete(ctx, rec.FileID))
	files, err = client.ListFiles(ctx)
	require.NoError(t, err)
	assert.Empty(t, files)

	bin, err := client.ListBin(ctx)
	require.NoError(t, err)
	require.Len(t, bin, 1)
	assert.Equal(t, rec.FileID, bin[0].FileID)
	assert.False(t, bin[0].DeletedAt.IsZero())

	// Restore brings it back and empties the bin.
	require.NoError(t, client.Restore(ctx, rec.FileID))
	files, err = client.ListFiles(ctx)
	require.NoError(t, err)
	require.Len(t, files, 1)
	bin, err = client.ListBin(ctx)
	require.NoError(t, err)
	assert.Empty(t, bin)

	// Restoring a live file is a client error.
	err = client.Restore(ctx, rec.FileID)
	assert.True(t, session.IsServer(err))

	// Purge requires the record to be in the bin first; repeated purges are
	// absorbed client-side.
	require.NoError(t, client.SoftDelete(ctx, rec.FileID))
	require.NoError(t, client.Purge(ctx, rec.FileID))
	require.NoError(t, client.Purge(ctx, rec.FileID))

	files, err = client.ListFiles(ctx)
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestUploadRejectsUnsupportedType(t *testing.T) {
	_, _, client := startBackend(t)
	ctx := context.Background()
	_, err := client.Login(ctx, "dave", "pw")
	require.NoError(t, err)

	_, err = client.Upload(ctx, types.FileSource{
		Name: "tool.exe",
		MIME: "application/x-msdownload",
		Size: 12,
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader([]byte("MZ..."))), nil
		},
	}, 0, 0)

	var apiErr *session.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.Status)
	assert.Contains(t, apiErr.Message, "Unsupported file type")
}

func TestGetFileNotFound(t *testing.T) {
	_, _, client := startBackend(t)
	ctx := context.Background()
	_, err := client.Login(ctx, "erin", "pw")
	require.NoError(t, err)

	_, err = client.GetFile(ctx, "nope")
	var apiErr *session.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.Status)
	assert.Equal(t, "File not found", apiErr.Message)
}
