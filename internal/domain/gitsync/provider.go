package gitsync

import (
	"context"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/hashicorp/go-retryablehttp"
)

// File identifies the remote snapshot location within a provider.
type File struct {
	Owner  string
	Repo   string
	Path   string
	Branch string
}

// RepoInfo is the result of a repository existence check.
type RepoInfo struct {
	Exists        bool
	DefaultBranch string
}

// FileState is the result of a file existence check. SHA is required for a
// conditional update of an existing file.
type FileState struct {
	Exists bool
	SHA    string
}

// Provider is the capability a Git-hosting service must expose for snapshot
// sync. Implementations are stateless; the token is passed per call because
// it lives in the settings store and may change between runs.
type Provider interface {
	// Name is the provider key used in settings ("gitee", "github").
	Name() string

	// DefaultBranch is the branch a freshly created repository starts on.
	DefaultBranch() string

	// ValidateUser checks the token and returns the remote username. A 401
	// yields AuthError, any other non-2xx TokenValidationError.
	ValidateUser(ctx context.Context, token string) (string, error)

	// RepoExists reports whether owner/repo exists, capturing its default
	// branch when it does. A 404 is not an error.
	RepoExists(ctx context.Context, token, owner, repo string) (RepoInfo, error)

	// CreateRepo creates a public auto-initialized repository. An
	// already-exists response is success, covering the race between check
	// and create.
	CreateRepo(ctx context.Context, token, name, description string) error

	// GetFileState reports whether the file exists and its current SHA.
	GetFileState(ctx context.Context, token string, f File) (FileState, error)

	// Upload writes base64-encoded content to the file, conditionally on
	// state.SHA when the file already exists.
	Upload(ctx context.Context, token string, f File, state FileState, contentB64, message string) error

	// Download fetches and base64-decodes the file content. A missing file
	// yields NotFoundError.
	Download(ctx context.Context, token string, f File) ([]byte, error)
}

// newRestClient builds the resty client shared by provider implementations,
// with a retrying transport for transient network failures.
func newRestClient(baseURL string) *resty.Client {
	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = 3
	retryClient.RetryWaitMin = 1 * time.Second
	retryClient.RetryWaitMax = 10 * time.Second
	retryClient.Logger = nil

	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(30 * time.Second).
		SetHeader("User-Agent", "marksyncy-sync/1.0")
	client.SetTransport(retryClient.HTTPClient.Transport)
	return client
}
