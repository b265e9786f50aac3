package gitsync

import "fmt"

// AuthError reports a bad or expired access token (HTTP 401 from the
// provider's user endpoint).
type AuthError struct {
	Provider string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("%s rejected the access token", e.Provider)
}

// TokenValidationError reports a non-401 failure while validating the token.
type TokenValidationError struct {
	Status int
}

func (e *TokenValidationError) Error() string {
	return fmt.Sprintf("token validation failed with status %d", e.Status)
}

// RepoCheckError reports a failure while checking repository existence.
type RepoCheckError struct {
	Status int
}

func (e *RepoCheckError) Error() string {
	return fmt.Sprintf("repository check failed with status %d", e.Status)
}

// RepoCreateError reports a failed repository creation. Body carries the
// provider's response for diagnostics.
type RepoCreateError struct {
	Status int
	Body   string
}

func (e *RepoCreateError) Error() string {
	return fmt.Sprintf("repository creation failed with status %d: %s", e.Status, e.Body)
}

// FileCheckError reports a failure while resolving the remote file state.
type FileCheckError struct {
	Status int
}

func (e *FileCheckError) Error() string {
	return fmt.Sprintf("file check failed with status %d", e.Status)
}

// UploadError reports a failed snapshot upload. Body carries the provider's
// response for diagnostics.
type UploadError struct {
	Status int
	Body   string
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("upload failed with status %d: %s", e.Status, e.Body)
}

// DownloadError reports a failure while fetching the remote snapshot.
type DownloadError struct {
	Status int
}

func (e *DownloadError) Error() string {
	return fmt.Sprintf("download failed with status %d", e.Status)
}

// DecodeError reports base64 or UTF-8 corruption in the remote file content.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("failed to decode remote content: %v", e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// NotFoundError reports a missing remote snapshot file.
type NotFoundError struct {
	Path string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("remote file %s does not exist", e.Path)
}
