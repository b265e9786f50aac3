package gitsync

import (
	"context"
	"strings"

	"github.com/go-resty/resty/v2"
)

const githubBaseURL = "https://api.github.com"

// GitHub syncs against github.com. Auth uses the "Bearer <t>" scheme and
// fresh repositories default to the main branch.
type GitHub struct {
	http *resty.Client
}

// NewGitHub returns a provider for the public GitHub API.
func NewGitHub() *GitHub {
	return NewGitHubAt(githubBaseURL)
}

// NewGitHubAt returns a provider pointed at a custom base URL, for tests.
func NewGitHubAt(baseURL string) *GitHub {
	return &GitHub{http: newRestClient(baseURL)}
}

func (g *GitHub) Name() string          { return "github" }
func (g *GitHub) DefaultBranch() string { return "main" }

func (g *GitHub) authHeader(token string) string {
	return "Bearer " + token
}

func (g *GitHub) ValidateUser(ctx context.Context, token string) (string, error) {
	var user struct {
		Login string `json:"login"`
	}
	resp, err := g.http.R().
		SetContext(ctx).
		SetHeader("Authorization", g.authHeader(token)).
		SetHeader("Accept", "application/vnd.github+json").
		SetResult(&user).
		Get("/user")
	if err != nil {
		return "", &TokenValidationError{Status: 0}
	}
	if resp.StatusCode() == 401 {
		return "", &AuthError{Provider: g.Name()}
	}
	if !resp.IsSuccess() {
		return "", &TokenValidationError{Status: resp.StatusCode()}
	}
	return user.Login, nil
}

func (g *GitHub) RepoExists(ctx context.Context, token, owner, repo string) (RepoInfo, error) {
	var body struct {
		DefaultBranch string `json:"default_branch"`
	}
	resp, err := g.http.R().
		SetContext(ctx).
		SetHeader("Authorization", g.authHeader(token)).
		SetHeader("Accept", "application/vnd.github+json").
		SetResult(&body).
		Get("/repos/" + owner + "/" + repo)
	if err != nil {
		return RepoInfo{}, &RepoCheckError{Status: 0}
	}
	if resp.StatusCode() == 404 {
		return RepoInfo{Exists: false}, nil
	}
	if !resp.IsSuccess() {
		return RepoInfo{}, &RepoCheckError{Status: resp.StatusCode()}
	}
	branch := body.DefaultBranch
	if branch == "" {
		branch = g.DefaultBranch()
	}
	return RepoInfo{Exists: true, DefaultBranch: branch}, nil
}

func (g *GitHub) CreateRepo(ctx context.Context, token, name, description string) error {
	resp, err := g.http.R().
		SetContext(ctx).
		SetHeader("Authorization", g.authHeader(token)).
		SetHeader("Accept", "application/vnd.github+json").
		SetBody(map[string]interface{}{
			"name":        name,
			"description": description,
			"private":     false,
			"auto_init":   true,
		}).
		Post("/user/repos")
	if err != nil {
		return &RepoCreateError{Status: 0, Body: err.Error()}
	}
	if resp.IsSuccess() {
		return nil
	}
	// 422 "name already exists on this account" wins the check-then-create
	// race.
	if resp.StatusCode() == 422 && strings.Contains(resp.String(), "name already exists") {
		return nil
	}
	return &RepoCreateError{Status: resp.StatusCode(), Body: resp.String()}
}

func (g *GitHub) GetFileState(ctx context.Context, token string, f File) (FileState, error) {
	resp, err := g.http.R().
		SetContext(ctx).
		SetHeader("Authorization", g.authHeader(token)).
		SetHeader("Accept", "application/vnd.github+json").
		Get("/repos/" + f.Owner + "/" + f.Repo + "/contents/" + f.Path)
	if err != nil {
		return FileState{}, &FileCheckError{Status: 0}
	}
	if resp.StatusCode() == 404 {
		return FileState{Exists: false}, nil
	}
	if !resp.IsSuccess() {
		return FileState{}, &FileCheckError{Status: resp.StatusCode()}
	}
	sha, err := extractSHA(resp.Body())
	if err != nil {
		return FileState{}, &FileCheckError{Status: resp.StatusCode()}
	}
	return FileState{Exists: true, SHA: sha}, nil
}

func (g *GitHub) Upload(ctx context.Context, token string, f File, state FileState, contentB64, message string) error {
	body := map[string]interface{}{
		"content": contentB64,
		"message": message,
		"branch":  f.Branch,
	}
	if state.Exists {
		body["sha"] = state.SHA
	}

	resp, err := g.http.R().
		SetContext(ctx).
		SetHeader("Authorization", g.authHeader(token)).
		SetHeader("Accept", "application/vnd.github+json").
		SetBody(body).
		Put("/repos/" + f.Owner + "/" + f.Repo + "/contents/" + f.Path)
	if err != nil {
		return &UploadError{Status: 0, Body: err.Error()}
	}
	if !resp.IsSuccess() {
		return &UploadError{Status: resp.StatusCode(), Body: resp.String()}
	}
	return nil
}

func (g *GitHub) Download(ctx context.Context, token string, f File) ([]byte, error) {
	resp, err := g.http.R().
		SetContext(ctx).
		SetHeader("Authorization", g.authHeader(token)).
		SetHeader("Accept", "application/vnd.github+json").
		Get("/repos/" + f.Owner + "/" + f.Repo + "/contents/" + f.Path)
	if err != nil {
		return nil, &DownloadError{Status: 0}
	}
	if resp.StatusCode() == 404 {
		return nil, &NotFoundError{Path: f.Path}
	}
	if !resp.IsSuccess() {
		return nil, &DownloadError{Status: resp.StatusCode()}
	}
	return decodeContent(resp.Body())
}
