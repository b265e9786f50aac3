package gitsync

import (
	"context"
	"strings"

	"github.com/go-resty/resty/v2"
)

const giteeBaseURL = "https://gitee.com/api/v5"

// giteeRepoExistsMessage is the create-repo response Gitee returns when the
// repository already exists; it wins the check-then-create race.
const giteeRepoExistsMessage = "已存在同地址仓库"

// Gitee syncs against gitee.com. Auth uses the "token <t>" scheme and fresh
// repositories default to the master branch.
type Gitee struct {
	http *resty.Client
}

// NewGitee returns a provider for the public Gitee API.
func NewGitee() *Gitee {
	return NewGiteeAt(giteeBaseURL)
}

// NewGiteeAt returns a provider pointed at a custom base URL, for tests.
func NewGiteeAt(baseURL string) *Gitee {
	return &Gitee{http: newRestClient(baseURL)}
}

func (g *Gitee) Name() string          { return "gitee" }
func (g *Gitee) DefaultBranch() string { return "master" }

func (g *Gitee) authHeader(token string) string {
	return "token " + token
}

func (g *Gitee) ValidateUser(ctx context.Context, token string) (string, error) {
	var user struct {
		Login string `json:"login"`
	}
	resp, err := g.http.R().
		SetContext(ctx).
		SetHeader("Authorization", g.authHeader(token)).
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

func (g *Gitee) RepoExists(ctx context.Context, token, owner, repo string) (RepoInfo, error) {
	var body struct {
		DefaultBranch string `json:"default_branch"`
	}
	resp, err := g.http.R().
		SetContext(ctx).
		SetHeader("Authorization", g.authHeader(token)).
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

func (g *Gitee) CreateRepo(ctx context.Context, token, name, description string) error {
	resp, err := g.http.R().
		SetContext(ctx).
		SetHeader("Authorization", g.authHeader(token)).
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
	if strings.Contains(resp.String(), giteeRepoExistsMessage) {
		return nil
	}
	return &RepoCreateError{Status: resp.StatusCode(), Body: resp.String()}
}

func (g *Gitee) GetFileState(ctx context.Context, token string, f File) (FileState, error) {
	resp, err := g.http.R().
		SetContext(ctx).
		SetHeader("Authorization", g.authHeader(token)).
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
	// Gitee answers an empty JSON array for a path that does not exist yet.
	if isEmptyArray(resp.String()) {
		return FileState{Exists: false}, nil
	}
	sha, err := extractSHA(resp.Body())
	if err != nil {
		return FileState{}, &FileCheckError{Status: resp.StatusCode()}
	}
	return FileState{Exists: true, SHA: sha}, nil
}

func (g *Gitee) Upload(ctx context.Context, token string, f File, state FileState, contentB64, message string) error {
	body := map[string]interface{}{
		"content": contentB64,
		"message": message,
		"branch":  f.Branch,
	}

	req := g.http.R().
		SetContext(ctx).
		SetHeader("Authorization", g.authHeader(token)).
		SetBody(body)

	url := "/repos/" + f.Owner + "/" + f.Repo + "/contents/" + f.Path

	// Gitee distinguishes create (POST) from update (PUT with sha).
	var resp *resty.Response
	var err error
	if state.Exists {
		body["sha"] = state.SHA
		resp, err = req.Put(url)
	} else {
		resp, err = req.Post(url)
	}
	if err != nil {
		return &UploadError{Status: 0, Body: err.Error()}
	}
	if !resp.IsSuccess() {
		return &UploadError{Status: resp.StatusCode(), Body: resp.String()}
	}
	return nil
}

func (g *Gitee) Download(ctx context.Context, token string, f File) ([]byte, error) {
	resp, err := g.http.R().
		SetContext(ctx).
		SetHeader("Authorization", g.authHeader(token)).
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
	if isEmptyArray(resp.String()) {
		return nil, &NotFoundError{Path: f.Path}
	}
	return decodeContent(resp.Body())
}
