package gitsync

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGiteeEmptyArrayMeansMissingFile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("[]"))
	}))
	t.Cleanup(srv.Close)

	g := NewGiteeAt(srv.URL)
	state, err := g.GetFileState(context.Background(), "t", File{Owner: "o", Repo: "r", Path: "bookmarks.json"})
	require.NoError(t, err)
	assert.False(t, state.Exists)
}

func TestGiteeCreateRaceIsSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]string{"message": giteeRepoExistsMessage})
	}))
	t.Cleanup(srv.Close)

	g := NewGiteeAt(srv.URL)
	err := g.CreateRepo(context.Background(), "t", "marksyncy-bookmarks", "desc")
	assert.NoError(t, err, "already-exists response wins the check-then-create race")
}

func TestGiteeCreateFailureSurfacesBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"message":"quota exceeded"}`))
	}))
	t.Cleanup(srv.Close)

	g := NewGiteeAt(srv.URL)
	err := g.CreateRepo(context.Background(), "t", "marksyncy-bookmarks", "desc")

	var createErr *RepoCreateError
	require.ErrorAs(t, err, &createErr)
	assert.Equal(t, http.StatusForbidden, createErr.Status)
	assert.Contains(t, createErr.Body, "quota exceeded")
}

func TestGiteeAuthScheme(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"login": "bob"})
	}))
	t.Cleanup(srv.Close)

	g := NewGiteeAt(srv.URL)
	login, err := g.ValidateUser(context.Background(), "secret")
	require.NoError(t, err)
	assert.Equal(t, "bob", login)
	assert.Equal(t, "token secret", gotAuth, "gitee uses the token scheme, not bearer")
}

func TestGiteeUploadVerbDependsOnFileState(t *testing.T) {
	var methods []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		methods = append(methods, r.Method)
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)

	g := NewGiteeAt(srv.URL)
	f := File{Owner: "o", Repo: "r", Path: "bookmarks.json", Branch: "master"}

	require.NoError(t, g.Upload(context.Background(), "t", f, FileState{Exists: false}, "Zm9v", "create"))
	require.NoError(t, g.Upload(context.Background(), "t", f, FileState{Exists: true, SHA: "abc"}, "Zm9v", "update"))

	assert.Equal(t, []string{http.MethodPost, http.MethodPut}, methods)
}

func TestDecodeContentRejectsBadBase64(t *testing.T) {
	_, err := decodeContent([]byte(`{"sha":"abc","content":"%%%not-base64%%%"}`))

	var decodeErr *DecodeError
	assert.ErrorAs(t, err, &decodeErr)
}

func TestDecodeContentStripsNewlines(t *testing.T) {
	// Providers wrap base64 payloads; "aGVs\nbG8=" decodes to "hello".
	data, err := decodeContent([]byte(`{"sha":"abc","content":"aGVs\nbG8="}`))
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))
}
