package gitsync

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
	"unicode/utf8"
)

// contentsFile is the subset of the contents-API response both providers
// share.
type contentsFile struct {
	SHA     string `json:"sha"`
	Content string `json:"content"`
}

func isEmptyArray(body string) bool {
	return strings.TrimSpace(body) == "[]"
}

func extractSHA(body []byte) (string, error) {
	var file contentsFile
	if err := json.Unmarshal(body, &file); err != nil {
		return "", err
	}
	if file.SHA == "" {
		return "", errors.New("contents response carries no sha")
	}
	return file.SHA, nil
}

// decodeContent pulls the base64 content field out of a contents-API
// response. The provider wraps the payload at 60 columns, so newlines are
// stripped before decoding.
func decodeContent(body []byte) ([]byte, error) {
	var file contentsFile
	if err := json.Unmarshal(body, &file); err != nil {
		return nil, &DecodeError{Err: err}
	}

	raw := strings.ReplaceAll(file.Content, "\n", "")
	decoded, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return nil, &DecodeError{Err: err}
	}
	if !utf8.Valid(decoded) {
		return nil, &DecodeError{Err: errors.New("content is not valid UTF-8")}
	}
	return decoded, nil
}
