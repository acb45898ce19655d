// Package gitrepo stores engram files in a GitHub or Gitee repository
// through the repository contents API.
package gitrepo

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path"
	"strings"

	"github.com/papercomputeco/engram/pkg/backend"
	"github.com/papercomputeco/engram/pkg/logger"
)

const (
	GitHubAPI = "https://api.github.com"
	GiteeAPI  = "https://gitee.com/api/v5"

	commitMessage = "engram sync"
)

var errNotFound = errors.New("remote file not found")

// Config configures a repository backend.
type Config struct {
	// Host is backend.NameGitHub or backend.NameGitee.
	Host string

	Token string

	// Repo is "owner/name".
	Repo string

	// Branch is optional; the repository default branch is used when empty.
	Branch string

	// Prefix is a directory inside the repository, empty for the root.
	Prefix string

	// BaseURL overrides the API endpoint, mostly for tests.
	BaseURL string

	HTTPClient *http.Client
	Logger     *slog.Logger
}

type Backend struct {
	host       string
	token      string
	repo       string
	branch     string
	prefix     string
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

func New(c Config) (*Backend, error) {
	if c.Host != backend.NameGitHub && c.Host != backend.NameGitee {
		return nil, fmt.Errorf("%w: %q", backend.ErrUnknownBackend, c.Host)
	}
	if c.Token == "" || !strings.Contains(c.Repo, "/") {
		return nil, fmt.Errorf("%s backend requires a token and an owner/name repo", c.Host)
	}

	baseURL := c.BaseURL
	if baseURL == "" {
		baseURL = GitHubAPI
		if c.Host == backend.NameGitee {
			baseURL = GiteeAPI
		}
	}

	client := c.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: backend.Timeout}
	}

	log := c.Logger
	if log == nil {
		log = logger.Nop()
	}

	return &Backend{
		host:       c.Host,
		token:      c.Token,
		repo:       c.Repo,
		branch:     c.Branch,
		prefix:     strings.Trim(c.Prefix, "/"),
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: client,
		logger:     log.With("backend", c.Host),
	}, nil
}

func (b *Backend) Name() string {
	return b.host
}

type contentsFile struct {
	SHA         string `json:"sha"`
	Content     string `json:"content"`
	Encoding    string `json:"encoding"`
	DownloadURL string `json:"download_url"`
}

type putRequest struct {
	Message     string `json:"message"`
	Content     string `json:"content"`
	SHA         string `json:"sha,omitempty"`
	Branch      string `json:"branch,omitempty"`
	AccessToken string `json:"access_token,omitempty"`
}

func (b *Backend) Upload(ctx context.Context, localPath, remoteName string) bool {
	remote := b.remotePath(backend.RemoteName(localPath, remoteName))
	if err := b.upload(ctx, localPath, remote); err != nil {
		b.logger.Warn("upload failed", "file", remote, "error", err)
		return false
	}
	return true
}

func (b *Backend) upload(ctx context.Context, localPath, remote string) error {
	data, err := os.ReadFile(localPath)
	if err != nil {
		return err
	}

	existing, err := b.stat(ctx, remote)
	if err != nil && !errors.Is(err, errNotFound) {
		return fmt.Errorf("looking up sha: %w", err)
	}

	body := putRequest{
		Message: commitMessage,
		Content: base64.StdEncoding.EncodeToString(data),
		Branch:  b.branch,
	}
	if existing != nil {
		body.SHA = existing.SHA
	}

	// Gitee creates files with POST and authenticates writes in the body.
	method := http.MethodPut
	if b.host == backend.NameGitee {
		body.AccessToken = b.token
		if existing == nil {
			method = http.MethodPost
		}
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	resp, err := b.do(ctx, method, b.withQuery(b.contentsURL(remote), nil), bytes.NewReader(payload))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return statusError(resp)
	}
	return nil
}

func (b *Backend) Download(ctx context.Context, localPath, remoteName string) bool {
	remote := b.remotePath(backend.RemoteName(localPath, remoteName))
	if err := b.download(ctx, localPath, remote); err != nil {
		b.logger.Warn("download failed", "file", remote, "error", err)
		return false
	}
	return true
}

func (b *Backend) download(ctx context.Context, localPath, remote string) error {
	file, err := b.stat(ctx, remote)
	if err != nil {
		return err
	}

	if file.Content != "" {
		data, err := base64.StdEncoding.DecodeString(strings.ReplaceAll(file.Content, "\n", ""))
		if err != nil {
			return fmt.Errorf("decoding content: %w", err)
		}
		return backend.ReplaceFile(localPath, bytes.NewReader(data))
	}

	// Large files come back without inline content.
	if file.DownloadURL == "" {
		return errors.New("remote file has no content")
	}
	resp, err := b.do(ctx, http.MethodGet, file.DownloadURL, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return statusError(resp)
	}
	return backend.ReplaceFile(localPath, resp.Body)
}

func (b *Backend) TestConnection(ctx context.Context) bool {
	resp, err := b.do(ctx, http.MethodGet, b.withQuery(b.baseURL+"/repos/"+b.repo, nil), nil)
	if err != nil {
		b.logger.Warn("connection test failed", "error", err)
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b.logger.Warn("connection test failed", "error", statusError(resp))
		return false
	}
	return true
}

func (b *Backend) stat(ctx context.Context, remote string) (*contentsFile, error) {
	q := url.Values{}
	if b.branch != "" {
		q.Set("ref", b.branch)
	}
	resp, err := b.do(ctx, http.MethodGet, b.withQuery(b.contentsURL(remote), q), nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, errNotFound
	default:
		return nil, statusError(resp)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	// Gitee answers a missing path with 200 and an empty list.
	if trimmed := bytes.TrimSpace(raw); len(trimmed) > 0 && trimmed[0] == '[' {
		return nil, errNotFound
	}

	var file contentsFile
	if err := json.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("decoding contents response: %w", err)
	}
	if file.SHA == "" {
		return nil, errNotFound
	}
	return &file, nil
}

func (b *Backend) do(ctx context.Context, method, target string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if b.host == backend.NameGitHub {
		req.Header.Set("Authorization", "Bearer "+b.token)
		req.Header.Set("Accept", "application/vnd.github+json")
	}
	return b.httpClient.Do(req)
}

func (b *Backend) remotePath(name string) string {
	if b.prefix == "" {
		return name
	}
	return path.Join(b.prefix, name)
}

func (b *Backend) contentsURL(remote string) string {
	return b.baseURL + "/repos/" + b.repo + "/contents/" + remote
}

// withQuery appends q, plus Gitee's access_token parameter, to u.
func (b *Backend) withQuery(u string, q url.Values) string {
	if q == nil {
		q = url.Values{}
	}
	if b.host == backend.NameGitee {
		q.Set("access_token", b.token)
	}
	if len(q) == 0 {
		return u
	}
	return u + "?" + q.Encode()
}

func statusError(resp *http.Response) error {
	msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
}

var _ backend.Backend = (*Backend)(nil)
