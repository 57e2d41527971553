// Package roboflow downloads dataset exports from the Roboflow API.
package roboflow

import (
	"archive/zip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"yoloface/internal/log"
)

const (
	DefaultBaseURL = "https://api.roboflow.com"

	DefaultTimeout        = 10 * time.Minute
	DefaultConnectTimeout = 10 * time.Second
)

var (
	ErrUnauthorized   = errors.New("roboflow: api key rejected")
	ErrExportNotReady = errors.New("roboflow: export has no download link yet")
)

// Dataset identifies one exported version of a project.
type Dataset struct {
	Workspace string
	Project   string
	Version   int
	Format    string
}

func (d Dataset) String() string {
	return fmt.Sprintf("%s/%s/%d/%s", d.Workspace, d.Project, d.Version, d.Format)
}

// Dir is the directory the export is unpacked into.
func (d Dataset) Dir() string {
	return d.Project + "-" + strconv.Itoa(d.Version)
}

type Client struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

type Option func(*Client)

// WithBaseURL points the client at another API host.
func WithBaseURL(u string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(u, "/")
	}
}

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.client = hc
	}
}

func NewClient(apiKey string, opts ...Option) *Client {
	c := &Client{
		apiKey:  apiKey,
		baseURL: DefaultBaseURL,
		client: &http.Client{
			Timeout: DefaultTimeout,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout:   DefaultConnectTimeout,
					KeepAlive: 30 * time.Second,
				}).DialContext,
				TLSHandshakeTimeout:   10 * time.Second,
				IdleConnTimeout:       90 * time.Second,
				ExpectContinueTimeout: 1 * time.Second,
			},
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type authResponse struct {
	Workspace string `json:"workspace"`
}

// Authenticate checks the key and returns the workspace it belongs to.
func (c *Client) Authenticate(ctx context.Context) (string, error) {
	var resp authResponse
	if err := c.getJSON(ctx, c.baseURL+"/", &resp); err != nil {
		return "", err
	}
	return resp.Workspace, nil
}

type exportResponse struct {
	Export struct {
		Link string `json:"link"`
	} `json:"export"`
}

// ExportLink asks for the download link of ds.
func (c *Client) ExportLink(ctx context.Context, ds Dataset) (string, error) {
	u := fmt.Sprintf("%s/%s/%s/%d/%s",
		c.baseURL,
		url.PathEscape(ds.Workspace),
		url.PathEscape(ds.Project),
		ds.Version,
		url.PathEscape(ds.Format),
	)

	var resp exportResponse
	if err := c.getJSON(ctx, u, &resp); err != nil {
		return "", err
	}
	if resp.Export.Link == "" {
		return "", fmt.Errorf("%w: %s", ErrExportNotReady, ds)
	}
	return resp.Export.Link, nil
}

// Download fetches the export of ds and unpacks it under root. It returns the
// dataset directory. An existing directory is reused without downloading.
func (c *Client) Download(ctx context.Context, ds Dataset, root string) (string, error) {
	dir := filepath.Join(root, ds.Dir())
	if _, err := os.Stat(filepath.Join(dir, "data.yaml")); err == nil {
		log.Info("dataset already downloaded", "dir", dir)
		return dir, nil
	}

	link, err := c.ExportLink(ctx, ds)
	if err != nil {
		return "", err
	}

	log.Info("downloading dataset", "dataset", ds.String())
	archive, err := c.fetch(ctx, link)
	if err != nil {
		return "", err
	}
	defer os.Remove(archive)

	if err := unzip(archive, dir); err != nil {
		return "", fmt.Errorf("extract %s: %w", ds, err)
	}
	log.Info("dataset extracted", "dir", dir)
	return dir, nil
}

func (c *Client) getJSON(ctx context.Context, rawURL string, out any) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return err
	}
	q := u.Query()
	q.Set("api_key", c.apiKey)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return err
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// fetch downloads link into a temporary file and returns its path.
func (c *Client) fetch(ctx context.Context, link string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, link, nil)
	if err != nil {
		return "", err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return "", err
	}

	f, err := os.CreateTemp("", "roboflow-*.zip")
	if err != nil {
		return "", err
	}
	defer f.Close()

	if _, err := io.Copy(f, resp.Body); err != nil {
		os.Remove(f.Name())
		return "", err
	}
	return f.Name(), nil
}

func checkStatus(resp *http.Response) error {
	switch {
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		return ErrUnauthorized
	case resp.StatusCode >= 300:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("roboflow: %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}
	return nil
}

func unzip(archive, dir string) error {
	r, err := zip.OpenReader(archive)
	if err != nil {
		return err
	}
	defer r.Close()

	root, err := filepath.Abs(dir)
	if err != nil {
		return err
	}

	for _, f := range r.File {
		target := filepath.Join(root, f.Name)
		if target != root && !strings.HasPrefix(target, root+string(os.PathSeparator)) {
			return fmt.Errorf("illegal path in archive: %s", f.Name)
		}

		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return err
			}
			continue
		}
		if err := extractFile(f, target); err != nil {
			return err
		}
	}
	return nil
}

func extractFile(f *zip.File, target string) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}

	src, err := f.Open()
	if err != nil {
		return err
	}
	defer src.Close()

	dst, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return err
	}
	return dst.Close()
}
