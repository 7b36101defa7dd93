// Package figma implements the structured design-export path for
// design-tool targets: list the exportable top-level nodes of a file,
// request rasterized render URLs, and download each image. Structured
// export yields pixel-exact output where a browser screenshot of the
// canvas editor UI would be a brittle approximation; the capture unit
// therefore tries this path first and falls back to the browser.
package figma

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// ErrUnavailable signals that the structured export path cannot be
// used (missing token, missing file key, or an API-side failure) and
// the caller should fall back to generic browser capture.
var ErrUnavailable = errors.New("structured export unavailable")

const defaultBaseURL = "https://api.figma.com"

type Client struct {
	token   string
	baseURL string
	http    *http.Client
}

func NewClient(token, baseURL string) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		token:   token,
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 60 * time.Second},
	}
}

// HasToken reports whether the client is usable at all.
func (c *Client) HasToken() bool { return c.token != "" }

type fileResponse struct {
	Name     string `json:"name"`
	Document struct {
		Children []struct {
			ID       string `json:"id"`
			Name     string `json:"name"`
			Type     string `json:"type"`
			Children []struct {
				ID   string `json:"id"`
				Name string `json:"name"`
				Type string `json:"type"`
			} `json:"children"`
		} `json:"children"`
	} `json:"document"`
}

type imagesResponse struct {
	Err    string            `json:"err"`
	Images map[string]string `json:"images"`
}

// Node is one exportable top-level frame of a design file.
type Node struct {
	ID   string
	Name string
}

// ExportFile rasterizes the top-level nodes of the first page of the
// given file into dir and returns the written file paths. Any failure
// is wrapped in ErrUnavailable so the capture unit can fall back.
func (c *Client) ExportFile(ctx context.Context, fileKey, dir string) ([]string, error) {
	if !c.HasToken() {
		return nil, fmt.Errorf("%w: no token configured", ErrUnavailable)
	}
	if fileKey == "" {
		return nil, fmt.Errorf("%w: no file key in URL", ErrUnavailable)
	}

	nodes, err := c.listNodes(ctx, fileKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if len(nodes) == 0 {
		return nil, fmt.Errorf("%w: file has no exportable nodes", ErrUnavailable)
	}

	renders, err := c.renderURLs(ctx, fileKey, nodes)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	ts := time.Now().Unix()
	var paths []string
	for _, n := range nodes {
		renderURL, ok := renders[n.ID]
		if !ok || renderURL == "" {
			continue
		}
		name := sanitizeNodeName(n.Name)
		dest := filepath.Join(dir, fmt.Sprintf("%s_%d.png", name, ts))
		if err := c.download(ctx, renderURL, dest); err != nil {
			return nil, fmt.Errorf("%w: download %s: %v", ErrUnavailable, n.Name, err)
		}
		paths = append(paths, dest)
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("%w: no nodes rendered", ErrUnavailable)
	}
	return paths, nil
}

// listNodes fetches the file document and returns the top-level
// frames of its first page.
func (c *Client) listNodes(ctx context.Context, fileKey string) ([]Node, error) {
	var parsed fileResponse
	if err := c.get(ctx, "/v1/files/"+url.PathEscape(fileKey), &parsed); err != nil {
		return nil, err
	}

	if len(parsed.Document.Children) == 0 {
		return nil, nil
	}
	page := parsed.Document.Children[0]

	var nodes []Node
	for _, child := range page.Children {
		if child.Type != "FRAME" && child.Type != "COMPONENT" && child.Type != "SECTION" {
			continue
		}
		nodes = append(nodes, Node{ID: child.ID, Name: child.Name})
	}
	return nodes, nil
}

// renderURLs asks the export-image endpoint for one rasterized URL
// per node.
func (c *Client) renderURLs(ctx context.Context, fileKey string, nodes []Node) (map[string]string, error) {
	ids := make([]string, len(nodes))
	for i, n := range nodes {
		ids[i] = n.ID
	}

	path := fmt.Sprintf("/v1/images/%s?ids=%s&format=png&scale=2",
		url.PathEscape(fileKey), url.QueryEscape(strings.Join(ids, ",")))

	var parsed imagesResponse
	if err := c.get(ctx, path, &parsed); err != nil {
		return nil, err
	}
	if parsed.Err != "" {
		return nil, errors.New(parsed.Err)
	}
	return parsed.Images, nil
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("X-Figma-Token", c.token)

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("figma api returned status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *Client) download(ctx context.Context, srcURL, dest string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srcURL, nil)
	if err != nil {
		return err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("render download returned status %d", resp.StatusCode)
	}

	f, err := os.Create(dest)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = io.Copy(f, resp.Body)
	return err
}

func sanitizeNodeName(name string) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	s := strings.Trim(b.String(), "_")
	if s == "" {
		return "node"
	}
	return s
}
