package figma

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestExportFileHappyPath(t *testing.T) {
	var srvURL string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("X-Figma-Token"); got != "tok" && !strings.HasPrefix(r.URL.Path, "/render/") {
			t.Errorf("missing token header on %s", r.URL.Path)
		}
		switch {
		case r.URL.Path == "/v1/files/KEY":
			fmt.Fprint(w, `{
				"name": "My Design",
				"document": {"children": [{"id": "0:1", "name": "Page 1", "type": "CANVAS", "children": [
					{"id": "1:2", "name": "Home Screen", "type": "FRAME"},
					{"id": "1:3", "name": "ignored text", "type": "TEXT"},
					{"id": "1:4", "name": "Settings", "type": "COMPONENT"}
				]}]}
			}`)
		case strings.HasPrefix(r.URL.Path, "/v1/images/KEY"):
			fmt.Fprintf(w, `{"err": "", "images": {"1:2": "%s/render/a.png", "1:4": "%s/render/b.png"}}`, srvURL, srvURL)
		case strings.HasPrefix(r.URL.Path, "/render/"):
			w.Write([]byte("png-bytes"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()
	srvURL = srv.URL

	dir := t.TempDir()
	c := NewClient("tok", srv.URL)

	paths, err := c.ExportFile(context.Background(), "KEY", dir)
	if err != nil {
		t.Fatalf("ExportFile error: %v", err)
	}
	if len(paths) != 2 {
		t.Fatalf("got %d rendered files, want 2 (%v)", len(paths), paths)
	}
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			t.Fatalf("read %s: %v", p, err)
		}
		if string(data) != "png-bytes" {
			t.Fatalf("unexpected file contents in %s", p)
		}
	}
	if base := filepath.Base(paths[0]); !strings.HasPrefix(base, "Home_Screen_") {
		t.Fatalf("expected sanitized node name prefix, got %s", base)
	}
}

func TestExportFileNoToken(t *testing.T) {
	c := NewClient("", "")
	_, err := c.ExportFile(context.Background(), "KEY", t.TempDir())
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestExportFileNoKey(t *testing.T) {
	c := NewClient("tok", "")
	_, err := c.ExportFile(context.Background(), "", t.TempDir())
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestExportFileAPIFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "forbidden", http.StatusForbidden)
	}))
	defer srv.Close()

	c := NewClient("tok", srv.URL)
	_, err := c.ExportFile(context.Background(), "KEY", t.TempDir())
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable on 403, got %v", err)
	}
}

func TestExportFileNoExportableNodes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"name": "Empty", "document": {"children": []}}`)
	}))
	defer srv.Close()

	c := NewClient("tok", srv.URL)
	_, err := c.ExportFile(context.Background(), "KEY", t.TempDir())
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable for empty file, got %v", err)
	}
}
