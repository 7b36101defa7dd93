package target

import (
	"testing"

	"sitelens/internal/model"
)

func TestClassifyWeb(t *testing.T) {
	tgt, err := Classify("https://www.example.com/products/")
	if err != nil {
		t.Fatalf("Classify returned error: %v", err)
	}
	if tgt.Kind != model.KindWeb {
		t.Fatalf("kind = %q, want %q", tgt.Kind, model.KindWeb)
	}
	if tgt.ProjectID != "example" {
		t.Fatalf("projectID = %q, want %q", tgt.ProjectID, "example")
	}
}

func TestClassifyDeterministic(t *testing.T) {
	urls := []string{
		"https://www.example.com/products/",
		"https://app.some-site.co/dash?x=1",
		"https://play.google.com/store/apps/details?id=com.acme.app",
		"https://apps.apple.com/us/app/acme/id123456789",
		"https://www.figma.com/file/AbC123xyz/My-Design",
	}
	for _, u := range urls {
		a, err := Classify(u)
		if err != nil {
			t.Fatalf("Classify(%q) error: %v", u, err)
		}
		b, err := Classify(u)
		if err != nil {
			t.Fatalf("Classify(%q) second call error: %v", u, err)
		}
		if a.Kind != b.Kind || a.ProjectID != b.ProjectID {
			t.Fatalf("Classify(%q) not deterministic: (%v,%q) vs (%v,%q)",
				u, a.Kind, a.ProjectID, b.Kind, b.ProjectID)
		}
	}
}

func TestClassifyStoreAndroid(t *testing.T) {
	tgt, err := Classify("https://play.google.com/store/apps/details?id=com.acme.app")
	if err != nil {
		t.Fatalf("Classify returned error: %v", err)
	}
	if tgt.Kind != model.KindStoreAndroid {
		t.Fatalf("kind = %q, want %q", tgt.Kind, model.KindStoreAndroid)
	}
	if tgt.ProjectID != "com_acme_app" {
		t.Fatalf("projectID = %q, want %q", tgt.ProjectID, "com_acme_app")
	}
}

func TestClassifyStoreIOS(t *testing.T) {
	tgt, err := Classify("https://apps.apple.com/us/app/acme/id123456789")
	if err != nil {
		t.Fatalf("Classify returned error: %v", err)
	}
	if tgt.Kind != model.KindStoreIOS {
		t.Fatalf("kind = %q, want %q", tgt.Kind, model.KindStoreIOS)
	}
	if tgt.ProjectID != "id123456789" {
		t.Fatalf("projectID = %q, want %q", tgt.ProjectID, "id123456789")
	}
}

func TestClassifyDesign(t *testing.T) {
	tgt, err := Classify("https://www.figma.com/file/AbC123xyz/My-Design")
	if err != nil {
		t.Fatalf("Classify returned error: %v", err)
	}
	if tgt.Kind != model.KindDesign {
		t.Fatalf("kind = %q, want %q", tgt.Kind, model.KindDesign)
	}
	if tgt.ProjectID != "AbC123xyz" {
		t.Fatalf("projectID = %q, want %q", tgt.ProjectID, "AbC123xyz")
	}
}

func TestClassifyInvalid(t *testing.T) {
	for _, raw := range []string{"", "not a url", "ftp://example.com", "//no-scheme.com", "javascript:alert(1)"} {
		if _, err := Classify(raw); err == nil {
			t.Fatalf("Classify(%q) expected error, got nil", raw)
		}
	}
}

func TestProjectIDFilesystemSafe(t *testing.T) {
	urls := []string{
		"https://www.example.com/",
		"https://sub.domain.example.co.uk/path?q=1",
		"https://play.google.com/store/apps/details?id=com.acme-beta.app",
		"https://apps.apple.com/us/app/x/id42",
		"https://www.figma.com/design/Zz9-key_1/Thing",
		"https://127.0.0.1/",
	}
	for _, u := range urls {
		tgt, err := Classify(u)
		if err != nil {
			t.Fatalf("Classify(%q) error: %v", u, err)
		}
		if tgt.ProjectID == "" || !IsSafeToken(tgt.ProjectID) {
			t.Fatalf("Classify(%q) projectID %q is not filesystem-safe", u, tgt.ProjectID)
		}
	}
}

func TestPathToken(t *testing.T) {
	cases := []struct {
		raw  string
		want string
	}{
		{"https://example.com/", "home"},
		{"https://example.com", "home"},
		{"https://example.com/about", "about"},
		{"https://example.com/blog/post-1/", "blog_post_1"},
		{"https://example.com/a/b?q=1#frag", "a_b"},
	}
	for _, c := range cases {
		if got := PathToken(c.raw); got != c.want {
			t.Fatalf("PathToken(%q) = %q, want %q", c.raw, got, c.want)
		}
	}
}

func TestFileKey(t *testing.T) {
	if got := FileKey("https://www.figma.com/file/AbC123/My-Design?node-id=1"); got != "AbC123" {
		t.Fatalf("FileKey = %q, want %q", got, "AbC123")
	}
	if got := FileKey("https://www.figma.com/"); got != "" {
		t.Fatalf("FileKey for bare host = %q, want empty", got)
	}
}
