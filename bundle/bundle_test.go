package bundle

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/initializ/shipyard/pipeline"
	"github.com/initializ/shipyard/types"
	digest "github.com/opencontainers/go-digest"
)

func writeBundle(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		path := filepath.Join(dir, rel)
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}
}

func TestDigest_StableAndContentSensitive(t *testing.T) {
	a, b := t.TempDir(), t.TempDir()
	files := map[string]string{
		"index.html":                     "<canvas id=bevy>",
		"my_favorite_nightmare_bg.wasm":  "\x00asm",
		"assets/sprites/rat.png":         "png",
		"assets/maps/nightmare.map":      "// entity 0",
		"build/my_favorite_nightmare.js": "init()",
	}
	writeBundle(t, a, files)
	writeBundle(t, b, files)

	da, err := Digest(a)
	if err != nil {
		t.Fatalf("Digest() error: %v", err)
	}
	db, err := Digest(b)
	if err != nil {
		t.Fatalf("Digest() error: %v", err)
	}
	if da != db {
		t.Errorf("identical bundles differ: %s vs %s", da, db)
	}
	if err := da.Validate(); err != nil {
		t.Errorf("invalid digest %q: %v", da, err)
	}

	writeBundle(t, b, map[string]string{"assets/sprites/rat.png": "png2"})
	changed, err := Digest(b)
	if err != nil {
		t.Fatal(err)
	}
	if changed == da {
		t.Error("digest did not change with content")
	}
}

func TestDigest_RenameChangesDigest(t *testing.T) {
	a, b := t.TempDir(), t.TempDir()
	writeBundle(t, a, map[string]string{"a.js": "x"})
	writeBundle(t, b, map[string]string{"b.js": "x"})

	da, _ := Digest(a)
	db, _ := Digest(b)
	if da == db {
		t.Error("renamed file should change the digest")
	}
}

func TestDigest_Errors(t *testing.T) {
	if _, err := Digest(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Error("expected error for missing bundle")
	}
	file := filepath.Join(t.TempDir(), "index.html")
	writeBundle(t, filepath.Dir(file), map[string]string{"index.html": ""})
	if _, err := Digest(file); err == nil {
		t.Error("expected error for non-directory bundle")
	}
}

func TestLedger_RecordAndLast(t *testing.T) {
	root := t.TempDir()
	l := NewLedger(root)

	if _, ok, err := l.Last("abc123:wasm"); err != nil || ok {
		t.Fatalf("empty ledger Last() = %v, %v", ok, err)
	}

	at := time.Date(2026, 10, 17, 9, 30, 0, 0, time.UTC)
	d := "sha256:" + strings.Repeat("ab", 32)
	if err := l.Record("abc123:wasm", digest.Digest(d), at); err != nil {
		t.Fatalf("Record() error: %v", err)
	}

	e, ok, err := NewLedger(root).Last("abc123:wasm")
	if err != nil || !ok {
		t.Fatalf("Last() = %v, %v", ok, err)
	}
	if string(e.Digest) != d || !e.PublishedAt.Equal(at) {
		t.Errorf("entry = %+v", e)
	}
	if _, err := os.Stat(filepath.Join(root, ".shipyard", "published.json")); err != nil {
		t.Errorf("ledger file missing: %v", err)
	}
}

func TestLedger_Corrupt(t *testing.T) {
	root := t.TempDir()
	writeBundle(t, root, map[string]string{LedgerFile: "{not json"})
	if _, _, err := NewLedger(root).Last("abc123:wasm"); err == nil {
		t.Error("expected error for corrupt ledger")
	}
}

func TestUnchangedGuard(t *testing.T) {
	cfg := &types.Configuration{
		ProjectID:  "abc123",
		Channel:    "wasm",
		WorkDir:    t.TempDir(),
		OutputRoot: "target",
		BundleDir:  filepath.Join("target", "bevy_web", "web", "my_favorite_nightmare"),
	}
	writeBundle(t, cfg.Abs(cfg.BundleDir), map[string]string{"index.html": "v1"})

	g := NewUnchangedGuard()
	first, err := g.Check(cfg)
	if err != nil || first.Skip {
		t.Fatalf("first publish Check() = %+v, %v", first, err)
	}
	if _, err := digest.Parse(first.Token); err != nil {
		t.Fatalf("Token = %q is not a digest: %v", first.Token, err)
	}
	if err := g.Done(cfg, first); err != nil {
		t.Fatalf("Done() error: %v", err)
	}

	// The same guard value serves the next run; it carries nothing over.
	second, err := g.Check(cfg)
	if err != nil || !second.Skip {
		t.Fatalf("unchanged bundle Check() = %+v, %v", second, err)
	}
	if !strings.Contains(second.Reason, "abc123:wasm") {
		t.Errorf("Reason = %q", second.Reason)
	}

	writeBundle(t, cfg.Abs(cfg.BundleDir), map[string]string{"index.html": "v2"})
	if d, _ := g.Check(cfg); d.Skip {
		t.Error("changed bundle should not be skipped")
	}
}

func TestUnchangedGuard_DoneWithoutDigest(t *testing.T) {
	if err := NewUnchangedGuard().Done(&types.Configuration{}, pipeline.Decision{}); err == nil {
		t.Error("expected error when no digest was computed")
	}
}
