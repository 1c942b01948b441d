package bundle

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/initializ/shipyard/pipeline"
	"github.com/initializ/shipyard/types"
	digest "github.com/opencontainers/go-digest"
)

// LedgerFile is where published digests are kept, relative to the output root.
const LedgerFile = ".shipyard/published.json"

// Entry records one successful publish.
type Entry struct {
	Digest      digest.Digest `json:"digest"`
	PublishedAt time.Time     `json:"published_at"`
}

// Ledger maps channel targets ("<project>:<channel>") to their last
// published bundle digest.
type Ledger struct {
	path string
}

// NewLedger opens the ledger stored under outputRoot. Nothing is read or
// written until Last or Record is called.
func NewLedger(outputRoot string) *Ledger {
	return &Ledger{path: filepath.Join(outputRoot, filepath.FromSlash(LedgerFile))}
}

// Path returns the ledger file location.
func (l *Ledger) Path() string { return l.path }

func (l *Ledger) load() (map[string]Entry, error) {
	data, err := os.ReadFile(l.path)
	if errors.Is(err, os.ErrNotExist) {
		return map[string]Entry{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading ledger: %w", err)
	}
	entries := map[string]Entry{}
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parsing ledger %s: %w", l.path, err)
	}
	return entries, nil
}

// Last returns the most recent entry for target.
func (l *Ledger) Last(target string) (Entry, bool, error) {
	entries, err := l.load()
	if err != nil {
		return Entry{}, false, err
	}
	e, ok := entries[target]
	return e, ok, nil
}

// Record stores d as the latest publish for target.
func (l *Ledger) Record(target string, d digest.Digest, at time.Time) error {
	entries, err := l.load()
	if err != nil {
		return err
	}
	entries[target] = Entry{Digest: d, PublishedAt: at.UTC()}

	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("marshalling ledger: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(l.path), 0755); err != nil {
		return fmt.Errorf("creating ledger directory: %w", err)
	}
	tmp := l.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("writing ledger: %w", err)
	}
	if err := os.Rename(tmp, l.path); err != nil {
		return fmt.Errorf("replacing ledger: %w", err)
	}
	return nil
}

// UnchangedGuard skips a publish when the bundle's digest matches the one
// last published to the same channel, and records the digest afterwards.
type UnchangedGuard struct {
	now func() time.Time
}

// NewUnchangedGuard creates a guard for a publish stage.
func NewUnchangedGuard() *UnchangedGuard {
	return &UnchangedGuard{now: time.Now}
}

// Check digests the bundle and compares it with the ledger. The digest is
// returned as the decision token.
func (g *UnchangedGuard) Check(cfg *types.Configuration) (pipeline.Decision, error) {
	d, err := Digest(cfg.Abs(cfg.BundleDir))
	if err != nil {
		return pipeline.Decision{}, err
	}
	decision := pipeline.Decision{Token: d.String()}

	last, ok, err := NewLedger(cfg.Abs(cfg.OutputRoot)).Last(cfg.ChannelTarget())
	if err != nil {
		return pipeline.Decision{}, err
	}
	if ok && last.Digest == d {
		decision.Skip = true
		decision.Reason = fmt.Sprintf("bundle %s already published to %s at %s", d.Encoded()[:12], cfg.ChannelTarget(), last.PublishedAt.Format(time.RFC3339))
	}
	return decision, nil
}

// Done records the digest Check computed as the latest publish.
func (g *UnchangedGuard) Done(cfg *types.Configuration, decision pipeline.Decision) error {
	d, err := digest.Parse(decision.Token)
	if err != nil {
		return fmt.Errorf("no bundle digest to record: %w", err)
	}
	return NewLedger(cfg.Abs(cfg.OutputRoot)).Record(cfg.ChannelTarget(), d, g.now())
}
