package validate

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/initializ/shipyard/types"
	"github.com/mattn/go-shellwords"
)

// ValidationResult holds errors and warnings from configuration validation.
type ValidationResult struct {
	Errors   []string
	Warnings []string
}

// IsValid returns true if there are no validation errors.
func (r *ValidationResult) IsValid() bool {
	return len(r.Errors) == 0
}

// ValidateConfiguration checks a resolved Configuration for problems the
// schema cannot express.
func ValidateConfiguration(cfg *types.Configuration) *ValidationResult {
	r := &ValidationResult{}

	if cfg.OutputRoot == "" {
		r.Errors = append(r.Errors, "output_root must not be empty")
	}
	if cfg.BundleDir == "" {
		r.Errors = append(r.Errors, "bundle_dir must not be empty")
	}
	if cfg.TargetTriple == "" {
		r.Errors = append(r.Errors, "target must not be empty")
	}
	if cfg.TailLines <= 0 {
		r.Errors = append(r.Errors, fmt.Sprintf("tail_lines must be positive, got %d", cfg.TailLines))
	}
	for name, line := range cfg.Commands {
		words, err := shellwords.Parse(line)
		if err != nil {
			r.Errors = append(r.Errors, fmt.Sprintf("commands.%s: %v", name, err))
			continue
		}
		if len(words) == 0 {
			r.Errors = append(r.Errors, fmt.Sprintf("commands.%s: empty command", name))
		}
	}

	if cfg.OutputRoot != "" && cfg.BundleDir != "" && !within(cfg.Abs(cfg.OutputRoot), cfg.Abs(cfg.BundleDir)) {
		r.Warnings = append(r.Warnings, fmt.Sprintf("bundle_dir %s is outside output_root %s", cfg.BundleDir, cfg.OutputRoot))
	}

	return r
}

// ValidateProjectID checks that id can form a butler channel target. Only
// stage sets that publish need to call it.
func ValidateProjectID(id string) error {
	if strings.ContainsAny(id, " \t:") {
		return fmt.Errorf("project id %q must not contain whitespace or ':'", id)
	}
	return nil
}

func within(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
