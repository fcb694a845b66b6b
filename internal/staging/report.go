// SPDX-License-Identifier: MPL-2.0

package staging

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// ErrUnsupportedReportFormat is returned for report paths that are neither
// TOML nor YAML.
var ErrUnsupportedReportFormat = errors.New("unsupported report format")

type (
	// Summary counts records by outcome.
	Summary struct {
		Rewritten     int `toml:"rewritten" yaml:"rewritten"`
		PassedThrough int `toml:"passed_through" yaml:"passed_through"`
		Linked        int `toml:"linked" yaml:"linked"`
		Excluded      int `toml:"excluded" yaml:"excluded"`
		Ignored       int `toml:"ignored" yaml:"ignored"`
		Duplicate     int `toml:"duplicate" yaml:"duplicate"`
		ExtensionJars int `toml:"extension_jars" yaml:"extension_jars"`
	}

	// Report is the document written by WriteReport.
	Report struct {
		Summary   Summary  `toml:"summary" yaml:"summary"`
		Artifacts []Record `toml:"artifacts" yaml:"artifacts"`
	}
)

// Summarize counts records by outcome.
func Summarize(records []Record) Summary {
	var s Summary
	for _, r := range records {
		s.ExtensionJars += r.ExtensionJars
		switch r.Outcome {
		case OutcomeRewritten:
			s.Rewritten++
		case OutcomePassedThrough:
			s.PassedThrough++
		case OutcomeLinked:
			s.Linked++
		case OutcomeExcluded:
			s.Excluded++
		case OutcomeIgnored:
			s.Ignored++
		case OutcomeDuplicate:
			s.Duplicate++
		}
	}
	return s
}

// MarshalReport encodes records as TOML or YAML depending on the extension
// of path (".toml", ".yaml" or ".yml").
func MarshalReport(path string, records []Record) ([]byte, error) {
	report := Report{Summary: Summarize(records), Artifacts: records}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		return toml.Marshal(report)
	case ".yaml", ".yml":
		return yaml.Marshal(report)
	default:
		return nil, fmt.Errorf("%w: %q (use .toml, .yaml or .yml)", ErrUnsupportedReportFormat, filepath.Ext(path))
	}
}

// WriteReport writes the run report to path.
func WriteReport(path string, records []Record) error {
	data, err := MarshalReport(path, records)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create report dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write report %s: %w", path, err)
	}
	return nil
}
