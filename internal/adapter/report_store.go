package adapter

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	m "memoscope.dev/pkg/memoscope/internal/model"
)

// ScanReport is the persisted output of one analysis pass.
type ScanReport struct {
	Files           []m.FileReport                 `yaml:"files"`
	Hotspots        []m.Hotspot                    `yaml:"hotspots,omitempty"`
	Candidates      []m.CacheCandidate             `yaml:"candidates,omitempty"`
	Recommendations []m.CacheRecommendation        `yaml:"recommendations,omitempty"`
	Screening       []m.BatchScreeningResult       `yaml:"screening,omitempty"`
	Validations     []m.IndividualValidationResult `yaml:"validations,omitempty"`
}

// ReportStore persists and reloads scan reports.
type ReportStore interface {
	Save(dir m.Path, name string, report *ScanReport) error
	Load(dir m.Path, name string) (*ScanReport, error)
}

// YAMLReportStore stores reports as YAML files in a directory.
type YAMLReportStore struct{}

// NewReportStore constructs a YAMLReportStore.
func NewReportStore() *YAMLReportStore {
	return &YAMLReportStore{}
}

// Save writes the report to <dir>/<name>.yaml, creating dir if needed.
func (s *YAMLReportStore) Save(dir m.Path, name string, report *ScanReport) error {
	if err := os.MkdirAll(string(dir), 0o750); err != nil {
		return fmt.Errorf("create report dir: %w", err)
	}

	data, err := yaml.Marshal(report)
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}

	path := filepath.Join(string(dir), name+".yaml")

	return os.WriteFile(path, data, 0o600)
}

// Load reads <dir>/<name>.yaml back into a ScanReport.
func (s *YAMLReportStore) Load(dir m.Path, name string) (*ScanReport, error) {
	path := filepath.Join(string(dir), name+".yaml")

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var report ScanReport
	if err := yaml.Unmarshal(data, &report); err != nil {
		return nil, fmt.Errorf("unmarshal report %s: %w", path, err)
	}

	return &report, nil
}
