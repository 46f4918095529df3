// # internal/engine/diagnostic/sarif.go
package diagnostic

import (
	"encoding/json"
	"path/filepath"
)

// SARIF v2.1.0 schema – see https://schemastore.azurewebsites.net/schemas/json/sarif-2.1.0-rtm.5.json

const (
	sarifSchema  = "https://schemastore.azurewebsites.net/schemas/json/sarif-2.1.0-rtm.5.json"
	sarifVersion = "2.1.0"

	ruleIDIncompleteType = "REFL001"
	ruleIDInternal       = "REFL002"
)

type sarifReport struct {
	Schema  string     `json:"$schema"`
	Version string     `json:"version"`
	Runs    []sarifRun `json:"runs"`
}

type sarifRun struct {
	Tool    sarifTool     `json:"tool"`
	Results []sarifResult `json:"results"`
}

type sarifTool struct {
	Driver sarifDriver `json:"driver"`
}

type sarifDriver struct {
	Name    string      `json:"name"`
	Version string      `json:"version"`
	Rules   []sarifRule `json:"rules"`
}

type sarifRule struct {
	ID               string                 `json:"id"`
	Name             string                 `json:"name"`
	ShortDescription sarifMessage           `json:"shortDescription"`
	DefaultConfig    sarifRuleDefaultConfig `json:"defaultConfiguration"`
}

type sarifRuleDefaultConfig struct {
	Level string `json:"level"`
}

type sarifResult struct {
	RuleID    string          `json:"ruleId"`
	Level     string          `json:"level"`
	Message   sarifMessage    `json:"message"`
	Locations []sarifLocation `json:"locations,omitempty"`
}

type sarifMessage struct {
	Text string `json:"text"`
}

type sarifLocation struct {
	PhysicalLocation sarifPhysicalLocation `json:"physicalLocation"`
}

type sarifPhysicalLocation struct {
	ArtifactLocation sarifArtifactLocation `json:"artifactLocation"`
	Region           *sarifRegion          `json:"region,omitempty"`
}

type sarifArtifactLocation struct {
	URI       string `json:"uri"`
	URIBaseID string `json:"uriBaseId"`
}

type sarifRegion struct {
	StartLine   int `json:"startLine,omitempty"`
	StartColumn int `json:"startColumn,omitempty"`
}

// GenerateSARIF renders diagnostics as a SARIF v2.1.0 log so that CI code
// scanning can annotate the headers that lost metadata. File URIs are made
// relative to sourceRoot when they are absolute.
func GenerateSARIF(sourceRoot, toolVersion string, diags []Diagnostic) ([]byte, error) {
	results := make([]sarifResult, 0, len(diags))
	seen := map[Kind]bool{}
	for _, d := range diags {
		seen[d.Kind] = true
		result := sarifResult{
			RuleID:  ruleID(d.Kind),
			Level:   sarifLevel(d.Severity),
			Message: sarifMessage{Text: d.Message},
		}
		if d.File != "" {
			loc := sarifLocation{
				PhysicalLocation: sarifPhysicalLocation{
					ArtifactLocation: sarifArtifactLocation{
						URI:       relativeURI(sourceRoot, d.File),
						URIBaseID: "%SRCROOT%",
					},
				},
			}
			if d.Line > 0 {
				loc.PhysicalLocation.Region = &sarifRegion{
					StartLine:   d.Line,
					StartColumn: d.Column,
				}
			}
			result.Locations = []sarifLocation{loc}
		}
		results = append(results, result)
	}

	report := sarifReport{
		Schema:  sarifSchema,
		Version: sarifVersion,
		Runs: []sarifRun{
			{
				Tool: sarifTool{
					Driver: sarifDriver{
						Name:    "reflscan",
						Version: toolVersion,
						Rules:   buildSARIFRules(seen),
					},
				},
				Results: results,
			},
		},
	}
	return json.MarshalIndent(report, "", "  ")
}

// buildSARIFRules returns only the rules that have results.
func buildSARIFRules(seen map[Kind]bool) []sarifRule {
	rules := make([]sarifRule, 0, 2)
	if seen[KindIncompleteType] {
		rules = append(rules, sarifRule{
			ID:               ruleIDIncompleteType,
			Name:             "IncompleteType",
			ShortDescription: sarifMessage{Text: "A declaration refers to a type that is not fully defined; its metadata was dropped."},
			DefaultConfig:    sarifRuleDefaultConfig{Level: "warning"},
		})
	}
	if seen[KindInternal] {
		rules = append(rules, sarifRule{
			ID:               ruleIDInternal,
			Name:             "ExtractionFailure",
			ShortDescription: sarifMessage{Text: "A declaration could not be processed; its metadata was dropped."},
			DefaultConfig:    sarifRuleDefaultConfig{Level: "error"},
		})
	}
	return rules
}

func ruleID(k Kind) string {
	if k == KindIncompleteType {
		return ruleIDIncompleteType
	}
	return ruleIDInternal
}

func sarifLevel(s Severity) string {
	if s == SeverityError {
		return "error"
	}
	return "warning"
}

// relativeURI converts an absolute path to a forward-slash URI relative to
// root. Relative paths are returned with forward slashes only.
func relativeURI(root, path string) string {
	if root != "" && filepath.IsAbs(path) {
		if rel, err := filepath.Rel(root, path); err == nil {
			path = rel
		}
	}
	return filepath.ToSlash(path)
}
