package evidence

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/latticeguard/governor/pkg/ledger"
	"github.com/latticeguard/governor/pkg/sandbox"
)

// categoryWeights assigns the risk contribution of each finding category
// (spec §4.6). The map is versioned by hashing its canonical serialisation;
// that hash accompanies every review so a future reweighting is detectable
// against historical reviews.
var categoryWeights = map[Category]float64{
	CategoryScopeViolation:   0.3,
	CategoryForbiddenPath:    0.5,
	CategorySecretExposure:   0.5,
	CategoryDependencyChange: 0.1,
	CategoryNetworkAttempt:   0.2,
}

var weightMapHash = mustHashWeightMap(categoryWeights)

func mustHashWeightMap(weights map[Category]float64) string {
	generic := make(map[string]any, len(weights))
	for category, weight := range weights {
		generic[string(category)] = weight
	}

	canonical, err := ledger.Canonicalize(generic)
	if err != nil {
		panic(fmt.Sprintf("evidence: canonicalize category weight map: %v", err))
	}

	sum := sha256.Sum256([]byte(canonical))
	return hex.EncodeToString(sum[:])
}

// autoApproveRiskCeiling is the maximum risk_delta a tier-1 run may still be
// auto-approved at (spec §4.6).
const autoApproveRiskCeiling = 0.2

// Review runs the deterministic scans over packet and its declared allowed
// paths, returning findings, a capped risk delta, and pass/fail (spec
// §4.6).
func Review(packet *Packet, allowPaths []string) ReviewResult {
	var findings []Finding

	if packet.BlastBox != nil {
		findings = append(findings, scanScope(packet.BlastBox.Changes, allowPaths)...)
		findings = append(findings, scanForbiddenPaths(packet.BlastBox.Changes)...)
		findings = append(findings, scanSecrets(packet.BlastBox.Stdout, "stdout")...)
		findings = append(findings, scanSecrets(packet.BlastBox.Stderr, "stderr")...)
		findings = append(findings, scanDependencyChanges(packet.BlastBox.Changes)...)
		findings = append(findings, scanNetworkAttempts(packet.BlastBox.Stdout, "stdout")...)
		findings = append(findings, scanNetworkAttempts(packet.BlastBox.Stderr, "stderr")...)
	}

	riskDelta := 0.0
	scopeCompliant := true
	passed := true
	for _, f := range findings {
		riskDelta += categoryWeights[f.Category]
		if f.Category == CategoryScopeViolation {
			scopeCompliant = false
		}
		if f.Severity == SeverityCritical || f.Severity == SeverityHigh {
			passed = false
		}
	}
	if riskDelta > 1.0 {
		riskDelta = 1.0
	}

	return ReviewResult{
		Passed:         passed,
		Findings:       findings,
		RiskDelta:      riskDelta,
		ScopeCompliant: scopeCompliant,
		ReviewedAt:     time.Now().UTC(),
		WeightMapHash:  weightMapHash,
	}
}

// ShouldAutoApprove reports whether a tier-1 review qualifies for
// auto-approval (spec §4.6): passed with no more than a small residual risk.
// Other tiers never auto-approve, which callers enforce before invoking
// this.
func ShouldAutoApprove(review ReviewResult) bool {
	return review.Passed && review.RiskDelta <= autoApproveRiskCeiling
}

func scanScope(changes []sandbox.PathChange, allowPaths []string) []Finding {
	var findings []Finding
	for _, c := range changes {
		if c.Kind != sandbox.ChangeAdded && c.Kind != sandbox.ChangeModified {
			continue
		}
		if pathAllowed(c.Path, allowPaths) {
			continue
		}
		findings = append(findings, Finding{
			Category:    CategoryScopeViolation,
			Severity:    SeverityHigh,
			Description: fmt.Sprintf("path %q was modified outside every declared allow_paths prefix", c.Path),
			FilePath:    c.Path,
		})
	}
	return findings
}

func pathAllowed(path string, allowPaths []string) bool {
	if len(allowPaths) == 0 {
		return false
	}
	clean := filepath.ToSlash(path)
	for _, prefix := range allowPaths {
		p := strings.TrimSuffix(filepath.ToSlash(prefix), "/")
		if clean == p || strings.HasPrefix(clean, p+"/") {
			return true
		}
	}
	return false
}

func scanForbiddenPaths(changes []sandbox.PathChange) []Finding {
	var findings []Finding
	for _, c := range changes {
		if c.Kind == sandbox.ChangeUnchanged {
			continue
		}
		for _, pattern := range forbiddenPathPatterns {
			if pattern.Regex.MatchString(c.Path) {
				findings = append(findings, Finding{
					Category:       CategoryForbiddenPath,
					Severity:       SeverityCritical,
					Description:    fmt.Sprintf("path %q matches forbidden pattern %q", c.Path, pattern.Name),
					FilePath:       c.Path,
					MatchedPattern: pattern.Name,
				})
				break // one finding per file
			}
		}
	}
	return findings
}

func scanSecrets(output, stream string) []Finding {
	var findings []Finding
	for _, pattern := range secretPatterns {
		if pattern.Regex.MatchString(output) {
			findings = append(findings, Finding{
				Category:       CategorySecretExposure,
				Severity:       SeverityCritical,
				Description:    fmt.Sprintf("%s matched secret pattern %q in %s", pattern.Name, pattern.Name, stream),
				MatchedPattern: pattern.Name,
			})
		}
	}
	return findings
}

func scanDependencyChanges(changes []sandbox.PathChange) []Finding {
	var findings []Finding
	for _, c := range changes {
		if c.Kind != sandbox.ChangeAdded && c.Kind != sandbox.ChangeModified {
			continue
		}
		base := filepath.Base(c.Path)
		if dependencyManifestBasenames[base] {
			findings = append(findings, Finding{
				Category:    CategoryDependencyChange,
				Severity:    SeverityMedium,
				Description: fmt.Sprintf("dependency manifest %q was added or modified", c.Path),
				FilePath:    c.Path,
			})
		}
	}
	return findings
}

func scanNetworkAttempts(output, stream string) []Finding {
	var findings []Finding
	for _, pattern := range networkAttemptPatterns {
		if pattern.Regex.MatchString(output) {
			findings = append(findings, Finding{
				Category:       CategoryNetworkAttempt,
				Severity:       SeverityMedium,
				Description:    fmt.Sprintf("output on %s matched network-attempt signature %q", stream, pattern.Name),
				MatchedPattern: pattern.Name,
			})
		}
	}
	return findings
}
