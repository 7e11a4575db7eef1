package scoring

import (
	"regexp"
	"time"
)

// Scoring weights. The rubric is fixed: identical candidates over
// identical evidence always produce identical breakdowns, so report
// ordering is reproducible run to run.
const (
	// CoverageCap bounds the coverage component. One point per distinct
	// evidence kind among the citations.
	CoverageCap = 3.0

	// TemporalCap bounds the temporal alignment component. The component
	// is TemporalCap times the fraction of timestamped citations whose
	// start falls at or after the incident onset.
	TemporalCap = 3.0

	// KBMatchCap bounds the known-failure-mode component. One point per
	// distinct matched indicator.
	KBMatchCap = 2.0

	// DeploySignalWeight is awarded when a cited deployment, build, or
	// change lands within DeployWindow before the anomaly anchor.
	DeploySignalWeight = 0.8

	// DeployWindow is how far before the anomaly anchor a cited
	// deployment still counts as a deploy signal.
	DeployWindow = 30 * time.Minute

	// SpecificityCap bounds the specificity component: one point for
	// naming a concrete component, one for a concrete artifact
	// (signature, version, SHA, PR number).
	SpecificityCap = 2.0

	// ContradictionPenalty is subtracted per listed contradiction.
	ContradictionPenalty = 1.0

	// ContradictionFloor bounds the accumulated penalty.
	ContradictionFloor = -3.0

	// totalNormalizer is the maximum achievable raw sum:
	// CoverageCap + TemporalCap + KBMatchCap + DeploySignalWeight +
	// SpecificityCap.
	totalNormalizer = 10.8
)

var (
	// componentPattern matches concrete component names such as
	// payments-api or auth_svc.
	componentPattern = regexp.MustCompile(`[a-z0-9]+[-_][a-z0-9_-]+`)

	// artifactPattern matches error signatures, versions, commit SHAs,
	// and PR numbers.
	artifactPattern = regexp.MustCompile(`\b[0-9a-f]{7,40}\b|\bv?\d+\.\d+(\.\d+)?\b|#\d+\b|\b\w+(Exception|Error)\b`)
)
