package policy

const (
	weightAuthority   = 0.9 // §I.* violations
	weightOperational = 0.6 // §II violations
	weightUnknown     = 0.5
	denyThreshold     = 0.8
)

// Evaluate runs the three unconditional check families against a proposal
// and returns a deterministic Result. It has no side effects; the caller is
// responsible for appending the POLICY_EVAL:* ledger event (spec §4.3).
func Evaluate(p Proposal) Result {
	var violations []Violation
	var signals []string
	var matchedRules []string
	var rationale []string
	seenRules := map[string]bool{}

	addMatch := func(rule, description string, signal Signal) {
		violations = append(violations, Violation{Rule: rule, Description: description})
		rationale = append(rationale, description)
		if !seenRules[rule] {
			seenRules[rule] = true
			matchedRules = append(matchedRules, rule)
		}
		signals = appendSignalOnce(signals, string(signal))
	}

	// 1. Authority Decoupling: at most one violation per target.
	if fileMutatingActions[p.ActionType] {
		target := p.TargetPath
		if target == "" {
			target = p.Content
		}
		normalized := normalizePath(target)
		for _, pat := range protectedPathPatterns {
			if pat.Regex.MatchString(normalized) {
				addMatch(pat.Rule, pat.Description, SignalProtectedPathWrite)
				break
			}
		}
	}

	// 2. Operational Constraints: each matching pattern is its own violation.
	if shellActions[p.ActionType] {
		for _, pat := range forbiddenCommandPatterns {
			if pat.Regex.MatchString(p.Content) {
				addMatch(pat.Rule, pat.Description, SignalDestructiveCommand)
			}
		}

		// 3. Unproxied API.
		if unproxiedNetworkPattern.MatchString(p.Content) {
			addMatch("§III", "command performs an unproxied outbound network call", SignalExternalNetworkAccess)
		}
	}

	riskScore := 0.0
	for _, v := range violations {
		riskScore += weightForRule(v.Rule)
	}
	if riskScore > 1.0 {
		riskScore = 1.0
	}

	decision := Approved
	switch {
	case len(violations) == 0:
		decision = Approved
		signals = appendSignalOnce(signals, string(SignalStandardOperation))
	case riskScore >= denyThreshold:
		decision = Denied
	default:
		decision = Escalated
	}

	return Result{
		Decision:     decision,
		RiskScore:    riskScore,
		Violations:   violations,
		Rationale:    rationale,
		MatchedRules: matchedRules,
		Signals:      signals,
	}
}

// weightForRule maps a matched rule id to its risk weight (spec §4.3):
// §I.* (Authority Decoupling) -> 0.9, §II (Operational Constraints) -> 0.6,
// anything else (e.g. §III, Unproxied API) -> 0.5.
func weightForRule(rule string) float64 {
	switch rule {
	case "§I.1", "§I.2":
		return weightAuthority
	case "§II":
		return weightOperational
	default:
		return weightUnknown
	}
}

func appendSignalOnce(signals []string, signal string) []string {
	for _, s := range signals {
		if s == signal {
			return signals
		}
	}
	return append(signals, signal)
}
