package policy

import (
	"log/slog"
	"regexp"
	"strings"
)

// CompiledPattern pairs a named regex with the rule identifier and
// violation description it contributes when it matches. Mirrors the
// name/regex/description shape the rest of governor uses for rule tables
// (see pkg/evidence/patterns.go), minus a replacement — policy rules only
// detect, they never rewrite content.
type CompiledPattern struct {
	Name        string
	Rule        string
	Regex       *regexp.Regexp
	Description string
}

// fileMutatingActions is the Authority Decoupling action set (spec §4.3.1).
var fileMutatingActions = map[string]bool{
	"file_write": true, "file_edit": true, "file_delete": true,
	"file_move": true, "write": true, "edit": true, "delete": true,
}

// shellActions is the Operational Constraints / Unproxied API action set
// (spec §4.3.2, §4.3.3).
var shellActions = map[string]bool{
	"bash": true, "shell": true, "command": true, "exec": true, "terminal": true,
}

// protectedPathPatterns detect governance-protected paths. Comparison is
// case-insensitive and path separators are normalised by the caller before
// matching (spec §4.3.1).
var protectedPathPatterns = compilePatterns([]rawPattern{
	{name: "protected_segment_governance", rule: "§I.1", pattern: `(?:^|/)governance(?:/|$)`, description: "path contains a protected 'governance' segment"},
	{name: "protected_segment_policy", rule: "§I.1", pattern: `(?:^|/)policy(?:/|$)`, description: "path contains a protected 'policy' segment"},
	{name: "protected_constitution_file", rule: "§I.2", pattern: `(?:^|/)constitution\.md$`, description: "path targets the protected CONSTITUTION.md"},
})

// forbiddenCommandPatterns are the Operational Constraints regex set
// (spec §4.3.2). Each match is its own violation.
var forbiddenCommandPatterns = compilePatterns([]rawPattern{
	{name: "sudo", rule: "§II", pattern: `\bsudo\b`, description: "command elevates privileges via sudo"},
	{name: "chmod_777", rule: "§II", pattern: `\bchmod\s+777\b`, description: "command grants world-writable permissions"},
	{name: "rm_rf_root", rule: "§II", pattern: `\brm\s+-rf\s+/(?:\s|$)`, description: "command recursively deletes the filesystem root"},
	{name: "rm_rf_glob", rule: "§II", pattern: `\brm\s+-rf\s+\*`, description: "command recursively deletes everything in the working directory"},
	{name: "mkfs", rule: "§II", pattern: `\bmkfs\b`, description: "command formats a filesystem"},
	{name: "dd_to_device", rule: "§II", pattern: `\bdd\b[^|;&]*\bof=/dev/`, description: "command writes raw data to a device node"},
})

// unproxiedNetworkPattern is the Unproxied API check (spec §4.3.3).
var unproxiedNetworkPattern = regexp.MustCompile(`\b(?:curl|wget)\b`)

type rawPattern struct {
	name, rule, pattern, description string
}

func compilePatterns(raw []rawPattern) []*CompiledPattern {
	compiled := make([]*CompiledPattern, 0, len(raw))
	for _, p := range raw {
		re, err := regexp.Compile(`(?i)` + p.pattern)
		if err != nil {
			slog.Error("policy: failed to compile rule pattern, skipping", "pattern", p.name, "error", err)
			continue
		}
		compiled = append(compiled, &CompiledPattern{Name: p.name, Rule: p.rule, Regex: re, Description: p.description})
	}
	return compiled
}

// normalizePath lower-cases and converts backslashes to forward slashes so
// path matching is separator- and case-insensitive, per spec §4.3.1.
func normalizePath(path string) string {
	return strings.ToLower(strings.ReplaceAll(path, `\`, `/`))
}
