package evidence

import "regexp"

// CompiledPattern pairs a named regex with the category it contributes when
// it matches. Mirrors the name/regex table shape the rest of governor uses
// for rule tables (see pkg/policy/patterns.go), ordered rather than keyed
// by map so scans stay reproducible across runs.
type CompiledPattern struct {
	Name  string
	Regex *regexp.Regexp
}

type rawPattern struct {
	name, pattern string
}

func compilePatterns(raw []rawPattern) []CompiledPattern {
	out := make([]CompiledPattern, 0, len(raw))
	for _, r := range raw {
		out = append(out, CompiledPattern{Name: r.name, Regex: regexp.MustCompile(r.pattern)})
	}
	return out
}

// forbiddenPathPatterns is the closed regex set of paths a sandbox run must
// never touch, regardless of declared scope (spec §4.6).
var forbiddenPathPatterns = compilePatterns([]rawPattern{
	{name: "constitution", pattern: `(?i)(^|/)CONSTITUTION\.md$`},
	{name: "governance", pattern: `(?i)(^|/)governance/`},
	{name: "policy_dir", pattern: `(?i)(^|/)policy/`},
	{name: "dotenv", pattern: `(?i)(^|/)\.env$`},
	{name: "dotgit", pattern: `(?i)(^|/)\.git/`},
	{name: "key_file", pattern: `(?i)\.key$`},
	{name: "pem_file", pattern: `(?i)\.pem$`},
	{name: "id_rsa", pattern: `(?i)(^|/)id_rsa$`},
})

// secretPatterns matches credential material that must never appear in
// captured sandbox output (spec §4.6). Each is scanned independently across
// stdout and stderr, at most one finding per (pattern, stream).
var secretPatterns = compilePatterns([]rawPattern{
	{name: "aws_access_key", pattern: `AKIA[0-9A-Z]{16}`},
	{name: "github_token", pattern: `gh[posrt]_[A-Za-z0-9_]{36,}`},
	{name: "generic_api_key", pattern: `(?i)api_key\s*=\s*\S+`},
	{name: "pem_private_key", pattern: `-----BEGIN [A-Z ]*PRIVATE KEY-----`},
})

// networkAttemptPatterns matches common signatures of outbound network
// activity surfaced in captured output (spec §4.6).
var networkAttemptPatterns = compilePatterns([]rawPattern{
	{name: "curl_wget_fetch", pattern: `\b(?:curl|wget|fetch)\b`},
	{name: "url_scheme", pattern: `\b(?:https?|ftp)://`},
	{name: "dns_syscall", pattern: `\b(?:getaddrinfo|gethostbyname|res_query)\b`},
	{name: "socket_primitive", pattern: `\b(?:socket\(|connect\(|AF_INET)\b`},
	{name: "unreachable_refused", pattern: `(?i)(connection refused|network is unreachable|no route to host)`},
})

// dependencyManifestBasenames is the closed set of filenames whose
// addition/modification indicates a dependency change (spec §4.6).
var dependencyManifestBasenames = map[string]bool{
	"package-lock.json": true,
	"package.json":      true,
	"poetry.lock":       true,
	"pyproject.toml":    true,
	"requirements.txt":  true,
	"Gemfile.lock":      true,
	"go.sum":            true,
	"Cargo.lock":        true,
}
