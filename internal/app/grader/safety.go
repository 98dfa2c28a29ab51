package grader

import (
	"fmt"
	"regexp"
	"strings"
)

// Per-language safety tables. These are blocklists, not a real sandbox:
// best-effort screening of obviously dangerous code before it ever reaches
// the runner.

var pythonForbiddenImports = []string{
	"os", "sys", "subprocess", "socket", "urllib", "requests",
	"http", "ftplib", "telnetlib", "asyncio", "threading",
	"multiprocessing", "__import__", "eval", "exec", "compile",
	"open", "file", "input", "raw_input",
}

var pythonDangerousCalls = []string{"eval", "exec", "compile", "__import__", "open"}

var jsForbiddenRequires = []string{
	"fs", "child_process", "net", "http", "https", "dgram",
	"dns", "os", "process", "cluster", "worker_threads",
}

var jsDangerousGlobals = []string{"eval", "Function", "process.exit", "require.cache"}

var pythonCallPatterns = compileCallPatterns(pythonDangerousCalls)

func compileCallPatterns(names []string) map[string]*regexp.Regexp {
	out := make(map[string]*regexp.Regexp, len(names))
	for _, name := range names {
		out[name] = regexp.MustCompile(`\b` + regexp.QuoteMeta(name) + `\s*\(`)
	}
	return out
}

// CheckSafety screens code for known-dangerous constructs. The tables are
// data, not code branches; adding a language means adding a table.
func CheckSafety(code, languageID string) (bool, string) {
	switch languageID {
	case "python":
		return checkPythonSafety(code)
	case "javascript":
		return checkJavaScriptSafety(code)
	default:
		return true, ""
	}
}

func checkPythonSafety(code string) (bool, string) {
	lower := strings.ToLower(code)
	for _, forbidden := range pythonForbiddenImports {
		patterns := []string{
			"import " + forbidden,
			"from " + forbidden,
			"__import__('" + forbidden + "'",
			`__import__("` + forbidden + `"`,
		}
		for _, pattern := range patterns {
			if strings.Contains(lower, pattern) {
				return false, fmt.Sprintf("Forbidden import: %s", forbidden)
			}
		}
	}
	for _, name := range pythonDangerousCalls {
		if pythonCallPatterns[name].MatchString(code) {
			return false, fmt.Sprintf("Forbidden function: %s", name)
		}
	}
	return true, ""
}

func checkJavaScriptSafety(code string) (bool, string) {
	lower := strings.ToLower(code)
	for _, forbidden := range jsForbiddenRequires {
		patterns := []string{
			"require('" + forbidden + "'",
			`require("` + forbidden + `"`,
			"require(`" + forbidden + "`",
		}
		for _, pattern := range patterns {
			if strings.Contains(lower, pattern) {
				return false, fmt.Sprintf("Forbidden module: %s", forbidden)
			}
		}
	}
	for _, name := range jsDangerousGlobals {
		if strings.Contains(lower, strings.ToLower(name)) {
			return false, fmt.Sprintf("Forbidden: %s", name)
		}
	}
	return true, ""
}
