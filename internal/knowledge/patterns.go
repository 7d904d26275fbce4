// Package knowledge implements the Knowledge Base (§4.10): a static table
// of regex failure patterns, augmented by a user-editable JSON file, used
// to produce a DebugAnalysis for a failed run.
package knowledge

import "regexp"

// FailurePattern is a single known failure signature and its remedies.
type FailurePattern struct {
	ID          string   `json:"id"`
	RegexPattern string  `json:"regex_pattern"`
	Category    string   `json:"category"`
	Title       string   `json:"title"`
	Solutions   []string `json:"solutions"`

	compiled *regexp.Regexp
}

func (p *FailurePattern) matches(text string) bool {
	if p.compiled == nil {
		re, err := regexp.Compile(p.RegexPattern)
		if err != nil {
			return false
		}
		p.compiled = re
	}
	return p.compiled.MatchString(text)
}

// builtinPatterns mirrors the seven built-in patterns named in §4.10:
// module-not-found, npm missing, OOM, connection-refused,
// permission-denied, syntax, timeout.
var builtinPatterns = []*FailurePattern{
	{
		ID:           "builtin_module_not_found",
		RegexPattern: `ModuleNotFoundError: No module named '(\S+)'`,
		Category:     "dependency",
		Title:        "Python module not found",
		Solutions: []string{
			"Add the missing module to requirements.txt or Pipfile.",
			"Install the module in the Dockerfile.",
			"Use a base image that includes the module.",
		},
	},
	{
		ID:           "builtin_npm_missing",
		RegexPattern: `(?:npm ERR!|Cannot find module) '(\S+)'`,
		Category:     "dependency",
		Title:        "npm module not found",
		Solutions: []string{
			"Run 'npm install' before executing the command.",
			"Add the missing package to package.json.",
			"Use a pre-built image with dependencies installed.",
		},
	},
	{
		ID:           "builtin_oom",
		RegexPattern: `(?i)(?:killed|oomkilled|out of memory|memoryerror|cannot allocate memory)`,
		Category:     "oom",
		Title:        "Out of memory",
		Solutions: []string{
			"Increase the container memory limit.",
			"Optimize memory usage in the application.",
			"Process data in smaller batches.",
		},
	},
	{
		ID:           "builtin_connection_refused",
		RegexPattern: `(?i)(?:connection refused|econnrefused|connectionrefusederror)`,
		Category:     "network",
		Title:        "Connection refused",
		Solutions: []string{
			"Ensure the target service is running and healthy.",
			"Check the service hostname and port configuration.",
			"Add a health check wait before connecting.",
		},
	},
	{
		ID:           "builtin_permission_denied",
		RegexPattern: `(?i)(?:permission denied|eacces|permissionerror)`,
		Category:     "permission",
		Title:        "Permission denied",
		Solutions: []string{
			"Check file permissions in the container.",
			"Run as a different user or adjust ownership.",
			"Mount volumes with correct permissions.",
		},
	},
	{
		ID:           "builtin_syntax_error",
		RegexPattern: `(?:SyntaxError|IndentationError|TabError|ParseError)`,
		Category:     "syntax",
		Title:        "Syntax error in code",
		Solutions: []string{
			"Check the file mentioned in the traceback for syntax issues.",
			"Run a linter locally before submitting the job.",
			"Verify the runtime version is compatible.",
		},
	},
	{
		ID:           "builtin_timeout",
		RegexPattern: `(?i)(?:timeouterror|timed out|etimedout|deadline exceeded)`,
		Category:     "timeout",
		Title:        "Operation timed out",
		Solutions: []string{
			"Increase the timeout value.",
			"Optimize the slow operation.",
			"Check for infinite loops or deadlocks.",
		},
	},
}
