package approvalgate

import (
	"encoding/json"
	"regexp"
)

// Classifier maps tool calls to a sensitivity level using name-pattern rules
// and, for shell-like tools, a shallow look at the command string itself.
type Classifier struct {
	highTools   map[string]bool
	mediumTools map[string]bool
	dangerousRe []*regexp.Regexp
}

// defaultHighTools are tools whose blast radius is large enough that a
// single bad invocation can destroy data or leak secrets.
var defaultHighTools = map[string]bool{
	"exec": true, "bash": true, "shell": true,
	"write": true, "apply_patch": true,
}

// defaultMediumTools touch the network or make in-place string edits to
// existing files.
var defaultMediumTools = map[string]bool{
	"edit": true,
	"websearch": true, "webfetch": true, "web_search": true, "web_fetch": true,
	"git_history": true,
}

// dangerousShellPatterns flag shell commands that are high sensitivity even
// when the tool itself would otherwise be classified lower (defense in depth
// for tools that shell out, such as "exec").
var dangerousShellPatterns = []string{
	`rm\s+-rf`, `:\(\)\s*\{`, `>\s*/dev/sd`, `mkfs\.`, `dd\s+if=`,
	`curl[^|]*\|\s*sh`, `wget[^|]*\|\s*sh`, `sudo\s`,
}

// NewClassifier creates a classifier. extraHighTools lets callers add
// tool names (e.g. registered MCP tools) that should always be high
// sensitivity regardless of the built-in defaults.
func NewClassifier(extraHighTools []string) *Classifier {
	high := make(map[string]bool, len(defaultHighTools)+len(extraHighTools))
	for k := range defaultHighTools {
		high[k] = true
	}
	for _, t := range extraHighTools {
		high[strip(t)] = true
	}

	medium := make(map[string]bool, len(defaultMediumTools))
	for k := range defaultMediumTools {
		medium[k] = true
	}

	patterns := make([]*regexp.Regexp, 0, len(dangerousShellPatterns))
	for _, p := range dangerousShellPatterns {
		patterns = append(patterns, regexp.MustCompile(p))
	}

	return &Classifier{highTools: high, mediumTools: medium, dangerousRe: patterns}
}

// Classify returns the sensitivity for a tool call given its name and raw
// JSON input.
func (c *Classifier) Classify(toolName string, input json.RawMessage) Sensitivity {
	name := strip(toolName)

	if name == "exec" || name == "bash" || name == "shell" {
		if cmd := extractCommand(input); cmd != "" {
			for _, re := range c.dangerousRe {
				if re.MatchString(cmd) {
					return SensitivityHigh
				}
			}
		}
	}

	if c.highTools[name] {
		return SensitivityHigh
	}
	if c.mediumTools[name] {
		return SensitivityMedium
	}
	return SensitivityLow
}

// extractCommand pulls the "command" field out of a shell-tool's JSON input,
// tolerating malformed input by returning an empty string.
func extractCommand(input json.RawMessage) string {
	var payload struct {
		Command string `json:"command"`
	}
	if len(input) == 0 {
		return ""
	}
	if err := json.Unmarshal(input, &payload); err != nil {
		return ""
	}
	return payload.Command
}
