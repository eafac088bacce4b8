// Package codeblock extracts code from model output. Models wrap code
// in markdown fences, HTML tags, or nothing at all, so extraction works
// through a chain of progressively looser strategies.
package codeblock

import (
	"go/format"
	"regexp"
	"strings"
)

var (
	fenceRe = regexp.MustCompile("(?s)```([a-zA-Z0-9+#-]*)\\s*\\n(.*?)```")
	tagRe   = regexp.MustCompile(`(?s)<code>(.*?)</code>`)
)

// Placeholder is written in place of a code example when no strategy
// finds code in the model output.
const Placeholder = "# No code block found in the response."

// linePrefixes are opening tokens that mark a line as probable code when
// no explicit delimiters are present.
var linePrefixes = []struct {
	prefix string
	lang   string
}{
	{"package ", "go"},
	{"func ", "go"},
	{"import ", "go"},
	{"def ", "python"},
	{"class ", "python"},
	{"from ", "python"},
	{"#include", "c"},
	{"public class", "java"},
}

// Extract pulls the first code block out of model output. It tries
// markdown fences, then <code> tags, then a line-prefix heuristic.
// Returns ok=false when nothing in the output looks like code.
func Extract(output string) (code, lang string, ok bool) {
	if m := fenceRe.FindStringSubmatch(output); m != nil {
		return strings.TrimSpace(m[2]), strings.ToLower(m[1]), true
	}
	if m := tagRe.FindStringSubmatch(output); m != nil {
		code := strings.TrimSpace(m[1])
		return code, guessLang(code), true
	}

	lines := strings.Split(output, "\n")
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		for _, p := range linePrefixes {
			if strings.HasPrefix(trimmed, p.prefix) {
				return strings.TrimSpace(strings.Join(lines[i:], "\n")), p.lang, true
			}
		}
	}

	return "", "", false
}

func guessLang(code string) string {
	for _, line := range strings.Split(code, "\n") {
		trimmed := strings.TrimSpace(line)
		for _, p := range linePrefixes {
			if strings.HasPrefix(trimmed, p.prefix) {
				return p.lang
			}
		}
	}
	return ""
}

// Format normalizes extracted code. Go code runs through gofmt; code in
// other languages passes through with trimmed whitespace, since shelling
// out to language-specific formatters is not worth the dependency.
func Format(code, lang string) string {
	code = strings.TrimSpace(code)
	if lang == "go" || lang == "golang" {
		if formatted, err := format.Source([]byte(code)); err == nil {
			return strings.TrimSpace(string(formatted))
		}
	}
	return code
}

// FileExt returns the conventional file extension for a language,
// defaulting to .txt for anything unrecognized.
func FileExt(lang string) string {
	switch strings.ToLower(lang) {
	case "go", "golang":
		return ".go"
	case "python", "py":
		return ".py"
	case "javascript", "js":
		return ".js"
	case "typescript", "ts":
		return ".ts"
	case "rust", "rs":
		return ".rs"
	case "java":
		return ".java"
	case "c":
		return ".c"
	case "cpp", "c++":
		return ".cpp"
	case "ruby", "rb":
		return ".rb"
	case "shell", "sh", "bash":
		return ".sh"
	case "sql":
		return ".sql"
	case "yaml", "yml":
		return ".yaml"
	case "json":
		return ".json"
	case "html":
		return ".html"
	default:
		return ".txt"
	}
}
