package codeblock

import (
	"strings"
	"testing"
)

func TestExtractFencedBlock(t *testing.T) {
	output := "Here is an example:\n```python\nprint(\"hello\")\n```\nHope that helps."

	code, lang, ok := Extract(output)
	if !ok {
		t.Fatalf("expected a code block")
	}
	if lang != "python" {
		t.Fatalf("expected python, got %q", lang)
	}
	if code != `print("hello")` {
		t.Fatalf("unexpected code: %q", code)
	}
}

func TestExtractFencedBlockWithoutLanguage(t *testing.T) {
	output := "```\nx = 1\n```"

	code, lang, ok := Extract(output)
	if !ok || lang != "" {
		t.Fatalf("expected anonymous block, got ok=%v lang=%q", ok, lang)
	}
	if code != "x = 1" {
		t.Fatalf("unexpected code: %q", code)
	}
}

func TestExtractFirstOfMultipleBlocks(t *testing.T) {
	output := "```go\npackage main\n```\nand also\n```python\npass\n```"

	code, lang, ok := Extract(output)
	if !ok || lang != "go" {
		t.Fatalf("expected first block, got ok=%v lang=%q", ok, lang)
	}
	if code != "package main" {
		t.Fatalf("unexpected code: %q", code)
	}
}

func TestExtractCodeTags(t *testing.T) {
	output := "The snippet is <code>def add(a, b):\n    return a + b</code> as requested."

	code, lang, ok := Extract(output)
	if !ok {
		t.Fatalf("expected a code block")
	}
	if lang != "python" {
		t.Fatalf("expected python guess, got %q", lang)
	}
	if !strings.HasPrefix(code, "def add") {
		t.Fatalf("unexpected code: %q", code)
	}
}

func TestExtractHeuristicPrefix(t *testing.T) {
	output := "Sure, here you go:\npackage main\n\nfunc main() {}\n"

	code, lang, ok := Extract(output)
	if !ok || lang != "go" {
		t.Fatalf("expected go heuristic match, got ok=%v lang=%q", ok, lang)
	}
	if !strings.HasPrefix(code, "package main") {
		t.Fatalf("heuristic should keep code from the first matching line: %q", code)
	}
	if strings.Contains(code, "Sure, here") {
		t.Fatalf("prose before the code should be dropped: %q", code)
	}
}

func TestExtractNoCode(t *testing.T) {
	if _, _, ok := Extract("This answer contains prose only."); ok {
		t.Fatalf("expected no code block")
	}
}

func TestFormatGo(t *testing.T) {
	code := "package main\nfunc main(){x:=1\n_=x}"

	formatted := Format(code, "go")
	if !strings.Contains(formatted, "x := 1") {
		t.Fatalf("expected gofmt output, got:\n%s", formatted)
	}
}

func TestFormatInvalidGoPassesThrough(t *testing.T) {
	code := "func main( {"
	if got := Format(code, "go"); got != code {
		t.Fatalf("invalid code should pass through untouched, got %q", got)
	}
}

func TestFormatOtherLanguageTrims(t *testing.T) {
	if got := Format("  print('x')\n\n", "python"); got != "print('x')" {
		t.Fatalf("unexpected formatting: %q", got)
	}
}

func TestFileExt(t *testing.T) {
	cases := map[string]string{
		"go":         ".go",
		"Python":     ".py",
		"javascript": ".js",
		"rust":       ".rs",
		"":           ".txt",
		"brainfuck":  ".txt",
	}
	for lang, want := range cases {
		if got := FileExt(lang); got != want {
			t.Errorf("FileExt(%q): expected %s, got %s", lang, want, got)
		}
	}
}
