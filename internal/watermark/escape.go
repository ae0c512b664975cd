package watermark

import "strings"

// Strategy is one deterministic transform making a line of watermark
// text safe for the drawtext filter syntax. Strategies are stateless;
// the executor walks the chain in order and never revisits a tried
// strategy for the same file.
type Strategy struct {
	Name    string
	Sidecar bool
	encode  func(string) string
}

// Encode transforms one raw line. For sidecar strategies the line is
// returned untouched: the executor writes it to a side file and the
// filter references the file instead of inlining the text.
func (s Strategy) Encode(line string) string {
	if s.encode == nil {
		return line
	}
	return s.encode(line)
}

// Chain returns the escaping strategies in priority order:
//
//  1. backslash-escape the characters reserved by the filter language
//  2. quote the whole value, escaping embedded quotes
//  3. move the text to a side file and reference it by path
func Chain() []Strategy {
	return []Strategy{
		{Name: "backslash", encode: escapeReserved},
		{Name: "quoted", encode: quoteValue},
		{Name: "sidecar", Sidecar: true},
	}
}

// Characters that are syntactically significant inside a filter graph:
// option separators, expansion markers, quoting and bracket syntax.
var reservedReplacer = strings.NewReplacer(
	`\`, `\\`,
	":", `\:`,
	"%", `\%`,
	"'", `\'`,
	`"`, `\"`,
	"=", `\=`,
	"[", `\[`,
	"]", `\]`,
	"\n", `\n`,
)

func escapeReserved(line string) string {
	return reservedReplacer.Replace(line)
}

// quoteValue wraps the value in single quotes, which neutralizes the
// option separators; embedded quotes are closed, escaped and reopened.
func quoteValue(line string) string {
	line = strings.ReplaceAll(line, `\`, `\\`)
	line = strings.ReplaceAll(line, "\n", `\n`)
	line = strings.ReplaceAll(line, "'", `'\''`)
	return "'" + line + "'"
}
