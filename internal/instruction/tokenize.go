// Package instruction turns raw instruction text into validated placements
// and movement sequences.
package instruction

import (
	"fmt"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

const space = `\s\v\x{85}\x{A0}\p{Z}`

var lineLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Word", Pattern: `[^` + space + `]+`},
	{Name: "Whitespace", Pattern: `[` + space + `]+`},
})

// line is the grammar of one instruction: whitespace separated words.
type line struct {
	Tokens []string `parser:"@Word*"`
}

var lineParser = participle.MustBuild[line](
	participle.Lexer(lineLexer),
	participle.Elide("Whitespace"),
)

// Tokenize splits raw on runs of whitespace and drops empty tokens.
func Tokenize(raw string) ([]string, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}

	parsed, err := lineParser.ParseString("", raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedInput, err)
	}
	return parsed.Tokens, nil
}
