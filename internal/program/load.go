package program

import (
	"strconv"
	"strings"

	"basiccore/internal/lexer"
)

// LoadSource tokenizes a whole BASIC listing (one "nnn statement..."
// line per program line, blank lines and lines with no leading number
// ignored) and installs each into p via SetLine, following the same
// line-at-a-time tokenization Tokenize already performs per
// statement body.
func LoadSource(p *Program, src string) error {
	for _, raw := range strings.Split(src, "\n") {
		line := strings.TrimRight(raw, "\r")
		trimmed := strings.TrimLeft(line, " \t")
		if trimmed == "" {
			continue
		}
		i := 0
		for i < len(trimmed) && trimmed[i] >= '0' && trimmed[i] <= '9' {
			i++
		}
		if i == 0 {
			continue
		}
		num, err := strconv.Atoi(trimmed[:i])
		if err != nil {
			continue
		}
		body := trimmed[i:]
		if len(body) > 0 && body[0] == ' ' {
			body = body[1:]
		}
		toks, err := lexer.Tokenize(body)
		if err != nil {
			return err
		}
		p.SetLine(num, toks)
	}
	return nil
}
