package query

import "strings"

// Combinator tokens. Scanning tries them longest first so `>>>` never reads
// as `>>` followed by a stray `>`.
const (
	opFallback  = "||"
	opCombine   = "++"
	opArrayPipe = ">>>"
	opPipe      = ">>"
)

// splitArrayPipe splits an expression on `>>>` occurrences, trimming each
// side. The array-pipe is resolved above segment lexing, so chain text never
// contains it.
func splitArrayPipe(expr string) []string {
	var parts []string
	start := 0
	for i := 0; i+len(opArrayPipe) <= len(expr); {
		if expr[i:i+len(opArrayPipe)] == opArrayPipe {
			parts = append(parts, strings.TrimSpace(expr[start:i]))
			i += len(opArrayPipe)
			start = i
			continue
		}
		i++
	}
	parts = append(parts, strings.TrimSpace(expr[start:]))
	return parts
}

// splitKeep splits chain text on `||`, `++`, and `>>`, retaining the
// operator tokens as their own entries. Empty entries are dropped.
func splitKeep(chain string) []string {
	ops := []string{opFallback, opCombine, opPipe}

	var tokens []string
	start := 0
	i := 0
scan:
	for i < len(chain) {
		for _, op := range ops {
			if strings.HasPrefix(chain[i:], op) {
				if piece := strings.TrimSpace(chain[start:i]); piece != "" {
					tokens = append(tokens, piece)
				}
				tokens = append(tokens, op)
				i += len(op)
				start = i
				continue scan
			}
		}
		i++
	}
	if piece := strings.TrimSpace(chain[start:]); piece != "" {
		tokens = append(tokens, piece)
	}
	return tokens
}

// parseChain folds the token sequence into segments. The fold carries
// (required, pipe) flags: `||` clears required, `++` sets it, `>>` sets both,
// and a segment token consumes the current flags, resetting pipe so it
// applies to exactly one segment.
func parseChain(chain string) (Chain, error) {
	tokens := splitKeep(chain)
	if len(tokens) == 0 {
		return Chain{}, parseError("empty segment")
	}

	required := true
	pipe := false
	segments := make([]Segment, 0, len(tokens))

	for _, token := range tokens {
		switch token {
		case opFallback:
			required = false
		case opCombine:
			required = true
		case opPipe:
			required = true
			pipe = true
		default:
			seg, err := parseSegment(token, required, pipe)
			if err != nil {
				return Chain{}, err
			}
			segments = append(segments, seg)
			pipe = false
		}
	}

	if len(segments) == 0 {
		return Chain{}, parseError("no segments in %q", chain)
	}

	return Chain{Segments: segments}, nil
}
