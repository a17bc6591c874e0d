// Package detect proposes a format definition for a sample of lines.
package detect

import (
	"strings"

	"logscope/internal/model"
	"logscope/internal/parse"
)

// MinConfidence is the share of record lines a format must match before it
// is suggested.
const MinConfidence = 0.5

type Guess struct {
	FormatID   string
	Name       string
	Confidence float64
	Matched    int
	Lines      int
}

func (g Guess) Found() bool { return g.FormatID != "" }

// Suggest returns the definition matching most record lines of sample.
// Indented continuation lines are not counted. Ties keep catalog order.
func Suggest(sample []string, defs []model.LogFormatDefinition) Guess {
	records := make([]string, 0, len(sample))
	for _, l := range sample {
		raw := strings.TrimRight(l, "\r")
		if strings.TrimSpace(raw) == "" || strings.HasPrefix(raw, " ") || strings.HasPrefix(raw, "\t") {
			continue
		}
		records = append(records, strings.TrimSpace(raw))
	}
	best := Guess{Lines: len(records)}
	if len(records) == 0 {
		return best
	}
	for _, def := range defs {
		p, err := parse.NewParser(&def)
		if err != nil {
			continue
		}
		hits := 0
		for _, r := range records {
			if _, ok := p.ParseLine(r); ok {
				hits++
			}
		}
		if hits > best.Matched {
			best.FormatID, best.Name, best.Matched = def.ID, def.Name, hits
		}
	}
	best.Confidence = conf(best.Lines, best.Matched)
	if best.Confidence < MinConfidence {
		return Guess{Lines: best.Lines, Matched: best.Matched, Confidence: best.Confidence}
	}
	return best
}

func conf(lines, hits int) float64 {
	if lines == 0 {
		return 0
	}
	return float64(hits) / float64(lines)
}
