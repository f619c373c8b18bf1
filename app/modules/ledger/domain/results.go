package ledgerdomain

import (
	"regexp"
	"strconv"
	"strings"
)

// ResultRow is one parsed finishing position.
type ResultRow struct {
	Position int    `json:"position"`
	Nick     string `json:"nick"`
}

// resultLine matches "1. Name", "#2 Name", ".3-Name", "4: Name".
var resultLine = regexp.MustCompile(`^[#.]?(\d+)[.\s\-:]+(.+)$`)

// ParseResultsText extracts result rows from free text, one candidate per line. Lines that do not
// look like "<position><separator><name>" or whose position is outside 1..MaxScoringPosition are
// ignored.
func ParseResultsText(text string) []ResultRow {
	var rows []ResultRow
	for _, line := range strings.Split(text, "\n") {
		row, ok := ParseResultLine(line)
		if ok {
			rows = append(rows, row)
		}
	}
	return rows
}

// ParseResultLine parses a single line.
func ParseResultLine(line string) (ResultRow, bool) {
	line = strings.TrimSpace(line)
	if line == "" {
		return ResultRow{}, false
	}
	m := resultLine.FindStringSubmatch(line)
	if m == nil {
		return ResultRow{}, false
	}
	pos, err := strconv.Atoi(m[1])
	if err != nil || pos < 1 || pos > MaxScoringPosition {
		return ResultRow{}, false
	}
	name := strings.TrimSpace(m[2])
	if name == "" {
		return ResultRow{}, false
	}
	return ResultRow{Position: pos, Nick: name}, true
}
