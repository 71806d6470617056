package artifacts

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/sergi/go-diff/diffmatchpatch"
)

const (
	maxDiffLines    = 10000
	truncateMessage = "... (diff truncated, exceeds 10,000 lines) ..."
	maxSummaryLines = 20
)

// unifiedDiff is a unified-diff rendering of two text blobs plus the
// summary counts spec.md §4.5's "unified diff summary" calls for.
type unifiedDiff struct {
	Text      string
	Additions int
	Deletions int
	Summary   []string // first maxSummaryLines changed lines
}

// generateUnifiedDiff compares expected and actual text content, producing
// a unified-diff rendering truncated past maxDiffLines, adapted from the
// project's earlier line-oriented diff helper (now folded into artifact
// comparison).
func generateUnifiedDiff(expected, actual []byte, expectedLabel, actualLabel string) unifiedDiff {
	if bytes.Equal(expected, actual) {
		return unifiedDiff{}
	}

	dmp := diffmatchpatch.New()
	expectedStr, actualStr := string(expected), string(actual)
	diffs := dmp.DiffMain(expectedStr, actualStr, false)
	diffs = dmp.DiffCleanupSemantic(diffs)

	var buf bytes.Buffer
	timestamp := time.Now().Format("2006-01-02 15:04:05")
	fmt.Fprintf(&buf, "--- %s\t%s\n", expectedLabel, timestamp)
	fmt.Fprintf(&buf, "+++ %s\t%s\n", actualLabel, timestamp)

	expectedLines := strings.Split(expectedStr, "\n")
	actualLines := strings.Split(actualStr, "\n")
	fmt.Fprintf(&buf, "@@ -1,%d +1,%d @@\n", len(expectedLines), len(actualLines))

	var additions, deletions int
	var summary []string

	for _, d := range diffs {
		text := d.Text
		lines := strings.Split(text, "\n")
		if len(lines) > 0 && lines[len(lines)-1] == "" && text[len(text)-1] == '\n' {
			lines = lines[:len(lines)-1]
		}

		var prefix byte
		switch d.Type {
		case diffmatchpatch.DiffEqual:
			prefix = ' '
		case diffmatchpatch.DiffDelete:
			prefix = '-'
		case diffmatchpatch.DiffInsert:
			prefix = '+'
		}

		for _, line := range lines {
			buf.WriteByte(prefix)
			buf.WriteString(line)
			buf.WriteByte('\n')
			switch prefix {
			case '-':
				deletions++
			case '+':
				additions++
			}
			if prefix != ' ' && len(summary) < maxSummaryLines {
				summary = append(summary, string(prefix)+line)
			}
		}
	}

	result := buf.String()
	lines := strings.Split(result, "\n")
	if len(lines) > maxDiffLines {
		result = strings.Join(lines[:maxDiffLines], "\n") + "\n" + truncateMessage + "\n"
	}

	return unifiedDiff{Text: result, Additions: additions, Deletions: deletions, Summary: summary}
}
