package golden

import (
	"fmt"
	"io"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// WriteDiff writes a line-level comparison of expected and actual output.
func WriteDiff(w io.Writer, testName, expected, actual string) {
	fmt.Fprintf(w, "=== Test: %s ===\n", testName)

	if expected == actual {
		fmt.Fprintln(w, "No differences found - test passes!")
		return
	}

	dmp := diffmatchpatch.New()
	a, b, lines := dmp.DiffLinesToChars(expected+"\n", actual+"\n")
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(a, b, false), lines)

	for _, diff := range diffs {
		prefix := "  "
		switch diff.Type {
		case diffmatchpatch.DiffDelete:
			prefix = "- "
		case diffmatchpatch.DiffInsert:
			prefix = "+ "
		}
		for _, line := range strings.Split(strings.TrimSuffix(diff.Text, "\n"), "\n") {
			fmt.Fprintf(w, "%s%s\n", prefix, line)
		}
	}
}
