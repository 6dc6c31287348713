package cmd

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/fatih/color"

	"github.com/helmcode/cropdoc/pkg/model"
)

// promptCandidate asks the user to pick one of candidates by number or
// name. An empty answer or end of input skips the selection.
func promptCandidate(r io.Reader, w io.Writer, candidates []model.CandidateDisease) (string, bool) {
	if len(candidates) == 0 {
		return "", false
	}
	scanner := bufio.NewScanner(r)
	for {
		fmt.Fprintf(w, "%s ", color.CyanString("Select a disease [1-%d, Enter to skip]:", len(candidates)))
		if !scanner.Scan() {
			fmt.Fprintln(w)
			return "", false
		}
		answer := strings.TrimSpace(scanner.Text())
		if answer == "" {
			return "", false
		}
		if n, err := strconv.Atoi(answer); err == nil {
			if n >= 1 && n <= len(candidates) {
				return candidates[n-1].Name, true
			}
		} else if c, ok := (&model.AnalysisResult{Candidates: candidates}).Candidate(answer); ok {
			return c.Name, true
		}
		fmt.Fprintln(w, color.RedString("✗ %q is not one of the listed diseases", answer))
	}
}
