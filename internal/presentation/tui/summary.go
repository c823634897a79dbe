package tui

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/muesli/termenv"

	"github.com/aretw0/arbor/pkg/domain"
)

const timePrecision = time.Millisecond

// RunSummary builds a markdown summary of a finished run, suitable for
// NewRenderer output.
func RunSummary(record *domain.RunRecord) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "# Run %s\n\n", record.ID)
	fmt.Fprintf(&sb, "- **Workflow**: %s\n", record.Workflow)
	fmt.Fprintf(&sb, "- **Status**: %s\n", record.Status)
	if !record.FinishedAt.IsZero() {
		fmt.Fprintf(&sb, "- **Duration**: %s\n", record.FinishedAt.Sub(record.StartedAt).Round(timePrecision))
	}
	if record.Error != "" {
		fmt.Fprintf(&sb, "- **Error**: %s\n", record.Error)
	}

	if len(record.Context) > 0 {
		sb.WriteString("\n## Final context\n\n")
		keys := make([]string, 0, len(record.Context))
		for k := range record.Context {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&sb, "- **%s**: %v\n", k, record.Context[k])
		}
	}

	return sb.String()
}

// StatusLine renders a one-line colored status for the terminal.
func StatusLine(record *domain.RunRecord) string {
	p := termenv.ColorProfile()

	color := "#4ade80" // green
	if record.Status == domain.RunFailed {
		color = "#f87171" // red
	}

	status := termenv.String(string(record.Status)).Foreground(p.Color(color)).Bold()
	return fmt.Sprintf("%s %s", status, record.ID)
}
