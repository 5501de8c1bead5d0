package review

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spigell/interview-assistant/internal/roster"
)

// RenderList prints one row per candidate.
func RenderList(w io.Writer, items []ListItem) error {
	if len(items) == 0 {
		_, err := fmt.Fprintln(w, "no candidates")
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tSTATUS\tSCORE\tPROGRESS\tCREATED")
	for _, it := range items {
		id := it.ID
		if it.Active {
			id += " *"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d/%d\t%d/%d\t%s\n",
			id, it.Name, it.Status, it.Score, it.MaxScore, it.Answered, it.Questions,
			it.CreatedAt.Format("2006-01-02 15:04"))
	}
	return tw.Flush()
}

// RenderCandidate prints the full transcript and, once completed, the summary.
func RenderCandidate(w io.Writer, c *roster.Candidate) error {
	var b strings.Builder

	fmt.Fprintf(&b, "Candidate: %s (%s)\n", c.Identity.DisplayName(), c.ID)
	fmt.Fprintf(&b, "Email:     %s\n", orDash(c.Identity.Email))
	fmt.Fprintf(&b, "Phone:     %s\n", orDash(c.Identity.Phone))
	fmt.Fprintf(&b, "Status:    %s\n", c.Status)
	fmt.Fprintf(&b, "Score:     %d/%d\n", c.TotalScore(), c.MaxScore())

	if len(c.Transcript) > 0 {
		b.WriteString("\nTranscript:\n")
	}
	for i, r := range c.Transcript {
		fmt.Fprintf(&b, "%d. [%s] %s\n", i+1, r.Tier, r.QuestionText)
		switch {
		case r.TimedOut:
			b.WriteString("   Answer: (timed out)\n")
		case strings.TrimSpace(r.AnswerText) == "":
			b.WriteString("   Answer: (no answer)\n")
		default:
			fmt.Fprintf(&b, "   Answer: %s\n", r.AnswerText)
		}
		fmt.Fprintf(&b, "   Score:  %d/%d\n", r.Score, r.MaxScore)
	}

	if c.Summary != nil {
		fmt.Fprintf(&b, "\nSummary:\n%s\n", c.Summary.Text)
	}
	if c.Note != "" {
		fmt.Fprintf(&b, "\nAssistant note:\n%s\n", c.Note)
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}
