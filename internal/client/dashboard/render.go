package dashboard

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"gopkg.in/yaml.v3"
)

const barWidth = 20

// RenderYAML writes the dashboard as YAML
func RenderYAML(w io.Writer, dash *Dashboard) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(dash); err != nil {
		return fmt.Errorf("encode dashboard: %w", err)
	}
	return enc.Close()
}

// RenderText writes the dashboard as aligned plain-text tables
func RenderText(w io.Writer, dash *Dashboard) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	if dash.Degraded {
		fmt.Fprintln(tw, "(offline: computed from the last known task list)")
		fmt.Fprintln(tw)
	}

	s := dash.Stats
	fmt.Fprintln(tw, "SUMMARY")
	fmt.Fprintf(tw, "Total\t%d\n", s.Total)
	fmt.Fprintf(tw, "Completed\t%d\n", s.Completed)
	fmt.Fprintf(tw, "In progress\t%d\n", s.InProgress)
	fmt.Fprintf(tw, "Pending\t%d\n", s.Pending)
	fmt.Fprintf(tw, "Overdue\t%d\n", s.Overdue)
	fmt.Fprintf(tw, "Completion rate\t%.1f%%\n", dash.CompletionRate)
	fmt.Fprintf(tw, "Average progress\t%.1f%%\n", s.AverageProgress)
	fmt.Fprintf(tw, "Time spent\t%.2fh\n", s.TotalTimeSpent)
	if dash.TotalEstimatedHours > 0 {
		fmt.Fprintf(tw, "Estimated\t%.2fh\n", dash.TotalEstimatedHours)
	}

	fmt.Fprintln(tw)
	fmt.Fprintln(tw, "PROGRESS\tTASKS\t")
	max := 0
	for _, b := range dash.Buckets {
		if b.Count > max {
			max = b.Count
		}
	}
	for _, b := range dash.Buckets {
		fmt.Fprintf(tw, "%s\t%d\t%s\n", b.Label, b.Count, bar(b.Count, max))
	}

	fmt.Fprintln(tw)
	fmt.Fprintln(tw, "RECENT ACTIVITY")
	if len(dash.RecentActivity) == 0 {
		fmt.Fprintln(tw, "No activity yet")
	} else {
		fmt.Fprintln(tw, "DATE\tTASK\tSTATUS\tPROGRESS")
		for _, a := range dash.RecentActivity {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%d%%\n", a.LastWorkedOn, a.Title, a.Status, a.Progress)
		}
	}

	if len(dash.TimeByDay) > 0 {
		fmt.Fprintln(tw)
		fmt.Fprintln(tw, "DATE\tHOURS")
		for _, d := range dash.TimeByDay {
			fmt.Fprintf(tw, "%s\t%.2f\n", d.Date, d.Value)
		}
	}

	if len(dash.Productivity) > 0 {
		fmt.Fprintln(tw)
		fmt.Fprintln(tw, "DATE\tTASKS\tPROGRESS\tDONE\tBLOCKERS")
		for _, d := range dash.Productivity {
			fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%d\n", d.Date, d.TasksWorkedOn, d.TotalProgress, d.Accomplishments, d.Blockers)
		}
	}

	return tw.Flush()
}

func bar(n, max int) string {
	if max == 0 || n == 0 {
		return ""
	}
	width := n * barWidth / max
	if width == 0 {
		width = 1
	}
	return strings.Repeat("#", width)
}
