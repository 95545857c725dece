// internal/report/report.go
package report

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"

	"mssp-monitor/internal/model"
)

const barWidth = 30

type row struct {
	name   string
	cid    string
	prev   int
	cur    int
	delta  int
	ok     bool
	pinned bool
}

// Render prints the scan report for one cycle: the parent tenant first,
// pinned tenants next, then everything else alphabetically by name.
func Render(w io.Writer, res model.CycleResult) {
	var parentRows, pinnedRows, otherRows []row

	for _, d := range res.Diffs {
		rec := res.Tenants[d.TenantID]
		r := row{
			name:   rec.Name,
			cid:    string(d.TenantID),
			prev:   d.Previous,
			cur:    d.Current,
			delta:  d.Delta,
			ok:     d.OK,
			pinned: rec.IsPinned,
		}
		switch {
		case rec.IsParent:
			parentRows = append(parentRows, r)
		case rec.IsPinned:
			pinnedRows = append(pinnedRows, r)
		default:
			otherRows = append(otherRows, r)
		}
	}

	sort.Slice(pinnedRows, func(i, j int) bool { return pinnedRows[i].name < pinnedRows[j].name })
	sort.Slice(otherRows, func(i, j int) bool { return otherRows[i].name < otherRows[j].name })

	fmt.Fprintf(w, "\nMSSP scan report  %s  (cycle %s)\n\n",
		res.FinishedAt.Format("2006-01-02 15:04:05"), res.CycleID)

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TENANT\tCID\tOLD\tNOW\tCHANGE\tFLAGS")

	writeSection(tw, "PARENT", parentRows)
	writeSection(tw, "PINNED", pinnedRows)
	writeSection(tw, "OTHER TENANTS", otherRows)
	tw.Flush()

	fmt.Fprintf(w, "\nPinned license usage: [%s] %d / %d  %s\n",
		usageBar(res.PinnedTotal, res.Threshold),
		res.PinnedTotal, res.Threshold, statusLabel(res.OverThreshold))
	if res.FailedFetches > 0 {
		fmt.Fprintf(w, "WARNING: %d tenant fetches failed this cycle and count as zero above\n", res.FailedFetches)
	}
	fmt.Fprintln(w)
}

func writeSection(tw *tabwriter.Writer, label string, rows []row) {
	if len(rows) == 0 {
		return
	}
	fmt.Fprintf(tw, "-- %s\t\t\t\t\t\n", label)
	for _, r := range rows {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%s\t%s\n",
			r.name, r.cid, r.prev, r.cur, changeLabel(r.delta), flags(r))
	}
}

func changeLabel(delta int) string {
	switch {
	case delta > 0:
		return fmt.Sprintf("+%d", delta)
	case delta < 0:
		return fmt.Sprintf("%d", delta)
	default:
		return "0"
	}
}

func flags(r row) string {
	var parts []string
	if r.pinned {
		parts = append(parts, "PINNED")
	}
	if !r.ok {
		parts = append(parts, "FETCH FAILED")
	}
	return strings.Join(parts, ",")
}

func usageBar(total, threshold int) string {
	if threshold <= 0 {
		return strings.Repeat("-", barWidth)
	}
	ratio := float64(total) / float64(threshold)
	if ratio > 1 {
		ratio = 1
	}
	filled := int(ratio * barWidth)
	return strings.Repeat("#", filled) + strings.Repeat("-", barWidth-filled)
}

func statusLabel(over bool) string {
	if over {
		return "OVER THRESHOLD"
	}
	return "OK"
}
