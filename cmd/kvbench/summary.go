package main

import (
	"fmt"
	"io"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/olekukonko/tablewriter"

	"github.com/lotusdblabs/kvbench"
)

// printSummary renders one row per measured iteration.
func printSummary(w io.Writer, r *kvbench.Report) error {
	for _, res := range r.Benchmarks {
		fmt.Fprintf(w, "\n%s (%s)\n", res.Name, r.Engine)
		table := tablewriter.NewWriter(w)
		table.SetAutoFormatHeaders(false)
		table.SetAutoWrapText(false)
		table.SetHeader([]string{"case", "iter", "first (s)", "second (s)", "ops/s", "size"})
		for _, c := range res.Cases {
			for i, m := range c.Measurements {
				table.Append([]string{
					c.Label,
					strconv.Itoa(i),
					strconv.FormatFloat(m.Durations[0], 'f', 3, 64),
					strconv.FormatFloat(m.Durations[1], 'f', 3, 64),
					humanize.CommafWithDigits(throughput(m), 0),
					humanize.IBytes(m.Size),
				})
			}
		}
		table.Render()
	}
	return nil
}

// throughput is the rate over every timed phase of m.
func throughput(m kvbench.MeasurementRecord) float64 {
	var ops int
	var secs float64
	for _, p := range m.Phases {
		if p.Discarded {
			continue
		}
		ops += p.Ops
		secs += p.Seconds
	}
	if secs <= 0 {
		return 0
	}
	return float64(ops) / secs
}
