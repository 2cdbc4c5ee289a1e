package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"
)

// endpointView mirrors the API's endpoint JSON.
type endpointView struct {
	Endpoint      string `json:"endpoint"`
	Status        string `json:"status"`
	IntervalMS    int64  `json:"interval_ms"`
	GracePeriodMS int64  `json:"grace_period_ms"`
	InGracePeriod bool   `json:"in_grace_period"`
	Outage        *struct {
		StartMS int64 `json:"start_ms"`
		EndMS   int64 `json:"end_ms"`
	} `json:"outage,omitempty"`
	LastTransition *struct {
		From string    `json:"from"`
		To   string    `json:"to"`
		At   time.Time `json:"at"`
	} `json:"last_transition,omitempty"`
	Paused bool `json:"paused"`
}

func ms(v int64) string { return (time.Duration(v) * time.Millisecond).String() }

func printTable(w io.Writer, eps []endpointView) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ENDPOINT\tSTATUS\tINTERVAL\tGRACE\tOUTAGE\tPAUSED")
	for _, e := range eps {
		status := e.Status
		if e.InGracePeriod {
			status += " (grace)"
		}
		outage := "-"
		if e.Outage != nil {
			outage = time.UnixMilli(e.Outage.StartMS).UTC().Format(time.RFC3339) + " .. " +
				time.UnixMilli(e.Outage.EndMS).UTC().Format(time.RFC3339)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%v\n",
			e.Endpoint, status, ms(e.IntervalMS), ms(e.GracePeriodMS), outage, e.Paused)
	}
	_ = tw.Flush()
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// render prints v as JSON or, for text, as a table of endpoints.
func render(w io.Writer, format string, eps []endpointView) error {
	if format == "json" {
		return printJSON(w, eps)
	}
	printTable(w, eps)
	return nil
}
