package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/BrandonDHaskell/sensorguard/internal/sensorguard/types"
)

const timeLayout = "2006-01-02 15:04:05"

func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
}

func local(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format(timeLayout)
}

func printStatus(w io.Writer, st types.StatusResponse) {
	enabled := "disabled"
	if st.Enabled {
		enabled = "enabled"
	}
	fmt.Fprintf(w, "Monitoring: %s (%s)\n", enabled, strings.ToLower(st.State))
	fmt.Fprintf(w, "Unacknowledged alerts: %d\n", st.UnacknowledgedAlerts)
}

func printLogs(w io.Writer, logs []types.LogEntry) {
	tw := newTable(w)
	fmt.Fprintln(tw, "TIME\tAPP\tSENSOR\tBACKGROUND\tSCREEN OFF\tREASON")
	for _, l := range logs {
		reason := ""
		if l.SuspiciousReason != nil {
			reason = *l.SuspiciousReason
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%t\t%t\t%s\n",
			local(l.AccessedAt), appLabel(l.AppName, l.AppID), l.Sensor, l.WasBackground, l.WasScreenOff, reason)
	}
	tw.Flush()
}

func printAlerts(w io.Writer, alerts []types.Alert) {
	tw := newTable(w)
	fmt.Fprintln(tw, "ID\tTIME\tTYPE\tACK\tMESSAGE")
	for _, a := range alerts {
		ack := " "
		if a.Acknowledged {
			ack = "x"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", a.ID, local(a.Timestamp), a.Type, ack, a.Message)
	}
	tw.Flush()
}

func printStats(w io.Writer, rows []types.AppStats) {
	tw := newTable(w)
	header := []string{"APP"}
	for _, s := range types.AllSensors() {
		header = append(header, string(s))
	}
	header = append(header, "BACKGROUND", "UPDATED")
	fmt.Fprintln(tw, strings.Join(header, "\t"))

	for _, r := range rows {
		cols := []string{appLabel(r.AppName, r.AppID)}
		for _, s := range types.AllSensors() {
			cols = append(cols, fmt.Sprint(r.Counts[s]))
		}
		cols = append(cols, fmt.Sprint(r.BackgroundCount), local(r.LastUpdated))
		fmt.Fprintln(tw, strings.Join(cols, "\t"))
	}
	tw.Flush()
}

func printSummaries(w io.Writer, sums []types.DailySummary) {
	tw := newTable(w)
	header := []string{"DATE"}
	for _, s := range types.AllSensors() {
		header = append(header, string(s))
	}
	header = append(header, "BACKGROUND", "ALERTS")
	fmt.Fprintln(tw, strings.Join(header, "\t"))

	for _, d := range sums {
		cols := []string{d.Date}
		for _, s := range types.AllSensors() {
			cols = append(cols, fmt.Sprintf("%d (%d apps)", d.Totals[s], d.DistinctApps[s]))
		}
		cols = append(cols, fmt.Sprint(d.BackgroundAccesses), fmt.Sprint(d.AlertsTriggered))
		fmt.Fprintln(tw, strings.Join(cols, "\t"))
	}
	tw.Flush()
}

func appLabel(name, id string) string {
	if name == "" || name == id {
		return id
	}
	return fmt.Sprintf("%s (%s)", name, id)
}
