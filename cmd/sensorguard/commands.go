package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/BrandonDHaskell/sensorguard/internal/httpapi"
	"github.com/BrandonDHaskell/sensorguard/internal/sensorguard/service"
	"github.com/BrandonDHaskell/sensorguard/internal/sensorguard/types"
)

// withClient runs fn against the daemon API with a bounded context.
func withClient(cmd *cobra.Command, fn func(ctx context.Context, c *httpapi.Client) error) error {
	c, err := newClient()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), 15*time.Second)
	defer cancel()
	return fn(ctx, c)
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show whether monitoring is running",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(cmd, func(ctx context.Context, c *httpapi.Client) error {
			st, err := c.Status(ctx)
			if err != nil {
				return err
			}
			printStatus(cmd.OutOrStdout(), st)
			return nil
		})
	},
}

func toggleCmd(use string, enabled bool) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: fmt.Sprintf("%s monitoring", strings.ToUpper(use[:1])+use[1:]),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cmd, func(ctx context.Context, c *httpapi.Client) error {
				if _, err := c.SetEnabled(ctx, enabled); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Monitoring %sd\n", use)
				return nil
			})
		},
	}
}

var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "List recorded sensor accesses, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		suspicious, _ := cmd.Flags().GetBool("suspicious")
		app, _ := cmd.Flags().GetString("app")
		return withClient(cmd, func(ctx context.Context, c *httpapi.Client) error {
			logs, err := c.Logs(ctx, httpapi.LogQuery{Limit: limit, Suspicious: suspicious, App: app})
			if err != nil {
				return err
			}
			printLogs(cmd.OutOrStdout(), logs)
			return nil
		})
	},
}

var alertsCmd = &cobra.Command{
	Use:   "alerts",
	Short: "List privacy alerts, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		unacked, _ := cmd.Flags().GetBool("unacked")
		return withClient(cmd, func(ctx context.Context, c *httpapi.Client) error {
			alerts, err := c.Alerts(ctx, limit, unacked)
			if err != nil {
				return err
			}
			printAlerts(cmd.OutOrStdout(), alerts)
			return nil
		})
	},
}

var ackCmd = &cobra.Command{
	Use:   "ack [alert-id]",
	Short: "Acknowledge one alert, or all of them with --all",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		all, _ := cmd.Flags().GetBool("all")
		if all == (len(args) == 1) {
			return fmt.Errorf("give either an alert id or --all")
		}
		return withClient(cmd, func(ctx context.Context, c *httpapi.Client) error {
			if all {
				n, err := c.AcknowledgeAll(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Acknowledged %d alert(s)\n", n)
				return nil
			}
			if err := c.Acknowledge(ctx, args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Acknowledged %s\n", args[0])
			return nil
		})
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats [app-id]",
	Short: "Show per-app access totals",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		top, _ := cmd.Flags().GetInt("top-background")
		return withClient(cmd, func(ctx context.Context, c *httpapi.Client) error {
			var (
				rows []types.AppStats
				err  error
			)
			switch {
			case len(args) == 1:
				var one types.AppStats
				one, err = c.AppStats(ctx, args[0])
				rows = []types.AppStats{one}
			case top > 0:
				rows, err = c.TopBackground(ctx, top)
			default:
				rows, err = c.Stats(ctx)
			}
			if err != nil {
				return err
			}
			printStats(cmd.OutOrStdout(), rows)
			return nil
		})
	},
}

var summaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Show daily access summaries",
	RunE: func(cmd *cobra.Command, args []string) error {
		days, _ := cmd.Flags().GetInt("days")
		return withClient(cmd, func(ctx context.Context, c *httpapi.Client) error {
			sums, err := c.Summaries(ctx, days)
			if err != nil {
				return err
			}
			printSummaries(cmd.OutOrStdout(), sums)
			return nil
		})
	},
}

// settings command
var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Show or change monitoring settings",
}

var settingsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the current settings as JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(cmd, func(ctx context.Context, c *httpapi.Client) error {
			st, err := c.Settings(ctx)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(st)
		})
	},
}

var settingsSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Change individual settings; unspecified ones keep their value",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(cmd, func(ctx context.Context, c *httpapi.Client) error {
			st, err := c.Settings(ctx)
			if err != nil {
				return err
			}
			if err := applySettingFlags(cmd, &st); err != nil {
				return err
			}
			if _, err := c.UpdateSettings(ctx, st); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Settings updated")
			return nil
		})
	},
}

// applySettingFlags copies the flags the user actually passed onto st.
func applySettingFlags(cmd *cobra.Command, st *types.Settings) error {
	f := cmd.Flags()
	if f.Changed("threshold") {
		st.FrequentAccessThreshold, _ = f.GetInt("threshold")
	}
	if f.Changed("background") {
		st.AlertOnBackgroundAccess, _ = f.GetBool("background")
	}
	if f.Changed("screen-off") {
		st.AlertOnScreenOffAccess, _ = f.GetBool("screen-off")
	}
	if f.Changed("frequent") {
		st.AlertOnFrequentAccess, _ = f.GetBool("frequent")
	}
	if f.Changed("monitor") {
		names, _ := f.GetStringSlice("monitor")
		monitor := make(map[types.SensorType]bool, len(names))
		for _, n := range names {
			sensor, err := types.ParseSensorType(n)
			if err != nil {
				return err
			}
			monitor[sensor] = true
		}
		st.Monitor = monitor
	}
	return nil
}

// whitelist command
var whitelistCmd = &cobra.Command{
	Use:   "whitelist",
	Short: "Manage apps exempt from monitoring",
}

var whitelistListCmd = &cobra.Command{
	Use:   "list",
	Short: "List whitelisted apps",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(cmd, func(ctx context.Context, c *httpapi.Client) error {
			st, err := c.Settings(ctx)
			if err != nil {
				return err
			}
			for _, app := range st.Whitelist {
				fmt.Fprintln(cmd.OutOrStdout(), app)
			}
			return nil
		})
	},
}

func whitelistEditCmd(use, short string, edit func(list []string, apps []string) []string) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <app-id>...",
		Short: short,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cmd, func(ctx context.Context, c *httpapi.Client) error {
				st, err := c.Settings(ctx)
				if err != nil {
					return err
				}
				st.Whitelist = edit(st.Whitelist, args)
				got, err := c.UpdateSettings(ctx, st)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Whitelist: %s\n", strings.Join(got.Whitelist, ", "))
				return nil
			})
		},
	}
}

func addApps(list, apps []string) []string {
	return append(list, apps...)
}

func removeApps(list, apps []string) []string {
	drop := make(map[string]struct{}, len(apps))
	for _, a := range apps {
		drop[a] = struct{}{}
	}
	out := list[:0]
	for _, a := range list {
		if _, ok := drop[a]; !ok {
			out = append(out, a)
		}
	}
	return out
}

var clearCmd = &cobra.Command{
	Use:       "clear <logs|alerts|stats|all>",
	Short:     "Delete recorded data",
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"logs", "alerts", "stats", "all"},
	RunE: func(cmd *cobra.Command, args []string) error {
		target, err := service.ParseClearTarget(args[0])
		if err != nil {
			return err
		}
		if yes, _ := cmd.Flags().GetBool("yes"); !yes {
			return fmt.Errorf("refusing to clear %s without --yes", target)
		}
		return withClient(cmd, func(ctx context.Context, c *httpapi.Client) error {
			if err := c.Clear(ctx, string(target)); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Cleared %s\n", target)
			return nil
		})
	},
}

func addClientCommands(root *cobra.Command) {
	root.AddCommand(statusCmd)
	root.AddCommand(toggleCmd("enable", true))
	root.AddCommand(toggleCmd("disable", false))

	root.AddCommand(logsCmd)
	logsCmd.Flags().IntP("limit", "n", 50, "Maximum number of entries to show")
	logsCmd.Flags().BoolP("suspicious", "s", false, "Only suspicious accesses")
	logsCmd.Flags().String("app", "", "Only accesses by this app id")

	root.AddCommand(alertsCmd)
	alertsCmd.Flags().IntP("limit", "n", 50, "Maximum number of alerts to show")
	alertsCmd.Flags().BoolP("unacked", "u", false, "Only unacknowledged alerts")

	root.AddCommand(ackCmd)
	ackCmd.Flags().Bool("all", false, "Acknowledge every alert")

	root.AddCommand(statsCmd)
	statsCmd.Flags().Int("top-background", 0, "Show the N apps with the most background accesses")

	root.AddCommand(summaryCmd)
	summaryCmd.Flags().IntP("days", "d", 7, "Number of days to show")

	root.AddCommand(settingsCmd)
	settingsCmd.AddCommand(settingsShowCmd)
	settingsCmd.AddCommand(settingsSetCmd)
	settingsSetCmd.Flags().Int("threshold", types.DefaultFrequentAccessThreshold, "Accesses per hour before an app counts as frequent")
	settingsSetCmd.Flags().Bool("background", true, "Alert on background access")
	settingsSetCmd.Flags().Bool("screen-off", true, "Alert on access while the screen is off")
	settingsSetCmd.Flags().Bool("frequent", true, "Alert on frequent access")
	settingsSetCmd.Flags().StringSlice("monitor", nil, "Sensors to monitor, e.g. CAMERA,MICROPHONE")

	root.AddCommand(whitelistCmd)
	whitelistCmd.AddCommand(whitelistListCmd)
	whitelistCmd.AddCommand(whitelistEditCmd("add", "Exempt apps from monitoring", addApps))
	whitelistCmd.AddCommand(whitelistEditCmd("remove", "Monitor previously exempt apps again", removeApps))

	root.AddCommand(clearCmd)
	clearCmd.Flags().Bool("yes", false, "Confirm the deletion")
}
