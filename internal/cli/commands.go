package cli

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
)

// NewRootCmd builds the portwatch command tree.
func NewRootCmd(version string) *cobra.Command {
	root := &cobra.Command{
		Use:   "portwatch",
		Short: "Manage endpoints monitored by a portwatch API server",
		// SilenceUsage prevents printing usage on every error
		SilenceUsage: true,
		Version:      version,
	}

	api := os.Getenv("API_BASE")
	if api == "" {
		api = "http://localhost:8080"
	}
	root.PersistentFlags().String("api", api, "API base URL (env API_BASE)")
	root.PersistentFlags().String("key", os.Getenv("API_KEY"), "API key (env API_KEY)")
	root.PersistentFlags().String("format", "text", "Output format: text | json")

	root.AddCommand(NewListCmd())
	root.AddCommand(NewGetCmd())
	root.AddCommand(NewAddCmd())
	root.AddCommand(NewRemoveCmd())
	root.AddCommand(NewIntervalCmd())
	root.AddCommand(NewGraceCmd())
	root.AddCommand(NewOutageCmd())
	root.AddCommand(NewPauseCmd())
	root.AddCommand(NewResumeCmd())
	return root
}

func format(cmd *cobra.Command) string {
	f, _ := cmd.Flags().GetString("format")
	return f
}

// show renders a single endpoint.
func show(cmd *cobra.Command, ep endpointView) error {
	return render(cmd.OutOrStdout(), format(cmd), []endpointView{ep})
}

func NewListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List monitored endpoints",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var eps []endpointView
			if err := newClient(cmd).do(cmd.Context(), http.MethodGet, "/api/endpoints", nil, &eps); err != nil {
				return err
			}
			return render(cmd.OutOrStdout(), format(cmd), eps)
		},
	}
}

func NewGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <host:port>",
		Short: "Show one endpoint",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var ep endpointView
			if err := newClient(cmd).do(cmd.Context(), http.MethodGet, endpointPath(args[0]), nil, &ep); err != nil {
				return err
			}
			return show(cmd, ep)
		},
	}
}

func NewAddCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add <host> <port>",
		Short: "Start monitoring an endpoint",
		Args:  cobra.ExactArgs(2),
		RunE:  runAdd,
	}
	cmd.Flags().Duration("interval", 0, "Polling interval (server default when omitted)")
	cmd.Flags().Duration("grace", 0, "Grace period before reporting DOWN (server default when omitted)")
	return cmd
}

func runAdd(cmd *cobra.Command, args []string) error {
	var port int
	if _, err := fmt.Sscanf(args[1], "%d", &port); err != nil {
		return exitError(exitUsage, "invalid port %q", args[1])
	}
	body := map[string]any{"host": args[0], "port": port}
	if cmd.Flags().Changed("interval") {
		d, _ := cmd.Flags().GetDuration("interval")
		body["interval_ms"] = d.Milliseconds()
	}
	if cmd.Flags().Changed("grace") {
		d, _ := cmd.Flags().GetDuration("grace")
		body["grace_period_ms"] = d.Milliseconds()
	}

	var resp struct {
		Endpoint endpointView `json:"endpoint"`
		Probe    struct {
			Reachable bool    `json:"reachable"`
			LatencyMS float64 `json:"latency_ms"`
			Reason    string  `json:"reason"`
		} `json:"probe"`
	}
	if err := newClient(cmd).do(cmd.Context(), http.MethodPost, "/api/endpoints", body, &resp); err != nil {
		return err
	}
	if format(cmd) == "json" {
		return printJSON(cmd.OutOrStdout(), resp)
	}
	out := cmd.OutOrStdout()
	if resp.Probe.Reachable {
		fmt.Fprintf(out, "Added %s (reachable, %.0f ms)\n", resp.Endpoint.Endpoint, resp.Probe.LatencyMS)
	} else {
		fmt.Fprintf(out, "Added %s (unreachable: %s)\n", resp.Endpoint.Endpoint, resp.Probe.Reason)
	}
	return nil
}

func NewRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "remove <host:port>",
		Aliases: []string{"rm"},
		Short:   "Stop monitoring an endpoint",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := newClient(cmd).do(cmd.Context(), http.MethodDelete, endpointPath(args[0]), nil, nil); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %s\n", args[0])
			return nil
		},
	}
}

// newDurationCmd builds a "<name> <host:port> <duration>" setter.
func newDurationCmd(name, short string) *cobra.Command {
	return &cobra.Command{
		Use:   name + " <host:port> <duration>",
		Short: short,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := time.ParseDuration(args[1])
			if err != nil {
				return exitError(exitUsage, "invalid duration %q: %v", args[1], err)
			}
			var ep endpointView
			body := map[string]int64{"ms": d.Milliseconds()}
			if err := newClient(cmd).do(cmd.Context(), http.MethodPut, endpointPath(args[0], name), body, &ep); err != nil {
				return err
			}
			return show(cmd, ep)
		},
	}
}

func NewIntervalCmd() *cobra.Command {
	return newDurationCmd("interval", "Change an endpoint's polling interval")
}

func NewGraceCmd() *cobra.Command {
	return newDurationCmd("grace", "Change an endpoint's grace period")
}

func NewOutageCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "outage <host:port>",
		Short: "Set or clear a planned outage window",
		Long: "Set a planned outage window with --start and either --end or --for.\n" +
			"During the window the endpoint reports PLANNED_OUT and is not probed.",
		Args: cobra.ExactArgs(1),
		RunE: runOutage,
	}
	cmd.Flags().String("start", "now", "Window start (RFC3339 or \"now\")")
	cmd.Flags().String("end", "", "Window end (RFC3339)")
	cmd.Flags().Duration("for", 0, "Window length, alternative to --end")
	cmd.Flags().Bool("clear", false, "Remove the current window")
	return cmd
}

func runOutage(cmd *cobra.Command, args []string) error {
	c := newClient(cmd)
	var ep endpointView

	if clearWin, _ := cmd.Flags().GetBool("clear"); clearWin {
		if err := c.do(cmd.Context(), http.MethodDelete, endpointPath(args[0], "outage"), nil, &ep); err != nil {
			return err
		}
		return show(cmd, ep)
	}

	startRaw, _ := cmd.Flags().GetString("start")
	endRaw, _ := cmd.Flags().GetString("end")
	length, _ := cmd.Flags().GetDuration("for")

	start := time.Now().UTC()
	if startRaw != "now" {
		t, err := time.Parse(time.RFC3339, startRaw)
		if err != nil {
			return exitError(exitUsage, "invalid --start: %v", err)
		}
		start = t
	}
	var end time.Time
	switch {
	case endRaw != "" && length != 0:
		return exitError(exitUsage, "use either --end or --for, not both")
	case endRaw != "":
		t, err := time.Parse(time.RFC3339, endRaw)
		if err != nil {
			return exitError(exitUsage, "invalid --end: %v", err)
		}
		end = t
	case length > 0:
		end = start.Add(length)
	default:
		return exitError(exitUsage, "one of --end, --for or --clear is required")
	}

	body := map[string]int64{"start_ms": start.UnixMilli(), "end_ms": end.UnixMilli()}
	if err := c.do(cmd.Context(), http.MethodPut, endpointPath(args[0], "outage"), body, &ep); err != nil {
		return err
	}
	return show(cmd, ep)
}

func newToggleCmd(name, short string) *cobra.Command {
	return &cobra.Command{
		Use:   name + " <host:port>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var ep endpointView
			if err := newClient(cmd).do(cmd.Context(), http.MethodPost, endpointPath(args[0], name), nil, &ep); err != nil {
				return err
			}
			return show(cmd, ep)
		},
	}
}

func NewPauseCmd() *cobra.Command {
	return newToggleCmd("pause", "Stop probing an endpoint without removing it")
}

func NewResumeCmd() *cobra.Command {
	return newToggleCmd("resume", "Resume probing a paused endpoint")
}
