package cli

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/coproc-network/coproc/internal/domain"
)

func init() {
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(eventsCmd)
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show daemon status",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}

		var health struct {
			Status string `json:"status"`
			Detail string `json:"detail"`
		}
		if err := c.get("/health", &health); err != nil {
			return err
		}
		var version struct {
			Version string `json:"version"`
		}
		if err := c.get("/api/version", &version); err != nil {
			return err
		}

		fmt.Printf("Daemon:  %s\n", c.baseURL)
		fmt.Printf("Version: %s\n", version.Version)
		fmt.Printf("Health:  %s\n", health.Status)
		if health.Detail != "" {
			fmt.Printf("Detail:  %s\n", health.Detail)
		}
		return nil
	},
}

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Show recent protocol events",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}

		var out struct {
			Events []domain.Event `json:"events"`
		}
		if err := c.get("/v1/events?limit=25", &out); err != nil {
			return err
		}
		if len(out.Events) == 0 {
			fmt.Println("No events.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "TIME\tTYPE\tTASK\tWHO\tAMOUNT")
		for _, ev := range out.Events {
			who := ev.Operator
			if who == "" {
				who = ev.Requester
			}
			task := ev.TaskID
			if task == "" {
				task = "-"
			}
			fmt.Fprintf(w, "%s\t%s\t%.12s\t%s\t%s\n",
				ev.At.Format("15:04:05"), ev.Type, task, who,
				domain.FormatAmount(ev.Amount))
		}
		return w.Flush()
	},
}
