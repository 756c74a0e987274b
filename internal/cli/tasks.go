package cli

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/coproc-network/coproc/internal/domain"
)

func init() {
	tasksCmd.Flags().StringVar(&tasksState, "state", "", "Filter by state (PENDING, COMPLETED, REJECTED, CANCELLED)")
	tasksCmd.AddCommand(tasksShowCmd)
	tasksCmd.AddCommand(tasksCancelCmd)
	rootCmd.AddCommand(tasksCmd)
}

var tasksState string

var tasksCmd = &cobra.Command{
	Use:   "tasks",
	Short: "List tasks",
	RunE:  runTasksList,
}

func runTasksList(cmd *cobra.Command, args []string) error {
	c, err := newClient()
	if err != nil {
		return err
	}

	path := "/v1/tasks"
	if tasksState != "" {
		path += "?state=" + tasksState
	}
	var out struct {
		Tasks []domain.Task `json:"tasks"`
	}
	if err := c.get(path, &out); err != nil {
		return err
	}
	if len(out.Tasks) == 0 {
		fmt.Println("No tasks.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSTATE\tREQUESTER\tCOMPLEXITY\tREWARD\tOPERATOR")
	for _, t := range out.Tasks {
		op := t.AssignedOperator
		if op == "" {
			op = "-"
		}
		fmt.Fprintf(w, "%.12s\t%s\t%s\t%d\t%s\t%s\n",
			t.ID, t.State, t.Requester, t.Complexity,
			domain.FormatAmount(t.Reward), op)
	}
	return w.Flush()
}

var tasksShowCmd = &cobra.Command{
	Use:   "show <task-id>",
	Short: "Show one task in full",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}

		var t domain.Task
		if err := c.get("/v1/tasks/"+args[0], &t); err != nil {
			return err
		}

		fmt.Printf("ID:          %s\n", t.ID)
		fmt.Printf("State:       %s\n", t.State)
		fmt.Printf("Requester:   %s\n", t.Requester)
		fmt.Printf("Commitment:  %s\n", t.InputCommitment)
		fmt.Printf("Complexity:  %d\n", t.Complexity)
		fmt.Printf("Reward:      %s\n", domain.FormatAmount(t.Reward))
		fmt.Printf("Created:     %s\n", t.CreatedAt.Format("2006-01-02 15:04:05"))
		if t.AssignedOperator != "" {
			fmt.Printf("Operator:    %s\n", t.AssignedOperator)
			fmt.Printf("Result:      %s\n", t.ResultHash)
		}
		if !t.CompletedAt.IsZero() {
			fmt.Printf("Settled:     %s\n", t.CompletedAt.Format("2006-01-02 15:04:05"))
		}
		return nil
	},
}

var tasksCancelCmd = &cobra.Command{
	Use:   "cancel <task-id>",
	Short: "Cancel a pending task and recover the escrow",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		from, _ := cmd.Flags().GetString("from")
		if from == "" {
			return fmt.Errorf("--from is required")
		}

		c, err := newClient()
		if err != nil {
			return err
		}

		var t domain.Task
		err = c.post("/v1/tasks/"+args[0]+"/cancel", map[string]string{"requester": from}, &t)
		if err != nil {
			return err
		}
		fmt.Printf("Task %s cancelled, %s refunded\n", t.ID, domain.FormatAmount(t.Reward))
		return nil
	},
}

func init() {
	tasksCancelCmd.Flags().String("from", "", "Requester identity (required)")
}
