package cli

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/coproc-network/coproc/internal/domain"
)

func init() {
	operatorsRegisterCmd.Flags().Int64Var(&registerStake, "stake", 0, "Stake amount in micro-units (required)")
	operatorsRegisterCmd.MarkFlagRequired("stake")
	operatorsCmd.AddCommand(operatorsRegisterCmd)
	operatorsCmd.AddCommand(operatorsShowCmd)
	rootCmd.AddCommand(operatorsCmd)
}

var registerStake int64

var operatorsCmd = &cobra.Command{
	Use:   "operators",
	Short: "List registered operators",
	RunE:  runOperatorsList,
}

func runOperatorsList(cmd *cobra.Command, args []string) error {
	c, err := newClient()
	if err != nil {
		return err
	}

	var out struct {
		Operators []domain.Operator `json:"operators"`
	}
	if err := c.get("/v1/operators", &out); err != nil {
		return err
	}
	if len(out.Operators) == 0 {
		fmt.Println("No operators registered.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSTAKE\tREPUTATION\tCOMPLETED\tREGISTERED")
	for _, op := range out.Operators {
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%s\n",
			op.ID, domain.FormatAmount(op.Stake), op.Reputation,
			op.TasksCompleted, op.RegisteredAt.Format("2006-01-02"))
	}
	return w.Flush()
}

var operatorsRegisterCmd = &cobra.Command{
	Use:   "register <operator-id>",
	Short: "Register as an operator with a stake deposit",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}

		var op domain.Operator
		err = c.post("/v1/operators", map[string]interface{}{
			"operator": args[0],
			"stake":    registerStake,
		}, &op)
		if err != nil {
			return err
		}
		fmt.Printf("Operator %s registered with %s stake (reputation %d)\n",
			op.ID, domain.FormatAmount(op.Stake), op.Reputation)
		return nil
	},
}

var operatorsShowCmd = &cobra.Command{
	Use:   "show <operator-id>",
	Short: "Show one operator with accrued rewards",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}

		var out struct {
			Operator domain.Operator `json:"operator"`
			Accrued  int64           `json:"accrued"`
		}
		if err := c.get("/v1/operators/"+args[0], &out); err != nil {
			return err
		}

		op := out.Operator
		fmt.Printf("ID:          %s\n", op.ID)
		fmt.Printf("Stake:       %s\n", domain.FormatAmount(op.Stake))
		fmt.Printf("Reputation:  %d\n", op.Reputation)
		fmt.Printf("Completed:   %d\n", op.TasksCompleted)
		fmt.Printf("Accrued:     %s\n", domain.FormatAmount(out.Accrued))
		fmt.Printf("Registered:  %s\n", op.RegisteredAt.Format("2006-01-02 15:04:05"))
		return nil
	},
}
