package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/coproc-network/coproc/internal/domain"
)

func init() {
	requestCmd.Flags().StringVar(&requestFrom, "from", "", "Requester identity (required)")
	requestCmd.Flags().Int64Var(&requestPayment, "payment", 0, "Payment offered in micro-units (required)")
	requestCmd.Flags().StringVar(&requestFile, "file", "", "Read input from file instead of the argument")
	requestCmd.MarkFlagRequired("from")
	requestCmd.MarkFlagRequired("payment")
	rootCmd.AddCommand(requestCmd)
}

var (
	requestFrom    string
	requestPayment int64
	requestFile    string
)

var requestCmd = &cobra.Command{
	Use:   "request [input]",
	Short: "Request a computation",
	Long: `Submit a computation request. The payment is escrowed until an
operator completes the task or the request is cancelled.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runRequest,
}

func runRequest(cmd *cobra.Command, args []string) error {
	var input []byte
	switch {
	case requestFile != "":
		data, err := os.ReadFile(requestFile)
		if err != nil {
			return err
		}
		input = data
	case len(args) == 1:
		input = []byte(args[0])
	default:
		return fmt.Errorf("provide input as an argument or via --file")
	}

	c, err := newClient()
	if err != nil {
		return err
	}

	var task domain.Task
	err = c.post("/v1/tasks", map[string]interface{}{
		"requester": requestFrom,
		"input":     input,
		"payment":   requestPayment,
	}, &task)
	if err != nil {
		return err
	}

	fmt.Printf("Task %s created\n", task.ID)
	fmt.Printf("  complexity: %d\n", task.Complexity)
	fmt.Printf("  reward:     %s\n", domain.FormatAmount(task.Reward))
	fmt.Printf("  state:      %s\n", task.State)
	return nil
}
