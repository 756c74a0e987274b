package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(claimCmd)
}

var claimCmd = &cobra.Command{
	Use:   "claim <operator-id>",
	Short: "Claim accrued rewards",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}

		var out struct {
			Claimed   int64  `json:"claimed"`
			Formatted string `json:"formatted"`
		}
		if err := c.post("/v1/operators/"+args[0]+"/claim", nil, &out); err != nil {
			return err
		}
		fmt.Printf("Claimed %s\n", out.Formatted)
		return nil
	},
}
