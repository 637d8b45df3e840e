package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/star/rescor/internal/derived"
)

func newTypesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "types",
		Short: "List the derived types rescor can compute",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprint(cmd.OutOrStdout(), derived.Describe(derived.All()))
			return err
		},
	}
}
