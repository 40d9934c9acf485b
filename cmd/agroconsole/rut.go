package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"agroconsole/pkg/rut"
)

func newRUTCmd(*app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rut",
		Short: "Validate and format Chilean RUTs",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "validate <rut>",
		Short: "Check a RUT's check digit",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := rut.Validate(args[0]); err != nil {
				return fmt.Errorf("%s: %w", args[0], err)
			}
			cmd.Printf("%s valid\n", rut.Format(args[0]))
			return nil
		},
	}, &cobra.Command{
		Use:   "format <rut>",
		Short: "Print a RUT as 12.345.678-5",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.Println(rut.Format(args[0]))
			return nil
		},
	})
	return cmd
}
