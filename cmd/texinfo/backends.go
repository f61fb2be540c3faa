package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gogpu/resource/backend"
	"github.com/gogpu/resource/backend/native"
)

func backendsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "backends",
		Short: "List registered texture backends",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()

			def := backend.Default()
			for _, name := range backend.Available() {
				b := backend.Get(name)
				switch {
				case b == nil:
					fmt.Fprintf(out, "  %-10s unavailable\n", name)
					continue
				case def != nil && b.Name() == def.Name():
					fmt.Fprintf(out, "* %-10s", name)
				default:
					fmt.Fprintf(out, "  %-10s", name)
				}
				if nb, ok := b.(*native.Backend); ok && nb.AdapterInfo().Name != "" {
					fmt.Fprintf(out, " %s", nb.AdapterInfo().Name)
				}
				fmt.Fprintln(out)
			}
			return nil
		},
	}
}
