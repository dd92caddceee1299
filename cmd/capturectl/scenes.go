package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newScenesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "scenes",
		Short: "List the registered scenes and their capture requirements",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := openContainer()
			if err != nil {
				return err
			}
			defer c.Close()

			var rows [][]string
			for _, reg := range c.Service().Scenes() {
				capture := reg.Configuration.Capture
				scale := "no"
				if capture.RequiresScaleReference {
					scale = "yes"
				}
				rows = append(rows, []string{
					reg.SceneID,
					reg.Configuration.Name,
					fmt.Sprintf("%dx%d", capture.MinResolution.Width, capture.MinResolution.Height),
					scale,
					strings.Join(reg.Configuration.RequiredFields, ", "),
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"Scene", "Name", "Min Resolution", "Scale", "Required Fields"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignRight, alignLeft, alignLeft},
			))
			return nil
		},
	}
}
