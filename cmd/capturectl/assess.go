package main

import (
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/anime-shed/capture-inspector-go/pkg/models"
)

func newAssessCmd() *cobra.Command {
	var sceneID string

	cmd := &cobra.Command{
		Use:   "assess <image-ref>",
		Short: "Run the quality gate on one photo",
		Long: `Assess checks a single photo against a scene's capture requirements
without opening a session. The reference may be an http(s) URL, an
azblob://container/blob reference, or a local file path.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := openContainer()
			if err != nil {
				return err
			}
			defer c.Close()

			result, err := c.Service().Assess(cmd.Context(), imageRef(args[0]), sceneID, nil)
			if err != nil {
				return err
			}
			printQuality(cmd.OutOrStdout(), args[0], result)
			return nil
		},
	}

	cmd.Flags().StringVar(&sceneID, "scene", "", "Scene to assess against")
	_ = cmd.MarkFlagRequired("scene")

	return cmd
}

func printQuality(w io.Writer, ref string, result models.QualityResult) {
	verdict := "passed"
	switch {
	case result.Blocking:
		verdict = "blocked"
	case !result.Passed:
		verdict = "rejected"
	}
	fmt.Fprintf(w, "%s: %s (score %d, minimum %d)\n", ref, colorVerdict(verdict, shouldColorize(w)), result.QualityScore, result.MinScore)

	if len(result.Defects) > 0 {
		rows := make([][]string, 0, len(result.Defects))
		for _, d := range result.Defects {
			rows = append(rows, []string{string(d.Type), string(d.Severity), d.Description})
		}
		fmt.Fprintln(w, renderTable([]string{"Defect", "Severity", "Description"}, rows, nil))
	}

	s := result.Signals
	fmt.Fprintln(w, renderTable(
		[]string{"Signal", "Value"},
		[][]string{
			{"sharpness", formatSignal(s.Sharpness)},
			{"brightness", formatSignal(s.Brightness)},
			{"color_accuracy", formatSignal(s.ColorAccuracy)},
			{"roi_coverage", formatSignal(s.ROICoverage)},
			{"composition", formatSignal(s.Composition)},
			{"noise", formatSignal(s.Noise)},
			{"stability", formatSignal(s.Stability)},
		},
		[]columnAlignment{alignLeft, alignRight},
	))

	for _, g := range result.RetakeGuidance {
		fmt.Fprintf(w, "  - %s\n", g)
	}
}

func formatSignal(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}
