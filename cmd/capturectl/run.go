package main

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/anime-shed/capture-inspector-go/internal/quality"
	"github.com/anime-shed/capture-inspector-go/pkg/models"
)

type runOptions struct {
	sceneID  string
	fields   []string
	complete bool
}

func newRunCmd() *cobra.Command {
	opts := &runOptions{}

	cmd := &cobra.Command{
		Use:   "run <image-ref>...",
		Short: "Capture photos into a session and analyze them",
		Long: `Run opens a session for the scene, sets the input fields, feeds every
photo through the quality gate and analyzes the accepted ones. Rejected
photos are reported with retake guidance and skipped.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fields, err := parseFields(opts.fields)
			if err != nil {
				return err
			}

			c, err := openContainer()
			if err != nil {
				return err
			}
			defer c.Close()

			return runSession(cmd.Context(), cmd.OutOrStdout(), c.Service(), opts, fields, args)
		},
	}

	cmd.Flags().StringVar(&opts.sceneID, "scene", "", "Scene to capture")
	cmd.Flags().StringArrayVar(&opts.fields, "field", nil, "Input field as key=value (repeatable)")
	cmd.Flags().BoolVar(&opts.complete, "complete", false, "Complete the session after a reviewed analysis")
	_ = cmd.MarkFlagRequired("scene")

	return cmd
}

// sessionRunner is the part of the capture service a run drives
type sessionRunner interface {
	CreateSession(ctx context.Context, sceneID string) (models.Session, error)
	AddImage(ctx context.Context, sessionID, ref string, meta *models.CaptureMetadata) (models.Session, models.QualityResult, error)
	SetField(ctx context.Context, sessionID, key, value string) (models.Session, error)
	Analyze(ctx context.Context, sessionID string) (models.Session, error)
	CompleteSession(ctx context.Context, sessionID string) (models.Session, error)
	Dispose(ctx context.Context, sessionID string) error
}

func runSession(ctx context.Context, w io.Writer, svc sessionRunner, opts *runOptions, fields map[string]string, refs []string) error {
	sess, err := svc.CreateSession(ctx, opts.sceneID)
	if err != nil {
		return err
	}
	defer func() { _ = svc.Dispose(context.Background(), sess.ID) }()

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if _, err := svc.SetField(ctx, sess.ID, k, fields[k]); err != nil {
			return err
		}
	}

	accepted := 0
	for _, ref := range refs {
		_, result, err := svc.AddImage(ctx, sess.ID, imageRef(ref), nil)
		if err != nil {
			if rej, ok := quality.RejectionOf(err); ok {
				printQuality(w, ref, rej.Result)
				continue
			}
			return err
		}
		accepted++
		fmt.Fprintf(w, "%s: %s (score %d)\n", ref, colorVerdict("accepted", shouldColorize(w)), result.QualityScore)
	}
	if accepted == 0 {
		return fmt.Errorf("no photos passed the quality gate")
	}

	sess, err = svc.Analyze(ctx, sess.ID)
	if err != nil {
		return err
	}
	if opts.complete && sess.Status == models.StatusReviewing {
		if sess, err = svc.CompleteSession(ctx, sess.ID); err != nil {
			return err
		}
	}

	fmt.Fprintf(w, "session %s: %s\n", sess.ID, sess.Status)
	if sess.Result != nil {
		printAnalysis(w, *sess.Result)
	}
	return nil
}

func parseFields(values []string) (map[string]string, error) {
	fields := make(map[string]string, len(values))
	for _, v := range values {
		key, value, ok := strings.Cut(v, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid field %q, expected key=value", v)
		}
		fields[key] = value
	}
	return fields, nil
}

func printAnalysis(w io.Writer, result models.AnalysisResult) {
	review := "no"
	if result.RequiresManualReview {
		review = "yes"
	}
	fmt.Fprintln(w, renderTable(
		[]string{"Result", "Value"},
		[][]string{
			{"id", result.ID},
			{"risk", string(result.RiskAssessment.Level)},
			{"confidence", formatSignal(result.Confidence)},
			{"manual review", review},
			{"factors", strings.Join(result.RiskAssessment.Factors, "; ")},
			{"flags", strings.Join(result.RiskAssessment.Flags, ", ")},
		},
		nil,
	))

	if m := result.ImageAnalysis.Measurements; len(m) > 0 {
		names := make([]string, 0, len(m))
		for name := range m {
			names = append(names, name)
		}
		sort.Strings(names)
		rows := make([][]string, 0, len(names))
		for _, name := range names {
			rows = append(rows, []string{name, strconv.FormatFloat(m[name], 'f', -1, 64)})
		}
		fmt.Fprintln(w, renderTable([]string{"Measurement", "Value"}, rows, []columnAlignment{alignLeft, alignRight}))
	}

	for _, r := range result.Recommendations {
		fmt.Fprintf(w, "  - %s\n", r)
	}
}
