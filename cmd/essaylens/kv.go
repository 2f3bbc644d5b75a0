package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"essaylens/internal/config"
	"essaylens/internal/feedback"
)

var kvDimensions = []string{"topic", "cause_effect", "compare_contrast", "hedging", "content"}

// kvReport is one dimension's outcome in --json output.
type kvReport struct {
	Dimension string          `json:"dimension"`
	Branch    feedback.Branch `json:"branch,omitempty"`
	Examples  []string        `json:"examples,omitempty"`
	Feedback  string          `json:"feedback"`
}

func newKVCmd(o *cliOptions) *cobra.Command {
	var (
		dims   string
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "kv [paragraph]",
		Short: "Give paragraph feedback using the in-process KV cache",
		Long: "kv ingests the paragraph once into the prefix cache and runs each feedback\n" +
			"dimension against it. It always uses the kv backend.",
		Example: "  essaylens kv --model ~/models/qwen3-4b.gguf < paragraph.txt\n" +
			"  essaylens kv --dims hedging,content 'Some people say ...'",
		RunE: func(cmd *cobra.Command, args []string) error {
			selected, err := parseDimensions(dims)
			if err != nil {
				return err
			}
			paragraph, err := readInput(cmd, args)
			if err != nil {
				return err
			}
			o.cfg.Backend = config.BackendKV
			a, cleanup, err := o.startApp(cmd.Context())
			if err != nil {
				return err
			}
			defer cleanup()
			svc, err := a.CacheFeedback()
			if err != nil {
				return err
			}
			reports, err := runDimensions(cmd.Context(), svc, paragraph, selected)
			if err != nil {
				return err
			}
			return printReports(cmd.OutOrStdout(), reports, asJSON)
		},
	}
	cmd.Flags().StringVar(&dims, "dims", strings.Join(kvDimensions, ","), "Comma-separated feedback dimensions")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print results as JSON")
	return cmd
}

func parseDimensions(s string) ([]string, error) {
	dims := splitCSV(s)
	if len(dims) == 0 {
		return nil, fmt.Errorf("no dimensions selected")
	}
	for _, d := range dims {
		known := false
		for _, k := range kvDimensions {
			if d == k {
				known = true
				break
			}
		}
		if !known {
			return nil, fmt.Errorf("unknown dimension %q (want one of %s)", d, strings.Join(kvDimensions, ", "))
		}
	}
	return dims, nil
}

// cacheFeedback is the part of feedback.CacheService the kv command drives.
type cacheFeedback interface {
	PrepareCache(ctx context.Context, paragraph string) error
	TopicSentence(ctx context.Context, text string) (string, error)
	CauseEffect(ctx context.Context) (feedback.Result, error)
	CompareContrast(ctx context.Context) (feedback.Result, error)
	Hedging(ctx context.Context) (feedback.Result, error)
	Content(ctx context.Context) (string, error)
}

// cacheAdapter drops the handle PrepareCache returns; the service keeps it.
type cacheAdapter struct{ *feedback.CacheService }

func (c cacheAdapter) PrepareCache(ctx context.Context, paragraph string) error {
	_, err := c.CacheService.PrepareCache(ctx, paragraph)
	return err
}

func runDimensions(ctx context.Context, svc *feedback.CacheService, paragraph string, dims []string) ([]kvReport, error) {
	return runCacheFeedback(ctx, cacheAdapter{svc}, paragraph, dims)
}

func runCacheFeedback(ctx context.Context, svc cacheFeedback, paragraph string, dims []string) ([]kvReport, error) {
	if err := svc.PrepareCache(ctx, paragraph); err != nil {
		return nil, err
	}
	out := make([]kvReport, 0, len(dims))
	for _, d := range dims {
		rep := kvReport{Dimension: d}
		var (
			res feedback.Result
			err error
		)
		switch d {
		case "topic":
			rep.Feedback, err = svc.TopicSentence(ctx, paragraph)
		case "content":
			rep.Feedback, err = svc.Content(ctx)
		case "cause_effect":
			res, err = svc.CauseEffect(ctx)
		case "compare_contrast":
			res, err = svc.CompareContrast(ctx)
		case "hedging":
			res, err = svc.Hedging(ctx)
		}
		if err != nil {
			return out, fmt.Errorf("%s: %w", d, err)
		}
		if res.Branch != "" {
			rep.Branch, rep.Examples, rep.Feedback = res.Branch, res.Examples, res.Feedback
		}
		out = append(out, rep)
	}
	return out, nil
}

func printReports(w io.Writer, reports []kvReport, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(reports)
	}
	for _, r := range reports {
		header := r.Dimension
		if r.Branch != "" {
			header += " (" + string(r.Branch) + ")"
		}
		fmt.Fprintf(w, "== %s\n", header)
		if len(r.Examples) > 0 {
			fmt.Fprintf(w, "examples: %s\n", strings.Join(r.Examples, "; "))
		}
		fmt.Fprintf(w, "%s\n\n", r.Feedback)
	}
	return nil
}
