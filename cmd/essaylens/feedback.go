package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"essaylens/internal/feedback"
)

func newFeedbackCmd(o *cliOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "feedback",
		Short: "Run the sentence and essay tasks against the configured backend",
	}

	var stream bool
	answer := &cobra.Command{
		Use:     "answer [sentence]",
		Short:   "Answer one sentence",
		Example: "  essaylens feedback answer --stream 'What is a topic sentence?'",
		RunE: func(cmd *cobra.Command, args []string) error {
			in, err := readInput(cmd, args)
			if err != nil {
				return err
			}
			a, cleanup, err := o.startApp(cmd.Context())
			if err != nil {
				return err
			}
			defer cleanup()
			svc := a.Feedback()
			out := cmd.OutOrStdout()
			if stream {
				_, err := svc.StreamAnswer(cmd.Context(), in, out)
				fmt.Fprintln(out)
				return err
			}
			text, err := svc.Answer(cmd.Context(), in)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(out, text)
			return err
		},
	}
	answer.Flags().BoolVar(&stream, "stream", false, "Print chunks as they arrive")

	metadata := &cobra.Command{
		Use:     "metadata [essay]",
		Short:   "Extract student name, number and title from an essay",
		Example: "  essaylens feedback metadata < essay.txt",
		RunE: func(cmd *cobra.Command, args []string) error {
			in, err := readInput(cmd, args)
			if err != nil {
				return err
			}
			a, cleanup, err := o.startApp(cmd.Context())
			if err != nil {
				return err
			}
			defer cleanup()
			md, err := a.Feedback().ExtractMetadata(cmd.Context(), in)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(md)
		},
	}

	var showReasoning bool
	correct := &cobra.Command{
		Use:     "correct [text]",
		Short:   "Correct grammar sentence by sentence",
		Example: "  essaylens feedback correct 'They goes home. It are late.'",
		RunE: func(cmd *cobra.Command, args []string) error {
			in, err := readInput(cmd, args)
			if err != nil {
				return err
			}
			a, cleanup, err := o.startApp(cmd.Context())
			if err != nil {
				return err
			}
			defer cleanup()
			fixed, err := a.Feedback().CorrectSentences(cmd.Context(), feedback.SplitSentences(in))
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, c := range fixed {
				if showReasoning && c.Reasoning != "" {
					fmt.Fprintf(out, "# %s\n", c.Reasoning)
				}
				fmt.Fprintln(out, c.Text)
			}
			return nil
		},
	}
	correct.Flags().BoolVar(&showReasoning, "reasoning", false, "Print the model's reasoning before each sentence")

	cmd.AddCommand(answer, metadata, correct)
	return cmd
}
