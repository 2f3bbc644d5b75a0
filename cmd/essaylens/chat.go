package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"essaylens/pkg/types"
)

func newChatCmd(o *cliOptions) *cobra.Command {
	var (
		system      string
		task        string
		maxTokens   int
		temperature float64
		stream      bool
		set         map[string]string
		schemaFile  string
	)
	cmd := &cobra.Command{
		Use:   "chat [message]",
		Short: "Send one chat message to the configured backend",
		Example: "  essaylens chat --server-url http://127.0.0.1:8080 \"Write a haiku about rain\"\n" +
			"  echo 'they goes home' | essaylens chat --task grammar_correction --set top_k=20\n" +
			"  essaylens chat --schema person.json 'Ann Lee, student 42'",
		RunE: func(cmd *cobra.Command, args []string) error {
			user, err := readInput(cmd, args)
			if err != nil {
				return err
			}
			a, cleanup, err := o.startApp(cmd.Context())
			if err != nil {
				return err
			}
			defer cleanup()
			out := cmd.OutOrStdout()

			if schemaFile != "" {
				schema, err := readSchema(schemaFile)
				if err != nil {
					return err
				}
				resp, err := a.JSON(cmd.Context(), types.JSONRequest{System: system, User: user, Task: task, MaxTokens: maxTokens, Schema: schema})
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(out, string(resp.Data))
				return err
			}

			req := types.ChatRequest{
				System:    system,
				User:      user,
				Task:      task,
				MaxTokens: maxTokens,
				Overrides: parseOverrides(set),
			}
			if cmd.Flags().Changed("temperature") {
				req.Temperature = &temperature
			}
			if stream {
				req.Stream = true
				_, err := a.ChatStream(cmd.Context(), req, func(tok string) error {
					_, err := io.WriteString(out, tok)
					return err
				})
				fmt.Fprintln(out)
				return err
			}
			resp, err := a.Chat(cmd.Context(), req)
			if err != nil {
				return err
			}
			if resp.Message.Reasoning != "" {
				fmt.Fprintf(cmd.ErrOrStderr(), "[reasoning]\n%s\n\n", resp.Message.Reasoning)
			}
			_, err = fmt.Fprintln(out, resp.Message.Content)
			return err
		},
	}
	f := cmd.Flags()
	f.StringVar(&system, "system", "", "System prompt")
	f.StringVar(&task, "task", "", "Task preset (answer, stream_answer, grammar_correction, metadata_extraction, ...)")
	f.IntVar(&maxTokens, "max-tokens", 0, "Maximum new tokens (0 uses the task preset)")
	f.Float64Var(&temperature, "temperature", 0, "Sampling temperature (task preset when unset)")
	f.BoolVar(&stream, "stream", false, "Print tokens as they arrive")
	f.StringToStringVar(&set, "set", nil, "Request override key=value (top_p, top_k, repeat_penalty, seed, stop)")
	f.StringVar(&schemaFile, "schema", "", "JSON schema file; the reply is printed as a JSON object")
	return cmd
}

// parseOverrides turns --set values into JSON-ish scalars. The request
// resolver coerces strings too, so unparsable values are passed as is.
func parseOverrides(set map[string]string) map[string]any {
	if len(set) == 0 {
		return nil
	}
	out := make(map[string]any, len(set))
	for k, v := range set {
		if k == "stop" {
			out[k] = splitCSV(v)
			continue
		}
		if n, err := strconv.ParseFloat(v, 64); err == nil {
			out[k] = n
		} else {
			out[k] = v
		}
	}
	return out
}

func readSchema(path string) (map[string]any, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var schema map[string]any
	if err := json.Unmarshal(b, &schema); err != nil {
		return nil, fmt.Errorf("parse schema %s: %w", path, err)
	}
	return schema, nil
}
