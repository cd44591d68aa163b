package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"runtime"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/drrobo/assistant/internal/domain/suggestion"
)

// normalizeResult is one entry of the normalize command's JSON output.
type normalizeResult struct {
	Source      string                   `json:"source"`
	Suggestions []*suggestion.Suggestion `json:"suggestions"`
	Reason      string                   `json:"reason,omitempty"`
}

func normalizeCmd() *cobra.Command {
	var fallback bool
	cmd := &cobra.Command{
		Use:   "normalize [files...]",
		Short: "Normalize saved agent results into suggestion cards",
		Long: "Reads each file (or stdin when none are given) as a raw agent result " +
			"and prints the normalized suggestions as JSON, in argument order.",
		RunE: func(cmd *cobra.Command, args []string) error {
			n := suggestion.NewNormalizer(suggestion.WithSummaryFallback(fallback))
			var (
				results []normalizeResult
				err     error
			)
			if len(args) == 0 {
				results, err = normalizeReader(n, "stdin", cmd.InOrStdin())
			} else {
				results, err = normalizeFiles(cmd.Context(), n, args)
			}
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(results)
		},
	}
	cmd.Flags().BoolVar(&fallback, "fallback", false, "emit a summary card from raw_text when nothing else matched")
	return cmd
}

func normalizeReader(n *suggestion.Normalizer, source string, r io.Reader) ([]normalizeResult, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", source, err)
	}
	return []normalizeResult{normalizeOne(n, source, data)}, nil
}

// normalizeFiles reads and normalizes files concurrently. Output keeps the
// order of paths; an unreadable file fails the whole batch.
func normalizeFiles(ctx context.Context, n *suggestion.Normalizer, paths []string) ([]normalizeResult, error) {
	results := make([]normalizeResult, len(paths))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, path := range paths {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			data, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("read %s: %w", path, err)
			}
			results[i] = normalizeOne(n, path, data)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func normalizeOne(n *suggestion.Normalizer, source string, data []byte) normalizeResult {
	items, err := n.NormalizeChecked(suggestion.DetectInput(data))
	res := normalizeResult{Source: source, Suggestions: items}
	if err != nil {
		res.Reason = err.Error()
	}
	return res
}
