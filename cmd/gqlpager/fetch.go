package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/Sternrassler/graphql-pager/pkg/config"
	"github.com/Sternrassler/graphql-pager/pkg/logging"
	"github.com/Sternrassler/graphql-pager/pkg/metrics"
	"github.com/Sternrassler/graphql-pager/pkg/pagination"
	"github.com/Sternrassler/graphql-pager/pkg/probe"
)

type fetchOptions struct {
	strategy string
	pageSize int
	out      string
}

func newFetchCmd(global *globalOptions) *cobra.Command {
	opts := &fetchOptions{}

	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Fetch every page of the configured collection and write the reassembled response.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := global.load()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("strategy") {
				cfg.Strategy = opts.strategy
			}
			if cmd.Flags().Changed("page-size") {
				cfg.PageSize = opts.pageSize
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid config: %w", err)
			}

			s, err := global.open(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer s.close()

			data, err := runFetch(cmd.Context(), s)
			if err != nil {
				return err
			}

			if opts.out == "" || opts.out == "-" {
				_, err = cmd.OutOrStdout().Write(data)
				return err
			}
			return writeFile(opts.out, data)
		},
	}

	cmd.Flags().StringVar(&opts.strategy, "strategy", config.StrategyAuto, "Pagination strategy: offset, cursor or auto.")
	cmd.Flags().IntVar(&opts.pageSize, "page-size", 100, "Items per page.")
	cmd.Flags().StringVarP(&opts.out, "out", "o", "-", "Output file, - for stdout.")

	return cmd
}

// runFetch fetches the configured collection and returns the indented envelope.
func runFetch(ctx context.Context, s *session) ([]byte, error) {
	kind, err := s.chooseStrategy(ctx)
	if err != nil {
		return nil, err
	}
	strategy, err := pagination.NewStrategy(kind)
	if err != nil {
		return nil, err
	}

	req := pagination.Request{
		Query:     s.cfg.Query(kind),
		Variables: s.cfg.Variables,
		PageSize:  s.cfg.PageSize,
		Locator:   s.cfg.Locator(),
	}

	result, err := pagination.FetchAll[json.RawMessage](ctx, s.client, req, strategy,
		pagination.WithObserver(logging.NewPageLogger("fetch"), metrics.NewPageObserver()))
	if err != nil {
		return nil, err
	}

	envelope, err := result.Envelope()
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := json.Indent(&buf, envelope, "", "  "); err != nil {
		return nil, fmt.Errorf("format response: %w", err)
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}

// writeFile replaces path with data through a temporary file in the same directory, so
// path is never left truncated.
func writeFile(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".gqlpager-*")
	if err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := tmp.Chmod(0o644); err != nil {
		tmp.Close()
		return fmt.Errorf("write output: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write output: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	return nil
}

// chooseStrategy resolves "auto" through a probe.
func (s *session) chooseStrategy(ctx context.Context) (pagination.Kind, error) {
	if s.cfg.Strategy != config.StrategyAuto {
		return pagination.ParseKind(s.cfg.Strategy)
	}

	report, err := s.prober.Run(ctx, s.probeTarget())
	if err != nil {
		return "", fmt.Errorf("probe: %w", err)
	}

	kind, ok := report.Recommendation()
	if !ok {
		return "", fmt.Errorf("%w (offset: %s; cursor: %s)", probe.ErrNoStrategy, report.Offset.Reason, report.Cursor.Reason)
	}

	log.Info().
		Str("strategy", string(kind)).
		Bool("cached", report.Cached).
		Msg("Using probed strategy")
	return kind, nil
}
