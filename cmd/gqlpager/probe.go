package main

import (
	"fmt"
	"io"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/Sternrassler/graphql-pager/pkg/pagination"
	"github.com/Sternrassler/graphql-pager/pkg/probe"
)

func newProbeCmd(global *globalOptions) *cobra.Command {
	var showSample, refresh bool

	cmd := &cobra.Command{
		Use:   "probe",
		Short: "Check which pagination strategies the endpoint supports.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := global.load()
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid config: %w", err)
			}

			s, err := global.open(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer s.close()

			if refresh {
				if _, err := s.prober.Forget(cmd.Context(), cfg.Endpoint); err != nil {
					return fmt.Errorf("refresh probe cache: %w", err)
				}
			}

			report, err := s.prober.Run(cmd.Context(), s.probeTarget())
			if err != nil {
				return err
			}

			renderReport(cmd.OutOrStdout(), report, showSample)

			if _, ok := report.Recommendation(); !ok {
				return probe.ErrNoStrategy
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&showSample, "sample", false, "Also print the first items of each probe page.")
	cmd.Flags().BoolVar(&refresh, "refresh", false, "Drop cached reports for the endpoint and probe again.")

	return cmd
}

func renderReport(w io.Writer, report *probe.Report, showSample bool) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetTitle(report.Endpoint)
	t.AppendHeader(table.Row{"Strategy", "Supported", "Items", "Total", "Has Next", "End Cursor", "Reason"})

	for _, sr := range []probe.StrategyReport{report.Offset, report.Cursor} {
		supported := "no"
		if sr.Supported {
			supported = "yes"
		}
		total := "-"
		if sr.TotalCount != nil {
			total = strconv.Itoa(*sr.TotalCount)
		}
		hasNext := "-"
		if sr.Supported && sr.Strategy == pagination.KindCursor {
			hasNext = strconv.FormatBool(sr.HasNextPage)
		}
		t.AppendRow(table.Row{sr.Strategy, supported, sr.Count, total, hasNext, sr.EndCursor, sr.Reason})
	}

	t.SetStyle(table.StyleRounded)
	t.Render()

	if kind, ok := report.Recommendation(); ok {
		fmt.Fprintf(w, "Recommendation: %s\n", kind)
	} else {
		fmt.Fprintln(w, "Recommendation: none, neither strategy works for this root entity")
	}
	if report.Cached {
		fmt.Fprintf(w, "(cached report from %s)\n", report.ProbedAt.Format("2006-01-02 15:04:05 MST"))
	}

	if !showSample {
		return
	}
	for _, sr := range []probe.StrategyReport{report.Offset, report.Cursor} {
		if len(sr.Sample) == 0 {
			continue
		}
		st := table.NewWriter()
		st.SetOutputMirror(w)
		st.SetTitle(fmt.Sprintf("%s sample", sr.Strategy))
		st.AppendHeader(table.Row{"#", "Item"})
		for i, item := range sr.Sample {
			st.AppendRow(table.Row{i + 1, string(item)})
		}
		st.SetStyle(table.StyleRounded)
		st.Render()
	}
}
