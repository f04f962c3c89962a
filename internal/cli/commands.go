package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/xela07ax/ricemarket-console/internal/console/service"
	"github.com/xela07ax/ricemarket-console/internal/domain"
)

func newQueryCommand() *cobra.Command {
	var useAgent bool
	cmd := &cobra.Command{
		Use:   "query <question>",
		Short: "Ask a question in natural language",
		Example: `  # straight to NL-SQL
  ricectl query "How many shipments are there?"

  # through the agent coordinator (SQL + RAG + forecast)
  ricectl query --agent "What is the outlook for basmati prices?"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := sessionFrom(cmd)
			if err != nil {
				return err
			}
			mode := domain.ModeDirect
			if useAgent {
				mode = domain.ModeOrchestrated
			}

			view, err := s.app.Queries.Submit(cmd.Context(), strings.Join(args, " "), mode, nil)
			if err != nil {
				return err
			}
			if s.format == FormatJSON {
				return renderJSON(cmd.OutOrStdout(), view)
			}
			renderQuery(cmd.OutOrStdout(), view)
			return nil
		},
	}
	cmd.Flags().BoolVar(&useAgent, "agent", false, "Route the question through the agent coordinator")
	return cmd
}

func newHealthCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Show backend service status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := sessionFrom(cmd)
			if err != nil {
				return err
			}
			// проверка уже прошла при старте команды
			snap := s.app.Gate.Snapshot()
			if s.format == FormatJSON {
				return renderJSON(cmd.OutOrStdout(), snap)
			}
			renderHealth(cmd.OutOrStdout(), snap)
			return nil
		},
	}
}

func newStatsCommand() *cobra.Command {
	var cachedOnly bool
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show dashboard statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := sessionFrom(cmd)
			if err != nil {
				return err
			}

			var stats *service.StatsView
			if cachedOnly {
				var ok bool
				if stats, ok = s.app.Dashboard.Cached(cmd.Context()); !ok {
					return fmt.Errorf("no cached statistics yet")
				}
			} else if stats, err = s.app.Dashboard.Stats(cmd.Context()); err != nil {
				return err
			}
			if s.format == FormatJSON {
				return renderJSON(cmd.OutOrStdout(), stats)
			}
			renderStats(cmd.OutOrStdout(), stats)
			return nil
		},
	}
	cmd.Flags().BoolVar(&cachedOnly, "cached", false, "Show the stored aggregate without querying NL-SQL")
	return cmd
}

func newForecastCommand() *cobra.Command {
	var in service.ForecastInput
	cmd := &cobra.Command{
		Use:   "forecast",
		Short: "Forecast rice prices",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := sessionFrom(cmd)
			if err != nil {
				return err
			}
			view, err := s.app.Forecast.Forecast(cmd.Context(), in)
			if err != nil {
				return err
			}
			if s.format == FormatJSON {
				return renderJSON(cmd.OutOrStdout(), view)
			}
			renderForecast(cmd.OutOrStdout(), view)
			return nil
		},
	}
	cmd.Flags().IntVar(&in.Horizon, "horizon", service.DefaultHorizon, "Forecast horizon (1-12)")
	cmd.Flags().StringVar(&in.Frequency, "frequency", service.DefaultFrequency, "Series frequency (D|W|M)")
	cmd.Flags().Float64SliceVar(&in.Data, "data", nil, "Price history (default: built-in sample)")

	cmd.AddCommand(&cobra.Command{
		Use:   "models",
		Short: "List forecasting models",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := sessionFrom(cmd)
			if err != nil {
				return err
			}
			models, err := s.app.Forecast.Models(cmd.Context())
			if err != nil {
				return err
			}
			if s.format == FormatJSON {
				return renderJSON(cmd.OutOrStdout(), models)
			}
			return renderModels(cmd.OutOrStdout(), models)
		},
	})
	return cmd
}

func newSearchCommand() *cobra.Command {
	var maxResults int
	cmd := &cobra.Command{
		Use:   "search <text>",
		Short: "Search the market knowledge base",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := sessionFrom(cmd)
			if err != nil {
				return err
			}
			res, err := s.app.Documents.Search(cmd.Context(), strings.Join(args, " "), maxResults)
			if err != nil {
				return err
			}
			if s.format == FormatJSON {
				return renderJSON(cmd.OutOrStdout(), res)
			}
			renderSearch(cmd.OutOrStdout(), res)
			return nil
		},
	}
	cmd.Flags().IntVar(&maxResults, "max", service.DefaultMaxResults, "Maximum number of sources")
	return cmd
}

func newUploadCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "upload <file>...",
		Short: "Index documents into the knowledge base",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := sessionFrom(cmd)
			if err != nil {
				return err
			}

			t := newTable(cmd.OutOrStdout())
			t.AppendHeader(table.Row{"File", "Chunks", "Status"})
			failed := 0
			for _, path := range args {
				name := filepath.Base(path)
				chunks, status := uploadOne(cmd, s, path, name)
				if status != "indexed" {
					failed++
				}
				t.AppendRow(table.Row{name, chunks, status})
			}
			t.Render()

			if failed > 0 {
				return fmt.Errorf("%d of %d files failed", failed, len(args))
			}
			return nil
		},
	}
}

func uploadOne(cmd *cobra.Command, s *session, path, name string) (int, string) {
	if err := service.CheckExtension(name); err != nil {
		return 0, err.Error()
	}
	f, err := os.Open(path)
	if err != nil {
		return 0, err.Error()
	}
	defer f.Close()

	res, err := s.app.Documents.Upload(cmd.Context(), name, f)
	if err != nil {
		return 0, err.Error()
	}
	return res.ChunksIndexed, "indexed"
}

func newDocsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "docs",
		Short: "Manage indexed documents",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List indexed documents",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := sessionFrom(cmd)
			if err != nil {
				return err
			}
			docs, err := s.app.Documents.List(cmd.Context())
			if err != nil {
				return err
			}
			if s.format == FormatJSON {
				return renderJSON(cmd.OutOrStdout(), docs)
			}
			renderDocuments(cmd.OutOrStdout(), docs)
			return nil
		},
	}

	rm := &cobra.Command{
		Use:   "rm <name>",
		Short: "Delete one document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := sessionFrom(cmd)
			if err != nil {
				return err
			}
			if _, err := s.app.Documents.Delete(cmd.Context(), args[0]); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
			return nil
		},
	}

	var yes bool
	purge := &cobra.Command{
		Use:   "purge",
		Short: "Delete every indexed document",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !yes {
				return fmt.Errorf("refusing to purge without --yes")
			}
			s, err := sessionFrom(cmd)
			if err != nil {
				return err
			}
			resp, err := s.app.Documents.Purge(cmd.Context())
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "purged (%v documents)\n", resp["deleted_count"])
			return nil
		},
	}
	purge.Flags().BoolVar(&yes, "yes", false, "Confirm deletion of all documents")

	stats := &cobra.Command{
		Use:   "stats",
		Short: "Show knowledge base statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := sessionFrom(cmd)
			if err != nil {
				return err
			}
			st, err := s.app.Documents.Stats(cmd.Context())
			if err != nil {
				return err
			}
			return renderJSON(cmd.OutOrStdout(), st)
		},
	}

	cmd.AddCommand(list, rm, purge, stats)
	return cmd
}

func newAgentsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "agents",
		Short: "List agents registered in the coordinator",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := sessionFrom(cmd)
			if err != nil {
				return err
			}
			agents, err := s.app.Queries.Agents(cmd.Context())
			if err != nil {
				return err
			}
			if s.format == FormatJSON {
				return renderJSON(cmd.OutOrStdout(), agents)
			}
			renderAgents(cmd.OutOrStdout(), agents)
			return nil
		},
	}
}
