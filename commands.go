package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"docdesk/internal/api"
	docdesk "docdesk/internal/app"
	"docdesk/internal/grid"
	"docdesk/internal/report"
	"docdesk/internal/service"
)

// headless opens the services for a CLI command. The returned func
// closes them.
func headless(cmd *cobra.Command) (*docdesk.Core, func(), error) {
	cfg, log, err := setup()
	if err != nil {
		return nil, nil, err
	}
	core, err := docdesk.NewHeadless(cmd.Context(), cfg, log)
	if err != nil {
		return nil, nil, err
	}
	if token != "" {
		core.Client.SetTokenSource(api.StaticToken(token))
	}
	return core, func() {
		if err := core.Close(context.Background()); err != nil {
			log.Warnw("[APP] close", "error", err)
		}
		log.Sync()
	}, nil
}

// ── mcp ────────────────────────────────────────────────────

func mcpCmd() *cobra.Command {
	var allowWrites bool
	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Serve the MCP tools on stdin/stdout",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := setup()
			if err != nil {
				return err
			}
			defer log.Sync()
			return docdesk.ServeMCP(cfg, log, allowWrites)
		},
	}
	cmd.Flags().BoolVar(&allowWrites, "allow-writes", false, "let agents delete documents without confirmation")
	return cmd
}

// ── collections ────────────────────────────────────────────

func collectionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "collections [name]",
		Short: "List collections, or the fields of one collection",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			core, done, err := headless(cmd)
			if err != nil {
				return err
			}
			defer done()

			out := cmd.OutOrStdout()
			if len(args) == 0 {
				names, err := core.Client.ListCollections(cmd.Context())
				if err != nil {
					return err
				}
				for _, n := range names {
					fmt.Fprintln(out, n)
				}
				return nil
			}

			schema, err := core.Client.GetSchema(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "FIELD\tTYPE\tREQUIRED\tUNIQUE\tREFERENCES")
			for _, name := range grid.OrderColumns(schema) {
				spec, _ := schema.Field(name)
				target, _ := spec.ReferencedCollection()
				fmt.Fprintf(tw, "%s\t%s\t%t\t%t\t%s\n", name, spec.BSONType, schema.IsRequired(name), spec.Unique, target)
			}
			return tw.Flush()
		},
	}
}

// ── import / export ────────────────────────────────────────

func importCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <collection> <file.csv>",
		Short: "Insert every row of a CSV file into a collection",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			core, done, err := headless(cmd)
			if err != nil {
				return err
			}
			defer done()

			sum, err := core.Imports.ImportFile(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Inserted %s of %s rows into %s\n",
				humanize.Comma(int64(sum.Inserted)), humanize.Comma(int64(sum.Rows)), args[0])
			for _, e := range sum.Errors {
				fmt.Fprintln(out, "  "+e)
			}
			if sum.Failed > 0 {
				return fmt.Errorf("%s rows failed", humanize.Comma(int64(sum.Failed)))
			}
			return nil
		},
	}
}

func exportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "export <collection> <file.csv>",
		Short: "Download a collection as CSV",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			core, done, err := headless(cmd)
			if err != nil {
				return err
			}
			defer done()

			n, err := core.Imports.ExportCSV(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s (%s)\n", args[1], humanize.Bytes(uint64(n)))
			return nil
		},
	}
}

// ── report ─────────────────────────────────────────────────

func reportCmd() *cobra.Command {
	var req service.ReportRequest
	var summaryOnly bool
	cmd := &cobra.Command{
		Use:   "report <visits.json|visits.csv>",
		Short: "Render the library attendance report as a PDF",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			entries, err := report.ReadEntries(args[0], f)
			f.Close()
			if err != nil {
				return fmt.Errorf("read %s: %w", args[0], err)
			}
			if len(entries) == 0 {
				return errors.New("no visits in input")
			}

			core, done, err := headless(cmd)
			if err != nil {
				return err
			}
			defer done()

			out := cmd.OutOrStdout()
			if summaryOnly {
				printSummary(out, core.Reports.Preview(entries, req.Categories))
				return nil
			}

			req.Entries = entries
			run, err := core.Reports.Generate(cmd.Context(), req)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Wrote %s (%d pages, %s visits)\n",
				run.OutputPath, run.Pages, humanize.Comma(int64(run.Entries)))
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&req.SchoolYear, "school-year", "", "school year in the title, e.g. 2023-2024")
	f.StringVar(&req.TitleDate, "title-date", "", "date printed in the title (default today)")
	f.StringVarP(&req.OutputPath, "out", "o", "", "output PDF path")
	f.StringSliceVar(&req.Categories, "categories", nil, "course columns in order")
	f.BoolVar(&summaryOnly, "summary", false, "print the totals instead of writing a PDF")
	return cmd
}

func printSummary(w io.Writer, s report.Summary) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "COURSE\tVISITS")
	for _, c := range s.Categories {
		fmt.Fprintf(tw, "%s\t%s\n", c.Category, humanize.Comma(int64(c.Count)))
	}
	fmt.Fprintln(tw, "\t")
	fmt.Fprintln(tw, "PURPOSE\tVISITS")
	for _, p := range s.Purposes {
		fmt.Fprintf(tw, "%s\t%s\n", p.Label, humanize.Comma(int64(p.Count)))
	}
	fmt.Fprintf(tw, "\nTotal Attendance: %s\n", humanize.Comma(int64(s.GrandTotal)))
	tw.Flush()
}

// ── health ─────────────────────────────────────────────────

func healthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check that the API answers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			core, done, err := headless(cmd)
			if err != nil {
				return err
			}
			defer done()

			st := core.Session.ProbeHealth(cmd.Context())
			if !st.Online {
				return fmt.Errorf("%s is offline: %s", core.Config.API.BaseURL, st.Error)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s is online (checked %s)\n",
				core.Config.API.BaseURL, humanize.Time(st.CheckedAt))
			return nil
		},
	}
}
