package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/Lllllllleong/catalogreport/internal/config"
	"github.com/Lllllllleong/catalogreport/internal/services"
	"github.com/Lllllllleong/catalogreport/internal/sheet"
	"github.com/spf13/cobra"
)

var version = "0.1.0"

// Flags shared by every subcommand.
var (
	rulesFile string
	workDir   string
	workers   int
	ocr       bool
	verbose   bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "catalogctl",
		Short: "Catalog program report generator",
		Long: `catalogctl extracts academic programs from graduate and undergraduate
catalog PDFs, reconciles them against last year's certified report and
compares finished reports.

Uploads and reports are kept in the working directory (default
upl_file_bunker/) unless ARCHIVE_BUCKET names a GCS bucket.`,
		Version: version,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := slog.LevelInfo
			if verbose {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
		},
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&rulesFile, "rules", "", "YAML file overriding the built-in catalog rules (env RULES_FILE)")
	rootCmd.PersistentFlags().StringVar(&workDir, "work-dir", "", "directory for uploads and reports (env WORK_DIR)")
	rootCmd.PersistentFlags().IntVar(&workers, "workers", 0, "pages read in parallel (env PAGE_WORKERS)")
	rootCmd.PersistentFlags().BoolVar(&ocr, "ocr", false, "send pages without extractable text to Gemini (env OCR_ENABLED)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log at debug level")

	rootCmd.AddCommand(extractCmd())
	rootCmd.AddCommand(reportCmd())
	rootCmd.AddCommand(compareCmd())
	rootCmd.AddCommand(reportsCmd())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadServices applies command-line overrides to the environment
// configuration and wires the services.
func loadServices(ctx context.Context, tocPath string) (*services.Services, error) {
	cfg := config.Load()
	if rulesFile != "" {
		cfg.RulesFile = rulesFile
	}
	if workDir != "" {
		cfg.WorkDir = workDir
		if os.Getenv("LEDGER_PATH") == "" {
			cfg.LedgerPath = filepath.Join(workDir, "ledger.db")
		}
	}
	if workers > 0 {
		cfg.PageWorkers = workers
	}
	if ocr {
		cfg.OCREnabled = true
	}

	s, err := services.NewServices(ctx, cfg, slog.Default())
	if err != nil {
		return nil, err
	}
	if tocPath != "" {
		s.Rules.Graduate.Strategy = config.StrategyTOC
	}
	return s, nil
}

func extractCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "extract",
		Short: "Extract programs from both catalogs into one table",
		Long: `Extract runs the graduate and undergraduate pipelines and writes the
combined table. Passing --toc switches the graduate catalog to table of
contents detection.

Example:
  catalogctl extract --grad grad.pdf --ug ug.pdf --out combined.xlsx`,
		RunE: func(cmd *cobra.Command, args []string) error {
			grad, _ := cmd.Flags().GetString("grad")
			ug, _ := cmd.Flags().GetString("ug")
			toc, _ := cmd.Flags().GetString("toc")
			out, _ := cmd.Flags().GetString("out")

			s, err := loadServices(cmd.Context(), toc)
			if err != nil {
				return err
			}
			defer s.Close()

			res, err := s.Merger.Merge(cmd.Context(), services.CatalogFiles{
				Graduate:      grad,
				GraduateTOC:   toc,
				Undergraduate: ug,
			})
			if err != nil {
				return err
			}
			if out != "" {
				if err := sheet.WriteFile(out, sheet.ProgramsTable(res.Programs)); err != nil {
					return err
				}
			} else {
				out = s.Archive.URI(res.OutputName)
			}
			fmt.Printf("Extracted %d programs (%d graduate, %d undergraduate) to %s\n",
				len(res.Programs), res.Graduate.Programs, res.Undergraduate.Programs, out)
			for _, w := range res.Warnings {
				fmt.Printf("warning: %s\n", w)
			}
			return nil
		},
	}
	cmd.Flags().String("grad", "", "graduate catalog PDF")
	cmd.Flags().String("ug", "", "undergraduate catalog PDF")
	cmd.Flags().String("toc", "", "graduate table of contents PDF")
	cmd.Flags().String("out", "", "also write the combined table to this path")
	cmd.MarkFlagRequired("grad")
	cmd.MarkFlagRequired("ug")
	return cmd
}

func reportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Generate the year-over-year catalog report",
		Long: `Report extracts both catalogs, reconciles the programs against last
year's certified report and saves <suffix>_Report.xlsx, where 2025-2026
becomes 2526.

Example:
  catalogctl report --grad grad.pdf --ug ug.pdf --last-year 2425_Report.xlsx --year 2025-2026`,
		RunE: func(cmd *cobra.Command, args []string) error {
			grad, _ := cmd.Flags().GetString("grad")
			ug, _ := cmd.Flags().GetString("ug")
			toc, _ := cmd.Flags().GetString("toc")
			lastYear, _ := cmd.Flags().GetString("last-year")
			lastSheet, _ := cmd.Flags().GetString("last-year-sheet")
			firstRow, _ := cmd.Flags().GetInt("last-year-first-row")
			year, _ := cmd.Flags().GetString("year")

			s, err := loadServices(cmd.Context(), toc)
			if err != nil {
				return err
			}
			defer s.Close()

			skip := 0
			if firstRow > 1 {
				skip = firstRow - 1
			}
			res, err := s.Reporter.Generate(cmd.Context(), services.ReportRequest{
				AcademicYear: year,
				Files: services.CatalogFiles{
					Graduate:      grad,
					GraduateTOC:   toc,
					Undergraduate: ug,
				},
				LastYear:      lastYear,
				LastYearSheet: lastSheet,
				LastYearSkip:  skip,
			})
			if err != nil {
				return err
			}

			if res.Reused {
				fmt.Printf("Inputs unchanged since run %s; report is at %s\n", res.RunID, res.OutputURI)
			} else {
				fmt.Printf("Report %s written to %s\n", res.RunID, res.OutputURI)
			}
			fmt.Printf("  new:            %d\n", res.Summary.New)
			fmt.Printf("  still approved: %d\n", res.Summary.StillApproved)
			fmt.Printf("  manual review:  %d\n", res.Summary.ManualReview)
			fmt.Printf("  teach out:      %d\n", res.Summary.TeachOut)
			fmt.Printf("  removed:        %d\n", res.Summary.Removed)
			for _, w := range res.Warnings {
				fmt.Printf("warning: %s\n", w)
			}
			return nil
		},
	}
	cmd.Flags().String("grad", "", "graduate catalog PDF")
	cmd.Flags().String("ug", "", "undergraduate catalog PDF")
	cmd.Flags().String("toc", "", "graduate table of contents PDF")
	cmd.Flags().String("last-year", "", "last year's certified report (.xlsx)")
	cmd.Flags().String("last-year-sheet", sheet.DefaultSheet, "sheet of last year's report")
	cmd.Flags().Int("last-year-first-row", 1, "row of last year's report holding the column headers")
	cmd.Flags().String("year", "", "academic year, e.g. 2025-2026")
	cmd.MarkFlagRequired("grad")
	cmd.MarkFlagRequired("ug")
	cmd.MarkFlagRequired("year")
	return cmd
}

func compareCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compare",
		Short: "Compare two finished reports",
		Long: `Compare lists programs added, removed and changed between two reports,
matching rows on the program name column.

Example:
  catalogctl compare --old 2425_Report.xlsx --new 2526_Report.xlsx --sheet Sheet1 --first-row 5`,
		RunE: func(cmd *cobra.Command, args []string) error {
			oldPath, _ := cmd.Flags().GetString("old")
			newPath, _ := cmd.Flags().GetString("new")
			sheetName, _ := cmd.Flags().GetString("sheet")
			firstRow, _ := cmd.Flags().GetInt("first-row")
			format, _ := cmd.Flags().GetString("format")

			oldF, err := os.Open(oldPath)
			if err != nil {
				return fmt.Errorf("failed to open %s: %w", oldPath, err)
			}
			defer oldF.Close()
			newF, err := os.Open(newPath)
			if err != nil {
				return fmt.Errorf("failed to open %s: %w", newPath, err)
			}
			defer newF.Close()

			res, err := services.CompareWorkbooks(oldF, newF,
				services.CompareOptions{Sheet: sheetName, FirstRow: firstRow}, slog.Default())
			if err != nil {
				return err
			}
			resp := services.NewCompareResponse(res)

			if strings.EqualFold(format, "json") {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(resp)
			}

			if resp.Diagnostic != "" {
				fmt.Println(resp.Diagnostic)
				return nil
			}
			fmt.Printf("Added programs (%d)\n", len(resp.Added))
			for _, n := range resp.Added {
				fmt.Printf("  + %s\n", n)
			}
			fmt.Printf("Removed programs (%d)\n", len(resp.Removed))
			for _, n := range resp.Removed {
				fmt.Printf("  - %s\n", n)
			}
			fmt.Printf("Changed programs (%d)\n", len(resp.Changed))
			for _, c := range resp.Changed {
				fmt.Printf("  ~ %s\n", c.ProgramName)
				for _, d := range c.Columns {
					fmt.Printf("      %s: %q -> %q\n", d.Column, d.Old, d.New)
				}
			}
			return nil
		},
	}
	cmd.Flags().String("old", "", "earlier report (.xlsx)")
	cmd.Flags().String("new", "", "later report (.xlsx)")
	cmd.Flags().String("sheet", sheet.DefaultSheet, "sheet holding the data")
	cmd.Flags().Int("first-row", 5, "row holding the column headers")
	cmd.Flags().String("format", "text", "output format: text or json")
	cmd.MarkFlagRequired("old")
	cmd.MarkFlagRequired("new")
	return cmd
}

func reportsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reports",
		Short: "List the reports saved in the archive",
		Long: `Reports lists every <suffix>_Report.xlsx kept in the working directory
or archive bucket, for use as --last-year of the next run.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadServices(cmd.Context(), "")
			if err != nil {
				return err
			}
			defer s.Close()

			reports, err := services.ArchivedReports(cmd.Context(), s.Archive)
			if err != nil {
				return err
			}
			if len(reports) == 0 {
				fmt.Println("No reports archived yet.")
				return nil
			}
			for _, r := range reports {
				fmt.Printf("%s  %s\n", r.Suffix, r.URI)
			}
			return nil
		},
	}
}
