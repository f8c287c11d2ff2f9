package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/JonMunkholm/sheetjson/internal/config"
	"github.com/JonMunkholm/sheetjson/internal/core"
	"github.com/JonMunkholm/sheetjson/internal/logging"
	"github.com/JonMunkholm/sheetjson/internal/output"
	"github.com/JonMunkholm/sheetjson/internal/store"
	"github.com/JonMunkholm/sheetjson/internal/workbook"
)

// convertFlags holds the parsed command-line options.
type convertFlags struct {
	opts      core.Options
	encoding  string
	delimiter string
}

func newRootCmd(cfg *config.Config) *cobra.Command {
	flags := &convertFlags{
		opts:     cfg.Convert.DefaultOptions(),
		encoding: cfg.Convert.CSVEncoding,
	}

	cmd := &cobra.Command{
		Use:   "sheetjson <file>",
		Short: "Convert spreadsheet sheets to JSON",
		Long: `Convert the rows of a spreadsheet into a JSON array of records.

The header row supplies the keys. Empty rows are skipped, dates become
YYYY-MM-DD strings, and empty cells become null.

Input: .xlsx, .xlsm, .xltx, .xltm, or .csv (read as one sheet named "Sheet1").

Output:
  default        JSON array of the first (or --sheet) sheet on stdout
  --all-sheets   JSON object mapping each sheet name to its array
  --list-sheets  JSON array of sheet names`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, readOpts, err := flags.resolve()
			if err != nil {
				return err
			}
			return runConvert(cmd.Context(), args[0], opts, readOpts, cmd.OutOrStdout())
		},
	}

	f := cmd.Flags()
	f.StringVarP(&flags.opts.Output, "output", "o", "", "Write JSON to this file instead of stdout")
	f.StringVarP(&flags.opts.Sheet, "sheet", "s", "", "Sheet to convert (default: first sheet)")
	f.BoolVar(&flags.opts.AllSheets, "all-sheets", false, "Convert every sheet into an object keyed by sheet name")
	f.BoolVar(&flags.opts.ListSheets, "list-sheets", false, "Only list the sheet names")
	addRecordFlags(cmd, flags)

	cmd.AddCommand(newImportCmd(cfg, flags), newDeleteCmd(cfg))
	return cmd
}

// addRecordFlags registers the flags shared by conversion and import.
func addRecordFlags(cmd *cobra.Command, flags *convertFlags) {
	f := cmd.Flags()
	f.BoolVar(&flags.opts.Pretty, "pretty", flags.opts.Pretty, "Indent the JSON output")
	f.IntVar(&flags.opts.HeaderRow, "header", flags.opts.HeaderRow, "Zero-based index of the header row")
	f.BoolVar(&flags.opts.AddID, "add-id", flags.opts.AddID, "Prefix each record with a zero-based id")
	f.BoolVar(&flags.opts.CamelCase, "camel-case", flags.opts.CamelCase, "camelCase the column keys")
	f.StringVar(&flags.encoding, "encoding", flags.encoding, "Character encoding of CSV input")
	f.StringVar(&flags.delimiter, "delimiter", ",", "Field delimiter of CSV input")
}

// resolve validates the flags and splits them into conversion and reader options.
func (f *convertFlags) resolve() (core.Options, workbook.Options, error) {
	if f.opts.HeaderRow < 0 {
		return core.Options{}, workbook.Options{}, fmt.Errorf("invalid option %q: must be a non-negative integer", "header")
	}
	if !workbook.IsSupportedEncoding(f.encoding) {
		return core.Options{}, workbook.Options{}, fmt.Errorf("invalid option %q: unknown encoding %q", "encoding", f.encoding)
	}

	comma, size := utf8.DecodeRuneInString(f.delimiter)
	if size == 0 || size != len(f.delimiter) || comma == '"' || comma == '\r' || comma == '\n' {
		return core.Options{}, workbook.Options{}, fmt.Errorf("invalid option %q: must be a single character", "delimiter")
	}

	if f.opts.AllSheets && f.opts.Sheet != "" {
		slog.Warn("--sheet is ignored with --all-sheets", "sheet", f.opts.Sheet)
	}

	return f.opts, workbook.Options{CSVEncoding: f.encoding, CSVComma: comma}, nil
}

// convertFile opens path and runs the conversion.
func convertFile(ctx context.Context, path string, opts core.Options, readOpts workbook.Options) (*core.Output, error) {
	wb, err := workbook.Open(path, readOpts)
	if err != nil {
		return nil, err
	}
	defer wb.Close()

	return core.SelectAndProcess(ctx, wb, opts)
}

func runConvert(ctx context.Context, path string, opts core.Options, readOpts workbook.Options, stdout io.Writer) error {
	start := time.Now()

	out, err := convertFile(ctx, path, opts, readOpts)
	if err != nil {
		return err
	}

	if err := output.To(opts.Output, stdout, out, opts.Pretty); err != nil {
		return err
	}

	if !out.IsListing() {
		slog.Info("conversion completed",
			"file", path,
			"sheets", len(out.Result.Sheets),
			"records", out.Result.RowCount(),
			"output", opts.Output,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}
	return nil
}

// importer is the part of *store.Store used by the import command.
type importer interface {
	Import(ctx context.Context, id uuid.UUID, source string, res *core.Result) (*store.ImportSummary, error)
}

func newImportCmd(cfg *config.Config, parent *convertFlags) *cobra.Command {
	flags := &convertFlags{opts: parent.opts, encoding: parent.encoding}

	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Convert a spreadsheet and store its records in PostgreSQL",
		Long: `Convert a spreadsheet and store every record as JSON in PostgreSQL.

Requires DATABASE_URL. Prints a JSON summary with the conversion id.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, readOpts, err := flags.resolve()
			if err != nil {
				return err
			}

			s, err := store.Connect(cmd.Context(), cfg.Database)
			if err != nil {
				return err
			}
			defer s.Close()

			return runImport(cmd.Context(), s, args[0], opts, readOpts, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVarP(&flags.opts.Sheet, "sheet", "s", "", "Sheet to import (default: first sheet)")
	cmd.Flags().BoolVar(&flags.opts.AllSheets, "all-sheets", false, "Import every sheet")
	addRecordFlags(cmd, flags)
	return cmd
}

func runImport(ctx context.Context, imp importer, path string, opts core.Options, readOpts workbook.Options, stdout io.Writer) error {
	opts.ListSheets = false

	id := uuid.New()
	ctx = logging.WithConversionID(ctx, id)

	out, err := convertFile(ctx, path, opts, readOpts)
	if err != nil {
		return err
	}

	summary, err := imp.Import(ctx, id, path, out.Result)
	if err != nil {
		return err
	}

	logging.FromContext(ctx).Info("conversion imported",
		"file", path,
		"records", summary.Records,
	)

	return output.Write(stdout, summary, opts.Pretty)
}

// deleter is the part of *store.Store used by the delete command.
type deleter interface {
	Delete(ctx context.Context, id uuid.UUID) error
}

func newDeleteCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <conversion-id>",
		Short: "Delete an imported conversion and its records",
		Long: `Delete a conversion stored by "sheetjson import", with all of its records.

Requires DATABASE_URL.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid option %q: %w", "conversion-id", err)
			}

			s, err := store.Connect(cmd.Context(), cfg.Database)
			if err != nil {
				return err
			}
			defer s.Close()

			return runDelete(cmd.Context(), s, id, cmd.OutOrStdout())
		},
	}
}

func runDelete(ctx context.Context, d deleter, id uuid.UUID, stdout io.Writer) error {
	ctx = logging.WithConversionID(ctx, id)
	if err := d.Delete(ctx, id); err != nil {
		return err
	}

	logging.FromContext(ctx).Info("conversion deleted")
	return output.Write(stdout, struct {
		ConversionID uuid.UUID `json:"conversion_id"`
		Deleted      bool      `json:"deleted"`
	}{ConversionID: id, Deleted: true}, false)
}
