package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/tonimelisma/expedientes-go/internal/expediente"
)

func newNewCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "new",
		Short: "Create a case file",
		Long: `Create a case file: a Drive folder named CODIGO_EXP-<id> holding the
attached files, and one row in the index spreadsheet.

Files upload one at a time in the given order unless parallel_uploads is
raised. If an upload or the index write fails, the folder and the files
already uploaded are left in Drive and journaled (see 'expedientes orphans').`,
		Args: cobra.NoArgs,
		RunE: runNew,
	}

	cmd.Flags().String("codigo", "", "case code (required)")
	cmd.Flags().String("nombre", "", "client name (required)")
	cmd.Flags().String("asunto", "", "subject (required)")
	cmd.Flags().String("fecha", "", "date, stored as given")
	cmd.Flags().String("notas", "", "notes")
	cmd.Flags().StringArrayP("file", "f", nil, "file to attach (repeatable)")

	return cmd
}

func newLsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ls",
		Short: "List case files",
		Long:  "List the case files in the index, newest date first. Rows without an id are skipped.",
		Args:  cobra.NoArgs,
		RunE:  runLs,
	}

	cmd.Flags().StringP("search", "s", "", "filter by codigo, nombre or asunto")

	return cmd
}

func newOpenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "open <exp-id>",
		Short: "Open a case folder in the browser",
		Args:  cobra.ExactArgs(1),
		RunE:  runOpen,
	}
}

func newExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the raw index rows",
		Long: `Write every row of the index, exactly as stored, to a file. The default
file name is expedientes_sheet_export_YYYY-MM-DD.json in the current
directory. Use --output - for stdout.`,
		Args: cobra.NoArgs,
		RunE: runExport,
	}

	cmd.Flags().String("format", string(expediente.FormatJSON), "output format: json or yaml")
	cmd.Flags().StringP("output", "o", "", "output file, or - for stdout")

	return cmd
}

func runNew(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	cc := mustCLIContext(ctx)

	in, err := inputFromFlags(cmd)
	if err != nil {
		return err
	}

	app, err := NewAppSession(ctx, cc.Cfg, cc.Logger)
	if err != nil {
		return err
	}
	defer app.Close()

	if !cc.Flags.Quiet && !cc.Flags.JSON {
		printPending(cmd.ErrOrStderr(), in.Attachments)
	}

	res, err := app.Service.Create(ctx, in)
	if err != nil {
		var pe *expediente.PartialError
		if errors.As(err, &pe) {
			printPartial(cmd.ErrOrStderr(), pe)
		}

		return wrapAuthErr(err)
	}

	if cc.Flags.JSON {
		return printJSON(cmd.OutOrStdout(), res)
	}

	printResult(cmd.OutOrStdout(), res)

	return nil
}

// inputFromFlags builds the workflow input. Attachments are stat'ed up front
// so a missing file fails before anything is created.
func inputFromFlags(cmd *cobra.Command) (expediente.Input, error) {
	var in expediente.Input

	flags := cmd.Flags()
	in.Codigo, _ = flags.GetString("codigo")
	in.Nombre, _ = flags.GetString("nombre")
	in.Asunto, _ = flags.GetString("asunto")
	in.Fecha, _ = flags.GetString("fecha")
	in.Notas, _ = flags.GetString("notas")

	paths, err := flags.GetStringArray("file")
	if err != nil {
		return in, err
	}

	for _, p := range paths {
		a, err := expediente.FileAttachment(p)
		if err != nil {
			return in, err
		}

		in.Attachments = append(in.Attachments, a)
	}

	return in, nil
}

// printPending lists the attachments about to be uploaded with their sizes.
func printPending(w io.Writer, atts []expediente.Attachment) {
	if len(atts) == 0 {
		return
	}

	var total int64

	rows := make([][]string, 0, len(atts))
	for i := range atts {
		total += atts[i].Size
		rows = append(rows, []string{atts[i].Name, formatSize(atts[i].Size)})
	}

	fmt.Fprintf(w, "Uploading %d file(s), %s:\n", len(atts), formatSize(total))
	printTable(w, []string{"FILE", "SIZE"}, rows)
}

func printResult(w io.Writer, res *expediente.Result) {
	fmt.Fprintf(w, "Created %s\n", bold(res.ExpID))
	fmt.Fprintf(w, "Folder:  %s\n", cyan(expediente.FolderLink(res.FolderID)))

	for _, f := range res.Uploaded {
		fmt.Fprintf(w, "  %s  %s\n", f.Name, faint(f.Link))
	}
}

func printPartial(w io.Writer, pe *expediente.PartialError) {
	if pe.CleanedUp {
		fmt.Fprintf(w, "Case file %s was not created; its folder was deleted.\n", pe.ExpID)
		return
	}

	fmt.Fprintf(w, "Case file %s is incomplete: %d file(s) uploaded, no index row.\n", pe.ExpID, len(pe.Uploaded))
	fmt.Fprintf(w, "Folder left in Drive: %s\n", expediente.FolderLink(pe.FolderID))
}

func runLs(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	cc := mustCLIContext(ctx)

	query, _ := cmd.Flags().GetString("search")

	app, err := NewAppSession(ctx, cc.Cfg, cc.Logger)
	if err != nil {
		return err
	}
	defer app.Close()

	items, err := app.Service.List(ctx)
	if err != nil {
		return wrapAuthErr(err)
	}

	view := expediente.SortByFechaDesc(expediente.Filter(items, query))

	if cc.Flags.JSON {
		return printJSON(cmd.OutOrStdout(), view)
	}

	printExpedientes(cmd.OutOrStdout(), view)

	return nil
}

func printExpedientes(w io.Writer, items []expediente.Expediente) {
	if len(items) == 0 {
		fmt.Fprintln(w, "No case files.")
		return
	}

	rows := make([][]string, 0, len(items))
	for _, it := range items {
		rows = append(rows, []string{it.ID, it.Codigo, it.Nombre, it.Asunto, it.Fecha, expediente.FolderLink(it.FolderID)})
	}

	printTable(w, []string{"ID", "CODIGO", "NOMBRE", "ASUNTO", "FECHA", "CARPETA"}, rows)
}

func runOpen(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cc := mustCLIContext(ctx)

	app, err := NewAppSession(ctx, cc.Cfg, cc.Logger)
	if err != nil {
		return err
	}
	defer app.Close()

	if _, err := app.Service.List(ctx); err != nil {
		return wrapAuthErr(err)
	}

	items, err := app.Session.Cached()
	if err != nil {
		return wrapAuthErr(err)
	}

	for _, it := range items {
		if it.ID != args[0] {
			continue
		}

		link := expediente.FolderLink(it.FolderID)
		if link == "" {
			return fmt.Errorf("case file %s has no folder", it.ID)
		}

		fmt.Fprintln(cmd.OutOrStdout(), link)

		return openURL(link)
	}

	return fmt.Errorf("case file %s not found", args[0])
}

func runExport(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	cc := mustCLIContext(ctx)

	formatFlag, _ := cmd.Flags().GetString("format")

	format, err := expediente.ParseFormat(formatFlag)
	if err != nil {
		return err
	}

	output, _ := cmd.Flags().GetString("output")
	if output == "" {
		output = expediente.ExportFileName(time.Now(), format)
	}

	app, err := NewAppSession(ctx, cc.Cfg, cc.Logger)
	if err != nil {
		return err
	}
	defer app.Close()

	if output == "-" {
		_, err := app.Service.Export(ctx, cmd.OutOrStdout(), format)
		return wrapAuthErr(err)
	}

	n, err := exportToFile(output, func(w io.Writer) (int, error) {
		return app.Service.Export(ctx, w, format)
	})
	if err != nil {
		return wrapAuthErr(err)
	}

	cc.Statusf("Exported %d row(s) to %s\n", n, output)

	return nil
}

// exportToFile writes through a temp file in the target directory and
// renames it into place, so a failed read leaves no partial export.
func exportToFile(path string, write func(io.Writer) (int, error)) (int, error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".export-*.tmp")
	if err != nil {
		return 0, fmt.Errorf("creating export file: %w", err)
	}

	tmpPath := tmp.Name()

	n, err := write(tmp)
	if err != nil {
		tmp.Close()
		os.Remove(tmpPath)

		return 0, err
	}

	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return 0, fmt.Errorf("writing export file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return 0, fmt.Errorf("writing export file: %w", err)
	}

	return n, nil
}

// printJSON writes v indented by two spaces.
func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")

	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encoding JSON output: %w", err)
	}

	return nil
}
