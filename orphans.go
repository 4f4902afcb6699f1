package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/tonimelisma/expedientes-go/internal/config"
	"github.com/tonimelisma/expedientes-go/internal/gapi"
	"github.com/tonimelisma/expedientes-go/internal/ledger"
)

func newOrphansCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "orphans",
		Short: "List case folders left without an index row",
		Long: `List case files whose folder was created but whose uploads or index write
failed. Their folders are still in Drive.`,
		Args: cobra.NoArgs,
		RunE: runOrphans,
	}

	cmd.Flags().Bool("all", false, "include resolved entries")
	cmd.AddCommand(newOrphansCleanCmd())

	return cmd
}

func newOrphansCleanCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clean <exp-id>",
		Short: "Delete an orphaned case folder and resolve its entry",
		Args:  cobra.ExactArgs(1),
		RunE:  runOrphansClean,
	}
}

func runOrphans(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	cc := mustCLIContext(ctx)

	all, _ := cmd.Flags().GetBool("all")

	l, err := ledger.Open(ctx, config.DefaultLedgerPath(), cc.Logger)
	if err != nil {
		return err
	}
	defer l.Close()

	entries, err := l.List(ctx, all)
	if err != nil {
		return err
	}

	if cc.Flags.JSON {
		return printJSON(cmd.OutOrStdout(), entries)
	}

	printOrphans(cmd.OutOrStdout(), entries)

	return nil
}

func printOrphans(w io.Writer, entries []ledger.Entry) {
	if len(entries) == 0 {
		fmt.Fprintln(w, "No orphaned case folders.")
		return
	}

	rows := make([][]string, 0, len(entries))
	for i := range entries {
		e := &entries[i]

		state := "open"
		if e.Resolved() {
			state = "resolved"
		}

		rows = append(rows, []string{
			e.ExpID,
			e.Codigo,
			string(e.Stage),
			strconv.Itoa(e.Uploaded),
			e.CreatedAt.Local().Format(time.DateTime),
			state,
		})
	}

	printTable(w, []string{"ID", "CODIGO", "STAGE", "UPLOADED", "CREATED", "STATE"}, rows)
}

func runOrphansClean(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cc := mustCLIContext(ctx)
	expID := args[0]

	app, err := NewAppSession(ctx, cc.Cfg, cc.Logger)
	if err != nil {
		return err
	}
	defer app.Close()

	l := app.Ledger
	if l == nil {
		// record_orphans is off, but earlier runs may have journaled entries.
		l, err = ledger.Open(ctx, config.DefaultLedgerPath(), cc.Logger)
		if err != nil {
			return err
		}
		defer l.Close()
	}

	entry, err := l.Get(ctx, expID)
	if err != nil {
		return err
	}

	err = app.Service.DeleteFolder(ctx, entry.FolderID)
	if err != nil && !errors.Is(err, gapi.ErrNotFound) {
		return wrapAuthErr(err)
	}

	if err := l.Resolve(ctx, expID); err != nil {
		return err
	}

	cc.Logger.Info("orphan cleaned",
		slog.String("exp_id", expID),
		slog.String("folder_id", entry.FolderID),
	)
	cc.Statusf("Deleted folder of %s.\n", expID)

	return nil
}
