package main

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"majdl/internal/ledger"
	"majdl/internal/logging"
	"majdl/internal/recordstore"
)

// recordStatus is one row of the status table.
type recordStatus struct {
	ID       string
	Stage    string
	Entries  int
	Memoized bool
}

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the stage of every local record",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if cfg.Paths.OutputDir == "" {
				return errors.New("status needs --output (or paths.output_dir)")
			}
			store, err := recordstore.New(cfg.Paths.OutputDir, "")
			if err != nil {
				return err
			}
			statuses, err := collectStatus(store, ledger.New(cfg.Paths.MemoizeFile, logging.NewNop()))
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(statuses) == 0 {
				fmt.Fprintf(out, "No records in %s\n", cfg.Paths.OutputDir)
				return nil
			}
			fmt.Fprintln(out, renderStatus(statuses))
			fmt.Fprintln(out, renderStageTotals(statuses))
			return nil
		},
	}
}

func collectStatus(store *recordstore.Store, memo *ledger.Ledger) ([]recordStatus, error) {
	ids, err := store.IDs()
	if err != nil {
		return nil, err
	}
	statuses := make([]recordStatus, 0, len(ids))
	for _, id := range ids {
		status := recordStatus{ID: id, Entries: -1, Memoized: memo.Contains(id)}
		doc, err := store.Read(id)
		if err != nil {
			status.Stage = "invalid"
		} else {
			status.Stage = doc.Stage().String()
			status.Entries = doc.DetailCount()
		}
		statuses = append(statuses, status)
	}
	return statuses, nil
}

func renderStatus(statuses []recordStatus) string {
	title := cases.Title(language.English)
	rows := make([][]string, 0, len(statuses))
	for _, s := range statuses {
		entries := "-"
		if s.Entries >= 0 {
			entries = strconv.Itoa(s.Entries)
		}
		rows = append(rows, []string{s.ID, title.String(s.Stage), entries, yesNo(s.Memoized)})
	}
	return renderTable([]string{"Record", "Stage", "Entries", "Memoized"}, rows, 2)
}

func renderStageTotals(statuses []recordStatus) string {
	title := cases.Title(language.English)
	order := []string{
		recordstore.StageFetched.String(),
		recordstore.StageDetailed.String(),
		recordstore.StageDecoded.String(),
		"invalid",
	}
	counts := make(map[string]int, len(order))
	for _, s := range statuses {
		counts[s.Stage]++
	}
	rows := make([][]string, 0, len(order))
	for _, stage := range order {
		if counts[stage] == 0 {
			continue
		}
		rows = append(rows, []string{title.String(stage), strconv.Itoa(counts[stage])})
	}
	return renderTable([]string{"Stage", "Records"}, rows, 1)
}
