package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/rupat-crawler/internal/output"
	"github.com/JakeFAU/rupat-crawler/internal/patent"
)

// newTallyCmd creates the 'tally' subcommand, which merges the author country
// counts of one or more table files, e.g. from runs over adjacent ranges.
func newTallyCmd() *cobra.Command {
	var write bool
	cmd := &cobra.Command{
		Use:   "tally FILE.csv [FILE.csv...]",
		Short: "Recount author countries from table files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTallyCommand(cmd, args, write)
		},
	}
	cmd.Flags().BoolVar(&write, "write", false, "also store the merged tally as a new artifact")
	return cmd
}

func runTallyCommand(cmd *cobra.Command, paths []string, write bool) error {
	appInstance, err := resolveApp(cmd.Context())
	if err != nil {
		return err
	}
	logger := appInstance.GetLogger()

	total := patent.NewTally()
	rows := 0
	for _, path := range paths {
		table, err := readTableFile(path)
		if err != nil {
			return err
		}
		rows += table.Len()
		total.Merge(table.Tally())
	}
	logger.Info("tables read", zap.Int("files", len(paths)), zap.Int("rows", rows), zap.Int("authors", total.Total()))

	var writeErr error
	if write {
		artifacts, err := appInstance.GetWriter().WriteTally(cmd.Context(), total)
		if err != nil && !errors.Is(err, output.ErrMirror) {
			return fmt.Errorf("write tally: %w", err)
		}
		if err != nil {
			writeErr = fmt.Errorf("write tally: %w", err)
		}
		logger.Info("merged tally stored", zap.String("name", artifacts.TallyName))
	}
	if err := printTally(cmd.OutOrStdout(), total); err != nil {
		return err
	}
	return writeErr
}

func readTableFile(path string) (*patent.Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open table: %w", err)
	}
	defer f.Close() //nolint:errcheck // read-only

	table, err := output.ReadTable(f)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return table, nil
}
