package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/colorfulnotion/femtobench/results"
	"github.com/spf13/cobra"
)

const defaultArchive = "femtobench.db"

func newArchiveCmd() *cobra.Command {
	var path string
	cmd := &cobra.Command{
		Use:   "archive",
		Short: "Record and inspect benchmark runs in a LevelDB archive",
	}
	cmd.PersistentFlags().StringVar(&path, "archive", defaultArchive, "archive directory")

	var (
		label    string
		strategy string
		ctxKind  string
		prog     string
	)
	importCmd := &cobra.Command{
		Use:   "import [log file]",
		Short: "Parse a captured benchmark log (stdin when no file is given) and archive it",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in := cmd.InOrStdin()
			if len(args) == 1 {
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer f.Close()
				in = f
				if label == "" {
					label = args[0]
				}
			}
			run, err := importRun(path, in, &results.Run{Label: label, Strategy: strategy, Context: ctxKind, Program: prog})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "archived run %d (%d rows, complete=%t)\n", run.ID, len(run.Rows), run.Complete)
			return nil
		},
	}
	importCmd.Flags().StringVar(&label, "label", "", "run label")
	importCmd.Flags().StringVar(&strategy, "mode", "", "strategy the log was produced with")
	importCmd.Flags().StringVar(&ctxKind, "context", "", "memory context the log was produced with")
	importCmd.Flags().StringVar(&prog, "workload", "", "program the log was produced with")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List archived runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := results.OpenStore(path)
			if err != nil {
				return err
			}
			defer store.Close()
			runs, err := store.List()
			if err != nil {
				return err
			}
			return writeRuns(cmd.OutOrStdout(), runs)
		},
	}

	deleteCmd := &cobra.Command{
		Use:   "delete <id>...",
		Short: "Delete archived runs",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args)
			if err != nil {
				return err
			}
			store, err := results.OpenStore(path)
			if err != nil {
				return err
			}
			defer store.Close()
			for _, id := range ids {
				if err := store.Delete(id); err != nil {
					return err
				}
			}
			return nil
		},
	}

	cmd.AddCommand(importCmd, listCmd, deleteCmd)
	return cmd
}

func importRun(path string, in io.Reader, run *results.Run) (*results.Run, error) {
	rep, err := results.Parse(in)
	if err != nil {
		return nil, err
	}
	store, err := results.OpenStore(path)
	if err != nil {
		return nil, err
	}
	defer store.Close()
	run.Rows = rep.Rows
	run.Complete = rep.Complete
	run.Iterations = uint32(len(rep.Rows))
	if err := store.Put(run); err != nil {
		return nil, err
	}
	return run, nil
}

func writeRuns(w io.Writer, runs []*results.Run) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tLABEL\tMODE\tCONTEXT\tROWS\tCOMPLETE\tRECORDED")
	for _, r := range runs {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%d\t%t\t%s\n", r.ID, r.Label, r.Strategy, r.Context, len(r.Rows), r.Complete, r.Recorded.Format("2006-01-02 15:04:05"))
	}
	return tw.Flush()
}

func parseIDs(args []string) ([]uint64, error) {
	ids := make([]uint64, 0, len(args))
	for _, a := range args {
		id, err := strconv.ParseUint(a, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid run id %q", a)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func newChartCmd() *cobra.Command {
	var (
		path  string
		out   string
		title string
	)
	cmd := &cobra.Command{
		Use:   "chart [id]...",
		Short: "Render archived runs (all when no id is given) as an HTML line chart",
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args)
			if err != nil {
				return err
			}
			store, err := results.OpenStore(path)
			if err != nil {
				return err
			}
			defer store.Close()
			runs, err := selectRuns(store, ids)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			if out != "" && out != "-" {
				f, err := os.Create(out)
				if err != nil {
					return err
				}
				defer f.Close()
				w = f
			}
			return results.RenderChart(w, title, runs...)
		},
	}
	cmd.Flags().StringVar(&path, "archive", defaultArchive, "archive directory")
	cmd.Flags().StringVarP(&out, "out", "o", "femtobench.html", "output file, - for stdout")
	cmd.Flags().StringVar(&title, "title", "femtobench", "chart title")
	return cmd
}

func selectRuns(store *results.Store, ids []uint64) ([]*results.Run, error) {
	if len(ids) == 0 {
		return store.List()
	}
	runs := make([]*results.Run, 0, len(ids))
	for _, id := range ids {
		run, found, err := store.Get(id)
		if err != nil {
			return nil, err
		}
		if !found {
			return nil, fmt.Errorf("run %d is not archived", id)
		}
		runs = append(runs, run)
	}
	return runs, nil
}
