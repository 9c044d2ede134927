package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/steveyegge/taskdb/internal/migrate"
)

var exportCmd = &cobra.Command{
	Use:   "export [file]",
	Short: "Export all tasks as JSONL",
	Long: `Write every task as one JSON object per line, to stdout or to the
named file. The output is accepted back by "td import".`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		backend, err := openBackend()
		if err != nil {
			return err
		}
		defer backend.Close()

		out := os.Stdout
		if len(args) == 1 {
			f, err := os.Create(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			out = f
		}

		n, err := migrate.ExportJSONL(backend, out)
		if err != nil {
			return err
		}
		if len(args) == 1 {
			fmt.Fprintf(os.Stderr, "%s Exported %d tasks to %s\n", renderPass("✓"), n, args[0])
		}
		return nil
	},
}

var importCmd = &cobra.Command{
	Use:   "import [file]",
	Short: "Import tasks from JSONL",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		backend, err := openBackend()
		if err != nil {
			return err
		}
		defer backend.Close()

		in := os.Stdin
		if len(args) == 1 {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			in = f
		}

		result, err := migrate.ImportJSONL(backend, in)
		if err != nil {
			return err
		}
		fmt.Printf("%s Imported %d of %d tasks\n", renderPass("✓"), result.TasksWritten, result.TasksRead)
		for _, msg := range result.Errors {
			fmt.Fprintf(os.Stderr, "%s %s\n", renderWarn("⚠"), msg)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(exportCmd, importCmd)
}
