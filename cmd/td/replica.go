package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/steveyegge/taskdb/internal/migrate"
	"github.com/steveyegge/taskdb/internal/mirror"
	"github.com/steveyegge/taskdb/internal/replica"
	"github.com/steveyegge/taskdb/internal/replica/store"
	"github.com/steveyegge/taskdb/internal/storage"
)

var replicaCmd = &cobra.Command{
	Use:   "replica",
	Short: "Embedded replica store management",
	Long: `Manage the embedded replica store (tasks.db).

The replica is an operation-logged SQLite database. Every mutation is
an atomic batch of operations delimited by undo points, applied by a
single dedicated worker so concurrent writers never interleave.`,
}

var replicaStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show replica store statistics",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		info, err := os.Stat(cfg.StorePath)
		if os.IsNotExist(err) {
			fmt.Printf("\n%s Replica store not initialized\n", renderWarn("⚠"))
			fmt.Printf("   Run any mutating command (e.g. 'td add') to create it\n\n")
			return nil
		}
		if err != nil {
			return err
		}

		st, err := store.OpenReadOnly(cfg.StorePath)
		if err != nil {
			return err
		}
		defer st.Close()

		taskCount, err := st.TaskCount()
		if err != nil {
			return err
		}
		opCount, err := st.OperationCount()
		if err != nil {
			return err
		}
		undoCount, err := st.UndoPointCount()
		if err != nil {
			return err
		}

		fmt.Printf("\nReplica Store Status\n\n")
		fmt.Printf("Location:    %s\n", cfg.StorePath)
		fmt.Printf("Size:        %.1f KB\n", float64(info.Size())/1024)
		fmt.Printf("Tasks:       %d\n", taskCount)
		fmt.Printf("Operations:  %d\n", opCount)
		fmt.Printf("Undo points: %d\n", undoCount)
		fmt.Printf("Modified:    %s\n", info.ModTime().Format("2006-01-02 15:04:05"))
		fmt.Println()
		return nil
	},
}

var replicaVerifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Check that every stored task decodes cleanly",
	Long: `Walk every task in the replica store and decode its field map back
into a task, reporting entries that fail to parse or validate.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := os.Stat(cfg.StorePath); os.IsNotExist(err) {
			fmt.Printf("%s Replica store not initialized, nothing to verify\n", renderWarn("⚠"))
			return nil
		}

		st, err := store.OpenReadOnly(cfg.StorePath)
		if err != nil {
			return err
		}
		defer st.Close()

		all, err := st.AllTasks()
		if err != nil {
			return err
		}

		var bad int
		for rawID, fields := range all {
			id, err := uuid.Parse(rawID)
			if err != nil {
				fmt.Fprintf(os.Stderr, "%s %s: bad uuid: %v\n", renderWarn("⚠"), rawID, err)
				bad++
				continue
			}
			t, err := replica.TaskFromFields(id, fields)
			if err != nil {
				fmt.Fprintf(os.Stderr, "%s %s: %v\n", renderWarn("⚠"), shortID(id), err)
				bad++
				continue
			}
			if err := t.Validate(); err != nil {
				fmt.Fprintf(os.Stderr, "%s %s: %v\n", renderWarn("⚠"), shortID(id), err)
				bad++
			}
		}

		if bad > 0 {
			return fmt.Errorf("%d of %d tasks failed verification", bad, len(all))
		}
		fmt.Printf("%s Verified %d tasks\n", renderPass("✓"), len(all))
		return nil
	},
}

var replicaMigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Copy tasks from the JSON file backend into the replica",
	Long: `Copy every task from the file backend (tasks.json) into the
replica store. Logically deleted tasks are skipped. Use --dry-run to
preview.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		dryRun, _ := cmd.Flags().GetBool("dry-run")

		src := storage.NewFileBackend(cfg.TaskFile)
		if err := src.Initialize(); err != nil {
			return err
		}
		defer src.Close()

		dst, err := storage.OpenReplicaBackend(cfg.StorePath)
		if err != nil {
			return err
		}
		defer dst.Close()
		if err := dst.Initialize(); err != nil {
			return err
		}

		start := time.Now()
		result, err := migrate.Migrate(cmd.Context(), migrate.Options{
			From:   src,
			To:     dst,
			DryRun: dryRun,
		})
		if err != nil {
			return err
		}

		verb := "Migrated"
		if dryRun {
			verb = "Would migrate"
		}
		fmt.Printf("%s %s %d of %d tasks in %v\n", renderPass("✓"), verb,
			result.TasksWritten, result.TasksRead, time.Since(start).Round(time.Millisecond))
		for _, msg := range result.Errors {
			fmt.Fprintf(os.Stderr, "%s %s\n", renderWarn("⚠"), msg)
		}
		return nil
	},
}

var replicaMirrorCmd = &cobra.Command{
	Use:   "mirror",
	Short: "Mirror the JSON task file into the replica (foreground)",
	Long: `Watch the file backend's tasks.json and mirror every change into
the replica store as operation batches.

The mirror will:
  1. Perform a full sync on startup
  2. Watch tasks.json for writes
  3. Diff changed tasks into minimal operation batches
  4. Commit each batch atomically

Press Ctrl+C to stop.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		wrapper, err := replica.OpenEmbeddedReplica(cfg.StorePath)
		if err != nil {
			return err
		}
		defer wrapper.Close()

		m, err := mirror.New(cfg.TaskFile, wrapper, nil)
		if err != nil {
			return err
		}

		fmt.Printf("Mirroring %s into %s\n", cfg.TaskFile, cfg.StorePath)
		fmt.Println("Press Ctrl+C to stop")

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		return m.Start(ctx)
	},
}

func init() {
	replicaMigrateCmd.Flags().Bool("dry-run", false, "preview without writing")
	replicaCmd.AddCommand(replicaStatusCmd, replicaVerifyCmd, replicaMigrateCmd, replicaMirrorCmd)
	rootCmd.AddCommand(replicaCmd)
}
