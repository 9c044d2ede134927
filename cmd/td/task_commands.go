package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/steveyegge/taskdb/internal/task"
)

var addCmd = &cobra.Command{
	Use:   "add <description> [modifiers]",
	Short: "Add a task",
	Long: `Add a new task. Words form the description; modifiers adjust fields:

  +tag              add a tag
  project:name      set the project
  priority:H|M|L    set the priority
  due:expr          set the due date (synonyms like eom, friday, 3d work)
  wait:expr         hide the task until the date
  scheduled:expr    set the scheduled date
  recur:pattern     set a recurrence pattern

Example:
  td add Buy milk +errand project:house due:tomorrow`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		t := task.New("")
		words, err := applyModifiers(t, args)
		if err != nil {
			return err
		}
		t.Description = strings.Join(words, " ")
		if err := t.Validate(); err != nil {
			return err
		}

		backend, err := openBackend()
		if err != nil {
			return err
		}
		defer backend.Close()

		if err := backend.SaveTask(t); err != nil {
			return err
		}
		fmt.Printf("%s Created task %s: %s\n", renderPass("✓"), shortID(t.ID), t.Description)
		return nil
	},
}

var modifyCmd = &cobra.Command{
	Use:   "modify <id> [modifiers]",
	Short: "Modify a task's fields, tags or dates",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		backend, err := openBackend()
		if err != nil {
			return err
		}
		defer backend.Close()

		t, err := resolveTask(backend, args[0])
		if err != nil {
			return err
		}
		words, err := applyModifiers(t, args[1:])
		if err != nil {
			return err
		}
		if len(words) > 0 {
			t.Description = strings.Join(words, " ")
		}
		if err := t.Validate(); err != nil {
			return err
		}
		if err := backend.SaveTask(t); err != nil {
			return err
		}
		fmt.Printf("%s Modified task %s\n", renderPass("✓"), shortID(t.ID))
		return nil
	},
}

var doneCmd = &cobra.Command{
	Use:   "done <id>...",
	Short: "Complete one or more tasks",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		backend, err := openBackend()
		if err != nil {
			return err
		}
		defer backend.Close()

		for _, ref := range args {
			t, err := resolveTask(backend, ref)
			if err != nil {
				return err
			}
			t.Complete()
			if err := backend.SaveTask(t); err != nil {
				return err
			}
			fmt.Printf("%s Completed %s: %s\n", renderPass("✓"), shortID(t.ID), t.Description)
		}
		return nil
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete <id>...",
	Short: "Delete one or more tasks",
	Long: `Delete tasks. On the replica backend this is a logical delete:
the record stays in the store with status deleted and remains
recoverable through the undo log.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		backend, err := openBackend()
		if err != nil {
			return err
		}
		defer backend.Close()

		for _, ref := range args {
			t, err := resolveTask(backend, ref)
			if err != nil {
				return err
			}
			if err := backend.DeleteTask(t.ID); err != nil {
				return err
			}
			fmt.Printf("%s Deleted %s: %s\n", renderPass("✓"), shortID(t.ID), t.Description)
		}
		return nil
	},
}

var startCmd = &cobra.Command{
	Use:   "start <id>",
	Short: "Mark a task as actively worked on",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return toggleActive(args[0], true)
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop <id>",
	Short: "Stop working on a task",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return toggleActive(args[0], false)
	},
}

func toggleActive(ref string, start bool) error {
	backend, err := openBackend()
	if err != nil {
		return err
	}
	defer backend.Close()

	t, err := resolveTask(backend, ref)
	if err != nil {
		return err
	}
	if start {
		t.StartWork()
	} else {
		t.StopWork()
	}
	if err := backend.SaveTask(t); err != nil {
		return err
	}
	verb := "Started"
	if !start {
		verb = "Stopped"
	}
	fmt.Printf("%s %s %s: %s\n", renderPass("✓"), verb, shortID(t.ID), t.Description)
	return nil
}

var annotateCmd = &cobra.Command{
	Use:   "annotate <id> <text>...",
	Short: "Attach a timestamped note to a task",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		backend, err := openBackend()
		if err != nil {
			return err
		}
		defer backend.Close()

		t, err := resolveTask(backend, args[0])
		if err != nil {
			return err
		}
		t.Annotate(task.NewAnnotation(strings.Join(args[1:], " ")))
		if err := backend.SaveTask(t); err != nil {
			return err
		}
		fmt.Printf("%s Annotated %s\n", renderPass("✓"), shortID(t.ID))
		return nil
	},
}

var dependCmd = &cobra.Command{
	Use:   "depend <id> <on-id>",
	Short: "Record that one task depends on another",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		remove, _ := cmd.Flags().GetBool("remove")

		backend, err := openBackend()
		if err != nil {
			return err
		}
		defer backend.Close()

		t, err := resolveTask(backend, args[0])
		if err != nil {
			return err
		}
		on, err := resolveTask(backend, args[1])
		if err != nil {
			return err
		}
		if remove {
			if !t.RemoveDependency(on.ID) {
				return fmt.Errorf("%s does not depend on %s", shortID(t.ID), shortID(on.ID))
			}
		} else {
			t.AddDependency(on.ID)
		}
		if err := backend.SaveTask(t); err != nil {
			return err
		}
		fmt.Printf("%s Updated dependencies of %s\n", renderPass("✓"), shortID(t.ID))
		return nil
	},
}

var infoCmd = &cobra.Command{
	Use:   "info <id>",
	Short: "Show every field of a task",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		backend, err := openBackend()
		if err != nil {
			return err
		}
		defer backend.Close()

		t, err := resolveTask(backend, args[0])
		if err != nil {
			return err
		}
		fmt.Print(renderTaskDetail(t))
		return nil
	},
}

func init() {
	dependCmd.Flags().Bool("remove", false, "remove the dependency instead of adding it")
	rootCmd.AddCommand(addCmd, modifyCmd, doneCmd, deleteCmd, startCmd, stopCmd,
		annotateCmd, dependCmd, infoCmd)
}
