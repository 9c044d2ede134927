package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/steveyegge/taskdb/internal/config"
)

var contextCmd = &cobra.Command{
	Use:   "context",
	Short: "Manage user contexts",
	Long: `A context is a named filter. While a context is active its project
constraint is combined with every list query, so "td list" only shows
the tasks you are currently working in.`,
}

var contextDefineCmd = &cobra.Command{
	Use:   "define <name> <filter>...",
	Short: "Define or replace a context",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cf, err := config.LoadContexts(cfg.ContextsPath())
		if err != nil {
			return err
		}
		ctx := config.Context{Name: args[0], Filter: strings.Join(args[1:], " ")}
		cf.Define(ctx)
		if err := config.SaveContexts(cfg.ContextsPath(), cf); err != nil {
			return err
		}
		fmt.Printf("%s Defined context %q (project: %q)\n", renderPass("✓"), ctx.Name, ctx.Project())
		return nil
	},
}

var contextListCmd = &cobra.Command{
	Use:   "list",
	Short: "Show defined contexts",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cf, err := config.LoadContexts(cfg.ContextsPath())
		if err != nil {
			return err
		}
		if len(cf.Contexts) == 0 {
			fmt.Println("No contexts defined.")
			return nil
		}
		for _, c := range cf.Contexts {
			marker := " "
			if c.Name == cf.Active {
				marker = renderPass("*")
			}
			fmt.Printf("%s %-12s %s\n", marker, c.Name, c.Filter)
		}
		return nil
	},
}

var contextSetCmd = &cobra.Command{
	Use:   "set <name>",
	Short: "Activate a context",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cf, err := config.LoadContexts(cfg.ContextsPath())
		if err != nil {
			return err
		}
		if err := cf.SetActive(args[0]); err != nil {
			return err
		}
		if err := config.SaveContexts(cfg.ContextsPath(), cf); err != nil {
			return err
		}
		fmt.Printf("%s Context %q is now active\n", renderPass("✓"), args[0])
		return nil
	},
}

var contextNoneCmd = &cobra.Command{
	Use:   "none",
	Short: "Deactivate the current context",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cf, err := config.LoadContexts(cfg.ContextsPath())
		if err != nil {
			return err
		}
		if err := cf.SetActive(""); err != nil {
			return err
		}
		if err := config.SaveContexts(cfg.ContextsPath(), cf); err != nil {
			return err
		}
		fmt.Printf("%s No context active\n", renderPass("✓"))
		return nil
	},
}

var contextDeleteCmd = &cobra.Command{
	Use:   "delete <name>",
	Short: "Remove a context definition",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cf, err := config.LoadContexts(cfg.ContextsPath())
		if err != nil {
			return err
		}
		if !cf.Delete(args[0]) {
			return fmt.Errorf("context %q is not defined", args[0])
		}
		if err := config.SaveContexts(cfg.ContextsPath(), cf); err != nil {
			return err
		}
		fmt.Printf("%s Deleted context %q\n", renderPass("✓"), args[0])
		return nil
	},
}

func init() {
	contextCmd.AddCommand(contextDefineCmd, contextListCmd, contextSetCmd,
		contextNoneCmd, contextDeleteCmd)
	rootCmd.AddCommand(contextCmd)
}
