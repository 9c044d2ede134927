package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/steveyegge/taskdb/internal/dates"
	"github.com/steveyegge/taskdb/internal/query"
	"github.com/steveyegge/taskdb/internal/task"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List tasks",
	Long: `List tasks matching the given filters. The active context's
project constraint applies unless --no-context is given.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		q, err := queryFromFlags(cmd)
		if err != nil {
			return err
		}

		backend, err := openBackend()
		if err != nil {
			return err
		}
		defer backend.Close()

		tasks, err := backend.QueryTasks(q, activeContextProject())
		if err != nil {
			return err
		}
		fmt.Println(renderTaskTable(tasks))
		return nil
	},
}

func queryFromFlags(cmd *cobra.Command) (*query.TaskQuery, error) {
	q := &query.TaskQuery{}

	if raw, _ := cmd.Flags().GetString("status"); raw != "" {
		status := task.ParseStatus(raw)
		q.Status = &status
	} else if all, _ := cmd.Flags().GetBool("all"); !all {
		pending := task.StatusPending
		q.Status = &pending
	}

	if project, _ := cmd.Flags().GetString("project"); project != "" {
		match := query.ProjectExact
		if hierarchy, _ := cmd.Flags().GetBool("hierarchy"); hierarchy {
			match = query.ProjectHierarchy
		}
		q.Project = &query.ProjectFilter{Match: match, Project: project}
	} else if none, _ := cmd.Flags().GetBool("no-project"); none {
		q.Project = &query.ProjectFilter{Match: query.ProjectNone}
	}

	include, _ := cmd.Flags().GetStringSlice("tag")
	exclude, _ := cmd.Flags().GetStringSlice("not-tag")
	if len(include) > 0 || len(exclude) > 0 {
		q.Tags = &query.TagFilter{Include: include, Exclude: exclude}
	}

	dueBefore, _ := cmd.Flags().GetString("due-before")
	dueAfter, _ := cmd.Flags().GetString("due-after")
	if dueBefore != "" || dueAfter != "" {
		df := &query.DateFilter{Field: query.DateDue}
		now := time.Now()
		if dueBefore != "" {
			when, err := dates.Parse(dueBefore, now)
			if err != nil {
				return nil, err
			}
			df.Before = when
		}
		if dueAfter != "" {
			when, err := dates.Parse(dueAfter, now)
			if err != nil {
				return nil, err
			}
			df.After = when
		}
		q.Date = df
	}

	if sortBy, _ := cmd.Flags().GetString("sort"); sortBy != "" {
		desc, _ := cmd.Flags().GetBool("desc")
		q.Sort = &query.SortCriteria{Field: query.SortField(sortBy), Ascending: !desc}
	}

	q.Limit, _ = cmd.Flags().GetInt("limit")
	q.Offset, _ = cmd.Flags().GetInt("offset")
	if noContext, _ := cmd.Flags().GetBool("no-context"); noContext {
		q.Mode = query.IgnoreContext
	}
	return q, nil
}

func init() {
	listCmd.Flags().String("status", "", "filter by status (pending, completed, deleted, waiting, recurring)")
	listCmd.Flags().Bool("all", false, "include tasks of every status")
	listCmd.Flags().String("project", "", "filter by project")
	listCmd.Flags().Bool("hierarchy", false, "match sub-projects of --project too")
	listCmd.Flags().Bool("no-project", false, "only tasks without a project")
	listCmd.Flags().StringSlice("tag", nil, "require at least one of these tags")
	listCmd.Flags().StringSlice("not-tag", nil, "exclude tasks with any of these tags")
	listCmd.Flags().String("due-before", "", "due date upper bound (date expression)")
	listCmd.Flags().String("due-after", "", "due date lower bound (date expression)")
	listCmd.Flags().String("sort", "", "sort field: entry, modified, due, priority, project")
	listCmd.Flags().Bool("desc", false, "sort descending")
	listCmd.Flags().Int("limit", 0, "maximum number of tasks to show")
	listCmd.Flags().Int("offset", 0, "number of matching tasks to skip")
	listCmd.Flags().Bool("no-context", false, "ignore the active context")
	rootCmd.AddCommand(listCmd)
}
