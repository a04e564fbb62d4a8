package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"strings"
	"text/tabwriter"

	"github.com/urfave/cli/v3"

	"github.com/claybowl/taygency/internal/tasks"
)

// NewTasksCommand returns the tasks subcommand.
func NewTasksCommand() *cli.Command {
	return &cli.Command{
		Name:  "tasks",
		Usage: "Inspect workspace tasks",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List tasks, high priority first",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "status", Usage: "active, completed or someday (empty = all)"},
					&cli.StringFlag{Name: "category", Usage: "Only tasks in this category"},
				},
				Action: runTasksList,
			},
			{
				Name:      "show",
				Usage:     "Show a task document",
				ArgsUsage: "<task_id>",
				Action:    runTasksShow,
			},
			{
				Name:      "complete",
				Usage:     "Mark a task completed",
				ArgsUsage: "<task_id>",
				Action:    runTasksComplete,
			},
		},
		DefaultCommand: "list",
	}
}

func withTaskStore(ctx context.Context, cmd *cli.Command, fn func(context.Context, *tasks.Store) error) error {
	setupLogging(cmd, slog.LevelWarn)
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	ws, err := openWorkspace(cfg)
	if err != nil {
		return err
	}
	defer ws.Close()
	return fn(ctx, ws.tasks)
}

func runTasksList(ctx context.Context, cmd *cli.Command) error {
	filter := tasks.ListFilter{Category: cmd.String("category")}
	if v := cmd.String("status"); v != "" {
		if !slices.Contains(tasks.Statuses, tasks.Status(v)) {
			return fmt.Errorf("invalid status %q", v)
		}
		filter.Status = tasks.Status(v)
	}

	return withTaskStore(ctx, cmd, func(ctx context.Context, store *tasks.Store) error {
		list, err := store.List(ctx, filter)
		if err != nil {
			return fmt.Errorf("list tasks: %w", err)
		}

		if len(list) == 0 {
			fmt.Println("No tasks found.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tSTATUS\tPRIORITY\tCATEGORY\tDUE\tTITLE")
		for _, t := range list {
			due := "-"
			if t.Due != nil {
				due = t.Due.Format("2006-01-02")
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
				t.ID,
				t.Status,
				t.Priority,
				t.Category,
				due,
				t.Title,
			)
		}
		return w.Flush()
	})
}

func runTasksShow(ctx context.Context, cmd *cli.Command) error {
	id := cmd.Args().First()
	if id == "" {
		return fmt.Errorf("usage: taygency tasks show <task_id>")
	}
	return withTaskStore(ctx, cmd, func(ctx context.Context, store *tasks.Store) error {
		t, err := store.Get(ctx, id)
		if err != nil {
			return err
		}
		doc, err := tasks.Marshal(t)
		if err != nil {
			return err
		}
		fmt.Print(doc)
		if !strings.HasSuffix(doc, "\n") {
			fmt.Println()
		}
		return nil
	})
}

func runTasksComplete(ctx context.Context, cmd *cli.Command) error {
	id := cmd.Args().First()
	if id == "" {
		return fmt.Errorf("usage: taygency tasks complete <task_id>")
	}
	return withTaskStore(ctx, cmd, func(ctx context.Context, store *tasks.Store) error {
		t, err := store.Complete(ctx, id)
		if err != nil {
			return err
		}
		fmt.Printf("Completed %s: %s\n", t.ID, t.Title)
		return nil
	})
}
