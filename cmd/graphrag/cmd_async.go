// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/AleutianGraphRAG/internal/datatypes"
	"github.com/AleutianAI/AleutianGraphRAG/internal/taskstore"
)

func newAsyncCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "async",
		Short: "Submit queries as background tasks and poll for their results",
		Long: `Long-running questions can be submitted as tasks. Submitting returns a
task id at once; poll it later, from this or any other shell, to fetch the
answer. Polling is manual: each poll is exactly one request.

Submitted tasks are remembered in the task store (tasks.dir in the config).

Examples:
  graphrag async submit "summarise everything about enigma"
  graphrag async poll 3f6c0d2e-...
  graphrag async list`,
	}
	cmd.AddCommand(newAsyncSubmitCmd(a), newAsyncPollCmd(a), newAsyncListCmd(a), newAsyncForgetCmd(a))
	return cmd
}

func newAsyncSubmitCmd(a *app) *cobra.Command {
	var opts queryOptions
	cmd := &cobra.Command{
		Use:   "submit QUESTION",
		Short: "Submit a question as a background task",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			q, err := opts.build(a.cfg.Query, cmd.Flags().Changed, strings.Join(args, " "))
			if err != nil {
				return err
			}
			if err := a.connect(true); err != nil {
				return err
			}
			task, err := a.orch.SubmitAsync(cmd.Context(), q)
			if err != nil {
				return err
			}
			if a.flags.jsonOut {
				return a.printJSON(task)
			}
			a.out.Success("task submitted")
			if err := a.printTask(task); err != nil {
				return err
			}
			a.out.Muted(fmt.Sprintf("poll with: graphrag async poll %s", task.TaskID))
			return nil
		},
	}
	opts.register(cmd)
	return cmd
}

func newAsyncPollCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "poll TASK_ID",
		Short: "Check a task once and print its result when complete",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.connect(true); err != nil {
				return err
			}
			out, err := a.orch.PollAsync(cmd.Context(), args[0])
			if err != nil {
				if _, gerr := a.tasks.Get(cmd.Context(), args[0]); gerr == nil {
					a.errOut.Warning(fmt.Sprintf("task %s is still %s", out.Task.TaskID, out.Task.Status))
				}
				return err
			}

			if a.flags.jsonOut {
				return a.printJSON(struct {
					Task   datatypes.AsyncTask    `json:"task"`
					Result *datatypes.QueryResult `json:"result,omitempty"`
				}{out.Task, out.Result})
			}
			switch out.Task.Status {
			case datatypes.TaskCompleted:
				a.out.Success("task completed")
			case datatypes.TaskNotFound:
				a.out.Warning("the backend does not know this task")
			default:
				a.out.Info("task still running, poll again later")
			}
			if err := a.printTask(out.Task); err != nil {
				return err
			}
			if out.Result != nil {
				a.out.Line("")
				return a.printResult(*out.Result)
			}
			return nil
		},
	}
}

func newAsyncListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List remembered tasks, most recent first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.connect(true); err != nil {
				return err
			}
			tasks, err := a.orch.Tasks(cmd.Context())
			if err != nil {
				return err
			}
			if a.flags.jsonOut {
				if tasks == nil {
					tasks = []datatypes.AsyncTask{}
				}
				return a.printJSON(tasks)
			}
			if len(tasks) == 0 {
				a.out.Muted("no tasks")
				return nil
			}
			for _, t := range tasks {
				a.out.Info(fmt.Sprintf("%s  %-10s %s", t.TaskID, t.Status, truncate(t.Question, 60)))
			}
			return nil
		},
	}
}

func newAsyncForgetCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "forget TASK_ID",
		Short: "Remove a task from the local task store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.connect(true); err != nil {
				return err
			}
			if err := a.tasks.Delete(cmd.Context(), args[0]); err != nil {
				if errors.Is(err, taskstore.ErrNotFound) {
					return fmt.Errorf("task %s is not in the local store", args[0])
				}
				return err
			}
			a.out.Success("task forgotten")
			return nil
		},
	}
}
