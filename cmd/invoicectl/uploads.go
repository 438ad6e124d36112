package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/AnTengye/invoicedesk/apiclient"
	"github.com/AnTengye/invoicedesk/gate"
	"github.com/AnTengye/invoicedesk/model"
	"github.com/spf13/cobra"
)

func (a *cli) uploadCmd() *cobra.Command {
	var watch bool

	cmd := &cobra.Command{
		Use:   "upload <file>...",
		Short: "Upload invoice images or PDFs",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if err := a.require(ctx, gate.ScreenUpload); err != nil {
				return err
			}

			files := make([]apiclient.File, 0, len(args))
			for _, path := range args {
				f, err := os.Open(path)
				if err != nil {
					return err
				}
				defer f.Close()
				files = append(files, apiclient.File{Name: filepath.Base(path), Content: f})
			}

			batch, err := a.client.Upload(ctx, files)
			if err != nil {
				return a.explain(err)
			}

			tw := newTable(a.out, "FILE", "RESULT", "TASK")
			for _, t := range batch.Accepted {
				row(tw, t.FileName, "accepted", t.ID)
			}
			for _, r := range batch.Rejected {
				row(tw, r.FileName, "rejected: "+r.Reason, "-")
			}
			if err := tw.Flush(); err != nil {
				return err
			}

			if !watch || len(batch.Accepted) == 0 {
				return nil
			}
			return a.watch(ctx, batch.Accepted)
		},
	}
	cmd.Flags().BoolVar(&watch, "watch", false, "follow the uploads until they finish")
	return cmd
}

// watch prints progress of tasks until each one completes, fails or is removed
func (a *cli) watch(ctx context.Context, tasks []*model.UploadTask) error {
	waiting := make(map[string]bool, len(tasks))
	for _, t := range tasks {
		waiting[t.ID] = true
	}

	err := a.client.WatchUploads(ctx, func(t *model.UploadTask) bool {
		if !waiting[t.ID] {
			return true
		}
		if t.Removed {
			fmt.Fprintf(a.out, "%-30s removed\n", t.FileName)
			delete(waiting, t.ID)
			return len(waiting) > 0
		}
		line := fmt.Sprintf("%-30s %s %3d%% %s", t.FileName, progressBar(t), t.Progress, t.Status)
		if t.Status == model.StatusError {
			line += ": " + t.ErrorMsg
		}
		fmt.Fprintln(a.out, line)
		if t.Status.IsTerminal() {
			delete(waiting, t.ID)
		}
		return len(waiting) > 0
	})
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return a.explain(err)
}

func (a *cli) uploadsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "uploads",
		Short: "Inspect and remove upload tasks",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List upload tasks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.require(cmd.Context(), gate.ScreenUpload); err != nil {
				return err
			}
			tasks, err := a.client.ListUploads(cmd.Context())
			if err != nil {
				return a.explain(err)
			}

			tw := newTable(a.out, "ID", "FILE", "STATUS", "PROGRESS", "CREATED")
			for _, t := range tasks {
				row(tw, t.ID, t.FileName, t.Status, fmt.Sprintf("%d%%", t.Progress), t.CreatedAt.Format("2006-01-02 15:04:05"))
			}
			return tw.Flush()
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "remove <id>",
		Short: "Remove an upload task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.require(cmd.Context(), gate.ScreenUpload); err != nil {
				return err
			}
			if err := a.client.RemoveUpload(cmd.Context(), args[0]); err != nil {
				return a.explain(err)
			}
			fmt.Fprintln(a.out, "Removed", args[0])
			return nil
		},
	})
	return cmd
}
