package main

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/Veraticus/catalog-mapper/internal/cli"
	"github.com/Veraticus/catalog-mapper/internal/common"
	"github.com/Veraticus/catalog-mapper/internal/model"
	"github.com/Veraticus/catalog-mapper/internal/storage"
)

func taskCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "task [task-id]",
		Short: "Check the status of an import task",
		Long: `Poll the marketplace for the per-item state of an import task and record
it in the submission history. Without an id the most recent submission is
checked.`,
		Args: cobra.MaximumNArgs(1),
		RunE: runTask,
	}
}

func runTask(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	ledger, err := openLedger(ctx, settings)
	if err != nil {
		return err
	}
	defer func() { _ = ledger.Close() }()

	var taskID int64
	if len(args) == 1 {
		taskID, err = strconv.ParseInt(args[0], 10, 64)
		if err != nil || taskID <= 0 {
			return common.NewUserError(fmt.Sprintf("%q is not a valid task id", args[0]), err)
		}
	} else {
		taskID, err = ledger.LastTaskID(ctx)
		if errors.Is(err, storage.ErrSubmissionNotFound) {
			return common.NewUserError("No submissions recorded yet. Pass a task id.", err)
		}
		if err != nil {
			return err
		}
	}

	client, err := newClient(settings, settings.Credentials())
	if err != nil {
		return err
	}

	info, err := client.TaskInfo(ctx, taskID)
	if err != nil {
		return err
	}
	if info.CheckedAt.IsZero() {
		info.CheckedAt = time.Now().UTC()
	}
	if err := ledger.RecordTaskInfo(ctx, info); err != nil {
		slog.Warn("Failed to record task info", "task_id", taskID, "error", err)
	}

	fmt.Println(renderTaskInfo(info)) //nolint:forbidigo // User-facing output
	return nil
}

func renderTaskInfo(info *model.TaskInfo) string {
	rows := make([][]string, 0, len(info.Items))
	for _, item := range info.Items {
		product := ""
		if item.ProductID != 0 {
			product = strconv.FormatInt(item.ProductID, 10)
		}
		rows = append(rows, []string{item.OfferID, item.Status, product, summarizeErrors(item.Errors)})
	}

	counts := info.StatusCounts()
	statuses := make([]string, 0, len(counts))
	for status := range counts {
		statuses = append(statuses, status)
	}
	sort.Strings(statuses)
	parts := make([]string, 0, len(statuses))
	for _, status := range statuses {
		parts = append(parts, fmt.Sprintf("%s: %d", status, counts[status]))
	}

	var b strings.Builder
	b.WriteString(cli.FormatTitle(fmt.Sprintf("Task %d (%d items)", info.TaskID, info.Total)))
	b.WriteString("\n")
	b.WriteString(renderTable(
		[]string{"Offer", "Status", "Product", "Errors"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignRight, alignLeft},
	))
	if len(parts) > 0 {
		b.WriteString("\n")
		b.WriteString(strings.Join(parts, ", "))
	}
	return b.String()
}

func summarizeErrors(errs []model.TaskItemError) string {
	if len(errs) == 0 {
		return ""
	}
	first := errs[0].Message
	if first == "" {
		first = errs[0].Description
	}
	if first == "" {
		first = errs[0].Code
	}
	if len(errs) > 1 {
		first += fmt.Sprintf(" (+%d more)", len(errs)-1)
	}
	return first
}
