package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/Veraticus/catalog-mapper/internal/common"
	"github.com/Veraticus/catalog-mapper/internal/storage"
)

func historyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded submissions",
		RunE:  runHistory,
	}
	cmd.Flags().Int("limit", 20, "number of submissions to show (0 for all)")

	show := &cobra.Command{
		Use:   "show <task-id>",
		Short: "Show the listings sent under a task",
		Args:  cobra.ExactArgs(1),
		RunE:  runHistoryShow,
	}
	cmd.AddCommand(show)
	return cmd
}

func runHistory(cmd *cobra.Command, _ []string) error {
	limit, _ := cmd.Flags().GetInt("limit")

	ledger, err := openLedger(cmd.Context(), settings)
	if err != nil {
		return err
	}
	defer func() { _ = ledger.Close() }()

	subs, err := ledger.ListSubmissions(cmd.Context(), limit)
	if err != nil {
		return err
	}
	if len(subs) == 0 {
		fmt.Println("No submissions recorded yet.") //nolint:forbidigo // User-facing output
		return nil
	}

	fmt.Println(renderSubmissions(subs)) //nolint:forbidigo // User-facing output
	return nil
}

func renderSubmissions(subs []storage.SubmissionSummary) string {
	rows := make([][]string, 0, len(subs))
	for _, s := range subs {
		rows = append(rows, []string{
			strconv.FormatInt(s.TaskID, 10),
			s.SubmittedAt.Local().Format("2006-01-02 15:04"),
			strconv.Itoa(s.ItemCount),
			strconv.Itoa(s.Checked),
			strconv.Itoa(s.Imported),
			strconv.Itoa(s.Failed),
			s.SessionID,
		})
	}
	return renderTable(
		[]string{"Task", "Submitted", "Items", "Checked", "Imported", "Failed", "Session"},
		rows,
		[]columnAlignment{alignRight, alignLeft, alignRight, alignRight, alignRight, alignRight, alignLeft},
	)
}

func runHistoryShow(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	taskID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return common.NewUserError(fmt.Sprintf("%q is not a valid task id", args[0]), err)
	}

	ledger, err := openLedger(ctx, settings)
	if err != nil {
		return err
	}
	defer func() { _ = ledger.Close() }()

	if _, err := ledger.GetSubmission(ctx, taskID); err != nil {
		return err
	}
	items, err := ledger.SubmissionItems(ctx, taskID)
	if err != nil {
		return err
	}
	records, err := ledger.TaskItems(ctx, taskID)
	if err != nil {
		return err
	}

	fmt.Println(renderSubmissionItems(items, records)) //nolint:forbidigo // User-facing output
	return nil
}

func renderSubmissionItems(items []storage.SubmittedItem, records []storage.TaskItemRecord) string {
	status := make(map[string]string, len(records))
	for _, r := range records {
		status[r.OfferID] = r.Status
	}

	rows := make([][]string, 0, len(items))
	for _, item := range items {
		st := status[item.OfferID]
		if st == "" {
			st = "unchecked"
		}
		rows = append(rows, []string{
			item.OfferID,
			item.Name,
			strconv.FormatInt(item.TypeID, 10),
			strconv.FormatInt(item.DescriptionCategoryID, 10),
			st,
		})
	}
	return renderTable(
		[]string{"Offer", "Name", "Type", "Category", "Status"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignLeft},
	)
}
