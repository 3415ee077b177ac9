package cli

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/shaiso/Malsmug/internal/domain"
	"github.com/shaiso/Malsmug/internal/repo"
)

// DispatchLister читает журнал запусков.
type DispatchLister interface {
	ListByAnalysisID(ctx context.Context, analysisID string) ([]domain.DispatchRecord, error)
}

// OpenJournalFunc открывает журнал; close освобождает соединение.
type OpenJournalFunc func(ctx context.Context) (DispatchLister, func(), error)

// NewDispatchesCmd создаёт команду просмотра журнала по analysis_id.
func NewDispatchesCmd(open OpenJournalFunc, outputFn func(jsonMode bool) *Output) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "dispatches ANALYSIS_ID",
		Short: "Show sandbox engine launches recorded for an analysis",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := outputFn(jsonOutput)
			analysisID := args[0]

			lister, closeFn, err := open(cmd.Context())
			if err != nil {
				return fmt.Errorf("open dispatch journal: %w", err)
			}
			defer closeFn()

			records, err := lister.ListByAnalysisID(cmd.Context(), analysisID)
			if repo.IsNotFound(err) {
				out.Message(fmt.Sprintf("No dispatches recorded for analysis %s", analysisID))
				return nil
			}
			if err != nil {
				return err
			}

			headers := []string{"REPLICA", "BAIT_TARGET", "SAMPLE_PATH", "PID", "STATUS", "CREATED"}
			rows := make([][]string, len(records))
			for i, r := range records {
				rows[i] = []string{
					strconv.Itoa(r.Index),
					r.BaitTarget,
					r.SamplePath,
					strconv.Itoa(r.PID),
					dispatchStatus(r),
					r.CreatedAt.Format(time.RFC3339),
				}
			}

			return out.Print(headers, rows, records)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")

	return cmd
}

func dispatchStatus(r domain.DispatchRecord) string {
	if r.Succeeded() {
		return "spawned"
	}
	return "failed: " + r.Error
}
