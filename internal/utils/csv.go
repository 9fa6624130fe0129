package utils

import (
	"encoding/csv"
	"os"
	"strconv"
	"time"

	"stopkeeper/internal/domain"
)

// WriteRunsToCSV dumps run journal records to a CSV file, newest first as
// the journal returns them.
func WriteRunsToCSV(runs []*domain.RunRecord, filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	// Write header
	writer.Write([]string{"id", "started_at", "finished_at", "positions_seen", "orders_created"})

	for _, r := range runs {
		finished := ""
		if !r.FinishedAt.IsZero() {
			finished = r.FinishedAt.UTC().Format(time.RFC3339)
		}
		writer.Write([]string{
			strconv.FormatInt(r.ID, 10),
			r.StartedAt.UTC().Format(time.RFC3339),
			finished,
			strconv.Itoa(r.PositionsSeen),
			strconv.Itoa(r.OrdersCreated),
		})
	}
	return writer.Error()
}

// WriteEventsToCSV dumps order events to a CSV file, newest first as the
// journal returns them.
func WriteEventsToCSV(events []*domain.OrderEvent, filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	// Write header
	writer.Write([]string{"id", "run_id", "timestamp", "symbol", "action", "kind", "qty", "stop_price", "trail_percent", "order_id", "ok", "error"})

	for _, e := range events {
		stopPrice := ""
		if e.StopPrice != nil {
			stopPrice = e.StopPrice.String()
		}
		trailPercent := ""
		if e.TrailPercent != nil {
			trailPercent = e.TrailPercent.String()
		}
		writer.Write([]string{
			strconv.FormatInt(e.ID, 10),
			strconv.FormatInt(e.RunID, 10),
			e.Timestamp.UTC().Format(time.RFC3339),
			e.Symbol,
			string(e.Action),
			string(e.Kind),
			e.Qty.String(),
			stopPrice,
			trailPercent,
			e.OrderID,
			strconv.FormatBool(e.OK),
			e.Error,
		})
	}
	return writer.Error()
}
