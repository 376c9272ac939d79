package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/phrazzld/commandq/internal/queue"
)

// QueueTable is the table holding persisted queue contents.
const QueueTable = "queue_commands"

// QueueColumns lists the queue table columns in the order used by
// ScanQueueRecord and QueueRecordArgs.
const QueueColumns = `created_at, queue, kind, timeline_id, timeline_type, account_id, actor_id,
	origin_id, item_id, priority, in_foreground, manually_launched,
	execution_count, retries_left, last_executed_at, executed,
	num_auth_exceptions, num_io_exceptions, num_parse_exceptions, message,
	downloaded_count, new_count,
	notify_mentions, notify_private, notify_likes, notify_announces, notify_follows, notify_home`

// QueueColumnCount is the number of entries in QueueColumns.
const QueueColumnCount = 28

// QueueRecordArgs returns r's values in QueueColumns order.
func QueueRecordArgs(r queue.Record) []any {
	return []any{
		r.CreatedAt, r.Queue, r.Kind, r.TimelineID, r.TimelineType, r.AccountID, r.ActorID,
		r.OriginID, r.ItemID, r.Priority, r.InForeground, r.ManuallyLaunched,
		r.ExecutionCount, r.RetriesLeft, r.LastExecutedAt, r.Executed,
		r.NumAuthExceptions, r.NumIOExceptions, r.NumParseExceptions, r.Message,
		r.DownloadedCount, r.NewCount,
		r.NotifyMentions, r.NotifyPrivate, r.NotifyLikes, r.NotifyAnnounces, r.NotifyFollows, r.NotifyHome,
	}
}

// ScanQueueRecord reads one row selected with QueueColumns.
func ScanQueueRecord(rows *sql.Rows) (queue.Record, error) {
	var r queue.Record
	err := rows.Scan(
		&r.CreatedAt, &r.Queue, &r.Kind, &r.TimelineID, &r.TimelineType, &r.AccountID, &r.ActorID,
		&r.OriginID, &r.ItemID, &r.Priority, &r.InForeground, &r.ManuallyLaunched,
		&r.ExecutionCount, &r.RetriesLeft, &r.LastExecutedAt, &r.Executed,
		&r.NumAuthExceptions, &r.NumIOExceptions, &r.NumParseExceptions, &r.Message,
		&r.DownloadedCount, &r.NewCount,
		&r.NotifyMentions, &r.NotifyPrivate, &r.NotifyLikes, &r.NotifyAnnounces, &r.NotifyFollows, &r.NotifyHome,
	)
	if err != nil {
		return queue.Record{}, fmt.Errorf("failed to scan queue record: %w", err)
	}
	return r, nil
}

// LoadQueueRecords selects every queue row ordered by identity.
func LoadQueueRecords(ctx context.Context, db DBTX) ([]queue.Record, error) {
	rows, err := db.QueryContext(ctx, "SELECT "+QueueColumns+" FROM "+QueueTable+" ORDER BY created_at")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []queue.Record
	for rows.Next() {
		r, err := ScanQueueRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

// ReplaceQueueRecords deletes every queue row and inserts records using
// insertQuery, which must take QueueColumnCount parameters.
func ReplaceQueueRecords(ctx context.Context, tx *sql.Tx, insertQuery string, records []queue.Record) error {
	if _, err := tx.ExecContext(ctx, "DELETE FROM "+QueueTable); err != nil {
		return err
	}
	if len(records) == 0 {
		return nil
	}
	stmt, err := tx.PrepareContext(ctx, insertQuery)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, r := range records {
		if _, err := stmt.ExecContext(ctx, QueueRecordArgs(r)...); err != nil {
			return fmt.Errorf("insert command %d: %w", r.CreatedAt, err)
		}
	}
	return nil
}
