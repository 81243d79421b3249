package chatdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rotisserie/eris"
)

// ErrNullHandleID is reported for handle rows whose id column is NULL.
var ErrNullHandleID = errors.New("handle id is NULL")

// EachHandle calls fn for every handle row in ROWID order. A row that cannot
// be decoded is passed with a non-nil err so the caller can decide whether
// to skip it. Returning an error from fn stops iteration and returns it.
func (d *DB) EachHandle(ctx context.Context, fn func(h Handle, err error) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	rows, err := d.db.QueryContext(ctx, `SELECT ROWID, id FROM handle ORDER BY ROWID`)
	if err != nil {
		return eris.Wrap(err, "query handles")
	}
	defer rows.Close()

	for rows.Next() {
		if err := ctx.Err(); err != nil {
			return err
		}

		var (
			h  Handle
			id sql.NullString
		)
		if err := rows.Scan(&h.RowID, &id); err != nil {
			if cbErr := fn(h, fmt.Errorf("scan handle: %w", err)); cbErr != nil {
				return cbErr
			}
			continue
		}
		if !id.Valid {
			if cbErr := fn(h, fmt.Errorf("handle %d: %w", h.RowID, ErrNullHandleID)); cbErr != nil {
				return cbErr
			}
			continue
		}
		h.ID = id.String
		if err := fn(h, nil); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return eris.Wrap(err, "iterate handles")
	}
	return nil
}

// messageQuery builds the message SELECT for this schema, substituting NULL
// for optional columns the table does not have.
func (d *DB) messageQuery() string {
	optional := func(present bool, col string) string {
		if present {
			return "m." + col
		}
		return "NULL"
	}
	return fmt.Sprintf(`
		SELECT
			m.ROWID,
			COALESCE(m.date, 0),
			m.text,
			%s,
			COALESCE(m.is_from_me, 0),
			%s,
			%s
		FROM message m
		ORDER BY m.ROWID ASC
	`,
		optional(d.cols.attributedBody, "attributedBody"),
		optional(d.cols.handleID, "handle_id"),
		optional(d.cols.destinationCallerID, "destination_caller_id"),
	)
}

// EachMessage calls fn for every message row in ROWID order. Unlike
// EachHandle, a row that fails to scan is a fatal error.
func (d *DB) EachMessage(ctx context.Context, fn func(m *Message) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	rows, err := d.db.QueryContext(ctx, d.messageQuery())
	if err != nil {
		return eris.Wrap(err, "query messages")
	}
	defer rows.Close()

	for rows.Next() {
		if err := ctx.Err(); err != nil {
			return err
		}

		var (
			m      Message
			fromMe int64
		)
		if err := rows.Scan(
			&m.RowID, &m.Date, &m.Text, &m.AttributedBody,
			&fromMe, &m.HandleID, &m.DestinationCallerID,
		); err != nil {
			return eris.Wrapf(err, "scan message after ROWID %d", m.RowID)
		}
		m.IsFromMe = fromMe != 0

		if err := fn(&m); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return eris.Wrap(err, "iterate messages")
	}
	return nil
}

// Stats returns row counts and the span of message dates.
func (d *DB) Stats(ctx context.Context) (*Stats, error) {
	var s Stats
	if err := d.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM handle`).Scan(&s.Handles); err != nil {
		return nil, eris.Wrap(err, "count handles")
	}

	var oldest, newest sql.NullInt64
	err := d.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COALESCE(MAX(ROWID), 0),
			MIN(date),
			MAX(date)
		FROM message
	`).Scan(&s.Messages, &s.MaxRowID, &oldest, &newest)
	if err != nil {
		return nil, eris.Wrap(err, "count messages")
	}

	if oldest.Valid && oldest.Int64 > 0 {
		s.OldestDate = Epoch.Add(time.Duration(oldest.Int64))
	}
	if newest.Valid && newest.Int64 > 0 {
		s.NewestDate = Epoch.Add(time.Duration(newest.Int64))
	}
	return &s, nil
}
