// Package chatdb provides read-only access to the macOS Messages database
// (chat.db). It exposes the handle and message tables row by row and decodes
// message text from either the text column or the attributedBody blob.
package chatdb

import (
	"database/sql"
	"time"
)

// Epoch is the instant chat.db measures message dates from.
var Epoch = time.Date(2001, 1, 1, 0, 0, 0, 0, time.UTC)

// Handle is a row of the handle table: one external contact identifier.
type Handle struct {
	RowID int64  // handle.ROWID
	ID    string // handle.id (phone number or account address)
}

// Message is a row of the message table.
type Message struct {
	RowID               int64          // message.ROWID
	Date                int64          // message.date (ns since Epoch)
	Text                sql.NullString // message.text
	AttributedBody      []byte         // message.attributedBody (typedstream)
	IsFromMe            bool           // message.is_from_me
	HandleID            sql.NullInt64  // message.handle_id → handle.ROWID
	DestinationCallerID sql.NullString // message.destination_caller_id
}

// Time returns the absolute time of the message.
func (m *Message) Time() time.Time {
	return Epoch.Add(time.Duration(m.Date))
}

// Stats summarizes the contents of a chat.db.
type Stats struct {
	Handles    int
	Messages   int
	MaxRowID   int64
	OldestDate time.Time
	NewestDate time.Time
}
