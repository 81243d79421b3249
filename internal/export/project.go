package export

import (
	"github.com/wesm/imsgexport/internal/chatdb"
)

// Record is one exported message. Field order matches the output objects.
type Record struct {
	ID     int64   `json:"id"`
	Date   int64   `json:"date"` // Unix seconds
	Text   *string `json:"text"`
	From   *string `json:"from"`
	To     *string `json:"to"`
	FromMe bool    `json:"from_me"`
}

// Filter selects which messages are exported.
type Filter struct {
	StartNanos int64 // inclusive, chat.db date units
	EndNanos   int64 // inclusive
	OnlyFromMe bool
}

// NewFilter builds a Filter from a resolved range.
func NewFilter(r Range, onlyFromMe bool) Filter {
	return Filter{
		StartNanos: r.StartNanos(),
		EndNanos:   r.EndNanos(),
		OnlyFromMe: onlyFromMe,
	}
}

// Includes reports whether m passes the date window and sender filter.
func (f Filter) Includes(m *chatdb.Message) bool {
	if m.Date < f.StartNanos || m.Date > f.EndNanos {
		return false
	}
	return !f.OnlyFromMe || m.IsFromMe
}

// Participants resolves the from/to identifiers of m. For messages the
// owner sent, from is the owner's destination caller id and to is the
// handle; for received messages the two swap.
func Participants(m *chatdb.Message, handles HandleMap) (from, to *string) {
	counterparty := handles.Lookup(m.HandleID.Int64, m.HandleID.Valid)

	var owner *string
	if m.DestinationCallerID.Valid {
		s := m.DestinationCallerID.String
		owner = &s
	}

	if m.IsFromMe {
		return owner, counterparty
	}
	return counterparty, owner
}

// Project builds the Record for m with its already decoded text.
func Project(m *chatdb.Message, text string, handles HandleMap) Record {
	from, to := Participants(m, handles)
	return Record{
		ID:     m.RowID,
		Date:   m.Time().Unix(),
		Text:   &text,
		From:   from,
		To:     to,
		FromMe: m.IsFromMe,
	}
}
