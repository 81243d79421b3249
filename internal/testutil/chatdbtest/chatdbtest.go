// Package chatdbtest builds throwaway chat.db files for tests. It does not
// import internal/chatdb so that package's own tests can use it.
package chatdbtest

import (
	"bytes"
	"database/sql"
	"encoding/binary"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// The subset of the Messages schema the exporter reads. handle.id is left
// nullable so tests can seed undecodable rows.
const modernSchema = `
	CREATE TABLE handle (
		ROWID INTEGER PRIMARY KEY AUTOINCREMENT UNIQUE,
		id TEXT,
		service TEXT NOT NULL DEFAULT 'iMessage'
	);
	CREATE TABLE message (
		ROWID INTEGER PRIMARY KEY AUTOINCREMENT,
		guid TEXT UNIQUE NOT NULL,
		text TEXT,
		handle_id INTEGER DEFAULT 0,
		date INTEGER,
		is_from_me INTEGER DEFAULT 0,
		attributedBody BLOB,
		destination_caller_id TEXT
	);
`

// legacySchema predates attributedBody and destination_caller_id.
const legacySchema = `
	CREATE TABLE handle (
		ROWID INTEGER PRIMARY KEY AUTOINCREMENT UNIQUE,
		id TEXT,
		service TEXT NOT NULL DEFAULT 'iMessage'
	);
	CREATE TABLE message (
		ROWID INTEGER PRIMARY KEY AUTOINCREMENT,
		guid TEXT UNIQUE NOT NULL,
		text TEXT,
		handle_id INTEGER DEFAULT 0,
		date INTEGER,
		is_from_me INTEGER DEFAULT 0
	);
`

var epoch = time.Date(2001, 1, 1, 0, 0, 0, 0, time.UTC)

// Fixture is a chat.db on disk plus a writable connection for seeding it.
type Fixture struct {
	DB   *sql.DB
	Path string
	T    testing.TB

	legacy  bool
	nextSeq int
}

// MessageRow describes a message to insert. Nil pointers become NULL.
type MessageRow struct {
	Date                int64 // ns since 2001-01-01 UTC
	Text                *string
	Body                []byte
	FromMe              bool
	HandleID            int64 // 0 means no handle
	DestinationCallerID *string
}

// New creates a chat.db with the current schema in a temp directory.
func New(t testing.TB) *Fixture {
	t.Helper()
	return create(t, modernSchema, false)
}

// NewLegacy creates a chat.db without the attributedBody and
// destination_caller_id columns.
func NewLegacy(t testing.TB) *Fixture {
	t.Helper()
	return create(t, legacySchema, true)
}

func create(t testing.TB, schema string, legacy bool) *Fixture {
	t.Helper()

	path := filepath.Join(t.TempDir(), "chat.db")
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		t.Fatalf("open fixture db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if _, err := db.Exec(schema); err != nil {
		t.Fatalf("create fixture schema: %v", err)
	}
	return &Fixture{DB: db, Path: path, T: t, legacy: legacy}
}

// AddHandle inserts a handle and returns its ROWID.
func (f *Fixture) AddHandle(id string) int64 {
	f.T.Helper()
	return f.insertHandle(id)
}

// AddNullHandle inserts a handle whose id is NULL.
func (f *Fixture) AddNullHandle() int64 {
	f.T.Helper()
	return f.insertHandle(nil)
}

func (f *Fixture) insertHandle(id any) int64 {
	f.T.Helper()
	res, err := f.DB.Exec(`INSERT INTO handle (id) VALUES (?)`, id)
	if err != nil {
		f.T.Fatalf("insert handle: %v", err)
	}
	rowID, err := res.LastInsertId()
	if err != nil {
		f.T.Fatalf("handle rowid: %v", err)
	}
	return rowID
}

// AddMessage inserts a message and returns its ROWID. Body and
// DestinationCallerID are ignored for legacy fixtures.
func (f *Fixture) AddMessage(m MessageRow) int64 {
	f.T.Helper()

	f.nextSeq++
	guid := fmt.Sprintf("fixture-%04d", f.nextSeq)
	fromMe := 0
	if m.FromMe {
		fromMe = 1
	}

	var (
		res sql.Result
		err error
	)
	if f.legacy {
		res, err = f.DB.Exec(`
			INSERT INTO message (guid, text, handle_id, date, is_from_me)
			VALUES (?, ?, ?, ?, ?)
		`, guid, m.Text, m.HandleID, m.Date, fromMe)
	} else {
		var body any
		if m.Body != nil {
			body = m.Body
		}
		res, err = f.DB.Exec(`
			INSERT INTO message (guid, text, handle_id, date, is_from_me, attributedBody, destination_caller_id)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, guid, m.Text, m.HandleID, m.Date, fromMe, body, m.DestinationCallerID)
	}
	if err != nil {
		f.T.Fatalf("insert message: %v", err)
	}
	rowID, err := res.LastInsertId()
	if err != nil {
		f.T.Fatalf("message rowid: %v", err)
	}
	return rowID
}

// Nanos converts t to a chat.db date value.
func Nanos(t time.Time) int64 {
	return int64(t.Sub(epoch))
}

// AttributedBody encodes text the way Messages archives an
// NSAttributedString: a typedstream header, the NSString class, a
// length-prefixed payload, then the attribute dictionary.
func AttributedBody(text string) []byte {
	var b bytes.Buffer
	b.WriteString("\x04\x0bstreamtyped\x81\xe8\x03\x84\x01@\x84\x84\x84\x12NSAttributedString\x00")
	b.WriteString("\x84\x84\x08NSObject\x00\x85\x92\x84\x84\x84\x08NSString\x01\x94\x84\x01+")

	n := len(text)
	switch {
	case n < 0x80:
		b.WriteByte(byte(n))
	case n <= 0xffff:
		b.WriteByte(0x81)
		binary.Write(&b, binary.LittleEndian, uint16(n))
	default:
		b.WriteByte(0x82)
		binary.Write(&b, binary.LittleEndian, uint32(n))
	}
	b.WriteString(text)

	b.WriteString("\x86\x84\x02iI\x01\x05\x92\x84\x84\x84\x0cNSDictionary\x00\x94\x84\x01i\x01\x92\x84\x96\x96")
	b.WriteString("\x1d__kIMMessagePartAttributeName\x86\x92\x84\x84\x84\x08NSNumber\x00\x84\x84\x07NSValue\x00")
	b.WriteString("\x94\x84\x01*\x84\x99\x99\x00\x86\x86\x86")
	return b.Bytes()
}
