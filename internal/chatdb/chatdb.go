package chatdb

import (
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rotisserie/eris"
)

// EnvChatDB overrides the default chat.db location.
const EnvChatDB = "IMSGEXPORT_CHAT_DB"

// DB is a read-only handle on a chat.db file.
type DB struct {
	db   *sql.DB
	path string
	cols messageColumns
}

// messageColumns records which optional message columns this schema has.
// Older macOS releases lack some of them.
type messageColumns struct {
	attributedBody      bool
	handleID            bool
	destinationCallerID bool
}

// DefaultPath returns the chat.db location: $IMSGEXPORT_CHAT_DB if set,
// otherwise ~/Library/Messages/chat.db.
func DefaultPath() string {
	if override := os.Getenv(EnvChatDB); override != "" {
		return os.ExpandEnv(override)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join("Library", "Messages", "chat.db")
	}
	return filepath.Join(home, "Library", "Messages", "chat.db")
}

// Open opens the chat.db at path read-only and checks that it looks like a
// Messages database.
func Open(path string) (*DB, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, eris.Wrapf(err, "chat.db not accessible at %s", path)
	}

	// file: URI so paths containing '?' or '#' are not parsed as parameters.
	// The live Messages DB uses WAL, so immutable=1 is not safe here.
	dsn := (&url.URL{
		Scheme:   "file",
		OmitHost: true,
		Path:     path,
		RawQuery: "mode=ro&_query_only=1&_busy_timeout=5000",
	}).String()
	sqlDB, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "open chat.db")
	}
	sqlDB.SetMaxOpenConns(1)

	if err := sqlDB.Ping(); err != nil {
		sqlDB.Close()
		return nil, eris.Wrap(err, "ping chat.db")
	}

	d := &DB{db: sqlDB, path: path}
	if err := d.verify(); err != nil {
		sqlDB.Close()
		return nil, err
	}
	if err := d.probeColumns(); err != nil {
		sqlDB.Close()
		return nil, err
	}
	return d, nil
}

// Close closes the underlying connection.
func (d *DB) Close() error {
	if d.db != nil {
		return d.db.Close()
	}
	return nil
}

// Path returns the file the DB was opened from.
func (d *DB) Path() string {
	return d.path
}

func (d *DB) verify() error {
	for _, table := range []string{"handle", "message"} {
		var count int
		err := d.db.QueryRow(`
			SELECT COUNT(*) FROM sqlite_master
			WHERE type = 'table' AND name = ?
		`, table).Scan(&count)
		if err != nil {
			return eris.Wrap(err, "check chat.db")
		}
		if count == 0 {
			return fmt.Errorf("not a Messages database: %q table not found in %s", table, d.path)
		}
	}
	return nil
}

func (d *DB) probeColumns() error {
	rows, err := d.db.Query(`PRAGMA table_info(message)`)
	if err != nil {
		return eris.Wrap(err, "inspect message table")
	}
	defer rows.Close()

	for rows.Next() {
		var (
			cid       int
			name      string
			colType   sql.NullString
			notNull   int
			dfltValue sql.NullString
			pk        int
		)
		if err := rows.Scan(&cid, &name, &colType, &notNull, &dfltValue, &pk); err != nil {
			return eris.Wrap(err, "scan message column")
		}
		switch name {
		case "attributedBody":
			d.cols.attributedBody = true
		case "handle_id":
			d.cols.handleID = true
		case "destination_caller_id":
			d.cols.destinationCallerID = true
		}
	}
	return rows.Err()
}
