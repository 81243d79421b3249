package export

import (
	"encoding/json"

	"github.com/wesm/imsgexport/internal/fileutil"
)

// Marshal encodes records as a JSON array. An empty or nil slice encodes
// as [].
func Marshal(records []Record) ([]byte, error) {
	if records == nil {
		records = []Record{}
	}
	return json.Marshal(records)
}

// WriteJSON serializes records and writes them to path in a single write,
// replacing any existing file.
func WriteJSON(path string, records []Record) error {
	data, err := Marshal(records)
	if err != nil {
		return NewIOError("encode records", err)
	}
	if err := fileutil.WritePrivate(path, data); err != nil {
		return NewIOError("write "+path, err)
	}
	return nil
}
