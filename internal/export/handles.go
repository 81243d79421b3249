package export

import (
	"context"
	"log/slog"

	"github.com/wesm/imsgexport/internal/chatdb"
)

// HandleMap maps handle.ROWID to the handle's external identifier.
type HandleMap map[int64]string

// Lookup resolves a message's handle_id. NULL or unknown ids return nil.
func (hm HandleMap) Lookup(id int64, valid bool) *string {
	if !valid {
		return nil
	}
	if s, ok := hm[id]; ok {
		return &s
	}
	return nil
}

// BuildHandleMap loads every handle row. Rows that fail to decode are
// skipped; the returned count says how many.
func BuildHandleMap(ctx context.Context, src Source, logger *slog.Logger) (HandleMap, int, error) {
	hm := make(HandleMap)
	skipped := 0
	err := src.EachHandle(ctx, func(h chatdb.Handle, err error) error {
		if err != nil {
			skipped++
			logger.Debug("skipping handle row", "rowid", h.RowID, "err", err)
			return nil
		}
		hm[h.RowID] = h.ID
		return nil
	})
	if err != nil {
		return nil, skipped, err
	}
	return hm, skipped, nil
}
