package export

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/wesm/imsgexport/internal/chatdb"
	"github.com/wesm/imsgexport/internal/testutil"
	"github.com/wesm/imsgexport/internal/testutil/chatdbtest"
	"github.com/wesm/imsgexport/internal/testutil/ptr"
)

// fakeSource serves handles and messages from memory. A message whose Text
// is NULL and has no body fails GenerateText, like chat.db rows with no text.
type fakeSource struct {
	handles    []chatdb.Handle
	badHandles int
	messages   []chatdb.Message
	handleErr  error
	messageErr error
}

func (s *fakeSource) EachHandle(ctx context.Context, fn func(chatdb.Handle, error) error) error {
	if s.handleErr != nil {
		return s.handleErr
	}
	for i := 0; i < s.badHandles; i++ {
		if err := fn(chatdb.Handle{RowID: int64(1000 + i)}, chatdb.ErrNullHandleID); err != nil {
			return err
		}
	}
	for _, h := range s.handles {
		if err := fn(h, nil); err != nil {
			return err
		}
	}
	return nil
}

func (s *fakeSource) EachMessage(ctx context.Context, fn func(*chatdb.Message) error) error {
	for i := range s.messages {
		if err := fn(&s.messages[i]); err != nil {
			return err
		}
	}
	return s.messageErr
}

func (s *fakeSource) GenerateText(m *chatdb.Message) (string, error) {
	return chatdb.GenerateText(m)
}

func text(s string) sql.NullString { return sql.NullString{String: s, Valid: true} }

func handleRef(id int64) sql.NullInt64 { return sql.NullInt64{Int64: id, Valid: true} }

var (
	day1 = ptr.Date(2024, 3, 14)
	day2 = ptr.Date(2024, 3, 15)
	day3 = ptr.Date(2024, 3, 16)
)

func newFakeSource() *fakeSource {
	return &fakeSource{
		handles: []chatdb.Handle{{RowID: 1, ID: counterpartyID}},
		messages: []chatdb.Message{
			{RowID: 10, Date: EpochNanos(day1), Text: text("too early"), HandleID: handleRef(1)},
			{RowID: 11, Date: EpochNanos(day2), Text: text("incoming"), HandleID: handleRef(1),
				DestinationCallerID: text(ownerID)},
			{RowID: 12, Date: EpochNanos(day2.Add(time.Hour)), HandleID: handleRef(1)}, // no text
			{RowID: 13, Date: EpochNanos(day2.Add(2 * time.Hour)), Text: text("outgoing"), IsFromMe: true,
				HandleID: handleRef(1), DestinationCallerID: text(ownerID)},
			{RowID: 14, Date: EpochNanos(day3), Text: text("end of range"), HandleID: handleRef(77)},
			{RowID: 15, Date: EpochNanos(day3) + 1, Text: text("too late")},
		},
	}
}

func readRecords(t *testing.T, path string) []Record {
	t.Helper()
	var got []Record
	if err := json.Unmarshal(testutil.ReadFile(t, path), &got); err != nil {
		t.Fatalf("decode output: %v", err)
	}
	return got
}

func TestRun_FiltersAndProjects(t *testing.T) {
	out := filepath.Join(t.TempDir(), "out.json")
	src := newFakeSource()
	src.badHandles = 2

	summary, err := NewExporter(src, nil).Run(context.Background(), Request{
		OutputPath: out,
		Range:      Range{Start: day2, End: day3},
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	want := []Record{
		{ID: 11, Date: day2.Unix(), Text: ptr.String("incoming"), From: ptr.String(counterpartyID), To: ptr.String(ownerID)},
		{ID: 13, Date: day2.Add(2 * time.Hour).Unix(), Text: ptr.String("outgoing"), From: ptr.String(ownerID), To: ptr.String(counterpartyID), FromMe: true},
		{ID: 14, Date: day3.Unix(), Text: ptr.String("end of range")},
	}
	if diff := cmp.Diff(want, readRecords(t, out)); diff != "" {
		t.Errorf("records mismatch (-want +got):\n%s", diff)
	}

	if summary.HandlesLoaded != 1 || summary.HandlesSkipped != 2 {
		t.Errorf("handles loaded/skipped = %d/%d, want 1/2", summary.HandlesLoaded, summary.HandlesSkipped)
	}
	if summary.MessagesScanned != 6 || summary.MessagesDropped != 1 || summary.MessagesExported != 3 {
		t.Errorf("summary = %+v", summary)
	}
}

func TestRun_OnlyFromMe(t *testing.T) {
	out := filepath.Join(t.TempDir(), "out.json")
	_, err := NewExporter(newFakeSource(), nil).Run(context.Background(), Request{
		OutputPath: out,
		Range:      Range{Start: day1, End: day3},
		OnlyFromMe: true,
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	got := readRecords(t, out)
	if len(got) != 1 || got[0].ID != 13 || !got[0].FromMe {
		t.Errorf("records = %+v, want only message 13", got)
	}
}

func TestRun_EmptyResultWritesEmptyArray(t *testing.T) {
	out := filepath.Join(t.TempDir(), "out.json")
	_, err := NewExporter(newFakeSource(), nil).Run(context.Background(), Request{
		OutputPath: out,
		Range:      Range{Start: day3.AddDate(1, 0, 0), End: day3.AddDate(2, 0, 0)},
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	testutil.AssertFileContent(t, out, "[]")
}

func TestRun_NullFieldsSerialized(t *testing.T) {
	out := filepath.Join(t.TempDir(), "out.json")
	src := &fakeSource{
		messages: []chatdb.Message{{RowID: 3, Date: EpochNanos(day2), Text: text("x")}},
	}
	_, err := NewExporter(src, nil).Run(context.Background(), Request{
		OutputPath: out,
		Range:      Range{Start: day1, End: day3},
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	want := `[{"id":3,"date":` + jsonInt(day2.Unix()) + `,"text":"x","from":null,"to":null,"from_me":false}]`
	testutil.AssertFileContent(t, out, want)
}

func TestRun_SourceErrorsAreTableErrors(t *testing.T) {
	boom := errors.New("disk I/O error")
	tests := []struct {
		name string
		src  *fakeSource
	}{
		{"handles", &fakeSource{handleErr: boom}},
		{"messages", &fakeSource{messageErr: boom}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := filepath.Join(t.TempDir(), "out.json")
			_, err := NewExporter(tt.src, nil).Run(context.Background(), Request{OutputPath: out})

			var exportErr *Error
			if !errors.As(err, &exportErr) || exportErr.Kind != KindTable {
				t.Fatalf("err = %v, want KindTable", err)
			}
			if !errors.Is(err, boom) {
				t.Errorf("err = %v, should wrap the source error", err)
			}
			testutil.MustNotExist(t, out)
		})
	}
}

func TestRun_WriteFailureIsIOError(t *testing.T) {
	out := filepath.Join(t.TempDir(), "missing", "out.json")
	_, err := NewExporter(newFakeSource(), nil).Run(context.Background(), Request{
		OutputPath: out,
		Range:      Range{Start: day1, End: day3},
	})

	var exportErr *Error
	if !errors.As(err, &exportErr) || exportErr.Kind != KindIO {
		t.Fatalf("err = %v, want KindIO", err)
	}
}

func TestRun_ChatDBFixture(t *testing.T) {
	f := chatdbtest.New(t)
	h := f.AddHandle(counterpartyID)
	f.AddNullHandle()

	sent := f.AddMessage(chatdbtest.MessageRow{
		Date:                chatdbtest.Nanos(day2),
		Body:                chatdbtest.AttributedBody("from the body"),
		FromMe:              true,
		HandleID:            h,
		DestinationCallerID: ptr.String(ownerID),
	})
	f.AddMessage(chatdbtest.MessageRow{ // no text at all: dropped
		Date:     chatdbtest.Nanos(day2),
		HandleID: h,
	})
	received := f.AddMessage(chatdbtest.MessageRow{
		Date:                chatdbtest.Nanos(day2.Add(time.Minute)),
		Text:                ptr.String("plain text"),
		HandleID:            h,
		DestinationCallerID: ptr.String(ownerID),
	})

	db, err := chatdb.Open(f.Path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer db.Close()

	out := filepath.Join(t.TempDir(), "out.json")
	summary, err := NewExporter(db, nil).Run(context.Background(), Request{
		OutputPath: out,
		Range:      Range{Start: day1, End: day3},
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	want := []Record{
		{ID: sent, Date: day2.Unix(), Text: ptr.String("from the body"), From: ptr.String(ownerID), To: ptr.String(counterpartyID), FromMe: true},
		{ID: received, Date: day2.Add(time.Minute).Unix(), Text: ptr.String("plain text"), From: ptr.String(counterpartyID), To: ptr.String(ownerID)},
	}
	if diff := cmp.Diff(want, readRecords(t, out)); diff != "" {
		t.Errorf("records mismatch (-want +got):\n%s", diff)
	}
	if summary.HandlesSkipped != 1 || summary.MessagesDropped != 1 {
		t.Errorf("summary = %+v", summary)
	}
}

func TestMarshal_NilIsEmptyArray(t *testing.T) {
	data, err := Marshal(nil)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if string(data) != "[]" {
		t.Errorf("Marshal(nil) = %s, want []", data)
	}
}

func TestError_Messages(t *testing.T) {
	tests := []struct {
		err  *Error
		want string
	}{
		{NewArgumentError("invalid date format: %q. Expected YYYY-MM-DD", "x"), `Argument error: invalid date format: "x". Expected YYYY-MM-DD`},
		{NewTableError("read handles", errors.New("no such table: handle")), "Database error: read handles: no such table: handle"},
		{NewIOError("write out.json", errors.New("permission denied")), "IO error: write out.json: permission denied"},
	}
	for _, tt := range tests {
		if got := tt.err.Error(); got != tt.want {
			t.Errorf("Error() = %q, want %q", got, tt.want)
		}
		if tt.err.Trace() == "" {
			t.Errorf("Trace() of %q is empty", tt.want)
		}
	}
}

func jsonInt(v int64) string {
	b, _ := json.Marshal(v)
	return string(b)
}
