package core

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/JonMunkholm/mediadata/internal/blobstore"
	"github.com/JonMunkholm/mediadata/internal/portal"
	"github.com/JonMunkholm/mediadata/internal/provider"
	"github.com/JonMunkholm/mediadata/internal/tabular"
)

// fakeProvider answers Analyze from a queue of replies, one per call.
type fakeProvider struct {
	mu      sync.Mutex
	replies []fakeReply
	calls   int
}

type fakeReply struct {
	text string
	err  error
}

func (f *fakeProvider) Analyze(ctx context.Context, req provider.Request) (*provider.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r := f.replies[f.calls%len(f.replies)]
	f.calls++
	if r.err != nil {
		return nil, r.err
	}
	return &provider.Response{Text: r.text, Model: "gemini-test"}, nil
}

func (f *fakeProvider) ListModels(ctx context.Context) ([]provider.Model, error) {
	return []provider.Model{{Name: "models/gemini-test"}}, nil
}

// frameProvider replies by the first byte of the frame so results stay
// tied to frame order however goroutines are scheduled.
type frameProvider struct {
	byFrame map[byte]fakeReply
}

func (f *frameProvider) Analyze(ctx context.Context, req provider.Request) (*provider.Response, error) {
	r := f.byFrame[req.Data[0]]
	if r.err != nil {
		return nil, r.err
	}
	return &provider.Response{Text: r.text, Model: "gemini-test"}, nil
}

func (f *frameProvider) ListModels(ctx context.Context) ([]provider.Model, error) {
	return nil, nil
}

type fakeSampler struct {
	frames [][]byte
	err    error
}

func (f fakeSampler) Sample(ctx context.Context, video []byte, count int) ([][]byte, error) {
	return f.frames, f.err
}

type memBlobs struct {
	puts []string
}

func (m *memBlobs) Put(ctx context.Context, name, mimeType string, data []byte) (*blobstore.Object, error) {
	m.puts = append(m.puts, mimeType)
	return &blobstore.Object{PublicID: name, URL: "/blobs/" + name, Bytes: int64(len(data))}, nil
}

type recordingSink struct {
	headers []string
	rows    []tabular.Row
}

func (r *recordingSink) Sync(ctx context.Context, headers []string, rows []tabular.Row) (*portal.Ack, error) {
	r.headers, r.rows = headers, rows
	return portal.Acknowledge("sync-1", headers, rows), nil
}

func newTestService(t *testing.T, opts Options) *Service {
	t.Helper()
	svc, err := NewService(opts)
	if err != nil {
		t.Fatalf("NewService() error = %v", err)
	}
	return svc
}

const itemsReply = `{"media_type":"receipt","extracted_items":[{"name":"Total","value":"12.50","confidence":0.9},{"name":"Store","value":"Corner Shop","confidence":0.8}]}`

func TestService_AnalyzeImage(t *testing.T) {
	blobs := &memBlobs{}
	svc := newTestService(t, Options{
		Provider: &fakeProvider{replies: []fakeReply{{text: itemsReply}}},
		Blobs:    blobs,
	})

	res, err := svc.Analyze(context.Background(), MediaUpload{
		FileName: "receipt.png",
		MimeType: "image/png",
		Data:     []byte("not really a png"),
	})
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	if !res.OK || res.MediaType != "image" || res.Model != "gemini-test" {
		t.Errorf("result = %+v", res)
	}
	if res.Blob == nil || len(blobs.puts) != 1 {
		t.Errorf("blob puts = %v, want one", blobs.puts)
	}
	if strings.Contains(asJSON(res.Preview), "confidence") {
		t.Errorf("Preview still has confidence: %s", asJSON(res.Preview))
	}
	if !strings.Contains(asJSON(res.Result), "confidence") {
		t.Errorf("Result lost confidence: %s", asJSON(res.Result))
	}

	table, err := svc.BuildTable(res.SessionID)
	if err != nil {
		t.Fatalf("BuildTable() error = %v", err)
	}
	if got := strings.Join(table.Headers, ","); got != "Total,Store" {
		t.Errorf("Headers = %s, want Total,Store", got)
	}
}

func TestService_AnalyzeRejects(t *testing.T) {
	svc := newTestService(t, Options{
		Provider:     &fakeProvider{replies: []fakeReply{{text: "{}"}}},
		MaxFileBytes: 4,
	})

	tests := []struct {
		name string
		up   MediaUpload
		want error
	}{
		{"empty", MediaUpload{MimeType: "image/png"}, ErrEmptyFile},
		{"too large", MediaUpload{MimeType: "image/png", Data: []byte("12345")}, ErrFileTooLarge},
		{"pdf", MediaUpload{MimeType: "application/pdf", Data: []byte("x")}, ErrUnsupportedMedia},
		{"video without sampler", MediaUpload{MimeType: "video/mp4", Data: []byte("x")}, ErrUnsupportedMedia},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.Analyze(context.Background(), tt.up); err != tt.want {
				t.Errorf("Analyze() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestService_AnalyzeVideo_MergesInFrameOrder(t *testing.T) {
	svc := newTestService(t, Options{
		Provider: &frameProvider{byFrame: map[byte]fakeReply{
			'a': {text: `{"extracted_records":[{"sku":"A1"}]}`},
			'b': {err: errors.New("provider: HTTP 500: boom")},
			'c': {text: `{"extracted_records":[{"sku":"C1","qty":"2"}]}`},
		}},
		Sampler: fakeSampler{frames: [][]byte{[]byte("a"), []byte("b"), []byte("c")}},
	})

	res, err := svc.Analyze(context.Background(), MediaUpload{
		FileName: "shelf.mp4",
		MimeType: "video/mp4",
		Data:     []byte("video"),
	})
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	if res.Frames != 3 || res.FramesFailed != 1 {
		t.Errorf("Frames = %d, FramesFailed = %d, want 3, 1", res.Frames, res.FramesFailed)
	}

	table, err := svc.BuildTable(res.SessionID)
	if err != nil {
		t.Fatalf("BuildTable() error = %v", err)
	}
	if got := strings.Join(table.Headers, ","); got != "sku,qty" {
		t.Errorf("Headers = %s, want sku,qty", got)
	}
	if len(table.Rows) != 2 || table.Rows[0]["sku"] != "A1" || table.Rows[1]["sku"] != "C1" {
		t.Errorf("Rows = %v", table.Rows)
	}
	if table.Rows[0]["qty"] != "" {
		t.Errorf("missing cell = %q, want empty", table.Rows[0]["qty"])
	}
}

func TestService_AnalyzeVideo_AllFramesFail(t *testing.T) {
	svc := newTestService(t, Options{
		Provider: &fakeProvider{replies: []fakeReply{{err: errors.New("provider: HTTP 500: boom")}}},
		Sampler:  fakeSampler{frames: [][]byte{[]byte("a"), []byte("b")}},
	})

	_, err := svc.Analyze(context.Background(), MediaUpload{MimeType: "video/mp4", Data: []byte("v")})
	if !errors.Is(err, ErrNoFrames) {
		t.Errorf("Analyze() error = %v, want ErrNoFrames", err)
	}
}

func TestService_AnalyzeVideo_NoFrames(t *testing.T) {
	svc := newTestService(t, Options{
		Provider: &fakeProvider{replies: []fakeReply{{text: "{}"}}},
		Sampler:  fakeSampler{},
	})

	_, err := svc.Analyze(context.Background(), MediaUpload{MimeType: "video/mp4", Data: []byte("v")})
	if err != ErrNoFrames {
		t.Errorf("Analyze() error = %v, want ErrNoFrames", err)
	}
}

func TestService_EditExportSync(t *testing.T) {
	sink := &recordingSink{}
	svc := newTestService(t, Options{
		Provider: &fakeProvider{replies: []fakeReply{{text: itemsReply}}},
		Sink:     sink,
	})
	ctx := context.Background()

	res, err := svc.Analyze(ctx, MediaUpload{MimeType: "image/jpeg", Data: []byte("x")})
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}

	if _, err := svc.SetCell(res.SessionID, 0, "Total", "13.00"); err != ErrTableNotBuilt {
		t.Errorf("SetCell() before build = %v, want ErrTableNotBuilt", err)
	}
	if _, err := svc.BuildTable(res.SessionID); err != nil {
		t.Fatalf("BuildTable() error = %v", err)
	}

	rows, err := svc.SetCell(res.SessionID, 0, "Total", "13.00")
	if err != nil {
		t.Fatalf("SetCell() error = %v", err)
	}
	if rows[0]["Total"] != "13.00" {
		t.Errorf("Total = %q, want 13.00", rows[0]["Total"])
	}

	csv, err := svc.ExportCSV(res.SessionID)
	if err != nil {
		t.Fatalf("ExportCSV() error = %v", err)
	}
	if want := "\"Total\",\"Store\"\n\"13.00\",\"Corner Shop\""; csv != want {
		t.Errorf("ExportCSV() = %q, want %q", csv, want)
	}

	var buf bytes.Buffer
	if err := svc.ExportWorkbook(res.SessionID, &buf); err != nil {
		t.Fatalf("ExportWorkbook() error = %v", err)
	}
	if !bytes.HasPrefix(buf.Bytes(), []byte("PK")) {
		t.Error("ExportWorkbook() did not write a zip container")
	}

	ack, err := svc.Sync(ctx, res.SessionID)
	if err != nil {
		t.Fatalf("Sync() error = %v", err)
	}
	if ack.Synced.Count != 1 || sink.rows[0]["Total"] != "13.00" {
		t.Errorf("synced = %+v", ack.Synced)
	}

	view, err := svc.Session(res.SessionID)
	if err != nil {
		t.Fatalf("Session() error = %v", err)
	}
	if view.Table == nil || view.Table.Rows[0]["Total"] != "13.00" {
		t.Errorf("Session().Table = %+v", view.Table)
	}

	if _, err := svc.BuildTable(res.SessionID); err != nil {
		t.Fatalf("rebuild error = %v", err)
	}
	view, _ = svc.Session(res.SessionID)
	if view.Table.Rows[0]["Total"] != "12.50" {
		t.Errorf("rebuild kept edits: %v", view.Table.Rows[0])
	}
}

func TestService_BuildTable_NoStructuredData(t *testing.T) {
	svc := newTestService(t, Options{
		Provider: &fakeProvider{replies: []fakeReply{{text: `{"confidence":0.2}`}}},
	})
	res, err := svc.Analyze(context.Background(), MediaUpload{MimeType: "image/jpeg", Data: []byte("x")})
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	if _, err := svc.BuildTable(res.SessionID); err != ErrNoStructuredData {
		t.Errorf("BuildTable() error = %v, want ErrNoStructuredData", err)
	}
}

func TestNormalizeText(t *testing.T) {
	tests := []struct {
		name        string
		text        string
		wantHeaders string
	}{
		{"fenced json", "```json\n{\"items\":[{\"name\":\"a\",\"value\":1}]}\n```", "a"},
		{"key value lines", "Name: Widget\nPrice = 3", "Name,Price"},
		{"plain text", "nothing here", "raw"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			table, _ := NormalizeText(tt.text)
			if table == nil {
				t.Fatal("NormalizeText() table = nil")
			}
			if got := strings.Join(table.Headers, ","); got != tt.wantHeaders {
				t.Errorf("Headers = %s, want %s", got, tt.wantHeaders)
			}
		})
	}
}

func TestService_Status(t *testing.T) {
	gate := NewLimiter(2, 0)
	svc := newTestService(t, Options{
		Provider: &fakeProvider{replies: []fakeReply{{text: "{}"}}},
		Gate:     gate,
	})
	st := svc.Status()
	if st.Analyses.MaxConcurrent != DefaultMaxConcurrent || st.Provider == nil || st.Sessions != 0 {
		t.Errorf("Status() = %+v", st)
	}
}

func asJSON(v any) string {
	return tabular.Stringify(v)
}
