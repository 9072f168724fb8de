package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/JonMunkholm/mediadata/internal/blobstore"
	"github.com/JonMunkholm/mediadata/internal/media"
	"github.com/JonMunkholm/mediadata/internal/portal"
	"github.com/JonMunkholm/mediadata/internal/provider"
	"github.com/JonMunkholm/mediadata/internal/tabular"
)

// AnalysisTimeout bounds a single Analyze call, frames included.
var AnalysisTimeout = 10 * time.Minute

// Analyzer is the model provider used for analysis.
type Analyzer interface {
	Analyze(ctx context.Context, req provider.Request) (*provider.Response, error)
	ListModels(ctx context.Context) ([]provider.Model, error)
}

// Options wires a Service. Provider is required; the rest have defaults.
type Options struct {
	Provider Analyzer
	Blobs    blobstore.Store // nil skips blob upload
	Sampler  media.Sampler   // nil rejects videos
	Sink     portal.Sink     // defaults to portal.LogSink

	// Analyses bounds whole Analyze calls. Gate is the provider's own
	// limiter and is only reported by Status.
	Analyses *Limiter
	Gate     *Limiter

	Sessions *SessionStore

	// BlobMaxAge is how long swept blob stores keep files. Zero keeps
	// them forever.
	BlobMaxAge time.Duration

	FrameCount   int
	Image        media.ImageOptions
	MaxFileBytes int64
}

// Service runs analyses and owns the sessions they create.
type Service struct {
	provider Analyzer
	blobs    blobstore.Store
	sampler  media.Sampler
	sink     portal.Sink

	analyses *Limiter
	gate     *Limiter
	sessions *SessionStore

	blobMaxAge   time.Duration
	frameCount   int
	image        media.ImageOptions
	maxFileBytes int64
}

// NewService creates a Service.
func NewService(opts Options) (*Service, error) {
	if opts.Provider == nil {
		return nil, errors.New("core: provider is required")
	}
	s := &Service{
		provider:     opts.Provider,
		blobs:        opts.Blobs,
		sampler:      opts.Sampler,
		sink:         opts.Sink,
		analyses:     opts.Analyses,
		gate:         opts.Gate,
		sessions:     opts.Sessions,
		blobMaxAge:   opts.BlobMaxAge,
		frameCount:   opts.FrameCount,
		image:        opts.Image,
		maxFileBytes: opts.MaxFileBytes,
	}
	if s.sink == nil {
		s.sink = portal.LogSink{}
	}
	if s.analyses == nil {
		s.analyses = NewLimiter(DefaultMaxConcurrent, DefaultMaxWaitTime)
	}
	if s.sessions == nil {
		s.sessions = NewSessionStore(DefaultSessionTTL, DefaultMaxSessions)
	}
	if s.frameCount <= 0 {
		s.frameCount = media.DefaultFrameCount
	}
	return s, nil
}

// MediaUpload is one file submitted for analysis.
type MediaUpload struct {
	FileName     string
	MimeType     string
	Data         []byte
	Instructions string
	AutoCrop     bool
}

// AnalysisResult is returned by Analyze. Result is the model's answer as
// parsed; Preview is the same value with confidence keys removed.
type AnalysisResult struct {
	SessionID    string            `json:"session_id"`
	OK           bool              `json:"ok"`
	MediaType    string            `json:"media_type"`
	Model        string            `json:"model"`
	Blob         *blobstore.Object `json:"blob,omitempty"`
	Result       any               `json:"result"`
	Preview      any               `json:"preview"`
	Frames       int               `json:"frames,omitempty"`
	FramesFailed int               `json:"frames_failed,omitempty"`
}

// analysis is the outcome of one pipeline run before a session exists.
type analysis struct {
	payload      any
	model        string
	blob         *blobstore.Object
	frames       int
	framesFailed int
}

// Analyze uploads, analyzes and stores one image or video, returning the
// new session.
func (s *Service) Analyze(ctx context.Context, up MediaUpload) (*AnalysisResult, error) {
	if len(up.Data) == 0 {
		return nil, ErrEmptyFile
	}
	if s.maxFileBytes > 0 && int64(len(up.Data)) > s.maxFileBytes {
		return nil, ErrFileTooLarge
	}

	var mediaType string
	switch {
	case media.IsImage(up.MimeType):
		mediaType = "image"
	case media.IsVideo(up.MimeType) && s.sampler != nil:
		mediaType = "video"
	default:
		return nil, ErrUnsupportedMedia
	}

	if err := s.analyses.Acquire(ctx); err != nil {
		return nil, err
	}
	defer s.analyses.Release()

	ctx, cancel := context.WithTimeout(ctx, AnalysisTimeout)
	defer cancel()

	start := time.Now()
	var (
		a   *analysis
		err error
	)
	if mediaType == "image" {
		a, err = s.analyzeImage(ctx, up)
	} else {
		a, err = s.analyzeVideo(ctx, up)
	}
	if err != nil {
		attrs := append([]any{"file", up.FileName, "media_type", mediaType, "error", err}, requestAttrs(ctx)...)
		slog.Error("analysis failed", attrs...)
		return nil, err
	}

	session := s.sessions.Create(up.FileName, mediaType, a.model, a.blob, a.payload)

	attrs := append([]any{
		"session_id", session.ID,
		"file", up.FileName,
		"media_type", mediaType,
		"model", a.model,
		"frames", a.frames,
		"frames_failed", a.framesFailed,
		"duration_ms", time.Since(start).Milliseconds(),
	}, requestAttrs(ctx)...)
	slog.Info("analysis completed", attrs...)

	return &AnalysisResult{
		SessionID:    session.ID,
		OK:           true,
		MediaType:    mediaType,
		Model:        a.model,
		Blob:         a.blob,
		Result:       a.payload,
		Preview:      tabular.Redact(a.payload),
		Frames:       a.frames,
		FramesFailed: a.framesFailed,
	}, nil
}

func (s *Service) analyzeImage(ctx context.Context, up MediaUpload) (*analysis, error) {
	opts := s.image
	opts.AutoCrop = opts.AutoCrop || up.AutoCrop
	data, mimeType := media.PrepareImage(up.Data, up.MimeType, opts)

	blob, err := s.putBlob(ctx, up.FileName, mimeType, data)
	if err != nil {
		return nil, err
	}

	resp, err := s.provider.Analyze(ctx, provider.Request{
		Data:         data,
		MimeType:     mimeType,
		Instructions: up.Instructions,
	})
	if err != nil {
		return nil, err
	}
	return &analysis{
		payload: parsePayload(resp.Text),
		model:   resp.Model,
		blob:    blob,
	}, nil
}

// analyzeVideo samples frames, analyzes them in parallel and merges the
// results in frame order. Failed frames contribute nothing; the call fails
// only when every frame does.
func (s *Service) analyzeVideo(ctx context.Context, up MediaUpload) (*analysis, error) {
	blob, err := s.putBlob(ctx, up.FileName, up.MimeType, up.Data)
	if err != nil {
		return nil, err
	}

	frames, err := s.sampler.Sample(ctx, up.Data, s.frameCount)
	if err != nil {
		return nil, fmt.Errorf("sample frames: %w", err)
	}
	if len(frames) == 0 {
		return nil, ErrNoFrames
	}

	payloads := make([]any, len(frames))
	models := make([]string, len(frames))
	errs := make([]error, len(frames))

	var g errgroup.Group
	for i, frame := range frames {
		i, frame := i, frame
		g.Go(func() error {
			data, mimeType := media.PrepareImage(frame, "image/jpeg", s.image)
			resp, err := s.provider.Analyze(ctx, provider.Request{
				Data:         data,
				MimeType:     mimeType,
				Instructions: up.Instructions,
			})
			if err != nil {
				errs[i] = err
				slog.Warn("frame analysis failed", "file", up.FileName, "frame", i, "error", err)
				return nil
			}
			payloads[i] = parsePayload(resp.Text)
			models[i] = resp.Model
			return nil
		})
	}
	g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	failed := 0
	var firstErr error
	for _, err := range errs {
		if err != nil {
			failed++
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	if failed == len(frames) {
		return nil, fmt.Errorf("%w: %w", ErrNoFrames, firstErr)
	}

	_, payload := tabular.MergeFrames(payloads)

	var model string
	for _, m := range models {
		if m != "" {
			model = m
			break
		}
	}

	return &analysis{
		payload:      payload,
		model:        model,
		blob:         blob,
		frames:       len(frames),
		framesFailed: failed,
	}, nil
}

func (s *Service) putBlob(ctx context.Context, name, mimeType string, data []byte) (*blobstore.Object, error) {
	if s.blobs == nil {
		return nil, nil
	}
	return s.blobs.Put(ctx, name, mimeType, data)
}

// parsePayload decodes model text leniently. Text that is not JSON is kept
// as a plain string so the normalizer can still try key-value lines.
func parsePayload(text string) any {
	if v, ok := tabular.DecodeLenient(text); ok {
		return v
	}
	return text
}

// SessionView is what a client sees of a session.
type SessionView struct {
	ID        string            `json:"id"`
	FileName  string            `json:"file_name"`
	MediaType string            `json:"media_type"`
	Model     string            `json:"model"`
	Blob      *blobstore.Object `json:"blob,omitempty"`
	Preview   any               `json:"preview"`
	Table     *tabular.Table    `json:"table,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

// Session returns a view of the session, with its table once built.
func (s *Service) Session(id string) (*SessionView, error) {
	sess, err := s.sessions.Get(id)
	if err != nil {
		return nil, err
	}
	view := &SessionView{
		ID:        sess.ID,
		FileName:  sess.FileName,
		MediaType: sess.MediaType,
		Model:     sess.Model,
		Blob:      sess.Blob,
		Preview:   tabular.Redact(sess.Payload()),
		CreatedAt: sess.CreatedAt,
	}
	if ed := sess.Editor(); ed != nil {
		view.Table = ed.Table()
	}
	return view, nil
}

// Preview returns the session payload with confidence keys removed.
func (s *Service) Preview(id string) (any, error) {
	sess, err := s.sessions.Get(id)
	if err != nil {
		return nil, err
	}
	return tabular.Redact(sess.Payload()), nil
}

// BuildTable normalizes the session payload into a fresh editor, dropping
// any earlier edits.
func (s *Service) BuildTable(id string) (*tabular.Table, error) {
	sess, err := s.sessions.Get(id)
	if err != nil {
		return nil, err
	}
	t := tabular.Normalize(sess.Payload())
	if t == nil {
		return nil, ErrNoStructuredData
	}
	ed := tabular.NewEditor(t)
	sess.setEditor(ed)
	return ed.Table(), nil
}

func (s *Service) editor(id string) (*tabular.Editor, error) {
	sess, err := s.sessions.Get(id)
	if err != nil {
		return nil, err
	}
	ed := sess.Editor()
	if ed == nil {
		return nil, ErrTableNotBuilt
	}
	return ed, nil
}

// SetCell edits one cell and returns the current rows. Edits outside the
// table are ignored.
func (s *Service) SetCell(id string, row int, header, value string) ([]tabular.Row, error) {
	ed, err := s.editor(id)
	if err != nil {
		return nil, err
	}
	return ed.SetCell(row, header, value), nil
}

// ExportCSV renders the edited table as CSV text.
func (s *Service) ExportCSV(id string) (string, error) {
	ed, err := s.editor(id)
	if err != nil {
		return "", err
	}
	return tabular.ToCSVText(ed.Headers(), ed.Rows()), nil
}

// ExportWorkbook writes the edited table as an XLSX workbook to w.
func (s *Service) ExportWorkbook(id string, w io.Writer) error {
	ed, err := s.editor(id)
	if err != nil {
		return err
	}
	if err := tabular.WriteWorkbook(w, ed.Headers(), ed.Rows()); err != nil {
		return fmt.Errorf("export workbook: %w", err)
	}
	return nil
}

// Sync pushes the edited table to the portal sink.
func (s *Service) Sync(ctx context.Context, id string) (*portal.Ack, error) {
	ed, err := s.editor(id)
	if err != nil {
		return nil, err
	}
	return s.SyncTable(ctx, ed.Headers(), ed.Rows())
}

// SyncTable pushes headers and rows to the portal sink as given.
func (s *Service) SyncTable(ctx context.Context, headers []string, rows []tabular.Row) (*portal.Ack, error) {
	ack, err := s.sink.Sync(ctx, headers, rows)
	if err != nil {
		return nil, err
	}
	slog.Info("table synced", append([]any{"rows", ack.Synced.Count}, requestAttrs(ctx)...)...)
	return ack, nil
}

// NormalizeText parses model output text and normalizes it. The table is
// nil when nothing tabular was found.
func NormalizeText(text string) (*tabular.Table, any) {
	payload := parsePayload(text)
	return tabular.Normalize(payload), tabular.Redact(payload)
}

// ListModels lists the provider's models.
func (s *Service) ListModels(ctx context.Context) ([]provider.Model, error) {
	return s.provider.ListModels(ctx)
}

// ServiceStatus is a snapshot for the status endpoint.
type ServiceStatus struct {
	Analyses LimiterStatus  `json:"analyses"`
	Provider *LimiterStatus `json:"provider,omitempty"`
	Sessions int            `json:"sessions"`
}

// Status reports limiter and session counts.
func (s *Service) Status() ServiceStatus {
	st := ServiceStatus{
		Analyses: s.analyses.Status(),
		Sessions: s.sessions.Len(),
	}
	if s.gate != nil {
		gs := s.gate.Status()
		st.Provider = &gs
	}
	return st
}

// WaitForAnalyses blocks until running analyses finish or ctx is done.
func (s *Service) WaitForAnalyses(ctx context.Context) error {
	return s.analyses.WaitForDrain(ctx)
}
