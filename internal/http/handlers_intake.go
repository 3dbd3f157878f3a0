package http

import (
	"context"
	"errors"
	"io"
	"mime"
	"net/http"
	"strings"
	"sync/atomic"

	"wenxuji/internal/core"
	"wenxuji/internal/extract"
	"wenxuji/internal/intake"
	applog "wenxuji/internal/log"
)

// Notices shown for a failed extraction; the user may retry.
const (
	NoticeTextFailed  = "无法识别，请重试"
	NoticeImageFailed = "图片分析失败"
	noticeAIDisabled  = "AI 识别未配置"
)

// multipartOverhead is allowed on top of the image limit for form framing.
const multipartOverhead = 64 << 10

// handleExtractText turns free text into a draft. Nothing is written to the
// ledger; the client confirms through POST /api/transactions.
func (s *Server) handleExtractText(w http.ResponseWriter, r *http.Request) {
	if s.extractor == nil {
		ServiceUnavailableError(noticeAIDisabled).Write(w)
		return
	}
	parser := NewRequestBodyParser(r)
	if err := parser.Parse(); err != nil {
		if errors.Is(err, errBodyTooLarge) {
			RequestTooLargeError("request body too large").Write(w)
			return
		}
		BadRequestError("invalid request body").Write(w)
		return
	}
	text := parser.Get("text")
	if text == "" {
		ErrorResponse(http.StatusUnprocessableEntity, "text is required").Write(w)
		return
	}

	today := core.DateOf(s.now())
	s.respondDraft(w, r, "text", NoticeTextFailed, func(ctx context.Context) (intake.Candidate, error) {
		return s.extractor.ExtractFromText(ctx, text, today)
	})
}

// handleExtractImage reads the multipart field "image" and turns the photo
// into a draft.
func (s *Server) handleExtractImage(w http.ResponseWriter, r *http.Request) {
	if s.extractor == nil {
		ServiceUnavailableError(noticeAIDisabled).Write(w)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload+multipartOverhead)
	image, mimeType, err := s.readImage(r)
	if err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge), errors.Is(err, errImageTooLarge):
			RequestTooLargeError("image too large").Write(w)
		case errors.Is(err, errNotImage):
			ErrorResponse(http.StatusUnsupportedMediaType, "file is not an image").Write(w)
		default:
			BadRequestError("image is required").Write(w)
		}
		return
	}

	today := core.DateOf(s.now())
	s.respondDraft(w, r, "image", NoticeImageFailed, func(ctx context.Context) (intake.Candidate, error) {
		return s.extractor.ExtractFromImage(ctx, image, mimeType, today)
	})
}

var (
	errImageTooLarge = errors.New("image too large")
	errNotImage      = errors.New("not an image")
)

func (s *Server) readImage(r *http.Request) ([]byte, string, error) {
	if err := r.ParseMultipartForm(s.maxUpload); err != nil {
		return nil, "", err
	}
	file, header, err := r.FormFile("image")
	if err != nil {
		return nil, "", err
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, s.maxUpload+1))
	if err != nil {
		return nil, "", err
	}
	if int64(len(data)) > s.maxUpload {
		return nil, "", errImageTooLarge
	}
	if len(data) == 0 {
		return nil, "", errors.New("empty image")
	}

	mimeType := ""
	if ct := header.Header.Get("Content-Type"); ct != "" {
		if mt, _, err := mime.ParseMediaType(ct); err == nil {
			mimeType = mt
		}
	}
	if !strings.HasPrefix(mimeType, "image/") {
		mimeType = http.DetectContentType(data)
	}
	if !strings.HasPrefix(mimeType, "image/") {
		return nil, "", errNotImage
	}
	return data, mimeType, nil
}

// respondDraft runs one extraction with the request context, so a client
// that leaves the intake flow cancels the call and never sees a late result.
func (s *Server) respondDraft(w http.ResponseWriter, r *http.Request, source, notice string, run func(context.Context) (intake.Candidate, error)) {
	ctx := r.Context()
	atomic.AddInt64(&s.appMetrics.extractions, 1)

	candidate, err := run(ctx)
	if ctx.Err() != nil {
		applog.FromContext(ctx).DebugContext(ctx, "Client left before extraction finished",
			applog.FieldOperation, applog.OpExtract, "source", source)
		return
	}
	if err != nil {
		atomic.AddInt64(&s.appMetrics.extractionFailures, 1)
		if !errors.Is(err, extract.ErrExtractionFailed) {
			requestLogger(r).LogError(ctx, "Unexpected extraction error", err,
				applog.ComponentAI, applog.OpExtract, applog.NewFields())
		}
		RetryableError(http.StatusBadGateway, notice).Write(w)
		return
	}

	adapter := s.ledger.Intake()
	draft, err := adapter.FromCandidate(candidate)
	if err != nil {
		atomic.AddInt64(&s.appMetrics.extractionFailures, 1)
		applog.FromContext(ctx).WarnContext(ctx, "Extracted candidate rejected",
			applog.FieldOperation, applog.OpValidate,
			"source", source,
			applog.FieldError, err)
		RetryableError(http.StatusUnprocessableEntity, notice).Write(w)
		return
	}

	hints := intake.FindDuplicates(draft, s.ledger.Snapshot(), intake.DefaultSimilarity)
	NewJSONResponse().Payload(extractedView{
		Draft:      s.present.draft(draft),
		Duplicates: s.present.duplicates(hints),
	}).Write(w)
}
