package ingestion

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ErrDocumentTooLarge is returned when a payload exceeds the configured limit.
var ErrDocumentTooLarge = errors.New("document exceeds size limit")

type ExtractorOptions struct {
	FetchTimeout time.Duration
	MaxBytes     int64
	Concurrency  int
	HTTPClient   *http.Client
}

// Extractor resolves document references into plain text.
type Extractor struct {
	client      *http.Client
	maxBytes    int64
	concurrency int
	logger      *zap.Logger
}

func NewExtractor(opts ExtractorOptions, logger *zap.Logger) *Extractor {
	if logger == nil {
		logger = zap.NewNop()
	}

	client := opts.HTTPClient
	if client == nil {
		timeout := opts.FetchTimeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}

	maxBytes := opts.MaxBytes
	if maxBytes <= 0 {
		maxBytes = 25 << 20
	}

	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = 4
	}

	return &Extractor{
		client:      client,
		maxBytes:    maxBytes,
		concurrency: concurrency,
		logger:      logger,
	}
}

// ExtractAll extracts every reference concurrently. The result slice is in
// input order; failures are recorded per document and never abort the batch.
func (e *Extractor) ExtractAll(ctx context.Context, refs []Reference) []Document {
	docs := make([]Document, len(refs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)
	for i, ref := range refs {
		g.Go(func() error {
			docs[i] = e.Extract(gctx, i, ref)
			return nil
		})
	}
	_ = g.Wait()

	return docs
}

// Extract resolves one reference. Format is chosen from the filename or URL
// suffix first, then from the content type, then the bytes are read as text.
func (e *Extractor) Extract(ctx context.Context, index int, ref Reference) Document {
	doc := Document{Index: index, Source: ref.Label(index)}

	data, contentType, err := e.load(ctx, ref)
	if err != nil {
		return e.fail(doc, err)
	}

	format := resolveFormat(ref, contentType, data)
	doc.Format = format

	text, err := parserFor(format).Parse(ctx, DocumentPayload{Label: doc.Source, Data: data})
	if err != nil {
		return e.fail(doc, fmt.Errorf("parse %s: %w", format, err))
	}
	doc.Text = text

	e.logger.Debug("document extracted",
		zap.String("source", doc.Source),
		zap.String("format", string(format)),
		zap.Int("bytes", len(data)),
		zap.Int("chars", len([]rune(text))),
	)
	return doc
}

func (e *Extractor) fail(doc Document, err error) Document {
	doc.Text = ""
	doc.Err = err
	e.logger.Warn("document extraction failed",
		zap.Int("index", doc.Index),
		zap.String("source", doc.Source),
		zap.Error(err),
	)
	return doc
}

func (e *Extractor) load(ctx context.Context, ref Reference) ([]byte, string, error) {
	if ref.Inline() {
		data, err := decodeBase64(ref.ContentBase64)
		if err != nil {
			return nil, "", fmt.Errorf("decode contentBase64: %w", err)
		}
		if int64(len(data)) > e.maxBytes {
			return nil, "", ErrDocumentTooLarge
		}
		return data, "", nil
	}
	return e.fetch(ctx, ref.URL)
}

func (e *Extractor) fetch(ctx context.Context, rawURL string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("build request: %w", err)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("fetch document: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, "", fmt.Errorf("fetch document: unexpected status %s", resp.Status)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, e.maxBytes+1))
	if err != nil {
		return nil, "", fmt.Errorf("read document body: %w", err)
	}
	if int64(len(data)) > e.maxBytes {
		return nil, "", ErrDocumentTooLarge
	}

	return data, resp.Header.Get("Content-Type"), nil
}

func resolveFormat(ref Reference, contentType string, data []byte) DocumentFormat {
	name := ref.URL
	if ref.Inline() {
		name = ref.Filename
	}
	if format := DetectFormat(name); format != FormatUnknown {
		return format
	}
	if format := DetectContentType(contentType); format != FormatUnknown {
		return format
	}
	if format := DetectContentType(sniffContentType(data)); format != FormatUnknown && format != FormatText {
		return format
	}
	return FormatText
}

// decodeBase64 accepts standard or URL-safe alphabets, padded or not, and
// tolerates data URI prefixes and embedded whitespace.
func decodeBase64(encoded string) ([]byte, error) {
	encoded = strings.TrimSpace(encoded)
	if strings.HasPrefix(encoded, "data:") {
		if comma := strings.IndexByte(encoded, ','); comma >= 0 {
			encoded = encoded[comma+1:]
		}
	}
	encoded = strings.Join(strings.Fields(encoded), "")

	encodings := []*base64.Encoding{
		base64.StdEncoding,
		base64.RawStdEncoding,
		base64.URLEncoding,
		base64.RawURLEncoding,
	}
	var lastErr error
	for _, enc := range encodings {
		data, err := enc.DecodeString(encoded)
		if err == nil {
			return data, nil
		}
		lastErr = err
	}
	return nil, lastErr
}
