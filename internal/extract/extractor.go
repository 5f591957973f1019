// Package extract implements C3: turns fetched document bytes into plain
// text, page-streaming PDFs and falling back to OCR on image-only PDFs.
package extract

import (
	"context"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/karlennis/fiscan/internal/common"
	"github.com/karlennis/fiscan/internal/interfaces"
)

// Extractor dispatches by format to the PDF or DOCX path, then to OCR when
// the PDF path yields too little text and looks image-only.
type Extractor struct {
	textLengthCap int
	ocrMinChars int
	ocrMaxPages int
	ocr interfaces.OCRClient
	memoryGate func() bool // returns true if OCR is safe to attempt (enough free memory)
	logger *common.Logger
}

// New creates an Extractor. ocr and memoryGate may be nil. A nil ocr disables
// the OCR fallback, so image-only PDFs simply return empty text; a nil
// memoryGate runs OCR without the free-memory check.
func New(textLengthCap, ocrMinChars, ocrMaxPages int, ocr interfaces.OCRClient, memoryGate func() bool, logger *common.Logger) *Extractor {
	if textLengthCap <= 0 {
		textLengthCap = 10000
	}
	if ocrMinChars <= 0 {
		ocrMinChars = 100
	}
	if ocrMaxPages <= 0 {
		ocrMaxPages = 20
	}
	return &Extractor{
		textLengthCap: textLengthCap,
		ocrMinChars: ocrMinChars,
		ocrMaxPages: ocrMaxPages,
		ocr: ocr,
		memoryGate: memoryGate,
		logger: logger,
	}
}

// Extract reads data (or, if data is nil, the file at filePath) and returns
// its plain text. format is "pdf" or "docx" (case-insensitive).
func (e *Extractor) Extract(ctx context.Context, data []byte, filePath string, format string) (result interfaces.ExtractResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = interfaces.ExtractResult{OK: false, Reason: "corrupt"}
			err = fmt.Errorf("%w: panic during extraction: %v", common.ErrCorrupt, r)
		}
	}()

	switch strings.ToLower(format) {
	case "docx":
		return e.extractDOCX(data, filePath)
	case "pdf":
		return e.extractPDF(ctx, data, filePath)
	default:
		return interfaces.ExtractResult{OK: false, Reason: "unsupported_extension"}, fmt.Errorf("%w: format %q", common.ErrUnsupportedExtension, format)
	}
}

func (e *Extractor) extractPDF(ctx context.Context, data []byte, filePath string) (interfaces.ExtractResult, error) {
	path := filePath
	if path == "" {
		return interfaces.ExtractResult{}, fmt.Errorf("%w: pdf extraction requires a file path", common.ErrCorrupt)
	}
	_ = data // PDF extraction always streams from disk to avoid materialising the whole file

	f, r, openErr := pdf.Open(path)
	if openErr != nil {
		return interfaces.ExtractResult{OK: false, Reason: "corrupt"}, fmt.Errorf("%w: open pdf: %v", common.ErrCorrupt, openErr)
	}
	defer f.Close()

	var sb strings.Builder
	totalPages := r.NumPage()
	truncated := false
	nonEmptyPages := 0

	for i := 1; i <= totalPages; i++ {
		select {
		case <-ctx.Done():
			return interfaces.ExtractResult{}, ctx.Err()
		default:
		}

		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}

		pageText, pageErr := page.GetPlainText(nil)
		if pageErr != nil {
			continue
		}
		if strings.TrimSpace(pageText) != "" {
			nonEmptyPages++
		}
		sb.WriteString(pageText)
		sb.WriteString("\n")

		if sb.Len() >= e.textLengthCap {
			truncated = true
			break
		}
	}

	text := sb.String()
	if len(text) > e.textLengthCap {
		text = text[:e.textLengthCap]
		truncated = true
	}

	// Image-only heuristic: pages exist but none produced text.
	imageOnly := totalPages > 0 && nonEmptyPages == 0

	if len(text) < e.ocrMinChars && imageOnly {
		ocrText, ocrErr := e.tryOCR(ctx, path, totalPages)
		if ocrErr != nil {
			e.logger.Warn().Err(ocrErr).Str("path", path).Msg("ocr fallback failed")
		}
		if ocrText != "" {
			if len(ocrText) > e.textLengthCap {
				ocrText = ocrText[:e.textLengthCap]
				truncated = true
			}
			return interfaces.ExtractResult{Text: ocrText, CharCount: len(ocrText), Truncated: truncated, OK: true}, nil
		}
	}

	if len(text) == 0 {
		return interfaces.ExtractResult{OK: false, Reason: "extraction_empty"}, nil
	}

	return interfaces.ExtractResult{Text: text, CharCount: len(text), Truncated: truncated, OK: true}, nil
}

// tryOCR invokes the OCR client, gated by the memory check:
// if memoryGate reports insufficient headroom, OCR is skipped entirely and
// the document falls through as extraction_empty rather than risk pushing
// the worker over its RSS ceiling.
func (e *Extractor) tryOCR(ctx context.Context, path string, totalPages int) (string, error) {
	if e.ocr == nil {
		return "", nil
	}
	if e.memoryGate != nil && !e.memoryGate() {
		return "", fmt.Errorf("%w: insufficient free memory for ocr fallback", common.ErrMemoryPressure)
	}

	pages := totalPages
	if pages > e.ocrMaxPages || pages == 0 {
		pages = e.ocrMaxPages
	}

	text, err := e.ocr.OCR(ctx, path, pages)
	if err != nil {
		return "", fmt.Errorf("ocr call failed: %w", err)
	}
	return text, nil
}

var _ interfaces.Extractor = (*Extractor)(nil)
