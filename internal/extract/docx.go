package extract

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"github.com/fumiama/go-docx"

	"github.com/karlennis/fiscan/internal/common"
	"github.com/karlennis/fiscan/internal/interfaces"
)

// extractDOCX pulls structural text out of a.docx's paragraphs and tables.
// No OCR fallback applies to DOCX: structural text extraction only.
func (e *Extractor) extractDOCX(data []byte, filePath string) (interfaces.ExtractResult, error) {
	var (
		doc *docx.Docx
		size int64
	)

	if len(data) > 0 {
		r, err := docx.ReadDocxFromMemory(bytes.NewReader(data), int64(len(data)))
		if err != nil {
			return interfaces.ExtractResult{OK: false, Reason: "corrupt"}, fmt.Errorf("%w: open docx from memory: %v", common.ErrCorrupt, err)
		}
		defer r.Close()
		doc = r.Editable()
		size = int64(len(data))
	} else {
		if filePath == "" {
			return interfaces.ExtractResult{}, fmt.Errorf("%w: docx extraction requires bytes or a file path", common.ErrCorrupt)
		}
		info, statErr := os.Stat(filePath)
		if statErr == nil {
			size = info.Size()
		}
		r, err := docx.ReadDocxFile(filePath)
		if err != nil {
			return interfaces.ExtractResult{OK: false, Reason: "corrupt"}, fmt.Errorf("%w: open docx file: %v", common.ErrCorrupt, err)
		}
		defer r.Close()
		doc = r.Editable()
	}
	_ = size

	var sb strings.Builder
	truncated := false

walk:
	for _, item := range doc.Document.Body.Items {
		var line string
		switch v := item.(type) {
		case *docx.Paragraph:
			line = v.String()
		case *docx.Table:
			line = v.String()
		default:
			continue
		}
		if line == "" {
			continue
		}
		sb.WriteString(line)
		sb.WriteString("\n")
		if sb.Len() >= e.textLengthCap {
			truncated = true
			break walk
		}
	}

	text := sb.String()
	if len(text) > e.textLengthCap {
		text = text[:e.textLengthCap]
		truncated = true
	}
	if len(text) == 0 {
		return interfaces.ExtractResult{OK: false, Reason: "extraction_empty"}, nil
	}

	return interfaces.ExtractResult{Text: text, CharCount: len(text), Truncated: truncated, OK: true}, nil
}
