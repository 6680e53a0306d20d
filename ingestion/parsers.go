package ingestion

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/csv"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/ledongthuc/pdf"
)

// ErrUnsupportedContent is returned when bytes cannot be read as any
// supported format, including plain text.
var ErrUnsupportedContent = errors.New("unsupported binary content")

type DocumentPayload struct {
	Label string
	Data  []byte
}

type DocumentParser interface {
	Parse(ctx context.Context, payload DocumentPayload) (string, error)
}

func parserFor(format DocumentFormat) DocumentParser {
	switch format {
	case FormatPDF:
		return pdfParser{}
	case FormatDOCX:
		return docxParser{}
	case FormatCSV:
		return csvParser{}
	case FormatHTML:
		return htmlParser{}
	case FormatMarkdown:
		return markdownParser{}
	default:
		return textParser{}
	}
}

type markdownParser struct{}

func (markdownParser) Parse(_ context.Context, payload DocumentPayload) (string, error) {
	content, err := decodeText(payload.Data)
	if err != nil {
		return "", err
	}
	return normalizePlainText(content), nil
}

// textParser is the raw-bytes fallback. Text that looks like HTML gets a
// lightweight tag strip.
type textParser struct{}

func (textParser) Parse(_ context.Context, payload DocumentPayload) (string, error) {
	content, err := decodeText(payload.Data)
	if err != nil {
		return "", err
	}
	if looksLikeHTML(content) {
		content = stripHTML(content)
	}
	return normalizePlainText(content), nil
}

type htmlParser struct{}

func (htmlParser) Parse(_ context.Context, payload DocumentPayload) (string, error) {
	content, err := decodeText(payload.Data)
	if err != nil {
		return "", err
	}
	return stripHTML(content), nil
}

type pdfParser struct{}

func (pdfParser) Parse(_ context.Context, payload DocumentPayload) (text string, err error) {
	// The pdf reader panics on some malformed cross-reference tables.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("malformed pdf: %v", r)
		}
	}()

	reader := bytes.NewReader(payload.Data)
	doc, err := pdf.NewReader(reader, int64(len(payload.Data)))
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}

	plain, err := doc.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("extract pdf text: %w", err)
	}

	buf := &bytes.Buffer{}
	if _, err := io.Copy(buf, plain); err != nil {
		return "", fmt.Errorf("read pdf text: %w", err)
	}

	return normalizePlainText(buf.String()), nil
}

type docxParser struct{}

type docxDocument struct {
	Body struct {
		Paragraphs []docxParagraph `xml:"p"`
	} `xml:"body"`
}

type docxParagraph struct {
	Runs []struct {
		Text []struct {
			Content string `xml:",chardata"`
		} `xml:"t"`
	} `xml:"r"`
}

func (docxParser) Parse(_ context.Context, payload DocumentPayload) (string, error) {
	archive, err := zip.NewReader(bytes.NewReader(payload.Data), int64(len(payload.Data)))
	if err != nil {
		return "", fmt.Errorf("open docx: %w", err)
	}

	for _, file := range archive.File {
		if file.Name != "word/document.xml" {
			continue
		}

		rc, err := file.Open()
		if err != nil {
			return "", fmt.Errorf("open docx body: %w", err)
		}
		content, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return "", fmt.Errorf("read docx body: %w", err)
		}

		var doc docxDocument
		if err := xml.Unmarshal(content, &doc); err != nil {
			return "", fmt.Errorf("parse docx body: %w", err)
		}

		var sb strings.Builder
		for i, para := range doc.Body.Paragraphs {
			if i > 0 {
				sb.WriteString("\n")
			}
			for _, run := range para.Runs {
				for _, t := range run.Text {
					sb.WriteString(t.Content)
				}
			}
		}
		return strings.TrimSpace(sb.String()), nil
	}

	return "", fmt.Errorf("docx archive has no word/document.xml")
}

type csvParser struct{}

func (csvParser) Parse(_ context.Context, payload DocumentPayload) (string, error) {
	reader := csv.NewReader(bytes.NewReader(payload.Data))
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		return "", fmt.Errorf("parse csv: %w", err)
	}

	if len(records) == 0 {
		return "", nil
	}

	headers := records[0]
	rows := make([]string, 0, len(records)-1)
	for idx, row := range records[1:] {
		rows = append(rows, formatCSVRow(headers, row, idx))
	}

	return strings.Join(rows, "\n\n"), nil
}

// decodeText reads bytes as UTF-8 text. Payloads carrying NUL bytes are
// treated as binary and rejected.
func decodeText(data []byte) (string, error) {
	if bytes.IndexByte(data, 0) >= 0 {
		return "", ErrUnsupportedContent
	}
	return strings.ToValidUTF8(string(data), "�"), nil
}

func normalizePlainText(content string) string {
	content = strings.ReplaceAll(content, "\r\n", "\n")
	content = strings.ReplaceAll(content, "\r", "\n")
	lines := strings.Split(content, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t")
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

func formatCSVRow(headers, row []string, idx int) string {
	builder := &strings.Builder{}
	builder.WriteString(fmt.Sprintf("Row %d", idx+1))

	limit := min(len(headers), len(row))

	for i := 0; i < limit; i++ {
		header := strings.TrimSpace(headers[i])
		if header == "" {
			header = fmt.Sprintf("Column %d", i+1)
		}
		builder.WriteString("\n")
		builder.WriteString(header)
		builder.WriteString(": ")
		builder.WriteString(strings.TrimSpace(row[i]))
	}

	// Values beyond the header count keep their position.
	for i := len(headers); i < len(row); i++ {
		builder.WriteString(fmt.Sprintf("\nExtra %d: %s", i+1, strings.TrimSpace(row[i])))
	}

	return builder.String()
}
