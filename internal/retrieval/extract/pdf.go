package extract

import (
	"bytes"
	"errors"
	"strings"

	"github.com/ledongthuc/pdf"
)

// PDFExtractor pulls the plain text of every page, pages separated by a blank line.
type PDFExtractor struct{}

func (PDFExtractor) Decode(data []byte) (text string, err error) {
	// 损坏的 PDF 可能在解析器内部 panic
	defer func() {
		if r := recover(); r != nil {
			err = errors.New("malformed pdf")
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", errDecode("parse pdf", err)
	}

	var b strings.Builder
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		pageText, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		pageText = strings.TrimSpace(pageText)
		if pageText == "" {
			continue
		}
		b.WriteString(pageText)
		b.WriteString("\n\n")
	}
	return b.String(), nil
}
