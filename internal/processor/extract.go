package processor

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/anvik/docstream/internal/domain/docmodel"
	"github.com/dslipak/pdf"
	"github.com/lu4p/cat"
)

// extractText turns raw blob bytes into text. Structured extractors are tried
// by extension; when they reject the bytes we fall back to a plain UTF-8
// decode with invalid sequences stripped, so a text file with a misleading
// extension still ingests.
func extractText(filename string, content []byte) (string, error) {
	var (
		text string
		err  error
	)

	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		text, err = extractPDF(content)
	case ".docx", ".odt", ".rtf":
		text, err = extractWithCat(filename, content)
	default:
		text = string(bytes.ToValidUTF8(content, nil))
	}

	if err != nil || strings.TrimSpace(text) == "" {
		text = string(bytes.ToValidUTF8(content, nil))
	}

	if strings.TrimSpace(text) == "" {
		return "", docmodel.ErrExtraction
	}
	return text, nil
}

func extractPDF(content []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", fmt.Errorf("failed to open pdf: %w", err)
	}

	var builder strings.Builder
	numPages := reader.NumPage()
	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		pageText, err := protectExtract(page)
		if err != nil {
			// Keep going with the other pages
			continue
		}
		builder.WriteString(pageText)
		builder.WriteString("\n")
	}
	return builder.String(), nil
}

// cat only reads from disk, so the blob takes a short detour through a temp file.
func extractWithCat(filename string, content []byte) (string, error) {
	tmp, err := os.CreateTemp("", "docstream-*"+filepath.Ext(filename))
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		return "", fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close temp file: %w", err)
	}

	text, err := cat.File(tmp.Name())
	if err != nil {
		return "", fmt.Errorf("failed to extract document: %w", err)
	}
	return text, nil
}

// A corrupt page can hang the pdf parser, bound it.
func protectExtract(page pdf.Page) (string, error) {
	type result struct {
		content string
		err     error
	}
	resChan := make(chan result, 1)

	go func() {
		content, err := page.GetPlainText(nil)
		resChan <- result{content, err}
	}()
	select {
	case r := <-resChan:
		return r.content, r.err
	case <-time.After(10 * time.Second):
		return "", errors.New("page extraction timeout")
	}
}

// runePrefix bounds text to limit runes without splitting a multi-byte rune.
func runePrefix(text string, limit int) string {
	if utf8.RuneCountInString(text) <= limit {
		return text
	}
	runes := []rune(text)
	return string(runes[:limit])
}
