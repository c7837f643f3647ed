// Package extract produces normalized text content and a metadata record
// from heterogeneous file types. Extraction is side-effect free: source
// bytes are only ever read.
package extract

import (
	"errors"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/HandsomeSB/Askit/internal/model"
)

// Extractor dispatches extraction by MIME type.
type Extractor struct{}

// NewExtractor creates an Extractor.
func NewExtractor() *Extractor {
	return &Extractor{}
}

// Extract returns the text content and metadata for a file. Failures are
// reported as *model.ExtractionError and never abort sibling files.
func (e *Extractor) Extract(file model.FileRecord, content []byte) (string, map[string]string, error) {
	meta := map[string]string{
		"file_type_category": Category(file.MIMEType),
	}

	var (
		text string
		err  error
	)
	switch {
	case file.MIMEType == "application/pdf":
		text, err = extractPDF(content)
	case file.MIMEType == "application/vnd.openxmlformats-officedocument.wordprocessingml.document":
		text, err = extractDocx(content)
	case file.MIMEType == "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet":
		text, err = extractXlsx(content)
	case file.MIMEType == "text/html":
		text, err = extractHTML(content)
	case strings.HasPrefix(file.MIMEType, "image/"):
		text = extractImage(content, meta)
	case strings.HasPrefix(file.MIMEType, "audio/"), strings.HasPrefix(file.MIMEType, "video/"):
		text, err = extractMedia(content, meta)
	case strings.HasPrefix(file.MIMEType, "text/"),
		file.MIMEType == "application/json",
		file.MIMEType == "application/xml":
		text, err = extractText(content, meta)
	default:
		// Unknown types: accept them when they happen to be readable text,
		// as the exported Google Workspace formats are.
		if utf8.Valid(content) {
			text, err = extractText(content, meta)
		} else {
			err = &model.ExtractionError{
				FileID:   file.ID,
				FileName: file.Name,
				Reason:   "unsupported mime type " + file.MIMEType,
			}
		}
	}
	if err != nil {
		if extErr, ok := err.(*model.ExtractionError); ok {
			return "", nil, extErr
		}
		return "", nil, &model.ExtractionError{
			FileID:   file.ID,
			FileName: file.Name,
			Reason:   err.Error(),
		}
	}
	return text, meta, nil
}

func extractText(content []byte, meta map[string]string) (string, error) {
	if !utf8.Valid(content) {
		return "", errors.New("content is not valid UTF-8 text")
	}
	text := string(content)
	meta["line_count"] = strconv.Itoa(len(strings.Split(text, "\n")))
	meta["word_count"] = strconv.Itoa(len(strings.Fields(text)))
	meta["character_count"] = strconv.Itoa(len(text))
	return text, nil
}

// Category maps a MIME type to a coarse file-type class used by metadata
// filters ("images about cats", "spreadsheets from last month").
func Category(mimeType string) string {
	switch {
	case strings.HasPrefix(mimeType, "image/"):
		return "image"
	case strings.HasPrefix(mimeType, "video/"):
		return "video"
	case strings.HasPrefix(mimeType, "audio/"):
		return "audio"
	case mimeType == "application/pdf",
		mimeType == "application/msword",
		mimeType == "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
		mimeType == "application/vnd.google-apps.document":
		return "document"
	case mimeType == "text/csv",
		mimeType == "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		mimeType == "application/vnd.google-apps.spreadsheet":
		return "spreadsheet"
	case mimeType == "application/vnd.openxmlformats-officedocument.presentationml.presentation",
		mimeType == "application/vnd.google-apps.presentation":
		return "presentation"
	case mimeType == "application/json",
		mimeType == "application/xml",
		mimeType == "text/x-python",
		mimeType == "text/javascript":
		return "code"
	case strings.HasPrefix(mimeType, "text/"):
		return "text"
	default:
		return "other"
	}
}
