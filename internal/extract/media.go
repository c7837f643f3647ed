package extract

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/dhowden/tag"
	"github.com/rwcarlsen/goexif/exif"
	"golang.org/x/net/html"
)

// extractImage pulls searchable text out of EXIF tags. Full OCR is out of
// scope; an image without usable tags yields empty text and metadata only.
func extractImage(content []byte, meta map[string]string) string {
	x, err := exif.Decode(bytes.NewReader(content))
	if err != nil {
		return ""
	}

	var parts []string
	if field, err := x.Get(exif.ImageDescription); err == nil {
		if desc, err := field.StringVal(); err == nil && desc != "" {
			meta["description"] = desc
			parts = append(parts, desc)
		}
	}
	if field, err := x.Get(exif.Make); err == nil {
		if v, err := field.StringVal(); err == nil && v != "" {
			meta["camera_make"] = v
			parts = append(parts, v)
		}
	}
	if field, err := x.Get(exif.Model); err == nil {
		if v, err := field.StringVal(); err == nil && v != "" {
			meta["camera_model"] = v
			parts = append(parts, v)
		}
	}
	if dt, err := x.DateTime(); err == nil {
		meta["capture_time"] = dt.Format("2006-01-02 15:04:05")
		parts = append(parts, "taken "+dt.Format("January 2, 2006"))
	}
	return strings.Join(parts, ". ")
}

// extractMedia reads audio/video container metadata (title, artist, codec,
// year). Content itself is not transcribed.
func extractMedia(content []byte, meta map[string]string) (string, error) {
	m, err := tag.ReadFrom(bytes.NewReader(content))
	if err != nil {
		return "", fmt.Errorf("unreadable media container: %v", err)
	}

	meta["container_format"] = string(m.Format())
	meta["file_type"] = string(m.FileType())

	var parts []string
	if title := m.Title(); title != "" {
		meta["title"] = title
		parts = append(parts, title)
	}
	if artist := m.Artist(); artist != "" {
		meta["artist"] = artist
		parts = append(parts, artist)
	}
	if album := m.Album(); album != "" {
		meta["album"] = album
		parts = append(parts, album)
	}
	if year := m.Year(); year != 0 {
		meta["year"] = strconv.Itoa(year)
		parts = append(parts, strconv.Itoa(year))
	}
	return strings.Join(parts, ". "), nil
}

// extractHTML walks the parse tree collecting text nodes, skipping script
// and style elements.
func extractHTML(content []byte) (string, error) {
	doc, err := html.Parse(bytes.NewReader(content))
	if err != nil {
		return "", fmt.Errorf("unreadable html: %v", err)
	}

	var sb strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && (n.Data == "script" || n.Data == "style") {
			return
		}
		if n.Type == html.TextNode {
			text := strings.TrimSpace(n.Data)
			if text != "" {
				sb.WriteString(text)
				sb.WriteString(" ")
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return strings.TrimSpace(sb.String()), nil
}
