// Package docform handles merge-style templates: documents whose body
// carries {{ tag }} placeholder markers. Both plain text/XML bodies and
// DOCX containers (zip archives, tags inside the word/*.xml parts) are
// supported through the same entry points.
package docform

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"
)

// tagPattern matches {{ identifier }} markers. Identifiers are restricted
// to the characters a field ID may carry so stray braces in document text
// are not mistaken for tags.
var tagPattern = regexp.MustCompile(`\{\{\s*([A-Za-z0-9_][A-Za-z0-9_.\-]*)\s*\}\}`)

var zipMagic = []byte("PK\x03\x04")

// IsZip reports whether the document bytes are a zip container (DOCX).
func IsZip(doc []byte) bool {
	return bytes.HasPrefix(doc, zipMagic)
}

// DiscoverTags returns the tag identifiers found in the document, in order
// of first occurrence, without duplicates.
func DiscoverTags(doc []byte) ([]string, error) {
	if !IsZip(doc) {
		return scanTags(doc), nil
	}

	var tags []string
	seen := make(map[string]bool)
	err := eachDocxPart(doc, func(name string, content []byte) {
		for _, tag := range scanTags(content) {
			if !seen[tag] {
				seen[tag] = true
				tags = append(tags, tag)
			}
		}
	})
	if err != nil {
		return nil, err
	}
	return tags, nil
}

// Render substitutes every tag in the document. Tags present in values are
// replaced with the value; all remaining tags are blanked, so fields the
// data genuinely lacks render as empty slots rather than leftover markers.
func Render(doc []byte, values map[string]string) ([]byte, error) {
	if !IsZip(doc) {
		return substituteTags(doc, values, false), nil
	}
	return renderDocx(doc, values)
}

func scanTags(body []byte) []string {
	var tags []string
	seen := make(map[string]bool)
	for _, m := range tagPattern.FindAllSubmatch(body, -1) {
		tag := string(m[1])
		if !seen[tag] {
			seen[tag] = true
			tags = append(tags, tag)
		}
	}
	return tags
}

func substituteTags(body []byte, values map[string]string, escapeXML bool) []byte {
	return tagPattern.ReplaceAllFunc(body, func(m []byte) []byte {
		value := values[string(tagPattern.FindSubmatch(m)[1])]
		if escapeXML {
			value = escapeXMLText(value)
		}
		return []byte(value)
	})
}

// eachDocxPart calls fn for every word/*.xml part of a DOCX container.
func eachDocxPart(doc []byte, fn func(name string, content []byte)) error {
	reader, err := zip.NewReader(bytes.NewReader(doc), int64(len(doc)))
	if err != nil {
		return fmt.Errorf("not a valid DOCX container: %w", err)
	}

	for _, f := range reader.File {
		if !isContentPart(f.Name) {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return fmt.Errorf("failed to open part %s: %w", f.Name, err)
		}
		content, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return fmt.Errorf("failed to read part %s: %w", f.Name, err)
		}
		fn(f.Name, content)
	}
	return nil
}

// renderDocx rewrites the zip container with tags substituted in the
// content parts. The output is deterministic: entries keep their original
// order and all modification timestamps are zeroed.
func renderDocx(doc []byte, values map[string]string) ([]byte, error) {
	reader, err := zip.NewReader(bytes.NewReader(doc), int64(len(doc)))
	if err != nil {
		return nil, fmt.Errorf("not a valid DOCX container: %w", err)
	}

	var out bytes.Buffer
	writer := zip.NewWriter(&out)

	for _, f := range reader.File {
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("failed to open part %s: %w", f.Name, err)
		}
		content, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to read part %s: %w", f.Name, err)
		}

		if isContentPart(f.Name) {
			content = substituteTags(content, values, true)
		}

		header := &zip.FileHeader{
			Name:     f.Name,
			Method:   zip.Deflate,
			Modified: time.Time{},
		}
		w, err := writer.CreateHeader(header)
		if err != nil {
			return nil, fmt.Errorf("failed to create part %s: %w", f.Name, err)
		}
		if _, err := w.Write(content); err != nil {
			return nil, fmt.Errorf("failed to write part %s: %w", f.Name, err)
		}
	}

	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize DOCX container: %w", err)
	}
	return out.Bytes(), nil
}

// isContentPart reports whether a zip entry may carry document text.
func isContentPart(name string) bool {
	return strings.HasPrefix(name, "word/") && strings.HasSuffix(name, ".xml")
}

// escapeXMLText escapes the characters that would break the surrounding
// XML when a value is spliced into a DOCX part. Harmless for plain bodies.
func escapeXMLText(s string) string {
	if !strings.ContainsAny(s, "&<>") {
		return s
	}
	s = strings.ReplaceAll(s, "&", "&amp;")
	s = strings.ReplaceAll(s, "<", "&lt;")
	s = strings.ReplaceAll(s, ">", "&gt;")
	return s
}
