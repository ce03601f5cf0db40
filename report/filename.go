package report

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"
	"time"
	"unicode"
)

// DefaultFilenameTemplate names documents after the report title and timestamp.
const DefaultFilenameTemplate = "{{.Title}}_{{.Timestamp}}"

const maxFilenameTitle = 80

type filenameData struct {
	Title     string
	Format    string
	Timestamp string
	Date      string
}

func renderFilename(pattern string, rep Report, format Format, generatedAt time.Time) (string, error) {
	if pattern == "" {
		pattern = DefaultFilenameTemplate
	}

	data := filenameData{
		Title:     slugTitle(rep.Title),
		Format:    string(format),
		Timestamp: generatedAt.UTC().Format("20060102T150405Z"),
		Date:      generatedAt.UTC().Format("20060102"),
	}

	tmpl, err := template.New("filename").Parse(pattern)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}

	result := strings.TrimSpace(buf.String())
	if result == "" {
		return "", fmt.Errorf("empty filename")
	}

	ext := extensionFor(format)
	if !strings.HasSuffix(strings.ToLower(result), "."+ext) {
		result = result + "." + ext
	}
	return result, nil
}

// slugTitle keeps letters and digits, joining runs of anything else with "_".
func slugTitle(title string) string {
	var b strings.Builder
	pendingSep := false
	for _, r := range strings.TrimSpace(title) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if pendingSep && b.Len() > 0 {
				b.WriteByte('_')
			}
			pendingSep = false
			b.WriteRune(r)
			continue
		}
		pendingSep = true
	}
	slug := b.String()
	if slug == "" {
		return "report"
	}
	if runes := []rune(slug); len(runes) > maxFilenameTitle {
		slug = strings.TrimRight(string(runes[:maxFilenameTitle]), "_")
	}
	return slug
}

func extensionFor(format Format) string {
	switch format {
	case FormatHTML:
		return "html"
	case FormatXLSX:
		return "xlsx"
	default:
		return "pdf"
	}
}

// ContentTypeFor returns the MIME type for a format.
func ContentTypeFor(format Format) string {
	switch format {
	case FormatHTML:
		return "text/html; charset=utf-8"
	case FormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	default:
		return "application/pdf"
	}
}
