package docpipe

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"
	"unicode"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
)

// extractPDF reads text page by page from the content streams. Each page
// is split into paragraphs on blank lines; pages with no text are skipped
// but still counted for quality.
func extractPDF(path string) (*parsed, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	ctx, err := api.ReadValidateAndOptimize(f, model.NewDefaultConfiguration())
	if err != nil {
		return nil, fmt.Errorf("pdfcpu read: %w", err)
	}

	res := &parsed{}
	var pageTexts []string
	for pageNr := 1; pageNr <= ctx.PageCount; pageNr++ {
		text := extractPageText(ctx, pageNr)
		if text == "" {
			continue
		}
		res.pages = append(res.pages, Page{Number: pageNr, Text: text, WordCount: countWords(text)})
		res.blocks = append(res.blocks, splitPDFParagraphs(text)...)
		pageTexts = append(pageTexts, text)
	}
	if len(res.pages) == 0 {
		return nil, fmt.Errorf("no text content found in PDF")
	}

	res.text = strings.Join(pageTexts, "\n\n")
	res.title = firstLine(res.blocks[0])
	res.quality = measureQuality(res.pages, ctx.PageCount, detectImageStreams(ctx))
	return res, nil
}

func extractPageText(ctx *model.Context, pageNr int) string {
	r, err := pdfcpu.ExtractPageContent(ctx, pageNr)
	if err != nil {
		return ""
	}
	data, err := io.ReadAll(r)
	if err != nil || len(data) == 0 {
		return ""
	}
	return extractTextFromStream(data)
}

// detectImageStreams checks if the PDF contains image XObjects.
func detectImageStreams(ctx *model.Context) bool {
	if ctx.Optimize != nil {
		for pageNr := 1; pageNr <= ctx.PageCount; pageNr++ {
			if len(pdfcpu.ImageObjNrs(ctx, pageNr)) > 0 {
				return true
			}
		}
	}
	for _, entry := range ctx.Table {
		if entry == nil || entry.Free || entry.Compressed {
			continue
		}
		sd, ok := entry.Object.(types.StreamDict)
		if !ok {
			continue
		}
		if subtype, found := sd.Find("Subtype"); found {
			if name, isName := subtype.(types.Name); isName && name == "Image" {
				return true
			}
		}
	}
	return false
}

var pdfStringRe = regexp.MustCompile(`\(([^)]*)\)`)

// extractTextFromStream interprets the text-showing operators of a content
// stream. Tj/TJ append, ' and T* start a new line, Td/TD insert a space,
// ET ends the line of the current text object.
func extractTextFromStream(data []byte) string {
	var sb strings.Builder
	show := func(line []byte, newline bool) {
		for _, m := range pdfStringRe.FindAllSubmatch(line, -1) {
			text := decodePDFString(m[1])
			if text == "" {
				continue
			}
			if newline {
				sb.WriteByte('\n')
				newline = false
			}
			sb.WriteString(text)
		}
	}

	for _, line := range bytes.Split(data, []byte{'\n'}) {
		line = bytes.TrimSpace(line)
		switch {
		case len(line) == 0:
		case bytes.HasSuffix(line, []byte("Tj")), bytes.HasSuffix(line, []byte("TJ")):
			show(line, false)
		case bytes.HasSuffix(line, []byte("'")) && bytes.Contains(line, []byte("(")):
			show(line, true)
		case bytes.HasSuffix(line, []byte("Td")), bytes.HasSuffix(line, []byte("TD")):
			if sb.Len() > 0 {
				sb.WriteByte(' ')
			}
		case bytes.Equal(line, []byte("T*")), bytes.Equal(line, []byte("ET")):
			sb.WriteByte('\n')
		}
	}
	return cleanPDFText(sb.String())
}

// decodePDFString handles basic PDF escape sequences.
func decodePDFString(raw []byte) string {
	var sb strings.Builder
	for i := 0; i < len(raw); i++ {
		if raw[i] != '\\' || i+1 >= len(raw) {
			sb.WriteByte(raw[i])
			continue
		}
		i++
		switch raw[i] {
		case 'n':
			sb.WriteByte('\n')
		case 'r':
			sb.WriteByte('\r')
		case 't':
			sb.WriteByte('\t')
		case '\\', '(', ')':
			sb.WriteByte(raw[i])
		default:
			if raw[i] < '0' || raw[i] > '7' {
				sb.WriteByte(raw[i])
				continue
			}
			// Up to three octal digits, e.g. \040.
			val := int(raw[i] - '0')
			for n := 1; n < 3 && i+1 < len(raw) && raw[i+1] >= '0' && raw[i+1] <= '7'; n++ {
				i++
				val = val*8 + int(raw[i]-'0')
			}
			sb.WriteByte(byte(val))
		}
	}
	return sb.String()
}

// cleanPDFText collapses horizontal whitespace and drops unprintable runes.
// Line breaks survive; runs of blank lines shrink to one.
func cleanPDFText(text string) string {
	lines := strings.Split(normalizeNewlines(text), "\n")
	out := make([]string, 0, len(lines))
	blank := false
	for _, line := range lines {
		line = collapseSpace(strings.Map(func(r rune) rune {
			if unicode.IsSpace(r) || unicode.IsPrint(r) {
				return r
			}
			return -1
		}, line))
		if line == "" {
			if !blank && len(out) > 0 {
				out = append(out, "")
			}
			blank = true
			continue
		}
		blank = false
		out = append(out, line)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}

// splitPDFParagraphs splits page text on blank lines.
func splitPDFParagraphs(text string) []string {
	var result []string
	for _, p := range strings.Split(normalizeNewlines(text), "\n\n") {
		if p = strings.TrimSpace(p); p != "" {
			result = append(result, p)
		}
	}
	if len(result) == 0 && strings.TrimSpace(text) != "" {
		result = []string{strings.TrimSpace(text)}
	}
	return result
}
