package docpipe

import (
	"strings"
	"unicode"
)

// ExtractionQuality describes how much usable text a PDF yielded. Scanned
// worksheets typically show few chars per page and image streams.
type ExtractionQuality struct {
	PageCount       int     `json:"page_count"`
	EmptyPages      int     `json:"empty_pages"`
	CharsPerPage    float64 `json:"chars_per_page"`
	PrintableRatio  float64 `json:"printable_ratio"`
	WordlikeRatio   float64 `json:"wordlike_ratio"`
	HasImageStreams bool    `json:"has_image_streams"`
}

// NeedsOCR reports whether the text layer is too thin or too garbled to
// classify.
func (q *ExtractionQuality) NeedsOCR() bool {
	return (q.CharsPerPage < 50 && q.HasImageStreams) || q.PrintableRatio < 0.85
}

func measureQuality(pages []Page, pageCount int, hasImages bool) *ExtractionQuality {
	q := &ExtractionQuality{PageCount: pageCount, HasImageStreams: hasImages}
	var all strings.Builder
	chars := 0
	for _, p := range pages {
		chars += len([]rune(p.Text))
		all.WriteString(p.Text)
		all.WriteByte('\n')
	}
	q.EmptyPages = pageCount - len(pages)
	if pageCount > 0 {
		q.CharsPerPage = float64(chars) / float64(pageCount)
	}
	text := all.String()
	q.PrintableRatio = printableRatio(text)
	q.WordlikeRatio = wordlikeRatio(text)
	return q
}

// printableRatio ignores private-use runes, U+FFFD and control characters
// other than whitespace.
func printableRatio(text string) float64 {
	total, printable := 0, 0
	for _, r := range text {
		total++
		switch {
		case r >= 0xE000 && r <= 0xF8FF, r == 0xFFFD:
		case r == '\n' || r == '\r' || r == '\t':
			printable++
		case r < 0x20:
		case unicode.IsPrint(r):
			printable++
		}
	}
	if total == 0 {
		return 1
	}
	return float64(printable) / float64(total)
}

// wordlikeRatio is the share of tokens between 2 and 15 runes long.
func wordlikeRatio(text string) float64 {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return 0
	}
	n := 0
	for _, f := range fields {
		if l := len([]rune(f)); l >= 2 && l <= 15 {
			n++
		}
	}
	return float64(n) / float64(len(fields))
}

func countWords(text string) int { return len(strings.Fields(text)) }
