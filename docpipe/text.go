package docpipe

import (
	"os"
	"strings"
)

// extractText reads a plain text file. Paragraphs are separated by blank
// lines; line breaks inside a paragraph are kept.
func extractText(path string) (*parsed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return parseText(string(data)), nil
}

func parseText(raw string) *parsed {
	text := normalizeNewlines(raw)
	res := &parsed{text: strings.TrimSpace(text)}
	for _, block := range strings.Split(text, "\n\n") {
		block = strings.TrimSpace(block)
		if block != "" {
			res.blocks = append(res.blocks, block)
		}
	}
	if len(res.blocks) > 0 {
		res.title = firstLine(res.blocks[0])
	}
	return res
}

// extractMarkdown extracts headings, paragraphs and pipe tables from a
// Markdown file.
func extractMarkdown(path string) (*parsed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	lines := strings.Split(normalizeNewlines(string(data)), "\n")
	res := &parsed{}
	var currentText strings.Builder
	var table *Table

	flushParagraph := func() {
		text := strings.TrimSpace(currentText.String())
		if text != "" {
			res.blocks = append(res.blocks, text)
		}
		currentText.Reset()
	}
	flushTable := func() {
		if table != nil && len(table.Rows) > 0 {
			res.tables = append(res.tables, *table)
		}
		table = nil
	}

	for _, line := range lines {
		trimmed := strings.TrimSpace(line)

		// Pipe tables: | a | b |
		if strings.HasPrefix(trimmed, "|") {
			flushParagraph()
			if isTableSeparator(trimmed) {
				continue
			}
			if table == nil {
				table = &Table{}
			}
			table.Rows = append(table.Rows, splitPipeRow(trimmed))
			continue
		}
		flushTable()

		// ATX headings: # heading, ## heading, etc.
		if strings.HasPrefix(trimmed, "#") {
			flushParagraph()
			headingText := strings.TrimSpace(strings.Trim(trimmed, "#"))
			if headingText != "" {
				if res.title == "" {
					res.title = headingText
				}
				res.blocks = append(res.blocks, headingText)
			}
			continue
		}

		// Empty line = paragraph break.
		if trimmed == "" {
			flushParagraph()
			continue
		}

		if currentText.Len() > 0 {
			currentText.WriteByte('\n')
		}
		currentText.WriteString(trimmed)
	}
	flushParagraph()
	flushTable()

	if res.title == "" && len(res.blocks) > 0 {
		res.title = firstLine(res.blocks[0])
	}
	return res, nil
}

func isTableSeparator(line string) bool {
	for _, r := range line {
		switch r {
		case '|', '-', ':', ' ':
		default:
			return false
		}
	}
	return true
}

func splitPipeRow(line string) []string {
	line = strings.TrimPrefix(line, "|")
	line = strings.TrimSuffix(line, "|")
	cells := strings.Split(line, "|")
	for i := range cells {
		cells[i] = strings.TrimSpace(cells[i])
	}
	return cells
}

func normalizeNewlines(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\r", "\n")
}

// collapseSpace folds runs of whitespace into single spaces.
func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func firstLine(text string) string {
	if idx := strings.IndexByte(text, '\n'); idx >= 0 {
		text = text[:idx]
	}
	text = strings.TrimSpace(text)
	if len(text) > 200 {
		text = text[:200]
	}
	return text
}
