package docpipe

import (
	"archive/zip"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
)

// maxXMLDepth bounds element nesting in office archives.
const maxXMLDepth = 256

// openZipEntry returns a decoder over the named member of a zip archive.
// The returned closer releases both the member and the archive.
func openZipEntry(path, name string) (*xml.Decoder, func(), error) {
	r, err := zip.OpenReader(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open zip: %w", err)
	}
	var entry *zip.File
	for _, f := range r.File {
		if f.Name == name {
			entry = f
			break
		}
	}
	if entry == nil {
		r.Close()
		return nil, nil, fmt.Errorf("%s not found in archive", name)
	}
	rc, err := entry.Open()
	if err != nil {
		r.Close()
		return nil, nil, fmt.Errorf("open %s: %w", name, err)
	}
	return xml.NewDecoder(rc), func() { rc.Close(); r.Close() }, nil
}

// walkXML feeds every token to fn and enforces maxXMLDepth.
func walkXML(dec *xml.Decoder, fn func(xml.Token)) error {
	depth := 0
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("xml: %w", err)
		}
		switch tok.(type) {
		case xml.StartElement:
			depth++
			if depth > maxXMLDepth {
				return fmt.Errorf("xml nesting depth exceeds %d", maxXMLDepth)
			}
		case xml.EndElement:
			depth--
		}
		fn(tok)
	}
}

// tableBuilder accumulates rows and cells while walking table markup.
// Nested tables are flattened into the enclosing cell's text.
type tableBuilder struct {
	depth  int
	row    []string
	cell   strings.Builder
	inCell bool
	cur    Table
	done   []Table
}

func (b *tableBuilder) active() bool { return b.depth > 0 }

func (b *tableBuilder) startTable() {
	b.depth++
	if b.depth == 1 {
		b.cur = Table{}
	}
}

func (b *tableBuilder) endTable() {
	b.depth--
	if b.depth == 0 && len(b.cur.Rows) > 0 {
		b.done = append(b.done, b.cur)
	}
}

func (b *tableBuilder) startRow() {
	if b.depth == 1 {
		b.row = nil
	}
}

func (b *tableBuilder) endRow() {
	if b.depth == 1 && len(b.row) > 0 {
		b.cur.Rows = append(b.cur.Rows, b.row)
	}
}

func (b *tableBuilder) startCell() {
	if b.depth == 1 {
		b.cell.Reset()
		b.inCell = true
	}
}

func (b *tableBuilder) endCell() {
	if b.depth == 1 && b.inCell {
		b.row = append(b.row, collapseSpace(b.cell.String()))
		b.inCell = false
	}
}

func (b *tableBuilder) text(s string) {
	if b.inCell {
		if b.cell.Len() > 0 {
			b.cell.WriteByte(' ')
		}
		b.cell.WriteString(s)
	}
}

// extractDocx parses a .docx file by reading word/document.xml from the
// ZIP archive. Paragraphs inside w:tbl become table cells.
func extractDocx(path string) (*parsed, error) {
	dec, closeFn, err := openZipEntry(path, "word/document.xml")
	if err != nil {
		return nil, err
	}
	defer closeFn()

	res := &parsed{}
	var tables tableBuilder
	var currentText strings.Builder
	var inParagraph, inRun bool
	var paragraphStyle string

	err = walkXML(dec, func(tok xml.Token) {
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "tbl":
				tables.startTable()
			case "tr":
				tables.startRow()
			case "tc":
				tables.startCell()
			case "p":
				inParagraph = true
				currentText.Reset()
				paragraphStyle = ""
			case "pStyle":
				for _, attr := range t.Attr {
					if attr.Name.Local == "val" {
						paragraphStyle = attr.Value
					}
				}
			case "t":
				inRun = true
			case "tab":
				currentText.WriteByte(' ')
			case "br":
				currentText.WriteByte('\n')
			}

		case xml.CharData:
			if inParagraph && inRun {
				currentText.Write(t)
			}

		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inRun = false
			case "tc":
				tables.endCell()
			case "tr":
				tables.endRow()
			case "tbl":
				tables.endTable()
			case "p":
				if !inParagraph {
					return
				}
				inParagraph = false
				text := strings.TrimSpace(currentText.String())
				if text == "" {
					return
				}
				if tables.active() {
					tables.text(text)
					return
				}
				if res.title == "" && docxHeadingLevel(paragraphStyle) > 0 {
					res.title = text
				}
				res.blocks = append(res.blocks, text)
			}
		}
	})
	if err != nil {
		return nil, err
	}
	res.tables = tables.done
	if res.title == "" && len(res.blocks) > 0 {
		res.title = firstLine(res.blocks[0])
	}
	return res, nil
}

// docxHeadingLevel extracts the heading level from a paragraph style name.
// e.g. "Heading1" → 1, "Heading2" → 2, "Title" → 1, etc.
func docxHeadingLevel(style string) int {
	lower := strings.ToLower(style)

	if lower == "title" {
		return 1
	}
	if lower == "subtitle" {
		return 2
	}

	for _, prefix := range []string{"heading", "titre", "überschrift"} {
		if strings.HasPrefix(lower, prefix) {
			rest := lower[len(prefix):]
			if len(rest) == 1 && rest[0] >= '1' && rest[0] <= '6' {
				return int(rest[0] - '0')
			}
		}
	}
	return 0
}
