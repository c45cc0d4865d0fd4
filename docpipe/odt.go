package docpipe

import (
	"encoding/xml"
	"strings"
)

// extractODT parses an .odt file by reading content.xml from the ZIP archive.
// text:h and text:p become blocks; table:table becomes a Table.
func extractODT(path string) (*parsed, error) {
	dec, closeFn, err := openZipEntry(path, "content.xml")
	if err != nil {
		return nil, err
	}
	defer closeFn()

	res := &parsed{}
	var tables tableBuilder
	var currentText strings.Builder
	var inHeading, inParagraph bool

	err = walkXML(dec, func(tok xml.Token) {
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "table":
				tables.startTable()
			case "table-row":
				tables.startRow()
			case "table-cell":
				tables.startCell()
			case "h":
				inHeading = true
				currentText.Reset()
			case "p":
				inParagraph = true
				currentText.Reset()
			case "s", "tab":
				currentText.WriteByte(' ')
			case "line-break":
				currentText.WriteByte('\n')
			}

		case xml.CharData:
			if inHeading || inParagraph {
				currentText.Write(t)
			}

		case xml.EndElement:
			switch t.Name.Local {
			case "table-cell":
				tables.endCell()
			case "table-row":
				tables.endRow()
			case "table":
				tables.endTable()
			case "h", "p":
				heading := t.Name.Local == "h"
				if heading && !inHeading || !heading && !inParagraph {
					return
				}
				inHeading, inParagraph = false, false
				text := strings.TrimSpace(currentText.String())
				if text == "" {
					return
				}
				if tables.active() {
					tables.text(text)
					return
				}
				if heading && res.title == "" {
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
