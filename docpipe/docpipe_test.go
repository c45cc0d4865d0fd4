package docpipe

import (
	"archive/zip"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeZip(t *testing.T, path, member, content string) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	w := zip.NewWriter(f)
	fw, _ := w.Create(member)
	fw.Write([]byte(content))
	w.Close()
	f.Close()
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDetect(t *testing.T) {
	pipe := New(Config{})

	tests := []struct {
		path   string
		format Format
	}{
		{"doc.docx", FormatDocx},
		{"doc.odt", FormatODT},
		{"doc.pdf", FormatPDF},
		{"doc.md", FormatMD},
		{"doc.txt", FormatTXT},
		{"doc.html", FormatHTML},
		{"doc.htm", FormatHTML},
		{"DOC.MARKDOWN", FormatMD},
	}

	for _, tt := range tests {
		f, err := pipe.Detect(tt.path)
		if err != nil {
			t.Errorf("Detect(%q): %v", tt.path, err)
			continue
		}
		if f != tt.format {
			t.Errorf("Detect(%q) = %q, want %q", tt.path, f, tt.format)
		}
	}

	if _, err := pipe.Detect("file.xyz"); err == nil {
		t.Error("expected error for unsupported format")
	}
}

func TestDetect_ExtensionFilter(t *testing.T) {
	pipe := New(Config{Extensions: []string{".txt"}})
	if !pipe.Supported("notes.TXT") {
		t.Error("expected .txt to be accepted")
	}
	if pipe.Supported("notes.pdf") {
		t.Error("expected .pdf to be rejected by the extension filter")
	}
}

func TestExtractText(t *testing.T) {
	path := writeFile(t, "vocab.txt", "restaurant - a place where you can eat\r\n\r\n  kitchen - the room where food is cooked  \n\n\n")

	doc, err := New(Config{}).Extract(context.Background(), path)
	if err != nil {
		t.Fatal(err)
	}
	if doc.Format != FormatTXT || !doc.OK() {
		t.Fatalf("format=%s status=%s", doc.Format, doc.Status)
	}
	if len(doc.Paragraphs) != 2 {
		t.Fatalf("expected 2 paragraphs, got %d: %q", len(doc.Paragraphs), doc.Paragraphs)
	}
	if doc.Paragraphs[1] != "kitchen - the room where food is cooked" {
		t.Errorf("paragraph[1] = %q", doc.Paragraphs[1])
	}
	if doc.Title != "restaurant - a place where you can eat" {
		t.Errorf("title = %q", doc.Title)
	}
	if strings.Contains(doc.Text, "\r") {
		t.Error("carriage returns should be normalized")
	}
}

func TestExtractMarkdown(t *testing.T) {
	content := `# Unit 3 Vocabulary

restaurant - a place where you can eat
menu - a list of dishes

| Word | Definition |
|------|------------|
| kitchen | the room where food is cooked |
| waiter | a person who serves food |

## Notes

Learn the words.
`
	path := writeFile(t, "unit3.md", content)

	doc, err := New(Config{}).Extract(context.Background(), path)
	if err != nil {
		t.Fatal(err)
	}
	if doc.Title != "Unit 3 Vocabulary" {
		t.Errorf("title = %q", doc.Title)
	}
	want := []string{
		"Unit 3 Vocabulary",
		"restaurant - a place where you can eat\nmenu - a list of dishes",
		"Notes",
		"Learn the words.",
	}
	if len(doc.Paragraphs) != len(want) {
		t.Fatalf("paragraphs = %q", doc.Paragraphs)
	}
	for i := range want {
		if doc.Paragraphs[i] != want[i] {
			t.Errorf("paragraph[%d] = %q, want %q", i, doc.Paragraphs[i], want[i])
		}
	}
	if len(doc.Tables) != 1 {
		t.Fatalf("expected 1 table, got %d", len(doc.Tables))
	}
	rows := doc.Tables[0].Rows
	if len(rows) != 3 || rows[1][0] != "kitchen" || rows[2][1] != "a person who serves food" {
		t.Errorf("rows = %q", rows)
	}
}

func TestExtractDocx(t *testing.T) {
	path := filepath.Join(t.TempDir(), "grammar.docx")
	writeZip(t, path, "word/document.xml", `<?xml version="1.0" encoding="UTF-8"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
<w:body>
<w:p><w:pPr><w:pStyle w:val="Heading1"/></w:pPr><w:r><w:t>Present Simple</w:t></w:r></w:p>
<w:p><w:r><w:t>We use it for </w:t></w:r><w:r><w:t>habits.</w:t></w:r></w:p>
<w:tbl>
<w:tr><w:tc><w:p><w:r><w:t>Word</w:t></w:r></w:p></w:tc><w:tc><w:p><w:r><w:t>Definition</w:t></w:r></w:p></w:tc></w:tr>
<w:tr><w:tc><w:p><w:r><w:t>menu</w:t></w:r></w:p></w:tc><w:tc><w:p><w:r><w:t>a list of</w:t></w:r></w:p><w:p><w:r><w:t>dishes</w:t></w:r></w:p></w:tc></w:tr>
</w:tbl>
<w:p><w:r><w:t>More content here.</w:t></w:r></w:p>
</w:body>
</w:document>`)

	doc, err := New(Config{}).Extract(context.Background(), path)
	if err != nil {
		t.Fatal(err)
	}
	if doc.Title != "Present Simple" {
		t.Fatalf("expected title 'Present Simple', got %q", doc.Title)
	}
	if len(doc.Paragraphs) != 3 {
		t.Fatalf("table cells must not leak into paragraphs: %q", doc.Paragraphs)
	}
	if doc.Paragraphs[1] != "We use it for habits." {
		t.Errorf("runs should concatenate, got %q", doc.Paragraphs[1])
	}
	if len(doc.Tables) != 1 || len(doc.Tables[0].Rows) != 2 {
		t.Fatalf("tables = %+v", doc.Tables)
	}
	if got := doc.Tables[0].Rows[1]; got[0] != "menu" || got[1] != "a list of dishes" {
		t.Errorf("row = %q", got)
	}
}

func TestExtractODT(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reading.odt")
	writeZip(t, path, "content.xml", `<?xml version="1.0" encoding="UTF-8"?>
<office:document-content xmlns:office="urn:oasis:names:tc:opendocument:xmlns:office:1.0"
  xmlns:text="urn:oasis:names:tc:opendocument:xmlns:text:1.0"
  xmlns:table="urn:oasis:names:tc:opendocument:xmlns:table:1.0">
<office:body>
<office:text>
<text:h text:outline-level="1">ODT Title</text:h>
<text:p>First paragraph.</text:p>
<table:table>
<table:table-row><table:table-cell><text:p>Word</text:p></table:table-cell><table:table-cell><text:p>Definition</text:p></table:table-cell></table:table-row>
<table:table-row><table:table-cell><text:p>bus</text:p></table:table-cell><table:table-cell><text:p>a large road vehicle</text:p></table:table-cell></table:table-row>
</table:table>
<text:p>Second paragraph.</text:p>
</office:text>
</office:body>
</office:document-content>`)

	doc, err := New(Config{}).Extract(context.Background(), path)
	if err != nil {
		t.Fatal(err)
	}
	if doc.Title != "ODT Title" {
		t.Fatalf("expected title 'ODT Title', got %q", doc.Title)
	}
	if len(doc.Paragraphs) != 3 {
		t.Fatalf("paragraphs = %q", doc.Paragraphs)
	}
	if len(doc.Tables) != 1 || doc.Tables[0].Rows[1][1] != "a large road vehicle" {
		t.Fatalf("tables = %+v", doc.Tables)
	}
}

func TestExtractHTML(t *testing.T) {
	path := writeFile(t, "listening.html", `<!DOCTYPE html>
<html><head><title>HTML Test</title></head>
<body>
<nav>Home | Units</nav>
<article>
<h1>At the station</h1>
<p>"Where is the train?" asked Tom. "It is late," said Ann.</p>
<ul><li>Listen twice.</li></ul>
<table>
<tr><th>Word</th><th>Definition</th></tr>
<tr><td>platform</td><td>the place where you get on a train</td></tr>
</table>
<script>alert("x")</script>
</article>
</body></html>`)

	doc, err := New(Config{}).Extract(context.Background(), path)
	if err != nil {
		t.Fatal(err)
	}
	if doc.Title != "HTML Test" {
		t.Fatalf("expected title 'HTML Test', got %q", doc.Title)
	}
	want := []string{"At the station", `"Where is the train?" asked Tom. "It is late," said Ann.`, "Listen twice."}
	if len(doc.Paragraphs) != len(want) {
		t.Fatalf("paragraphs = %q", doc.Paragraphs)
	}
	for i := range want {
		if doc.Paragraphs[i] != want[i] {
			t.Errorf("paragraph[%d] = %q, want %q", i, doc.Paragraphs[i], want[i])
		}
	}
	if len(doc.Tables) != 1 || doc.Tables[0].Rows[1][0] != "platform" {
		t.Fatalf("tables = %+v", doc.Tables)
	}
	if strings.Contains(doc.Text, "alert") || strings.Contains(doc.Markdown, "alert") {
		t.Error("script content must be dropped")
	}
	if strings.Contains(doc.Text, "Home | Units") {
		t.Error("navigation must be dropped")
	}
	if !strings.Contains(doc.Markdown, "# At the station") {
		t.Errorf("markdown = %q", doc.Markdown)
	}
}

func TestSupportedFormats(t *testing.T) {
	formats := SupportedFormats()
	if len(formats) != 6 {
		t.Fatalf("expected 6 formats, got %d: %v", len(formats), formats)
	}
}

func TestConvert_FailureIsRecorded(t *testing.T) {
	dir := t.TempDir()
	pipe := New(Config{})

	doc := pipe.Convert(context.Background(), filepath.Join(dir, "missing.txt"))
	if doc.OK() || doc.Status != StatusFailed {
		t.Fatalf("status = %s", doc.Status)
	}
	if doc.Filename != "missing.txt" || doc.Error == "" {
		t.Errorf("doc = %+v", doc)
	}

	broken := filepath.Join(dir, "broken.docx")
	os.WriteFile(broken, []byte("not a zip"), 0644)
	if doc := pipe.Convert(context.Background(), broken); doc.OK() {
		t.Error("corrupt docx should fail")
	}
}

func TestExtract_Errors(t *testing.T) {
	path := writeFile(t, "big.txt", strings.Repeat("x", 2048))

	_, err := New(Config{MaxFileSize: 1024}).Extract(context.Background(), path)
	if !errors.Is(err, ErrConversion) || !strings.Contains(err.Error(), "too large") {
		t.Errorf("expected size error, got %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := New(Config{}).Extract(ctx, path); !errors.Is(err, ErrConversion) {
		t.Errorf("expected ErrConversion on cancelled context, got %v", err)
	}
}

func TestFromText(t *testing.T) {
	doc := FromText("inline", "Present Simple:\nWe use it for habits.\n\nPast Simple:\nFinished actions.")
	if !doc.OK() || doc.Filename != "inline" {
		t.Fatalf("doc = %+v", doc)
	}
	if len(doc.Paragraphs) != 2 {
		t.Errorf("paragraphs = %q", doc.Paragraphs)
	}
	if doc.Tables == nil {
		t.Error("tables should be an empty slice, not nil")
	}
}

// --- HTML hidden text filtering tests ---

func TestHTML_HiddenText(t *testing.T) {
	// WHAT: Invisibly styled elements are excluded.
	// WHY: Hidden text would be classified as learning content.
	tests := []struct {
		name, markup, hidden string
	}{
		{"display", `<div style="display:none">secret hidden text</div>`, "secret hidden text"},
		{"visibility", `<span style="visibility:hidden">hidden payload</span>`, "hidden payload"},
		{"font-size", `<span style="font-size:0px">tiny invisible</span>`, "tiny invisible"},
		{"opacity", `<p style="opacity:0">ghost text</p>`, "ghost text"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, "hidden.html", "<!DOCTYPE html><html><body>\n<p>Visible text here</p>\n"+tt.markup+"\n</body></html>")
			doc, err := New(Config{}).Extract(context.Background(), path)
			if err != nil {
				t.Fatal(err)
			}
			if strings.Contains(doc.Text, tt.hidden) {
				t.Errorf("%s text should be excluded", tt.name)
			}
			if !strings.Contains(doc.Text, "Visible text") {
				t.Error("visible text should be present")
			}
		})
	}
}

func TestHTML_VisibleTextKept(t *testing.T) {
	path := writeFile(t, "keep.html", `<!DOCTYPE html><html><body>
<h1>Title</h1>
<p style="color:red">Styled but visible</p>
<p style="opacity:0.8">Normal paragraph</p>
</body></html>`)

	doc, err := New(Config{}).Extract(context.Background(), path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(doc.Text, "Styled but visible") {
		t.Error("visible styled text should be kept")
	}
	if !strings.Contains(doc.Text, "Normal paragraph") {
		t.Error("partially transparent text should be kept")
	}
}

// --- XML bomb tests ---

func nestedXML(open, close, prefix, suffix, inner string, depth int) string {
	var b strings.Builder
	b.WriteString(prefix)
	for i := 0; i < depth; i++ {
		b.WriteString(open)
	}
	b.WriteString(inner)
	for i := 0; i < depth; i++ {
		b.WriteString(close)
	}
	b.WriteString(suffix)
	return b.String()
}

func TestDOCX_XMLBomb(t *testing.T) {
	// WHAT: DOCX with deeply nested XML returns depth error.
	// WHY: XML bomb defense.
	path := filepath.Join(t.TempDir(), "bomb.docx")
	writeZip(t, path, "word/document.xml", nestedXML("<w:p>", "</w:p>",
		`<?xml version="1.0" encoding="UTF-8"?><w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>`,
		"</w:body></w:document>", "<w:r><w:t>deep</w:t></w:r>", 300))

	_, err := extractDocx(path)
	if err == nil {
		t.Fatal("expected error for deeply nested XML")
	}
	if !strings.Contains(err.Error(), "nesting depth") {
		t.Errorf("expected 'nesting depth' error, got: %v", err)
	}
}

func TestODT_XMLBomb(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bomb.odt")
	writeZip(t, path, "content.xml", nestedXML("<text:p>", "</text:p>",
		`<?xml version="1.0" encoding="UTF-8"?><office:document-content xmlns:office="urn:oasis:names:tc:opendocument:xmlns:office:1.0" xmlns:text="urn:oasis:names:tc:opendocument:xmlns:text:1.0"><office:body><office:text>`,
		"</office:text></office:body></office:document-content>", "deep text", 300))

	_, err := extractODT(path)
	if err == nil {
		t.Fatal("expected error for deeply nested XML")
	}
	if !strings.Contains(err.Error(), "nesting depth") {
		t.Errorf("expected 'nesting depth' error, got: %v", err)
	}
}
