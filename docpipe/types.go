package docpipe

// Format identifies a document type.
type Format string

const (
	FormatDocx Format = "docx"
	FormatODT  Format = "odt"
	FormatPDF  Format = "pdf"
	FormatMD   Format = "md"
	FormatTXT  Format = "txt"
	FormatHTML Format = "html"
)

// Status is the outcome of converting one file.
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
)

// Table is a simple grid of cell strings. Row 0 is usually a header.
type Table struct {
	Rows [][]string `json:"rows"`
}

// Page is the text of one PDF page.
type Page struct {
	Number    int    `json:"page_number"`
	Text      string `json:"text"`
	WordCount int    `json:"word_count"`
}

// Document is a converted file: full text, ordered paragraphs and tables.
// A failed conversion keeps Filename, Path and Error and nothing else.
type Document struct {
	Filename   string             `json:"filename"`
	Path       string             `json:"file_path"`
	Format     Format             `json:"file_type,omitempty"`
	Size       int64              `json:"file_size"`
	Status     Status             `json:"status"`
	Error      string             `json:"error,omitempty"`
	Title      string             `json:"title,omitempty"`
	Text       string             `json:"full_text"`
	Markdown   string             `json:"markdown,omitempty"` // HTML only
	Paragraphs []string           `json:"paragraphs"`
	Tables     []Table            `json:"tables"`
	Pages      []Page             `json:"pages,omitempty"`
	Quality    *ExtractionQuality `json:"quality,omitempty"` // PDF only
}

// OK reports whether the conversion succeeded.
func (d *Document) OK() bool { return d.Status == StatusSuccess }

// parsed is what each format parser hands back to the pipeline.
type parsed struct {
	title   string
	blocks  []string // headings and paragraphs in reading order
	text    string   // full text override; built from blocks when empty
	md      string
	tables  []Table
	pages   []Page
	quality *ExtractionQuality
}
