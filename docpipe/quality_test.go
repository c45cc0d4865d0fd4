package docpipe

import "testing"

func TestPrintableRatio(t *testing.T) {
	if r := printableRatio("This is a normal sentence with standard characters."); r < 0.95 {
		t.Errorf("normal text ratio = %f, want > 0.95", r)
	}
	// PUA and control chars come from CID fonts without ToUnicode maps.
	garbage := "abcdefghi\x01\x02\x03\x04\x05"
	if r := printableRatio(garbage); r >= 0.85 {
		t.Errorf("garbage ratio = %f, want < 0.85", r)
	}
	if r := printableRatio(""); r != 1 {
		t.Errorf("empty ratio = %f", r)
	}
}

func TestWordlikeRatio(t *testing.T) {
	if r := wordlikeRatio("This is a normal sentence with standard words inside"); r < 0.70 {
		t.Errorf("wordlike ratio = %f, want > 0.70", r)
	}
	if r := wordlikeRatio("a b c d e f g h i j k l"); r >= 0.40 {
		t.Errorf("single-char ratio = %f, want < 0.40", r)
	}
}

func TestMeasureQuality(t *testing.T) {
	pages := []Page{{Number: 1, Text: "Reading Text one about the weather"}}
	q := measureQuality(pages, 2, false)
	if q.EmptyPages != 1 {
		t.Errorf("EmptyPages = %d", q.EmptyPages)
	}
	if q.CharsPerPage != 17 {
		t.Errorf("CharsPerPage = %f", q.CharsPerPage)
	}
	if q.NeedsOCR() {
		t.Error("clean text without images should not need OCR")
	}
}

func TestNeedsOCR(t *testing.T) {
	q := &ExtractionQuality{CharsPerPage: 30, HasImageStreams: true, PrintableRatio: 0.9}
	if !q.NeedsOCR() {
		t.Error("expected NeedsOCR=true for low chars + images")
	}
}
