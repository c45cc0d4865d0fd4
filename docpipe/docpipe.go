// Package docpipe converts document files into plain text, paragraphs and
// tables for the classification stage.
//
// Supported formats:
//   - .docx : Microsoft Word (archive/zip → word/document.xml, incl. w:tbl)
//   - .odt  : OpenDocument Text (archive/zip → content.xml, incl. table:table)
//   - .pdf  : PDF text extraction via pdfcpu content streams
//   - .md   : Markdown (headings, paragraphs, pipe tables)
//   - .txt  : Plain text (blank-line separated paragraphs)
//   - .html : HTML (sanitized, DOM walk for blocks and tables, Markdown rendition)
//
// Usage:
//
//	pipe := docpipe.New(docpipe.Config{})
//	doc := pipe.Convert(ctx, "/path/to/vocabulary.docx")
//	if !doc.OK() { log.Println(doc.Error) }
package docpipe

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// ErrConversion wraps every failure to turn a file into a Document.
var ErrConversion = errors.New("document conversion failed")

// Config configures the document pipeline.
type Config struct {
	// MaxFileSize is the maximum file size to process (default: 100 MB).
	MaxFileSize int64 `json:"max_file_size" yaml:"max_file_size"`

	// Extensions restricts the accepted extensions (".pdf", ".docx", ...).
	// Empty means every supported format.
	Extensions []string `json:"extensions" yaml:"extensions"`

	// Logger for debug/error messages.
	Logger *slog.Logger `json:"-" yaml:"-"`
}

func (c *Config) defaults() {
	if c.MaxFileSize <= 0 {
		c.MaxFileSize = 100 * 1024 * 1024
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Pipeline is the document conversion engine.
type Pipeline struct {
	cfg    Config
	logger *slog.Logger
	html   *htmlParser
}

// New creates a Pipeline with the given configuration.
func New(cfg Config) *Pipeline {
	cfg.defaults()
	return &Pipeline{
		cfg:    cfg,
		logger: cfg.Logger,
		html:   newHTMLParser(),
	}
}

// Detect returns the document format based on file extension.
func (p *Pipeline) Detect(path string) (Format, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if len(p.cfg.Extensions) > 0 && !containsFold(p.cfg.Extensions, ext) {
		return "", fmt.Errorf("format %q disabled by configuration", ext)
	}
	switch ext {
	case ".docx":
		return FormatDocx, nil
	case ".odt":
		return FormatODT, nil
	case ".pdf":
		return FormatPDF, nil
	case ".md", ".markdown":
		return FormatMD, nil
	case ".txt", ".text":
		return FormatTXT, nil
	case ".html", ".htm":
		return FormatHTML, nil
	default:
		return "", fmt.Errorf("unsupported format: %q", ext)
	}
}

// Supported reports whether path would be accepted by Detect.
func (p *Pipeline) Supported(path string) bool {
	_, err := p.Detect(path)
	return err == nil
}

// Convert never fails: conversion errors are recorded on the returned
// Document with StatusFailed so callers can keep going.
func (p *Pipeline) Convert(ctx context.Context, path string) *Document {
	doc, err := p.Extract(ctx, path)
	if err != nil {
		p.logger.Error("docpipe: conversion failed", "path", path, "error", err)
		return &Document{
			Filename: filepath.Base(path),
			Path:     path,
			Status:   StatusFailed,
			Error:    err.Error(),
		}
	}
	return doc
}

// Extract parses a document and returns its text, paragraphs and tables.
func (p *Pipeline) Extract(ctx context.Context, path string) (*Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConversion, err)
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("%w: stat %s: %v", ErrConversion, path, err)
	}
	if info.Size() > p.cfg.MaxFileSize {
		return nil, fmt.Errorf("%w: file too large: %d bytes (max %d)", ErrConversion, info.Size(), p.cfg.MaxFileSize)
	}

	format, err := p.Detect(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConversion, err)
	}

	p.logger.Debug("converting document", "path", path, "format", format)

	var res *parsed
	switch format {
	case FormatDocx:
		res, err = extractDocx(path)
	case FormatODT:
		res, err = extractODT(path)
	case FormatPDF:
		res, err = extractPDF(path)
	case FormatMD:
		res, err = extractMarkdown(path)
	case FormatTXT:
		res, err = extractText(path)
	case FormatHTML:
		res, err = p.html.extractFile(path)
	default:
		err = fmt.Errorf("no parser for format: %s", format)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s (%s): %v", ErrConversion, path, format, err)
	}

	doc := build(filepath.Base(path), res)
	doc.Path = path
	doc.Format = format
	doc.Size = info.Size()
	return doc, nil
}

// FromText builds a successful Document from inline text, splitting
// paragraphs on blank lines the way plain-text files are handled.
func FromText(name, text string) *Document {
	doc := build(name, parseText(text))
	doc.Format = FormatTXT
	doc.Size = int64(len(text))
	return doc
}

func build(name string, res *parsed) *Document {
	text := res.text
	if text == "" {
		text = strings.Join(res.blocks, "\n\n")
	}
	paragraphs := res.blocks
	if paragraphs == nil {
		paragraphs = []string{}
	}
	tables := res.tables
	if tables == nil {
		tables = []Table{}
	}
	return &Document{
		Filename:   name,
		Status:     StatusSuccess,
		Title:      res.title,
		Text:       text,
		Markdown:   res.md,
		Paragraphs: paragraphs,
		Tables:     tables,
		Pages:      res.pages,
		Quality:    res.quality,
	}
}

// SupportedFormats returns all supported format extensions.
func SupportedFormats() []string {
	return []string{"docx", "odt", "pdf", "md", "txt", "html"}
}

func containsFold(list []string, s string) bool {
	for _, v := range list {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}
