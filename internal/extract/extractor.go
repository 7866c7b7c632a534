// Package extract pulls readable plain text out of SCO HTML documents.
package extract

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/hyperjump/mokuji/pkg/utils"
	"golang.org/x/net/html"
)

// ErrFileNotFound is returned when the content file does not exist.
var ErrFileNotFound = errors.New("content file not found")

// nonContentSelector matches markup that never contributes readable text.
// Matched elements are removed with their descendants before text is read.
const nonContentSelector = "script, style, noscript, iframe, head"

// Extractor extracts plain text from HTML content files.
type Extractor struct{}

// NewExtractor returns a new Extractor.
func NewExtractor() *Extractor {
	return &Extractor{}
}

// ExtractFile reads the HTML file at path and returns its readable text.
// A missing file yields ErrFileNotFound; other I/O errors are wrapped.
func (e *Extractor) ExtractFile(path string) (string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("%w: %s", ErrFileNotFound, path)
		}
		return "", fmt.Errorf("read content file: %w", err)
	}
	return e.ExtractHTML(content)
}

// ExtractHTML parses content as HTML (tolerant of malformed markup), drops
// non-content elements, and returns the remaining text nodes in document
// order with whitespace runs collapsed to single spaces. An all-whitespace
// document yields the empty string, which is a valid success.
func (e *Extractor) ExtractHTML(content []byte) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(content))
	if err != nil {
		return "", fmt.Errorf("parse HTML: %w", err)
	}
	doc.Find(nonContentSelector).Remove()
	sel := doc.Find("body")
	if sel.Length() == 0 {
		sel = doc.Selection
	}
	var parts []string
	for _, n := range sel.Nodes {
		collectText(n, &parts)
	}
	return utils.CollapseWhitespace(strings.Join(parts, " ")), nil
}

// collectText gathers non-empty text node data under n in document order.
// Joining the nodes with a space keeps element boundaries as word
// boundaries, so "<h1>Title</h1><p>Body</p>" does not fuse into "TitleBody";
// CollapseWhitespace squeezes the extras back out.
func collectText(n *html.Node, parts *[]string) {
	if n.Type == html.TextNode {
		if t := strings.TrimSpace(n.Data); t != "" {
			*parts = append(*parts, t)
		}
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectText(c, parts)
	}
}
