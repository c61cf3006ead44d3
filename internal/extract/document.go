package extract

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// ErrScriptUnsupported is returned by DocumentPage, which has no JS engine.
var ErrScriptUnsupported = errors.New("scripts are not supported on static documents")

// DocumentPage runs rules against static HTML, e.g. a page saved from a
// browser session. Script rules never match.
type DocumentPage struct {
	doc *goquery.Document
	url string
}

func NewDocumentPage(r io.Reader, url string) (*DocumentPage, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}
	return &DocumentPage{doc: doc, url: url}, nil
}

func NewDocumentPageFromString(html, url string) (*DocumentPage, error) {
	return NewDocumentPage(strings.NewReader(html), url)
}

func (p *DocumentPage) Text(selector string) (string, error) {
	sel := p.doc.Find(selector).First()
	if sel.Length() == 0 {
		return "", nil
	}
	return sel.Text(), nil
}

func (p *DocumentPage) Attribute(selector, name string) (string, error) {
	value, _ := p.doc.Find(selector).First().Attr(name)
	return value, nil
}

func (p *DocumentPage) Evaluate(string) (string, error) {
	return "", ErrScriptUnsupported
}

func (p *DocumentPage) URL() string {
	return p.url
}
