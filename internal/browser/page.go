package browser

import (
	"fmt"

	"github.com/playwright-community/playwright-go"
)

// playwrightPage adapts a live playwright page to extract.Page.
type playwrightPage struct {
	page    playwright.Page
	timeout float64
}

func (p *playwrightPage) Text(selector string) (string, error) {
	loc := p.page.Locator(selector).First()
	if count, err := loc.Count(); err != nil || count == 0 {
		return "", err
	}
	return loc.InnerText(playwright.LocatorInnerTextOptions{
		Timeout: playwright.Float(p.timeout),
	})
}

func (p *playwrightPage) Attribute(selector, name string) (string, error) {
	loc := p.page.Locator(selector).First()
	if count, err := loc.Count(); err != nil || count == 0 {
		return "", err
	}
	return loc.GetAttribute(name, playwright.LocatorGetAttributeOptions{
		Timeout: playwright.Float(p.timeout),
	})
}

func (p *playwrightPage) Evaluate(script string) (string, error) {
	result, err := p.page.Evaluate(script)
	if err != nil {
		return "", err
	}

	switch v := result.(type) {
	case nil:
		return "", nil
	case string:
		return v, nil
	default:
		return fmt.Sprint(v), nil
	}
}

func (p *playwrightPage) URL() string {
	return p.page.URL()
}
