// Package export renders a document as a standalone HTML page, Markdown or
// plain text.
package export

import (
	"fmt"
	"regexp"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

type Format string

const (
	HTML     Format = "html"
	Markdown Format = "md"
	Text     Format = "txt"
)

func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "html", "htm":
		return HTML, nil
	case "md", "markdown":
		return Markdown, nil
	case "txt", "text":
		return Text, nil
	}
	return "", fmt.Errorf("unknown export format %q (want html, md or txt)", s)
}

func Render(f Format, title, content string) (string, error) {
	switch f {
	case HTML:
		return Page(title, content), nil
	case Markdown:
		return ToMarkdown(content)
	case Text:
		return ToText(content)
	}
	return "", fmt.Errorf("unknown export format %q", f)
}

var unsafeFilename = regexp.MustCompile(`[^a-zA-Z0-9]`)

// Filename turns title into a file name: anything outside [a-z0-9] becomes
// an underscore.
func Filename(title string, f Format) string {
	return strings.ToLower(unsafeFilename.ReplaceAllString(title, "_")) + "." + string(f)
}

var (
	tagPattern  = regexp.MustCompile(`</?[^>]+(>|$)`)
	blankLines  = regexp.MustCompile(`(?m)^\s*[\r\n]`)
	pageElement = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>%s</title>
</head>
<body>
%s
</body>
</html>`
)

// Page wraps content in a full HTML document with one tag per line.
func Page(title, content string) string {
	body := tagPattern.ReplaceAllStringFunc(content, func(tag string) string {
		return "\n" + tag + "\n"
	})
	body = strings.TrimSpace(blankLines.ReplaceAllString(body, ""))
	return fmt.Sprintf(pageElement, html.EscapeString(title), body)
}

func ToMarkdown(content string) (string, error) {
	converter := md.NewConverter("", true, &md.Options{
		HeadingStyle:   "atx",
		CodeBlockStyle: "fenced",
		EmDelimiter:    "*",
	})
	converter.AddRules(tableRules()...)
	return converter.ConvertString(content)
}

// tableRules lay tables out as pipe tables. Cell alignment comes from the
// text-align style the editor writes.
func tableRules() []md.Rule {
	return []md.Rule{
		{
			Filter: []string{"th", "td"},
			Replacement: func(content string, selec *goquery.Selection, _ *md.Options) *string {
				content = strings.TrimSpace(strings.ReplaceAll(content, "\n", " "))
				switch cellAlignment(selec) {
				case "center":
					return md.String(" :" + content + ": |")
				case "right":
					return md.String(" " + content + ": |")
				}
				return md.String(" " + content + " |")
			},
		},
		{
			Filter: []string{"tr"},
			Replacement: func(content string, selec *goquery.Selection, _ *md.Options) *string {
				row := "|" + strings.TrimRight(content, "\n") + "\n"
				if selec.Children().First().Is("th") && selec.Prev().Length() == 0 {
					row += headerSeparator(selec)
				}
				return md.String(row)
			},
		},
		{
			Filter: []string{"table"},
			Replacement: func(content string, _ *goquery.Selection, _ *md.Options) *string {
				return md.String("\n\n" + strings.Trim(content, "\n") + "\n\n")
			},
		},
		{
			Filter: []string{"thead", "tbody", "tfoot"},
			Replacement: func(content string, _ *goquery.Selection, _ *md.Options) *string {
				return md.String(content)
			},
		},
	}
}

func headerSeparator(row *goquery.Selection) string {
	var b strings.Builder
	b.WriteString("|")
	row.Children().Each(func(_ int, cell *goquery.Selection) {
		switch cellAlignment(cell) {
		case "center":
			b.WriteString(" :---: |")
		case "right":
			b.WriteString(" ---: |")
		default:
			b.WriteString(" --- |")
		}
	})
	b.WriteString("\n")
	return b.String()
}

func cellAlignment(cell *goquery.Selection) string {
	style, _ := cell.Attr("style")
	for _, decl := range strings.Split(style, ";") {
		name, value, ok := strings.Cut(decl, ":")
		if ok && strings.EqualFold(strings.TrimSpace(name), "text-align") {
			return strings.ToLower(strings.TrimSpace(value))
		}
	}
	return ""
}

// ToText returns the concatenated text nodes of content, markup dropped.
func ToText(content string) (string, error) {
	nodes, err := html.ParseFragment(strings.NewReader(content), &html.Node{
		Type:     html.ElementNode,
		Data:     "div",
		DataAtom: atom.Div,
	})
	if err != nil {
		return "", fmt.Errorf("parse content: %w", err)
	}
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, n := range nodes {
		walk(n)
	}
	return b.String(), nil
}
