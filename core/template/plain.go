package template

import (
	"regexp"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

var (
	blockTags = map[atom.Atom]bool{
		atom.P: true, atom.Div: true, atom.Br: true, atom.Li: true, atom.Ul: true, atom.Ol: true,
		atom.Tr: true, atom.Table: true, atom.H1: true, atom.H2: true, atom.H3: true, atom.H4: true,
		atom.H5: true, atom.H6: true, atom.Blockquote: true, atom.Hr: true, atom.Section: true,
		atom.Header: true, atom.Footer: true, atom.Pre: true,
	}
	skipTags = map[atom.Atom]bool{atom.Script: true, atom.Style: true, atom.Head: true}

	spaceRun   = regexp.MustCompile(`[ \t\f\r\x{00a0}]+`)
	blankLines = regexp.MustCompile(`\n{3,}`)
)

// PlainText derives a plain-text body from markup: block elements become
// line breaks, emphasis is unwrapped, links render as "text (href)" and any
// other tag is dropped.
func PlainText(markup string) string {
	z := html.NewTokenizer(strings.NewReader(markup))
	var (
		out      strings.Builder
		skip     int
		inAnchor bool
		href     string
		anchor   strings.Builder
	)
	write := func(s string) {
		if inAnchor {
			anchor.WriteString(s)
			return
		}
		out.WriteString(s)
	}
	closeAnchor := func() {
		if !inAnchor {
			return
		}
		inAnchor = false
		text := strings.TrimSpace(anchor.String())
		switch {
		case href == "" || href == text:
			out.WriteString(text)
		case text == "":
			out.WriteString(href)
		default:
			out.WriteString(text + " (" + href + ")")
		}
	}
	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			// io.EOF or malformed input: keep what was decoded so far,
			// including an unterminated link.
			closeAnchor()
			return normalize(out.String())
		case html.TextToken:
			if skip == 0 {
				write(string(z.Text()))
			}
		case html.StartTagToken, html.SelfClosingTagToken:
			tok := z.Token()
			switch {
			case skipTags[tok.DataAtom]:
				if tt == html.StartTagToken {
					skip++
				}
			case tok.DataAtom == atom.A:
				closeAnchor()
				inAnchor, href = true, attr(tok, "href")
				anchor.Reset()
			case tok.DataAtom == atom.Li:
				write("\n- ")
			case blockTags[tok.DataAtom]:
				write("\n")
			}
		case html.EndTagToken:
			tok := z.Token()
			switch {
			case skipTags[tok.DataAtom]:
				if skip > 0 {
					skip--
				}
			case tok.DataAtom == atom.A:
				closeAnchor()
			case tok.DataAtom == atom.Li:
			case blockTags[tok.DataAtom]:
				write("\n")
			}
		}
	}
}

func attr(tok html.Token, key string) string {
	for _, a := range tok.Attr {
		if a.Key == key {
			return strings.TrimSpace(a.Val)
		}
	}
	return ""
}

func normalize(s string) string {
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSpace(spaceRun.ReplaceAllString(l, " "))
	}
	s = strings.Join(lines, "\n")
	s = blankLines.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}
