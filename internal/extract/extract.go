// Package extract pulls the bibliographic fields out of a registry document page.
//
// Structured fields (the application date and the classification spans) are
// located with goquery tree queries. Applicant and inventor blocks have no
// stable tag structure, so they are cut out of the rendered paragraph markup by
// their numbered marker tokens and split on line breaks. Every field is
// optional; a miss yields patent.AbsenceMarker or an empty list.
package extract

import (
	"html"
	"regexp"
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"
	xhtml "golang.org/x/net/html"

	"github.com/JakeFAU/rupat-crawler/internal/patent"
)

const (
	dateMarker      = "(22)"
	industrySelect  = "span.i"
	lineBreak       = "<br/>"
	paragraphJoiner = ", "
)

var (
	dateSpanPattern   = regexp.MustCompile(`\(22\).*?</b>`)
	applicantsPattern = regexp.MustCompile(`\(71\).*?\(72\)`)
	authorsPattern    = regexp.MustCompile(`\(72\).*?\(73\)`)
	countryPattern    = regexp.MustCompile(`\([A-Z]{2}\)`)
	tagPattern        = regexp.MustCompile(`<[^>]*>`)
)

// Extractor turns page markup into patent.Fields. It holds no state and is
// safe for concurrent use.
type Extractor struct{}

// New returns an Extractor.
func New() *Extractor {
	return &Extractor{}
}

// Extract parses markup and returns the five fields. It never fails: markup the
// parser cannot read produces patent.Missing().
func (e *Extractor) Extract(markup string) patent.Fields {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return patent.Missing()
	}

	fields := patent.Fields{
		ApplicationDate: applicationDate(doc),
		IndustryCodes:   industryCodes(doc),
	}

	text := paragraphText(doc)
	fields.Applicants = applicants(text)
	fields.Authors = authors(text)
	fields.AuthorCountries = authorCountries(fields.Authors)
	return fields
}

func applicationDate(doc *goquery.Document) string {
	if date := applicationDateFromTree(doc); date != "" {
		return date
	}
	if date := applicationDateFromMarkup(doc); date != "" {
		return date
	}
	return patent.AbsenceMarker
}

// applicationDateFromTree reads the text that follows the application number
// link inside the bold part of the (22) paragraph:
//
//	(21)(22) Заявка: <b><a href="...">2017101234</a>, 12.01.2017</b>
func applicationDateFromTree(doc *goquery.Document) string {
	var date string
	doc.Find("p").EachWithBreak(func(_ int, p *goquery.Selection) bool {
		if !strings.Contains(p.Text(), dateMarker) {
			return true
		}
		p.Find("b").EachWithBreak(func(_ int, b *goquery.Selection) bool {
			link := b.Find("a").First()
			if link.Length() == 0 {
				return true
			}
			date = cleanDate(textAfter(link.Nodes[0]))
			return date == ""
		})
		return false
	})
	return date
}

func applicationDateFromMarkup(doc *goquery.Document) string {
	rendered, err := doc.Html()
	if err != nil {
		return ""
	}
	span := dateSpanPattern.FindString(rendered)
	if span == "" {
		return ""
	}
	_, rest, ok := strings.Cut(span, "a>, ")
	if !ok {
		return ""
	}
	rest, _, _ = strings.Cut(rest, "</b")
	return cleanDate(rest)
}

func cleanDate(raw string) string {
	return strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(raw), ","))
}

func industryCodes(doc *goquery.Document) []string {
	codes := []string{}
	doc.Find(industrySelect).Each(func(_ int, s *goquery.Selection) {
		code := collapseSpace(strings.Trim(strings.TrimSpace(s.Text()), "<> "))
		if code == "" {
			return
		}
		codes = appendUnique(codes, code)
	})
	return codes
}

// paragraphText renders every <p> element and joins them into one line.
func paragraphText(doc *goquery.Document) string {
	var parts []string
	doc.Find("p").Each(func(_ int, s *goquery.Selection) {
		rendered, err := goquery.OuterHtml(s)
		if err != nil {
			return
		}
		parts = append(parts, rendered)
	})
	joined := strings.Join(parts, paragraphJoiner)
	return strings.NewReplacer("\r", "", "\n", "").Replace(joined)
}

func applicants(text string) []string {
	span := applicantsPattern.FindString(text)
	if span == "" {
		return []string{patent.AbsenceMarker}
	}
	return entries(span, "(72)")
}

func authors(text string) []string {
	span := authorsPattern.FindString(text)
	if span == "" {
		return []string{patent.AbsenceMarker}
	}
	return entries(span, "(73)")
}

// authorCountries takes the first two-letter (XX) token of each author entry.
// Codes are not de-duplicated: the tally counts every occurrence.
func authorCountries(authorList []string) []string {
	countries := []string{}
	if patent.IsAbsent(authorList) {
		return countries
	}
	for _, author := range authorList {
		token := countryPattern.FindString(author)
		if token == "" {
			continue
		}
		countries = append(countries, strings.Trim(token, "() "))
	}
	return countries
}

// entries splits a marker span such as "(72) Автор(ы):<br/>A<br/>B</p>, <p>(73)"
// into its distinct line entries. The first line starts with the field label,
// which is dropped up to its colon. The last line runs into the markup of the
// next field and is cut at its first closing tag. Lines with no letter or
// digit left, such as "..." or a stray comma, are debris and dropped.
func entries(span, closing string) []string {
	segments := strings.Split(strings.TrimSuffix(span, closing), lineBreak)
	last := len(segments) - 1
	if before, _, found := strings.Cut(segments[last], "</"); found {
		segments[last] = before
	}

	out := []string{}
	for i, seg := range segments {
		seg = cleanSegment(seg)
		if i == 0 {
			seg = stripLabel(seg)
		}
		if !hasWordChar(seg) {
			continue
		}
		out = appendUnique(out, seg)
	}
	if len(out) == 0 {
		return []string{patent.AbsenceMarker}
	}
	return out
}

// stripLabel removes "(72) Автор(ы):" style prefixes. A first line without a
// colon is all label.
func stripLabel(seg string) string {
	_, rest, found := strings.Cut(seg, ":")
	if !found {
		return ""
	}
	return strings.TrimSpace(rest)
}

func cleanSegment(seg string) string {
	seg = tagPattern.ReplaceAllString(seg, "")
	seg = html.UnescapeString(seg)
	seg = collapseSpace(seg)
	return strings.TrimSpace(strings.TrimRight(seg, ","))
}

func hasWordChar(s string) bool {
	return strings.IndexFunc(s, func(r rune) bool {
		return unicode.IsLetter(r) || unicode.IsDigit(r)
	}) >= 0
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func appendUnique(list []string, value string) []string {
	for _, existing := range list {
		if existing == value {
			return list
		}
	}
	return append(list, value)
}

// textAfter concatenates the text of every sibling node following n.
func textAfter(n *xhtml.Node) string {
	var sb strings.Builder
	for sib := n.NextSibling; sib != nil; sib = sib.NextSibling {
		writeText(&sb, sib)
	}
	return sb.String()
}

func writeText(sb *strings.Builder, n *xhtml.Node) {
	if n.Type == xhtml.TextNode {
		sb.WriteString(n.Data)
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		writeText(sb, c)
	}
}
