package feed

import (
	"bytes"
	"cmp"
	"encoding/xml"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/lysyi3m/donation-relay/app/donation"
)

const dateLayout = "2006-01-02"

type Options struct {
	Title       string
	Link        string
	Description string
	SelfLink    string
	Version     string
}

// Generator renders stored donations as an RSS 2.0 document, newest first.
type Generator struct {
	opts     Options
	location *time.Location
}

func NewGenerator(opts Options, location *time.Location) *Generator {
	if location == nil {
		location = time.UTC
	}
	return &Generator{opts: opts, location: location}
}

func (g *Generator) Run(records []donation.Record) (string, error) {
	var buf bytes.Buffer

	buf.WriteString(`<?xml version="1.0" encoding="UTF-8"?>`)
	buf.WriteString("\n")
	buf.WriteString(`<rss version="2.0" xmlns:atom="http://www.w3.org/2005/Atom">`)
	buf.WriteString("\n  <channel>\n")

	g.writeElement(&buf, "title", cmp.Or(g.opts.Title, "Donations"), 4)
	g.writeElement(&buf, "link", g.opts.Link, 4)
	g.writeElement(&buf, "description", cmp.Or(g.opts.Description, "Donations recorded by Donation Relay"), 4)

	if g.opts.SelfLink != "" {
		buf.WriteString(fmt.Sprintf("    <atom:link href=\"%s\" rel=\"self\" type=\"application/rss+xml\" />\n",
			html.EscapeString(g.opts.SelfLink)))
	}

	lastBuildDate := time.Now().In(g.location)
	if len(records) > 0 {
		if published, ok := g.publishedAt(records[len(records)-1]); ok {
			lastBuildDate = published
		}
	}

	g.writeElement(&buf, "lastBuildDate", lastBuildDate.Format(time.RFC1123Z), 4)
	g.writeElement(&buf, "generator", fmt.Sprintf("Donation-Relay/%s", cmp.Or(g.opts.Version, "dev")), 4)

	for i := len(records) - 1; i >= 0; i-- {
		g.writeItem(&buf, records[i])
	}

	buf.WriteString("  </channel>\n</rss>")

	return buf.String(), nil
}

func (g *Generator) writeItem(buf *bytes.Buffer, record donation.Record) {
	buf.WriteString("    <item>\n")

	buf.WriteString("      <guid isPermaLink=\"false\">")
	xml.EscapeText(buf, []byte(record.Fingerprint))
	buf.WriteString("</guid>\n")

	g.writeElement(buf, "title", fmt.Sprintf("%s to %s", record.Amount, record.Grantee), 6)

	if isURL(record.Link) {
		g.writeElement(buf, "link", record.Link, 6)
	}

	g.writeElement(buf, "description", cmp.Or(record.Why, "No description available"), 6)

	if published, ok := g.publishedAt(record); ok {
		g.writeElement(buf, "pubDate", published.Format(time.RFC1123Z), 6)
	}

	g.writeElement(buf, "category", record.Category, 6)

	buf.WriteString("    </item>\n")
}

// publishedAt prefers the donation date and falls back to when it was first seen.
func (g *Generator) publishedAt(record donation.Record) (time.Time, bool) {
	for _, value := range []string{record.Date, record.DateSeen} {
		if t, err := time.ParseInLocation(dateLayout, value, g.location); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func (g *Generator) writeElement(buf *bytes.Buffer, tag, content string, indent int) {
	if content == "" {
		return
	}

	for i := 0; i < indent; i++ {
		buf.WriteByte(' ')
	}

	buf.WriteString("<")
	buf.WriteString(tag)
	buf.WriteString(">")
	xml.EscapeText(buf, []byte(content))
	buf.WriteString("</")
	buf.WriteString(tag)
	buf.WriteString(">\n")
}

func isURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}
