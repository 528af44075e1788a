package donation

import (
	"cmp"
	"fmt"
	"unicode/utf8"
)

const (
	DefaultAttribution = "\n#startsmall"
	DefaultMaxLength   = 255

	unknownDate = "None"
)

type candidate struct {
	name   string
	render func(Record) string
	fits   func(text string, maxLength int) bool
}

// Formatter renders donations as channel text, falling back to shorter
// renderings when the full one exceeds the length budget.
type Formatter struct {
	Attribution string
	candidates  []candidate
}

func NewFormatter(attribution string) *Formatter {
	f := &Formatter{Attribution: attribution}
	f.candidates = []candidate{
		{name: "full", render: f.full, fits: withinLimit},
		{name: "medium", render: f.medium, fits: withinLimit},
		{name: "minimal", render: f.minimal, fits: always},
	}
	return f
}

// Render returns the first candidate rendering that fits maxLength. The minimal
// rendering is returned as-is even when it is still too long.
func (f *Formatter) Render(record Record, maxLength int) string {
	text, _ := f.render(record, maxLength)
	return text
}

// RenderLevel is Render that also reports which rendering was chosen.
func (f *Formatter) RenderLevel(record Record, maxLength int) (string, string) {
	return f.render(record, maxLength)
}

func (f *Formatter) render(record Record, maxLength int) (string, string) {
	var text string
	for _, c := range f.candidates {
		text = c.render(record)
		if c.fits(text, maxLength) {
			return text, c.name
		}
	}
	return text, f.candidates[len(f.candidates)-1].name
}

func (f *Formatter) full(r Record) string {
	return fmt.Sprintf("Date: %s\nAmount: %s\nCategory: %s\nGrantee: %s\nLink: %s%s",
		displayDate(r.Date), r.Amount, r.Category, r.Grantee, r.Link, f.Attribution)
}

func (f *Formatter) medium(r Record) string {
	return fmt.Sprintf("Date: %s\nAmount: %s\nGrantee: %s", displayDate(r.Date), r.Amount, r.Grantee)
}

func (f *Formatter) minimal(r Record) string {
	return fmt.Sprintf("Amount: %s\nGrantee: %s", r.Amount, r.Grantee)
}

func displayDate(date string) string {
	return cmp.Or(date, unknownDate)
}

func withinLimit(text string, maxLength int) bool {
	return utf8.RuneCountInString(text) <= maxLength
}

func always(string, int) bool {
	return true
}
