package transform

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/muesli/reflow/truncate"

	"github.com/h0rv/ghp-dashboard/internal/domain"
)

// SanitizeOptions controls Sanitize.
type SanitizeOptions struct {
	MaxBodyWidth int  // Bodies wider than this are cut with an ellipsis; 0 disables
	RedactEmails bool // Replace e-mail addresses in titles and bodies
}

// DefaultSanitizeOptions suits a public wall display.
func DefaultSanitizeOptions() SanitizeOptions {
	return SanitizeOptions{MaxBodyWidth: 500, RedactEmails: true}
}

const redactedEmail = "[email]"

var emailPattern = regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`)

// Sanitize returns a copy of p that is safe to show publicly.
func Sanitize(p domain.Project, opts SanitizeOptions) domain.Project {
	out := p
	out.Title = sanitizeText(p.Title, opts)
	out.Description = sanitizeText(p.Description, opts)

	out.Items = make([]domain.Item, len(p.Items))
	for i, item := range p.Items {
		item.Title = sanitizeText(item.Title, opts)
		item.Body = sanitizeText(item.Body, opts)
		if opts.MaxBodyWidth > 0 {
			item.Body = truncate.StringWithTail(item.Body, uint(opts.MaxBodyWidth), "…")
		}
		out.Items[i] = item
	}
	return out
}

func sanitizeText(s string, opts SanitizeOptions) string {
	s = stripControl(s)
	if opts.RedactEmails {
		s = emailPattern.ReplaceAllString(s, redactedEmail)
	}
	return s
}

// stripControl removes control characters other than newline and tab.
func stripControl(s string) string {
	return strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return r
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, s)
}
