// Package locale provides the dashboard's French and English messages and
// number formatting.
package locale

import (
	"fmt"
	"strconv"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
	"golang.org/x/text/number"
)

var supported = []language.Tag{language.French, language.English}

// Localizer formats messages for one language.
type Localizer struct {
	tag     language.Tag
	printer *message.Printer
}

// Tag returns the language of l.
func (l *Localizer) Tag() language.Tag {
	return l.tag
}

// Text formats the message registered under key.
func (l *Localizer) Text(key string, args ...any) string {
	return l.printer.Sprintf(key, args...)
}

// Percent formats a probability in [0, 1] as a percentage with two decimals.
func (l *Localizer) Percent(p float64) string {
	return l.printer.Sprintf(Percent, p*100)
}

// ClassShare labels a class slice of the probability donut.
func (l *Localizer) ClassShare(label int, p float64) string {
	return l.printer.Sprintf(ClassShare, label, p*100)
}

// Decimal formats v with exactly digits fraction digits.
func (l *Localizer) Decimal(v float64, digits int) string {
	return l.printer.Sprint(number.Decimal(v, number.MinFractionDigits(digits), number.MaxFractionDigits(digits)))
}

// YearRange formats the year range advisory.
func (l *Localizer) YearRange(minYear, maxYear int) string {
	return l.printer.Sprintf(YearOutOfRange, strconv.Itoa(minYear), strconv.Itoa(maxYear))
}

// Bundle holds one Localizer per supported language.
type Bundle struct {
	fallback *Localizer
	byTag    map[language.Tag]*Localizer
	matcher  language.Matcher
}

// NewBundle builds the catalog. defaultLocale is used when a request names
// no supported language.
func NewBundle(defaultLocale string) (*Bundle, error) {
	builder := catalog.NewBuilder(catalog.Fallback(language.French))
	for tag, messages := range translations {
		for key, msg := range messages {
			if err := builder.SetString(tag, key, msg); err != nil {
				return nil, fmt.Errorf("register %s/%s: %w", tag, key, err)
			}
		}
	}

	b := &Bundle{
		byTag:   make(map[language.Tag]*Localizer, len(supported)),
		matcher: language.NewMatcher(supported),
	}
	for _, tag := range supported {
		b.byTag[tag] = &Localizer{tag: tag, printer: message.NewPrinter(tag, message.Catalog(builder))}
	}

	if defaultLocale == "" {
		defaultLocale = "fr"
	}
	tag, err := language.Parse(defaultLocale)
	if err != nil {
		return nil, fmt.Errorf("parse locale %q: %w", defaultLocale, err)
	}
	fallback, ok := b.byTag[b.match(tag)]
	if !ok || !sameBase(tag, fallback.tag) {
		return nil, fmt.Errorf("unsupported locale %q", defaultLocale)
	}
	b.fallback = fallback
	return b, nil
}

// Default returns the configured language.
func (b *Bundle) Default() *Localizer {
	return b.fallback
}

// Lookup picks a Localizer for a language name or an Accept-Language value,
// falling back to the default.
func (b *Bundle) Lookup(accept string) *Localizer {
	if accept == "" {
		return b.fallback
	}
	tags, _, err := language.ParseAcceptLanguage(accept)
	if err != nil || len(tags) == 0 {
		return b.fallback
	}
	_, idx, confidence := b.matcher.Match(tags...)
	if confidence == language.No {
		return b.fallback
	}
	return b.byTag[supported[idx]]
}

func (b *Bundle) match(tag language.Tag) language.Tag {
	_, idx, _ := b.matcher.Match(tag)
	return supported[idx]
}

func sameBase(a, b language.Tag) bool {
	ba, _ := a.Base()
	bb, _ := b.Base()
	return ba == bb
}
