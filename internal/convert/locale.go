// Package convert turns the textual numbers and dates found on statements into
// typed values. Each rule set carries its own Locale, so a Swiss broker and a
// German bank can be parsed side by side without any shared state.
package convert

import (
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/language"
)

// Scaling factors for fixed-point values.
const (
	AmountDecimals = 2
	SharesDecimals = 8

	AmountFactor int64 = 100
	SharesFactor int64 = 100_000_000
)

// Locale describes one numeric and calendar dialect.
type Locale struct {
	Tag        language.Tag
	DecimalSep rune
	Grouping   []rune
	// Months maps lower-cased localized month names and abbreviations
	// (without trailing dot) to calendar months.
	Months  map[string]time.Month
	Layouts []string
}

// Name returns the BCP-47 tag of the locale.
func (l Locale) Name() string {
	return l.Tag.String()
}

func (l Locale) isGrouping(r rune) bool {
	for _, g := range l.Grouping {
		if g == r {
			return true
		}
	}
	return false
}

var englishMonths = map[string]time.Month{
	"jan": time.January, "january": time.January,
	"feb": time.February, "february": time.February,
	"mar": time.March, "march": time.March,
	"apr": time.April, "april": time.April,
	"may": time.May,
	"jun": time.June, "june": time.June,
	"jul": time.July, "july": time.July,
	"aug": time.August, "august": time.August,
	"sep": time.September, "sept": time.September, "september": time.September,
	"oct": time.October, "october": time.October,
	"nov": time.November, "november": time.November,
	"dec": time.December, "december": time.December,
}

var germanMonths = map[string]time.Month{
	"jan": time.January, "januar": time.January, "jän": time.January, "jänner": time.January,
	"feb": time.February, "februar": time.February,
	"mär": time.March, "mrz": time.March, "märz": time.March,
	"apr": time.April, "april": time.April,
	"mai": time.May,
	"jun": time.June, "juni": time.June,
	"jul": time.July, "juli": time.July,
	"aug": time.August, "august": time.August,
	"sep": time.September, "sept": time.September, "september": time.September,
	"okt": time.October, "oktober": time.October,
	"nov": time.November, "november": time.November,
	"dez": time.December, "dezember": time.December,
}

var frenchMonths = map[string]time.Month{
	"janv": time.January, "janvier": time.January,
	"févr": time.February, "fevr": time.February, "février": time.February,
	"mars": time.March,
	"avr": time.April, "avril": time.April,
	"mai": time.May,
	"juin": time.June,
	"juil": time.July, "juillet": time.July,
	"août": time.August, "aout": time.August,
	"sept": time.September, "septembre": time.September,
	"oct": time.October, "octobre": time.October,
	"nov": time.November, "novembre": time.November,
	"déc": time.December, "dec": time.December, "décembre": time.December,
}

var dayFirstLayouts = []string{
	"02.01.2006", "2.1.2006", "02.01.06",
	"02/01/2006", "2/1/2006", "02/01/06",
	"02-01-2006",
	"02 Jan 2006", "2 Jan 2006", "02 Jan 06", "2 Jan 06",
	"02-Jan-2006", "2-Jan-2006", "02-Jan-06",
	"02. Jan 2006", "2. Jan 2006",
	"2006-01-02",
}

var monthFirstLayouts = []string{
	"01/02/2006", "1/2/2006", "01/02/06",
	"Jan 02, 2006", "Jan 2, 2006", "Jan 2 2006",
	"2006-01-02",
}

// Predefined locales.
var (
	German = Locale{
		Tag:        language.MustParse("de-DE"),
		DecimalSep: ',',
		Grouping:   []rune{'.'},
		Months:     germanMonths,
		Layouts:    dayFirstLayouts,
	}
	Swiss = Locale{
		Tag:        language.MustParse("de-CH"),
		DecimalSep: '.',
		Grouping:   []rune{'\'', '’'},
		Months:     germanMonths,
		Layouts:    dayFirstLayouts,
	}
	English = Locale{
		Tag:        language.MustParse("en-GB"),
		DecimalSep: '.',
		Grouping:   []rune{','},
		Months:     englishMonths,
		Layouts:    dayFirstLayouts,
	}
	US = Locale{
		Tag:        language.MustParse("en-US"),
		DecimalSep: '.',
		Grouping:   []rune{','},
		Months:     englishMonths,
		Layouts:    monthFirstLayouts,
	}
	French = Locale{
		Tag:        language.MustParse("fr-FR"),
		DecimalSep: ',',
		Grouping:   []rune{' ', '\u00a0', '\u202f'},
		Months:     frenchMonths,
		Layouts:    dayFirstLayouts,
	}
)

var predefined = []Locale{German, Swiss, English, US, French}

// ParseLocale resolves a language tag such as "de-CH" or "en" to one of the
// predefined locales. An exact tag wins over a base language match.
func ParseLocale(s string) (Locale, error) {
	tag, err := language.Parse(strings.TrimSpace(s))
	if err != nil {
		return Locale{}, fmt.Errorf("invalid locale %q: %w", s, err)
	}
	for _, l := range predefined {
		if l.Tag == tag {
			return l, nil
		}
	}
	base, _ := tag.Base()
	for _, l := range predefined {
		if b, _ := l.Tag.Base(); b == base {
			return l, nil
		}
	}
	return Locale{}, fmt.Errorf("unsupported locale %q", s)
}
