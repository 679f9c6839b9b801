package presenter

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// Locale holds resolved formatting conventions for dates, clocks and money.
type Locale struct {
	tag     language.Tag
	printer *message.Printer
}

// DetectLocale resolves the user's locale from SLOTBOOK_LOCALE, LC_ALL, LC_TIME
// or LANG. Falls back to en-US.
func DetectLocale() Locale {
	for _, env := range []string{"SLOTBOOK_LOCALE", "LC_ALL", "LC_TIME", "LANG"} {
		if raw := os.Getenv(env); raw != "" && raw != "C" && raw != "POSIX" {
			return NewLocale(raw)
		}
	}
	return NewLocale("")
}

// NewLocale creates a Locale from a POSIX locale string (e.g. "de_DE.UTF-8")
// or BCP 47 tag (e.g. "de-DE"). Returns en-US for empty or unparseable input.
func NewLocale(raw string) Locale {
	if idx := strings.IndexByte(raw, '.'); idx != -1 {
		raw = raw[:idx]
	}
	raw = strings.ReplaceAll(raw, "_", "-")

	tag, _ := language.Parse(raw)
	if tag == language.Und {
		tag = language.AmericanEnglish
	}

	return Locale{
		tag:     tag,
		printer: message.NewPrinter(tag),
	}
}

// Tag returns the resolved language tag.
func (l Locale) Tag() language.Tag {
	return l.tag
}

// FormatDate formats t as a locale-appropriate date.
func (l Locale) FormatDate(t time.Time) string {
	return t.Format(l.dateLayout())
}

// FormatClock formats the time of day: 12-hour for US English, 24-hour elsewhere.
func (l Locale) FormatClock(t time.Time) string {
	if l.uses12Hour() {
		return t.Format("3:04 PM")
	}
	return t.Format("15:04")
}

// FormatDateTime combines FormatDate and FormatClock.
func (l Locale) FormatDateTime(t time.Time) string {
	return l.FormatDate(t) + " " + l.FormatClock(t)
}

// FormatNumber formats v with locale-appropriate grouping and decimal separators.
func (l Locale) FormatNumber(v float64) string {
	if v == float64(int64(v)) {
		return l.p().Sprint(number.Decimal(int64(v)))
	}
	return l.p().Sprint(number.Decimal(v, number.MaxFractionDigits(2)))
}

// FormatPrice formats an amount with exactly two fraction digits followed by
// the ISO currency code. Amounts arrive from the API as decimal strings.
func (l Locale) FormatPrice(amount any, currency string) string {
	var v float64
	switch a := amount.(type) {
	case float64:
		v = a
	case int:
		v = float64(a)
	case int64:
		v = float64(a)
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(a), 64)
		if err != nil {
			return a
		}
		v = f
	default:
		return fmt.Sprintf("%v", amount)
	}
	s := l.p().Sprint(number.Decimal(v, number.MinFractionDigits(2), number.MaxFractionDigits(2)))
	if currency != "" {
		s += " " + strings.ToUpper(currency)
	}
	return s
}

// p returns the printer, defaulting the zero Locale to en-US.
func (l Locale) p() *message.Printer {
	if l.printer == nil {
		return message.NewPrinter(language.AmericanEnglish)
	}
	return l.printer
}

// Regions where appointment times read naturally on a 12-hour clock.
const twelveHourRegions = " US PH AU NZ IN CA "

func (l Locale) uses12Hour() bool {
	if l.tag == language.Und {
		return true
	}
	region, _ := l.tag.Region()
	return strings.Contains(twelveHourRegions, " "+region.String()+" ")
}

// dateLayout picks the layout by region, then by language.
func (l Locale) dateLayout() string {
	region, _ := l.tag.Region()
	if layout, ok := regionLayouts[region.String()]; ok {
		return layout
	}
	base, _ := l.tag.Base()
	if layout, ok := langLayouts[base.String()]; ok {
		return layout
	}
	return layoutMonthFirst
}

const (
	layoutMonthFirst = "Jan 2, 2006"
	layoutDayFirst   = "2 Jan 2006"
	layoutDayDot     = "2. Jan 2006"
	layoutISO        = "2006-01-02"
)

var regionLayouts, langLayouts = buildLayouts([]struct {
	layout  string
	regions string
	langs   string
}{
	{layoutMonthFirst, "US PH", "en"},
	{layoutDayFirst, "GB AU NZ IE ZA IN FR ES IT PT BR NL BE MX AR CL CO PL RU TR GR DK NO SE FI", "fr es it pt nl da nb nn sv fi pl ru tr"},
	{layoutDayDot, "DE AT CH", "de"},
	{layoutISO, "JP CN KR TW HU LT CA", "ja zh ko"},
})

func buildLayouts(groups []struct {
	layout  string
	regions string
	langs   string
}) (map[string]string, map[string]string) {
	byRegion := map[string]string{}
	byLang := map[string]string{}
	for _, g := range groups {
		for _, r := range strings.Fields(g.regions) {
			byRegion[r] = g.layout
		}
		for _, lang := range strings.Fields(g.langs) {
			byLang[lang] = g.layout
		}
	}
	return byRegion, byLang
}
