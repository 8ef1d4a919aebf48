// Package timeparse converts natural-language date/time expressions into
// absolute timestamps. It understands relative keywords, "in N days"
// patterns, and weekday names across English, Spanish, French, Italian,
// German, and Hindi (Latin and Devanagari forms), plus explicit and
// Hindi period-word times of day.
package timeparse

import (
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Options controls how an expression is resolved.
type Options struct {
	// Reference is the instant relative expressions are computed from.
	// Defaults to time.Now().
	Reference *time.Time
	// Fallback supplies the default time-of-day for date-only matches and
	// is returned whole when nothing in the text matches.
	Fallback *time.Time
}

// Parse resolves text into an RFC 3339 timestamp. The second return value
// is false when nothing matched and no fallback was supplied. Parse never
// fails; unparseable input degrades to the fallback or to a miss.
func Parse(text string, opts Options) (string, bool) {
	ref := time.Now()
	if opts.Reference != nil {
		ref = *opts.Reference
	}

	if iso, ok := parseStructured(text); ok {
		return iso, true
	}

	normed := normalize(text)

	offset, dateFound := matchRelativeDay(normed)
	if !dateFound {
		offset, dateFound = matchDayOffset(normed)
	}
	if !dateFound {
		offset, dateFound = matchWeekday(normed, ref)
	}

	hour, minute, clockFound := matchClock(normed)

	if !dateFound && !clockFound {
		if opts.Fallback != nil {
			return opts.Fallback.Format(time.RFC3339), true
		}
		return "", false
	}

	base := ref.AddDate(0, 0, offset)
	if !dateFound && opts.Fallback != nil {
		// Time-of-day only: anchor on the fallback's date.
		base = *opts.Fallback
	}

	y, mo, d := base.Date()
	loc := base.Location()
	var out time.Time
	switch {
	case clockFound:
		out = time.Date(y, mo, d, hour, minute, 0, 0, loc)
	case opts.Fallback != nil:
		fb := *opts.Fallback
		out = time.Date(y, mo, d, fb.Hour(), fb.Minute(), fb.Second(), fb.Nanosecond(), loc)
	default:
		out = time.Date(y, mo, d, 0, 0, 0, 0, loc)
	}
	return out.Format(time.RFC3339), true
}

// structuredRe admits strings that already look like machine timestamps.
// The plus sign covers RFC 3339 numeric zone offsets such as +05:30.
var structuredRe = regexp.MustCompile(`^[\d\sTZ:.,/+-]+$`)

var structuredLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"2006/01/02",
	"01/02/2006",
	"2006.01.02",
}

func parseStructured(text string) (string, bool) {
	s := strings.TrimSpace(text)
	if s == "" || !structuredRe.MatchString(s) {
		return "", false
	}
	for _, layout := range structuredLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format(time.RFC3339), true
		}
	}
	return "", false
}

// normalize lowercases, trims, and strips Latin diacritics so that "mañana"
// and "manana" are equivalent. Only marks from the combining diacritical
// block are removed; Devanagari vowel signs, anusvara, and virama carry
// meaning (सुबह without its vowel sign is a different word) and must survive.
func normalize(text string) string {
	s := strings.ToLower(strings.TrimSpace(text))
	decomposed := norm.NFD.String(s)
	var b strings.Builder
	b.Grow(len(decomposed))
	for _, r := range decomposed {
		if r >= 0x0300 && r <= 0x036f && unicode.Is(unicode.Mn, r) {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Relative-day keyword sets. Multi-word phrases are matched by containment,
// single words against token boundaries. Day-after-tomorrow is checked first
// because several of its phrases contain the plain "tomorrow" keywords.
var (
	dayAfterWords = []string{"day after tomorrow", "pasado manana", "apres-demain", "apres demain", "dopodomani", "ubermorgen", "परसों", "parson"}
	tomorrowWords = []string{"tomorrow", "manana", "demain", "domani", "morgen", "कल", "kal"}
	todayWords    = []string{"today", "hoy", "aujourd'hui", "oggi", "heute", "आज", "aaj"}
)

func matchRelativeDay(normed string) (int, bool) {
	switch {
	case matchesAny(normed, dayAfterWords):
		return 2, true
	case matchesAny(normed, tomorrowWords):
		return 1, true
	case matchesAny(normed, todayWords):
		return 0, true
	}
	return 0, false
}

func matchesAny(normed string, words []string) bool {
	for _, w := range words {
		if strings.ContainsAny(w, " -'") {
			if strings.Contains(normed, w) {
				return true
			}
			continue
		}
		if containsToken(normed, w) {
			return true
		}
	}
	return false
}

// containsToken reports whether word appears in normed as a whole token.
// Combining marks are part of a token: splitting on them would break
// Devanagari words like मंगलवार at their vowel signs.
func containsToken(normed, word string) bool {
	for _, tok := range strings.FieldsFunc(normed, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && !unicode.Is(unicode.Mn, r)
	}) {
		if tok == word {
			return true
		}
	}
	return false
}

// "in N days" patterns across locales.
var dayOffsetRes = []*regexp.Regexp{
	regexp.MustCompile(`(?:in|en|dentro de|after)\s+(\d+)\s+(?:days?|dias?|din|दिन)`),
	regexp.MustCompile(`(\d+)\s+(?:days?|dias?|din|दिन)\s+(?:from now|later|despues|बाद)`),
}

func matchDayOffset(normed string) (int, bool) {
	for _, re := range dayOffsetRes {
		if m := re.FindStringSubmatch(normed); m != nil {
			n, err := strconv.Atoi(m[1])
			if err == nil {
				return n, true
			}
		}
	}
	return 0, false
}

// weekdayNames is a fixed-order table so ties resolve deterministically.
var weekdayNames = []struct {
	name string
	day  time.Weekday
}{
	{"sunday", time.Sunday}, {"monday", time.Monday}, {"tuesday", time.Tuesday},
	{"wednesday", time.Wednesday}, {"thursday", time.Thursday}, {"friday", time.Friday},
	{"saturday", time.Saturday},
	{"domingo", time.Sunday}, {"lunes", time.Monday}, {"martes", time.Tuesday},
	{"miercoles", time.Wednesday}, {"jueves", time.Thursday}, {"viernes", time.Friday},
	{"sabado", time.Saturday},
	{"dimanche", time.Sunday}, {"lundi", time.Monday}, {"mardi", time.Tuesday},
	{"mercredi", time.Wednesday}, {"jeudi", time.Thursday}, {"vendredi", time.Friday},
	{"samedi", time.Saturday},
	{"domenica", time.Sunday}, {"lunedi", time.Monday}, {"martedi", time.Tuesday},
	{"mercoledi", time.Wednesday}, {"giovedi", time.Thursday}, {"venerdi", time.Friday},
	{"sabato", time.Saturday},
	{"sonntag", time.Sunday}, {"montag", time.Monday}, {"dienstag", time.Tuesday},
	{"mittwoch", time.Wednesday}, {"donnerstag", time.Thursday}, {"freitag", time.Friday},
	{"samstag", time.Saturday},
	{"ravivar", time.Sunday}, {"somvar", time.Monday}, {"mangalvar", time.Tuesday},
	{"budhvar", time.Wednesday}, {"guruvar", time.Thursday}, {"shukravar", time.Friday},
	{"shanivar", time.Saturday},
	{"रविवार", time.Sunday}, {"सोमवार", time.Monday}, {"मंगलवार", time.Tuesday},
	{"बुधवार", time.Wednesday}, {"गुरुवार", time.Thursday}, {"शुक्रवार", time.Friday},
	{"शनिवार", time.Saturday},
}

// matchWeekday resolves a weekday name to the next occurrence strictly after
// the reference date; a name matching today's weekday rolls a full week
// forward rather than resolving to the same day.
func matchWeekday(normed string, ref time.Time) (int, bool) {
	for _, wd := range weekdayNames {
		if !containsToken(normed, wd.name) {
			continue
		}
		offset := (int(wd.day) - int(ref.Weekday()) + 7) % 7
		if offset == 0 {
			offset = 7
		}
		return offset, true
	}
	return 0, false
}

// Explicit time-of-day patterns.
var (
	meridiemRe    = regexp.MustCompile(`(\d{1,2})(?::(\d{2}))?\s*(am|pm)\b`)
	horasRe       = regexp.MustCompile(`(?:a las?\s+)?(\d{1,2})(?::(\d{2}))?\s*horas?\b`)
	clockRe       = regexp.MustCompile(`\bat\s+(\d{1,2})(?::(\d{2}))?\b`)
	colonRe       = regexp.MustCompile(`\b(\d{1,2}):(\d{2})\b`)
	hindiPeriodRe = regexp.MustCompile(`(सुबह|दोपहर|शाम|रात)\s*(\d{1,2})(?::(\d{2}))?`)
)

func matchClock(normed string) (int, int, bool) {
	if m := meridiemRe.FindStringSubmatch(normed); m != nil {
		h := atoi(m[1])
		minute := atoi(m[2])
		if m[3] == "pm" && h < 12 {
			h += 12
		} else if m[3] == "am" && h == 12 {
			h = 0
		}
		return h, minute, true
	}
	if m := hindiPeriodRe.FindStringSubmatch(normed); m != nil {
		return applyHindiPeriod(m[1], atoi(m[2])), atoi(m[3]), true
	}
	if m := horasRe.FindStringSubmatch(normed); m != nil {
		return atoi(m[1]), atoi(m[2]), true
	}
	if m := clockRe.FindStringSubmatch(normed); m != nil {
		return atoi(m[1]), atoi(m[2]), true
	}
	if m := colonRe.FindStringSubmatch(normed); m != nil {
		return atoi(m[1]), atoi(m[2]), true
	}
	return 0, 0, false
}

// applyHindiPeriod maps an hour qualified by a Hindi period word onto the
// 24-hour clock.
func applyHindiPeriod(period string, h int) int {
	switch period {
	case "सुबह": // morning
		return h % 12
	case "दोपहर": // afternoon
		if h < 12 {
			return h + 12
		}
		return h
	case "शाम": // evening
		if h == 12 {
			return 18
		}
		if h < 12 {
			return h + 12
		}
		return h
	case "रात": // night
		if h == 12 {
			return 0
		}
		if h >= 6 && h < 12 {
			return h + 12
		}
		return h
	}
	return h
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
