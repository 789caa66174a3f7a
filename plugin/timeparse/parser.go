// Package timeparse turns free-form reminder requests into a due instant and
// a memo. All patterns and keyword tables are template data served by the
// quote store, so languages can add their own phrasings without code changes.
package timeparse

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/hrygo/shuvi/internal/apperr"
	"github.com/hrygo/shuvi/plugin/quotes"
)

// unitNames is the scan order for relative expressions, finest first.
var unitNames = []string{"seconds", "minutes", "hours", "days", "weeks", "months", "years"}

// Result is a successfully parsed time expression.
type Result struct {
	DatePresent bool
	TimePresent bool
	// At is the resolved instant in the requester's timezone.
	At time.Time
	// Memo is the quoted free text, or the localized "no memo" default.
	Memo string
}

type unitTable struct {
	name     string
	patterns []*regexp.Regexp
	keywords map[string]int
}

// Parser extracts a date/time and a memo from an unstructured sentence.
type Parser struct {
	datePatterns []*regexp.Regexp
	timePatterns []*regexp.Regexp
	memoPatterns []*regexp.Regexp

	units       []unitTable
	dateMarkers []string
	timeMarkers []string

	noMemo string
}

// Requirements lists every quote path the parser consumes.
func Requirements() quotes.Requirements {
	req := quotes.Requirements{
		Lists: []string{
			"timestamp/patterns/date",
			"timestamp/patterns/time",
			"timestamp/patterns/memo",
			"timestamp/markers/date",
			"timestamp/markers/time",
			"reminder/noMemo",
		},
	}
	for _, unit := range unitNames {
		req.Lists = append(req.Lists, "timestamp/units/"+unit+"/patterns")
		req.Maps = append(req.Maps, "timestamp/units/"+unit+"/keywords")
	}
	return req
}

// New builds a parser from the template tables, compiling and validating all
// patterns once so a broken table fails at startup rather than per request.
func New(q *quotes.Server) (*Parser, error) {
	p := &Parser{}

	var err error
	if p.datePatterns, err = compileQuotePatterns(q, "timestamp/patterns/date", 0); err != nil {
		return nil, err
	}
	if p.timePatterns, err = compileQuotePatterns(q, "timestamp/patterns/time", 2); err != nil {
		return nil, err
	}
	if p.memoPatterns, err = compileQuotePatterns(q, "timestamp/patterns/memo", 1); err != nil {
		return nil, err
	}

	if p.dateMarkers, err = q.List("timestamp/markers/date"); err != nil {
		return nil, err
	}
	if p.timeMarkers, err = q.List("timestamp/markers/time"); err != nil {
		return nil, err
	}
	if p.noMemo, err = q.Text("reminder/noMemo"); err != nil {
		return nil, err
	}

	for _, unit := range unitNames {
		table := unitTable{name: unit}
		rawPatterns, err := q.List("timestamp/units/" + unit + "/patterns")
		if err != nil {
			return nil, err
		}
		for _, raw := range rawPatterns {
			re, err := regexp.Compile(raw)
			if err != nil {
				return nil, errors.Wrapf(err, "invalid %s pattern %q", unit, raw)
			}
			if re.NumSubexp() < 1 {
				return nil, errors.Errorf("%s pattern %q lacks a magnitude capture group", unit, raw)
			}
			table.patterns = append(table.patterns, re)
		}
		if table.keywords, err = q.IntMap("timestamp/units/" + unit + "/keywords"); err != nil {
			return nil, err
		}
		p.units = append(p.units, table)
	}

	return p, nil
}

func compileQuotePatterns(q *quotes.Server, path string, minGroups int) ([]*regexp.Regexp, error) {
	rawPatterns, err := q.List(path)
	if err != nil {
		return nil, err
	}
	patterns := make([]*regexp.Regexp, 0, len(rawPatterns))
	for _, raw := range rawPatterns {
		re, err := regexp.Compile(raw)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid pattern at %q", path)
		}
		if re.NumSubexp() < minGroups {
			return nil, errors.Errorf("pattern %q at %q needs %d capture groups", raw, path, minGroups)
		}
		patterns = append(patterns, re)
	}
	return patterns, nil
}

func firstMatch(patterns []*regexp.Regexp, text string) []string {
	for _, re := range patterns {
		if match := re.FindStringSubmatch(text); match != nil {
			return match
		}
	}
	return nil
}

// Parse resolves the request text against the requester's current local time.
func (p *Parser) Parse(text string, now time.Time) (*Result, error) {
	result := &Result{Memo: p.noMemo}

	// The memo is cut out first so a date-looking token inside quotes can
	// never be read as a date.
	scanText := text
	for _, re := range p.memoPatterns {
		if m := re.FindStringSubmatchIndex(text); m != nil {
			result.Memo = text[m[2]:m[3]]
			scanText = text[:m[0]] + text[m[1]:]
			break
		}
	}
	scanText = strings.ToLower(scanText)

	at, err := p.scanAbsolute(scanText, now, result)
	if err != nil {
		return nil, err
	}

	if !(result.DatePresent && result.TimePresent) {
		at = p.scanRelative(scanText, at, result)
	}

	// A time expression needs no explicit date; it counts from today.
	if result.TimePresent {
		result.DatePresent = true
	}

	if !result.DatePresent {
		return nil, &apperr.ParseError{Cause: apperr.CauseDateNotFound, Goal: apperr.GoalReminderSet, Input: text}
	}
	if !result.TimePresent {
		return nil, &apperr.ParseError{Cause: apperr.CauseTimeNotFound, Goal: apperr.GoalReminderSet, Input: text}
	}

	result.At = at
	return result, nil
}

// scanAbsolute reads explicit date (d.m.yy[yy]) and clock (h:mm) tokens,
// each replacing the corresponding component of the current local instant.
func (p *Parser) scanAbsolute(text string, now time.Time, result *Result) (time.Time, error) {
	year, month, day := now.Date()
	hour, minute := now.Hour(), now.Minute()
	second := now.Second()

	if match := firstMatch(p.datePatterns, text); match != nil {
		parsed, err := parseAbsoluteDate(match[0], now.Location())
		if err != nil {
			return time.Time{}, &apperr.ParseError{Cause: apperr.CauseIncorrectDate, Goal: apperr.GoalReminderSet, Input: match[0]}
		}
		year, month, day = parsed.Date()
		result.DatePresent = true
	}

	if match := firstMatch(p.timePatterns, text); match != nil {
		h, m, err := parseClock(match[1], match[2])
		if err != nil {
			return time.Time{}, &apperr.ParseError{Cause: apperr.CauseIncorrectTime, Goal: apperr.GoalReminderSet, Input: match[0]}
		}
		hour, minute, second = h, m, 0
		result.TimePresent = true
	}

	return time.Date(year, month, day, hour, minute, second, 0, now.Location()), nil
}

// scanRelative layers unit offsets (numeric patterns and fixed keyword
// phrases) on top of the base instant. The last match per unit wins.
func (p *Parser) scanRelative(text string, base time.Time, result *Result) time.Time {
	offsets := map[string]int{}

	for _, unit := range p.units {
		for _, re := range unit.patterns {
			if match := re.FindStringSubmatch(text); match != nil {
				if n, err := strconv.Atoi(match[1]); err == nil {
					offsets[unit.name] = n
				}
			}
		}
		for keyword, value := range unit.keywords {
			if strings.Contains(text, keyword) {
				offsets[unit.name] = value
			}
		}
	}

	for _, unit := range []string{"seconds", "minutes", "hours"} {
		if offsets[unit] != 0 {
			result.TimePresent = true
			result.DatePresent = true
		}
	}
	for _, unit := range []string{"days", "weeks", "months", "years"} {
		if offsets[unit] != 0 {
			result.DatePresent = true
		}
	}

	// Bare markers ("today", "now") satisfy presence without an offset.
	for _, marker := range p.dateMarkers {
		if strings.Contains(text, marker) {
			result.DatePresent = true
		}
	}
	for _, marker := range p.timeMarkers {
		if strings.Contains(text, marker) {
			result.TimePresent = true
		}
	}

	// Month and year offsets need calendar arithmetic, not fixed durations.
	shifted := base.AddDate(offsets["years"], offsets["months"], offsets["days"]+7*offsets["weeks"])
	return shifted.Add(
		time.Duration(offsets["hours"])*time.Hour +
			time.Duration(offsets["minutes"])*time.Minute +
			time.Duration(offsets["seconds"])*time.Second)
}

// parseAbsoluteDate normalizes the separator and applies the two-digit
// century rule (00-68 resolve to 20xx, 69-99 to 19xx).
func parseAbsoluteDate(raw string, loc *time.Location) (time.Time, error) {
	normalized := strings.NewReplacer("/", ".", "-", ".").Replace(raw)
	layout := "2.1.2006"
	if parts := strings.Split(normalized, "."); len(parts) == 3 && len(parts[2]) == 2 {
		layout = "2.1.06"
	}
	return time.ParseInLocation(layout, normalized, loc)
}

func parseClock(hourStr, minuteStr string) (int, int, error) {
	hour, err := strconv.Atoi(hourStr)
	if err != nil {
		return 0, 0, err
	}
	minute, err := strconv.Atoi(minuteStr)
	if err != nil {
		return 0, 0, err
	}
	if hour > 23 || minute > 59 {
		return 0, 0, errors.Errorf("clock out of range: %d:%d", hour, minute)
	}
	return hour, minute, nil
}
