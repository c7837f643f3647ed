// Package planner turns a natural-language question into a retrieval plan:
// a semantic query string plus hard metadata predicates extracted from
// temporal phrases and file-type nouns.
package planner

import (
	"regexp"
	"strings"
	"time"

	"github.com/HandsomeSB/Askit/internal/index"
)

// Predicate is a hard filter extracted from the question.
type Predicate interface {
	apply(f *index.Filters)
}

// DateRange bounds the source file's modified time. Zero values leave the
// corresponding side open.
type DateRange struct {
	From time.Time
	To   time.Time
}

func (p DateRange) apply(f *index.Filters) {
	if !p.From.IsZero() && (f.ModifiedAfter.IsZero() || p.From.After(f.ModifiedAfter)) {
		f.ModifiedAfter = p.From
	}
	if !p.To.IsZero() && (f.ModifiedBefore.IsZero() || p.To.Before(f.ModifiedBefore)) {
		f.ModifiedBefore = p.To
	}
}

// MimeClass restricts results to one coarse file-type class.
type MimeClass struct {
	Class string
}

func (p MimeClass) apply(f *index.Filters) {
	for _, c := range f.MimeClasses {
		if c == p.Class {
			return
		}
	}
	f.MimeClasses = append(f.MimeClasses, p.Class)
}

// Plan is the planner's output. Semantic is the question with temporal
// phrases stripped; Filters are the extracted hard predicates.
type Plan struct {
	Semantic   string
	Predicates []Predicate
}

// Filters folds the predicates into a single filter set.
func (p Plan) Filters() index.Filters {
	var f index.Filters
	for _, pred := range p.Predicates {
		pred.apply(&f)
	}
	return f
}

// Planner extracts retrieval plans from questions. Planning never fails:
// a question with no recognizable phrases becomes a pure semantic query.
type Planner struct {
	now func() time.Time
}

// New creates a Planner.
func New() *Planner {
	return &Planner{now: time.Now}
}

// typeNouns maps file-type nouns in questions to filter classes. The noun
// stays in the semantic query; "images of cats" still needs "images" for
// the embedding to land near image-derived chunks. Generic nouns like
// "document" or "file" carry no type intent ("what is this document
// about?" must search everything) and never become filters.
var typeNouns = []struct {
	pattern *regexp.Regexp
	class   string
}{
	{regexp.MustCompile(`(?i)\b(images?|photos?|pictures?|screenshots?)\b`), "image"},
	{regexp.MustCompile(`(?i)\b(spreadsheets?|sheets?|excel|csvs?)\b`), "spreadsheet"},
	{regexp.MustCompile(`(?i)\b(pdfs?|papers?|reports?)\b`), "document"},
	{regexp.MustCompile(`(?i)\b(videos?|movies?|recordings?|clips?)\b`), "video"},
	{regexp.MustCompile(`(?i)\b(audios?|songs?|music|podcasts?)\b`), "audio"},
	{regexp.MustCompile(`(?i)\b(presentations?|slides?|slideshows?|decks?)\b`), "presentation"},
}

var (
	reLastPeriod = regexp.MustCompile(`(?i)\b(?:from\s+|in\s+)?(?:the\s+)?last\s+(week|month|year)\b`)
	reThisPeriod = regexp.MustCompile(`(?i)\b(?:from\s+|in\s+)?this\s+(week|month|year)\b`)
	reYesterday  = regexp.MustCompile(`(?i)\b(?:from\s+)?yesterday\b`)
	reToday      = regexp.MustCompile(`(?i)\b(?:from\s+)?today\b`)
	reMonthYear  = regexp.MustCompile(`(?i)\b(?:from\s+|in\s+)?(january|february|march|april|may|june|july|august|september|october|november|december)\s+(\d{4})\b`)
	reYear       = regexp.MustCompile(`(?i)\b(?:from|since|in)\s+(\d{4})\b`)
	reSpaces     = regexp.MustCompile(`\s{2,}`)
)

var months = map[string]time.Month{
	"january": time.January, "february": time.February, "march": time.March,
	"april": time.April, "may": time.May, "june": time.June,
	"july": time.July, "august": time.August, "september": time.September,
	"october": time.October, "november": time.November, "december": time.December,
}

// Extract builds a Plan from a question. Temporal phrases are removed from
// the semantic query; type nouns contribute predicates but remain in it.
func (p *Planner) Extract(question string) Plan {
	now := p.now()
	semantic := question
	var preds []Predicate

	if m := reLastPeriod.FindStringSubmatch(semantic); m != nil {
		var from time.Time
		switch strings.ToLower(m[1]) {
		case "week":
			from = now.AddDate(0, 0, -7)
		case "month":
			from = now.AddDate(0, -1, 0)
		case "year":
			from = now.AddDate(-1, 0, 0)
		}
		preds = append(preds, DateRange{From: from, To: now})
		semantic = reLastPeriod.ReplaceAllString(semantic, " ")
	}

	if m := reThisPeriod.FindStringSubmatch(semantic); m != nil {
		var from time.Time
		switch strings.ToLower(m[1]) {
		case "week":
			offset := (int(now.Weekday()) + 6) % 7 // Monday start
			from = time.Date(now.Year(), now.Month(), now.Day()-offset, 0, 0, 0, 0, now.Location())
		case "month":
			from = time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
		case "year":
			from = time.Date(now.Year(), 1, 1, 0, 0, 0, 0, now.Location())
		}
		preds = append(preds, DateRange{From: from, To: now})
		semantic = reThisPeriod.ReplaceAllString(semantic, " ")
	}

	if reYesterday.MatchString(semantic) {
		start := time.Date(now.Year(), now.Month(), now.Day()-1, 0, 0, 0, 0, now.Location())
		preds = append(preds, DateRange{From: start, To: start.AddDate(0, 0, 1)})
		semantic = reYesterday.ReplaceAllString(semantic, " ")
	}

	if reToday.MatchString(semantic) {
		start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
		preds = append(preds, DateRange{From: start, To: now})
		semantic = reToday.ReplaceAllString(semantic, " ")
	}

	if m := reMonthYear.FindStringSubmatch(semantic); m != nil {
		month := months[strings.ToLower(m[1])]
		year := atoiYear(m[2])
		start := time.Date(year, month, 1, 0, 0, 0, 0, now.Location())
		preds = append(preds, DateRange{From: start, To: start.AddDate(0, 1, 0)})
		semantic = reMonthYear.ReplaceAllString(semantic, " ")
	} else if m := reYear.FindStringSubmatch(semantic); m != nil {
		year := atoiYear(m[1])
		start := time.Date(year, time.January, 1, 0, 0, 0, 0, now.Location())
		preds = append(preds, DateRange{From: start, To: start.AddDate(1, 0, 0)})
		semantic = reYear.ReplaceAllString(semantic, " ")
	}

	for _, noun := range typeNouns {
		if noun.pattern.MatchString(semantic) {
			preds = append(preds, MimeClass{Class: noun.class})
		}
	}

	semantic = strings.TrimSpace(reSpaces.ReplaceAllString(semantic, " "))
	if semantic == "" {
		semantic = question
	}
	return Plan{Semantic: semantic, Predicates: preds}
}

func atoiYear(s string) int {
	year := 0
	for _, r := range s {
		year = year*10 + int(r-'0')
	}
	return year
}
