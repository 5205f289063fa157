// Package texkey derives human-readable citation keys of the form
// Name:Year[rnd]. The Name:Year prefix is the stable identity compared across
// record versions; the three random letters only disambiguate concurrent
// mints and are never part of the validity check.
package texkey

import (
	"math/rand/v2"
	"strconv"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"bibflow/internal/records/models"
)

// Generate derives a citation key from the record's authorship, venue and
// date fields. The suffix, when requested, is three fresh random lowercase
// letters per call.
func Generate(record *models.Record, withSuffix bool) string {
	key := namePart(record) + ":" + yearPart(record)
	if withSuffix {
		key += randomSuffix()
	}
	return key
}

// IsValid reports whether the record's current citation key is still the one
// on file. The regenerated suffix-free key must appear inside the most recent
// existing key; anything historically appended after the prefix is ignored.
// An empty existing list forces a mint.
func IsValid(record *models.Record, existing []string) bool {
	if len(existing) == 0 {
		return false
	}
	return strings.Contains(existing[0], Generate(record, false))
}

// Name derivation, first matching rule wins:
// few authors, collaboration, corporate author, proceedings, any authors.
func namePart(record *models.Record) string {
	authors := record.Authors
	switch {
	case len(authors) >= 1 && len(authors) < 10:
		return sanitizeName(familyName(authors[0].FullName))
	case len(record.Collaborations) > 0:
		return sanitizeName(record.Collaborations[0].Value)
	case len(record.CorporateAuthor) > 0:
		return sanitizeName(record.CorporateAuthor[0])
	case hasDocumentType(record, "proceedings"):
		return "proceedings"
	case len(authors) > 0:
		return sanitizeName(familyName(authors[0].FullName))
	default:
		return ""
	}
}

// familyName takes the last comma-separated segment of a full name, the
// family-name position in feeder name order.
func familyName(fullName string) string {
	parts := strings.Split(fullName, ",")
	return parts[len(parts)-1]
}

func hasDocumentType(record *models.Record, docType string) bool {
	for _, dt := range record.DocumentType {
		if dt == docType {
			return true
		}
	}
	return false
}

// allowed is the character set citation keys may contain, besides letters,
// digits and whitespace (whitespace survives until title-casing).
const allowed = "-.:/^_;&*<>?|!$+"

var asciiFold = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// sanitizeName transliterates to ASCII, strips everything outside the allowed
// set, and title-cases with internal whitespace removed. A result without a
// single letter collapses to the empty string.
func sanitizeName(raw string) string {
	folded, _, err := transform.String(asciiFold, raw)
	if err != nil {
		folded = raw
	}

	var stripped strings.Builder
	for _, r := range folded {
		switch {
		case r > unicode.MaxASCII:
			// transliteration leftovers are dropped
		case unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r):
			stripped.WriteRune(r)
		case strings.ContainsRune(allowed, r):
			stripped.WriteRune(r)
		}
	}

	var out strings.Builder
	hasLetter := false
	prevLetter := false
	for _, r := range stripped.String() {
		if unicode.IsSpace(r) {
			prevLetter = false
			continue
		}
		if unicode.IsLetter(r) {
			hasLetter = true
			if prevLetter {
				out.WriteRune(unicode.ToLower(r))
			} else {
				out.WriteRune(unicode.ToUpper(r))
			}
			prevLetter = true
		} else {
			out.WriteRune(r)
			prevLetter = false
		}
	}
	if !hasLetter {
		return ""
	}
	return out.String()
}

// yearPart collects the record's date-bearing fields in fixed priority order
// and uses the year of the earliest one, falling back to the creation
// timestamp and finally the current year.
func yearPart(record *models.Record) string {
	var candidates []string
	candidates = append(candidates, record.PreprintDate)
	if record.ThesisInfo != nil {
		candidates = append(candidates, record.ThesisInfo.Date, record.ThesisInfo.DefenseDate)
	}
	for _, pub := range record.PublicationInfo {
		if pub.Year > 0 {
			candidates = append(candidates, strconv.Itoa(pub.Year))
		}
	}
	candidates = append(candidates, record.LegacyCreationDate)
	for _, imprint := range record.Imprints {
		candidates = append(candidates, imprint.Date)
	}

	var dates []partialDate
	for _, c := range candidates {
		if d, ok := parsePartialDate(c); ok {
			dates = append(dates, d)
		}
	}
	if len(dates) > 0 {
		earliest := dates[0]
		for _, d := range dates[1:] {
			if d.before(earliest) {
				earliest = d
			}
		}
		return strconv.Itoa(earliest.year)
	}

	if d, ok := parsePartialDate(record.Created); ok {
		return strconv.Itoa(d.year)
	}
	return strconv.Itoa(time.Now().Year())
}

// partialDate is a date with optional month and day (zero when absent).
type partialDate struct {
	year, month, day int
}

func (d partialDate) before(other partialDate) bool {
	if d.year != other.year {
		return d.year < other.year
	}
	if orOne(d.month) != orOne(other.month) {
		return orOne(d.month) < orOne(other.month)
	}
	return orOne(d.day) < orOne(other.day)
}

func orOne(n int) int {
	if n == 0 {
		return 1
	}
	return n
}

// parsePartialDate accepts YYYY, YYYY-MM and YYYY-MM-DD, plus a full
// timestamp prefix.
func parsePartialDate(raw string) (partialDate, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return partialDate{}, false
	}
	if at := strings.IndexAny(raw, "T "); at > 0 {
		raw = raw[:at]
	}
	parts := strings.SplitN(raw, "-", 3)

	year, err := strconv.Atoi(parts[0])
	if err != nil || year < 1000 || year > 9999 {
		return partialDate{}, false
	}
	d := partialDate{year: year}
	if len(parts) > 1 {
		if month, err := strconv.Atoi(parts[1]); err == nil && month >= 1 && month <= 12 {
			d.month = month
		}
	}
	if len(parts) > 2 {
		if day, err := strconv.Atoi(parts[2]); err == nil && day >= 1 && day <= 31 {
			d.day = day
		}
	}
	return d, true
}

const lowercase = "abcdefghijklmnopqrstuvwxyz"

func randomSuffix() string {
	suffix := make([]byte, 3)
	for i := range suffix {
		suffix[i] = lowercase[rand.IntN(len(lowercase))]
	}
	return string(suffix)
}
