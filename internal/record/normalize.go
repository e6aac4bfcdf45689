package record

import (
	"errors"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"
)

// Prioritized column names checked before falling back to a heuristic scan.
var (
	nameFields     = []string{"ФИО", "Имя", "Сотрудник", "Name", "медкнижка"}
	daysFields     = []string{"Срок", "срок", "Days", "days", "Дней", "Осталось"}
	positionFields = []string{"Должность", "Position", "Role", "Должн"}
)

// absentTokens are cell values meaning "no medical book" (case-insensitive).
var absentTokens = map[string]bool{
	"нет":  true,
	"н":    true,
	"no":   true,
	"none": true,
}

// UnknownName is used when no column yields a usable employee name.
const UnknownName = "Неизвестный сотрудник"

// dateLayouts are tried in order when a days cell looks like a date. Only
// four-digit years parse; a two-digit-year cell is date-shaped but matches no
// layout, so it falls through to 0 days and surfaces as critical instead of
// being guessed into the future.
var dateLayouts = []string{
	"2.1.2006", "2/1/2006", "2-1-2006",
}

var (
	intPattern     = regexp.MustCompile(`^-?\d+$`)
	numericPattern = regexp.MustCompile(`^-?\d+(\.\d+)?$`)
)

// ErrEmptyRow marks a row with no usable (non-metadata) columns.
var ErrEmptyRow = errors.New("row has no usable columns")

// Normalizer converts raw rows into Records. Stateless apart from the
// injectable clock used for date-based day calculations.
type Normalizer struct {
	logger *zap.Logger
	now    func() time.Time
}

// NewNormalizer creates a Normalizer using the wall clock.
func NewNormalizer(logger *zap.Logger) *Normalizer {
	return &Normalizer{
		logger: logger.Named("normalizer"),
		now:    time.Now,
	}
}

// SetClock overrides the clock. Intended for tests.
func (n *Normalizer) SetClock(now func() time.Time) { n.now = now }

// Normalize converts a batch of raw rows into Records. Rows that cannot be
// normalized are skipped and logged; they never abort the batch.
func (n *Normalizer) Normalize(rows []map[string]string) []Record {
	records := make([]Record, 0, len(rows))
	for _, row := range rows {
		rec, err := n.NormalizeRow(row)
		if err != nil {
			n.logger.Warn("Skipping row that failed normalization",
				zap.String("row", row["_row"]),
				zap.Error(err),
			)
			continue
		}
		records = append(records, rec)
	}
	return records
}

// NormalizeRow converts a single raw row (column name -> cell value) into a
// Record. Keys prefixed with "_" are internal metadata and never scanned.
func (n *Normalizer) NormalizeRow(row map[string]string) (Record, error) {
	if countDataColumns(row) == 0 {
		return Record{}, ErrEmptyRow
	}

	raw, hasBook, daysLeft := n.extractDays(row)

	return Record{
		Name:           extractName(row),
		Position:       extractPosition(row),
		DaysLeft:       daysLeft,
		HasMedicalBook: hasBook,
		RawDaysValue:   raw,
	}, nil
}

// extractName scans the prioritized name fields, then falls back to the
// first column (in sorted key order, for determinism) whose value passes the
// name predicate plus a (3, 50) exclusive length bound. Days-type columns
// are excluded from the fallback.
func extractName(row map[string]string) string {
	for _, field := range nameFields {
		value := strings.TrimSpace(row[field])
		if value != "" && !looksLikeDate(value) && !isPurelyNumeric(value) {
			return value
		}
	}

	daysDenylist := make(map[string]bool, len(daysFields))
	for _, f := range daysFields {
		daysDenylist[f] = true
	}

	for _, key := range sortedDataKeys(row) {
		if daysDenylist[key] {
			continue
		}
		value := strings.TrimSpace(row[key])
		length := utf8.RuneCountInString(value)
		if value != "" && !looksLikeDate(value) && !isPurelyNumeric(value) &&
			length > 3 && length < 50 {
			return value
		}
	}

	return UnknownName
}

// extractDays finds the raw days cell and interprets it. Returns the raw
// value, whether a medical book is present, and the signed days left.
func (n *Normalizer) extractDays(row map[string]string) (string, bool, int) {
	var raw string
	for _, field := range daysFields {
		if value := strings.TrimSpace(row[field]); value != "" {
			raw = value
			break
		}
	}
	if raw == "" {
		// No designated column; take the first numeric-looking value.
		for _, key := range sortedDataKeys(row) {
			value := strings.TrimSpace(row[key])
			if value != "" && numericPattern.MatchString(value) {
				raw = value
				break
			}
		}
	}

	switch {
	case raw == "" || absentTokens[strings.ToLower(raw)]:
		return raw, false, DaysAbsent
	case intPattern.MatchString(raw):
		days, err := strconv.Atoi(raw)
		if err != nil {
			return raw, false, DaysAbsent
		}
		return raw, true, days
	case looksLikeDate(raw):
		return raw, true, n.daysUntil(raw)
	default:
		return raw, false, DaysAbsent
	}
}

// extractPosition scans the prioritized position fields for the first
// non-empty value under 50 characters.
func extractPosition(row map[string]string) string {
	for _, field := range positionFields {
		value := strings.TrimSpace(row[field])
		if value != "" && utf8.RuneCountInString(value) < 50 {
			return value
		}
	}
	return ""
}

// looksLikeDate reports whether a value has the shape D.M.Y, D/M/Y or D-M-Y
// with 1-2 digit day and month and a 2-or-4-digit year.
func looksLikeDate(value string) bool {
	for _, sep := range []string{".", "/", "-"} {
		parts := strings.Split(value, sep)
		if len(parts) != 3 {
			continue
		}
		if isDigitLen(parts[0], 1, 2) && isDigitLen(parts[1], 1, 2) &&
			(isDigitLen(parts[2], 2, 2) || isDigitLen(parts[2], 4, 4)) {
			return true
		}
	}
	return false
}

// daysUntil parses a date-looking value and returns the calendar-day
// difference from now (floor semantics, so a partial day in the past counts
// as -1). Returns 0 if no layout matches.
func (n *Normalizer) daysUntil(value string) int {
	now := n.now()
	for _, layout := range dateLayouts {
		target, err := time.ParseInLocation(layout, value, now.Location())
		if err != nil {
			continue
		}
		return int(math.Floor(target.Sub(now).Hours() / 24))
	}
	return 0
}

// isPurelyNumeric matches the "digits, possibly dotted" shapes that should
// never be accepted as a name (row numbers, day counts, float artifacts).
func isPurelyNumeric(value string) bool {
	stripped := strings.ReplaceAll(value, ".", "")
	if stripped == "" {
		return false
	}
	for _, r := range stripped {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func isDigitLen(s string, minLen, maxLen int) bool {
	if len(s) < minLen || len(s) > maxLen {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func countDataColumns(row map[string]string) int {
	count := 0
	for key := range row {
		if !strings.HasPrefix(key, "_") {
			count++
		}
	}
	return count
}

func sortedDataKeys(row map[string]string) []string {
	keys := make([]string, 0, len(row))
	for key := range row {
		if strings.HasPrefix(key, "_") {
			continue
		}
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
