package feepayment

import (
	"strconv"
	"strings"
	"time"
	"unicode"
)

const studentSliceLen = 8

// NewReference builds the merchant reference sent to the gateway:
// PREFIX-YYYY-STUDENT-MILLIS, where STUDENT is the first eight alphanumeric
// characters of the student id. Uniqueness comes from the millisecond clock
// and is enforced by the ledger's unique index.
func NewReference(prefix, studentID string, at time.Time) string {
	at = at.UTC()
	return strings.Join([]string{
		strings.ToUpper(prefix),
		strconv.Itoa(at.Year()),
		studentSlice(studentID),
		strconv.FormatInt(at.UnixMilli(), 10),
	}, "-")
}

func studentSlice(studentID string) string {
	var b strings.Builder
	n := 0
	for _, r := range studentID {
		if n == studentSliceLen {
			break
		}
		if r > unicode.MaxASCII || !(unicode.IsLetter(r) || unicode.IsDigit(r)) {
			continue
		}
		b.WriteRune(r)
		n++
	}
	return b.String()
}
