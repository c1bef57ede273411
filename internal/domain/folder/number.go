package folder

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Project numbers are YY-CCCNN: two-digit year, dial code, two-digit sequence.
var (
	numberPattern    = regexp.MustCompile(`^(\d{2})-(\d{1,3})(\d{2})$`)
	numberLikePrefix = regexp.MustCompile(`^\d{2}-`)
)

// Number is a parsed canonical project number.
type Number struct {
	Year    int `json:"year"`
	Country int `json:"country"`
	Seq     int `json:"seq"`
}

// ParseNumber parses a canonical number such as 25-97101.
func ParseNumber(raw string) (Number, error) {
	m := numberPattern.FindStringSubmatch(raw)
	if m == nil {
		return Number{}, fmt.Errorf("%w: %q", ErrInvalidNumber, raw)
	}
	year, _ := strconv.Atoi(m[1])
	country, _ := strconv.Atoi(m[2])
	seq, _ := strconv.Atoi(m[3])
	if country == 0 {
		return Number{}, fmt.Errorf("%w: %q has no country code", ErrInvalidNumber, raw)
	}
	return Number{Year: year, Country: country, Seq: seq}, nil
}

// NewNumber validates the components of a canonical number.
func NewNumber(year, country, seq int) (Number, error) {
	n := Number{Year: year, Country: country, Seq: seq}
	if year < 0 || year > 99 || country < 1 || country > 999 || seq < 1 || seq > 99 {
		return Number{}, fmt.Errorf("%w: year=%d country=%d seq=%d", ErrInvalidNumber, year, country, seq)
	}
	return n, nil
}

func (n Number) String() string {
	return fmt.Sprintf("%02d-%d%02d", n.Year, n.Country, n.Seq)
}

// LeafPrefix returns the part of a folder leaf name before the first space.
// Only this prefix identifies a project; the free text after it is never read.
func LeafPrefix(name string) string {
	if i := strings.IndexByte(name, ' '); i >= 0 {
		return name[:i]
	}
	return name
}

// LeafName builds a project folder name from its number and short name.
func LeafName(number, shortName string) string {
	shortName = strings.TrimSpace(shortName)
	if shortName == "" {
		return number
	}
	return number + " " + shortName
}

// LooksLikeProject reports whether a leaf name starts like a project number,
// whether or not it parses.
func LooksLikeProject(name string) bool {
	return numberLikePrefix.MatchString(name)
}
