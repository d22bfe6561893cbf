package zedupdate

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// UnknownVersion is reported when the installed version cannot be determined.
const UnknownVersion = "unknown"

var (
	reDateVersion   = regexp.MustCompile(`^\d{8}$`)
	reVersionFilter = regexp.MustCompile(`[^\d.]`)
)

// IsDateVersion reports whether version is an 8 digit YYYYMMDD stamp.
func IsDateVersion(version string) bool {
	return reDateVersion.MatchString(version)
}

// CompareVersions returns -1 when a is older than b, 0 when they are the same
// version and 1 when a is newer than b.
//
// Two date stamps compare by value. A date stamp is always newer than a dotted version.
// Dotted versions are compared component by component after removing every character
// that is neither a digit nor a dot; missing components count as zero (up to 3),
// and when all components are equal the version with more components is newer.
//
// A version that cannot be parsed makes b the newer one: the function never fails.
func CompareVersions(a, b string) int {
	aDate, bDate := IsDateVersion(a), IsDateVersion(b)
	switch {
	case aDate && bDate:
		return strings.Compare(a, b)
	case aDate:
		return 1
	case bDate:
		return -1
	}

	aParts, err := ParseVersion(a)
	if err != nil {
		log.Printf("cannot compare %q with %q: %s", a, b, err)
		return -1
	}
	bParts, err := ParseVersion(b)
	if err != nil {
		log.Printf("cannot compare %q with %q: %s", a, b, err)
		return -1
	}

	for i := 0; i < len(aParts) && i < len(bParts); i++ {
		if aParts[i] < bParts[i] {
			return -1
		}
		if aParts[i] > bParts[i] {
			return 1
		}
	}
	switch {
	case len(aParts) < len(bParts):
		return -1
	case len(aParts) > len(bParts):
		return 1
	}
	return 0
}

// ParseVersion parses a dotted version into its numeric components,
// padded with zeros to at least 3 components.
func ParseVersion(version string) ([]uint64, error) {
	clean := strings.Trim(reVersionFilter.ReplaceAllString(version, ""), ".")
	if clean == "" {
		return nil, fmt.Errorf("%w: no version number in %q", ErrValidation, version)
	}
	fields := strings.Split(clean, ".")
	parts := make([]uint64, 0, max(len(fields), 3))
	for _, field := range fields {
		value, err := strconv.ParseUint(field, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid version component %q in %q", ErrValidation, field, version)
		}
		parts = append(parts, value)
	}
	for len(parts) < 3 {
		parts = append(parts, 0)
	}
	return parts, nil
}

// IsNewer reports whether latest should be offered as an update over current.
// An empty or unknown current version always gets the update.
func IsNewer(current, latest string) bool {
	if current == "" || current == UnknownVersion {
		return true
	}
	return CompareVersions(current, latest) < 0
}
