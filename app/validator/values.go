package validator

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/language"
)

// Value predicates. Each is a pure function of the trimmed text it
// receives, testable in isolation.

func isNotEmpty(s string) bool {
	return s != ""
}

func isURL(s string) bool {
	u, err := url.Parse(s)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

func isURI(s string) bool {
	u, err := url.Parse(s)
	return err == nil && u.Scheme != ""
}

func isMimeType(s string) bool {
	i := strings.IndexByte(s, '/')
	return i > 0 && i < len(s)-1 && !strings.ContainsAny(s, " \t")
}

var emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// isEmailAddress accepts "user@host" with an optional trailing
// display name in parentheses, the common RSS convention.
func isEmailAddress(s string) bool {
	if i := strings.IndexByte(s, '('); i > 0 && strings.HasSuffix(s, ")") {
		s = strings.TrimSpace(s[:i])
	}
	return emailPattern.MatchString(s)
}

var rfc2822Layouts = []string{
	"Mon, 02 Jan 2006 15:04:05 -0700",
	"Mon, 02 Jan 2006 15:04:05 MST",
	"Mon, 2 Jan 2006 15:04:05 -0700",
	"Mon, 2 Jan 2006 15:04:05 MST",
	"02 Jan 2006 15:04:05 -0700",
	"02 Jan 2006 15:04:05 MST",
}

func isRFC2822(s string) bool {
	for _, layout := range rfc2822Layouts {
		if _, err := time.Parse(layout, s); err == nil {
			return true
		}
	}
	return false
}

var iso8601Layouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

func isISO8601(s string) bool {
	for _, layout := range iso8601Layouts {
		if _, err := time.Parse(layout, s); err == nil {
			return true
		}
	}
	return false
}

func isNonNegativeInteger(s string) bool {
	n, err := strconv.ParseInt(s, 10, 64)
	return err == nil && n >= 0
}

func isPositiveInteger(s string) bool {
	n, err := strconv.ParseInt(s, 10, 64)
	return err == nil && n > 0
}

func isDecimal(s string) bool {
	_, err := strconv.ParseFloat(s, 64)
	return err == nil
}

// isSeconds accepts a non-negative decimal number of seconds.
func isSeconds(s string) bool {
	n, err := strconv.ParseFloat(s, 64)
	return err == nil && n >= 0
}

func isBoolean(s string) bool {
	return s == "true" || s == "false"
}

func isYesNo(s string) bool {
	lower := strings.ToLower(s)
	return lower == "yes" || lower == "no"
}

// isLanguageTag accepts BCP 47 language tags.
func isLanguageTag(s string) bool {
	_, err := language.Parse(s)
	return err == nil
}

var uuidPattern = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`)

func isUUID(s string) bool {
	return uuidPattern.MatchString(s)
}

// isGeoURI accepts RFC 5870 geo URIs, e.g. "geo:30.1,-90.2".
var geoPattern = regexp.MustCompile(`^geo:-?\d+(\.\d+)?,-?\d+(\.\d+)?([,;].*)?$`)

func isGeoURI(s string) bool {
	return geoPattern.MatchString(s)
}

// isOpenStreetMapIdentifier accepts OSM element references like
// "R148838" or "W5013364#3".
var osmPattern = regexp.MustCompile(`^[NWR]\d+(#\d+)?$`)

func isOpenStreetMapIdentifier(s string) bool {
	return osmPattern.MatchString(s)
}

// isRecurrenceRule is a loose RFC 5545 RRULE shape check: semicolon
// separated KEY=VALUE parts including a FREQ.
var rrulePartPattern = regexp.MustCompile(`^[A-Z]+=[^;=]+$`)

func isRecurrenceRule(s string) bool {
	sawFreq := false
	for _, part := range strings.Split(s, ";") {
		if !rrulePartPattern.MatchString(part) {
			return false
		}
		if strings.HasPrefix(part, "FREQ=") {
			sawFreq = true
		}
	}
	return sawFreq
}

// Rules shared across checks.
var (
	anyValue             = ValueRule{}
	notEmptyValue        = ValueRule{isNotEmpty, "a non-empty value"}
	urlValue             = ValueRule{isURL, "a URL"}
	uriValue             = ValueRule{isURI, "a URI"}
	mimeTypeValue        = ValueRule{isMimeType, "a MIME type"}
	emailValue           = ValueRule{isEmailAddress, "an email address, optionally followed by a name in parentheses"}
	rfc2822Value         = ValueRule{isRFC2822, "an RFC 2822 date"}
	iso8601Value         = ValueRule{isISO8601, "an ISO 8601 date"}
	nonNegativeIntValue  = ValueRule{isNonNegativeInteger, "a non-negative integer"}
	positiveIntValue     = ValueRule{isPositiveInteger, "a positive integer"}
	decimalValue         = ValueRule{isDecimal, "a decimal number"}
	secondsValue         = ValueRule{isSeconds, "a number of seconds"}
	booleanValue         = ValueRule{isBoolean, "true or false"}
	yesNoValue           = ValueRule{isYesNo, "yes or no"}
	languageTagValue     = ValueRule{isLanguageTag, "a BCP 47 language tag"}
	uuidValue            = ValueRule{isUUID, "a UUID"}
	recurrenceRuleValue  = ValueRule{isRecurrenceRule, "an RFC 5545 recurrence rule"}
)
