package services

import (
	"fmt"
	"math"
	"regexp"
	"strings"
	"time"

	"github.com/fenilmodi00/ipo-tracker/models"
	"github.com/fenilmodi00/ipo-tracker/shared"
)

// UtilityService provides date arithmetic and text normalization shared by the services
type UtilityService struct {
	location *time.Location
}

// NewUtilityService creates a utility service that interprets calendar dates in time.Local
func NewUtilityService() *UtilityService {
	return NewUtilityServiceIn(time.Local)
}

func NewUtilityServiceIn(loc *time.Location) *UtilityService {
	if loc == nil {
		loc = time.Local
	}
	return &UtilityService{location: loc}
}

// CalendarDay parses an IPO date and returns midnight of that day in the service location.
// Plain dates are taken as written; timestamps are converted first.
func (s *UtilityService) CalendarDay(value string) (time.Time, bool) {
	t, err := shared.ParseIPODate(value)
	if err != nil {
		return time.Time{}, false
	}
	if len(strings.TrimSpace(value)) > len("2006-01-02") {
		t = t.In(s.location)
	}
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, s.location), true
}

// Midnight truncates now to the start of its day in the service location
func (s *UtilityService) Midnight(now time.Time) time.Time {
	now = now.In(s.location)
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, s.location)
}

// DaysUntil counts whole calendar days from today's midnight to the given date.
// Negative when the date has passed.
func (s *UtilityService) DaysUntil(value string, now time.Time) (int, bool) {
	day, ok := s.CalendarDay(value)
	if !ok {
		return 0, false
	}
	// both ends are midnights, so only DST shifts can make this fractional
	return int(math.Round(day.Sub(s.Midnight(now)).Hours() / 24)), true
}

// CalculateIPOStatus derives the lifecycle status from the listing's calendar dates
func (s *UtilityService) CalculateIPOStatus(ipo *models.IPO, now time.Time) string {
	open, okOpen := s.CalendarDay(ipo.OpenDate)
	closeDay, okClose := s.CalendarDay(ipo.CloseDate)
	if !okOpen || !okClose {
		return models.IPOStatusUnknown
	}

	today := s.Midnight(now)

	if ipo.ListingDate != nil {
		if listing, ok := s.CalendarDay(*ipo.ListingDate); ok && !today.Before(listing) {
			return models.IPOStatusListed
		}
	}

	switch {
	case today.Before(open):
		return models.IPOStatusUpcoming
	case today.After(closeDay):
		return models.IPOStatusClosed
	default:
		return models.IPOStatusOpen
	}
}

// FormatDisplayDate renders an IPO date as d/m/yyyy, falling back to the raw value
func (s *UtilityService) FormatDisplayDate(value string) string {
	day, ok := s.CalendarDay(value)
	if !ok {
		return value
	}
	return fmt.Sprintf("%d/%d/%d", day.Day(), int(day.Month()), day.Year())
}

// NormalizePAN upper-cases and trims a PAN for comparison
func (s *UtilityService) NormalizePAN(pan string) string {
	return strings.ToUpper(strings.TrimSpace(pan))
}

var whitespaceRegex = regexp.MustCompile(`\s+`)

// CleanText trims and collapses internal whitespace
func (s *UtilityService) CleanText(text string) string {
	return strings.TrimSpace(whitespaceRegex.ReplaceAllString(text, " "))
}

// NormalizeIPOName normalizes an IPO name for matching.
// Removes common suffixes, special characters, converts to lowercase, and trims whitespace
func (s *UtilityService) NormalizeIPOName(name string) string {
	normalized := strings.ToLower(s.CleanText(name))

	suffixes := []string{" ltd.", " ltd", " limited", " pvt.", " pvt", " private", " ipo"}
	for _, suffix := range suffixes {
		normalized = strings.TrimSuffix(normalized, suffix)
	}

	reg := regexp.MustCompile(`[^a-z0-9\s]`)
	normalized = reg.ReplaceAllString(normalized, "")

	return strings.TrimSpace(normalized)
}
