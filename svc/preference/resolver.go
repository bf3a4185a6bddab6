package preference

import (
	"strconv"
	"strings"
	"time"
)

// IsChannelEnabled reports whether delivery over channel is allowed.
// Missing preferences and unconfigured channels are allowed.
func IsChannelEnabled(p *Preferences, channel string) bool {
	if p == nil {
		return true
	}
	flag := p.channelFlag(channel)
	return flag == nil || *flag
}

// IsCategoryEnabled reports whether category is allowed. Only an explicit
// false entry blocks it.
func IsCategoryEnabled(p *Preferences, category string) bool {
	if p == nil || category == "" {
		return true
	}
	enabled, ok := p.Categories[category]
	return !ok || enabled
}

// IsInQuietHours compares now, as HH:MM in the user's time zone, against the
// quiet-hours window with an inclusive string comparison. The window is
// treated as same-day: start 22:00 and end 07:00 never matches.
func IsInQuietHours(p *Preferences, now time.Time) bool {
	if !p.HasQuietHours() {
		return false
	}
	local := now.In(p.Location()).Format("15:04")
	return p.QuietHoursStart <= local && local <= p.QuietHoursEnd
}

// NextAvailableTime returns the instant deliveries may resume: the next
// calendar day at QuietHoursEnd in the user's time zone. Outside quiet
// hours it returns now.
func NextAvailableTime(p *Preferences, now time.Time) time.Time {
	if !IsInQuietHours(p, now) {
		return now
	}
	h, m, ok := parseClock(p.QuietHoursEnd)
	if !ok {
		return now
	}
	local := now.In(p.Location())
	return time.Date(local.Year(), local.Month(), local.Day()+1, h, m, 0, 0, local.Location())
}

// NextDigestTime returns the next digest slot strictly after now: daily at
// Digest.Time, or on Monday for weekly digests. A slot that falls inside
// quiet hours is pushed to NextAvailableTime.
func NextDigestTime(p *Preferences, now time.Time) time.Time {
	if p == nil || !p.Digest.Enabled {
		return now
	}
	clock := p.Digest.Time
	if clock == "" {
		clock = DefaultDigestTime
	}
	h, m, ok := parseClock(clock)
	if !ok {
		return now
	}

	local := now.In(p.Location())
	next := time.Date(local.Year(), local.Month(), local.Day(), h, m, 0, 0, local.Location())
	if !next.After(local) {
		next = next.AddDate(0, 0, 1)
	}
	if p.Digest.Frequency == DigestWeekly {
		days := (int(time.Monday) - int(next.Weekday()) + 7) % 7
		next = next.AddDate(0, 0, days)
	}

	if IsInQuietHours(p, next) {
		return NextAvailableTime(p, next)
	}
	return next
}

func parseClock(s string) (hour, minute int, ok bool) {
	hh, mm, found := strings.Cut(s, ":")
	if !found {
		return 0, 0, false
	}
	h, err1 := strconv.Atoi(hh)
	m, err2 := strconv.Atoi(mm)
	if err1 != nil || err2 != nil || h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, 0, false
	}
	return h, m, true
}
