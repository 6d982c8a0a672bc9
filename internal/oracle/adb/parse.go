package adb

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

const accessLayout = "2006-01-02 15:04:05.000"

var (
	absoluteAccessRe = regexp.MustCompile(`Access: \[[^\]]*\] (\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2}\.\d{3})`)
	relativeAccessRe = regexp.MustCompile(`\((-[0-9dhms]+)\)`)
	legacyAccessRe   = regexp.MustCompile(`time=\+([0-9dhms]+) ago`)
	foregroundRe     = regexp.MustCompile(`(?:mResumedActivity|topResumedActivity)[:=]\s*ActivityRecord\{[^ ]+ u\d+ ([^/ }]+)/`)
)

var errNoAccessTime = errors.New("no parseable access time")

// parseAppOps reads `dumpsys appops --op X` output and returns the most recent
// access per package. Packages that show an access line that cannot be
// parsed are returned in failed.
func parseAppOps(out []byte, now time.Time, loc *time.Location) (last map[string]time.Time, failed map[string]error) {
	last = make(map[string]time.Time)
	failed = make(map[string]error)

	var pkg string
	sc := bufio.NewScanner(bytes.NewReader(out))
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		switch {
		case strings.HasPrefix(line, "Uid "):
			pkg = ""
			continue
		case strings.HasPrefix(line, "Package ") && strings.HasSuffix(line, ":"):
			pkg = strings.TrimSuffix(strings.TrimPrefix(line, "Package "), ":")
			continue
		}
		if pkg == "" {
			continue
		}
		if !strings.Contains(line, "Access:") && !strings.Contains(line, "time=+") {
			continue
		}

		at, err := accessTime(line, now, loc)
		if err != nil {
			if _, ok := last[pkg]; !ok {
				failed[pkg] = fmt.Errorf("package %s: %w", pkg, err)
			}
			continue
		}
		delete(failed, pkg)
		if prev, ok := last[pkg]; !ok || at.After(prev) {
			last[pkg] = at
		}
	}
	return last, failed
}

func accessTime(line string, now time.Time, loc *time.Location) (time.Time, error) {
	if m := absoluteAccessRe.FindStringSubmatch(line); m != nil {
		if t, err := time.ParseInLocation(accessLayout, m[1], loc); err == nil {
			return t.UTC(), nil
		}
	}
	if m := relativeAccessRe.FindStringSubmatch(line); m != nil {
		d, err := parseAndroidDuration(strings.TrimPrefix(m[1], "-"))
		if err != nil {
			return time.Time{}, err
		}
		return now.Add(-d).UTC(), nil
	}
	if m := legacyAccessRe.FindStringSubmatch(line); m != nil {
		d, err := parseAndroidDuration(m[1])
		if err != nil {
			return time.Time{}, err
		}
		return now.Add(-d).UTC(), nil
	}
	return time.Time{}, errNoAccessTime
}

// parseAndroidDuration accepts TimeUtils.formatDuration output such as
// "1d2h3m4s5ms", which is a Go duration apart from the day unit.
func parseAndroidDuration(s string) (time.Duration, error) {
	var days time.Duration
	if i := strings.IndexByte(s, 'd'); i >= 0 {
		n, err := strconv.Atoi(s[:i])
		if err != nil {
			return 0, fmt.Errorf("duration %q: %w", s, err)
		}
		days = time.Duration(n) * 24 * time.Hour
		s = s[i+1:]
	}
	if s == "" {
		return days, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("duration %q: %w", s, err)
	}
	return days + d, nil
}

// parseForeground extracts the package of the resumed activity from
// `dumpsys activity activities`. It returns "" when no activity is resumed.
func parseForeground(out []byte) string {
	if m := foregroundRe.FindSubmatch(out); m != nil {
		return string(m[1])
	}
	return ""
}

// parseScreenOn reads `dumpsys power`.
func parseScreenOn(out []byte) (bool, error) {
	s := string(out)
	if i := strings.Index(s, "mWakefulness="); i >= 0 {
		v := s[i+len("mWakefulness="):]
		if j := strings.IndexAny(v, " \r\n"); j >= 0 {
			v = v[:j]
		}
		return v == "Awake", nil
	}
	if i := strings.Index(s, "Display Power: state="); i >= 0 {
		v := s[i+len("Display Power: state="):]
		return strings.HasPrefix(v, "ON"), nil
	}
	return false, errors.New("screen state not found in dumpsys power")
}
