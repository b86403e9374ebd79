// Package chatlog parses exported chat logs and matches their messages to
// listings.
package chatlog

import (
	"bufio"
	"fmt"
	"io"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Message is one chat message. At is wall-clock time as written in the
// export, stored in UTC.
type Message struct {
	At     time.Time `json:"at"`
	Author string    `json:"author"`
	Text   string    `json:"text"`
}

var (
	// 2025. 3. 4. 오후 2:13, 홍길동 : text
	// 2025-03-04 14:13, 홍길동 : text
	datedHeaderRe = regexp.MustCompile(`^(\d{4})[.\-/]\s*(\d{1,2})[.\-/]\s*(\d{1,2})\.?\s*(오전|오후|AM|PM)?\s*(\d{1,2}):(\d{2})(?::\d{2})?\s*,\s*(.+?)\s*:\s?(.*)$`)
	// [홍길동] [오후 2:13] text
	bracketHeaderRe = regexp.MustCompile(`^\[(.+?)\]\s*\[(오전|오후|AM|PM)?\s*(\d{1,2}):(\d{2})\]\s?(.*)$`)
	// --------------- 2025년 3월 4일 화요일 ---------------
	dateSeparatorRe = regexp.MustCompile(`^-*\s*(\d{4})년\s*(\d{1,2})월\s*(\d{1,2})일[^:\[\]]*$`)
)

// Parse reads a chat export. HTML exports are recognised by extension,
// everything else is treated as a plain-text export. Messages come back
// sorted by time; messages sharing a timestamp keep their file order.
func Parse(filename string, r io.Reader) ([]Message, error) {
	var (
		msgs []Message
		err  error
	)
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".html", ".htm":
		msgs, err = parseHTML(r)
	default:
		msgs, err = parseText(r)
	}
	if err != nil {
		return nil, err
	}

	sort.SliceStable(msgs, func(i, j int) bool {
		return msgs[i].At.Before(msgs[j].At)
	})
	return msgs, nil
}

func parseText(r io.Reader) ([]Message, error) {
	var (
		msgs    []Message
		current *Message
		day     time.Time
	)

	flush := func() {
		if current != nil {
			current.Text = strings.TrimSpace(current.Text)
			if current.Text != "" {
				msgs = append(msgs, *current)
			}
			current = nil
		}
	}

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), "\r")
		line = strings.TrimPrefix(line, "\ufeff")

		if m := datedHeaderRe.FindStringSubmatch(line); m != nil {
			flush()
			at, err := buildTime(m[1], m[2], m[3], m[4], m[5], m[6])
			if err != nil {
				return nil, err
			}
			current = &Message{At: at, Author: m[7], Text: m[8]}
			continue
		}

		if m := dateSeparatorRe.FindStringSubmatch(line); m != nil {
			flush()
			d, err := buildTime(m[1], m[2], m[3], "", "0", "00")
			if err != nil {
				return nil, err
			}
			day = d
			continue
		}

		if m := bracketHeaderRe.FindStringSubmatch(line); m != nil {
			flush()
			if day.IsZero() {
				// no date separator seen yet; the message and its
				// continuation lines are dropped
				continue
			}
			at, err := buildTime(
				strconv.Itoa(day.Year()), strconv.Itoa(int(day.Month())), strconv.Itoa(day.Day()),
				m[2], m[3], m[4])
			if err != nil {
				return nil, err
			}
			current = &Message{At: at, Author: m[1], Text: m[5]}
			continue
		}

		if current != nil {
			current.Text += "\n" + line
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read chat log: %w", err)
	}
	flush()
	return msgs, nil
}

func buildTime(year, month, day, meridiem, hour, minute string) (time.Time, error) {
	y, err1 := strconv.Atoi(year)
	mo, err2 := strconv.Atoi(month)
	d, err3 := strconv.Atoi(day)
	h, err4 := strconv.Atoi(hour)
	mi, err5 := strconv.Atoi(minute)
	for _, err := range []error{err1, err2, err3, err4, err5} {
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid timestamp: %w", err)
		}
	}

	switch meridiem {
	case "오후", "PM":
		if h < 12 {
			h += 12
		}
	case "오전", "AM":
		if h == 12 {
			h = 0
		}
	}

	if mo < 1 || mo > 12 || d < 1 || d > 31 || h > 23 || mi > 59 {
		return time.Time{}, fmt.Errorf("invalid timestamp %s-%s-%s %s:%s", year, month, day, hour, minute)
	}
	return time.Date(y, time.Month(mo), d, h, mi, 0, 0, time.UTC), nil
}
