package chatlog

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// Telegram desktop writes titles like "04.03.2025 14:13:00 UTC+09:00".
const htmlDateLayout = "02.01.2006 15:04:05"

// parseHTML reads a Telegram desktop HTML export. Consecutive messages
// from the same sender are marked "joined" and omit the sender name.
func parseHTML(r io.Reader) ([]Message, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parse html chat log: %w", err)
	}

	var (
		msgs       []Message
		lastAuthor string
		parseErr   error
	)

	doc.Find("div.message").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if s.HasClass("service") {
			return true
		}

		body := s.Find("div.text").First()
		if body.Length() == 0 {
			return true
		}
		body.Find("br").ReplaceWithHtml("\n")
		text := strings.TrimSpace(body.Text())
		if text == "" {
			return true
		}

		author := strings.TrimSpace(s.Find("div.from_name").First().Text())
		if author == "" {
			author = lastAuthor
		}
		lastAuthor = author

		title, _ := s.Find("div.date").First().Attr("title")
		at, err := parseHTMLDate(title)
		if err != nil {
			parseErr = err
			return false
		}

		msgs = append(msgs, Message{At: at, Author: author, Text: text})
		return true
	})
	if parseErr != nil {
		return nil, parseErr
	}
	return msgs, nil
}

func parseHTMLDate(title string) (time.Time, error) {
	title = strings.TrimSpace(title)
	if len(title) < len(htmlDateLayout) {
		return time.Time{}, fmt.Errorf("invalid message date %q", title)
	}
	at, err := time.Parse(htmlDateLayout, title[:len(htmlDateLayout)])
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid message date %q: %w", title, err)
	}
	return at, nil
}
