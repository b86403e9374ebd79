package dto

import "time"

// MemoMatch is one message applied to a listing.
type MemoMatch struct {
	ListingID uint      `json:"listing_id"`
	Method    string    `json:"method"`
	Score     float64   `json:"score"`
	At        time.Time `json:"at"`
	Excerpt   string    `json:"excerpt"`
}

// UnmatchedMessage is a message no listing could be found for.
type UnmatchedMessage struct {
	At      time.Time `json:"at"`
	Author  string    `json:"author"`
	Reason  string    `json:"reason"`
	Excerpt string    `json:"excerpt"`
}

// MemoImportReport is the outcome of a chat-log import.
type MemoImportReport struct {
	DryRun          bool               `json:"dry_run"`
	Messages        int                `json:"messages"`
	Matched         int                `json:"matched"`
	Matches         []MemoMatch        `json:"matches"`
	Unmatched       []UnmatchedMessage `json:"unmatched"`
	UpdatedListings []uint             `json:"updated_listings"`
}
