package models

import "time"

// Board is a message board row.
type Board struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Archived bool   `json:"archived"`
}

// BoardActivity is one member's unread activity on one board over one
// digest window. A board enters a digest only if at least one count is
// positive.
type BoardActivity struct {
	BoardID      string `json:"boardId"`
	BoardName    string `json:"boardName"`
	MessageCount int    `json:"messageCount"`
	ReplyCount   int    `json:"replyCount"`
	ThreadCount  int    `json:"threadCount"`
}

// HasActivity reports whether the board should be included in a digest.
func (a BoardActivity) HasActivity() bool {
	return a.MessageCount > 0 || a.ReplyCount > 0 || a.ThreadCount > 0
}

// BoardNotification is the per-(member, board) watermark row. It is
// upserted only after a successful digest send and is never deleted by the
// dispatch subsystem.
type BoardNotification struct {
	MemberID       string    `json:"memberId"`
	BoardID        string    `json:"boardId"`
	LastNotifiedAt time.Time `json:"lastNotifiedAt"`
}
