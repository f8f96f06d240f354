// internal/functions/digest/activity.go
package digest

import (
	"context"
	"database/sql"
	"time"

	"congregation-functions/internal/common/errors"
	"congregation-functions/internal/models"
)

// Store is the relational side of the batcher: member paging, board
// enumeration, activity counts, and the notification watermarks.
type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

const pageMembersQuery = `
	SELECT id, first_name, last_name, email
	FROM members
	WHERE account_id IS NOT NULL
	  AND email IS NOT NULL AND email <> ''
	ORDER BY id
	LIMIT $1 OFFSET $2`

const activeBoardsQuery = `
	SELECT id, name
	FROM boards
	WHERE archived = FALSE
	ORDER BY id`

const lastNotifiedQuery = `
	SELECT last_notified_at
	FROM board_notifications
	WHERE member_id = $1 AND board_id = $2`

const messageCountsQuery = `
	SELECT
		COUNT(*),
		COUNT(*) FILTER (WHERE bm.reply_to IS NOT NULL)
	FROM board_messages bm
	JOIN board_threads bt ON bt.id = bm.thread_id
	WHERE bt.board_id = $1
	  AND bt.archived = FALSE
	  AND bm.deleted = FALSE
	  AND bm.created_at > $2`

const threadCountQuery = `
	SELECT COUNT(*)
	FROM board_threads
	WHERE board_id = $1
	  AND archived = FALSE
	  AND created_at > $2`

const upsertWatermarkQuery = `
	INSERT INTO board_notifications (member_id, board_id, last_notified_at)
	VALUES ($1, $2, $3)
	ON CONFLICT (member_id, board_id)
	DO UPDATE SET last_notified_at = EXCLUDED.last_notified_at`

// PageMembers returns the next page of digest-eligible members. Eligibility
// is a linked account and a usable email; ordering by id keeps the paging
// stable across the chain.
func (s *Store) PageMembers(ctx context.Context, limit, offset int) ([]models.Member, error) {
	rows, err := s.db.QueryContext(ctx, pageMembersQuery, limit, offset)
	if err != nil {
		return nil, errors.NewQueryExecutionFailedError("page_members", err)
	}
	defer rows.Close()

	var members []models.Member
	for rows.Next() {
		var m models.Member
		var firstName, lastName sql.NullString
		if err := rows.Scan(&m.ID, &firstName, &lastName, &m.Email); err != nil {
			return nil, errors.NewQueryExecutionFailedError("page_members", err)
		}
		m.FirstName = firstName.String
		m.LastName = lastName.String
		members = append(members, m)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewQueryExecutionFailedError("page_members", err)
	}
	return members, nil
}

// ActiveBoards returns every non-archived board.
func (s *Store) ActiveBoards(ctx context.Context) ([]models.Board, error) {
	rows, err := s.db.QueryContext(ctx, activeBoardsQuery)
	if err != nil {
		return nil, errors.NewQueryExecutionFailedError("active_boards", err)
	}
	defer rows.Close()

	var boards []models.Board
	for rows.Next() {
		var b models.Board
		if err := rows.Scan(&b.ID, &b.Name); err != nil {
			return nil, errors.NewQueryExecutionFailedError("active_boards", err)
		}
		boards = append(boards, b)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewQueryExecutionFailedError("active_boards", err)
	}
	return boards, nil
}

// LastNotifiedAt returns the member's watermark row for a board, with found
// reporting whether one exists yet.
func (s *Store) LastNotifiedAt(ctx context.Context, memberID, boardID string) (models.BoardNotification, bool, error) {
	mark := models.BoardNotification{MemberID: memberID, BoardID: boardID}
	err := s.db.QueryRowContext(ctx, lastNotifiedQuery, memberID, boardID).Scan(&mark.LastNotifiedAt)
	if err == sql.ErrNoRows {
		return mark, false, nil
	}
	if err != nil {
		return mark, false, errors.NewQueryExecutionFailedError("last_notified_at", err)
	}
	return mark, true, nil
}

// BoardActivitySince counts the board's messages, replies, and new threads
// created after the window start. Deleted messages and archived threads
// never count.
func (s *Store) BoardActivitySince(ctx context.Context, board models.Board, since time.Time) (models.BoardActivity, error) {
	activity := models.BoardActivity{BoardID: board.ID, BoardName: board.Name}

	err := s.db.QueryRowContext(ctx, messageCountsQuery, board.ID, since).
		Scan(&activity.MessageCount, &activity.ReplyCount)
	if err != nil {
		return activity, errors.NewQueryExecutionFailedError("message_counts", err)
	}

	err = s.db.QueryRowContext(ctx, threadCountQuery, board.ID, since).
		Scan(&activity.ThreadCount)
	if err != nil {
		return activity, errors.NewQueryExecutionFailedError("thread_count", err)
	}

	return activity, nil
}

// UpsertWatermark records that the member was notified about the board at
// the given time. Existing rows are advanced, never deleted.
func (s *Store) UpsertWatermark(ctx context.Context, mark models.BoardNotification) error {
	if _, err := s.db.ExecContext(ctx, upsertWatermarkQuery, mark.MemberID, mark.BoardID, mark.LastNotifiedAt); err != nil {
		return errors.NewQueryExecutionFailedError("upsert_watermark", err)
	}
	return nil
}
