// internal/functions/digest/service.go
package digest

import (
	"context"
	"fmt"
	"strings"
	"time"

	"congregation-functions/internal/common/logger"
	"congregation-functions/internal/common/metrics"
	"congregation-functions/internal/functions/notify"
	"congregation-functions/internal/models"

	"github.com/google/uuid"
)

// Dispatcher hands a board-summary event to the notifier.
type Dispatcher interface {
	Dispatch(ctx context.Context, event *notify.Event) (*notify.DispatchResult, error)
}

// ContinuationClient posts the next cursor against this service's own
// endpoint. Satisfied by the shared HTTP client.
type ContinuationClient interface {
	PostJSON(ctx context.Context, url string, body interface{}, out interface{}) error
}

// Service walks the membership in pages and sends each member one digest of
// the board activity since their last notification. One page per request;
// full pages chain by posting the next cursor back at the service.
type Service struct {
	config       *Config
	store        *Store
	cursors      *CursorStore
	access       AccessChecker
	dispatcher   Dispatcher
	continuation ContinuationClient
	logger       logger.Logger

	now func() time.Time
}

func NewService(cfg *Config, store *Store, cursors *CursorStore, access AccessChecker, dispatcher Dispatcher, continuation ContinuationClient, log logger.Logger) *Service {
	return &Service{
		config:       cfg,
		store:        store,
		cursors:      cursors,
		access:       access,
		dispatcher:   dispatcher,
		continuation: continuation,
		logger:       log,
		now:          time.Now,
	}
}

// Run processes one page of the digest chain. Per-board and per-member
// failures are logged and swallowed so one bad member never aborts the
// page; only lock contention and paging failures fail the run.
func (s *Service) Run(ctx context.Context, input Input) *Output {
	runID := input.RunID
	fresh := runID == ""
	if fresh {
		runID = uuid.New().String()
	}

	log := s.logger.WithFields(map[string]interface{}{"run_id": runID})

	lockTTL := s.config.MaxExecutionTime + time.Minute
	admitted, err := s.cursors.AcquireRun(ctx, runID, lockTTL)
	if err != nil {
		log.Error("run lock unavailable", map[string]interface{}{"error": err.Error()})
		return &Output{Success: false, RunID: runID, Error: err.Error()}
	}
	if !admitted {
		return &Output{Success: false, RunID: runID, Error: "digest run already in progress"}
	}

	cursor := Cursor{Offset: input.Offset, Iteration: input.Iteration, StartTime: input.StartTime}
	if !fresh && cursor == (Cursor{}) {
		// A bare re-POST of a runId resumes a killed chain from its last
		// committed cursor.
		if saved, found, loadErr := s.cursors.LoadCursor(ctx, runID); loadErr == nil && found {
			cursor = saved
			// A resumed chain gets a fresh execution budget; the saved
			// StartTime belongs to the run that died.
			cursor.StartTime = 0
			log.Info("resuming from saved cursor", map[string]interface{}{
				"offset":    cursor.Offset,
				"iteration": cursor.Iteration,
			})
		}
	}
	if cursor.StartTime == 0 {
		cursor.StartTime = s.now().UnixMilli()
	}

	// Termination checks come before any database work.
	if cursor.Iteration >= s.config.MaxIterations {
		log.Warn("iteration limit reached, stopping chain", map[string]interface{}{"iteration": cursor.Iteration})
		s.finish(ctx, runID)
		return &Output{Success: true, Message: "Iteration limit reached", Processed: cursor.Offset, RunID: runID}
	}
	elapsed := s.now().Sub(time.UnixMilli(cursor.StartTime))
	if elapsed >= s.config.MaxExecutionTime {
		log.Warn("execution time limit reached, stopping chain", map[string]interface{}{"elapsed_ms": elapsed.Milliseconds()})
		s.finish(ctx, runID)
		return &Output{Success: true, Message: "Execution time limit reached", Processed: cursor.Offset, RunID: runID}
	}

	members, err := s.store.PageMembers(ctx, s.config.BatchSize, cursor.Offset)
	if err != nil {
		log.Error("member paging failed", map[string]interface{}{"error": err.Error()})
		s.finish(ctx, runID)
		return &Output{Success: false, RunID: runID, Error: err.Error()}
	}
	if len(members) == 0 {
		s.finish(ctx, runID)
		return &Output{Success: true, Message: "All members processed", Processed: cursor.Offset, RunID: runID}
	}

	boards, err := s.store.ActiveBoards(ctx)
	if err != nil {
		log.Error("board enumeration failed", map[string]interface{}{"error": err.Error()})
		s.finish(ctx, runID)
		return &Output{Success: false, RunID: runID, Error: err.Error()}
	}

	processed := 0
	for _, member := range members {
		if err := s.processMember(ctx, member, boards); err != nil {
			log.Error("member digest failed, continuing with next member", map[string]interface{}{
				"member_id": member.ID,
				"error":     err.Error(),
			})
			metrics.DigestMembersSkipped.WithLabelValues("error").Inc()
		}
		processed++
	}
	metrics.DigestPagesProcessed.Inc()

	// Processed counts are cumulative across the chain, so cap stops and
	// the final page both report how far the run walked.
	if len(members) < s.config.BatchSize {
		s.finish(ctx, runID)
		return &Output{Success: true, Message: "All members processed", Processed: cursor.Offset + processed, RunID: runID}
	}

	next := Cursor{
		Offset:    cursor.Offset + s.config.BatchSize,
		Iteration: cursor.Iteration + 1,
		StartTime: cursor.StartTime,
	}
	if err := s.cursors.SaveCursor(ctx, runID, next); err != nil {
		log.Warn("cursor commit failed, chain not resumable", map[string]interface{}{"error": err.Error()})
	}

	var nextOut Output
	err = s.continuation.PostJSON(ctx, s.config.ContinuationURL, Input{
		Offset:    next.Offset,
		Iteration: next.Iteration,
		StartTime: next.StartTime,
		RunID:     runID,
	}, &nextOut)
	if err != nil {
		log.Error("continuation call failed, cursor saved for resume", map[string]interface{}{"error": err.Error()})
		return &Output{Success: false, Processed: cursor.Offset + processed, RunID: runID, Error: fmt.Sprintf("continuation failed: %s", err)}
	}

	return &Output{Success: true, Message: "Batch processed", Processed: cursor.Offset + processed, RunID: runID, NextBatch: &nextOut}
}

// processMember builds one member's board summary and dispatches it.
// Watermarks advance only for boards that made it into a successful send.
func (s *Service) processMember(ctx context.Context, member models.Member, boards []models.Board) error {
	floor := s.now().Add(-s.config.ActivityWindow)

	var included []models.BoardActivity
	for _, board := range boards {
		allowed, err := s.access.HasBoardAccess(ctx, board.ID, member.ID)
		if err != nil {
			s.logger.Warn("board access check failed, treating as denied", map[string]interface{}{
				"member_id": member.ID,
				"board_id":  board.ID,
				"error":     err.Error(),
			})
			continue
		}
		if !allowed {
			continue
		}

		// The window never reaches further back than the clamp, no matter
		// how stale the watermark is.
		since := floor
		mark, found, err := s.store.LastNotifiedAt(ctx, member.ID, board.ID)
		if err != nil {
			s.logger.Warn("watermark read failed, skipping board", map[string]interface{}{
				"member_id": member.ID,
				"board_id":  board.ID,
				"error":     err.Error(),
			})
			continue
		}
		if found && mark.LastNotifiedAt.After(floor) {
			since = mark.LastNotifiedAt
		}

		activity, err := s.store.BoardActivitySince(ctx, board, since)
		if err != nil {
			s.logger.Warn("activity count failed, skipping board", map[string]interface{}{
				"member_id": member.ID,
				"board_id":  board.ID,
				"error":     err.Error(),
			})
			continue
		}
		if activity.HasActivity() {
			included = append(included, activity)
		}
	}

	if len(included) == 0 {
		metrics.DigestMembersSkipped.WithLabelValues("no-activity").Inc()
		return nil
	}

	result, err := s.dispatcher.Dispatch(ctx, s.buildSummaryEvent(member, included))
	if err != nil {
		return err
	}
	if result.Status != notify.StatusSent {
		return fmt.Errorf("board summary dispatch ended %s: %s", result.Status, result.Message)
	}

	sentAt := s.now()
	for _, activity := range included {
		newMark := models.BoardNotification{
			MemberID:       member.ID,
			BoardID:        activity.BoardID,
			LastNotifiedAt: sentAt,
		}
		if err := s.store.UpsertWatermark(ctx, newMark); err != nil {
			s.logger.Error("watermark upsert failed", map[string]interface{}{
				"member_id": member.ID,
				"board_id":  activity.BoardID,
				"error":     err.Error(),
			})
		}
	}
	metrics.DigestMembersNotified.Inc()
	return nil
}

func (s *Service) buildSummaryEvent(member models.Member, boards []models.BoardActivity) *notify.Event {
	lines := make([]string, 0, len(boards))
	boardData := make([]interface{}, 0, len(boards))
	for _, b := range boards {
		lines = append(lines, fmt.Sprintf("%s: %d new messages (%d replies), %d new threads",
			b.BoardName, b.MessageCount, b.ReplyCount, b.ThreadCount))
		boardData = append(boardData, map[string]interface{}{
			"board_id":      b.BoardID,
			"board_name":    b.BoardName,
			"message_count": b.MessageCount,
			"reply_count":   b.ReplyCount,
			"thread_count":  b.ThreadCount,
		})
	}

	return &notify.Event{
		Type: notify.TypeBoardSummary,
		Data: map[string]interface{}{
			"member_email": member.Email,
			"member_name":  strings.TrimSpace(member.FirstName + " " + member.LastName),
			"summary_html": strings.Join(lines, "<br>"),
			"boards":       boardData,
			"boards_url":   s.config.BoardsURL,
		},
	}
}

// finish releases the run lock and drops the cursor. Both are best effort;
// the TTLs clean up anything left behind.
func (s *Service) finish(ctx context.Context, runID string) {
	if err := s.cursors.ReleaseRun(ctx, runID); err != nil {
		s.logger.Warn("run lock release failed", map[string]interface{}{"run_id": runID, "error": err.Error()})
	}
	if err := s.cursors.ClearCursor(ctx, runID); err != nil {
		s.logger.Warn("cursor cleanup failed", map[string]interface{}{"run_id": runID, "error": err.Error()})
	}
}
