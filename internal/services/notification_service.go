package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/huddleapp/huddle/internal/models"
	"github.com/huddleapp/huddle/internal/notifications"
	"github.com/huddleapp/huddle/internal/realtime"
	"github.com/huddleapp/huddle/pkg/logger"
	"github.com/huddleapp/huddle/pkg/metrics"
)

// DedupWindow is the trailing interval during which a notification with the
// same (user, title) pair suppresses a repeat insert.
const DedupWindow = 5 * time.Minute

const defaultNotificationPageSize = 25

// FanoutInput describes one logical event to be delivered to many recipients.
type FanoutInput struct {
	Type       notifications.Type
	ActorID    string
	Recipients []string

	WorkspaceID string
	ProjectID   string
	TaskID      string
	ThreadID    string
	MessageID   string

	// Template carries the typed payload the title and body are rendered from.
	Template notifications.TemplateInput
	// Meta is persisted verbatim on each created row.
	Meta map[string]any
	// Dedupe opts this fan-out into the trailing-window duplicate suppression.
	Dedupe bool
}

// FanoutResult aggregates per-recipient outcomes of one fan-out call. IDs are
// collected in arrival order; Errors is keyed by recipient id.
type FanoutResult struct {
	IDs        []string          `json:"ids"`
	Errors     map[string]string `json:"errors,omitempty"`
	Recipients []string          `json:"-"`
}

// AllFailed reports the one true failure condition: a non-empty recipient list
// with zero successful inserts. Dedup skips do not count as failures, so a
// fan-out that was entirely suppressed still reports success.
func (r *FanoutResult) AllFailed() bool {
	return len(r.Recipients) > 0 && len(r.IDs) == 0 && len(r.Errors) > 0
}

// Err combines the per-recipient failures into one error for logging.
func (r *FanoutResult) Err() error {
	var combined error
	for recipient, msg := range r.Errors {
		combined = multierr.Append(combined, fmt.Errorf("recipient %s: %s", recipient, msg))
	}
	return combined
}

// NotificationDTO represents the API-friendly notification payload.
type NotificationDTO struct {
	ID          string         `json:"id"`
	UserID      string         `json:"user_id"`
	Type        string         `json:"type"`
	ActorID     string         `json:"actor_id,omitempty"`
	Title       string         `json:"title"`
	Body        string         `json:"body,omitempty"`
	RefID       string         `json:"ref_id,omitempty"`
	WorkspaceID string         `json:"workspace_id,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	IsRead      bool           `json:"is_read"`
	CreatedAt   time.Time      `json:"created_at"`
	ReadAt      *time.Time     `json:"read_at,omitempty"`
}

// NotificationPage is one page of a user's notifications, newest first.
type NotificationPage struct {
	Items       []NotificationDTO `json:"items"`
	UnreadCount int64             `json:"unread_count"`
	// NextCursor is the creation timestamp of the last item, or nil when the
	// page came back shorter than the requested limit.
	NextCursor *time.Time `json:"next_cursor"`
}

// ListNotificationsInput defines filters for querying user notifications.
type ListNotificationsInput struct {
	UserID string
	Limit  int
	Cursor *time.Time
}

// NotificationOption customises NotificationService behaviour.
type NotificationOption func(*NotificationService)

// WithNotificationClock injects a custom clock, primarily for testing the
// dedup window boundary.
func WithNotificationClock(clock func() time.Time) NotificationOption {
	return func(s *NotificationService) {
		if clock != nil {
			s.now = clock
		}
	}
}

// NotificationService owns notification fan-out, read-state transitions, and
// realtime delivery of newly created rows.
type NotificationService struct {
	db  *gorm.DB
	hub *realtime.Hub
	now func() time.Time
	log *zap.Logger
}

// NewNotificationService constructs a NotificationService.
func NewNotificationService(db *gorm.DB, hub *realtime.Hub, opts ...NotificationOption) (*NotificationService, error) {
	if db == nil {
		return nil, errors.New("notification service: db is required")
	}

	service := &NotificationService{
		db:  db,
		hub: hub,
		now: time.Now,
		log: logger.WithModule("notifications"),
	}
	for _, opt := range opts {
		opt(service)
	}
	return service, nil
}

// Fanout creates one notification row per distinct recipient and reports which
// succeeded. One recipient's dedup skip or insert failure never aborts the
// others; there is no atomicity across the batch.
func (s *NotificationService) Fanout(ctx context.Context, input FanoutInput) (*FanoutResult, error) {
	ctx = ensureContext(ctx)

	if _, err := notifications.ParseType(string(input.Type)); err != nil {
		return nil, err
	}
	if input.Template == nil {
		return nil, errors.New("notification service: template input is required")
	}

	recipients := normalizeRecipients(input.Recipients)
	result := &FanoutResult{
		IDs:        []string{},
		Recipients: recipients,
	}
	if len(recipients) == 0 {
		// Deliberate no-op, not an error.
		return result, nil
	}

	title, body := notifications.Render(input.Template)
	refID := firstNonEmpty(input.TaskID, input.ThreadID, input.MessageID, input.ProjectID)

	var metadata datatypes.JSON
	if input.Meta != nil {
		data, err := json.Marshal(input.Meta)
		if err != nil {
			return nil, fmt.Errorf("notification service: marshal metadata: %w", err)
		}
		metadata = datatypes.JSON(data)
	}

	for _, recipient := range recipients {
		if input.Dedupe && s.isDuplicate(ctx, recipient, title) {
			metrics.NotificationDeliveries.WithLabelValues(string(input.Type), "deduped").Inc()
			continue
		}

		row := models.Notification{
			UserID:      recipient,
			Type:        string(input.Type),
			ActorID:     strings.TrimSpace(input.ActorID),
			Title:       title,
			Body:        body,
			RefID:       refID,
			WorkspaceID: strings.TrimSpace(input.WorkspaceID),
			Metadata:    metadata,
		}

		if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
			if result.Errors == nil {
				result.Errors = make(map[string]string)
			}
			result.Errors[recipient] = err.Error()
			metrics.NotificationDeliveries.WithLabelValues(string(input.Type), "failed").Inc()
			continue
		}

		result.IDs = append(result.IDs, row.ID)
		metrics.NotificationDeliveries.WithLabelValues(string(input.Type), "delivered").Inc()

		dto := mapNotification(row)
		s.broadcast(recipient, "notification.created", dto)
	}

	if err := result.Err(); err != nil {
		s.log.Warn("fan-out completed with failures",
			zap.String("type", string(input.Type)),
			zap.Int("recipients", len(recipients)),
			zap.Int("delivered", len(result.IDs)),
			zap.Error(err),
		)
	}

	return result, nil
}

// isDuplicate implements the dedup guard: an existing row for the recipient
// with the exact same title inside the trailing window suppresses the insert.
// Query failures are treated as "not a duplicate" so delivery stays available.
func (s *NotificationService) isDuplicate(ctx context.Context, userID, title string) bool {
	var count int64
	since := s.now().Add(-DedupWindow)
	err := s.db.WithContext(ctx).
		Model(&models.Notification{}).
		Where("user_id = ? AND title = ? AND created_at >= ?", userID, title, since).
		Count(&count).Error
	if err != nil {
		s.log.Warn("dedup check failed, proceeding with insert",
			zap.String("user_id", userID), zap.Error(err))
		return false
	}
	return count > 0
}

// ListForUser returns one page of the user's notifications ordered newest
// first, together with the unread count and the next pagination cursor.
func (s *NotificationService) ListForUser(ctx context.Context, input ListNotificationsInput) (*NotificationPage, error) {
	ctx = ensureContext(ctx)
	userID := strings.TrimSpace(input.UserID)
	if userID == "" {
		return nil, errors.New("notification service: user id is required")
	}

	limit := input.Limit
	if limit <= 0 || limit > 100 {
		limit = defaultNotificationPageSize
	}

	query := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit)
	if input.Cursor != nil {
		query = query.Where("created_at < ?", *input.Cursor)
	}

	var rows []models.Notification
	if err := query.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("notification service: list notifications: %w", err)
	}

	var unread int64
	if err := s.db.WithContext(ctx).
		Model(&models.Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Count(&unread).Error; err != nil {
		return nil, fmt.Errorf("notification service: count unread: %w", err)
	}

	page := &NotificationPage{
		Items:       make([]NotificationDTO, 0, len(rows)),
		UnreadCount: unread,
	}
	for _, row := range rows {
		page.Items = append(page.Items, mapNotification(row))
	}
	if len(rows) == limit {
		last := rows[len(rows)-1].CreatedAt
		page.NextCursor = &last
	}

	return page, nil
}

// MarkRead flags the user's matching notifications as read and returns the
// number of rows that transitioned. Already-read rows are left untouched, so
// repeated calls are idempotent.
func (s *NotificationService) MarkRead(ctx context.Context, userID string, ids []string) (int64, error) {
	ctx = ensureContext(ctx)
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return 0, errors.New("notification service: user id is required")
	}
	if len(ids) == 0 {
		return 0, nil
	}

	now := s.now().UTC()
	result := s.db.WithContext(ctx).
		Model(&models.Notification{}).
		Where("id IN ? AND user_id = ? AND is_read = ?", ids, userID, false).
		Updates(map[string]any{
			"is_read": true,
			"read_at": now,
		})
	if result.Error != nil {
		return 0, fmt.Errorf("notification service: mark read: %w", result.Error)
	}

	if result.RowsAffected > 0 {
		s.broadcast(userID, "notification.read", map[string]any{"ids": ids})
	}
	return result.RowsAffected, nil
}

// MarkAllRead marks every unread notification for the user as read.
func (s *NotificationService) MarkAllRead(ctx context.Context, userID string) error {
	ctx = ensureContext(ctx)
	now := s.now().UTC()
	if err := s.db.WithContext(ctx).
		Model(&models.Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Updates(map[string]any{
			"is_read": true,
			"read_at": now,
		}).Error; err != nil {
		return fmt.Errorf("notification service: mark all read: %w", err)
	}

	s.broadcast(userID, "notification.read_all", nil)
	return nil
}

// ClearAll hard-deletes every notification owned by the user.
func (s *NotificationService) ClearAll(ctx context.Context, userID string) (int64, error) {
	ctx = ensureContext(ctx)
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return 0, errors.New("notification service: user id is required")
	}

	result := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Delete(&models.Notification{})
	if result.Error != nil {
		return 0, fmt.Errorf("notification service: clear notifications: %w", result.Error)
	}

	s.broadcast(userID, "notification.cleared", nil)
	return result.RowsAffected, nil
}

// PruneRead deletes read notifications created before the cutoff. Used by the
// maintenance cleaner.
func (s *NotificationService) PruneRead(ctx context.Context, cutoff time.Time) (int64, error) {
	ctx = ensureContext(ctx)
	result := s.db.WithContext(ctx).
		Where("is_read = ? AND created_at < ?", true, cutoff).
		Delete(&models.Notification{})
	if result.Error != nil {
		return 0, fmt.Errorf("notification service: prune read: %w", result.Error)
	}
	return result.RowsAffected, nil
}

func (s *NotificationService) broadcast(userID, event string, payload any) {
	if s.hub == nil {
		return
	}
	s.hub.BroadcastToUser(realtime.StreamNotifications, userID, realtime.Message{
		Event: event,
		Data:  payload,
	})
}

// normalizeRecipients removes falsy entries and collapses duplicates with set
// semantics, preserving first-seen order.
func normalizeRecipients(recipients []string) []string {
	seen := make(map[string]struct{}, len(recipients))
	result := make([]string, 0, len(recipients))
	for _, recipient := range recipients {
		recipient = strings.TrimSpace(recipient)
		if recipient == "" {
			continue
		}
		if _, exists := seen[recipient]; exists {
			continue
		}
		seen[recipient] = struct{}{}
		result = append(result, recipient)
	}
	return result
}

// firstNonEmpty picks the ref id with fixed priority: task, thread, message,
// then project.
func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if value = strings.TrimSpace(value); value != "" {
			return value
		}
	}
	return ""
}

func mapNotification(row models.Notification) NotificationDTO {
	return NotificationDTO{
		ID:          row.ID,
		UserID:      row.UserID,
		Type:        row.Type,
		ActorID:     row.ActorID,
		Title:       row.Title,
		Body:        row.Body,
		RefID:       row.RefID,
		WorkspaceID: row.WorkspaceID,
		Metadata:    decodeJSON(row.Metadata),
		IsRead:      row.IsRead,
		CreatedAt:   row.CreatedAt,
		ReadAt:      row.ReadAt,
	}
}

func decodeJSON(data datatypes.JSON) map[string]any {
	if len(data) == 0 {
		return nil
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil
	}
	return out
}
