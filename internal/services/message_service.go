package services

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"
	"time"
	"unicode/utf8"

	"gorm.io/gorm"

	"github.com/huddleapp/huddle/internal/models"
	"github.com/huddleapp/huddle/internal/notifications"
	"github.com/huddleapp/huddle/internal/realtime"
	apperrors "github.com/huddleapp/huddle/pkg/errors"
)

const (
	maxMessageLength = 4000
	previewLength    = 80
)

// PostMessageInput carries the payload required to post a thread message.
type PostMessageInput struct {
	ThreadID string
	AuthorID string
	Content  string
}

// MessageService persists thread messages, relays them over the realtime
// threads stream, and fans out new_message notifications to participants.
type MessageService struct {
	db         *gorm.DB
	workspaces *WorkspaceService
	notifier   *NotificationService
	hub        *realtime.Hub
}

// NewMessageService constructs a MessageService.
func NewMessageService(db *gorm.DB, workspaces *WorkspaceService, notifier *NotificationService, hub *realtime.Hub) (*MessageService, error) {
	if db == nil {
		return nil, errors.New("message service: db is required")
	}
	if workspaces == nil {
		return nil, errors.New("message service: workspace service is required")
	}
	return &MessageService{db: db, workspaces: workspaces, notifier: notifier, hub: hub}, nil
}

// CreateThread starts a new conversation in a workspace.
func (s *MessageService) CreateThread(ctx context.Context, userID, workspaceID, title string) (*models.Thread, error) {
	ctx = ensureContext(ctx)

	title = strings.TrimSpace(title)
	if title == "" {
		return nil, apperrors.NewBadRequest("thread title is required")
	}
	if err := s.workspaces.RequireMember(ctx, userID, workspaceID); err != nil {
		return nil, err
	}

	thread := models.Thread{
		WorkspaceID: strings.TrimSpace(workspaceID),
		Title:       title,
		CreatedBy:   strings.TrimSpace(userID),
	}
	if err := s.db.WithContext(ctx).Create(&thread).Error; err != nil {
		return nil, fmt.Errorf("message service: create thread: %w", err)
	}
	return &thread, nil
}

// ListThreads returns the workspace's threads.
func (s *MessageService) ListThreads(ctx context.Context, userID, workspaceID string) ([]models.Thread, error) {
	ctx = ensureContext(ctx)

	if err := s.workspaces.RequireMember(ctx, userID, workspaceID); err != nil {
		return nil, err
	}

	var threads []models.Thread
	if err := s.db.WithContext(ctx).
		Where("workspace_id = ?", workspaceID).
		Order("created_at DESC").
		Find(&threads).Error; err != nil {
		return nil, fmt.Errorf("message service: list threads: %w", err)
	}
	return threads, nil
}

// Post sanitises and persists a message, pushes it to the thread's realtime
// stream, and fans out a deduplicated new_message notification to the thread
// participants except the author.
func (s *MessageService) Post(ctx context.Context, input PostMessageInput) (*models.Message, error) {
	ctx = ensureContext(ctx)

	authorID := strings.TrimSpace(input.AuthorID)
	if authorID == "" {
		return nil, errors.New("message service: author id is required")
	}
	content := strings.TrimSpace(input.Content)
	if content == "" {
		return nil, apperrors.NewBadRequest("message content is required")
	}
	if utf8.RuneCountInString(content) > maxMessageLength {
		return nil, apperrors.NewBadRequest("message content exceeds maximum length")
	}

	thread, err := s.getThread(ctx, input.ThreadID)
	if err != nil {
		return nil, err
	}
	if err := s.workspaces.RequireMember(ctx, authorID, thread.WorkspaceID); err != nil {
		return nil, err
	}

	message := models.Message{
		ThreadID: thread.ID,
		AuthorID: authorID,
		Content:  html.EscapeString(content),
	}
	if err := s.db.WithContext(ctx).Create(&message).Error; err != nil {
		return nil, fmt.Errorf("message service: create message: %w", err)
	}

	s.relay(ctx, thread, &message)
	s.notifyParticipants(ctx, thread, &message)

	return &message, nil
}

// ListMessages returns persisted messages for the thread ordered
// chronologically.
func (s *MessageService) ListMessages(ctx context.Context, userID, threadID string, limit int, before time.Time) ([]models.Message, error) {
	ctx = ensureContext(ctx)

	thread, err := s.getThread(ctx, threadID)
	if err != nil {
		return nil, err
	}
	if err := s.workspaces.RequireMember(ctx, userID, thread.WorkspaceID); err != nil {
		return nil, err
	}

	if limit <= 0 || limit > 200 {
		limit = 50
	}

	query := s.db.WithContext(ctx).
		Where("thread_id = ?", thread.ID).
		Order("created_at DESC").
		Limit(limit)
	if !before.IsZero() {
		query = query.Where("created_at < ?", before)
	}

	var rows []models.Message
	if err := query.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("message service: list messages: %w", err)
	}

	// Reverse to chronological order
	for i, j := 0, len(rows)-1; i < j; i, j = i+1, j-1 {
		rows[i], rows[j] = rows[j], rows[i]
	}
	return rows, nil
}

func (s *MessageService) getThread(ctx context.Context, threadID string) (*models.Thread, error) {
	var thread models.Thread
	if err := s.db.WithContext(ctx).
		Where("id = ?", strings.TrimSpace(threadID)).
		First(&thread).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("message service: load thread: %w", err)
	}
	return &thread, nil
}

func (s *MessageService) relay(ctx context.Context, thread *models.Thread, message *models.Message) {
	if s.hub == nil {
		return
	}

	memberIDs, err := s.workspaces.MemberIDs(ctx, thread.WorkspaceID)
	if err != nil {
		return
	}
	s.hub.BroadcastToUsers(realtime.StreamThreads, memberIDs, realtime.Message{
		Event: "message.created",
		Data:  message,
	})
}

// notifyParticipants fans out to everyone who has posted in the thread,
// excluding the author. Dedupe is set so a burst of messages inside the
// window collapses to one notification per recipient.
func (s *MessageService) notifyParticipants(ctx context.Context, thread *models.Thread, message *models.Message) {
	if s.notifier == nil {
		return
	}

	var participantIDs []string
	if err := s.db.WithContext(ctx).
		Model(&models.Message{}).
		Distinct("author_id").
		Where("thread_id = ? AND author_id <> ?", thread.ID, message.AuthorID).
		Pluck("author_id", &participantIDs).Error; err != nil {
		return
	}
	if len(participantIDs) == 0 {
		return
	}

	var author models.User
	actorName := ""
	if err := s.db.WithContext(ctx).Where("id = ?", message.AuthorID).First(&author).Error; err == nil {
		actorName = author.Name()
	}

	_, _ = s.notifier.Fanout(ctx, FanoutInput{
		Type:        notifications.TypeNewMessage,
		ActorID:     message.AuthorID,
		Recipients:  participantIDs,
		WorkspaceID: thread.WorkspaceID,
		ThreadID:    thread.ID,
		MessageID:   message.ID,
		Template: notifications.NewMessage{
			Actor:   actorName,
			Thread:  thread.Title,
			Preview: preview(message.Content),
		},
		Dedupe: true,
	})
}

func preview(content string) string {
	if utf8.RuneCountInString(content) <= previewLength {
		return content
	}
	runes := []rune(content)
	return string(runes[:previewLength]) + "…"
}
