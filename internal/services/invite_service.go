package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/huddleapp/huddle/internal/models"
	"github.com/huddleapp/huddle/internal/notifications"
	"github.com/huddleapp/huddle/pkg/crypto"
	"github.com/huddleapp/huddle/pkg/mail"
)

const (
	defaultInviteExpiry     = 72 * time.Hour
	defaultInviteTokenBytes = 48
)

var (
	// ErrInviteNotFound indicates no invite matches the provided token.
	ErrInviteNotFound = errors.New("invite: not found")
	// ErrInviteExpired indicates the invite token has expired.
	ErrInviteExpired = errors.New("invite: expired")
	// ErrInviteAlreadyUsed signals that the invite has already been accepted.
	ErrInviteAlreadyUsed = errors.New("invite: already accepted")
	// ErrInviteEmailMismatch signals the accepting user's email does not match the invite.
	ErrInviteEmailMismatch = errors.New("invite: email does not match")
)

// InviteOption customises InviteService behaviour.
type InviteOption func(*InviteService)

// WithInviteBaseURL configures the base URL used to create invite hyperlinks.
func WithInviteBaseURL(url string) InviteOption {
	return func(s *InviteService) {
		s.baseURL = strings.TrimRight(url, "/")
	}
}

// WithInviteExpiry overrides the invite token lifetime.
func WithInviteExpiry(d time.Duration) InviteOption {
	return func(s *InviteService) {
		if d > 0 {
			s.expiry = d
		}
	}
}

// WithInviteClock injects a custom clock primarily for testing.
func WithInviteClock(clock func() time.Time) InviteOption {
	return func(s *InviteService) {
		if clock != nil {
			s.now = clock
		}
	}
}

// InviteService manages workspace invitations. There is exactly one invite
// path: permission-checked at creation, email-resolved at acceptance.
type InviteService struct {
	db         *gorm.DB
	workspaces *WorkspaceService
	notifier   *NotificationService
	mailer     mail.Mailer
	baseURL    string
	expiry     time.Duration
	now        func() time.Time
}

// NewInviteService constructs an InviteService with the provided dependencies.
func NewInviteService(db *gorm.DB, workspaces *WorkspaceService, notifier *NotificationService, mailer mail.Mailer, opts ...InviteOption) (*InviteService, error) {
	if db == nil {
		return nil, errors.New("invite service: db is required")
	}
	if workspaces == nil {
		return nil, errors.New("invite service: workspace service is required")
	}

	service := &InviteService{
		db:         db,
		workspaces: workspaces,
		notifier:   notifier,
		mailer:     mailer,
		expiry:     defaultInviteExpiry,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(service)
	}
	return service, nil
}

// Create issues a new invite token for the email address. Only workspace
// owners may invite. The raw token is returned once and never stored.
func (s *InviteService) Create(ctx context.Context, actorID, workspaceID, email string) (token, link string, err error) {
	ctx = ensureContext(ctx)

	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return "", "", errors.New("invite service: email is required")
	}

	if err := s.workspaces.RequireOwner(ctx, actorID, workspaceID); err != nil {
		return "", "", err
	}

	rawToken, err := crypto.GenerateToken(defaultInviteTokenBytes)
	if err != nil {
		return "", "", fmt.Errorf("invite service: generate token: %w", err)
	}

	invite := models.WorkspaceInvite{
		WorkspaceID: workspaceID,
		Email:       email,
		TokenHash:   crypto.HashToken(rawToken),
		InvitedBy:   strings.TrimSpace(actorID),
		ExpiresAt:   s.now().Add(s.expiry),
	}
	if err := s.db.WithContext(ctx).Create(&invite).Error; err != nil {
		return "", "", fmt.Errorf("invite service: create invite: %w", err)
	}

	link = s.inviteLink(rawToken)

	if s.mailer != nil {
		message := mail.Message{
			To:      []string{email},
			Subject: "You're invited to a Huddle workspace",
			Body:    s.inviteBody(link),
		}
		if mailErr := s.mailer.Send(ctx, message); mailErr != nil && !errors.Is(mailErr, mail.ErrSMTPDisabled) {
			return "", "", fmt.Errorf("invite service: send email: %w", mailErr)
		}
	}

	return rawToken, link, nil
}

// Accept validates the token against the accepting user's email, marks the
// invite accepted, and enrols the user in the workspace. The invitee receives
// a workspace_invite notification; existing members hear about the join via
// the membership fan-out.
func (s *InviteService) Accept(ctx context.Context, userID, token string) (*models.WorkspaceMember, error) {
	ctx = ensureContext(ctx)

	token = strings.TrimSpace(token)
	if token == "" {
		return nil, errors.New("invite service: token is required")
	}

	var invite models.WorkspaceInvite
	if err := s.db.WithContext(ctx).
		Where("token_hash = ?", crypto.HashToken(token)).
		First(&invite).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInviteNotFound
		}
		return nil, fmt.Errorf("invite service: find invite: %w", err)
	}

	now := s.now()
	if invite.ExpiresAt.Before(now) {
		return nil, ErrInviteExpired
	}
	if invite.AcceptedAt != nil {
		return nil, ErrInviteAlreadyUsed
	}

	var user models.User
	if err := s.db.WithContext(ctx).Where("id = ?", userID).First(&user).Error; err != nil {
		return nil, fmt.Errorf("invite service: load user: %w", err)
	}
	if !strings.EqualFold(user.Email, invite.Email) {
		return nil, ErrInviteEmailMismatch
	}

	if err := s.db.WithContext(ctx).
		Model(&invite).
		Update("accepted_at", now).Error; err != nil {
		return nil, fmt.Errorf("invite service: mark accepted: %w", err)
	}

	member, err := s.workspaces.AddMember(ctx, invite.WorkspaceID, userID, models.WorkspaceRoleMember)
	if err != nil {
		return nil, err
	}

	s.notifyInvitee(ctx, &invite, userID)

	return member, nil
}

// PruneExpired removes unaccepted invites past their expiry. Used by the
// maintenance cleaner.
func (s *InviteService) PruneExpired(ctx context.Context) (int64, error) {
	ctx = ensureContext(ctx)
	result := s.db.WithContext(ctx).
		Where("accepted_at IS NULL AND expires_at < ?", s.now()).
		Delete(&models.WorkspaceInvite{})
	if result.Error != nil {
		return 0, fmt.Errorf("invite service: prune expired: %w", result.Error)
	}
	return result.RowsAffected, nil
}

func (s *InviteService) notifyInvitee(ctx context.Context, invite *models.WorkspaceInvite, userID string) {
	if s.notifier == nil {
		return
	}

	var workspace models.Workspace
	if err := s.db.WithContext(ctx).Where("id = ?", invite.WorkspaceID).First(&workspace).Error; err != nil {
		return
	}
	var inviter models.User
	actorName := ""
	if invite.InvitedBy != "" {
		if err := s.db.WithContext(ctx).Where("id = ?", invite.InvitedBy).First(&inviter).Error; err == nil {
			actorName = inviter.Name()
		}
	}

	_, _ = s.notifier.Fanout(ctx, FanoutInput{
		Type:        notifications.TypeWorkspaceInvite,
		ActorID:     invite.InvitedBy,
		Recipients:  []string{userID},
		WorkspaceID: invite.WorkspaceID,
		Template: notifications.WorkspaceInvite{
			Actor:     actorName,
			Workspace: workspace.Name,
		},
	})
}

func (s *InviteService) inviteLink(token string) string {
	if s.baseURL == "" {
		return token
	}
	return fmt.Sprintf("%s?token=%s", s.baseURL, token)
}

func (s *InviteService) inviteBody(link string) string {
	return fmt.Sprintf("Hello,\n\nYou have been invited to join a Huddle workspace. Use the following link to accept your invite:\n%s\n\nIf you did not expect this email, you can ignore it.\n", link)
}
