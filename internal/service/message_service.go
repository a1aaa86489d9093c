package service

import (
	"context"

	"prok/internal/models"
	"prok/internal/repository"
	"prok/internal/validation"
)

// MessageService implements direct messaging between accounts.
type MessageService struct {
	messages repository.MessageRepository
	users    repository.UserRepository
}

// NewMessageService creates a MessageService.
func NewMessageService(messages repository.MessageRepository, users repository.UserRepository) *MessageService {
	return &MessageService{messages: messages, users: users}
}

// SendMessage stores a message from sender to receiver.
func (s *MessageService) SendMessage(ctx context.Context, sender, receiver, content string) (*models.Message, error) {
	content = validation.Sanitize(content)
	if content == "" {
		return nil, models.NewValidationError("Message content is required")
	}
	if receiver == sender {
		return nil, models.NewValidationError("Cannot message yourself")
	}

	target, err := s.users.GetByEmail(ctx, receiver)
	if err != nil {
		return nil, err
	}
	if target == nil {
		return nil, models.NewNotFoundError("User", receiver)
	}

	message := &models.Message{
		SenderEmail:   sender,
		ReceiverEmail: receiver,
		Content:       content,
	}
	if err := s.messages.Create(ctx, message); err != nil {
		return nil, err
	}
	return message, nil
}

// Conversation lists the messages between the requester and the other
// account, newest first.
func (s *MessageService) Conversation(ctx context.Context, requester, other string, limit, offset int) ([]*models.Message, error) {
	if limit < 1 {
		limit = defaultPerPage
	}
	if limit > maxPerPage {
		limit = maxPerPage
	}
	return s.messages.ListConversation(ctx, requester, other, limit, offset)
}
