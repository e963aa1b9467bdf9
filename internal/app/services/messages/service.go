// Package messages implements direct messaging between users. Message bodies
// are sealed at rest with a per-conversation key when a server secret is
// configured.
package messages

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/nacl/secretbox"

	"github.com/OpinNetwork/engage_layer/internal/app/domain/message"
	"github.com/OpinNetwork/engage_layer/internal/app/storage"
	"github.com/OpinNetwork/engage_layer/pkg/logger"
)

// Errors
var (
	ErrEmptyMessage = errors.New("message content required")
	ErrSelfMessage  = errors.New("cannot message yourself")
	ErrCorruptSeal  = errors.New("sealed message corrupt")
)

// Service persists conversations and seals message content.
type Service struct {
	users  storage.UserStore
	store  storage.ConversationStore
	secret []byte
	log    *logger.Logger
}

// New constructs the service. An empty secret disables sealing; messages are
// then stored in plaintext.
func New(users storage.UserStore, store storage.ConversationStore, secret []byte, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("messages")
	}
	return &Service{users: users, store: store, secret: secret, log: log}
}

// Send appends a message to the conversation between the two users, creating
// the conversation on first contact.
func (s *Service) Send(ctx context.Context, senderID, receiverID, body string) (message.Conversation, error) {
	if body == "" {
		return message.Conversation{}, ErrEmptyMessage
	}
	if senderID == receiverID {
		return message.Conversation{}, ErrSelfMessage
	}
	if _, err := s.users.GetUser(ctx, senderID); err != nil {
		return message.Conversation{}, err
	}
	if _, err := s.users.GetUser(ctx, receiverID); err != nil {
		return message.Conversation{}, err
	}

	msg := message.DirectMessage{
		ID:         uuid.NewString(),
		SenderID:   senderID,
		ReceiverID: receiverID,
		CreatedAt:  time.Now().UTC(),
	}
	if len(s.secret) > 0 {
		sealed, err := s.seal(senderID, receiverID, body)
		if err != nil {
			return message.Conversation{}, fmt.Errorf("seal message: %w", err)
		}
		msg.Ciphertext = sealed
		msg.Encrypted = true
	} else {
		msg.Content = body
	}

	conv, err := s.store.GetConversationBetween(ctx, senderID, receiverID)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			return message.Conversation{}, err
		}
		conv = message.Conversation{Participants: []string{senderID, receiverID}}
	}
	conv.Messages = append(conv.Messages, msg)
	conv.LastMessage = msg

	saved, err := s.store.SaveConversation(ctx, conv)
	if err != nil {
		return message.Conversation{}, fmt.Errorf("save conversation: %w", err)
	}
	return saved, nil
}

// History returns the conversation between the two users with message bodies
// opened. A missing conversation yields an empty one rather than an error.
func (s *Service) History(ctx context.Context, userA, userB string) (message.Conversation, error) {
	conv, err := s.store.GetConversationBetween(ctx, userA, userB)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return message.Conversation{Participants: []string{userA, userB}}, nil
		}
		return message.Conversation{}, err
	}
	return s.opened(conv)
}

// List returns the user's conversations, most recently active first, with
// message bodies opened.
func (s *Service) List(ctx context.Context, userID string) ([]message.Conversation, error) {
	convs, err := s.store.ListConversations(ctx, userID)
	if err != nil {
		return nil, err
	}
	for i, conv := range convs {
		opened, err := s.opened(conv)
		if err != nil {
			return nil, err
		}
		convs[i] = opened
	}
	return convs, nil
}

func (s *Service) opened(conv message.Conversation) (message.Conversation, error) {
	for i, msg := range conv.Messages {
		if !msg.Encrypted {
			continue
		}
		body, err := s.open(msg.SenderID, msg.ReceiverID, msg.Ciphertext)
		if err != nil {
			return message.Conversation{}, fmt.Errorf("open message %s: %w", msg.ID, err)
		}
		msg.Content = body
		msg.Ciphertext = nil
		msg.Encrypted = false
		conv.Messages[i] = msg
	}
	if conv.LastMessage.Encrypted {
		body, err := s.open(conv.LastMessage.SenderID, conv.LastMessage.ReceiverID, conv.LastMessage.Ciphertext)
		if err != nil {
			return message.Conversation{}, fmt.Errorf("open last message: %w", err)
		}
		conv.LastMessage.Content = body
		conv.LastMessage.Ciphertext = nil
		conv.LastMessage.Encrypted = false
	}
	return conv, nil
}

// conversationKey derives a stable key from the server secret and the sorted
// participant pair so either direction of the conversation opens the same
// messages.
func (s *Service) conversationKey(userA, userB string) [32]byte {
	pair := []string{userA, userB}
	sort.Strings(pair)

	h := sha256.New()
	h.Write(s.secret)
	h.Write([]byte(pair[0]))
	h.Write([]byte{0})
	h.Write([]byte(pair[1]))

	var key [32]byte
	copy(key[:], h.Sum(nil))
	return key
}

func (s *Service) seal(userA, userB, body string) ([]byte, error) {
	key := s.conversationKey(userA, userB)

	var nonce [24]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}
	return secretbox.Seal(nonce[:], []byte(body), &nonce, &key), nil
}

func (s *Service) open(userA, userB string, sealed []byte) (string, error) {
	if len(sealed) < 24 {
		return "", ErrCorruptSeal
	}
	key := s.conversationKey(userA, userB)

	var nonce [24]byte
	copy(nonce[:], sealed[:24])
	body, ok := secretbox.Open(nil, sealed[24:], &nonce, &key)
	if !ok {
		return "", ErrCorruptSeal
	}
	return string(body), nil
}
