package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/pubsub"
	"go.uber.org/zap"

	"github.com/memorial-heritage/api/internal/cache"
)

const (
	defaultRefreshWait = 45 * time.Second
	collectionAttr     = "collection"
	allCollections     = "*"
)

var errEmptyRefresh = errors.New("refresh message names no collection")

// Refresher forces a cached collection to be refetched.
type Refresher interface {
	ForceRefresh(key cache.Collection) <-chan struct{}
}

// RefreshMessage is published by the admin tooling whenever archive content changes.
type RefreshMessage struct {
	Collection  string   `json:"collection,omitempty"`
	Collections []string `json:"collections,omitempty"`
}

// RefreshSubscriber turns content change notifications into cache refreshes.
type RefreshSubscriber struct {
	sub       *pubsub.Subscription
	refresher Refresher
	logger    *zap.Logger
	wait      time.Duration
}

// SubscriberOption customises the RefreshSubscriber.
type SubscriberOption func(*RefreshSubscriber)

// WithSubscriberLogger sets the logger used for message outcomes.
func WithSubscriberLogger(logger *zap.Logger) SubscriberOption {
	return func(s *RefreshSubscriber) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithRefreshWait bounds how long a message is held while its refresh settles.
func WithRefreshWait(wait time.Duration) SubscriberOption {
	return func(s *RefreshSubscriber) {
		if wait > 0 {
			s.wait = wait
		}
	}
}

// NewRefreshSubscriber binds a subscription to the cache refresher.
func NewRefreshSubscriber(sub *pubsub.Subscription, refresher Refresher, opts ...SubscriberOption) (*RefreshSubscriber, error) {
	if sub == nil {
		return nil, errors.New("refresh subscriber: subscription is required")
	}
	if refresher == nil {
		return nil, errors.New("refresh subscriber: refresher is required")
	}
	s := &RefreshSubscriber{
		sub:       sub,
		refresher: refresher,
		logger:    zap.NewNop(),
		wait:      defaultRefreshWait,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s, nil
}

// Run receives messages until ctx is cancelled.
func (s *RefreshSubscriber) Run(ctx context.Context) error {
	s.logger.Info("refresh subscriber started", zap.String("subscription", s.sub.ID()))
	err := s.sub.Receive(ctx, s.handle)
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("receive refresh messages: %w", err)
	}
	return nil
}

// handle acks every message: malformed ones would be redelivered forever and a failed fetch is
// already recorded on the collection.
func (s *RefreshSubscriber) handle(ctx context.Context, msg *pubsub.Message) {
	defer msg.Ack()

	keys, err := ParseRefreshMessage(msg.Data, msg.Attributes)
	if err != nil {
		s.logger.Warn("dropping refresh message", zap.String("messageId", msg.ID), zap.Error(err))
		return
	}

	waitCtx, cancel := context.WithTimeout(ctx, s.wait)
	defer cancel()

	for _, key := range keys {
		done := s.refresher.ForceRefresh(key)
		select {
		case <-done:
			s.logger.Info("collection refreshed",
				zap.String("messageId", msg.ID),
				zap.String("collection", key.String()),
			)
		case <-waitCtx.Done():
			s.logger.Warn("refresh still running",
				zap.String("messageId", msg.ID),
				zap.String("collection", key.String()),
				zap.Error(waitCtx.Err()),
			)
			return
		}
	}
}

// ParseRefreshMessage extracts the collections named by a refresh notification. The JSON body
// takes precedence over the "collection" attribute; "*" selects every collection.
func ParseRefreshMessage(data []byte, attrs map[string]string) ([]cache.Collection, error) {
	var payload RefreshMessage
	if trimmed := strings.TrimSpace(string(data)); trimmed != "" {
		if err := json.Unmarshal([]byte(trimmed), &payload); err != nil {
			return nil, fmt.Errorf("decode refresh message: %w", err)
		}
	}

	names := make([]string, 0, len(payload.Collections)+1)
	if payload.Collection != "" {
		names = append(names, payload.Collection)
	}
	names = append(names, payload.Collections...)
	if len(names) == 0 {
		if attr := strings.TrimSpace(attrs[collectionAttr]); attr != "" {
			names = append(names, attr)
		}
	}
	if len(names) == 0 {
		return nil, errEmptyRefresh
	}

	seen := make(map[cache.Collection]bool, len(names))
	keys := make([]cache.Collection, 0, len(names))
	add := func(key cache.Collection) {
		if !seen[key] {
			seen[key] = true
			keys = append(keys, key)
		}
	}
	for _, name := range names {
		if strings.TrimSpace(name) == allCollections {
			for _, key := range cache.WarmOrder {
				add(key)
			}
			continue
		}
		key, err := cache.ParseCollection(name)
		if err != nil {
			return nil, err
		}
		add(key)
	}
	return keys, nil
}

// NewRefreshMessage validates names and builds the message body that requests their refresh.
func NewRefreshMessage(names ...string) (RefreshMessage, error) {
	var msg RefreshMessage
	for _, name := range names {
		if name = strings.TrimSpace(name); name != "" {
			msg.Collections = append(msg.Collections, name)
		}
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return RefreshMessage{}, err
	}
	if _, err := ParseRefreshMessage(data, nil); err != nil {
		return RefreshMessage{}, err
	}
	return msg, nil
}
