package service

import (
	"context"
	"errors"
	"fmt"

	"messenger/internal/metrics"
	"messenger/internal/models"
	"messenger/internal/queue"
	"messenger/internal/store"
	"messenger/internal/ws"

	"github.com/rs/zerolog/log"
)

// Broker routes direct messages between registered sessions and keeps
// the per-user logs. Without a store backend it runs volatile: nothing
// is persisted and nothing is replayed.
type Broker struct {
	hub *ws.Hub
	log *store.Log
}

// NewBroker wires hub and backend. backend may be nil. With a hub from
// ws.NewHeldHub a new session sees its whole history before any live
// message; with ws.NewHub live sends may overtake the replay.
func NewBroker(hub *ws.Hub, backend store.Backend) *Broker {
	b := &Broker{hub: hub}
	if backend != nil {
		b.log = store.NewLog(backend)
	}
	return b
}

func (b *Broker) Durable() bool { return b.log != nil }

func (b *Broker) Online() int { return b.hub.Online() }

// Send delivers m to the recipient's live session and then records it
// in both parties' logs. A recording failure is reported even though
// the recipient already has the message.
func (b *Broker) Send(ctx context.Context, m models.Message) error {
	if m.Sender == "" || m.Recipient == "" {
		return ErrInvalidMessage
	}
	logger := log.With().Str("sender", m.Sender).Str("recipient", m.Recipient).Logger()
	logger.Info().Int("bytes", len(m.Content)).Msg("got message")

	if err := b.hub.Deliver(m); err != nil {
		reason := "not_found"
		if errors.Is(err, ErrDeliveryFailed) {
			reason = "delivery_failed"
		}
		metrics.SendFailures.WithLabelValues(reason).Inc()
		logger.Warn().Err(err).Msg("message not delivered")
		return err
	}
	metrics.MessagesDelivered.Inc()

	if b.log == nil {
		return nil
	}
	if err := b.log.Record(ctx, m); err != nil {
		metrics.SendFailures.WithLabelValues("persistence").Inc()
		logger.Error().Err(err).Msg("store message")
		return fmt.Errorf("%w: %w", ErrPersistenceFailed, err)
	}
	return nil
}

// Open registers nickname for inbound delivery and replays its stored
// history onto the new queue. If the consumer goes away mid-replay the
// rest is dropped and the session is left for lazy eviction.
func (b *Broker) Open(ctx context.Context, nickname string) (*ws.Session, *queue.Receiver, error) {
	session, rx, err := b.hub.Register(nickname)
	if err != nil {
		return nil, nil, err
	}
	defer session.Release()
	log.Info().Str("nickname", nickname).Str("session_id", session.ID).Msg("registered session")

	if b.log == nil {
		return session, rx, nil
	}
	history, err := b.log.History(ctx, nickname)
	if err != nil {
		rx.Close()
		log.Error().Err(err).Str("nickname", nickname).Msg("retrieve message history")
		return nil, nil, fmt.Errorf("%w: history of %s: %w", ErrPersistenceFailed, nickname, err)
	}
	for _, m := range history {
		if err := session.Replay(m); err != nil {
			log.Warn().Str("nickname", nickname).Msg("stream closed during history replay")
			break
		}
		metrics.MessagesReplayed.Inc()
	}
	return session, rx, nil
}

// History 返回用户的历史消息，按写入顺序。
func (b *Broker) History(ctx context.Context, nickname string) ([]models.Message, error) {
	if b.log == nil {
		return []models.Message{}, nil
	}
	msgs, err := b.log.History(ctx, nickname)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPersistenceFailed, err)
	}
	return msgs, nil
}
