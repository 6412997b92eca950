package events

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"csv_stream_backend/models"
	"csv_stream_backend/pkg/logging"
)

const (
	JobEventChannel = "job:events"

	subscriberBuffer = 100
)

// Publisher fans job events out to subscribers. Subscribe only delivers
// events for jobID and closes the channel when ctx ends.
type Publisher interface {
	PublishJobEvent(ctx context.Context, event *models.JobEvent) error
	SubscribeJobEvents(ctx context.Context, jobID string) (<-chan *models.JobEvent, error)
}

type EventPublisher struct {
	redisClient *redis.Client
}

func NewEventPublisher(redisClient *redis.Client) *EventPublisher {
	return &EventPublisher{redisClient: redisClient}
}

func (p *EventPublisher) PublishJobEvent(ctx context.Context, event *models.JobEvent) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	data, err := json.Marshal(event)
	if err != nil {
		logging.Logger.Error("fail PublishJobEvent", "error", err)
		return err
	}
	if err := p.redisClient.Publish(ctx, JobEventChannel, string(data)).Err(); err != nil {
		logging.Logger.Error("fail PublishJobEvent", "job_id", event.JobID, "error", err)
		return err
	}
	logging.Logger.Debug("PublishJobEvent", "job_id", event.JobID, "type", event.Type)
	return nil
}

func (p *EventPublisher) SubscribeJobEvents(ctx context.Context, jobID string) (<-chan *models.JobEvent, error) {
	pubsub := p.redisClient.Subscribe(ctx, JobEventChannel)
	if _, err := pubsub.Receive(ctx); err != nil {
		logging.Logger.Error("fail SubscribeJobEvents", "error", err)
		_ = pubsub.Close()
		return nil, err
	}
	ch := make(chan *models.JobEvent, subscriberBuffer)

	go func() {
		defer close(ch)
		defer func() {
			if err := pubsub.Close(); err != nil {
				logging.Logger.Error("fail SubscribeJobEvents close", "error", err)
			}
		}()

		msgs := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var event models.JobEvent
				if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
					logging.Logger.Error("Failed to unmarshal event", "error", err)
					continue
				}
				if event.JobID != jobID {
					continue
				}
				select {
				case ch <- &event:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return ch, nil
}

// LocalBroker is the in-process Publisher used when Redis is not configured.
type LocalBroker struct {
	mu   sync.RWMutex
	subs map[string]map[chan *models.JobEvent]struct{}
}

func NewLocalBroker() *LocalBroker {
	return &LocalBroker{subs: make(map[string]map[chan *models.JobEvent]struct{})}
}

// PublishJobEvent never blocks; a subscriber with a full buffer misses the event.
func (b *LocalBroker) PublishJobEvent(_ context.Context, event *models.JobEvent) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.subs[event.JobID] {
		e := *event
		select {
		case ch <- &e:
		default:
			logging.Logger.Warn("dropping job event for slow subscriber", "job_id", event.JobID)
		}
	}
	return nil
}

func (b *LocalBroker) SubscribeJobEvents(ctx context.Context, jobID string) (<-chan *models.JobEvent, error) {
	ch := make(chan *models.JobEvent, subscriberBuffer)
	b.mu.Lock()
	if b.subs[jobID] == nil {
		b.subs[jobID] = make(map[chan *models.JobEvent]struct{})
	}
	b.subs[jobID][ch] = struct{}{}
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		delete(b.subs[jobID], ch)
		if len(b.subs[jobID]) == 0 {
			delete(b.subs, jobID)
		}
		b.mu.Unlock()
		close(ch)
	}()
	return ch, nil
}

func (b *LocalBroker) subscribers(jobID string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[jobID])
}
