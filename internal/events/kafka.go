package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/abhishekmaher6699/tech-assessment-sde/internal/config"
	"github.com/abhishekmaher6699/tech-assessment-sde/internal/models"
)

const eventTypeCreated = "observation.created"

// Publisher delivers a stored observation to downstream consumers.
type Publisher interface {
	Publish(ctx context.Context, obs models.Observation) error
	Close() error
}

// KafkaPublisher produces observation events to a Kafka topic.
type KafkaPublisher struct {
	writer *kafkago.Writer
}

func NewKafkaPublisher(cfg config.EventsConfig) *KafkaPublisher {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
		WriteTimeout: 10 * time.Second,
	}
	return &KafkaPublisher{writer: w}
}

func (p *KafkaPublisher) Publish(ctx context.Context, obs models.Observation) error {
	msg, err := toMessage(obs, time.Now())
	if err != nil {
		return err
	}
	return p.writer.WriteMessages(ctx, msg)
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// toMessage keys events by location so one location's readings stay ordered
// within a partition.
func toMessage(obs models.Observation, producedAt time.Time) (kafkago.Message, error) {
	data, err := json.Marshal(obs)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize observation %d: %w", obs.ID, err)
	}
	return kafkago.Message{
		Key:   []byte(obs.Location),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "event_type", Value: []byte(eventTypeCreated)},
			{Key: "observation_id", Value: []byte(strconv.FormatInt(obs.ID, 10))},
			{Key: "produced_at", Value: []byte(producedAt.UTC().Format(time.RFC3339))},
		},
	}, nil
}
