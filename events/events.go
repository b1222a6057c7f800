package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"

	"media-converter/jobs"
)

var log = logrus.NewEntry(logrus.StandardLogger())

func Init(logger *logrus.Logger) error {
	log = logger.WithFields(logrus.Fields{
		"component": "events",
	})
	return nil
}

// Publisher announces jobs that reached a terminal state.
type Publisher interface {
	Publish(ctx context.Context, snap jobs.Snapshot) error
	Close() error
}

// Nop drops every event. It is used when no brokers are configured.
type Nop struct{}

func (Nop) Publish(context.Context, jobs.Snapshot) error { return nil }
func (Nop) Close() error                                 { return nil }

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// KafkaPublisher writes each snapshot as JSON keyed by job id.
type KafkaPublisher struct {
	writer       messageWriter
	writeTimeout time.Duration
}

func NewKafkaPublisher(brokers []string, topic string) (*KafkaPublisher, error) {
	if len(brokers) == 0 {
		return nil, errors.New("brokers list is empty")
	}
	if topic == "" {
		return nil, errors.New("topic is empty")
	}
	return &KafkaPublisher{
		writer: &kafkago.Writer{
			Addr:                   kafkago.TCP(brokers...),
			Topic:                  topic,
			Balancer:               &kafkago.Hash{},
			RequiredAcks:           kafkago.RequireOne,
			AllowAutoTopicCreation: true,
		},
		writeTimeout: 10 * time.Second,
	}, nil
}

func (p *KafkaPublisher) Publish(ctx context.Context, snap jobs.Snapshot) error {
	value, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal job %s: %w", snap.ID, err)
	}

	ctx, cancel := context.WithTimeout(ctx, p.writeTimeout)
	defer cancel()

	err = p.writer.WriteMessages(ctx, kafkago.Message{
		Key:   []byte(snap.ID),
		Value: value,
		Headers: []kafkago.Header{
			{Key: "state", Value: []byte(snap.State.String())},
		},
	})
	if err != nil {
		return fmt.Errorf("kafka publish: %w", err)
	}
	log.WithField("job", snap.ID).Debugf("published %s event", snap.State)
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
