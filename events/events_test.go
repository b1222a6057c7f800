package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"media-converter/jobs"
)

type fakeWriter struct {
	msgs   []kafkago.Message
	err    error
	closed bool
}

func (w *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafkago.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func TestNewKafkaPublisherValidation(t *testing.T) {
	_, err := NewKafkaPublisher(nil, "topic")
	require.EqualError(t, err, "brokers list is empty")

	_, err = NewKafkaPublisher([]string{"localhost:9092"}, "")
	require.EqualError(t, err, "topic is empty")

	p, err := NewKafkaPublisher([]string{"localhost:9092"}, "media-conversions")
	require.NoError(t, err)
	assert.Equal(t, "media-conversions", p.writer.(*kafkago.Writer).Topic)
}

func TestPublish(t *testing.T) {
	w := &fakeWriter{}
	p := &KafkaPublisher{writer: w, writeTimeout: time.Second}

	snap := jobs.Snapshot{
		ID:              "job1",
		Kind:            jobs.KindFile,
		State:           jobs.Completed,
		Message:         "Completed",
		ProgressPercent: 100,
		OutputFilename:  "media-storage/job1-clip.mp3",
	}
	require.NoError(t, p.Publish(context.Background(), snap))
	require.Len(t, w.msgs, 1)

	msg := w.msgs[0]
	assert.Equal(t, "job1", string(msg.Key))
	assert.Equal(t, "COMPLETED", string(msg.Headers[0].Value))

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, "COMPLETED", decoded["state"])
	assert.Equal(t, "media-storage/job1-clip.mp3", decoded["outputFilename"])

	require.NoError(t, p.Close())
	assert.True(t, w.closed)
}

func TestPublishError(t *testing.T) {
	p := &KafkaPublisher{writer: &fakeWriter{err: errors.New("connection refused")}, writeTimeout: time.Second}
	err := p.Publish(context.Background(), jobs.Snapshot{ID: "job1", State: jobs.Failed})
	require.ErrorContains(t, err, "kafka publish: connection refused")
}

func TestNop(t *testing.T) {
	var p Publisher = Nop{}
	require.NoError(t, p.Publish(context.Background(), jobs.Snapshot{}))
	require.NoError(t, p.Close())
}
