package kafka

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nyanglife/catshop/pkg/config"
)

func TestEncodeKeepsKeysAndJSON(t *testing.T) {
	msgs, err := encode([]Event{
		{Key: "고양이 사료", Value: map[string]int{"results": 3}},
		{Key: "고양이 모래", Value: "x"},
	})
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "고양이 사료", string(msgs[0].Key))
	assert.JSONEq(t, `{"results":3}`, string(msgs[0].Value))
	assert.Equal(t, `"x"`, string(msgs[1].Value))
}

func TestPublishBatchRejectsUnencodableEventsBeforeWriting(t *testing.T) {
	p := NewProducer(config.KafkaConfig{Brokers: []string{"127.0.0.1:1"}}, "search-events")
	defer p.Close()

	err := p.PublishBatch(context.Background(), []Event{
		{Key: "ok", Value: 1},
		{Key: "bad", Value: make(chan int)},
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), `"bad"`)
	published, failed := p.Counts()
	assert.Zero(t, published)
	assert.Equal(t, int64(2), failed)
}

func TestPublishBatchEmptyIsNoop(t *testing.T) {
	p := NewProducer(config.KafkaConfig{Brokers: []string{"127.0.0.1:1"}}, "search-events")
	defer p.Close()

	require.NoError(t, p.PublishBatch(context.Background(), nil))
	published, failed := p.Counts()
	assert.Zero(t, published+failed)
}

func TestDecodeJSON(t *testing.T) {
	type event struct {
		Keyword string `json:"keyword"`
	}
	ev, err := DecodeJSON[event]([]byte(`{"keyword":"고양이 장난감"}`))
	require.NoError(t, err)
	assert.Equal(t, "고양이 장난감", ev.Keyword)

	_, err = DecodeJSON[event]([]byte(`{`))
	assert.ErrorContains(t, err, "decoding kafka message")
}

func TestConsumerStats(t *testing.T) {
	c := NewConsumer(config.KafkaConfig{Brokers: []string{"127.0.0.1:1"}, ConsumerGroup: "g"}, "search-events", nil)
	defer c.reader.Close()

	c.fail(errors.New("broker down"))
	c.processed(c.Stats().LastMessageAt)

	s := c.Stats()
	assert.Equal(t, int64(1), s.Processed)
	assert.Equal(t, int64(1), s.Failed)
	assert.Equal(t, "broker down", s.LastError)
}
