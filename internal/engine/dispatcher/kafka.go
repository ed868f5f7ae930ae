package dispatcher

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/flowgrid-go/pkg/logger"
)

// envelope is the wire shape of a queued job.
type envelope struct {
	Key  string `json:"key"`
	Data Job    `json:"data"`
}

type KafkaConfig struct {
	Brokers       []string
	Topic         string
	ConsumerGroup string
}

// KafkaQueue is the broker-backed Queue for multi-process deployments.
// Kafka's consumer-group offset handling provides the at-least-once
// guarantee.
type KafkaQueue struct {
	config KafkaConfig
	writer *kafka.Writer
	logger logger.Logger

	mu     sync.Mutex
	reader *kafka.Reader
	stopCh chan struct{}
	wg     sync.WaitGroup
}

func NewKafkaQueue(config KafkaConfig, log logger.Logger) *KafkaQueue {
	writer := kafka.NewWriter(kafka.WriterConfig{
		Brokers:      config.Brokers,
		Topic:        config.Topic,
		Balancer:     &kafka.LeastBytes{},
		BatchSize:    100,
		BatchTimeout: 10 * time.Millisecond,
		Async:        false,
	})

	return &KafkaQueue{
		config: config,
		writer: writer,
		logger: log,
		stopCh: make(chan struct{}),
	}
}

func (q *KafkaQueue) Enqueue(ctx context.Context, job Job) error {
	data, err := json.Marshal(envelope{Key: KeyExecuteWorkflow, Data: job})
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(job.WorkflowID),
		Value: data,
		Headers: []kafka.Header{
			{Key: "job-key", Value: []byte(KeyExecuteWorkflow)},
		},
	}

	return q.writer.WriteMessages(ctx, msg)
}

func (q *KafkaQueue) Subscribe(handler Handler) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.reader != nil {
		return fmt.Errorf("queue already subscribed")
	}

	q.reader = kafka.NewReader(kafka.ReaderConfig{
		Brokers:     q.config.Brokers,
		Topic:       q.config.Topic,
		GroupID:     q.config.ConsumerGroup,
		MinBytes:    1,
		MaxBytes:    10e6,
		StartOffset: kafka.LastOffset,
		MaxWait:     time.Second,
	})

	q.wg.Add(1)
	go q.consume(handler)
	return nil
}

func (q *KafkaQueue) consume(handler Handler) {
	defer q.wg.Done()

	for {
		select {
		case <-q.stopCh:
			return
		default:
		}

		msg, err := q.reader.ReadMessage(context.Background())
		if err != nil {
			if err == context.Canceled {
				return
			}
			q.logger.Error("failed to read job", "error", err)
			time.Sleep(time.Second)
			continue
		}

		var env envelope
		if err := json.Unmarshal(msg.Value, &env); err != nil {
			q.logger.Error("failed to unmarshal job", "error", err)
			continue
		}
		if env.Key != KeyExecuteWorkflow {
			q.logger.Warn("ignoring job with unknown key", "key", env.Key)
			continue
		}

		if err := handler(context.Background(), env.Data); err != nil {
			q.logger.Error("job handling failed",
				"executionId", env.Data.ExecutionID,
				"workflowId", env.Data.WorkflowID,
				"error", err)
		}
	}
}

func (q *KafkaQueue) Close() error {
	close(q.stopCh)

	if err := q.writer.Close(); err != nil {
		return fmt.Errorf("failed to close writer: %w", err)
	}

	q.mu.Lock()
	reader := q.reader
	q.mu.Unlock()

	if reader != nil {
		if err := reader.Close(); err != nil {
			return fmt.Errorf("failed to close reader: %w", err)
		}
	}

	q.wg.Wait()
	return nil
}
