package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/IBM/sarama"
	"github.com/ctf-scoreboard/internal/config"
	"github.com/ctf-scoreboard/internal/domain"
)

// SolvePublisher publishes accepted solves to the solves topic
type SolvePublisher struct {
	producer sarama.SyncProducer
	topic    string
	logger   *slog.Logger
}

// NewSolvePublisher creates a synchronous producer for cfg.SolvesTopic
func NewSolvePublisher(cfg *config.KafkaConfig, logger *slog.Logger) (*SolvePublisher, error) {
	saramaConfig := sarama.NewConfig()
	saramaConfig.Version = sarama.V3_0_0_0
	saramaConfig.Producer.RequiredAcks = sarama.WaitForLocal
	saramaConfig.Producer.Compression = sarama.CompressionSnappy
	saramaConfig.Producer.Return.Successes = true
	saramaConfig.Producer.Return.Errors = true

	producer, err := sarama.NewSyncProducer(cfg.Brokers, saramaConfig)
	if err != nil {
		return nil, fmt.Errorf("creating producer: %w", err)
	}

	return newSolvePublisher(producer, cfg.SolvesTopic, logger), nil
}

func newSolvePublisher(producer sarama.SyncProducer, topic string, logger *slog.Logger) *SolvePublisher {
	return &SolvePublisher{
		producer: producer,
		topic:    topic,
		logger:   logger,
	}
}

// PublishSolve sends event keyed by user so a user's solves stay ordered
func (p *SolvePublisher) PublishSolve(ctx context.Context, event domain.SolveEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshaling solve: %w", err)
	}

	msg := &sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(strconv.FormatInt(int64(event.UserID), 10)),
		Value: sarama.ByteEncoder(data),
	}

	partition, offset, err := p.producer.SendMessage(msg)
	if err != nil {
		return fmt.Errorf("publishing solve: %w", err)
	}

	p.logger.Debug("published solve",
		"submission_id", event.SubmissionID,
		"partition", partition,
		"offset", offset,
	)
	return nil
}

// Close flushes and closes the producer
func (p *SolvePublisher) Close() error {
	return p.producer.Close()
}
