package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/IBM/sarama"
	"github.com/ctf-scoreboard/internal/config"
	"github.com/ctf-scoreboard/internal/domain"
)

// SubmissionHandler credits flag submissions
type SubmissionHandler interface {
	SubmitFlag(ctx context.Context, submission domain.FlagSubmission) (domain.SubmissionOutcome, error)
}

// Consumer consumes flag submissions from Kafka and feeds them to the
// scoring engine one message at a time
type Consumer struct {
	config        *config.KafkaConfig
	handler       SubmissionHandler
	logger        *slog.Logger
	consumerGroup sarama.ConsumerGroup
	ctx           context.Context
	cancel        context.CancelFunc
	wg            sync.WaitGroup
	retryBackoff  time.Duration

	// ready is closed once, by the first session that completes Setup.
	ready     chan struct{}
	readyOnce sync.Once
}

// NewConsumer creates a new Kafka consumer
func NewConsumer(cfg *config.KafkaConfig, handler SubmissionHandler, logger *slog.Logger) (*Consumer, error) {
	saramaConfig := sarama.NewConfig()
	saramaConfig.Version = sarama.V3_0_0_0
	saramaConfig.Consumer.Group.Rebalance.GroupStrategies = []sarama.BalanceStrategy{sarama.NewBalanceStrategyRoundRobin()}
	saramaConfig.Consumer.Offsets.Initial = sarama.OffsetOldest
	saramaConfig.Consumer.Return.Errors = true

	consumerGroup, err := sarama.NewConsumerGroup(cfg.Brokers, cfg.GroupID, saramaConfig)
	if err != nil {
		return nil, fmt.Errorf("creating consumer group: %w", err)
	}

	return newConsumer(cfg, consumerGroup, handler, logger), nil
}

func newConsumer(cfg *config.KafkaConfig, group sarama.ConsumerGroup, handler SubmissionHandler, logger *slog.Logger) *Consumer {
	ctx, cancel := context.WithCancel(context.Background())
	return &Consumer{
		config:        cfg,
		handler:       handler,
		logger:        logger,
		consumerGroup: group,
		ctx:           ctx,
		cancel:        cancel,
		retryBackoff:  time.Second,
		ready:         make(chan struct{}),
	}
}

func (c *Consumer) markReady() {
	c.readyOnce.Do(func() { close(c.ready) })
}

// Start begins consuming messages from Kafka. It returns once the first
// session is set up, or with an error if that does not happen within
// StartTimeout. Failed sessions are retried in the background.
func (c *Consumer) Start() error {
	c.logger.Info("starting Kafka consumer",
		"brokers", c.config.Brokers,
		"topic", c.config.Topic,
		"group_id", c.config.GroupID,
	)

	c.wg.Add(1)
	go c.consumeLoop()

	var timeout <-chan time.Time
	if c.config.StartTimeout > 0 {
		timer := time.NewTimer(c.config.StartTimeout)
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case <-c.ready:
	case <-timeout:
		c.cancel()
		closeErr := c.consumerGroup.Close()
		c.wg.Wait()
		if closeErr != nil {
			c.logger.Warn("closing consumer group", "error", closeErr)
		}
		return fmt.Errorf("kafka consumer not ready after %s", c.config.StartTimeout)
	}
	c.logger.Info("Kafka consumer ready")

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		for {
			select {
			case <-c.ctx.Done():
				return
			case err, ok := <-c.consumerGroup.Errors():
				if !ok {
					return
				}
				c.logger.Error("consumer group error", "error", err)
			}
		}
	}()

	return nil
}

// consumeLoop rejoins the group after every rebalance until the consumer stops
func (c *Consumer) consumeLoop() {
	defer c.wg.Done()
	handler := &consumerGroupHandler{consumer: c}
	for {
		err := c.consumerGroup.Consume(c.ctx, []string{c.config.Topic}, handler)
		if errors.Is(err, sarama.ErrClosedConsumerGroup) || c.ctx.Err() != nil {
			return
		}
		if err == nil {
			continue
		}

		c.logger.Error("error from consumer", "error", err, "retry_in", c.retryBackoff)
		select {
		case <-c.ctx.Done():
			return
		case <-time.After(c.retryBackoff):
		}
	}
}

// Stop gracefully stops the consumer
func (c *Consumer) Stop() error {
	c.logger.Info("stopping Kafka consumer")
	c.cancel()
	c.wg.Wait()
	return c.consumerGroup.Close()
}

// decodeSubmission parses and validates a message payload
func decodeSubmission(value []byte) (domain.FlagSubmission, error) {
	var submission domain.FlagSubmission
	if err := json.Unmarshal(value, &submission); err != nil {
		return submission, fmt.Errorf("unmarshaling submission: %w", err)
	}
	if submission.UserID <= 0 || submission.Flag == "" {
		return submission, domain.ErrInvalidRequest
	}
	return submission, nil
}

// process handles one message. Malformed messages are dropped; rejected and
// failed submissions are logged. Redelivery is safe because crediting is
// idempotent per user and flag.
func (c *Consumer) process(ctx context.Context, value []byte) {
	submission, err := decodeSubmission(value)
	if err != nil {
		c.logger.Warn("dropping malformed submission", "error", err)
		return
	}

	ctx, cancel := context.WithTimeout(ctx, c.config.HandlerTimeout)
	defer cancel()

	outcome, err := c.handler.SubmitFlag(ctx, submission)
	if err != nil {
		c.logger.Error("failed to process submission",
			"user_id", submission.UserID,
			"error", err,
		)
		return
	}

	c.logger.Debug("processed submission",
		"user_id", submission.UserID,
		"status", outcome.Status,
		"points", outcome.Points,
	)
}

// consumerGroupHandler implements sarama.ConsumerGroupHandler
type consumerGroupHandler struct {
	consumer *Consumer
}

// Setup is called at the beginning of a new session
func (h *consumerGroupHandler) Setup(sarama.ConsumerGroupSession) error {
	h.consumer.markReady()
	return nil
}

// Cleanup is called at the end of a session
func (h *consumerGroupHandler) Cleanup(sarama.ConsumerGroupSession) error {
	return nil
}

// ConsumeClaim processes messages from a topic partition
func (h *consumerGroupHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for {
		select {
		case <-session.Context().Done():
			return nil

		case message, ok := <-claim.Messages():
			if !ok {
				return nil
			}

			h.consumer.process(session.Context(), message.Value)
			session.MarkMessage(message, "")
		}
	}
}
