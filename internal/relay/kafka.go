package relay

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"attackwatch/internal/broadcast"
)

type KafkaConfig struct {
	Brokers []string
	Topic   string
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type kafkaSender struct {
	writer messageWriter
}

// send keys each record by event name so a topic consumer sees new-attack
// and attack-updated messages for one name in publish order.
func (s *kafkaSender) send(ctx context.Context, msg broadcast.Message) error {
	return s.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(msg.Name),
		Value: msg.Data,
		Time:  time.Now(),
		Headers: []kafka.Header{
			{Key: "event", Value: []byte(msg.Name)},
		},
	})
}

func (s *kafkaSender) close() error {
	return s.writer.Close()
}

type Kafka struct {
	*queue
}

func NewKafka(cfg KafkaConfig, logger *zap.Logger) (*Kafka, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka relay: no brokers configured")
	}
	if cfg.Topic == "" {
		return nil, errors.New("kafka relay: topic is required")
	}
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  cfg.Topic,
		Balancer:               &kafka.Hash{},
		BatchTimeout:           50 * time.Millisecond,
		MaxAttempts:            3,
		WriteTimeout:           5 * time.Second,
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
		ErrorLogger: kafka.LoggerFunc(func(msg string, args ...interface{}) {
			logger.Error(fmt.Sprintf(msg, args...), zap.String("component", "kafka-writer"))
		}),
	}
	logger.Info("kafka relay configured", zap.Strings("brokers", cfg.Brokers), zap.String("topic", cfg.Topic))
	return newKafkaWithWriter(writer, logger), nil
}

func newKafkaWithWriter(w messageWriter, logger *zap.Logger) *Kafka {
	return &Kafka{newQueue("kafka", &kafkaSender{writer: w}, logger)}
}
