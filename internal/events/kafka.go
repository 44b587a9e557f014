package events

import (
	"encoding/json"
	"log/slog"

	"github.com/IBM/sarama"
)

// KafkaNotifier publishes events to a Kafka topic. When the brokers are
// unreachable at startup the notifier stays disabled instead of failing the
// process; events then go nowhere, which is acceptable for a fire-and-forget
// collaborator.
type KafkaNotifier struct {
	producer sarama.SyncProducer
	topic    string
	enabled  bool
}

func NewKafkaNotifier(brokers []string, topic string) (*KafkaNotifier, error) {
	config := sarama.NewConfig()
	config.Producer.Return.Successes = true
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Retry.Max = 3

	producer, err := sarama.NewSyncProducer(brokers, config)
	if err != nil {
		slog.Warn("kafka producer not available, events disabled", "error", err)
		return &KafkaNotifier{topic: topic, enabled: false}, nil
	}

	slog.Info("kafka producer connected", "topic", topic)
	return &KafkaNotifier{producer: producer, topic: topic, enabled: true}, nil
}

func (n *KafkaNotifier) Emit(event Event) {
	if !n.enabled {
		return
	}

	data, err := json.Marshal(event)
	if err != nil {
		slog.Error("failed to marshal event", "type", event.Type, "error", err)
		return
	}

	msg := &sarama.ProducerMessage{
		Topic: n.topic,
		Key:   sarama.StringEncoder(string(event.Type)),
		Value: sarama.ByteEncoder(data),
	}

	if _, _, err := n.producer.SendMessage(msg); err != nil {
		slog.Error("failed to send event", "type", event.Type, "error", err)
	}
}

func (n *KafkaNotifier) Close() error {
	if n.producer != nil {
		return n.producer.Close()
	}
	return nil
}
