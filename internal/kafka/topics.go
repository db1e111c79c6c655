package kafka

import (
	"log"
	"time"

	"github.com/segmentio/kafka-go"
)

// EnsureTopicExists creates the booking event topic if it doesn't already
// exist. Called once at startup; failures are logged and tolerated since the
// broker may auto-create topics.
func EnsureTopicExists(brokers []string, topic string) error {
	conn, err := kafka.Dial("tcp", brokers[0])
	if err != nil {
		return err
	}
	defer conn.Close()

	controller, err := conn.Controller()
	if err != nil {
		return err
	}
	controllerConn, err := kafka.Dial("tcp", controller.Host)
	if err != nil {
		return err
	}
	defer controllerConn.Close()

	err = controllerConn.CreateTopics(kafka.TopicConfig{
		Topic:             topic,
		NumPartitions:     1,
		ReplicationFactor: 1,
	})
	if err != nil {
		if err.Error() == "kafka server: topic already exists" {
			log.Printf("Topic %s already exists", topic)
			return nil
		}
		log.Printf("Error creating topic %s: %v", topic, err)
		return err
	}

	log.Printf("Created topic: %s", topic)

	// Wait a moment for the topic to be fully created
	time.Sleep(1 * time.Second)
	return nil
}
