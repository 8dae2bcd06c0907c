package models

// Record is a transport-neutral message as fetched from Kafka or NATS.
type Record struct {
	Key   []byte
	Value []byte
	Topic string
}

type ConsumerConfig struct {
	Brokers        []string
	Name           string
	Topic          string
	RecordsPerPoll int
}

type ProducerConfig struct {
	Brokers []string
	Topic   string
}
