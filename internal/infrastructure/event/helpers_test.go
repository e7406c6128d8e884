package event_test

import "github.com/netbill/backend/internal/infrastructure/config"

func configKafka(enabled bool, brokers []string) config.KafkaConfig {
	return config.KafkaConfig{Enabled: enabled, Brokers: brokers, Topic: "netbill.billing-events"}
}
