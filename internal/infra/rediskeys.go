package infra

const (
	// RedisNamespace Базовый префикс для изоляции данных проекта в Redis
	RedisNamespace = "ids-dashboard"
)

// Каналы Pub/Sub (события)
const (
	// RedisChanMonitorState — переходы мониторинга; формат сообщения "<instance>:<running>".
	RedisChanMonitorState = RedisNamespace + ":monitor:state"
)
