package redis

const (
	// DefaultKeyPrefix namespaces every key written by the service.
	DefaultKeyPrefix = "lovewall/"
)
