package persistence

import "fmt"

// NewMessageStore creates a new MessageStore based on the configuration
func NewMessageStore(config StoreConfig) (MessageStore, error) {
	switch config.Type {
	case StoreTypeMemory, "":
		return NewMemoryMessageStore(config), nil
	case StoreTypeRedis:
		return NewRedisMessageStore(config)
	default:
		return nil, fmt.Errorf("unsupported message store type: %s", config.Type)
	}
}

// MustNewMessageStore creates a new MessageStore or panics on error.
//
// WARNING: This function should ONLY be used during application initialization.
func MustNewMessageStore(config StoreConfig) MessageStore {
	store, err := NewMessageStore(config)
	if err != nil {
		panic(fmt.Sprintf("failed to create message store: %v", err))
	}
	return store
}
