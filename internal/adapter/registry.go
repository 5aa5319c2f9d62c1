package adapter

import (
	"fmt"

	"gateway/pkg/models"
)

// Registry resolves the adapter for a channel. It is populated once at
// startup and read-only afterwards.
type Registry struct {
	adapters map[models.ChannelType]ChannelAdapter
}

func NewRegistry(adapters ...ChannelAdapter) *Registry {
	reg := &Registry{adapters: make(map[models.ChannelType]ChannelAdapter, len(adapters))}
	for _, a := range adapters {
		reg.adapters[a.ChannelType()] = a
	}
	return reg
}

func (r *Registry) Get(channel models.ChannelType) (ChannelAdapter, error) {
	a, ok := r.adapters[channel]
	if !ok {
		return nil, fmt.Errorf("no adapter registered for channel %s", channel)
	}
	return a, nil
}

func (r *Registry) Channels() []models.ChannelType {
	channels := make([]models.ChannelType, 0, len(r.adapters))
	for ch := range r.adapters {
		channels = append(channels, ch)
	}
	return channels
}
