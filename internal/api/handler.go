package api

import (
	"pushdash-backend/config"
	"pushdash-backend/internal/store"
)

// Dispatcher hands a campaign off for delivery. Implemented by the
// notification worker pool.
type Dispatcher interface {
	Dispatch(campaignID string)
}

// Handler holds shared dependencies for API handlers.
type Handler struct {
	store      store.Store
	push       *config.PushConfig
	dispatcher Dispatcher
}

// NewHandler creates a new API handler.
func NewHandler(s store.Store, push *config.PushConfig, dispatcher Dispatcher) *Handler {
	return &Handler{
		store:      s,
		push:       push,
		dispatcher: dispatcher,
	}
}
