package handler

import (
	"log/slog"

	"github.com/crosslister/dispatch-be/internal/delivery"
	"github.com/crosslister/dispatch-be/internal/jobstore"
	"github.com/crosslister/dispatch-be/shared/postgresql"
	"github.com/crosslister/dispatch-be/shared/rabbitmq"
)

// Dependencies holds everything the handlers need.
type Dependencies struct {
	Logger       *slog.Logger
	DBClient     *postgresql.Client
	RabbitClient *rabbitmq.Client
	Coordinator  *delivery.Coordinator
	JobStore     *jobstore.Store
}

// JobHandler handles job creation, status, and listing requests.
type JobHandler struct {
	logger       *slog.Logger
	rabbitClient *rabbitmq.Client
	coordinator  *delivery.Coordinator
	store        *jobstore.Store
}

// NewJobHandler creates a JobHandler.
func NewJobHandler(deps *Dependencies) *JobHandler {
	return &JobHandler{
		logger:       deps.Logger,
		rabbitClient: deps.RabbitClient,
		coordinator:  deps.Coordinator,
		store:        deps.JobStore,
	}
}

// ExtensionHandler handles the browser extension's polling protocol.
type ExtensionHandler struct {
	logger      *slog.Logger
	coordinator *delivery.Coordinator
}

// NewExtensionHandler creates an ExtensionHandler.
func NewExtensionHandler(deps *Dependencies) *ExtensionHandler {
	return &ExtensionHandler{
		logger:      deps.Logger,
		coordinator: deps.Coordinator,
	}
}
