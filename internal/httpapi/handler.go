package httpapi

import (
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"sukpos/internal/auth"
	"sukpos/internal/catalog"
	"sukpos/internal/payment"
	"sukpos/internal/sale"
	"sukpos/internal/store"
)

type Handler struct {
	coordinator *sale.Coordinator
	catalog     *catalog.Reader
	store       store.Store
	gateways    *payment.Adapter
	tokens      *auth.TokenMaker
	cache       *redis.Client
	logger      *zap.Logger
	debug       bool
}

// NewHandler wires the HTTP surface. cache may be nil; summary caching
// is then skipped.
func NewHandler(
	coordinator *sale.Coordinator,
	reader *catalog.Reader,
	st store.Store,
	gateways *payment.Adapter,
	tokens *auth.TokenMaker,
	cache *redis.Client,
	logger *zap.Logger,
	debug bool,
) *Handler {
	return &Handler{
		coordinator: coordinator,
		catalog:     reader,
		store:       st,
		gateways:    gateways,
		tokens:      tokens,
		cache:       cache,
		logger:      logger,
		debug:       debug,
	}
}
