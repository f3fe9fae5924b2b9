package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/api/middleware"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
)

func customerIDFromRequest(r *http.Request) (uuid.UUID, error) {
	customerID, ok := middleware.CustomerIDFromContext(r.Context())
	if !ok {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "customer context missing")
	}
	return customerID, nil
}

// actorFromRequest identifies the caller for outbox events; nil when anonymous.
func actorFromRequest(r *http.Request) *outbox.ActorRef {
	customerID, ok := middleware.CustomerIDFromContext(r.Context())
	if !ok {
		return nil
	}
	return &outbox.ActorRef{
		CustomerID: customerID,
		Role:       middleware.RoleFromContext(r.Context()),
		RequestID:  middleware.RequestIDFromContext(r.Context()),
	}
}
