// Package handlers serves the gig and proposal endpoints.
package handlers

import (
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nivekithan/gig-marketplace/internal/apperr"
	"github.com/nivekithan/gig-marketplace/internal/httputil"
	"github.com/nivekithan/gig-marketplace/internal/middleware"
	"github.com/nivekithan/gig-marketplace/internal/validation"
)

type base struct {
	validator *validation.Validator
	log       *zap.Logger
}

func (b base) userID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, ok := middleware.UserIDFromCtx(r.Context())
	if !ok {
		httputil.WriteMessage(w, http.StatusUnauthorized, "unauthorized", "unauthorized")
	}
	return id, ok
}

// pathID parses the {name} path segment. Malformed ids are reported as not
// found, the same as ids that do not exist.
func (b base) pathID(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue(name))
	if err != nil {
		httputil.WriteError(w, b.log, apperr.ErrNotFound)
		return uuid.Nil, false
	}
	return id, true
}

func (b base) decode(w http.ResponseWriter, r *http.Request, schema string, dst any) bool {
	body, err := httputil.ReadBody(w, r)
	if err == nil {
		err = b.validator.Decode(schema, body, dst)
	}
	if err != nil {
		httputil.WriteError(w, b.log, err)
		return false
	}
	return true
}
