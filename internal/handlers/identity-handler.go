package handlers

import (
	"net/http"

	"github.com/parley-chat/parley/internal/apperr"
	"github.com/parley-chat/parley/internal/dtos"
	"github.com/parley-chat/parley/internal/identity"
)

type IdentityHandler struct {
	Provider *identity.Provider
}

func NewIdentityHandler(provider *identity.Provider) *IdentityHandler {
	return &IdentityHandler{Provider: provider}
}

// Issue hands out one anonymous client identity. The client keeps the token
// for the websocket handshake; the identity is stable for its lifetime.
func (h *IdentityHandler) Issue(w http.ResponseWriter, r *http.Request) *apperr.AppError {
	token, clientID, err := h.Provider.Issue()
	if err != nil {
		return apperr.Transient("failed to issue identity")
	}

	resp := CreateResponse("identity issued", dtos.IdentityResponse{
		Token:    token,
		ClientID: clientID,
	}, r.Header.Get("X-Request-ID"))
	writeJSON(w, http.StatusCreated, resp)
	return nil
}
