package handler

import (
	"net/http"

	"github.com/tokengate/tokengate-go/internal/middleware"
)

// ExampleHandler is a sample protected API showing how handlers read the
// authenticated user. It must sit behind middleware.RequireUser.
type ExampleHandler struct{}

func NewExampleHandler() *ExampleHandler {
	return &ExampleHandler{}
}

// HandleGet handles GET /api/example requests.
func (h *ExampleHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorResponse("unauthorized"))
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message": "user loaded",
		"data":    map[string]any{"user": user},
	})
}

// HandlePost handles POST /api/example requests by echoing the body back
// together with the caller's id.
func (h *ExampleHandler) HandlePost(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorResponse("unauthorized"))
		return
	}

	body := map[string]any{}
	if err := decodeJSON(w, r, &body); err != nil {
		writeDecodeError(w, err)
		return
	}
	body["userId"] = user.ID

	writeJSON(w, http.StatusOK, map[string]any{
		"message": "ok",
		"data":    body,
	})
}
