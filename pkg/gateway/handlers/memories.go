package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/amparo-ai/amparo/pkg/core"
	"github.com/amparo-ai/amparo/pkg/core/types"
	"github.com/amparo-ai/amparo/pkg/gateway/mw"
)

// MemorySearcher finds durable facts for one user.
type MemorySearcher interface {
	SearchLongTerm(ctx context.Context, userID, query string) ([]types.MemoryFact, error)
}

// MemoriesHandler handles GET /v1/users/{id}/memories. It lets a caregiver
// portal review what the companion has remembered about a user.
type MemoriesHandler struct {
	Memory MemorySearcher
	Logger *slog.Logger
}

func (h MemoriesHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	reqID, _ := mw.RequestIDFrom(r.Context())
	if r.Method != http.MethodGet {
		methodNotAllowed(w, reqID)
		return
	}

	userID := r.PathValue("id")
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		writeCoreErrorJSON(w, reqID, core.NewInvalidRequestErrorWithParam("q is required", "q"), http.StatusBadRequest)
		return
	}

	facts, err := h.Memory.SearchLongTerm(r.Context(), userID, query)
	if err != nil {
		writeErr(w, reqID, err)
		return
	}
	if facts == nil {
		facts = []types.MemoryFact{}
	}
	writeJSON(w, http.StatusOK, map[string][]types.MemoryFact{"facts": facts})
}
