package handler

import (
	"net/http"

	"github.com/hitoshi/blogdesk/internal/middleware"
	"github.com/hitoshi/blogdesk/internal/model"
)

type meResponse struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

// Me は認証済み利用者の情報を返す。
// GET /api/admin/me
func Me(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	writeJSON(w, http.StatusOK, meResponse{
		ID:    identity.UserID,
		Email: identity.Email,
		Role:  identity.Role,
	})
}
