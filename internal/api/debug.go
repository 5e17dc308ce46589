package walletapi

import (
	"net/http"

	"github.com/aegis-sign/wallet-adapter/internal/adapter"
	"github.com/aegis-sign/wallet-adapter/pkg/apierrors"
)

type pendingResponseBody struct {
	State   string                   `json:"state"`
	Pending []adapter.PendingRequest `json:"pending"`
}

// RegisterDebug 注册 `/debug/pending`，列出在途请求。
func (h *HTTPHandler) RegisterDebug(mux *http.ServeMux) {
	mux.HandleFunc("/debug/pending", h.handlePending)
}

func (h *HTTPHandler) handlePending(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		h.writeAPIError(w, apierrors.New(apierrors.CodeInvalidArgument, "GET required"))
		return
	}
	pending := h.backend.PendingRequests()
	if pending == nil {
		pending = []adapter.PendingRequest{}
	}
	h.writeJSON(w, http.StatusOK, pendingResponseBody{State: h.backend.State().String(), Pending: pending})
}
