// Package walletapi 把已连接的钱包暴露为本地 HTTP/JSON 网关。
package walletapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/aegis-sign/wallet-adapter/pkg/apierrors"
	"github.com/aegis-sign/wallet-adapter/pkg/validator"
)

// HTTPHandler 实现 `/status` `/connect` `/disconnect` `/sign` `/transfer` 接口。
type HTTPHandler struct {
	backend Backend
	ledger  Ledger
	logger  *slog.Logger
}

// HandlerOption 自定义 HTTPHandler。
type HandlerOption func(*HTTPHandler)

// WithLedger 启用 `/transfer`。
func WithLedger(l Ledger) HandlerOption {
	return func(h *HTTPHandler) { h.ledger = l }
}

// WithLogger 注入 slog Logger。
func WithLogger(l *slog.Logger) HandlerOption {
	return func(h *HTTPHandler) {
		if l != nil {
			h.logger = l
		}
	}
}

// NewHTTPHandler 构造 HTTP handler。
func NewHTTPHandler(backend Backend, opts ...HandlerOption) *HTTPHandler {
	if backend == nil {
		panic("wallet backend is required")
	}
	h := &HTTPHandler{backend: backend, logger: slog.Default()}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register 将 handler 注册到 mux。
func (h *HTTPHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/status", h.handleStatus)
	mux.HandleFunc("/connect", h.handleConnect)
	mux.HandleFunc("/disconnect", h.handleDisconnect)
	mux.HandleFunc("/sign", h.handleSign)
	mux.HandleFunc("/transfer", h.handleTransfer)
}

type statusResponseBody struct {
	State       string `json:"state"`
	Connected   bool   `json:"connected"`
	PublicKey   string `json:"publicKey,omitempty"`
	AutoApprove bool   `json:"autoApprove"`
	Network     string `json:"network"`
	Pending     int    `json:"pending"`
}

type signRequestBody struct {
	Payload  string `json:"payload"`
	Encoding string `json:"encoding"`
	Display  string `json:"display"`
}

type signResponseBody struct {
	Signature string `json:"signature"`
	PublicKey string `json:"publicKey"`
}

type transferRequestBody struct {
	To       string `json:"to"`
	Lamports uint64 `json:"lamports"`
	Confirm  bool   `json:"confirm"`
}

type transferResponseBody struct {
	Signature string `json:"signature"`
	From      string `json:"from"`
	To        string `json:"to"`
	Lamports  uint64 `json:"lamports"`
	Confirmed bool   `json:"confirmed"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (h *HTTPHandler) status() statusResponseBody {
	state := h.backend.State()
	body := statusResponseBody{
		State:       state.String(),
		AutoApprove: h.backend.AutoApprove(),
		Network:     h.backend.Network(),
		Pending:     len(h.backend.PendingRequests()),
	}
	if key, ok := h.backend.PublicKey(); ok {
		body.Connected = true
		body.PublicKey = key.String()
	}
	return body
}

func (h *HTTPHandler) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		h.writeAPIError(w, apierrors.New(apierrors.CodeInvalidArgument, "GET required"))
		return
	}
	h.writeJSON(w, http.StatusOK, h.status())
}

func (h *HTTPHandler) handleConnect(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		h.writeAPIError(w, apierrors.New(apierrors.CodeInvalidArgument, "POST required"))
		return
	}
	if err := h.backend.Connect(r.Context()); err != nil {
		h.writeUnknownError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, h.status())
}

func (h *HTTPHandler) handleDisconnect(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		h.writeAPIError(w, apierrors.New(apierrors.CodeInvalidArgument, "POST required"))
		return
	}
	h.backend.Disconnect()
	h.writeJSON(w, http.StatusOK, h.status())
}

func (h *HTTPHandler) handleSign(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		h.writeAPIError(w, apierrors.New(apierrors.CodeInvalidArgument, "POST required"))
		return
	}
	var body signRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.writeAPIError(w, apierrors.New(apierrors.CodeInvalidArgument, "invalid JSON body"))
		return
	}
	encoding, err := validator.NormalizeEncoding(body.Encoding)
	if err != nil {
		h.writeAPIError(w, apierrors.New(apierrors.CodeInvalidArgument, err.Error()))
		return
	}
	payload, err := validator.DecodePayload(body.Payload, encoding)
	if err != nil {
		h.writeAPIError(w, apierrors.New(apierrors.CodeInvalidArgument, err.Error()))
		return
	}
	res, err := h.backend.Sign(r.Context(), payload, body.Display)
	if err != nil {
		h.writeUnknownError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, signResponseBody{
		Signature: res.Signature.String(),
		PublicKey: res.PublicKey.String(),
	})
}

func (h *HTTPHandler) handleTransfer(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		h.writeAPIError(w, apierrors.New(apierrors.CodeInvalidArgument, "POST required"))
		return
	}
	if h.ledger == nil {
		h.writeAPIError(w, apierrors.New(apierrors.CodeConfiguration, "ledger rpc is not configured"))
		return
	}
	var body transferRequestBody
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(&body); err != nil && err != io.EOF {
		h.writeAPIError(w, apierrors.New(apierrors.CodeInvalidArgument, "invalid JSON body"))
		return
	}
	if body.Lamports == 0 {
		h.writeAPIError(w, apierrors.New(apierrors.CodeInvalidArgument, "lamports must be positive"))
		return
	}
	to := body.To
	if to == "" {
		// 缺省转给自己，与示例应用一致。
		key, ok := h.backend.PublicKey()
		if !ok {
			h.writeAPIError(w, apierrors.New(apierrors.CodeNotConnected, "wallet not connected"))
			return
		}
		to = key.String()
	}
	dest, err := validator.DecodePublicKey(to)
	if err != nil {
		h.writeAPIError(w, apierrors.New(apierrors.CodeInvalidArgument, err.Error()))
		return
	}
	res, err := Transfer(r.Context(), h.backend, h.ledger, dest, body.Lamports, body.Confirm)
	if err != nil {
		h.logger.Warn("transfer failed", slog.Any("err", err))
		h.writeUnknownError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, transferResponseBody{
		Signature: res.Signature.String(),
		From:      res.From.String(),
		To:        res.To.String(),
		Lamports:  res.Lamports,
		Confirmed: res.Confirmed,
	})
}

func (h *HTTPHandler) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func (h *HTTPHandler) writeUnknownError(w http.ResponseWriter, err error) {
	if apiErr, ok := apierrors.FromError(err); ok {
		h.writeAPIError(w, apiErr)
		return
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		h.writeJSON(w, http.StatusGatewayTimeout, errorResponse{Code: "TIMEOUT", Message: err.Error()})
		return
	}
	h.writeAPIError(w, apierrors.New(apierrors.Code("INTERNAL_ERROR"), "internal error"))
}

func (h *HTTPHandler) writeAPIError(w http.ResponseWriter, apiErr *apierrors.Error) {
	if apiErr == nil {
		apiErr = apierrors.New(apierrors.Code("INTERNAL_ERROR"), "internal error")
	}
	h.writeJSON(w, apierrors.HTTPStatus(apiErr.Code), errorResponse{
		Code:    string(apiErr.Code),
		Message: apiErr.Error(),
	})
}
