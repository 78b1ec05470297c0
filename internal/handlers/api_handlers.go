package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/sand/chain-feed/backend/config"
	"github.com/sand/chain-feed/backend/internal/entities"
	"github.com/sand/chain-feed/backend/internal/gateway"
	"github.com/sand/chain-feed/backend/internal/usecases"
)

const jsonRPCVersion = "2.0"

var (
	_ FeedController = (*usecases.FeedService)(nil)
	_ Relayer        = (*gateway.Gateway)(nil)
)

// FeedController is the part of the feed service the UI drives.
type FeedController interface {
	State() entities.FeedState
	Pause()
	Resume()
	SetVisible(visible bool)
	Subscribe() (<-chan struct{}, func())
}

// Relayer forwards raw JSON-RPC calls upstream.
type Relayer interface {
	Relay(ctx context.Context, method string, params ...any) (json.RawMessage, error)
}

type HTTPHandler struct {
	logger  *slog.Logger
	feed    FeedController
	relayer Relayer
	chain   config.Blockchain
}

func NewHTTPHandler(logger *slog.Logger, feed FeedController, relayer Relayer, chain config.Blockchain) *HTTPHandler {
	return &HTTPHandler{
		logger:  logger,
		feed:    feed,
		relayer: relayer,
		chain:   chain,
	}
}

func (h *HTTPHandler) RegisterRoutes(router *mux.Router) {
	// Feed
	router.HandleFunc("/feed", h.GetFeed).Methods("GET")
	router.HandleFunc("/feed/pause", h.PauseFeed).Methods("POST")
	router.HandleFunc("/feed/resume", h.ResumeFeed).Methods("POST")
	router.HandleFunc("/feed/visibility", h.SetVisibility).Methods("POST")

	// Chain
	router.HandleFunc("/chain", h.GetChain).Methods("GET")
	router.HandleFunc("/rpc", h.RelayRPC).Methods("POST")
}

func (h *HTTPHandler) GetFeed(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.feed.State())
}

func (h *HTTPHandler) PauseFeed(w http.ResponseWriter, _ *http.Request) {
	h.feed.Pause()
	h.logger.Info("[Feed] Paused")
	writeJSON(w, http.StatusOK, h.feed.State())
}

func (h *HTTPHandler) ResumeFeed(w http.ResponseWriter, _ *http.Request) {
	h.feed.Resume()
	h.logger.Info("[Feed] Resumed")
	writeJSON(w, http.StatusOK, h.feed.State())
}

func (h *HTTPHandler) SetVisibility(w http.ResponseWriter, r *http.Request) {
	visibleParam := r.URL.Query().Get("visible")
	if visibleParam == "" {
		http.Error(w, "Missing required parameter: visible", http.StatusBadRequest)
		return
	}

	visible, err := strconv.ParseBool(visibleParam)
	if err != nil {
		http.Error(w, "Invalid visible parameter", http.StatusBadRequest)
		return
	}

	h.feed.SetVisible(visible)
	h.logger.Debug("[Feed] Visibility changed", "visible", visible)
	writeJSON(w, http.StatusOK, h.feed.State())
}

// GetChain returns the chain the feed is attached to.
func (h *HTTPHandler) GetChain(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"chainId": h.chain.ChainID,
		"name":    h.chain.Name,
		"symbol":  h.chain.Symbol,
	})
}

// RelayRPC forwards {method, params} upstream and answers with a JSON-RPC envelope.
// Upstream errors are passed through with their original code and message.
func (h *HTTPHandler) RelayRPC(w http.ResponseWriter, r *http.Request) {
	var req entities.RPCRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Method == "" {
		http.Error(w, "Missing required field: method", http.StatusBadRequest)
		return
	}

	params := make([]any, len(req.Params))
	for i, p := range req.Params {
		params[i] = p
	}

	resp := entities.RPCResponse{JSONRPC: jsonRPCVersion, ID: 1}

	result, err := h.relayer.Relay(r.Context(), req.Method, params...)
	if err != nil {
		var rpcErr *entities.RPCError
		if !errors.As(err, &rpcErr) {
			h.logger.Error("[RPC Relay] Upstream call failed", "method", req.Method, "error", err)
			http.Error(w, err.Error(), http.StatusBadGateway)
			return
		}
		resp.Error = rpcErr
	} else {
		resp.Result = result
	}

	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
