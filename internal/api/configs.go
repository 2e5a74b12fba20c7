package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Priya8975/crm-automation-dispatch/internal/domain"
	"github.com/Priya8975/crm-automation-dispatch/internal/permission"
	"github.com/Priya8975/crm-automation-dispatch/internal/store"
)

const (
	resolverConfigsGet = "configsGet"
	resolverConfigsSet = "configsSet"
)

// ConfigHandler exposes the configs resolvers over HTTP. Every resolver is
// admin only.
type ConfigHandler struct {
	resolvers map[string]permission.Resolver
	logger    *slog.Logger
}

func NewConfigHandler(configs store.ConfigStore, logger *slog.Logger) *ConfigHandler {
	resolvers := permission.ModuleRequireAdmin(map[string]permission.Resolver{
		resolverConfigsGet: func(ctx context.Context, args map[string]any) (any, error) {
			code, _ := args["code"].(string)
			return configs.GetConfig(ctx, code)
		},
		resolverConfigsSet: func(ctx context.Context, args map[string]any) (any, error) {
			code, _ := args["code"].(string)
			if err := configs.SetConfig(ctx, code, args["value"]); err != nil {
				return nil, err
			}
			return &domain.Config{Code: code, Value: args["value"]}, nil
		},
	})
	return &ConfigHandler{resolvers: resolvers, logger: logger}
}

type setConfigRequest struct {
	Value any `json:"value"`
}

func (h *ConfigHandler) Get(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")

	cfg, ok := h.resolve(w, r, resolverConfigsGet, map[string]any{"code": code})
	if !ok {
		return
	}
	if cfg == nil {
		respondError(w, http.StatusNotFound, "config not found")
		return
	}

	respondJSON(w, http.StatusOK, cfg)
}

func (h *ConfigHandler) Set(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")

	var req setConfigRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	cfg, ok := h.resolve(w, r, resolverConfigsSet, map[string]any{"code": code, "value": req.Value})
	if !ok {
		return
	}

	respondJSON(w, http.StatusOK, cfg)
}

// resolve runs the named resolver and writes the error response when it
// fails. A nil config is returned as a nil pointer.
func (h *ConfigHandler) resolve(w http.ResponseWriter, r *http.Request, name string, args map[string]any) (*domain.Config, bool) {
	out, err := h.resolvers[name](r.Context(), args)
	if err != nil {
		if status := permission.Status(err); status != 0 {
			respondError(w, status, err.Error())
			return nil, false
		}
		h.logger.Error("config resolver failed", "resolver", name, "code", args["code"], "error", err)
		respondError(w, http.StatusInternalServerError, "failed to resolve config")
		return nil, false
	}

	cfg, _ := out.(*domain.Config)
	return cfg, true
}
