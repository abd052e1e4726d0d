package main

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/dmitrymomot/multitenant/pkg/logger"
	"github.com/dmitrymomot/multitenant/pkg/tenant"
	"github.com/dmitrymomot/multitenant/pkg/tenantauth"
	"github.com/dmitrymomot/multitenant/pkg/tenantoptions"
)

type whoamiResponse struct {
	ID         string `json:"id"`
	Identifier string `json:"identifier"`
	Name       string `json:"name"`
	Strategy   string `json:"strategy"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func whoami(w http.ResponseWriter, r *http.Request) {
	rc := tenant.Resolve(r.Context())
	info := rc.Tenant
	writeJSON(w, http.StatusOK, whoamiResponse{
		ID:         info.ID,
		Identifier: info.Identifier,
		Name:       info.Name,
		Strategy:   rc.Strategy,
	})
}

func brandingHandler(cache *tenantoptions.Cache[branding], log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		b, err := cache.GetOrCreate(ctx, tenant.MustFromContext(ctx), tenantoptions.DefaultName)
		if err != nil {
			log.ErrorContext(ctx, "branding unavailable", logger.Error(err))
			http.Error(w, "Internal server error", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, b)
	}
}

// callbackHandler completes the remote flow for the tenant recovered from the
// state and reports who signed in.
func callbackHandler(auth *tenantauth.Authenticator, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		token, err := auth.Exchange(ctx, r)
		if err != nil {
			log.WarnContext(ctx, "code exchange failed", logger.Error(err))
			if errors.Is(err, tenantauth.ErrMissingCode) {
				http.Error(w, "Missing authorization code", http.StatusBadRequest)
				return
			}
			http.Error(w, "Authentication failed", http.StatusBadGateway)
			return
		}
		info := tenant.MustFromContext(ctx)
		writeJSON(w, http.StatusOK, map[string]any{
			"tenant":     info.Identifier,
			"token_type": token.Type(),
			"expiry":     token.Expiry,
		})
	}
}

// adminAPI mutates the store. Read-only stores answer 405.
type adminAPI struct {
	store     tenant.Store
	brandings *tenantoptions.Cache[branding]
	token     string
	logger    *slog.Logger
}

func (a *adminAPI) routes(r chi.Router) {
	r.Use(a.authorize)
	r.Post("/", a.create)
	r.Get("/{id}", a.get)
	r.Put("/{id}", a.update)
	r.Delete("/{id}", a.remove)
}

func (a *adminAPI) authorize(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || subtle.ConstantTimeCompare([]byte(got), []byte(a.token)) != 1 {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (a *adminAPI) get(w http.ResponseWriter, r *http.Request) {
	info, err := a.store.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (a *adminAPI) create(w http.ResponseWriter, r *http.Request) {
	var info tenant.Info
	if err := json.NewDecoder(r.Body).Decode(&info); err != nil {
		http.Error(w, "Invalid JSON body", http.StatusBadRequest)
		return
	}
	if info.ID == "" {
		info.ID = uuid.NewString()
	}
	ok, err := a.store.TryAdd(r.Context(), &info)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	if !ok {
		http.Error(w, "Tenant already exists", http.StatusConflict)
		return
	}
	writeJSON(w, http.StatusCreated, info)
}

func (a *adminAPI) update(w http.ResponseWriter, r *http.Request) {
	var info tenant.Info
	if err := json.NewDecoder(r.Body).Decode(&info); err != nil {
		http.Error(w, "Invalid JSON body", http.StatusBadRequest)
		return
	}
	info.ID = chi.URLParam(r, "id")
	ok, err := a.store.TryUpdate(r.Context(), &info)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	if !ok {
		http.Error(w, "Tenant missing or identifier taken", http.StatusConflict)
		return
	}
	a.brandings.InvalidateTenant(info.ID)
	writeJSON(w, http.StatusOK, info)
}

func (a *adminAPI) remove(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	ok, err := a.store.TryRemove(r.Context(), id)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	if !ok {
		http.Error(w, "Tenant not found", http.StatusNotFound)
		return
	}
	a.brandings.InvalidateTenant(id)
	w.WriteHeader(http.StatusNoContent)
}

func (a *adminAPI) fail(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, tenant.ErrTenantNotFound):
		http.Error(w, "Tenant not found", http.StatusNotFound)
	case errors.Is(err, tenant.ErrInvalidTenant):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, tenant.ErrNotSupported):
		http.Error(w, "Store is read-only", http.StatusMethodNotAllowed)
	default:
		a.logger.ErrorContext(r.Context(), "admin request failed", logger.Error(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}
