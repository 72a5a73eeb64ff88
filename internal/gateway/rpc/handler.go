package rpc

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/mmcdole/roster/internal/domain"
)

// Handler exposes a domain.Gateway over the rpc wire format.
// A backend mounts it to serve roster clients.
type Handler struct {
	gw     domain.Gateway
	token  string
	logger *slog.Logger
}

// NewHandler returns an http.Handler serving gw. A non-empty token requires
// every request to carry it as a bearer token.
func NewHandler(gw domain.Gateway, token string, logger *slog.Logger) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handler{gw: gw, token: token, logger: logger}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(h.auth)

	r.Get(eventsPath, h.events)

	r.Route("/rpc", func(r chi.Router) {
		r.Post("/"+methodListAccounts, h.listAccounts)
		r.Post("/"+methodGetCurrentAccount, h.getCurrentAccount)
		r.Post("/"+methodAddAccount, h.addAccount)
		r.Post("/"+methodDeleteAccount, h.deleteAccount)
		r.Post("/"+methodDeleteAccounts, h.deleteAccounts)
		r.Post("/"+methodSwitchAccount, h.switchAccount)
		r.Post("/"+methodFetchAccountQuota, h.fetchAccountQuota)
		r.Post("/"+methodRefreshAllQuotas, h.refreshAllQuotas)
		r.Post("/"+methodStartOAuthLogin, h.noArgs(h.gw.StartOAuthLogin))
		r.Post("/"+methodCancelOAuthLogin, h.noArgs(h.gw.CancelOAuthLogin))
		r.Post("/"+methodCompleteOAuthLogin, h.noArgs(h.gw.CompleteOAuthLogin))
		r.Post("/"+methodImportV1Accounts, h.noArgs(h.gw.ImportV1Accounts))
		r.Post("/"+methodImportFromDB, h.noArgs(h.gw.ImportFromDB))
		r.Post("/"+methodImportFromCustomDB, h.importFromCustomDB)
		r.Post("/"+methodSyncAccountFromDB, h.syncAccountFromDB)
		r.Post("/"+methodToggleProxyStatus, h.toggleProxyStatus)
	})

	return r
}

func (h *Handler) auth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.token == "" {
			next.ServeHTTP(w, r)
			return
		}
		got := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		if subtle.ConstantTimeCompare([]byte(got), []byte(h.token)) != 1 {
			writeError(w, http.StatusUnauthorized, domain.KindGeneric, domain.ErrAuthFailed.Error())
			return
		}
		next.ServeHTTP(w, r)
	})
}

// === Encoding helpers ===

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeResult(w http.ResponseWriter, result interface{}) {
	raw, err := json.Marshal(result)
	if err != nil {
		writeError(w, http.StatusInternalServerError, domain.KindGeneric, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, envelope{Result: raw})
}

func writeError(w http.ResponseWriter, status int, kind domain.ErrorKind, message string) {
	writeJSON(w, status, envelope{Error: &wireError{Kind: string(kind), Message: message}})
}

// fail maps a gateway error onto a status code and error envelope
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	kind := domain.KindOf(err)
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrAccountNotFound):
		status = http.StatusNotFound
	case kind == domain.KindValidation:
		status = http.StatusUnprocessableEntity
	}
	h.logger.Warn("rpc call failed",
		"path", r.URL.Path,
		"request_id", middleware.GetReqID(r.Context()),
		"kind", kind,
		"error", err)
	writeError(w, status, kind, domain.ErrorMessage(err))
}

// decode reads the JSON argument object; an empty body decodes to the zero value
func decode(r *http.Request, dest interface{}) error {
	err := json.NewDecoder(r.Body).Decode(dest)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

func (h *Handler) badRequest(w http.ResponseWriter, err error) {
	writeError(w, http.StatusBadRequest, domain.KindValidation, "invalid arguments: "+err.Error())
}

// === Routes ===

func (h *Handler) noArgs(fn func(ctx context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := fn(r.Context()); err != nil {
			h.fail(w, r, err)
			return
		}
		writeResult(w, nil)
	}
}

func (h *Handler) listAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.gw.ListAccounts(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if accounts == nil {
		accounts = []domain.Account{}
	}
	writeResult(w, accounts)
}

func (h *Handler) getCurrentAccount(w http.ResponseWriter, r *http.Request) {
	account, err := h.gw.GetCurrentAccount(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeResult(w, account)
}

func (h *Handler) addAccount(w http.ResponseWriter, r *http.Request) {
	var args addAccountArgs
	if err := decode(r, &args); err != nil {
		h.badRequest(w, err)
		return
	}
	if err := h.gw.AddAccount(r.Context(), args.Email, args.RefreshToken); err != nil {
		h.fail(w, r, err)
		return
	}
	writeResult(w, nil)
}

func (h *Handler) deleteAccount(w http.ResponseWriter, r *http.Request) {
	var args accountIDArgs
	if err := decode(r, &args); err != nil {
		h.badRequest(w, err)
		return
	}
	if err := h.gw.DeleteAccount(r.Context(), args.AccountID); err != nil {
		h.fail(w, r, err)
		return
	}
	writeResult(w, nil)
}

func (h *Handler) deleteAccounts(w http.ResponseWriter, r *http.Request) {
	var args accountIDsArgs
	if err := decode(r, &args); err != nil {
		h.badRequest(w, err)
		return
	}
	if err := h.gw.DeleteAccounts(r.Context(), args.AccountIDs); err != nil {
		h.fail(w, r, err)
		return
	}
	writeResult(w, nil)
}

func (h *Handler) switchAccount(w http.ResponseWriter, r *http.Request) {
	var args accountIDArgs
	if err := decode(r, &args); err != nil {
		h.badRequest(w, err)
		return
	}
	if err := h.gw.SwitchAccount(r.Context(), args.AccountID); err != nil {
		h.fail(w, r, err)
		return
	}
	writeResult(w, nil)
}

func (h *Handler) fetchAccountQuota(w http.ResponseWriter, r *http.Request) {
	var args accountIDArgs
	if err := decode(r, &args); err != nil {
		h.badRequest(w, err)
		return
	}
	if err := h.gw.FetchAccountQuota(r.Context(), args.AccountID); err != nil {
		h.fail(w, r, err)
		return
	}
	writeResult(w, nil)
}

func (h *Handler) refreshAllQuotas(w http.ResponseWriter, r *http.Request) {
	stats, err := h.gw.RefreshAllQuotas(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeResult(w, stats)
}

func (h *Handler) importFromCustomDB(w http.ResponseWriter, r *http.Request) {
	var args customDBArgs
	if err := decode(r, &args); err != nil {
		h.badRequest(w, err)
		return
	}
	if err := h.gw.ImportFromCustomDB(r.Context(), args.Path); err != nil {
		h.fail(w, r, err)
		return
	}
	writeResult(w, nil)
}

func (h *Handler) syncAccountFromDB(w http.ResponseWriter, r *http.Request) {
	account, err := h.gw.SyncAccountFromDB(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeResult(w, account)
}

func (h *Handler) toggleProxyStatus(w http.ResponseWriter, r *http.Request) {
	var args toggleProxyArgs
	if err := decode(r, &args); err != nil {
		h.badRequest(w, err)
		return
	}
	if err := h.gw.ToggleProxyStatus(r.Context(), args.AccountID, args.Enable, args.Reason); err != nil {
		h.fail(w, r, err)
		return
	}
	writeResult(w, nil)
}

// events streams push events until the client disconnects. The subscription
// is opened before the status line is written.
func (h *Handler) events(w http.ResponseWriter, r *http.Request) {
	topic := r.URL.Query().Get("topic")
	if topic != domain.TopicOAuthURL {
		writeError(w, http.StatusNotFound, domain.KindValidation, "unknown topic: "+topic)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, domain.KindGeneric, "streaming unsupported")
		return
	}

	sub, err := h.gw.SubscribeOAuthURL(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	defer sub.Close()

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	enc := json.NewEncoder(w)
	for {
		select {
		case <-r.Context().Done():
			return
		case url, ok := <-sub.URLs():
			if !ok {
				return
			}
			if err := enc.Encode(event{Topic: topic, Payload: url}); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
