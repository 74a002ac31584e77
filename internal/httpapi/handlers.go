package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/skip2/go-qrcode"
	"go.uber.org/zap"

	"github.com/DoyleJ11/guesswho-backend/internal/engine"
	"github.com/DoyleJ11/guesswho-backend/internal/hub"
	"github.com/DoyleJ11/guesswho-backend/internal/roster"
)

const qrSize = 320

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	if errors.Is(err, engine.ErrNotFound) {
		status = http.StatusNotFound
	}
	writeJSON(w, status, struct {
		Error string `json:"error"`
	}{Error: string(engine.CodeOf(err))})
}

func Healthz(h *hub.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats, err := h.Stats(r.Context())
		if err != nil {
			http.Error(w, "unavailable", http.StatusServiceUnavailable)
			return
		}
		writeJSON(w, http.StatusOK, stats)
	}
}

func Roster(rs *roster.Roster) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, struct {
			Characters []roster.Character `json:"characters"`
		}{Characters: rs.All()})
	}
}

// Session reports the public state of a session. Secrets and marks are
// never part of it.
func Session(h *hub.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		lb, err := h.Lookup(r.Context(), chi.URLParam(r, "code"))
		if err != nil {
			writeError(w, err)
			return
		}
		v, err := lb.View(r.Context())
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, v)
	}
}

// SessionQR renders a PNG QR code of the join link for a live session.
func SessionQR(h *hub.Hub, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		lb, err := h.Lookup(r.Context(), chi.URLParam(r, "code"))
		if err != nil {
			writeError(w, err)
			return
		}

		png, err := qrcode.Encode(joinURL(r, lb.Code()), qrcode.Medium, qrSize)
		if err != nil {
			log.Error("qr generation failed", zap.String("code", lb.Code()), zap.Error(err))
			http.Error(w, "qr generation failed", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(png)
	}
}

// joinURL is the page a scanned code should open, honouring a proxy's
// X-Forwarded-Proto.
func joinURL(r *http.Request, code string) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = strings.ToLower(proto)
	}
	return scheme + "://" + r.Host + "/?code=" + code
}
