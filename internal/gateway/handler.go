package gateway

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"strings"
)

// Route forwards requests under Prefix to Proxy, replacing Prefix with
// Rewrite. An empty Rewrite keeps the path unchanged.
type Route struct {
	Prefix  string
	Rewrite string
	Proxy   *ServiceProxy
}

type Handler struct {
	routes []Route
	logger *slog.Logger
}

func NewHandler(routes []Route, logger *slog.Logger) *Handler {
	sorted := make([]Route, len(routes))
	copy(sorted, routes)
	sort.SliceStable(sorted, func(i, j int) bool {
		return len(sorted[i].Prefix) > len(sorted[j].Prefix)
	})
	return &Handler{
		routes: sorted,
		logger: logger,
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	route, path, ok := h.match(r.URL.Path)
	if !ok {
		h.writeError(w, http.StatusNotFound, "not found")
		return
	}
	h.proxyRequest(w, r, route.Proxy, path)
}

func (h *Handler) match(path string) (Route, string, bool) {
	for _, route := range h.routes {
		if !strings.HasPrefix(path, route.Prefix) {
			continue
		}
		rest := path[len(route.Prefix):]
		// "/admin/orders" must not match "/admin/ordersfoo"
		if rest != "" && !strings.HasSuffix(route.Prefix, "/") && !strings.HasPrefix(rest, "/") {
			continue
		}
		if route.Rewrite == "" {
			return route, path, true
		}
		return route, route.Rewrite + rest, true
	}
	return Route{}, "", false
}

func (h *Handler) proxyRequest(w http.ResponseWriter, r *http.Request, proxy *ServiceProxy, path string) {
	resp, err := proxy.ForwardRequest(r.Context(), r, path)
	if err != nil {
		h.logger.Error("failed to forward request", "error", err, "path", path)
		h.writeError(w, http.StatusBadGateway, "service unavailable")
		return
	}
	defer func() { _ = resp.Body.Close() }()

	if contentType := resp.Header.Get("Content-Type"); contentType != "" {
		w.Header().Set("Content-Type", contentType)
	}
	for _, cookie := range resp.Header.Values("Set-Cookie") {
		w.Header().Add("Set-Cookie", cookie)
	}

	w.WriteHeader(resp.StatusCode)

	h.logger.Info("request proxied", "method", r.Method, "path", path, "status", resp.StatusCode)

	if _, err := io.Copy(w, resp.Body); err != nil {
		h.logger.Error("failed to copy response body", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(map[string]string{"error": message}); err != nil {
		h.logger.Error("failed to encode error response", "error", err)
	}
}
