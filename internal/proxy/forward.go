package proxy

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strings"
)

// maxForwardBody caps request and response bodies relayed through the
// proxy route. Evidence content goes straight to the presigned URL.
const maxForwardBody = 4 << 20

func (s *Server) handleProxy(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "missing path parameter"})
		return
	}
	if s.cfg.ProviderBaseURL == "" {
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "proxy error", Details: "provider base URL not configured"})
		return
	}

	target := strings.TrimRight(s.cfg.ProviderBaseURL, "/") + "/" + strings.TrimLeft(path, "/")

	var body io.Reader
	if hasBody(r.Method) {
		b, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxForwardBody))
		if err != nil {
			writeJSON(w, http.StatusRequestEntityTooLarge, errorBody{Error: "proxy error", Details: err.Error()})
			return
		}
		if len(b) > 0 {
			body = bytes.NewReader(b)
		}
	}

	req, err := http.NewRequestWithContext(r.Context(), r.Method, target, body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "proxy error", Details: err.Error(), Endpoint: path})
		return
	}
	req.Header.Set("Content-Type", "application/json")
	if auth := r.Header.Get("Authorization"); auth != "" {
		req.Header.Set("Authorization", auth)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		upstreamResponsesTotal.WithLabelValues(ProxyRoute, "error").Inc()
		s.logger.Error(r.Context(), "provider unreachable", "endpoint", path, "error", err)
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "proxy error", Details: err.Error()})
		return
	}
	defer resp.Body.Close()

	upstreamResponsesTotal.WithLabelValues(ProxyRoute, statusClass(resp.StatusCode)).Inc()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxForwardBody))
	if err != nil {
		writeJSON(w, http.StatusBadGateway, errorBody{Error: "proxy error", Details: err.Error(), Endpoint: path})
		return
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		s.logger.Warn(r.Context(), "provider error", "endpoint", path, "status", resp.StatusCode)
		writeJSON(w, resp.StatusCode, errorBody{Error: "provider error", Details: string(data), Endpoint: path})
		return
	}

	// Non-JSON success bodies (204 and friends) become an empty 200.
	if len(bytes.TrimSpace(data)) == 0 || !json.Valid(data) {
		w.WriteHeader(http.StatusOK)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func hasBody(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch:
		return true
	}
	return false
}
