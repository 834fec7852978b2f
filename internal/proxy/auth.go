package proxy

import (
	"context"
	"errors"
	"math"
	"net/http"

	"golang.org/x/oauth2"
)

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type,omitempty"`
	ExpiresIn   int64  `json:"expires_in,omitempty"`
}

func (s *Server) handleAuth(w http.ResponseWriter, r *http.Request) {
	if s.credentials == nil {
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "missing provider credentials"})
		return
	}

	ctx := context.WithValue(r.Context(), oauth2.HTTPClient, s.httpClient)

	tok, err := s.credentials.Token(ctx)
	if err != nil {
		var re *oauth2.RetrieveError
		if errors.As(err, &re) && re.Response != nil {
			upstreamResponsesTotal.WithLabelValues(AuthRoute, statusClass(re.Response.StatusCode)).Inc()
			s.logger.Warn(r.Context(), "client credentials rejected", "status", re.Response.StatusCode)
			writeJSON(w, re.Response.StatusCode, errorBody{Error: "auth failed", Details: string(re.Body)})
			return
		}
		upstreamResponsesTotal.WithLabelValues(AuthRoute, "error").Inc()
		s.logger.Error(r.Context(), "client credentials exchange failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "auth failed", Details: err.Error()})
		return
	}
	upstreamResponsesTotal.WithLabelValues(AuthRoute, "2xx").Inc()

	resp := tokenResponse{AccessToken: tok.AccessToken, TokenType: tok.TokenType}
	if !tok.Expiry.IsZero() {
		resp.ExpiresIn = int64(math.Round(tok.Expiry.Sub(s.now()).Seconds()))
		if resp.ExpiresIn < 0 {
			resp.ExpiresIn = 0
		}
	}

	writeJSON(w, http.StatusOK, resp)
}
