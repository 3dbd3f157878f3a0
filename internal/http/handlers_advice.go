package http

import (
	"net/http"
	"sync/atomic"

	"wenxuji/internal/advice"
)

// handleAdvice always answers 200. Model failures come back as the fallback
// text with source "fallback".
func (s *Server) handleAdvice(w http.ResponseWriter, r *http.Request) {
	atomic.AddInt64(&s.appMetrics.adviceRequests, 1)
	res := s.advice.Get(r.Context(), s.ledger.Snapshot())
	if res.Source == advice.SourceFallback {
		atomic.AddInt64(&s.appMetrics.adviceFallbacks, 1)
	}
	NewJSONResponse().Payload(adviceView{Text: res.Text, Source: string(res.Source)}).Write(w)
}
