package handler

import (
	"errors"
	"net/http"

	"github.com/bytedance/sonic"

	"github.com/web3-frozen/tron-source-router/internal/source"
)

type errorBody struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	b, err := sonic.Marshal(v)
	if err != nil {
		http.Error(w, `{"error":{"code":"Internal","message":"failed to encode response"}}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(b)
}

// writeError renders err as {"error":{code,message}} with the status its
// code maps to.
func writeError(w http.ResponseWriter, err error) {
	body := errorBody{Code: source.CodeOf(err), Message: err.Error()}
	var all *source.ErrAllSourcesFailed
	if errors.As(err, &all) {
		attempts := make([]map[string]string, 0, len(all.Attempts))
		for _, a := range all.Attempts {
			attempts = append(attempts, map[string]string{
				"source": string(a.Source),
				"code":   source.CodeOf(a.Err),
				"error":  a.Err.Error(),
			})
		}
		body.Details = map[string]any{"operation": all.Operation, "attempts": attempts}
	}
	if body.Code == "" {
		body.Code = "Internal"
	}
	writeJSON(w, source.StatusCode(err), map[string]any{"error": body})
}

func writeErrorCode(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]any{"error": errorBody{Code: code, Message: message}})
}
