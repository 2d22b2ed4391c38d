package handler

import (
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/web3-frozen/tron-source-router/internal/tools"
)

const maxBodyBytes = 1 << 20

func ListTools(reg *tools.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, reg.List())
	}
}

// InvokeTool runs the tool named in the path with the JSON request body as
// its arguments.
func InvokeTool(reg *tools.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := chi.URLParam(r, "name")
		if _, ok := reg.Lookup(name); !ok {
			writeErrorCode(w, http.StatusNotFound, "UnknownTool", "unknown tool "+name)
			return
		}

		body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
		if err != nil {
			writeErrorCode(w, http.StatusBadRequest, "InvalidParameter", "failed to read request body")
			return
		}
		if len(body) > maxBodyBytes {
			writeErrorCode(w, http.StatusRequestEntityTooLarge, "InvalidParameter", "request body too large")
			return
		}

		res, err := reg.Invoke(r.Context(), name, body)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}
