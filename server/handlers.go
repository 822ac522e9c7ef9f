package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/petal-labs/taskgate/gateway"
)

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":      "healthy",
		"backend_url": s.backendURL,
	})
}

func (s *Server) handleListTools(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]string{"tools": s.registry.Names()})
}

func (s *Server) handleDescribeTool(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	tool, ok := s.registry.Lookup(name)
	if !ok {
		writeError(w, http.StatusNotFound, toolNotFound(name))
		return
	}
	writeJSON(w, http.StatusOK, tool)
}

// handleCallTool runs one tool with the JSON body as its arguments. Status
// codes only reflect dispatch: handler failures are 200 with {error: ...}.
func (s *Server) handleCallTool(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if _, ok := s.registry.Lookup(name); !ok {
		writeError(w, http.StatusNotFound, toolNotFound(name))
		return
	}

	args, status, err := readArguments(r)
	if err != nil {
		writeError(w, status, err.Error())
		return
	}

	result, err := s.registry.Invoke(r.Context(), name, args)
	if err != nil {
		var argErr *gateway.ArgumentError
		switch {
		case errors.Is(err, gateway.ErrToolNotFound):
			writeError(w, http.StatusNotFound, toolNotFound(name))
		case errors.As(err, &argErr):
			writeError(w, http.StatusBadRequest, err.Error())
		default:
			s.logger.Error("tool call failed", "tool", name, "error", err)
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}
	writeJSON(w, http.StatusOK, result.Payload())
}

// readArguments decodes the request body. An empty, null or malformed body
// is treated as no arguments; any other non-object JSON is a caller error.
func readArguments(r *http.Request) (map[string]any, int, error) {
	raw, err := io.ReadAll(r.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, http.StatusRequestEntityTooLarge, fmt.Errorf("request body exceeds %d bytes", tooLarge.Limit)
		}
		return nil, http.StatusBadRequest, fmt.Errorf("read request body: %w", err)
	}

	var body any
	if err := json.Unmarshal(raw, &body); err != nil {
		return map[string]any{}, 0, nil
	}
	switch v := body.(type) {
	case nil:
		return map[string]any{}, 0, nil
	case map[string]any:
		return v, 0, nil
	default:
		return nil, http.StatusBadRequest, errors.New("request body must be a JSON object of named arguments")
	}
}

func toolNotFound(name string) string {
	return fmt.Sprintf("Tool '%s' not found", name)
}
