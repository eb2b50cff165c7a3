package httpapi

import (
	"net/http"
	"strings"

	"go.uber.org/zap"
)

// Router thin wrapper over the standard library mux.
type Router struct {
	mux    *http.ServeMux
	logger *zap.Logger
}

func NewRouter(logger *zap.Logger) *Router {
	return &Router{
		mux:    http.NewServeMux(),
		logger: logger,
	}
}

func (r *Router) Handle(pattern string, h http.HandlerFunc) {
	r.mux.HandleFunc(pattern, h)
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

// RegisterSignalRoutes wires the xray-signal collection resource.
func (r *Router) RegisterSignalRoutes(h *SignalHandler) {
	// collection
	r.Handle("/xray-signal", func(w http.ResponseWriter, req *http.Request) {
		switch req.Method {
		case http.MethodPost:
			h.Create(w, req)
		case http.MethodGet:
			h.FindAll(w, req)
		case http.MethodDelete:
			h.DeleteAll(w, req)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	})

	// export (exact pattern wins over the /xray-signal/ prefix below)
	r.Handle("/xray-signal/export", func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.Export(w, req)
	})

	// device activity
	r.Handle("/xray-signal/devices/activity", func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.DeviceActivity(w, req)
	})

	// single record by id
	r.Handle("/xray-signal/", func(w http.ResponseWriter, req *http.Request) {
		id := strings.TrimPrefix(req.URL.Path, "/xray-signal/")
		if id == "" || strings.Contains(id, "/") {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		switch req.Method {
		case http.MethodGet:
			h.FindOne(w, req, id)
		case http.MethodDelete:
			h.DeleteOne(w, req, id)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	})

	r.Handle("/healthz", h.Health)
}
