package http

import (
	"log/slog"
	"net/http"
	"strings"
)

type RouterConfig struct {
	Calendars  *CalendarHandler
	Events     *EventHandler
	Sync       *SyncHandler
	Extraction *ExtractionHandler
	ICS        *ICSHandler
	// Metrics serves GET /metrics without a user header.
	Metrics    http.Handler
	Logger     *slog.Logger
	Middleware []func(http.Handler) http.Handler
}

func NewRouter(cfg RouterConfig) http.Handler {
	api := http.NewServeMux()

	if cfg.Calendars != nil {
		api.HandleFunc("/calendars", func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet:
				cfg.Calendars.List(w, r)
			case http.MethodPost:
				cfg.Calendars.Create(w, r)
			default:
				methodNotAllowed(w, http.MethodGet, http.MethodPost)
			}
		})
		api.HandleFunc("/calendars/", withResourceID("/calendars/", func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet:
				cfg.Calendars.Get(w, r)
			case http.MethodPut:
				cfg.Calendars.Update(w, r)
			case http.MethodDelete:
				cfg.Calendars.Delete(w, r)
			default:
				methodNotAllowed(w, http.MethodGet, http.MethodPut, http.MethodDelete)
			}
		}))
	}

	if cfg.Events != nil {
		api.HandleFunc("/events", func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet:
				cfg.Events.List(w, r)
			case http.MethodPost:
				cfg.Events.Create(w, r)
			default:
				methodNotAllowed(w, http.MethodGet, http.MethodPost)
			}
		})
		api.HandleFunc("/events/", withResourceID("/events/", func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet:
				cfg.Events.Get(w, r)
			case http.MethodPut:
				cfg.Events.Update(w, r)
			case http.MethodDelete:
				cfg.Events.Delete(w, r)
			default:
				methodNotAllowed(w, http.MethodGet, http.MethodPut, http.MethodDelete)
			}
		}))
		api.HandleFunc("/instances", func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodGet {
				methodNotAllowed(w, http.MethodGet)
				return
			}
			cfg.Events.Instances(w, r)
		})
	}

	if cfg.Sync != nil {
		api.HandleFunc("/sync", func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				methodNotAllowed(w, http.MethodPost)
				return
			}
			cfg.Sync.Trigger(w, r)
		})
		api.HandleFunc("/sync/status", func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodGet {
				methodNotAllowed(w, http.MethodGet)
				return
			}
			cfg.Sync.Status(w, r)
		})
	}

	if cfg.Extraction != nil {
		api.HandleFunc("/extractions", func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				methodNotAllowed(w, http.MethodPost)
				return
			}
			cfg.Extraction.Extract(w, r)
		})
		api.HandleFunc("/extractions/", withResourceID("/extractions/", func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet:
				cfg.Extraction.Session(w, r)
			case http.MethodDelete:
				cfg.Extraction.Purge(w, r)
			default:
				methodNotAllowed(w, http.MethodGet, http.MethodDelete)
			}
		}))
		api.HandleFunc("/pending-events/", func(w http.ResponseWriter, r *http.Request) {
			rest := strings.TrimPrefix(r.URL.Path, "/pending-events/")
			id, action, found := strings.Cut(rest, "/")
			if !found || id == "" {
				http.NotFound(w, r)
				return
			}
			if r.Method != http.MethodPost {
				methodNotAllowed(w, http.MethodPost)
				return
			}
			r = r.WithContext(ContextWithResourceID(r.Context(), id))
			switch action {
			case "approve":
				cfg.Extraction.Approve(w, r)
			case "reject":
				cfg.Extraction.Reject(w, r)
			default:
				http.NotFound(w, r)
			}
		})
	}

	if cfg.ICS != nil {
		api.HandleFunc("/export.ics", func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodGet {
				methodNotAllowed(w, http.MethodGet)
				return
			}
			cfg.ICS.Export(w, r)
		})
		api.HandleFunc("/import.ics", func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				methodNotAllowed(w, http.MethodPost)
				return
			}
			cfg.ICS.Import(w, r)
		})
	}

	root := http.NewServeMux()
	root.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok\n"))
	})
	if cfg.Metrics != nil {
		root.Handle("/metrics", cfg.Metrics)
	}
	root.Handle("/", RequireUser(cfg.Logger)(api))

	var handler http.Handler = root
	if len(cfg.Middleware) > 0 {
		for i := len(cfg.Middleware) - 1; i >= 0; i-- {
			if cfg.Middleware[i] != nil {
				handler = cfg.Middleware[i](handler)
			}
		}
	}

	return handler
}

// withResourceID strips prefix from the path and stores the remainder as the
// resource id. Nested paths are not routed.
func withResourceID(prefix string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimPrefix(r.URL.Path, prefix)
		if id == "" || strings.Contains(id, "/") {
			http.NotFound(w, r)
			return
		}
		next(w, r.WithContext(ContextWithResourceID(r.Context(), id)))
	}
}

func methodNotAllowed(w http.ResponseWriter, allowed ...string) {
	if len(allowed) > 0 {
		w.Header().Set("Allow", strings.Join(allowed, ", "))
	}
	http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
}
