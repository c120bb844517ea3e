package http

import (
	"net/http"
	"strings"
)

// RouterConfig wires handlers and middleware into the HTTP mux.
type RouterConfig struct {
	Auth         *AuthHandler
	Devices      *DeviceHandler
	Reservations *ReservationHandler
	Users        *UserHandler
	Reports      *ReportHandler
	Metrics      http.Handler
	Health       http.HandlerFunc
	Middleware   []Middleware
}

// NewRouter builds the service mux. Middleware wraps the whole router in the
// order given, so the first entry sees the request first.
func NewRouter(cfg RouterConfig) http.Handler {
	mux := http.NewServeMux()

	if cfg.Auth != nil {
		mux.HandleFunc("/login", func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				methodNotAllowed(w, http.MethodPost)
				return
			}
			cfg.Auth.Login(w, r)
		})
		mux.HandleFunc("/logout", func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				methodNotAllowed(w, http.MethodPost)
				return
			}
			cfg.Auth.Logout(w, r)
		})
	}

	if cfg.Devices != nil {
		mux.HandleFunc("/devices", func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet:
				cfg.Devices.List(w, r)
			case http.MethodPost:
				cfg.Devices.Create(w, r)
			default:
				methodNotAllowed(w, http.MethodGet, http.MethodPost)
			}
		})
		mux.HandleFunc("/devices/", func(w http.ResponseWriter, r *http.Request) {
			deviceID, rest := splitResourcePath(r.URL.Path, "/devices/")
			if deviceID == "" {
				http.NotFound(w, r)
				return
			}
			r = r.WithContext(ContextWithDeviceID(r.Context(), deviceID))

			switch rest {
			case "":
				switch r.Method {
				case http.MethodGet:
					cfg.Devices.Get(w, r)
				case http.MethodPut:
					cfg.Devices.Update(w, r)
				case http.MethodDelete:
					cfg.Devices.Delete(w, r)
				default:
					methodNotAllowed(w, http.MethodGet, http.MethodPut, http.MethodDelete)
				}
			case "maintenance":
				if r.Method != http.MethodPut {
					methodNotAllowed(w, http.MethodPut)
					return
				}
				cfg.Devices.SetMaintenance(w, r)
			case "reservations":
				if cfg.Reservations == nil {
					http.NotFound(w, r)
					return
				}
				switch r.Method {
				case http.MethodPost:
					cfg.Reservations.Reserve(w, r)
				case http.MethodDelete:
					cfg.Reservations.Cancel(w, r)
				default:
					methodNotAllowed(w, http.MethodPost, http.MethodDelete)
				}
			default:
				http.NotFound(w, r)
			}
		})
	}

	if cfg.Reservations != nil {
		mux.HandleFunc("/reservations", func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodGet {
				methodNotAllowed(w, http.MethodGet)
				return
			}
			cfg.Reservations.List(w, r)
		})
	}

	if cfg.Users != nil {
		mux.HandleFunc("/users", func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet:
				cfg.Users.List(w, r)
			case http.MethodPost:
				cfg.Users.Create(w, r)
			default:
				methodNotAllowed(w, http.MethodGet, http.MethodPost)
			}
		})
		mux.HandleFunc("/users/", func(w http.ResponseWriter, r *http.Request) {
			userID, rest := splitResourcePath(r.URL.Path, "/users/")
			if userID == "" || rest != "" {
				http.NotFound(w, r)
				return
			}
			r = r.WithContext(ContextWithUserID(r.Context(), userID))

			switch r.Method {
			case http.MethodPut:
				cfg.Users.Update(w, r)
			case http.MethodDelete:
				cfg.Users.Delete(w, r)
			default:
				methodNotAllowed(w, http.MethodPut, http.MethodDelete)
			}
		})
	}

	if cfg.Reports != nil {
		mux.HandleFunc("/stats", func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodGet {
				methodNotAllowed(w, http.MethodGet)
				return
			}
			cfg.Reports.Stats(w, r)
		})
		mux.HandleFunc("/reports/usage", func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodGet {
				methodNotAllowed(w, http.MethodGet)
				return
			}
			cfg.Reports.Usage(w, r)
		})
	}

	if cfg.Metrics != nil {
		mux.Handle("/metrics", cfg.Metrics)
	}
	if cfg.Health != nil {
		mux.HandleFunc("/healthz", cfg.Health)
	}

	var handler http.Handler = mux
	for i := len(cfg.Middleware) - 1; i >= 0; i-- {
		handler = cfg.Middleware[i](handler)
	}
	return handler
}

// splitResourcePath separates the resource identifier from any trailing
// sub-path, so "/devices/d1/maintenance" yields ("d1", "maintenance").
func splitResourcePath(path, prefix string) (id, rest string) {
	trimmed := strings.TrimPrefix(path, prefix)
	trimmed = strings.Trim(trimmed, "/")
	if trimmed == "" {
		return "", ""
	}
	parts := strings.SplitN(trimmed, "/", 2)
	id = parts[0]
	if len(parts) == 2 {
		rest = parts[1]
	}
	return id, rest
}

func methodNotAllowed(w http.ResponseWriter, allowed ...string) {
	w.Header().Set("Allow", strings.Join(allowed, ", "))
	http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
}
