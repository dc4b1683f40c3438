// Package server expone un inventario en memoria por el API REST que consume
// httpclient: sesión con JWT, clusters, opciones avanzadas, tareas y
// servicios, más los endpoints /api/sim para scan y ejecución simulados.
package server

import (
	"crypto/rand"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dropDatabas3/secproto/internal/inventory/memory"
	"github.com/dropDatabas3/secproto/internal/observability/logger"
	"github.com/dropDatabas3/secproto/internal/task"
)

// Config del simulador.
type Config struct {
	Username string
	Password string
	// Secret firma los tokens HS256; vacío genera uno aleatorio.
	Secret   []byte
	TokenTTL time.Duration
	Issuer   string

	Registerer prometheus.Registerer
	Gatherer   prometheus.Gatherer
}

type Server struct {
	inv *memory.Inventory
	cfg Config
	now func() time.Time
}

func New(inv *memory.Inventory, cfg Config) (*Server, error) {
	if inv == nil {
		return nil, errors.New("server: nil inventory")
	}
	if cfg.Username == "" || cfg.Password == "" {
		return nil, errors.New("server: username and password required")
	}
	if len(cfg.Secret) == 0 {
		cfg.Secret = make([]byte, 32)
		if _, err := rand.Read(cfg.Secret); err != nil {
			return nil, err
		}
	}
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = time.Hour
	}
	if cfg.Issuer == "" {
		cfg.Issuer = "inventory-sim"
	}
	if cfg.Gatherer == nil {
		cfg.Gatherer = prometheus.DefaultGatherer
	}
	if err := registerMetrics(cfg.Registerer); err != nil {
		return nil, err
	}
	return &Server{inv: inv, cfg: cfg, now: time.Now}, nil
}

func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(withRecover, withRequestID, withMetrics)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.cfg.Gatherer, promhttp.HandlerOpts{}))
	r.Post("/api/session", s.createSession)

	r.Group(func(r chi.Router) {
		r.Use(s.requireAuth)

		r.Get("/api/about", s.about)
		r.Get("/api/clusters", s.listClusters)
		r.Get("/api/clusters/{cluster}/hosts", s.listMemberHosts)
		r.Get("/api/clusters/{cluster}/options", s.getOptions)
		r.Put("/api/clusters/{cluster}/options", s.setOptions)
		r.Get("/api/hosts", s.listAllHosts)
		r.Post("/api/hosts/{host}/reconfigure", s.reconfigureHost)
		r.Get("/api/hosts/{host}/services/{name}", s.serviceState)
		r.Post("/api/hosts/{host}/services/{name}/start", s.startService)
		r.Post("/api/hosts/{host}/services/{name}/stop", s.stopService)
		r.Get("/api/tasks/{id}", s.pollTask)

		r.Route("/api/sim/hosts/{host}", func(r chi.Router) {
			r.Post("/exec", s.exec)
			r.Get("/ports/{port}/protocols", s.scan)
		})
	})
	return r
}

func (s *Server) createSession(w http.ResponseWriter, r *http.Request) {
	var req SessionRequest
	if !readJSON(w, r, &req) {
		return
	}
	if !s.checkPassword(req.Username, req.Password) {
		logger.From(r.Context()).Warn("login rejected", logger.String("username", req.Username))
		writeError(w, http.StatusUnauthorized, "invalid_credentials", "usuario o password inválidos")
		return
	}
	raw, exp, err := s.issueToken(req.Username)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, SessionResponse{Token: raw, ExpiresAt: exp})
}

func (s *Server) about(w http.ResponseWriter, r *http.Request) {
	a, err := s.inv.About(r.Context())
	if err != nil {
		writeInventoryError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (s *Server) listClusters(w http.ResponseWriter, r *http.Request) {
	cs, err := s.inv.ListClusters(r.Context())
	if err != nil {
		writeInventoryError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cs)
}

func (s *Server) listMemberHosts(w http.ResponseWriter, r *http.Request) {
	hs, err := s.inv.ListMemberHosts(r.Context(), chi.URLParam(r, "cluster"))
	if err != nil {
		writeInventoryError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, hs)
}

func (s *Server) listAllHosts(w http.ResponseWriter, r *http.Request) {
	hs, err := s.inv.AllHosts(r.Context())
	if err != nil {
		writeInventoryError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, hs)
}

func (s *Server) getOptions(w http.ResponseWriter, r *http.Request) {
	opts, err := s.inv.GetAdvancedOptions(r.Context(), chi.URLParam(r, "cluster"))
	if err != nil {
		writeInventoryError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, OptionsBody{Options: opts})
}

func (s *Server) setOptions(w http.ResponseWriter, r *http.Request) {
	var body OptionsBody
	if !readJSON(w, r, &body) {
		return
	}
	h, err := s.inv.SetAdvancedOptions(r.Context(), chi.URLParam(r, "cluster"), body.Options)
	if err != nil {
		writeInventoryError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, TaskResponse{ID: h.ID, State: string(task.Queued)})
}

func (s *Server) reconfigureHost(w http.ResponseWriter, r *http.Request) {
	h, err := s.inv.ReconfigureHost(r.Context(), chi.URLParam(r, "host"))
	if err != nil {
		writeInventoryError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, TaskResponse{ID: h.ID, State: string(task.Queued)})
}

func (s *Server) pollTask(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	st, err := s.inv.PollTask(r.Context(), task.Handle{ID: id})
	if err != nil {
		writeInventoryError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, TaskResponse{ID: id, State: string(st)})
}

func (s *Server) serviceState(w http.ResponseWriter, r *http.Request) {
	host, name := chi.URLParam(r, "host"), chi.URLParam(r, "name")
	st, err := s.inv.ServiceState(r.Context(), host, name)
	if err != nil {
		writeInventoryError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ServiceResponse{Host: host, Name: name, State: st})
}

func (s *Server) startService(w http.ResponseWriter, r *http.Request) {
	s.setService(w, r, true)
}

func (s *Server) stopService(w http.ResponseWriter, r *http.Request) {
	s.setService(w, r, false)
}

func (s *Server) setService(w http.ResponseWriter, r *http.Request, start bool) {
	host, name := chi.URLParam(r, "host"), chi.URLParam(r, "name")
	var err error
	if start {
		err = s.inv.StartService(r.Context(), host, name)
	} else {
		err = s.inv.StopService(r.Context(), host, name)
	}
	if err != nil {
		writeInventoryError(w, err)
		return
	}
	logger.From(r.Context()).Info("service toggled", logger.Host(host), logger.String("service", name), logger.Bool("running", start))
	s.serviceState(w, r)
}

func (s *Server) exec(w http.ResponseWriter, r *http.Request) {
	var req ExecRequest
	if !readJSON(w, r, &req) {
		return
	}
	res, err := s.inv.Exec(chi.URLParam(r, "host"), req.Command)
	if err != nil {
		writeInventoryError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ExecResponse{Stdout: res.Stdout, ExitStatus: res.ExitStatus})
}

func (s *Server) scan(w http.ResponseWriter, r *http.Request) {
	host := chi.URLParam(r, "host")
	port, err := strconv.Atoi(chi.URLParam(r, "port"))
	if err != nil || port < 1 || port > 65535 {
		writeError(w, http.StatusBadRequest, "invalid_port", "puerto inválido")
		return
	}
	names, err := s.inv.Scan(r.Context(), host, port)
	if err != nil {
		if errors.Is(err, memory.ErrNotFound) {
			writeInventoryError(w, err)
			return
		}
		writeError(w, http.StatusBadGateway, "scan_failed", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, ProtocolsResponse{Host: host, Port: port, Protocols: names})
}
