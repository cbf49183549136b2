package api

import (
	"context"
	"html/template"
	"math"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"gitlab.com/phishguard/phishguard"
	"gitlab.com/phishguard/store"
)

const shutdownGrace = 5 * time.Second

// Server is the boundary the UI surfaces talk to: inbound commands, state
// reads for the popup and panel, and the warning page blocked tabs land on
type Server struct {
	addr       string
	dispatcher phishguard.CommandDispatcher
	state      phishguard.StateStorer
	history    *store.History
	router     *gin.Engine
}

// NewServer wiring the dispatcher and stores into routes
func NewServer(addr string, dispatcher phishguard.CommandDispatcher, state phishguard.StateStorer, history *store.History) *Server {
	gin.SetMode(gin.ReleaseMode)
	s := &Server{
		addr:       addr,
		dispatcher: dispatcher,
		state:      state,
		history:    history,
		router:     gin.New(),
	}
	s.router.Use(gin.Recovery())

	s.router.POST("/command", s.handleCommand)
	s.router.GET("/state", s.handleState)
	s.router.GET("/trusted", s.handleTrusted)
	s.router.PUT("/settings", s.handleSettings)
	s.router.GET("/history", s.handleHistory)
	s.router.GET("/warning", s.handleWarning)
	return s
}

// Router for tests
func (s *Server) Router() http.Handler {
	return s.router
}

// Run serves until ctx is done
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{Addr: s.addr, Handler: s.router}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	log.Info().Str("addr", s.addr).Msg("command api listening")
	if err := srv.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}

type commandRequest struct {
	Type   string `json:"type"`
	URL    string `json:"url,omitempty"`
	Domain string `json:"domain,omitempty"`
}

func (s *Server) handleCommand(c *gin.Context) {
	req := &commandRequest{}
	if err := c.ShouldBindJSON(req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var cmd phishguard.Command
	switch req.Type {
	case "trust_domain":
		if req.URL == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "trust_domain requires url"})
			return
		}
		cmd = phishguard.TrustDomainCmd{URL: req.URL}
	case "untrust_domain":
		if req.Domain == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "untrust_domain requires domain"})
			return
		}
		cmd = phishguard.UntrustDomainCmd{Domain: req.Domain}
	case "force_warning":
		cmd = phishguard.ForceWarningCmd{}
	case "grant_bypass":
		if req.URL == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "grant_bypass requires url"})
			return
		}
		cmd = phishguard.GrantBypassCmd{URL: req.URL}
	case "clear_trusted":
		cmd = phishguard.ClearTrustedCmd{}
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown command type " + req.Type})
		return
	}

	if err := s.dispatcher.Dispatch(c.Request.Context(), cmd); err != nil {
		log.Warn().Err(err).Str("type", req.Type).Msg("command failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleState(c *gin.Context) {
	settings, err := s.state.Settings()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	rec, err := s.state.Decision()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	count, err := s.state.SitesProtected()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	resp := gin.H{
		"detection_enabled":     settings.DetectionEnabled,
		"developer_mode":        settings.DeveloperMode,
		"sites_protected_count": count,
	}
	if rec != nil {
		resp["last_checked_url"] = rec.URL
		resp["last_decision"] = rec.Decision.String()
		resp["confidence"] = rec.Confidence
		resp["fallback_url"] = rec.FallbackURL
		resp["checked_at"] = rec.CheckedAt
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleTrusted(c *gin.Context) {
	domains, err := s.state.TrustedDomains()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	list := make([]string, 0, len(domains))
	for d := range domains {
		list = append(list, d)
	}
	sort.Strings(list)
	c.JSON(http.StatusOK, gin.H{"domains": list})
}

type settingsRequest struct {
	DetectionEnabled *bool `json:"detection_enabled"`
	DeveloperMode    *bool `json:"developer_mode"`
}

func (s *Server) handleSettings(c *gin.Context) {
	req := &settingsRequest{}
	if err := c.ShouldBindJSON(req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if req.DetectionEnabled != nil {
		if err := s.state.SetDetectionEnabled(*req.DetectionEnabled); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
	}
	if req.DeveloperMode != nil {
		if err := s.state.SetDeveloperMode(*req.DeveloperMode); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleHistory(c *gin.Context) {
	limit := 50
	if raw := c.Query("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil {
			limit = parsed
		}
	}
	records, err := s.history.Recent(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"decisions": records})
}

var warningTmpl = template.Must(template.New("warning").Parse(`<!doctype html>
<html>
<head><title>Warning: suspected phishing</title></head>
<body>
<h1>This site may be a phishing site</h1>
<p id="url">{{.URL}}</p>
<p id="confidence">Risk Confidence: {{.RiskPercent}}%</p>
<p><a id="goBack" href="{{.FallbackURL}}">Go back</a></p>
</body>
</html>`))

type warningView struct {
	URL         string
	RiskPercent int
	FallbackURL string
}

func (s *Server) handleWarning(c *gin.Context) {
	view := &warningView{URL: "Unknown URL"}
	rec, err := s.state.Decision()
	if err == nil && rec != nil {
		view.URL = rec.URL
		view.RiskPercent = int(math.Round(rec.Confidence * 100))
		view.FallbackURL = rec.FallbackURL
	}

	c.Status(http.StatusOK)
	c.Header("Content-Type", "text/html; charset=utf-8")
	if err := warningTmpl.Execute(c.Writer, view); err != nil {
		log.Warn().Err(err).Msg("failed to render warning page")
	}
}
