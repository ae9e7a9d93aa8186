// Package dashboard serves a completed backtest's results over HTTP so runs
// can be inspected from a browser instead of scrolling console output.
package dashboard

import (
	"context"
	"encoding/json"
	"fmt"
	"html/template"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"

	"github.com/quantfold/leapsback/internal/reporting"
)

type Server struct {
	router *chi.Mux
	server *http.Server
	report *reporting.Report
	logger *logrus.Logger
	port   int
	tmpl   *template.Template
}

type Config struct {
	Port int
}

// SummaryView is the aggregate JSON payload for /api/summary.
type SummaryView struct {
	Symbol      string                  `json:"symbol"`
	GeneratedAt time.Time               `json:"generated_at"`
	Annual      reporting.StrategyStats `json:"annual"`
	Quarterly   reporting.StrategyStats `json:"quarterly"`
}

func NewServer(cfg Config, report *reporting.Report, logger *logrus.Logger) (*Server, error) {
	tmpl, err := template.New("dashboard").Parse(dashboardHTML)
	if err != nil {
		return nil, fmt.Errorf("parsing dashboard template: %w", err)
	}

	s := &Server{
		router: chi.NewRouter(),
		report: report,
		logger: logger,
		port:   cfg.Port,
		tmpl:   tmpl,
	}
	s.setupRoutes()
	return s, nil
}

func (s *Server) setupRoutes() {
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Timeout(30 * time.Second))

	s.router.Get("/", s.handleDashboard)
	s.router.Get("/api/results", s.handleResults)
	s.router.Get("/api/summary", s.handleSummary)
	s.router.Get("/health", s.handleHealth)
}

func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.logger.Infof("Starting results dashboard on port %d", s.port)
	return s.server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

// Handler exposes the router, for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) handleDashboard(w http.ResponseWriter, _ *http.Request) {
	data := struct {
		Report  *reporting.Report
		Summary SummaryView
	}{
		Report:  s.report,
		Summary: s.summary(),
	}
	if err := s.tmpl.Execute(w, data); err != nil {
		s.logger.WithError(err).Error("Failed to execute dashboard template")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
}

func (s *Server) handleResults(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.report); err != nil {
		s.logger.WithError(err).Error("Failed to encode results")
	}
}

func (s *Server) handleSummary(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.summary()); err != nil {
		s.logger.WithError(err).Error("Failed to encode summary")
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	health := map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().Unix(),
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(health); err != nil {
		s.logger.WithError(err).Error("Failed to encode health response")
	}
}

func (s *Server) summary() SummaryView {
	return SummaryView{
		Symbol:      s.report.Symbol,
		GeneratedAt: s.report.GeneratedAt,
		Annual:      reporting.Stats(s.report.Annual),
		Quarterly:   reporting.Stats(s.report.Quarterly),
	}
}

const dashboardHTML = `<!DOCTYPE html>
<html>
<head>
<title>LEAPS Backtest: {{.Report.Symbol}}</title>
<style>
body { font-family: monospace; margin: 2em; background: #111; color: #ddd; }
table { border-collapse: collapse; margin-bottom: 2em; }
th, td { border: 1px solid #444; padding: 4px 10px; text-align: right; }
th { background: #222; }
td:first-child, th:first-child { text-align: left; }
</style>
</head>
<body>
<h1>LEAPS Backtest: {{.Report.Symbol}}</h1>
<p>Generated {{.Report.GeneratedAt.Format "2006-01-02 15:04:05"}}</p>

<h2>Annual strategy</h2>
<table>
<tr><th>Year</th><th>Return</th><th>Trades</th><th>Wins</th><th>Start</th><th>End</th></tr>
{{range .Report.Annual}}
<tr><td>{{.Year}}</td><td>{{printf "%+.1f%%" .Summary.ReturnPct}}</td><td>{{.Summary.TotalTrades}}</td><td>{{.Summary.WinningTrades}}</td><td>{{printf "%.2f" .StartCash}}</td><td>{{printf "%.2f" .EndCash}}</td></tr>
{{end}}
</table>

<h2>Quarterly rolling strategy</h2>
<table>
<tr><th>Year</th><th>Return</th><th>Trades</th><th>Wins</th><th>Start</th><th>End</th></tr>
{{range .Report.Quarterly}}
<tr><td>{{.Year}}</td><td>{{printf "%+.1f%%" .Summary.ReturnPct}}</td><td>{{.Summary.TotalTrades}}</td><td>{{.Summary.WinningTrades}}</td><td>{{printf "%.2f" .StartCash}}</td><td>{{printf "%.2f" .EndCash}}</td></tr>
{{end}}
</table>

<p>Annual avg yearly return: {{printf "%+.1f%%" .Summary.Annual.AvgReturnPct}} |
Quarterly avg yearly return: {{printf "%+.1f%%" .Summary.Quarterly.AvgReturnPct}}</p>
<p><a href="/api/results">raw results JSON</a></p>
</body>
</html>`
