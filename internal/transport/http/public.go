// Package http wires the result lifecycle, campaigns and the certificate
// renderer into the public and admin HTTP surfaces.
package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"raven-iq-service/internal/app"
	"raven-iq-service/internal/cert"
	"raven-iq-service/internal/domain"
)

// PublicHandler serves the visitor-facing routes: campaign entry links,
// test submission, result pages and the certificate image.
type PublicHandler struct {
	results   *app.ResultService
	campaigns *app.CampaignService
	renderer  *cert.Renderer
	log       *zap.Logger

	// domain overrides the scheme://host used in share links; empty means
	// derive it from the request.
	domain       string
	webroot      string
	adminContact string
}

func NewPublicHandler(results *app.ResultService, campaigns *app.CampaignService, renderer *cert.Renderer, log *zap.Logger, domain, webroot, adminContact string) *PublicHandler {
	return &PublicHandler{
		results:      results,
		campaigns:    campaigns,
		renderer:     renderer,
		log:          log,
		domain:       domain,
		webroot:      webroot,
		adminContact: adminContact,
	}
}

func (h *PublicHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /result/{id}", h.resultRedirect)
	mux.HandleFunc("GET /result/{tier}/{id}", h.resultPage)
	mux.HandleFunc("GET /cert/{id}", h.certificate)
	mux.HandleFunc("POST /submit_result", h.submit)
	mux.HandleFunc("POST /check_email", h.checkEmail)
	mux.HandleFunc("GET /{slug}", h.campaignEntry)
	mux.HandleFunc("GET /", h.root)
}

type submitRequest struct {
	Answers      []int  `json:"answers"`
	Age          int    `json:"age"`
	UserName     string `json:"userName"`
	Email        string `json:"email"`
	TestDuration int    `json:"testDuration"`
	CampaignSlug string `json:"campaignSlug"`
	PaymentID    string `json:"paymentId"`
}

func (h *PublicHandler) submit(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.submitFailure(w, http.StatusBadRequest)
		return
	}
	sheet := domain.AnswerSheet{
		Answers:      req.Answers,
		Age:          req.Age,
		UserName:     strings.TrimSpace(req.UserName),
		Email:        strings.ToLower(strings.TrimSpace(req.Email)),
		TestDuration: req.TestDuration,
		CampaignSlug: req.CampaignSlug,
	}

	var err error
	if req.PaymentID != "" {
		_, err = h.results.AcceptPayment(r.Context(), sheet, req.PaymentID)
	} else {
		_, err = h.results.CreateDirect(r.Context(), sheet)
	}
	switch {
	case err == nil:
		h.render(w, http.StatusOK, "thankyou.gohtml", nil)
	case errors.Is(err, domain.ErrInvalidSubmission):
		h.submitFailure(w, http.StatusBadRequest)
	default:
		// Internal detail stays in the log; the visitor gets a generic
		// retry-later message.
		h.log.Error("result creation failed", zap.Error(err))
		h.submitFailure(w, http.StatusInternalServerError)
	}
}

func (h *PublicHandler) submitFailure(w http.ResponseWriter, status int) {
	h.render(w, status, "submit_error.gohtml", struct{ AdminContact string }{h.adminContact})
}

func (h *PublicHandler) checkEmail(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	var req struct {
		Email string `json:"email"`
	}
	exists := false
	if err := json.NewDecoder(r.Body).Decode(&req); err == nil {
		email := strings.ToLower(strings.TrimSpace(req.Email))
		if email != "" {
			if found, err := h.results.EmailExists(r.Context(), email); err == nil {
				exists = found
			} else {
				h.log.Warn("email check failed", zap.Error(err))
			}
		}
	}
	_ = json.NewEncoder(w).Encode(map[string]bool{"exists": exists})
}

func (h *PublicHandler) resultRedirect(w http.ResponseWriter, r *http.Request) {
	result, err := h.results.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		h.resultError(w, err)
		return
	}
	http.Redirect(w, r, canonicalPath(result), http.StatusFound)
}

func (h *PublicHandler) resultPage(w http.ResponseWriter, r *http.Request) {
	tier, ok := parseTierSegment(r.PathValue("tier"))
	if !ok {
		http.NotFound(w, r)
		return
	}
	result, err := h.results.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		h.resultError(w, err)
		return
	}
	if result.Tier != tier {
		http.Redirect(w, r, canonicalPath(result), http.StatusFound)
		return
	}

	base := h.baseURL(r)
	data := resultPageData{
		UserName:     result.UserName,
		Score:        result.Score,
		CanonicalURL: base + canonicalPath(result),
	}
	switch {
	case h.results.Expired(result):
		data.Expired = true
		data.Title = "Result expired"
	case result.Tier == domain.TierCertificate:
		data.Title = fmt.Sprintf("%s's IQ Test Result", result.UserName)
		data.CertPath = "/cert/" + result.ID
		data.CertURL = base + data.CertPath
	default:
		data.Title = fmt.Sprintf("%s's IQ Test Result", result.UserName)
	}
	h.render(w, http.StatusOK, "result.gohtml", data)
}

type resultPageData struct {
	Title        string
	UserName     string
	Score        int
	CanonicalURL string
	CertPath     string
	CertURL      string
	Expired      bool
}

func (h *PublicHandler) certificate(w http.ResponseWriter, r *http.Request) {
	result, err := h.results.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		h.resultError(w, err)
		return
	}
	if result.Tier != domain.TierCertificate {
		http.Error(w, "Not allowed", http.StatusForbidden)
		return
	}
	data, err := h.renderer.Render(result)
	if err != nil {
		h.log.Error("certificate render failed", zap.String("result_id", result.ID), zap.Error(err))
		http.Error(w, "certificate unavailable", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "image/jpeg")
	_, _ = w.Write(data)
}

func (h *PublicHandler) campaignEntry(w http.ResponseWriter, r *http.Request) {
	slug := r.PathValue("slug")
	_, err := h.campaigns.ResolveEntry(r.Context(), slug)
	switch {
	case err == nil:
		http.Redirect(w, r, "/index.html?campaign_slug="+slug, http.StatusFound)
	case errors.Is(err, domain.ErrCampaignDisabled):
		http.Error(w, "This campaign is currently disabled.", http.StatusForbidden)
	case errors.Is(err, domain.ErrCampaignNotFound):
		if h.serveStatic(w, r, slug) {
			return
		}
		http.Error(w, "Test link or page not found.", http.StatusNotFound)
	default:
		h.log.Error("campaign entry failed", zap.String("slug", slug), zap.Error(err))
		http.Error(w, "temporarily unavailable", http.StatusInternalServerError)
	}
}

// root enforces campaign-only access for "/" and serves nested static
// assets for everything else that fell through the specific routes.
func (h *PublicHandler) root(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path == "/" {
		http.Error(w, "Test link not found. Please use a valid campaign link.", http.StatusNotFound)
		return
	}
	if h.serveStatic(w, r, strings.TrimPrefix(r.URL.Path, "/")) {
		return
	}
	http.NotFound(w, r)
}

func (h *PublicHandler) serveStatic(w http.ResponseWriter, r *http.Request, rel string) bool {
	if h.webroot == "" {
		return false
	}
	clean := filepath.Clean(rel)
	if clean == "." || strings.HasPrefix(clean, "..") {
		return false
	}
	path := filepath.Join(h.webroot, clean)
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return false
	}
	http.ServeFile(w, r, path)
	return true
}

func (h *PublicHandler) resultError(w http.ResponseWriter, err error) {
	if errors.Is(err, domain.ErrResultNotFound) {
		http.Error(w, "Result not found", http.StatusNotFound)
		return
	}
	h.log.Error("result lookup failed", zap.Error(err))
	http.Error(w, "temporarily unavailable", http.StatusInternalServerError)
}

func (h *PublicHandler) render(w http.ResponseWriter, status int, name string, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := pages.ExecuteTemplate(w, name, data); err != nil {
		h.log.Error("template render failed", zap.String("template", name), zap.Error(err))
	}
}

func (h *PublicHandler) baseURL(r *http.Request) string {
	if h.domain != "" {
		return strings.TrimSuffix(h.domain, "/")
	}
	scheme := "http"
	if r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https" {
		scheme = "https"
	}
	return scheme + "://" + r.Host
}

func canonicalPath(result domain.Result) string {
	return fmt.Sprintf("/result/tier-%d/%s", result.Tier, result.ID)
}

// parseTierSegment accepts the canonical "tier-N" path segment.
func parseTierSegment(segment string) (domain.ResultTier, bool) {
	raw, ok := strings.CutPrefix(segment, "tier-")
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	tier := domain.ResultTier(n)
	return tier, tier.Valid()
}
