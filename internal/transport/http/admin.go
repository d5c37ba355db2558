package http

import (
	"crypto/subtle"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"raven-iq-service/internal/app"
	"raven-iq-service/internal/domain"
	"raven-iq-service/internal/scoring"
)

const sessionCookie = "admin_session"

// AdminHandler serves the operator dashboard: results review, CSV export
// and campaign management, all behind the session capability check.
type AdminHandler struct {
	results   *app.ResultService
	campaigns *app.CampaignService
	sessions  app.AdminSessions
	log       *zap.Logger

	login        string
	passwordHash string
	sessionTTL   time.Duration
}

func NewAdminHandler(results *app.ResultService, campaigns *app.CampaignService, sessions app.AdminSessions, log *zap.Logger, login, passwordHash string, sessionTTL time.Duration) *AdminHandler {
	return &AdminHandler{
		results:      results,
		campaigns:    campaigns,
		sessions:     sessions,
		log:          log,
		login:        login,
		passwordHash: passwordHash,
		sessionTTL:   sessionTTL,
	}
}

func (h *AdminHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /admin/login", h.loginPage)
	mux.HandleFunc("POST /admin/login", h.loginSubmit)
	mux.HandleFunc("GET /admin/logout", h.logout)

	mux.HandleFunc("GET /admin", h.requireAdmin(h.dashboard))
	mux.HandleFunc("GET /admin/{$}", h.requireAdmin(h.dashboard))
	mux.HandleFunc("GET /admin/download_csv", h.requireAdmin(h.downloadCSV))
	mux.HandleFunc("POST /admin/delete/{id}", h.requireAdmin(h.deleteResult))

	mux.HandleFunc("GET /admin/campaigns", h.requireAdmin(h.campaignsPage))
	mux.HandleFunc("POST /admin/campaigns", h.requireAdmin(h.createCampaign))
	mux.HandleFunc("DELETE /admin/campaigns/{slug}", h.requireAdmin(h.deleteCampaign))
	mux.HandleFunc("POST /admin/campaigns/{slug}/toggle", h.requireAdmin(h.toggleCampaign))
}

// IsAdmin reports whether the request carries a valid admin session; the
// websocket feed gates on the same check.
func (h *AdminHandler) IsAdmin(r *http.Request) bool {
	cookie, err := r.Cookie(sessionCookie)
	if err != nil {
		return false
	}
	return h.sessions.Valid(r.Context(), cookie.Value)
}

func (h *AdminHandler) requireAdmin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !h.IsAdmin(r) {
			http.Redirect(w, r, "/admin/login", http.StatusFound)
			return
		}
		next(w, r)
	}
}

func (h *AdminHandler) loginPage(w http.ResponseWriter, r *http.Request) {
	if h.IsAdmin(r) {
		http.Redirect(w, r, "/admin", http.StatusFound)
		return
	}
	h.render(w, http.StatusOK, "login.gohtml", struct{ Error bool }{r.URL.Query().Get("error") == "1"})
}

func (h *AdminHandler) loginSubmit(w http.ResponseWriter, r *http.Request) {
	login := r.FormValue("login")
	password := r.FormValue("password")

	loginOK := subtle.ConstantTimeCompare([]byte(login), []byte(h.login)) == 1
	passwordOK := bcrypt.CompareHashAndPassword([]byte(h.passwordHash), []byte(password)) == nil
	if !loginOK || !passwordOK {
		h.log.Warn("admin login rejected", zap.String("login", login))
		http.Redirect(w, r, "/admin/login?error=1", http.StatusFound)
		return
	}

	token, err := h.sessions.Create(r.Context())
	if err != nil {
		h.log.Error("session create failed", zap.Error(err))
		http.Redirect(w, r, "/admin/login?error=1", http.StatusFound)
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    token,
		Path:     "/",
		MaxAge:   int(h.sessionTTL / time.Second),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, "/admin", http.StatusFound)
}

func (h *AdminHandler) logout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(sessionCookie); err == nil {
		h.sessions.Revoke(r.Context(), cookie.Value)
	}
	http.SetCookie(w, &http.Cookie{Name: sessionCookie, Value: "", Path: "/", MaxAge: -1, HttpOnly: true})
	http.Redirect(w, r, "/admin/login", http.StatusFound)
}

type dashboardRow struct {
	ID         string
	Email      string
	UserName   string
	DateTime   string
	Score      int
	Duration   string
	Correct    string
	Campaign   string
	Percentile string
}

type dashboardGroup struct {
	Name string
	Rows []dashboardRow
}

type dashboardData struct {
	TotalTests      int
	AverageScore    string
	AverageDuration string
	Campaigns       []domain.Campaign
	Groups          []dashboardGroup
}

func (h *AdminHandler) dashboard(w http.ResponseWriter, r *http.Request) {
	results, err := h.results.List(r.Context())
	if err != nil {
		h.fail(w, "list results", err)
		return
	}
	campaigns, err := h.campaigns.List(r.Context())
	if err != nil {
		h.fail(w, "list campaigns", err)
		return
	}

	data := dashboardData{
		TotalTests: len(results),
		Campaigns:  campaigns,
	}

	scoreSum, scored := 0, 0
	durationSum, timed := 0, 0
	grouped := make(map[string][]dashboardRow)
	for _, result := range results {
		if result.Score > 0 {
			scoreSum += result.Score
			scored++
		}
		if result.TestDuration > 0 {
			durationSum += result.TestDuration
			timed++
		}
		name := app.NameBySlug(campaigns, result.CampaignSlug)
		grouped[name] = append(grouped[name], dashboardViewRow(result, name))
	}

	data.AverageScore = "0"
	if scored > 0 {
		data.AverageScore = fmt.Sprintf("%.1f", float64(scoreSum)/float64(scored))
	}
	data.AverageDuration = "0m"
	if timed > 0 {
		data.AverageDuration = fmt.Sprintf("%.1fm", float64(durationSum)/float64(timed)/60)
	}

	names := make([]string, 0, len(grouped))
	for name := range grouped {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		data.Groups = append(data.Groups, dashboardGroup{Name: name, Rows: grouped[name]})
	}

	h.render(w, http.StatusOK, "dashboard.gohtml", data)
}

func dashboardViewRow(result domain.Result, campaignName string) dashboardRow {
	row := dashboardRow{
		ID:         result.ID,
		Email:      orNA(result.Email),
		UserName:   orNA(result.UserName),
		Score:      result.Score,
		Campaign:   campaignName,
		DateTime:   "N/A",
		Duration:   "N/A",
		Correct:    "N/A",
		Percentile: "N/A",
	}
	if result.SubmitTime > 0 {
		row.DateTime = time.Unix(result.SubmitTime, 0).Format("2006-01-02 15:04:05")
	}
	if result.TestDuration > 0 {
		row.Duration = fmt.Sprintf("%dm %ds", result.TestDuration/60, result.TestDuration%60)
	}
	if result.CorrectAnswers > 0 {
		row.Correct = fmt.Sprintf("%d from %d", result.CorrectAnswers, scoring.NumQuestions)
	}
	if result.Score > 0 {
		row.Percentile = fmt.Sprintf("%.1f%%", scoring.Percentile(result.Score))
	}
	return row
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}

var csvHeader = []string{
	"ID", "Email", "Name", "Date & Time", "IQ Score",
	"Test Duration (seconds)", "Correct Answers", "Campaign Name",
	"Campaign Slug", "Percentile", "Result Tier",
}

func (h *AdminHandler) downloadCSV(w http.ResponseWriter, r *http.Request) {
	filter := r.URL.Query().Get("campaign_slug")

	results, err := h.results.List(r.Context())
	if err != nil {
		h.fail(w, "list results", err)
		return
	}
	campaigns, err := h.campaigns.List(r.Context())
	if err != nil {
		h.fail(w, "list campaigns", err)
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf(`attachment; filename="test_results_%s_%s.csv"`, csvFileTag(filter, campaigns), time.Now().Format("2006-01-02")))

	writer := csv.NewWriter(w)
	_ = writer.Write(csvHeader)
	for _, result := range results {
		name := app.NameBySlug(campaigns, result.CampaignSlug)
		if !csvRowIncluded(filter, result.CampaignSlug, name) {
			continue
		}
		row := dashboardViewRow(result, name)
		slug := result.CampaignSlug
		if slug == "" {
			slug = "untagged"
		}
		_ = writer.Write([]string{
			result.ID,
			row.Email,
			row.UserName,
			row.DateTime,
			fmt.Sprintf("%d", result.Score),
			fmt.Sprintf("%d", result.TestDuration),
			row.Correct,
			name,
			slug,
			row.Percentile,
			fmt.Sprintf("%d", result.Tier),
		})
	}
	writer.Flush()
}

func csvRowIncluded(filter, slug, campaignName string) bool {
	switch filter {
	case "", "all":
		return true
	case "untagged":
		return campaignName == "Direct/Untagged"
	default:
		return slug == filter
	}
}

func csvFileTag(filter string, campaigns []domain.Campaign) string {
	switch filter {
	case "", "all":
		return "all_results"
	case "untagged":
		return "Direct_Untagged"
	}
	for _, c := range campaigns {
		if c.Slug == filter {
			return slugifySpaces(c.Name)
		}
	}
	return "filtered_results"
}

func slugifySpaces(name string) string {
	out := make([]rune, 0, len(name))
	for _, r := range name {
		if r == ' ' {
			r = '_'
		}
		out = append(out, r)
	}
	return string(out)
}

func (h *AdminHandler) deleteResult(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := h.results.Delete(r.Context(), r.PathValue("id")); err != nil {
		h.log.Warn("result delete failed", zap.String("result_id", r.PathValue("id")), zap.Error(err))
		_ = json.NewEncoder(w).Encode(map[string]any{"success": false})
		return
	}
	_ = json.NewEncoder(w).Encode(map[string]any{"success": true})
}

type campaignView struct {
	Slug    string
	Name    string
	URL     string
	Enabled bool
}

func (h *AdminHandler) campaignsPage(w http.ResponseWriter, r *http.Request) {
	campaigns, err := h.campaigns.List(r.Context())
	if err != nil {
		h.fail(w, "list campaigns", err)
		return
	}

	scheme := "http"
	if r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https" {
		scheme = "https"
	}
	views := make([]campaignView, 0, len(campaigns))
	for _, c := range campaigns {
		views = append(views, campaignView{
			Slug:    c.Slug,
			Name:    c.Name,
			URL:     fmt.Sprintf("%s://%s/%s", scheme, r.Host, c.Slug),
			Enabled: c.Enabled,
		})
	}
	h.render(w, http.StatusOK, "campaigns.gohtml", struct{ Campaigns []campaignView }{views})
}

func (h *AdminHandler) createCampaign(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	var req struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		_ = json.NewEncoder(w).Encode(map[string]any{"success": false, "message": "invalid request"})
		return
	}
	campaign, err := h.campaigns.Create(r.Context(), req.Name)
	switch {
	case err == nil:
		_ = json.NewEncoder(w).Encode(map[string]any{"success": true, "slug": campaign.Slug})
	case errors.Is(err, domain.ErrCampaignNameTaken):
		_ = json.NewEncoder(w).Encode(map[string]any{"success": false, "message": "Campaign name must be unique."})
	case errors.Is(err, domain.ErrInvalidSubmission):
		_ = json.NewEncoder(w).Encode(map[string]any{"success": false, "message": "Campaign name is required."})
	default:
		h.log.Error("campaign create failed", zap.Error(err))
		_ = json.NewEncoder(w).Encode(map[string]any{"success": false, "message": "Internal error"})
	}
}

func (h *AdminHandler) deleteCampaign(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := h.campaigns.Delete(r.Context(), r.PathValue("slug")); err != nil {
		h.log.Error("campaign delete failed", zap.Error(err))
		_ = json.NewEncoder(w).Encode(map[string]any{"success": false, "message": "Internal error"})
		return
	}
	_ = json.NewEncoder(w).Encode(map[string]any{"success": true})
}

func (h *AdminHandler) toggleCampaign(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	var req struct {
		Enabled int `json:"enabled"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		_ = json.NewEncoder(w).Encode(map[string]any{"success": false, "message": "invalid request"})
		return
	}
	if err := h.campaigns.SetEnabled(r.Context(), r.PathValue("slug"), req.Enabled != 0); err != nil {
		h.log.Error("campaign toggle failed", zap.Error(err))
		_ = json.NewEncoder(w).Encode(map[string]any{"success": false, "message": "Internal error"})
		return
	}
	_ = json.NewEncoder(w).Encode(map[string]any{"success": true})
}

func (h *AdminHandler) fail(w http.ResponseWriter, what string, err error) {
	h.log.Error(what+" failed", zap.Error(err))
	http.Error(w, "temporarily unavailable", http.StatusInternalServerError)
}

func (h *AdminHandler) render(w http.ResponseWriter, status int, name string, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := pages.ExecuteTemplate(w, name, data); err != nil {
		h.log.Error("template render failed", zap.String("template", name), zap.Error(err))
	}
}
