package server

import (
	"net/http"
	"strings"

	"atsboost/internal/auth"
	"atsboost/internal/models"
	"atsboost/internal/plans"
)

type achievement struct {
	Title       string
	Description string
}

type successStory struct {
	Name        string
	Role        string
	Improvement string
	Company     string
	Story       string
}

var achievements = []achievement{
	{"500+ ATS Scores Improved", "Successfully helped candidates achieve 90%+ ATS match rates"},
	{"Industry Expertise", "10+ years of experience in resume optimization"},
	{"98% Success Rate", "Nearly all clients see significant ATS score improvements"},
	{"Rapid Results", "See improvements in your ATS score within 24 hours"},
}

var successStories = []successStory{
	{"Sarah Chen", "Software Engineer", "ATS Score: 45% → 95%", "Fortune 500 Tech Company",
		"After our optimization, Sarah's resume passed ATS screening and led to 5 interviews."},
	{"James Wilson", "Product Manager", "ATS Score: 55% → 92%", "Leading Startup",
		"James landed his dream job after we helped optimize his resume for ATS systems."},
	{"Priya Patel", "Data Scientist", "ATS Score: 60% → 98%", "Top AI Company",
		"Priya's optimized resume got her callbacks from 8 out of 10 applications."},
}

type pageData struct {
	User *models.User
}

func (h *Handler) AboutPage(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" && r.URL.Path != "/about" {
		http.NotFound(w, r)
		return
	}
	h.render(w, http.StatusOK, "about", struct {
		pageData
		Achievements []achievement
		Stories      []successStory
	}{
		pageData:     pageData{User: auth.UserFrom(r.Context())},
		Achievements: achievements,
		Stories:      successStories,
	})
}

type subscriptionsData struct {
	pageData
	Cards      []plans.Card
	SelectedID string
	CanProceed bool
}

// SubscriptionsPage renders the picker; ?plan=<id> is the current selection.
func (h *Handler) SubscriptionsPage(w http.ResponseWriter, r *http.Request) {
	var sel plans.Selection
	sel.Select(r.URL.Query().Get("plan"))
	h.renderPicker(w, r, http.StatusOK, sel)
}

func (h *Handler) renderPicker(w http.ResponseWriter, r *http.Request, status int, sel plans.Selection) {
	data := subscriptionsData{
		pageData:   pageData{User: auth.UserFrom(r.Context())},
		Cards:      sel.Cards(),
		CanProceed: sel.CanProceed(),
	}
	if p, ok := sel.Plan(); ok {
		data.SelectedID = p.ID
	}
	h.render(w, status, "subscriptions", data)
}

// ProceedToPayment carries the selected plan and user label to the success page.
func (h *Handler) ProceedToPayment(w http.ResponseWriter, r *http.Request) {
	var sel plans.Selection
	sel.Select(r.FormValue("plan"))

	plan, ok := sel.Plan()
	if !ok {
		h.renderPicker(w, r, http.StatusOK, sel)
		return
	}

	user := auth.UserFrom(r.Context())
	summary := models.OrderSummary{Plan: plan, User: user.Label()}
	if err := h.nav.Set(w, summary, userID(user)); err != nil {
		h.logger.Errorw("Failed to store navigation state", "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	redirect(w, "/success", http.StatusSeeOther)
}

// SuccessPage requires navigation state; without it the user goes back to the picker.
func (h *Handler) SuccessPage(w http.ResponseWriter, r *http.Request) {
	summary, err := h.nav.Get(r, userID(auth.UserFrom(r.Context())))
	if err != nil {
		redirect(w, "/subscriptions", http.StatusFound)
		return
	}
	h.render(w, http.StatusOK, "success", struct {
		pageData
		Summary models.OrderSummary
	}{
		pageData: pageData{User: auth.UserFrom(r.Context())},
		Summary:  summary,
	})
}

type loginData struct {
	pageData
	Error string
}

func (h *Handler) LoginPage(w http.ResponseWriter, r *http.Request) {
	if auth.UserFrom(r.Context()) != nil {
		redirect(w, "/chat", http.StatusFound)
		return
	}
	h.render(w, http.StatusOK, "login", loginData{})
}

// Login verifies a hosted-auth access token and keeps it in a cookie.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	token := strings.TrimSpace(r.FormValue("token"))
	user, err := h.verifier.Verify(r.Context(), token)
	if err != nil {
		h.logger.Infow("Rejected sign in", "error", err)
		h.render(w, http.StatusUnauthorized, "login", loginData{Error: "That sign-in token is not valid."})
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     auth.TokenCookie,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.opts.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	h.logger.Infow("User signed in", "user_id", user.ID)
	redirect(w, "/chat", http.StatusSeeOther)
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{Name: auth.TokenCookie, Value: "", Path: "/", MaxAge: -1})
	h.nav.Clear(w)
	redirect(w, "/about", http.StatusSeeOther)
}

// userID is the navigation state owner: the signed-in user's id, or "" for a visitor.
func userID(u *models.User) string {
	if u == nil {
		return ""
	}
	return u.ID
}
