package access

import (
	"net/http"
	"net/url"

	"github.com/starteducation/starteducation/internal/httputil"
)

// JSONResponder answers API callers.
type JSONResponder struct{}

func (JSONResponder) Unauthenticated(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteJSON(w, http.StatusUnauthorized, deniedBody{Error: "authentication required"})
}

func (JSONResponder) NotFound(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteJSON(w, http.StatusNotFound, deniedBody{Error: "video not found"})
}

func (JSONResponder) Denied(w http.ResponseWriter, _ *http.Request, _ Decision) {
	httputil.WriteJSON(w, http.StatusForbidden, deniedBody{Error: "no access to this course"})
}

type deniedBody struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// RedirectResponder sends browsers to the page that can resolve the denial.
type RedirectResponder struct {
	LoginPath     string
	DashboardPath string
	CoursePath    func(courseID string) string
}

func NewRedirectResponder() RedirectResponder {
	return RedirectResponder{
		LoginPath:     "/login",
		DashboardPath: "/dashboard",
		CoursePath:    func(courseID string) string { return "/course/" + url.PathEscape(courseID) },
	}
}

func (rr RedirectResponder) Unauthenticated(w http.ResponseWriter, r *http.Request) {
	target := rr.LoginPath + "?next=" + url.QueryEscape(r.URL.RequestURI())
	http.Redirect(w, r, target, http.StatusSeeOther)
}

func (rr RedirectResponder) NotFound(w http.ResponseWriter, r *http.Request) {
	httputil.RedirectWithError(w, r, rr.DashboardPath, "Video not found")
}

func (rr RedirectResponder) Denied(w http.ResponseWriter, r *http.Request, d Decision) {
	if d.CourseID == "" {
		httputil.RedirectWithError(w, r, rr.DashboardPath, "You do not have access to this video")
		return
	}
	httputil.RedirectWithError(w, r, rr.CoursePath(d.CourseID), "Purchase or subscribe to watch this course")
}
