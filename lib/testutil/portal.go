package testutil

import (
	"fmt"
	"html"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/mazen160/go-random"
)

const CsrfField = "csrfmiddlewaretoken"

type PortalOptions struct {
	Username string
	Password string
	Identity string
	Dump     []byte
	// when set, the dump request answers with this notice instead of the dump
	Notice string
	// status sent back for bad credentials, 0 re-renders the form with 200
	LoginFailureStatus int
}

type portalSession struct {
	loggedIn bool
	token    string
}

// Portal is a stand-in for the GCD website: a Django style login guarded
// by per-render csrf tokens and a download page that serves the dump.
// every deviation from what a browser would send is recorded as a
// violation and answered with 403.
type Portal struct {
	Server *httptest.Server

	mu         sync.Mutex
	opts       PortalOptions
	sessions   map[string]*portalSession
	triggers   int
	logins     int
	violations []string
	userAgents map[string]bool
}

func NewPortal(t testing.TB, opts PortalOptions) *Portal {
	p := &Portal{
		opts:       opts,
		sessions:   map[string]*portalSession{},
		userAgents: map[string]bool{},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", p.handleLanding)
	mux.HandleFunc("/accounts/login/", p.handleLogin)
	mux.HandleFunc("/download/", p.handleDownload)
	p.Server = httptest.NewServer(mux)
	t.Cleanup(p.Server.Close)
	return p
}

func (p *Portal) URL() string {
	return p.Server.URL
}

func (p *Portal) SetIdentity(identity string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.opts.Identity = identity
}

func (p *Portal) SetNotice(notice string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.opts.Notice = notice
}

// Triggers is the number of dump requests received.
func (p *Portal) Triggers() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.triggers
}

func (p *Portal) Logins() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.logins
}

func (p *Portal) Violations() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.violations...)
}

func (p *Portal) UserAgents() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []string
	for ua := range p.userAgents {
		out = append(out, ua)
	}
	return out
}

func (p *Portal) reject(w http.ResponseWriter, format string, args ...any) {
	p.violations = append(p.violations, fmt.Sprintf(format, args...))
	http.Error(w, "Forbidden (CSRF verification failed)", http.StatusForbidden)
}

// session returns the caller's session, starting one when there is none.
func (p *Portal) session(w http.ResponseWriter, r *http.Request) *portalSession {
	cookie, err := r.Cookie("sessionid")
	if err == nil {
		if s, ok := p.sessions[cookie.Value]; ok {
			return s
		}
	}
	id, err := random.String(24)
	if err != nil {
		panic(err)
	}
	s := &portalSession{}
	p.sessions[id] = s
	http.SetCookie(w, &http.Cookie{Name: "sessionid", Value: id, Path: "/", HttpOnly: true})
	return s
}

func (p *Portal) issueToken(s *portalSession) string {
	token, err := random.String(32)
	if err != nil {
		panic(err)
	}
	s.token = token
	return token
}

func (p *Portal) checkToken(w http.ResponseWriter, r *http.Request, s *portalSession) bool {
	if err := r.ParseForm(); err != nil {
		p.reject(w, "%s %s: malformed form: %v", r.Method, r.URL.Path, err)
		return false
	}
	got := r.PostForm.Get(CsrfField)
	if s.token == "" || got != s.token {
		p.reject(w, "%s %s: csrf token %q, expected %q", r.Method, r.URL.Path, got, s.token)
		return false
	}
	// tokens are single use, a new one is rendered with every form
	s.token = ""
	return true
}

func (p *Portal) checkReferer(w http.ResponseWriter, r *http.Request, path string) bool {
	expected := p.Server.URL + path
	if r.Referer() != expected {
		p.reject(w, "%s %s: referer %q, expected %q", r.Method, r.URL.Path, r.Referer(), expected)
		return false
	}
	return true
}

func writeHtml(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	fmt.Fprintf(w, "<!DOCTYPE html><html><head><title>GCD</title></head><body>%s</body></html>", body)
}

func loginForm(token string) string {
	return fmt.Sprintf(`<form method="post" action="/accounts/login/">
<input type="hidden" name="%s" value="%s">
<input type="text" name="username">
<input type="password" name="password">
<input type="submit" value="Login">
</form>`, CsrfField, token)
}

func (p *Portal) handleLanding(w http.ResponseWriter, r *http.Request) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	p.userAgents[r.UserAgent()] = true
	s := p.session(w, r)
	if s.loggedIn {
		writeHtml(w, http.StatusOK, `<div class="user">logged in</div>`)
		return
	}
	writeHtml(w, http.StatusOK, loginForm(p.issueToken(s)))
}

func (p *Portal) handleLogin(w http.ResponseWriter, r *http.Request) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.userAgents[r.UserAgent()] = true
	s := p.session(w, r)
	if r.Method != http.MethodPost {
		writeHtml(w, http.StatusOK, loginForm(p.issueToken(s)))
		return
	}
	if !p.checkReferer(w, r, "/") || !p.checkToken(w, r, s) {
		return
	}
	p.logins++

	if r.PostForm.Get("username") != p.opts.Username || r.PostForm.Get("password") != p.opts.Password {
		if p.opts.LoginFailureStatus != 0 {
			http.Error(w, "invalid login", p.opts.LoginFailureStatus)
			return
		}
		writeHtml(w, http.StatusOK, `<ul class="errorlist"><li>Please enter a correct username and password.</li></ul>`+loginForm(p.issueToken(s)))
		return
	}

	s.loggedIn = true
	http.Redirect(w, r, "/", http.StatusFound)
}

func (p *Portal) handleDownload(w http.ResponseWriter, r *http.Request) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.userAgents[r.UserAgent()] = true
	s := p.session(w, r)
	if !s.loggedIn {
		http.Redirect(w, r, "/accounts/login/?next=/download/", http.StatusFound)
		return
	}

	if r.Method != http.MethodPost {
		if !p.checkReferer(w, r, "/") {
			return
		}
		writeHtml(w, http.StatusOK, fmt.Sprintf(`<h1>Download</h1>
<ul>
<li>MySQL: <span class="timestamp">%s</span></li>
</ul>
<form method="post">
<input type="hidden" name="%s" value="%s">
<select name="purpose"><option value="non-commercial">non-commercial</option></select>
<textarea name="usage"></textarea>
<input type="checkbox" name="accept_license" value="1">
<input type="submit" name="mysqldump" value="Download MySQL Dump">
</form>`, html.EscapeString(p.opts.Identity), CsrfField, p.issueToken(s)))
		return
	}

	if !p.checkReferer(w, r, "/download/") || !p.checkToken(w, r, s) {
		return
	}
	expected := map[string]string{
		"purpose":        "non-commercial",
		"usage":          "",
		"accept_license": "1",
		"mysqldump":      "Download MySQL Dump",
	}
	for field, value := range expected {
		if !r.PostForm.Has(field) || r.PostForm.Get(field) != value {
			p.reject(w, "POST /download/: field %s=%q, expected %q", field, r.PostForm.Get(field), value)
			return
		}
	}
	p.triggers++

	if p.opts.Notice != "" {
		writeHtml(w, http.StatusOK, fmt.Sprintf(`<div class="body_content">%s</div>`, p.opts.Notice))
		return
	}
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", `attachment; filename="current.zip"`)
	w.WriteHeader(http.StatusOK)
	w.Write(p.opts.Dump)
}
