package gcd

import (
	"gcdfetch/lib/restyutil"
	"log/slog"
)

// Options describes the portal. everything that the upstream pages fix
// (paths, field names, labels) lives here instead of in package globals.
type Options struct {
	BaseUrl      string `json:"base_url"`
	LoginPath    string `json:"login_path"`
	DownloadPath string `json:"download_path"`
	UserAgent    string `json:"user_agent"`

	// name of the hidden synchronizer token input
	CsrfField string `json:"csrf_field"`
	// regular expression for the text node that precedes the dump timestamp
	IdentityLabel string `json:"identity_label"`
	// goquery selector of the container holding a notice
	NoticeSelector string `json:"notice_selector"`
	// when set and matched by the page returned from the login POST,
	// the login is treated as rejected.
	LoginFailureSelector string `json:"login_failure_selector"`

	CloudflareBypass bool `json:"cloudflare_bypass"`

	Logger *slog.Logger `json:"-"`

	// every exchange is written here when set
	HttpDump restyutil.InstrumentOutput `json:"-"`
}

func DefaultOptions() Options {
	return Options{
		BaseUrl:        "https://www.comics.org",
		LoginPath:      "/accounts/login/",
		DownloadPath:   "/download/",
		UserAgent:      "gcdfetch (+https://www.comics.org/download/)",
		CsrfField:      "csrfmiddlewaretoken",
		IdentityLabel:  "MySQL:",
		NoticeSelector: ".body_content",
	}
}

// fields of the form on the download page that request the mysql dump
var dumpFormFields = map[string]string{
	"purpose":        "non-commercial",
	"usage":          "",
	"accept_license": "1",
	"mysqldump":      "Download MySQL Dump",
}
