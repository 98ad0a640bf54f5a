package gcd

import (
	"bytes"
	"context"
	"fmt"
	"gcdfetch/lib/restyutil"
	"gcdfetch/lib/telemetry"
	"io"
	"log/slog"
	"net/http/cookiejar"
	"net/url"
	"regexp"
	"strings"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/net/publicsuffix"
)

const maxRedirects = 10

// Client is one authenticated session against the portal. the cookie jar
// lives as long as the client, Close must be called once the run is over.
type Client struct {
	BaseUrl *url.URL
	Http    *resty.Client

	opts   Options
	label  *regexp.Regexp
	logger *slog.Logger
}

// DownloadPage holds what is read off the download page before the dump
// is requested.
type DownloadPage struct {
	Token    string
	Identity string
}

// Payload is the unread response to the dump request.
type Payload struct {
	ContentType string
	Body        io.ReadCloser
}

func (p *Payload) Close() error {
	return p.Body.Close()
}

func NewClient(opts Options) (*Client, error) {
	baseUrl, err := url.Parse(opts.BaseUrl)
	if err != nil {
		return nil, err
	}
	if baseUrl.Scheme == "" || baseUrl.Host == "" {
		return nil, fmt.Errorf("base url %q must be absolute", opts.BaseUrl)
	}
	label, err := regexp.Compile(opts.IdentityLabel)
	if err != nil {
		return nil, fmt.Errorf("compile identity label: %w", err)
	}

	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, err
	}

	client := resty.New()
	client.SetBaseURL(strings.TrimRight(opts.BaseUrl, "/"))
	client.SetCookieJar(jar)
	if opts.CloudflareBypass {
		client.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(client.GetClient().Transport)
	}
	client.SetHeader("User-Agent", opts.UserAgent)
	client.SetRedirectPolicy(
		resty.FlexibleRedirectPolicy(maxRedirects),
		resty.DomainCheckRedirectPolicy(baseUrl.Hostname()),
	)

	telemetry.InstrumentResty(client, "gcdfetch.lib.gcd.http")
	restyutil.InstrumentClient(client, opts.HttpDump)

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		BaseUrl: baseUrl,
		Http:    client,
		opts:    opts,
		label:   label,
		logger:  logger,
	}, nil
}

// Close drops the session's pooled connections.
func (c *Client) Close() {
	c.Http.GetClient().CloseIdleConnections()
}

func (c *Client) pageUrl(path string) string {
	return c.BaseUrl.ResolveReference(&url.URL{Path: path}).String()
}

func (c *Client) landingUrl() string {
	return c.pageUrl("/")
}

func (c *Client) getDocument(ctx context.Context, path, referer string) (*goquery.Document, error) {
	req := c.Http.R().SetContext(ctx)
	if referer != "" {
		req.SetHeader("Referer", referer)
	}
	res, err := req.Get(path)
	if err != nil {
		return nil, fmt.Errorf("%w: GET %s: %w", ErrTransport, path, err)
	}
	if !res.IsSuccess() {
		return nil, fmt.Errorf("%w: GET %s: unexpected status %s", ErrTransport, path, res.Status())
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewBuffer(res.Body()))
	if err != nil {
		return nil, fmt.Errorf("%w: GET %s: %w", ErrParse, path, err)
	}
	return doc, nil
}

// FetchLoginToken opens the landing page, which starts the session, and
// returns the token its login form was rendered with.
func (c *Client) FetchLoginToken(ctx context.Context) (string, error) {
	ctx, span := tracer.Start(ctx, "client:FetchLoginToken")
	defer span.End()

	doc, err := c.getDocument(ctx, "/", "")
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to fetch landing page")
		return "", err
	}
	token, err := ExtractCsrf(doc, c.opts.CsrfField)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to find login token")
		return "", err
	}
	return token, nil
}

func (c *Client) LoginUsernamePassword(ctx context.Context, token, username, password string) error {
	ctx, span := tracer.Start(ctx, "client:LoginUsernamePassword")
	defer span.End()

	res, err := c.Http.R().
		SetContext(ctx).
		SetHeader("Referer", c.landingUrl()).
		SetFormData(map[string]string{
			c.opts.CsrfField: token,
			"username":       username,
			"password":       password,
		}).
		Post(c.opts.LoginPath)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to make login request")
		return fmt.Errorf("%w: POST %s: %w", ErrTransport, c.opts.LoginPath, err)
	}
	if !res.IsSuccess() {
		span.SetStatus(codes.Error, "login rejected")
		return fmt.Errorf("%w: POST %s: unexpected status %s", ErrAuthentication, c.opts.LoginPath, res.Status())
	}

	if c.opts.LoginFailureSelector == "" {
		return nil
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewBuffer(res.Body()))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to parse login response")
		return fmt.Errorf("%w: POST %s: %w", ErrParse, c.opts.LoginPath, err)
	}
	if doc.Find(c.opts.LoginFailureSelector).Length() > 0 {
		span.SetStatus(codes.Error, "login form rendered again")
		return fmt.Errorf("%w: the portal rendered the login form again", ErrAuthentication)
	}
	return nil
}

// FetchDownloadPage reads the current dump's identity and the token of the
// form that requests it.
func (c *Client) FetchDownloadPage(ctx context.Context) (DownloadPage, error) {
	ctx, span := tracer.Start(ctx, "client:FetchDownloadPage")
	defer span.End()

	doc, err := c.getDocument(ctx, c.opts.DownloadPath, c.landingUrl())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to fetch download page")
		return DownloadPage{}, err
	}

	token, err := ExtractCsrf(doc, c.opts.CsrfField)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to find download token")
		return DownloadPage{}, err
	}
	identity, err := ExtractIdentity(doc, c.label)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to find dump timestamp")
		return DownloadPage{}, err
	}

	span.SetAttributes(attribute.String("gcd.identity", identity))
	c.logger.DebugContext(ctx, "read download page", "identity", identity)
	return DownloadPage{Token: token, Identity: identity}, nil
}

// TriggerDownload submits the download form. the response body is left
// unread and is owned by the caller.
func (c *Client) TriggerDownload(ctx context.Context, token string) (*Payload, error) {
	ctx, span := tracer.Start(ctx, "client:TriggerDownload")
	defer span.End()

	form := map[string]string{c.opts.CsrfField: token}
	for k, v := range dumpFormFields {
		form[k] = v
	}

	res, err := c.Http.R().
		SetContext(ctx).
		SetHeader("Referer", c.pageUrl(c.opts.DownloadPath)).
		SetFormData(form).
		SetDoNotParseResponse(true).
		Post(c.opts.DownloadPath)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to request dump")
		return nil, fmt.Errorf("%w: POST %s: %w", ErrTransport, c.opts.DownloadPath, err)
	}
	telemetry.FinishStreamed(res)
	restyutil.FinishStreamed(res)

	body := res.RawBody()
	if !res.IsSuccess() {
		if body != nil {
			body.Close()
		}
		span.SetStatus(codes.Error, "dump request rejected")
		return nil, fmt.Errorf("%w: POST %s: unexpected status %s", ErrTransport, c.opts.DownloadPath, res.Status())
	}

	contentType := res.Header().Get("Content-Type")
	span.SetAttributes(attribute.String("http.response.content_type", contentType))
	return &Payload{ContentType: contentType, Body: body}, nil
}
