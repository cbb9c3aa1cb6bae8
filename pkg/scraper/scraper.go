package scraper

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net"
	"net/http"
	"net/netip"
	"net/url"
	"strings"
	"syscall"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/xhad/brightpath/internal/models"
	"github.com/xhad/brightpath/pkg/extractor"
	"golang.org/x/time/rate"
)

const maxBodyBytes = 10 << 20

// ErrBlockedAddress is returned when a URL resolves to a loopback, private,
// link-local or unspecified address.
var ErrBlockedAddress = errors.New("address not allowed")

type ScraperConfig struct {
	RateLimit      float64 // requests per second
	Timeout        time.Duration
	UserAgent      string
	IgnorePatterns []string
	OnProgress     func(url string)
	AllowPrivate   bool // let the default client dial internal addresses
	Client         *http.Client
}

// Scraper fetches job-posting pages and reduces them to their main text.
type Scraper struct {
	config  ScraperConfig
	client  *http.Client
	limiter *rate.Limiter
}

func NewWithConfig(config ScraperConfig) (*Scraper, error) {
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}
	if config.RateLimit < 0 {
		return nil, fmt.Errorf("rate limit cannot be negative")
	}
	if config.RateLimit == 0 {
		config.RateLimit = 2 // 2 requests per second by default
	}
	if config.UserAgent == "" {
		config.UserAgent = "brightpath/1.0"
	}

	client := config.Client
	if client == nil {
		client = newClient(config.Timeout, config.AllowPrivate)
	}

	return &Scraper{
		config:  config,
		client:  client,
		limiter: rate.NewLimiter(rate.Limit(config.RateLimit), 1),
	}, nil
}

func newClient(timeout time.Duration, allowPrivate bool) *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if !allowPrivate {
		dialer := &net.Dialer{Timeout: 30 * time.Second, KeepAlive: 30 * time.Second, Control: publicOnly}
		transport.DialContext = dialer.DialContext
		// a proxy would dial the target on our behalf
		transport.Proxy = nil
	}
	return &http.Client{Timeout: timeout, Transport: transport}
}

// publicOnly runs after DNS resolution, so it sees the address actually dialed.
func publicOnly(network, address string, _ syscall.RawConn) error {
	ap, err := netip.ParseAddrPort(address)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrBlockedAddress, address)
	}
	if !isPublic(ap.Addr()) {
		return fmt.Errorf("%w: %s", ErrBlockedAddress, ap.Addr())
	}
	return nil
}

func isPublic(addr netip.Addr) bool {
	addr = addr.Unmap()
	return addr.IsValid() &&
		!addr.IsLoopback() &&
		!addr.IsPrivate() &&
		!addr.IsLinkLocalUnicast() &&
		!addr.IsLinkLocalMulticast() &&
		!addr.IsInterfaceLocalMulticast() &&
		!addr.IsUnspecified()
}

func New() *Scraper {
	s, _ := NewWithConfig(ScraperConfig{})
	return s
}

func (s *Scraper) shouldProcessURL(urlStr string) bool {
	parsedURL, err := url.Parse(urlStr)
	if err != nil {
		return false
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return false
	}
	if parsedURL.Host == "" {
		return false
	}
	for _, pattern := range s.config.IgnorePatterns {
		if strings.Contains(urlStr, pattern) {
			return false
		}
	}
	return true
}

func (s *Scraper) cleanContent(content string) string {
	// Remove extra whitespace
	content = strings.Join(strings.Fields(content), " ")

	// Remove common noise
	noisePatterns := []string{
		"Cookie Policy",
		"Accept Cookies",
		"Privacy Policy",
		"Terms of Service",
		"Apply Now",
	}

	for _, pattern := range noisePatterns {
		content = strings.ReplaceAll(content, pattern, "")
	}

	return strings.Join(strings.Fields(content), " ")
}

// Fetch downloads one job posting and returns it as a role document. HTML pages
// are reduced to their main content; PDF postings are returned as-is for the
// extractor.
func (s *Scraper) Fetch(ctx context.Context, urlStr string) (models.Document, error) {
	urlStr = strings.TrimSpace(urlStr)
	if !strings.Contains(urlStr, "://") {
		urlStr = "https://" + urlStr
	}
	if !s.shouldProcessURL(urlStr) {
		return models.Document{}, fmt.Errorf("refusing to fetch %q", urlStr)
	}

	if s.config.OnProgress != nil {
		s.config.OnProgress(urlStr)
	}

	// Apply rate limiting
	if err := s.limiter.Wait(ctx); err != nil {
		return models.Document{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, urlStr, nil)
	if err != nil {
		return models.Document{}, err
	}
	req.Header.Set("User-Agent", s.config.UserAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return models.Document{}, fmt.Errorf("fetch %s: %w", urlStr, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return models.Document{}, fmt.Errorf("received status code %d for URL: %s", resp.StatusCode, urlStr)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return models.Document{}, fmt.Errorf("read %s: %w", urlStr, err)
	}

	mediaType, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if mediaType == "application/pdf" || bytes.HasPrefix(body, []byte("%PDF-")) {
		return models.Document{
			Name:   urlStr,
			Kind:   models.KindPDF,
			Source: models.SourceRole,
			Data:   body,
		}, nil
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return models.Document{}, fmt.Errorf("parse %s: %w", urlStr, err)
	}

	title := strings.TrimSpace(doc.Find("title").First().Text())
	content := s.cleanContent(extractor.MainContent(doc))
	if content == "" {
		return models.Document{}, fmt.Errorf("no text content at %s", urlStr)
	}
	if title != "" && !strings.Contains(content, title) {
		content = title + "\n" + content
	}

	return models.Document{
		Name:   urlStr,
		Kind:   models.KindText,
		Source: models.SourceRole,
		Data:   []byte(content),
	}, nil
}
