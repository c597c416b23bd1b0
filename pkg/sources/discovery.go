package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"streamline-hq/streamline/pkg/config"
)

// Discovery yields candidate source URLs: the static seed list plus an
// optional bounded code-search harvest.
type Discovery struct {
	cfg    *config.DiscoveryConfig
	token  string
	client *http.Client
	logger *slog.Logger
}

// NewDiscovery creates a discovery component. token is the optional
// code-search API token.
func NewDiscovery(cfg *config.DiscoveryConfig, token string, logger *slog.Logger) *Discovery {
	if logger == nil {
		logger = slog.Default()
	}
	return &Discovery{
		cfg:    cfg,
		token:  token,
		client: &http.Client{Timeout: 15 * time.Second},
		logger: logger.With("component", "sources.discovery"),
	}
}

// Discover returns up to limit candidate URLs: seeds first, then search
// results. Search failures degrade to the seed list alone.
func (d *Discovery) Discover(ctx context.Context, limit int) []string {
	seen := make(map[string]bool)
	var urls []string

	add := func(url string) {
		if url == "" || seen[url] || (limit > 0 && len(urls) >= limit) {
			return
		}
		seen[url] = true
		urls = append(urls, url)
	}

	for _, seed := range d.cfg.Seeds {
		add(strings.TrimSpace(seed))
	}

	if d.cfg.CodeSearch && d.token != "" && (limit <= 0 || len(urls) < limit) {
		for _, url := range d.codeSearch(ctx) {
			add(url)
		}
	}

	return urls
}

// searchResponse is the subset of the code-search API response we read.
type searchResponse struct {
	Items []struct {
		Path       string `json:"path"`
		HTMLURL    string `json:"html_url"`
		Repository struct {
			FullName      string `json:"full_name"`
			DefaultBranch string `json:"default_branch"`
		} `json:"repository"`
	} `json:"items"`
}

func (d *Discovery) codeSearch(ctx context.Context) []string {
	var urls []string

	pages := d.cfg.CodeSearchPages
	if pages <= 0 {
		pages = 2
	}

	for _, query := range d.cfg.CodeSearchQueries {
		for page := 1; page <= pages; page++ {
			results, remaining, err := d.searchPage(ctx, query, page)
			if err != nil {
				d.logger.Warn("code search failed", "query", query, "page", page, "error", err)
				return urls
			}
			urls = append(urls, results...)

			if remaining >= 0 && remaining <= d.cfg.QuotaFloor {
				d.logger.Info("code search quota low, backing off", "remaining", remaining)
				return urls
			}
		}
	}
	return urls
}

func (d *Discovery) searchPage(ctx context.Context, query string, page int) ([]string, int, error) {
	endpoint := fmt.Sprintf("%s?q=%s&per_page=50&page=%d",
		d.cfg.CodeSearchEndpoint, strings.ReplaceAll(query, " ", "+"), page)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, -1, err
	}
	req.Header.Set("Authorization", "Bearer "+d.token)
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, -1, err
	}
	defer resp.Body.Close()

	remaining := -1
	if v := resp.Header.Get("X-RateLimit-Remaining"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			remaining = n
		}
	}

	if resp.StatusCode != http.StatusOK {
		return nil, remaining, fmt.Errorf("search returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, remaining, err
	}

	var parsed searchResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, remaining, err
	}

	var urls []string
	for _, item := range parsed.Items {
		if !plausibleSubscriptionPath(item.Path) {
			continue
		}
		if raw := rawFileURL(item.Repository.FullName, item.Repository.DefaultBranch, item.Path); raw != "" {
			urls = append(urls, raw)
		}
	}
	return urls, remaining, nil
}

// allow/deny keyword lists for plausible subscription file paths.
var (
	pathAllow = []string{"sub", "subscribe", "v2ray", "vmess", "vless", "clash", "config", "proxy", "node"}
	pathDeny  = []string{"license", "readme", "rule", "contributing", "changelog", ".md"}
)

func plausibleSubscriptionPath(path string) bool {
	lower := strings.ToLower(path)
	for _, deny := range pathDeny {
		if strings.Contains(lower, deny) {
			return false
		}
	}
	for _, allow := range pathAllow {
		if strings.Contains(lower, allow) {
			return true
		}
	}
	return false
}

func rawFileURL(repo, branch, path string) string {
	if repo == "" || path == "" {
		return ""
	}
	if branch == "" {
		branch = "main"
	}
	return fmt.Sprintf("https://raw.githubusercontent.com/%s/%s/%s", repo, branch, path)
}
