package websearch

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/html"
)

const (
	// DuckDuckGo 的无 JS HTML 入口,适合服务端抓取。
	ddgEndpoint = "https://html.duckduckgo.com/html/"

	ddgUserAgent = "Mozilla/5.0 (X11; Linux x86_64) scribe-x/1.0"
)

// DuckDuckGoEngine 基于 DuckDuckGo HTML 页面的搜索引擎实现。
type DuckDuckGoEngine struct {
	endpoint   string
	httpClient *http.Client
}

// DuckDuckGoOption 配置 DuckDuckGoEngine。
type DuckDuckGoOption func(*DuckDuckGoEngine)

// WithEndpoint 替换搜索入口地址,测试时指向 httptest server。
func WithEndpoint(endpoint string) DuckDuckGoOption {
	return func(e *DuckDuckGoEngine) {
		e.endpoint = endpoint
	}
}

// WithHTTPClient 替换底层 HTTP 客户端。
func WithHTTPClient(client *http.Client) DuckDuckGoOption {
	return func(e *DuckDuckGoEngine) {
		e.httpClient = client
	}
}

// NewDuckDuckGoEngine 创建 DuckDuckGo 搜索引擎。
func NewDuckDuckGoEngine(timeout time.Duration, opts ...DuckDuckGoOption) *DuckDuckGoEngine {
	e := &DuckDuckGoEngine{
		endpoint: ddgEndpoint,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Search 执行搜索并解析结果页面。
func (e *DuckDuckGoEngine) Search(ctx context.Context, query string, maxResults int) ([]Result, error) {
	form := url.Values{}
	form.Set("q", query)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("创建请求失败: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", ddgUserAgent)

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("请求失败: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("请求失败，状态码 %d", resp.StatusCode)
	}

	doc, err := html.Parse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("解析结果页面失败: %w", err)
	}

	results := parseResults(doc, maxResults)
	return results, nil
}

// parseResults 从结果页面 DOM 中提取搜索结果。
// 每条结果对应一个 class 含 result__a 的链接与 result__snippet 的摘要节点。
func parseResults(doc *html.Node, maxResults int) []Result {
	var results []Result

	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if len(results) >= maxResults {
			return
		}
		if n.Type == html.ElementNode && hasClass(n, "result") {
			if r, ok := extractResult(n); ok {
				results = append(results, r)
			}
			// result 节点内部不再嵌套其他结果
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	return results
}

// extractResult 从单个 result 节点抽取标题、链接与摘要。
func extractResult(n *html.Node) (Result, bool) {
	var r Result

	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch {
			case n.Data == "a" && hasClass(n, "result__a"):
				r.Title = strings.TrimSpace(textContent(n))
				r.URL = resolveHref(attr(n, "href"))
			case hasClass(n, "result__snippet"):
				r.Snippet = strings.TrimSpace(textContent(n))
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)

	if r.Title == "" && r.Snippet == "" {
		return Result{}, false
	}
	if u, err := url.Parse(r.URL); err == nil {
		r.Source = u.Host
	}
	return r, true
}

// resolveHref 还原 DuckDuckGo 跳转链接中的真实目标地址。
// 结果页链接形如 //duckduckgo.com/l/?uddg=<编码后的真实 URL>。
func resolveHref(href string) string {
	u, err := url.Parse(href)
	if err != nil {
		return href
	}
	if target := u.Query().Get("uddg"); target != "" {
		return target
	}
	if u.Scheme == "" && strings.HasPrefix(href, "//") {
		return "https:" + href
	}
	return href
}

func hasClass(n *html.Node, class string) bool {
	for _, c := range strings.Fields(attr(n, "class")) {
		if c == class {
			return true
		}
	}
	return false
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func textContent(n *html.Node) string {
	var sb strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return sb.String()
}
