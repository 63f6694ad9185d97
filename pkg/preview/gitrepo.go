package preview

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// GitRepoClient serves both GitHub and Gitee: the repo endpoints share the
// same field shape, only the base URL, label and auth style differ.
type GitRepoClient struct {
	label        string
	apiBase      string
	token        string
	tokenInQuery bool
	client       *http.Client
	maxDescRunes int
}

// NewGitRepoClient builds a repo summary client. tokenInQuery selects Gitee's
// access_token query parameter over the Authorization header GitHub expects.
func NewGitRepoClient(label, apiBase, token string, tokenInQuery bool, timeout time.Duration, maxDescRunes int) *GitRepoClient {
	return &GitRepoClient{
		label:        label,
		apiBase:      strings.TrimRight(apiBase, "/"),
		token:        token,
		tokenInQuery: tokenInQuery,
		client:       &http.Client{Timeout: timeout},
		maxDescRunes: maxDescRunes,
	}
}

// Preview expects match[1]=owner and match[2]=repo.
func (c *GitRepoClient) Preview(ctx context.Context, match []string) (*Reply, error) {
	owner, repo := match[1], match[2]

	apiURL := fmt.Sprintf("%s/repos/%s/%s", c.apiBase, url.PathEscape(owner), url.PathEscape(repo))
	if c.tokenInQuery && c.token != "" {
		apiURL += "?access_token=" + url.QueryEscape(c.token)
	}

	req, err := http.NewRequestWithContext(ctx, "GET", apiURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")
	if !c.tokenInQuery && c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var repoResp struct {
		Name            string `json:"name"`
		Description     string `json:"description"`
		HTMLURL         string `json:"html_url"`
		Language        string `json:"language"`
		StargazersCount int64  `json:"stargazers_count"`
		ForksCount      int64  `json:"forks_count"`
		Owner           struct {
			AvatarURL string `json:"avatar_url"`
		} `json:"owner"`
	}
	if err := json.Unmarshal(body, &repoResp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	if repoResp.Name == "" {
		return nil, fmt.Errorf("response missing repo name")
	}

	descText := "📝 暂无描述"
	if d := trimDescription(repoResp.Description, c.maxDescRunes); d != "" {
		descText = "📝 " + d
	}

	language := repoResp.Language
	if language == "" {
		language = "未知"
	}

	lines := []string{
		fmt.Sprintf("📦 %s 仓库 | %s", c.label, repoResp.Name),
		fmt.Sprintf("👤 作者：%s", owner),
		descText,
		"───",
		fmt.Sprintf("⭐ %s | 🍴 %s", FormatCount(repoResp.StargazersCount), FormatCount(repoResp.ForksCount)),
		fmt.Sprintf("💻 语言：%s", language),
		"🔗 " + repoResp.HTMLURL,
	}

	return &Reply{
		Text:     strings.Join(lines, "\n"),
		ImageURL: repoResp.Owner.AvatarURL,
	}, nil
}
