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

const userAgent = "Mozilla/5.0 (compatible; linkpeek/1.0)"

// BilibiliClient resolves a BV-id or av-id into a video summary via the
// public web-interface view endpoint.
type BilibiliClient struct {
	apiBase      string
	client       *http.Client
	maxDescRunes int
}

func NewBilibiliClient(apiBase string, timeout time.Duration, maxDescRunes int) *BilibiliClient {
	return &BilibiliClient{
		apiBase:      strings.TrimRight(apiBase, "/"),
		client:       &http.Client{Timeout: timeout},
		maxDescRunes: maxDescRunes,
	}
}

// Preview expects match[1] to be either a "BV..." id or the bare digits of an
// av-id, depending on which pattern fired.
func (c *BilibiliClient) Preview(ctx context.Context, match []string) (*Reply, error) {
	videoID := match[1]

	var apiURL, canonical string
	if strings.HasPrefix(videoID, "BV") {
		apiURL = fmt.Sprintf("%s/x/web-interface/view?bvid=%s", c.apiBase, url.QueryEscape(videoID))
		canonical = "https://www.bilibili.com/video/" + videoID
	} else {
		apiURL = fmt.Sprintf("%s/x/web-interface/view?aid=%s", c.apiBase, url.QueryEscape(videoID))
		canonical = "https://www.bilibili.com/video/av" + videoID
	}

	req, err := http.NewRequestWithContext(ctx, "GET", apiURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

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

	var viewResp struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Data    struct {
			Title   string `json:"title"`
			Pic     string `json:"pic"`
			Desc    string `json:"desc"`
			Dynamic string `json:"dynamic"`
			Owner   struct {
				Name string `json:"name"`
			} `json:"owner"`
			Stat struct {
				View     int64 `json:"view"`
				Like     int64 `json:"like"`
				Coin     int64 `json:"coin"`
				Favorite int64 `json:"favorite"`
				Reply    int64 `json:"reply"`
			} `json:"stat"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &viewResp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	if viewResp.Code != 0 {
		return nil, fmt.Errorf("bilibili API error %d: %s", viewResp.Code, viewResp.Message)
	}

	data := viewResp.Data
	stat := data.Stat

	lines := []string{
		fmt.Sprintf("📺 Bilibili 视频 | %s", data.Title),
		fmt.Sprintf("👤 UP主：%s", data.Owner.Name),
	}

	description := data.Desc
	if description == "" {
		description = data.Dynamic
	}
	if d := trimDescription(description, c.maxDescRunes); d != "" {
		lines = append(lines, "📝 简介："+d)
	}

	lines = append(lines,
		fmt.Sprintf("💖 %s  🪙 %s  ⭐ %s",
			FormatCount(stat.Like), FormatCount(stat.Coin), FormatCount(stat.Favorite)),
		fmt.Sprintf("👁️ 播放：%s  💬 评论：%s",
			FormatCount(stat.View), FormatCount(stat.Reply)),
		"───",
		"🔗 "+canonical,
	)

	return &Reply{
		Text:     strings.Join(lines, "\n"),
		ImageURL: data.Pic,
	}, nil
}
