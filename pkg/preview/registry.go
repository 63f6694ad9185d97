package preview

import (
	"context"
	"regexp"
	"time"

	"linkpeek/pkg/config"
)

// Reply is the payload a handler produces: text plus an optional image part.
type Reply struct {
	Text     string
	ImageURL string
}

// Handler turns a regexp match (full match at index 0, capture groups after)
// into a reply. Any error is translated into the entry's ErrorReply by the
// dispatcher, never surfaced to the chat as-is.
type Handler func(ctx context.Context, match []string) (*Reply, error)

type Entry struct {
	Platform   string
	Patterns   []*regexp.Regexp
	Handle     Handler
	ErrorReply string
}

// Registry holds the pattern entries in a fixed scan order. Built once at
// startup and read-only afterward, so concurrent dispatches need no locking.
type Registry struct {
	entries []Entry
}

var (
	bilibiliPatterns = []*regexp.Regexp{
		regexp.MustCompile(`www\.bilibili\.com/video/(BV\w+)`),
		regexp.MustCompile(`b23\.tv/(BV\w+)`),
		regexp.MustCompile(`www\.bilibili\.com/video/av(\d+)`),
	}
	githubPattern = regexp.MustCompile(`github\.com/([^/\s]+)/([^/?#\s]+)`)
	giteePattern  = regexp.MustCompile(`gitee\.com/([^/\s]+)/([^/?#\s]+)`)
)

// NewRegistry wires the enabled platform handlers into scan order:
// Bilibili, then GitHub, then Gitee. The order is deterministic and decides
// precedence when a message matches more than one platform.
func NewRegistry(cfg *config.Config) *Registry {
	timeout := time.Duration(cfg.Platforms.TimeoutSec) * time.Second
	maxDesc := cfg.Platforms.MaxDescRunes

	r := &Registry{}

	if cfg.Platforms.Bilibili.Enabled {
		bili := NewBilibiliClient(cfg.Platforms.Bilibili.APIBase, timeout, maxDesc)
		r.entries = append(r.entries, Entry{
			Platform:   "bilibili",
			Patterns:   bilibiliPatterns,
			Handle:     bili.Preview,
			ErrorReply: "❌ 视频解析失败，请稍后重试",
		})
	}

	if cfg.Platforms.GitHub.Enabled {
		gh := NewGitRepoClient("GitHub", cfg.Platforms.GitHub.APIBase, cfg.Platforms.GitHub.Token, false, timeout, maxDesc)
		r.entries = append(r.entries, Entry{
			Platform:   "github",
			Patterns:   []*regexp.Regexp{githubPattern},
			Handle:     gh.Preview,
			ErrorReply: "❌ GitHub 仓库信息获取失败，请稍后重试",
		})
	}

	if cfg.Platforms.Gitee.Enabled {
		ge := NewGitRepoClient("Gitee", cfg.Platforms.Gitee.APIBase, cfg.Platforms.Gitee.Token, true, timeout, maxDesc)
		r.entries = append(r.entries, Entry{
			Platform:   "gitee",
			Patterns:   []*regexp.Regexp{giteePattern},
			Handle:     ge.Preview,
			ErrorReply: "❌ Gitee 仓库信息获取失败，请稍后重试",
		})
	}

	return r
}

// Match scans the text against every entry in registration order and returns
// the first entry whose pattern list matches, along with the submatches.
// Returns nil when nothing matches.
func (r *Registry) Match(text string) (*Entry, []string) {
	for i := range r.entries {
		entry := &r.entries[i]
		for _, pattern := range entry.Patterns {
			if m := pattern.FindStringSubmatch(text); m != nil {
				return entry, m
			}
		}
	}
	return nil, nil
}

// Platforms returns the registered platform names in scan order.
func (r *Registry) Platforms() []string {
	names := make([]string, 0, len(r.entries))
	for _, e := range r.entries {
		names = append(names, e.Platform)
	}
	return names
}
