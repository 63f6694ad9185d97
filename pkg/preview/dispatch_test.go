package preview

import (
	"context"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"linkpeek/pkg/bus"
	"linkpeek/pkg/config"
)

func startDispatcher(t *testing.T, cfg *config.Config) *bus.MessageBus {
	t.Helper()

	b := bus.NewMessageBus()
	d := NewDispatcher(b, NewRegistry(cfg))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		d.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
		b.Close()
	})
	return b
}

func waitReply(t *testing.T, b *bus.MessageBus) bus.OutboundMessage {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	msg, ok := b.SubscribeOutbound(ctx)
	if !ok {
		t.Fatalf("timed out waiting for reply")
	}
	return msg
}

func TestDispatchGitHubSuccess(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/repos/owner/repo" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"name":"repo","html_url":"https://github.com/owner/repo","description":"demo","stargazers_count":12345,"forks_count":10,"language":"Go","owner":{"avatar_url":"http://x/a.png"}}`))
	}))
	defer srv.Close()

	cfg := config.DefaultConfig()
	cfg.Platforms.GitHub.APIBase = srv.URL
	b := startDispatcher(t, cfg)

	b.PublishInbound(bus.InboundMessage{
		Channel: "telegram",
		ChatID:  "42",
		Content: "check out https://github.com/owner/repo",
	})

	reply := waitReply(t, b)
	if reply.Channel != "telegram" || reply.ChatID != "42" {
		t.Fatalf("reply misrouted: %+v", reply)
	}
	if !strings.Contains(reply.Content, "12.3K") {
		t.Fatalf("expected abbreviated star count, got:\n%s", reply.Content)
	}
	if !strings.Contains(reply.Content, "demo") {
		t.Fatalf("expected description, got:\n%s", reply.Content)
	}
	if reply.ImageURL != "http://x/a.png" {
		t.Fatalf("expected avatar image part, got %q", reply.ImageURL)
	}
}

func TestDispatchBilibiliSmallCountStaysLiteral(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("bvid"); got != "BV1xx411c7XD" {
			t.Errorf("unexpected bvid: %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"code":0,"data":{"title":"demo video","pic":"http://x/p.jpg","desc":"hi","owner":{"name":"up"},"stat":{"view":999,"like":3,"coin":1,"favorite":2,"reply":0}}}`))
	}))
	defer srv.Close()

	cfg := config.DefaultConfig()
	cfg.Platforms.Bilibili.APIBase = srv.URL
	b := startDispatcher(t, cfg)

	b.PublishInbound(bus.InboundMessage{
		Channel: "qq",
		ChatID:  "g1",
		Content: "https://www.bilibili.com/video/BV1xx411c7XD",
	})

	reply := waitReply(t, b)
	if !strings.Contains(reply.Content, "999") {
		t.Fatalf("expected literal view count, got:\n%s", reply.Content)
	}
	if strings.Contains(reply.Content, "1.0K") {
		t.Fatalf("view count should not be abbreviated:\n%s", reply.Content)
	}
	if reply.ImageURL != "http://x/p.jpg" {
		t.Fatalf("expected cover image part, got %q", reply.ImageURL)
	}
}

func TestDispatchGitHubNotFoundYieldsErrorReply(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"Not Found"}`, http.StatusNotFound)
	}))
	defer srv.Close()

	cfg := config.DefaultConfig()
	cfg.Platforms.GitHub.APIBase = srv.URL
	b := startDispatcher(t, cfg)

	b.PublishInbound(bus.InboundMessage{
		Channel: "discord",
		ChatID:  "c9",
		Content: "https://github.com/owner/gone",
	})

	reply := waitReply(t, b)
	if reply.Content != "❌ GitHub 仓库信息获取失败，请稍后重试" {
		t.Fatalf("unexpected error reply: %q", reply.Content)
	}
	if reply.ImageURL != "" {
		t.Fatalf("error reply must not carry an image, got %q", reply.ImageURL)
	}
}

func TestDispatchBilibiliAPIErrorCode(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"code":-404,"message":"啥都木有"}`))
	}))
	defer srv.Close()

	cfg := config.DefaultConfig()
	cfg.Platforms.Bilibili.APIBase = srv.URL
	b := startDispatcher(t, cfg)

	b.PublishInbound(bus.InboundMessage{
		Channel: "telegram",
		ChatID:  "7",
		Content: "https://b23.tv/BV1xx411c7XD",
	})

	reply := waitReply(t, b)
	if reply.Content != "❌ 视频解析失败，请稍后重试" {
		t.Fatalf("unexpected error reply: %q", reply.Content)
	}
}

func TestDispatchUnmatchedTextProducesNoReply(t *testing.T) {
	t.Parallel()

	b := startDispatcher(t, config.DefaultConfig())

	b.PublishInbound(bus.InboundMessage{Channel: "telegram", ChatID: "1", Content: "just chatting"})
	b.PublishInbound(bus.InboundMessage{Channel: "telegram", ChatID: "1", Content: "   "})

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()
	if msg, ok := b.SubscribeOutbound(ctx); ok {
		t.Fatalf("expected no reply, got %+v", msg)
	}
}

func TestDispatchSurvivesPanickingHandler(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	registry := &Registry{entries: []Entry{{
		Platform: "github",
		Patterns: []*regexp.Regexp{githubPattern},
		Handle: func(ctx context.Context, match []string) (*Reply, error) {
			if calls.Add(1) == 1 {
				panic("decode blew up")
			}
			return &Reply{Text: "repo " + match[2]}, nil
		},
		ErrorReply: "❌ GitHub 仓库信息获取失败，请稍后重试",
	}}}

	b := bus.NewMessageBus()
	d := NewDispatcher(b, registry)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		d.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
		b.Close()
	})

	b.PublishInbound(bus.InboundMessage{Channel: "telegram", ChatID: "1", Content: "https://github.com/a/b"})
	reply := waitReply(t, b)
	if reply.Content != "❌ GitHub 仓库信息获取失败，请稍后重试" {
		t.Fatalf("expected error reply after panic, got %q", reply.Content)
	}
	if reply.ImageURL != "" {
		t.Fatalf("panic reply must not carry an image, got %q", reply.ImageURL)
	}

	b.PublishInbound(bus.InboundMessage{Channel: "telegram", ChatID: "1", Content: "https://github.com/c/d"})
	reply = waitReply(t, b)
	if reply.Content != "repo d" {
		t.Fatalf("loop did not keep dispatching after panic, got %q", reply.Content)
	}
}

func TestDispatchOverlapOnlyFirstPlatformFires(t *testing.T) {
	t.Parallel()

	var githubHits atomic.Int32
	biliSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"code":0,"data":{"title":"t","pic":"","desc":"","owner":{"name":"up"},"stat":{"view":1,"like":0,"coin":0,"favorite":0,"reply":0}}}`))
	}))
	defer biliSrv.Close()
	ghSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		githubHits.Add(1)
		w.Write([]byte(`{}`))
	}))
	defer ghSrv.Close()

	cfg := config.DefaultConfig()
	cfg.Platforms.Bilibili.APIBase = biliSrv.URL
	cfg.Platforms.GitHub.APIBase = ghSrv.URL
	b := startDispatcher(t, cfg)

	b.PublishInbound(bus.InboundMessage{
		Channel: "telegram",
		ChatID:  "1",
		Content: "https://www.bilibili.com/video/BV1xx411c7XD and https://github.com/golang/go",
	})

	reply := waitReply(t, b)
	if !strings.Contains(reply.Content, "Bilibili") {
		t.Fatalf("expected bilibili reply, got:\n%s", reply.Content)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()
	if msg, ok := b.SubscribeOutbound(ctx); ok {
		t.Fatalf("expected a single reply, got second: %+v", msg)
	}
	if githubHits.Load() != 0 {
		t.Fatalf("github API should not be hit on overlap, got %d hits", githubHits.Load())
	}
}
