package sentinel

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"linkpeek/pkg/config"
	"linkpeek/pkg/logger"
)

type AlertFunc func(msg string)

// HealthChecker is implemented by the channel manager; it reports per-channel
// health and can restart a misbehaving channel.
type HealthChecker interface {
	CheckHealth(ctx context.Context) map[string]error
	RestartChannel(ctx context.Context, name string) error
}

type Service struct {
	cfgPath  string
	interval time.Duration
	autoHeal bool
	onAlert  AlertFunc
	checker  HealthChecker

	runMu   sync.Mutex
	running bool
	stopCh  chan struct{}
	wg      sync.WaitGroup

	mu         sync.RWMutex
	lastAlerts map[string]time.Time
}

func NewService(cfgPath string, intervalSec int, autoHeal bool, checker HealthChecker, onAlert AlertFunc) *Service {
	if intervalSec <= 0 {
		intervalSec = 60
	}
	return &Service{
		cfgPath:    cfgPath,
		interval:   time.Duration(intervalSec) * time.Second,
		autoHeal:   autoHeal,
		onAlert:    onAlert,
		checker:    checker,
		lastAlerts: map[string]time.Time{},
	}
}

// Start launches the check loop. Calling Start on a running service is a
// no-op.
func (s *Service) Start() {
	s.runMu.Lock()
	if s.running {
		s.runMu.Unlock()
		return
	}
	stopCh := make(chan struct{})
	s.stopCh = stopCh
	s.running = true
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop(stopCh)
	}()
	s.runMu.Unlock()

	logger.InfoCF("sentinel", "Sentinel started", map[string]interface{}{
		"interval":  s.interval.String(),
		"auto_heal": s.autoHeal,
	})
}

// Stop signals the loop and waits for it to exit. Idempotent.
func (s *Service) Stop() {
	s.runMu.Lock()
	if !s.running {
		s.runMu.Unlock()
		return
	}
	close(s.stopCh)
	s.stopCh = nil
	s.running = false
	s.runMu.Unlock()

	s.wg.Wait()
	logger.InfoC("sentinel", "Sentinel stopped")
}

func (s *Service) loop(stopCh <-chan struct{}) {
	tk := time.NewTicker(s.interval)
	defer tk.Stop()

	s.runChecks()
	for {
		select {
		case <-stopCh:
			return
		case <-tk.C:
			s.runChecks()
		}
	}
}

func (s *Service) runChecks() {
	issues := s.checkConfig()
	issues = append(issues, s.checkLogs()...)
	issues = append(issues, s.checkChannels()...)

	if len(issues) == 0 {
		return
	}

	for _, issue := range issues {
		s.alert(issue)
	}
}

func (s *Service) checkConfig() []string {
	_, err := os.Stat(s.cfgPath)
	if err != nil {
		return []string{fmt.Sprintf("sentinel: config file missing: %s", s.cfgPath)}
	}

	cfg, err := config.LoadConfig(s.cfgPath)
	if err != nil {
		return []string{fmt.Sprintf("sentinel: config parse failed: %v", err)}
	}

	verrs := config.Validate(cfg)
	out := make([]string, 0, len(verrs))
	for _, e := range verrs {
		out = append(out, fmt.Sprintf("sentinel: config validation issue: %v", e))
	}
	return out
}

func (s *Service) checkLogs() []string {
	cfg, err := config.LoadConfig(s.cfgPath)
	if err != nil || !cfg.Logging.Enabled {
		return nil
	}
	logDir := filepath.Clean(filepath.Dir(cfg.LogFilePath()))
	if _, err := os.Stat(logDir); err != nil {
		if s.autoHeal {
			if mkErr := os.MkdirAll(logDir, 0755); mkErr == nil {
				return []string{"sentinel: log dir missing, auto-healed"}
			}
		}
		return []string{fmt.Sprintf("sentinel: log dir missing: %s", logDir)}
	}
	return nil
}

func (s *Service) checkChannels() []string {
	if s.checker == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	health := s.checker.CheckHealth(ctx)
	names := make([]string, 0, len(health))
	for name := range health {
		names = append(names, name)
	}
	sort.Strings(names)

	var out []string
	for _, name := range names {
		err := health[name]
		if err == nil {
			continue
		}
		if s.autoHeal {
			if rErr := s.checker.RestartChannel(ctx, name); rErr == nil {
				out = append(out, fmt.Sprintf("sentinel: channel %s unhealthy, restarted", name))
				continue
			}
		}
		out = append(out, fmt.Sprintf("sentinel: channel %s unhealthy: %v", name, err))
	}
	return out
}

func (s *Service) alert(msg string) {
	now := time.Now()
	s.mu.Lock()
	last, ok := s.lastAlerts[msg]
	if ok && now.Sub(last) < 5*time.Minute {
		s.mu.Unlock()
		return
	}
	s.lastAlerts[msg] = now
	s.mu.Unlock()

	logger.WarnCF("sentinel", msg, nil)
	if s.onAlert != nil {
		s.onAlert(msg)
	}
}
