package sentinel

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"linkpeek/pkg/config"
)

type fakeChecker struct {
	health    map[string]error
	restarted []string
	restartOK bool
}

func (f *fakeChecker) CheckHealth(ctx context.Context) map[string]error {
	return f.health
}

func (f *fakeChecker) RestartChannel(ctx context.Context, name string) error {
	f.restarted = append(f.restarted, name)
	if f.restartOK {
		return nil
	}
	return fmt.Errorf("restart failed")
}

func writeValidConfig(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	if err := config.SaveConfig(path, config.DefaultConfig()); err != nil {
		t.Fatalf("SaveConfig: %v", err)
	}
	return path
}

func TestCheckConfigReportsMissingFile(t *testing.T) {
	t.Parallel()

	s := NewService(filepath.Join(t.TempDir(), "nope.json"), 60, false, nil, nil)
	issues := s.checkConfig()
	if len(issues) != 1 || !strings.Contains(issues[0], "config file missing") {
		t.Fatalf("unexpected issues: %v", issues)
	}
}

func TestCheckConfigCleanOnValidFile(t *testing.T) {
	t.Parallel()

	s := NewService(writeValidConfig(t), 60, false, nil, nil)
	if issues := s.checkConfig(); len(issues) != 0 {
		t.Fatalf("expected no issues, got %v", issues)
	}
}

func TestCheckChannelsRestartsUnhealthyWhenAutoHeal(t *testing.T) {
	t.Parallel()

	checker := &fakeChecker{
		health:    map[string]error{"telegram": nil, "onebot": fmt.Errorf("not connected")},
		restartOK: true,
	}
	s := NewService(writeValidConfig(t), 60, true, checker, nil)

	issues := s.checkChannels()
	if len(issues) != 1 || !strings.Contains(issues[0], "restarted") {
		t.Fatalf("unexpected issues: %v", issues)
	}
	if len(checker.restarted) != 1 || checker.restarted[0] != "onebot" {
		t.Fatalf("expected onebot restart, got %v", checker.restarted)
	}
}

func TestCheckChannelsReportsWithoutAutoHeal(t *testing.T) {
	t.Parallel()

	checker := &fakeChecker{
		health: map[string]error{"discord": fmt.Errorf("gateway closed")},
	}
	s := NewService(writeValidConfig(t), 60, false, checker, nil)

	issues := s.checkChannels()
	if len(issues) != 1 || !strings.Contains(issues[0], "unhealthy") {
		t.Fatalf("unexpected issues: %v", issues)
	}
	if len(checker.restarted) != 0 {
		t.Fatalf("restart should not happen without auto_heal: %v", checker.restarted)
	}
}

func TestStartStopIsIdempotent(t *testing.T) {
	t.Parallel()

	s := NewService(writeValidConfig(t), 60, false, nil, nil)

	s.Start()
	s.Start()
	if !s.running {
		t.Fatal("service should be running after Start")
	}

	s.Stop()
	s.Stop()
	if s.running {
		t.Fatal("service should not be running after Stop")
	}
}

func TestAlertThrottlesRepeats(t *testing.T) {
	t.Parallel()

	var alerts []string
	s := NewService(writeValidConfig(t), 60, false, nil, func(msg string) {
		alerts = append(alerts, msg)
	})

	s.alert("sentinel: something broke")
	s.alert("sentinel: something broke")
	s.alert("sentinel: something else broke")

	if len(alerts) != 2 {
		t.Fatalf("expected repeat alert to be throttled, got %v", alerts)
	}
}
