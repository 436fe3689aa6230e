package config

import (
	"testing"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig(t.TempDir())
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	if cfg.ServerPort != "8080" {
		t.Errorf("ServerPort = %s, want 8080", cfg.ServerPort)
	}
	if cfg.TransferFeeBps != 100 {
		t.Errorf("TransferFeeBps = %d, want 100", cfg.TransferFeeBps)
	}
	if cfg.DefaultDailyWithdrawalLimit != 1_000_000 {
		t.Errorf("DefaultDailyWithdrawalLimit = %d, want 1000000", cfg.DefaultDailyWithdrawalLimit)
	}
	if cfg.DefaultDailyTransferLimit != 3_000_000 {
		t.Errorf("DefaultDailyTransferLimit = %d, want 3000000", cfg.DefaultDailyTransferLimit)
	}
	if cfg.TimeZone != "Asia/Seoul" {
		t.Errorf("TimeZone = %s, want Asia/Seoul", cfg.TimeZone)
	}
	if cfg.ReconcileCronSpec == "" {
		t.Error("ReconcileCronSpec default missing")
	}
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("SERVER_PORT", "9999")
	t.Setenv("TRANSFER_FEE_BPS", "250")

	cfg, err := LoadConfig(t.TempDir())
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.ServerPort != "9999" {
		t.Errorf("ServerPort = %s, want 9999", cfg.ServerPort)
	}
	if cfg.TransferFeeBps != 250 {
		t.Errorf("TransferFeeBps = %d, want 250", cfg.TransferFeeBps)
	}
}
