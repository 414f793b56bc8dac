package farmodbus

import "testing"

func TestConfigurationDefaultsToReadHoldingRegisters(t *testing.T) {
	cfg := newConfiguration()
	if cfg.ReadFunctionCode() != fcReadHoldingRegisters {
		t.Errorf("expected default read function code %d, got %d", fcReadHoldingRegisters, cfg.ReadFunctionCode())
	}
}

func TestConfigurationT3000Preset(t *testing.T) {
	cfg := newConfiguration()
	if err := cfg.applyPreset("T3000"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.ReadFunctionCode() != fcReadHoldingRegisters {
		t.Errorf("T3000 should select function code %d, got %d", fcReadHoldingRegisters, cfg.ReadFunctionCode())
	}
}

func TestConfigurationT3000iPreset(t *testing.T) {
	cfg := newConfiguration()
	if err := cfg.applyPreset("T3000i"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.ReadFunctionCode() != fcReadInputRegisters {
		t.Errorf("T3000i should select function code %d, got %d", fcReadInputRegisters, cfg.ReadFunctionCode())
	}
}

func TestConfigurationUnknownPreset(t *testing.T) {
	cfg := newConfiguration()
	err := cfg.applyPreset("does-not-exist")
	if err == nil {
		t.Fatal("expected an error for an unknown preset")
	}
}
