package dvrclient

import "testing"

func TestConfigTypesRegistryHasSeventeenEntries(t *testing.T) {
	if len(ConfigTypes) != 17 {
		t.Fatalf("expected 17 config types, got %d", len(ConfigTypes))
	}
}

func TestConfigTypeByNameAndMainCmd(t *testing.T) {
	ct, ok := ConfigTypeByName("device_info")
	if !ok || ct.MainCmd != 123 {
		t.Fatalf("expected device_info at MainCmd 123, got %+v ok=%v", ct, ok)
	}
	byCmd, ok := ConfigTypeByMainCmd(123)
	if !ok || byCmd.Name != "device_info" {
		t.Fatalf("expected MainCmd 123 to be device_info, got %+v ok=%v", byCmd, ok)
	}
}

func TestConfigTypeByNameUnknown(t *testing.T) {
	if _, ok := ConfigTypeByName("not_a_real_config"); ok {
		t.Fatalf("expected unknown config name to miss")
	}
}
