package dvrclient

// ConfigType describes one configuration domain the DVR firmware exposes
// through GetCfg/GetCfgReply, keyed by the vendor's MainCmd id.
type ConfigType struct {
	MainCmd     int
	Name        string
	Description string
}

// ConfigTypes is the fixed registry of configuration domains supported by
// GetConfig, mirroring the full set the firmware exposes.
var ConfigTypes = []ConfigType{
	{101, "network", "IP address, ports, DHCP, DDNS, PPPoE, WiFi"},
	{103, "network_services", "NMS, AMS, NTP, email settings"},
	{105, "display_osd", "On-screen display, channel names, fonts"},
	{107, "encoding", "Compression, resolution, bitrate, framerate"},
	{109, "record_schedule", "Recording schedules per channel"},
	{111, "system_time", "Current DVR date and time"},
	{115, "decoder_serial", "Serial port and decoder (PTZ) settings"},
	{117, "alarm", "Alarm inputs, outputs, motion detection"},
	{121, "users", "User accounts and permissions"},
	{123, "device_info", "Model, firmware, channel count (read-only)"},
	{125, "device_config", "DVR ID, timezone, DST, language, device name"},
	{127, "storage", "Hard disk info, disk groups"},
	{129, "device_status", "Live channel status, motion, bitrates"},
	{131, "maintenance", "Auto-maintenance schedule"},
	{133, "custom_settings", "Work mode, feature toggles (email, CMS, NTP)"},
	{139, "source_device", "Connected camera/source info"},
	{221, "extended_storage", "Extended disk and partition info"},
}

// ConfigTypeByName looks up a registry entry by its short name.
func ConfigTypeByName(name string) (ConfigType, bool) {
	for _, ct := range ConfigTypes {
		if ct.Name == name {
			return ct, true
		}
	}
	return ConfigType{}, false
}

// ConfigTypeByMainCmd looks up a registry entry by its wire MainCmd id.
func ConfigTypeByMainCmd(mainCmd int) (ConfigType, bool) {
	for _, ct := range ConfigTypes {
		if ct.MainCmd == mainCmd {
			return ct, true
		}
	}
	return ConfigType{}, false
}
