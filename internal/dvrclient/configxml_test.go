package dvrclient

import "testing"

func TestParseConfigReplySuccess(t *testing.T) {
	body := []byte(`<GetCfgReply ConfigLen="120" Version="1.0" CmdReply="0">` +
		`<CfgInfo MainCommand="123" AssistCommand="0" />` +
		`<DeviceInfo Model="XVR-4" Firmware="1.2.3" Channels="4" />` +
		`</GetCfgReply>`)

	reply := ParseConfigReply(body)
	if reply.Error != "" {
		t.Fatalf("unexpected error: %s", reply.Error)
	}
	if reply.ConfigLen != 120 || reply.Version != "1.0" || reply.CmdReply != "0" {
		t.Fatalf("unexpected header fields: %+v", reply)
	}
	if reply.MainCmd != 123 || reply.AssistCmd != 0 {
		t.Fatalf("unexpected CfgInfo fields: %+v", reply)
	}
	devInfo, ok := reply.Data["DeviceInfo"]
	if !ok || devInfo["Model"] != "XVR-4" || devInfo["Channels"] != "4" {
		t.Fatalf("unexpected DeviceInfo data: %+v", reply.Data)
	}
}

func TestParseConfigReplyErrorCode(t *testing.T) {
	body := []byte(`<GetCfgReply ConfigLen="0" Version="1.0" CmdReply="16001" />`)
	reply := ParseConfigReply(body)
	if reply.Error == "" {
		t.Fatalf("expected error for non-zero CmdReply")
	}
}

func TestParseConfigReplyMalformedXML(t *testing.T) {
	reply := ParseConfigReply([]byte("not xml at all"))
	if reply.Error == "" {
		t.Fatalf("expected error for malformed XML")
	}
}
