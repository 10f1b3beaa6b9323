package dvrclient

import (
	"encoding/xml"
	"strconv"
)

// ConfigReply is a structured GetCfgReply, one config domain's settings.
type ConfigReply struct {
	ConfigLen int                          `json:"config_len"`
	Version   string                       `json:"version"`
	CmdReply  string                       `json:"cmd_reply"`
	MainCmd   int                          `json:"main_cmd"`
	AssistCmd int                          `json:"assist_cmd"`
	Data      map[string]map[string]string `json:"data"`
	Error     string                       `json:"error,omitempty"`
}

type xmlNode struct {
	XMLName xml.Name
	Attrs   []xml.Attr `xml:",any,attr"`
	Nodes   []xmlNode  `xml:",any"`
}

func (n xmlNode) attr(name string) string {
	for _, a := range n.Attrs {
		if a.Name.Local == name {
			return a.Value
		}
	}
	return ""
}

func (n xmlNode) attrsMap() map[string]string {
	out := make(map[string]string, len(n.Attrs))
	for _, a := range n.Attrs {
		out[a.Name.Local] = a.Value
	}
	return out
}

// ParseConfigReply parses a raw GetCfgReply XML body into a structured
// reply. Unlike the single-attribute lookups elsewhere in this package,
// a config reply carries nested per-domain elements that need a real tree
// walk, not a single regex.
func ParseConfigReply(body []byte) ConfigReply {
	var root xmlNode
	if err := xml.Unmarshal(body, &root); err != nil {
		return ConfigReply{Error: "xml parse error: " + err.Error()}
	}

	reply := findNode(root, "GetCfgReply")
	if reply == nil {
		return ConfigReply{Error: "no GetCfgReply element found"}
	}

	out := ConfigReply{
		ConfigLen: atoiOr(reply.attr("ConfigLen"), 0),
		Version:   reply.attr("Version"),
		CmdReply:  reply.attr("CmdReply"),
		AssistCmd: -1,
		Data:      make(map[string]map[string]string),
	}
	if out.CmdReply != "0" {
		out.Error = "DVR returned error " + out.CmdReply
		return out
	}

	for _, child := range reply.Nodes {
		if child.XMLName.Local == "CfgInfo" {
			out.MainCmd = atoiOr(child.attr("MainCommand"), 0)
			out.AssistCmd = atoiOr(child.attr("AssistCommand"), -1)
			continue
		}
		out.Data[child.XMLName.Local] = child.attrsMap()
	}
	return out
}

func findNode(n xmlNode, name string) *xmlNode {
	if n.XMLName.Local == name {
		return &n
	}
	for _, child := range n.Nodes {
		if found := findNode(child, name); found != nil {
			return found
		}
	}
	return nil
}

func atoiOr(s string, def int) int {
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}
