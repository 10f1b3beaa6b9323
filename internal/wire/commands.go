package wire

// Command IDs carried in the XML body's <Command ID="..."> attribute.
const (
	CmdUserLogin         = 24
	CmdUserLoginReply    = 25
	CmdLoginGetFlag      = 26
	CmdLoginGetFlagReply = 27
	CmdLogout            = 28
	CmdLogoutReply       = 29

	CmdGetCfg      = 14
	CmdGetCfgReply = 15

	CmdHeartBeatNotice = 78
	CmdHeartBeatReply  = 79

	CmdRealStreamCreate      = 136
	CmdRealStreamCreateReply = 137
	CmdRealStreamStart       = 138
	CmdRealStreamStartReply  = 139
	CmdRealStreamStop        = 140
	CmdRealStreamStopReply   = 141
	CmdRealStreamDestroy     = 142
	CmdRealStreamDestroyReply = 143
)
