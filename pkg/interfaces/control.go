package interfaces

// 控制通道命令类型
const (
	CmdPlay        = "play"
	CmdStop        = "stop"
	CmdStatus      = "status"
	CmdRecordStart = "record_start"
	CmdRecordStop  = "record_stop"
	CmdPlayRecord  = "play_record"
)

// 控制通道事件类型
const (
	EventLoading  = "loading"
	EventStart    = "start"
	EventStop     = "stop"
	EventStatus   = "status"
	EventRecorded = "recorded"
	EventError    = "error"
)

// Command 客户端发往服务端的 JSON 文本帧
type Command struct {
	Type   string `json:"type"`
	ID     string `json:"id,omitempty"`
	Source string `json:"source,omitempty"`
}

// Media 事件中携带的媒体信息
type Media struct {
	ID     string `json:"id"`
	Source string `json:"source"`
}

// Status 服务端状态快照
type Status struct {
	State     string `json:"state"`
	Current   *Media `json:"current,omitempty"`
	Recording bool   `json:"recording"`
	LastFile  string `json:"last_file,omitempty"`
	SessionID int    `json:"session_id"`
}

// Event 服务端推送给客户端的 JSON 文本帧
type Event struct {
	Type    string  `json:"type"`
	Media   *Media  `json:"media,omitempty"`
	IsError bool    `json:"is_error,omitempty"`
	Status  *Status `json:"status,omitempty"`
	Path    string  `json:"path,omitempty"`
	Message string  `json:"message,omitempty"`
}
