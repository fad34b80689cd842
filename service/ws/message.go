package ws

import (
	"encoding/json"
	"fmt"

	errs "KingShare/tools/errs"
)

// MessageType discriminates the closed set of frame variants exchanged
// over a connection. The wire format is one JSON object per frame:
//
//	{"type":"file_uploaded","payload":{"file_id":"...","filename":"a.txt","size":123}}
//
// Payload-free variants (ping/pong) omit the payload object entirely.
type MessageType string

const (
	// presence
	TypeUserOnline  MessageType = "user_online"
	TypeUserOffline MessageType = "user_offline"

	// in-band authentication
	TypeAuthenticate MessageType = "authenticate"
	TypeAuthResult   MessageType = "authentication_result"

	// domain notifications
	TypeFileUploaded    MessageType = "file_uploaded"
	TypeFileDeleted     MessageType = "file_deleted"
	TypeFileShared      MessageType = "file_shared"
	TypeShareAccessed   MessageType = "share_accessed"
	TypeShareExpired    MessageType = "share_expired"
	TypeUploadProgress  MessageType = "upload_progress"
	TypeDownloadStarted MessageType = "download_started"

	// system
	TypeSystemNotification MessageType = "system_notification"

	// liveness
	TypePing MessageType = "ping"
	TypePong MessageType = "pong"

	TypeError MessageType = "error"
)

var knownTypes = map[MessageType]struct{}{
	TypeUserOnline:         {},
	TypeUserOffline:        {},
	TypeAuthenticate:       {},
	TypeAuthResult:         {},
	TypeFileUploaded:       {},
	TypeFileDeleted:        {},
	TypeFileShared:         {},
	TypeShareAccessed:      {},
	TypeShareExpired:       {},
	TypeUploadProgress:     {},
	TypeDownloadStarted:    {},
	TypeSystemNotification: {},
	TypePing:               {},
	TypePong:               {},
	TypeError:              {},
}

// NotificationLevel grades a system notification.
type NotificationLevel string

const (
	LevelInfo    NotificationLevel = "info"
	LevelWarning NotificationLevel = "warning"
	LevelError   NotificationLevel = "error"
)

// Message is one frame. Outbound messages carry a typed payload struct
// (marshalled via its json tags); inbound messages carry the payload
// as a generic map, extracted into a typed struct by the handler that
// cares (tools/decode).
type Message struct {
	Type    MessageType `json:"type"`
	Payload any         `json:"payload,omitempty"`
}

// PayloadMap returns the payload of a decoded inbound frame.
func (m *Message) PayloadMap() map[string]any {
	if mp, ok := m.Payload.(map[string]any); ok {
		return mp
	}
	return map[string]any{}
}

// Encode renders the frame as wire JSON.
func (m *Message) Encode() ([]byte, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, errs.ErrInternal.WrapMsg("encode frame", "type", m.Type)
	}
	return data, nil
}

// ParseFrame decodes one inbound wire frame. Unknown or missing type
// discriminators are a Validation error; the caller logs and keeps the
// connection alive.
func ParseFrame(raw []byte) (*Message, error) {
	var frame struct {
		Type    MessageType    `json:"type"`
		Payload map[string]any `json:"payload"`
	}
	if err := json.Unmarshal(raw, &frame); err != nil {
		return nil, errs.ErrFrameInvalid.WrapMsg(err.Error())
	}
	if _, ok := knownTypes[frame.Type]; !ok {
		return nil, errs.ErrFrameInvalid.WrapMsg(fmt.Sprintf("unknown type %q", frame.Type))
	}
	msg := &Message{Type: frame.Type}
	if frame.Payload != nil {
		msg.Payload = frame.Payload
	}
	return msg, nil
}

// ---- payload structs (wire-stable field names) ----

type PresencePayload struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
}

type AuthenticatePayload struct {
	Token string `json:"token"`
}

type AuthResultPayload struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type FileUploadedPayload struct {
	FileID   string `json:"file_id"`
	Filename string `json:"filename"`
	Size     int64  `json:"size"`
}

type FileDeletedPayload struct {
	FileID   string `json:"file_id"`
	Filename string `json:"filename"`
}

type FileSharedPayload struct {
	ShareID    string `json:"share_id"`
	FileID     string `json:"file_id"`
	ShareToken string `json:"share_token"`
}

type ShareAccessedPayload struct {
	ShareID  string `json:"share_id"`
	FileID   string `json:"file_id"`
	Filename string `json:"filename"`
}

type ShareExpiredPayload struct {
	ShareID string `json:"share_id"`
	FileID  string `json:"file_id"`
}

type UploadProgressPayload struct {
	FileID        string `json:"file_id"`
	BytesUploaded int64  `json:"bytes_uploaded"`
	TotalBytes    int64  `json:"total_bytes"`
}

type DownloadStartedPayload struct {
	FileID   string `json:"file_id"`
	Filename string `json:"filename"`
}

type SystemNotificationPayload struct {
	Title   string            `json:"title"`
	Message string            `json:"message"`
	Level   NotificationLevel `json:"level"`
}

type ErrorPayload struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// ---- server-side frame constructors ----

func BuildPing() *Message { return &Message{Type: TypePing} }
func BuildPong() *Message { return &Message{Type: TypePong} }

func BuildUserOnline(userID, username string) *Message {
	return &Message{Type: TypeUserOnline, Payload: PresencePayload{UserID: userID, Username: username}}
}

func BuildUserOffline(userID, username string) *Message {
	return &Message{Type: TypeUserOffline, Payload: PresencePayload{UserID: userID, Username: username}}
}

func BuildAuthResult(success bool, detail string) *Message {
	return &Message{Type: TypeAuthResult, Payload: AuthResultPayload{Success: success, Message: detail}}
}

func BuildSystemNotification(title, body string, level NotificationLevel) *Message {
	return &Message{Type: TypeSystemNotification, Payload: SystemNotificationPayload{
		Title: title, Message: body, Level: level,
	}}
}

func BuildError(code int, detail string) *Message {
	return &Message{Type: TypeError, Payload: ErrorPayload{Code: code, Message: detail}}
}
