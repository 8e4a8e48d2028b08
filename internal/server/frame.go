package server

import "qvcs-go/internal/qvcs"

// Frame types written to clients.
const (
	FrameResponse     = "response"
	FrameNotification = "notification"
)

// Frame is one server-to-client message. Clients send bare qvcs.Request
// objects; the server answers each with a response frame and may interleave
// notification frames between responses, never ahead of the response that
// caused them.
type Frame struct {
	Type         string             `json:"type"`
	Response     *qvcs.Response     `json:"response,omitempty"`
	Notification *qvcs.Notification `json:"notification,omitempty"`
}
