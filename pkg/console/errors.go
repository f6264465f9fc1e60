package console

import (
	"fmt"

	"nconsole/wsconsole/pkg/proto"
)

// ConnectError reports a failed dial. The client stays usable and dials again
// on the next logging call.
type ConnectError struct {
	Endpoint string
	Err      error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("connect to %s failed: %v", e.Endpoint, e.Err)
}

func (e *ConnectError) Unwrap() error { return e.Err }

// SendError reports a frame that was dropped on an existing connection.
type SendError struct {
	LogType proto.LogType
	Err     error
}

func (e *SendError) Error() string {
	return fmt.Sprintf("send %s message failed: %v", e.LogType, e.Err)
}

func (e *SendError) Unwrap() error { return e.Err }
