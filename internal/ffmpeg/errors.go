package ffmpeg

import "fmt"

// ToolkitError reports a failed ffmpeg or ffprobe invocation
type ToolkitError struct {
	Operation string
	Message   string
	Err       error
}

func (e *ToolkitError) Error() string {
	switch {
	case e.Message != "" && e.Err != nil:
		return fmt.Sprintf("%s: %v: %s", e.Operation, e.Err, e.Message)
	case e.Message != "":
		return fmt.Sprintf("%s: %s", e.Operation, e.Message)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Operation, e.Err)
	default:
		return e.Operation + ": failed"
	}
}

func (e *ToolkitError) Unwrap() error { return e.Err }
