package narrative

import "fmt"

// RemoteAssetProcessingError means the collaborator's file upload or remote
// processing failed or timed out.
type RemoteAssetProcessingError struct {
	Name   string
	Reason string
}

func (e *RemoteAssetProcessingError) Error() string {
	return fmt.Sprintf("remote asset %s: %s", e.Name, e.Reason)
}

// ResponseParseError means the collaborator's output carried no extractable
// JSON object. Raw keeps the full text so the caller can surface it as-is.
type ResponseParseError struct {
	Raw string
	Err error
}

func (e *ResponseParseError) Error() string {
	return fmt.Sprintf("no JSON object in response: %v", e.Err)
}

func (e *ResponseParseError) Unwrap() error {
	return e.Err
}
