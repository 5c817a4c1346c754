package media

import "fmt"

// MediaDecodeError means a video source could not be opened or decoded at
// all. Per-frame problems are not this error; they are reported frame by
// frame so the sampling loop can continue.
type MediaDecodeError struct {
	Path string
	Err  error
}

func (e *MediaDecodeError) Error() string {
	return fmt.Sprintf("cannot decode video %s: %v", e.Path, e.Err)
}

func (e *MediaDecodeError) Unwrap() error {
	return e.Err
}

// AudioDecodeError means an audio source could not be decoded to PCM.
type AudioDecodeError struct {
	Path string
	Err  error
}

func (e *AudioDecodeError) Error() string {
	return fmt.Sprintf("cannot decode audio %s: %v", e.Path, e.Err)
}

func (e *AudioDecodeError) Unwrap() error {
	return e.Err
}
