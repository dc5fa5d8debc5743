package st2110

import "context"

// The source interfaces model the decoder boundary: the pipeline consumes
// decoded buffers with format metadata and never decodes itself. All three
// return io.EOF at the end of the underlying media; Seek rewinds and
// implicitly flushes any decoder state.

// VideoSource produces decoded video frames in presentation order.
type VideoSource interface {
	ReadFrame(ctx context.Context) (*VideoFrame, error)
	Seek(ns int64) error
	Close() error
}

// AudioSource produces decoded PCM chunks in presentation order.
type AudioSource interface {
	ReadChunk(ctx context.Context) (*AudioChunk, error)
	Seek(ns int64) error
	Close() error
}

// AncSource produces ancillary data packets, one per video frame/field.
type AncSource interface {
	ReadData(ctx context.Context) (*AncData, error)
	Seek(ns int64) error
	Close() error
}
