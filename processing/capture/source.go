package capture

import (
	"errors"
	"fmt"
	"image"
	"strconv"
)

type Kind string

const (
	KindCamera Kind = "camera"
	KindVideo  Kind = "video"
	KindImage  Kind = "image"
)

var (
	VideoExtensions = []string{".mp4", ".avi", ".mov", ".mkv"}
	ImageExtensions = []string{".jpg", ".jpeg", ".png"}
)

// ErrUnsupported is returned by an Opener for request kinds it cannot stream.
var ErrUnsupported = errors.New("capture: unsupported source")

// Request names what a job should read from.
type Request struct {
	Kind   Kind
	Camera int
	Path   string
}

func CameraRequest(index int) Request {
	return Request{Kind: KindCamera, Camera: index}
}

func VideoRequest(path string) Request {
	return Request{Kind: KindVideo, Path: path}
}

func ImageRequest(path string) Request {
	return Request{Kind: KindImage, Path: path}
}

// String describes the source the way it is shown to the user.
func (r Request) String() string {
	if r.Kind == KindCamera {
		return "camera " + strconv.Itoa(r.Camera)
	}
	return r.Path
}

// Source produces frames in acquisition order. Read returns io.EOF once the
// source is exhausted. Close releases the capture handle and is safe to call
// more than once.
type Source interface {
	Read() (image.Image, error)
	Close() error
}

// Opener opens the capture handle for a camera or video request.
type Opener func(req Request) (Source, error)

func unsupported(req Request) error {
	return fmt.Errorf("%w: %s", ErrUnsupported, req.Kind)
}
