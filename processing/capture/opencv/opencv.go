// Package opencv reads camera and video frames through gocv.VideoCapture.
package opencv

import (
	"fmt"
	"image"
	"io"
	"sync"

	"gocv.io/x/gocv"

	"yoloface/processing/capture"
)

type Source struct {
	closeOnce sync.Once

	vc    *gocv.VideoCapture
	frame gocv.Mat
}

var _ capture.Source = (*Source)(nil)

// Open satisfies capture.Opener.
func Open(req capture.Request) (capture.Source, error) {
	var (
		vc  *gocv.VideoCapture
		err error
	)

	switch req.Kind {
	case capture.KindCamera:
		vc, err = gocv.VideoCaptureDevice(req.Camera)
	case capture.KindVideo:
		vc, err = gocv.VideoCaptureFile(req.Path)
	default:
		return nil, fmt.Errorf("%w: %s", capture.ErrUnsupported, req.Kind)
	}
	if err != nil {
		return nil, err
	}

	if !vc.IsOpened() {
		vc.Close()
		return nil, fmt.Errorf("cannot open source: %s", req)
	}

	return &Source{vc: vc, frame: gocv.NewMat()}, nil
}

// Read returns io.EOF when the capture yields no more frames.
func (s *Source) Read() (image.Image, error) {
	if ok := s.vc.Read(&s.frame); !ok || s.frame.Empty() {
		return nil, io.EOF
	}
	return s.frame.ToImage()
}

func (s *Source) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.frame.Close()
		err = s.vc.Close()
	})
	return err
}
