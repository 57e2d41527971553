package capture

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"io"
	"os/exec"
	"regexp"
	"runtime"
	"sync"

	"yoloface/internal/log"
)

const bytesPerPixel = 4

// FFmpegSource decodes a camera or video file in an ffmpeg subprocess and
// reads raw RGBA frames, already scaled to the target size, from its stdout.
type FFmpegSource struct {
	stopOnce sync.Once
	waitOnce sync.Once
	waitErr  error

	args   []string
	width  int
	height int

	cmd       *exec.Cmd
	stderr    bytes.Buffer
	frameChan chan image.Image
	errChan   chan error
	stopChan  chan struct{}
}

// NewFFmpegOpener returns an Opener producing frames of width x height.
func NewFFmpegOpener(width, height int) Opener {
	return func(req Request) (Source, error) {
		return OpenFFmpeg(req, width, height)
	}
}

func OpenFFmpeg(req Request, width, height int) (*FFmpegSource, error) {
	var input []string

	switch req.Kind {
	case KindVideo:
		srcW, srcH, err := probeVideoDimensions(req.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to probe video: %w", err)
		}
		log.Debug("probed video", "path", req.Path, "width", srcW, "height", srcH, "scaled_to", fmt.Sprintf("%dx%d", width, height))
		input = []string{"-i", req.Path}
	case KindCamera:
		device, err := cameraInput(req.Camera)
		if err != nil {
			return nil, err
		}
		input = device
	default:
		return nil, unsupported(req)
	}

	s := &FFmpegSource{
		args:      ffmpegArgs(input, width, height),
		width:     width,
		height:    height,
		frameChan: make(chan image.Image, 2),
		errChan:   make(chan error, 1),
		stopChan:  make(chan struct{}),
	}

	if err := s.start(); err != nil {
		return nil, err
	}
	return s, nil
}

func ffmpegArgs(input []string, width, height int) []string {
	args := append([]string{"-loglevel", "error"}, input...)
	return append(args,
		"-vf", fmt.Sprintf("scale=%d:%d", width, height),
		"-f", "image2pipe",
		"-pix_fmt", "rgba",
		"-vcodec", "rawvideo",
		"-",
	)
}

func cameraInput(index int) ([]string, error) {
	switch runtime.GOOS {
	case "windows":
		cameras, err := ListCameras()
		if err != nil {
			return nil, err
		}
		if index < 0 || index >= len(cameras) {
			return nil, fmt.Errorf("camera %d not found", index)
		}
		return []string{"-f", "dshow", "-i", fmt.Sprintf("video=%s", cameras[index])}, nil
	case "darwin":
		return []string{"-f", "avfoundation", "-framerate", "30", "-i", fmt.Sprintf("%d", index)}, nil
	default:
		return []string{"-f", "v4l2", "-i", fmt.Sprintf("/dev/video%d", index)}, nil
	}
}

func (s *FFmpegSource) start() error {
	s.cmd = exec.Command("ffmpeg", s.args...)
	s.cmd.Stderr = &s.stderr

	stdout, err := s.cmd.StdoutPipe()
	if err != nil {
		return err
	}

	if err := s.cmd.Start(); err != nil {
		return fmt.Errorf("ffmpeg start error: %w. Details: %s", err, s.stderr.String())
	}

	go s.readLoop(stdout)

	return nil
}

func (s *FFmpegSource) readLoop(stdout io.ReadCloser) {
	defer close(s.frameChan)
	defer close(s.errChan)
	defer s.wait()

	frameSize := s.width * s.height * bytesPerPixel
	buffer := make([]byte, frameSize)

	for {
		_, err := io.ReadFull(stdout, buffer)
		if err != nil {
			select {
			case <-s.stopChan:
				return
			default:
			}
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				if waitErr := s.wait(); waitErr != nil {
					s.errChan <- fmt.Errorf("ffmpeg: %w. Details: %s", waitErr, s.stderr.String())
				}
				return
			}
			s.errChan <- fmt.Errorf("read error: %v", err)
			return
		}

		pixelData := make([]byte, len(buffer))
		copy(pixelData, buffer)

		img := &image.RGBA{
			Pix:    pixelData,
			Stride: s.width * bytesPerPixel,
			Rect:   image.Rect(0, 0, s.width, s.height),
		}

		select {
		case s.frameChan <- img:
		case <-s.stopChan:
			return
		}
	}
}

func (s *FFmpegSource) wait() error {
	s.waitOnce.Do(func() {
		s.waitErr = s.cmd.Wait()
	})
	return s.waitErr
}

// Read blocks for the next frame and returns io.EOF after the last one.
func (s *FFmpegSource) Read() (image.Image, error) {
	frame, ok := <-s.frameChan
	if ok {
		return frame, nil
	}
	if err, ok := <-s.errChan; ok && err != nil {
		return nil, err
	}
	return nil, io.EOF
}

func (s *FFmpegSource) Close() error {
	s.stopOnce.Do(func() {
		close(s.stopChan)
		if s.cmd != nil && s.cmd.Process != nil {
			s.cmd.Process.Kill()
		}
	})
	return nil
}

type probeData struct {
	Streams []struct {
		Width  uint16 `json:"width"`
		Height uint16 `json:"height"`
	} `json:"streams"`
}

func probeVideoDimensions(path string) (uint16, uint16, error) {
	cmd := exec.Command("ffprobe",
		"-v", "error",
		"-select_streams", "v:0",
		"-show_entries", "stream=width,height",
		"-of", "json",
		path,
	)

	output, err := cmd.Output()
	if err != nil {
		return 0, 0, err
	}

	return parseProbe(output)
}

func parseProbe(output []byte) (uint16, uint16, error) {
	var data probeData
	if err := json.Unmarshal(output, &data); err != nil {
		return 0, 0, err
	}

	if len(data.Streams) == 0 {
		return 0, 0, fmt.Errorf("no video streams found")
	}

	w, h := data.Streams[0].Width, data.Streams[0].Height
	if w == 0 || h == 0 {
		return 0, 0, fmt.Errorf("video stream has no frame size (%dx%d)", w, h)
	}
	return w, h, nil
}

var dshowDeviceRe = regexp.MustCompile(`"([^"]+)"\s+\(video\)`)

// ListCameras returns the dshow video device names on Windows and the
// default v4l2 device paths elsewhere.
func ListCameras() ([]string, error) {
	if runtime.GOOS != "windows" {
		return []string{"/dev/video0", "/dev/video1"}, nil
	}

	cmd := exec.Command("ffmpeg", "-list_devices", "true", "-f", "dshow", "-i", "dummy")
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	cmd.Run()

	return parseDShowDevices(stderr.String()), nil
}

func parseDShowDevices(output string) []string {
	var cameras []string
	seen := make(map[string]bool)

	for _, m := range dshowDeviceRe.FindAllStringSubmatch(output, -1) {
		name := m[1]
		if name != "dummy" && !seen[name] {
			cameras = append(cameras, name)
			seen[name] = true
		}
	}
	return cameras
}
