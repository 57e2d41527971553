package detector

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/jpeg"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"yoloface/internal/log"
	"yoloface/internal/models"
)

const remoteTimeout = 10 * time.Second

// RemoteDetector sends each frame as a JPEG binary message to a detection
// server and reads back one JSON array of detections per frame. Boxes on the
// wire are normalized [ymin, xmin, ymax, xmax].
type RemoteDetector struct {
	serverURL string
	dialer    *websocket.Dialer

	mu   sync.Mutex
	conn *websocket.Conn
}

type remoteDetection struct {
	Label      string    `json:"label"`
	ClassID    int       `json:"class_id"`
	Confidence float32   `json:"confidence"`
	Box        []float32 `json:"box"`
}

var _ Detector = (*RemoteDetector)(nil)

func NewRemoteDetector(host string) *RemoteDetector {
	u := url.URL{Scheme: "ws", Host: host, Path: "/ws"}

	return &RemoteDetector{
		serverURL: u.String(),
		dialer:    websocket.DefaultDialer,
	}
}

// Detect is serialized; the server answers frames in the order it gets them.
// A failed exchange drops the connection and the next call dials again.
func (d *RemoteDetector) Detect(ctx context.Context, frame image.Image) (*models.Result, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, frame, nil); err != nil {
		return nil, fmt.Errorf("jpeg encode: %w", err)
	}

	conn, err := d.connect(ctx)
	if err != nil {
		return nil, err
	}

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(remoteTimeout)
	}
	conn.SetWriteDeadline(deadline)
	conn.SetReadDeadline(deadline)

	// Closing the connection is the only way to unblock ReadMessage early.
	stop := context.AfterFunc(ctx, func() {
		conn.Close()
	})
	defer stop()

	if err := conn.WriteMessage(websocket.BinaryMessage, buf.Bytes()); err != nil {
		d.drop(err)
		return nil, fmt.Errorf("send frame: %w", err)
	}

	_, message, err := conn.ReadMessage()
	if err != nil {
		d.drop(err)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("read detections: %w", err)
	}

	if !stop() {
		// cancelled after the reply arrived; the connection is already closed
		d.conn = nil
	}

	var wire []remoteDetection
	if err := json.Unmarshal(message, &wire); err != nil {
		return nil, fmt.Errorf("decode detections: %w", err)
	}

	return &models.Result{
		Frame:      frame,
		Detections: fromWire(wire, frame.Bounds()),
	}, nil
}

func (d *RemoteDetector) connect(ctx context.Context) (*websocket.Conn, error) {
	if d.conn != nil {
		return d.conn, nil
	}

	log.Debug("connecting to detector server", "url", d.serverURL)
	conn, _, err := d.dialer.DialContext(ctx, d.serverURL, nil)
	if err != nil {
		return nil, fmt.Errorf("connect to detector server %s: %w", d.serverURL, err)
	}
	log.Info("connected to detection server", "url", d.serverURL)

	d.conn = conn
	return conn, nil
}

func (d *RemoteDetector) drop(err error) {
	log.Warn("detector connection lost", "url", d.serverURL, "err", err)
	d.conn.Close()
	d.conn = nil
}

func (d *RemoteDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.conn == nil {
		return nil
	}
	d.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	err := d.conn.Close()
	d.conn = nil
	return err
}

func fromWire(wire []remoteDetection, bounds image.Rectangle) []models.DetectionResult {
	imgWidth := float32(bounds.Dx())
	imgHeight := float32(bounds.Dy())

	out := make([]models.DetectionResult, 0, len(wire))
	for _, res := range wire {
		if len(res.Box) < 4 {
			continue
		}
		out = append(out, models.DetectionResult{
			Label:      res.Label,
			ClassID:    res.ClassID,
			Confidence: res.Confidence,
			Box: models.Box{
				Y1: int(res.Box[0] * imgHeight),
				X1: int(res.Box[1] * imgWidth),
				Y2: int(res.Box[2] * imgHeight),
				X2: int(res.Box[3] * imgWidth),
			},
		})
	}
	return out
}
