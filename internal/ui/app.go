package ui

import (
	"context"
	"fmt"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/storage"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"

	"yoloface/internal/config"
	"yoloface/internal/log"
	"yoloface/internal/ui/cwidget"
	"yoloface/processing/capture"
	"yoloface/processing/job"
)

const shutdownTimeout = 3 * time.Second

// Launcher starts and tracks detection jobs.
type Launcher interface {
	Start(req capture.Request) *job.Handle
	Active() []*job.Handle
	Shutdown(ctx context.Context) error
}

// Picker asks the user for a file of the given kind and calls onChosen with
// its path. onChosen is not called when the user cancels.
type Picker func(kind capture.Kind, onChosen func(path string))

type Shell struct {
	fyneApp fyne.App
	mainWin fyne.Window

	config *config.Config
	jobs   Launcher
	pick   Picker

	videoBtn    *widget.Button
	imageBtn    *widget.Button
	cameraBtn   *widget.Button
	cameraInput *cwidget.Input[int]
	statusLabel *widget.Label

	stopChan chan struct{}
}

func NewShell(a fyne.App, cfg *config.Config) *Shell {
	w := a.NewWindow(cfg.WindowTitle)

	s := &Shell{
		fyneApp:  a,
		mainWin:  w,
		config:   cfg,
		stopChan: make(chan struct{}),
	}
	s.pick = s.pickFile
	s.build()

	return s
}

// SetLauncher wires the job manager. It must be called before Run.
func (s *Shell) SetLauncher(l Launcher) {
	s.jobs = l
}

func (s *Shell) Window() fyne.Window {
	return s.mainWin
}

// ReportError shows err in a dialog on the main window. Safe to call from any
// goroutine.
func (s *Shell) ReportError(err error) {
	fyne.Do(func() {
		dialog.ShowError(err, s.mainWin)
	})
}

func (s *Shell) build() {
	title := widget.NewLabelWithStyle("YOLOv8 Face Recognition", fyne.TextAlignCenter, fyne.TextStyle{Bold: true})
	title.SizeName = theme.SizeNameSubHeadingText

	s.videoBtn = widget.NewButtonWithIcon("Choose Video File", theme.FolderOpenIcon(), s.ChooseVideo)
	s.videoBtn.Importance = widget.HighImportance

	s.imageBtn = widget.NewButtonWithIcon("Choose Image File", theme.FileImageIcon(), s.ChooseImage)

	s.cameraBtn = widget.NewButtonWithIcon("Use Camera", theme.MediaVideoIcon(), s.UseCamera)
	s.cameraBtn.Importance = widget.SuccessImportance

	s.cameraInput = cwidget.NewIntInput(
		"Camera",
		"Camera index",
		s.config.GetCameraIndex(),
		0,
		func(i int) {
			s.config.SetCameraIndex(i)
		},
	)

	s.statusLabel = widget.NewLabel(s.formatStatus(nil))

	footer := widget.NewLabelWithStyle("Press 'Q' to quit detection window", fyne.TextAlignCenter, fyne.TextStyle{Italic: true})
	footer.Importance = widget.LowImportance

	content := container.NewBorder(
		title,
		container.NewVBox(s.statusLabel, footer),
		nil, nil,
		container.NewVBox(
			s.videoBtn,
			s.imageBtn,
			container.NewBorder(nil, nil, nil, s.cameraBtn, s.cameraInput),
		),
	)

	s.mainWin.SetContent(container.NewPadded(content))
	s.mainWin.Resize(fyne.NewSize(400, 250))
	s.mainWin.SetFixedSize(true)
	s.mainWin.SetCloseIntercept(s.shutdown)
}

func (s *Shell) Run() {
	go s.runStatLoop()

	s.mainWin.CenterOnScreen()
	s.mainWin.ShowAndRun()
}

// ChooseVideo opens a video picker and starts a job for the chosen file.
func (s *Shell) ChooseVideo() {
	s.pick(capture.KindVideo, func(path string) {
		s.start(capture.VideoRequest(path))
	})
}

// ChooseImage opens an image picker and starts a job for the chosen file.
func (s *Shell) ChooseImage() {
	s.pick(capture.KindImage, func(path string) {
		s.start(capture.ImageRequest(path))
	})
}

// UseCamera starts a job on the configured camera.
func (s *Shell) UseCamera() {
	s.start(capture.CameraRequest(s.config.GetCameraIndex()))
}

func (s *Shell) start(req capture.Request) {
	if s.jobs == nil {
		s.ReportError(fmt.Errorf("detector is not ready"))
		return
	}
	h := s.jobs.Start(req)
	log.Debug("job requested", "job_id", h.ID, "source", req.String())
	s.refreshStatus()
}

func (s *Shell) pickFile(kind capture.Kind, onChosen func(path string)) {
	exts := capture.VideoExtensions
	if kind == capture.KindImage {
		exts = capture.ImageExtensions
	}

	d := dialog.NewFileOpen(func(reader fyne.URIReadCloser, err error) {
		if err != nil {
			dialog.ShowError(err, s.mainWin)
			return
		}
		if reader == nil {
			return
		}
		path := reader.URI().Path()
		reader.Close()
		onChosen(path)
	}, s.mainWin)

	d.SetFilter(storage.NewExtensionFileFilter(exts))
	d.Resize(fyne.NewSize(800, 600))
	d.Show()
}

func (s *Shell) runStatLoop() {
	uiTicker := time.NewTicker(500 * time.Millisecond)
	defer uiTicker.Stop()

	for {
		select {
		case <-uiTicker.C:
			fyne.Do(s.refreshStatus)
		case <-s.stopChan:
			return
		}
	}
}

func (s *Shell) refreshStatus() {
	var active []*job.Handle
	if s.jobs != nil {
		active = s.jobs.Active()
	}
	s.statusLabel.SetText(s.formatStatus(active))
}

func (s *Shell) formatStatus(active []*job.Handle) string {
	if len(active) == 0 {
		return "No active detections"
	}

	latest := active[len(active)-1]
	stats := latest.Stats()
	return fmt.Sprintf("Active: %d | %s: %d frames, %d ms",
		len(active), latest.Request, stats.Frames(), stats.Latency().Milliseconds())
}

// shutdown saves the config, stops every job and quits. Jobs are waited for
// off the UI goroutine since their windows close through it.
func (s *Shell) shutdown() {
	select {
	case <-s.stopChan:
		return
	default:
		close(s.stopChan)
	}

	if err := s.config.SaveByDefault(); err != nil {
		log.Warn("could not save config", "err", err)
	}

	go func() {
		if s.jobs != nil {
			ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := s.jobs.Shutdown(ctx); err != nil {
				log.Warn("shutdown did not finish", "err", err)
			}
		}
		fyne.Do(s.fyneApp.Quit)
	}()
}
