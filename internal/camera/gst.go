package camera

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/tinyzimmer/go-gst/gst"
	"github.com/tinyzimmer/go-gst/gst/app"
)

// GstConfig describes the capture pipeline. When Pipeline is set it is used
// verbatim and must end in an appsink named "out" producing image/jpeg;
// otherwise a default libcamera pipeline is built from the remaining fields.
type GstConfig struct {
	Pipeline string
	Device   string
	Width    int
	Height   int
	FPS      int
	Rotate   bool
}

// PipelineString returns the gst-launch description for cfg.
func (cfg GstConfig) PipelineString() string {
	if strings.TrimSpace(cfg.Pipeline) != "" {
		return cfg.Pipeline
	}
	parts := []string{
		fmt.Sprintf("libcamerasrc camera-name=%q", cfg.Device),
		fmt.Sprintf("video/x-raw,width=%d,height=%d,framerate=%d/1", cfg.Width, cfg.Height, cfg.FPS),
	}
	if cfg.Device == "" {
		parts[0] = "libcamerasrc"
	}
	if cfg.Rotate {
		// The stock mount holds the camera upside down.
		parts = append(parts, "videoflip method=rotate-180")
	}
	parts = append(parts,
		"videoconvert",
		"jpegenc",
		"appsink name=out max-buffers=1 drop=true sync=false",
	)
	return strings.Join(parts, " ! ")
}

// GstSource captures encoded frames through a GStreamer pipeline and feeds
// them into a Latest slot.
type GstSource struct {
	latest   *Latest
	pipeline *gst.Pipeline
	stop     chan struct{}
	log      zerolog.Logger
}

func NewGstSource(cfg GstConfig, log zerolog.Logger) (*GstSource, error) {
	gst.Init(nil)

	desc := cfg.PipelineString()
	pipeline, err := gst.NewPipelineFromString(desc)
	if err != nil {
		return nil, fmt.Errorf("camera: build pipeline: %w", err)
	}

	elem, err := pipeline.GetElementByName("out")
	if err != nil {
		return nil, fmt.Errorf("camera: pipeline has no appsink named \"out\": %w", err)
	}
	sink := app.SinkFromElement(elem)

	s := &GstSource{
		latest:   NewLatest(),
		pipeline: pipeline,
		stop:     make(chan struct{}),
		log:      log,
	}

	sink.SetCallbacks(&app.SinkCallbacks{
		NewSampleFunc: s.onSample,
	})

	if err := pipeline.SetState(gst.StatePlaying); err != nil {
		return nil, fmt.Errorf("camera: start pipeline: %w", err)
	}
	go s.watchBus()

	log.Info().Str("pipeline", desc).Msg("camera pipeline started")
	return s, nil
}

func (s *GstSource) onSample(sink *app.Sink) gst.FlowReturn {
	sample := sink.PullSample()
	if sample == nil {
		return gst.FlowOK
	}
	buffer := sample.GetBuffer()
	if buffer == nil {
		return gst.FlowOK
	}
	mapInfo := buffer.Map(gst.MapRead)
	data := mapInfo.Bytes()
	if len(data) == 0 {
		buffer.Unmap()
		return gst.FlowOK
	}
	// GStreamer reuses the buffer after Unmap.
	payload := make([]byte, len(data))
	copy(payload, data)
	buffer.Unmap()

	s.latest.Publish(payload)
	return gst.FlowOK
}

// watchBus turns pipeline errors and end-of-stream into a terminal fault.
func (s *GstSource) watchBus() {
	bus := s.pipeline.GetPipelineBus()
	for {
		select {
		case <-s.stop:
			return
		default:
		}
		msg := bus.TimedPop(100 * time.Millisecond)
		if msg == nil {
			continue
		}
		switch msg.Type() {
		case gst.MessageEOS:
			s.log.Warn().Msg("camera pipeline reached end of stream")
			s.latest.Fail(fmt.Errorf("%w: end of stream", ErrCameraFault))
			return
		case gst.MessageError:
			gerr := msg.ParseError()
			s.log.Error().Err(gerr).Msg("camera pipeline error")
			s.latest.Fail(fmt.Errorf("%w: %v", ErrCameraFault, gerr))
			return
		}
	}
}

func (s *GstSource) NextFrame(ctx context.Context) (Frame, error) {
	return s.latest.NextFrame(ctx)
}

// Drops reports frames overwritten before the pump consumed them.
func (s *GstSource) Drops() uint64 {
	return s.latest.Drops()
}

func (s *GstSource) Close() error {
	close(s.stop)
	_ = s.latest.Close()
	return s.pipeline.SetState(gst.StateNull)
}
