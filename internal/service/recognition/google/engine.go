// Package google provides a recognition engine backed by Google Cloud
// Speech-to-Text streaming recognition.
package google

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"sync"
	"time"

	speech "cloud.google.com/go/speech/apiv1"
	"cloud.google.com/go/speech/apiv1/speechpb"
	"github.com/rs/zerolog"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"voice-journal/internal/observability/logging"
	"voice-journal/internal/service/recognition"
)

// Provider is the configuration name of this engine.
const Provider = "google"

// Config holds Google STT configuration.
type Config struct {
	LanguageCode   string
	SampleRateHz   int32
	InterimResults bool
	AudioEncoding  string // LINEAR16, MULAW, FLAC, etc.

	// ChunkSize is the number of audio bytes per streaming request.
	ChunkSize int
	// ChunkInterval paces audio to real time. Zero sends as fast as possible.
	ChunkInterval time.Duration
}

// DefaultConfig returns default Google STT configuration.
func DefaultConfig() Config {
	return Config{
		LanguageCode:   "en-US",
		SampleRateHz:   8000,
		InterimResults: true,
		AudioEncoding:  "LINEAR16",
		ChunkSize:      1600, // 100ms of 8kHz 16-bit mono
		ChunkInterval:  100 * time.Millisecond,
	}
}

// parseAudioEncoding converts string encoding to protobuf enum.
func parseAudioEncoding(encoding string) speechpb.RecognitionConfig_AudioEncoding {
	switch encoding {
	case "LINEAR16":
		return speechpb.RecognitionConfig_LINEAR16
	case "MULAW":
		return speechpb.RecognitionConfig_MULAW
	case "FLAC":
		return speechpb.RecognitionConfig_FLAC
	case "AMR":
		return speechpb.RecognitionConfig_AMR
	case "AMR_WB":
		return speechpb.RecognitionConfig_AMR_WB
	case "OGG_OPUS":
		return speechpb.RecognitionConfig_OGG_OPUS
	case "SPEEX_WITH_HEADER_BYTE":
		return speechpb.RecognitionConfig_SPEEX_WITH_HEADER_BYTE
	case "WEBM_OPUS":
		return speechpb.RecognitionConfig_WEBM_OPUS
	default:
		return speechpb.RecognitionConfig_LINEAR16
	}
}

type streamOpener func(ctx context.Context) (speechpb.Speech_StreamingRecognizeClient, error)

// Engine implements recognition.Engine over a streaming recognize call per run.
type Engine struct {
	cfg    Config
	source AudioSource
	open   streamOpener
	client *speech.Client
	log    zerolog.Logger

	mu     sync.Mutex
	active bool
	cancel context.CancelFunc
	runID  uint64
}

// New creates a Google engine reading audio from source.
// Requires GOOGLE_APPLICATION_CREDENTIALS environment variable to be set.
func New(ctx context.Context, cfg Config, source AudioSource) (*Engine, error) {
	c, err := speech.NewClient(ctx)
	if err != nil {
		return nil, err
	}
	e := newEngine(cfg, source, func(ctx context.Context) (speechpb.Speech_StreamingRecognizeClient, error) {
		return c.StreamingRecognize(ctx)
	})
	e.client = c
	return e, nil
}

func newEngine(cfg Config, source AudioSource, open streamOpener) *Engine {
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = DefaultConfig().ChunkSize
	}
	return &Engine{
		cfg:    cfg,
		source: source,
		open:   open,
		log:    logging.WithComponent("recognition").With().Str("provider", Provider).Logger(),
	}
}

// Close releases the Speech client.
func (e *Engine) Close() error {
	_ = e.Stop()
	if e.client != nil {
		return e.client.Close()
	}
	return nil
}

// Start opens the audio source and a streaming recognize call, then sends the
// streaming config as the first message.
func (e *Engine) Start(ctx context.Context, generation uint64, sink recognition.Sink) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.active {
		return recognition.ErrAlreadyActive
	}

	audio, err := e.source.Open(ctx)
	if err != nil {
		return recognition.NewEngineError(sourceErrorKind(err), err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	stream, err := e.open(runCtx)
	if err != nil {
		cancel()
		audio.Close()
		return recognition.NewEngineError(streamErrorKind(err), err)
	}

	err = stream.Send(&speechpb.StreamingRecognizeRequest{
		StreamingRequest: &speechpb.StreamingRecognizeRequest_StreamingConfig{
			StreamingConfig: &speechpb.StreamingRecognitionConfig{
				Config: &speechpb.RecognitionConfig{
					Encoding:        parseAudioEncoding(e.cfg.AudioEncoding),
					SampleRateHertz: e.cfg.SampleRateHz,
					LanguageCode:    e.cfg.LanguageCode,
				},
				InterimResults: e.cfg.InterimResults,
			},
		},
	})
	if err != nil {
		cancel()
		audio.Close()
		return recognition.NewEngineError(streamErrorKind(err), err)
	}

	e.runID++
	e.active = true
	e.cancel = cancel

	log := logging.WithEngine(Provider, generation)
	log.Info().
		Str("language", e.cfg.LanguageCode).
		Int32("sampleRateHz", e.cfg.SampleRateHz).
		Msg("Streaming recognition started")

	go e.pump(runCtx, stream, audio, log)
	go e.receive(runCtx, e.runID, generation, stream, audio, sink, log)
	return nil
}

// Stop cancels the active stream. The run still delivers its End event.
func (e *Engine) Stop() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.active {
		return nil
	}
	e.cancel()
	e.active = false
	e.cancel = nil
	return nil
}

// pump sends audio until the source is exhausted or the run is cancelled.
func (e *Engine) pump(ctx context.Context, stream speechpb.Speech_StreamingRecognizeClient, audio io.Reader, log zerolog.Logger) {
	buf := make([]byte, e.cfg.ChunkSize)
	var sent int64
	for {
		n, err := audio.Read(buf)
		if n > 0 {
			sendErr := stream.Send(&speechpb.StreamingRecognizeRequest{
				StreamingRequest: &speechpb.StreamingRecognizeRequest_AudioContent{
					AudioContent: append([]byte(nil), buf[:n]...),
				},
			})
			if sendErr != nil {
				// Recv reports the stream failure.
				return
			}
			sent += int64(n)
		}
		if err != nil {
			if !errors.Is(err, io.EOF) && ctx.Err() == nil {
				log.Warn().Err(err).Msg("Audio source read failed")
			}
			break
		}
		if e.cfg.ChunkInterval > 0 {
			t := time.NewTimer(e.cfg.ChunkInterval)
			select {
			case <-ctx.Done():
				t.Stop()
				return
			case <-t.C:
			}
		}
	}
	log.Debug().Int64("bytes", sent).Msg("Audio source exhausted")
	if err := stream.CloseSend(); err != nil {
		log.Warn().Err(err).Msg("CloseSend failed")
	}
}

// receive translates responses into events and always finishes with End.
func (e *Engine) receive(ctx context.Context, id, gen uint64, stream speechpb.Speech_StreamingRecognizeClient, audio io.Closer, sink recognition.Sink, log zerolog.Logger) {
	defer func() {
		e.mu.Lock()
		if e.active && e.runID == id {
			e.active = false
			e.cancel()
			e.cancel = nil
		}
		e.mu.Unlock()
		audio.Close()
		log.Info().Msg("Streaming recognition ended")
		sink.Deliver(recognition.End(gen))
	}()

	for {
		resp, err := stream.Recv()
		if err != nil {
			if kind, failed := recvErrorKind(ctx, err); failed {
				log.Warn().Err(err).Str("kind", kind.String()).Msg("Streaming recognition failed")
				sink.Deliver(recognition.Failure(gen, kind))
			}
			return
		}
		if st := resp.GetError(); st != nil && codes.Code(st.GetCode()) != codes.OK {
			kind := codeErrorKind(codes.Code(st.GetCode()))
			log.Warn().Str("message", st.GetMessage()).Str("kind", kind.String()).Msg("Recognition error response")
			sink.Deliver(recognition.Failure(gen, kind))
			return
		}

		for _, r := range resp.GetResults() {
			if len(r.GetAlternatives()) == 0 {
				continue
			}
			alt := r.GetAlternatives()[0]
			if r.GetIsFinal() {
				sink.Deliver(recognition.Final(gen, alt.GetTranscript(), float64(alt.GetConfidence())))
			} else {
				sink.Deliver(recognition.Interim(gen, alt.GetTranscript()))
			}
		}
	}
}

// recvErrorKind classifies a Recv error. failed is false when the run simply
// ended: source exhausted, streaming limit reached or stopped by the caller.
func recvErrorKind(ctx context.Context, err error) (kind recognition.ErrorKind, failed bool) {
	if errors.Is(err, io.EOF) || ctx.Err() != nil {
		return recognition.Unknown, false
	}
	switch code := status.Code(err); code {
	case codes.OutOfRange, codes.DeadlineExceeded, codes.Canceled:
		return recognition.Unknown, false
	default:
		return codeErrorKind(code), true
	}
}

func codeErrorKind(code codes.Code) recognition.ErrorKind {
	switch code {
	case codes.PermissionDenied, codes.Unauthenticated:
		return recognition.PermissionDenied
	case codes.Unavailable:
		return recognition.NetworkUnavailable
	case codes.InvalidArgument, codes.FailedPrecondition, codes.Unimplemented:
		return recognition.Unknown
	default:
		return recognition.AbortedByPlatform
	}
}

func streamErrorKind(err error) recognition.ErrorKind {
	if _, ok := status.FromError(err); !ok {
		return recognition.NetworkUnavailable
	}
	return codeErrorKind(status.Code(err))
}

func sourceErrorKind(err error) recognition.ErrorKind {
	switch {
	case errors.Is(err, fs.ErrPermission):
		return recognition.PermissionDenied
	case errors.Is(err, fs.ErrNotExist):
		return recognition.NoMicrophone
	default:
		return recognition.Unknown
	}
}
