// Command syscontrol decodes the Kenwood SYSTEM CONTROL protocol from
// a capture of the DATA line and publishes annotations to MQTT.
//
// Captures can come from a WAV recording, a raw logic dump (one byte
// per sample), or live from a GPIO pin on Linux.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kripton/syscontrol/internal/decode"
	"github.com/kripton/syscontrol/internal/mqtt"
	"github.com/kripton/syscontrol/internal/source"
	"github.com/kripton/syscontrol/internal/status"
	"github.com/kripton/syscontrol/internal/web"
)

type options struct {
	wavPath   string
	rawPath   string
	rate      float64
	gpioPin   int
	gpioChip  string
	broker    string
	httpAddr  string
	wsBroker  string
	heartbeat time.Duration
	quiet     bool
}

func main() {
	var opts options
	flag.StringVar(&opts.wavPath, "wav", "", "WAV recording of the DATA line to decode")
	flag.StringVar(&opts.rawPath, "raw", "", `raw logic capture to decode, one byte per sample ("-" for stdin)`)
	flag.Float64Var(&opts.rate, "rate", 0, "sample rate in Hz (required for -raw and -gpio-pin)")
	flag.IntVar(&opts.gpioPin, "gpio-pin", -1, "BCM pin number of the DATA line for live capture")
	flag.StringVar(&opts.gpioChip, "gpio-chip", source.DefaultChip, "GPIO character device for live capture")
	flag.StringVar(&opts.broker, "broker", "", "MQTT broker address (empty to disable publishing)")
	flag.StringVar(&opts.httpAddr, "http", "", "HTTP status address (empty to disable)")
	flag.StringVar(&opts.wsBroker, "ws-broker", "=broker", `MQTT websocket URL for live UI ("=broker" derives from -broker, "off" disables)`)
	flag.DurationVar(&opts.heartbeat, "heartbeat", 15*time.Minute, "heartbeat interval for live capture (0 to disable)")
	flag.BoolVar(&opts.quiet, "quiet", false, "suppress per-annotation output")
	flag.Parse()

	opts.wsBroker = resolveWSBroker(opts.wsBroker, opts.broker)
	if err := run(opts); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}

func run(opts options) error {
	src, desc, err := openSource(opts)
	if err != nil {
		return err
	}
	defer src.Close()

	var publisher mqtt.Publisher
	var mqttStatus mqtt.ConnectionStatus
	if opts.broker != "" {
		real, err := mqtt.NewRealPublisher(opts.broker)
		if err != nil {
			return fmt.Errorf("init mqtt: %w", err)
		}
		publisher = real
		mqttStatus = real
		defer real.Close()
	}

	tracker := status.NewTracker(time.Now(), status.Config{
		SampleRateHz: src.SampleRate(),
		Source:       desc,
		Broker:       opts.broker,
		HTTPAddr:     opts.httpAddr,
		WSBroker:     opts.wsBroker,
		HeartbeatMs:  opts.heartbeat.Milliseconds(),
	})

	publishStatusEvent(publisher, tracker, "STARTUP", "")

	if opts.httpAddr != "" {
		srv := web.New(opts.httpAddr, tracker)
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Printf("http server error: %v", err)
			}
		}()
		defer srv.Shutdown(context.Background())
		log.Printf("http status server listening on %s", opts.httpAddr)
	}

	decoder := decode.NewDecoder(src.SampleRate())
	log.Printf("started: source=%s rate=%.0fHz broker=%s", desc, src.SampleRate(), opts.broker)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	return runLoop(decoder, src, publisher, mqttStatus, tracker, os.Stdout, opts.quiet, opts.heartbeat, sigCh)
}

// openSource selects and opens exactly one capture source. The
// returned description identifies the source in logs and status.
func openSource(opts options) (source.Source, string, error) {
	selected := 0
	if opts.wavPath != "" {
		selected++
	}
	if opts.rawPath != "" {
		selected++
	}
	if opts.gpioPin >= 0 {
		selected++
	}
	if selected == 0 {
		return nil, "", errors.New("no capture source: use -wav, -raw, or -gpio-pin")
	}
	if selected > 1 {
		return nil, "", errors.New("choose exactly one of -wav, -raw, -gpio-pin")
	}

	switch {
	case opts.wavPath != "":
		src, err := source.NewWAVSource(opts.wavPath)
		if err != nil {
			return nil, "", err
		}
		log.Printf("scanned %s: %d edges at %.0fHz", opts.wavPath, src.EdgeCount(), src.SampleRate())
		return src, "wav:" + opts.wavPath, nil

	case opts.rawPath != "":
		if opts.rawPath == "-" {
			return source.NewLogicSource(os.Stdin, opts.rate), "raw:stdin", nil
		}
		f, err := os.Open(opts.rawPath)
		if err != nil {
			return nil, "", fmt.Errorf("open capture: %w", err)
		}
		return source.NewLogicSource(f, opts.rate), "raw:" + opts.rawPath, nil

	default:
		src, err := source.NewGPIOSource(opts.gpioChip, opts.gpioPin, opts.rate)
		if err != nil {
			return nil, "", fmt.Errorf("init gpio capture: %w", err)
		}
		return src, fmt.Sprintf("gpio:%d", opts.gpioPin), nil
	}
}

// runLoop drives the decoder until the capture is exhausted or a
// signal arrives. Publish failures are logged, never fatal.
func runLoop(decoder *decode.Decoder, src source.Source, publisher mqtt.Publisher, mqttStatus mqtt.ConnectionStatus, tracker *status.Tracker, out io.Writer, quiet bool, heartbeat time.Duration, sig <-chan os.Signal) error {
	emit := func(a decode.Annotation) {
		if !quiet {
			fmt.Fprintln(out, annotationLine(a))
		}
		tracker.Observe(a)
		tracker.Update(decoder.CountsSnapshot())
		if publisher != nil {
			if err := publisher.Publish(a); err != nil {
				log.Printf("publish error: %v", err)
			}
		}
	}

	done := make(chan error, 1)
	go func() {
		done <- decoder.Run(src, emit)
	}()

	var hb <-chan time.Time
	if heartbeat > 0 {
		ticker := time.NewTicker(heartbeat)
		defer ticker.Stop()
		hb = ticker.C
	}

	for {
		select {
		case err := <-done:
			if err != nil {
				return fmt.Errorf("decode: %w", err)
			}
			counts := decoder.CountsSnapshot()
			log.Printf("capture complete: resets=%d words=%d skipped=%d",
				counts.Resets, counts.Words, counts.Skipped)
			tracker.Update(counts)
			tracker.SetFinished()
			if mqttStatus != nil {
				tracker.SetMQTTConnected(mqttStatus.IsConnected())
			}
			publishStatusEvent(publisher, tracker, "COMPLETE", "")
			return nil

		case s := <-sig:
			log.Printf("received %v, shutting down", s)
			// Closing the source unblocks the decode goroutine.
			src.Close()
			if err := <-done; err != nil {
				log.Printf("decode error during shutdown: %v", err)
			}
			if mqttStatus != nil {
				tracker.SetMQTTConnected(mqttStatus.IsConnected())
			}
			publishStatusEvent(publisher, tracker, "SHUTDOWN", signalName(s))
			return nil

		case <-hb:
			if mqttStatus != nil {
				tracker.SetMQTTConnected(mqttStatus.IsConnected())
			}
			snap := tracker.Snapshot()
			log.Printf("heartbeat: uptime=%v resets=%d words=%d",
				snap.Uptime().Truncate(time.Second), snap.Counts.Resets, snap.Counts.Words)
			publishStatusEvent(publisher, tracker, "HEARTBEAT", "")
		}
	}
}

// annotationLine renders one annotation for stdout.
func annotationLine(a decode.Annotation) string {
	return fmt.Sprintf("%8d %8d  %-7s %s", a.StartSample, a.EndSample, a.Level, a.Text)
}

func publishStatusEvent(publisher mqtt.Publisher, tracker *status.Tracker, event, reason string) {
	if publisher == nil {
		return
	}
	ev := mqtt.SystemEvent{
		Timestamp:  time.Now(),
		Event:      event,
		Reason:     reason,
		Retained:   event == "STARTUP" || event == "SHUTDOWN",
		RawPayload: status.FormatStatusEvent(tracker.Snapshot(), event, reason),
	}
	if err := publisher.PublishSystem(ev); err != nil {
		log.Printf("failed to publish %s event: %v", event, err)
	} else {
		log.Printf("published %s event", event)
	}
}

func signalName(s os.Signal) string {
	switch s {
	case syscall.SIGINT:
		return "SIGINT"
	case syscall.SIGTERM:
		return "SIGTERM"
	}
	return "UNKNOWN"
}

// resolveWSBroker converts the -ws-broker flag value into a concrete URL.
// "=broker" derives ws://host:9001 from the TCP broker address; empty
// broker or "off" disables the live UI.
func resolveWSBroker(ws, broker string) string {
	if ws == "off" {
		return ""
	}
	if ws != "=broker" {
		return ws
	}
	if broker == "" {
		return ""
	}
	u, err := url.Parse(broker)
	if err != nil {
		log.Printf("ws-broker: cannot parse -broker %q: %v", broker, err)
		return ""
	}
	u.Scheme = "ws"
	u.Host = u.Hostname() + ":9001"
	return u.String()
}
