// Command drivesense runs the driving-behavior monitor: it reads
// accelerometer samples from a serial device (or replays a fixture file in
// dev mode), smooths and validates them, tracks the live trajectory,
// detects driving events and serves everything over HTTP.
package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/banshee-data/drivesense/internal/api"
	"github.com/banshee-data/drivesense/internal/config"
	"github.com/banshee-data/drivesense/internal/db"
	"github.com/banshee-data/drivesense/internal/sensor"
	"github.com/banshee-data/drivesense/internal/session"
	"github.com/banshee-data/drivesense/internal/stream"
	"github.com/banshee-data/drivesense/internal/timeutil"
	"github.com/banshee-data/drivesense/internal/trajectory"
	"github.com/banshee-data/drivesense/internal/version"
)

var (
	listen      = flag.String("listen", ":8080", "Listen address")
	devMode     = flag.Bool("dev", false, "Run in dev mode (replay fixtures instead of reading hardware)")
	fixtures    = flag.String("fixtures", "fixtures.txt", "Fixture file for dev mode")
	portName    = flag.String("port", "/dev/ttyACM0", "Serial port for the accelerometer")
	dbFile      = flag.String("db", "drivesense.db", "SQLite database file")
	tuningFile  = flag.String("config", "", "Optional tuning config (JSON)")
	autoSession = flag.Bool("auto-session", false, "Start a driving session immediately")
)

func main() {
	flag.Parse()
	log.Print(version.String())

	if *listen == "" {
		log.Fatal("Listen address is required")
	}

	tuning := &config.TuningConfig{}
	if *tuningFile != "" {
		var err error
		tuning, err = config.LoadTuningConfig(*tuningFile)
		if err != nil {
			log.Fatalf("failed to load tuning config: %v", err)
		}
	}

	clock := timeutil.RealClock{}

	var source sensor.Source
	if *devMode {
		source = sensor.NewReplaySource(*fixtures, tuning.GetThrottlePeriod(), clock, true)
	} else {
		source = sensor.NewSerialSource(*portName, clock)
	}

	database, err := db.NewDB(*dbFile)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer database.Close()

	sensorStream := stream.New(stream.Config{
		Source:           source,
		Clock:            clock,
		SmoothingWindow:  tuning.GetSmoothingWindow(),
		ThrottlePeriod:   tuning.GetThrottlePeriod(),
		SubscriberBuffer: tuning.GetSubscriberBuffer(),
	})
	if err := sensorStream.Initialize(); err != nil {
		log.Fatalf("failed to initialize sensor stream: %v", err)
	}
	defer sensorStream.Dispose()

	detector := session.NewDetector(database, clock)
	buffer := trajectory.NewBuffer(tuning.GetTrajectoryCapacity())
	mapper := trajectory.Mapper{
		ScaleX:  tuning.GetScaleX(),
		ScaleY:  tuning.GetScaleY(),
		CenterX: tuning.GetCenterX(),
		CenterY: tuning.GetCenterY(),
	}

	if *autoSession {
		if _, err := detector.StartSession(); err != nil {
			log.Fatalf("failed to start session: %v", err)
		}
	}

	var wg sync.WaitGroup
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Consume the reading stream: every smoothed reading feeds both the
	// trajectory buffer and the event detector.
	wg.Add(1)
	go func() {
		defer wg.Done()
		id, c := sensorStream.Subscribe()
		defer sensorStream.Unsubscribe(id)
		for {
			select {
			case e, ok := <-c:
				if !ok {
					log.Print("reading stream closed")
					return
				}
				if e.Err != nil {
					log.Printf("sensor stream error: %v", e.Err)
					continue
				}
				buffer.Add(mapper.Map(e.Reading))
				for _, event := range detector.HandleReading(e.Reading) {
					log.Printf("detected %s (%.2fg, -%d points)",
						event.Type, event.Magnitude, event.PenaltyPoints())
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	// HTTP server goroutine with graceful shutdown.
	wg.Add(1)
	go func() {
		defer wg.Done()

		server := &http.Server{
			Addr:    *listen,
			Handler: api.LoggingMiddleware(api.NewServer(database, sensorStream, detector, buffer, clock).ServeMux()),
		}

		go func() {
			log.Printf("listening on %s", *listen)
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatalf("failed to start server: %v", err)
			}
		}()

		<-ctx.Done()
		log.Println("shutting down HTTP server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("HTTP server shutdown error: %v", err)
		}
	}()

	wg.Wait()

	// Close out any session still running so it is not lost.
	if detector.Current() != nil {
		if _, err := detector.EndSession(context.Background()); err != nil {
			log.Printf("failed to end session on shutdown: %v", err)
		}
	}
}
