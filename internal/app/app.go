// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/Azure/iot-operations-sdks/go/mqtt"
	"github.com/Azure/iot-operations-sdks/go/protocol"
	"github.com/Azure/iot-operations-sdks/go/services/statestore"
	"github.com/sakura/springbreak/chooser"
	"github.com/sakura/springbreak/config"
	"github.com/sakura/springbreak/internal/options"
	"github.com/sakura/springbreak/language"
	"github.com/sakura/springbreak/motion"
	"github.com/sakura/springbreak/speech"
)

type (
	// Application runs the shake-to-choose service: motion telemetry in, pins
	// out, and translation commands, over MQTT and optionally WebSocket.
	Application struct {
		cfg      *config.Config
		services *Services
		chooser  *chooser.Chooser
		registry *motion.Registry
		ws       *motion.WebSocketHandler
		handlers *Handlers

		app              *protocol.Application
		mqttClient       protocol.MqttClient
		session          *mqtt.SessionClient
		stateStoreClient *statestore.Client[string, []byte]
		motionReceiver   *protocol.TelemetryReceiver[motion.Sample]
		pinSender        *protocol.TelemetrySender[chooser.Pin]
		listeners        []listener

		server    *http.Server
		stopSweep context.CancelFunc

		log *slog.Logger
	}

	// Option represents a single application option.
	Option interface{ application(*Options) }

	// Options are the resolved application options.
	Options struct {
		// MQTTClient replaces the session client read from the environment.
		// The caller starts and stops it.
		MQTTClient protocol.MqttClient

		// Services replaces the backends built from configuration.
		Services *Services
	}

	// WithMQTTClient uses an existing MQTT client.
	WithMQTTClient struct{ protocol.MqttClient }

	// WithServices uses existing backends.
	WithServices struct{ *Services }

	listener interface {
		Start(context.Context) error
		Close()
	}
)

const shutdownTimeout = 5 * time.Second

// NewApplication creates the application from configuration. Unless a client
// is provided, MQTT connection settings are read from the AIO_* environment.
func NewApplication(
	ctx context.Context,
	cfg *config.Config,
	log *slog.Logger,
	opt ...Option,
) (*Application, error) {
	var opts Options
	opts.Apply(opt)

	a := &Application{
		cfg:        cfg,
		services:   opts.Services,
		mqttClient: opts.MQTTClient,
		log:        log,
	}
	if err := a.setup(ctx); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *Application) setup(ctx context.Context) error {
	cfg, log := a.cfg, a.log

	var err error

	if a.services == nil {
		a.services, err = NewServices(ctx, cfg, log)
		if err != nil {
			return fmt.Errorf("failed to create services: %w", err)
		}
	}

	var store chooser.Store = chooser.NewMemoryStore()
	if cfg.MQTT.Enabled {
		if err := a.connect(); err != nil {
			return err
		}
		if a.stateStoreClient != nil {
			store = chooser.NewStateStore(a.stateStoreClient, log)
		}
	}

	opts := a.services.ChooserOptions(cfg, log)
	if a.pinSender != nil {
		opts = append(opts, chooser.WithPublisher{
			Publisher: chooser.PublisherFunc(a.publishPin),
		})
	}
	a.chooser, err = chooser.New(
		cfg.Languages,
		store,
		a.services.Searcher,
		a.services.Translator,
		opts...,
	)
	if err != nil {
		return fmt.Errorf("failed to create chooser: %w", err)
	}

	a.registry, err = motion.NewRegistry(a.chooser,
		cfg.MotionOptions(),
		motion.WithLogger(log),
	)
	if err != nil {
		return fmt.Errorf("failed to create motion registry: %w", err)
	}
	a.handlers = NewHandlers(a.chooser, a.registry, log)

	if cfg.MQTT.Enabled {
		if err := a.setupWorkers(); err != nil {
			return err
		}
	}
	if cfg.HTTP.Listen != "" {
		if err := a.setupServer(); err != nil {
			return err
		}
	}
	return nil
}

func (a *Application) connect() error {
	var err error

	a.app, err = protocol.NewApplication(protocol.WithLogger(a.log))
	if err != nil {
		return fmt.Errorf("failed to create protocol application: %w", err)
	}

	if a.mqttClient == nil {
		a.session, err = mqtt.NewSessionClientFromEnv(mqtt.WithLogger(a.log))
		if err != nil {
			return fmt.Errorf("failed to create MQTT client: %w", err)
		}
		a.mqttClient = a.session
	}

	if a.cfg.MQTT.StateStore {
		a.stateStoreClient, err = statestore.New[string, []byte](
			a.app,
			a.mqttClient,
			statestore.WithLogger(a.log),
		)
		if err != nil {
			return fmt.Errorf("failed to create state store client: %w", err)
		}
	}

	a.pinSender, err = protocol.NewTelemetrySender(
		a.app,
		a.mqttClient,
		protocol.JSON[chooser.Pin]{},
		PinTopic,
		protocol.WithLogger(a.log),
	)
	if err != nil {
		return fmt.Errorf("failed to create pin telemetry sender: %w", err)
	}
	return nil
}

func (a *Application) setupWorkers() error {
	var err error

	a.motionReceiver, err = protocol.NewTelemetryReceiver(
		a.app,
		a.mqttClient,
		protocol.JSON[motion.Sample]{},
		MotionTopic,
		a.handlers.Motion,
		protocol.WithConcurrency(a.cfg.MQTT.Concurrency),
		protocol.WithLogger(a.log),
	)
	if err != nil {
		return fmt.Errorf("failed to create motion telemetry receiver: %w", err)
	}
	a.listeners = append(a.listeners, a.motionReceiver)

	translateExecutor, err := protocol.NewCommandExecutor(
		a.app,
		a.mqttClient,
		protocol.JSON[chooser.Utterance]{},
		protocol.JSON[chooser.Translation]{},
		TranslateCommandTopic,
		a.handlers.Translate,
		protocol.WithConcurrency(a.cfg.MQTT.Concurrency),
		protocol.WithLogger(a.log),
	)
	if err != nil {
		return fmt.Errorf("failed to create translate executor: %w", err)
	}
	a.listeners = append(a.listeners, translateExecutor)

	transcribeExecutor, err := protocol.NewCommandExecutor(
		a.app,
		a.mqttClient,
		protocol.JSON[speech.Audio]{},
		protocol.JSON[chooser.Translation]{},
		TranscribeCommandTopic,
		a.handlers.Transcribe,
		protocol.WithConcurrency(a.cfg.MQTT.Concurrency),
		protocol.WithTimeout(30*time.Second),
		protocol.WithLogger(a.log),
	)
	if err != nil {
		return fmt.Errorf("failed to create transcribe executor: %w", err)
	}
	a.listeners = append(a.listeners, transcribeExecutor)

	languagesExecutor, err := protocol.NewCommandExecutor(
		a.app,
		a.mqttClient,
		protocol.JSON[language.Selection]{},
		protocol.JSON[language.Selection]{},
		LanguagesCommandTopic,
		a.handlers.Languages,
		protocol.WithIdempotent(true),
		protocol.WithLogger(a.log),
	)
	if err != nil {
		return fmt.Errorf("failed to create languages executor: %w", err)
	}
	a.listeners = append(a.listeners, languagesExecutor)

	searchExecutor, err := protocol.NewCommandExecutor(
		a.app,
		a.mqttClient,
		protocol.JSON[SearchRequest]{},
		protocol.JSON[chooser.Pin]{},
		SearchCommandTopic,
		a.handlers.Search,
		protocol.WithLogger(a.log),
	)
	if err != nil {
		return fmt.Errorf("failed to create search executor: %w", err)
	}
	a.listeners = append(a.listeners, searchExecutor)

	recognitionErrorExecutor, err := protocol.NewCommandExecutor(
		a.app,
		a.mqttClient,
		protocol.JSON[RecognitionErrorRequest]{},
		protocol.JSON[RecognitionErrorResponse]{},
		RecognitionErrorCommandTopic,
		a.handlers.RecognitionError,
		protocol.WithIdempotent(true),
		protocol.WithLogger(a.log),
	)
	if err != nil {
		return fmt.Errorf("failed to create recognition error executor: %w", err)
	}
	a.listeners = append(a.listeners, recognitionErrorExecutor)

	return nil
}

func (a *Application) setupServer() error {
	var err error
	a.ws, err = motion.NewWebSocketHandler(a.chooser,
		a.cfg.MotionOptions(),
		motion.WithLogger(a.log),
	)
	if err != nil {
		return fmt.Errorf("failed to create motion websocket handler: %w", err)
	}
	a.server = &http.Server{
		Addr:              a.cfg.HTTP.Listen,
		Handler:           NewMux(a.ws),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return nil
}

// NewMux routes the HTTP endpoints of the service.
func NewMux(motionHandler http.Handler) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("GET /motion/{deviceId}", motionHandler)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	return mux
}

// Start connects to MQTT, starts the listeners, and opens the HTTP listener.
func (a *Application) Start(ctx context.Context) error {
	if a.session != nil {
		a.log.Info("starting MQTT connection...")
		if err := a.session.Start(); err != nil {
			return fmt.Errorf("failed to start MQTT connection: %w", err)
		}
	}

	if a.stateStoreClient != nil {
		a.log.Info("starting state store client...")
		if err := a.stateStoreClient.Start(ctx); err != nil {
			return fmt.Errorf("failed to start state store client: %w", err)
		}
	}

	for _, l := range a.listeners {
		if err := l.Start(ctx); err != nil {
			return fmt.Errorf("failed to start listener: %w", err)
		}
	}

	if a.server != nil {
		ln, err := net.Listen("tcp", a.server.Addr)
		if err != nil {
			return fmt.Errorf("failed to listen on %s: %w", a.server.Addr, err)
		}
		a.log.Info("serving motion websocket", "addr", ln.Addr().String())
		go func() {
			if err := a.server.Serve(ln); err != nil &&
				err != http.ErrServerClosed {
				a.log.Error("http server stopped", "error", err)
			}
		}()
	}

	if idle := time.Duration(a.cfg.Motion.DeviceIdleTimeout); idle > 0 {
		var sweepCtx context.Context
		sweepCtx, a.stopSweep = context.WithCancel(ctx)
		go func() { _ = a.registry.RunSweeper(sweepCtx, idle) }()
	}

	a.log.Info("application startup complete - listening for motion samples")
	return nil
}

// Reconfigure applies new motion settings to devices seen from now on, over
// MQTT and WebSocket alike.
func (a *Application) Reconfigure(cfg *config.Config) error {
	if err := a.registry.Reconfigure(cfg.MotionOptions()); err != nil {
		return err
	}
	if a.ws != nil {
		return a.ws.Reconfigure(cfg.MotionOptions())
	}
	return nil
}

// Chooser returns the application's chooser.
func (a *Application) Chooser() *chooser.Chooser {
	return a.chooser
}

// Close stops the listeners and releases every resource.
func (a *Application) Close() {
	if a.stopSweep != nil {
		a.stopSweep()
	}
	if a.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		_ = a.server.Shutdown(ctx)
		cancel()
	}
	for _, l := range a.listeners {
		l.Close()
	}
	if a.chooser != nil {
		a.chooser.Close()
	}
	if a.stateStoreClient != nil {
		a.stateStoreClient.Close()
	}
	if a.services != nil {
		a.services.Close()
	}
	if a.registry != nil {
		a.log.Info("motion summary", slog.Any("motion", a.registry))
	}
}

func (a *Application) publishPin(
	ctx context.Context,
	deviceID string,
	pin chooser.Pin,
) error {
	return a.pinSender.Send(ctx, pin,
		protocol.WithTopicTokens{DeviceToken: deviceID})
}

// Apply resolves the provided list of options.
func (o *Options) Apply(
	opts []Option,
	rest ...Option,
) {
	for opt := range options.Apply[Option](opts, rest...) {
		opt.application(o)
	}
}

func (o *Options) application(opt *Options) {
	if o != nil {
		*opt = *o
	}
}

func (o WithMQTTClient) application(opt *Options) {
	opt.MQTTClient = o.MqttClient
}

func (o WithServices) application(opt *Options) {
	opt.Services = o.Services
}
