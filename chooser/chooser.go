// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.
package chooser

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"github.com/Azure/iot-operations-sdks/go/mqtt/retry"
	"github.com/google/uuid"
	"github.com/sakura/springbreak/errors"
	"github.com/sakura/springbreak/internal/log"
	"github.com/sakura/springbreak/internal/options"
	"github.com/sakura/springbreak/internal/wallclock"
	"github.com/sakura/springbreak/language"
	"github.com/sakura/springbreak/motion"
	"github.com/sakura/springbreak/places"
	"github.com/sakura/springbreak/speech"
	"github.com/sakura/springbreak/translate"
)

type (
	// Pin is a randomly chosen attraction in the destination country.
	Pin struct {
		ID        string        `json:"id"`
		DeviceID  string        `json:"deviceId"`
		Query     string        `json:"query"`
		Name      string        `json:"name"`
		Location  places.LatLng `json:"location"`
		URI       string        `json:"uri"`
		Timestamp time.Time     `json:"timestamp"`
	}

	// Utterance holds on-device recognition results.
	Utterance struct {
		Results []string `json:"results"`
	}

	// Translation is the result of translating an utterance.
	Translation struct {
		Source      string `json:"source"`
		Destination string `json:"destination"`
		Text        string `json:"text"`
		Translated  string `json:"translated"`
		Audio       []byte `json:"audio,omitempty"`
	}

	// Publisher delivers pins to devices.
	Publisher interface {
		PublishPin(ctx context.Context, deviceID string, pin Pin) error
	}

	// PublisherFunc adapts a function to the Publisher interface.
	PublisherFunc func(ctx context.Context, deviceID string, pin Pin) error

	// Chooser turns shakes into destination pins and translates the user's
	// speech into the destination language.
	Chooser struct {
		table      language.Table
		store      Store
		searcher   places.Searcher
		backend    translate.Backend
		recognizer speech.Recognizer
		synth      speech.Synthesizer
		publisher  Publisher
		pubRetry   retry.Policy
		timeout    time.Duration
		trOpts     []translate.ServiceOption
		log        log.Logger

		randMu sync.Mutex
		rand   *rand.Rand

		mu          sync.Mutex
		inflight    map[string]struct{}
		translators map[language.Selection]*translate.Service

		ctx    context.Context
		cancel context.CancelFunc
		wg     sync.WaitGroup
	}

	// Option represents a single chooser option.
	Option interface{ chooser(*Options) }

	// Options are the resolved chooser options.
	Options struct {
		Recognizer  speech.Recognizer
		Synthesizer speech.Synthesizer
		Publisher   Publisher

		// PublishRetry retries failed pin publishes within the search timeout.
		PublishRetry retry.Policy

		// Rand picks among search results. Defaults to the global source.
		Rand *rand.Rand

		// SearchTimeout bounds a shake-triggered search and publish.
		SearchTimeout time.Duration

		TranslateOptions []translate.ServiceOption

		Logger *slog.Logger
	}

	// WithRecognizer enables server-side speech recognition.
	WithRecognizer struct{ speech.Recognizer }

	// WithSynthesizer enables speaking translations.
	WithSynthesizer struct{ speech.Synthesizer }

	// WithPublisher sets where shake-triggered pins are delivered.
	WithPublisher struct{ Publisher }

	// WithPublishRetry sets the retry policy for pin publishes.
	WithPublishRetry struct{ retry.Policy }

	// WithRand sets the random source used to pick places.
	WithRand struct{ *rand.Rand }

	// WithSearchTimeout bounds a shake-triggered search and publish.
	WithSearchTimeout time.Duration

	// WithTranslateOptions are applied to every language pair's translator.
	WithTranslateOptions []translate.ServiceOption

	// This option is not used directly; see WithLogger below.
	withLogger struct{ *slog.Logger }
)

// DefaultSearchTimeout bounds a shake-triggered search and publish.
const DefaultSearchTimeout = 10 * time.Second

var _ motion.Dispatcher = (*Chooser)(nil)

// New creates a chooser and starts preparing the table's default language
// pair.
func New(
	table language.Table,
	store Store,
	searcher places.Searcher,
	backend translate.Backend,
	opt ...Option,
) (*Chooser, error) {
	var opts Options
	opts.Apply(opt)

	if err := table.Validate(); err != nil {
		return nil, err
	}
	switch {
	case store == nil:
		return nil, errors.Invalid("store", nil, "store is required")
	case searcher == nil:
		return nil, errors.Invalid("searcher", nil, "searcher is required")
	case backend == nil:
		return nil, errors.Invalid("backend", nil, "translation backend is required")
	case opts.SearchTimeout < 0:
		return nil, errors.Config("SearchTimeout", opts.SearchTimeout,
			"search timeout must not be negative")
	}
	if opts.SearchTimeout == 0 {
		opts.SearchTimeout = DefaultSearchTimeout
	}
	if opts.PublishRetry == nil {
		opts.PublishRetry = &retry.ExponentialBackoff{
			MaxAttempts: 3,
			MinInterval: 250 * time.Millisecond,
			MaxInterval: 2 * time.Second,
			Logger:      opts.Logger,
		}
	}

	c := &Chooser{
		table:       table,
		store:       store,
		searcher:    searcher,
		backend:     backend,
		recognizer:  opts.Recognizer,
		synth:       opts.Synthesizer,
		publisher:   opts.Publisher,
		pubRetry:    opts.PublishRetry,
		timeout:     opts.SearchTimeout,
		trOpts:      opts.TranslateOptions,
		rand:        opts.Rand,
		log:         log.Wrap(opts.Logger),
		inflight:    map[string]struct{}{},
		translators: map[language.Selection]*translate.Service{},
	}
	c.ctx, c.cancel = context.WithCancel(context.Background())

	if _, err := c.translator(table.DefaultSelection()); err != nil {
		c.cancel()
		return nil, err
	}
	return c, nil
}

// Dispatch starts a search for the device and publishes the resulting pin.
// While a device's search is in flight, further shakes are dropped.
func (c *Chooser) Dispatch(
	ctx context.Context,
	deviceID string,
	ev motion.ShakeEvent,
) error {
	if deviceID == "" {
		return errors.Invalid("deviceID", deviceID, "device id is required")
	}
	c.mu.Lock()
	if c.ctx.Err() != nil {
		c.mu.Unlock()
		return &errors.Error{Message: "chooser closed", Kind: errors.StateInvalid}
	}
	if _, busy := c.inflight[deviceID]; busy {
		c.mu.Unlock()
		c.log.Debug(ctx, "search in flight, shake dropped",
			slog.String("device_id", deviceID),
		)
		return nil
	}
	c.inflight[deviceID] = struct{}{}
	c.wg.Add(1)
	c.mu.Unlock()

	go func() {
		defer c.wg.Done()
		defer func() {
			c.mu.Lock()
			delete(c.inflight, deviceID)
			c.mu.Unlock()
		}()
		c.searchAndPublish(deviceID, ev)
	}()
	return nil
}

func (c *Chooser) searchAndPublish(deviceID string, ev motion.ShakeEvent) {
	ctx, cancel := wallclock.Instance.WithTimeoutCause(c.ctx, c.timeout,
		&errors.Error{Message: "destination search timed out", Kind: errors.Timeout},
	)
	defer cancel()

	l := c.log.With(slog.String("device_id", deviceID))

	pin, err := c.Search(ctx, deviceID)
	if err != nil {
		l.Err(ctx, "destination search failed", err)
		return
	}
	l.Info(ctx, "destination chosen",
		slog.String("name", pin.Name),
		slog.String("uri", pin.URI),
		slog.Float64("speed", ev.Speed),
	)

	if c.publisher == nil {
		return
	}
	err = c.pubRetry.Start(ctx, "pin publish", func(ctx context.Context) (bool, error) {
		err := errors.Normalize(c.publisher.PublishPin(ctx, deviceID, pin), "pin publish")
		return err != nil && retryable(err), err
	})
	if err != nil {
		l.Err(ctx, "pin publish failed", err)
	}
}

// Search picks a random attraction in the country of the device's
// destination language.
func (c *Chooser) Search(ctx context.Context, deviceID string) (Pin, error) {
	sel, err := c.Languages(ctx, deviceID)
	if err != nil {
		return Pin{}, err
	}

	q, err := places.AttractionsQuery(sel.Destination)
	if err != nil {
		return Pin{}, err
	}
	found, err := c.searcher.SearchText(ctx, q)
	if err != nil {
		return Pin{}, errors.Normalize(err, "places search")
	}

	place, err := c.pick(found)
	if err != nil {
		return Pin{}, err
	}

	return Pin{
		ID:        uuid.NewString(),
		DeviceID:  deviceID,
		Query:     q.Text,
		Name:      place.Name,
		Location:  place.Location,
		URI:       places.GeoURI(place.Location),
		Timestamp: wallclock.Instance.Now().UTC(),
	}, nil
}

// Translate translates the utterance with the device's language pair and,
// when a synthesizer is configured, speaks the result. Synthesis failures are
// logged and do not fail the translation.
func (c *Chooser) Translate(
	ctx context.Context,
	deviceID string,
	u Utterance,
) (Translation, error) {
	text := speech.JoinResults(u.Results)
	if strings.TrimSpace(text) == "" {
		return Translation{}, errors.Invalid("results", u.Results,
			"nothing to translate")
	}

	sel, err := c.Languages(ctx, deviceID)
	if err != nil {
		return Translation{}, err
	}
	svc, err := c.translator(sel)
	if err != nil {
		return Translation{}, err
	}

	translated, err := svc.Translate(ctx, text)
	if err != nil {
		return Translation{}, err
	}

	res := Translation{
		Source:      sel.Source,
		Destination: sel.Destination,
		Text:        text,
		Translated:  translated,
	}
	if c.synth != nil {
		res.Audio, err = c.synth.Synthesize(ctx, translated, sel.Destination)
		if err != nil {
			c.log.Warn(ctx, "speech synthesis failed",
				slog.String("device_id", deviceID),
				slog.String("error", err.Error()),
			)
		}
	}
	return res, nil
}

// Transcribe recognizes the clip in the device's source language and
// translates the result.
func (c *Chooser) Transcribe(
	ctx context.Context,
	deviceID string,
	audio speech.Audio,
) (Translation, error) {
	if c.recognizer == nil {
		return Translation{}, &errors.Error{
			Message: "speech recognition is not configured",
			Kind:    errors.StateInvalid,
		}
	}

	sel, err := c.Languages(ctx, deviceID)
	if err != nil {
		return Translation{}, err
	}
	results, err := c.recognizer.Recognize(ctx, audio, sel.Source)
	if err != nil {
		return Translation{}, err
	}
	return c.Translate(ctx, deviceID, Utterance{Results: results})
}

// Languages returns the device's selection, or the table default if it has
// none. A failing store is logged and also yields the default.
func (c *Chooser) Languages(
	ctx context.Context,
	deviceID string,
) (language.Selection, error) {
	if deviceID == "" {
		return language.Selection{}, errors.Invalid("deviceID", deviceID,
			"device id is required")
	}

	sel, err := c.store.Load(ctx, deviceID)
	switch {
	case err == nil:
		return sel, nil
	case errors.Is(err, errors.NoResults):
	default:
		if e := errors.Context(ctx, "language lookup"); e != nil {
			return language.Selection{}, e
		}
		c.log.Warn(ctx, "language lookup failed, using default",
			slog.String("device_id", deviceID),
			slog.String("error", err.Error()),
		)
	}
	return c.table.DefaultSelection(), nil
}

// SetLanguages validates and stores the device's selection and starts
// preparing its translator.
func (c *Chooser) SetLanguages(
	ctx context.Context,
	deviceID string,
	sel language.Selection,
) error {
	if deviceID == "" {
		return errors.Invalid("deviceID", deviceID, "device id is required")
	}
	if err := c.table.Check(sel); err != nil {
		return err
	}
	if err := c.store.Save(ctx, deviceID, sel); err != nil {
		return err
	}
	if _, err := c.translator(sel); err != nil {
		return err
	}

	c.log.Info(ctx, "languages selected",
		slog.String("device_id", deviceID),
		slog.String("source", sel.Source),
		slog.String("destination", sel.Destination),
	)
	return nil
}

// ReportRecognitionError logs an on-device recognizer failure and returns
// the message to show the user.
func (c *Chooser) ReportRecognitionError(
	ctx context.Context,
	deviceID string,
	code speech.ErrorCode,
) string {
	c.log.Warn(ctx, "speech recognition failed",
		slog.String("device_id", deviceID),
		slog.Any("code", code),
	)
	return code.Message()
}

// Translator returns the translator for the pair, creating it if needed.
func (c *Chooser) Translator(sel language.Selection) (*translate.Service, error) {
	if err := c.table.Check(sel); err != nil {
		return nil, err
	}
	return c.translator(sel)
}

// Close stops accepting shakes, waits for searches in flight, and releases
// the translators.
func (c *Chooser) Close() {
	c.mu.Lock()
	c.cancel()
	c.mu.Unlock()
	c.wg.Wait()

	c.mu.Lock()
	defer c.mu.Unlock()
	for _, svc := range c.translators {
		svc.Close()
	}
	clear(c.translators)
}

func (c *Chooser) translator(sel language.Selection) (*translate.Service, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.ctx.Err() != nil {
		return nil, &errors.Error{
			Message: "chooser closed",
			Kind:    errors.StateInvalid,
		}
	}
	if svc, ok := c.translators[sel]; ok {
		if svc.State() == translate.Failed {
			c.log.Info(c.ctx, "retrying failed translator",
				slog.String("src", sel.Source),
				slog.String("dst", sel.Destination),
			)
			if err := svc.Switch(sel.Source, sel.Destination); err != nil {
				return nil, err
			}
		}
		return svc, nil
	}
	svc, err := translate.NewService(c.backend, sel.Source, sel.Destination,
		c.trOpts...)
	if err != nil {
		return nil, err
	}
	c.translators[sel] = svc
	return svc, nil
}

func retryable(err error) bool {
	return !errors.Is(err, errors.ArgumentInvalid) &&
		!errors.Is(err, errors.ConfigurationInvalid)
}

func (c *Chooser) pick(found []places.Place) (places.Place, error) {
	if c.rand == nil {
		return places.Pick(nil, found)
	}
	c.randMu.Lock()
	defer c.randMu.Unlock()
	return places.Pick(c.rand, found)
}

// PublishPin calls f.
func (f PublisherFunc) PublishPin(
	ctx context.Context,
	deviceID string,
	pin Pin,
) error {
	return f(ctx, deviceID, pin)
}

// Apply resolves the provided list of options.
func (o *Options) Apply(opts []Option, rest ...Option) {
	for opt := range options.Apply[Option](opts, rest...) {
		opt.chooser(o)
	}
}

func (o *Options) chooser(opt *Options) {
	if o != nil {
		*opt = *o
	}
}

func (o WithRecognizer) chooser(opt *Options) {
	opt.Recognizer = o.Recognizer
}

func (o WithSynthesizer) chooser(opt *Options) {
	opt.Synthesizer = o.Synthesizer
}

func (o WithPublisher) chooser(opt *Options) {
	opt.Publisher = o.Publisher
}

func (o WithPublishRetry) chooser(opt *Options) {
	opt.PublishRetry = o.Policy
}

func (o WithRand) chooser(opt *Options) {
	opt.Rand = o.Rand
}

func (o WithSearchTimeout) chooser(opt *Options) {
	opt.SearchTimeout = time.Duration(o)
}

func (o WithTranslateOptions) chooser(opt *Options) {
	opt.TranslateOptions = append(opt.TranslateOptions, o...)
}

// WithLogger enables logging with the provided slog logger.
func WithLogger(logger *slog.Logger) Option {
	return withLogger{logger}
}

func (o withLogger) chooser(opt *Options) {
	opt.Logger = o.Logger
}
