package dashboard

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/atmosguard/atmosguard/internal/environment"
	"github.com/atmosguard/atmosguard/internal/geo"
	"github.com/atmosguard/atmosguard/internal/geolocation"
)

// Slider bounds.
const (
	MinForecastOffset = -24
	MaxForecastOffset = 24
)

// Session errors.
var (
	ErrSessionClosed    = errors.New("session closed")
	ErrRouteBusy        = errors.New("a route computation is already in progress")
	ErrOffsetOutOfRange = errors.New("forecast offset out of range")
	ErrHourOutOfRange   = errors.New("predictive hour out of range")
)

// Purpose identifies a class of fetch. A new fetch for a purpose cancels the
// previous one still in flight for that purpose.
type Purpose string

const (
	PurposeOverview Purpose = "overview"
	PurposePoint    Purpose = "point"
	PurposeHeat     Purpose = "heat"
	PurposeRoute    Purpose = "route"
)

// Fetcher is the aggregation core a session drives. *environment.Service implements it.
type Fetcher interface {
	FetchOverview(ctx context.Context, coord geo.Coordinate) (*environment.Reading, error)
	FetchPointDetail(ctx context.Context, coord geo.Coordinate) (*environment.StationSnapshot, error)
	FetchHeatDetail(ctx context.Context, coord geo.Coordinate) (*environment.HeatSnapshot, error)
	ComputeRoute(ctx context.Context, start, end string) (*environment.RouteResult, error)
}

// Config holds the dependencies shared by every session.
type Config struct {
	Fetcher      Fetcher
	Geolocator   *geolocation.Geolocator
	Logger       zerolog.Logger
	PlayInterval time.Duration    // default environment.AutoPlayInterval
	Now          func() time.Time // default time.Now
}

func (c Config) withDefaults() Config {
	if c.Geolocator == nil {
		c.Geolocator = geolocation.New(c.Logger)
	}
	if c.PlayInterval <= 0 {
		c.PlayInterval = environment.AutoPlayInterval
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	return c
}

type state struct {
	tab            Tab
	forecastOffset int
	predictiveHour int
	playing        bool
	position       geo.Coordinate
	overview       environment.Reading
	station        environment.StationSnapshot
	heat           environment.HeatSnapshot
	route          *environment.RouteResult
	routeVisible   bool
	routing        bool
	updatedAt      time.Time
}

// Session is one user's dashboard view-model. All methods are safe for
// concurrent use.
type Session struct {
	id     string
	cfg    Config
	logger zerolog.Logger

	mu          sync.Mutex
	st          state
	closed      bool
	generation  map[Purpose]uint64
	cancels     map[Purpose]context.CancelFunc
	stopPlay    context.CancelFunc
	subscribers map[chan View]struct{}
}

// NewSession creates a session in its initial state: Overview tab, sliders at
// zero, overview loading, default station and heat snapshots, no route.
func NewSession(id string, cfg Config) *Session {
	cfg = cfg.withDefaults()
	return &Session{
		id:     id,
		cfg:    cfg,
		logger: cfg.Logger.With().Str("session_id", id).Logger(),
		st: state{
			tab:       TabOverview,
			position:  geolocation.DefaultCoordinate,
			overview:  environment.LoadingReading(),
			station:   environment.DefaultStationSnapshot(),
			heat:      environment.DefaultHeatSnapshot(),
			updatedAt: cfg.Now(),
		},
		generation:  make(map[Purpose]uint64),
		cancels:     make(map[Purpose]context.CancelFunc),
		subscribers: make(map[chan View]struct{}),
	}
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// View returns the current snapshot.
func (s *Session) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.viewLocked()
}

func (s *Session) viewLocked() View {
	st := &s.st
	return View{
		SessionID:      s.id,
		Tab:            st.tab,
		ForecastOffset: st.forecastOffset,
		PredictiveHour: st.predictiveHour,
		Playing:        st.playing,
		Position:       st.position,
		Overview:       st.overview,
		Station:        st.station,
		Heat:           st.heat,
		Route:          cloneRoute(st.route),
		RouteVisible:   st.routeVisible,
		Routing:        st.routing,
		UpdatedAt:      st.updatedAt,
		Derived:        derive(st),
	}
}

// SetTab switches the active tab.
func (s *Session) SetTab(tab Tab) error {
	if _, err := ParseTab(string(tab)); err != nil {
		return err
	}
	return s.mutate(func(st *state) { st.tab = tab })
}

// SetForecastOffset moves the station forecast slider.
func (s *Session) SetForecastOffset(hours int) error {
	if hours < MinForecastOffset || hours > MaxForecastOffset {
		return fmt.Errorf("%w: %d not in [%d, %d]", ErrOffsetOutOfRange, hours, MinForecastOffset, MaxForecastOffset)
	}
	return s.mutate(func(st *state) { st.forecastOffset = hours })
}

// SetPredictiveHour moves the predictive map slider. Moving it by hand stops auto-play.
func (s *Session) SetPredictiveHour(hour int) error {
	if hour < 0 || hour > environment.MaxPredictiveHour {
		return fmt.Errorf("%w: %d not in [0, %d]", ErrHourOutOfRange, hour, environment.MaxPredictiveHour)
	}
	return s.mutate(func(st *state) {
		s.stopPlayLocked()
		st.predictiveHour = hour
	})
}

// Play starts advancing the predictive hour every PlayInterval. Calling Play
// while already playing does nothing.
func (s *Session) Play() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrSessionClosed
	}
	if s.st.playing {
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.stopPlay = cancel
	s.st.playing = true
	s.touchLocked()
	s.notifyLocked()

	go s.autoPlay(ctx)
	return nil
}

// Pause stops auto-play.
func (s *Session) Pause() error {
	return s.mutate(func(*state) { s.stopPlayLocked() })
}

func (s *Session) autoPlay(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.PlayInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.mu.Lock()
			// Pause may have won the race with this tick.
			if ctx.Err() != nil {
				s.mu.Unlock()
				return
			}
			s.st.predictiveHour = environment.AdvanceHour(s.st.predictiveHour)
			s.touchLocked()
			s.notifyLocked()
			s.mu.Unlock()
		}
	}
}

func (s *Session) stopPlayLocked() {
	if s.stopPlay != nil {
		s.stopPlay()
		s.stopPlay = nil
	}
	s.st.playing = false
}

// RefreshOverview resolves the user's position and refetches the overview
// reading. On failure the previous reading is kept; the result reports whether
// the reading was replaced.
func (s *Session) RefreshOverview(ctx context.Context, locator geolocation.Locator) bool {
	ctx, gen, done, err := s.begin(ctx, PurposeOverview)
	if err != nil {
		return false
	}
	defer done()

	coord := s.cfg.Geolocator.Resolve(ctx, locator)
	s.commit(PurposeOverview, gen, func(st *state) { st.position = coord })

	reading, err := s.cfg.Fetcher.FetchOverview(ctx, coord)
	if err != nil {
		s.degraded(PurposeOverview, err)
		return false
	}
	return s.commit(PurposeOverview, gen, func(st *state) { st.overview = *reading })
}

// SelectPoint fetches the pollutant breakdown for coord. Selecting a point
// resets the forecast offset and hides the route before the fetch starts.
// On failure the previous station snapshot is kept.
func (s *Session) SelectPoint(ctx context.Context, coord geo.Coordinate) bool {
	ctx, gen, done, err := s.begin(ctx, PurposePoint)
	if err != nil {
		return false
	}
	defer done()

	s.commit(PurposePoint, gen, func(st *state) {
		st.forecastOffset = 0
		st.routeVisible = false
	})

	snapshot, err := s.cfg.Fetcher.FetchPointDetail(ctx, coord)
	if err != nil {
		s.degraded(PurposePoint, err)
		return false
	}
	return s.commit(PurposePoint, gen, func(st *state) { st.station = *snapshot })
}

// SelectHeatPoint fetches the thermal reading for coord. On failure the
// previous heat snapshot is kept.
func (s *Session) SelectHeatPoint(ctx context.Context, coord geo.Coordinate) bool {
	ctx, gen, done, err := s.begin(ctx, PurposeHeat)
	if err != nil {
		return false
	}
	defer done()

	snapshot, err := s.cfg.Fetcher.FetchHeatDetail(ctx, coord)
	if err != nil {
		s.degraded(PurposeHeat, err)
		return false
	}
	return s.commit(PurposeHeat, gen, func(st *state) { st.heat = *snapshot })
}

// ComputeRoute geocodes both places and computes a driving route between them.
// Only one computation may run at a time; a second call returns ErrRouteBusy.
// Failures are returned as *environment.RouteError and leave the previous route in place.
func (s *Session) ComputeRoute(ctx context.Context, start, end string) (*environment.RouteResult, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrSessionClosed
	}
	if s.st.routing {
		s.mu.Unlock()
		return nil, ErrRouteBusy
	}
	s.st.routing = true
	s.notifyLocked()
	s.mu.Unlock()

	ctx, gen, done, err := s.begin(ctx, PurposeRoute)
	if err != nil {
		s.mu.Lock()
		s.st.routing = false
		s.mu.Unlock()
		return nil, err
	}
	defer done()

	result, err := s.cfg.Fetcher.ComputeRoute(ctx, start, end)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.routing = false
	if err == nil && !s.closed && s.generation[PurposeRoute] == gen {
		s.st.route = cloneRoute(result)
		s.st.routeVisible = true
		s.touchLocked()
	}
	s.notifyLocked()
	return result, err
}

// Subscribe returns a channel that receives a View after every state change,
// and a function that ends the subscription. Slow readers only see the latest
// view. The channel is closed when the session closes.
func (s *Session) Subscribe() (<-chan View, func()) {
	ch := make(chan View, 1)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		close(ch)
		return ch, func() {}
	}
	s.subscribers[ch] = struct{}{}

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			if _, ok := s.subscribers[ch]; ok {
				delete(s.subscribers, ch)
				close(ch)
			}
		})
	}
}

// Close stops auto-play, cancels every in-flight fetch and ends all subscriptions.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.closed = true
	s.stopPlayLocked()
	for p, cancel := range s.cancels {
		cancel()
		delete(s.cancels, p)
	}
	for ch := range s.subscribers {
		delete(s.subscribers, ch)
		close(ch)
	}
}

// begin registers a new fetch for purpose p, cancelling the previous one.
func (s *Session) begin(parent context.Context, p Purpose) (context.Context, uint64, func(), error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, 0, nil, ErrSessionClosed
	}
	if cancel, ok := s.cancels[p]; ok {
		cancel()
	}

	s.generation[p]++
	gen := s.generation[p]
	ctx, cancel := context.WithCancel(parent)
	s.cancels[p] = cancel

	done := func() {
		s.mu.Lock()
		if s.generation[p] == gen {
			delete(s.cancels, p)
		}
		s.mu.Unlock()
		cancel()
	}
	return ctx, gen, done, nil
}

// commit applies fn if gen is still the newest fetch for p.
func (s *Session) commit(p Purpose, gen uint64, fn func(*state)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || s.generation[p] != gen {
		return false
	}
	fn(&s.st)
	s.touchLocked()
	s.notifyLocked()
	return true
}

func (s *Session) mutate(fn func(*state)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrSessionClosed
	}
	fn(&s.st)
	s.touchLocked()
	s.notifyLocked()
	return nil
}

func (s *Session) degraded(p Purpose, err error) {
	if errors.Is(err, context.Canceled) {
		s.logger.Debug().Str("purpose", string(p)).Msg("fetch superseded")
		return
	}
	s.logger.Warn().Err(err).Str("purpose", string(p)).Msg("fetch failed, keeping previous snapshot")
}

func (s *Session) touchLocked() {
	s.st.updatedAt = s.cfg.Now()
}

// notifyLocked pushes the current view to every subscriber, replacing any
// view the subscriber has not read yet.
func (s *Session) notifyLocked() {
	if len(s.subscribers) == 0 {
		return
	}
	v := s.viewLocked()
	for ch := range s.subscribers {
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- v:
		default:
		}
	}
}
