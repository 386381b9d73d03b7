package carrier

import (
	"context"
	"fmt"
	"hash/fnv"
	"math/rand/v2"
	"time"

	"github.com/kuyabetech/muhamuktar-global-venture-sub004/internal/domain"
)

// DefaultRetryAfter is how long callers are told to wait after a simulated outage
const DefaultRetryAfter = 5 * time.Minute

// Simulated shipments are spread over a fixed window starting at shipEpoch
var (
	shipEpoch  = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	shipWindow = 2 * 365 * 24
)

type checkpoint struct {
	offset      time.Duration
	status      string
	description string
}

// Shipment milestones relative to the ship time
var route = []checkpoint{
	{-6 * time.Hour, domain.TrackingStatusProcessing, "Shipment information received"},
	{0, domain.TrackingStatusShipped, "Picked up by carrier"},
	{14 * time.Hour, domain.TrackingStatusInTransit, "Departed origin facility"},
	{38 * time.Hour, domain.TrackingStatusInTransit, "Arrived at destination facility"},
	{60 * time.Hour, domain.TrackingStatusOutForDelivery, "Out for delivery"},
	{66 * time.Hour, domain.TrackingStatusDelivered, "Delivered"},
}

var locations = map[string][]string{
	UPS:     {"Louisville, KY", "Chicago, IL", "Atlanta, GA", "Dallas, TX"},
	FedEx:   {"Memphis, TN", "Indianapolis, IN", "Newark, NJ", "Oakland, CA"},
	USPS:    {"New York, NY", "Philadelphia, PA", "Denver, CO", "Seattle, WA"},
	DHL:     {"Leipzig, DE", "Cincinnati, OH", "Lagos, NG", "Dubai, AE"},
	Generic: {"Lagos", "Abuja", "Kano", "Port Harcourt"},
}

// Simulated is a carrier client that derives a deterministic shipment history from the tracking
// number alone, and reports random outages at a configurable rate.
type Simulated struct {
	name        string
	failureRate float64
	retryAfter  time.Duration
	now         func() time.Time
	roll        func() float64
}

// SimulatedOption customizes a Simulated client
type SimulatedOption func(*Simulated)

// WithClock replaces the wall clock
func WithClock(now func() time.Time) SimulatedOption {
	return func(s *Simulated) { s.now = now }
}

// WithRoll replaces the random source used to decide outages. It must return values in [0, 1).
func WithRoll(roll func() float64) SimulatedOption {
	return func(s *Simulated) { s.roll = roll }
}

// NewSimulated creates a simulated client for the named carrier
func NewSimulated(name string, failureRate float64, opts ...SimulatedOption) *Simulated {
	s := &Simulated{
		name:        name,
		failureRate: failureRate,
		retryAfter:  DefaultRetryAfter,
		now:         time.Now,
		roll:        rand.Float64,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewSimulatedRegistry registers a simulated client for every supported carrier plus Generic.
// Generic never fails.
func NewSimulatedRegistry(failureRate float64, opts ...SimulatedOption) *Registry {
	clients := make([]Client, 0, len(Supported)+1)
	for _, name := range Supported {
		clients = append(clients, NewSimulated(name, failureRate, opts...))
	}
	clients = append(clients, NewSimulated(Generic, 0, opts...))
	return NewRegistry(clients...)
}

func (s *Simulated) Name() string {
	return s.name
}

func (s *Simulated) unavailable() bool {
	return s.failureRate > 0 && s.roll() < s.failureRate
}

// Track returns the shipment history of trackingNumber as of now
func (s *Simulated) Track(ctx context.Context, trackingNumber string) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, &domain.UpstreamError{Service: s.name, Err: err}
	}
	if s.unavailable() {
		return nil, &domain.CarrierUnavailableError{Carrier: s.name, RetryAfter: s.retryAfter}
	}

	number := Normalize(trackingNumber)
	if number == "" {
		return nil, domain.NewValidationError("tracking_number", "tracking number is required")
	}

	seed := hash(number)
	now := s.now().UTC()
	shippedAt := ShippedAt(number)
	places := locations[s.name]
	if places == nil {
		places = locations[Generic]
	}

	result := &Result{Carrier: s.name, Events: []domain.TrackingEvent{}}
	for i, cp := range route {
		at := shippedAt.Add(cp.offset)
		if at.After(now) {
			break
		}
		result.Events = append(result.Events, domain.TrackingEvent{
			Status:       cp.status,
			Location:     places[(int(seed)+i)%len(places)],
			Description:  cp.description,
			TrackingDate: at,
		})
	}

	if latest, ok := result.Latest(); ok {
		result.Status = latest.Status
	} else {
		result.Status = domain.TrackingStatusProcessing
	}

	if result.Status != domain.TrackingStatusDelivered {
		eta := shippedAt.Add(route[len(route)-1].offset)
		result.EstimatedDelivery = &eta
	}

	// Newest first, the order carriers report in
	for i, j := 0, len(result.Events)-1; i < j; i, j = i+1, j-1 {
		result.Events[i], result.Events[j] = result.Events[j], result.Events[i]
	}

	return result, nil
}

// Status reports the simulated health of the carrier API
func (s *Simulated) Status(ctx context.Context) (*domain.CarrierStatus, error) {
	if err := ctx.Err(); err != nil {
		return nil, &domain.UpstreamError{Service: s.name, Err: err}
	}
	if s.unavailable() {
		return nil, &domain.CarrierUnavailableError{Carrier: s.name, RetryAfter: s.retryAfter}
	}

	return &domain.CarrierStatus{
		Carrier:      s.name,
		Name:         DisplayName(s.name),
		Available:    true,
		ResponseTime: int64(80 + hash(s.name)%400),
		CheckedAt:    s.now().UTC(),
		Message:      fmt.Sprintf("%s tracking API operational", DisplayName(s.name)),
	}, nil
}

// ShippedAt is the simulated pickup time of a tracking number. It never depends on the clock, so
// a number keeps one timeline for its whole life.
func ShippedAt(trackingNumber string) time.Time {
	return shipEpoch.Add(time.Duration(hash(Normalize(trackingNumber))%uint32(shipWindow)) * time.Hour)
}

func hash(s string) uint32 {
	h := fnv.New32a()
	h.Write([]byte(s))
	return h.Sum32()
}
