// Package carrier detects shipping carriers from tracking numbers and fetches tracking data from them.
package carrier

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/kuyabetech/muhamuktar-global-venture-sub004/internal/domain"
)

// Carrier identifiers
const (
	UPS     = "ups"
	FedEx   = "fedex"
	USPS    = "usps"
	DHL     = "dhl"
	Generic = "generic"
)

// Supported lists the carriers with a tracking integration, in display order
var Supported = []string{UPS, FedEx, USPS, DHL}

var displayNames = map[string]string{
	UPS:     "UPS",
	FedEx:   "FedEx",
	USPS:    "USPS",
	DHL:     "DHL Express",
	Generic: "Standard Shipping",
}

var (
	upsPattern     = regexp.MustCompile(`^1Z[0-9A-Z]{16}$`)
	fedexPattern   = regexp.MustCompile(`^(\d{12}|\d{15})$`)
	uspsPattern    = regexp.MustCompile(`^((94|93|92|95)\d{18,20}|[A-Z]{2}\d{9}US)$`)
	dhlPattern     = regexp.MustCompile(`^(\d{10}|JJD\d{18})$`)
	separatorChars = strings.NewReplacer(" ", "", "-", "")
)

// Normalize uppercases a tracking number and strips spaces and dashes
func Normalize(trackingNumber string) string {
	return strings.ToUpper(separatorChars.Replace(strings.TrimSpace(trackingNumber)))
}

// Detect returns the carrier whose tracking number format matches, or Generic
func Detect(trackingNumber string) string {
	n := Normalize(trackingNumber)
	switch {
	case upsPattern.MatchString(n):
		return UPS
	case uspsPattern.MatchString(n):
		return USPS
	case dhlPattern.MatchString(n):
		return DHL
	case fedexPattern.MatchString(n):
		return FedEx
	}
	return Generic
}

// IsSupported reports whether name is a carrier with a tracking integration
func IsSupported(name string) bool {
	for _, s := range Supported {
		if s == name {
			return true
		}
	}
	return false
}

// DisplayName returns the customer facing name of a carrier
func DisplayName(name string) string {
	if d, ok := displayNames[name]; ok {
		return d
	}
	return displayNames[Generic]
}

// Result is what a carrier reports for one tracking number
type Result struct {
	Carrier           string
	Status            string
	EstimatedDelivery *time.Time
	Events            []domain.TrackingEvent
}

// Latest returns the most recent event, if any
func (r *Result) Latest() (domain.TrackingEvent, bool) {
	if len(r.Events) == 0 {
		return domain.TrackingEvent{}, false
	}
	latest := r.Events[0]
	for _, e := range r.Events[1:] {
		if e.TrackingDate.After(latest.TrackingDate) {
			latest = e
		}
	}
	return latest, true
}

// Client talks to one carrier's tracking API
type Client interface {
	Name() string
	Track(ctx context.Context, trackingNumber string) (*Result, error)
	Status(ctx context.Context) (*domain.CarrierStatus, error)
}

// Registry resolves carrier clients by name
type Registry struct {
	clients map[string]Client
}

// NewRegistry creates a Registry from clients, keyed by their Name
func NewRegistry(clients ...Client) *Registry {
	r := &Registry{clients: make(map[string]Client, len(clients))}
	for _, c := range clients {
		r.clients[c.Name()] = c
	}
	return r
}

// Get returns the client registered under name
func (r *Registry) Get(name string) (Client, bool) {
	c, ok := r.clients[name]
	return c, ok
}

// ForTrackingNumber returns the client of the detected carrier
func (r *Registry) ForTrackingNumber(trackingNumber string) (Client, bool) {
	return r.Get(Detect(trackingNumber))
}
