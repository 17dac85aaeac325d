// Package portal drives the campus booking portal. It is the one deliberately
// brittle piece of the system: everything here depends on the third-party
// site's endpoints and can break when they change. The rest of the repo only
// sees the scheduler.Attempter contract, so this client can be rewritten
// without touching any scheduling logic.
package portal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/example/slot-scheduler/internal/booking"
)

const (
	defaultBaseURL = "https://my.flame.edu.in"
	loginPath      = "/login"
	bookingPath    = "/s/book-slot"
	userAgent      = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/114.0.0.0 Safari/537.36"
)

var (
	ErrLoginFailed    = errors.New("portal: login failed")
	ErrSlotTaken      = errors.New("portal: slot not available")
	ErrNoConfirmation = errors.New("portal: no booking confirmation")
)

type Credentials struct {
	Username string
	Password string
}

type Client struct {
	hc      *http.Client
	breaker *gobreaker.CircuitBreaker[*http.Response]
	baseURL string
	creds   Credentials
}

type Option func(*Client)

// WithBaseURL points the client at a different portal host. Tests use this.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") }
}

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.hc = hc }
}

func New(creds Credentials, opts ...Option) *Client {
	jar, _ := cookiejar.New(nil)
	c := &Client{
		hc:      &http.Client{Timeout: 30 * time.Second, Jar: jar},
		baseURL: defaultBaseURL,
		creds:   creds,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.hc.Jar == nil {
		c.hc.Jar = jar
	}
	c.breaker = gobreaker.NewCircuitBreaker[*http.Response](gobreaker.Settings{
		Name:        "portal",
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 5
		},
	})
	return c
}

// Attempt performs the full portal sequence for one booking: log in, check
// the slot is offered for the facility and date, submit the booking form,
// and require a confirmation in the response. Any failure along the way is
// the attempt's failure; the caller decides what that means for the booking.
func (c *Client) Attempt(ctx context.Context, b booking.Booking) error {
	if err := c.Login(ctx); err != nil {
		return err
	}
	slots, err := c.FetchSlots(ctx, b.Facility, b.Date)
	if err != nil {
		return err
	}
	found := false
	for _, s := range slots {
		if s.Time == b.Time && s.Available {
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("%w: %s %s %s", ErrSlotTaken, b.Facility, b.Date, b.Time)
	}
	return c.submit(ctx, b)
}

// Login posts the credential form and checks we ended up inside the portal.
func (c *Client) Login(ctx context.Context) error {
	form := url.Values{
		"username": {c.creds.Username},
		"password": {c.creds.Password},
		"login":    {"Login"},
	}
	res, body, err := c.do(ctx, http.MethodPost, loginPath, form)
	if err != nil {
		return err
	}
	if res.StatusCode >= 400 {
		return fmt.Errorf("%w (status=%d)", ErrLoginFailed, res.StatusCode)
	}
	// The portal redirects authenticated sessions under /s/.
	if !strings.Contains(res.Request.URL.Path, "/s/") && !strings.Contains(string(body), "logout") {
		return ErrLoginFailed
	}
	return nil
}

// Slot is one offered start time for a facility on a date.
type Slot struct {
	Time      string `json:"time"`
	Available bool   `json:"available"`
}

// FetchSlots returns the portal's offered slots for the facility and date.
func (c *Client) FetchSlots(ctx context.Context, f booking.Facility, date string) ([]Slot, error) {
	q := url.Values{
		"facility": {f.DisplayName()},
		"date":     {date},
	}
	res, body, err := c.do(ctx, http.MethodGet, bookingPath+"/availability?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("portal: availability fetch failed (status=%d)", res.StatusCode)
	}
	var out struct {
		Slots []Slot `json:"slots"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("portal: bad availability payload: %w", err)
	}
	return out.Slots, nil
}

func (c *Client) submit(ctx context.Context, b booking.Booking) error {
	form := url.Values{
		"facility": {b.Facility.DisplayName()},
		"date":     {b.Date},
		"time":     {b.Time},
	}
	res, body, err := c.do(ctx, http.MethodPost, bookingPath, form)
	if err != nil {
		return err
	}
	if res.StatusCode >= 400 {
		return fmt.Errorf("portal: booking submit failed (status=%d)", res.StatusCode)
	}
	if !strings.Contains(string(body), "booking-confirmation") {
		return ErrNoConfirmation
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, form url.Values) (*http.Response, []byte, error) {
	var bodyReader io.Reader
	if form != nil {
		bodyReader = strings.NewReader(form.Encode())
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, nil, err
	}
	req.Header.Set("user-agent", userAgent)
	if form != nil {
		req.Header.Set("content-type", "application/x-www-form-urlencoded")
	}

	res, err := c.breaker.Execute(func() (*http.Response, error) {
		return c.hc.Do(req)
	})
	if err != nil {
		return nil, nil, fmt.Errorf("portal: %w", err)
	}
	defer res.Body.Close()
	b, err := io.ReadAll(res.Body)
	if err != nil {
		return res, nil, err
	}
	return res, b, nil
}
