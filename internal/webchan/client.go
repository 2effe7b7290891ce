// Package webchan wraps the library's web reservation surface: the
// cookie-authenticated channel with live seat availability. New reservations
// must go through this channel; the app channel only releases them.
package webchan

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/xuyuanfang/WHULibSeatReservation/internal/reservation"
	"github.com/xuyuanfang/WHULibSeatReservation/internal/timeslot"
)

const defaultBaseURL = "https://seat.lib.whu.edu.cn"
const defaultUA = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/114.0.0.0 Safari/537.36"

// overloadSentinel is returned as plain text instead of JSON when the
// platform is shedding unofficial clients. It must be matched before any
// JSON decoding and never read as "no seats".
const overloadSentinel = "WHU Library seat reserving system is over loading," +
	" please don't use un-offical applications!"

// Point is a click position inside a captcha image.
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// ChallengeSolver answers a visual captcha with click coordinates. The app
// channel bypass makes it unnecessary in normal operation, so Client works
// with a nil solver; the hook exists for the day the platform closes the
// bypass.
type ChallengeSolver interface {
	Solve(ctx context.Context, img []byte, prompt string) ([]Point, error)
}

type Config struct {
	BaseURL  string
	Username string
	Password string

	// Solver is consulted only if the login response demands a captcha.
	Solver ChallengeSolver

	Logger *slog.Logger
}

// Client holds the cookie session for the web surface. It owns the jar
// exclusively; there is one thread of control per run so no locking.
type Client struct {
	hc  *http.Client
	cfg Config

	base   string
	logger *slog.Logger

	// Reserve date for this run, computed once at startup.
	date       string
	isTomorrow bool
}

func New(cfg Config, date string, isTomorrow bool) (*Client, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = defaultBaseURL
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		hc:         &http.Client{Timeout: 20 * time.Second, Jar: jar},
		cfg:        cfg,
		base:       base,
		logger:     logger,
		date:       date,
		isTomorrow: isTomorrow,
	}, nil
}

// Login establishes the cookie session. The channel is unusable until it
// succeeds, and again after any call reports an authentication failure.
func (c *Client) Login(ctx context.Context) error {
	form := url.Values{
		"username": {c.cfg.Username},
		"password": {c.cfg.Password},
	}
	env, err := c.do(ctx, http.MethodPost, "/rest/auth", form)
	if err != nil {
		return err
	}
	if env.Status != "success" {
		if env.Code == "captcha" {
			return c.loginWithChallenge(ctx, form, env.Data)
		}
		return fmt.Errorf("web login: %s: %w", env.Message, reservation.ErrAuthentication)
	}
	c.logger.Info("web channel logged in")
	return nil
}

// loginWithChallenge retries a login that was answered with a captcha
// challenge. Without a solver this is an authentication failure: the whole
// point of the app-channel bypass is that this path is never taken.
func (c *Client) loginWithChallenge(ctx context.Context, form url.Values, data json.RawMessage) error {
	if c.cfg.Solver == nil {
		return fmt.Errorf("web login: captcha demanded and no solver configured: %w", reservation.ErrAuthentication)
	}
	var ch struct {
		Image  []byte `json:"image"`
		Prompt string `json:"prompt"`
	}
	if err := json.Unmarshal(data, &ch); err != nil {
		return fmt.Errorf("decode captcha challenge: %w", err)
	}
	points, err := c.cfg.Solver.Solve(ctx, ch.Image, ch.Prompt)
	if err != nil {
		return fmt.Errorf("solve captcha: %w", err)
	}
	answer, err := json.Marshal(points)
	if err != nil {
		return err
	}
	form.Set("captcha", string(answer))
	env, err := c.do(ctx, http.MethodPost, "/rest/auth", form)
	if err != nil {
		return err
	}
	if env.Status != "success" {
		return fmt.Errorf("web login: %s: %w", env.Message, reservation.ErrAuthentication)
	}
	c.logger.Info("web channel logged in", "captcha", true)
	return nil
}

type seatRecord struct {
	ID       json.Number `json:"id"`
	Location string      `json:"location"`
	Window   bool        `json:"window"`
	Power    bool        `json:"power"`
}

// Search queries currently-free seats matching the filter. An empty result is
// an empty slice, never an error; only network/server trouble is an error.
func (c *Client) Search(ctx context.Context, f reservation.Filter) ([]reservation.Seat, error) {
	start, err := timeslot.ParseClock(f.StartTime)
	if err != nil {
		return nil, err
	}
	end, err := timeslot.ParseClock(f.EndTime)
	if err != nil {
		return nil, err
	}
	form := url.Values{
		"onDate":    {c.date},
		"startTime": {strconv.Itoa(int(start))},
		"endTime":   {strconv.Itoa(int(end))},
		"building":  {f.Building},
		"room":      {f.Room},
	}
	env, err := c.do(ctx, http.MethodPost, "/rest/v2/searchSeats", form)
	if err != nil {
		if isFatal(err) {
			return nil, err
		}
		return nil, &reservation.TransientSearchError{Err: err}
	}
	if env.Status != "success" {
		return nil, &reservation.TransientSearchError{Err: fmt.Errorf("search rejected: %s", env.Message)}
	}
	var payload struct {
		Seats []seatRecord `json:"seats"`
	}
	if len(env.Data) > 0 && string(env.Data) != "null" {
		if err := json.Unmarshal(env.Data, &payload); err != nil {
			return nil, &reservation.TransientSearchError{Err: fmt.Errorf("decode seats: %w", err)}
		}
	}
	seats := make([]reservation.Seat, 0, len(payload.Seats))
	for _, r := range payload.Seats {
		s := reservation.Seat{
			ID:       r.ID.String(),
			Location: r.Location,
			Window:   r.Window,
			Power:    r.Power,
		}
		if f.Admits(s) {
			seats = append(seats, s)
		}
	}
	return seats, nil
}

type bookRecord struct {
	ID       json.Number `json:"id"`
	Location string      `json:"location"`
	Begin    string      `json:"begin"`
	End      string      `json:"end"`
	OnDate   string      `json:"onDate"`
}

// Reserve books the seat for [start, end) on this run's reserve date. The
// window is validated locally first so a bad window never costs a round trip.
func (c *Client) Reserve(ctx context.Context, seatID, start, end string) (reservation.Outcome, error) {
	ok, err := timeslot.Validate(start, end, c.isTomorrow, time.Now())
	if err != nil {
		return reservation.Outcome{}, err
	}
	if !ok {
		return reservation.Outcome{}, fmt.Errorf("window %s-%s on %s: %w", start, end, c.date, reservation.ErrTimeWindow)
	}
	s, _ := timeslot.ParseClock(start)
	e, _ := timeslot.ParseClock(end)
	form := url.Values{
		"t":         {"1"},
		"t2":        {"2"},
		"seat":      {seatID},
		"date":      {c.date},
		"startTime": {strconv.Itoa(int(s))},
		"endTime":   {strconv.Itoa(int(e))},
	}
	env, err := c.do(ctx, http.MethodPost, "/rest/v2/freeBook", form)
	if err != nil {
		return reservation.Outcome{}, err
	}
	if env.Status != "success" {
		// The platform reports both "seat just taken" and "you already hold a
		// reservation" through this path.
		return reservation.Outcome{}, fmt.Errorf("%s: %w", env.Message, reservation.ErrSeatUnavailable)
	}
	var rec bookRecord
	if err := json.Unmarshal(env.Data, &rec); err != nil {
		return reservation.Outcome{}, fmt.Errorf("decode booking: %w", err)
	}
	out := reservation.Outcome{
		ReservationID: rec.ID.String(),
		SeatID:        seatID,
		Location:      rec.Location,
		Begin:         rec.Begin,
		End:           rec.End,
		Date:          rec.OnDate,
	}
	c.logger.Info("seat reserved",
		"reservation", out.ReservationID, "location", out.Location,
		"begin", out.Begin, "end", out.End, "date", out.Date)
	return out, nil
}

// Cookies exposes the session cookies for persistence between runs.
func (c *Client) Cookies() []*http.Cookie {
	u, err := url.Parse(c.base)
	if err != nil {
		return nil
	}
	return c.hc.Jar.Cookies(u)
}

// SetCookies restores a previously persisted session.
func (c *Client) SetCookies(cookies []*http.Cookie) {
	u, err := url.Parse(c.base)
	if err != nil {
		return
	}
	c.hc.Jar.SetCookies(u, cookies)
}

type envelope struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Code    string          `json:"code"`
	Data    json.RawMessage `json:"data"`
}

func (c *Client) do(ctx context.Context, method, path string, form url.Values) (envelope, error) {
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return envelope{}, err
	}
	req.Header.Set("User-Agent", defaultUA)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded; charset=UTF-8")
	}

	res, err := c.hc.Do(req)
	if err != nil {
		return envelope{}, err
	}
	defer res.Body.Close()
	b, err := io.ReadAll(res.Body)
	if err != nil {
		return envelope{}, err
	}

	// Overload shedding comes back as plain text; match it before touching
	// the JSON decoder.
	if strings.HasPrefix(strings.TrimSpace(string(b)), overloadSentinel) {
		return envelope{}, reservation.ErrThrottled
	}
	if res.StatusCode == http.StatusUnauthorized || res.StatusCode == http.StatusForbidden {
		return envelope{}, fmt.Errorf("http %d: %w", res.StatusCode, reservation.ErrAuthentication)
	}
	if res.StatusCode >= 400 {
		return envelope{}, fmt.Errorf("http %d: %s", res.StatusCode, strings.TrimSpace(string(b)))
	}

	var env envelope
	if err := json.Unmarshal(b, &env); err != nil {
		return envelope{}, fmt.Errorf("decode response: %w", err)
	}
	return env, nil
}

func isFatal(err error) bool {
	return errors.Is(err, reservation.ErrThrottled) || errors.Is(err, reservation.ErrAuthentication)
}
