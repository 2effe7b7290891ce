// Package appchan wraps the companion app surface: a token-authenticated
// channel with no captcha, used to inspect and release the account's
// reservation. It never creates reservations; only the web channel sees live
// availability.
package appchan

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/xuyuanfang/WHULibSeatReservation/internal/reservation"
)

const defaultBaseURL = "https://seat.lib.whu.edu.cn:8443"
const defaultUA = "doSingle/11 CFNetwork/976 Darwin/18.2.0"

const overloadSentinel = "WHU Library seat reserving system is over loading," +
	" please don't use un-offical applications!"

type Config struct {
	BaseURL  string
	Username string
	Password string

	Logger *slog.Logger
}

// Client holds the bearer token for the app surface. The token is this
// channel's whole session; it is sent as a "token" header on every call.
type Client struct {
	hc  *http.Client
	cfg Config

	base   string
	logger *slog.Logger
	token  string
}

func New(cfg Config) *Client {
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = defaultBaseURL
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		hc:     &http.Client{Timeout: 20 * time.Second},
		cfg:    cfg,
		base:   base,
		logger: logger,
	}
}

// Login exchanges username/password for a token. The exchange carries no
// captcha, which is what makes the whole bypass work.
func (c *Client) Login(ctx context.Context) error {
	path := fmt.Sprintf("/rest/auth?username=%s&password=%s",
		url.QueryEscape(c.cfg.Username), url.QueryEscape(c.cfg.Password))
	env, err := c.do(ctx, path)
	if err != nil {
		return err
	}
	if env.Status != "success" {
		return fmt.Errorf("app login: %s: %w", env.Message, reservation.ErrAuthentication)
	}
	var data struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return fmt.Errorf("decode token: %w", err)
	}
	if data.Token == "" {
		return fmt.Errorf("app login: empty token: %w", reservation.ErrAuthentication)
	}
	c.token = data.Token
	c.logger.Info("app channel logged in")
	return nil
}

// Token exposes the session token for persistence between runs.
func (c *Client) Token() string { return c.token }

// SetToken restores a previously persisted session.
func (c *Client) SetToken(tok string) { c.token = tok }

type reservationRecord struct {
	ID       json.Number `json:"id"`
	SeatID   json.Number `json:"seatId"`
	Status   string      `json:"status"`
	Location string      `json:"location"`
	Begin    string      `json:"begin"`
	End      string      `json:"end"`
	OnDate   string      `json:"onDate"`
}

// CurrentReservation returns the account's single active reservation, or nil
// when there is none. The platform guarantees at most one; more than one is
// surfaced as an error rather than silently picking the first.
func (c *Client) CurrentReservation(ctx context.Context) (*reservation.Reservation, error) {
	env, err := c.do(ctx, "/rest/v2/user/reservations")
	if err != nil {
		return nil, err
	}
	if env.Status != "success" {
		return nil, fmt.Errorf("reservation query: %s", env.Message)
	}
	var records []reservationRecord
	if len(env.Data) > 0 && string(env.Data) != "null" {
		if err := json.Unmarshal(env.Data, &records); err != nil {
			return nil, fmt.Errorf("decode reservations: %w", err)
		}
	}
	switch len(records) {
	case 0:
		return nil, nil
	case 1:
	default:
		return nil, fmt.Errorf("account holds %d reservations, expected at most one", len(records))
	}
	rec := records[0]
	status := reservation.Status(rec.Status)
	switch status {
	case reservation.StatusReserved, reservation.StatusInUse:
	default:
		return nil, fmt.Errorf("unknown reservation status %q", rec.Status)
	}
	return &reservation.Reservation{
		ID:       rec.ID.String(),
		SeatID:   rec.SeatID.String(),
		Status:   status,
		Location: rec.Location,
		Begin:    rec.Begin,
		End:      rec.End,
		Date:     rec.OnDate,
	}, nil
}

// Cancel cancels a not-yet-checked-in reservation. The return value is the
// platform's own success report, not an inference.
func (c *Client) Cancel(ctx context.Context, reservationID string) (bool, error) {
	env, err := c.do(ctx, "/rest/v2/cancel/"+url.PathEscape(reservationID))
	if err != nil {
		return false, err
	}
	if env.Status != "success" {
		c.logger.Warn("cancel rejected", "reservation", reservationID, "message", env.Message)
		return false, nil
	}
	return true, nil
}

// StopUsing ends a checked-in occupation.
func (c *Client) StopUsing(ctx context.Context) (bool, error) {
	env, err := c.do(ctx, "/rest/v2/stop")
	if err != nil {
		return false, err
	}
	if env.Status != "success" {
		c.logger.Warn("stop-using rejected", "message", env.Message)
		return false, nil
	}
	return true, nil
}

type envelope struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Code    string          `json:"code"`
	Data    json.RawMessage `json:"data"`
}

func (c *Client) do(ctx context.Context, path string) (envelope, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+path, nil)
	if err != nil {
		return envelope{}, err
	}
	req.Header.Set("User-Agent", defaultUA)
	req.Header.Set("Accept", "*/*")
	if c.token != "" {
		req.Header.Set("token", c.token)
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
