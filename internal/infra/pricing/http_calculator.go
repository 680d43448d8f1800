package pricing

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	domainpricing "rentacar/internal/domain/pricing"
	"rentacar/internal/domain/shared/money"
	"rentacar/internal/domain/shared/period"
)

var ErrServiceUnavailable = errors.New("pricing: service unavailable")

// HTTPCalculator asks the pricing service for the policy that applies to a
// booking and prices the period locally from that policy.
type HTTPCalculator struct {
	Client  *http.Client
	BaseURL string
	Timeout time.Duration
	Logger  *slog.Logger
}

type policyRequest struct {
	CategoryCode   string `json:"category_code"`
	PickupLocation string `json:"pickup_location,omitempty"`
	PickupDate     string `json:"pickup_date"`
	ReturnDate     string `json:"return_date"`
}

type policyResponse struct {
	ID           string `json:"id"`
	CategoryCode string `json:"category_code"`
	LocationCode string `json:"location_code"`
	DailyRateNet string `json:"daily_rate_net"`
	VATRate      string `json:"vat_rate"`
	Currency     string `json:"currency"`
}

func (c *HTTPCalculator) CalculatePrice(ctx context.Context, categoryCode string, p period.BookingPeriod, pickupLocation string) (domainpricing.Quote, error) {
	var zero domainpricing.Quote
	if c == nil || c.Client == nil {
		return zero, errors.New("pricing: http client not configured")
	}
	if c.BaseURL == "" {
		return zero, errors.New("pricing: service url not configured")
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout())
	defer cancel()

	body, err := json.Marshal(policyRequest{
		CategoryCode:   categoryCode,
		PickupLocation: pickupLocation,
		PickupDate:     p.PickupDate().Format(period.DateLayout),
		ReturnDate:     p.ReturnDate().Format(period.DateLayout),
	})
	if err != nil {
		return zero, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url("/v1/policies/resolve"), bytes.NewReader(body))
	if err != nil {
		return zero, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.Client.Do(req)
	if err != nil {
		err = c.transportError(err)
		c.logError(ctx, "pricing request failed", categoryCode, err)
		return zero, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return zero, &domainpricing.NoPolicyError{
			CategoryCode: strings.ToUpper(categoryCode),
			LocationCode: strings.ToUpper(pickupLocation),
			PickupDate:   p.PickupDate(),
		}
	case resp.StatusCode >= http.StatusBadRequest:
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		err := fmt.Errorf("%w: status %d: %s", ErrServiceUnavailable, resp.StatusCode, strings.TrimSpace(string(snippet)))
		c.logError(ctx, "pricing service returned error", categoryCode, err)
		return zero, err
	}

	var out policyResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		c.logError(ctx, "pricing decode failed", categoryCode, err)
		return zero, err
	}
	policy, err := out.toPolicy()
	if err != nil {
		return zero, err
	}
	return policy.Quote(p)
}

// Ping calls the service health endpoint for readiness checks.
func (c *HTTPCalculator) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url("/healthz"), nil)
	if err != nil {
		return err
	}
	resp, err := c.Client.Do(req)
	if err != nil {
		return c.transportError(err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("%w: health returned %d", ErrServiceUnavailable, resp.StatusCode)
	}
	return nil
}

func (r policyResponse) toPolicy() (domainpricing.Policy, error) {
	dailyNet, err := decimal.NewFromString(r.DailyRateNet)
	if err != nil {
		return domainpricing.Policy{}, fmt.Errorf("pricing: daily_rate_net %q: %w", r.DailyRateNet, err)
	}
	rate, err := decimal.NewFromString(r.VATRate)
	if err != nil {
		return domainpricing.Policy{}, fmt.Errorf("pricing: vat_rate %q: %w", r.VATRate, err)
	}
	daily, err := money.FromNet(dailyNet, rate, r.Currency)
	if err != nil {
		return domainpricing.Policy{}, err
	}
	return domainpricing.NewPolicy(r.ID, r.CategoryCode, r.LocationCode, daily, time.Time{}, time.Time{})
}

func (c *HTTPCalculator) transportError(err error) error {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return fmt.Errorf("%w: timeout after %s: %w", ErrServiceUnavailable, c.timeout(), err)
	}
	return fmt.Errorf("%w: %w", ErrServiceUnavailable, err)
}

func (c *HTTPCalculator) url(path string) string {
	return strings.TrimRight(c.BaseURL, "/") + path
}

func (c *HTTPCalculator) timeout() time.Duration {
	if c.Timeout <= 0 {
		return 2 * time.Second
	}
	return c.Timeout
}

func (c *HTTPCalculator) logError(ctx context.Context, msg, category string, err error) {
	if c.Logger == nil {
		return
	}
	c.Logger.ErrorContext(ctx, msg, slog.String("category_code", category), slog.Any("err", err))
}

var _ domainpricing.Calculator = (*HTTPCalculator)(nil)
