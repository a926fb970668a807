package fxrate

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/valyala/fasthttp"
)

type exchangeRateResponse struct {
	Result          string                     `json:"result"`
	ErrorType       string                     `json:"error-type"`
	Rates           map[string]decimal.Decimal `json:"rates"`
	ConversionRates map[string]decimal.Decimal `json:"conversion_rates"`
}

// NewExchangeRateFetcher fetches from ExchangeRate-API. With an API key the v6
// layout <baseURL>/<key>/latest/<base> is used, without one <baseURL>/latest/<base>.
func NewExchangeRateFetcher(client *fasthttp.Client, baseURL, apiKey string, timeout time.Duration) FetchFunc {
	if client == nil {
		client = &fasthttp.Client{
			Name:         "agro-booking",
			ReadTimeout:  timeout,
			WriteTimeout: timeout,
		}
	}
	baseURL = strings.TrimRight(baseURL, "/")

	return func(ctx context.Context, base string) (map[string]decimal.Decimal, error) {
		url := fmt.Sprintf("%s/latest/%s", baseURL, base)
		if apiKey != "" {
			url = fmt.Sprintf("%s/%s/latest/%s", baseURL, apiKey, base)
		}

		req := fasthttp.AcquireRequest()
		resp := fasthttp.AcquireResponse()
		defer fasthttp.ReleaseRequest(req)
		defer fasthttp.ReleaseResponse(resp)

		req.SetRequestURI(url)
		req.Header.SetMethod(fasthttp.MethodGet)
		req.Header.Set("Accept", "application/json")

		deadline := time.Now().Add(timeout)
		if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
			deadline = d
		}
		if err := client.DoDeadline(req, resp, deadline); err != nil {
			return nil, fmt.Errorf("request rates for %s: %w", base, err)
		}

		if resp.StatusCode() != fasthttp.StatusOK {
			return nil, fmt.Errorf("rates for %s: unexpected status %d", base, resp.StatusCode())
		}

		var body exchangeRateResponse
		if err := json.Unmarshal(resp.Body(), &body); err != nil {
			return nil, fmt.Errorf("decode rates for %s: %w", base, err)
		}
		if body.Result == "error" {
			return nil, fmt.Errorf("rates for %s: provider error %s", base, body.ErrorType)
		}

		rates := body.ConversionRates
		if len(rates) == 0 {
			rates = body.Rates
		}
		if len(rates) == 0 {
			return nil, fmt.Errorf("rates for %s: empty response", base)
		}
		return rates, nil
	}
}
