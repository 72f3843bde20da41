// Package kite is a minimal typed client for the Kite Connect REST API:
// session validation, positions, order placement and order history;
// everything the exit monitor needs, nothing else.
package kite

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/web3guy0/exitwave/internal/positions"
)

const (
	DefaultBaseURL = "https://api.kite.trade"

	apiVersion = "3"
)

type Client struct {
	baseURL     string
	apiKey      string
	accessToken string
	httpClient  *http.Client
	log         zerolog.Logger
}

// NewClient creates a Kite client. The access token may be empty until the
// session is established via SetAccessToken or GenerateSession.
func NewClient(apiKey, accessToken string, log zerolog.Logger) *Client {
	return &Client{
		baseURL:     DefaultBaseURL,
		apiKey:      apiKey,
		accessToken: accessToken,
		httpClient:  &http.Client{Timeout: 30 * time.Second},
		log:         log.With().Str("component", "kite").Logger(),
	}
}

// SetBaseURL overrides the API endpoint. Used by tests.
func (c *Client) SetBaseURL(u string) {
	c.baseURL = strings.TrimRight(u, "/")
}

// SetAccessToken installs a (new) session token.
func (c *Client) SetAccessToken(token string) {
	c.accessToken = token
}

// LoginURL is the browser URL a user completes the Kite login on. The
// request_token from the redirect is then fed to GenerateSession.
func (c *Client) LoginURL() string {
	return fmt.Sprintf("https://kite.zerodha.com/connect/login?v=%s&api_key=%s", apiVersion, c.apiKey)
}

// GenerateSession exchanges a request token for an access token. The
// checksum is sha256(api_key + request_token + api_secret) per the Kite
// Connect login flow. The new token is installed on the client and returned.
func (c *Client) GenerateSession(requestToken, apiSecret string) (string, error) {
	sum := sha256.Sum256([]byte(c.apiKey + requestToken + apiSecret))

	form := url.Values{}
	form.Set("api_key", c.apiKey)
	form.Set("request_token", requestToken)
	form.Set("checksum", hex.EncodeToString(sum[:]))

	var data sessionData
	if err := c.postForm("/session/token", form, &data); err != nil {
		return "", fmt.Errorf("generate session: %w", err)
	}

	c.accessToken = data.AccessToken
	c.log.Info().Str("user_id", data.UserID).Str("user_name", data.UserName).Msg("Session generated")
	return data.AccessToken, nil
}

// Profile fetches the user profile. A TokenException here means the cached
// access token is stale.
func (c *Client) Profile() (*Profile, error) {
	var p Profile
	if err := c.get("/user/profile", &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// Positions fetches the full position book and parses it into the typed
// model. A payload missing a required field (symbol, exchange) fails the
// whole fetch with a ParseError rather than defaulting it away.
func (c *Client) Positions() (*positions.Book, error) {
	var raw rawPositionBook
	if err := c.get("/portfolio/positions", &raw); err != nil {
		return nil, err
	}

	book := &positions.Book{}
	for _, r := range raw.Net {
		p, err := parsePosition(r)
		if err != nil {
			return nil, err
		}
		book.Net = append(book.Net, p)
	}
	for _, r := range raw.Day {
		p, err := parsePosition(r)
		if err != nil {
			return nil, err
		}
		book.Day = append(book.Day, p)
	}
	return book, nil
}

// PlaceMarketOrder submits a regular market day order and returns the order
// id assigned by the broker.
func (c *Client) PlaceMarketOrder(p OrderParams) (string, error) {
	form := url.Values{}
	form.Set("exchange", p.Exchange)
	form.Set("tradingsymbol", p.TradingSymbol)
	form.Set("transaction_type", p.TransactionType)
	form.Set("quantity", strconv.Itoa(p.Quantity))
	form.Set("product", p.Product)
	form.Set("order_type", OrderTypeMarket)
	form.Set("validity", ValidityDay)
	if p.Tag != "" {
		form.Set("tag", p.Tag)
	}

	var resp orderResponse
	if err := c.postForm("/orders/"+VarietyRegular, form, &resp); err != nil {
		return "", err
	}
	return resp.OrderID, nil
}

// OrderHistory returns the status history of one order, oldest first. The
// last entry carries the current status.
func (c *Client) OrderHistory(orderID string) ([]Order, error) {
	var history []Order
	if err := c.get("/orders/"+orderID, &history); err != nil {
		return nil, err
	}
	return history, nil
}

func parsePosition(r rawPosition) (positions.Position, error) {
	if r.TradingSymbol == "" {
		return positions.Position{}, &ParseError{Field: "tradingsymbol", Reason: "is empty"}
	}
	if r.Exchange == "" {
		return positions.Position{}, &ParseError{Field: "exchange", Reason: "is empty"}
	}

	return positions.Position{
		TradingSymbol:   r.TradingSymbol,
		Exchange:        r.Exchange,
		InstrumentToken: r.InstrumentToken,
		Product:         r.Product,
		Quantity:        r.Quantity,
		AveragePrice:    r.AveragePrice,
		LastPrice:       r.LastPrice,
		PnL:             r.PnL,
		M2M:             r.M2M,
		BuyQuantity:     r.BuyQuantity,
		SellQuantity:    r.SellQuantity,
		BuyPrice:        r.BuyPrice,
		SellPrice:       r.SellPrice,
	}, nil
}

// ─── HTTP plumbing ───

func (c *Client) get(path string, out interface{}) error {
	req, err := http.NewRequest(http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) postForm(path string, form url.Values, out interface{}) error {
	req, err := http.NewRequest(http.MethodPost, c.baseURL+path, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out interface{}) error {
	req.Header.Set("X-Kite-Version", apiVersion)
	if c.accessToken != "" {
		req.Header.Set("Authorization", "token "+c.apiKey+":"+c.accessToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("kite: request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("kite: read response: %w", err)
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return fmt.Errorf("kite: decode response (%d): %w", resp.StatusCode, err)
	}

	if resp.StatusCode != http.StatusOK || env.Status == "error" {
		return &APIError{
			Status:    resp.StatusCode,
			ErrorType: env.ErrorType,
			Message:   env.Message,
		}
	}

	if out == nil || len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("kite: decode data: %w", err)
	}
	return nil
}
