package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/ksred/escrow-api/internal/auth"
	"github.com/ksred/escrow-api/internal/types"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const serverAddress = "http://localhost:8080"

// Asset classes used by the scenario. The membership collections must
// match the server's ELITE_COLLECTION / REGULAR_COLLECTION settings.
const (
	regularCollection = "membership:regular"
	swordCollection   = "collection:swords"
	shieldCollection  = "collection:shields"
)

// init configures the logger for the simulation with pretty printing and timestamp
func init() {
	output := zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: time.RFC3339,
	}
	log.Logger = zerolog.New(output).With().Timestamp().Logger()
}

// envelope mirrors the API's standard response wrapper
type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// simulationClient handles HTTP communication with the escrow API
type simulationClient struct {
	baseURL string
	client  *http.Client

	adminToken        string
	initiatorToken    string
	counterpartyToken string
}

func newSimulationClient() (*simulationClient, error) {
	sc := &simulationClient{
		baseURL: serverAddress,
		client:  &http.Client{Timeout: 10 * time.Second},
	}

	var err error
	if sc.adminToken, err = sc.authenticate(os.Getenv("ADMIN_API_KEY"), os.Getenv("ADMIN_API_SECRET"), "admin-api-key", "admin-api-secret"); err != nil {
		return nil, fmt.Errorf("admin authentication: %w", err)
	}
	if sc.initiatorToken, err = sc.authenticate(auth.TestInitiatorAPIKey, auth.TestInitiatorAPISecret, "", ""); err != nil {
		return nil, fmt.Errorf("initiator authentication: %w", err)
	}
	if sc.counterpartyToken, err = sc.authenticate(auth.TestCounterpartyAPIKey, auth.TestCounterpartyAPISecret, "", ""); err != nil {
		return nil, fmt.Errorf("counterparty authentication: %w", err)
	}

	return sc, nil
}

// authenticate exchanges API credentials for a JWT token
func (sc *simulationClient) authenticate(apiKey, apiSecret, fallbackKey, fallbackSecret string) (string, error) {
	if apiKey == "" {
		apiKey, apiSecret = fallbackKey, fallbackSecret
	}

	var result struct {
		Token string `json:"jwt_token"`
	}
	err := sc.do("POST", "/api/v1/auth/token", "", "",
		map[string]string{"api_key": apiKey, "api_secret": apiSecret}, &result)
	if err != nil {
		return "", err
	}
	return result.Token, nil
}

// do performs a request, unwraps the response envelope, and decodes the
// data payload into out (when out is non-nil).
func (sc *simulationClient) do(method, path, token, idempotencyKey string, body, out interface{}) error {
	var reader *bytes.Buffer
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewBuffer(payload)
	} else {
		reader = bytes.NewBuffer(nil)
	}

	req, err := http.NewRequest(method, sc.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if idempotencyKey != "" {
		req.Header.Set("Idempotency-Key", idempotencyKey)
	}

	resp, err := sc.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("%s %s: decoding response: %w", method, path, err)
	}

	if !env.Success {
		if env.Error != nil {
			return fmt.Errorf("%s %s: %s (%s)", method, path, env.Error.Message, env.Error.Code)
		}
		return fmt.Errorf("%s %s: failed with status %d", method, path, resp.StatusCode)
	}

	if out != nil {
		return json.Unmarshal(env.Data, out)
	}
	return nil
}

func (sc *simulationClient) mintAsset(class string, assetID uint64, owner string) error {
	return sc.do("POST", "/api/v1/internal/assets", sc.adminToken, "",
		map[string]interface{}{"asset_class": class, "asset_id": assetID, "owner": owner}, nil)
}

func (sc *simulationClient) creditFunds(account string, amount uint64) error {
	return sc.do("POST", "/api/v1/internal/funds", sc.adminToken, "",
		map[string]interface{}{"account": account, "amount": amount}, nil)
}

func (sc *simulationClient) createTrade(offered, requested []types.Item) (*types.TradeResponse, error) {
	var trade types.TradeResponse
	err := sc.do("POST", "/api/v1/trades", sc.initiatorToken, uuid.New().String(),
		map[string]interface{}{
			"counterparty":    auth.TestCounterpartyAccount,
			"offered_items":   offered,
			"requested_items": requested,
		}, &trade)
	if err != nil {
		return nil, err
	}
	return &trade, nil
}

func main() {
	log.Info().Msg("starting escrow simulation")

	sc, err := newSimulationClient()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize simulation client")
	}

	// Seed the ledger: a regular membership for the initiator, the two
	// asset bundles, and fungible balances for the fees.
	seed := []struct {
		class   string
		assetID uint64
		owner   string
	}{
		{regularCollection, 1, auth.TestInitiatorAccount},
		{swordCollection, 1, auth.TestInitiatorAccount},
		{swordCollection, 2, auth.TestInitiatorAccount},
		{shieldCollection, 10, auth.TestCounterpartyAccount},
		{shieldCollection, 11, auth.TestCounterpartyAccount},
	}
	for _, s := range seed {
		if err := sc.mintAsset(s.class, s.assetID, s.owner); err != nil {
			log.Fatal().Err(err).Str("class", s.class).Uint64("asset_id", s.assetID).Msg("mint failed")
		}
	}
	for _, account := range []string{auth.TestInitiatorAccount, auth.TestCounterpartyAccount} {
		if err := sc.creditFunds(account, 100); err != nil {
			log.Fatal().Err(err).Str("account", account).Msg("credit failed")
		}
	}
	log.Info().Msg("ledger seeded")

	// Happy path: create, fetch, accept.
	trade, err := sc.createTrade(
		[]types.Item{{AssetClass: swordCollection, AssetID: 1}, {AssetClass: swordCollection, AssetID: 2}},
		[]types.Item{{AssetClass: shieldCollection, AssetID: 10}},
	)
	if err != nil {
		log.Fatal().Err(err).Msg("trade creation failed")
	}
	log.Info().Uint64("trade_id", trade.TradeID).Str("status", trade.Status).Msg("trade created")

	var fetched types.TradeResponse
	if err := sc.do("GET", fmt.Sprintf("/api/v1/trades/%d", trade.TradeID), sc.counterpartyToken, "", nil, &fetched); err != nil {
		log.Fatal().Err(err).Msg("trade fetch failed")
	}
	log.Info().
		Uint64("trade_id", fetched.TradeID).
		Int("offered", len(fetched.OfferedItems)).
		Int("requested", len(fetched.RequestedItems)).
		Msg("trade fetched")

	if err := sc.do("POST", fmt.Sprintf("/api/v1/trades/%d/accept", trade.TradeID), sc.counterpartyToken, "", nil, nil); err != nil {
		log.Fatal().Err(err).Msg("trade acceptance failed")
	}
	log.Info().Uint64("trade_id", trade.TradeID).Msg("trade accepted")

	// Cancellation path: the counterparty now holds the swords.
	second, err := sc.createTrade(
		[]types.Item{{AssetClass: regularCollection, AssetID: 1}},
		[]types.Item{{AssetClass: shieldCollection, AssetID: 11}},
	)
	if err != nil {
		log.Fatal().Err(err).Msg("second trade creation failed")
	}
	if err := sc.do("POST", fmt.Sprintf("/api/v1/trades/%d/cancel", second.TradeID), sc.initiatorToken, "", nil, nil); err != nil {
		log.Fatal().Err(err).Msg("trade cancellation failed")
	}
	log.Info().Uint64("trade_id", second.TradeID).Msg("trade cancelled")

	// Administrative path: raise the non-holder rate, pause, verify the
	// gate rejects creation, unpause, withdraw the accrued fees.
	if err := sc.do("PUT", "/api/v1/admin/fees/NON_HOLDER", sc.adminToken, "",
		map[string]uint64{"per_item": 5}, nil); err != nil {
		log.Fatal().Err(err).Msg("fee update failed")
	}

	if err := sc.do("POST", "/api/v1/admin/pause", sc.adminToken, "", nil, nil); err != nil {
		log.Fatal().Err(err).Msg("pause failed")
	}
	if _, err := sc.createTrade(
		[]types.Item{{AssetClass: shieldCollection, AssetID: 11}},
		[]types.Item{{AssetClass: swordCollection, AssetID: 1}},
	); err != nil {
		log.Info().Err(err).Msg("trade creation rejected while paused, as expected")
	} else {
		log.Error().Msg("trade creation succeeded while paused")
	}
	if err := sc.do("POST", "/api/v1/admin/unpause", sc.adminToken, "", nil, nil); err != nil {
		log.Fatal().Err(err).Msg("unpause failed")
	}

	var withdrawal struct {
		Withdrawn uint64 `json:"withdrawn"`
	}
	if err := sc.do("POST", "/api/v1/admin/withdrawals", sc.adminToken, "", nil, &withdrawal); err != nil {
		log.Fatal().Err(err).Msg("fee withdrawal failed")
	}
	log.Info().Uint64("withdrawn", withdrawal.Withdrawn).Msg("fees withdrawn")

	log.Info().Msg("simulation completed")
}
