package polymarket

// trading.go — Real order execution via Polymarket CLOB API.
//
// Implements ports.OrderExecutor using AuthClient for L1/L2 auth.
// Entries are fill-or-kill market buys bounded by a worst price: either
// the whole stake fills at or below the observed ask, or nothing does.

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/alejandrodnm/polymoly/internal/ports"
)

// clobOrderRequest is the JSON body sent to POST /order.
type clobOrderRequest struct {
	Order     clobOrderBody `json:"order"`
	Owner     string        `json:"owner"`
	OrderType string        `json:"orderType"`
}

type clobOrderBody struct {
	Salt          json.Number `json:"salt"`
	Maker         string      `json:"maker"`
	Signer        string      `json:"signer"`
	Taker         string      `json:"taker"`
	TokenID       string      `json:"tokenId"`
	MakerAmount   string      `json:"makerAmount"`
	TakerAmount   string      `json:"takerAmount"`
	Expiration    string      `json:"expiration"`
	Nonce         string      `json:"nonce"`
	FeeRateBps    string      `json:"feeRateBps"`
	Side          string      `json:"side"`
	SignatureType int         `json:"signatureType"`
	Signature     string      `json:"signature"`
}

type clobOrderResponse struct {
	ErrorMsg     string `json:"errorMsg"`
	OrderID      string `json:"orderID"`
	TakingAmount string `json:"takingAmount"`
	MakingAmount string `json:"makingAmount"`
	Status       string `json:"status"`
	Success      bool   `json:"success"`
}

const usdcEAddress = "0x2791Bca1f2de4661ED88A30C99A7a9449Aa84174"

var balanceOfABI abi.ABI

func init() {
	var err error
	balanceOfABI, err = abi.JSON(strings.NewReader(`[{
		"name":"balanceOf","type":"function",
		"inputs":[{"name":"account","type":"address"}],
		"outputs":[{"name":"","type":"uint256"}]
	}]`))
	if err != nil {
		panic("balanceOf abi: " + err.Error())
	}
}

// TradingClient implements ports.OrderExecutor.
type TradingClient struct {
	auth      *AuthClient
	rpcClient *ethclient.Client
}

// NewTradingClient creates a TradingClient. rpcURL is used for the on-chain
// USDC balance check at startup; empty disables it.
func NewTradingClient(auth *AuthClient, rpcURL string) (*TradingClient, error) {
	tc := &TradingClient{auth: auth}
	if rpcURL != "" {
		rpc, err := ethclient.Dial(rpcURL)
		if err != nil {
			return nil, fmt.Errorf("trading: dial rpc: %w", err)
		}
		tc.rpcClient = rpc
	}
	return tc, nil
}

// PlaceFOKBuy signs and submits a fill-or-kill BUY bounded at req.WorstPrice.
// An expected kill (no liquidity at the bound) comes back as NotFilled=true
// with no error; only transport or exchange failures return an error.
func (tc *TradingClient) PlaceFOKBuy(ctx context.Context, req ports.FOKOrderRequest) (ports.FOKOrderResponse, error) {
	if err := tc.auth.EnsureCreds(ctx); err != nil {
		return ports.FOKOrderResponse{}, fmt.Errorf("fok buy: creds: %w", err)
	}

	signed, err := tc.auth.buildSignedOrder(req.TokenID, req.WorstPrice, req.AmountUSDC, req.TickSize, req.NegRisk)
	if err != nil {
		return ports.FOKOrderResponse{}, fmt.Errorf("fok buy: sign: %w", err)
	}

	body := clobOrderRequest{
		Order: clobOrderBody{
			Salt:          json.Number(signed.Order.Salt.String()),
			Maker:         signed.Order.Maker.Hex(),
			Signer:        signed.Order.Signer.Hex(),
			Taker:         signed.Order.Taker.Hex(),
			TokenID:       req.TokenID,
			MakerAmount:   signed.Order.MakerAmount.String(),
			TakerAmount:   signed.Order.TakerAmount.String(),
			Expiration:    signed.Order.Expiration.String(),
			Nonce:         signed.Order.Nonce.String(),
			FeeRateBps:    signed.Order.FeeRateBps.String(),
			Side:          "BUY",
			SignatureType: int(signed.Order.SignatureType.Int64()),
			Signature:     "0x" + hex.EncodeToString(signed.Signature),
		},
		Owner:     tc.auth.creds.APIKey,
		OrderType: "FOK",
	}

	var resp clobOrderResponse
	if err := tc.auth.doL2(ctx, http.MethodPost, "/order", body, &resp); err != nil {
		return ports.FOKOrderResponse{}, fmt.Errorf("fok buy: post: %w", err)
	}

	out := ports.FOKOrderResponse{
		OrderID:  resp.OrderID,
		Status:   resp.Status,
		ErrorMsg: resp.ErrorMsg,
	}

	if !resp.Success || resp.ErrorMsg != "" {
		if isNotFilled(resp.ErrorMsg) {
			out.NotFilled = true
			return out, nil
		}
		return out, fmt.Errorf("fok buy: clob error: %s", resp.ErrorMsg)
	}
	return out, nil
}

// isNotFilled recognizes the CLOB's expected FOK kill messages.
func isNotFilled(errorMsg string) bool {
	lower := strings.ToLower(errorMsg)
	return strings.Contains(lower, "not filled") ||
		strings.Contains(lower, "couldn't be fully filled") ||
		strings.Contains(lower, "fok order")
}

// USDCBalance returns the on-chain USDC.e balance of the wallet.
func (tc *TradingClient) USDCBalance(ctx context.Context) (float64, error) {
	if tc.rpcClient == nil {
		return 0, fmt.Errorf("usdc balance: no rpc configured")
	}

	callData, err := balanceOfABI.Pack("balanceOf", tc.auth.address)
	if err != nil {
		return 0, fmt.Errorf("usdc balance: pack: %w", err)
	}

	token := common.HexToAddress(usdcEAddress)
	result, err := tc.rpcClient.CallContract(ctx, ethereum.CallMsg{
		To:   &token,
		Data: callData,
	}, nil)
	if err != nil {
		return 0, fmt.Errorf("usdc balance: rpc call: %w", err)
	}

	vals, err := balanceOfABI.Unpack("balanceOf", result)
	if err != nil || len(vals) == 0 {
		return 0, fmt.Errorf("usdc balance: unpack: %w", err)
	}

	raw := vals[0].(*big.Int)
	bal, _ := new(big.Float).Quo(new(big.Float).SetInt(raw), new(big.Float).SetFloat64(1e6)).Float64()
	return bal, nil
}
