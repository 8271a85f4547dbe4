package integration

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type auctionConfigResp struct {
	ID              uint   `json:"id"`
	Variant         string `json:"variant"`
	TotalSaleAmount uint64 `json:"total_sale_amount"`
	State           string `json:"state"`
	CurrentPrice    uint64 `json:"current_price"`
	FinalPrice      uint64 `json:"final_price"`
	IsSuccess       bool   `json:"is_success"`
}

type purchaseResp struct {
	AuctionID     uint   `json:"auction_id"`
	Price         uint64 `json:"price"`
	Allocation    uint64 `json:"allocation"`
	PaymentAmount uint64 `json:"payment_amount"`
	PositionID    uint   `json:"position_id"`
	Seq           uint64 `json:"seq"`
}

func postJSON(t *testing.T, url string, body interface{}) *http.Response {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewBuffer(payload))
	require.NoError(t, err)
	return resp
}

func fund(t *testing.T, mint, address string, amount uint64) {
	t.Helper()
	resp := postJSON(t, BaseURL+"/token-account/fund", map[string]interface{}{
		"mint":    mint,
		"address": address,
		"amount":  amount,
	})
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestTimedBondAuctionFlow(t *testing.T) {
	requireServer(t)

	fund(t, testSaleToken, testOwner, 2_000_000)
	fund(t, testPayToken, testBuyer, 10_000_000)

	now := time.Now().Unix()
	var auctionID uint

	t.Run("Create Auction", func(t *testing.T) {
		resp := postJSON(t, BaseURL+"/auction-config", map[string]interface{}{
			"owner":               testOwner,
			"sale_token":          testSaleToken,
			"payment_token":       testPayToken,
			"payment_destination": testDestination,
			"variant":             "timed_bond",
			"total_sale_amount":   1_000_000,
			"start_time":          now - 60,
			"end_time":            now + 3600,
			"min_price":           100_000_000, // 0.1 scaled by 1e9
			"max_price":           500_000_000,
			"instant_unlock":      1_000_000_000, // fully unlocked at purchase
		})
		defer resp.Body.Close()
		require.Equal(t, http.StatusCreated, resp.StatusCode)

		var auction auctionConfigResp
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&auction))
		require.NotZero(t, auction.ID)
		assert.Equal(t, "in_progress", auction.State)
		assert.NotZero(t, auction.CurrentPrice)
		auctionID = auction.ID
	})

	t.Run("Quote Matches Purchase", func(t *testing.T) {
		quoteURL := urlf("/purchase/quote?auction_id=%d&payment_amount=%d", auctionID, 100_000)
		resp, err := http.Get(quoteURL)
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var quote struct {
			Price      uint64 `json:"price"`
			Allocation uint64 `json:"allocation"`
		}
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&quote))
		assert.NotZero(t, quote.Allocation)

		buyResp := postJSON(t, BaseURL+"/purchase", map[string]interface{}{
			"auction_id":     auctionID,
			"buyer":          testBuyer,
			"payment_amount": 100_000,
		})
		defer buyResp.Body.Close()
		require.Equal(t, http.StatusOK, buyResp.StatusCode)

		var purchase purchaseResp
		require.NoError(t, json.NewDecoder(buyResp.Body).Decode(&purchase))
		assert.Equal(t, quote.Allocation, purchase.Allocation)
		assert.NotZero(t, purchase.PositionID)
		assert.Equal(t, uint64(1), purchase.Seq)

		t.Run("Withdraw Instant Unlock", func(t *testing.T) {
			resp := postJSON(t, urlf("/vesting-position/%d/withdraw", purchase.PositionID),
				map[string]interface{}{"buyer": testBuyer})
			defer resp.Body.Close()
			require.Equal(t, http.StatusOK, resp.StatusCode)

			var result struct {
				AmountTransferred uint64 `json:"amount_transferred"`
				WithdrawnAmount   uint64 `json:"withdrawn_amount"`
			}
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
			assert.Equal(t, purchase.Allocation, result.AmountTransferred)

			again := postJSON(t, urlf("/vesting-position/%d/withdraw", purchase.PositionID),
				map[string]interface{}{"buyer": testBuyer})
			defer again.Body.Close()
			require.Equal(t, http.StatusOK, again.StatusCode)
			require.NoError(t, json.NewDecoder(again.Body).Decode(&result))
			assert.Zero(t, result.AmountTransferred)
		})

		t.Run("Withdraw Wrong Buyer Denied", func(t *testing.T) {
			resp := postJSON(t, urlf("/vesting-position/%d/withdraw", purchase.PositionID),
				map[string]interface{}{"buyer": testOwner})
			defer resp.Body.Close()
			assert.Equal(t, http.StatusForbidden, resp.StatusCode)
		})
	})

	t.Run("Update In Progress Rejected", func(t *testing.T) {
		payload, err := json.Marshal(map[string]interface{}{"max_price": 600_000_000})
		require.NoError(t, err)
		req, err := http.NewRequest(http.MethodPut, urlf("/auction-config/%d", auctionID), bytes.NewBuffer(payload))
		require.NoError(t, err)
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Owner", testOwner)

		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusConflict, resp.StatusCode)
	})

	t.Run("Settle Before End Rejected", func(t *testing.T) {
		resp := postJSON(t, urlf("/auction-config/%d/settle", auctionID), nil)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusConflict, resp.StatusCode)
	})

	t.Run("State Endpoint", func(t *testing.T) {
		resp, err := http.Get(urlf("/auction-config/%d/state", auctionID))
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var state struct {
			State   string `json:"state"`
			Settled bool   `json:"settled"`
			Sold    uint64 `json:"sold"`
		}
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&state))
		assert.Equal(t, "in_progress", state.State)
		assert.False(t, state.Settled)
		assert.NotZero(t, state.Sold)
	})
}

func doJSON(t *testing.T, method, url, owner string, body interface{}) *http.Response {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)
	req, err := http.NewRequest(method, url, bytes.NewBuffer(payload))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if owner != "" {
		req.Header.Set("X-Owner", owner)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func TestPendingAuctionAdministration(t *testing.T) {
	requireServer(t)

	const newOwner = "Stake11111111111111111111111111111111111111"

	fund(t, testSaleToken, testOwner, 10_000)
	fund(t, testPayToken, testBuyer, 1_000_000)

	now := time.Now().Unix()
	resp := postJSON(t, BaseURL+"/auction-config", map[string]interface{}{
		"owner":               testOwner,
		"sale_token":          testSaleToken,
		"payment_token":       testPayToken,
		"payment_destination": testDestination,
		"variant":             "timed_bond",
		"total_sale_amount":   1_000,
		"start_time":          now + 2,
		"end_time":            now + 3600,
		"min_price":           100_000_000,
		"max_price":           500_000_000,
	})
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var auction auctionConfigResp
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&auction))

	t.Run("Deposit Keeps Total Fixed", func(t *testing.T) {
		resp := doJSON(t, http.MethodPost, urlf("/auction-config/%d/deposit", auction.ID),
			testOwner, map[string]interface{}{"amount": 500})
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var funded auctionConfigResp
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&funded))
		assert.Equal(t, uint64(1_000), funded.TotalSaleAmount)
	})

	t.Run("Authority Transfer Requires Owner", func(t *testing.T) {
		resp := doJSON(t, http.MethodPut, urlf("/auction-config/%d/authority", auction.ID),
			testBuyer, map[string]interface{}{"new_owner": newOwner})
		defer resp.Body.Close()
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	})

	t.Run("Authority Transfer", func(t *testing.T) {
		resp := doJSON(t, http.MethodPut, urlf("/auction-config/%d/authority", auction.ID),
			testOwner, map[string]interface{}{"new_owner": newOwner})
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var transferred struct {
			Owner string `json:"owner"`
		}
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&transferred))
		assert.Equal(t, newOwner, transferred.Owner)

		// The previous owner lost admin rights.
		old := doJSON(t, http.MethodPut, urlf("/auction-config/%d", auction.ID),
			testOwner, map[string]interface{}{"max_price": 600_000_000})
		defer old.Body.Close()
		assert.Equal(t, http.StatusForbidden, old.StatusCode)
	})

	t.Run("Close Is Recorded", func(t *testing.T) {
		resp := doJSON(t, http.MethodPost, urlf("/auction-config/%d/close", auction.ID), newOwner, nil)
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var closed struct {
			Refunded uint64 `json:"refunded"`
		}
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&closed))
		assert.Equal(t, uint64(1_500), closed.Refunded, "initial funding plus deposit")

		again := doJSON(t, http.MethodPost, urlf("/auction-config/%d/close", auction.ID), newOwner, nil)
		defer again.Body.Close()
		assert.Equal(t, http.StatusConflict, again.StatusCode)
	})

	t.Run("Closed Auction Refuses Purchases", func(t *testing.T) {
		// Wait out the start time so the window alone would allow buying.
		time.Sleep(3 * time.Second)

		resp := postJSON(t, BaseURL+"/purchase", map[string]interface{}{
			"auction_id":     auction.ID,
			"buyer":          testBuyer,
			"payment_amount": 100,
		})
		defer resp.Body.Close()
		assert.Equal(t, http.StatusConflict, resp.StatusCode)
	})
}

func TestDecayAuctionPurchase(t *testing.T) {
	requireServer(t)

	fund(t, testSaleToken, testOwner, 2_000_000)
	fund(t, testPayToken, testBuyer, 100_000_000)

	now := time.Now().Unix()

	resp := postJSON(t, BaseURL+"/auction-config", map[string]interface{}{
		"owner":               testOwner,
		"sale_token":          testSaleToken,
		"payment_token":       testPayToken,
		"payment_destination": testDestination,
		"variant":             "decay_auction",
		"total_sale_amount":   1_000_000,
		"start_time":          now - 1,
		"end_time":            now + 3600,
		"min_price":           10,
		"max_price":           1_000,
	})
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var auction auctionConfigResp
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&auction))

	t.Run("Tight Slippage Rejected", func(t *testing.T) {
		buyResp := postJSON(t, BaseURL+"/purchase", map[string]interface{}{
			"auction_id":                  auction.ID,
			"buyer":                       testBuyer,
			"purchase_amount":             1_000,
			"expected_payment":            1,
			"slippage_tolerance_permille": 0,
		})
		defer buyResp.Body.Close()
		assert.Equal(t, http.StatusUnprocessableEntity, buyResp.StatusCode)
	})

	t.Run("Purchase Within Tolerance", func(t *testing.T) {
		// Ceiling price covers any decay since start.
		buyResp := postJSON(t, BaseURL+"/purchase", map[string]interface{}{
			"auction_id":                  auction.ID,
			"buyer":                       testBuyer,
			"purchase_amount":             1_000,
			"expected_payment":            1_000 * 1_000,
			"slippage_tolerance_permille": 100,
		})
		defer buyResp.Body.Close()
		require.Equal(t, http.StatusOK, buyResp.StatusCode)

		var purchase purchaseResp
		require.NoError(t, json.NewDecoder(buyResp.Body).Decode(&purchase))
		assert.Equal(t, uint64(1_000), purchase.Allocation)
		assert.Zero(t, purchase.PositionID)
		assert.LessOrEqual(t, purchase.PaymentAmount, uint64(1_000*1_000))
	})

	t.Run("Oversell Rejected", func(t *testing.T) {
		buyResp := postJSON(t, BaseURL+"/purchase", map[string]interface{}{
			"auction_id":                  auction.ID,
			"buyer":                       testBuyer,
			"purchase_amount":             1_000_000,
			"expected_payment":            0,
			"slippage_tolerance_permille": 1_000_000,
		})
		defer buyResp.Body.Close()
		assert.Equal(t, http.StatusConflict, buyResp.StatusCode)
	})
}

func TestCreateAuctionValidation(t *testing.T) {
	requireServer(t)

	now := time.Now().Unix()
	base := func() map[string]interface{} {
		return map[string]interface{}{
			"owner":               testOwner,
			"sale_token":          testSaleToken,
			"payment_token":       testPayToken,
			"payment_destination": testDestination,
			"variant":             "timed_bond",
			"total_sale_amount":   1_000,
			"start_time":          now + 60,
			"end_time":            now + 3600,
			"min_price":           1,
			"max_price":           2,
		}
	}

	cases := []struct {
		name  string
		patch func(map[string]interface{})
	}{
		{"Bad Owner Key", func(m map[string]interface{}) { m["owner"] = "not-base58!" }},
		{"Start After End", func(m map[string]interface{}) { m["start_time"] = now + 7200 }},
		{"Zero Floor", func(m map[string]interface{}) { m["min_price"] = 0 }},
		{"Floor Above Ceiling", func(m map[string]interface{}) { m["min_price"] = 3 }},
		{"Unknown Variant", func(m map[string]interface{}) { m["variant"] = "dutch" }},
		{"Unknown Discount Mode", func(m map[string]interface{}) {
			m["variant"] = "discount_bond"
			m["base_price"] = 100
			m["discount_mode"] = "wiggles"
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			body := base()
			tc.patch(body)
			resp := postJSON(t, BaseURL+"/auction-config", body)
			defer resp.Body.Close()
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode, tc.name)
		})
	}
}

func TestQuoteUnknownAuction(t *testing.T) {
	requireServer(t)

	resp, err := http.Get(fmt.Sprintf("%s/purchase/quote?auction_id=999999&payment_amount=10", BaseURL))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
