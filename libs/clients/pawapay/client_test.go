package pawapay

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errorutils "github.com/myzuwa/pawapay-go/libs/errors"
)

func TestCreateDeposit(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "POST", r.Method)
		assert.Equal(t, "/v2/deposits", r.URL.Path)
		assert.Equal(t, "Bearer test-token", r.Header.Get("authorization"))
		assert.Equal(t, "D1", r.Header.Get("Idempotency-Key"))

		var req DepositRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "100.00", req.Amount)
		assert.Equal(t, "ZMW", req.Currency)
		assert.Equal(t, "AIRTEL_OAPI_ZMB", req.Payer.AccountDetails.Provider)

		w.Header().Set("content-type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(DepositResponse{
			DepositID: req.DepositID,
			Status:    StatusAccepted,
		}))
	}))
	defer ts.Close()

	client, err := NewWithHTTPClient(ts.URL, "test-token", ts.Client())
	require.NoError(t, err)

	resp, err := client.CreateDeposit(context.Background(), DepositRequest{
		DepositID: "D1",
		Amount:    "100.00",
		Currency:  "ZMW",
		Payer: Party{
			Type: "MMO",
			AccountDetails: AccountDetails{
				Provider:    "AIRTEL_OAPI_ZMB",
				PhoneNumber: "260976000000",
			},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, StatusAccepted, resp.Status)
	assert.Equal(t, "D1", resp.DepositID)
}

func TestGetActiveConfiguration(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v2/active-conf", r.URL.Path)
		assert.Equal(t, "ZMB", r.URL.Query().Get("country"))
		assert.Equal(t, "DEPOSIT", r.URL.Query().Get("operationType"))

		w.Header().Set("content-type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(ActiveConfiguration{
			Countries: []CountryConfiguration{{Country: "ZMB"}},
		}))
	}))
	defer ts.Close()

	client, err := NewWithHTTPClient(ts.URL, "test-token", ts.Client())
	require.NoError(t, err)

	conf, err := client.GetActiveConfiguration(context.Background(), "ZMB", "DEPOSIT")
	require.NoError(t, err)
	require.Len(t, conf.Countries, 1)
	assert.Equal(t, "ZMB", conf.Countries[0].Country)
}

func TestCreatePayoutIdempotencyKey(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v2/payouts", r.URL.Path)
		assert.Equal(t, "MZ-PAY-1", r.Header.Get("Idempotency-Key"))

		w.Header().Set("content-type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(PayoutResponse{
			PayoutID: "MZ-PAY-1",
			Status:   StatusAccepted,
		}))
	}))
	defer ts.Close()

	client, err := NewWithHTTPClient(ts.URL, "test-token", ts.Client())
	require.NoError(t, err)

	resp, err := client.CreatePayout(context.Background(), PayoutRequest{
		PayoutID: "MZ-PAY-1",
		Amount:   "250.00",
		Currency: "ZMW",
	})
	require.NoError(t, err)
	assert.Equal(t, StatusAccepted, resp.Status)
}

func TestResendPayoutCallback(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "POST", r.Method)
		assert.Equal(t, "/v2/payouts/resend-callback/MZ-PAY-1", r.URL.Path)

		w.Header().Set("content-type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(PayoutResponse{
			PayoutID: "MZ-PAY-1",
			Status:   StatusCompleted,
		}))
	}))
	defer ts.Close()

	client, err := NewWithHTTPClient(ts.URL, "test-token", ts.Client())
	require.NoError(t, err)

	resp, err := client.ResendPayoutCallback(context.Background(), "MZ-PAY-1")
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, resp.Status)
}

func TestNon2xxSurfacesHTTPState(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("content-type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"errorMessage":"invalid token"}`))
	}))
	defer ts.Close()

	client, err := NewWithHTTPClient(ts.URL, "bad-token", ts.Client())
	require.NoError(t, err)

	_, err = client.GetDepositStatus(context.Background(), "D1")
	require.Error(t, err)

	var bundle *errorutils.ErrorBundle
	require.ErrorAs(t, err, &bundle)
}

func TestNewRequiresToken(t *testing.T) {
	t.Setenv("PAWAPAY_TOKEN", "")
	t.Setenv("PAWAPAY_SERVICE", "")
	_, err := New()
	assert.Error(t, err)
}
