package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vnmchuo/fleet-billing/internal/odometer"
)

// readingService reports 16093.4m (10 miles) more at the end of any period
// than at its start for every plate.
func readingService(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		meters := "0"
		if strings.Contains(r.URL.Path, "2025-05-05") {
			meters = "16093.4"
		}
		var recs []odometer.Record
		for _, plate := range []string{"CBDH 789", "ABC 123"} {
			recs = append(recs, odometer.Record{
				LicensePlate: plate,
				State:        odometer.VehicleState{OdometerInMeters: decimal.RequireFromString(meters)},
			})
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(recs)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	srv := readingService(t)
	t.Setenv("BILLING_READING_URL", srv.URL+"/readings/")
	t.Setenv("BILLING_COST_PER_MILE", "0.5")
	t.Setenv("BREAKER_DISABLED", "true")

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(append([]string{"--config", filepath.Join(t.TempDir(), "missing.json")}, args...))
	billFlags.request = ""
	err := rootCmd.Execute()
	return out.String(), err
}

func TestBillCommand_Flags(t *testing.T) {
	out, err := runCLI(t, "bill",
		"--customer", "Bob's Taxis",
		"--vehicle", "CBDH 789",
		"--start", "2025-04-28",
		"--end", "2025-05-05",
		"--format", "text",
	)
	require.NoError(t, err)
	assert.Equal(t, "customer: Bob's Taxis\namount: 5.00\n", out)
}

func TestBillCommand_RequestFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "request.json")
	body := `{"customer":"Bob's Taxis","vehicles":["CBDH 789","ABC 123"],` +
		`"startDate":"2025-04-28T00:00:00Z","endDate":"2025-05-05T00:00:00Z"}`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	out, err := runCLI(t, "bill", "--request", path, "--format", "json")
	require.NoError(t, err)
	assert.JSONEq(t, `{"customer":"Bob's Taxis","amount":10.00}`, out)
}

func TestBillCommand_InvalidRequest(t *testing.T) {
	path := filepath.Join(t.TempDir(), "request.json")
	body := `{"customer":"","vehicles":["CBDH 789"],` +
		`"startDate":"2025-05-05T00:00:00Z","endDate":"2025-04-28T00:00:00Z"}`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	_, err := runCLI(t, "bill", "--request", path, "--format", "json")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Customer name is required.")
	assert.Contains(t, err.Error(), "Start date must be earlier than end date.")
}

func TestBillCommand_UnknownFormat(t *testing.T) {
	_, err := runCLI(t, "bill", "--request", "unused.json", "--format", "xml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown format "xml"`)
}
