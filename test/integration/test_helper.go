package integration

import (
	"fmt"
	"net/http"
	"os"
	"testing"
	"time"
)

// BaseURL points the suite at a running api instance.
var BaseURL = "http://localhost:8080"

var serverUp bool

func TestMain(m *testing.M) {
	if url := os.Getenv("API_BASE_URL"); url != "" {
		BaseURL = url
	}

	client := http.Client{Timeout: 2 * time.Second}
	for i := 0; i < 3; i++ {
		resp, err := client.Get(BaseURL + "/health")
		if err == nil {
			resp.Body.Close()
			serverUp = resp.StatusCode == http.StatusOK
			break
		}
		time.Sleep(time.Second)
	}

	os.Exit(m.Run())
}

// requireServer skips tests when no api instance is reachable, so the
// suite is a no-op under plain `go test ./...`.
func requireServer(t *testing.T) {
	t.Helper()
	if !serverUp {
		t.Skipf("api not reachable at %s, skipping", BaseURL)
	}
}

// Well-known base58 keys reused as test identities.
const (
	testOwner       = "11111111111111111111111111111111"
	testBuyer       = "Vote111111111111111111111111111111111111111"
	testSaleToken   = "So11111111111111111111111111111111111111112"
	testPayToken    = "TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA"
	testDestination = "SysvarRent111111111111111111111111111111111"
)

func urlf(format string, args ...interface{}) string {
	return BaseURL + fmt.Sprintf(format, args...)
}
