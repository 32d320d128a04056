package httpapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"distrigo/backend/internal/cache"
	"distrigo/backend/internal/domain"
	"distrigo/backend/internal/reward"
	"distrigo/backend/internal/service"
	"distrigo/backend/internal/store/memory"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	repo := memory.New()
	engine := reward.NewEngine(repo, cache.NoopSummaryCache{}, time.Minute, zap.NewNop())
	svc := service.New(repo, engine, zap.NewNop(), false)
	api := New(svc, repo, "*", zap.NewNop())

	ts := httptest.NewServer(api.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func doJSON(t *testing.T, method, url string, payload any) (*http.Response, []byte) {
	t.Helper()
	var body *bytes.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("marshal payload: %v", err)
		}
		body = bytes.NewReader(raw)
	} else {
		body = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, url, body)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer resp.Body.Close()

	buf := new(bytes.Buffer)
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp, buf.Bytes()
}

func createRecord(t *testing.T, ts *httptest.Server, path string, payload any) map[string]any {
	t.Helper()
	resp, body := doJSON(t, http.MethodPost, ts.URL+path, payload)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("POST %s returned %d: %s", path, resp.StatusCode, body)
	}
	var created map[string]any
	if err := json.Unmarshal(body, &created); err != nil {
		t.Fatalf("decode created record: %v", err)
	}
	return created
}

func TestHealthz(t *testing.T) {
	ts := newTestServer(t)
	resp, body := doJSON(t, http.MethodGet, ts.URL+"/healthz", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.StatusCode, body)
	}
	if !strings.Contains(string(body), `"status":"ok"`) {
		t.Fatalf("unexpected health body: %s", body)
	}
}

func TestResourceCRUDCycle(t *testing.T) {
	ts := newTestServer(t)

	created := createRecord(t, ts, "/api/v1/regionals", map[string]any{"name": "Dhaka"})
	id, _ := created["id"].(string)
	if id == "" {
		t.Fatalf("created record missing id: %v", created)
	}

	resp, body := doJSON(t, http.MethodGet, ts.URL+"/api/v1/regionals/"+id, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get returned %d: %s", resp.StatusCode, body)
	}

	resp, body = doJSON(t, http.MethodPut, ts.URL+"/api/v1/regionals/"+id, map[string]any{"name": "Dhaka North"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("put returned %d: %s", resp.StatusCode, body)
	}
	if !strings.Contains(string(body), "Dhaka North") {
		t.Fatalf("update not applied: %s", body)
	}

	resp, _ = doJSON(t, http.MethodDelete, ts.URL+"/api/v1/regionals/"+id, nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("delete returned %d", resp.StatusCode)
	}

	resp, _ = doJSON(t, http.MethodGet, ts.URL+"/api/v1/regionals/"+id, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 after delete, got %d", resp.StatusCode)
	}
}

func TestCreateRejectsInvalidAndUnknownFields(t *testing.T) {
	ts := newTestServer(t)

	resp, _ := doJSON(t, http.MethodPost, ts.URL+"/api/v1/customers", map[string]any{"email": "x@example.com"})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("missing name should be 400, got %d", resp.StatusCode)
	}

	resp, _ = doJSON(t, http.MethodPost, ts.URL+"/api/v1/customers", map[string]any{"name": "Ok", "bogus": 1})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("unknown field should be 400, got %d", resp.StatusCode)
	}
}

func TestCustomerEmailConflict(t *testing.T) {
	ts := newTestServer(t)
	createRecord(t, ts, "/api/v1/customers", map[string]any{"name": "Farida Akter", "email": "farida@example.com"})

	resp, body := doJSON(t, http.MethodPost, ts.URL+"/api/v1/customers", map[string]any{
		"name":  "Other",
		"email": "farida@example.com",
	})
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("duplicate email should be 409, got %d: %s", resp.StatusCode, body)
	}
}

func TestUpdateRejectsImmutableFields(t *testing.T) {
	ts := newTestServer(t)
	created := createRecord(t, ts, "/api/v1/regionals", map[string]any{"name": "Khulna"})
	id := created["id"].(string)

	resp, _ := doJSON(t, http.MethodPut, ts.URL+"/api/v1/regionals/"+id, map[string]any{"id": "forged"})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("id rewrite should be 400, got %d", resp.StatusCode)
	}
}

func TestListPaginationAndFilters(t *testing.T) {
	ts := newTestServer(t)
	regional := createRecord(t, ts, "/api/v1/regionals", map[string]any{"name": "Dhaka"})
	regionalID := regional["id"].(string)
	for i := 0; i < 7; i++ {
		createRecord(t, ts, "/api/v1/territories", map[string]any{
			"name":        fmt.Sprintf("Territory %d", i),
			"regional_id": regionalID,
		})
	}
	other := createRecord(t, ts, "/api/v1/regionals", map[string]any{"name": "Khulna"})
	createRecord(t, ts, "/api/v1/territories", map[string]any{
		"name":        "Elsewhere",
		"regional_id": other["id"].(string),
	})

	resp, body := doJSON(t, http.MethodGet,
		ts.URL+"/api/v1/territories?regional_id="+regionalID+"&page=2&limit=3", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list returned %d: %s", resp.StatusCode, body)
	}
	var result domain.ListResult[domain.Territory]
	if err := json.Unmarshal(body, &result); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if result.Total != 7 || result.TotalPages != 3 || len(result.Items) != 3 {
		t.Fatalf("unexpected page: total=%d pages=%d items=%d", result.Total, result.TotalPages, len(result.Items))
	}
}

type workflowFixture struct {
	ts         *httptest.Server
	productID  string
	supplierID string
	storeID    string
}

func newWorkflowFixture(t *testing.T) *workflowFixture {
	t.Helper()
	ts := newTestServer(t)
	supplier := createRecord(t, ts, "/api/v1/suppliers", map[string]any{"name": "Rahim Traders"})
	product := createRecord(t, ts, "/api/v1/products", map[string]any{
		"name":        "Premium Tea 500g",
		"price_cents": 45000,
		"supplier_id": supplier["id"].(string),
	})
	storeRec := createRecord(t, ts, "/api/v1/stores", map[string]any{"name": "Tongi Bazar Store"})
	return &workflowFixture{
		ts:         ts,
		productID:  product["id"].(string),
		supplierID: supplier["id"].(string),
		storeID:    storeRec["id"].(string),
	}
}

func (f *workflowFixture) purchase(t *testing.T, qty int) {
	t.Helper()
	resp, body := doJSON(t, http.MethodPost, f.ts.URL+"/api/v1/purchases", map[string]any{
		"product_id":  f.productID,
		"supplier_id": f.supplierID,
		"quantity":    qty,
		"total_cents": qty * 45000,
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("purchase returned %d: %s", resp.StatusCode, body)
	}
}

func (f *workflowFixture) productStock(t *testing.T) int {
	t.Helper()
	resp, body := doJSON(t, http.MethodGet, f.ts.URL+"/api/v1/products/"+f.productID, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get product returned %d", resp.StatusCode)
	}
	var product domain.Product
	if err := json.Unmarshal(body, &product); err != nil {
		t.Fatalf("decode product: %v", err)
	}
	return product.Stock
}

func TestPurchaseWorkflowIssuesUnits(t *testing.T) {
	f := newWorkflowFixture(t)
	f.purchase(t, 5)

	if got := f.productStock(t); got != 5 {
		t.Fatalf("expected stock 5, got %d", got)
	}

	resp, body := doJSON(t, http.MethodGet, f.ts.URL+"/api/v1/units?limit=10", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list units returned %d", resp.StatusCode)
	}
	var units domain.ListResult[domain.ProductUnit]
	if err := json.Unmarshal(body, &units); err != nil {
		t.Fatalf("decode units: %v", err)
	}
	if units.Total != 5 {
		t.Fatalf("expected 5 units, got %d", units.Total)
	}

	// Each unit resolves through its secure code.
	resp, body = doJSON(t, http.MethodGet, f.ts.URL+"/api/v1/units/by-code/"+units.Items[0].SecureCode, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("by-code returned %d: %s", resp.StatusCode, body)
	}
}

func TestSaleWorkflowDebitsStock(t *testing.T) {
	f := newWorkflowFixture(t)
	f.purchase(t, 10)

	resp, body := doJSON(t, http.MethodPost, f.ts.URL+"/api/v1/sales", map[string]any{
		"product_id":  f.productID,
		"quantity":    4,
		"total_cents": 180000,
		"store_id":    f.storeID,
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("sale returned %d: %s", resp.StatusCode, body)
	}
	if got := f.productStock(t); got != 6 {
		t.Fatalf("expected stock 6, got %d", got)
	}

	resp, body = doJSON(t, http.MethodGet, f.ts.URL+"/api/v1/placements?sale_status=true&limit=20", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list placements returned %d", resp.StatusCode)
	}
	var placements domain.ListResult[domain.UnitPlacement]
	if err := json.Unmarshal(body, &placements); err != nil {
		t.Fatalf("decode placements: %v", err)
	}
	if placements.Total != 4 {
		t.Fatalf("expected 4 sold placements, got %d", placements.Total)
	}
}

func TestTransferWorkflowRejectsSameStore(t *testing.T) {
	f := newWorkflowFixture(t)
	f.purchase(t, 2)

	resp, _ := doJSON(t, http.MethodPost, f.ts.URL+"/api/v1/stock-transfers", map[string]any{
		"product_id":    f.productID,
		"from_store_id": f.storeID,
		"to_store_id":   f.storeID,
		"quantity":      1,
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("same-store transfer should be 400, got %d", resp.StatusCode)
	}
}

func TestRewardEndpoints(t *testing.T) {
	f := newWorkflowFixture(t)
	f.purchase(t, 150)

	createRecord(t, f.ts, "/api/v1/reward-settings", map[string]any{
		"product_id": f.productID,
		"tiers": []map[string]any{
			{"name": "Gift", "quantity_per_100": 10, "code": "A"},
		},
	})

	resp, body := doJSON(t, http.MethodPost, f.ts.URL+"/api/v1/rewards/generate/"+f.productID, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("generate returned %d: %s", resp.StatusCode, body)
	}
	var result domain.RewardGenerationResult
	if err := json.Unmarshal(body, &result); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if result.Eligible != 100 || result.Assigned != 10 || result.Remaining != 50 {
		t.Fatalf("unexpected allocation %+v", result)
	}

	resp, body = doJSON(t, http.MethodGet, f.ts.URL+"/api/v1/rewards/pool/"+f.productID, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("pool returned %d: %s", resp.StatusCode, body)
	}
	var summary domain.PoolSummary
	if err := json.Unmarshal(body, &summary); err != nil {
		t.Fatalf("decode summary: %v", err)
	}
	if summary.TotalUnits != 150 || summary.Rewarded != 10 || summary.Unassigned != 140 {
		t.Fatalf("unexpected summary %+v", summary)
	}
}

func TestSecondRewardSettingConflicts(t *testing.T) {
	f := newWorkflowFixture(t)
	createRecord(t, f.ts, "/api/v1/reward-settings", map[string]any{
		"product_id": f.productID,
		"tiers":      []map[string]any{{"name": "Gift", "quantity_per_100": 5, "code": "A"}},
	})

	resp, _ := doJSON(t, http.MethodPost, f.ts.URL+"/api/v1/reward-settings", map[string]any{
		"product_id": f.productID,
		"tiers":      []map[string]any{{"name": "Bonus", "quantity_per_100": 1, "code": "B"}},
	})
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("second setting should be 409, got %d", resp.StatusCode)
	}
}

func TestLedgerCollectionsAreReadOnly(t *testing.T) {
	f := newWorkflowFixture(t)
	f.purchase(t, 1)

	resp, _ := doJSON(t, http.MethodPost, f.ts.URL+"/api/v1/units", map[string]any{"product_id": "x"})
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("unit POST should be 405, got %d", resp.StatusCode)
	}

	respList, body := doJSON(t, http.MethodGet, f.ts.URL+"/api/v1/purchases?limit=1", nil)
	if respList.StatusCode != http.StatusOK {
		t.Fatalf("list purchases returned %d", respList.StatusCode)
	}
	var purchases domain.ListResult[domain.Purchase]
	if err := json.Unmarshal(body, &purchases); err != nil {
		t.Fatalf("decode purchases: %v", err)
	}
	if purchases.Total != 1 {
		t.Fatalf("expected 1 purchase, got %d", purchases.Total)
	}

	resp, _ = doJSON(t, http.MethodPut, f.ts.URL+"/api/v1/purchases/"+purchases.Items[0].ID, map[string]any{"quantity": 99})
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("purchase PUT should be 405, got %d", resp.StatusCode)
	}
}

func TestWorkflowAgainstUnknownProductIs404(t *testing.T) {
	ts := newTestServer(t)
	resp, _ := doJSON(t, http.MethodPost, ts.URL+"/api/v1/rewards/generate/missing", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}
