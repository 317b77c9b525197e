package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"propertyfees/internal/core"
	"propertyfees/internal/vendor"
)

type fakeFetcher struct {
	paid       *vendor.PaidResponse
	paidErr    error
	prepaid    vendor.PrepaidResult
	prepaidErr error
	pending    *vendor.ErpBillResponse
	pendingErr error
	panicOn    core.Category
	block      bool
}

func (f *fakeFetcher) wait(ctx context.Context) error {
	if !f.block {
		return nil
	}
	<-ctx.Done()
	return ctx.Err()
}

func (f *fakeFetcher) FetchPaid(ctx context.Context, year int) (*vendor.PaidResponse, error) {
	if f.panicOn == core.Paid {
		panic("boom")
	}
	if err := f.wait(ctx); err != nil {
		return nil, err
	}
	return f.paid, f.paidErr
}

func (f *fakeFetcher) FetchPrepaid(ctx context.Context) (vendor.PrepaidResult, error) {
	if err := f.wait(ctx); err != nil {
		return vendor.PrepaidResult{}, err
	}
	return f.prepaid, f.prepaidErr
}

func (f *fakeFetcher) FetchPending(ctx context.Context, year int) (*vendor.ErpBillResponse, error) {
	if err := f.wait(ctx); err != nil {
		return nil, err
	}
	return f.pending, f.pendingErr
}

func mustDecode[T any](t *testing.T, s string) *T {
	t.Helper()
	var v T
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		t.Fatalf("decode fixture: %v", err)
	}
	return &v
}

var fixedNow = time.Date(2025, 10, 18, 9, 30, 0, 0, time.UTC)

func TestBuildComputesAllCategories(t *testing.T) {
	f := &fakeFetcher{
		paid: mustDecode[vendor.PaidResponse](t, `{"data":[
			{"chargeItemName":"公摊水费","billDate":"202510","billAmount":100},
			{"chargeItemName":"公摊水费","billDate":"202510","billAmount":50},
			{"chargeItemName":"住宅物业服务费","billDate":"202510","billAmount":500}]}`),
		prepaid: vendor.PrepaidResult{
			Residence: mustDecode[vendor.PreChargeResponse](t, `{"data":{"preChargeList":[{"chargeItemName":"住宅物业服务费","balance":"1000.5"}]}}`),
		},
		pending: mustDecode[vendor.ErpBillResponse](t, `{"data":{"erpBillList":[{"chargeItemName":"电梯公摊电费","billAmount":12.3}]}}`),
	}

	snap, err := NewBuilder(f, 2025, WithClock(func() time.Time { return fixedNow })).Build(context.Background())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if !snap.LastUpdate.Equal(fixedNow) || snap.Year != 2025 {
		t.Fatalf("unexpected stamp %v year %d", snap.LastUpdate, snap.Year)
	}
	if !snap.Total.PaidPublicTotal.Equal(decimal.NewFromInt(150)) {
		t.Errorf("paid public total = %s", snap.Total.PaidPublicTotal)
	}
	if !snap.Total.PrepaidTotal.Equal(decimal.RequireFromString("1000.5")) {
		t.Errorf("prepaid total = %s", snap.Total.PrepaidTotal)
	}
	if !snap.Total.PendingTotal.Equal(decimal.RequireFromString("12.3")) {
		t.Errorf("pending total = %s", snap.Total.PendingTotal)
	}
	if len(snap.Fallbacks) != 0 {
		t.Errorf("unexpected fallbacks %v", snap.Fallbacks)
	}
}

func TestBuildIsolatesCategoryFailures(t *testing.T) {
	f := &fakeFetcher{
		paidErr: &vendor.StatusError{Endpoint: vendor.PathPaidBills, StatusCode: http.StatusInternalServerError},
		prepaid: vendor.PrepaidResult{
			Parking: mustDecode[vendor.PreChargeResponse](t, `{"data":{"preChargeList":[{},{},{"balance":300}]}}`),
		},
		prepaidErr: errors.New("residence: down"),
		pending:    mustDecode[vendor.ErpBillResponse](t, `{"data":{"erpBillList":[{"chargeItemName":"车位服务费","billAmount":150}]}}`),
	}

	snap, err := NewBuilder(f, 2025).Build(context.Background())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if !snap.FellBack(core.Paid) || snap.FellBack(core.Prepaid) || snap.FellBack(core.Pending) {
		t.Fatalf("unexpected fallbacks %v", snap.Fallbacks)
	}
	if snap.Paid.Len() != 7 || !snap.Total.PaidPublicTotal.IsZero() {
		t.Fatalf("paid should be the default mapping")
	}
	if !snap.Total.PrepaidTotal.Equal(decimal.NewFromInt(300)) {
		t.Errorf("prepaid total = %s, want 300", snap.Total.PrepaidTotal)
	}
	if !snap.Total.PendingTotal.Equal(decimal.NewFromInt(150)) {
		t.Errorf("pending total = %s, want 150", snap.Total.PendingTotal)
	}
}

func TestBuildAllFailuresStillProducesSnapshot(t *testing.T) {
	fail := errors.New("down")
	f := &fakeFetcher{paidErr: fail, prepaidErr: fail, pendingErr: fail}
	snap, err := NewBuilder(f, 2024).Build(context.Background())
	if err != nil {
		t.Fatalf("vendor failures must not fail the build: %v", err)
	}
	if len(snap.Fallbacks) != 3 {
		t.Fatalf("expected three fallbacks, got %v", snap.Fallbacks)
	}
}

func TestBuildCancelledPublishesNothing(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	f := &fakeFetcher{block: true}
	done := make(chan error, 1)
	go func() {
		_, err := NewBuilder(f, 2025).Build(ctx)
		done <- err
	}()
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, ErrCancelled) || !errors.Is(err, context.Canceled) {
			t.Fatalf("expected cancellation error, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Build did not return after cancel")
	}
}

func TestBuildRecoversPanics(t *testing.T) {
	f := &fakeFetcher{panicOn: core.Paid}
	_, err := NewBuilder(f, 2025).Build(context.Background())
	var ue *UpdateError
	if !errors.As(err, &ue) || ue.Category != core.Paid {
		t.Fatalf("expected UpdateError for paid, got %v", err)
	}
	if len(ue.Stack) == 0 {
		t.Fatal("expected a stack trace")
	}
}

func TestBuildAgainstVendorServer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case vendor.PathPaidBills:
			w.WriteHeader(http.StatusInternalServerError)
		case vendor.PathPreCharge:
			_, _ = w.Write([]byte(`{"data":{"preChargeList":[{"chargeItemName":"公摊水费","balance":10},{},{"balance":5}]}}`))
		case vendor.PathBillsFromErp:
			_, _ = w.Write([]byte(`{"data":{"erpBillList":[{"chargeItemName":"住宅物业服务费","billAmount":"66"}]}}`))
		}
	}))
	defer srv.Close()

	client := vendor.NewClient(vendor.Config{BaseURL: srv.URL, UnionID: "u", Authorization: "a"})
	snap, err := NewBuilder(client, 2025).Build(context.Background())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if !snap.FellBack(core.Paid) {
		t.Fatal("paid should fall back after HTTP 500")
	}
	// residence water 10 + parking slot 5; both calls hit the same fixture
	if !snap.Total.PrepaidTotal.Equal(decimal.NewFromInt(15)) {
		t.Errorf("prepaid total = %s, want 15", snap.Total.PrepaidTotal)
	}
	if !snap.Total.PendingTotal.Equal(decimal.NewFromInt(66)) {
		t.Errorf("pending total = %s, want 66", snap.Total.PendingTotal)
	}
}
