package socket

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"testing/fstest"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corey/erpkb/internal/adapters/embedstore"
	"github.com/corey/erpkb/internal/domain/cache"
	"github.com/corey/erpkb/internal/domain/match"
	"github.com/corey/erpkb/internal/domain/registry"
	"github.com/corey/erpkb/internal/ports"
)

func testRegistry(t *testing.T) *registry.Registry {
	t.Helper()
	store := embedstore.FromFS(fstest.MapFS{
		"operations/export_vendors.json": {Data: []byte(
			`{"description":"Export vendor master data","fields":["VendorID","VendorName","Status"],"required_fields":["VendorID"],"used_by":["VendorExportFlow"]}`)},
		"operations/import_payments.json": {Data: []byte(
			`{"description":"Import payment batches","fields":["BatchID","Amount"],"required_fields":["BatchID","Amount"]}`)},
		"flows/vendor_export_flow.json": {Data: []byte(
			`{"description":"Nightly vendor export","steps":["extract","transform","upload"]}`)},
	})

	reg := registry.New(zerolog.Nop())
	desc := ports.BackendDescriptor{
		Key:          "acumatica",
		Aliases:      []string{"acu"},
		Capabilities: ports.CapKnowledge | ports.CapFlow | ports.CapValidation | ports.CapDiagnostics,
		Version:      "24.1",
	}
	require.NoError(t, reg.Register(desc, func() (*registry.Module, error) {
		return registry.NewModule(store, match.DefaultThresholds(), cache.Options{}, zerolog.Nop()), nil
	}))
	return reg
}

func startTestServer(t *testing.T) (*Server, *Client) {
	t.Helper()
	sockPath := filepath.Join(t.TempDir(), "erpkb.sock")
	srv := NewServer(testRegistry(t), match.DefaultThresholds(), sockPath, nil, zerolog.Nop())
	require.NoError(t, srv.Start())
	t.Cleanup(func() { _ = srv.Stop() })
	return srv, NewClient(sockPath)
}

func TestHealthAndBackends(t *testing.T) {
	_, c := startTestServer(t)

	h, err := c.Health()
	require.NoError(t, err)
	assert.Equal(t, "ok", h.Status)
	assert.Equal(t, 1, h.Backends)

	b, err := c.Backends()
	require.NoError(t, err)
	require.Len(t, b.Backends, 1)
	assert.Equal(t, "acumatica", b.Backends[0].Key)
	assert.Equal(t, []string{"acu"}, b.Backends[0].Aliases)
	assert.Contains(t, b.Backends[0].Capabilities, "knowledge")
}

func TestResolve_ExactAndTypo(t *testing.T) {
	_, c := startTestServer(t)

	res, err := c.Resolve("acumatica", "", "Export Vendors")
	require.NoError(t, err)
	require.True(t, res.Found)
	assert.Equal(t, "export_vendors", res.Entry.Name)
	assert.Equal(t, []string{"VendorExportFlow"}, res.Entry.UsedBy)

	// A typo never resolves; it comes back as suggestions.
	res, err = c.Resolve("acu", "", "exprot_vendors")
	require.NoError(t, err)
	assert.False(t, res.Found)
	require.NotEmpty(t, res.Suggestions)
	assert.Equal(t, "export_vendors", res.Suggestions[0].Pattern)
}

func TestNamesAndFlowCapability(t *testing.T) {
	_, c := startTestServer(t)

	names, err := c.Names("acumatica", "")
	require.NoError(t, err)
	assert.Equal(t, []string{"export_vendors", "import_payments"}, names.Names)

	names, err = c.Names("acumatica", "flow")
	require.NoError(t, err)
	assert.Equal(t, []string{"vendor_export_flow"}, names.Names)
}

func TestSearch(t *testing.T) {
	_, c := startTestServer(t)

	res, err := c.Search("acumatica", "", []string{"vendor", "payment"}, 0)
	require.NoError(t, err)
	assert.Contains(t, res.Hits["export_vendors"], "vendor")
	assert.Contains(t, res.Hits["import_payments"], "payment")
}

func TestReference(t *testing.T) {
	_, c := startTestServer(t)

	res, err := c.Reference("acumatica", "", "VendorExportFlow")
	require.NoError(t, err)
	assert.True(t, res.Found)
	assert.Equal(t, "export_vendors", res.Entry)

	res, err = c.Reference("acumatica", "", "NoSuchFlow")
	require.NoError(t, err)
	assert.False(t, res.Found)
}

func TestValidate(t *testing.T) {
	_, c := startTestServer(t)

	res, err := c.Validate("acumatica", "export_vendors", []string{"VendorName"})
	require.NoError(t, err)
	assert.Equal(t, true, res["known"])
	assert.Equal(t, []any{"VendorID"}, res["missing_required"])
}

func TestErrors_OnTheWire(t *testing.T) {
	_, c := startTestServer(t)

	_, err := c.Names("netsuite", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown backend")

	// Descriptor does not claim recommendation.
	_, err = c.Names("acumatica", "recommendation")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "capability")
}

func TestShutdownSignal(t *testing.T) {
	srv, c := startTestServer(t)

	require.NoError(t, c.Shutdown())
	select {
	case <-srv.ShutdownCh():
	case <-time.After(2 * time.Second):
		t.Fatal("shutdown channel never closed")
	}
}

// blockingStore parks every read until the request context is canceled.
type blockingStore struct {
	entered chan struct{}
	once    sync.Once
}

func (s *blockingStore) ListEntryNames(ctx context.Context, catalog string) ([]string, error) {
	s.once.Do(func() { close(s.entered) })
	<-ctx.Done()
	return nil, ctx.Err()
}

func (s *blockingStore) ReadEntry(ctx context.Context, catalog, name string) ([]byte, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestStop_CancelsInFlightRequests(t *testing.T) {
	store := &blockingStore{entered: make(chan struct{})}
	reg := registry.New(zerolog.Nop())
	require.NoError(t, reg.Register(
		ports.BackendDescriptor{Key: "acumatica", Capabilities: ports.CapKnowledge},
		func() (*registry.Module, error) {
			return registry.NewModule(store, match.DefaultThresholds(), cache.Options{}, zerolog.Nop()), nil
		}))

	sockPath := filepath.Join(t.TempDir(), "erpkb.sock")
	srv := NewServer(reg, match.DefaultThresholds(), sockPath, nil, zerolog.Nop())
	require.NoError(t, srv.Start())

	errCh := make(chan error, 1)
	go func() {
		_, err := NewClient(sockPath).Names("acumatica", "")
		errCh <- err
	}()

	select {
	case <-store.entered:
	case <-time.After(2 * time.Second):
		t.Fatal("request never reached the store")
	}

	// Stopping the server cancels the request context; the parked store
	// read must unwind instead of leaving Stop hanging.
	require.NoError(t, srv.Stop())

	select {
	case err := <-errCh:
		assert.Error(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("client call never returned after stop")
	}
}

func TestStart_RefusesSecondDaemon(t *testing.T) {
	srv, _ := startTestServer(t)

	dup := NewServer(testRegistry(t), match.DefaultThresholds(), srv.Addr(), nil, zerolog.Nop())
	err := dup.Start()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already running")
}
