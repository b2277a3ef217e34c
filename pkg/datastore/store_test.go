package datastore_test

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elvisfernandes/ng-dfservice/internal/dftest"
	"github.com/elvisfernandes/ng-dfservice/pkg/datastore"
	"github.com/elvisfernandes/ng-dfservice/pkg/resource"
	"github.com/elvisfernandes/ng-dfservice/pkg/transport"
)

const (
	apiKey      = "app-key"
	contactPath = "db/_table/contact/"
)

type contact struct {
	resource.Model
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
}

func (c *contact) ToRemote() map[string]any {
	out, _ := resource.Encode(c)
	return out
}

func (c *contact) PopulateFrom(raw map[string]any) error {
	return resource.Decode(raw, c)
}

func newContact() *contact {
	return &contact{}
}

func newStore(t *testing.T, srv *dftest.Server) *datastore.Store[*contact] {
	t.Helper()

	gw, err := transport.New(&transport.Config{BaseURL: srv.BaseURL(), APIKey: apiKey})
	require.NoError(t, err)

	s, err := datastore.New(datastore.Config[*contact]{
		Gateway: gw,
		Locator: resource.Table("db", "contact"),
		Factory: newContact,
	})
	require.NoError(t, err)
	return s
}

func names(snap datastore.Snapshot[*contact]) []string {
	var out []string
	for _, c := range snap.Records() {
		out = append(out, c.Name)
	}
	return out
}

func TestNew_Validation(t *testing.T) {
	gw, err := transport.New(&transport.Config{BaseURL: "http://localhost/api/v2/", APIKey: apiKey})
	require.NoError(t, err)

	_, err = datastore.New(datastore.Config[*contact]{Locator: resource.Table("db", "contact"), Factory: newContact})
	assert.Error(t, err, "missing gateway")

	_, err = datastore.New(datastore.Config[*contact]{Gateway: gw, Factory: newContact})
	assert.Error(t, err, "missing locator")

	_, err = datastore.New(datastore.Config[*contact]{Gateway: gw, Locator: resource.Table("", "contact"), Factory: newContact})
	assert.Error(t, err, "invalid locator")

	_, err = datastore.New(datastore.Config[*contact]{Gateway: gw, Locator: resource.Table("db", "contact")})
	assert.Error(t, err, "missing factory")
}

func TestStore_LoadInitialData(t *testing.T) {
	srv := dftest.NewServer(t, apiKey)
	srv.Seed("db", "contact",
		map[string]any{"name": "Ada"},
		map[string]any{"name": "Grace"},
	)
	s := newStore(t, srv)

	out, err := s.LoadInitialData(context.Background())
	require.NoError(t, err)
	assert.Equal(t, datastore.OutcomeApplied, out)

	snap := s.Snapshot()
	assert.Equal(t, []int64{1, 2}, snap.IDs())
	assert.Equal(t, []string{"Ada", "Grace"}, names(snap))
	assert.Equal(t, uint64(1), snap.Version())
	assert.Equal(t, http.MethodGet, srv.LastRequest().Method)
	assert.Equal(t, contactPath, srv.LastRequest().Path)
}

func TestStore_RetrieveAllAppends(t *testing.T) {
	srv := dftest.NewServer(t, apiKey)
	srv.Seed("db", "contact", map[string]any{"name": "Ada"}, map[string]any{"name": "Grace"})
	s := newStore(t, srv)
	ctx := context.Background()

	_, err := s.RetrieveAll(ctx)
	require.NoError(t, err)
	_, err = s.RetrieveAll(ctx)
	require.NoError(t, err)

	assert.Equal(t, []int64{1, 2, 1, 2}, s.Snapshot().IDs())
}

func TestStore_ReloadIsIdempotent(t *testing.T) {
	srv := dftest.NewServer(t, apiKey)
	srv.Seed("db", "contact", map[string]any{"name": "Ada"}, map[string]any{"name": "Grace"})
	s := newStore(t, srv)
	ctx := context.Background()

	_, err := s.Reload(ctx)
	require.NoError(t, err)
	first := s.Snapshot().IDs()

	_, err = s.Reload(ctx)
	require.NoError(t, err)
	assert.Equal(t, first, s.Snapshot().IDs())
	assert.Equal(t, []int64{1, 2}, first)
}

func TestStore_RetrieveAllUsesLocatorParams(t *testing.T) {
	srv := dftest.NewServer(t, apiKey)
	srv.Seed("db", "contact",
		map[string]any{"name": "a"},
		map[string]any{"name": "b"},
		map[string]any{"name": "c"},
	)
	s := newStore(t, srv)
	s.Locator().Params.Order = "id desc"
	s.Locator().Params.Limit = 2

	_, err := s.RetrieveAll(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []int64{3, 2}, s.Snapshot().IDs())
	assert.Equal(t, "limit=2&order=id%20desc&", srv.LastRequest().Query)
}

func TestStore_Create(t *testing.T) {
	srv := dftest.NewServer(t, apiKey)
	srv.Respond(http.MethodPost, contactPath, http.StatusOK, map[string]any{
		"resource": []any{map[string]any{"id": 7}},
	})
	srv.Respond(http.MethodGet, contactPath, http.StatusOK, map[string]any{
		"resource": []any{map[string]any{"id": 7, "name": "X"}},
	})
	s := newStore(t, srv)

	out, err := s.Create(context.Background(), &contact{Name: "X"})
	require.NoError(t, err)
	assert.Equal(t, datastore.OutcomeApplied, out)

	reqs := srv.Requests()
	require.Len(t, reqs, 2)
	assert.Equal(t, http.MethodPost, reqs[0].Method)
	assert.JSONEq(t, `{"resource":[{"name":"X"}]}`, string(reqs[0].Body))
	assert.Equal(t, http.MethodGet, reqs[1].Method)
	assert.Equal(t, "ids=7&", reqs[1].Query)

	got, ok := s.LookupByID(7)
	require.True(t, ok)
	assert.Equal(t, "X", got.Name)
	assert.Equal(t, 1, s.Snapshot().Len())
}

func TestStore_CreateAgainstFake(t *testing.T) {
	srv := dftest.NewServer(t, apiKey)
	s := newStore(t, srv)

	_, err := s.Create(context.Background(), &contact{Name: "Ada", Email: "ada@example.com"})
	require.NoError(t, err)

	got, ok := s.LookupByID(1)
	require.True(t, ok)
	assert.Equal(t, "ada@example.com", got.Email)
	assert.Len(t, srv.Rows("db", "contact"), 1)
}

func TestStore_CreateSkippedWithID(t *testing.T) {
	srv := dftest.NewServer(t, apiKey)
	s := newStore(t, srv)

	out, err := s.Create(context.Background(), &contact{Model: resource.Model{ID: 3}, Name: "X"})
	require.NoError(t, err)
	assert.Equal(t, datastore.OutcomeSkipped, out)
	assert.Empty(t, srv.Requests())
}

func TestStore_CreateIgnoresUnexpectedReply(t *testing.T) {
	srv := dftest.NewServer(t, apiKey)
	srv.Respond(http.MethodPost, contactPath, http.StatusOK, map[string]any{
		"resource": []any{map[string]any{"id": 1}, map[string]any{"id": 2}},
	})
	s := newStore(t, srv)

	out, err := s.Create(context.Background(), &contact{Name: "X"})
	require.NoError(t, err)
	assert.Equal(t, datastore.OutcomeIgnored, out)
	assert.Len(t, srv.Requests(), 1, "no follow-up retrieve")
	assert.Equal(t, uint64(0), s.Snapshot().Version())
}

func TestStore_RetrieveByIDLeavesParamsAlone(t *testing.T) {
	srv := dftest.NewServer(t, apiKey)
	srv.Seed("db", "contact", map[string]any{"name": "Ada"}, map[string]any{"name": "Grace"})
	s := newStore(t, srv)
	s.Locator().Params.IDs = "1,2"

	_, err := s.RetrieveByID(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, "1,2", s.Locator().Params.IDs)

	srv.Respond(http.MethodGet, contactPath, http.StatusInternalServerError, map[string]any{
		"error": map[string]any{"message": "boom"},
	})
	_, err = s.RetrieveByID(context.Background(), 1)
	require.Error(t, err)
	assert.Equal(t, "1,2", s.Locator().Params.IDs)
}

func TestStore_RetrieveByIDReplacesExisting(t *testing.T) {
	srv := dftest.NewServer(t, apiKey)
	srv.Seed("db", "contact", map[string]any{"name": "Ada"}, map[string]any{"name": "Grace"})
	s := newStore(t, srv)
	ctx := context.Background()

	_, err := s.LoadInitialData(ctx)
	require.NoError(t, err)

	srv.Respond(http.MethodGet, contactPath, http.StatusOK, map[string]any{
		"resource": []any{map[string]any{"id": 1, "name": "Ada Lovelace"}},
	})
	out, err := s.RetrieveByID(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, datastore.OutcomeApplied, out)
	assert.Equal(t, []string{"Ada Lovelace", "Grace"}, names(s.Snapshot()))
}

func TestStore_RetrieveByIDIgnoresOtherRecord(t *testing.T) {
	srv := dftest.NewServer(t, apiKey)
	srv.Respond(http.MethodGet, contactPath, http.StatusOK, map[string]any{
		"resource": []any{map[string]any{"id": 9, "name": "Other"}},
	})
	s := newStore(t, srv)

	out, err := s.RetrieveByID(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, datastore.OutcomeIgnored, out)
	assert.Equal(t, 0, s.Snapshot().Len())
}

func TestStore_Update(t *testing.T) {
	srv := dftest.NewServer(t, apiKey)
	srv.Seed("db", "contact", map[string]any{"name": "Ada"}, map[string]any{"name": "Grace"})
	s := newStore(t, srv)
	ctx := context.Background()

	_, err := s.LoadInitialData(ctx)
	require.NoError(t, err)

	out, err := s.Update(ctx, &contact{Model: resource.Model{ID: 1}, Name: "Ada Lovelace"})
	require.NoError(t, err)
	assert.Equal(t, datastore.OutcomeApplied, out)

	assert.Equal(t, http.MethodPatch, srv.LastRequest().Method)
	assert.Equal(t, []int64{1, 2}, s.Snapshot().IDs())
	assert.Equal(t, []string{"Ada Lovelace", "Grace"}, names(s.Snapshot()))
	assert.Equal(t, "Ada Lovelace", srv.Rows("db", "contact")[0]["name"])
}

func TestStore_UpdateStoresGivenRecord(t *testing.T) {
	srv := dftest.NewServer(t, apiKey)
	srv.Seed("db", "contact", map[string]any{"name": "Ada"})
	s := newStore(t, srv)
	ctx := context.Background()

	_, err := s.LoadInitialData(ctx)
	require.NoError(t, err)
	before := s.Snapshot()

	rec := &contact{Model: resource.Model{ID: 1}, Name: "Ada Lovelace"}
	_, err = s.Update(ctx, rec)
	require.NoError(t, err)

	got, ok := s.LookupByID(1)
	require.True(t, ok)
	assert.Same(t, rec, got)
	assert.Equal(t, []string{"Ada"}, names(before))
}

func TestStore_UpdateSkippedWithoutID(t *testing.T) {
	srv := dftest.NewServer(t, apiKey)
	s := newStore(t, srv)

	out, err := s.Update(context.Background(), &contact{Name: "X"})
	require.NoError(t, err)
	assert.Equal(t, datastore.OutcomeSkipped, out)
	assert.Empty(t, srv.Requests())
}

func TestStore_UpdateIgnoresMismatchedReply(t *testing.T) {
	srv := dftest.NewServer(t, apiKey)
	srv.Seed("db", "contact", map[string]any{"name": "Ada"})
	s := newStore(t, srv)
	ctx := context.Background()

	_, err := s.LoadInitialData(ctx)
	require.NoError(t, err)
	before := s.Snapshot()

	srv.Respond(http.MethodPatch, contactPath, http.StatusOK, map[string]any{
		"resource": []any{map[string]any{"id": 2}},
	})
	out, err := s.Update(ctx, &contact{Model: resource.Model{ID: 1}, Name: "changed"})
	require.NoError(t, err)
	assert.Equal(t, datastore.OutcomeIgnored, out)
	assert.Equal(t, before.Version(), s.Snapshot().Version())
	assert.Equal(t, []string{"Ada"}, names(s.Snapshot()))
}

func TestStore_UpdateNotInCollection(t *testing.T) {
	srv := dftest.NewServer(t, apiKey)
	srv.Seed("db", "contact", map[string]any{"name": "Ada"})
	s := newStore(t, srv)

	out, err := s.Update(context.Background(), &contact{Model: resource.Model{ID: 1}, Name: "changed"})
	require.NoError(t, err)
	assert.Equal(t, datastore.OutcomeIgnored, out)
	assert.Equal(t, 0, s.Snapshot().Len())
}

func TestStore_Delete(t *testing.T) {
	srv := dftest.NewServer(t, apiKey)
	srv.Seed("db", "contact",
		map[string]any{"name": "a"},
		map[string]any{"name": "b"},
		map[string]any{"name": "c"},
	)
	s := newStore(t, srv)
	ctx := context.Background()

	_, err := s.LoadInitialData(ctx)
	require.NoError(t, err)

	target, ok := s.LookupByID(2)
	require.True(t, ok)

	out, err := s.Delete(ctx, target)
	require.NoError(t, err)
	assert.Equal(t, datastore.OutcomeApplied, out)
	assert.Equal(t, []int64{1, 3}, s.Snapshot().IDs())

	last := srv.LastRequest()
	assert.Equal(t, http.MethodPost, last.WireMethod)
	assert.Equal(t, http.MethodDelete, last.Method)
	assert.JSONEq(t, `{"resource":[2]}`, string(last.Body))
	assert.Len(t, srv.Rows("db", "contact"), 2)
}

func TestStore_DeleteSkippedWithoutID(t *testing.T) {
	srv := dftest.NewServer(t, apiKey)
	s := newStore(t, srv)

	out, err := s.Delete(context.Background(), &contact{Name: "X"})
	require.NoError(t, err)
	assert.Equal(t, datastore.OutcomeSkipped, out)
	assert.Empty(t, srv.Requests())
}

func TestStore_DeleteIgnoresMalformedReply(t *testing.T) {
	srv := dftest.NewServer(t, apiKey)
	srv.Seed("db", "contact", map[string]any{"name": "a"})
	s := newStore(t, srv)
	ctx := context.Background()

	_, err := s.LoadInitialData(ctx)
	require.NoError(t, err)

	srv.Respond(http.MethodDelete, contactPath, http.StatusOK, map[string]any{"success": true})
	out, err := s.Delete(ctx, &contact{Model: resource.Model{ID: 1}})
	require.NoError(t, err)
	assert.Equal(t, datastore.OutcomeIgnored, out)
	assert.Equal(t, []int64{1}, s.Snapshot().IDs())
}

func TestStore_TransportErrorKeepsSnapshot(t *testing.T) {
	srv := dftest.NewServer(t, apiKey)
	srv.Seed("db", "contact", map[string]any{"name": "a"})
	s := newStore(t, srv)
	ctx := context.Background()

	_, err := s.LoadInitialData(ctx)
	require.NoError(t, err)
	before := s.Snapshot()

	srv.Respond(http.MethodGet, contactPath, http.StatusInternalServerError, map[string]any{
		"error": map[string]any{"message": "db down"},
	})
	out, err := s.RetrieveAll(ctx)
	require.Error(t, err)
	assert.Equal(t, datastore.OutcomeFailed, out)
	assert.Equal(t, http.StatusInternalServerError, transport.StatusCode(err))
	assert.Equal(t, before.Version(), s.Snapshot().Version())

	srv.Respond(http.MethodDelete, contactPath, http.StatusNotFound, map[string]any{
		"error": map[string]any{"message": "gone"},
	})
	out, err = s.Delete(ctx, &contact{Model: resource.Model{ID: 1}})
	require.ErrorIs(t, err, transport.ErrNotFound)
	assert.Equal(t, datastore.OutcomeFailed, out)
	assert.Equal(t, []int64{1}, s.Snapshot().IDs())
}

func TestStore_RetrieveAllIgnoresMissingEnvelope(t *testing.T) {
	srv := dftest.NewServer(t, apiKey)
	srv.Respond(http.MethodGet, contactPath, http.StatusOK, []any{map[string]any{"id": 1}})
	s := newStore(t, srv)

	out, err := s.RetrieveAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, datastore.OutcomeIgnored, out)
	assert.Equal(t, uint64(0), s.Snapshot().Version())
}

func TestStore_Subscribe(t *testing.T) {
	srv := dftest.NewServer(t, apiKey)
	srv.Seed("db", "contact", map[string]any{"name": "a"})
	s := newStore(t, srv)

	snaps, unsubscribe := s.Subscribe()
	defer unsubscribe()

	select {
	case snap := <-snaps:
		assert.Equal(t, uint64(0), snap.Version())
		assert.Equal(t, 0, snap.Len())
	case <-time.After(time.Second):
		t.Fatal("no initial snapshot")
	}

	_, err := s.LoadInitialData(context.Background())
	require.NoError(t, err)

	select {
	case snap := <-snaps:
		assert.Equal(t, []int64{1}, snap.IDs())
	case <-time.After(time.Second):
		t.Fatal("no snapshot after load")
	}
}

func TestStore_SubscribeKeepsLatest(t *testing.T) {
	srv := dftest.NewServer(t, apiKey)
	srv.Seed("db", "contact", map[string]any{"name": "a"})
	s := newStore(t, srv)
	ctx := context.Background()

	snaps, unsubscribe := s.Subscribe()

	_, err := s.RetrieveAll(ctx)
	require.NoError(t, err)
	_, err = s.RetrieveAll(ctx)
	require.NoError(t, err)

	snap := <-snaps
	assert.Equal(t, uint64(2), snap.Version())
	assert.Equal(t, []int64{1, 1}, snap.IDs())

	unsubscribe()
	unsubscribe()
	_, open := <-snaps
	assert.False(t, open)

	_, err = s.RetrieveAll(ctx)
	require.NoError(t, err)
}

func TestStore_ConcurrentOperations(t *testing.T) {
	srv := dftest.NewServer(t, apiKey)
	for i := 1; i <= 20; i++ {
		srv.Seed("db", "contact", map[string]any{"name": fmt.Sprintf("seed-%d", i)})
	}
	s := newStore(t, srv)
	ctx := context.Background()

	_, err := s.LoadInitialData(ctx)
	require.NoError(t, err)

	var doomed []*contact
	for id := int64(1); id <= 10; id++ {
		rec, ok := s.LookupByID(id)
		require.True(t, ok)
		doomed = append(doomed, rec)
	}

	snaps, unsubscribe := s.Subscribe()
	var (
		lastSeen   uint64
		duplicates int
		regressed  bool
	)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for snap := range snaps {
			if snap.Version() < lastSeen {
				regressed = true
			}
			lastSeen = snap.Version()
			seen := map[int64]bool{}
			for _, id := range snap.IDs() {
				if seen[id] {
					duplicates++
				}
				seen[id] = true
			}
		}
	}()

	var wg sync.WaitGroup
	for _, rec := range doomed {
		wg.Add(1)
		go func(rec *contact) {
			defer wg.Done()
			out, err := s.Delete(ctx, rec)
			assert.NoError(t, err)
			assert.Equal(t, datastore.OutcomeApplied, out)
		}(rec)
	}
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			out, err := s.Create(ctx, &contact{Name: fmt.Sprintf("new-%d", i)})
			assert.NoError(t, err)
			assert.Equal(t, datastore.OutcomeApplied, out)
		}(i)
	}
	for id := int64(11); id <= 20; id++ {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			out, err := s.RetrieveByID(ctx, id)
			assert.NoError(t, err)
			assert.Equal(t, datastore.OutcomeApplied, out)
		}(id)
	}
	wg.Wait()

	unsubscribe()
	<-done

	var want []int64
	for id := int64(11); id <= 30; id++ {
		want = append(want, id)
	}
	final := s.Snapshot()
	assert.ElementsMatch(t, want, final.IDs())
	assert.Equal(t, 20, final.Len())
	assert.Zero(t, duplicates)
	assert.False(t, regressed)
	assert.Equal(t, final.Version(), lastSeen)
	assert.Len(t, srv.Rows("db", "contact"), 20)
}

func TestStore_SnapshotsAreIndependent(t *testing.T) {
	srv := dftest.NewServer(t, apiKey)
	srv.Seed("db", "contact", map[string]any{"name": "a"}, map[string]any{"name": "b"})
	s := newStore(t, srv)
	ctx := context.Background()

	_, err := s.LoadInitialData(ctx)
	require.NoError(t, err)
	old := s.Snapshot()

	_, err = s.Delete(ctx, &contact{Model: resource.Model{ID: 1}})
	require.NoError(t, err)

	assert.Equal(t, []int64{1, 2}, old.IDs())
	assert.Equal(t, []int64{2}, s.Snapshot().IDs())
}

func TestStore_MapRecords(t *testing.T) {
	srv := dftest.NewServer(t, apiKey)
	srv.Seed("db", "contact", map[string]any{"name": "a"})

	gw, err := transport.New(&transport.Config{BaseURL: srv.BaseURL(), APIKey: apiKey})
	require.NoError(t, err)
	s, err := datastore.New(datastore.Config[resource.Map]{
		Gateway: gw,
		Locator: resource.Table("db", "contact"),
		Factory: resource.NewMap,
	})
	require.NoError(t, err)

	_, err = s.LoadInitialData(context.Background())
	require.NoError(t, err)

	rec, ok := s.LookupByID(1)
	require.True(t, ok)
	assert.Equal(t, "a", rec["name"])
}

func TestOutcome_String(t *testing.T) {
	assert.Equal(t, "applied", datastore.OutcomeApplied.String())
	assert.Equal(t, "skipped", datastore.OutcomeSkipped.String())
	assert.Equal(t, "ignored", datastore.OutcomeIgnored.String())
	assert.Equal(t, "failed", datastore.OutcomeFailed.String())
}
