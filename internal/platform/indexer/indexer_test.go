package indexer_test

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fhirway/fhirway/internal/domain/ids"
	"github.com/fhirway/fhirway/internal/platform/ferrors"
	"github.com/fhirway/fhirway/internal/platform/fhirmodel"
	"github.com/fhirway/fhirway/internal/platform/indexer"
	"github.com/fhirway/fhirway/internal/platform/repository"
	"github.com/fhirway/fhirway/internal/platform/search"
)

// fakeRepo is a transaction-bound-or-not double covering exactly the
// surface the indexer calls, matching the fakeRepo convention already
// established in internal/platform/fhirclient's tests.
type fakeRepo struct {
	repository.Repository
	inTx     bool
	claimed  []repository.Tenant
	rows     map[ids.TenantID][]repository.SequenceEntry
	advanced map[ids.TenantID]int64
	rolledBack bool
	committed  bool
}

func (f *fakeRepo) Transaction(ctx context.Context) (repository.Repository, error) {
	return &fakeRepo{inTx: true, claimed: f.claimed, rows: f.rows, advanced: f.advanced}, nil
}

func (f *fakeRepo) InTransaction() bool { return f.inTx }

func (f *fakeRepo) Commit(ctx context.Context) error {
	f.committed = true
	return nil
}

func (f *fakeRepo) Rollback(ctx context.Context) error {
	f.rolledBack = true
	return nil
}

func (f *fakeRepo) ClaimTenantLocks(ctx context.Context, candidates []ids.TenantID) ([]repository.Tenant, error) {
	if !f.inTx {
		return nil, ferrors.InvalidConnectionf("ClaimTenantLocks called outside a transaction")
	}
	return f.claimed, nil
}

func (f *fakeRepo) GetSequence(ctx context.Context, tenant ids.TenantID, start int64, count int) ([]repository.SequenceEntry, error) {
	return f.rows[tenant], nil
}

func (f *fakeRepo) AdvanceIndexSequence(ctx context.Context, tenant ids.TenantID, position int64) error {
	f.advanced[tenant] = position
	return nil
}

type fakeSearch struct {
	search.Engine
	indexed []search.Entry
}

func (f *fakeSearch) Index(ctx context.Context, fhirVersion string, tenant ids.TenantID, entries []search.Entry) (int, error) {
	f.indexed = append(f.indexed, entries...)
	return len(entries), nil
}

func TestTick_ClaimsIndexesAndAdvances(t *testing.T) {
	patient := fhirmodel.Resource{"resourceType": "Patient", "id": "abc"}
	repo := &fakeRepo{
		claimed: []repository.Tenant{{ID: "demo", IndexSequencePosition: 0}},
		rows: map[ids.TenantID][]repository.SequenceEntry{
			"demo": {
				{Tenant: "demo", ResourceType: "Patient", ResourceID: "abc", VersionID: "v1", Sequence: 1, Method: repository.MethodCreate, Resource: patient},
				{Tenant: "demo", ResourceType: "Patient", ResourceID: "abc", VersionID: "v2", Sequence: 2, Method: repository.MethodDelete, Resource: patient},
			},
		},
		advanced: map[ids.TenantID]int64{},
	}
	se := &fakeSearch{}
	w := indexer.New(repo, se, nil, indexer.Config{BatchSize: 10, PollInterval: time.Millisecond, CandidateTenants: []ids.TenantID{"demo"}}, zerolog.Nop())

	err := w.Tick(context.Background())
	require.NoError(t, err)

	require.Len(t, se.indexed, 2)
	assert.False(t, se.indexed[0].Remove)
	assert.True(t, se.indexed[1].Remove)
	assert.Equal(t, int64(2), repo.advanced["demo"])
}

func TestClaimTenantLocks_OutsideTransaction_IsInvalidConnection(t *testing.T) {
	repo := &fakeRepo{}
	_, err := repo.ClaimTenantLocks(context.Background(), []ids.TenantID{"demo"})
	require.Error(t, err)
	fe, ok := ferrors.As(err)
	require.True(t, ok)
	assert.Equal(t, ferrors.Exception, fe.Kind)
}

func TestTick_NoClaimedTenants_IsNoop(t *testing.T) {
	repo := &fakeRepo{claimed: nil, rows: map[ids.TenantID][]repository.SequenceEntry{}}
	se := &fakeSearch{}
	w := indexer.New(repo, se, nil, indexer.DefaultConfig(), zerolog.Nop())

	require.NoError(t, w.Tick(context.Background()))
	assert.Empty(t, se.indexed)
}
