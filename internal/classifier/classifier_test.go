package classifier

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tiagomennab/ensaio-fotos-sub001/internal/domain"
)

type fakeStore struct {
	byID       map[string]*domain.Job
	byExternal map[string]*domain.Job
	err        error
	calls      int
}

func newFakeStore(jobs ...*domain.Job) *fakeStore {
	s := &fakeStore{byID: map[string]*domain.Job{}, byExternal: map[string]*domain.Job{}}
	for _, j := range jobs {
		s.byID[j.ID] = j
		if j.ExternalJobID != "" {
			s.byExternal[j.ExternalJobID] = j
		}
	}
	return s
}

func (s *fakeStore) GetByID(_ context.Context, id, ownerID string) (*domain.Job, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	j, ok := s.byID[id]
	if !ok || (ownerID != "" && j.OwnerID != ownerID) {
		return nil, domain.ErrNotFound
	}
	cp := *j
	return &cp, nil
}

func (s *fakeStore) FindByExternalID(_ context.Context, ext string) (*domain.Job, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	j, ok := s.byExternal[ext]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *j
	cp.Kind = domain.ResolveGenerationKind(cp.Kind, cp.Prompt)
	return &cp, nil
}

func (s *fakeStore) ApplyUpdate(context.Context, domain.JobUpdate) (bool, error) { return true, nil }

func TestClassifyAutoDetection(t *testing.T) {
	gens := newFakeStore(
		&domain.Job{ID: "g1", ExternalJobID: "p1", OwnerID: "u1", Kind: domain.JobKindGeneration, Prompt: "[UPSCALED] portrait"},
		&domain.Job{ID: "g2", ExternalJobID: "p2", OwnerID: "u1", Kind: domain.JobKindGeneration, Prompt: "a cat"},
	)
	models := newFakeStore(&domain.Job{ID: "m1", ExternalJobID: "p3", OwnerID: "u1", Status: domain.ModelStatusTraining})
	c := New(gens, models, zerolog.Nop())
	ctx := context.Background()

	res, ok, err := c.Classify(ctx, nil, "p1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, domain.JobKindUpscale, res.Kind)

	res, ok, err = c.Classify(ctx, nil, "p2")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, domain.JobKindGeneration, res.Kind)

	res, ok, err = c.Classify(ctx, nil, "p3")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, domain.JobKindTraining, res.Kind)
	assert.Equal(t, "m1", res.Job.ID)

	_, ok, err = c.Classify(ctx, nil, "unknown")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestClassifyHintFallsThrough(t *testing.T) {
	gens := newFakeStore(&domain.Job{ID: "g1", ExternalJobID: "p1", OwnerID: "u1", Kind: domain.JobKindGeneration})
	models := newFakeStore()
	c := New(gens, models, zerolog.Nop())

	res, ok, err := c.Classify(context.Background(), &Hint{Kind: HintTraining, RecordID: "ghost", OwnerID: "u1"}, "p1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "g1", res.Job.ID)
	assert.False(t, res.ViaHint)
}

func TestClassifyHintDirectLookup(t *testing.T) {
	gens := newFakeStore()
	models := newFakeStore(&domain.Job{ID: "m1", ExternalJobID: "p9", OwnerID: "u1"})
	c := New(gens, models, zerolog.Nop())

	res, ok, err := c.Classify(context.Background(), &Hint{Kind: HintTraining, RecordID: "m1", OwnerID: "u1"}, "p9")
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, res.ViaHint)
	assert.Equal(t, domain.JobKindTraining, res.Kind)
	assert.Equal(t, 0, gens.calls)
}

func TestClassifyHintWithForeignExternalID(t *testing.T) {
	gens := newFakeStore(
		&domain.Job{ID: "g1", ExternalJobID: "p1", OwnerID: "u1", Kind: domain.JobKindGeneration},
		&domain.Job{ID: "g2", ExternalJobID: "p2", OwnerID: "u1", Kind: domain.JobKindVideo},
	)
	c := New(gens, newFakeStore(), zerolog.Nop())

	res, ok, err := c.Classify(context.Background(), &Hint{Kind: HintGeneration, RecordID: "g1"}, "p2")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "g2", res.Job.ID)
	assert.Equal(t, domain.JobKindVideo, res.Kind)
}

func TestClassifyPropagatesStoreErrors(t *testing.T) {
	gens := newFakeStore()
	gens.err = errors.New("db down")
	c := New(gens, newFakeStore(), zerolog.Nop())

	_, ok, err := c.Classify(context.Background(), nil, "p1")
	require.Error(t, err)
	assert.False(t, ok)
}
