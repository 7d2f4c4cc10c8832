package vcs

import (
	"context"
	"testing"

	"github.com/anushkapunekar/agentops/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockProvider implements SourceHost for testing.
type mockProvider struct{}

func (m *mockProvider) Info() ProviderInfo { return ProviderInfo{Name: "mock"} }
func (m *mockProvider) Validate() error    { return nil }
func (m *mockProvider) FetchMRDiff(context.Context, string, int64) (DiffPayload, error) {
	return DiffPayload{}, nil
}
func (m *mockProvider) PostMRNote(context.Context, string, int64, string) (int, error) {
	return 201, nil
}
func (m *mockProvider) TriggerPipeline(context.Context, string, string) (int, error) {
	return 201, nil
}

func mockFactory(conf config.Config) (SourceHost, error) {
	return &mockProvider{}, nil
}

func TestRegistryRegisterAndGet(t *testing.T) {
	r := NewRegistry()
	r.Register("mock", mockFactory)

	p, err := r.Get("mock", config.Config{})
	require.NoError(t, err)
	assert.Equal(t, "mock", p.Info().Name)
}

func TestRegistryGetUnknown(t *testing.T) {
	r := NewRegistry()

	_, err := r.Get("nope", config.Config{})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unknown provider")
}

func TestRegistryDuplicatePanics(t *testing.T) {
	r := NewRegistry()
	r.Register("dup", mockFactory)

	assert.Panics(t, func() {
		r.Register("dup", mockFactory)
	})
}

func TestRegistryNames(t *testing.T) {
	r := NewRegistry()
	r.Register("beta", mockFactory)
	r.Register("alpha", mockFactory)

	names := r.Names()
	assert.Equal(t, []string{"alpha", "beta"}, names)
}
