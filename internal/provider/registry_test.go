package provider

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"textrefine/internal/config"
	"textrefine/internal/models"
)

func TestRegistryLookup(t *testing.T) {
	r := NewRegistry("work")
	require.NoError(t, r.Register("work", models.ChatConfig{Model: "a"}))
	require.NoError(t, r.Register(" home ", models.ChatConfig{Model: "b"}))

	cfg, err := r.Lookup("")
	require.NoError(t, err)
	assert.Equal(t, "a", cfg.Model)

	cfg, err = r.Lookup("home")
	require.NoError(t, err)
	assert.Equal(t, "b", cfg.Model)

	_, err = r.Lookup("missing")
	assert.ErrorIs(t, err, ErrUnknownProfile)

	assert.Equal(t, []string{"home", "work"}, r.Names())
}

func TestRegistryRejectsDuplicatesAndBlankNames(t *testing.T) {
	r := NewRegistry("a")
	require.NoError(t, r.Register("a", models.ChatConfig{}))
	assert.ErrorIs(t, r.Register("a", models.ChatConfig{}), ErrDuplicateProfile)
	assert.Error(t, r.Register("  ", models.ChatConfig{}))
}

func TestNewRegistryFromConfig(t *testing.T) {
	cfg, err := config.Parse([]byte(`
profiles:
  - name: one
    api_key: k1
  - name: two
    api_key: k2
default_profile: two
`))
	require.NoError(t, err)

	r, err := NewRegistryFromConfig(cfg)
	require.NoError(t, err)

	chatCfg, err := r.Lookup("")
	require.NoError(t, err)
	assert.Equal(t, "k2", chatCfg.APIKey)
	assert.Equal(t, config.DefaultEndpoint, chatCfg.Endpoint)
}

func TestNewRegistryFromConfigMissingDefault(t *testing.T) {
	cfg := config.Default()
	cfg.DefaultProfile = "nope"

	_, err := NewRegistryFromConfig(cfg)
	assert.ErrorIs(t, err, ErrUnknownProfile)
}
