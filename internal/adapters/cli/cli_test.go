package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andrescamacho/marketscan-go/internal/adapters/messaging"
	"github.com/andrescamacho/marketscan-go/internal/domain/market"
	"github.com/andrescamacho/marketscan-go/internal/infrastructure/config"
	"github.com/andrescamacho/marketscan-go/test/helpers"
)

// run executes the root command with args and returns stdout
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestLevelsCommand_SingleGame(t *testing.T) {
	out, err := run(t, "levels", "--game", "rust")

	require.NoError(t, err)
	assert.Contains(t, out, "GAME")
	for _, level := range market.AllLevels {
		assert.Contains(t, out, string(level))
	}
	assert.NotContains(t, out, "csgo")
}

func TestConfigCommands_DefaultsRoundTrip(t *testing.T) {
	// Arrange
	t.Setenv("HOME", t.TempDir())
	cfgPath := writeConfig(t, "credentials:\n  public_key: abcdefgh\n  secret_key: topsecret\n")

	// Act
	_, err := run(t, "config", "set-default", "--game", "dota", "--level", "Medium", "--max-items", "7")
	require.NoError(t, err)
	out, err := run(t, "--config", cfgPath, "config", "show")

	// Assert
	require.NoError(t, err)
	assert.Contains(t, out, "Default Game:     dota2")
	assert.Contains(t, out, "Default Level:    medium")
	assert.Contains(t, out, "abcd********")
	assert.Contains(t, out, "[REDACTED]")
	assert.NotContains(t, out, "topsecret")

	_, err = run(t, "config", "clear")
	require.NoError(t, err)
	out, err = run(t, "--config", cfgPath, "config", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "Default Game:     (not set)")
}

func TestConfigSetDefault_RejectsUnknownGame(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	_, err := run(t, "config", "set-default", "--game", "minecraft", "--level", "boost")

	assert.ErrorIs(t, err, market.ErrUnknownGame)
}

func TestScanCommand_JSONAgainstFakeMarket(t *testing.T) {
	// Arrange
	t.Setenv("HOME", t.TempDir())
	fm := helpers.NewFakeMarket(t)
	fm.AddItems("a8db",
		helpers.FakeItem{ID: "7", Title: "MP9 | Storm", PriceCents: 100, Category: "smg", Rarity: "mil-spec grade", Sales24h: 25},
		helpers.FakeItem{ID: "8", Title: "Glock-18 | Candy Apple", PriceCents: 120, Category: "pistol", Rarity: "restricted", Sales24h: 25},
	)
	cfgPath := writeConfig(t, `
api:
  base_url: `+fm.URL()+`
credentials:
  public_key: pub
  secret_key: sec
pricing:
  sources: [static]
  static:
    - game: csgo
      title: "MP9 | Storm"
      price: 130
`)

	// Act
	out, err := run(t, "--config", cfgPath, "scan", "--game", "csgo", "--level", "boost", "--output", "json")

	// Assert
	require.NoError(t, err)
	var ev messaging.ScanEvent
	require.NoError(t, json.Unmarshal([]byte(out), &ev))
	assert.Equal(t, "success", ev.Outcome)
	assert.Equal(t, 2, ev.Stats.ItemsMatched)
	require.Len(t, ev.Opportunities, 1)
	assert.Equal(t, "7", ev.Opportunities[0].ItemID)
}

func TestScanCommand_TableOutput(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	fm := helpers.NewFakeMarket(t)
	cfgPath := writeConfig(t, "api:\n  base_url: "+fm.URL()+"\ncredentials:\n  public_key: p\n  secret_key: s\npricing:\n  sources: [static]\n")

	out, err := run(t, "--config", cfgPath, "scan")

	require.NoError(t, err)
	assert.Contains(t, out, "csgo/boost")
	assert.Contains(t, out, "No opportunities found.")
}

func TestResolveScanRequest_Precedence(t *testing.T) {
	user := &config.UserConfig{DefaultGame: "rust", DefaultLevel: "pro", DefaultMaxItems: 3}

	fromUser, err := resolveScanRequest(scanFlags{}, user)
	require.NoError(t, err)
	assert.Equal(t, market.GameRust, fromUser.Game)
	assert.Equal(t, market.LevelPro, fromUser.Level)
	assert.Equal(t, 3, fromUser.MaxItems)
	assert.True(t, fromUser.UseCursor)

	fromFlags, err := resolveScanRequest(scanFlags{game: "tf2", maxItems: 9, priceTo: "2.50", paging: "offset"}, user)
	require.NoError(t, err)
	assert.Equal(t, market.GameTF2, fromFlags.Game)
	assert.Equal(t, market.LevelPro, fromFlags.Level)
	assert.Equal(t, 9, fromFlags.MaxItems)
	assert.Equal(t, int64(250), fromFlags.PriceRange.MaxMinorUnits)
	assert.False(t, fromFlags.UseCursor)

	fallback, err := resolveScanRequest(scanFlags{}, &config.UserConfig{})
	require.NoError(t, err)
	assert.Equal(t, market.GameCSGO, fallback.Game)
	assert.Equal(t, market.LevelBoost, fallback.Level)
	assert.Equal(t, 20, fallback.MaxItems)

	_, err = resolveScanRequest(scanFlags{paging: "sideways"}, user)
	assert.Error(t, err)
	_, err = resolveScanRequest(scanFlags{priceFrom: "-1"}, user)
	assert.Error(t, err)
}

func TestFormatting(t *testing.T) {
	assert.Equal(t, "$12.34", formatUSD(1234))
	assert.Equal(t, "$0.05", formatUSD(5))

	cents, err := parseUSD("$1.999")
	require.NoError(t, err)
	assert.Equal(t, int64(200), cents)

	masked := maskPassword("postgres://scan:hunter2@db:5432/journal")
	assert.False(t, strings.Contains(masked, "hunter2"))
	assert.Contains(t, masked, "scan:")
}
