package fixture

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hapkit/hap-go/pkg/hap"
	"github.com/hapkit/hap-go/pkg/haperr"
)

func TestLoadAndBuild(t *testing.T) {
	f, err := Load(filepath.Join("testdata", "living_room.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "Living Room", f.Name)
	require.Len(t, f.Accessories, 2)

	accs, err := f.Build()
	require.NoError(t, err)
	require.Len(t, accs, 2)

	lamp := accs[0]
	assert.Equal(t, hap.GenerateUUID("desk-lamp"), lamp.UUID())
	assert.Equal(t, "Desk Lamp", lamp.DisplayName())
	assert.Equal(t, "DL-001", lamp.Context()["serial"])

	desk := lamp.GetService("Lightbulb")
	require.NotNil(t, desk)
	assert.Equal(t, "43", desk.UUID())
	assert.Equal(t, "Desk", desk.DisplayName())
	assert.Equal(t, true, desk.GetCharacteristic("On").Value())
	assert.Equal(t, "25", desk.GetCharacteristic("On").UUID())
	assert.Equal(t, 50, desk.GetCharacteristic("Brightness").Value())

	night := lamp.GetService("Lightbulb", "night")
	require.NotNil(t, night)
	level := night.GetCharacteristic("Brightness")
	assert.Equal(t, 10, level.Value())
	assert.Equal(t, 20.0, *level.Props().MaxValue)
	assert.Equal(t, 0.0, *level.Props().MinValue, "catalog min kept")
	assert.True(t, night.HasCharacteristic("On"), "required characteristic added")

	thermo := accs[1]
	assert.Equal(t, "thermo-1", thermo.UUID())
	ts := thermo.GetService("Thermostat")
	require.NotNil(t, ts)
	assert.Len(t, ts.Characteristics(), 5)
	assert.Equal(t, 21.5, ts.GetCharacteristic("CurrentTemperature").Value())

	custom := thermo.GetService("Custom")
	require.NotNil(t, custom)
	assert.Empty(t, custom.UUID())
	mode := custom.GetCharacteristic("Mode")
	assert.Equal(t, "eco", mode.Value())
	assert.Equal(t, hap.PermReadWrite, mode.Perms())
	assert.Equal(t, 8, mode.Props().MaxLen)
	lvl := custom.GetCharacteristic("Level")
	assert.Equal(t, 3, lvl.Value())
	assert.Equal(t, hap.PermReadOnly, lvl.Perms())
}

func TestBuildRejectsInvalidValue(t *testing.T) {
	f, err := Load(filepath.Join("testdata", "bad_value.yaml"))
	require.NoError(t, err)

	_, err = f.Build()
	var le *LoadError
	require.ErrorAs(t, err, &le)
	assert.Equal(t, "accessories[0]", le.Message)
	assert.ErrorIs(t, err, haperr.ErrValidation)
	assert.ErrorContains(t, err, "maxValue 100")
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantMsg string
	}{
		{
			name:    "empty",
			yaml:    "",
			wantMsg: "at least one accessory",
		},
		{
			name:    "malformed",
			yaml:    "accessories: [",
			wantMsg: "failed to parse YAML",
		},
		{
			name:    "unknown key",
			yaml:    "accessories:\n  - seed: a\n    colour: red\n",
			wantMsg: "failed to parse YAML",
		},
		{
			name:    "no identity",
			yaml:    "accessories:\n  - name: A\n",
			wantMsg: "accessories[0]: uuid or seed is required",
		},
		{
			name:    "both identities",
			yaml:    "accessories:\n  - uuid: a\n    seed: a\n",
			wantMsg: "uuid and seed are mutually exclusive",
		},
		{
			name:    "duplicate",
			yaml:    "accessories:\n  - uuid: a\n  - uuid: a\n",
			wantMsg: "accessories[1]: duplicate accessory a",
		},
		{
			name:    "service type",
			yaml:    "accessories:\n  - uuid: a\n    services:\n      - name: X\n",
			wantMsg: "accessories[0].services[0]: type is required",
		},
		{
			name:    "characteristic type",
			yaml:    "accessories:\n  - uuid: a\n    services:\n      - type: Switch\n        characteristics:\n          - value: 1\n",
			wantMsg: "accessories[0].services[0].characteristics[0]: type is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			var le *LoadError
			require.ErrorAs(t, err, &le)
			assert.Contains(t, le.Error(), tt.wantMsg)
			assert.Empty(t, le.File)
		})
	}
}

func TestBuildErrors(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantMsg string
	}{
		{
			name:    "custom without format",
			yaml:    "accessories:\n  - uuid: a\n    services:\n      - type: X\n        characteristics:\n          - type: Y\n",
			wantMsg: "custom characteristic needs a format",
		},
		{
			name:    "bad format",
			yaml:    "accessories:\n  - uuid: a\n    services:\n      - type: X\n        characteristics:\n          - type: Y\n            format: double\n",
			wantMsg: "double",
		},
		{
			name:    "bad perm",
			yaml:    "accessories:\n  - uuid: a\n    services:\n      - type: Switch\n        characteristics:\n          - type: On\n            perms: [fly]\n",
			wantMsg: "fly",
		},
		{
			name:    "duplicate service",
			yaml:    "accessories:\n  - uuid: a\n    services:\n      - type: Switch\n      - type: Switch\n",
			wantMsg: "accessories[0]",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := Parse([]byte(tt.yaml))
			require.NoError(t, err)
			_, err = f.Build()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestLoadSetsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.yaml")
	require.NoError(t, os.WriteFile(path, []byte("accessories: []\n"), 0644))

	_, err := Load(path)
	var le *LoadError
	require.ErrorAs(t, err, &le)
	assert.Equal(t, path, le.File)
	assert.Equal(t, path+": fixture must have at least one accessory", le.Error())
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	var le *LoadError
	require.ErrorAs(t, err, &le)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}
