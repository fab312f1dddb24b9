package catalog

import (
	"context"
	"testing"

	"github.com/brutella/hap/characteristic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hapkit/hap-go/pkg/hap"
	"github.com/hapkit/hap-go/pkg/haperr"
)

func TestLookupCharacteristic(t *testing.T) {
	def, ok := LookupCharacteristic("Brightness")
	require.True(t, ok)

	assert.Equal(t, "8", def.UUID)
	assert.Equal(t, hap.FormatInt, def.Props.Format)
	assert.True(t, def.Props.Perms.CanRead())
	assert.True(t, def.Props.Perms.CanWrite())
	assert.True(t, def.Props.Perms.CanNotify())
	require.NotNil(t, def.Props.MaxValue)
	assert.Equal(t, 100.0, *def.Props.MaxValue)

	_, ok = LookupCharacteristic("Teleport")
	assert.False(t, ok)
}

func TestFormatsMatchSource(t *testing.T) {
	for name, newC := range characteristicSources {
		src := newC()
		def, ok := LookupCharacteristic(name)
		require.True(t, ok, name)

		want, err := hap.ParseFormat(src.Format)
		require.NoError(t, err, "%s: brutella format %q", name, src.Format)
		assert.Equal(t, want, def.Props.Format, "%s: brutella format %q", name, src.Format)
	}
}

func TestBrightnessIsInteger(t *testing.T) {
	c, err := Characteristic("Brightness")
	require.NoError(t, err)

	assert.Equal(t, hap.FormatInt, c.Props().Format)
	assert.Equal(t, 0, c.Value())
	require.NoError(t, c.UpdateValue(50))
	assert.Equal(t, 50, c.Value())
	assert.ErrorIs(t, c.UpdateValue(150), haperr.ErrValidation)
}

func TestFromHAPUnknownFormat(t *testing.T) {
	c := characteristic.NewBrightness().C
	c.Format = "int128"
	assert.Panics(t, func() { fromHAP("Brightness", c) })
}

func TestLookupReturnsCopies(t *testing.T) {
	def, _ := LookupCharacteristic("Brightness")
	*def.Props.MaxValue = 1

	again, _ := LookupCharacteristic("Brightness")
	assert.Equal(t, 100.0, *again.Props.MaxValue)
}

func TestCharacteristic(t *testing.T) {
	c, err := Characteristic("On")
	require.NoError(t, err)
	assert.Equal(t, "On", c.Name())
	assert.Equal(t, "25", c.UUID())
	assert.Equal(t, false, c.Value())

	c, err = Characteristic("TargetTemperature", hap.WithDisplayName("Setpoint"))
	require.NoError(t, err)
	assert.Equal(t, "Setpoint", c.Name())
	assert.Equal(t, *c.Props().MinValue, c.Value(), "numeric default is the minimum")

	_, err = Characteristic("Teleport")
	assert.ErrorIs(t, err, haperr.ErrNotFound)
}

func TestReadOnlyStandardCharacteristic(t *testing.T) {
	c, err := Characteristic("CurrentTemperature")
	require.NoError(t, err)

	assert.ErrorIs(t, c.SetValue(context.Background(), 21.0), haperr.ErrPermission)
	require.NoError(t, c.UpdateValue(21.5))
}

func TestService(t *testing.T) {
	svc, err := Service("Lightbulb", "")
	require.NoError(t, err)

	assert.Equal(t, "Lightbulb", svc.Type())
	assert.Equal(t, "43", svc.UUID())
	assert.Equal(t, hap.PrimarySubtype, svc.Subtype())
	assert.True(t, svc.HasCharacteristic("On"))
	assert.False(t, svc.HasCharacteristic("Brightness"), "optional characteristics are not added")

	thermostat, err := Service("Thermostat", "upstairs")
	require.NoError(t, err)
	assert.Len(t, thermostat.Characteristics(), 5)

	_, err = Service("Spaceship", "")
	assert.ErrorIs(t, err, haperr.ErrNotFound)
}

func TestDefinitionsComplete(t *testing.T) {
	for _, def := range Services() {
		for _, name := range append(def.Required, def.Optional...) {
			_, ok := LookupCharacteristic(name)
			assert.True(t, ok, "service %s references unknown characteristic %s", def.Name, name)
		}
	}

	defs := Characteristics()
	require.NotEmpty(t, defs)
	for i := 1; i < len(defs); i++ {
		assert.Less(t, defs[i-1].Name, defs[i].Name)
	}
}
