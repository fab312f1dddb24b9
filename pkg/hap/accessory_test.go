package hap

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hapkit/hap-go/pkg/clock"
	"github.com/hapkit/hap-go/pkg/haperr"
)

func newLightbulb(t *testing.T) (*Accessory, *Service) {
	t.Helper()
	acc := NewAccessory("light-uuid", "Light")
	svc := NewService("Lightbulb", "Light", "")
	require.NoError(t, svc.AddCharacteristic(mustChar(t, "On", false, Props{Format: FormatBool, Perms: PermReadWrite})))
	require.NoError(t, svc.AddCharacteristic(mustChar(t, "Brightness", 50, brightnessProps())))
	require.NoError(t, acc.AddService(svc))
	return acc, svc
}

func TestLightbulbScenario(t *testing.T) {
	ctx := context.Background()
	clk := clock.NewVirtual(time.Time{})
	acc, _ := newLightbulb(t)
	acc.Bind(Runtime{Clock: clk})

	svc := acc.GetService("Lightbulb")
	require.NotNil(t, svc)
	on := svc.GetCharacteristic("On")
	brightness := svc.GetCharacteristic("Brightness")

	sub, err := on.Subscribe()
	require.NoError(t, err)
	require.NoError(t, on.SetValue(ctx, true))

	ev, err := sub.WaitForNext(ctx, 200*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, false, ev.OldValue)
	assert.Equal(t, true, ev.NewValue)

	err = brightness.SetValue(ctx, 120)
	assert.ErrorIs(t, err, haperr.ErrValidation)

	v, err := brightness.GetValue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 50, v)
}

func TestServiceCharacteristics(t *testing.T) {
	_, svc := newLightbulb(t)

	assert.Equal(t, PrimarySubtype, svc.Subtype())
	assert.True(t, svc.IsPrimary())
	assert.True(t, svc.HasCharacteristic("On"))
	assert.False(t, svc.HasCharacteristic("Hue"))
	assert.Nil(t, svc.GetCharacteristic("Hue"))

	err := svc.AddCharacteristic(mustChar(t, "On", true, Props{Format: FormatBool, Perms: PermReadWrite}))
	assert.ErrorIs(t, err, haperr.ErrDuplicate)
	assert.Len(t, svc.Characteristics(), 2)

	require.NoError(t, svc.AddCharacteristic(mustChar(t, "Hue", 0.0, Props{Format: FormatFloat, Perms: PermReadWrite})))
	var names []string
	for _, c := range svc.Characteristics() {
		names = append(names, c.Name())
	}
	assert.Equal(t, []string{"On", "Brightness", "Hue"}, names)
}

func TestCharacteristicBelongsToOneService(t *testing.T) {
	c := mustChar(t, "On", false, Props{Format: FormatBool, Perms: PermReadWrite})
	a := NewService("Lightbulb", "", "")
	b := NewService("Switch", "", "")

	require.NoError(t, a.AddCharacteristic(c))
	assert.ErrorIs(t, b.AddCharacteristic(c), haperr.ErrDuplicate)
	assert.Same(t, a, c.Service())
}

func TestRemoveCharacteristicClosesSubscriptions(t *testing.T) {
	_, svc := newLightbulb(t)
	on := svc.GetCharacteristic("On")
	sub, err := on.Subscribe()
	require.NoError(t, err)

	assert.True(t, svc.RemoveCharacteristic("On"))
	assert.False(t, svc.RemoveCharacteristic("On"))
	assert.False(t, sub.Active())
	assert.Nil(t, on.Service())
}

func TestAccessorTable(t *testing.T) {
	ctx := context.Background()
	_, svc := newLightbulb(t)

	require.NoError(t, svc.Set(ctx, "Brightness", 80))
	level, err := svc.GetInt(ctx, "Brightness")
	require.NoError(t, err)
	assert.Equal(t, 80, level)

	f, err := svc.GetFloat(ctx, "Brightness")
	require.NoError(t, err)
	assert.Equal(t, 80.0, f)

	require.NoError(t, svc.Update("On", true))
	on, err := svc.GetBool(ctx, "On")
	require.NoError(t, err)
	assert.True(t, on)

	_, err = svc.GetString(ctx, "On")
	assert.ErrorIs(t, err, haperr.ErrValidation)

	_, err = svc.Get(ctx, "Hue")
	assert.ErrorIs(t, err, haperr.ErrNotFound)
	assert.ErrorIs(t, svc.Set(ctx, "Hue", 1), haperr.ErrNotFound)
}

func TestAccessoryServices(t *testing.T) {
	acc, _ := newLightbulb(t)

	err := acc.AddService(NewService("Lightbulb", "Other", PrimarySubtype))
	assert.ErrorIs(t, err, haperr.ErrDuplicate)
	assert.Len(t, acc.Services(), 1)

	second := NewService("Lightbulb", "Reading", "reading")
	require.NoError(t, acc.AddService(second))

	assert.Equal(t, "Light", acc.GetService("Lightbulb").DisplayName(), "no subtype returns the first")
	assert.Same(t, second, acc.GetService("Lightbulb", "reading"))
	assert.Nil(t, acc.GetService("Lightbulb", "missing"))
	assert.Nil(t, acc.GetService("Fan"))

	primary := acc.GetService("Lightbulb", PrimarySubtype)
	require.NotNil(t, primary)
	assert.Same(t, primary, acc.GetService("Lightbulb", ""), "empty subtype is the primary one")

	assert.Same(t, primary, acc.FindService("Lightbulb"))
	assert.Same(t, primary, acc.FindService("Lightbulb/"))
	assert.Same(t, second, acc.FindService("Lightbulb/reading"))
	assert.Nil(t, acc.FindService("Lightbulb/missing"))
	assert.Nil(t, acc.FindService("Fan/reading"))

	assert.True(t, acc.RemoveService("Lightbulb", "reading"))
	assert.False(t, acc.RemoveService("Lightbulb", "reading"))
	assert.Nil(t, second.Accessory())
	assert.Len(t, acc.Services(), 1)
}

func TestRuntimeInheritance(t *testing.T) {
	clk := clock.NewVirtual(time.Time{})
	acc := NewAccessory("a", "A")
	acc.Bind(Runtime{Clock: clk})

	// Services added after Bind use the bound runtime.
	svc := NewService("Switch", "", "")
	on := mustChar(t, "On", false, Props{Format: FormatBool, Perms: PermReadWrite})
	require.NoError(t, svc.AddCharacteristic(on))
	require.NoError(t, acc.AddService(svc))

	sub, err := on.Subscribe()
	require.NoError(t, err)
	clk.Advance(time.Minute)
	require.NoError(t, on.UpdateValue(true))

	assert.Equal(t, clock.DefaultStart.Add(time.Minute), sub.History()[0].Timestamp)
	assert.NotNil(t, acc.Runtime().Logger)
}

func TestGenerateUUID(t *testing.T) {
	a := GenerateUUID("light-1")
	assert.Equal(t, a, GenerateUUID("light-1"))
	assert.NotEqual(t, a, GenerateUUID("light-2"))

	parsed, err := uuid.Parse(a)
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(5), parsed.Version())
}

func TestAccessoryContext(t *testing.T) {
	acc := NewAccessory("a", "A")
	acc.Context()["serial"] = "X1"
	assert.Equal(t, "X1", acc.Context()["serial"])

	acc.SetContext(nil)
	assert.Empty(t, acc.Context())
}
