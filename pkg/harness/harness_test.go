package harness_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/hapkit/hap-go/pkg/catalog"
	"github.com/hapkit/hap-go/pkg/hap"
	"github.com/hapkit/hap-go/pkg/haperr"
	"github.com/hapkit/hap-go/pkg/harness"
)

type mockPlatform struct {
	mock.Mock
}

func (m *mockPlatform) DidFinishLaunching(ctx context.Context, api *harness.API) error {
	return m.Called(ctx, api).Error(0)
}

type cachingPlatform struct {
	mockPlatform
}

func (m *cachingPlatform) ConfigureAccessory(acc *hap.Accessory) {
	m.Called(acc)
}

func (m *cachingPlatform) Shutdown(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func newLight(t *testing.T, api *harness.API, seed string) *hap.Accessory {
	t.Helper()
	acc := hap.NewAccessory(api.GenerateUUID(seed), seed)
	svc, err := catalog.Service("Lightbulb", "")
	require.NoError(t, err)
	level, err := catalog.Characteristic("Brightness")
	require.NoError(t, err)
	require.NoError(t, svc.AddCharacteristic(level))
	require.NoError(t, acc.AddService(svc))
	return acc
}

// registerAfter returns a launch action that registers one light after d
// on the harness clock.
func registerAfter(t *testing.T, d time.Duration, seed string) func(mock.Arguments) {
	return func(args mock.Arguments) {
		api := args.Get(1).(*harness.API)
		api.Clock().AfterFunc(d, func() {
			assert.NoError(t, api.RegisterPlatformAccessories("homebridge-test", "TestPlatform", newLight(t, api, seed)))
		})
	}
}

// waitAsync runs WaitForRegistration on a goroutine and waits until its
// timeout timer is armed on the virtual clock.
func waitAsync(t *testing.T, h *harness.Harness, timeout time.Duration) <-chan error {
	t.Helper()
	armed := h.VirtualClock().Pending() + 1
	errCh := make(chan error, 1)
	go func() { errCh <- h.WaitForRegistration(context.Background(), timeout) }()
	require.Eventually(t, func() bool { return h.VirtualClock().Pending() == armed }, time.Second, time.Millisecond)
	return errCh
}

func TestRunUntilRegistered(t *testing.T) {
	p := &mockPlatform{}
	p.On("DidFinishLaunching", mock.Anything, mock.Anything).Run(registerAfter(t, 500*time.Millisecond, "desk")).Return(nil).Once()

	h := harness.New(p, harness.Config{})
	ctx := context.Background()
	require.NoError(t, h.Launch(ctx))
	assert.Empty(t, h.Accessories())

	start := h.Now()
	require.NoError(t, h.RunUntilRegistered(ctx, 2*time.Second))
	assert.Equal(t, 500*time.Millisecond, h.Now().Sub(start))

	uuid := hap.GenerateUUID("desk")
	require.NotNil(t, h.Accessory(uuid))
	v, ok := h.CharacteristicValue(uuid, "Lightbulb", "On")
	require.True(t, ok)
	assert.Equal(t, false, v)

	regs := h.API().Registrations()
	require.Len(t, regs, 1)
	assert.Equal(t, uuid, regs[0].UUID)
	assert.Equal(t, "TestPlatform", regs[0].Platform)
	assert.Equal(t, start.Add(500*time.Millisecond), regs[0].At)
	p.AssertExpectations(t)
}

func TestRunUntilRegisteredTimeout(t *testing.T) {
	p := &mockPlatform{}
	p.On("DidFinishLaunching", mock.Anything, mock.Anything).Run(registerAfter(t, 3*time.Second, "late")).Return(nil)

	h := harness.New(p, harness.Config{RegistrationTimeout: 250 * time.Millisecond})
	ctx := context.Background()
	require.NoError(t, h.Launch(ctx))

	start := h.Now()
	err := h.RunUntilRegistered(ctx, 0)
	assert.Equal(t, haperr.KindTimeout, haperr.KindOf(err))
	assert.Equal(t, 250*time.Millisecond, h.Now().Sub(start))
	assert.Empty(t, h.Accessories())
}

func TestWaitForRegistrationOnAdvance(t *testing.T) {
	p := &mockPlatform{}
	p.On("DidFinishLaunching", mock.Anything, mock.Anything).Run(registerAfter(t, 500*time.Millisecond, "desk")).Return(nil)

	h := harness.New(p, harness.Config{})
	require.NoError(t, h.Launch(context.Background()))

	start := h.Now()
	errCh := waitAsync(t, h, 2*time.Second)
	assert.Equal(t, start, h.Now(), "waiting does not move time")

	h.Advance(500 * time.Millisecond)
	require.NoError(t, <-errCh)
	assert.Len(t, h.Accessories(), 1)
}

func TestWaitForRegistrationTimeout(t *testing.T) {
	p := &mockPlatform{}
	p.On("DidFinishLaunching", mock.Anything, mock.Anything).Run(registerAfter(t, 3*time.Second, "late")).Return(nil)

	h := harness.New(p, harness.Config{})
	ctx := context.Background()
	require.NoError(t, h.Launch(ctx))

	errCh := waitAsync(t, h, time.Second)
	h.Advance(999 * time.Millisecond)
	select {
	case err := <-errCh:
		t.Fatalf("wait returned before its timeout: %v", err)
	default:
	}

	h.Advance(time.Millisecond)
	require.ErrorIs(t, <-errCh, haperr.ErrTimeout)
	assert.Empty(t, h.Accessories())

	// The platform timer is unaffected and fires once time moves on.
	h.Advance(2 * time.Second)
	assert.Len(t, h.Accessories(), 1)
	assert.NoError(t, h.WaitForRegistration(ctx, time.Second))
}

func TestWaitForRegistrationDefaultTimeout(t *testing.T) {
	p := &mockPlatform{}
	p.On("DidFinishLaunching", mock.Anything, mock.Anything).Return(nil)

	h := harness.New(p, harness.Config{RegistrationTimeout: 250 * time.Millisecond})
	require.NoError(t, h.Launch(context.Background()))

	errCh := waitAsync(t, h, 0)
	h.Advance(250 * time.Millisecond)
	assert.Equal(t, haperr.KindTimeout, haperr.KindOf(<-errCh))
}

func TestWaitForRegistrationFromGoroutine(t *testing.T) {
	p := &mockPlatform{}
	p.On("DidFinishLaunching", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		api := args.Get(1).(*harness.API)
		go func() {
			time.Sleep(5 * time.Millisecond)
			assert.NoError(t, api.RegisterPlatformAccessories("p", "P", newLight(t, api, "async")))
		}()
	}).Return(nil)

	h := harness.New(p, harness.Config{})
	require.NoError(t, h.Launch(context.Background()))

	// Another subscriber's timer on the same clock must not fire.
	other := 0
	h.Clock().AfterFunc(time.Second, func() { other++ })

	start := h.Now()
	require.NoError(t, h.WaitForRegistration(context.Background(), 10*time.Second))
	assert.Equal(t, start, h.Now())
	assert.Equal(t, 0, other)
	assert.Len(t, h.Accessories(), 1)
}

func TestWaitForRegistrationImmediate(t *testing.T) {
	p := &mockPlatform{}
	p.On("DidFinishLaunching", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		api := args.Get(1).(*harness.API)
		require.NoError(t, api.RegisterPlatformAccessories("p", "P", newLight(t, api, "now")))
	}).Return(nil)

	h := harness.New(p, harness.Config{})
	require.NoError(t, h.Launch(context.Background()))

	start := h.Now()
	require.NoError(t, h.WaitForRegistration(context.Background(), time.Second))
	assert.Equal(t, start, h.Now())
}

func TestWaitForRegistrationContextCancelled(t *testing.T) {
	p := &mockPlatform{}
	p.On("DidFinishLaunching", mock.Anything, mock.Anything).Return(nil)

	h := harness.New(p, harness.Config{})
	require.NoError(t, h.Launch(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, h.WaitForRegistration(ctx, time.Second), context.Canceled)
}

func TestWaitForRegistrationRealTime(t *testing.T) {
	p := &mockPlatform{}
	p.On("DidFinishLaunching", mock.Anything, mock.Anything).Run(registerAfter(t, 10*time.Millisecond, "real")).Return(nil)

	h := harness.New(p, harness.Config{RealTime: true})
	assert.Nil(t, h.VirtualClock())
	require.NoError(t, h.Launch(context.Background()))
	require.NoError(t, h.WaitForRegistration(context.Background(), 5*time.Second))
	assert.Equal(t, 0, h.Advance(time.Hour))
}

func TestLaunchTwice(t *testing.T) {
	p := &mockPlatform{}
	p.On("DidFinishLaunching", mock.Anything, mock.Anything).Return(nil).Once()

	h := harness.New(p, harness.Config{})
	require.NoError(t, h.Launch(context.Background()))
	err := h.Launch(context.Background())
	assert.ErrorIs(t, err, haperr.ErrDuplicate)
	p.AssertNumberOfCalls(t, "DidFinishLaunching", 1)
}

func TestLaunchError(t *testing.T) {
	boom := errors.New("no credentials")
	p := &mockPlatform{}
	p.On("DidFinishLaunching", mock.Anything, mock.Anything).Return(boom)

	h := harness.New(p, harness.Config{})
	err := h.Launch(context.Background())
	assert.ErrorIs(t, err, boom)
}

func TestDuplicateRegistration(t *testing.T) {
	p := &mockPlatform{}
	p.On("DidFinishLaunching", mock.Anything, mock.Anything).Return(nil)

	h := harness.New(p, harness.Config{})
	require.NoError(t, h.Launch(context.Background()))

	api := h.API()
	acc := newLight(t, api, "dup")
	require.NoError(t, api.RegisterPlatformAccessories("p", "P", acc))
	err := api.RegisterPlatformAccessories("p", "P", newLight(t, api, "dup"))
	assert.ErrorIs(t, err, haperr.ErrDuplicate)
	assert.Len(t, api.Registrations(), 1)
}

func TestUnregisterAndUpdate(t *testing.T) {
	var registered, unregistered []string
	p := &mockPlatform{}
	p.On("DidFinishLaunching", mock.Anything, mock.Anything).Return(nil)

	h := harness.New(p, harness.Config{Hooks: harness.Hooks{
		OnRegister:   func(r harness.Registration) { registered = append(registered, r.UUID) },
		OnUnregister: func(r harness.Registration) { unregistered = append(unregistered, r.UUID) },
	}})
	require.NoError(t, h.Launch(context.Background()))

	api := h.API()
	a, b := newLight(t, api, "a"), newLight(t, api, "b")
	require.NoError(t, api.RegisterPlatformAccessories("p", "P", a, b))
	require.NoError(t, api.UpdatePlatformAccessories(a))

	require.NoError(t, api.UnregisterPlatformAccessories("p", "P", a))
	assert.Nil(t, h.Accessory(a.UUID()))
	assert.Len(t, api.Registrations(), 1)
	assert.Equal(t, []string{a.UUID(), b.UUID()}, registered)
	assert.Equal(t, []string{a.UUID()}, unregistered)

	assert.Equal(t, haperr.KindNotFound, haperr.KindOf(api.UpdatePlatformAccessories(a)))
	assert.Equal(t, haperr.KindNotFound, haperr.KindOf(api.UnregisterPlatformAccessories("p", "P", a)))
}

func TestLifecycleHooks(t *testing.T) {
	var order []string
	p := &mockPlatform{}
	p.On("DidFinishLaunching", mock.Anything, mock.Anything).Run(func(mock.Arguments) {
		order = append(order, "didFinishLaunching")
	}).Return(nil)

	h := harness.New(p, harness.Config{Hooks: harness.Hooks{
		OnLaunch:   func() { order = append(order, "launch") },
		OnShutdown: func() { order = append(order, "shutdown") },
	}})
	require.NoError(t, h.Launch(context.Background()))
	require.NoError(t, h.Shutdown(context.Background()))
	require.NoError(t, h.Shutdown(context.Background()))

	assert.Equal(t, []string{"launch", "didFinishLaunching", "shutdown"}, order)
}

func TestHarnessWiresNetwork(t *testing.T) {
	p := &mockPlatform{}
	p.On("DidFinishLaunching", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		api := args.Get(1).(*harness.API)
		require.NoError(t, api.RegisterPlatformAccessories("p", "P", newLight(t, api, "net")))
	}).Return(nil)

	h := harness.New(p, harness.Config{})
	ctx := context.Background()
	require.NoError(t, h.Launch(ctx))

	uuid := hap.GenerateUUID("net")
	svc := h.Service(uuid, "Lightbulb")
	require.NotNil(t, svc)

	h.Network().Disconnect()
	err := svc.Set(ctx, "On", true)
	assert.Equal(t, haperr.KindNetwork, haperr.KindOf(err))

	// Queries bypass the gate.
	v, ok := h.CharacteristicValue(uuid, "Lightbulb", "On")
	assert.True(t, ok)
	assert.Equal(t, false, v)

	h.Network().Reconnect()
	require.NoError(t, svc.Set(ctx, "On", true))
	v, _ = h.CharacteristicValue(uuid, "Lightbulb", "On")
	assert.Equal(t, true, v)
}

func TestQueriesMissing(t *testing.T) {
	h := harness.New(&mockPlatform{}, harness.Config{})

	assert.Nil(t, h.Accessory("nope"))
	assert.Nil(t, h.Service("nope", "Lightbulb"))
	assert.Nil(t, h.Characteristic("nope", "Lightbulb", "On"))
	_, ok := h.CharacteristicValue("nope", "Lightbulb", "On")
	assert.False(t, ok)
}

func TestQueriesSubtype(t *testing.T) {
	p := &mockPlatform{}
	p.On("DidFinishLaunching", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		api := args.Get(1).(*harness.API)
		acc := newLight(t, api, "dual")
		night, err := catalog.Service("Lightbulb", "night")
		require.NoError(t, err)
		require.NoError(t, night.Update("On", true))
		require.NoError(t, acc.AddService(night))
		require.NoError(t, api.RegisterPlatformAccessories("p", "P", acc))
	}).Return(nil)

	h := harness.New(p, harness.Config{})
	require.NoError(t, h.Launch(context.Background()))
	uuid := hap.GenerateUUID("dual")

	v, ok := h.CharacteristicValue(uuid, "Lightbulb", "On")
	require.True(t, ok)
	assert.Equal(t, false, v)

	v, ok = h.CharacteristicValue(uuid, "Lightbulb/night", "On")
	require.True(t, ok)
	assert.Equal(t, true, v)

	assert.Nil(t, h.Characteristic(uuid, "Lightbulb/night", "Brightness"))
	assert.Nil(t, h.Characteristic(uuid, "Lightbulb/porch", "On"))
	assert.NotNil(t, h.Service(uuid, "Lightbulb", "night"))
}

func TestConfigDefaults(t *testing.T) {
	h := harness.New(&mockPlatform{}, harness.Config{PlatformName: "Lights"})
	cfg := h.Config()

	assert.Equal(t, "Lights", cfg.PlatformName)
	assert.Equal(t, "homebridge-test", cfg.PluginName)
	assert.Equal(t, uint64(1), cfg.Seed)
	assert.Equal(t, 5*time.Second, cfg.RegistrationTimeout)
	assert.NotNil(t, h.VirtualClock())
	assert.Equal(t, "hap-go Bridge", h.HomeKit().Name())
}

func TestAccessoryCache(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache", "accessories.cbor")
	ctx := context.Background()

	first := &cachingPlatform{}
	first.On("DidFinishLaunching", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		api := args.Get(1).(*harness.API)
		assert.Empty(t, api.CachedAccessories())
		acc := newLight(t, api, "cached")
		require.NoError(t, acc.GetService("Lightbulb").Update("Brightness", 40))
		require.NoError(t, api.RegisterPlatformAccessories("p", "P", acc))
	}).Return(nil)
	first.On("Shutdown", mock.Anything).Return(nil).Once()

	h := harness.New(first, harness.Config{CachePath: path})
	require.NoError(t, h.Launch(ctx))
	require.NoError(t, h.Shutdown(ctx))
	first.AssertExpectations(t)

	uuid := hap.GenerateUUID("cached")
	second := &cachingPlatform{}
	second.On("ConfigureAccessory", mock.MatchedBy(func(acc *hap.Accessory) bool {
		return acc.UUID() == uuid
	})).Return().Once()
	second.On("DidFinishLaunching", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		api := args.Get(1).(*harness.API)
		require.Len(t, api.CachedAccessories(), 1)
	}).Return(nil)

	h2 := harness.New(second, harness.Config{CachePath: path})
	require.NoError(t, h2.Launch(ctx))
	second.AssertExpectations(t)

	v, ok := h2.CharacteristicValue(uuid, "Lightbulb", "Brightness")
	require.True(t, ok)
	assert.Equal(t, 40, v)
	assert.Equal(t, haperr.KindTimeout, haperr.KindOf(h2.RunUntilRegistered(ctx, time.Millisecond)))
}

func TestShutdownCollectsErrors(t *testing.T) {
	p := &cachingPlatform{}
	p.On("DidFinishLaunching", mock.Anything, mock.Anything).Return(nil)
	p.On("Shutdown", mock.Anything).Return(errors.New("socket busy"))

	h := harness.New(p, harness.Config{})
	require.NoError(t, h.Launch(context.Background()))
	assert.ErrorContains(t, h.Shutdown(context.Background()), "platform shutdown: socket busy")
}
