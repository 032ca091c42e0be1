package container_test

import (
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/km-arc/go-ioc/framework/container"
)

// ── fixtures ──────────────────────────────────────────────────────────────────

type cycleA struct {
	B *cycleB `inject:""`
}

type cycleB struct {
	A *cycleA `inject:""`
}

type lazyA struct {
	B *container.Lazy[*lazyB] `inject:""`
}

type lazyB struct {
	A *lazyA `inject:""`
}

type strictClock struct {
	Greeter Greeter `inject:"required"`
}

type mixedFields struct {
	Counter *Counter `inject:""`
	Skipped *Counter `inject:"-"`
	Plain   *Counter
}

type report struct {
	greeter Greeter
	counter *Counter
}

func newReport(g Greeter, c *Counter) *report {
	return &report{greeter: g, counter: c}
}

type recordingObserver struct {
	created []reflect.Type
	failed  []reflect.Type
}

func (o *recordingObserver) ServiceCreated(t reflect.Type, _ container.Lifetime, _ time.Duration) {
	o.created = append(o.created, t)
}

func (o *recordingObserver) ServiceFailed(t reflect.Type, _ container.Lifetime, _ error) {
	o.failed = append(o.failed, t)
}

// ── Injection ─────────────────────────────────────────────────────────────────

func TestResolver_InjectsTaggedFields(t *testing.T) {
	c := container.New()
	require.NoError(t, container.AddSingletonAs[Greeter, *englishGreeter](c))

	clock := container.MustGet[*Clock](c.Build())
	require.NotNil(t, clock.Greeter)
	assert.Equal(t, "hello", clock.Greeter.Greet())
}

func TestResolver_OptionalDependency_LeftZero(t *testing.T) {
	c := container.New()
	clock := container.MustGet[*Clock](c.Build())
	assert.Nil(t, clock.Greeter)
}

func TestResolver_RequiredDependency_Missing(t *testing.T) {
	c := container.New()
	_, err := container.Get[*strictClock](c.Build())
	assert.ErrorIs(t, err, container.ErrMissingDependency)
}

func TestResolver_OnlyTaggedFieldsInjected(t *testing.T) {
	c := container.New()
	got := container.MustGet[*mixedFields](c.Build())
	assert.NotNil(t, got.Counter)
	assert.Nil(t, got.Skipped)
	assert.Nil(t, got.Plain)
}

// ── Resolution order ──────────────────────────────────────────────────────────

func TestResolver_DefaultLifetime_AutoRegistersScoped(t *testing.T) {
	c := container.New()
	r := c.Build()

	a := container.MustGet[*Counter](r)
	b := container.MustGet[*Counter](r)
	assert.Same(t, a, b)
}

func TestResolver_WithDefaultLifetime_Transient(t *testing.T) {
	c := container.New()
	r := c.Build(container.WithDefaultLifetime(container.Transient))

	a := container.MustGet[*Counter](r)
	b := container.MustGet[*Counter](r)
	assert.NotSame(t, a, b)
}

func TestResolver_WithoutDefaultLifetime_ReturnsNil(t *testing.T) {
	c := container.New()
	r := c.Build(container.WithoutDefaultLifetime())

	got, err := r.GetService(reflect.TypeFor[*Counter]())
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestResolver_InterfaceNeverAutoRegistered(t *testing.T) {
	c := container.New()
	g, err := container.Get[Greeter](c.Build())
	require.NoError(t, err)
	assert.Nil(t, g)
}

func TestResolver_NilServiceType(t *testing.T) {
	c := container.New()
	_, err := c.Build().GetService(nil)
	assert.ErrorIs(t, err, container.ErrNilServiceType)
}

// ── Fallback ──────────────────────────────────────────────────────────────────

func TestResolver_Fallback_ServesUnregisteredTypes(t *testing.T) {
	fb := container.ProviderFunc(func(t reflect.Type) (any, error) {
		if t == reflect.TypeFor[Greeter]() {
			return &frenchGreeter{}, nil
		}
		return nil, nil
	})

	c := container.New()
	r := c.Build(container.WithFallback(fb))
	assert.Equal(t, "bonjour", container.MustGet[Greeter](r).Greet())
}

func TestResolver_Fallback_LocalRegistrationWins(t *testing.T) {
	fb := container.ProviderFunc(func(reflect.Type) (any, error) {
		return &frenchGreeter{}, nil
	})

	c := container.New()
	require.NoError(t, container.AddScopedAs[Greeter, *englishGreeter](c))
	r := c.Build(container.WithFallback(fb))
	assert.Equal(t, "hello", container.MustGet[Greeter](r).Greet())
}

func TestResolver_Fallback_ErrorPropagates(t *testing.T) {
	boom := errors.New("fallback down")
	fb := container.ProviderFunc(func(reflect.Type) (any, error) { return nil, boom })

	c := container.New()
	_, err := container.Get[Greeter](c.Build(container.WithFallback(fb)))
	assert.ErrorIs(t, err, boom)
}

func TestResolver_FallbackWrapper(t *testing.T) {
	fb := container.ProviderFunc(func(reflect.Type) (any, error) {
		return &frenchGreeter{}, nil
	})

	c := container.New()
	require.NoError(t, container.AddScopedAs[Greeter, *englishGreeter](c))

	r := c.Build(container.WithFallback(fb))
	wrapper := container.MustGet[*container.Fallback](r)
	require.NotNil(t, wrapper)

	// the wrapper bypasses local registrations
	g := container.MustGet[Greeter](wrapper)
	assert.Equal(t, "bonjour", g.Greet())
}

func TestResolver_FallbackWrapper_AbsentWithoutFallback(t *testing.T) {
	c := container.New()
	wrapper, err := container.Get[*container.Fallback](c.Build())
	require.NoError(t, err)
	assert.Nil(t, wrapper)
}

// ── Self exposure ─────────────────────────────────────────────────────────────

func TestResolver_ExposesItself(t *testing.T) {
	c := container.New()
	r := c.Build()

	assert.Same(t, r, container.MustGet[*container.Resolver](r))
	assert.Same(t, r, container.MustGet[container.Provider](r))
}

func TestResolver_FactoryReceivesResolvingResolver(t *testing.T) {
	c := container.New()
	var seen *container.Resolver
	require.NoError(t, container.AddScopedFactory(c, func(r *container.Resolver) (*Counter, error) {
		seen = r
		return &Counter{}, nil
	}))

	r := c.Build()
	container.MustGet[*Counter](r)
	assert.Same(t, r, seen)
}

// ── Cycles ────────────────────────────────────────────────────────────────────

func TestResolver_CircularDependency(t *testing.T) {
	for _, lifetime := range []container.Lifetime{container.Singleton, container.Scoped, container.Transient} {
		t.Run(lifetime.String(), func(t *testing.T) {
			c := container.New()
			require.NoError(t, c.AddTransient(reflect.TypeFor[*cycleA]()))
			switch lifetime {
			case container.Singleton:
				require.NoError(t, container.AddSingleton[*cycleB](c))
			case container.Scoped:
				require.NoError(t, container.AddScoped[*cycleB](c))
			default:
				require.NoError(t, container.AddTransient[*cycleB](c))
			}

			_, err := container.Get[*cycleA](c.Build())
			require.ErrorIs(t, err, container.ErrCircularDependency)

			var re *container.ResolutionError
			require.ErrorAs(t, err, &re)
			assert.Equal(t, []reflect.Type{
				reflect.TypeFor[*cycleA](),
				reflect.TypeFor[*cycleB](),
				reflect.TypeFor[*cycleA](),
			}, re.Chain)
			assert.Contains(t, err.Error(), "*container_test.cycleA -> *container_test.cycleB -> *container_test.cycleA")
		})
	}
}

func TestResolver_FactoryResolvingItself_IsCircular(t *testing.T) {
	c := container.New()
	require.NoError(t, container.AddTransientFactory(c, func(r *container.Resolver) (*Counter, error) {
		return container.Get[*Counter](r)
	}))

	_, err := container.Get[*Counter](c.Build())
	assert.ErrorIs(t, err, container.ErrCircularDependency)
}

func TestResolver_CycleDoesNotPoisonResolver(t *testing.T) {
	c := container.New()
	r := c.Build()

	_, err := container.Get[*cycleA](r)
	require.Error(t, err)

	got, err := container.Get[*Counter](r)
	require.NoError(t, err)
	assert.NotNil(t, got)
}

// ── Lazy ──────────────────────────────────────────────────────────────────────

func TestLazy_BreaksCycle(t *testing.T) {
	c := container.New()
	r := c.Build()

	a := container.MustGet[*lazyA](r)
	require.NotNil(t, a.B)

	b, err := a.B.Value()
	require.NoError(t, err)
	require.NotNil(t, b)
	assert.Same(t, a, b.A)
}

func TestLazy_DefersConstruction(t *testing.T) {
	c := container.New()
	calls := 0
	require.NoError(t, container.AddTransientFactory(c, func(*container.Resolver) (*Counter, error) {
		calls++
		return &Counter{n: calls}, nil
	}))

	lazy := container.MustGet[*container.Lazy[*Counter]](c.Build())
	assert.Equal(t, 0, calls)

	first, err := lazy.Value()
	require.NoError(t, err)
	second, err := lazy.Value()
	require.NoError(t, err)

	assert.Equal(t, 1, calls)
	assert.Same(t, first, second)
}

func TestLazy_AvailableWithoutDefaultLifetime(t *testing.T) {
	c := container.New()
	require.NoError(t, container.AddSingletonAs[Greeter, *englishGreeter](c))

	lazy := container.MustGet[*container.Lazy[Greeter]](c.Build(container.WithoutDefaultLifetime()))
	require.NotNil(t, lazy)

	g, err := lazy.Value()
	require.NoError(t, err)
	assert.Equal(t, "hello", g.Greet())
}

func TestLazy_AbsentTarget_ZeroValue(t *testing.T) {
	c := container.New()
	lazy := container.MustGet[*container.Lazy[Greeter]](c.Build())

	g, err := lazy.Value()
	require.NoError(t, err)
	assert.Nil(t, g)
}

func TestLazy_Unbound(t *testing.T) {
	var lazy container.Lazy[Greeter]
	_, err := lazy.Value()
	assert.ErrorIs(t, err, container.ErrLazyUnbound)
}

func TestLazy_HandlesAreNotShared(t *testing.T) {
	c := container.New()
	r := c.Build()
	a := container.MustGet[*container.Lazy[*Counter]](r)
	b := container.MustGet[*container.Lazy[*Counter]](r)
	assert.NotSame(t, a, b)
}

func TestLazy_ScopedTarget_OncePerResolver(t *testing.T) {
	c := container.New()
	calls := 0
	require.NoError(t, container.AddScopedFactory(c, func(*container.Resolver) (*Counter, error) {
		calls++
		return &Counter{n: calls}, nil
	}))

	r := c.Build()
	first := container.MustGet[*container.Lazy[*Counter]](r)
	second := container.MustGet[*container.Lazy[*Counter]](r)
	require.NotSame(t, first, second)

	a, err := first.Value()
	require.NoError(t, err)
	b, err := second.Value()
	require.NoError(t, err)
	assert.Same(t, a, b)
	assert.Same(t, a, container.MustGet[*Counter](r))
	assert.Equal(t, 1, calls)

	other, err := container.MustGet[*container.Lazy[*Counter]](c.Build()).Value()
	require.NoError(t, err)
	assert.NotSame(t, a, other)
	assert.Equal(t, 2, calls)
}

// ── Failures ──────────────────────────────────────────────────────────────────

func TestResolver_FactoryError_Wrapped(t *testing.T) {
	boom := errors.New("boom")
	c := container.New()
	require.NoError(t, container.AddScopedFactory(c, func(*container.Resolver) (*Counter, error) {
		return nil, boom
	}))

	_, err := container.Get[*Counter](c.Build())
	require.ErrorIs(t, err, boom)

	var re *container.ResolutionError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, reflect.TypeFor[*Counter](), re.ServiceType)
}

func TestResolver_FactoryNilResult(t *testing.T) {
	c := container.New()
	require.NoError(t, container.AddScopedFactory(c, func(*container.Resolver) (*Counter, error) {
		return nil, nil
	}))

	_, err := container.Get[*Counter](c.Build())
	assert.ErrorIs(t, err, container.ErrNilFactoryResult)
}

func TestResolver_FailedSingletonIsRetried(t *testing.T) {
	c := container.New()
	attempts := 0
	require.NoError(t, container.AddSingletonFactory(c, func(*container.Resolver) (*Counter, error) {
		attempts++
		if attempts == 1 {
			return nil, errors.New("transient failure")
		}
		return &Counter{n: attempts}, nil
	}))

	r := c.Build()
	_, err := container.Get[*Counter](r)
	require.Error(t, err)

	got, err := container.Get[*Counter](r)
	require.NoError(t, err)
	assert.Equal(t, 2, got.n)
}

func TestResolver_UnknownLifetime(t *testing.T) {
	c := container.New()
	reg, err := container.NewRegistration(container.Lifetime(42), reflect.TypeFor[*Counter](), nil, nil)
	require.NoError(t, err)
	require.NoError(t, c.Add(reflect.TypeFor[*Counter](), reg))

	_, err = container.Get[*Counter](c.Build())
	assert.ErrorIs(t, err, container.ErrUnknownLifetime)
}

func TestGet_TypeMismatch(t *testing.T) {
	fb := container.ProviderFunc(func(reflect.Type) (any, error) { return 42, nil })
	_, err := container.Get[Greeter](fb)
	assert.ErrorIs(t, err, container.ErrTypeMismatch)
}

func TestMustGet_Panics(t *testing.T) {
	fb := container.ProviderFunc(func(reflect.Type) (any, error) { return nil, errors.New("nope") })
	assert.Panics(t, func() { container.MustGet[Greeter](fb) })
}

// ── Constructors ──────────────────────────────────────────────────────────────

func TestResolver_AddConstructor_ResolvesParameters(t *testing.T) {
	c := container.New()
	require.NoError(t, container.AddSingletonAs[Greeter, *frenchGreeter](c))
	require.NoError(t, c.AddConstructor(container.Transient, newReport))

	got := container.MustGet[*report](c.Build())
	require.NotNil(t, got.greeter)
	assert.Equal(t, "bonjour", got.greeter.Greet())
	assert.NotNil(t, got.counter)
}

func TestResolver_AddConstructor_AbsentParameterIsZero(t *testing.T) {
	c := container.New()
	require.NoError(t, c.AddConstructor(container.Transient, newReport))

	got := container.MustGet[*report](c.Build(container.WithoutDefaultLifetime()))
	assert.Nil(t, got.greeter)
	assert.Nil(t, got.counter)
}

func TestResolver_AddConstructor_ErrorReturn(t *testing.T) {
	boom := errors.New("boom")
	c := container.New()
	require.NoError(t, c.AddConstructor(container.Scoped, func() (*Counter, error) { return nil, boom }))

	_, err := container.Get[*Counter](c.Build())
	assert.ErrorIs(t, err, boom)
}

func TestConstructor_RejectsInvalid(t *testing.T) {
	_, err := container.Constructor(42)
	assert.ErrorIs(t, err, container.ErrNoStrategy)

	_, err = container.Constructor(func() {})
	assert.ErrorIs(t, err, container.ErrNotConstructible)

	_, err = container.Constructor(func(...int) *Counter { return nil })
	assert.ErrorIs(t, err, container.ErrNotConstructible)
}

// ── Disposal ──────────────────────────────────────────────────────────────────

func TestResolver_Close_ClosesScopedOnly(t *testing.T) {
	var log []string
	c := container.New()
	require.NoError(t, container.AddScopedFactory(c, func(*container.Resolver) (*firstCloser, error) {
		return &firstCloser{&closeRecorder{name: "first", log: &log}}, nil
	}))
	require.NoError(t, container.AddScopedFactory(c, func(*container.Resolver) (*secondCloser, error) {
		return &secondCloser{&closeRecorder{name: "second", log: &log}}, nil
	}))
	require.NoError(t, container.AddTransientFactory(c, func(*container.Resolver) (*closeRecorder, error) {
		return &closeRecorder{name: "transient", log: &log}, nil
	}))

	r := c.Build()
	container.MustGet[*firstCloser](r)
	container.MustGet[*secondCloser](r)
	container.MustGet[*closeRecorder](r)

	require.NoError(t, r.Close())
	assert.Equal(t, []string{"second", "first"}, log)

	// scoped instances are rebuilt after Close
	log = nil
	container.MustGet[*firstCloser](r)
	require.NoError(t, r.Close())
	assert.Equal(t, []string{"first"}, log)
}

// ── Observer ──────────────────────────────────────────────────────────────────

func TestResolver_Observer(t *testing.T) {
	obs := &recordingObserver{}
	c := container.New(container.WithObserver(obs))
	require.NoError(t, container.AddScopedFactory(c, func(*container.Resolver) (*Baz, error) {
		return nil, errors.New("nope")
	}))

	r := c.Build()
	container.MustGet[*Counter](r)
	container.MustGet[*Counter](r)
	_, _ = container.Get[*Baz](r)

	assert.Equal(t, []reflect.Type{reflect.TypeFor[*Counter]()}, obs.created)
	assert.Equal(t, []reflect.Type{reflect.TypeFor[*Baz]()}, obs.failed)
}

func TestResolver_IDsAreUnique(t *testing.T) {
	c := container.New()
	assert.NotEqual(t, c.Build().ID(), c.Build().ID())
}

func TestResolver_PrependFallback_ChainsBeforeExisting(t *testing.T) {
	outer := container.ProviderFunc(func(t reflect.Type) (any, error) {
		if t == reflect.TypeFor[Greeter]() {
			return &englishGreeter{}, nil
		}
		return nil, nil
	})
	inner := container.ProviderFunc(func(t reflect.Type) (any, error) {
		if t == reflect.TypeFor[Greeter]() {
			return &frenchGreeter{}, nil
		}
		if t == reflect.TypeFor[*Baz]() {
			return &Baz{n: 9}, nil
		}
		return nil, nil
	})

	c := container.New()
	r := c.Build(
		container.WithoutDefaultLifetime(),
		container.WithFallback(inner),
		container.PrependFallback(outer),
	)

	assert.Equal(t, "hello", container.MustGet[Greeter](r).Greet())
	assert.Equal(t, 9, container.MustGet[*Baz](r).n)
}

func TestResolver_PrependFallback_WrapperKeepsHostProvider(t *testing.T) {
	outer := container.ProviderFunc(func(t reflect.Type) (any, error) {
		if t == reflect.TypeFor[*Counter]() {
			return &Counter{n: 1}, nil
		}
		return nil, nil
	})
	host := container.ProviderFunc(func(t reflect.Type) (any, error) {
		if t == reflect.TypeFor[*Baz]() {
			return &Baz{n: 2}, nil
		}
		return nil, nil
	})

	c := container.New()
	r := c.Build(container.WithFallback(host), container.PrependFallback(outer))
	wrapper := container.MustGet[*container.Fallback](r)

	v, err := wrapper.GetService(reflect.TypeFor[*Counter]())
	require.NoError(t, err)
	assert.Nil(t, v)
	v, err = wrapper.GetService(reflect.TypeFor[*Baz]())
	require.NoError(t, err)
	assert.Equal(t, 2, v.(*Baz).n)

	// without a host fallback there is nothing to expose
	bare := c.Build(container.PrependFallback(outer))
	got, err := container.Get[*container.Fallback](bare)
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.Equal(t, 1, container.MustGet[*Counter](bare).n)
}
