// internal/browser/pool_test.go
package browser

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubDriver struct {
	html    string
	err     error
	renders int
	closed  bool
}

func (s *stubDriver) Render(ctx context.Context, url string) (string, error) {
	s.renders++
	return s.html, s.err
}

func (s *stubDriver) Close() error {
	s.closed = true
	return nil
}

func stubFactory(drivers ...*stubDriver) (Factory, *int) {
	launches := 0
	i := 0
	return func(cfg Config) (Driver, error) {
		launches++
		if i >= len(drivers) {
			return &stubDriver{html: "<html></html>"}, nil
		}
		d := drivers[i]
		i++
		return d, nil
	}, &launches
}

func TestPoolLaunchesLazily(t *testing.T) {
	factory, launches := stubFactory()
	p := NewPool(Config{}, factory, nil)

	assert.Equal(t, 0, *launches, "no session before first Acquire")

	d, err := p.Acquire()
	require.NoError(t, err)
	require.NotNil(t, d)
	assert.Equal(t, 1, *launches)
}

func TestPoolReusesSession(t *testing.T) {
	factory, launches := stubFactory()
	p := NewPool(Config{}, factory, nil)

	first, err := p.Acquire()
	require.NoError(t, err)
	second, err := p.Acquire()
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, 1, *launches)
}

func TestPoolPoisonForcesRelaunch(t *testing.T) {
	faulty := &stubDriver{}
	replacement := &stubDriver{}
	factory, launches := stubFactory(faulty, replacement)
	p := NewPool(Config{}, factory, nil)

	first, err := p.Acquire()
	require.NoError(t, err)
	assert.Same(t, faulty, first.(*stubDriver))

	p.Poison()
	assert.True(t, faulty.closed, "poisoned session must be closed")

	second, err := p.Acquire()
	require.NoError(t, err)
	assert.Same(t, replacement, second.(*stubDriver))
	assert.Equal(t, 2, *launches)
	assert.Equal(t, 2, p.Rebuilds())
}

func TestPoolPoisonWithoutSessionIsNoop(t *testing.T) {
	factory, launches := stubFactory()
	p := NewPool(Config{}, factory, nil)

	p.Poison()
	p.Poison()
	assert.Equal(t, 0, *launches)
}

func TestPoolCloseThenReacquire(t *testing.T) {
	d1 := &stubDriver{}
	d2 := &stubDriver{}
	factory, _ := stubFactory(d1, d2)
	p := NewPool(Config{}, factory, nil)

	_, err := p.Acquire()
	require.NoError(t, err)
	require.NoError(t, p.Close())
	assert.True(t, d1.closed)

	again, err := p.Acquire()
	require.NoError(t, err)
	assert.Same(t, d2, again.(*stubDriver))
}

func TestPoolFactoryFailure(t *testing.T) {
	p := NewPool(Config{}, func(cfg Config) (Driver, error) {
		return nil, errors.New("no chrome binary")
	}, nil)

	_, err := p.Acquire()
	assert.Error(t, err)
	assert.Equal(t, 0, p.Rebuilds())
}

func TestSessionFault(t *testing.T) {
	assert.False(t, SessionFault(nil))
	assert.False(t, SessionFault(errors.New("element not found")))
	assert.True(t, SessionFault(errors.New("websocket: close 1006")))
	assert.True(t, SessionFault(errors.New("chrome failed to start: exit status 1")))
	assert.True(t, SessionFault(context.Canceled))
}
