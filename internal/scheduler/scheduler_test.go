package scheduler

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/jason-s-yu/lobbybot/internal/lobby"
	"github.com/jason-s-yu/lobbybot/internal/models"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

type fakeSweeper struct {
	swept  []string
	pinned map[string]string
	fail   string
}

func (f *fakeSweeper) SweepChannel(_ context.Context, ch string) (lobby.SweepReport, error) {
	if ch == f.fail {
		return lobby.SweepReport{}, errors.New("list failed")
	}
	f.swept = append(f.swept, ch)
	return lobby.SweepReport{ChannelID: ch, Scanned: 3}, nil
}

func (f *fakeSweeper) EnsurePinned(_ context.Context, ch, content string) error {
	if f.pinned == nil {
		f.pinned = map[string]string{}
	}
	f.pinned[ch] = content
	return nil
}

type fakeCloser struct{ maxAge time.Duration }

func (f *fakeCloser) CloseStale(_ context.Context, maxAge time.Duration) (int, error) {
	f.maxAge = maxAge
	return 2, nil
}

type fakeIndexer struct{ all, top int }

func (f *fakeIndexer) IndexAll(context.Context) (int, error) { f.all++; return 0, nil }
func (f *fakeIndexer) IndexTop(context.Context) ([]models.Island, error) {
	f.top++
	return nil, nil
}

func newScheduler(t *testing.T, jobs ...Job) *Scheduler {
	t.Helper()
	s := New(quietLogger())
	for _, j := range jobs {
		require.NoError(t, s.Add(j))
	}
	return s
}

func TestLobbyJobs(t *testing.T) {
	sw := &fakeSweeper{fail: "broken"}
	closer := &fakeCloser{}
	s := newScheduler(t, LobbyJobs(sw, closer, []string{"a", "broken", "b"}, time.Hour, "pin me", quietLogger())...)
	ctx := context.Background()

	err := s.RunNow(ctx, JobSweepChannels)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken")
	assert.Equal(t, []string{"a", "b"}, sw.swept)

	require.NoError(t, s.RunNow(ctx, JobCloseStale))
	assert.Equal(t, time.Hour, closer.maxAge)

	require.NoError(t, s.RunNow(ctx, JobPins))
	assert.Equal(t, "pin me", sw.pinned["b"])
	assert.Len(t, sw.pinned, 3)
}

func TestIslandJobs(t *testing.T) {
	ix := &fakeIndexer{}
	s := newScheduler(t, IslandJobs(ix)...)

	require.NoError(t, s.RunNow(context.Background(), JobIndexTop))
	require.NoError(t, s.RunNow(context.Background(), JobIndexAll))
	assert.Equal(t, 1, ix.top)
	assert.Equal(t, 1, ix.all)
}

func TestAddRejectsDuplicatesAndBadSpecs(t *testing.T) {
	s := New(quietLogger())
	noop := func(context.Context) error { return nil }

	require.NoError(t, s.Add(Job{Name: "x", Spec: "@hourly", Run: noop}))
	assert.Error(t, s.Add(Job{Name: "x", Spec: "@hourly", Run: noop}))
	assert.Error(t, s.Add(Job{Name: "y", Spec: "not a spec", Run: noop}))
	assert.Error(t, s.RunNow(context.Background(), "missing"))
}

func TestJobTimeout(t *testing.T) {
	s := newScheduler(t, Job{
		Name:    "slow",
		Spec:    "@hourly",
		Timeout: 10 * time.Millisecond,
		Run: func(ctx context.Context) error {
			<-ctx.Done()
			return ctx.Err()
		},
	})
	assert.ErrorIs(t, s.RunNow(context.Background(), "slow"), context.DeadlineExceeded)
}

func TestStartStop(t *testing.T) {
	s := newScheduler(t, IslandJobs(&fakeIndexer{})...)
	s.Start()
	s.Stop()
}
