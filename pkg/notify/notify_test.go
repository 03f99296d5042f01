package notify

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueExpires(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	q := NewQueue()
	q.now = func() time.Time { return now }

	q.Notify(Error, "Upscale failed")
	now = now.Add(2 * time.Second)
	q.Notify(Info, "Exported")

	active := q.Active()
	require.Len(t, active, 2)
	assert.Equal(t, "Upscale failed", active[0].Message)
	assert.Equal(t, 2, active[1].ID)

	now = now.Add(1500 * time.Millisecond)
	active = q.Active()
	require.Len(t, active, 1)
	assert.Equal(t, "Exported", active[0].Message)

	now = now.Add(Lifetime)
	assert.Empty(t, q.Active())
}

type recorder []string

func (r *recorder) Notify(_ Level, msg string) { *r = append(*r, msg) }

func TestMulti(t *testing.T) {
	var a, b recorder
	Multi{&a, &b, Log{}}.Notify(Info, "hello")
	assert.Equal(t, recorder{"hello"}, a)
	assert.Equal(t, recorder{"hello"}, b)
}
