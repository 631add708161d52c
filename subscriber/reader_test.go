package subscriber

import (
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kavodo/streamrelay/body"
)

type memChunk struct {
	data     []byte
	released int
}

func (c *memChunk) Bytes() []byte      { return c.data }
func (c *memChunk) ReadableBytes() int { return len(c.data) }
func (c *memChunk) Release() bool {
	c.released++
	return c.released == 1
}

func TestReaderStreamsFullBodyInOrder(t *testing.T) {
	collab := body.Collaborators{
		AskForMore:      func() {},
		OnComplete:      func() {},
		OnTerminate:     func(error) {},
		DelayedTearDown: func() {},
	}
	producer := body.NewProducer(body.Origin{ID: "o", Host: "h"}, "reader-test", collab, nil)

	r := NewReader()
	r.Start(producer)

	producer.NewChunk(&memChunk{data: []byte("hello ")})
	producer.NewChunk(&memChunk{data: []byte("world")})
	producer.LastHTTPContent()

	got, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(got))
	assert.Equal(t, body.Completed, producer.CurrentState())
}

func TestReaderSurfacesProducerError(t *testing.T) {
	collab := body.Collaborators{
		AskForMore:      func() {},
		OnComplete:      func() {},
		OnTerminate:     func(error) {},
		DelayedTearDown: func() {},
	}
	producer := body.NewProducer(body.Origin{ID: "o", Host: "h"}, "reader-error", collab, nil)

	r := NewReader()
	r.Start(producer)

	boom := errors.New("boom")
	producer.ChannelException(boom)

	_, err := r.Read(make([]byte, 16))
	require.Error(t, err)
	assert.Equal(t, boom, err)
}
