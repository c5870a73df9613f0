package transcribe

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"testing"

	"github.com/alex2wong/how-is-your-song-sub000/lyrics"
	"github.com/alex2wong/how-is-your-song-sub000/media"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttputil"
)

func serve(t *testing.T, h fasthttp.RequestHandler) *Client {
	ln := fasthttputil.NewInmemoryListener()
	srv := &fasthttp.Server{Handler: h}
	go srv.Serve(ln)
	t.Cleanup(func() { ln.Close() })

	c := New("http://transcriber/v1/lyrics")
	c.HTTP.Dial = func(addr string) (net.Conn, error) { return ln.Dial() }
	return c
}

func song(t *testing.T) *media.Handle {
	p := filepath.Join(t.TempDir(), "song.mp3")
	require.NoError(t, os.WriteFile(p, []byte("ID3 fake"), 0644))
	return &media.Handle{ID: "1", Name: "song.mp3", MimeType: "audio/mpeg", Path: p}
}

func TestFetchJSON(t *testing.T) {
	c := serve(t, func(ctx *fasthttp.RequestCtx) {
		assert.Equal(t, "POST", string(ctx.Method()))
		assert.Equal(t, "audio/mpeg", string(ctx.Request.Header.ContentType()))
		assert.Equal(t, "song.mp3", string(ctx.QueryArgs().Peek("name")))
		assert.Equal(t, "ID3 fake", string(ctx.PostBody()))
		ctx.SetContentType("application/json")
		ctx.SetBodyString(`{"lyrics":"[00:01.00]hello\n[00:02.50]world"}`)
	})

	text, err := c.Fetch(context.Background(), song(t))
	require.NoError(t, err)

	tl, err := lyrics.Parse(text)
	require.NoError(t, err)
	require.Len(t, tl, 2)
	assert.Equal(t, "world", tl[1].Text)
	assert.InDelta(t, 2.5, tl[1].Time, 1e-9)
}

func TestFetchRawArray(t *testing.T) {
	c := serve(t, func(ctx *fasthttp.RequestCtx) {
		ctx.SetContentType("application/json")
		ctx.SetBodyString(`[{"timestamp":"00:03.00","text":"la"}]`)
	})

	text, err := c.Fetch(context.Background(), song(t))
	require.NoError(t, err)
	tl, err := lyrics.Parse(text)
	require.NoError(t, err)
	require.Len(t, tl, 1)
	assert.Equal(t, 3.0, tl[0].Time)
}

func TestFetchErrors(t *testing.T) {
	c := serve(t, func(ctx *fasthttp.RequestCtx) {
		ctx.Error("model overloaded", fasthttp.StatusServiceUnavailable)
	})
	_, err := c.Fetch(context.Background(), song(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")

	c = serve(t, func(ctx *fasthttp.RequestCtx) {
		ctx.SetContentType("application/json")
		ctx.SetBodyString(`{"error":"no vocals"}`)
	})
	_, err = c.Fetch(context.Background(), song(t))
	assert.EqualError(t, err, "transcribe: no vocals")

	_, err = New("").Fetch(context.Background(), song(t))
	assert.ErrorIs(t, err, ErrNotConfigured)
}
