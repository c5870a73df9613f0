package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/alex2wong/how-is-your-song-sub000/media"
	"github.com/valyala/fasthttp"
)

const defaultTimeout = 3 * time.Minute

var ErrNotConfigured = errors.New("transcription endpoint not configured")

// Client asks an external service for timed lyrics of a song. Whatever it
// returns is handed to the lyrics parser as is.
type Client struct {
	URL     string
	Timeout time.Duration
	HTTP    *fasthttp.Client
}

func New(url string) *Client {
	return &Client{
		URL:     url,
		Timeout: defaultTimeout,
		HTTP:    &fasthttp.Client{Name: "mvportal", MaxResponseBodySize: 4 << 20},
	}
}

type reply struct {
	Lyrics string `json:"lyrics"`
	Error  string `json:"error"`
}

// Fetch uploads the audio behind h and returns the raw lyrics text.
func (c *Client) Fetch(ctx context.Context, h *media.Handle) (text string, err error) {
	if c.URL == "" {
		return "", ErrNotConfigured
	}
	body, err := os.ReadFile(h.Path)
	if err != nil {
		return
	}

	req := fasthttp.AcquireRequest()
	defer fasthttp.ReleaseRequest(req)
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(c.URL)
	req.Header.SetMethod(fasthttp.MethodPost)
	req.Header.SetContentType(h.MimeType)
	req.URI().QueryArgs().Set("name", h.Name)
	req.SetBody(body)

	timeout := c.Timeout
	if d, ok := ctx.Deadline(); ok && time.Until(d) < timeout {
		timeout = time.Until(d)
	}
	if err = c.HTTP.DoTimeout(req, resp, timeout); err != nil {
		return "", fmt.Errorf("transcribe: %w", err)
	}

	out := bytes.TrimSpace(resp.Body())
	if resp.StatusCode() != fasthttp.StatusOK {
		return "", fmt.Errorf("transcribe: status %d: %s", resp.StatusCode(), truncate(string(out), 200))
	}

	// {"lyrics": "..."} wraps the text; anything else already is the text
	if strings.HasPrefix(string(resp.Header.ContentType()), "application/json") && len(out) > 0 && out[0] == '{' {
		var r reply
		if err = json.Unmarshal(out, &r); err != nil {
			return "", fmt.Errorf("transcribe: %w", err)
		}
		if r.Error != "" {
			return "", fmt.Errorf("transcribe: %s", r.Error)
		}
		c.Println("got", len(r.Lyrics), "bytes for", h.Name)
		return r.Lyrics, nil
	}
	c.Println("got", len(out), "bytes for", h.Name)
	return string(out), nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

func (c *Client) Println(i ...interface{}) {
	log.Println("transcribe", i)
}
