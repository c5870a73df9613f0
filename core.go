package mvportal

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/alex2wong/how-is-your-song-sub000/defs"
	"github.com/alex2wong/how-is-your-song-sub000/lyrics"
	"github.com/alex2wong/how-is-your-song-sub000/relay"
	"github.com/alex2wong/how-is-your-song-sub000/transcribe"
	"github.com/google/uuid"
	"github.com/valyala/fasthttp"
)

const (
	lifetime = 2 * time.Hour
)

// Handler serves the portal to a local UI. File sources are paths on this
// host; nothing is uploaded.
//
//	GET  /status
//	POST /generate        Request as json, runs in the background
//	POST /terminate
//	POST /reset
//	GET  /artifact        the last finished video
//	GET  /style, POST /style
//	GET  /monitor/token?name=xxx
//	POST /lyrics/fetch    {"path": "..."} of a song
func (ap *Portal) Handler(r *fasthttp.RequestCtx) {
	method, path := string(r.Method()), string(r.Path())
	switch {
	case path == "/status" && method == fasthttp.MethodGet:
		writeJSON(r, ap.Status())
	case path == "/generate" && method == fasthttp.MethodPost:
		ap.handleGenerate(r)
	case path == "/terminate" && method == fasthttp.MethodPost:
		ap.Terminate()
		writeJSON(r, ap.Status())
	case path == "/reset" && method == fasthttp.MethodPost:
		if err := ap.ResetAll(r); err != nil {
			r.Error(err.Error(), fasthttp.StatusInternalServerError)
			return
		}
		writeJSON(r, ap.Status())
	case path == "/artifact" && method == fasthttp.MethodGet:
		ap.handleArtifact(r)
	case path == "/style" && method == fasthttp.MethodGet:
		writeJSON(r, ap.Style())
	case path == "/style" && method == fasthttp.MethodPost:
		ap.handleStyle(r)
	case path == "/monitor/token" && method == fasthttp.MethodGet:
		ap.handleToken(r)
	case path == "/lyrics/fetch" && method == fasthttp.MethodPost:
		ap.handleFetch(r)
	default:
		r.Error("not found", fasthttp.StatusNotFound)
	}
}

func (ap *Portal) handleGenerate(r *fasthttp.RequestCtx) {
	var req Request
	if err := json.Unmarshal(r.PostBody(), &req); err != nil {
		r.Error("bad request: "+err.Error(), fasthttp.StatusBadRequest)
		return
	}
	style := ap.Style()
	if req.Style != nil {
		style = req.Style.Normalize()
	}
	if err := req.Validate(style); err != nil {
		r.Error(err.Error(), fasthttp.StatusBadRequest)
		return
	}

	go ap.Generate(ap.Context, req)
	r.SetStatusCode(fasthttp.StatusAccepted)
	writeJSON(r, ap.Status())
}

func (ap *Portal) handleArtifact(r *fasthttp.RequestCtx) {
	a := ap.Artifact()
	if a == nil {
		r.Error("no video", fasthttp.StatusNotFound)
		return
	}
	r.Response.Header.Set("Content-Disposition", `attachment; filename="`+a.Name+`"`)
	r.SendFile(a.Handle.Path)
	r.SetContentType(a.Profile.MimeType)
}

func (ap *Portal) handleStyle(r *fasthttp.RequestCtx) {
	s := ap.Style()
	if err := json.Unmarshal(r.PostBody(), &s); err != nil {
		r.Error("bad request: "+err.Error(), fasthttp.StatusBadRequest)
		return
	}
	if err := ap.SetStyle(r, s); err != nil {
		var ve *defs.ValidationError
		if errors.As(err, &ve) {
			r.Error(err.Error(), fasthttp.StatusBadRequest)
			return
		}
		r.Error(err.Error(), fasthttp.StatusInternalServerError)
		return
	}
	writeJSON(r, ap.Style())
}

func (ap *Portal) handleToken(r *fasthttp.RequestCtx) {
	name := string(r.FormValue("name"))
	t, err := relay.SignToken(ap.monitorConf(), lifetime, uuid.NewString(), name)
	if errors.Is(err, relay.ErrNotConfigured) {
		r.Error(err.Error(), fasthttp.StatusServiceUnavailable)
		return
	}
	if err != nil {
		r.Error("can't make token", fasthttp.StatusInternalServerError)
		return
	}
	writeJSON(r, map[string]string{"token": t, "ws": ap.Ws, "room": ap.MonitorRoom})
}

type fetchReply struct {
	Raw   string             `json:"raw"`
	Lines []lyrics.LyricLine `json:"lines"`
}

func (ap *Portal) handleFetch(r *fasthttp.RequestCtx) {
	var src Source
	if err := json.Unmarshal(r.PostBody(), &src); err != nil || src.empty() {
		r.Error("bad request: no song path", fasthttp.StatusBadRequest)
		return
	}
	raw, tl, err := ap.FetchLyrics(r, src)
	var pe *defs.ParseError
	switch {
	case errors.As(err, &pe):
		r.Error(err.Error(), fasthttp.StatusUnprocessableEntity)
		return
	case errors.Is(err, transcribe.ErrNotConfigured):
		r.Error(err.Error(), fasthttp.StatusServiceUnavailable)
		return
	case err != nil:
		r.Error(err.Error(), fasthttp.StatusBadGateway)
		return
	}
	writeJSON(r, fetchReply{Raw: raw, Lines: tl})
}

func writeJSON(r *fasthttp.RequestCtx, v interface{}) {
	b, err := json.Marshal(v)
	if err != nil {
		r.Error(err.Error(), fasthttp.StatusInternalServerError)
		return
	}
	r.SetContentType("application/json")
	r.SetBody(b)
}
