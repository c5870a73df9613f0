package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	mvportal "github.com/alex2wong/how-is-your-song-sub000"
	"github.com/alex2wong/how-is-your-song-sub000/defs"
	"github.com/joho/godotenv"
	"github.com/valyala/fasthttp"
	"gopkg.in/yaml.v2"
)

func main() {
	confPath := flag.String("conf", "portal.yaml", "yaml config, optional")
	listen := flag.String("listen", "", "address to serve on, overrides the config")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		log.Println("no .env, using the environment as is")
	}

	conf, err := loadConf(*confPath)
	if err != nil {
		log.Println("config:", err)
		os.Exit(1)
	}
	fromEnv(conf)
	if *listen != "" {
		conf.Listen = *listen
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ap, err := mvportal.New(ctx, conf)
	if err != nil {
		log.Println("portal:", err)
		os.Exit(1)
	}
	defer ap.Close()

	srv := &fasthttp.Server{Handler: ap.Handler, Name: "mvportal"}
	go func() {
		<-ctx.Done()
		log.Println("shutting down")
		srv.Shutdown()
	}()

	log.Println("serving on", conf.Listen)
	if err := srv.ListenAndServe(conf.Listen); err != nil {
		log.Println("serve:", err)
	}
}

func loadConf(path string) (*defs.PortalConf, error) {
	conf := &defs.PortalConf{}
	b, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		log.Println(path, "not found, defaults")
		return conf, nil
	}
	if err != nil {
		return nil, err
	}
	err = yaml.Unmarshal(b, conf)
	return conf, err
}

// livekit and service endpoints usually live in .env, not in the yaml
func fromEnv(c *defs.PortalConf) {
	set := func(dst *string, key string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	set(&c.Key, "LIVEKIT_API_KEY")
	set(&c.Secret, "LIVEKIT_API_SECRET")
	set(&c.Ws, "LIVEKIT_WS")
	set(&c.Redis, "REDIS_URL")
	set(&c.TranscribeURL, "TRANSCRIBE_URL")
	set(&c.FFmpeg, "FFMPEG")
	set(&c.Output, "MV_OUTPUT")
	if v := os.Getenv("MONITOR_RTP"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.MonitorRTP = port
		}
	}
}
