package echo

import (
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"echobench/internal/message"
)

type ServerConfig struct {
	Port     int    `mapstructure:"port"`
	Path     string `mapstructure:"path"`
	Behavior `mapstructure:",squash"`
}

// Handler serves POST <path> as an echo and answers everything else with 404.
func Handler(cfg ServerConfig) http.Handler {
	path := cfg.Path
	if path == "" {
		path = "/benchmark"
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != path {
			writeJSON(w, http.StatusNotFound, []byte(`{"error":"Not Found"}`))
			return
		}

		body, err := io.ReadAll(r.Body)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, []byte(`{"error":"Invalid JSON"}`))
			return
		}
		env, err := message.Decode(body)
		if err != nil {
			log.WithError(err).Debug("rejecting request body")
			writeJSON(w, http.StatusBadRequest, []byte(`{"error":"Invalid JSON"}`))
			return
		}

		if cfg.Delay > 0 {
			time.Sleep(cfg.Delay)
		}
		out, err := cfg.reply(env)
		if err != nil {
			log.WithError(err).Error("failed to build echo")
			writeJSON(w, http.StatusInternalServerError, []byte(`{"error":"Internal Server Error"}`))
			return
		}
		writeJSON(w, http.StatusOK, out)
	})
	return mux
}

func writeJSON(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

// Start runs the HTTP echo server in the background.
func Start(cfg ServerConfig) *http.Server {
	addr := fmt.Sprintf(":%d", cfg.Port)
	server := &http.Server{
		Addr:    addr,
		Handler: Handler(cfg),
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Error("http echo server failed")
		}
	}()
	log.Infof("http echo server running on http://localhost%s", addr)
	return server
}

// Listen binds addr, where port 0 picks a free port, and serves in the
// background. The bound address is returned.
func Listen(addr string, cfg ServerConfig) (*http.Server, net.Addr, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "listen on %s", addr)
	}
	server := &http.Server{Handler: Handler(cfg)}

	go func() {
		if err := server.Serve(ln); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Error("http echo server failed")
		}
	}()
	return server, ln.Addr(), nil
}
