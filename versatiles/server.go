package versatiles

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"go.uber.org/zap"
)

// Server is a thin HTTP façade over one reader: tiles at
// /tiles/{z}/{x}/{y}.{ext}, TileJSON at /tiles.json, prometheus metrics
// at /metrics.
type Server struct {
	reader    TilesReader
	logger    *zap.Logger
	publicURL string

	registry *prometheus.Registry
	requests *prometheus.CounterVec
}

func NewServer(reader TilesReader, logger *zap.Logger, publicURL string) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	registry := prometheus.NewRegistry()
	return &Server{
		reader:    reader,
		logger:    logger,
		publicURL: publicURL,
		registry:  registry,
		requests: promauto.With(registry).NewCounterVec(prometheus.CounterOpts{
			Name: "versatiles_requests_total",
			Help: "Tile requests by status code.",
		}, []string{"status"}),
	}
}

// Handler returns the HTTP handler with CORS applied.
func (s *Server) Handler(corsOrigin string) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/tiles.json", s.serveTileJSON)
	mux.HandleFunc("/tiles/", s.serveTile)

	if corsOrigin == "" {
		return mux
	}
	return cors.New(cors.Options{AllowedOrigins: []string{corsOrigin}}).Handler(mux)
}

// ListenAndServe blocks serving on addr.
func (s *Server) ListenAndServe(addr, corsOrigin string) error {
	s.logger.Info("serving",
		zap.String("addr", addr),
		zap.String("archive", s.reader.Name()))
	return http.ListenAndServe(addr, s.Handler(corsOrigin))
}

func (s *Server) serveTileJSON(w http.ResponseWriter, r *http.Request) {
	tilejson, err := TileJSON(s.reader, s.publicURL+"/tiles")
	if err != nil {
		s.fail(w, r, http.StatusInternalServerError, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(tilejson)
	s.requests.WithLabelValues("200").Inc()
}

func (s *Server) serveTile(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	coord, ok := s.parseTilePath(r.URL.Path)
	if !ok {
		s.fail(w, r, http.StatusBadRequest, fmt.Errorf("bad tile path %q", r.URL.Path))
		return
	}

	data, err := s.reader.TileData(r.Context(), coord)
	if err != nil {
		s.fail(w, r, http.StatusInternalServerError, err)
		return
	}
	if data == nil {
		s.fail(w, r, http.StatusNotFound, nil)
		return
	}

	parameters := s.reader.Parameters()
	w.Header().Set("Content-Type", parameters.TileFormat.ContentType())
	switch parameters.TileCompression {
	case GzipCompression:
		w.Header().Set("Content-Encoding", "gzip")
	case BrotliCompression:
		w.Header().Set("Content-Encoding", "br")
	case ZstdCompression:
		w.Header().Set("Content-Encoding", "zstd")
	}
	w.Write(data)
	s.requests.WithLabelValues("200").Inc()
	s.logger.Debug("served tile",
		zap.String("coord", coord.String()),
		zap.Duration("elapsed", time.Since(start)))
}

func (s *Server) parseTilePath(path string) (TileCoord3, bool) {
	parts := strings.Split(strings.TrimPrefix(path, "/tiles/"), "/")
	if len(parts) != 3 {
		return TileCoord3{}, false
	}
	last := parts[2]
	if dot := strings.Index(last, "."); dot >= 0 {
		last = last[:dot]
	}
	z, err1 := strconv.ParseUint(parts[0], 10, 8)
	x, err2 := strconv.ParseUint(parts[1], 10, 32)
	y, err3 := strconv.ParseUint(last, 10, 32)
	if err1 != nil || err2 != nil || err3 != nil {
		return TileCoord3{}, false
	}
	coord, err := NewTileCoord3(uint8(z), uint32(x), uint32(y))
	if err != nil {
		return TileCoord3{}, false
	}
	return coord, true
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, status int, err error) {
	s.requests.WithLabelValues(strconv.Itoa(status)).Inc()
	if err != nil {
		s.logger.Warn("request failed",
			zap.String("path", r.URL.Path),
			zap.Int("status", status),
			zap.Error(err))
	}
	http.Error(w, http.StatusText(status), status)
}
