// Command sharestub is a local stand-in for the publishing API, used to
// exercise the upload pipeline end to end without a real account. It accepts
// media uploads, post creation, and media association, and remembers what it
// was sent for inspection via GET endpoints.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

type mediaRecord struct {
	ID     int64  `json:"ID"`
	URL    string `json:"URL"`
	File   string `json:"file"`
	Width  int64  `json:"width"`
	Height int64  `json:"height"`
	Parent int64  `json:"parent_id,omitempty"`
}

type postRecord struct {
	ID      int64  `json:"ID"`
	URL     string `json:"URL"`
	Title   string `json:"title"`
	Content string `json:"content"`
	Status  string `json:"status"`
}

type stub struct {
	mu     sync.Mutex
	nextID int64
	media  map[int64]*mediaRecord
	posts  map[int64]*postRecord
	log    *slog.Logger
}

func newStub(log *slog.Logger) *stub {
	return &stub{
		nextID: 1000,
		media:  make(map[int64]*mediaRecord),
		posts:  make(map[int64]*postRecord),
		log:    log,
	}
}

func (s *stub) id() int64 {
	s.nextID++
	return s.nextID
}

func (s *stub) uploadMedia(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(64 << 20); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*mediaRecord
	for _, fh := range r.MultipartForm.File["media[]"] {
		rec := &mediaRecord{
			ID:   s.id(),
			File: fh.Filename,
			URL:  "http://" + r.Host + "/files/" + fh.Filename,
		}
		s.media[rec.ID] = rec
		out = append(out, rec)
		s.log.Info("media received", "file", fh.Filename, "id", rec.ID, "size", fh.Size)
	}
	writeJSON(w, map[string]any{"media": out})
}

func (s *stub) createPost(w http.ResponseWriter, r *http.Request) {
	var params struct {
		Title   string `json:"title"`
		Content string `json:"content"`
		Status  string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := &postRecord{
		ID:      s.id(),
		Title:   params.Title,
		Content: params.Content,
		Status:  params.Status,
		URL:     "http://" + r.Host + "/posts/" + chi.URLParam(r, "siteID"),
	}
	s.posts[rec.ID] = rec
	s.log.Info("post received", "id", rec.ID, "title", rec.Title)
	writeJSON(w, rec)
}

func (s *stub) attachMedia(w http.ResponseWriter, r *http.Request) {
	mediaID, err := strconv.ParseInt(chi.URLParam(r, "mediaID"), 10, 64)
	if err != nil {
		http.Error(w, "bad media id", http.StatusBadRequest)
		return
	}
	var body struct {
		ParentID int64 `json:"parent_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.media[mediaID]
	if !ok {
		http.Error(w, "unknown media", http.StatusNotFound)
		return
	}
	rec.Parent = body.ParentID
	writeJSON(w, rec)
}

func (s *stub) listPosts(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*postRecord, 0, len(s.posts))
	for _, p := range s.posts {
		out = append(out, p)
	}
	writeJSON(w, out)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func main() {
	port := env("PORT", "8090")
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{}))
	slog.SetDefault(logger)

	s := newStub(logger)
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Post("/sites/{siteID}/media/new", s.uploadMedia)
	r.Post("/sites/{siteID}/posts/new", s.createPost)
	r.Post("/sites/{siteID}/media/{mediaID}", s.attachMedia)
	r.Get("/posts", s.listPosts)

	srv := &http.Server{Addr: ":" + port, Handler: r}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	logger.Info("stub api listening", "port", port)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("serve", "error", err)
		os.Exit(1)
	}
}

func env(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
