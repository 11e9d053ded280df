package api

import (
	"errors"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

// HLS media types.
const (
	playlistContentType = "application/vnd.apple.mpegurl"
	segmentContentType  = "video/mp2t"
)

func (s *Server) registerHLSRoutes() {
	s.mux.Handle("GET /hls/{stream_id}/{filename}", s.plain(s.handleHLSFile))
	s.mux.Handle("GET /hls/{filename}", s.plain(s.handleLegacyHLSFile))
}

// handleHLSFile serves a playlist or segment from one stream directory.
func (s *Server) handleHLSFile(w http.ResponseWriter, r *http.Request) {
	streamID := r.PathValue("stream_id")
	filename := r.PathValue("filename")

	if !safeName(filename) {
		s.logger.Warn("Invalid filename rejected", "filename", filename)
		writeProblem(w, r, http.StatusBadRequest, "Invalid filename")
		return
	}
	if !safeName(streamID) {
		s.logger.Warn("Invalid stream_id rejected", "stream_id", streamID)
		writeProblem(w, r, http.StatusBadRequest, "Invalid stream_id")
		return
	}

	path := filepath.Join(s.registry.HLSDir(), streamID, filename)
	if !fileExists(path) {
		s.logger.Debug("HLS file not found", "stream_id", streamID, "filename", filename)
		writeProblem(w, r, http.StatusNotFound, "File not found")
		return
	}
	s.serveHLS(w, r, path, filename)
}

// handleLegacyHLSFile looks filename up in every stream directory and serves
// the first match.
func (s *Server) handleLegacyHLSFile(w http.ResponseWriter, r *http.Request) {
	filename := r.PathValue("filename")
	if !safeName(filename) {
		writeProblem(w, r, http.StatusBadRequest, "Invalid filename")
		return
	}

	for _, info := range s.registry.List() {
		if info.HLSPath == "" {
			continue
		}
		path := filepath.Join(info.HLSPath, filename)
		if fileExists(path) {
			s.serveHLS(w, r, path, filename)
			return
		}
	}
	writeProblem(w, r, http.StatusNotFound, "File not found")
}

func (s *Server) serveHLS(w http.ResponseWriter, r *http.Request, path, filename string) {
	switch {
	case strings.HasSuffix(filename, ".m3u8"):
		// the worker rewrites the playlist in place, so send one consistent read
		data, err := os.ReadFile(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				writeProblem(w, r, http.StatusNotFound, "File not found")
				return
			}
			s.logger.Error("Failed to read playlist", "path", path, "error", err)
			writeProblem(w, r, http.StatusInternalServerError, "Failed to read playlist")
			return
		}
		w.Header().Set("Content-Type", playlistContentType)
		w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
		w.WriteHeader(http.StatusOK)
		if r.Method != http.MethodHead {
			_, _ = w.Write(data)
		}
	case strings.HasSuffix(filename, ".ts"):
		w.Header().Set("Content-Type", segmentContentType)
		http.ServeFile(w, r, path)
	default:
		writeProblem(w, r, http.StatusBadRequest, "Invalid file type")
	}
}

// safeName reports whether name is a single path element.
func safeName(name string) bool {
	return name != "" &&
		!strings.Contains(name, "..") &&
		!strings.ContainsAny(name, `/\`) &&
		!strings.ContainsRune(name, 0)
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
