// Package web serves the read-only side of the bot: rendered daily
// transcripts with day-offset navigation, full-text search, and a status
// page. It only ever reads files the sessions write; live state is never
// touched.
package web

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"time"

	htmlfmt "github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/alecthomas/chroma/v2/styles"
	"github.com/gorilla/mux"

	"kitbot/chatlog"
	"kitbot/domain"
	"kitbot/search"
)

//go:embed templates/*.html
var templatesFS embed.FS

var templates = template.Must(template.ParseFS(templatesFS, "templates/*.html"))

// Unknown style names fall back to chroma's default style rather than
// failing the request.
var defaultStyle = styles.Fallback

const searchLimit = 50

// Room is one browsable room: where its transcript lives and who may
// read it.
type Room struct {
	Identity domain.RoomIdentity
	LogDir   string
	Auth     *Credentials
}

// StatsProvider supplies the dynamic values of the status page.
type StatsProvider func() map[string]any

type Server struct {
	log   *slog.Logger
	rooms map[string]Room
	index *search.Index
	stats StatsProvider
	now   func() time.Time
}

// NewServer builds the browser over the given rooms. index may be nil
// (search disabled); stats may be nil (status page shows only the rooms).
func NewServer(log *slog.Logger, rooms []Room, index *search.Index, stats StatsProvider) *Server {
	byName := make(map[string]Room, len(rooms))
	for _, room := range rooms {
		byName[room.Identity.Room] = room
	}
	return &Server{log: log, rooms: byName, index: index, stats: stats, now: time.Now}
}

// Router wires the public routes:
//
//	GET /status
//	GET /{room}/search?q=...
//	GET /{room}[/{offset}[/{style}]]
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)
	r.HandleFunc("/{room}/search", s.perRoom(s.handleSearch)).Methods(http.MethodGet)
	r.HandleFunc("/{room}", s.perRoom(s.handleLog)).Methods(http.MethodGet)
	r.HandleFunc("/{room}/{offset:[0-9]+}", s.perRoom(s.handleLog)).Methods(http.MethodGet)
	r.HandleFunc("/{room}/{offset:[0-9]+}/{style}", s.perRoom(s.handleLog)).Methods(http.MethodGet)
	r.NotFoundHandler = http.HandlerFunc(s.notFound)
	return r
}

type roomHandler func(w http.ResponseWriter, r *http.Request, room Room)

// perRoom resolves the room and applies its auth gate before the handler
// runs. Unknown rooms get the same page as missing days: nothing here.
func (s *Server) perRoom(next roomHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		room, ok := s.rooms[mux.Vars(r)["room"]]
		if !ok {
			s.notFound(w, r)
			return
		}
		s.requireAuth(room.Auth, func(w http.ResponseWriter, r *http.Request) {
			next(w, r, room)
		})(w, r)
	}
}

func (s *Server) handleLog(w http.ResponseWriter, r *http.Request, room Room) {
	vars := mux.Vars(r)

	offset := 0
	if raw, ok := vars["offset"]; ok {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			s.notFound(w, r)
			return
		}
		offset = parsed
	}

	styleName := vars["style"]
	style, known := styles.Registry[styleName]
	if !known {
		style = defaultStyle
		styleName = defaultStyle.Name
	}

	path := chatlog.FileFor(room.LogDir, room.Identity.LogBase(), offset, s.now())
	content, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			s.notFound(w, r)
			return
		}
		s.log.Error("Transcript read failed", "path", path, "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	iterator, err := ircLexer.Tokenise(nil, string(content))
	if err != nil {
		s.log.Error("Transcript tokenize failed", "path", path, "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	var rendered bytes.Buffer
	if err := htmlfmt.New(htmlfmt.WithLineNumbers(false)).Format(&rendered, style, iterator); err != nil {
		s.log.Error("Transcript render failed", "path", path, "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	data := logPage{
		Room:    room.Identity.Room,
		Offset:  offset,
		Style:   styleName,
		Content: template.HTML(rendered.String()),
		PrevURL: fmt.Sprintf("/%s/%d/%s", room.Identity.Room, offset+1, styleName),
	}
	// There is no future log.
	if offset > 0 {
		data.NextURL = fmt.Sprintf("/%s/%d/%s", room.Identity.Room, offset-1, styleName)
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := templates.ExecuteTemplate(w, "browse.html", data); err != nil {
		s.log.Error("Transcript page failed", "error", err)
	}
}

type logPage struct {
	Room    string
	Offset  int
	Style   string
	Content template.HTML
	PrevURL string
	NextURL string
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request, room Room) {
	if s.index == nil {
		s.notFound(w, r)
		return
	}
	query := r.URL.Query().Get("q")

	var hits []search.Hit
	if query != "" {
		var err error
		hits, err = s.index.Search(r.Context(), room.Identity, query, searchLimit)
		if err != nil {
			s.log.Error("Search failed", "room", room.Identity.Key(), "query", query, "error", err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	err := templates.ExecuteTemplate(w, "search.html", searchPage{
		Room:  room.Identity.Room,
		Query: query,
		Hits:  hits,
	})
	if err != nil {
		s.log.Error("Search page failed", "error", err)
	}
}

type searchPage struct {
	Room  string
	Query string
	Hits  []search.Hit
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	stats := map[string]any{}
	if s.stats != nil {
		stats = s.stats()
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := templates.ExecuteTemplate(w, "status.html", stats); err != nil {
		s.log.Error("Status page failed", "error", err)
	}
}

// notFound serves the bot's terse page for anything that does not
// resolve to a transcript.
func (s *Server) notFound(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusNotFound)
	_, _ = w.Write([]byte("<html><body>Go away.</body></html>"))
}
