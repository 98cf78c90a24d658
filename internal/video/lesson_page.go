package video

import (
	"errors"
	"html/template"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"
	"github.com/starteducation/starteducation/internal/access"
	"github.com/starteducation/starteducation/internal/httputil"
	"github.com/starteducation/starteducation/internal/progress"
	"github.com/starteducation/starteducation/internal/resume"
)

const fileURLExpiry = 4 * time.Hour

var lessonPageTemplate = template.Must(template.New("lesson").Parse(`<!DOCTYPE html>
<html lang="es">
<head>
    <meta charset="utf-8">
    <meta name="viewport" content="width=device-width, initial-scale=1">
    <title>{{.Title}} · {{.CourseTitle}} · StartEducation</title>
    <style nonce="{{.Nonce}}">
        * { margin: 0; padding: 0; box-sizing: border-box; }
        body {
            background: #0f172a;
            color: #f8fafc;
            font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, sans-serif;
            min-height: 100vh;
        }
        .container { max-width: 1040px; margin: 0 auto; padding: 1.5rem 1rem 3rem; }
        .breadcrumb { font-size: 0.875rem; color: #94a3b8; margin-bottom: 1rem; }
        .breadcrumb a { color: #38bdf8; text-decoration: none; }
        .alert { background: #7f1d1d; color: #fee2e2; padding: 0.75rem 1rem; border-radius: 6px; margin-bottom: 1rem; }
        .player { position: relative; width: 100%; aspect-ratio: 16 / 9; background: #000; border-radius: 8px; overflow: hidden; }
        .player iframe, .player video, .player #player { position: absolute; inset: 0; width: 100%; height: 100%; border: 0; }
        h1 { margin-top: 1rem; font-size: 1.5rem; font-weight: 600; }
        .nav { display: flex; justify-content: space-between; margin-top: 1.5rem; gap: 1rem; }
        .nav a { color: #f8fafc; background: #1e293b; padding: 0.6rem 1rem; border-radius: 6px; text-decoration: none; }
        .nav a:hover { background: #334155; }
        .nav .spacer { flex: 1; }
    </style>
</head>
<body>
    <div class="container">
        <p class="breadcrumb"><a href="{{.CourseURL}}" data-nav="back">{{.CourseTitle}}</a></p>
        {{if .ErrorMessage}}<p class="alert">{{.ErrorMessage}}</p>{{end}}
        <div class="player">
            {{if eq .Provider "youtube"}}<div id="player"></div>
            {{else if eq .Provider "embed"}}<iframe id="player" title="{{.Title}}" allow="autoplay; fullscreen; picture-in-picture" allowfullscreen></iframe>
            {{else}}<video id="player" controls preload="metadata" src="{{.FileURL}}"></video>{{end}}
        </div>
        <h1>{{.Title}}</h1>
        <div class="nav">
            {{if .PrevURL}}<a href="{{.PrevURL}}" data-nav="previous">&larr; Anterior</a>{{end}}
            <span class="spacer"></span>
            {{if .NextURL}}<a href="{{.NextURL}}" data-nav="next">Siguiente &rarr;</a>{{end}}
        </div>
    </div>
    <script nonce="{{.Nonce}}">
    (function() {
        var cfg = {
            videoId: {{.VideoID}},
            provider: {{.Provider}},
            progressUrl: {{.ProgressURL}},
            duration: {{.DurationSeconds}},
            youtubeId: {{.YouTubeID}},
            embedUrl: {{.EmbedURL}},
            embedOrigin: {{.EmbedOrigin}}
        };
        var SEEK_THRESHOLD = {{.Protocol.SeekThreshold}};
        var DEBOUNCE_MS = {{.Protocol.DebounceMS}};
        var SEEK_RETRIES_MS = {{.Protocol.SeekRetriesMS}};
        var SDK_POLL_MS = {{.Protocol.SDKPollMS}};
        var MESSAGE_POLL_MS = {{.Protocol.MessagePollMS}};
        var COMPLETION_PERCENT = {{.Protocol.CompletionPercent}};
        var cacheKey = {{.Protocol.CacheKeyPrefix}} + cfg.videoId;
        var duration = cfg.duration;
        var last = null;
        var completed = false;
        var saveTimer = null;
        var backend = null;

        function readCache() {
            try {
                var v = parseInt(window.localStorage.getItem(cacheKey), 10);
                return isNaN(v) ? 0 : v;
            } catch (e) { return 0; }
        }

        function writeCache(s) {
            try { window.localStorage.setItem(cacheKey, String(s)); } catch (e) {}
        }

        function isComplete(pos) {
            return duration > 0 && pos * 100 >= duration * COMPLETION_PERCENT;
        }

        function save(keepalive) {
            if (last === null) return;
            fetch(cfg.progressUrl, {
                method: 'POST',
                credentials: 'same-origin',
                keepalive: keepalive,
                headers: { 'Content-Type': 'application/json' },
                body: JSON.stringify({ seconds: last, completado: completed })
            }).catch(function() {});
        }

        function observe(seconds) {
            if (typeof seconds !== 'number' || !isFinite(seconds) || seconds < 0) return;
            last = Math.floor(seconds);
            if (isComplete(last)) completed = true;
            writeCache(last);
            clearTimeout(saveTimer);
            saveTimer = setTimeout(function() { saveTimer = null; save(false); }, DEBOUNCE_MS);
        }

        function flush() {
            clearTimeout(saveTimer);
            saveTimer = null;
            save(true);
        }

        function loadStart() {
            var cached = readCache();
            return fetch(cfg.progressUrl, { credentials: 'same-origin' })
                .then(function(r) { return r.ok ? r.json() : null; })
                .then(function(data) {
                    if (data && data.completado) completed = true;
                    var server = data && data.success ? data.seconds : 0;
                    return server > 0 ? server : cached;
                })
                .catch(function() { return cached; });
        }

        function youtubeBackend(start) {
            var player = null;
            var ready = false;
            window.onYouTubeIframeAPIReady = function() {
                player = new YT.Player('player', {
                    videoId: cfg.youtubeId,
                    playerVars: { rel: 0 },
                    events: {
                        onReady: function() {
                            ready = true;
                            if (!duration) duration = player.getDuration() || 0;
                            if (start > SEEK_THRESHOLD) player.seekTo(start, true);
                        }
                    }
                });
            };
            var tag = document.createElement('script');
            tag.src = 'https://www.youtube.com/iframe_api';
            tag.nonce = {{.Nonce}};
            document.head.appendChild(tag);
            return {
                interval: SDK_POLL_MS,
                poll: function() { if (ready) observe(player.getCurrentTime()); }
            };
        }

        function fileBackend(start) {
            var el = document.getElementById('player');
            var ready = false;
            el.addEventListener('loadedmetadata', function() {
                ready = true;
                if (!duration && isFinite(el.duration)) duration = el.duration;
                if (start > SEEK_THRESHOLD) el.currentTime = start;
            });
            return {
                interval: SDK_POLL_MS,
                poll: function() { if (ready) observe(el.currentTime); }
            };
        }

        function embedBackend(start) {
            var frame = document.getElementById('player');
            function post(msg) {
                try { frame.contentWindow.postMessage(JSON.stringify(msg), cfg.embedOrigin || '*'); } catch (e) {}
            }
            window.addEventListener('message', function(event) {
                if (cfg.embedOrigin && event.origin !== cfg.embedOrigin) return;
                var msg = event.data;
                if (typeof msg === 'string') {
                    try { msg = JSON.parse(msg); } catch (e) { return; }
                }
                if (!msg || (msg.type !== 'timeupdate' && msg.type !== 'seeked')) return;
                if (typeof msg.duration === 'number' && msg.duration > 0) duration = msg.duration;
                observe(msg.currentTime);
            });
            if (start > SEEK_THRESHOLD) {
                frame.addEventListener('load', function() {
                    SEEK_RETRIES_MS.forEach(function(ms) {
                        setTimeout(function() { post({ type: 'seek', seconds: start }); }, ms);
                    });
                });
            }
            frame.src = start > SEEK_THRESHOLD ? cfg.embedUrl.split('#')[0] + '#t=' + start : cfg.embedUrl;
            return {
                interval: MESSAGE_POLL_MS,
                poll: function() { post({ type: 'getCurrentTime' }); }
            };
        }

        function finalReport() {
            if (backend) backend.poll();
            flush();
        }

        loadStart().then(function(start) {
            if (cfg.provider === 'youtube') backend = youtubeBackend(start);
            else if (cfg.provider === 'embed') backend = embedBackend(start);
            else backend = fileBackend(start);
            setInterval(function() { backend.poll(); }, backend.interval);
        });

        document.querySelectorAll('a[data-nav]').forEach(function(a) {
            a.addEventListener('click', function(e) {
                e.preventDefault();
                finalReport();
                window.location.href = a.href;
            });
        });
        document.addEventListener('visibilitychange', function() {
            if (document.visibilityState === 'hidden') finalReport();
        });
        window.addEventListener('pagehide', finalReport);
    })();
    </script>
</body>
</html>`))

var notFoundPageTemplate = template.Must(template.New("lesson-not-found").Parse(`<!DOCTYPE html>
<html lang="es">
<head>
    <meta charset="utf-8">
    <title>Video no encontrado · StartEducation</title>
    <style nonce="{{.Nonce}}">
        body { background: #0f172a; color: #f8fafc; font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, sans-serif; display: flex; align-items: center; justify-content: center; min-height: 100vh; }
        a { color: #38bdf8; }
    </style>
</head>
<body>
    <div>
        <h1>Video not found</h1>
        <p><a href="/dashboard">Volver al panel</a></p>
    </div>
</body>
</html>`))

// playerProtocol carries the resume protocol constants into the page script.
type playerProtocol struct {
	SeekThreshold     int
	DebounceMS        int64
	SeekRetriesMS     []int64
	SDKPollMS         int64
	MessagePollMS     int64
	CompletionPercent int
	CacheKeyPrefix    string
}

func newPlayerProtocol() playerProtocol {
	retries := make([]int64, 0, len(resume.SeekRetries))
	for _, d := range resume.SeekRetries {
		retries = append(retries, d.Milliseconds())
	}
	return playerProtocol{
		SeekThreshold:     resume.SeekThresholdSeconds,
		DebounceMS:        resume.SaveDebounce.Milliseconds(),
		SeekRetriesMS:     retries,
		SDKPollMS:         resume.SDKPollInterval.Milliseconds(),
		MessagePollMS:     resume.MessagePollInterval.Milliseconds(),
		CompletionPercent: progress.CompletionPercent,
		CacheKeyPrefix:    resume.CacheKeyPrefix,
	}
}

var lessonProtocol = newPlayerProtocol()

type lessonPageData struct {
	Protocol        playerProtocol
	Nonce           string
	VideoID         string
	Title           string
	CourseTitle     string
	CourseURL       string
	Provider        string
	YouTubeID       string
	EmbedURL        string
	EmbedOrigin     string
	FileURL         string
	DurationSeconds float64
	PrevURL         string
	NextURL         string
	ProgressURL     string
	ErrorMessage    string
}

type notFoundPageData struct {
	Nonce string
}

type lesson struct {
	id              string
	title           string
	provider        string
	sourceURL       *string
	fileKey         *string
	durationSeconds *int
	courseID        string
	courseTitle     string
	prevID          *string
	nextID          *string
}

// LessonPage handles GET /video/{videoId}. The access gate runs first and
// supplies the course the video belongs to.
func (h *Handler) LessonPage(w http.ResponseWriter, r *http.Request) {
	videoID := chi.URLParam(r, "videoId")
	nonce := httputil.NonceFromContext(r.Context())

	decision, ok := access.DecisionFromContext(r.Context())
	if !ok {
		h.renderNotFound(w, nonce)
		return
	}

	var l lesson
	err := h.db.QueryRow(r.Context(),
		`SELECT id, title, provider, source_url, file_key, duration_seconds,
		        course_id, course_title, prev_id, next_id
		 FROM (
		     SELECT v.id, v.title, v.provider, v.source_url, v.file_key, v.duration_seconds,
		            c.id AS course_id, c.title AS course_title,
		            LAG(v.id) OVER lesson_order AS prev_id,
		            LEAD(v.id) OVER lesson_order AS next_id
		     FROM videos v
		     JOIN course_modules m ON m.id = v.module_id
		     JOIN courses c ON c.id = m.course_id
		     WHERE m.course_id = $2
		     WINDOW lesson_order AS (ORDER BY m.position, v.position, v.id)
		 ) lessons
		 WHERE id = $1`,
		videoID, decision.CourseID,
	).Scan(&l.id, &l.title, &l.provider, &l.sourceURL, &l.fileKey, &l.durationSeconds,
		&l.courseID, &l.courseTitle, &l.prevID, &l.nextID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			h.renderNotFound(w, nonce)
			return
		}
		slog.Error("video: failed to load lesson", "video_id", videoID, "error", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	data := lessonPageData{
		Protocol:     lessonProtocol,
		Nonce:        nonce,
		VideoID:      l.id,
		Title:        l.title,
		CourseTitle:  l.courseTitle,
		CourseURL:    "/course/" + url.PathEscape(l.courseID),
		Provider:     l.provider,
		ProgressURL:  "/video/progress/" + url.PathEscape(l.id),
		ErrorMessage: r.URL.Query().Get("error"),
	}
	if l.durationSeconds != nil {
		data.DurationSeconds = float64(*l.durationSeconds)
	}
	if l.prevID != nil {
		data.PrevURL = "/video/" + url.PathEscape(*l.prevID)
	}
	if l.nextID != nil {
		data.NextURL = "/video/" + url.PathEscape(*l.nextID)
	}

	switch l.provider {
	case ProviderYouTube:
		if l.sourceURL != nil {
			data.YouTubeID = YouTubeID(*l.sourceURL)
		}
		if data.YouTubeID == "" {
			slog.Error("video: unrecognised youtube source", "video_id", videoID)
			h.renderNotFound(w, nonce)
			return
		}
	case ProviderEmbed:
		if l.sourceURL == nil || FrameOrigin(*l.sourceURL) == "" {
			slog.Error("video: embed video without a usable source url", "video_id", videoID)
			h.renderNotFound(w, nonce)
			return
		}
		data.EmbedURL = *l.sourceURL
		data.EmbedOrigin = FrameOrigin(*l.sourceURL)
	case ProviderFile:
		if l.fileKey == nil || h.storage == nil {
			h.renderNotFound(w, nonce)
			return
		}
		fileURL, err := h.storage.GenerateDownloadURL(r.Context(), *l.fileKey, fileURLExpiry)
		if err != nil {
			slog.Error("video: failed to presign file url", "video_id", videoID, "error", err)
			http.Error(w, "internal server error", http.StatusInternalServerError)
			return
		}
		data.FileURL = fileURL
	default:
		h.renderNotFound(w, nonce)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	if err := lessonPageTemplate.Execute(w, data); err != nil {
		slog.Error("video: failed to render lesson page", "video_id", videoID, "error", err)
	}
}

func (h *Handler) renderNotFound(w http.ResponseWriter, nonce string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusNotFound)
	if err := notFoundPageTemplate.Execute(w, notFoundPageData{Nonce: nonce}); err != nil {
		slog.Error("video: failed to render not found page", "error", err)
	}
}
