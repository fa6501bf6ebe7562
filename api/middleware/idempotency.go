package middleware

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/markit/markit-server/api/responses"
	pkgerrors "github.com/markit/markit-server/pkg/errors"
	"github.com/markit/markit-server/pkg/logger"
	pkgredis "github.com/markit/markit-server/pkg/redis"
)

const (
	DefaultIdempotencyTTL = 24 * time.Hour
	idempotencyHeader     = "Idempotency-Key"
)

// replay is the first response served for an idempotency key.
type replay struct {
	Status      int    `json:"status"`
	ContentType string `json:"content_type,omitempty"`
	Body        []byte `json:"body,omitempty"`
	Fingerprint string `json:"fingerprint"`
}

func (p replay) writeTo(w http.ResponseWriter) {
	if p.ContentType != "" {
		w.Header().Set("Content-Type", p.ContentType)
	}
	w.WriteHeader(p.Status)
	_, _ = w.Write(p.Body)
}

type replayCache struct {
	store pkgredis.IdempotencyStore
	ttl   time.Duration
	logg  *logger.Logger
}

// Idempotency is mounted on individual write routes. A request carrying an
// Idempotency-Key gets the first stored response for that key, scoped to the
// caller and path. Requests without the header run normally. Responses with a
// 5xx status are never cached.
func Idempotency(store pkgredis.IdempotencyStore, ttl time.Duration, logg *logger.Logger) func(http.Handler) http.Handler {
	if ttl <= 0 {
		ttl = DefaultIdempotencyTTL
	}
	cache := &replayCache{store: store, ttl: ttl, logg: logg}
	return func(next http.Handler) http.Handler {
		if store == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			clientKey := strings.TrimSpace(r.Header.Get(idempotencyHeader))
			if clientKey == "" {
				next.ServeHTTP(w, r)
				return
			}
			cache.serve(w, r, clientKey, next)
		})
	}
}

func (c *replayCache) serve(w http.ResponseWriter, r *http.Request, clientKey string, next http.Handler) {
	ctx := r.Context()
	body, err := io.ReadAll(r.Body)
	if err != nil {
		responses.WriteError(ctx, c.logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "unreadable request body"))
		return
	}
	r.Body = io.NopCloser(bytes.NewReader(body))

	key := c.store.IdempotencyKey(callerScope(r), clientKey)
	fingerprint := fingerprintOf(body)

	prior, found, err := c.lookup(r, key)
	if err != nil {
		responses.WriteError(ctx, c.logg, w, err)
		return
	}
	if found {
		if prior.Fingerprint != fingerprint {
			responses.WriteError(ctx, c.logg, w, pkgerrors.New(pkgerrors.CodeIdempotency, "idempotency key reused with different request body"))
			return
		}
		prior.writeTo(w)
		return
	}

	tee := &teeWriter{ResponseWriter: w}
	next.ServeHTTP(tee, r)

	status := tee.statusCode()
	if status >= http.StatusInternalServerError {
		return
	}
	c.save(r, key, replay{
		Status:      status,
		ContentType: tee.Header().Get("Content-Type"),
		Body:        tee.buf.Bytes(),
		Fingerprint: fingerprint,
	})
}

func (c *replayCache) lookup(r *http.Request, key string) (replay, bool, error) {
	raw, err := c.store.Get(r.Context(), key)
	switch {
	case errors.Is(err, redis.Nil):
		return replay{}, false, nil
	case err != nil:
		return replay{}, false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check idempotency")
	case raw == "":
		return replay{}, false, nil
	}
	var prior replay
	if err := json.Unmarshal([]byte(raw), &prior); err != nil {
		return replay{}, false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode idempotency record")
	}
	return prior, true, nil
}

func (c *replayCache) save(r *http.Request, key string, p replay) {
	encoded, err := json.Marshal(p)
	if err == nil {
		_, err = c.store.SetNX(r.Context(), key, string(encoded), c.ttl)
	}
	if err != nil && c.logg != nil {
		c.logg.Error(r.Context(), "store idempotent response", err)
	}
}

func callerScope(r *http.Request) string {
	subject, _ := SubjectIDFromContext(r.Context())
	return string(RoleFromContext(r.Context())) + "|" + subject.String() + "|" + r.Method + " " + r.URL.Path
}

func fingerprintOf(body []byte) string {
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}

// teeWriter copies the body into buf while writing it through.
type teeWriter struct {
	http.ResponseWriter
	buf    bytes.Buffer
	status int
}

func (t *teeWriter) WriteHeader(code int) {
	if t.status == 0 {
		t.status = code
	}
	t.ResponseWriter.WriteHeader(code)
}

func (t *teeWriter) Write(b []byte) (int, error) {
	if t.status == 0 {
		t.status = http.StatusOK
	}
	t.buf.Write(b)
	return t.ResponseWriter.Write(b)
}

func (t *teeWriter) statusCode() int {
	if t.status == 0 {
		return http.StatusOK
	}
	return t.status
}
