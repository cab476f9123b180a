package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vendeo/vendeo-backend/api/responses"
	pkgerrors "github.com/vendeo/vendeo-backend/pkg/errors"
	"github.com/vendeo/vendeo-backend/pkg/logger"
	pkgredis "github.com/vendeo/vendeo-backend/pkg/redis"
)

const (
	IdempotencyHeader      = "Idempotency-Key"
	defaultIdempotencyTTL  = 7 * 24 * time.Hour
	reservationTTL         = time.Minute
	maxIdempotencyKeyLen   = 255
	idempotencyScopePrefix = "http"
)

// replayRecord is what Redis holds under an Idempotency-Key. A record with
// Status 0 is a reservation: the first request is still running.
type replayRecord struct {
	RequestHash string `json:"request_hash"`
	Status      int    `json:"status,omitempty"`
	ContentType string `json:"content_type,omitempty"`
	Body        []byte `json:"body,omitempty"`
}

func (r replayRecord) pending() bool { return r.Status == 0 }

// Idempotency makes the wrapped write safe to retry. The first request with a
// given Idempotency-Key reserves the key, runs, and stores its response for
// ttl; later requests with the same key and body get that response replayed.
// Server errors release the key so the client can retry for real. Without a
// store the header is still required but nothing is replayed.
func Idempotency(store pkgredis.KV, ttl time.Duration, logg *logger.Logger) func(http.Handler) http.Handler {
	if ttl <= 0 {
		ttl = defaultIdempotencyTTL
	}
	return func(next http.Handler) http.Handler {
		if store == nil {
			if logg != nil {
				logg.Warn(context.Background(), "idempotency store not configured, responses will not be replayed")
			}
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if _, ok := requireClientKey(w, r, logg); ok {
					next.ServeHTTP(w, r)
				}
			})
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			clientKey, ok := requireClientKey(w, r, logg)
			if !ok {
				return
			}

			body, err := io.ReadAll(r.Body)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request body"))
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			hash := requestHash(body)
			key := store.IdempotencyKey(idempotencyScopePrefix+"|"+r.Method+"|"+r.URL.Path, clientKey)

			reservation, _ := json.Marshal(replayRecord{RequestHash: hash})
			reserved, err := store.SetNX(ctx, key, string(reservation), reservationTTL)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reserve idempotency key"))
				return
			}
			if !reserved {
				replayExisting(w, r, store, key, hash, logg)
				return
			}

			capture := &responseCapture{ResponseWriter: w}
			next.ServeHTTP(capture, r)

			status := capture.statusCode()
			if status >= http.StatusInternalServerError {
				if err := store.Del(ctx, key); err != nil {
					logg.Error(ctx, "release idempotency key", err)
				}
				return
			}
			record, _ := json.Marshal(replayRecord{
				RequestHash: hash,
				Status:      status,
				ContentType: capture.Header().Get("Content-Type"),
				Body:        capture.body.Bytes(),
			})
			if err := store.Set(ctx, key, string(record), ttl); err != nil {
				logg.Error(ctx, "store idempotent response", err)
			}
		})
	}
}

// requireClientKey writes a validation error when the header is missing or
// too long.
func requireClientKey(w http.ResponseWriter, r *http.Request, logg *logger.Logger) (string, bool) {
	key := strings.TrimSpace(r.Header.Get(IdempotencyHeader))
	switch {
	case key == "":
		responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, IdempotencyHeader+" header required"))
		return "", false
	case len(key) > maxIdempotencyKeyLen:
		responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, IdempotencyHeader+" header too long"))
		return "", false
	}
	return key, true
}

func replayExisting(w http.ResponseWriter, r *http.Request, store pkgredis.KV, key, hash string, logg *logger.Logger) {
	ctx := r.Context()
	raw, err := store.Get(ctx, key)
	if errors.Is(err, redis.Nil) {
		// The reservation expired between SETNX and GET.
		responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInFlight, "retry the request"))
		return
	}
	if err != nil {
		responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load idempotency record"))
		return
	}

	var record replayRecord
	if err := json.Unmarshal([]byte(raw), &record); err != nil {
		responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "decode idempotency record"))
		return
	}
	switch {
	case record.RequestHash != hash:
		responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeIdempotency, "idempotency key reused with a different request body"))
	case record.pending():
		responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInFlight, "a request with this idempotency key is still running"))
	default:
		if record.ContentType != "" {
			w.Header().Set("Content-Type", record.ContentType)
		}
		w.Header().Set("Idempotent-Replayed", "true")
		w.WriteHeader(record.Status)
		_, _ = w.Write(record.Body)
	}
}

func requestHash(body []byte) string {
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}

// responseCapture tees the handler's response so it can be stored.
type responseCapture struct {
	http.ResponseWriter
	body   bytes.Buffer
	status int
}

func (c *responseCapture) WriteHeader(code int) {
	if c.status == 0 {
		c.status = code
	}
	c.ResponseWriter.WriteHeader(code)
}

func (c *responseCapture) Write(b []byte) (int, error) {
	if c.status == 0 {
		c.status = http.StatusOK
	}
	c.body.Write(b)
	return c.ResponseWriter.Write(b)
}

func (c *responseCapture) statusCode() int {
	if c.status == 0 {
		return http.StatusOK
	}
	return c.status
}
