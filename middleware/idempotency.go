package middleware

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"sync"

	"github.com/billbatista/acasinha-chores/idempotency"
)

const (
	IdempotencyKeyHeader = "Idempotency-Key"
	ReplayedHeader       = "Idempotent-Replayed"
)

// IdempotencyStore is the subset of idempotency.Store the middleware uses.
type IdempotencyStore interface {
	Get(key string) (*idempotency.Record, error)
	Create(rec idempotency.Record) (*idempotency.Record, bool, error)
}

// Idempotency replays the stored response of a POST whose Idempotency-Key
// was seen before. Reusing a key with a different body is rejected with
// 422. Server errors are not stored, so they can be retried.
func Idempotency(store IdempotencyStore) func(http.Handler) http.Handler {
	var locks keyedMutex

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get(IdempotencyKeyHeader)
			if r.Method != http.MethodPost || header == "" {
				next.ServeHTTP(w, r)
				return
			}

			body, err := io.ReadAll(r.Body)
			if err != nil {
				http.Error(w, "reading body", http.StatusBadRequest)
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			key := r.Method + " " + r.URL.Path + " " + header
			sum := sha256.Sum256(body)
			fingerprint := hex.EncodeToString(sum[:])

			unlock := locks.lock(key)
			defer unlock()

			rec, err := store.Get(key)
			switch {
			case err == nil:
				if rec.Fingerprint != fingerprint {
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusUnprocessableEntity)
					w.Write([]byte(`{"error":"idempotency key reused with a different body","code":"validation"}` + "\n"))
					return
				}
				if rec.ContentType != "" {
					w.Header().Set("Content-Type", rec.ContentType)
				}
				w.Header().Set(ReplayedHeader, "true")
				w.WriteHeader(rec.Status)
				w.Write(rec.Body)
				return
			case !errors.Is(err, idempotency.ErrNotFound):
				slog.Error("failed to read idempotency record", "error", err)
				http.Error(w, "Internal server error", http.StatusInternalServerError)
				return
			}

			rw := &recorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rw, r)

			if rw.status >= http.StatusInternalServerError {
				return
			}
			_, _, err = store.Create(idempotency.Record{
				Key:         key,
				Fingerprint: fingerprint,
				Status:      rw.status,
				ContentType: rw.Header().Get("Content-Type"),
				Body:        rw.body.Bytes(),
			})
			if err != nil {
				slog.Error("failed to store idempotency record", "error", err, "key", header)
			}
		})
	}
}

// recorder passes the response through while keeping a copy.
type recorder struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
	body        bytes.Buffer
}

func (r *recorder) WriteHeader(status int) {
	if !r.wroteHeader {
		r.status = status
		r.wroteHeader = true
	}
	r.ResponseWriter.WriteHeader(status)
}

func (r *recorder) Write(b []byte) (int, error) {
	r.wroteHeader = true
	r.body.Write(b)
	return r.ResponseWriter.Write(b)
}

type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyLock
}

type keyLock struct {
	sync.Mutex
	refs int
}

func (k *keyedMutex) lock(key string) (unlock func()) {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[string]*keyLock)
	}
	l, ok := k.locks[key]
	if !ok {
		l = &keyLock{}
		k.locks[key] = l
	}
	l.refs++
	k.mu.Unlock()

	l.Lock()
	return func() {
		l.Unlock()
		k.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
