package httputil

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"swiftx/internal/store"
)

const maxBodyBytes = 1 << 20

var ErrEmptyBody = errors.New("request body is empty")

// Envelope is the response shape shared by every API endpoint: {success, message?, ...data}.
type Envelope map[string]any

func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func ReadJSON(r *http.Request, dst any) error {
	if r.Body == nil {
		return ErrEmptyBody
	}
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return ErrEmptyBody
		}
		return err
	}
	return nil
}

// Success writes 200 {success:true} merged with data.
func Success(w http.ResponseWriter, data Envelope) {
	out := Envelope{"success": true}
	for k, v := range data {
		out[k] = v
	}
	WriteJSON(w, http.StatusOK, out)
}

// Fail writes {success:false, message}. Validation failures use 200.
func Fail(w http.ResponseWriter, status int, message string) {
	out := Envelope{"success": false}
	if message != "" {
		out["message"] = message
	}
	WriteJSON(w, status, out)
}

func BadJSON(w http.ResponseWriter) {
	Fail(w, http.StatusBadRequest, "Invalid request body")
}

// Page reads limit/offset query parameters; malformed values fall back to defaults.
func Page(r *http.Request) store.Page {
	q := r.URL.Query()
	return store.Page{
		Limit:  queryInt(q.Get("limit")),
		Offset: queryInt(q.Get("offset")),
	}.Normalize()
}

func queryInt(raw string) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0
	}
	return n
}
