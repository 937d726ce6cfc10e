// Package jsonutil writes and reads the JSON bodies the API handlers
// exchange. Error bodies are not written here; apierr owns the error
// envelope so every failure carries a taxonomy code.
package jsonutil

import (
	"encoding/json"
	"errors"
	"net/http"
)

// maxBodySize caps request bodies. Every payload in this API is a small
// object; anything larger is a mistake or abuse.
const maxBodySize = 1 << 20

// JSON writes data as a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

// OK writes a 200 OK JSON response.
func OK(w http.ResponseWriter, data any) {
	JSON(w, http.StatusOK, data)
}

// Created writes a 201 Created JSON response.
func Created(w http.ResponseWriter, data any) {
	JSON(w, http.StatusCreated, data)
}

// NoContent writes a 204 No Content response (no body).
func NoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

// Decode reads one JSON value from the request body into v. A missing
// body counts as a decode failure so handlers can treat "no payload"
// and "bad payload" the same way.
func Decode(r *http.Request, v any) error {
	if r.Body == nil {
		return errors.New("empty request body")
	}
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxBodySize))
	return dec.Decode(v)
}
