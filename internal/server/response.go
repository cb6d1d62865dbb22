package server

import (
	"encoding/json"
	"net/http"
)

// Envelope codes.
const (
	codeOK           = 0
	codeBadRequest   = 40001
	codeUnauthorized = 40101
	codeForbidden    = 40301
	codeNotFound     = 40401
	codeConflict     = 40901
	codeInternal     = 50001
)

type envelope struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data"`
}

type pageData struct {
	Items    any `json:"items"`
	Page     int `json:"page"`
	PageSize int `json:"page_size"`
	Total    int `json:"total"`
}

func writeJSON(w http.ResponseWriter, status int, body envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// sendOK writes a success envelope. A nil data is sent as {}.
func sendOK(w http.ResponseWriter, data any) {
	if data == nil {
		data = struct{}{}
	}
	writeJSON(w, http.StatusOK, envelope{Code: codeOK, Message: "ok", Data: data})
}

func sendPage(w http.ResponseWriter, items any, page, pageSize, total int) {
	sendOK(w, pageData{Items: items, Page: page, PageSize: pageSize, Total: total})
}

// sendError writes a failure envelope with the given HTTP status.
func sendError(w http.ResponseWriter, status, code int, message string) {
	writeJSON(w, status, envelope{Code: code, Message: message, Data: struct{}{}})
}

// codeForStatus maps an HTTP status to its envelope code.
func codeForStatus(status int) int {
	switch status {
	case http.StatusUnauthorized:
		return codeUnauthorized
	case http.StatusForbidden:
		return codeForbidden
	case http.StatusNotFound:
		return codeNotFound
	case http.StatusConflict:
		return codeConflict
	case http.StatusInternalServerError:
		return codeInternal
	default:
		return codeBadRequest
	}
}

func sendStatus(w http.ResponseWriter, status int, message string) {
	sendError(w, status, codeForStatus(status), message)
}

func sendValidation(w http.ResponseWriter, message string) {
	sendError(w, http.StatusUnprocessableEntity, codeBadRequest, message)
}
