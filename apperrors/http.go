package apperrors

import "net/http"

// Response is the JSON body written for every failed request.
type Response struct {
	Kind    Kind              `json:"kind"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

var statusByKind = map[Kind]int{
	KindValidation:   http.StatusBadRequest,
	KindNotFound:     http.StatusNotFound,
	KindForbidden:    http.StatusForbidden,
	KindUnauthorized: http.StatusUnauthorized,
	KindConflict:     http.StatusConflict,
	KindStaleWrite:   http.StatusConflict,
	KindUnavailable:  http.StatusServiceUnavailable,
	KindInternal:     http.StatusInternalServerError,
}

func HTTPStatus(err error) int {
	if status, ok := statusByKind[KindOf(err)]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// ResponseOf builds the response body for err. Internal errors never leak
// their cause.
func ResponseOf(err error) Response {
	kind := KindOf(err)
	if kind == KindInternal {
		return Response{Kind: kind, Message: "internal server error"}
	}
	return Response{Kind: kind, Message: MessageOf(err), Fields: FieldsOf(err)}
}
