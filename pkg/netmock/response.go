package netmock

import (
	"net/http"
	"strings"

	"github.com/bytedance/sonic"

	"github.com/ashparshp/hairone/pkg/browser"
)

// Request is an intercepted outbound request as seen by a responder.
type Request struct {
	Method       string
	URL          string
	Headers      map[string]string
	Body         []byte
	ResourceType string
	// Params holds values captured by :name segments of the matched pattern.
	Params map[string]string
}

// Param returns a captured path parameter.
func (r Request) Param(name string) string {
	return r.Params[name]
}

// Header looks up a request header case-insensitively.
func (r Request) Header(name string) string {
	for k, v := range r.Headers {
		if strings.EqualFold(k, name) {
			return v
		}
	}
	return ""
}

// Response is a canned HTTP response.
type Response struct {
	Status      int
	ContentType string
	Headers     map[string]string
	Body        []byte
}

// Responder produces the response for a matched request.
type Responder interface {
	Respond(Request) (Response, error)
}

// ResponderFunc adapts a function to Responder.
type ResponderFunc func(Request) (Response, error)

// Respond calls f.
func (f ResponderFunc) Respond(req Request) (Response, error) {
	return f(req)
}

// Respond makes a static Response usable as its own Responder.
func (r Response) Respond(Request) (Response, error) {
	return r, nil
}

type jsonResponder struct {
	status int
	value  any
}

func (j jsonResponder) Respond(Request) (Response, error) {
	body, err := sonic.Marshal(j.value)
	if err != nil {
		return Response{}, err
	}
	return Response{Status: j.status, ContentType: "application/json", Body: body}, nil
}

// JSON responds 200 with v serialized as JSON.
func JSON(v any) Responder {
	return jsonResponder{status: http.StatusOK, value: v}
}

// JSONStatus responds with status and v serialized as JSON.
func JSONStatus(status int, v any) Responder {
	return jsonResponder{status: status, value: v}
}

// Text responds with a plain-text body.
func Text(status int, body string) Response {
	return Response{Status: status, ContentType: "text/plain; charset=utf-8", Body: []byte(body)}
}

// Static responds with raw bytes.
func Static(status int, contentType string, body []byte) Response {
	return Response{Status: status, ContentType: contentType, Body: body}
}

func errorResponse(err error) Response {
	body, _ := sonic.Marshal(map[string]string{"error": "mock responder failed", "detail": err.Error()})
	return Response{Status: http.StatusInternalServerError, ContentType: "application/json", Body: body}
}

func (r Response) withDefaults() Response {
	if r.Status == 0 {
		r.Status = http.StatusOK
	}
	if r.ContentType == "" && len(r.Body) > 0 {
		r.ContentType = http.DetectContentType(r.Body)
	}
	return r
}

// fulfillment converts r into the engine shape, adding CORS headers so the
// application can read mocked responses from a different origin.
func (r Response) fulfillment(req Request) *browser.Fulfillment {
	headers := make(map[string]string, len(r.Headers)+5)
	origin := req.Header("Origin")
	if origin == "" {
		headers["Access-Control-Allow-Origin"] = "*"
	} else {
		headers["Access-Control-Allow-Origin"] = origin
		headers["Access-Control-Allow-Credentials"] = "true"
		headers["Vary"] = "Origin"
	}
	headers["Access-Control-Allow-Headers"] = "*"
	headers["Access-Control-Allow-Methods"] = "GET, POST, PUT, PATCH, DELETE, OPTIONS"
	if r.ContentType != "" {
		headers["Content-Type"] = r.ContentType
	}
	for k, v := range r.Headers {
		headers[k] = v
	}
	return &browser.Fulfillment{Status: r.Status, Headers: headers, Body: r.Body}
}
