package dispatch

import (
	"net/http"
	"net/url"

	"github.com/abshkbh/agentctl/pkg/action"
	"github.com/abshkbh/agentctl/pkg/envelope"
	"github.com/abshkbh/agentctl/pkg/token"
	"github.com/abshkbh/agentctl/pkg/transport"
)

const authHeader = "X-Auth-Token"

// Convention captures how one agent endpoint expects requests and shapes
// responses. The dispatcher stays the same for both endpoints.
type Convention struct {
	Name      string
	Namespace token.Namespace
	Build     func(endpoint, tok string, a action.Action, params map[string]string) transport.Request
	Decode    func(body []byte, limit int) (envelope.Envelope, error)
}

// FileAgent posts form bodies with the token in a header and answers with a
// boolean success flag.
var FileAgent = Convention{
	Name:      "file-agent",
	Namespace: token.Files,
	Build: func(endpoint, tok string, a action.Action, params map[string]string) transport.Request {
		form := url.Values{"action": {string(a)}}
		for k, v := range params {
			form.Set(k, v)
		}
		return transport.Request{
			Method: http.MethodPost,
			URL:    endpoint,
			Form:   form,
			Header: http.Header{authHeader: {tok}},
		}
	},
	Decode: envelope.DecodeSuccessFlag,
}

// DebugAgent sends token and action in the query string. Requests without
// parameters are plain GETs; the rest are form POSTs. Responses carry a status
// string and a nested data object.
var DebugAgent = Convention{
	Name:      "debug-agent",
	Namespace: token.Debug,
	Build: func(endpoint, tok string, a action.Action, params map[string]string) transport.Request {
		req := transport.Request{
			Method: http.MethodGet,
			URL:    endpoint,
			Query:  url.Values{"token": {tok}, "action": {string(a)}},
		}
		if len(params) > 0 {
			req.Method = http.MethodPost
			req.Form = url.Values{}
			for k, v := range params {
				req.Form.Set(k, v)
			}
		}
		return req
	},
	Decode: envelope.DecodeStatusField,
}
