package translator

import (
	"sort"
	"strings"
)

// WebPAResponse is the webpa-egress envelope: {statusCode, parameters[],
// message}.
type WebPAResponse struct {
	StatusCode int             `json:"statusCode"`
	Parameters []WebPAParameter `json:"parameters,omitempty"`
	Message    string          `json:"message"`
}

// WebPAParameter is one entry of a webpa response's parameters array. Value
// holds a plain string in flat mode and a []WebPAChild in grouped mode, so
// it is typed as interface{} at the JSON boundary.
type WebPAParameter struct {
	Name           string      `json:"name"`
	Value          interface{} `json:"value"`
	DataType       int         `json:"dataType"`
	ParameterCount int         `json:"parameterCount,omitempty"`
}

// WebPAChild is one element of a grouped-mode parameters[0].value array.
type WebPAChild struct {
	Name     string `json:"name"`
	Value    string `json:"value"`
	DataType int    `json:"dataType"`
}

func statusMessage(status int) string {
	if status == 200 || status == 207 {
		return "Success"
	}
	return "Failure"
}

// Shape converts an internal-dialect Response produced for a webpa-dialect
// request into the webpa-egress envelope, per req's recorded wildcard
// flag. Pass-through (non-webpa) responses should not call Shape; they are
// returned to the uplink unchanged.
func Shape(req *Request, resp *Response) WebPAResponse {
	if req.webpaWild {
		return shapeGrouped(req, resp)
	}
	return shapeFlat(req, resp)
}

// shapeFlat renders a non-wildcard webpa response: one parameters[] entry
// per requested name, in request order.
func shapeFlat(req *Request, resp *Response) WebPAResponse {
	out := WebPAResponse{StatusCode: resp.Status, Message: statusMessage(resp.Status)}
	if resp.Results == nil {
		return out
	}
	for _, name := range req.webpaNames {
		rv, ok := resp.Results[name]
		if !ok || rv == nil {
			out.Parameters = append(out.Parameters, WebPAParameter{Name: name, Value: "", DataType: int(10)})
			continue
		}
		out.Parameters = append(out.Parameters, WebPAParameter{Name: name, Value: rv.V, DataType: int(rv.T)})
	}
	return out
}

// shapeGrouped renders a wildcard webpa response: a single parameters[0]
// entry whose name is the comma-joined wildcard prefixes and whose value
// is the array of expanded children.
func shapeGrouped(req *Request, resp *Response) WebPAResponse {
	out := WebPAResponse{StatusCode: resp.Status, Message: statusMessage(resp.Status)}
	if resp.Results == nil {
		return out
	}

	names := make([]string, 0, len(resp.Results))
	for name := range resp.Results {
		names = append(names, name)
	}
	sort.Strings(names)

	var children []WebPAChild
	for _, prefix := range req.webpaNames {
		for _, name := range names {
			rv := resp.Results[name]
			if rv == nil {
				continue
			}
			if name == prefix || strings.HasPrefix(name, strings.TrimRight(prefix, ".*")) {
				children = append(children, WebPAChild{Name: name, Value: rv.V, DataType: int(rv.T)})
			}
		}
	}

	out.Parameters = []WebPAParameter{{
		Name:           strings.Join(req.webpaNames, ","),
		DataType:       11,
		ParameterCount: len(children),
		Value:          children,
	}}
	return out
}
