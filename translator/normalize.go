package translator

import (
	"encoding/json"
	"strings"

	"github.com/c360/webpa-gateway/errors"
)

// wireEnvelope covers the union of internal-dialect and webpa-dialect
// request fields. Decoding into one struct lets dialect detection look at
// whichever discriminator is present without a second parse pass.
type wireEnvelope struct {
	ID      *string `json:"id"`
	Op      *string `json:"op"`
	Command *string `json:"command"`

	// internal-dialect fields
	Params     []json.RawMessage `json:"params"`
	Param      string            `json:"param"`
	Value      string            `json:"value"`
	Attributes *WireAttributes   `json:"attributes"`
	TableName  string            `json:"tableName"`
	RowData    []WireRowParam    `json:"rowData"`
	RowName    string            `json:"rowName"`
	TableData  [][]WireRowParam  `json:"tableData"`
	Event      string            `json:"event"`
	OldValue   string            `json:"oldValue"`
	NewValue   string            `json:"newValue"`
	DataType   int               `json:"dataType"`

	// webpa-dialect fields. Row is shared between ADD_ROW (an array of
	// WireRowParam) and DELETE_ROW (a bare row-path string), so it stays
	// unparsed here and each command decodes it into the shape it expects.
	Names      []json.RawMessage `json:"names"`
	Parameters []wireParameter   `json:"parameters"`
	Table      string            `json:"table"`
	Row        json.RawMessage   `json:"row"`
	Rows       [][]WireRowParam  `json:"rows"`
}

type wireParameter struct {
	Name       string          `json:"name"`
	Value      string          `json:"value"`
	DataType   int             `json:"dataType"`
	Attributes *WireAttributes `json:"attributes"`
}

// Normalize decodes raw, detects its dialect, and returns the internal
// Request form. fallbackID is used as the response id when the payload
// carries none (the uplink transaction id, per the spec).
func Normalize(raw []byte, fallbackID string) (*Request, error) {
	var env wireEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, errors.WithKind(errors.KindInvalidRequest, err, "translator", "Normalize")
	}

	id := fallbackID
	if env.ID != nil {
		id = *env.ID
	}

	if env.Op != nil {
		op, ok := validOps[*env.Op]
		if !ok {
			return nil, errors.WithKind(errors.KindInvalidRequest, errors.ErrBadRequest, "translator", "Normalize")
		}
		return normalizeInternal(&env, id, op)
	}

	if env.Command != nil {
		return normalizeWebPA(&env, id)
	}

	return nil, errors.WithKind(errors.KindInvalidRequest, errors.ErrBadRequest, "translator", "Normalize")
}

func normalizeInternal(env *wireEnvelope, id string, op Op) (*Request, error) {
	req := &Request{ID: id, Op: op}

	switch op {
	case OpGet:
		req.Params = decodeParams(env.Params)
	case OpSet:
		if env.Param == "" {
			return nil, errors.WithKind(errors.KindInvalidRequest, errors.ErrBadRequest, "translator", "normalize_set")
		}
		req.Param, req.Value = env.Param, env.Value
	case OpGetAttributes:
		if env.Param == "" {
			return nil, errors.WithKind(errors.KindInvalidRequest, errors.ErrBadRequest, "translator", "normalize_get_attributes")
		}
		req.Param = env.Param
	case OpSetAttributes:
		if env.Param == "" || env.Attributes == nil {
			return nil, errors.WithKind(errors.KindInvalidRequest, errors.ErrBadRequest, "translator", "normalize_set_attributes")
		}
		req.Param, req.Attributes = env.Param, env.Attributes
	case OpAddRow:
		if env.TableName == "" {
			return nil, errors.WithKind(errors.KindInvalidRequest, errors.ErrBadRequest, "translator", "normalize_add_row")
		}
		req.TableName, req.RowData = env.TableName, env.RowData
	case OpDeleteRow:
		if env.RowName == "" {
			return nil, errors.WithKind(errors.KindInvalidRequest, errors.ErrBadRequest, "translator", "normalize_delete_row")
		}
		req.RowName = env.RowName
	case OpReplaceRows:
		if env.TableName == "" {
			return nil, errors.WithKind(errors.KindInvalidRequest, errors.ErrBadRequest, "translator", "normalize_replace_rows")
		}
		req.TableName, req.TableData = env.TableName, env.TableData
	case OpSubscribe, OpUnsubscribe:
		if env.Event == "" {
			return nil, errors.WithKind(errors.KindInvalidRequest, errors.ErrBadRequest, "translator", "normalize_subscribe")
		}
		req.Event = env.Event
	case OpTestAndSet:
		if env.Param == "" {
			return nil, errors.WithKind(errors.KindInvalidRequest, errors.ErrBadRequest, "translator", "normalize_test_and_set")
		}
		req.Param, req.OldValue, req.NewValue, req.DataType = env.Param, env.OldValue, env.NewValue, env.DataType
	}

	return req, nil
}

// normalizeWebPA maps a webpa-dialect command onto the internal Request
// form per the normalization table: GET, GET_ATTRIBUTES, SET,
// SET_ATTRIBUTES, ADD_ROW, DELETE_ROW, REPLACE_ROWS, SUBSCRIBE/UNSUBSCRIBE.
func normalizeWebPA(env *wireEnvelope, id string) (*Request, error) {
	cmd := strings.ToUpper(*env.Command)
	req := &Request{ID: id, wasWebPA: true}

	switch cmd {
	case "GET":
		req.Op = OpGet
		req.Params = decodeParams(env.Names)
		req.webpaNames = stringParams(req.Params)
		req.webpaWild = anyWildcard(req.webpaNames)
	case "GET_ATTRIBUTES":
		if len(env.Names) == 0 {
			return nil, errors.WithKind(errors.KindInvalidRequest, errors.ErrBadRequest, "translator", "normalize_webpa_get_attrs")
		}
		req.Op = OpGetAttributes
		req.Param = rawString(env.Names[0])
	case "SET":
		if len(env.Parameters) == 0 {
			return nil, errors.WithKind(errors.KindInvalidRequest, errors.ErrBadRequest, "translator", "normalize_webpa_set")
		}
		first := env.Parameters[0]
		req.Op = OpSet
		req.Param, req.Value = first.Name, first.Value
	case "SET_ATTRIBUTES":
		if len(env.Parameters) == 0 || env.Parameters[0].Attributes == nil {
			return nil, errors.WithKind(errors.KindInvalidRequest, errors.ErrBadRequest, "translator", "normalize_webpa_set_attrs")
		}
		first := env.Parameters[0]
		req.Op = OpSetAttributes
		req.Param, req.Attributes = first.Name, first.Attributes
	case "ADD_ROW":
		if env.Table == "" {
			return nil, errors.WithKind(errors.KindInvalidRequest, errors.ErrBadRequest, "translator", "normalize_webpa_add_row")
		}
		var rowData []WireRowParam
		if len(env.Row) > 0 {
			if err := json.Unmarshal(env.Row, &rowData); err != nil {
				return nil, errors.WithKind(errors.KindInvalidRequest, err, "translator", "normalize_webpa_add_row")
			}
		}
		req.Op = OpAddRow
		req.TableName, req.RowData = env.Table, rowData
	case "DELETE_ROW":
		rowName := rawString(env.Row)
		if rowName == "" {
			return nil, errors.WithKind(errors.KindInvalidRequest, errors.ErrBadRequest, "translator", "normalize_webpa_delete_row")
		}
		req.Op = OpDeleteRow
		req.RowName = rowName
	case "REPLACE_ROWS":
		if env.Table == "" {
			return nil, errors.WithKind(errors.KindInvalidRequest, errors.ErrBadRequest, "translator", "normalize_webpa_replace_rows")
		}
		req.Op = OpReplaceRows
		req.TableName, req.TableData = env.Table, env.Rows
	case "SUBSCRIBE":
		req.Op = OpSubscribe
		req.Event = env.Event
	case "UNSUBSCRIBE":
		req.Op = OpUnsubscribe
		req.Event = env.Event
	default:
		return nil, errors.WithKind(errors.KindInvalidRequest, errors.ErrBadRequest, "translator", "normalize_webpa")
	}

	return req, nil
}

// decodeParams converts a raw params/names array into RequestParam
// entries, flagging non-string elements as invalid rather than aborting
// the whole request (the GET boundary rule: a bad element becomes its own
// null result, siblings proceed).
func decodeParams(raw []json.RawMessage) []RequestParam {
	out := make([]RequestParam, len(raw))
	for i, r := range raw {
		var s string
		if err := json.Unmarshal(r, &s); err != nil {
			out[i] = RequestParam{Index: i, Valid: false}
			continue
		}
		out[i] = RequestParam{Name: s, Valid: true, Index: i}
	}
	return out
}

func rawString(r json.RawMessage) string {
	var s string
	_ = json.Unmarshal(r, &s)
	return s
}

func stringParams(params []RequestParam) []string {
	out := make([]string, 0, len(params))
	for _, p := range params {
		if p.Valid {
			out = append(out, p.Name)
		}
	}
	return out
}

func anyWildcard(names []string) bool {
	for _, n := range names {
		if strings.HasSuffix(n, ".") || strings.Contains(n, "*") {
			return true
		}
	}
	return false
}
