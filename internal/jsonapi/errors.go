package jsonapi

// ErrorDocument is the response envelope of a failed batch. Exactly one
// error object is carried: the pipeline fails fast and never aggregates.
type ErrorDocument struct {
	Errors []ErrorObject `json:"errors"`
}

// ErrorObject is a JSON:API error object.
type ErrorObject struct {
	Status string         `json:"status,omitempty"`
	Code   string         `json:"code,omitempty"`
	Title  string         `json:"title,omitempty"`
	Detail string         `json:"detail,omitempty"`
	Source *ErrorSource   `json:"source,omitempty"`
	Meta   map[string]any `json:"meta,omitempty"`
}

// ErrorSource locates the offending part of the request document.
type ErrorSource struct {
	Pointer string `json:"pointer,omitempty"`
}
