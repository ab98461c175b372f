// Package pipeline provides the message envelope passed between processing
// steps and the processors that render ConfigMaps into catalog YAML.
package pipeline

import "maps"

const (
	// HeaderContentType is the header carrying the media type of the body
	HeaderContentType = "Content-Type"

	// PropertyProto is the exchange property holding the target URL scheme
	PropertyProto = "proto"
	// PropertyHost is the exchange property holding the target host
	PropertyHost = "host"
)

// Message is the body and headers of an exchange.
type Message struct {
	Body    any
	Headers map[string]string
}

// SetHeader sets a header, allocating the header map if needed.
func (m *Message) SetHeader(key, value string) {
	if m.Headers == nil {
		m.Headers = make(map[string]string)
	}
	m.Headers[key] = value
}

// Header returns the header value, or "" if unset.
func (m *Message) Header(key string) string {
	return m.Headers[key]
}

// Exchange carries a message and the properties set by earlier steps.
// An exchange belongs to a single request and must not be shared between
// goroutines.
type Exchange struct {
	Message    Message
	Properties map[string]any
}

// NewExchange creates an exchange with the given body.
func NewExchange(body any) *Exchange {
	return &Exchange{
		Message:    Message{Body: body, Headers: map[string]string{}},
		Properties: map[string]any{},
	}
}

// SetProperty sets an exchange property.
func (e *Exchange) SetProperty(key string, value any) {
	if e.Properties == nil {
		e.Properties = make(map[string]any)
	}
	e.Properties[key] = value
}

// StringProperty returns the property as a string. ok is false when the
// property is absent or not a string.
func (e *Exchange) StringProperty(key string) (value string, ok bool) {
	raw, found := e.Properties[key]
	if !found {
		return "", false
	}
	value, ok = raw.(string)
	return value, ok
}

// BodyString returns the body when it is a string or a byte slice.
func (e *Exchange) BodyString() (string, bool) {
	switch b := e.Message.Body.(type) {
	case string:
		return b, true
	case []byte:
		return string(b), true
	default:
		return "", false
	}
}

// Headers returns a copy of the message headers.
func (e *Exchange) Headers() map[string]string {
	return maps.Clone(e.Message.Headers)
}
