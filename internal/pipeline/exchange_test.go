package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExchange_StringProperty(t *testing.T) {
	t.Parallel()

	ex := &Exchange{}
	_, ok := ex.StringProperty(PropertyHost)
	assert.False(t, ok)

	ex.SetProperty(PropertyHost, "example.com")
	ex.SetProperty("port", 8080)

	host, ok := ex.StringProperty(PropertyHost)
	assert.True(t, ok)
	assert.Equal(t, "example.com", host)

	_, ok = ex.StringProperty("port")
	assert.False(t, ok)
}

func TestExchange_BodyString(t *testing.T) {
	t.Parallel()

	body, ok := NewExchange("text").BodyString()
	assert.True(t, ok)
	assert.Equal(t, "text", body)

	body, ok = NewExchange([]byte("bytes")).BodyString()
	assert.True(t, ok)
	assert.Equal(t, "bytes", body)

	_, ok = NewExchange(42).BodyString()
	assert.False(t, ok)
}

func TestExchange_HeadersCopy(t *testing.T) {
	t.Parallel()

	ex := &Exchange{}
	ex.Message.SetHeader(HeaderContentType, "application/yaml")

	headers := ex.Headers()
	headers[HeaderContentType] = "text/plain"

	assert.Equal(t, "application/yaml", ex.Message.Header(HeaderContentType))
}
