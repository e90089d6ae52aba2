// Package webhook decodes and authenticates provider callbacks.
package webhook

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/tiagomennab/ensaio-fotos-sub001/internal/domain"
)

// Payload is the provider callback body.
type Payload struct {
	ID      string                `json:"id" validate:"required,max=256"`
	Status  domain.ProviderStatus `json:"status" validate:"required,oneof=starting processing succeeded failed canceled"`
	Output  Output                `json:"output"`
	Error   Text                  `json:"error"`
	Logs    Logs                  `json:"logs"`
	Metrics *Metrics              `json:"metrics"`
}

// Metrics carries provider timings in seconds.
type Metrics struct {
	TotalTime *float64 `json:"total_time"`
}

// Output is the union of output shapes the provider sends: a string, an array
// of strings, an object with an images array, a training result object, or
// nothing. It always decodes to a flat URL list.
type Output []string

func (o *Output) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*o = nil
		return nil
	}
	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*o = appendURL(nil, s)
		return nil
	case '[':
		var items []json.RawMessage
		if err := json.Unmarshal(data, &items); err != nil {
			return err
		}
		var urls []string
		for _, item := range items {
			var s string
			if json.Unmarshal(item, &s) == nil {
				urls = appendURL(urls, s)
			}
		}
		*o = urls
		return nil
	case '{':
		var obj struct {
			Images  []string `json:"images"`
			Weights string   `json:"weights"`
			URL     string   `json:"url"`
		}
		if err := json.Unmarshal(data, &obj); err != nil {
			return err
		}
		var urls []string
		for _, s := range obj.Images {
			urls = appendURL(urls, s)
		}
		urls = appendURL(urls, obj.Weights)
		urls = appendURL(urls, obj.URL)
		*o = urls
		return nil
	}
	return fmt.Errorf("unsupported output shape %q", string(data[:1]))
}

// Text accepts a string or any JSON value, which is kept in compact form.
type Text string

func (t *Text) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*t = ""
		return nil
	}
	var s string
	if data[0] == '"' {
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*t = Text(strings.TrimSpace(s))
		return nil
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, data); err != nil {
		return err
	}
	*t = Text(buf.String())
	return nil
}

// Logs accepts a newline-separated string or an array of lines.
type Logs []string

func (l *Logs) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*l = nil
		return nil
	}
	var lines []string
	if data[0] == '[' {
		if err := json.Unmarshal(data, &lines); err != nil {
			return err
		}
	} else {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		lines = strings.Split(s, "\n")
	}
	out := lines[:0]
	for _, line := range lines {
		if line = strings.TrimRight(line, "\r "); line != "" {
			out = append(out, line)
		}
	}
	*l = out
	return nil
}

// Update converts the payload into the normalized domain form.
func (p Payload) Update() domain.ProviderUpdate {
	u := domain.ProviderUpdate{
		ExternalJobID: p.ID,
		Status:        p.Status,
		OutputURLs:    []string(p.Output),
		Error:         string(p.Error),
		Logs:          []string(p.Logs),
	}
	if p.Metrics != nil && p.Metrics.TotalTime != nil && *p.Metrics.TotalTime > 0 {
		u.TotalTime = time.Duration(*p.Metrics.TotalTime * float64(time.Second))
	}
	return u
}

// Decoder parses and validates callback bodies.
type Decoder struct {
	validate *validator.Validate
}

func NewDecoder() *Decoder {
	return &Decoder{validate: validator.New()}
}

// ErrMalformedPayload wraps decoding and validation failures.
var ErrMalformedPayload = errors.New("malformed payload")

// Decode parses body into a validated Payload.
func (d *Decoder) Decode(body []byte) (Payload, error) {
	var p Payload
	if err := json.Unmarshal(body, &p); err != nil {
		return Payload{}, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	p.ID = strings.TrimSpace(p.ID)
	p.Status = domain.ProviderStatus(strings.ToLower(strings.TrimSpace(string(p.Status))))
	if err := d.validate.Struct(p); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return Payload{}, fmt.Errorf("%w: field %s failed %s", ErrMalformedPayload, verrs[0].Field(), verrs[0].Tag())
		}
		return Payload{}, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	return p, nil
}

func appendURL(urls []string, s string) []string {
	if s = strings.TrimSpace(s); s != "" {
		return append(urls, s)
	}
	return urls
}
